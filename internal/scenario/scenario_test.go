package scenario

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmScope/internal/farmabi"
	"farmScope/internal/faults"
)

func TestBasicScenario(t *testing.T) {
	sc, err := Load("testdata/basic.yaml")
	require.NoError(t, err)

	report, err := Run(sc, Options{})
	require.NoError(t, err)

	assert.Equal(t, "basic", report.Name)
	assert.Len(t, report.Steps, len(sc.Steps))
	require.Len(t, report.Farms, 1)
	assert.Equal(t, NameAddress("creator").Hex(), report.Farms[0].Creator)
	assert.Equal(t, NameAddress("lp").Hex(), report.Farms[0].StakedAsset)
	assert.Len(t, report.Tokens, 3)

	names := make(map[string]string)
	for _, load := range []func() (abi.ABI, error){farmabi.FarmABI, farmabi.FactoryABI} {
		parsed, err := load()
		require.NoError(t, err)
		for _, event := range parsed.Events {
			names[event.ID.Hex()] = event.Name
		}
	}
	counts := make(map[string]int)
	for _, log := range report.Logs {
		require.NotEmpty(t, log.Topics)
		counts[names[log.Topics[0]]]++
	}
	assert.Equal(t, 1, counts[farmabi.EventContractCreated])
	assert.Equal(t, 1, counts[farmabi.EventRewardsEmissionStarted])
	assert.Equal(t, 2, counts[farmabi.EventStaked])
	assert.Equal(t, 2, counts[farmabi.EventRewardPaid])
	assert.Equal(t, 1, counts[farmabi.EventWithdrawn])

	for _, step := range report.Steps {
		assert.Equal(t, sc.Steps[step.Index].ExpectError, step.ErrorKind, "step %d %s", step.Index, step.Action)
	}
	assert.Equal(t, "1000", report.Steps[len(report.Steps)-2].Result)
}

func TestUnexpectedOutcomeStopsRun(t *testing.T) {
	sc, err := Parse([]byte(`
name: mismatch
tokens: [{name: lp}, {name: elk}]
steps:
  - action: create_farm
    caller: creator
    create: {name: main, staked_asset: lp, reward_assets: [elk]}
    expect_error: unauthorized
  - {action: advance, seconds: 10}
`))
	require.NoError(t, err)

	report, err := Run(sc, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected unauthorized error, got success")
	require.Len(t, report.Steps, 1)
	assert.Len(t, report.Farms, 1)
}

func TestFailingStepReturnsKind(t *testing.T) {
	sc, err := Parse([]byte(`
name: failing
tokens: [{name: lp}]
steps:
  - {action: stake, caller: alice, farm: nowhere, amount: "1"}
`))
	require.NoError(t, err)

	report, err := Run(sc, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrInvalidInput))
	assert.Equal(t, faults.KindInvalidInput, report.Steps[0].ErrorKind)
}

func TestCoverageScenario(t *testing.T) {
	sc, err := Parse([]byte(`
name: coverage
manager: {minimum_emission_duration: 1}
tokens: [{name: lp}, {name: elk}, {name: usd}]
oracles:
  - name: prices
    prices: [{in: lp, out: usd, num: "2", den: "1"}]
balances:
  - {account: creator, token: elk, amount: "1000000", approve: [manager]}
  - {account: creator, token: usd, amount: "10000", approve: [manager]}
  - {account: alice, token: lp, amount: "1000"}
steps:
  - action: create_farm
    caller: creator
    create:
      name: covered
      staked_asset: lp
      reward_assets: [elk]
      oracle: prices
      coverage_asset: usd
      coverage_amount: "10000"
      coverage_vesting_duration: 1000
  - {action: fund_coverage, caller: creator, farm: covered, amount: "10000"}
  - {action: start_emission, caller: creator, farm: covered, amounts: ["1000"], duration: 2000}
  - {action: approve, caller: alice, token: lp, spender: covered, amount: "1000"}
  - {action: stake, caller: alice, farm: covered, amount: "500"}
  - {action: set_price, oracle: prices, price: {in: lp, out: usd, num: "1", den: "1"}}
  - {action: advance, seconds: 250}
  - {action: claim_coverage, caller: alice, farm: covered}
  - {action: expect_balance, account: alice, token: usd, amount: "125"}
  - {action: set_price, oracle: missing, price: {in: lp, out: usd, num: "1", den: "1"}, expect_error: invalid_input}
`))
	require.NoError(t, err)

	r, err := NewRunner(sc, Options{})
	require.NoError(t, err)
	_, err = r.Run()
	require.NoError(t, err)

	pool, err := r.Farm("covered")
	require.NoError(t, err)
	assert.Equal(t, "9875", pool.CoverageReserve().String())
}

func TestShippedScenarios(t *testing.T) {
	paths, err := filepath.Glob("../../scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			sc, err := Load(path)
			require.NoError(t, err)
			_, err = Run(sc, Options{})
			require.NoError(t, err)
		})
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"1000":    "1000",
		"1_000":   "1000",
		"1000e18": "1000000000000000000000",
		"5E2":     "500",
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}

	for _, bad := range []string{"", "abc", "1e", "1e-3"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: x\nstepz: []\n"))
	require.Error(t, err)

	_, err = Parse([]byte("steps:\n  - caller: alice\n"))
	require.Error(t, err)
}

func TestNameAddress(t *testing.T) {
	assert.Equal(t, NameAddress("alice"), NameAddress("alice"))
	assert.NotEqual(t, NameAddress("alice"), NameAddress("bob"))
	hex := "0x0000000000000000000000000000000000000011"
	assert.Equal(t, hex, NameAddress(hex).Hex())
}
