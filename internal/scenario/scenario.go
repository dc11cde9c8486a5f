// Package scenario replays a declarative YAML script of factory, manager and
// pool calls against an in-memory environment.
package scenario

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

// DefaultStart is the ledger time used when a scenario sets none.
const DefaultStart = uint64(1_700_000_000)

// Scenario is the root of a scenario file.
type Scenario struct {
	Name     string       `yaml:"name"`
	ChainID  uint64       `yaml:"chain_id"`
	Start    uint64       `yaml:"start"`
	Admin    string       `yaml:"admin"`
	Factory  FactoryDef   `yaml:"factory"`
	Manager  ManagerDef   `yaml:"manager"`
	Tokens   []TokenDef   `yaml:"tokens"`
	Oracles  []OracleDef  `yaml:"oracles"`
	Balances []BalanceDef `yaml:"balances"`
	Steps    []Step       `yaml:"steps"`
}

type FactoryDef struct {
	FeeToken    string `yaml:"fee_token"`
	CreationFee string `yaml:"creation_fee"`
}

type ManagerDef struct {
	MinimumEmissionDuration uint64 `yaml:"minimum_emission_duration"`
}

type TokenDef struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals *uint8 `yaml:"decimals"`
}

type OracleDef struct {
	Name   string     `yaml:"name"`
	Prices []PriceDef `yaml:"prices"`
}

// PriceDef sets amountOut = amountIn * Num / Den for the In → Out pair.
type PriceDef struct {
	In  string `yaml:"in"`
	Out string `yaml:"out"`
	Num string `yaml:"num"`
	Den string `yaml:"den"`
}

// BalanceDef mints Amount of Token to Account and approves each spender in
// Approve for the same amount.
type BalanceDef struct {
	Account string   `yaml:"account"`
	Token   string   `yaml:"token"`
	Amount  string   `yaml:"amount"`
	Approve []string `yaml:"approve"`
}

// FarmDef describes a pool created by a create_farm step.
type FarmDef struct {
	Name                    string   `yaml:"name"`
	StakedAsset             string   `yaml:"staked_asset"`
	RewardAssets            []string `yaml:"reward_assets"`
	RewardsDuration         uint64   `yaml:"rewards_duration"`
	DepositFeeBps           uint64   `yaml:"deposit_fee_bps"`
	WithdrawalFeesBps       []uint64 `yaml:"withdrawal_fees_bps"`
	WithdrawalFeeSchedule   []uint64 `yaml:"withdrawal_fee_schedule"`
	Permissioned            bool     `yaml:"permissioned"`
	Oracle                  string   `yaml:"oracle"`
	CoverageAsset           string   `yaml:"coverage_asset"`
	CoverageAmount          string   `yaml:"coverage_amount"`
	CoverageVestingDuration uint64   `yaml:"coverage_vesting_duration"`
}

// Step is one call. Which fields apply depends on Action.
type Step struct {
	Action    string    `yaml:"action"`
	Caller    string    `yaml:"caller"`
	Farm      string    `yaml:"farm"`
	Token     string    `yaml:"token"`
	Account   string    `yaml:"account"`
	Spender   string    `yaml:"spender"`
	Oracle    string    `yaml:"oracle"`
	Amount    string    `yaml:"amount"`
	Amounts   []string  `yaml:"amounts"`
	Duration  uint64    `yaml:"duration"`
	Seconds   uint64    `yaml:"seconds"`
	Permitted bool      `yaml:"permitted"`
	Tolerance string    `yaml:"tolerance"`
	Create    *FarmDef  `yaml:"create"`
	Price     *PriceDef `yaml:"price"`

	// ExpectError is the failure kind the step must end with, such as
	// "unauthorized". Empty means the step must succeed.
	ExpectError string `yaml:"expect_error"`
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario document. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Start == 0 {
		sc.Start = DefaultStart
	}
	if sc.ChainID == 0 {
		sc.ChainID = 1337
	}
	if sc.Admin == "" {
		sc.Admin = "admin"
	}
	for i, step := range sc.Steps {
		if step.Action == "" {
			return nil, fmt.Errorf("step %d: action is required", i)
		}
	}
	return &sc, nil
}

// NameAddress derives the address a scenario name stands for. Hex addresses
// are used as given.
func NameAddress(name string) common.Address {
	if common.IsHexAddress(name) {
		return common.HexToAddress(name)
	}
	return common.BytesToAddress(crypto.Keccak256([]byte("farmscope:" + name)))
}

// ParseAmount parses a base-unit integer. A trailing exponent scales it, so
// "1000e18" is 1000 * 10^18.
func ParseAmount(value string) (*big.Int, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if value == "" {
		return nil, fmt.Errorf("empty amount")
	}
	mantissa, exponent, scaled := value, "", false
	if i := strings.IndexAny(value, "eE"); i >= 0 {
		mantissa, exponent, scaled = value[:i], value[i+1:], true
	}
	out, ok := new(big.Int).SetString(mantissa, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if scaled {
		exp, err := strconv.ParseUint(exponent, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid amount exponent %q", value)
		}
		out.Mul(out, new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(exp), nil))
	}
	return out, nil
}
