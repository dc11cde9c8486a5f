package factory

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmScope/internal/asset"
	"farmScope/internal/faults"
	"farmScope/internal/oracle"
	"farmScope/internal/state"
)

var (
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	managerAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	oracleAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	admin       = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	creatorA    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	creatorB    = common.HexToAddress("0x2222222222222222222222222222222222222222")

	feeToken = common.HexToAddress("0xfee0000000000000000000000000000000000000")
	assetX   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	assetY   = common.HexToAddress("0x4545454545454545454545454545454545454545")
	rewardR  = common.HexToAddress("0x5555555555555555555555555555555555555555")
	usd      = common.HexToAddress("0x7777777777777777777777777777777777777777")
)

func newTestFactory(t *testing.T, fee int64) (*state.Env, *asset.Bank, *Factory) {
	t.Helper()
	env := state.NewEnv(state.Config{ChainID: 1337, Clock: state.NewManualClock(1_700_000_000)})
	bank := asset.NewBank(env)
	for _, token := range []common.Address{feeToken, assetX, assetY, rewardR, usd} {
		require.NoError(t, bank.Register(token, "", 18))
	}
	for _, account := range []common.Address{creatorA, creatorB, admin} {
		require.NoError(t, bank.Mint(feeToken, account, big.NewInt(1_000)))
		require.NoError(t, bank.Approve(feeToken, account, factoryAddr, big.NewInt(1_000)))
	}
	f, err := New(env, bank, Config{
		Address:     factoryAddr,
		Admin:       admin,
		FeeToken:    feeToken,
		CreationFee: big.NewInt(fee),
		Oracles:     map[common.Address]oracle.Oracle{oracleAddr: oracle.NewStatic()},
	})
	require.NoError(t, err)
	require.NoError(t, f.SetManager(admin, managerAddr))
	return env, bank, f
}

func params(staked common.Address) Params {
	return Params{
		StakedAsset:           staked,
		RewardAssets:          []common.Address{rewardR},
		RewardsDuration:       2_592_000,
		DepositFeeBps:         100,
		WithdrawalFeesBps:     []uint64{2000, 1000, 0},
		WithdrawalFeeSchedule: []uint64{648_000, 1_296_000, 1_944_000},
	}
}

func TestCreateNewRewards(t *testing.T) {
	env, bank, f := newTestFactory(t, 10)

	pool, err := f.CreateNewRewards(creatorA, params(assetX))
	require.NoError(t, err)

	assert.Equal(t, crypto.CreateAddress(factoryAddr, 0), pool.Address())
	assert.Equal(t, managerAddr, pool.Owner())
	assert.False(t, pool.Permissioned())
	assert.Equal(t, pool.Address(), f.GetFarm(creatorA, assetX))
	assert.Equal(t, creatorA, f.GetCreator(pool.Address()))
	got, ok := f.Pool(pool.Address())
	require.True(t, ok)
	assert.Same(t, pool, got)

	assert.Equal(t, "990", bank.BalanceOf(feeToken, creatorA).String())
	assert.Equal(t, "10", f.CollectedFees(feeToken).String())

	logs := env.Logs()
	require.NotEmpty(t, logs)
	assert.Equal(t, factoryAddr.Hex(), logs[len(logs)-1].Address)

	records := f.Farms()
	require.Len(t, records, 1)
	assert.Equal(t, creatorA.Hex(), records[0].Creator)
	assert.Equal(t, []uint64{2000, 1000, 0}, records[0].WithdrawalFeesBps)
}

func TestCreateDuplicateFails(t *testing.T) {
	_, bank, f := newTestFactory(t, 10)

	first, err := f.CreateNewRewards(creatorA, params(assetX))
	require.NoError(t, err)

	_, err = f.CreateNewRewards(creatorA, params(assetX))
	assert.ErrorIs(t, err, faults.ErrInvalidState)
	assert.Equal(t, first.Address(), f.GetFarm(creatorA, assetX))
	assert.Equal(t, "990", bank.BalanceOf(feeToken, creatorA).String(), "failed creation keeps the fee")

	second, err := f.CreateNewPermissionedRewards(creatorB, params(assetX))
	require.NoError(t, err)
	assert.True(t, second.Permissioned())
	assert.Equal(t, crypto.CreateAddress(factoryAddr, 1), second.Address())
}

func TestCreateValidation(t *testing.T) {
	_, _, f := newTestFactory(t, 0)

	bad := params(assetX)
	bad.WithdrawalFeeSchedule = bad.WithdrawalFeeSchedule[:2]
	_, err := f.CreateNewRewards(creatorA, bad)
	assert.ErrorIs(t, err, faults.ErrInvalidInput)

	bad = params(assetX)
	bad.WithdrawalFeesBps = []uint64{1000, 2000, 0}
	_, err = f.CreateNewRewards(creatorA, bad)
	assert.ErrorIs(t, err, faults.ErrInvalidInput)

	bad = params(common.Address{})
	_, err = f.CreateNewRewards(creatorA, bad)
	assert.ErrorIs(t, err, faults.ErrInvalidInput)

	bad = params(assetX)
	bad.CoverageAsset = usd
	bad.CoverageAmount = big.NewInt(100)
	bad.Oracle = common.HexToAddress("0xbad")
	_, err = f.CreateNewRewards(creatorA, bad)
	assert.ErrorIs(t, err, faults.ErrInvalidInput)

	good := bad
	good.Oracle = oracleAddr
	pool, err := f.CreateNewRewards(creatorA, good)
	require.NoError(t, err)
	assert.Equal(t, usd, pool.CoverageAsset())
	assert.Equal(t, crypto.CreateAddress(factoryAddr, 0), pool.Address(), "failed creations do not consume nonces")
}

func TestCreateRequiresManager(t *testing.T) {
	env := state.NewEnv(state.Config{})
	f, err := New(env, asset.NewBank(env), Config{Address: factoryAddr, Admin: admin})
	require.NoError(t, err)

	_, err = f.CreateNewRewards(creatorA, params(assetX))
	assert.ErrorIs(t, err, faults.ErrInvalidState)
}

func TestCreationFeeMissingAllowance(t *testing.T) {
	_, bank, f := newTestFactory(t, 10)
	require.NoError(t, bank.Approve(feeToken, creatorA, factoryAddr, big.NewInt(0)))

	_, err := f.CreateNewRewards(creatorA, params(assetX))
	assert.ErrorIs(t, err, faults.ErrUpstream)
	assert.Equal(t, common.Address{}, f.GetFarm(creatorA, assetX))
	assert.Empty(t, f.Farms())
}

func TestAdminSetters(t *testing.T) {
	_, _, f := newTestFactory(t, 10)

	assert.ErrorIs(t, f.SetFee(creatorA, feeToken, big.NewInt(1)), faults.ErrUnauthorized)
	assert.ErrorIs(t, f.SetManager(creatorA, creatorA), faults.ErrUnauthorized)
	assert.ErrorIs(t, f.SetManager(admin, common.Address{}), faults.ErrInvalidInput)
	assert.ErrorIs(t, f.SetFee(admin, common.Address{}, big.NewInt(1)), faults.ErrInvalidInput)

	require.NoError(t, f.SetFee(admin, feeToken, big.NewInt(0)))
	_, fee := f.CreationFee()
	assert.Zero(t, fee.Sign())
}

func TestOverrideOwnership(t *testing.T) {
	_, _, f := newTestFactory(t, 0)
	pool, err := f.CreateNewRewards(creatorA, params(assetX))
	require.NoError(t, err)

	assert.ErrorIs(t, f.OverrideOwnership(creatorA, pool.Address()), faults.ErrUnauthorized)
	assert.ErrorIs(t, f.OverrideOwnership(admin, common.HexToAddress("0xdead")), faults.ErrInvalidInput)

	require.NoError(t, f.OverrideOwnership(admin, pool.Address()))
	assert.Equal(t, admin, f.GetCreator(pool.Address()))
	assert.Equal(t, pool.Address(), f.GetFarm(admin, assetX))
	assert.Equal(t, common.Address{}, f.GetFarm(creatorA, assetX))
	assert.Equal(t, managerAddr, pool.Owner(), "custody is untouched")

	// Creator A may create again for the same asset.
	_, err = f.CreateNewRewards(creatorA, params(assetX))
	require.NoError(t, err)

	other, err := f.CreateNewRewards(creatorB, params(assetX))
	require.NoError(t, err)
	assert.ErrorIs(t, f.OverrideOwnership(admin, other.Address()), faults.ErrInvalidState)
	assert.Equal(t, creatorB, f.GetCreator(other.Address()))
}

func TestWithdrawFees(t *testing.T) {
	_, bank, f := newTestFactory(t, 25)
	_, err := f.CreateNewRewards(creatorA, params(assetX))
	require.NoError(t, err)
	_, err = f.CreateNewRewards(creatorA, params(assetY))
	require.NoError(t, err)

	_, err = f.WithdrawFees(creatorA, feeToken)
	assert.ErrorIs(t, err, faults.ErrUnauthorized)

	amount, err := f.WithdrawFees(admin, feeToken)
	require.NoError(t, err)
	assert.Equal(t, "50", amount.String())
	assert.Equal(t, "1050", bank.BalanceOf(feeToken, admin).String())
	assert.Zero(t, f.CollectedFees(feeToken).Sign())
}

func TestOracleWhitelist(t *testing.T) {
	_, _, f := newTestFactory(t, 0)
	extra := common.HexToAddress("0x00000000000000000000000000000000000000f3")

	assert.ErrorIs(t, f.AddOracle(creatorA, extra, oracle.NewStatic()), faults.ErrUnauthorized)
	assert.ErrorIs(t, f.AddOracle(admin, extra, nil), faults.ErrInvalidInput)
	require.NoError(t, f.AddOracle(admin, extra, oracle.NewStatic()))
	assert.True(t, f.IsOracle(extra))

	require.NoError(t, f.RemoveOracle(admin, extra))
	assert.False(t, f.IsOracle(extra))
	assert.ErrorIs(t, f.RemoveOracle(admin, extra), faults.ErrInvalidState)
}
