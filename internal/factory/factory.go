// Package factory creates reward pools, charges the creation fee and keeps
// the creator index the manager authenticates against.
package factory

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"farmScope/internal/asset"
	"farmScope/internal/farm"
	"farmScope/internal/farmabi"
	"farmScope/internal/faults"
	"farmScope/internal/model"
	"farmScope/internal/oracle"
	"farmScope/internal/state"
)

const component = "factory"

// Config configures a Factory.
type Config struct {
	Address     common.Address
	Admin       common.Address
	FeeToken    common.Address
	CreationFee *big.Int
	// Oracles is the initial oracle whitelist for coverage pools.
	Oracles map[common.Address]oracle.Oracle
}

// Params describes a pool to create.
type Params struct {
	Oracle                  common.Address
	StakedAsset             common.Address
	CoverageAsset           common.Address
	CoverageAmount          *big.Int
	CoverageVestingDuration uint64
	RewardAssets            []common.Address
	RewardsDuration         uint64
	DepositFeeBps           uint64
	WithdrawalFeesBps       []uint64
	WithdrawalFeeSchedule   []uint64
}

type farmKey struct {
	creator     common.Address
	stakedAsset common.Address
}

type Factory struct {
	env    *state.Env
	bank   asset.Transferrer
	logger *zap.Logger

	address     common.Address
	admin       common.Address
	feeToken    common.Address
	creationFee *big.Int
	manager     common.Address
	oracles     map[common.Address]oracle.Oracle

	nonce     uint64
	farms     map[farmKey]common.Address
	creators  map[common.Address]common.Address
	pools     map[common.Address]*farm.Pool
	order     []common.Address
	collected map[common.Address]*big.Int
}

func New(env *state.Env, bank asset.Transferrer, cfg Config) (*Factory, error) {
	if env == nil || bank == nil {
		return nil, fmt.Errorf("factory: env and bank are required")
	}
	if cfg.Address == (common.Address{}) || cfg.Admin == (common.Address{}) {
		return nil, faults.InvalidInput("factory address and admin are required")
	}
	fee := new(big.Int)
	if cfg.CreationFee != nil {
		fee.Set(cfg.CreationFee)
	}
	if fee.Sign() < 0 {
		return nil, faults.InvalidInput("creation fee must be non-negative")
	}
	if fee.Sign() > 0 && cfg.FeeToken == (common.Address{}) {
		return nil, faults.InvalidInput("creation fee requires a fee token")
	}
	oracles := make(map[common.Address]oracle.Oracle, len(cfg.Oracles))
	for addr, o := range cfg.Oracles {
		oracles[addr] = o
	}
	return &Factory{
		env:         env,
		bank:        bank,
		logger:      env.Logger().With(zap.String("component", component)),
		address:     cfg.Address,
		admin:       cfg.Admin,
		feeToken:    cfg.FeeToken,
		creationFee: fee,
		oracles:     oracles,
		farms:       make(map[farmKey]common.Address),
		creators:    make(map[common.Address]common.Address),
		pools:       make(map[common.Address]*farm.Pool),
		collected:   make(map[common.Address]*big.Int),
	}, nil
}

// CreateNewRewards creates an open pool for caller.
func (f *Factory) CreateNewRewards(caller common.Address, params Params) (*farm.Pool, error) {
	return f.create(caller, params, false)
}

// CreateNewPermissionedRewards creates a pool that only admits accounts the
// creator permits.
func (f *Factory) CreateNewPermissionedRewards(caller common.Address, params Params) (*farm.Pool, error) {
	return f.create(caller, params, true)
}

func (f *Factory) create(caller common.Address, params Params, permissioned bool) (*farm.Pool, error) {
	operation := "create_new_rewards"
	if permissioned {
		operation = "create_new_permissioned_rewards"
	}
	var pool *farm.Pool
	err := f.env.Run(component, operation, func() error {
		if f.manager == (common.Address{}) {
			return faults.InvalidState("manager is not configured")
		}
		schedule, err := farm.NewFeeSchedule(params.WithdrawalFeesBps, params.WithdrawalFeeSchedule)
		if err != nil {
			return err
		}
		key := farmKey{creator: caller, stakedAsset: params.StakedAsset}
		if existing, ok := f.farms[key]; ok {
			return faults.InvalidState("creator %s already has farm %s for %s", caller.Hex(), existing.Hex(), params.StakedAsset.Hex())
		}

		cfg := farm.Config{
			Owner:                   f.address,
			StakedAsset:             params.StakedAsset,
			RewardAssets:            params.RewardAssets,
			RewardsDuration:         params.RewardsDuration,
			DepositFeeBps:           params.DepositFeeBps,
			WithdrawalFees:          schedule,
			Permissioned:            permissioned,
			CoverageAsset:           params.CoverageAsset,
			CoverageAmount:          params.CoverageAmount,
			CoverageVestingDuration: params.CoverageVestingDuration,
			OracleAddress:           params.Oracle,
		}
		if cfg.CoverageEnabled() {
			o, ok := f.oracles[params.Oracle]
			if !ok {
				return faults.InvalidInput("oracle %s is not whitelisted", params.Oracle.Hex())
			}
			cfg.Oracle = o
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := f.chargeCreationFee(caller); err != nil {
			return err
		}

		j := f.env.Journal()
		cfg.Address = crypto.CreateAddress(f.address, f.nonce)
		state.Set(j, &f.nonce, f.nonce+1)
		created, err := farm.New(f.env, f.bank, cfg)
		if err != nil {
			return err
		}
		if err := created.TransferOwnership(f.address, f.manager); err != nil {
			return err
		}

		state.SetKey(j, f.farms, key, cfg.Address)
		state.SetKey(j, f.creators, cfg.Address, caller)
		state.SetKey(j, f.pools, cfg.Address, created)
		state.Push(j, &f.order, cfg.Address)
		pool = created

		f.logger.Info("farm created",
			zap.String("farm", cfg.Address.Hex()),
			zap.String("creator", caller.Hex()),
			zap.String("staked_asset", params.StakedAsset.Hex()),
			zap.Bool("permissioned", permissioned),
		)
		return f.emit(farmabi.ContractCreated(cfg.Address, caller))
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (f *Factory) chargeCreationFee(caller common.Address) error {
	if f.creationFee.Sign() == 0 {
		return nil
	}
	if err := asset.TransferIn(f.bank, f.feeToken, caller, f.address, f.creationFee); err != nil {
		return err
	}
	prev := f.collected[f.feeToken]
	if prev == nil {
		prev = new(big.Int)
	}
	state.SetKey(f.env.Journal(), f.collected, f.feeToken, new(big.Int).Add(prev, f.creationFee))
	return nil
}

// GetFarm returns the pool creator created for stakedAsset, or the zero
// address.
func (f *Factory) GetFarm(creator, stakedAsset common.Address) common.Address {
	return f.farms[farmKey{creator: creator, stakedAsset: stakedAsset}]
}

// GetCreator returns the registered creator of pool, or the zero address.
func (f *Factory) GetCreator(pool common.Address) common.Address {
	return f.creators[pool]
}

// Pool returns the pool at address.
func (f *Factory) Pool(address common.Address) (*farm.Pool, bool) {
	p, ok := f.pools[address]
	return p, ok
}

// Farms returns the registry records of every pool in creation order.
func (f *Factory) Farms() []model.Farm {
	out := make([]model.Farm, 0, len(f.order))
	for _, address := range f.order {
		out = append(out, f.pools[address].Record(f.env.ChainID(), f.creators[address]))
	}
	return out
}

func (f *Factory) Address() common.Address { return f.address }
func (f *Factory) Admin() common.Address   { return f.admin }
func (f *Factory) Manager() common.Address { return f.manager }

// CreationFee returns the fee token and amount charged per pool.
func (f *Factory) CreationFee() (common.Address, *big.Int) {
	return f.feeToken, new(big.Int).Set(f.creationFee)
}

// CollectedFees returns the creation fees held in token.
func (f *Factory) CollectedFees(token common.Address) *big.Int {
	if v := f.collected[token]; v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (f *Factory) emit(log farmabi.Log, err error) error {
	if err != nil {
		return fmt.Errorf("encode %s: %w", log.Name, err)
	}
	f.env.Emit(log.Name, f.address, log.Topics, log.Data)
	return nil
}
