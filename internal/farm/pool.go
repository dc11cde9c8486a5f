// Package farm implements a single staking pool: deposits of one staked
// asset earn a time-proportional share of one or more reward assets emitted
// over a bounded window.
package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/asset"
	"farmScope/internal/farmabi"
	"farmScope/internal/faults"
	"farmScope/internal/oracle"
	"farmScope/internal/state"
)

const component = "farm"

type rewardState struct {
	// rate is reward units per second scaled by Scale.
	rate          *big.Int
	perUnitStored *big.Int
	lastUpdate    uint64
}

type rewardKey struct {
	asset   common.Address
	account common.Address
}

type coverageAnchor struct {
	value *big.Int
	since uint64
}

// Pool is a reward ledger. Every mutating method runs as one transition of
// the shared environment and is either fully applied or not at all.
type Pool struct {
	env    *state.Env
	bank   asset.Transferrer
	oracle oracle.Oracle
	logger *zap.Logger

	address       common.Address
	stakedAsset   common.Address
	depositFeeBps uint64
	fees          FeeSchedule
	permissioned  bool

	coverageAsset    common.Address
	coverageAmount   *big.Int
	coverageDuration uint64
	oracleAddress    common.Address

	owner           common.Address
	rewardAssets    []common.Address
	rewards         map[common.Address]*rewardState
	periodFinish    uint64
	rewardsDuration uint64

	totalStaked   *big.Int
	balances      map[common.Address]*big.Int
	feeAnchors    map[common.Address]uint64
	perUnitPaid   map[rewardKey]*big.Int
	accrued       map[rewardKey]*big.Int
	collectedFees *big.Int
	permitted     map[common.Address]bool

	coverageReserve *big.Int
	coverageFunded  *big.Int
	coverageAnchors map[common.Address]coverageAnchor
}

// New builds a pool owned by cfg.Owner.
func New(env *state.Env, bank asset.Transferrer, cfg Config) (*Pool, error) {
	if env == nil || bank == nil {
		return nil, fmt.Errorf("farm: env and bank are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	coverageAmount := new(big.Int)
	if cfg.CoverageAmount != nil {
		coverageAmount.Set(cfg.CoverageAmount)
	}
	p := &Pool{
		env:              env,
		bank:             bank,
		oracle:           cfg.Oracle,
		logger:           env.Logger().With(zap.String("component", component), zap.String("farm", cfg.Address.Hex())),
		address:          cfg.Address,
		stakedAsset:      cfg.StakedAsset,
		depositFeeBps:    cfg.DepositFeeBps,
		fees:             append(FeeSchedule(nil), cfg.WithdrawalFees...),
		permissioned:     cfg.Permissioned,
		coverageAsset:    cfg.CoverageAsset,
		coverageAmount:   coverageAmount,
		coverageDuration: cfg.CoverageVestingDuration,
		oracleAddress:    cfg.OracleAddress,
		owner:            cfg.Owner,
		rewards:          make(map[common.Address]*rewardState, len(cfg.RewardAssets)),
		rewardsDuration:  cfg.RewardsDuration,
		totalStaked:      new(big.Int),
		balances:         make(map[common.Address]*big.Int),
		feeAnchors:       make(map[common.Address]uint64),
		perUnitPaid:      make(map[rewardKey]*big.Int),
		accrued:          make(map[rewardKey]*big.Int),
		collectedFees:    new(big.Int),
		permitted:        make(map[common.Address]bool),
		coverageReserve:  new(big.Int),
		coverageFunded:   new(big.Int),
		coverageAnchors:  make(map[common.Address]coverageAnchor),
	}
	for _, reward := range cfg.RewardAssets {
		p.rewardAssets = append(p.rewardAssets, reward)
		p.rewards[reward] = &rewardState{rate: new(big.Int), perUnitStored: new(big.Int)}
	}
	return p, nil
}

// Address returns the pool identity.
func (p *Pool) Address() common.Address {
	return p.address
}

func (p *Pool) onlyOwner(caller common.Address) error {
	if caller != p.owner {
		return faults.Unauthorized("caller %s is not the pool owner", caller.Hex())
	}
	return nil
}

// TransferOwnership hands custody of the pool to newOwner.
func (p *Pool) TransferOwnership(caller, newOwner common.Address) error {
	return p.env.Run(component, "transfer_ownership", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		if newOwner == (common.Address{}) {
			return faults.InvalidInput("new owner cannot be the zero address")
		}
		previous := p.owner
		state.Set(p.env.Journal(), &p.owner, newOwner)
		return p.emit(farmabi.OwnershipTransferred(previous, newOwner))
	})
}

// SetAddressPermission allows or revokes staking for account on a
// permissioned pool.
func (p *Pool) SetAddressPermission(caller, account common.Address, permitted bool) error {
	return p.env.Run(component, "set_address_permission", func() error {
		if err := p.onlyOwner(caller); err != nil {
			return err
		}
		if !p.permissioned {
			return faults.InvalidState("pool is not permissioned")
		}
		if account == (common.Address{}) {
			return faults.InvalidInput("account cannot be the zero address")
		}
		state.SetKey(p.env.Journal(), p.permitted, account, permitted)
		return p.emit(farmabi.AddressPermissionSet(account, permitted))
	})
}

func (p *Pool) emit(log farmabi.Log, err error) error {
	if err != nil {
		return fmt.Errorf("encode %s: %w", log.Name, err)
	}
	p.env.Emit(log.Name, p.address, log.Topics, log.Data)
	return nil
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
