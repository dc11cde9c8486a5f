package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmScope/internal/faults"
	"farmScope/internal/model"
)

// RewardSnapshot is the accrual state of one reward asset.
type RewardSnapshot struct {
	Asset         string `json:"asset"`
	RatePerSecond string `json:"rate_per_second"`
	PerUnitStored string `json:"per_unit_stored"`
	LastUpdate    uint64 `json:"last_update"`
}

// Snapshot is a serialisable summary of a pool.
type Snapshot struct {
	Address         string           `json:"address"`
	Owner           string           `json:"owner"`
	StakedAsset     string           `json:"staked_asset"`
	TotalStaked     string           `json:"total_staked"`
	CollectedFees   string           `json:"collected_fees"`
	PeriodFinish    uint64           `json:"period_finish"`
	RewardsDuration uint64           `json:"rewards_duration"`
	Permissioned    bool             `json:"permissioned"`
	Rewards         []RewardSnapshot `json:"rewards"`
	CoverageAsset   string           `json:"coverage_asset,omitempty"`
	CoverageReserve string           `json:"coverage_reserve,omitempty"`
}

func (p *Pool) Owner() common.Address           { return p.owner }
func (p *Pool) StakedAsset() common.Address     { return p.stakedAsset }
func (p *Pool) CoverageAsset() common.Address   { return p.coverageAsset }
func (p *Pool) OracleAddress() common.Address   { return p.oracleAddress }
func (p *Pool) Permissioned() bool              { return p.permissioned }
func (p *Pool) DepositFeeBps() uint64           { return p.depositFeeBps }
func (p *Pool) PeriodFinish() uint64            { return p.periodFinish }
func (p *Pool) RewardsDuration() uint64         { return p.rewardsDuration }
func (p *Pool) CoverageVestingDuration() uint64 { return p.coverageDuration }

func (p *Pool) BalanceOf(account common.Address) *big.Int { return p.balanceOf(account) }
func (p *Pool) TotalStaked() *big.Int                     { return new(big.Int).Set(p.totalStaked) }
func (p *Pool) CollectedFees() *big.Int                   { return new(big.Int).Set(p.collectedFees) }
func (p *Pool) CoverageAmount() *big.Int                  { return new(big.Int).Set(p.coverageAmount) }
func (p *Pool) CoverageReserve() *big.Int                 { return new(big.Int).Set(p.coverageReserve) }

// WithdrawalFees returns a copy of the withdrawal fee schedule.
func (p *Pool) WithdrawalFees() FeeSchedule {
	return append(FeeSchedule(nil), p.fees...)
}

// LastTimeRewardApplicable is min(now, periodFinish).
func (p *Pool) LastTimeRewardApplicable() uint64 {
	return p.lastTimeRewardApplicable()
}

// RewardAssets returns the reward assets in configuration order.
func (p *Pool) RewardAssets() []common.Address {
	return append([]common.Address(nil), p.rewardAssets...)
}

func (p *Pool) IsRewardAsset(reward common.Address) bool {
	_, ok := p.rewards[reward]
	return ok
}

// IsPermitted reports whether account may stake. Every account may stake
// on an open pool.
func (p *Pool) IsPermitted(account common.Address) bool {
	return !p.permissioned || p.permitted[account]
}

// RewardRate returns the emission of reward per second in base units.
func (p *Pool) RewardRate(reward common.Address) (*big.Int, error) {
	rs, err := p.reward(reward)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Quo(rs.rate, Scale), nil
}

// RewardPerUnit returns the accrual index of reward, scaled by Scale.
func (p *Pool) RewardPerUnit(reward common.Address) (*big.Int, error) {
	if _, err := p.reward(reward); err != nil {
		return nil, err
	}
	return p.rewardPerUnit(reward), nil
}

// Earned returns the reward account could claim now.
func (p *Pool) Earned(reward, account common.Address) (*big.Int, error) {
	if _, err := p.reward(reward); err != nil {
		return nil, err
	}
	return p.earned(reward, account), nil
}

// AccruedReward returns the reward settled at account's last checkpoint.
func (p *Pool) AccruedReward(reward, account common.Address) *big.Int {
	return orZero(p.accrued[rewardKey{asset: reward, account: account}])
}

// RewardPerUnitPaid returns the index at account's last checkpoint.
func (p *Pool) RewardPerUnitPaid(reward, account common.Address) *big.Int {
	return orZero(p.perUnitPaid[rewardKey{asset: reward, account: account}])
}

// WithdrawalFee quotes the fee withdraw would charge on amount right now.
func (p *Pool) WithdrawalFee(account common.Address, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, faults.InvalidInput("amount must be non-negative")
	}
	return p.withdrawalFee(account, amount), nil
}

// Snapshot summarises the pool.
func (p *Pool) Snapshot() Snapshot {
	out := Snapshot{
		Address:         p.address.Hex(),
		Owner:           p.owner.Hex(),
		StakedAsset:     p.stakedAsset.Hex(),
		TotalStaked:     p.totalStaked.String(),
		CollectedFees:   p.collectedFees.String(),
		PeriodFinish:    p.periodFinish,
		RewardsDuration: p.rewardsDuration,
		Permissioned:    p.permissioned,
	}
	for _, reward := range p.rewardAssets {
		rs := p.rewards[reward]
		out.Rewards = append(out.Rewards, RewardSnapshot{
			Asset:         reward.Hex(),
			RatePerSecond: new(big.Int).Quo(rs.rate, Scale).String(),
			PerUnitStored: p.rewardPerUnit(reward).String(),
			LastUpdate:    rs.lastUpdate,
		})
	}
	if p.coverageEnabled() {
		out.CoverageAsset = p.coverageAsset.Hex()
		out.CoverageReserve = p.coverageReserve.String()
	}
	return out
}

func (p *Pool) reward(reward common.Address) (*rewardState, error) {
	rs, ok := p.rewards[reward]
	if !ok {
		return nil, faults.InvalidInput("%s is not a reward asset", reward.Hex())
	}
	return rs, nil
}

// Record returns the registry record of the pool.
func (p *Pool) Record(chainID uint64, creator common.Address) model.Farm {
	out := model.Farm{
		ChainID:               chainID,
		Address:               p.address.Hex(),
		Creator:               creator.Hex(),
		Owner:                 p.owner.Hex(),
		StakedAsset:           p.stakedAsset.Hex(),
		DepositFeeBps:         p.depositFeeBps,
		WithdrawalFeesBps:     p.fees.Fees(),
		WithdrawalFeeSchedule: p.fees.Thresholds(),
		Permissioned:          p.permissioned,
	}
	for _, reward := range p.rewardAssets {
		out.RewardAssets = append(out.RewardAssets, reward.Hex())
	}
	if p.coverageEnabled() {
		out.CoverageAsset = p.coverageAsset.Hex()
		out.CoverageAmount = p.coverageAmount.String()
		out.CoverageVestingDuration = p.coverageDuration
	}
	return out
}
