package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmScope/internal/faults"
	"farmScope/internal/oracle"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000
	// MaxFeeBps caps deposit and withdrawal fees.
	MaxFeeBps = BpsDenominator
)

// Scale is the fixed-point precision of accrual indices and reward rates.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Config is the immutable configuration of a pool.
type Config struct {
	Address         common.Address
	Owner           common.Address
	StakedAsset     common.Address
	RewardAssets    []common.Address
	RewardsDuration uint64
	DepositFeeBps   uint64
	WithdrawalFees  FeeSchedule
	Permissioned    bool

	// Coverage is enabled when CoverageAsset is non-zero.
	CoverageAsset           common.Address
	CoverageAmount          *big.Int
	CoverageVestingDuration uint64
	Oracle                  oracle.Oracle
	OracleAddress           common.Address
}

// CoverageEnabled reports whether the pool offers coverage.
func (c Config) CoverageEnabled() bool {
	return c.CoverageAsset != (common.Address{})
}

// Validate checks the configuration a pool can be built from.
func (c Config) Validate() error {
	if c.StakedAsset == (common.Address{}) {
		return faults.InvalidInput("staked asset is required")
	}
	seen := make(map[common.Address]struct{}, len(c.RewardAssets))
	for _, reward := range c.RewardAssets {
		if reward == (common.Address{}) {
			return faults.InvalidInput("reward asset cannot be the zero address")
		}
		if _, dup := seen[reward]; dup {
			return faults.InvalidInput("duplicate reward asset %s", reward.Hex())
		}
		seen[reward] = struct{}{}
	}
	if c.DepositFeeBps > MaxFeeBps {
		return faults.InvalidInput("deposit fee %d bps exceeds %d", c.DepositFeeBps, MaxFeeBps)
	}
	if err := c.WithdrawalFees.Validate(); err != nil {
		return err
	}
	if c.CoverageEnabled() {
		if c.Oracle == nil {
			return faults.InvalidInput("coverage requires an oracle")
		}
		if c.CoverageAmount != nil && c.CoverageAmount.Sign() < 0 {
			return faults.InvalidInput("coverage amount must be non-negative")
		}
	}
	return nil
}

// FeeTier charges FeeBps on withdrawals made before Elapsed seconds have
// passed since the account's last deposit.
type FeeTier struct {
	Elapsed uint64 `json:"elapsed" yaml:"elapsed"`
	FeeBps  uint64 `json:"fee_bps" yaml:"fee_bps"`
}

// FeeSchedule is ordered by strictly ascending Elapsed with non-increasing
// fees ending at zero.
type FeeSchedule []FeeTier

// NewFeeSchedule zips the parallel fee and threshold arrays used by the
// factory interface and validates the result.
func NewFeeSchedule(feesBps, schedule []uint64) (FeeSchedule, error) {
	if len(feesBps) != len(schedule) {
		return nil, faults.InvalidInput("withdrawal fees (%d) and schedule (%d) lengths differ", len(feesBps), len(schedule))
	}
	out := make(FeeSchedule, 0, len(feesBps))
	for i := range feesBps {
		out = append(out, FeeTier{Elapsed: schedule[i], FeeBps: feesBps[i]})
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate enforces ordering and the terminating zero tier. An empty schedule
// means no withdrawal fee.
func (s FeeSchedule) Validate() error {
	for i, tier := range s {
		if tier.FeeBps > MaxFeeBps {
			return faults.InvalidInput("withdrawal fee tier %d: %d bps exceeds %d", i, tier.FeeBps, MaxFeeBps)
		}
		if i == 0 {
			continue
		}
		prev := s[i-1]
		if tier.Elapsed <= prev.Elapsed {
			return faults.InvalidInput("withdrawal fee schedule must be strictly ascending at tier %d", i)
		}
		if tier.FeeBps > prev.FeeBps {
			return faults.InvalidInput("withdrawal fees must not increase at tier %d", i)
		}
	}
	if len(s) > 0 && s[len(s)-1].FeeBps != 0 {
		return faults.InvalidInput("withdrawal fee schedule must end with a zero fee tier")
	}
	return nil
}

// FeeBps returns the fee of the first tier whose threshold has not been
// passed after elapsed seconds.
func (s FeeSchedule) FeeBps(elapsed uint64) uint64 {
	for _, tier := range s {
		if elapsed < tier.Elapsed {
			return tier.FeeBps
		}
	}
	return 0
}

// Fees returns the fee array of the schedule.
func (s FeeSchedule) Fees() []uint64 {
	out := make([]uint64, 0, len(s))
	for _, tier := range s {
		out = append(out, tier.FeeBps)
	}
	return out
}

// Thresholds returns the elapsed-time array of the schedule.
func (s FeeSchedule) Thresholds() []uint64 {
	out := make([]uint64, 0, len(s))
	for _, tier := range s {
		out = append(out, tier.Elapsed)
	}
	return out
}

func mulBps(amount *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, big.NewInt(BpsDenominator))
}
