package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"farmScope/internal/farmabi"
	"farmScope/internal/model"
)

// Accumulator holds aggregate values for a farm window.
type Accumulator struct {
	ChainID          uint64
	FarmAddress      string
	FarmMeta         model.FarmMeta
	WindowStart      uint64
	WindowEnd        uint64
	StakeCount       uint64
	WithdrawCount    uint64
	Staked           *big.Int
	Withdrawn        *big.Int
	RewardsPaid      map[string]*big.Int
	RewardClaims     uint64
	FeesRecovered    *big.Int
	EmissionsStarted uint64
	EmissionsEnded   uint64
	LastBlock        uint64
	LastTS           uint64
	FirstBlock       uint64
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:       record.ChainID,
		FarmAddress:   record.Address,
		FarmMeta:      record.FarmMeta,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		Staked:        big.NewInt(0),
		Withdrawn:     big.NewInt(0),
		RewardsPaid:   make(map[string]*big.Int),
		FeesRecovered: big.NewInt(0),
		LastBlock:     record.BlockNumber,
		LastTS:        record.Timestamp,
		FirstBlock:    record.BlockNumber,
	}
}

func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.LastBlock = record.BlockNumber
	}
	if a.FirstBlock == 0 || record.BlockNumber < a.FirstBlock {
		a.FirstBlock = record.BlockNumber
	}
	if a.FarmMeta.StakedAsset == "" && record.FarmMeta.StakedAsset != "" {
		a.FarmMeta = record.FarmMeta
	}

	switch record.EventName {
	case farmabi.EventStaked:
		var ev model.StakedEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode staked: %w", err)
		}
		amount, err := parseBigInt(ev.Amount)
		if err != nil {
			return err
		}
		a.Staked.Add(a.Staked, amount)
		a.StakeCount++
	case farmabi.EventWithdrawn:
		var ev model.WithdrawnEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode withdrawn: %w", err)
		}
		amount, err := parseBigInt(ev.Amount)
		if err != nil {
			return err
		}
		a.Withdrawn.Add(a.Withdrawn, amount)
		a.WithdrawCount++
	case farmabi.EventRewardPaid:
		var ev model.RewardPaidEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode reward paid: %w", err)
		}
		amount, err := parseBigInt(ev.Reward)
		if err != nil {
			return err
		}
		key := tokenKey(ev.Token)
		total := a.RewardsPaid[key]
		if total == nil {
			total = big.NewInt(0)
			a.RewardsPaid[key] = total
		}
		total.Add(total, amount)
		a.RewardClaims++
	case farmabi.EventFeesRecovered:
		var ev model.FeesRecoveredEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode fees recovered: %w", err)
		}
		amount, err := parseBigInt(ev.Amount)
		if err != nil {
			return err
		}
		a.FeesRecovered.Add(a.FeesRecovered, amount)
	case farmabi.EventRewardsEmissionStarted:
		a.EmissionsStarted++
	case farmabi.EventRewardsEmissionEnded:
		a.EmissionsEnded++
	}
	return nil
}

// NetFlow is staked minus withdrawn for the window.
func (a *Accumulator) NetFlow() *big.Int {
	return new(big.Int).Sub(a.Staked, a.Withdrawn)
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

func tokenKey(address string) string {
	return strings.ToLower(address)
}
