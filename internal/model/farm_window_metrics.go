package model

import "time"

// FarmWindowMetrics stores aggregated activity for a farm over one window.
type FarmWindowMetrics struct {
	ChainID          uint64
	FarmAddress      string
	StakedAsset      string
	WindowSizeSecs   int64
	WindowStart      time.Time
	WindowEnd        time.Time
	StakeCount       uint64
	WithdrawCount    uint64
	Staked           string
	Withdrawn        string
	NetFlow          string
	RewardsPaid      map[string]string
	RewardClaims     uint64
	FeesRecovered    string
	EmissionsStarted uint64
	EmissionsEnded   uint64

	// TotalStaked is the farm totalSupply at the last block of the window,
	// nil when no chain client is configured.
	TotalStaked       *string
	TotalStakedMethod string
}
