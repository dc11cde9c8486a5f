package model

// Farm is the registry record of one reward pool, as persisted by the
// simulate and aggregate commands.
type Farm struct {
	ChainID                 uint64   `json:"chain_id"`
	Address                 string   `json:"address"`
	Creator                 string   `json:"creator"`
	Owner                   string   `json:"owner"`
	StakedAsset             string   `json:"staked_asset"`
	RewardAssets            []string `json:"reward_assets"`
	CoverageAsset           string   `json:"coverage_asset,omitempty"`
	CoverageAmount          string   `json:"coverage_amount,omitempty"`
	CoverageVestingDuration uint64   `json:"coverage_vesting_duration,omitempty"`
	DepositFeeBps           uint64   `json:"deposit_fee_bps"`
	WithdrawalFeesBps       []uint64 `json:"withdrawal_fees_bps"`
	WithdrawalFeeSchedule   []uint64 `json:"withdrawal_fee_schedule"`
	Permissioned            bool     `json:"permissioned"`
	FirstSeenBlock          uint64   `json:"first_seen_block"`
}

// FarmMeta is the subset of farm metadata attached to decoded events.
type FarmMeta struct {
	StakedAsset  string   `json:"staked_asset"`
	RewardAssets []string `json:"reward_assets"`
}

// Meta returns the event metadata view of the farm.
func (f Farm) Meta() FarmMeta {
	return FarmMeta{StakedAsset: f.StakedAsset, RewardAssets: f.RewardAssets}
}
