package model

// Amounts are decimal strings in base units so no precision is lost in JSON.

// ContractCreatedEventData is the decoded factory ContractCreated payload.
type ContractCreatedEventData struct {
	Farm    string `json:"farm"`
	Creator string `json:"creator"`
}

// StakedEventData is the decoded Staked payload; Amount is net of deposit fee.
type StakedEventData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// WithdrawnEventData is the decoded Withdrawn payload; Amount is net of the
// withdrawal fee.
type WithdrawnEventData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// RewardPaidEventData is the decoded RewardPaid payload.
type RewardPaidEventData struct {
	Token  string `json:"token"`
	User   string `json:"user"`
	Reward string `json:"reward"`
}

// EmissionStartedEventData is the decoded RewardsEmissionStarted payload.
type EmissionStartedEventData struct {
	Rewards  []string `json:"rewards"`
	Duration uint64   `json:"duration"`
}

// EmissionEndedEventData is the decoded RewardsEmissionEnded payload.
type EmissionEndedEventData struct{}

// FeesRecoveredEventData is the decoded FeesRecovered payload.
type FeesRecoveredEventData struct {
	Amount string `json:"amount"`
}

// RewardTokenAddedEventData is the decoded RewardTokenAdded payload.
type RewardTokenAddedEventData struct {
	Token string `json:"token"`
}

// AddressPermissionSetEventData is the decoded AddressPermissionSet payload.
type AddressPermissionSetEventData struct {
	Account   string `json:"account"`
	Permitted bool   `json:"permitted"`
}

// CoveragePaidEventData is the decoded CoveragePaid payload.
type CoveragePaidEventData struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

// OwnershipTransferredEventData is the decoded OwnershipTransferred payload.
type OwnershipTransferredEventData struct {
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
}

// OwnershipOverriddenEventData is the decoded factory OwnershipOverridden payload.
type OwnershipOverriddenEventData struct {
	Farm       string `json:"farm"`
	NewCreator string `json:"new_creator"`
}
