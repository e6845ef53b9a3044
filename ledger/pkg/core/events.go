package core

// Events are delivered synchronously to the Notify hook while the ledger
// lock is held, so handlers observe them in commit order. Handlers must not
// call back into the ledger.

// FundingCompleted is emitted when a contribution pushes an experiment to
// its funding goal.
type FundingCompleted struct {
	ExperimentID  uint64 `json:"experiment_id"`
	FundingRaised int64  `json:"funding_raised"`
}

// ContributionRefunded is emitted when a contributor's balance is returned
// after a failed campaign.
type ContributionRefunded struct {
	ExperimentID uint64 `json:"experiment_id"`
	Contributor  string `json:"contributor"`
	Amount       int64  `json:"amount"`
}

// FundingProcessed is emitted when a successfully funded experiment is
// settled.
type FundingProcessed struct {
	ExperimentID uint64 `json:"experiment_id"`
	Fee          int64  `json:"fee"`
	Invested     int64  `json:"invested"`
}

// YieldRecorded is emitted when yield is recorded against the platform
// reserve.
type YieldRecorded struct {
	Amount int64 `json:"amount"`
}

// ProfitDistributed is emitted by a quarterly distribution with the three
// computed shares.
type ProfitDistributed struct {
	ResearcherAmount int64 `json:"researcher_amount"`
	SponsorAmount    int64 `json:"sponsor_amount"`
	PlatformAmount   int64 `json:"platform_amount"`
}

// MilestoneProgressUpdated is emitted when a milestone's progress changes.
type MilestoneProgressUpdated struct {
	MilestoneID string `json:"milestone_id"`
	Progress    int    `json:"progress"`
}

// DatasetCited is emitted when a dataset receives a new citation.
type DatasetCited struct {
	ExperimentID uint64 `json:"experiment_id"`
	DatasetID    uint64 `json:"dataset_id"`
	CitationID   uint64 `json:"citation_id"`
	Citer        string `json:"citer"`
}
