package core

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Amounts are integer base units. All fee and share arithmetic is integer
// division, truncating toward zero.

// Experiment represents a crowdfunding campaign for a research project.
type Experiment struct {
	ID              uint64    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Owner           string    `json:"owner"`
	FundingGoal     int64     `json:"funding_goal"`
	FundingRaised   int64     `json:"funding_raised"`
	Deadline        time.Time `json:"deadline"`
	FundingComplete bool      `json:"funding_complete"`
	Processed       bool      `json:"processed"`
	CreatedAt       time.Time `json:"created_at"`
}

// FinancialPolicy holds the platform's fixed percentage constants. Set at
// construction, immutable thereafter.
type FinancialPolicy struct {
	PlatformFeePercent    int64 `json:"platform_fee_percent"`
	ResearcherProfitShare int64 `json:"researcher_profit_share"`
	SponsorProfitShare    int64 `json:"sponsor_profit_share"`
	PlatformReserveShare  int64 `json:"platform_reserve_share"`
}

// DefaultFinancialPolicy returns the platform policy: 5% fee on successful
// campaigns, quarterly yield split 70/20/10 between researchers, sponsors
// and the platform reserve.
func DefaultFinancialPolicy() FinancialPolicy {
	return FinancialPolicy{
		PlatformFeePercent:    5,
		ResearcherProfitShare: 70,
		SponsorProfitShare:    20,
		PlatformReserveShare:  10,
	}
}

func (p FinancialPolicy) Validate() error {
	if p.PlatformFeePercent < 0 || p.PlatformFeePercent > 100 {
		return errors.New("platform fee percent must be within [0,100]")
	}
	if p.ResearcherProfitShare+p.SponsorProfitShare+p.PlatformReserveShare != 100 {
		return errors.New("profit shares must sum to 100")
	}
	return nil
}

// FinancialStats is the running financial state of the platform.
type FinancialStats struct {
	Reserve       int64 `json:"reserve"`
	InvestedFunds int64 `json:"invested_funds"`
	CurrentYield  int64 `json:"current_yield"`
}

// Transaction log entry types.
const (
	TransactionFee          = "fee"
	TransactionInvestment   = "investment"
	TransactionYield        = "yield"
	TransactionDistribution = "distribution"
)

// FinancialTransaction is an append-only transaction log entry. Entries are
// never mutated or deleted after creation.
type FinancialTransaction struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	RelatedID string    `json:"related_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// KPI is a quantitative sub-metric of milestone completion. Its position in
// the milestone's KPI list is its identity.
type KPI struct {
	Metric  string `json:"metric"`
	Target  int64  `json:"target"`
	Current int64  `json:"current"`
}

// Milestone is a named unit of project progress. Exists=false is the
// sentinel for "not yet created" returned by lookups instead of an error.
type Milestone struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PhaseID         string `json:"phase_id"`
	TargetProgress  int    `json:"target_progress"`
	CurrentProgress int    `json:"current_progress"`
	KPIs            []KPI  `json:"kpis"`
	Exists          bool   `json:"exists"`
}

// MilestoneDataRecord is an append-only evidence record attached to a
// milestone. The data URI is an opaque content hash; the ledger never
// parses it.
type MilestoneDataRecord struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	DataURI   string    `json:"data_uri"`
	Timestamp time.Time `json:"timestamp"`
	Uploader  string    `json:"uploader"`
}

// Citation records one citation of a dataset.
type Citation struct {
	ID      uint64    `json:"id"`
	Citer   string    `json:"citer"`
	Context string    `json:"context"`
	CitedAt time.Time `json:"cited_at"`
}

// Dataset is research data attached to an experiment. MetadataHash is an
// opaque content-addressed reference.
type Dataset struct {
	ID           uint64     `json:"id"`
	ExperimentID uint64     `json:"experiment_id"`
	Name         string     `json:"name"`
	MetadataHash string     `json:"metadata_hash"`
	Creator      string     `json:"creator"`
	CreatedAt    time.Time  `json:"created_at"`
	IsNFT        bool       `json:"is_nft"`
	Citations    []Citation `json:"citations"`
}
