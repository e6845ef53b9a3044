// Package core implements the ledger-and-governance component of the
// platform: the experiment registry, the crowdfunding ledger, the financial
// policy engine and the milestone tracker, behind a single lock so that
// every mutating operation is atomic.
package core

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	// Owner is the platform owner address. It is granted the project
	// manager role at construction so milestone gating stays a single
	// manager check.
	Owner  string
	Policy FinancialPolicy
	// Notify, when set, receives every emitted event synchronously in
	// commit order.
	Notify func(event any)
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Owner == "" {
		return errors.New("owner address is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Policy == (FinancialPolicy{}) {
		cfg.Policy = DefaultFinancialPolicy()
	}
	if err := cfg.Policy.Validate(); err != nil {
		return err
	}
	return nil
}

// Ledger owns all platform state. Mutating operations take the single lock
// for their whole read-modify-write sequence; there are no partial effects
// observable to concurrent callers.
type Ledger struct {
	log   *slog.Logger
	cfg   Config
	clock clockwork.Clock

	mu               sync.Mutex
	nextExperimentID uint64
	experiments      map[uint64]*Experiment
	contributions    map[uint64]map[string]int64
	researcherFunds  map[string]int64
	datasets         map[uint64][]*Dataset
	stats            FinancialStats
	transactions     []FinancialTransaction
	milestones       map[string]*Milestone
	milestoneData    map[string][]MilestoneDataRecord
	managers         map[string]bool
}

func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Ledger{
		log:              cfg.Logger,
		cfg:              cfg,
		clock:            cfg.Clock,
		nextExperimentID: 1,
		experiments:      make(map[uint64]*Experiment),
		contributions:    make(map[uint64]map[string]int64),
		researcherFunds:  make(map[string]int64),
		datasets:         make(map[uint64][]*Dataset),
		milestones:       make(map[string]*Milestone),
		milestoneData:    make(map[string][]MilestoneDataRecord),
		managers:         map[string]bool{cfg.Owner: true},
	}
	return l, nil
}

// Owner returns the platform owner address.
func (l *Ledger) Owner() string {
	return l.cfg.Owner
}

func (l *Ledger) notify(event any) {
	if l.cfg.Notify != nil {
		l.cfg.Notify(event)
	}
}
