package core

import (
	"fmt"
	"sort"
	"time"
)

// CreateExperiment registers a new crowdfunding campaign owned by the
// caller and returns its id. Ids are assigned monotonically starting at 1.
func (l *Ledger) CreateExperiment(caller, title, description string, fundingGoal int64, durationDays int) (uint64, error) {
	if caller == "" {
		return 0, fmt.Errorf("caller address is required: %w", ErrInvalidArgument)
	}
	if title == "" {
		return 0, fmt.Errorf("title is required: %w", ErrInvalidArgument)
	}
	if fundingGoal <= 0 {
		return 0, fmt.Errorf("funding goal must be positive, got %d: %w", fundingGoal, ErrInvalidArgument)
	}
	if durationDays <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %d days: %w", durationDays, ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now().UTC()
	id := l.nextExperimentID
	l.nextExperimentID++

	l.experiments[id] = &Experiment{
		ID:          id,
		Title:       title,
		Description: description,
		Owner:       caller,
		FundingGoal: fundingGoal,
		Deadline:    now.Add(time.Duration(durationDays) * 24 * time.Hour),
		CreatedAt:   now,
	}
	l.contributions[id] = make(map[string]int64)

	l.log.Debug("core: created experiment", "id", id, "owner", caller, "goal", fundingGoal, "duration_days", durationDays)
	return id, nil
}

// GetExperiment returns a copy of the experiment, or ErrNotFound for an
// unknown id.
func (l *Ledger) GetExperiment(id uint64) (Experiment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.experiments[id]
	if !ok {
		return Experiment{}, fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}
	return *exp, nil
}

// ListExperiments returns all experiments ordered by id.
func (l *Ledger) ListExperiments() []Experiment {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Experiment, 0, len(l.experiments))
	for _, exp := range l.experiments {
		out = append(out, *exp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
