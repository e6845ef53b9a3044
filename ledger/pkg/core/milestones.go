package core

import (
	"fmt"

	"github.com/google/uuid"
)

// CreateMilestone registers a named milestone under a phase. Manager-gated.
// KPI current values start at zero regardless of what the caller supplies.
func (l *Ledger) CreateMilestone(caller, id, name string, targetProgress int, kpis []KPI, phaseID string) error {
	if id == "" {
		return fmt.Errorf("milestone id is required: %w", ErrInvalidArgument)
	}
	if name == "" {
		return fmt.Errorf("milestone name is required: %w", ErrInvalidArgument)
	}
	if targetProgress < 0 || targetProgress > 100 {
		return fmt.Errorf("target progress %d outside [0,100]: %w", targetProgress, ErrInvalidArgument)
	}
	for i, kpi := range kpis {
		if kpi.Metric == "" {
			return fmt.Errorf("kpi %d metric is required: %w", i, ErrInvalidArgument)
		}
		if kpi.Target < 0 {
			return fmt.Errorf("kpi %d target must not be negative: %w", i, ErrInvalidArgument)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireManager(caller); err != nil {
		return err
	}
	if _, ok := l.milestones[id]; ok {
		return fmt.Errorf("milestone %s: %w", id, ErrAlreadyExists)
	}

	ms := &Milestone{
		ID:             id,
		Name:           name,
		PhaseID:        phaseID,
		TargetProgress: targetProgress,
		KPIs:           make([]KPI, len(kpis)),
		Exists:         true,
	}
	for i, kpi := range kpis {
		ms.KPIs[i] = KPI{Metric: kpi.Metric, Target: kpi.Target}
	}
	l.milestones[id] = ms

	l.log.Debug("core: created milestone", "id", id, "phase", phaseID, "target", targetProgress, "kpis", len(kpis))
	return nil
}

// UpdateMilestoneProgress sets a milestone's current progress and emits
// MilestoneProgressUpdated. Manager-gated; progress outside [0,100] is
// rejected.
func (l *Ledger) UpdateMilestoneProgress(caller, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress %d outside [0,100]: %w", progress, ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireManager(caller); err != nil {
		return err
	}
	ms, ok := l.milestones[id]
	if !ok {
		return fmt.Errorf("milestone %s: %w", id, ErrNotFound)
	}

	ms.CurrentProgress = progress
	l.log.Debug("core: milestone progress updated", "id", id, "progress", progress)
	l.notify(MilestoneProgressUpdated{MilestoneID: id, Progress: progress})
	return nil
}

// UpdateMilestoneKPI sets the current value of the KPI at the given index.
// Manager-gated. Negative values are rejected; values above the KPI target
// are clamped to the target rather than trusted from the caller.
func (l *Ledger) UpdateMilestoneKPI(caller, id string, kpiIndex int, value int64) error {
	if value < 0 {
		return fmt.Errorf("kpi value must not be negative, got %d: %w", value, ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireManager(caller); err != nil {
		return err
	}
	ms, ok := l.milestones[id]
	if !ok {
		return fmt.Errorf("milestone %s: %w", id, ErrNotFound)
	}
	if kpiIndex < 0 || kpiIndex >= len(ms.KPIs) {
		return fmt.Errorf("kpi index %d for milestone %s with %d kpis: %w", kpiIndex, id, len(ms.KPIs), ErrIndexOutOfRange)
	}

	if value > ms.KPIs[kpiIndex].Target {
		value = ms.KPIs[kpiIndex].Target
	}
	ms.KPIs[kpiIndex].Current = value

	l.log.Debug("core: milestone kpi updated", "id", id, "kpi", kpiIndex, "value", value)
	return nil
}

// GetMilestone returns a copy of the milestone. Unknown ids return the
// Exists=false sentinel rather than an error, letting callers distinguish
// "not yet created" from a fault.
func (l *Ledger) GetMilestone(id string) Milestone {
	l.mu.Lock()
	defer l.mu.Unlock()

	ms, ok := l.milestones[id]
	if !ok {
		return Milestone{ID: id}
	}
	out := *ms
	out.KPIs = make([]KPI, len(ms.KPIs))
	copy(out.KPIs, ms.KPIs)
	return out
}

// PhaseProgress derives a phase's progress as the mean of its milestones'
// current progress, floored to an integer. A phase with no milestones
// reports zero.
func (l *Ledger) PhaseProgress(phaseID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sum, count int
	for _, ms := range l.milestones {
		if ms.PhaseID == phaseID {
			sum += ms.CurrentProgress
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

// UploadMilestoneData appends an evidence record to a milestone. The data
// URI is stored opaquely. Manager-gated.
func (l *Ledger) UploadMilestoneData(caller, milestoneID, title, dataURI string) (MilestoneDataRecord, error) {
	if dataURI == "" {
		return MilestoneDataRecord{}, fmt.Errorf("data uri is required: %w", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireManager(caller); err != nil {
		return MilestoneDataRecord{}, err
	}
	if _, ok := l.milestones[milestoneID]; !ok {
		return MilestoneDataRecord{}, fmt.Errorf("milestone %s: %w", milestoneID, ErrNotFound)
	}

	rec := MilestoneDataRecord{
		ID:        uuid.New(),
		Title:     title,
		DataURI:   dataURI,
		Timestamp: l.clock.Now().UTC(),
		Uploader:  caller,
	}
	l.milestoneData[milestoneID] = append(l.milestoneData[milestoneID], rec)

	l.log.Debug("core: milestone data uploaded", "milestone", milestoneID, "record", rec.ID)
	return rec, nil
}

// MilestoneData returns the milestone's evidence records in upload order.
// Public read.
func (l *Ledger) MilestoneData(milestoneID string) ([]MilestoneDataRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.milestones[milestoneID]; !ok {
		return nil, fmt.Errorf("milestone %s: %w", milestoneID, ErrNotFound)
	}
	records := l.milestoneData[milestoneID]
	out := make([]MilestoneDataRecord, len(records))
	copy(out, records)
	return out, nil
}
