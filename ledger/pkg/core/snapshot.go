package core

import "errors"

// Snapshot is a deep copy of the ledger's whole state, taken under the
// lock so it is always internally consistent. The store persists it as a
// single document and feeds it back through Restore at startup.
type Snapshot struct {
	NextExperimentID uint64                           `json:"next_experiment_id"`
	Experiments      map[uint64]Experiment            `json:"experiments"`
	Contributions    map[uint64]map[string]int64      `json:"contributions"`
	ResearcherFunds  map[string]int64                 `json:"researcher_funds"`
	Datasets         map[uint64][]Dataset             `json:"datasets"`
	Stats            FinancialStats                   `json:"stats"`
	Transactions     []FinancialTransaction           `json:"transactions"`
	Milestones       map[string]Milestone             `json:"milestones"`
	MilestoneData    map[string][]MilestoneDataRecord `json:"milestone_data"`
	Managers         map[string]bool                  `json:"managers"`
}

// Snapshot returns a consistent deep copy of the ledger state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		NextExperimentID: l.nextExperimentID,
		Experiments:      make(map[uint64]Experiment, len(l.experiments)),
		Contributions:    make(map[uint64]map[string]int64, len(l.contributions)),
		ResearcherFunds:  make(map[string]int64, len(l.researcherFunds)),
		Datasets:         make(map[uint64][]Dataset, len(l.datasets)),
		Stats:            l.stats,
		Transactions:     make([]FinancialTransaction, len(l.transactions)),
		Milestones:       make(map[string]Milestone, len(l.milestones)),
		MilestoneData:    make(map[string][]MilestoneDataRecord, len(l.milestoneData)),
		Managers:         make(map[string]bool, len(l.managers)),
	}

	for id, exp := range l.experiments {
		snap.Experiments[id] = *exp
	}
	for id, byAddr := range l.contributions {
		m := make(map[string]int64, len(byAddr))
		for addr, amount := range byAddr {
			m[addr] = amount
		}
		snap.Contributions[id] = m
	}
	for addr, amount := range l.researcherFunds {
		snap.ResearcherFunds[addr] = amount
	}
	for id, sets := range l.datasets {
		out := make([]Dataset, len(sets))
		for i, ds := range sets {
			out[i] = *ds
			out[i].Citations = make([]Citation, len(ds.Citations))
			copy(out[i].Citations, ds.Citations)
		}
		snap.Datasets[id] = out
	}
	copy(snap.Transactions, l.transactions)
	for id, ms := range l.milestones {
		m := *ms
		m.KPIs = make([]KPI, len(ms.KPIs))
		copy(m.KPIs, ms.KPIs)
		snap.Milestones[id] = m
	}
	for id, records := range l.milestoneData {
		out := make([]MilestoneDataRecord, len(records))
		copy(out, records)
		snap.MilestoneData[id] = out
	}
	for addr := range l.managers {
		snap.Managers[addr] = true
	}
	return snap
}

// Restore replaces the ledger state with a previously taken snapshot. It is
// meant for startup, before the ledger is serving callers.
func (l *Ledger) Restore(snap Snapshot) error {
	if snap.NextExperimentID == 0 {
		return errors.New("snapshot next experiment id must be positive")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextExperimentID = snap.NextExperimentID
	l.experiments = make(map[uint64]*Experiment, len(snap.Experiments))
	for id, exp := range snap.Experiments {
		e := exp
		l.experiments[id] = &e
	}
	l.contributions = make(map[uint64]map[string]int64, len(snap.Contributions))
	for id, byAddr := range snap.Contributions {
		m := make(map[string]int64, len(byAddr))
		for addr, amount := range byAddr {
			m[addr] = amount
		}
		l.contributions[id] = m
	}
	// Experiments restored before contributions existed get empty maps.
	for id := range l.experiments {
		if l.contributions[id] == nil {
			l.contributions[id] = make(map[string]int64)
		}
	}
	l.researcherFunds = make(map[string]int64, len(snap.ResearcherFunds))
	for addr, amount := range snap.ResearcherFunds {
		l.researcherFunds[addr] = amount
	}
	l.datasets = make(map[uint64][]*Dataset, len(snap.Datasets))
	for id, sets := range snap.Datasets {
		out := make([]*Dataset, len(sets))
		for i := range sets {
			ds := sets[i]
			ds.Citations = append([]Citation(nil), sets[i].Citations...)
			out[i] = &ds
		}
		l.datasets[id] = out
	}
	l.transactions = append([]FinancialTransaction(nil), snap.Transactions...)
	l.milestones = make(map[string]*Milestone, len(snap.Milestones))
	for id, ms := range snap.Milestones {
		m := ms
		m.KPIs = append([]KPI(nil), ms.KPIs...)
		l.milestones[id] = &m
	}
	l.milestoneData = make(map[string][]MilestoneDataRecord, len(snap.MilestoneData))
	for id, records := range snap.MilestoneData {
		l.milestoneData[id] = append([]MilestoneDataRecord(nil), records...)
	}
	l.managers = make(map[string]bool, len(snap.Managers))
	for addr := range snap.Managers {
		l.managers[addr] = true
	}
	l.managers[l.cfg.Owner] = true
	l.stats = snap.Stats
	return nil
}
