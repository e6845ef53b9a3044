package core

import "fmt"

// FundExperiment records a contribution from the caller. Contributions
// after the deadline are rejected unless the goal was already reached
// (overfunding a completed campaign stays open, matching the absence of an
// upper bound). Reaching the goal marks the campaign complete and emits
// FundingCompleted.
func (l *Ledger) FundExperiment(caller string, id uint64, amount int64) error {
	if caller == "" {
		return fmt.Errorf("caller address is required: %w", ErrInvalidArgument)
	}
	if amount <= 0 {
		return fmt.Errorf("contribution must be positive, got %d: %w", amount, ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.experiments[id]
	if !ok {
		return fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}
	if !exp.FundingComplete && l.clock.Now().After(exp.Deadline) {
		return fmt.Errorf("experiment %d deadline passed: %w", id, ErrExpired)
	}

	l.contributions[id][caller] += amount
	exp.FundingRaised += amount

	l.log.Debug("core: contribution recorded", "experiment", id, "contributor", caller, "amount", amount, "raised", exp.FundingRaised)

	if !exp.FundingComplete && exp.FundingRaised >= exp.FundingGoal {
		exp.FundingComplete = true
		l.log.Info("core: funding goal reached", "experiment", id, "raised", exp.FundingRaised, "goal", exp.FundingGoal)
		l.notify(FundingCompleted{ExperimentID: id, FundingRaised: exp.FundingRaised})
	}
	return nil
}

// RefundContributions returns the caller's full recorded contribution for a
// failed campaign: past its deadline with the goal unmet. The balance is
// zeroed before the refund is surfaced, so a re-entering caller sees
// nothing left to claim.
func (l *Ledger) RefundContributions(caller string, id uint64) (int64, error) {
	if caller == "" {
		return 0, fmt.Errorf("caller address is required: %w", ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.experiments[id]
	if !ok {
		return 0, fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}
	if exp.FundingComplete || exp.FundingRaised >= exp.FundingGoal {
		return 0, fmt.Errorf("experiment %d funding goal met, refund unavailable: %w", id, ErrPolicyViolation)
	}
	if !l.clock.Now().After(exp.Deadline) {
		return 0, fmt.Errorf("experiment %d funding window still open: %w", id, ErrPolicyViolation)
	}

	amount := l.contributions[id][caller]
	if amount == 0 {
		return 0, fmt.Errorf("no contribution recorded for %s on experiment %d: %w", caller, id, ErrNotFound)
	}

	// Zero the balance before announcing the refund.
	delete(l.contributions[id], caller)
	exp.FundingRaised -= amount

	l.log.Info("core: contribution refunded", "experiment", id, "contributor", caller, "amount", amount)
	l.notify(ContributionRefunded{ExperimentID: id, Contributor: caller, Amount: amount})
	return amount, nil
}

// ProcessFundingSuccess settles a completed campaign: the platform fee goes
// to the reserve, the remainder to invested funds and the researcher's
// withdrawable balance, and two transaction log entries are appended.
// Callable by the platform owner, a project manager or the experiment's
// researcher; a second settlement fails with ErrAlreadyProcessed.
func (l *Ledger) ProcessFundingSuccess(caller string, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.experiments[id]
	if !ok {
		return fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}
	if !l.managers[caller] && caller != exp.Owner {
		return fmt.Errorf("caller %s may not settle experiment %d: %w", caller, id, ErrUnauthorized)
	}
	if !exp.FundingComplete {
		return fmt.Errorf("experiment %d funding goal not reached: %w", id, ErrPolicyViolation)
	}
	if exp.Processed {
		return fmt.Errorf("experiment %d: %w", id, ErrAlreadyProcessed)
	}

	fee := exp.FundingRaised * l.cfg.Policy.PlatformFeePercent / 100
	invested := exp.FundingRaised - fee

	// Mark processed before crediting anything out.
	exp.Processed = true
	l.stats.Reserve += fee
	l.stats.InvestedFunds += invested
	l.researcherFunds[exp.Owner] += invested

	related := fmt.Sprintf("experiment:%d", id)
	l.appendTransaction(TransactionFee, fee, related)
	l.appendTransaction(TransactionInvestment, invested, related)

	l.log.Info("core: funding processed", "experiment", id, "fee", fee, "invested", invested)
	l.notify(FundingProcessed{ExperimentID: id, Fee: fee, Invested: invested})
	return nil
}

// Contribution returns the amount the contributor has committed to the
// experiment.
func (l *Ledger) Contribution(id uint64, contributor string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.experiments[id]; !ok {
		return 0, fmt.Errorf("experiment %d: %w", id, ErrNotFound)
	}
	return l.contributions[id][contributor], nil
}

// ResearcherFunds returns the researcher's withdrawable balance accumulated
// from settled campaigns.
func (l *Ledger) ResearcherFunds(address string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.researcherFunds[address]
}
