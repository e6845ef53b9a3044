package core

import (
	"fmt"

	"github.com/google/uuid"
)

// Policy returns the platform's financial policy constants.
func (l *Ledger) Policy() FinancialPolicy {
	return l.cfg.Policy
}

// Stats returns a copy of the running financial counters.
func (l *Ledger) Stats() FinancialStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// RecordYield adds investment return to the current yield. Owner-gated.
// A "yield" entry is appended to the transaction log at recording time so
// the log reflects yields before they are distributed.
func (l *Ledger) RecordYield(caller string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("yield must be positive, got %d: %w", amount, ErrInvalidArgument)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}

	l.stats.CurrentYield += amount
	l.appendTransaction(TransactionYield, amount, "")

	l.log.Info("core: yield recorded", "amount", amount, "current_yield", l.stats.CurrentYield)
	l.notify(YieldRecorded{Amount: amount})
	return nil
}

// DistributeQuarterlyProfits splits the current yield by the policy shares,
// credits the platform share to the reserve and resets the yield.
// Researcher and sponsor amounts are announced via ProfitDistributed; the
// truncation remainder stays undistributed. Owner-gated.
func (l *Ledger) DistributeQuarterlyProfits(caller string) (ProfitDistributed, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return ProfitDistributed{}, err
	}
	yield := l.stats.CurrentYield
	if yield == 0 {
		return ProfitDistributed{}, fmt.Errorf("no yield recorded: %w", ErrPolicyViolation)
	}

	dist := ProfitDistributed{
		ResearcherAmount: yield * l.cfg.Policy.ResearcherProfitShare / 100,
		SponsorAmount:    yield * l.cfg.Policy.SponsorProfitShare / 100,
		PlatformAmount:   yield * l.cfg.Policy.PlatformReserveShare / 100,
	}

	l.stats.Reserve += dist.PlatformAmount
	l.stats.CurrentYield = 0
	l.appendTransaction(TransactionDistribution, yield, "")

	l.log.Info("core: quarterly profits distributed",
		"yield", yield,
		"researcher", dist.ResearcherAmount,
		"sponsor", dist.SponsorAmount,
		"platform", dist.PlatformAmount)
	l.notify(dist)
	return dist, nil
}

// Transactions returns a slice of the append-only transaction log in
// insertion order. An offset beyond the log length yields an empty slice.
func (l *Ledger) Transactions(offset, limit int) []FinancialTransaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(l.transactions) || limit <= 0 {
		return []FinancialTransaction{}
	}
	end := offset + limit
	if end > len(l.transactions) {
		end = len(l.transactions)
	}

	out := make([]FinancialTransaction, end-offset)
	copy(out, l.transactions[offset:end])
	return out
}

// appendTransaction must be called with the lock held.
func (l *Ledger) appendTransaction(txType string, amount int64, relatedID string) {
	l.transactions = append(l.transactions, FinancialTransaction{
		ID:        uuid.New(),
		Type:      txType,
		Amount:    amount,
		RelatedID: relatedID,
		Timestamp: l.clock.Now().UTC(),
	})
}
