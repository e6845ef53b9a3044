package core_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/descilabs/desci-ledger/ledger/pkg/core"
)

func TestLedger_Core_CreateExperiment(t *testing.T) {
	t.Parallel()

	t.Run("validates arguments", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name         string
			caller       string
			title        string
			goal         int64
			durationDays int
		}{
			{name: "empty caller", caller: "", title: "Protein folding", goal: 1000, durationDays: 30},
			{name: "empty title", caller: testResearcher, title: "", goal: 1000, durationDays: 30},
			{name: "zero goal", caller: testResearcher, title: "Protein folding", goal: 0, durationDays: 30},
			{name: "negative goal", caller: testResearcher, title: "Protein folding", goal: -5, durationDays: 30},
			{name: "zero duration", caller: testResearcher, title: "Protein folding", goal: 1000, durationDays: 0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				ledger, _ := newTestLedger(t)
				_, err := ledger.CreateExperiment(tt.caller, tt.title, "", tt.goal, tt.durationDays)
				require.ErrorIs(t, err, core.ErrInvalidArgument)
			})
		}
	})

	t.Run("assigns ids starting at 1", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		first, err := ledger.CreateExperiment(testResearcher, "Protein folding", "ML-guided folding study", 1000, 30)
		require.NoError(t, err)
		require.Equal(t, uint64(1), first)

		second, err := ledger.CreateExperiment(testResearcher, "Gene expression atlas", "", 5000, 60)
		require.NoError(t, err)
		require.Equal(t, uint64(2), second)
	})

	t.Run("sets owner and deadline from duration", func(t *testing.T) {
		t.Parallel()
		ledger, clock := newTestLedger(t)

		id, err := ledger.CreateExperiment(testResearcher, "Protein folding", "", 1000, 30)
		require.NoError(t, err)

		exp, err := ledger.GetExperiment(id)
		require.NoError(t, err)
		require.Equal(t, testResearcher, exp.Owner)
		require.Equal(t, int64(1000), exp.FundingGoal)
		require.Zero(t, exp.FundingRaised)
		require.False(t, exp.FundingComplete)
		require.False(t, exp.Processed)
		require.Equal(t, clock.Now().UTC().Add(30*24*time.Hour), exp.Deadline)
	})
}

func TestLedger_Core_GetExperiment(t *testing.T) {
	t.Parallel()

	t.Run("unknown id returns ErrNotFound", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		_, err := ledger.GetExperiment(42)
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("returned copy does not alias ledger state", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		id, err := ledger.CreateExperiment(testResearcher, "Protein folding", "", 1000, 30)
		require.NoError(t, err)

		exp, err := ledger.GetExperiment(id)
		require.NoError(t, err)
		exp.FundingRaised = 999999

		fresh, err := ledger.GetExperiment(id)
		require.NoError(t, err)
		require.Zero(t, fresh.FundingRaised)
	})
}

func TestLedger_Core_ListExperiments(t *testing.T) {
	t.Parallel()

	t.Run("empty ledger lists nothing", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.Empty(t, ledger.ListExperiments())
	})

	t.Run("lists in id order", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		for _, title := range []string{"alpha", "beta", "gamma"} {
			_, err := ledger.CreateExperiment(testResearcher, title, "", 1000, 30)
			require.NoError(t, err)
		}

		got := ledger.ListExperiments()
		require.Len(t, got, 3)
		for i, exp := range got {
			require.Equal(t, uint64(i+1), exp.ID)
		}
	})
}

func TestLedger_Core_Errors(t *testing.T) {
	t.Parallel()

	t.Run("sentinels are distinct", func(t *testing.T) {
		t.Parallel()
		sentinels := []error{
			core.ErrNotFound,
			core.ErrInvalidArgument,
			core.ErrUnauthorized,
			core.ErrExpired,
			core.ErrPolicyViolation,
			core.ErrAlreadyExists,
			core.ErrAlreadyProcessed,
			core.ErrIndexOutOfRange,
		}
		for i, a := range sentinels {
			for j, b := range sentinels {
				if i != j {
					require.False(t, errors.Is(a, b), "%v should not match %v", a, b)
				}
			}
		}
	})
}
