package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/descilabs/desci-ledger/ledger/pkg/core"
)

func TestLedger_Core_CreateMilestone(t *testing.T) {
	t.Parallel()

	t.Run("manager only", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		err := ledger.CreateMilestone(testSponsor, "ms-1", "Sequencing complete", 100, nil, "phase-1")
		require.ErrorIs(t, err, core.ErrUnauthorized)
	})

	t.Run("validates arguments", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		require.ErrorIs(t, ledger.CreateMilestone(testOwner, "", "x", 50, nil, "p"), core.ErrInvalidArgument)
		require.ErrorIs(t, ledger.CreateMilestone(testOwner, "ms-1", "", 50, nil, "p"), core.ErrInvalidArgument)
		require.ErrorIs(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 101, nil, "p"), core.ErrInvalidArgument)
		require.ErrorIs(t, ledger.CreateMilestone(testOwner, "ms-1", "x", -1, nil, "p"), core.ErrInvalidArgument)
		require.ErrorIs(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 50, []core.KPI{{Metric: "", Target: 10}}, "p"), core.ErrInvalidArgument)
		require.ErrorIs(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 50, []core.KPI{{Metric: "samples", Target: -1}}, "p"), core.ErrInvalidArgument)
	})

	t.Run("duplicate ids are rejected", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "Sequencing complete", 100, nil, "phase-1"))
		err := ledger.CreateMilestone(testOwner, "ms-1", "Sequencing complete", 100, nil, "phase-1")
		require.ErrorIs(t, err, core.ErrAlreadyExists)
	})

	t.Run("kpi current values start at zero", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		kpis := []core.KPI{{Metric: "samples", Target: 500, Current: 123}}
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "Sequencing complete", 100, kpis, "phase-1"))

		ms := ledger.GetMilestone("ms-1")
		require.True(t, ms.Exists)
		require.Len(t, ms.KPIs, 1)
		require.Zero(t, ms.KPIs[0].Current)
		require.Equal(t, int64(500), ms.KPIs[0].Target)
	})
}

func TestLedger_Core_UpdateMilestoneProgress(t *testing.T) {
	t.Parallel()

	t.Run("manager only", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, nil, "phase-1"))

		err := ledger.UpdateMilestoneProgress(testResearcher, "ms-1", 50)
		require.ErrorIs(t, err, core.ErrUnauthorized)
	})

	t.Run("bounds and existence checks", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, nil, "phase-1"))

		require.ErrorIs(t, ledger.UpdateMilestoneProgress(testOwner, "ms-1", -1), core.ErrInvalidArgument)
		require.ErrorIs(t, ledger.UpdateMilestoneProgress(testOwner, "ms-1", 101), core.ErrInvalidArgument)
		require.ErrorIs(t, ledger.UpdateMilestoneProgress(testOwner, "missing", 10), core.ErrNotFound)
	})

	t.Run("sets progress and emits an event", func(t *testing.T) {
		t.Parallel()
		ledger, events := newTestLedgerWithEvents(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, nil, "phase-1"))

		require.NoError(t, ledger.UpdateMilestoneProgress(testOwner, "ms-1", 60))
		require.Equal(t, 60, ledger.GetMilestone("ms-1").CurrentProgress)
		require.Contains(t, *events, core.MilestoneProgressUpdated{MilestoneID: "ms-1", Progress: 60})
	})
}

func TestLedger_Core_UpdateMilestoneKPI(t *testing.T) {
	t.Parallel()

	kpis := []core.KPI{
		{Metric: "samples", Target: 500},
		{Metric: "papers", Target: 3},
	}

	t.Run("manager only", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, kpis, "phase-1"))

		require.ErrorIs(t, ledger.UpdateMilestoneKPI(testResearcher, "ms-1", 0, 10), core.ErrUnauthorized)
	})

	t.Run("rejects negatives and bad indexes", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, kpis, "phase-1"))

		require.ErrorIs(t, ledger.UpdateMilestoneKPI(testOwner, "ms-1", 0, -1), core.ErrInvalidArgument)
		require.ErrorIs(t, ledger.UpdateMilestoneKPI(testOwner, "ms-1", 2, 10), core.ErrIndexOutOfRange)
		require.ErrorIs(t, ledger.UpdateMilestoneKPI(testOwner, "ms-1", -1, 10), core.ErrIndexOutOfRange)
		require.ErrorIs(t, ledger.UpdateMilestoneKPI(testOwner, "missing", 0, 10), core.ErrNotFound)
	})

	t.Run("clamps values to the kpi target", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, kpis, "phase-1"))

		require.NoError(t, ledger.UpdateMilestoneKPI(testOwner, "ms-1", 0, 9999))
		require.NoError(t, ledger.UpdateMilestoneKPI(testOwner, "ms-1", 1, 2))

		ms := ledger.GetMilestone("ms-1")
		require.Equal(t, int64(500), ms.KPIs[0].Current)
		require.Equal(t, int64(2), ms.KPIs[1].Current)
	})
}

func TestLedger_Core_GetMilestone(t *testing.T) {
	t.Parallel()

	t.Run("unknown id reports Exists false instead of an error", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		ms := ledger.GetMilestone("missing")
		require.False(t, ms.Exists)
		require.Equal(t, "missing", ms.ID)
	})

	t.Run("returned kpis do not alias ledger state", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, []core.KPI{{Metric: "samples", Target: 500}}, "phase-1"))

		ms := ledger.GetMilestone("ms-1")
		ms.KPIs[0].Current = 999

		require.Zero(t, ledger.GetMilestone("ms-1").KPIs[0].Current)
	})
}

func TestLedger_Core_PhaseProgress(t *testing.T) {
	t.Parallel()

	t.Run("empty phase reports zero", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.Zero(t, ledger.PhaseProgress("phase-1"))
	})

	t.Run("floored mean of milestone progress", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		for id, progress := range map[string]int{"ms-1": 80, "ms-2": 60, "ms-3": 40} {
			require.NoError(t, ledger.CreateMilestone(testOwner, id, "x", 100, nil, "phase-1"))
			require.NoError(t, ledger.UpdateMilestoneProgress(testOwner, id, progress))
		}
		// Another phase's milestones do not count.
		require.NoError(t, ledger.CreateMilestone(testOwner, "other", "x", 100, nil, "phase-2"))
		require.NoError(t, ledger.UpdateMilestoneProgress(testOwner, "other", 100))

		require.Equal(t, 60, ledger.PhaseProgress("phase-1"))
	})

	t.Run("mean floors toward zero", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)

		for id, progress := range map[string]int{"ms-1": 50, "ms-2": 51} {
			require.NoError(t, ledger.CreateMilestone(testOwner, id, "x", 100, nil, "phase-1"))
			require.NoError(t, ledger.UpdateMilestoneProgress(testOwner, id, progress))
		}
		require.Equal(t, 50, ledger.PhaseProgress("phase-1"))
	})
}

func TestLedger_Core_MilestoneData(t *testing.T) {
	t.Parallel()

	t.Run("upload is manager gated and needs an existing milestone", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, nil, "phase-1"))

		_, err := ledger.UploadMilestoneData(testResearcher, "ms-1", "results", "ipfs://abc")
		require.ErrorIs(t, err, core.ErrUnauthorized)

		_, err = ledger.UploadMilestoneData(testOwner, "missing", "results", "ipfs://abc")
		require.ErrorIs(t, err, core.ErrNotFound)

		_, err = ledger.UploadMilestoneData(testOwner, "ms-1", "results", "")
		require.ErrorIs(t, err, core.ErrInvalidArgument)
	})

	t.Run("records are returned in upload order", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.NoError(t, ledger.CreateMilestone(testOwner, "ms-1", "x", 100, nil, "phase-1"))

		first, err := ledger.UploadMilestoneData(testOwner, "ms-1", "raw reads", "ipfs://one")
		require.NoError(t, err)
		second, err := ledger.UploadMilestoneData(testOwner, "ms-1", "assembly", "ipfs://two")
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)

		records, err := ledger.MilestoneData("ms-1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		require.Equal(t, "raw reads", records[0].Title)
		require.Equal(t, "assembly", records[1].Title)
		require.Equal(t, testOwner, records[0].Uploader)
	})

	t.Run("reads of unknown milestones fail", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		_, err := ledger.MilestoneData("missing")
		require.ErrorIs(t, err, core.ErrNotFound)
	})
}
