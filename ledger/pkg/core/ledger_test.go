package core_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/descilabs/desci-ledger/ledger/pkg/core"
	ledgertesting "github.com/descilabs/desci-ledger/utils/pkg/testing"
)

const (
	testOwner      = "0xowner"
	testResearcher = "0xresearcher"
	testSponsor    = "0xsponsor"
)

func newTestLedger(t *testing.T) (*core.Ledger, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	ledger, err := core.New(core.Config{
		Logger: ledgertesting.NewLogger(),
		Clock:  clock,
		Owner:  testOwner,
	})
	require.NoError(t, err)
	return ledger, clock
}

func newTestLedgerWithEvents(t *testing.T) (*core.Ledger, *[]any) {
	t.Helper()
	var events []any
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	ledger, err := core.New(core.Config{
		Logger: ledgertesting.NewLogger(),
		Clock:  clock,
		Owner:  testOwner,
		Notify: func(e any) { events = append(events, e) },
	})
	require.NoError(t, err)
	return ledger, &events
}

func TestLedger_Core_New(t *testing.T) {
	t.Parallel()

	t.Run("returns error when config validation fails", func(t *testing.T) {
		t.Parallel()

		t.Run("missing logger", func(t *testing.T) {
			t.Parallel()
			ledger, err := core.New(core.Config{Owner: testOwner})
			require.Error(t, err)
			require.Nil(t, ledger)
			require.Contains(t, err.Error(), "logger is required")
		})

		t.Run("missing owner", func(t *testing.T) {
			t.Parallel()
			ledger, err := core.New(core.Config{Logger: ledgertesting.NewLogger()})
			require.Error(t, err)
			require.Nil(t, ledger)
			require.Contains(t, err.Error(), "owner address is required")
		})

		t.Run("invalid policy", func(t *testing.T) {
			t.Parallel()
			ledger, err := core.New(core.Config{
				Logger: ledgertesting.NewLogger(),
				Owner:  testOwner,
				Policy: core.FinancialPolicy{
					PlatformFeePercent:    5,
					ResearcherProfitShare: 70,
					SponsorProfitShare:    20,
					PlatformReserveShare:  20,
				},
			})
			require.Error(t, err)
			require.Nil(t, ledger)
			require.Contains(t, err.Error(), "sum to 100")
		})
	})

	t.Run("defaults to the platform policy", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.Equal(t, core.DefaultFinancialPolicy(), ledger.Policy())
	})

	t.Run("seeds the owner as project manager", func(t *testing.T) {
		t.Parallel()
		ledger, _ := newTestLedger(t)
		require.True(t, ledger.IsProjectManager(testOwner))
	})
}

func TestLedger_Core_FinancialPolicy_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  core.FinancialPolicy
		wantErr string
	}{
		{
			name:   "default policy is valid",
			policy: core.DefaultFinancialPolicy(),
		},
		{
			name: "fee above 100 rejected",
			policy: core.FinancialPolicy{
				PlatformFeePercent:    101,
				ResearcherProfitShare: 70,
				SponsorProfitShare:    20,
				PlatformReserveShare:  10,
			},
			wantErr: "platform fee percent",
		},
		{
			name: "negative fee rejected",
			policy: core.FinancialPolicy{
				PlatformFeePercent:    -1,
				ResearcherProfitShare: 70,
				SponsorProfitShare:    20,
				PlatformReserveShare:  10,
			},
			wantErr: "platform fee percent",
		},
		{
			name: "shares must sum to 100",
			policy: core.FinancialPolicy{
				PlatformFeePercent:    5,
				ResearcherProfitShare: 50,
				SponsorProfitShare:    20,
				PlatformReserveShare:  10,
			},
			wantErr: "sum to 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.policy.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
