package integration

import (
	"context"
	"testing"
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func payout(id string, status marketplace.PayoutStatus, day int, amount string) marketplace.Payout {
	return marketplace.Payout{
		PayoutID: id,
		Status:   status,
		Date:     time.Date(2024, 3, day, 6, 0, 0, 0, time.UTC),
		Amount:   gbp(amount),
		Instrument: marketplace.PayoutInstrument{
			InstrumentType: "BANK",
			Nickname:       "Business account",
			LastFourDigits: "4321",
		},
	}
}

func TestPayoutReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	r := NewPayoutReconciler(testSettings(), zap.NewNop())
	payouts := []marketplace.Payout{
		payout("P-2", marketplace.PayoutStatusSucceeded, 6, "80.00"),
		payout("P-1", marketplace.PayoutStatusSucceeded, 5, "120.50"),
		payout("P-3", marketplace.PayoutStatusInitiated, 7, "10.00"),
	}

	log := integration.NewSyncLog()
	counts, err := r.Reconcile(ctx, store, payouts, log)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Succeeded)
	assert.Equal(t, 1, counts.Skipped)

	require.Len(t, store.state.journals, 2)
	je := store.state.journals[0]
	assert.Equal(t, "P-1", je.ReferenceID)
	assert.Equal(t, accounting.JournalKindPayout, je.Kind)
	assert.Equal(t, "eBay Managed Payments payout 2024-03-05", je.Title)
	assert.Equal(t, "Bank Current Account", je.Lines[0].Account)
	assert.Equal(t, "120.50", je.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, "eBay Managed GBP", je.Lines[1].Account)
	assert.Equal(t, "120.50", je.Lines[1].Credit.StringFixed(2))
	assert.Contains(t, je.Remark, "last four digits 4321")
	assert.Equal(t, accounting.DocStatusDraft, je.Status)
	assert.Equal(t, []string{"Adding payout journal entry", "Adding payout journal entry"}, log.Changes())

	log = integration.NewSyncLog()
	counts, err = r.Reconcile(ctx, store, payouts, log)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Succeeded)
	assert.Len(t, store.state.journals, 2)
	assert.Equal(t, []string{"Payout journal entry already exists", "Payout journal entry already exists"}, log.Changes())
}

func TestPayoutReconciler_Failures(t *testing.T) {
	tests := []struct {
		name     string
		payout   marketplace.Payout
		accounts []accounting.Account
		wantErr  string
	}{
		{
			name:    "reversed payout",
			payout:  payout("P-R", marketplace.PayoutStatusReversed, 5, "10.00"),
			wantErr: "reversed payouts are not supported",
		},
		{
			name:     "currency differs from bank account",
			payout:   payout("P-C", marketplace.PayoutStatusSucceeded, 5, "10.00"),
			accounts: []accounting.Account{{Name: "Bank Current Account", Currency: "USD"}},
			wantErr:  "payout currency mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.state.accounts = tt.accounts
			log := integration.NewSyncLog()

			counts, err := NewPayoutReconciler(testSettings(), zap.NewNop()).Reconcile(context.Background(), store,
				[]marketplace.Payout{tt.payout}, log)
			require.NoError(t, err)
			assert.Equal(t, 1, counts.Failed)
			assert.Empty(t, store.state.journals)
			require.Equal(t, 1, log.Len())
			assert.Contains(t, log.Entries()[0].Detail, tt.wantErr)
		})
	}
}
