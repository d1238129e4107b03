package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestArchiveService_Archive(t *testing.T) {
	ctx := context.Background()
	orderID := "55-00001-00001"
	store := storeWithInvoice(orderID)
	store.addItem("SKU-L", "Listing item", "3001")

	sale := saleFor(orderID)
	sale.Date = day(4).Add(11 * time.Hour)
	fee := charge("NSC-1", marketplace.TransactionTypeNonSaleCharge, marketplace.BookingEntryDebit, "0.35")
	fee.Date = day(4).Add(15 * time.Hour)
	fee.References = []marketplace.TransactionReference{{ReferenceID: "3001", ReferenceType: marketplace.ReferenceTypeItemID}}
	p := payout("P-1", marketplace.PayoutStatusSucceeded, 6, "31.50")

	client := new(MockClient)
	until := day(6).AddDate(0, 0, 1).Add(-time.Nanosecond)
	client.On("FetchTransactions", mock.Anything, day(4), until).Return([]marketplace.Transaction{fee, sale}, nil)
	client.On("FetchPayouts", mock.Anything, day(4), until).Return([]marketplace.Payout{p}, nil)

	archive := &memArchive{}
	svc := NewArchiveService(client, store, archive, zap.NewNop())
	log := integration.NewSyncLog()

	counts, err := svc.Archive(ctx, day(4).Add(5*time.Hour), day(6), day(10), log)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Succeeded)
	assert.Equal(t, 1, counts.Skipped)
	client.AssertExpectations(t)

	first, err := archive.Get(ctx, day(4))
	require.NoError(t, err)
	require.Len(t, first.Transactions, 2)
	assert.Equal(t, sale.TransactionID, first.Transactions[0].TransactionID)
	assert.Equal(t, []string{"SKU-A", "SKU-B"}, first.Transactions[0].ItemCodes)
	assert.Equal(t, []string{"SKU-L"}, first.Transactions[1].ItemCodes)
	assert.Empty(t, first.Payouts)

	_, err = archive.Get(ctx, day(5))
	assert.ErrorIs(t, err, integration.ErrArchiveMissing)
	assert.Contains(t, archive.deleted, day(5))

	third, err := archive.Get(ctx, day(6))
	require.NoError(t, err)
	require.Len(t, third.Payouts, 1)
	assert.Equal(t, "P-1", third.Payouts[0].PayoutID)

	assert.Equal(t, []string{"Archiving transactions", "No records to archive", "Archiving transactions"}, log.Changes())
}

func TestArchiveService_Archive_InvalidRange(t *testing.T) {
	svc := NewArchiveService(new(MockClient), newMemStore(), &memArchive{}, zap.NewNop())

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{name: "end before start", start: day(5), end: day(4)},
		{name: "end is today", start: day(4), end: day(10)},
		{name: "end in the future", start: day(4), end: day(12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Archive(context.Background(), tt.start, tt.end, day(10).Add(8*time.Hour), integration.NewSyncLog())
			require.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}
}

func TestArchiveService_Archive_FetchFailureIsFatal(t *testing.T) {
	client := new(MockClient)
	client.On("FetchTransactions", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	svc := NewArchiveService(client, newMemStore(), &memArchive{}, zap.NewNop())
	_, err := svc.Archive(context.Background(), day(4), day(4), day(10), integration.NewSyncLog())
	require.Error(t, err)
	assert.True(t, integration.IsFatal(err))
}
