package integration

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Error Tests
// ---------------------------------------------------------------------------

func TestSyncError(t *testing.T) {
	err := NewSyncError("12-34", "inconsistent amounts").With("lines", "29.16").With("subtotal", "29.17")

	assert.Equal(t, "order 12-34: inconsistent amounts (lines=29.16, subtotal=29.17)", err.Error())
	assert.True(t, IsSyncError(err))
	assert.False(t, IsFatal(err))

	wrapped := fmt.Errorf("processing: %w", err)
	var se *SyncError
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "12-34", se.OrderID)
	assert.True(t, errors.Is(wrapped, ErrSync))
}

func TestSyncError_Wrap(t *testing.T) {
	cause := errors.New("boom")
	err := SyncErrorf("", "conversion failed for %s", "USD").Wrap(cause)

	assert.Equal(t, "conversion failed for USD: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrSync)
}

func TestFatalError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewFatalError("account missing", cause)

	assert.True(t, IsFatal(err))
	assert.False(t, IsSyncError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "account missing: connection refused", err.Error())
	assert.Equal(t, "bad config", NewFatalError("bad config", nil).Error())
}

// ---------------------------------------------------------------------------
// Outcome Tests
// ---------------------------------------------------------------------------

func TestCounts_Record(t *testing.T) {
	var c Counts
	c.Record(Ok("1", OrderStateInvoiced))
	c.Record(Ok("2", OrderStateInvoiced).AsDraft())
	c.Record(Skip("3", OrderStateFetched, "payment PENDING"))
	c.Record(Fail("4", OrderStateOrderRecorded, NewSyncError("4", "unhandled tax")))

	assert.Equal(t, Counts{Succeeded: 2, Drafts: 1, Skipped: 1, Failed: 1}, c)
	assert.Equal(t, 4, c.Total())
}

func TestOrderState_CanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to OrderState
		expected bool
	}{
		{OrderStateFetched, OrderStateCustomerResolved, true},
		{OrderStateCustomerResolved, OrderStateOrderRecorded, true},
		{OrderStateOrderRecorded, OrderStateInvoiced, true},
		{OrderStateInvoiced, OrderStateRefunded, true},
		{OrderStateFetched, OrderStateInvoiced, false},
		{OrderStateInvoiced, OrderStateFetched, false},
		{OrderState("UNKNOWN"), OrderStateFetched, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

// ---------------------------------------------------------------------------
// SyncLog Tests
// ---------------------------------------------------------------------------

func TestSyncLog(t *testing.T) {
	log := NewSyncLog()
	log.Info("Adding eBay order", "1", "ORD-1")
	log.Warn("Unknown purchase site", "1", "EBAY_XX")
	log.Error("Sync failed", "2", "unhandled tax")

	entries := log.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, LogLevelInfo, entries[0].Level)
	assert.Equal(t, LogLevelWarning, entries[1].Level)
	assert.Equal(t, LogLevelError, entries[2].Level)
	assert.False(t, entries[0].Time.IsZero())
	assert.Equal(t, []string{"Adding eBay order", "Unknown purchase site", "Sync failed"}, log.Changes())

	entries[0].Change = "mutated"
	assert.Equal(t, "Adding eBay order", log.Entries()[0].Change)
}

func TestSyncLog_ConcurrentAdd(t *testing.T) {
	log := NewSyncLog()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("entry", fmt.Sprint(i), "")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, log.Len())
}

// ---------------------------------------------------------------------------
// SyncRun Tests
// ---------------------------------------------------------------------------

func TestSyncRun_Finish(t *testing.T) {
	tests := []struct {
		name     string
		counts   Counts
		err      error
		expected SyncStatus
	}{
		{"all ok", Counts{Succeeded: 3}, nil, SyncStatusSuccess},
		{"some failed", Counts{Succeeded: 2, Failed: 1}, nil, SyncStatusPartial},
		{"aborted", Counts{Succeeded: 1}, NewFatalError("missing account", nil), SyncStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewSyncRun(RunKindOrders)
			assert.Equal(t, SyncStatusInProgress, run.Status)
			assert.Zero(t, run.Duration())

			run.Finish(tt.counts, nil, tt.err)
			assert.Equal(t, tt.expected, run.Status)
			assert.NotNil(t, run.FinishedAt)
			assert.Contains(t, run.Summary(), string(tt.expected))
		})
	}
}

func TestRunKind_IsValid(t *testing.T) {
	assert.True(t, RunKindOrders.IsValid())
	assert.True(t, RunKindArchive.IsValid())
	assert.False(t, RunKind("OTHER").IsValid())
	assert.True(t, SyncStatusPartial.IsValid())
	assert.False(t, SyncStatus("").IsValid())
}
