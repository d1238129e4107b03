package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncStatus represents the synchronization status
// ---------------------------------------------------------------------------

// SyncStatus represents the synchronization status
type SyncStatus string

const (
	// SyncStatusInProgress indicates sync is in progress
	SyncStatusInProgress SyncStatus = "IN_PROGRESS"
	// SyncStatusSuccess indicates every record was processed
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusPartial indicates some records failed
	SyncStatusPartial SyncStatus = "PARTIAL"
	// SyncStatusFailed indicates the run aborted
	SyncStatusFailed SyncStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusInProgress, SyncStatusSuccess, SyncStatusPartial, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// RunKind
// ---------------------------------------------------------------------------

// RunKind identifies which entry point a run executed
type RunKind string

const (
	RunKindOrders       RunKind = "ORDERS"
	RunKindTransactions RunKind = "TRANSACTIONS"
	RunKindPayouts      RunKind = "PAYOUTS"
	RunKindArchive      RunKind = "ARCHIVE"
)

// IsValid returns true if the kind is valid
func (k RunKind) IsValid() bool {
	switch k {
	case RunKindOrders, RunKindTransactions, RunKindPayouts, RunKindArchive:
		return true
	default:
		return false
	}
}

// String returns the string representation of RunKind
func (k RunKind) String() string {
	return string(k)
}

// ---------------------------------------------------------------------------
// SyncRun
// ---------------------------------------------------------------------------

// Counts tallies the outcomes of a run
type Counts struct {
	Succeeded int
	Drafts    int
	Skipped   int
	Failed    int
}

// Record adds an outcome to the tally
func (c *Counts) Record(o Outcome) {
	switch o.Kind {
	case OutcomeOk:
		c.Succeeded++
		if o.Draft {
			c.Drafts++
		}
	case OutcomeSkip:
		c.Skipped++
	case OutcomeFail:
		c.Failed++
	}
}

// Total returns the number of recorded outcomes
func (c Counts) Total() int {
	return c.Succeeded + c.Skipped + c.Failed
}

// SyncRun is the persisted history record of one run
type SyncRun struct {
	ID         uuid.UUID
	Kind       RunKind
	Status     SyncStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Counts     Counts
	// Error is the message of the error that aborted the run
	Error   string
	Entries []LogEntry
}

// NewSyncRun starts a run
func NewSyncRun(kind RunKind) *SyncRun {
	return &SyncRun{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    SyncStatusInProgress,
		StartedAt: time.Now(),
	}
}

// Finish closes the run, deriving its status from the counts and the abort error
func (r *SyncRun) Finish(counts Counts, entries []LogEntry, err error) {
	now := time.Now()
	r.FinishedAt = &now
	r.Counts = counts
	r.Entries = entries
	switch {
	case err != nil:
		r.Status = SyncStatusFailed
		r.Error = err.Error()
	case counts.Failed > 0:
		r.Status = SyncStatusPartial
	default:
		r.Status = SyncStatusSuccess
	}
}

// Duration returns how long the run took, or zero while in progress
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns a one-line human readable summary
func (r *SyncRun) Summary() string {
	s := fmt.Sprintf("%s run %s: %d ok (%d draft), %d skipped, %d failed",
		r.Kind, r.Status, r.Counts.Succeeded, r.Counts.Drafts, r.Counts.Skipped, r.Counts.Failed)
	if r.Error != "" {
		s += ": " + r.Error
	}
	return s
}

// SyncRunRepository persists run history
type SyncRunRepository interface {
	// Save creates or updates a run together with its log entries
	Save(ctx context.Context, run *SyncRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	// FindRecent returns the latest runs, newest first
	FindRecent(ctx context.Context, kind RunKind, limit int) ([]SyncRun, error)
}
