package integration

import (
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// RunRequest starts an order, transaction or payout sync
type RunRequest struct {
	// Days is the fetch window; the configured default applies when nil
	Days *int `json:"days,omitempty" validate:"omitempty,gte=1,lte=365"`
}

// TransactionRunRequest starts a transaction sync
type TransactionRunRequest struct {
	Days *int `json:"days,omitempty" validate:"omitempty,gte=1,lte=365"`
	// NotToday overrides the configured SkipToday
	NotToday *bool `json:"not_today,omitempty"`
}

// ArchiveRequest archives the inclusive date range [StartDate, EndDate]
type ArchiveRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// RunResult is the outcome of one run
type RunResult struct {
	RunID      uuid.UUID              `json:"run_id"`
	Kind       integration.RunKind    `json:"kind"`
	Status     integration.SyncStatus `json:"status"`
	Days       int                    `json:"days,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Succeeded  int                    `json:"succeeded"`
	Drafts     int                    `json:"drafts"`
	Skipped    int                    `json:"skipped"`
	Failed     int                    `json:"failed"`
	Error      string                 `json:"error,omitempty"`
	Log        []LogEntryResponse     `json:"log"`

	summary string
}

// LogEntryResponse is one sync log entry in API responses
type LogEntryResponse struct {
	Time      time.Time            `json:"time"`
	Level     integration.LogLevel `json:"level"`
	Change    string               `json:"change"`
	OrderID   string               `json:"order_id,omitempty"`
	Reference string               `json:"reference,omitempty"`
	Detail    string               `json:"detail,omitempty"`
}

// Summary returns a human readable summary of the run
func (r *RunResult) Summary() string {
	return r.summary
}

// Changes returns the Change of every log entry, in order
func (r *RunResult) Changes() []string {
	changes := make([]string, len(r.Log))
	for i, e := range r.Log {
		changes[i] = e.Change
	}
	return changes
}

// ToRunResult converts a finished run
func ToRunResult(run *integration.SyncRun, days int) *RunResult {
	res := &RunResult{
		RunID:     run.ID,
		Kind:      run.Kind,
		Status:    run.Status,
		Days:      days,
		StartedAt: run.StartedAt,
		Succeeded: run.Counts.Succeeded,
		Drafts:    run.Counts.Drafts,
		Skipped:   run.Counts.Skipped,
		Failed:    run.Counts.Failed,
		Error:     run.Error,
		Log:       make([]LogEntryResponse, 0, len(run.Entries)),
		summary:   run.Summary(),
	}
	if run.FinishedAt != nil {
		res.FinishedAt = *run.FinishedAt
	}
	for _, e := range run.Entries {
		res.Log = append(res.Log, LogEntryResponse{
			Time:      e.Time,
			Level:     e.Level,
			Change:    e.Change,
			OrderID:   e.OrderID,
			Reference: e.Reference,
			Detail:    e.Detail,
		})
	}
	return res
}
