package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/marketsync/internal/domain/integration"
)

// JobStatus represents the status of a scheduled sync job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusPartial JobStatus = "PARTIAL"
	JobStatusFailed  JobStatus = "FAILED"
	// JobStatusSkipped means another holder had the run lock
	JobStatusSkipped JobStatus = "SKIPPED"
)

// SyncJob is one scheduled invocation of a sync run
type SyncJob struct {
	ID          uuid.UUID
	Kind        integration.RunKind
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
	// Permanent is set when the failure cannot be fixed by retrying
	Permanent bool

	// RunID links the job to the persisted sync run
	RunID  uuid.UUID
	Counts integration.Counts
}

// NewSyncJob creates a pending job
func NewSyncJob(kind integration.RunKind, maxRetries int) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		Kind:       kind,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *SyncJob) Start(now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
	j.Permanent = false
}

// Complete records the run's outcome
func (j *SyncJob) Complete(now time.Time, runID uuid.UUID, status integration.SyncStatus, counts integration.Counts) {
	j.CompletedAt = &now
	j.RunID = runID
	j.Counts = counts
	switch status {
	case integration.SyncStatusSuccess:
		j.Status = JobStatusSuccess
	case integration.SyncStatusPartial:
		j.Status = JobStatusPartial
	default:
		j.Status = JobStatusFailed
	}
}

// Skip marks the job as not run
func (j *SyncJob) Skip(now time.Time, reason string) {
	j.Status = JobStatusSkipped
	j.CompletedAt = &now
	j.Error = reason
}

// Fail marks the job as failed
func (j *SyncJob) Fail(now time.Time, err string, permanent bool) {
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
	j.Permanent = permanent
}

// ShouldRetry returns true for retryable failures with attempts left
func (j *SyncJob) ShouldRetry() bool {
	return j.Status == JobStatusFailed && !j.Permanent && j.RetryCount < j.MaxRetries
}

// ScheduleRetry sets the job pending again after baseDelay * 2^(retries-1),
// capped at maxDelay. It returns the delay.
func (j *SyncJob) ScheduleRetry(now time.Time, baseDelay, maxDelay time.Duration) time.Duration {
	j.RetryCount++
	j.Status = JobStatusPending
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	next := now.Add(delay)
	j.NextRetryAt = &next
	j.Error = ""
	return delay
}
