package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when submitting to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrJobActive is returned when a job of the same kind is already queued or running
	ErrJobActive = errors.New("a job of this kind is already queued or running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrUnsupportedKind is returned for run kinds the scheduler cannot execute
	ErrUnsupportedKind = errors.New("unsupported sync kind")
)
