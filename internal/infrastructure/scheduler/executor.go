package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appintegration "github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/shared"
)

// JobExecutor executes sync jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *SyncJob) error
}

// SyncRunner is the part of the sync service the scheduler drives
type SyncRunner interface {
	RunOrderSync(ctx context.Context, req appintegration.RunRequest) (*appintegration.RunResult, error)
	RunTransactionSync(ctx context.Context, req appintegration.TransactionRunRequest) (*appintegration.RunResult, error)
	RunPayoutSync(ctx context.Context, req appintegration.RunRequest) (*appintegration.RunResult, error)
}

// ServiceExecutor runs jobs through a SyncRunner using the configured
// default fetch windows
type ServiceExecutor struct {
	runner SyncRunner
	logger *zap.Logger
	now    func() time.Time
}

// NewServiceExecutor creates a ServiceExecutor
func NewServiceExecutor(runner SyncRunner, logger *zap.Logger) *ServiceExecutor {
	return &ServiceExecutor{runner: runner, logger: logger, now: time.Now}
}

// Execute runs the job's sync kind. A held run lock skips the job. A fatal
// error fails it permanently; other run errors leave it eligible for retry.
func (e *ServiceExecutor) Execute(ctx context.Context, job *SyncJob) error {
	var (
		result *appintegration.RunResult
		err    error
	)
	switch job.Kind {
	case integration.RunKindOrders:
		result, err = e.runner.RunOrderSync(ctx, appintegration.RunRequest{})
	case integration.RunKindTransactions:
		result, err = e.runner.RunTransactionSync(ctx, appintegration.TransactionRunRequest{})
	case integration.RunKindPayouts:
		result, err = e.runner.RunPayoutSync(ctx, appintegration.RunRequest{})
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedKind, job.Kind)
		job.Fail(e.now(), err.Error(), true)
		return err
	}

	now := e.now()
	if errors.Is(err, shared.ErrSyncInProgress) {
		job.Skip(now, err.Error())
		e.logger.Info("Sync already in progress, skipping scheduled run",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
		)
		return nil
	}
	if err != nil {
		if result != nil {
			job.RunID = result.RunID
		}
		job.Fail(now, err.Error(), errors.Is(err, integration.ErrFatal))
		return err
	}

	// Record-level failures are retried by the next scheduled pass, not here
	job.Complete(now, result.RunID, result.Status, integration.Counts{
		Succeeded: result.Succeeded,
		Drafts:    result.Drafts,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	})
	return nil
}

var _ JobExecutor = (*ServiceExecutor)(nil)
