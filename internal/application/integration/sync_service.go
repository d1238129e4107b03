package integration

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/domain/territory"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncObserver is notified as runs progress, e.g. to record metrics
type SyncObserver interface {
	OrderProcessed(ctx context.Context, outcome integration.Outcome)
	RunFinished(ctx context.Context, run *integration.SyncRun)
}

type noopObserver struct{}

func (noopObserver) OrderProcessed(context.Context, integration.Outcome) {}
func (noopObserver) RunFinished(context.Context, *integration.SyncRun) {}

// SyncServiceDeps are the collaborators of a SyncService
type SyncServiceDeps struct {
	Settings Settings
	Client   marketplace.Client
	Store    accounting.Store
	Runs     integration.SyncRunRepository
	Lock     integration.RunLock
	// Archive is optional; ArchiveTransactions fails without it
	Archive  integration.ArchiveStore
	Resolver *territory.Resolver
	Observer SyncObserver
	Logger   *zap.Logger
	// Now defaults to time.Now
	Now func() time.Time
}

// SyncService runs order, transaction, payout and archive passes. Runs of the
// same kind never overlap.
type SyncService struct {
	settings     Settings
	client       marketplace.Client
	store        accounting.Store
	runs         integration.SyncRunRepository
	lock         integration.RunLock
	orders       *OrderSynchronizer
	transactions *TransactionReconciler
	payouts      *PayoutReconciler
	archiver     *ArchiveService
	observer     SyncObserver
	logger       *zap.Logger
	now          func() time.Time
}

// NewSyncService creates a SyncService
func NewSyncService(deps SyncServiceDeps) (*SyncService, error) {
	if err := deps.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync settings: %w", err)
	}
	if deps.Client == nil || deps.Store == nil || deps.Runs == nil || deps.Lock == nil || deps.Resolver == nil {
		return nil, errors.New("sync service: client, store, runs, lock and resolver are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := deps.Settings
	svc := &SyncService{
		settings: s,
		client:   deps.Client,
		store:    deps.Store,
		runs:     deps.Runs,
		lock:     deps.Lock,
		orders: NewOrderSynchronizer(
			NewCustomerExtractor(deps.Resolver, s.UseShippingName),
			NewCustomerMatcher(deps.Resolver, s.MaxNameDuplicates, logger),
			NewInvoiceBuilder(s, deps.Resolver, logger),
			NewRefundBuilder(s, logger),
			logger,
		),
		transactions: NewTransactionReconciler(s, deps.Client, logger),
		payouts:      NewPayoutReconciler(s, logger),
		observer:     observer,
		logger:       logger,
		now:          now,
	}
	if deps.Archive != nil {
		svc.archiver = NewArchiveService(deps.Client, deps.Store, deps.Archive, logger)
	}
	return svc, nil
}

// runFunc is the body of one run. It records outcomes into counts and returns
// an error only when the run must abort.
type runFunc func(ctx context.Context, log *integration.SyncLog, counts *integration.Counts) error

// run holds the run lock, executes fn and always persists the run history and
// log, even when fn aborts or panics
func (s *SyncService) run(ctx context.Context, kind integration.RunKind, days int, fn runFunc) (result *RunResult, err error) {
	release, err := s.lock.Acquire(ctx, "marketsync:"+string(kind), s.settings.LockTTL)
	if errors.Is(err, integration.ErrLockHeld) {
		return nil, shared.ErrSyncInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}

	run := integration.NewSyncRun(kind)
	log := integration.NewSyncLog()
	var counts integration.Counts
	ctx, _ = logger.WithRunID(ctx, s.logger.With(zap.String("kind", string(kind))), run.ID.String())

	ctx, span := telemetry.StartServiceSpan(ctx, "sync", string(kind),
		telemetry.WithAttribute("run_id", run.ID.String()),
		telemetry.WithAttribute("days", days))
	defer span.End()
	lg := logger.L(ctx)

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			lg.Error("Sync run panicked", zap.Any("panic", r), zap.ByteString("stack", stack))
			log.Error("Unexpected error", "", fmt.Sprintf("%v\n%s", r, stack))
			err = fmt.Errorf("sync run panicked: %v", r)
		}

		run.Finish(counts, log.Entries(), err)
		flushCtx := context.WithoutCancel(ctx)
		if saveErr := s.runs.Save(flushCtx, run); saveErr != nil {
			lg.Error("Failed to save sync run", zap.Error(saveErr))
		}
		if relErr := release(flushCtx); relErr != nil {
			lg.Warn("Failed to release run lock", zap.Error(relErr))
		}
		s.observer.RunFinished(flushCtx, run)

		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetOK(span)
		}
		lg.Info("Sync run finished",
			zap.String("status", run.Status.String()),
			zap.Int("succeeded", counts.Succeeded),
			zap.Int("drafts", counts.Drafts),
			zap.Int("skipped", counts.Skipped),
			zap.Int("failed", counts.Failed),
			zap.Duration("duration", run.Duration()))
		result = ToRunResult(run, days)
	}()

	lg.Info("Sync run started", zap.Int("days", days))
	return nil, fn(ctx, log, &counts)
}

// checkAccounts verifies every configured ledger account exists
func (s *SyncService) checkAccounts(ctx context.Context) error {
	for _, name := range s.settings.RequiredAccounts() {
		_, err := s.store.Accounts().FindByName(ctx, name)
		if errors.Is(err, shared.ErrNotFound) {
			return integration.NewFatalError(fmt.Sprintf("account %q does not exist", name), nil)
		}
		if err != nil {
			return integration.NewFatalError("check accounts", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// RunOrderSync fetches the orders of the last days and synchronizes each one
func (s *SyncService) RunOrderSync(ctx context.Context, req RunRequest) (*RunResult, error) {
	days := s.settings.ClampDays(req.Days)
	return s.run(ctx, integration.RunKindOrders, days, func(ctx context.Context, log *integration.SyncLog, counts *integration.Counts) error {
		if err := s.checkAccounts(ctx); err != nil {
			return err
		}

		batch, err := s.client.FetchOrders(ctx, marketplace.OrderQuery{Days: days})
		if err != nil {
			return integration.NewFatalError("fetch orders", err)
		}
		for _, rej := range batch.Rejected {
			log.Error("Rejected order", rej.OrderID, rej.Err.Error())
			counts.Record(integration.Fail(rej.OrderID, integration.OrderStateFetched, rej.Err))
		}
		if len(batch.Orders) == 0 {
			return nil
		}

		byOrder, err := s.orderTransactions(ctx, batch.Orders)
		if err != nil {
			return err
		}

		for i := range batch.Orders {
			order := &batch.Orders[i]
			outcome := s.orders.Process(ctx, s.store, order, byOrder[order.OrderID], log)
			counts.Record(outcome)
			s.observer.OrderProcessed(ctx, outcome)
			if outcome.Kind != integration.OutcomeFail {
				continue
			}
			if integration.IsFatal(outcome.Err) {
				return outcome.Err
			}
			if !integration.IsSyncError(outcome.Err) && !s.settings.ContinueOnError {
				return outcome.Err
			}
		}
		return nil
	})
}

// orderTransactions fetches the transactions dated from the oldest order to
// now, indexed by order id
func (s *SyncService) orderTransactions(ctx context.Context, orders []marketplace.Order) (map[string][]marketplace.Transaction, error) {
	from := orders[0].CreationDate
	for _, o := range orders[1:] {
		if o.CreationDate.Before(from) {
			from = o.CreationDate
		}
	}
	txns, err := s.client.FetchTransactions(ctx, from, s.now())
	if err != nil {
		return nil, integration.NewFatalError("fetch transactions", err)
	}
	byOrder := make(map[string][]marketplace.Transaction)
	for _, t := range txns {
		if t.OrderID != "" {
			byOrder[t.OrderID] = append(byOrder[t.OrderID], t)
		}
	}
	return byOrder, nil
}

// ---------------------------------------------------------------------------
// Transactions and payouts
// ---------------------------------------------------------------------------

// RunTransactionSync turns the transactions of the last days into fee
// documents and transfer journal entries
func (s *SyncService) RunTransactionSync(ctx context.Context, req TransactionRunRequest) (*RunResult, error) {
	days := s.settings.ClampDays(req.Days)
	skipToday := s.settings.SkipToday
	if req.NotToday != nil {
		skipToday = *req.NotToday
	}
	return s.run(ctx, integration.RunKindTransactions, days, func(ctx context.Context, log *integration.SyncLog, counts *integration.Counts) error {
		if err := s.checkAccounts(ctx); err != nil {
			return err
		}
		now := s.now()
		txns, err := s.client.FetchTransactions(ctx, now.AddDate(0, 0, -days), now)
		if err != nil {
			return integration.NewFatalError("fetch transactions", err)
		}
		c, err := s.transactions.Reconcile(ctx, s.store, txns, ReconcileOptions{SkipToday: skipToday, Now: now}, log)
		*counts = c
		return err
	})
}

// RunPayoutSync records the payouts of the last days
func (s *SyncService) RunPayoutSync(ctx context.Context, req RunRequest) (*RunResult, error) {
	days := s.settings.ClampDays(req.Days)
	return s.run(ctx, integration.RunKindPayouts, days, func(ctx context.Context, log *integration.SyncLog, counts *integration.Counts) error {
		if err := s.checkAccounts(ctx); err != nil {
			return err
		}
		now := s.now()
		payouts, err := s.client.FetchPayouts(ctx, now.AddDate(0, 0, -days), now)
		if err != nil {
			return integration.NewFatalError("fetch payouts", err)
		}
		c, err := s.payouts.Reconcile(ctx, s.store, payouts, log)
		*counts = c
		return err
	})
}

// ArchiveTransactions archives the transactions and payouts of each date in
// the request range
func (s *SyncService) ArchiveTransactions(ctx context.Context, req ArchiveRequest) (*RunResult, error) {
	if s.archiver == nil {
		return nil, integration.NewFatalError("archive store is not configured", nil)
	}
	days := int(utcDate(req.EndDate).Sub(utcDate(req.StartDate)).Hours()/24) + 1
	return s.run(ctx, integration.RunKindArchive, days, func(ctx context.Context, log *integration.SyncLog, counts *integration.Counts) error {
		c, err := s.archiver.Archive(ctx, req.StartDate, req.EndDate, s.now(), log)
		*counts = c
		return err
	})
}

// GetRun returns one persisted run with its log
func (s *SyncService) GetRun(ctx context.Context, id uuid.UUID) (*RunResult, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToRunResult(run, 0), nil
}

// RecentRuns returns the latest runs of a kind, newest first
func (s *SyncService) RecentRuns(ctx context.Context, kind integration.RunKind, limit int) ([]RunResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.runs.FindRecent(ctx, kind, limit)
	if err != nil {
		return nil, err
	}
	results := make([]RunResult, 0, len(runs))
	for i := range runs {
		results = append(results, *ToRunResult(&runs[i], 0))
	}
	return results, nil
}
