package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds configuration for the sync scheduler
type Config struct {
	// Intervals maps each scheduled kind to its period; kinds with a zero
	// period are only run when triggered
	Intervals map[integration.RunKind]time.Duration
	// InitialDelay postpones the first scheduled pass after Start
	InitialDelay time.Duration
	// JobTimeout is the maximum time a run can take
	JobTimeout time.Duration
	// RetryAttempts is the number of retries for a failed run
	RetryAttempts int
	// RetryDelay is the base retry delay, doubled after each retry
	RetryDelay time.Duration
	// MaxRetryDelay caps the retry delay
	MaxRetryDelay time.Duration
	// QueueSize bounds pending jobs
	QueueSize int
	// MaxHistory bounds the finished jobs kept for inspection
	MaxHistory int
}

// FromConfig builds the scheduler configuration from application config
func FromConfig(cfg config.SchedulerConfig) Config {
	return Config{
		Intervals: map[integration.RunKind]time.Duration{
			integration.RunKindOrders:       cfg.OrderInterval,
			integration.RunKindTransactions: cfg.TransactionInterval,
			integration.RunKindPayouts:      cfg.PayoutInterval,
		},
		InitialDelay:  cfg.InitialDelay,
		JobTimeout:    cfg.JobTimeout,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		MaxRetryDelay: cfg.MaxRetryDelay,
		QueueSize:     16,
		MaxHistory:    100,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.JobTimeout <= 0 || c.RetryAttempts < 0 || c.RetryDelay < 0 || c.InitialDelay < 0 {
		return ErrInvalidConfig
	}
	for _, d := range c.Intervals {
		if d < 0 {
			return ErrInvalidConfig
		}
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 100
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

// Scheduler runs each sync kind on its interval. One worker per kind keeps
// runs of the same kind sequential; failed runs are retried with exponential
// backoff.
type Scheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger
	now      func() time.Time

	queues    map[integration.RunKind]chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	active    map[integration.RunKind]bool
	timers    []*time.Timer

	historyMu sync.RWMutex
	history   []*SyncJob
}

// schedulableKinds are the kinds with a worker
var schedulableKinds = []integration.RunKind{
	integration.RunKindOrders,
	integration.RunKindTransactions,
	integration.RunKindPayouts,
}

// New creates a scheduler
func New(cfg Config, executor JobExecutor, logger *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	queues := make(map[integration.RunKind]chan *SyncJob, len(schedulableKinds))
	for _, kind := range schedulableKinds {
		queues[kind] = make(chan *SyncJob, cfg.QueueSize)
	}
	return &Scheduler{
		config:   cfg,
		executor: executor,
		logger:   logger,
		now:      time.Now,
		queues:   queues,
		active:   make(map[integration.RunKind]bool),
		history:  make([]*SyncJob, 0, cfg.MaxHistory),
	}, nil
}

// Start starts the workers and the interval tickers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for kind, queue := range s.queues {
		s.wg.Add(1)
		go s.worker(ctx, kind, queue)
	}
	for kind, interval := range s.config.Intervals {
		if interval <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.tick(ctx, kind, interval)
	}

	s.logger.Info("Sync scheduler started",
		zap.Duration("initial_delay", s.config.InitialDelay),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Int("retry_attempts", s.config.RetryAttempts),
	)
	return nil
}

// Stop cancels running jobs and waits for workers to exit or ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Trigger queues a run of kind now
func (s *Scheduler) Trigger(kind integration.RunKind) (*SyncJob, error) {
	job := NewSyncJob(kind, s.config.RetryAttempts)
	if err := s.submit(job, false); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Scheduler) submit(job *SyncJob, retry bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	queue, ok := s.queues[job.Kind]
	if !ok {
		return ErrUnsupportedKind
	}
	if s.active[job.Kind] && !retry {
		return ErrJobActive
	}

	select {
	case queue <- job:
		s.active[job.Kind] = true
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.Int("retry_count", job.RetryCount),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) tick(ctx context.Context, kind integration.RunKind, interval time.Duration) {
	defer s.wg.Done()

	if s.config.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.InitialDelay):
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Trigger(kind); err != nil && !errors.Is(err, ErrJobActive) {
			s.logger.Warn("Failed to schedule sync run", zap.String("kind", string(kind)), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, kind integration.RunKind, queue <-chan *SyncJob) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-queue:
			s.process(ctx, job)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, job *SyncJob) {
	job.Start(s.now())
	lg := s.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
	)
	lg.Info("Processing sync job", zap.Int("retry_count", job.RetryCount))

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.executor.Execute(jobCtx, job)
	cancel()

	if err != nil {
		lg.Error("Sync job failed", zap.Error(err), zap.Bool("permanent", job.Permanent))
		if job.ShouldRetry() && ctx.Err() == nil {
			s.addToHistory(job.snapshot())
			s.scheduleRetry(job, lg)
			return
		}
	} else {
		lg.Info("Sync job completed",
			zap.String("status", string(job.Status)),
			zap.String("run_id", job.RunID.String()),
			zap.Int("succeeded", job.Counts.Succeeded),
			zap.Int("failed", job.Counts.Failed),
		)
	}

	s.addToHistory(job.snapshot())
	s.mu.Lock()
	s.active[job.Kind] = false
	s.mu.Unlock()
}

// scheduleRetry resubmits job once its backoff has elapsed. The kind stays
// active so ticks do not queue a second job meanwhile.
func (s *Scheduler) scheduleRetry(job *SyncJob, lg *zap.Logger) {
	delay := job.ScheduleRetry(s.now(), s.config.RetryDelay, s.config.MaxRetryDelay)
	lg.Info("Sync job scheduled for retry",
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("delay", delay),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.timers = append(s.timers, time.AfterFunc(delay, func() {
		if err := s.submit(job, true); err != nil {
			lg.Warn("Failed to re-queue sync job", zap.Error(err))
			s.mu.Lock()
			s.active[job.Kind] = false
			s.mu.Unlock()
		}
	}))
}

func (j *SyncJob) snapshot() *SyncJob {
	c := *j
	return &c
}

func (s *Scheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, job)
	if over := len(s.history) - s.config.MaxHistory; over > 0 {
		s.history = s.history[over:]
	}
}

// History returns up to limit finished jobs, newest first
func (s *Scheduler) History(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]*SyncJob, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}
