package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	attrDBOperation = attribute.Key("db.operation")
	attrDBTable     = attribute.Key("db.table")
	attrDBState     = attribute.Key("state")
)

var dbDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultPoolStatsInterval  = 15 * time.Second
)

// RegisterDBTracing installs otelgorm on db when database tracing is enabled.
// Query variables stay out of spans unless DBLogFullSQL is set.
func RegisterDBTracing(db *gorm.DB, cfg config.TelemetryConfig, logger *zap.Logger) error {
	if !cfg.Enabled || !cfg.DBTraceEnabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
	if !cfg.DBLogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	logger.Info("Database tracing enabled", zap.Bool("log_full_sql", cfg.DBLogFullSQL))
	return nil
}

// DBMetrics records query latency and connection pool usage
type DBMetrics struct {
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	poolConns      *Gauge

	slowThreshold time.Duration
	interval      time.Duration
	logger        *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBMetrics creates the database instruments on meter
func NewDBMetrics(meter metric.Meter, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	queryTotal, err := NewCounter(meter, "db_query_total", "Database queries by operation", "{query}")
	if err != nil {
		return nil, err
	}
	queryDuration, err := NewHistogram(meter, "db_query_duration_seconds",
		"Database query latency in seconds", "s", dbDurationBuckets...)
	if err != nil {
		return nil, err
	}
	slowQueryTotal, err := NewCounter(meter, "db_slow_query_total", "Slow database queries by table", "{query}")
	if err != nil {
		return nil, err
	}
	poolConns, err := NewGauge(meter, "db_pool_connections", "Pool connections by state", "{connection}")
	if err != nil {
		return nil, err
	}

	return &DBMetrics{
		queryTotal:     queryTotal,
		queryDuration:  queryDuration,
		slowQueryTotal: slowQueryTotal,
		poolConns:      poolConns,
		slowThreshold:  defaultSlowQueryThreshold,
		interval:       defaultPoolStatsInterval,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}, nil
}

// RecordQuery records one query
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, d time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}
	m.queryTotal.Inc(ctx, attrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, d, attrDBOperation.String(operation))
	if d > m.slowThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, attrDBTable.String(table))
	}
}

// StartPoolStats samples sqlDB's pool until ctx is done or Stop is called
func (m *DBMetrics) StartPoolStats(ctx context.Context, sqlDB *sql.DB) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			m.recordPool(ctx, sqlDB.Stats())
			select {
			case <-ticker.C:
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *DBMetrics) recordPool(ctx context.Context, stats sql.DBStats) {
	m.poolConns.Record(ctx, int64(stats.Idle), attrDBState.String("idle"))
	m.poolConns.Record(ctx, int64(stats.InUse), attrDBState.String("in_use"))
	m.poolConns.Record(ctx, int64(stats.MaxOpenConnections), attrDBState.String("max"))
}

// Stop ends pool sampling. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// ---------------------------------------------------------------------------
// GORM plugin
// ---------------------------------------------------------------------------

type dbMetricsStartKey struct{}

// DBMetricsPlugin is a GORM plugin feeding DBMetrics
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

// NewDBMetricsPlugin creates the plugin
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name returns the plugin name
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

// Initialize registers before and after callbacks on every processor
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tx.Statement.Context = context.WithValue(ctx, dbMetricsStartKey{}, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			op := operation
			if op == "" {
				op = detectOperation(tx.Statement.SQL.String())
			}
			p.record(tx, op)
		}
	}

	cb := db.Callback()
	registrations := []struct {
		name string
		err  error
	}{
		{"before_create", cb.Create().Before("gorm:create").Register("db_metrics:before_create", before)},
		{"before_query", cb.Query().Before("gorm:query").Register("db_metrics:before_query", before)},
		{"before_update", cb.Update().Before("gorm:update").Register("db_metrics:before_update", before)},
		{"before_delete", cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", before)},
		{"before_row", cb.Row().Before("gorm:row").Register("db_metrics:before_row", before)},
		{"before_raw", cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", before)},
		{"after_create", cb.Create().After("gorm:create").Register("db_metrics:after_create", after("INSERT"))},
		{"after_query", cb.Query().After("gorm:query").Register("db_metrics:after_query", after("SELECT"))},
		{"after_update", cb.Update().After("gorm:update").Register("db_metrics:after_update", after("UPDATE"))},
		{"after_delete", cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", after("DELETE"))},
		{"after_row", cb.Row().After("gorm:row").Register("db_metrics:after_row", after(""))},
		{"after_raw", cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", after(""))},
	}
	for _, r := range registrations {
		if r.err != nil {
			return fmt.Errorf("register db_metrics:%s: %w", r.name, r.err)
		}
	}
	return nil
}

func (p *DBMetricsPlugin) record(tx *gorm.DB, operation string) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(dbMetricsStartKey{}).(time.Time)
	if !ok {
		return
	}
	p.metrics.RecordQuery(ctx, operation, tx.Statement.Table, time.Since(start))
}

func detectOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	default:
		return "OTHER"
	}
}

// RegisterDBMetrics installs the metrics plugin and starts pool sampling
func RegisterDBMetrics(ctx context.Context, db *gorm.DB, mp *MeterProvider, logger *zap.Logger) (*DBMetrics, error) {
	metrics, err := NewDBMetrics(mp.Meter("marketsync/db"), logger)
	if err != nil {
		return nil, err
	}
	if err := db.Use(NewDBMetricsPlugin(metrics)); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		metrics.StartPoolStats(ctx, sqlDB)
	}
	return metrics, nil
}
