package telemetry

import (
	"context"
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const syncMeterName = "marketsync/sync"

var (
	attrOutcome = attribute.Key("outcome")
	attrState   = attribute.Key("state")
	attrKind    = attribute.Key("kind")
	attrStatus  = attribute.Key("status")
)

// runDurationBuckets spans quick payout passes to multi-page order backfills
var runDurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}

// SyncMetrics records per-order outcomes and per-run totals
type SyncMetrics struct {
	ordersProcessed *Counter
	draftInvoices   *Counter
	runsTotal       *Counter
	runDuration     *Histogram
	lastRunFailures *Gauge
	now             func() time.Time
}

// NewSyncMetrics creates the sync instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	orders, err := NewCounter(meter, "sync_orders_processed_total",
		"Orders processed by outcome and last reached state", "{order}")
	if err != nil {
		return nil, err
	}
	drafts, err := NewCounter(meter, "sync_draft_invoices_total",
		"Invoices left as drafts with an outstanding balance", "{invoice}")
	if err != nil {
		return nil, err
	}
	runs, err := NewCounter(meter, "sync_runs_total",
		"Finished sync runs by kind and status", "{run}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, "sync_run_duration_seconds",
		"Wall time of finished sync runs", "s", runDurationBuckets...)
	if err != nil {
		return nil, err
	}
	failures, err := NewGauge(meter, "sync_last_run_failures",
		"Failed records in the latest run of each kind", "{record}")
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		ordersProcessed: orders,
		draftInvoices:   drafts,
		runsTotal:       runs,
		runDuration:     duration,
		lastRunFailures: failures,
		now:             time.Now,
	}, nil
}

// NewSyncMetricsFromProvider creates the sync instruments on the provider's meter
func NewSyncMetricsFromProvider(mp *MeterProvider) (*SyncMetrics, error) {
	return NewSyncMetrics(mp.Meter(syncMeterName))
}

// OrderProcessed counts one order outcome
func (m *SyncMetrics) OrderProcessed(ctx context.Context, outcome integration.Outcome) {
	m.ordersProcessed.Inc(ctx,
		attrOutcome.String(outcome.Kind.String()),
		attrState.String(string(outcome.State)),
	)
	if outcome.Draft {
		m.draftInvoices.Inc(ctx)
	}
}

// RunFinished records the run's status, duration and failure count
func (m *SyncMetrics) RunFinished(ctx context.Context, run *integration.SyncRun) {
	kind := attrKind.String(string(run.Kind))
	m.runsTotal.Inc(ctx, kind, attrStatus.String(string(run.Status)))

	end := m.now()
	if run.FinishedAt != nil {
		end = *run.FinishedAt
	}
	m.runDuration.RecordDuration(ctx, end.Sub(run.StartedAt), kind)
	m.lastRunFailures.Record(ctx, int64(run.Counts.Failed), kind)
}
