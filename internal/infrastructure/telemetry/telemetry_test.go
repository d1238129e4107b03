package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// collect reads all metrics from reader keyed by instrument name
func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestDisabledProviders(t *testing.T) {
	ctx := context.Background()
	cfg := config.TelemetryConfig{Enabled: false, ServiceName: "marketsync"}

	tp, err := NewTracerProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := NewMeterProvider(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{1.5, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, sampler(tt.ratio).Description(), tt.want)
	}
}

func TestStartServiceSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	t.Run("records attributes and error status", func(t *testing.T) {
		ctx, span := StartServiceSpan(context.Background(), "sync", "ORDERS",
			WithAttribute("days", 7),
			WithAttribute("run_id", "abc"))
		assert.NotEmpty(t, GetTraceID(ctx))
		RecordError(span, errors.New("boom"))
		span.End()

		ended := recorder.Ended()
		require.NotEmpty(t, ended)
		got := ended[len(ended)-1]
		assert.Equal(t, "sync.ORDERS", got.Name())
		assert.Equal(t, codes.Error, got.Status().Code)
		assert.Contains(t, got.Attributes(), attribute.Int("days", 7))
		assert.Contains(t, got.Attributes(), attribute.String("service.method", "ORDERS"))
	})

	t.Run("ok status", func(t *testing.T) {
		_, span := StartSpan(context.Background(), "payouts")
		RecordError(span, nil)
		SetOK(span)
		span.End()

		ended := recorder.Ended()
		assert.Equal(t, codes.Ok, ended[len(ended)-1].Status().Code)
	})

	t.Run("no trace id without span", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
	})
}

func TestSyncMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewSyncMetricsFromProvider(mp)
	require.NoError(t, err)
	start := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start.Add(time.Minute) }

	ctx := context.Background()
	m.OrderProcessed(ctx, integration.Outcome{Kind: integration.OutcomeOk, State: "PAID", Draft: true})
	m.OrderProcessed(ctx, integration.Outcome{Kind: integration.OutcomeOk, State: "PAID"})
	m.OrderProcessed(ctx, integration.Outcome{Kind: integration.OutcomeFail, State: "CUSTOMER"})

	finished := start.Add(30 * time.Second)
	m.RunFinished(ctx, &integration.SyncRun{
		Kind:       integration.RunKindOrders,
		Status:     integration.SyncStatusPartial,
		StartedAt:  start,
		FinishedAt: &finished,
		Counts:     integration.Counts{Succeeded: 2, Failed: 1},
	})

	metrics := collect(t, reader)
	orders := metrics["sync_orders_processed_total"]
	assert.Equal(t, int64(2), sumFor(t, orders, attrOutcome.String("OK"), attrState.String("PAID")))
	assert.Equal(t, int64(1), sumFor(t, orders, attrOutcome.String("FAIL"), attrState.String("CUSTOMER")))
	assert.Equal(t, int64(1), sumFor(t, metrics["sync_draft_invoices_total"]))
	assert.Equal(t, int64(1), sumFor(t, metrics["sync_runs_total"],
		attrKind.String("ORDERS"), attrStatus.String("PARTIAL")))

	hist, ok := metrics["sync_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 30.0, hist.DataPoints[0].Sum, 0.001)

	gauge, ok := metrics["sync_last_run_failures"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewDBMetrics(provider.Meter("test"), nil)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "select", "items", time.Millisecond)
	m.RecordQuery(ctx, "", "", time.Second)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, metrics["db_query_total"], attrDBOperation.String("SELECT")))
	assert.Equal(t, int64(1), sumFor(t, metrics["db_query_total"], attrDBOperation.String("UNKNOWN")))
	assert.Equal(t, int64(1), sumFor(t, metrics["db_slow_query_total"], attrDBTable.String("unknown")))
	assert.Equal(t, int64(0), sumFor(t, metrics["db_slow_query_total"], attrDBTable.String("items")))
}

func TestDBMetricsPlugin(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	metrics, err := RegisterDBMetrics(ctx, db, mp, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		metrics.Stop()
		metrics.Stop()
	})

	type widget struct {
		ID   uint
		Name string
	}
	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	var got []widget
	require.NoError(t, db.Find(&got).Error)

	collected := collect(t, reader)
	assert.GreaterOrEqual(t, sumFor(t, collected["db_query_total"], attrDBOperation.String("INSERT")), int64(1))
	assert.GreaterOrEqual(t, sumFor(t, collected["db_query_total"], attrDBOperation.String("SELECT")), int64(1))
}

func TestDetectOperation(t *testing.T) {
	tests := map[string]string{
		"select * from items":   "SELECT",
		"  INSERT INTO x":       "INSERT",
		"update accounts set":   "UPDATE",
		"DELETE FROM sync_runs": "DELETE",
		"CREATE TABLE t":        "OTHER",
		"":                      "UNKNOWN",
	}
	for sql, want := range tests {
		assert.Equal(t, want, detectOperation(sql), sql)
	}
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	assert.NoError(t, RegisterDBTracing(db, config.TelemetryConfig{Enabled: true, DBTraceEnabled: false}, zap.NewNop()))
}
