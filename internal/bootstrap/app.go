package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	app "github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/infrastructure/cache"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/ecommerce"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/migration"
	"github.com/erp/marketsync/internal/infrastructure/persistence"
	"github.com/erp/marketsync/internal/infrastructure/storage"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
	"github.com/erp/marketsync/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// App holds the long-lived components of one process
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *persistence.Database
	Tracer  *telemetry.TracerProvider
	Meter   *telemetry.MeterProvider
	Service *app.SyncService
	Lock    integration.RunLock

	dbMetrics *telemetry.DBMetrics
	closers   []func(ctx context.Context) error
}

// Build connects to every backing service and creates the sync service.
// On error everything opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (a *App, err error) {
	a = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	if a.Tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, a.Tracer.Shutdown)

	if a.Meter, err = telemetry.NewMeterProvider(ctx, cfg.Telemetry, log); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	a.closers = append(a.closers, a.Meter.Shutdown)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	if a.DB, err = persistence.NewDatabaseWithLogger(&cfg.Database, gormLog); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.DB.Close() })
	log.Info("Database connected successfully")

	if err = telemetry.RegisterDBTracing(a.DB.DB, cfg.Telemetry, log); err != nil {
		return nil, err
	}
	if a.dbMetrics, err = telemetry.RegisterDBMetrics(ctx, a.DB.DB, a.Meter, log); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { a.dbMetrics.Stop(); return nil })

	syncMetrics, err := telemetry.NewSyncMetricsFromProvider(a.Meter)
	if err != nil {
		return nil, fmt.Errorf("init sync metrics: %w", err)
	}

	client, err := ecommerce.NewEbayAdapter(EbayConfig(cfg.Marketplace), log)
	if err != nil {
		return nil, fmt.Errorf("init marketplace client: %w", err)
	}

	a.Lock, err = cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log)).CreateLock()
	if err != nil {
		return nil, err
	}
	if c, ok := a.Lock.(io.Closer); ok {
		a.closers = append(a.closers, func(context.Context) error { return c.Close() })
	}

	archive, err := archiveStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	settings, err := Settings(cfg)
	if err != nil {
		return nil, err
	}

	a.Service, err = app.NewSyncService(app.SyncServiceDeps{
		Settings: settings,
		Client:   client,
		Store:    persistence.NewGormStore(a.DB.DB),
		Runs:     persistence.NewGormSyncRunRepository(a.DB.DB),
		Lock:     a.Lock,
		Archive:  archive,
		Resolver: Resolver(cfg),
		Observer: syncMetrics,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func archiveStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (integration.ArchiveStore, error) {
	if !cfg.Storage.Enabled {
		log.Info("Archive storage disabled, keeping archives in memory")
		return storage.NewMemoryArchiveStore(), nil
	}
	store, err := storage.NewS3ArchiveStore(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("init archive storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("init archive storage: %w", err)
	}
	return store, nil
}

// Close releases everything Build opened, newest first
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Migrate applies pending schema migrations on a dedicated connection, since
// the migrator closes the connection it is given
func Migrate(cfg *config.Config, log *zap.Logger) error {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	m, err := migration.New(db, migrations.FS, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer m.Close()
	return m.Up()
}
