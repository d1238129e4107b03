package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/marketsync/internal/bootstrap"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
	"github.com/erp/marketsync/internal/interfaces/http/handler"
	"github.com/erp/marketsync/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	migrate := flag.Bool("migrate", false, "Apply pending migrations before serving")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting marketsync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrate {
		if err := bootstrap.Migrate(cfg, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	a, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Error("Error during cleanup", zap.Error(err))
		}
	}()

	// Periodic sync runs
	var jobs handler.JobQueue
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.FromConfig(cfg.Scheduler), scheduler.NewServiceExecutor(a.Service, log), log)
		if err != nil {
			log.Fatal("Failed to create scheduler", zap.Error(err))
		}
		if err := sched.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		jobs = sched
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Env:            cfg.App.Env,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, log)
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", a.DB.Ping)
	router.NewRouter(engine).
		Register(handler.NewSyncHandler(a.Service, jobs)).
		Register(systemHandler).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler stop failed", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
