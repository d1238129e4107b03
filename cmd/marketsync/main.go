package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/marketsync/internal/bootstrap"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"github.com/erp/marketsync/internal/infrastructure/logger"
	"go.uber.org/zap"
)

func main() {
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); defaults to log.level")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log, err := logger.New(logger.CLIConfig(cfg.Log.Level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize", zap.Error(err))
	}

	err = runCommand(ctx, a.Service, flag.Args(), os.Stdout)
	if closeErr := a.Close(context.Background()); closeErr != nil {
		log.Warn("Error during cleanup", zap.Error(closeErr))
	}
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	case err != nil:
		log.Error("Command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`marketsync: reconcile eBay sales into the ERP

Usage:
  marketsync [flags] <command> [arguments]

Commands:
  orders [-days n]                          Sync orders into customers, invoices and refunds
  transactions [-days n] [-not-today b]     Book fee documents and marketplace transfers
  payouts [-days n]                         Book payouts to the bank account
  archive -start YYYY-MM-DD [-end ...]      Archive transactions and payouts by date
  runs [-kind ORDERS] [-limit n]            List recent runs
  show <run-id>                             Print one run with its log

Flags:
  -log-level string   Log level: debug, info, warn, error

Configuration is read from config.toml and MARKETSYNC_* environment variables.`)
}
