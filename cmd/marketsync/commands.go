package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	app "github.com/erp/marketsync/internal/application/integration"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/google/uuid"
)

// syncService is the part of the sync service the commands call
type syncService interface {
	RunOrderSync(ctx context.Context, req app.RunRequest) (*app.RunResult, error)
	RunTransactionSync(ctx context.Context, req app.TransactionRunRequest) (*app.RunResult, error)
	RunPayoutSync(ctx context.Context, req app.RunRequest) (*app.RunResult, error)
	ArchiveTransactions(ctx context.Context, req app.ArchiveRequest) (*app.RunResult, error)
	GetRun(ctx context.Context, id uuid.UUID) (*app.RunResult, error)
	RecentRuns(ctx context.Context, kind integration.RunKind, limit int) ([]app.RunResult, error)
}

var errUsage = errors.New("usage")

// runCommand executes one subcommand and writes its report to out
func runCommand(ctx context.Context, svc syncService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	days := fs.Int("days", 0, "Fetch window in days (0 uses the configured default)")

	switch cmd {
	case "orders":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return report(out)(svc.RunOrderSync(ctx, app.RunRequest{Days: optionalDays(*days)}))

	case "transactions":
		notToday := fs.String("not-today", "", "true or false; overrides sync.skip_today")
		if err := fs.Parse(args); err != nil {
			return err
		}
		req := app.TransactionRunRequest{Days: optionalDays(*days)}
		if *notToday != "" {
			v := strings.EqualFold(*notToday, "true")
			req.NotToday = &v
		}
		return report(out)(svc.RunTransactionSync(ctx, req))

	case "payouts":
		if err := fs.Parse(args); err != nil {
			return err
		}
		return report(out)(svc.RunPayoutSync(ctx, app.RunRequest{Days: optionalDays(*days)}))

	case "archive":
		start := fs.String("start", "", "First date to archive (YYYY-MM-DD)")
		end := fs.String("end", "", "Last date to archive (YYYY-MM-DD), defaults to start")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *end == "" {
			end = start
		}
		from, err := time.Parse(time.DateOnly, *start)
		if err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
		to, err := time.Parse(time.DateOnly, *end)
		if err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
		return report(out)(svc.ArchiveTransactions(ctx, app.ArchiveRequest{StartDate: from, EndDate: to}))

	case "runs":
		kind := fs.String("kind", string(integration.RunKindOrders), "ORDERS, TRANSACTIONS, PAYOUTS or ARCHIVE")
		limit := fs.Int("limit", 10, "Number of runs to list")
		if err := fs.Parse(args); err != nil {
			return err
		}
		k := integration.RunKind(strings.ToUpper(*kind))
		if !k.IsValid() {
			return fmt.Errorf("unknown run kind %q", *kind)
		}
		runs, err := svc.RecentRuns(ctx, k, *limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %-8s %s\n", r.RunID, r.StartedAt.Format(time.RFC3339), r.Status, r.Summary())
		}
		return nil

	case "show":
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("run ID required. Usage: marketsync show <run-id>")
		}
		id, err := uuid.Parse(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("invalid run ID: %w", err)
		}
		return report(out)(svc.GetRun(ctx, id))

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func optionalDays(days int) *int {
	if days <= 0 {
		return nil
	}
	return &days
}

// report returns a printer for the run summary and its log. A failed run
// still prints what was logged before the error.
func report(out io.Writer) func(*app.RunResult, error) error {
	return func(result *app.RunResult, err error) error {
		printRun(out, result)
		return err
	}
}

func printRun(out io.Writer, result *app.RunResult) {
	if result != nil {
		fmt.Fprintf(out, "Run %s (%s): %s\n", result.RunID, result.Status, result.Summary())
		for _, e := range result.Log {
			line := fmt.Sprintf("  %s %-7s %s", e.Time.Format(time.TimeOnly), e.Level, e.Change)
			if e.OrderID != "" {
				line += " [" + e.OrderID + "]"
			}
			if e.Detail != "" {
				line += ": " + e.Detail
			}
			fmt.Fprintln(out, line)
		}
	}
}
