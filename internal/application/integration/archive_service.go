package integration

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"go.uber.org/zap"
)

// ArchiveService copies each settlement date's transactions and payouts to
// the archive store
type ArchiveService struct {
	client  marketplace.Client
	store   accounting.Store
	archive integration.ArchiveStore
	logger  *zap.Logger
}

// NewArchiveService creates an ArchiveService
func NewArchiveService(client marketplace.Client, store accounting.Store, archive integration.ArchiveStore, logger *zap.Logger) *ArchiveService {
	return &ArchiveService{
		client:  client,
		store:   store,
		archive: archive,
		logger:  logger,
	}
}

func utcDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Archive writes one archive object per date in [start, end]. Both dates must
// be before today. Dates without records have their object removed.
func (s *ArchiveService) Archive(ctx context.Context, start, end, now time.Time, log *integration.SyncLog) (integration.Counts, error) {
	var counts integration.Counts
	start, end = utcDate(start), utcDate(end)
	today := utcDate(now)
	if end.Before(start) {
		return counts, fmt.Errorf("%w: end date %s is before start date %s", shared.ErrInvalidInput,
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if !end.Before(today) {
		return counts, fmt.Errorf("%w: end date %s must be before today", shared.ErrInvalidInput, end.Format(time.DateOnly))
	}

	until := end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	txns, err := s.client.FetchTransactions(ctx, start, until)
	if err != nil {
		return counts, integration.NewFatalError("fetch transactions", err)
	}
	payouts, err := s.client.FetchPayouts(ctx, start, until)
	if err != nil {
		return counts, integration.NewFatalError("fetch payouts", err)
	}

	slices.SortStableFunc(txns, func(a, b marketplace.Transaction) int { return a.Date.Compare(b.Date) })
	slices.SortStableFunc(payouts, func(a, b marketplace.Payout) int { return a.Date.Compare(b.Date) })

	archives := make(map[time.Time]*integration.DailyArchive)
	day := func(d time.Time) *integration.DailyArchive {
		a, ok := archives[d]
		if !ok {
			a = &integration.DailyArchive{Date: d}
			archives[d] = a
		}
		return a
	}
	for _, t := range txns {
		codes, err := s.itemCodes(ctx, t)
		if err != nil {
			return counts, err
		}
		a := day(t.SettlementDate())
		a.Transactions = append(a.Transactions, integration.ArchivedTransaction{Transaction: t, ItemCodes: codes})
	}
	for _, p := range payouts {
		a := day(p.SettlementDate())
		a.Payouts = append(a.Payouts, p)
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format(time.DateOnly)
		a := day(d)
		if a.IsEmpty() {
			if err := s.archive.Delete(ctx, d); err != nil {
				return counts, err
			}
			log.Info("No records to archive", "", dateStr)
			counts.Record(integration.Skip("", integration.OrderStateFetched, "no records on "+dateStr))
			continue
		}
		if err := s.archive.Put(ctx, a); err != nil {
			return counts, err
		}
		log.Info("Archiving transactions", "", dateStr)
		s.logger.Info("Archived settlement date",
			zap.String("date", dateStr),
			zap.Int("transactions", len(a.Transactions)),
			zap.Int("payouts", len(a.Payouts)))
		counts.Record(integration.Ok("", integration.OrderStateFetched))
	}
	return counts, nil
}

// itemCodes lists the distinct item codes a transaction was invoiced against
func (s *ArchiveService) itemCodes(ctx context.Context, t marketplace.Transaction) ([]string, error) {
	var codes []string
	add := func(cs ...string) {
		for _, c := range cs {
			if c != "" && !slices.Contains(codes, c) {
				codes = append(codes, c)
			}
		}
	}

	if t.OrderID != "" {
		for _, line := range t.OrderLineItems {
			found, err := s.store.Invoices().FindItemCodes(ctx, t.OrderID, line.LineItemID, "")
			if err != nil {
				return nil, err
			}
			add(found...)
		}
	}
	for _, itemID := range t.ReferencesOfType(marketplace.ReferenceTypeItemID) {
		if t.OrderID != "" {
			found, err := s.store.Invoices().FindItemCodes(ctx, t.OrderID, "", itemID)
			if err != nil {
				return nil, err
			}
			add(found...)
			continue
		}
		items, err := s.store.Items().FindByListingID(ctx, itemID)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			add(it.Code)
		}
	}
	slices.Sort(codes)
	return codes, nil
}
