package integration

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"go.uber.org/zap"
)

// PayoutReconciler records marketplace payouts as journal entries moving money
// from the clearing account to the bank
type PayoutReconciler struct {
	settings Settings
	logger   *zap.Logger
}

// NewPayoutReconciler creates a PayoutReconciler
func NewPayoutReconciler(settings Settings, logger *zap.Logger) *PayoutReconciler {
	return &PayoutReconciler{
		settings: settings,
		logger:   logger,
	}
}

// Reconcile creates one draft journal entry per settled payout, in date order
func (r *PayoutReconciler) Reconcile(
	ctx context.Context,
	store accounting.Store,
	payouts []marketplace.Payout,
	log *integration.SyncLog,
) (integration.Counts, error) {
	var counts integration.Counts

	sorted := slices.Clone(payouts)
	slices.SortStableFunc(sorted, func(a, b marketplace.Payout) int {
		return a.Date.Compare(b.Date)
	})

	for _, p := range sorted {
		outcome, err := r.reconcileOne(ctx, store, p, log)
		if err != nil && !integration.IsSyncError(err) {
			return counts, err
		}
		if err != nil {
			log.Error("Payout reconciliation failed", "", err.Error())
			r.logger.Warn("Payout failed", zap.String("payout_id", p.PayoutID), zap.Error(err))
			outcome = integration.Fail(p.PayoutID, integration.OrderStateFetched, err)
		}
		counts.Record(outcome)
	}
	return counts, nil
}

func (r *PayoutReconciler) reconcileOne(
	ctx context.Context,
	store accounting.Store,
	p marketplace.Payout,
	log *integration.SyncLog,
) (integration.Outcome, error) {
	if p.Status == marketplace.PayoutStatusReversed {
		return integration.Outcome{}, integration.SyncErrorf("", "reversed payouts are not supported").
			With("payout", p.PayoutID)
	}
	if !p.Status.IsSettled() {
		return integration.Skip(p.PayoutID, integration.OrderStateFetched, "payout "+string(p.Status)), nil
	}

	date := p.SettlementDate()
	exists, err := store.JournalEntries().Exists(ctx, accounting.JournalKindPayout, p.PayoutID, date)
	if err != nil {
		return integration.Outcome{}, err
	}
	if exists {
		log.Info("Payout journal entry already exists", "", p.PayoutID)
		return integration.Ok(p.PayoutID, integration.OrderStateFetched), nil
	}

	if err := checkPayoutCurrency(ctx, store, r.settings, p.Amount.Currency); err != nil {
		return integration.Outcome{}, integration.SyncErrorf("", "payout currency mismatch").
			With("payout", p.PayoutID).
			Wrap(err)
	}

	je, err := accounting.NewTransferEntry(
		accounting.JournalKindPayout,
		"eBay Managed Payments payout "+date.Format(time.DateOnly),
		date, p.PayoutID, r.settings.ClearingAccount, r.settings.PayoutAccount, p.Amount.Value)
	if err != nil {
		return integration.Outcome{}, integration.SyncErrorf("", "invalid payout").With("payout", p.PayoutID).Wrap(err)
	}
	je.Remark = fmt.Sprintf("eBay payout %s of %s %s (%s) to %s, last four digits %s",
		p.PayoutID, p.Amount.Currency, p.Amount.Value.StringFixed(2), p.Status,
		p.Instrument.Nickname, p.Instrument.LastFourDigits)

	err = store.Transaction(ctx, func(tx accounting.Store) error {
		return tx.JournalEntries().Create(ctx, je)
	})
	if err != nil {
		return integration.Outcome{}, err
	}
	log.Info("Adding payout journal entry", "", je.Name)
	r.logger.Info("Payout journal entry created",
		zap.String("payout_id", p.PayoutID),
		zap.String("entry", je.Name))
	return integration.Ok(p.PayoutID, integration.OrderStateFetched), nil
}
