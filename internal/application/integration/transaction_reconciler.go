package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionReconciler turns marketplace transactions into one fee document
// per settlement date and transfer journal entries
type TransactionReconciler struct {
	settings Settings
	client   marketplace.Client
	logger   *zap.Logger
}

// NewTransactionReconciler creates a TransactionReconciler
func NewTransactionReconciler(settings Settings, client marketplace.Client, logger *zap.Logger) *TransactionReconciler {
	return &TransactionReconciler{
		settings: settings,
		client:   client,
		logger:   logger,
	}
}

// ReconcileOptions controls which transactions are considered
type ReconcileOptions struct {
	// SkipToday leaves transactions dated today for a later run
	SkipToday bool
	Now       time.Time
}

// orderCache memoizes marketplace order lookups within one reconcile pass
type orderCache struct {
	client marketplace.Client
	orders map[string]*marketplace.Order
}

func (c *orderCache) get(ctx context.Context, orderID string) (*marketplace.Order, error) {
	if o, ok := c.orders[orderID]; ok {
		return o, nil
	}
	o, err := c.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	c.orders[orderID] = o
	return o, nil
}

// Reconcile processes the transactions one settlement date at a time. A sync
// error fails that date only; any other error aborts the pass.
func (r *TransactionReconciler) Reconcile(
	ctx context.Context,
	store accounting.Store,
	txns []marketplace.Transaction,
	opts ReconcileOptions,
	log *integration.SyncLog,
) (integration.Counts, error) {
	var counts integration.Counts

	sorted := slices.Clone(txns)
	slices.SortStableFunc(sorted, func(a, b marketplace.Transaction) int {
		return a.Date.Compare(b.Date)
	})

	today := opts.Now.UTC().Truncate(24 * time.Hour)
	byDate := make(map[time.Time][]marketplace.Transaction)
	for _, t := range sorted {
		skip, reason, err := r.skip(ctx, store, t, opts.SkipToday, today)
		if err != nil {
			return counts, err
		}
		if skip {
			if reason == skipLinked {
				log.Info("Fee transaction already exists", t.OrderID, t.TransactionID)
			}
			r.logger.Debug("Transaction skipped",
				zap.String("transaction_id", t.TransactionID),
				zap.String("reason", reason))
			counts.Skipped++
			continue
		}
		date := t.SettlementDate()
		byDate[date] = append(byDate[date], t)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, time.Time.Compare)

	cache := &orderCache{client: r.client, orders: make(map[string]*marketplace.Order)}
	for _, date := range dates {
		outcome, err := r.reconcileDate(ctx, store, date, byDate[date], cache, log)
		if err != nil && !integration.IsSyncError(err) {
			return counts, err
		}
		if err != nil {
			log.Error("Transaction reconciliation failed", "", err.Error())
			r.logger.Warn("Transaction date failed",
				zap.Time("date", date),
				zap.Error(err))
			counts.Record(integration.Fail("", integration.OrderStateFetched, err))
			continue
		}
		counts.Record(outcome)
	}
	return counts, nil
}

func (r *TransactionReconciler) skip(
	ctx context.Context,
	store accounting.Store,
	t marketplace.Transaction,
	skipToday bool,
	today time.Time,
) (bool, string, error) {
	switch t.Status {
	case marketplace.TransactionStatusFailed:
		return true, "failed", nil
	case marketplace.TransactionStatusFundsOnHold:
		return true, "funds on hold", nil
	}
	if skipToday && t.SettlementDate().Equal(today) {
		return true, "today", nil
	}
	if t.TransactionType == marketplace.TransactionTypeTransfer {
		return false, "", nil
	}
	linked, err := store.FeeDocuments().IsTransactionLinked(ctx, t.TransactionID)
	if err != nil {
		return false, "", err
	}
	if linked {
		return true, skipLinked, nil
	}
	return false, "", nil
}

const skipLinked = "already linked"

// reconcileDate builds and stores the fee document of one settlement date and
// posts its transfers
func (r *TransactionReconciler) reconcileDate(
	ctx context.Context,
	store accounting.Store,
	date time.Time,
	txns []marketplace.Transaction,
	cache *orderCache,
	log *integration.SyncLog,
) (integration.Outcome, error) {
	dateStr := date.Format(time.DateOnly)
	doc := accounting.NewFeeDocument("eBay transactions "+dateStr, r.settings.FeeSupplier, date, r.settings.HomeCurrency)
	doc.CashAccount = r.settings.ClearingAccount
	doc.ModeOfPayment = r.settings.ModeOfPayment()
	if r.settings.FeeVATRate.IsPositive() {
		doc.TaxRate = r.settings.FeeVATRate.Mul(hundred)
		doc.TaxAccount = r.settings.FeeTaxAccount
	}

	var transfers []marketplace.Transaction
	for _, t := range txns {
		switch {
		case t.TransactionType.IsOrderFee():
			transfer, err := r.addOrderFees(ctx, store, doc, t, cache)
			if err != nil {
				return integration.Outcome{}, err
			}
			if transfer {
				transfers = append(transfers, t)
			}
		case t.TransactionType.IsCharge():
			if err := r.addCharge(ctx, store, doc, t, cache); err != nil {
				return integration.Outcome{}, err
			}
		case t.TransactionType == marketplace.TransactionTypeTransfer:
			transfers = append(transfers, t)
		default:
			return integration.Outcome{}, integration.NewFatalError(
				fmt.Sprintf("transaction %s", t.TransactionID),
				fmt.Errorf("%w: %q", marketplace.ErrUnknownTransactionType, t.TransactionType))
		}
	}

	err := store.Transaction(ctx, func(tx accounting.Store) error {
		if len(doc.Items) > 0 {
			doc.FinalizeSign()
			if err := tx.FeeDocuments().Create(ctx, doc); err != nil {
				return err
			}
			log.Info("Adding fee document", "", doc.Name)
			r.logger.Info("Fee document created",
				zap.String("document", doc.Name),
				zap.String("date", dateStr),
				zap.Int("items", len(doc.Items)),
				zap.Bool("debit_note", doc.IsReturn))
		}
		for _, t := range transfers {
			if err := postTransfer(ctx, tx, r.settings, t, log); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return integration.Outcome{}, err
	}
	if len(doc.Items) == 0 && len(transfers) == 0 {
		return integration.Skip("", integration.OrderStateFetched, "no fee items on "+dateStr), nil
	}
	return integration.Ok("", integration.OrderStateFetched), nil
}

// addOrderFees adds one item per order line of a SALE or REFUND. It reports
// whether the transaction must be posted as a transfer instead.
func (r *TransactionReconciler) addOrderFees(
	ctx context.Context,
	store accounting.Store,
	doc *accounting.FeeDocument,
	t marketplace.Transaction,
	cache *orderCache,
) (bool, error) {
	if !t.HasFees() {
		recoup := t.TransactionType == marketplace.TransactionTypeRefund &&
			strings.HasSuffix(t.TransactionID, marketplace.CardChargebackRecoupSuffix)
		return recoup, nil
	}

	orderID := t.OrderID
	currency := t.Amount.OriginalCurrency()

	lineFees := make(map[string]decimal.Decimal, len(t.OrderLineItems))
	lineSum := decimal.Zero
	for _, line := range t.OrderLineItems {
		for _, f := range line.Fees {
			if f.Amount.Currency != currency {
				return false, integration.SyncErrorf(orderID, "fee currency mismatch").
					With("transaction", t.TransactionID).With("fee_currency", f.Amount.Currency).With("currency", currency)
			}
			if f.Amount.IsConverted() {
				return false, integration.SyncErrorf(orderID, "converted fee").
					With("transaction", t.TransactionID).With("fee_type", f.FeeType)
			}
		}
		fee := line.LineFeeTotal()
		lineFees[line.LineItemID] = lineFees[line.LineItemID].Add(fee)
		lineSum = lineSum.Add(fee)
	}

	total := decimal.Zero
	if t.TotalFeeAmount != nil {
		total = t.TotalFeeAmount.Value
	}
	if !valueobject.RoundMoney(lineSum).Equal(total) {
		return false, integration.SyncErrorf(orderID, "fee lines do not add up").
			With("transaction", t.TransactionID).With("line_sum", lineSum).With("total_fee", total)
	}
	if len(lineFees) == 0 || total.IsZero() {
		return false, nil
	}

	homeFees := lineFees
	exchangeRate := one
	if t.Amount.IsConverted() {
		if t.TotalFeeAmount.Currency != currency {
			return false, integration.SyncErrorf(orderID, "fee total currency mismatch").
				With("transaction", t.TransactionID).With("fee_currency", t.TotalFeeAmount.Currency).With("currency", currency)
		}
		if t.Amount.ConvertedFromValue == nil {
			return false, integration.SyncErrorf(orderID, "converted amount missing").
				With("transaction", t.TransactionID)
		}
		// The rate must map the reported foreign amount onto the reported home one
		home, foreign := t.Amount.Value, *t.Amount.ConvertedFromValue
		rate, err := valueobject.ReconcileRate(t.Amount.Rate(), home, foreign, valueobject.MoneyPlaces)
		if err != nil {
			return false, integration.NewSyncError(orderID, "cannot reconcile fee exchange rate").
				With("transaction", t.TransactionID).
				With("home", home).
				With("foreign", foreign).
				With("rate", t.Amount.Rate()).
				Wrap(err)
		}
		exchangeRate = rate
		homeTotal := valueobject.RoundMoney(total.Mul(exchangeRate))
		split, err := valueobject.Allocate(lineFees, homeTotal, valueobject.MoneyPlaces)
		if err != nil {
			return false, integration.NewSyncError(orderID, "cannot split fees").
				With("transaction", t.TransactionID).
				With("home", homeTotal).
				Wrap(err)
		}
		homeFees = split
	}

	mult := t.BookingEntry.Multiplier()
	for _, line := range t.OrderLineItems {
		fee, ok := homeFees[line.LineItemID]
		if !ok {
			continue
		}
		delete(homeFees, line.LineItemID)

		sku, err := r.lineSKU(ctx, store, orderID, line.LineItemID, cache)
		if err != nil {
			return false, err
		}
		doc.AddItem(accounting.FeeItem{
			ItemCode:            r.settings.FeeItemCode,
			Description:         fmt.Sprintf("eBay %s fees: order %s, SKU %s", strings.ToLower(string(t.TransactionType)), orderID, sku),
			Qty:                 1,
			Rate:                fee.Mul(mult).Neg(),
			ExpenseAccount:      r.settings.FeeExpenseAccount,
			TransactionID:       t.TransactionID,
			TransactionDate:     t.Date,
			OrderID:             orderID,
			LineItemID:          line.LineItemID,
			SKU:                 sku,
			TransactionCurrency: currency,
			ExchangeRate:        exchangeRate,
			Buyer:               t.BuyerUsername,
		})
	}
	return false, nil
}

// lineSKU finds the item code of an order line, from its invoice first and
// from the marketplace order otherwise
func (r *TransactionReconciler) lineSKU(
	ctx context.Context,
	store accounting.Store,
	orderID, lineItemID string,
	cache *orderCache,
) (string, error) {
	codes, err := store.Invoices().FindItemCodes(ctx, orderID, lineItemID, "")
	if err != nil {
		return "", err
	}
	switch len(codes) {
	case 1:
		return codes[0], nil
	case 0:
	default:
		return "", integration.SyncErrorf(orderID, "multiple item codes for line %s", lineItemID).
			With("codes", strings.Join(codes, ", "))
	}

	order, err := cache.get(ctx, orderID)
	if err != nil {
		return "", integration.SyncErrorf(orderID, "cannot fetch order").Wrap(err)
	}
	for _, li := range order.LineItems {
		if li.LineItemID == lineItemID {
			return li.SKU, nil
		}
	}
	return "", integration.SyncErrorf(orderID, "line %s not on order", lineItemID)
}

// addCharge adds the single item of a non-order charge
func (r *TransactionReconciler) addCharge(
	ctx context.Context,
	store accounting.Store,
	doc *accounting.FeeDocument,
	t marketplace.Transaction,
	cache *orderCache,
) error {
	if len(t.OrderLineItems) > 0 {
		return integration.SyncErrorf(t.OrderID, "%s %s has order lines", t.TransactionType, t.TransactionID)
	}

	itemIDs := t.ReferencesOfType(marketplace.ReferenceTypeItemID)
	if len(itemIDs) > 1 {
		return integration.SyncErrorf(t.OrderID, "multiple item references").
			With("transaction", t.TransactionID).With("items", strings.Join(itemIDs, ", "))
	}
	itemID := ""
	if len(itemIDs) == 1 {
		itemID = itemIDs[0]
	}

	orderIDs := t.ReferencesOfType(marketplace.ReferenceTypeOrderID)
	if t.OrderID != "" && !slices.Contains(orderIDs, t.OrderID) {
		orderIDs = append(orderIDs, t.OrderID)
	}
	if len(orderIDs) > 1 {
		return integration.SyncErrorf(t.OrderID, "multiple order references").
			With("transaction", t.TransactionID).With("orders", strings.Join(orderIDs, ", "))
	}
	orderID := ""
	if len(orderIDs) == 1 {
		orderID = orderIDs[0]
	}

	sku, hold, err := r.chargeSKU(ctx, store, t, orderID, itemID, cache)
	if err != nil {
		return err
	}
	if hold {
		doc.HoldForReview = true
	}

	if t.Amount.Currency != r.settings.HomeCurrency {
		return integration.SyncErrorf(orderID, "charge is not in %s", r.settings.HomeCurrency).
			With("transaction", t.TransactionID).With("currency", t.Amount.Currency)
	}

	desc := fmt.Sprintf("eBay %s", strings.ToLower(strings.ReplaceAll(string(t.TransactionType), "_", " ")))
	if t.FeeType != "" {
		desc += ": " + t.FeeType
	}
	if t.Memo != "" {
		desc += " (" + t.Memo + ")"
	}
	doc.AddItem(accounting.FeeItem{
		ItemCode:            r.settings.FeeItemCode,
		Description:         desc,
		Qty:                 1,
		Rate:                t.Amount.Value.Mul(t.BookingEntry.Multiplier()),
		ExpenseAccount:      r.settings.FeeExpenseAccount,
		TransactionID:       t.TransactionID,
		TransactionDate:     t.Date,
		OrderID:             orderID,
		SKU:                 sku,
		TransactionCurrency: t.Amount.Currency,
		ExchangeRate:        one,
		Buyer:               t.BuyerUsername,
	})
	return nil
}

// chargeSKU identifies the item a charge belongs to. Charges that belong to an
// order or the account as a whole have no item. hold is set for charges billed
// against a marketplace invoice, whose VAT treatment needs a manual check.
func (r *TransactionReconciler) chargeSKU(
	ctx context.Context,
	store accounting.Store,
	t marketplace.Transaction,
	orderID, itemID string,
	cache *orderCache,
) (sku string, hold bool, err error) {
	switch {
	case itemID != "" && orderID != "":
		codes, err := store.Invoices().FindItemCodes(ctx, orderID, "", itemID)
		if err != nil {
			return "", false, err
		}
		if len(codes) == 1 {
			return codes[0], false, nil
		}
		if len(codes) > 1 {
			return "", false, integration.SyncErrorf(orderID, "multiple item codes for listing %s", itemID).
				With("codes", strings.Join(codes, ", "))
		}
		order, err := cache.get(ctx, orderID)
		if err != nil {
			return "", false, integration.SyncErrorf(orderID, "cannot fetch order").Wrap(err)
		}
		for _, li := range order.LineItems {
			if li.LegacyItemID == itemID {
				return li.SKU, false, nil
			}
		}
		return "", false, integration.SyncErrorf(orderID, "listing %s not on order", itemID)

	case itemID != "":
		items, err := store.Items().FindByListingID(ctx, itemID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return "", false, err
		}
		switch len(items) {
		case 1:
			return items[0].Code, false, nil
		case 0:
			return "", false, integration.SyncErrorf("", "no item for listing %s", itemID).With("transaction", t.TransactionID)
		default:
			return "", false, integration.SyncErrorf("", "Too many hits for listing %s", itemID).With("transaction", t.TransactionID)
		}

	case orderID != "" && (t.FeeType == marketplace.FeeTypeAd || t.FeeType == marketplace.FeeTypeFinalValueShipping):
		return "", false, nil
	case orderID != "" && (t.FeeType == marketplace.FeeTypeFinalValue || t.FeeType == marketplace.FeeTypeFinalValueFixed):
		return "", false, nil
	case orderID != "" && (t.TransactionType == marketplace.TransactionTypeDispute || t.TransactionType == marketplace.TransactionTypeCredit):
		return "", false, nil
	case t.HasReferenceType(marketplace.ReferenceTypeInvoice):
		return "", true, nil
	case t.FeeType == marketplace.FeeTypeOther:
		return "", false, nil
	case t.TransactionType == marketplace.TransactionTypeShippingLabel:
		return "", false, nil
	case t.TransactionType == marketplace.TransactionTypeAdjustment:
		return "", false, nil
	}
	return "", false, integration.SyncErrorf(orderID, "Cannot identify item").
		With("transaction", t.TransactionID).
		With("type", t.TransactionType).
		With("fee_type", t.FeeType)
}

// ---------------------------------------------------------------------------
// Transfers
// ---------------------------------------------------------------------------

// postTransfer records a transfer between the clearing and payout accounts
func postTransfer(
	ctx context.Context,
	store accounting.Store,
	settings Settings,
	t marketplace.Transaction,
	log *integration.SyncLog,
) error {
	switch t.Status {
	case marketplace.TransactionStatusCompleted,
		marketplace.TransactionStatusPayout,
		marketplace.TransactionStatusFundsAvailableForPayout:
	case marketplace.TransactionStatusFundsProcessing, marketplace.TransactionStatusFailed:
		return nil
	default:
		return integration.SyncErrorf(t.OrderID, "unexpected transfer status %q", t.Status).
			With("transaction", t.TransactionID)
	}

	date := t.SettlementDate()
	exists, err := store.JournalEntries().Exists(ctx, accounting.JournalKindTransfer, t.TransactionID, date)
	if err != nil {
		return err
	}
	if exists {
		log.Info("Transfer journal entry already exists", "", t.TransactionID)
		return nil
	}

	if err := checkPayoutCurrency(ctx, store, settings, t.Amount.Currency); err != nil {
		return integration.SyncErrorf(t.OrderID, "transfer currency mismatch").
			With("transaction", t.TransactionID).
			Wrap(err)
	}

	from, to := settings.ClearingAccount, settings.PayoutAccount
	if t.BookingEntry == marketplace.BookingEntryCredit {
		from, to = to, from
	}
	je, err := accounting.NewTransferEntry(
		accounting.JournalKindTransfer,
		"eBay Managed Payments transfer "+date.Format(time.DateOnly),
		date, t.TransactionID, from, to, t.Amount.Value.Abs())
	if err != nil {
		return integration.SyncErrorf(t.OrderID, "invalid transfer").With("transaction", t.TransactionID).Wrap(err)
	}
	je.Remark = fmt.Sprintf("eBay transfer %s (%s, %s) of %s %s",
		t.TransactionID, t.BookingEntry, t.Status, t.Amount.Currency, t.Amount.Value.Abs().StringFixed(2))
	if t.Memo != "" {
		je.Remark += ": " + t.Memo
	}

	if err := store.JournalEntries().Create(ctx, je); err != nil {
		return err
	}
	log.Info("Adding transfer journal entry", "", je.Name)
	return nil
}

var errCurrencyMismatch = errors.New("currency does not match the payout account")

// checkPayoutCurrency checks currency against the payout account, falling
// back to the home currency when the account does not record one
func checkPayoutCurrency(ctx context.Context, store accounting.Store, settings Settings, currency string) error {
	want := settings.HomeCurrency
	account, err := store.Accounts().FindByName(ctx, settings.PayoutAccount)
	switch {
	case err == nil && account.Currency != "":
		want = account.Currency
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return err
	}
	if currency != want {
		return fmt.Errorf("%w: %s, want %s", errCurrencyMismatch, currency, want)
	}
	return nil
}
