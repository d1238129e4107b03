package integration

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundBuilder creates return invoices for refunded orders
type RefundBuilder struct {
	settings Settings
	logger   *zap.Logger
}

// NewRefundBuilder creates a RefundBuilder
func NewRefundBuilder(settings Settings, logger *zap.Logger) *RefundBuilder {
	return &RefundBuilder{
		settings: settings,
		logger:   logger,
	}
}

// CreateRefund creates a draft return against the latest submitted invoice of a
// refunded order. It returns nil when there is nothing to do.
func (b *RefundBuilder) CreateRefund(
	ctx context.Context,
	store accounting.Store,
	order *marketplace.Order,
	log *integration.SyncLog,
) (*accounting.SalesInvoice, error) {
	if !order.PaymentStatus.IsRefunded() {
		return nil, nil
	}
	orderID := order.OrderID
	invoices := store.Invoices()

	inv, err := invoices.FindByMarketplaceOrderID(ctx, orderID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	inv, cancelled, err := b.latestAmendment(ctx, invoices, orderID, inv)
	if err != nil || inv == nil {
		return nil, err
	}

	for _, c := range cancelled {
		live, err := invoices.FindLiveReturns(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if len(live) > 0 {
			return nil, integration.SyncErrorf(orderID, "return exists against cancelled invoice %s", c.Name).
				With("return", live[0].Name)
		}
	}

	live, err := invoices.FindLiveReturns(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	if len(live) > 0 {
		log.Info("Return Sales Invoice already exists", orderID, live[0].Name)
		return nil, nil
	}

	if len(order.Refunds) == 0 {
		return nil, integration.NewSyncError(orderID, "refunded order has no refund records").
			With("payment_status", order.PaymentStatus)
	}
	if len(order.Refunds) > 1 {
		log.Warn("Multiple refunds", orderID, fmt.Sprintf("%d refunds, using the first", len(order.Refunds)))
	}
	refund := order.Refunds[0]
	if refund.Amount.Currency != b.settings.HomeCurrency {
		return nil, integration.SyncErrorf(orderID, "refund is not in %s", b.settings.HomeCurrency).
			With("currency", refund.Amount.Currency)
	}

	title := fmt.Sprintf("eBay %s Refund: %s", order.PaymentStatus.RefundKind(), inv.CustomerName)
	ret, err := inv.NewReturn(title, refund.RefundDate)
	if err != nil {
		return nil, err
	}

	mode := b.settings.ModeOfPayment()
	if len(ret.Payments) != 1 || ret.Payments[0].ModeOfPayment != mode {
		return nil, integration.SyncErrorf(orderID, "expected one %s payment on %s", mode, inv.Name).
			With("payments", len(ret.Payments))
	}

	if order.PaymentStatus == marketplace.PaymentStatusPartiallyRefunded {
		if err := b.applyPartialRefund(order, inv, ret, refund); err != nil {
			return nil, err
		}
	}

	if err := invoices.Create(ctx, ret); err != nil {
		return nil, err
	}
	log.Info("Adding return Sales Invoice", orderID, ret.Name)
	b.logger.Info("Return invoice created",
		zap.String("order_id", orderID),
		zap.String("return", ret.Name),
		zap.String("against", inv.Name))
	return ret, nil
}

// latestAmendment follows the amendment chain from inv to its live document.
// It returns nil when the chain ends in a draft or an unamended cancellation,
// together with the cancelled documents passed on the way.
func (b *RefundBuilder) latestAmendment(
	ctx context.Context,
	invoices accounting.SalesInvoiceRepository,
	orderID string,
	inv *accounting.SalesInvoice,
) (*accounting.SalesInvoice, []*accounting.SalesInvoice, error) {
	var cancelled []*accounting.SalesInvoice
	for {
		switch inv.Status {
		case accounting.DocStatusSubmitted:
			return inv, cancelled, nil
		case accounting.DocStatusDraft:
			return nil, nil, nil
		}

		amendments, err := invoices.FindAmendments(ctx, inv.ID)
		if err != nil {
			return nil, nil, err
		}
		switch len(amendments) {
		case 0:
			return nil, nil, nil
		case 1:
			cancelled = append(cancelled, inv)
			inv = &amendments[0]
		default:
			return nil, nil, integration.SyncErrorf(orderID, "invoice %s has multiple amendments", inv.Name).
				With("amendments", len(amendments))
		}
	}
}

// applyPartialRefund rewrites the full-return copy ret to the refunded amount.
// The refund is converted to the invoice currency, split into tax and ex-tax
// parts, and the ex-tax part is spread over the lines in whole cents per unit.
func (b *RefundBuilder) applyPartialRefund(
	order *marketplace.Order,
	inv, ret *accounting.SalesInvoice,
	refund marketplace.Refund,
) error {
	orderID := order.OrderID

	refundTotal := valueobject.RoundMoney(refund.Amount.Value.Div(inv.ConversionRate))
	ret.Payments[0].Amount = refundTotal.Neg()

	taxRate := decimal.Zero
	exTax := refundTotal
	switch len(inv.Taxes) {
	case 0:
	case 1:
		grand := inv.GrandTotal()
		tax := inv.TaxTotal()
		taxRate = grand.Div(grand.Sub(tax)).Round(3)
		taxAmount := valueobject.RoundMoney(refundTotal.Sub(refundTotal.Div(taxRate)))
		ret.Taxes[0].TaxAmount = taxAmount.Neg()
		exTax = refundTotal.Sub(taxAmount)
	default:
		return integration.SyncErrorf(orderID, "cannot refund invoice %s with multiple tax lines", inv.Name).
			With("tax_lines", len(inv.Taxes))
	}

	nonShipping := decimal.Zero
	for _, it := range inv.Items {
		if !it.IsShipping {
			nonShipping = nonShipping.Add(it.Amount())
		}
	}
	if exTax.LessThan(nonShipping) {
		ret.Items = slices.DeleteFunc(ret.Items, func(it accounting.InvoiceItem) bool { return it.IsShipping })
	}

	lineRefunds := make(map[string]decimal.Decimal, len(order.LineItems))
	for _, li := range order.LineItems {
		lineRefunds[li.LineItemID] = li.RefundedTotal()
	}

	alloc, err := allocateRefund(ret.Items, exTax, taxRate, lineRefunds)
	if err != nil {
		return integration.NewSyncError(orderID, "refund allocation failed").
			With("refund", refundTotal).
			With("ex_tax", exTax).
			Wrap(err)
	}

	items := ret.Items[:0]
	for i, it := range ret.Items {
		if alloc[i] == 0 {
			continue
		}
		qty := int64(-it.Qty)
		it.Rate = decimal.New(alloc[i]/qty, -2)
		items = append(items, it)
	}
	ret.Items = items

	if !ret.NetTotal().Equal(exTax.Neg()) {
		return integration.NewSyncError(orderID, "refund lines do not add up").
			With("lines", ret.NetTotal()).
			With("ex_tax", exTax)
	}
	return nil
}

// errRefundRemainder is returned when the refund does not fit the lines
var errRefundRemainder = errors.New("refund remainder cannot be placed")

// allocateRefund spreads exTax over return lines, in cents. Each line receives
// a multiple of its quantity so its unit rate stays whole cents, and never more
// than it originally charged. Lines are served in quantity-descending order,
// ties by position: first up to their own recorded line refunds, then in
// proportion to their unclaimed charge with unit rates rounded down, and the
// last few cents greedily. Zero-quantity lines receive nothing.
func allocateRefund(items []accounting.InvoiceItem, exTax, taxRate decimal.Decimal, lineRefunds map[string]decimal.Decimal) ([]int64, error) {
	remaining := exTax.Shift(2).Round(0).IntPart()
	alloc := make([]int64, len(items))

	order := make([]int, len(items))
	for i := range items {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		qa, qb := -items[a].Qty, -items[b].Qty
		if qa != qb {
			return qb - qa
		}
		return items[a].Position - items[b].Position
	})

	capacity := func(i int) int64 {
		qty := int64(-items[i].Qty)
		return qty * items[i].Rate.Shift(2).Round(0).IntPart()
	}
	give := func(i int, want int64) {
		qty := int64(-items[i].Qty)
		if qty <= 0 {
			return
		}
		want = min(want, capacity(i)-alloc[i], remaining)
		want -= want % qty
		if want <= 0 {
			return
		}
		alloc[i] += want
		remaining -= want
	}

	for _, i := range order {
		refunded, ok := lineRefunds[items[i].LineItemID]
		if !ok || items[i].LineItemID == "" || !refunded.IsPositive() {
			continue
		}
		if taxRate.IsPositive() {
			refunded = refunded.Div(taxRate)
		}
		give(i, refunded.Shift(2).Round(0).IntPart())
	}
	var unclaimed int64
	for _, i := range order {
		if -items[i].Qty > 0 {
			unclaimed += capacity(i) - alloc[i]
		}
	}
	if target := remaining; target > 0 && unclaimed > 0 {
		for _, i := range order {
			qty := int64(-items[i].Qty)
			if qty <= 0 {
				continue
			}
			unit := (capacity(i) - alloc[i]) / qty
			give(i, qty*(unit*target/unclaimed))
		}
	}
	for _, i := range order {
		give(i, remaining)
	}

	if remaining != 0 {
		return nil, fmt.Errorf("%w: %d cents left", errRefundRemainder, remaining)
	}
	return alloc, nil
}
