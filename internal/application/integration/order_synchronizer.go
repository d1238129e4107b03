package integration

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"go.uber.org/zap"
)

// OrderSynchronizer drives one marketplace order through
// FETCHED → CUSTOMER_RESOLVED → ORDER_RECORDED → INVOICED → REFUNDED
type OrderSynchronizer struct {
	extractor *CustomerExtractor
	matcher   *CustomerMatcher
	invoices  *InvoiceBuilder
	refunds   *RefundBuilder
	logger    *zap.Logger
}

// NewOrderSynchronizer creates an OrderSynchronizer
func NewOrderSynchronizer(
	extractor *CustomerExtractor,
	matcher *CustomerMatcher,
	invoices *InvoiceBuilder,
	refunds *RefundBuilder,
	logger *zap.Logger,
) *OrderSynchronizer {
	return &OrderSynchronizer{
		extractor: extractor,
		matcher:   matcher,
		invoices:  invoices,
		refunds:   refunds,
		logger:    logger,
	}
}

// orderProgress tracks the state reached while an order is processed
type orderProgress struct {
	orderID string
	state   integration.OrderState
}

func (p *orderProgress) advance(next integration.OrderState) {
	if p.state.CanAdvanceTo(next) {
		p.state = next
	}
}

// Process synchronizes one order. Identity records are committed first; the
// order record, invoice and refund are written in one transaction that is
// rolled back on any error or panic.
func (s *OrderSynchronizer) Process(
	ctx context.Context,
	store accounting.Store,
	order *marketplace.Order,
	txns []marketplace.Transaction,
	log *integration.SyncLog,
) (outcome integration.Outcome) {
	progress := &orderProgress{orderID: order.OrderID, state: integration.OrderStateFetched}
	logger := s.logger.With(zap.String("order_id", order.OrderID))

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err := fmt.Errorf("panic while processing order %s: %v", order.OrderID, r)
			logger.Error("Order processing panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", stack))
			log.Error("Unexpected error", order.OrderID, err.Error()+"\n"+string(stack))
			outcome = integration.Fail(order.OrderID, progress.state, err)
		}
	}()

	if order.PaymentStatus.IsIncomplete() {
		logger.Debug("Order payment incomplete", zap.String("payment_status", string(order.PaymentStatus)))
		return integration.Skip(order.OrderID, progress.state, "payment "+string(order.PaymentStatus))
	}

	_, _, warnings := marketplace.OrderSites(*order)
	for _, w := range warnings {
		log.Warn("Site warning", order.OrderID, w)
		logger.Warn("Order site not identified", zap.String("warning", w))
	}

	custDraft, addrDraft := s.extractor.Extract(order)
	customer, address, err := s.matcher.Resolve(ctx, store, custDraft, addrDraft, log)
	if err != nil {
		return s.fail(logger, log, progress, err)
	}
	progress.advance(integration.OrderStateCustomerResolved)

	var draft bool
	err = store.Transaction(ctx, func(tx accounting.Store) error {
		if err := s.recordOrder(ctx, tx, order, customer, address, log); err != nil {
			return err
		}
		progress.advance(integration.OrderStateOrderRecorded)

		res, err := s.invoices.CreateInvoice(ctx, tx, order, customer, address, txns, log)
		if err != nil {
			return err
		}
		draft = res.Draft
		progress.advance(integration.OrderStateInvoiced)

		if order.PaymentStatus.IsRefunded() {
			if _, err := s.refunds.CreateRefund(ctx, tx, order, log); err != nil {
				return err
			}
			progress.advance(integration.OrderStateRefunded)
		}
		return nil
	})
	if err != nil {
		return s.fail(logger, log, progress, err)
	}

	outcome = integration.Ok(order.OrderID, progress.state)
	if draft {
		outcome = outcome.AsDraft()
	}
	return outcome
}

func (s *OrderSynchronizer) recordOrder(
	ctx context.Context,
	store accounting.Store,
	order *marketplace.Order,
	customer *accounting.Customer,
	address *accounting.Address,
	log *integration.SyncLog,
) error {
	repo := store.Orders()
	existing, err := repo.FindByMarketplaceOrderID(ctx, order.OrderID)
	if err == nil {
		log.Info("eBay order already exists", order.OrderID, existing.MarketplaceOrderID)
		return nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	record := accounting.NewOrderRecord(order.OrderID, order.Buyer.Username, customer, address,
		string(order.PaymentStatus), order.CreationDate)
	if err := repo.Create(ctx, record); err != nil {
		return err
	}
	log.Info("Adding eBay order", order.OrderID, order.OrderID)
	return nil
}

// fail records a failed order. The state reached before the rollback is kept
// in the outcome for diagnostics.
func (s *OrderSynchronizer) fail(logger *zap.Logger, log *integration.SyncLog, progress *orderProgress, err error) integration.Outcome {
	var syncErr *integration.SyncError
	if errors.As(err, &syncErr) {
		logger.Warn("Order failed", zap.String("state", progress.state.String()), zap.Error(err))
		log.Error("Order failed", progress.orderID, err.Error())
	} else {
		logger.Error("Unexpected error processing order", zap.String("state", progress.state.String()), zap.Error(err))
		log.Error("Unexpected error", progress.orderID, err.Error())
	}
	return integration.Fail(progress.orderID, progress.state, err)
}
