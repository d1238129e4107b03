package integration

import (
	"context"
	"testing"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testRefundDate = testOrderDate.AddDate(0, 0, 10)

// submittedInvoice is an invoice for two lines at 10.00 and 20.00 ex VAT
func submittedInvoice(t *testing.T, orderID string) *accounting.SalesInvoice {
	t.Helper()
	inv := accounting.NewSalesInvoice("eBay: Jane Smith [SKU-A, SKU-B]", testCustomer("Jane Smith", "jsmith_1"), "GBP")
	inv.MarketplaceOrderID = orderID
	inv.Items = []accounting.InvoiceItem{
		{Position: 1, ItemCode: "SKU-A", Qty: 1, Rate: dec("10.00"), IncomeAccount: "Sales", LineItemID: "L1"},
		{Position: 2, ItemCode: "SKU-B", Qty: 1, Rate: dec("20.00"), IncomeAccount: "Sales", LineItemID: "L2"},
	}
	inv.Taxes = []accounting.InvoiceTax{{
		ChargeType: accounting.ChargeTypeActual, Description: "VAT 20%", Account: "VAT",
		Rate: dec("20"), TaxAmount: dec("6.00"),
	}}
	inv.Payments = []accounting.InvoicePayment{{ModeOfPayment: "eBay Managed GBP", Amount: dec("36.00")}}
	require.NoError(t, inv.Submit())
	return inv
}

func refundedOrder(orderID string, status marketplace.PaymentStatus, amount string) *marketplace.Order {
	o := twoLineOrder(orderID)
	o.PaymentStatus = status
	o.Refunds = []marketplace.Refund{{RefundID: "R-" + orderID, RefundDate: testRefundDate, Amount: gbp(amount)}}
	return o
}

func newTestRefundBuilder() *RefundBuilder {
	return NewRefundBuilder(testSettings(), zap.NewNop())
}

func TestRefundBuilder_CreateRefund_Partial(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	inv := submittedInvoice(t, "22-00001-00001")
	store.state.invoices = append(store.state.invoices, *inv)
	log := integration.NewSyncLog()

	order := refundedOrder("22-00001-00001", marketplace.PaymentStatusPartiallyRefunded, "12.00")
	order.LineItems[0].Refunds = []marketplace.LineRefund{{RefundDate: testRefundDate, Amount: gbp("12.00")}}

	ret, err := newTestRefundBuilder().CreateRefund(ctx, store, order, log)
	require.NoError(t, err)
	require.NotNil(t, ret)

	require.Len(t, ret.Items, 1)
	assert.Equal(t, "SKU-A", ret.Items[0].ItemCode)
	assert.Equal(t, -1, ret.Items[0].Qty)
	assert.Equal(t, "-10.00", ret.Items[0].Amount().StringFixed(2))
	assert.Equal(t, "-2.00", ret.Taxes[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "-12.00", ret.Payments[0].Amount.StringFixed(2))
	assert.Equal(t, "-12.00", ret.GrandTotal().StringFixed(2))

	assert.True(t, ret.IsReturn)
	require.NotNil(t, ret.ReturnAgainst)
	assert.Equal(t, inv.ID, *ret.ReturnAgainst)
	assert.Equal(t, "eBay Partial Refund: Jane Smith", ret.Title)
	assert.Equal(t, accounting.DocStatusDraft, ret.Status)
	assert.True(t, ret.PostingDate.Equal(testRefundDate))
	assert.Equal(t, []string{"Adding return Sales Invoice"}, log.Changes())
}

func TestRefundBuilder_CreateRefund_Full(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	inv := submittedInvoice(t, "22-00001-00002")
	store.state.invoices = append(store.state.invoices, *inv)
	log := integration.NewSyncLog()
	b := newTestRefundBuilder()

	order := refundedOrder("22-00001-00002", marketplace.PaymentStatusFullyRefunded, "36.00")
	ret, err := b.CreateRefund(ctx, store, order, log)
	require.NoError(t, err)
	require.NotNil(t, ret)

	require.Len(t, ret.Items, 2)
	assert.Equal(t, -1, ret.Items[1].Qty)
	assert.Equal(t, "20.00", ret.Items[1].Rate.StringFixed(2))
	assert.Equal(t, "-6.00", ret.Taxes[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "-36.00", ret.GrandTotal().StringFixed(2))
	assert.Equal(t, "eBay Full Refund: Jane Smith", ret.Title)

	again, err := b.CreateRefund(ctx, store, order, log)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, []string{"Adding return Sales Invoice", "Return Sales Invoice already exists"}, log.Changes())
	assert.Len(t, store.state.invoices, 2)
}

func TestRefundBuilder_CreateRefund_AmendmentChain(t *testing.T) {
	ctx := context.Background()
	orderID := "22-00001-00003"

	setup := func(t *testing.T) (*memStore, *accounting.SalesInvoice, *accounting.SalesInvoice) {
		store := newMemStore()
		orig := submittedInvoice(t, orderID)
		require.NoError(t, orig.Cancel())
		amended := submittedInvoice(t, orderID)
		amended.AmendedFrom = &orig.ID
		store.state.invoices = append(store.state.invoices, *orig, *amended)
		return store, orig, amended
	}

	t.Run("returns against the live amendment", func(t *testing.T) {
		store, _, amended := setup(t)
		order := refundedOrder(orderID, marketplace.PaymentStatusFullyRefunded, "36.00")

		ret, err := newTestRefundBuilder().CreateRefund(ctx, store, order, integration.NewSyncLog())
		require.NoError(t, err)
		require.NotNil(t, ret)
		assert.Equal(t, amended.ID, *ret.ReturnAgainst)
	})

	t.Run("live return against a cancelled invoice fails", func(t *testing.T) {
		store, orig, _ := setup(t)
		stale := accounting.SalesInvoice{IsReturn: true, ReturnAgainst: &orig.ID, Status: accounting.DocStatusDraft, Name: "SINV-RET-OLD"}
		store.state.invoices = append(store.state.invoices, stale)
		order := refundedOrder(orderID, marketplace.PaymentStatusFullyRefunded, "36.00")

		_, err := newTestRefundBuilder().CreateRefund(ctx, store, order, integration.NewSyncLog())
		require.Error(t, err)
		assert.True(t, integration.IsSyncError(err))
		assert.Contains(t, err.Error(), "return exists against cancelled invoice")
	})
}

func TestRefundBuilder_CreateRefund_NothingToDo(t *testing.T) {
	ctx := context.Background()

	t.Run("draft invoice", func(t *testing.T) {
		store := newMemStore()
		inv := accounting.NewSalesInvoice("eBay: draft", testCustomer("Jane Smith", "jsmith_1"), "GBP")
		inv.MarketplaceOrderID = "22-00001-00004"
		store.state.invoices = append(store.state.invoices, *inv)
		log := integration.NewSyncLog()

		ret, err := newTestRefundBuilder().CreateRefund(ctx, store,
			refundedOrder("22-00001-00004", marketplace.PaymentStatusFullyRefunded, "36.00"), log)
		require.NoError(t, err)
		assert.Nil(t, ret)
		assert.Zero(t, log.Len())
	})

	t.Run("no invoice", func(t *testing.T) {
		ret, err := newTestRefundBuilder().CreateRefund(ctx, newMemStore(),
			refundedOrder("22-00001-00005", marketplace.PaymentStatusFullyRefunded, "36.00"), integration.NewSyncLog())
		require.NoError(t, err)
		assert.Nil(t, ret)
	})

	t.Run("paid order", func(t *testing.T) {
		ret, err := newTestRefundBuilder().CreateRefund(ctx, newMemStore(), twoLineOrder("22-00001-00006"), integration.NewSyncLog())
		require.NoError(t, err)
		assert.Nil(t, ret)
	})
}

func TestRefundBuilder_CreateRefund_ForeignCurrencyRefund(t *testing.T) {
	store := newMemStore()
	store.state.invoices = append(store.state.invoices, *submittedInvoice(t, "22-00001-00007"))
	order := refundedOrder("22-00001-00007", marketplace.PaymentStatusFullyRefunded, "36.00")
	order.Refunds[0].Amount.Currency = "EUR"

	_, err := newTestRefundBuilder().CreateRefund(context.Background(), store, order, integration.NewSyncLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refund is not in GBP")
}

func returnLine(pos int, lineID string, qty int, rate string) accounting.InvoiceItem {
	return accounting.InvoiceItem{Position: pos, LineItemID: lineID, Qty: -qty, Rate: dec(rate)}
}

func TestAllocateRefund(t *testing.T) {
	tests := []struct {
		name        string
		items       []accounting.InvoiceItem
		exTax       string
		taxRate     string
		lineRefunds map[string]decimal.Decimal
		want        []int64
		wantErr     bool
	}{
		{
			name:        "line refund picks the refunded line",
			items:       []accounting.InvoiceItem{returnLine(1, "L1", 1, "10.00"), returnLine(2, "L2", 1, "20.00")},
			exTax:       "10.00",
			taxRate:     "1.2",
			lineRefunds: map[string]decimal.Decimal{"L1": dec("12.00")},
			want:        []int64{1000, 0},
		},
		{
			name:        "line refund on the second line",
			items:       []accounting.InvoiceItem{returnLine(1, "L1", 1, "20.00"), returnLine(2, "L2", 1, "10.00")},
			exTax:       "10.00",
			taxRate:     "1.2",
			lineRefunds: map[string]decimal.Decimal{"L2": dec("12.00")},
			want:        []int64{0, 1000},
		},
		{
			name:    "proportional to line charge",
			items:   []accounting.InvoiceItem{returnLine(1, "L1", 1, "10.00"), returnLine(2, "L2", 1, "20.00")},
			exTax:   "25.00",
			taxRate: "0",
			want:    []int64{834, 1666},
		},
		{
			name:    "larger quantity first",
			items:   []accounting.InvoiceItem{returnLine(1, "L1", 1, "5.00"), returnLine(2, "L2", 3, "4.00")},
			exTax:   "9.00",
			taxRate: "0",
			want:    []int64{264, 636},
		},
		{
			name:    "whole cents per unit",
			items:   []accounting.InvoiceItem{returnLine(1, "L1", 3, "4.00"), returnLine(2, "L2", 1, "5.00")},
			exTax:   "10.00",
			taxRate: "0",
			want:    []int64{705, 295},
		},
		{
			name:    "full refund of every line",
			items:   []accounting.InvoiceItem{returnLine(1, "L1", 2, "3.50"), returnLine(2, "L2", 1, "5.00")},
			exTax:   "12.00",
			taxRate: "0",
			want:    []int64{700, 500},
		},
		{
			name:        "line refund then proportional remainder",
			items:       []accounting.InvoiceItem{returnLine(1, "L1", 1, "10.00"), returnLine(2, "L2", 1, "10.00"), returnLine(3, "L3", 1, "30.00")},
			exTax:       "30.00",
			taxRate:     "0",
			lineRefunds: map[string]decimal.Decimal{"L1": dec("10.00")},
			want:        []int64{1000, 500, 1500},
		},
		{
			name:    "zero quantity line is skipped",
			items:   []accounting.InvoiceItem{returnLine(1, "L1", 0, "10.00"), returnLine(2, "L2", 2, "5.00")},
			exTax:   "6.00",
			taxRate: "0",
			want:    []int64{0, 600},
		},
		{
			name:    "refund exceeds lines",
			items:   []accounting.InvoiceItem{returnLine(1, "L1", 1, "1.00")},
			exTax:   "2.00",
			taxRate: "0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := allocateRefund(tt.items, dec(tt.exTax), dec(tt.taxRate), tt.lineRefunds)
			if tt.wantErr {
				require.ErrorIs(t, err, errRefundRemainder)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRefundBuilder_ConvertedInvoice(t *testing.T) {
	store := newMemStore()
	inv := submittedInvoice(t, "22-00001-00008")
	inv.Currency = "EUR"
	inv.ConversionRate = dec("0.8")
	store.state.invoices = append(store.state.invoices, *inv)

	// 9.60 GBP is 12.00 EUR at 0.8
	order := refundedOrder("22-00001-00008", marketplace.PaymentStatusPartiallyRefunded, "9.60")
	ret, err := newTestRefundBuilder().CreateRefund(context.Background(), store, order, integration.NewSyncLog())
	require.NoError(t, err)
	assert.Equal(t, "-12.00", ret.Payments[0].Amount.StringFixed(2))
	assert.Equal(t, "-10.00", ret.NetTotal().StringFixed(2))
}
