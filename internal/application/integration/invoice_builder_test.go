package integration

import (
	"context"
	"testing"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoiceStore() *memStore {
	store := newMemStore()
	store.addItem("SKU-A", "Widget", "1001")
	store.addItem("SKU-B", "Gadget", "1002")
	return store
}

func TestInvoiceBuilder_CreateInvoice_TwoLinesWithShipping(t *testing.T) {
	ctx := context.Background()
	store := newInvoiceStore()
	b := newTestInvoiceBuilder(testSettings())
	log := integration.NewSyncLog()

	order := twoLineOrder("11-00001-00001")
	order.CheckoutNotes = "<b>leave at door</b>"
	cust := testCustomer("Jane Smith", "jsmith_1")
	addr := testAddress("United Kingdom")

	res, err := b.CreateInvoice(ctx, store, order, cust, addr, []marketplace.Transaction{saleFor(order.OrderID)}, log)
	require.NoError(t, err)
	require.True(t, res.Created)
	assert.False(t, res.Draft)

	inv := res.Invoice
	require.Len(t, inv.Items, 3)
	assert.Equal(t, "8.33", inv.Items[0].Rate.StringFixed(2))
	assert.Equal(t, "16.67", inv.Items[1].Rate.StringFixed(2))
	assert.Equal(t, "4.17", inv.Items[2].Rate.StringFixed(2))
	assert.True(t, inv.Items[2].IsShipping)
	assert.Equal(t, "SHIPPING", inv.Items[2].ItemCode)
	assert.Equal(t, "Shipping (Sales)", inv.Items[2].IncomeAccount)
	assert.Equal(t, "Sales", inv.Items[0].IncomeAccount)

	require.Len(t, inv.Taxes, 1)
	assert.Equal(t, "VAT 20%", inv.Taxes[0].Description)
	assert.Equal(t, "5.83", inv.Taxes[0].TaxAmount.StringFixed(2))
	assert.Equal(t, "35.00", inv.GrandTotal().StringFixed(2))

	require.Len(t, inv.Payments, 1)
	assert.Equal(t, "eBay Managed GBP", inv.Payments[0].ModeOfPayment)
	assert.Equal(t, "35.00", inv.Payments[0].Amount.StringFixed(2))
	assert.Equal(t, accounting.DocStatusSubmitted, inv.Status)

	assert.Equal(t, "eBay: Jane Smith [SKU-A, SKU-B]", inv.Title)
	assert.Equal(t, order.OrderID, inv.MarketplaceOrderID)
	assert.Equal(t, "United Kingdom", inv.ListingSite)
	assert.Equal(t, "United Kingdom", inv.PurchaseSite)
	assert.Equal(t, "&lt;b&gt;leave at door&lt;/b&gt;", inv.BuyerMessage)
	assert.True(t, inv.ConversionRate.Equal(dec("1")))
	assert.Empty(t, inv.CollectedTaxDetails)

	assert.Equal(t, "1.20", inv.Items[0].FinalValueFee.StringFixed(2))
	assert.Equal(t, "0.30", inv.Items[0].FixedFee.StringFixed(2))
	assert.Equal(t, "2.00", inv.Items[1].FinalValueFee.StringFixed(2))

	assert.Equal(t, []string{"Adding Sales Invoice"}, log.Changes())
	assert.Len(t, store.state.invoices, 1)
}

func TestInvoiceBuilder_CreateInvoice_AlreadyExists(t *testing.T) {
	ctx := context.Background()
	store := newInvoiceStore()
	b := newTestInvoiceBuilder(testSettings())
	log := integration.NewSyncLog()

	order := twoLineOrder("11-00001-00002")
	cust := testCustomer("Jane Smith", "jsmith_1")
	addr := testAddress("United Kingdom")
	txns := []marketplace.Transaction{saleFor(order.OrderID)}

	first, err := b.CreateInvoice(ctx, store, order, cust, addr, txns, log)
	require.NoError(t, err)
	second, err := b.CreateInvoice(ctx, store, order, cust, addr, txns, log)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)
	assert.Equal(t, []string{"Adding Sales Invoice", "Sales Invoice already exists"}, log.Changes())
	assert.Len(t, store.state.invoices, 1)
}

func TestInvoiceBuilder_CreateInvoice_OldTitle(t *testing.T) {
	ctx := context.Background()
	cust := testCustomer("Jane Smith", "jsmith_1")
	addr := testAddress("United Kingdom")
	order := twoLineOrder("11-00001-00003")
	txns := []marketplace.Transaction{saleFor(order.OrderID)}

	oldInvoice := func() accounting.SalesInvoice {
		inv := accounting.NewSalesInvoice("Jane Smith-"+order.OrderID, cust, "GBP")
		return *inv
	}

	t.Run("single old invoice is kept", func(t *testing.T) {
		store := newInvoiceStore()
		store.state.invoices = append(store.state.invoices, oldInvoice())
		log := integration.NewSyncLog()

		res, err := newTestInvoiceBuilder(testSettings()).CreateInvoice(ctx, store, order, cust, addr, txns, log)
		require.NoError(t, err)
		assert.Nil(t, res.Invoice)
		assert.False(t, res.Created)
		assert.Equal(t, []string{"Old Sales Invoice exists"}, log.Changes())
		assert.Len(t, store.state.invoices, 1)
	})

	t.Run("several old invoices fail the order", func(t *testing.T) {
		store := newInvoiceStore()
		store.state.invoices = append(store.state.invoices, oldInvoice(), oldInvoice())

		_, err := newTestInvoiceBuilder(testSettings()).CreateInvoice(ctx, store, order, cust, addr, txns, integration.NewSyncLog())
		require.Error(t, err)
		assert.True(t, integration.IsSyncError(err))
		assert.Contains(t, err.Error(), "multiple old sales invoices")
	})
}

func TestInvoiceBuilder_CreateInvoice_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *marketplace.Order, txns []marketplace.Transaction) []marketplace.Transaction
		wantErr string
	}{
		{
			name: "order total disagrees with lines",
			mutate: func(o *marketplace.Order, txns []marketplace.Transaction) []marketplace.Transaction {
				o.Total = gbp("40.00")
				return txns
			},
			wantErr: "inconsistent amounts",
		},
		{
			name: "payout and fee do not cover subtotal",
			mutate: func(o *marketplace.Order, txns []marketplace.Transaction) []marketplace.Transaction {
				txns[0].Amount = gbp("30.00")
				return txns
			},
			wantErr: "payments don't add up",
		},
		{
			name: "untyped tax outside VOEC",
			mutate: func(o *marketplace.Order, txns []marketplace.Transaction) []marketplace.Transaction {
				o.LineItems[1].Taxes = []marketplace.LineTax{{Amount: gbp("1.00")}}
				return txns
			},
			wantErr: "unhandled tax",
		},
		{
			name: "unknown collected tax type",
			mutate: func(o *marketplace.Order, txns []marketplace.Transaction) []marketplace.Transaction {
				o.LineItems[0].CollectedTaxes = []marketplace.CollectedTax{{TaxType: "PROVINCIAL_SALES_TAX", Amount: gbp("1.00")}}
				return txns
			},
			wantErr: "unhandled collected tax type",
		},
		{
			name: "no sale transaction",
			mutate: func(o *marketplace.Order, txns []marketplace.Transaction) []marketplace.Transaction {
				return nil
			},
			wantErr: "expected one SALE transaction",
		},
		{
			name: "unknown item",
			mutate: func(o *marketplace.Order, txns []marketplace.Transaction) []marketplace.Transaction {
				o.LineItems[0].SKU = "SKU-X"
				return txns
			},
			wantErr: "item SKU-X not found",
		},
		{
			name: "payment not in home currency",
			mutate: func(o *marketplace.Order, txns []marketplace.Transaction) []marketplace.Transaction {
				o.Payments[0].Amount.Currency = "EUR"
				return txns
			},
			wantErr: "payment is not in GBP",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newInvoiceStore()
			order := twoLineOrder("11-00001-00004")
			txns := tt.mutate(order, []marketplace.Transaction{saleFor(order.OrderID)})

			_, err := newTestInvoiceBuilder(testSettings()).CreateInvoice(context.Background(), store, order,
				testCustomer("Jane Smith", "jsmith_1"), testAddress("United Kingdom"), txns, integration.NewSyncLog())
			require.Error(t, err)
			assert.True(t, integration.IsSyncError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, store.state.invoices)
		})
	}
}

func TestInvoiceBuilder_CreateInvoice_CollectedHomeVAT(t *testing.T) {
	newOrder := func() *marketplace.Order {
		o := singleLineOrder("11-00001-00005", "SKU-A", "12.00", "GB")
		o.LineItems[0].CollectedTaxes = []marketplace.CollectedTax{{
			TaxType:   "VAT",
			Amount:    gbp("2.00"),
			Reference: &marketplace.TaxReference{Name: "UK VAT", Value: "GB123456789"},
		}}
		return o
	}

	tests := []struct {
		name      string
		deduct    bool
		wantTax   string
		wantDraft bool
		wantLog   []string
	}{
		{name: "deducted leaves draft", deduct: true, wantTax: "-0.33", wantDraft: true,
			wantLog: []string{"outstanding amount", "Adding Sales Invoice"}},
		{name: "kept submits", deduct: false, wantTax: "1.67", wantDraft: false,
			wantLog: []string{"Adding Sales Invoice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			settings.DeductCollectedHomeTax = tt.deduct
			store := newInvoiceStore()
			log := integration.NewSyncLog()
			order := newOrder()

			res, err := newTestInvoiceBuilder(settings).CreateInvoice(context.Background(), store, order,
				testCustomer("Jane Smith", "jsmith_1"), testAddress("United Kingdom"),
				[]marketplace.Transaction{simpleSale(order.OrderID, "9.00", "1.00")}, log)
			require.NoError(t, err)

			inv := res.Invoice
			assert.Equal(t, tt.wantDraft, res.Draft)
			assert.Equal(t, "8.33", inv.Items[0].Rate.StringFixed(2))
			assert.Equal(t, tt.wantTax, inv.Taxes[0].TaxAmount.StringFixed(2))
			assert.Equal(t, "10.00", inv.Payments[0].Amount.StringFixed(2))
			assert.Equal(t, "2.00", inv.CollectedTaxTotal.StringFixed(2))
			assert.Equal(t, "2.00", inv.Items[0].CollectedTax.StringFixed(2))
			assert.Equal(t, "UK VAT: GB123456789", inv.Items[0].CollectedTaxReference)
			assert.Equal(t, "<ul><li>UK VAT <strong>GBP 2.00</strong><br>UK VAT: GB123456789</li>\n</ul>", inv.CollectedTaxDetails)
			assert.Equal(t, tt.wantLog, log.Changes())
			if tt.wantDraft {
				assert.Equal(t, accounting.DocStatusDraft, inv.Status)
			} else {
				assert.Equal(t, accounting.DocStatusSubmitted, inv.Status)
			}
		})
	}
}

func TestInvoiceBuilder_CreateInvoice_VOEC(t *testing.T) {
	store := newInvoiceStore()
	order := singleLineOrder("11-00001-00006", "SKU-A", "12.50", "NO")
	order.ShipTo.Address.AddressLine2 = voecDeclaration
	order.LineItems[0].Taxes = []marketplace.LineTax{{Amount: gbp("2.50")}}

	res, err := newTestInvoiceBuilder(testSettings()).CreateInvoice(context.Background(), store, order,
		testCustomer("Ola Nordmann", order.Buyer.Username), testAddress("Norway"),
		[]marketplace.Transaction{simpleSale(order.OrderID, "9.00", "1.00")}, integration.NewSyncLog())
	require.NoError(t, err)

	inv := res.Invoice
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "10.00", inv.Items[0].Rate.StringFixed(2))
	assert.Equal(t, "Sales Non-EU", inv.Items[0].IncomeAccount)
	assert.Equal(t, voecReference, inv.Items[0].CollectedTaxReference)
	assert.Empty(t, inv.Taxes)
	assert.Equal(t, "2.50", inv.CollectedTaxTotal.StringFixed(2))
	assert.Contains(t, inv.CollectedTaxDetails, "Norwegian VAT <strong>GBP 2.50</strong><br>"+voecReference)
	assert.Equal(t, accounting.DocStatusSubmitted, inv.Status)
}

func TestCollectedTaxes_Details(t *testing.T) {
	car := newCollectedTaxes()
	car.add(carEUVAT, dec("1.50"), "IOSS: IM123")
	car.add(carStateSalesTax, dec("0.80"), "")
	car.add(carEUVAT, dec("0.50"), "IOSS: IM123")

	got, err := car.details("O1", "USD")
	require.NoError(t, err)
	assert.Equal(t, "<ul><li>US state sales tax <strong>USD 0.80</strong></li>\n"+
		"<li>EU VAT <strong>USD 2.00</strong><br>IOSS: IM123</li>\n</ul>", got)
	assert.Equal(t, "2.80", car.total().StringFixed(2))

	car.add(carEUVAT, dec("1.00"), "IOSS: IM999")
	_, err = car.details("O1", "USD")
	require.Error(t, err)
	assert.True(t, integration.IsSyncError(err))
}
