package integration

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/erp/marketsync/internal/domain/accounting"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/domain/shared/valueobject"
	"github.com/erp/marketsync/internal/domain/territory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Collected tax types, after VAT has been split by territory
const (
	carStateSalesTax = "STATE_SALES_TAX"
	carGST           = "GST"
	carVAT           = "VAT"
	carImportVAT     = "IMPORT_VAT"
	carUKVAT         = "UK_VAT"
	carEUVAT         = "EU_VAT"
	carNorwegianVAT  = "NOR_VAT"

	// voecReference is recorded for VAT collected under the Norwegian VOEC scheme
	voecReference = "VOEC NO: 2024926 Code:Paid"
)

// carTypeOrder fixes the order of the collected tax summary
var carTypeOrder = []string{carStateSalesTax, carGST, carImportVAT, carUKVAT, carEUVAT, carNorwegianVAT}

var carDescriptions = map[string]string{
	carStateSalesTax: "US state sales tax",
	carGST:           "AU/NZ Goods and Services Tax",
	carImportVAT:     "French import VAT",
	carUKVAT:         "UK VAT",
	carEUVAT:         "EU VAT",
	carNorwegianVAT:  "Norwegian VAT",
}

var (
	shippingThreshold = decimal.New(1, -4)
	one               = decimal.NewFromInt(1)
	hundred           = decimal.NewFromInt(100)
)

// InvoiceResult describes what CreateInvoice did
type InvoiceResult struct {
	Invoice *accounting.SalesInvoice
	// Created is false when an invoice already existed
	Created bool
	// Draft is set when the invoice was left unsubmitted
	Draft bool
}

// InvoiceBuilder synthesizes the sales invoice of a paid order from the order
// and its SALE transaction
type InvoiceBuilder struct {
	settings Settings
	resolver *territory.Resolver
	logger   *zap.Logger
}

// NewInvoiceBuilder creates an InvoiceBuilder
func NewInvoiceBuilder(settings Settings, resolver *territory.Resolver, logger *zap.Logger) *InvoiceBuilder {
	return &InvoiceBuilder{
		settings: settings,
		resolver: resolver,
		logger:   logger,
	}
}

// collectedTaxes accumulates the marketplace-collected taxes of an order
type collectedTaxes struct {
	totals map[string]decimal.Decimal
	refs   map[string][]string
}

func newCollectedTaxes() *collectedTaxes {
	return &collectedTaxes{
		totals: make(map[string]decimal.Decimal),
		refs:   make(map[string][]string),
	}
}

func (c *collectedTaxes) add(carType string, amount decimal.Decimal, ref string) {
	c.totals[carType] = c.totals[carType].Add(amount)
	if ref != "" && !slices.Contains(c.refs[carType], ref) {
		c.refs[carType] = append(c.refs[carType], ref)
	}
}

func (c *collectedTaxes) total() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range c.totals {
		sum = sum.Add(v)
	}
	return sum
}

// details renders the per-type summary shown on the invoice
func (c *collectedTaxes) details(orderID, currency string) (string, error) {
	var sb strings.Builder
	for _, carType := range carTypeOrder {
		amount, ok := c.totals[carType]
		if !ok {
			continue
		}
		refs := c.refs[carType]
		if len(refs) > 1 {
			return "", integration.SyncErrorf(orderID, "multiple collected tax references for %s", carType).
				With("references", strings.Join(refs, "; "))
		}
		if sb.Len() == 0 {
			sb.WriteString("<ul>")
		}
		sb.WriteString("<li>")
		sb.WriteString(carDescriptions[carType])
		sb.WriteString(" <strong>")
		sb.WriteString(currency + " " + amount.StringFixed(2))
		sb.WriteString("</strong>")
		if len(refs) == 1 {
			sb.WriteString("<br>")
			sb.WriteString(html.EscapeString(refs[0]))
		}
		sb.WriteString("</li>\n")
	}
	if sb.Len() == 0 {
		return "", nil
	}
	sb.WriteString("</ul>")
	return sb.String(), nil
}

// saleFigures are the amounts taken from the order's SALE transaction
type saleFigures struct {
	currency   string
	payout     decimal.Decimal
	fee        decimal.Decimal
	homeFee    decimal.Decimal
	converted  bool
	marketRate decimal.Decimal
	convRate   decimal.Decimal
	lineFees   map[string]decimal.Decimal
	fixedFees  map[string]decimal.Decimal
	baseFees   map[string]decimal.Decimal
	baseFixed  map[string]decimal.Decimal
}

// CreateInvoice creates the sales invoice for an order unless it already
// exists. The invoice is submitted when it balances and left in draft otherwise.
func (b *InvoiceBuilder) CreateInvoice(
	ctx context.Context,
	store accounting.Store,
	order *marketplace.Order,
	customer *accounting.Customer,
	address *accounting.Address,
	txns []marketplace.Transaction,
	log *integration.SyncLog,
) (InvoiceResult, error) {
	orderID := order.OrderID
	invoices := store.Invoices()

	existing, err := invoices.FindByMarketplaceOrderID(ctx, orderID)
	if err == nil {
		log.Info("Sales Invoice already exists", orderID, existing.Name)
		return InvoiceResult{Invoice: existing}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return InvoiceResult{}, err
	}

	// Invoices created before order ids were linked carry the order id in the title
	oldTitle := customer.Name + "-" + orderID
	n, err := invoices.CountByTitle(ctx, oldTitle)
	if err != nil {
		return InvoiceResult{}, err
	}
	switch {
	case n == 1:
		log.Info("Old Sales Invoice exists", orderID, oldTitle)
		return InvoiceResult{}, nil
	case n > 1:
		return InvoiceResult{}, integration.SyncErrorf(orderID, "multiple old sales invoices").With("title", oldTitle).With("count", n)
	}

	sale, err := b.saleFigures(order, txns)
	if err != nil {
		return InvoiceResult{}, err
	}

	terr := b.resolver.Territory(address.Country)
	profile, err := b.settings.TaxProfiles.For(terr)
	if err != nil {
		return InvoiceResult{}, integration.NewFatalError("missing tax profile", err)
	}
	vat := profile.VATRate
	vatFactor := one.Add(vat)

	country, _ := b.resolver.ResolveCountry(order.ShipTo.Address.CountryCode)
	voec := country == norwayCountry && order.ShipTo.Address.AddressLine2 == voecDeclaration

	inv := accounting.NewSalesInvoice("", customer, sale.currency)
	car := newCollectedTaxes()
	var (
		skus     []string
		shipping = decimal.Zero
		sumVat   = decimal.Zero
		sumLines = decimal.Zero
	)

	for _, li := range order.LineItems {
		if li.SKU == "" {
			return InvoiceResult{}, integration.SyncErrorf(orderID, "line %s has no SKU", li.LineItemID)
		}
		item, err := store.Items().FindByCode(ctx, li.SKU)
		if errors.Is(err, shared.ErrNotFound) {
			return InvoiceResult{}, integration.SyncErrorf(orderID, "item %s not found", li.SKU)
		}
		if err != nil {
			return InvoiceResult{}, err
		}
		if cur := li.Total.OriginalCurrency(); cur != sale.currency {
			return InvoiceResult{}, integration.SyncErrorf(orderID, "line currency mismatch").
				With("line", li.LineItemID).With("currency", cur).With("order_currency", sale.currency)
		}

		ship := li.ShippingCost.Original()
		shipping = shipping.Add(ship)

		lineCar, lineRef, err := b.lineCollectedTax(orderID, li, sale.currency, terr, voec, car)
		if err != nil {
			return InvoiceResult{}, err
		}

		lineTotal := li.OriginalTotal()
		qty := decimal.NewFromInt(int64(li.Quantity))
		price := lineTotal.Sub(lineCar.Add(ship))
		rate := price.Div(qty.Mul(vatFactor)).Round(2)
		exc := qty.Mul(rate)
		sumVat = sumVat.Add(price.Sub(exc))
		sumLines = sumLines.Add(price)

		inv.Items = append(inv.Items, accounting.InvoiceItem{
			Position:              len(inv.Items) + 1,
			ItemCode:              item.Code,
			Description:           item.DisplayDescription(),
			Qty:                   li.Quantity,
			Rate:                  rate,
			IncomeAccount:         profile.IncomeAccount,
			LineItemID:            li.LineItemID,
			ListingID:             li.LegacyItemID,
			FinalValueFee:         sale.lineFees[li.LineItemID],
			BaseFinalValueFee:     sale.baseFees[li.LineItemID],
			FixedFee:              sale.fixedFees[li.LineItemID],
			BaseFixedFee:          sale.baseFixed[li.LineItemID],
			CollectedTax:          lineCar,
			CollectedTaxReference: lineRef,
		})
		skus = append(skus, li.SKU)
	}

	if shipping.GreaterThan(shippingThreshold) {
		exc := shipping.Div(vatFactor).Round(2)
		sumVat = sumVat.Add(shipping.Sub(exc))
		sumLines = sumLines.Add(shipping)
		inv.Items = append(inv.Items, accounting.InvoiceItem{
			Position:      len(inv.Items) + 1,
			ItemCode:      b.settings.ShippingItemCode,
			Description:   b.settings.ShippingDescription,
			Qty:           1,
			Rate:          exc,
			IncomeAccount: profile.ShippingIncomeAccount,
			IsShipping:    true,
		})
	}

	carTotal := car.total()
	subtotal := valueobject.RoundMoney(order.Total.Original().Sub(carTotal))
	if !valueobject.RoundMoney(sumLines).Equal(subtotal) {
		return InvoiceResult{}, integration.NewSyncError(orderID, "inconsistent amounts").
			With("line_total", valueobject.RoundMoney(sumLines)).
			With("order_subtotal", subtotal).
			With("collected_tax", carTotal)
	}
	if !valueobject.RoundMoney(subtotal.Sub(sale.fee)).Equal(sale.payout) {
		return InvoiceResult{}, integration.NewSyncError(orderID, "payments don't add up").
			With("subtotal", subtotal).
			With("fee", sale.fee).
			With("payout", sale.payout)
	}

	details, err := car.details(orderID, sale.currency)
	if err != nil {
		return InvoiceResult{}, err
	}

	if b.settings.DeductCollectedHomeTax {
		sumVat = sumVat.Sub(car.totals[carUKVAT])
	}
	if vat.IsPositive() {
		inv.Taxes = append(inv.Taxes, accounting.InvoiceTax{
			ChargeType:  accounting.ChargeTypeActual,
			Description: "VAT " + vat.Mul(hundred).String() + "%",
			Account:     profile.TaxAccount,
			Rate:        vat.Mul(hundred),
			TaxAmount:   valueobject.RoundMoney(sumVat),
		})
	}
	if subtotal.IsPositive() {
		inv.Payments = append(inv.Payments, accounting.InvoicePayment{
			ModeOfPayment: b.settings.ModeOfPayment(),
			Amount:        subtotal,
		})
	}

	listing, purchase, _ := marketplace.OrderSites(*order)
	inv.Title = fmt.Sprintf("eBay: %s [%s]", customer.Name, strings.Join(skus, ", "))
	inv.MarketplaceOrderID = orderID
	inv.AddressID = address.ID
	inv.ContactEmail = address.Email
	inv.Territory = customer.Territory
	inv.ListingSite = listing
	inv.PurchaseSite = purchase
	inv.BuyerMessage = html.EscapeString(order.CheckoutNotes)
	inv.CollectedTaxTotal = carTotal
	inv.CollectedTaxDetails = details
	inv.PostingDate = order.CreationDate
	inv.ConversionRate = sale.convRate

	draft := !inv.Outstanding().IsZero()
	if draft {
		log.Warn("outstanding amount", orderID, fmt.Sprintf("%s %s left on %s", sale.currency, inv.Outstanding().StringFixed(2), inv.Title))
		b.logger.Warn("Invoice left in draft",
			zap.String("order_id", orderID),
			zap.String("outstanding", inv.Outstanding().String()))
	} else if err := inv.Submit(); err != nil {
		return InvoiceResult{}, err
	}

	if err := invoices.Create(ctx, inv); err != nil {
		return InvoiceResult{}, err
	}
	log.Info("Adding Sales Invoice", orderID, inv.Name)
	b.logger.Info("Sales invoice created",
		zap.String("order_id", orderID),
		zap.String("invoice", inv.Name),
		zap.String("status", inv.Status.String()))

	return InvoiceResult{Invoice: inv, Created: true, Draft: draft}, nil
}

// saleFigures checks the order's payment and SALE transaction and derives the
// payout, fee and conversion figures of the invoice
func (b *InvoiceBuilder) saleFigures(order *marketplace.Order, txns []marketplace.Transaction) (*saleFigures, error) {
	orderID := order.OrderID

	var sales []marketplace.Transaction
	for _, t := range txns {
		if t.TransactionType == marketplace.TransactionTypeSale && t.OrderID == orderID {
			sales = append(sales, t)
		}
	}
	if len(sales) != 1 {
		return nil, integration.SyncErrorf(orderID, "expected one SALE transaction").With("found", len(sales))
	}
	txn := sales[0]

	if len(order.Payments) != 1 {
		return nil, integration.SyncErrorf(orderID, "expected one payment").With("found", len(order.Payments))
	}
	if cur := order.Payments[0].Amount.Currency; cur != b.settings.HomeCurrency {
		return nil, integration.SyncErrorf(orderID, "payment is not in %s", b.settings.HomeCurrency).With("currency", cur)
	}
	if txn.Amount.Currency != b.settings.HomeCurrency {
		return nil, integration.SyncErrorf(orderID, "transaction is not in %s", b.settings.HomeCurrency).
			With("transaction", txn.TransactionID).With("currency", txn.Amount.Currency)
	}

	currency := order.Total.OriginalCurrency()
	if txn.Amount.IsConverted() && txn.Amount.ConvertedFromCurrency != currency {
		return nil, integration.SyncErrorf(orderID, "transaction currency does not match order").
			With("transaction_currency", txn.Amount.ConvertedFromCurrency).With("order_currency", currency)
	}

	s := &saleFigures{
		currency:   currency,
		payout:     txn.Amount.Original(),
		fee:        decimal.Zero,
		converted:  txn.Amount.IsConverted(),
		marketRate: txn.Amount.Rate(),
		convRate:   one,
		lineFees:   make(map[string]decimal.Decimal),
		fixedFees:  make(map[string]decimal.Decimal),
	}
	if txn.TotalFeeAmount != nil {
		s.fee = txn.TotalFeeAmount.Value
	}

	s.homeFee = s.fee
	if s.converted {
		s.homeFee = valueobject.RoundMoney(s.marketRate.Mul(s.fee))
		homePayment := txn.Amount.Value.Add(s.homeFee)
		rate, err := valueobject.ReconcileRate(s.marketRate, homePayment, s.payout.Add(s.fee), valueobject.MoneyPlaces)
		if err != nil {
			return nil, integration.NewSyncError(orderID, "cannot reconcile exchange rate").
				With("market_rate", s.marketRate).
				With("home", homePayment).
				With("foreign", s.payout.Add(s.fee)).
				Wrap(err)
		}
		s.convRate = rate
	}

	totals := make(map[string]decimal.Decimal, len(txn.OrderLineItems))
	for _, line := range txn.OrderLineItems {
		for _, f := range line.Fees {
			if f.FeeType == marketplace.FeeTypeFinalValueFixed {
				s.fixedFees[line.LineItemID] = s.fixedFees[line.LineItemID].Add(f.Amount.Value)
			} else {
				s.lineFees[line.LineItemID] = s.lineFees[line.LineItemID].Add(f.Amount.Value)
			}
		}
		totals[line.LineItemID] = line.LineFeeTotal()
	}

	s.baseFees, s.baseFixed = s.lineFees, s.fixedFees
	if s.converted && s.homeFee.IsPositive() && len(totals) > 0 {
		baseTotals, err := valueobject.Allocate(totals, s.homeFee, valueobject.MoneyPlaces)
		if err != nil {
			return nil, integration.NewSyncError(orderID, "cannot split fees").With("home_fee", s.homeFee).Wrap(err)
		}
		s.baseFees = make(map[string]decimal.Decimal, len(baseTotals))
		s.baseFixed = make(map[string]decimal.Decimal, len(s.fixedFees))
		for id, v := range s.fixedFees {
			s.baseFixed[id] = valueobject.RoundMoney(v.Mul(s.marketRate))
		}
		for id, v := range baseTotals {
			s.baseFees[id] = v.Sub(s.baseFixed[id])
		}
	}
	return s, nil
}

// lineCollectedTax returns the tax the marketplace collected on one line and
// its reference, recording both in car
func (b *InvoiceBuilder) lineCollectedTax(
	orderID string,
	li marketplace.LineItem,
	currency string,
	terr territory.Territory,
	voec bool,
	car *collectedTaxes,
) (decimal.Decimal, string, error) {
	total := decimal.Zero
	var refs []string

	for _, ct := range li.CollectedTaxes {
		carType := ct.TaxType
		switch carType {
		case carStateSalesTax, carGST, carImportVAT, carNorwegianVAT:
		case carVAT:
			carType = carEUVAT
			if terr == territory.Home {
				carType = carUKVAT
			}
		default:
			return decimal.Zero, "", integration.SyncErrorf(orderID, "unhandled collected tax type %q", ct.TaxType).
				With("line", li.LineItemID)
		}
		if cur := ct.Amount.OriginalCurrency(); cur != currency {
			return decimal.Zero, "", integration.SyncErrorf(orderID, "collected tax currency mismatch").
				With("line", li.LineItemID).With("currency", cur).With("order_currency", currency)
		}
		ref := ""
		if ct.Reference != nil {
			ref = ct.Reference.String()
			if !slices.Contains(refs, ref) {
				refs = append(refs, ref)
			}
		}
		amount := ct.Amount.Original()
		total = total.Add(amount)
		car.add(carType, amount, ref)
	}

	for _, tax := range li.Taxes {
		switch tax.TaxType {
		case carStateSalesTax, carGST, carVAT, carImportVAT:
			// reported again under collected taxes
		case "":
			amount := tax.Amount.Original()
			switch {
			case voec:
				if len(li.CollectedTaxes) > 0 {
					return decimal.Zero, "", integration.SyncErrorf(orderID, "VOEC tax on a line with collected taxes").
						With("line", li.LineItemID)
				}
				total = total.Add(amount)
				car.add(carNorwegianVAT, amount, voecReference)
				if !slices.Contains(refs, voecReference) {
					refs = append(refs, voecReference)
				}
			case amount.IsZero():
			default:
				return decimal.Zero, "", integration.SyncErrorf(orderID, "unhandled tax").
					With("line", li.LineItemID).With("amount", amount)
			}
		default:
			return decimal.Zero, "", integration.SyncErrorf(orderID, "unhandled tax type %q", tax.TaxType).
				With("line", li.LineItemID)
		}
	}

	if len(refs) > 1 {
		return decimal.Zero, "", integration.SyncErrorf(orderID, "multiple collected tax references on one line").
			With("line", li.LineItemID).With("references", strings.Join(refs, "; "))
	}
	ref := ""
	if len(refs) == 1 {
		ref = refs[0]
	}
	return total, ref, nil
}
