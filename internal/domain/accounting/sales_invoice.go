package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// DocStatus
// ---------------------------------------------------------------------------

// DocStatus is the lifecycle state of an accounting document
type DocStatus string

const (
	DocStatusDraft     DocStatus = "DRAFT"
	DocStatusSubmitted DocStatus = "SUBMITTED"
	DocStatusCancelled DocStatus = "CANCELLED"
)

// String returns the string representation of DocStatus
func (s DocStatus) String() string {
	return string(s)
}

// ChargeTypeActual is a tax line with a fixed amount
const ChargeTypeActual = "Actual"

// ---------------------------------------------------------------------------
// SalesInvoice
// ---------------------------------------------------------------------------

// SalesInvoice is an ERP sales invoice, or a return against one.
// Amounts are in Currency; ConversionRate converts them to the home currency.
type SalesInvoice struct {
	shared.BaseEntity
	Name  string
	Title string
	// MarketplaceOrderID links an original invoice to its marketplace order; empty on returns
	MarketplaceOrderID string
	CustomerID         uuid.UUID
	CustomerName       string
	AddressID          uuid.UUID
	ContactEmail       string
	Territory          string
	ListingSite        string
	PurchaseSite       string
	BuyerMessage       string
	// CollectedTaxTotal is the tax the marketplace collected and remitted
	CollectedTaxTotal   decimal.Decimal
	CollectedTaxDetails string
	PostingDate         time.Time
	Currency            string
	ConversionRate      decimal.Decimal
	Status              DocStatus
	IsReturn            bool
	ReturnAgainst       *uuid.UUID
	AmendedFrom         *uuid.UUID
	Items               []InvoiceItem
	Taxes               []InvoiceTax
	Payments            []InvoicePayment
}

// InvoiceItem is one line of a sales invoice
type InvoiceItem struct {
	Position      int
	ItemCode      string
	Description   string
	Qty           int
	Rate          decimal.Decimal
	IncomeAccount string
	IsShipping    bool
	// Marketplace metadata, recorded for traceability only
	LineItemID            string
	ListingID             string
	FinalValueFee         decimal.Decimal
	BaseFinalValueFee     decimal.Decimal
	FixedFee              decimal.Decimal
	BaseFixedFee          decimal.Decimal
	CollectedTax          decimal.Decimal
	CollectedTaxReference string
}

// Amount is Qty x Rate rounded to money precision
func (i InvoiceItem) Amount() decimal.Decimal {
	return valueobject.RoundMoney(i.Rate.Mul(decimal.NewFromInt(int64(i.Qty))))
}

// InvoiceTax is a document-level tax line
type InvoiceTax struct {
	ChargeType  string
	Description string
	Account     string
	// Rate is the nominal percentage
	Rate      decimal.Decimal
	TaxAmount decimal.Decimal
}

// InvoicePayment is a payment recorded on the invoice
type InvoicePayment struct {
	ModeOfPayment string
	Amount        decimal.Decimal
}

// NewSalesInvoice creates a draft invoice
func NewSalesInvoice(title string, customer *Customer, currency string) *SalesInvoice {
	inv := &SalesInvoice{
		BaseEntity:     shared.NewBaseEntity(),
		Title:          title,
		CustomerID:     customer.ID,
		CustomerName:   customer.Name,
		Currency:       currency,
		ConversionRate: decimal.NewFromInt(1),
		Status:         DocStatusDraft,
	}
	inv.Name = documentName("SINV", inv.ID)
	return inv
}

// NetTotal sums the line amounts
func (inv *SalesInvoice) NetTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.Items {
		total = total.Add(it.Amount())
	}
	return total
}

// TaxTotal sums the tax lines
func (inv *SalesInvoice) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range inv.Taxes {
		total = total.Add(t.TaxAmount)
	}
	return valueobject.RoundMoney(total)
}

// GrandTotal is NetTotal plus TaxTotal
func (inv *SalesInvoice) GrandTotal() decimal.Decimal {
	return inv.NetTotal().Add(inv.TaxTotal())
}

// PaidAmount sums the payments
func (inv *SalesInvoice) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range inv.Payments {
		total = total.Add(p.Amount)
	}
	return valueobject.RoundMoney(total)
}

// Outstanding is GrandTotal minus PaidAmount
func (inv *SalesInvoice) Outstanding() decimal.Decimal {
	return inv.GrandTotal().Sub(inv.PaidAmount())
}

// Submit finalizes a balanced draft
func (inv *SalesInvoice) Submit() error {
	if inv.Status != DocStatusDraft {
		return fmt.Errorf("%w: invoice %s is %s", shared.ErrInvalidState, inv.Name, inv.Status)
	}
	if !inv.Outstanding().IsZero() {
		return fmt.Errorf("%w: invoice %s has outstanding amount %s", shared.ErrInvalidState, inv.Name, inv.Outstanding())
	}
	inv.Status = DocStatusSubmitted
	inv.Touch()
	return nil
}

// Cancel cancels a submitted invoice
func (inv *SalesInvoice) Cancel() error {
	if inv.Status != DocStatusSubmitted {
		return fmt.Errorf("%w: invoice %s is %s", shared.ErrInvalidState, inv.Name, inv.Status)
	}
	inv.Status = DocStatusCancelled
	inv.Touch()
	return nil
}

// NewReturn creates a draft return against a submitted invoice. Quantities,
// taxes and payments are negated; rates are kept.
func (inv *SalesInvoice) NewReturn(title string, postingDate time.Time) (*SalesInvoice, error) {
	if inv.Status != DocStatusSubmitted {
		return nil, fmt.Errorf("%w: cannot return against %s invoice %s", shared.ErrInvalidState, inv.Status, inv.Name)
	}
	against := inv.ID
	ret := &SalesInvoice{
		BaseEntity:     shared.NewBaseEntity(),
		Title:          title,
		CustomerID:     inv.CustomerID,
		CustomerName:   inv.CustomerName,
		AddressID:      inv.AddressID,
		ContactEmail:   inv.ContactEmail,
		Territory:      inv.Territory,
		ListingSite:    inv.ListingSite,
		PurchaseSite:   inv.PurchaseSite,
		PostingDate:    postingDate,
		Currency:       inv.Currency,
		ConversionRate: inv.ConversionRate,
		Status:         DocStatusDraft,
		IsReturn:       true,
		ReturnAgainst:  &against,
	}
	ret.Name = documentName("SINV-RET", ret.ID)
	for _, it := range inv.Items {
		it.Qty = -it.Qty
		ret.Items = append(ret.Items, it)
	}
	for _, t := range inv.Taxes {
		t.TaxAmount = t.TaxAmount.Neg()
		ret.Taxes = append(ret.Taxes, t)
	}
	for _, p := range inv.Payments {
		p.Amount = p.Amount.Neg()
		ret.Payments = append(ret.Payments, p)
	}
	return ret, nil
}

// documentName builds a short unique document name
func documentName(prefix string, id uuid.UUID) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10])
}
