package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// PaymentStatus
// ---------------------------------------------------------------------------

// PaymentStatus is the payment state of a marketplace order
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "PAID"
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusFullyRefunded     PaymentStatus = "FULLY_REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// IsValid returns true if the status is known
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusPending, PaymentStatusFailed,
		PaymentStatusFullyRefunded, PaymentStatusPartiallyRefunded:
		return true
	default:
		return false
	}
}

// IsIncomplete returns true while payment has not reached a usable state.
// Incomplete orders are re-evaluated on the next run.
func (s PaymentStatus) IsIncomplete() bool {
	return s == PaymentStatusPending || s == PaymentStatusFailed
}

// IsRefunded returns true for fully or partially refunded orders
func (s PaymentStatus) IsRefunded() bool {
	return s == PaymentStatusFullyRefunded || s == PaymentStatusPartiallyRefunded
}

// RefundKind returns "Full" or "Partial" for refunded orders
func (s PaymentStatus) RefundKind() string {
	switch s {
	case PaymentStatusFullyRefunded:
		return "Full"
	case PaymentStatusPartiallyRefunded:
		return "Partial"
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order is a marketplace order as returned by the fulfillment API
type Order struct {
	OrderID       string        `validate:"required"`
	CreationDate  time.Time     `validate:"required"`
	PaymentStatus PaymentStatus `validate:"required"`
	Buyer         Buyer
	ShipTo        ShipTo
	LineItems     []LineItem `validate:"required,min=1,dive"`
	Total         Amount
	Payments      []Payment `validate:"dive"`
	Refunds       []Refund  `validate:"dive"`
	// CheckoutNotes is the free-text buyer checkout message
	CheckoutNotes string
}

// Buyer identifies the marketplace buyer
type Buyer struct {
	// Username is the stable marketplace buyer id
	Username      string `validate:"required"`
	TaxAddress    *TaxAddress
	TaxIdentifier *TaxIdentifier
}

// TaxAddress is the buyer's tax residence as reported by the marketplace
type TaxAddress struct {
	City            string
	StateOrProvince string
	PostalCode      string
	CountryCode     string
}

// TaxIdentifier is a buyer tax registration
type TaxIdentifier struct {
	Type           string
	TaxpayerID     string
	IssuingCountry string
}

// ShipTo is the shipping destination of an order
type ShipTo struct {
	FullName string
	Email    string
	Phone    string
	Address  PostalAddress
}

// PostalAddress is a marketplace postal address
type PostalAddress struct {
	AddressLine1    string
	AddressLine2    string
	City            string
	StateOrProvince string
	PostalCode      string
	CountryCode     string
}

// Payment is one buyer payment on an order
type Payment struct {
	PaymentMethod string
	Amount        Amount
}

// Refund is one refund on an order
type Refund struct {
	RefundID   string
	RefundDate time.Time `validate:"required"`
	Amount     Amount
}

// ---------------------------------------------------------------------------
// LineItem
// ---------------------------------------------------------------------------

// LineItem is one line of a marketplace order
type LineItem struct {
	LineItemID                string `validate:"required"`
	LegacyItemID              string
	SKU                       string
	Title                     string
	Quantity                  int `validate:"gte=1"`
	Total                     Amount
	ShippingCost              Amount
	ImportCharges             *Amount
	ShippingIntermediationFee *Amount
	Taxes                     []LineTax
	CollectedTaxes            []CollectedTax
	ListingMarketplaceID      string
	PurchaseMarketplaceID     string
	Refunds                   []LineRefund
}

// LineTax is a tax entry reported on a line item
type LineTax struct {
	// TaxType is empty when the marketplace sends no type
	TaxType string
	Amount  Amount
}

// CollectedTax is a tax the marketplace collects and remits on the seller's behalf
type CollectedTax struct {
	TaxType   string
	Amount    Amount
	Reference *TaxReference
}

// TaxReference identifies a collect-and-remit registration
type TaxReference struct {
	Name  string
	Value string
}

// String returns "name: value"
func (r TaxReference) String() string {
	return r.Name + ": " + r.Value
}

// LineRefund is a refund recorded against one line item
type LineRefund struct {
	RefundDate time.Time
	Amount     Amount
}

// OriginalTotal returns the line total in the buyer currency
func (li LineItem) OriginalTotal() decimal.Decimal {
	return li.Total.Original()
}

// RefundedTotal returns the sum of line refunds in the buyer currency
func (li LineItem) RefundedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range li.Refunds {
		total = total.Add(r.Amount.Original())
	}
	return total
}
