package accounting

import (
	"time"

	"github.com/erp/marketsync/internal/domain/shared"
	"github.com/erp/marketsync/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FeeDocument is a purchase-invoice-like document collecting one settlement
// date's marketplace fees and charges. It is never submitted automatically.
type FeeDocument struct {
	shared.BaseEntity
	Name          string
	Title         string
	Supplier      string
	PostingDate   time.Time
	Currency      string
	CashAccount   string
	ModeOfPayment string
	// TaxRate is the domestic VAT percentage included in the fee rates
	TaxRate    decimal.Decimal
	TaxAccount string
	// IsReturn marks a debit note: the day's net effect was a credit
	IsReturn bool
	// HoldForReview is set when a charge may carry incorrect VAT
	HoldForReview bool
	Status        DocStatus
	Items         []FeeItem
}

// FeeItem is one fee line, traceable to its marketplace transaction
type FeeItem struct {
	Position            int
	ItemCode            string
	Description         string
	Qty                 int
	Rate                decimal.Decimal
	ExpenseAccount      string
	TransactionID       string
	TransactionDate     time.Time
	OrderID             string
	LineItemID          string
	SKU                 string
	TransactionCurrency string
	ExchangeRate        decimal.Decimal
	Buyer               string
}

// Amount is Qty x Rate
func (i FeeItem) Amount() decimal.Decimal {
	return valueobject.RoundMoney(i.Rate.Mul(decimal.NewFromInt(int64(i.Qty))))
}

// NewFeeDocument creates a draft fee document for a settlement date
func NewFeeDocument(title, supplier string, postingDate time.Time, currency string) *FeeDocument {
	doc := &FeeDocument{
		BaseEntity:  shared.NewBaseEntity(),
		Title:       title,
		Supplier:    supplier,
		PostingDate: postingDate,
		Currency:    currency,
		Status:      DocStatusDraft,
	}
	doc.Name = documentName("PINV", doc.ID)
	return doc
}

// AddItem appends an item, assigning its position
func (d *FeeDocument) AddItem(item FeeItem) {
	item.Position = len(d.Items) + 1
	d.Items = append(d.Items, item)
}

// Total sums the item amounts
func (d *FeeDocument) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Amount())
	}
	return total
}

// FinalizeSign turns the document into a debit note when its total is negative,
// negating quantities and rates so each line keeps its amount.
func (d *FeeDocument) FinalizeSign() {
	if !d.Total().IsNegative() {
		return
	}
	for i := range d.Items {
		d.Items[i].Qty = -d.Items[i].Qty
		d.Items[i].Rate = d.Items[i].Rate.Neg()
	}
	d.IsReturn = true
}
