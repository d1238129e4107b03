package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// TransactionType
// ---------------------------------------------------------------------------

// TransactionType is the kind of a financial transaction
type TransactionType string

const (
	TransactionTypeSale          TransactionType = "SALE"
	TransactionTypeRefund        TransactionType = "REFUND"
	TransactionTypeNonSaleCharge TransactionType = "NON_SALE_CHARGE"
	TransactionTypeShippingLabel TransactionType = "SHIPPING_LABEL"
	TransactionTypeDispute       TransactionType = "DISPUTE"
	TransactionTypeCredit        TransactionType = "CREDIT"
	TransactionTypeAdjustment    TransactionType = "ADJUSTMENT"
	TransactionTypeTransfer      TransactionType = "TRANSFER"
)

// IsValid returns true for the transaction types the reconciler understands
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeRefund, TransactionTypeNonSaleCharge,
		TransactionTypeShippingLabel, TransactionTypeDispute, TransactionTypeCredit,
		TransactionTypeAdjustment, TransactionTypeTransfer:
		return true
	default:
		return false
	}
}

// IsOrderFee returns true for SALE and REFUND, whose fees are split per order line
func (t TransactionType) IsOrderFee() bool {
	return t == TransactionTypeSale || t == TransactionTypeRefund
}

// IsCharge returns true for the single-item charge types
func (t TransactionType) IsCharge() bool {
	switch t {
	case TransactionTypeNonSaleCharge, TransactionTypeShippingLabel,
		TransactionTypeDispute, TransactionTypeCredit, TransactionTypeAdjustment:
		return true
	default:
		return false
	}
}

// Transaction statuses with special handling
const (
	TransactionStatusFailed                  = "FAILED"
	TransactionStatusFundsOnHold             = "FUNDS_ON_HOLD"
	TransactionStatusFundsProcessing         = "FUNDS_PROCESSING"
	TransactionStatusCompleted               = "COMPLETED"
	TransactionStatusPayout                  = "PAYOUT"
	TransactionStatusFundsAvailableForPayout = "FUNDS_AVAILABLE_FOR_PAYOUT"
)

// BookingEntry is the direction of a transaction in the seller's account
type BookingEntry string

const (
	BookingEntryCredit BookingEntry = "CREDIT"
	BookingEntryDebit  BookingEntry = "DEBIT"
)

// Multiplier is -1 for credits and 1 for debits
func (b BookingEntry) Multiplier() decimal.Decimal {
	if b == BookingEntryCredit {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Reference types on charge transactions
const (
	ReferenceTypeItemID  = "ITEM_ID"
	ReferenceTypeOrderID = "ORDER_ID"
	ReferenceTypeInvoice = "INVOICE"
)

// Fee types with special handling
const (
	FeeTypeFinalValue          = "FINAL_VALUE_FEE"
	FeeTypeFinalValueFixed     = "FINAL_VALUE_FEE_FIXED_PER_ORDER"
	FeeTypeFinalValueShipping  = "FINAL_VALUE_SHIPPING_FEE"
	FeeTypeAd                  = "AD_FEE"
	FeeTypeOther               = "OTHER_FEES"
	CardChargebackRecoupSuffix = "-CCM_RECOUP"
)

// ---------------------------------------------------------------------------
// Transaction
// ---------------------------------------------------------------------------

// Transaction is a marketplace financial transaction
type Transaction struct {
	TransactionID   string                 `json:"transaction_id" validate:"required"`
	TransactionType TransactionType        `json:"transaction_type" validate:"required"`
	Status          string                 `json:"transaction_status" validate:"required"`
	Date            time.Time              `json:"transaction_date" validate:"required"`
	BookingEntry    BookingEntry           `json:"booking_entry" validate:"required,oneof=CREDIT DEBIT"`
	Amount          Amount                 `json:"amount"`
	TotalFeeAmount  *Amount                `json:"total_fee_amount,omitempty"`
	OrderID         string                 `json:"order_id,omitempty"`
	BuyerUsername   string                 `json:"buyer_username,omitempty"`
	FeeType         string                 `json:"fee_type,omitempty"`
	Memo            string                 `json:"transaction_memo,omitempty"`
	PayoutID        string                 `json:"payout_id,omitempty"`
	References      []TransactionReference `json:"references,omitempty"`
	OrderLineItems  []OrderLineFees        `json:"order_line_items,omitempty"`
}

// TransactionReference is a typed reference attached to a transaction
type TransactionReference struct {
	ReferenceID   string `json:"reference_id"`
	ReferenceType string `json:"reference_type"`
}

// OrderLineFees holds the marketplace fees charged for one order line
type OrderLineFees struct {
	LineItemID string           `json:"line_item_id"`
	Fees       []MarketplaceFee `json:"marketplace_fees"`
}

// MarketplaceFee is a single fee charged by the marketplace
type MarketplaceFee struct {
	FeeType string `json:"fee_type"`
	Amount  Amount `json:"amount"`
	Memo    string `json:"fee_memo,omitempty"`
}

// SettlementDate returns the UTC calendar date of the transaction
func (t Transaction) SettlementDate() time.Time {
	d := t.Date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// HasFees returns true if the transaction carries fee data
func (t Transaction) HasFees() bool {
	return t.TotalFeeAmount != nil || len(t.OrderLineItems) > 0
}

// ReferencesOfType returns the reference ids with the given type, in order
func (t Transaction) ReferencesOfType(refType string) []string {
	var ids []string
	for _, r := range t.References {
		if r.ReferenceType == refType {
			ids = append(ids, r.ReferenceID)
		}
	}
	return ids
}

// HasReferenceType returns true if any reference has the given type
func (t Transaction) HasReferenceType(refType string) bool {
	for _, r := range t.References {
		if r.ReferenceType == refType {
			return true
		}
	}
	return false
}

// LineFeeTotal sums the fees of one order line
func (f OrderLineFees) LineFeeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, fee := range f.Fees {
		total = total.Add(fee.Amount.Value)
	}
	return total
}
