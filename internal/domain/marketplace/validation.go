package marketplace

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator checks typed ingestion records before they reach business logic.
// Struct tags cover required fields; the per-type shape rules cover what tags
// cannot express.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// ValidateOrder checks an order's required fields and line shapes
func (v *Validator) ValidateOrder(o *Order) error {
	if err := v.validate.Struct(o); err != nil {
		return fmt.Errorf("%w: order %s: %v", ErrUnrecognizedShape, o.OrderID, err)
	}
	if !o.PaymentStatus.IsValid() {
		return fmt.Errorf("%w: order %s has payment status %q", ErrUnrecognizedShape, o.OrderID, o.PaymentStatus)
	}
	for _, li := range o.LineItems {
		if li.ImportCharges != nil && !li.ImportCharges.Value.IsZero() {
			return fmt.Errorf("%w: order %s line %s has import charges", ErrUnrecognizedShape, o.OrderID, li.LineItemID)
		}
		if li.ShippingIntermediationFee != nil && !li.ShippingIntermediationFee.Value.IsZero() {
			return fmt.Errorf("%w: order %s line %s has a shipping intermediation fee", ErrUnrecognizedShape, o.OrderID, li.LineItemID)
		}
	}
	return nil
}

// ValidateTransaction checks a transaction against the fixed shape of its type.
// Unknown types return ErrUnknownTransactionType.
func (v *Validator) ValidateTransaction(t *Transaction) error {
	if !t.TransactionType.IsValid() {
		return fmt.Errorf("%w: transaction %s has type %q", ErrUnknownTransactionType, t.TransactionID, t.TransactionType)
	}
	if err := v.validate.Struct(t); err != nil {
		return fmt.Errorf("%w: transaction %s: %v", ErrUnrecognizedShape, t.TransactionID, err)
	}

	switch {
	case t.TransactionType.IsOrderFee():
		if len(t.OrderLineItems) > 0 {
			if t.OrderID == "" {
				return fmt.Errorf("%w: %s %s has fee lines without an order", ErrUnrecognizedShape, t.TransactionType, t.TransactionID)
			}
			if t.TotalFeeAmount == nil {
				return fmt.Errorf("%w: %s %s has fee lines without a fee total", ErrUnrecognizedShape, t.TransactionType, t.TransactionID)
			}
		}
		for _, li := range t.OrderLineItems {
			if li.LineItemID == "" {
				return fmt.Errorf("%w: %s %s has a fee line without an id", ErrUnrecognizedShape, t.TransactionType, t.TransactionID)
			}
		}
	case t.TransactionType.IsCharge():
		if len(t.OrderLineItems) > 0 {
			return fmt.Errorf("%w: %s %s has order line items", ErrUnrecognizedShape, t.TransactionType, t.TransactionID)
		}
	}
	return nil
}

// ValidatePayout checks a payout's required fields
func (v *Validator) ValidatePayout(p *Payout) error {
	if err := v.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: payout %s: %v", ErrUnrecognizedShape, p.PayoutID, err)
	}
	return nil
}
