package marketplace

import "time"

// PayoutStatus is the state of a payout to the seller's bank
type PayoutStatus string

const (
	PayoutStatusInitiated       PayoutStatus = "INITIATED"
	PayoutStatusSucceeded       PayoutStatus = "SUCCEEDED"
	PayoutStatusRetryableFailed PayoutStatus = "RETRYABLE_FAILED"
	PayoutStatusTerminalFailed  PayoutStatus = "TERMINAL_FAILED"
	PayoutStatusReversed        PayoutStatus = "REVERSED"
)

// IsSettled returns false for payouts that have not happened or did not happen
func (s PayoutStatus) IsSettled() bool {
	switch s {
	case PayoutStatusInitiated, PayoutStatusRetryableFailed, PayoutStatusTerminalFailed:
		return false
	default:
		return true
	}
}

// Payout is a disbursement from the marketplace to the seller
type Payout struct {
	PayoutID          string           `json:"payout_id" validate:"required"`
	Status            PayoutStatus     `json:"payout_status" validate:"required"`
	Date              time.Time        `json:"payout_date" validate:"required"`
	Amount            Amount           `json:"amount"`
	Instrument        PayoutInstrument `json:"payout_instrument"`
	StatusDescription string           `json:"payout_status_description,omitempty"`
}

// PayoutInstrument is the bank account a payout was sent to
type PayoutInstrument struct {
	InstrumentType string `json:"instrument_type"`
	Nickname       string `json:"nickname"`
	LastFourDigits string `json:"account_last_four_digits"`
}

// SettlementDate returns the UTC calendar date of the payout
func (p Payout) SettlementDate() time.Time {
	d := p.Date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
