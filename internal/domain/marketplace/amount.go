// Package marketplace holds the typed, validated records fetched from the
// marketplace selling APIs and the port used to fetch them.
package marketplace

import (
	"github.com/shopspring/decimal"
)

// Amount is a marketplace monetary amount. Value and Currency are always in the
// seller's (home) currency; when the buyer paid in another currency the original
// figure is kept in ConvertedFromValue/ConvertedFromCurrency.
type Amount struct {
	// Value is the amount in Currency
	Value decimal.Decimal `json:"value"`
	// Currency is the ISO 4217 code of Value
	Currency string `json:"currency" validate:"required,len=3"`
	// ConvertedFromValue is the buyer-currency amount, if converted
	ConvertedFromValue *decimal.Decimal `json:"converted_from_value,omitempty"`
	// ConvertedFromCurrency is the buyer currency, if converted
	ConvertedFromCurrency string `json:"converted_from_currency,omitempty" validate:"omitempty,len=3"`
	// ExchangeRate is the marketplace rate from buyer to seller currency
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
}

// NewAmount creates an unconverted amount.
func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value, Currency: currency}
}

// IsConverted reports whether the amount was converted from a buyer currency.
func (a Amount) IsConverted() bool {
	return a.ConvertedFromCurrency != ""
}

// Original returns the amount in the currency the buyer used.
func (a Amount) Original() decimal.Decimal {
	if a.ConvertedFromValue != nil {
		return *a.ConvertedFromValue
	}
	return a.Value
}

// OriginalCurrency returns the currency the buyer used.
func (a Amount) OriginalCurrency() string {
	if a.ConvertedFromCurrency != "" {
		return a.ConvertedFromCurrency
	}
	return a.Currency
}

// Rate returns the marketplace exchange rate, or one when unconverted.
func (a Amount) Rate() decimal.Decimal {
	if a.ExchangeRate != nil && !a.ExchangeRate.IsZero() {
		return *a.ExchangeRate
	}
	return decimal.NewFromInt(1)
}
