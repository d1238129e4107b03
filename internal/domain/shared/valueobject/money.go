package valueobject

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places used for ledger amounts.
const MoneyPlaces int32 = 2

// RoundMoney rounds an amount to ledger precision, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
