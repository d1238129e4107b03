package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRateInfeasible is returned when no exchange rate reconciles two rounded amounts.
var ErrRateInfeasible = errors.New("valueobject: no exchange rate reconciles the amounts")

// RateInterval is the closed range of rates that reproduce a rounded conversion.
type RateInterval struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// Contains reports whether rate lies inside the interval.
func (r RateInterval) Contains(rate decimal.Decimal) bool {
	return rate.GreaterThanOrEqual(r.Low) && rate.LessThanOrEqual(r.High)
}

// roundingTolerance is 0.495 units, kept inside the half-unit boundary so a rate on
// the interval edge still rounds onto the target amount.
func roundingTolerance(places int32) decimal.Decimal {
	return decimal.New(495, -places-3)
}

// ReconcileInterval returns the rates r for which round(r*foreign, places) == home
// and round(home/r, places) == foreign both hold.
func ReconcileInterval(home, foreign decimal.Decimal, places int32) (RateInterval, error) {
	if home.IsNegative() && foreign.IsNegative() {
		home, foreign = home.Abs(), foreign.Abs()
	}
	if !home.IsPositive() || !foreign.IsPositive() {
		return RateInterval{}, fmt.Errorf("%w: home %s, foreign %s", ErrRateInfeasible, home.String(), foreign.String())
	}

	tol := roundingTolerance(places)

	// Forward direction: home - tol <= r*foreign <= home + tol.
	low := home.Sub(tol).Div(foreign)
	high := home.Add(tol).Div(foreign)

	// Inverse direction: foreign - tol <= home/r <= foreign + tol.
	if invLow := home.Div(foreign.Add(tol)); invLow.GreaterThan(low) {
		low = invLow
	}
	if foreign.GreaterThan(tol) {
		if invHigh := home.Div(foreign.Sub(tol)); invHigh.LessThan(high) {
			high = invHigh
		}
	}
	if !low.IsPositive() {
		low = decimal.New(1, -16)
	}

	if low.GreaterThan(high) {
		return RateInterval{}, fmt.Errorf("%w: home %s, foreign %s", ErrRateInfeasible, home.String(), foreign.String())
	}
	return RateInterval{Low: low, High: high}, nil
}

// ReconcileRate derives a conversion rate that maps foreign onto home exactly at the
// given precision. The nominal (market) rate is returned unchanged when it already
// reconciles; otherwise the nearest interval boundary is used. Amounts that sit more
// than one rounding unit away from the nominal conversion are reported as
// ErrRateInfeasible rather than patched.
func ReconcileRate(nominal, home, foreign decimal.Decimal, places int32) (decimal.Decimal, error) {
	interval, err := ReconcileInterval(home, foreign, places)
	if err != nil {
		return decimal.Zero, err
	}
	if interval.Contains(nominal) {
		return nominal, nil
	}

	drift := nominal.Mul(foreign).Sub(home).Abs()
	if drift.GreaterThan(decimal.New(1, -places)) {
		return decimal.Zero, fmt.Errorf("%w: %s x %s is %s away from %s",
			ErrRateInfeasible, nominal.String(), foreign.String(), drift.String(), home.String())
	}

	if nominal.LessThan(interval.Low) {
		return interval.Low, nil
	}
	return interval.High, nil
}
