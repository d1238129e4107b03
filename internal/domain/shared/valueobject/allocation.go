package valueobject

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Allocation errors
var (
	ErrAllocationEmpty          = errors.New("valueobject: allocation needs at least one weight")
	ErrAllocationZeroTotal      = errors.New("valueobject: allocation total rounds to zero")
	ErrAllocationZeroWeights    = errors.New("valueobject: allocation weights sum to zero")
	ErrAllocationNegativeWeight = errors.New("valueobject: allocation weight is negative")
)

type allocationShare[K cmp.Ordered] struct {
	key       K
	units     decimal.Decimal
	remainder decimal.Decimal
}

// Allocate splits total across the weighted keys, rounding each share to places
// decimal places. The shares always sum to total rounded to places.
//
// Work is done in integer units of 10^-places. Every ideal share is rounded to the
// nearest unit and the signed discrepancy against the rounded total is then pushed,
// one unit at a time, onto the entries whose rounding remainder is closest to the
// boundary. Equal remainders are resolved in key order so identical inputs always
// give identical outputs.
//
// Callers must special-case zero totals: a total that rounds to zero is rejected.
func Allocate[K cmp.Ordered](weights map[K]decimal.Decimal, total decimal.Decimal, places int32) (map[K]decimal.Decimal, error) {
	if len(weights) == 0 {
		return nil, ErrAllocationEmpty
	}

	target := total.Shift(places).Round(0)
	if target.IsZero() {
		return nil, fmt.Errorf("%w: %s at %d places", ErrAllocationZeroTotal, total.String(), places)
	}

	keys := make([]K, 0, len(weights))
	sum := decimal.Zero
	for k, w := range weights {
		if w.IsNegative() {
			return nil, fmt.Errorf("%w: %v=%s", ErrAllocationNegativeWeight, k, w.String())
		}
		keys = append(keys, k)
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		return nil, ErrAllocationZeroWeights
	}
	slices.Sort(keys)

	shares := make([]allocationShare[K], len(keys))
	allocated := decimal.Zero
	for i, k := range keys {
		ideal := weights[k].Mul(target).Div(sum)
		units := ideal.Round(0)
		shares[i] = allocationShare[K]{key: k, units: units, remainder: ideal.Sub(units)}
		allocated = allocated.Add(units)
	}

	one := decimal.NewFromInt(1)
	switch discrepancy := allocated.Sub(target).IntPart(); {
	case discrepancy > 0:
		// Too much handed out: take a unit back from the shares rounded up the furthest.
		slices.SortStableFunc(shares, func(a, b allocationShare[K]) int {
			return a.remainder.Cmp(b.remainder)
		})
		for i := int64(0); i < discrepancy; i++ {
			shares[i].units = shares[i].units.Sub(one)
		}
	case discrepancy < 0:
		// Too little: give a unit to the shares rounded down the furthest.
		slices.SortStableFunc(shares, func(a, b allocationShare[K]) int {
			return b.remainder.Cmp(a.remainder)
		})
		for i := int64(0); i < -discrepancy; i++ {
			shares[i].units = shares[i].units.Add(one)
		}
	}

	result := make(map[K]decimal.Decimal, len(shares))
	for _, s := range shares {
		result[s.key] = s.units.Shift(-places)
	}
	return result, nil
}
