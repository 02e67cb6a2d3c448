// Package allocation models a four-bucket portfolio split and the base
// allocation chosen from a user's risk tier.
package allocation

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerate is returned when an allocation cannot be renormalized
var ErrDegenerate = errors.New("allocation degenerate")

// SumTolerance bounds how far an exposed allocation may drift from 1.0
const SumTolerance = 1e-6

// AssetClass is one bucket of the portfolio
type AssetClass string

const (
	Equity AssetClass = "equity"
	Debt   AssetClass = "debt"
	Liquid AssetClass = "liquid"
	Gold   AssetClass = "gold"
)

// AssetClasses is the canonical iteration order
var AssetClasses = []AssetClass{Equity, Debt, Liquid, Gold}

// Valid reports whether the asset class is known
func (a AssetClass) Valid() bool {
	switch a {
	case Equity, Debt, Liquid, Gold:
		return true
	}
	return false
}

// Allocation maps each asset class to its fraction of the portfolio
type Allocation map[AssetClass]float64

// New builds an allocation from the four bucket weights
func New(equity, debt, liquid, gold float64) Allocation {
	return Allocation{
		Equity: equity,
		Debt:   debt,
		Liquid: liquid,
		Gold:   gold,
	}
}

// Clone returns an independent copy
func (a Allocation) Clone() Allocation {
	out := make(Allocation, len(AssetClasses))
	for _, c := range AssetClasses {
		out[c] = a[c]
	}
	return out
}

// Sum adds every bucket
func (a Allocation) Sum() float64 {
	total := 0.0
	for _, c := range AssetClasses {
		total += a[c]
	}
	return total
}

// Move shifts amount out of from and spreads it across the given shares.
// Shares are fractions of amount and are expected to add up to 1.
func (a Allocation) Move(from AssetClass, amount float64, shares map[AssetClass]float64) {
	a[from] -= amount
	for _, c := range AssetClasses {
		if share, ok := shares[c]; ok {
			a[c] += amount * share
		}
	}
}

// Normalize returns a copy scaled to sum to 1.0. Negative buckets are
// clamped to zero first.
func (a Allocation) Normalize() (Allocation, error) {
	out := a.Clone()
	for _, c := range AssetClasses {
		if math.IsNaN(out[c]) || math.IsInf(out[c], 0) {
			return nil, fmt.Errorf("%w: %s is not finite", ErrDegenerate, c)
		}
		if out[c] < 0 {
			out[c] = 0
		}
	}

	total := out.Sum()
	if total <= 0 {
		return nil, fmt.Errorf("%w: sum %.6f", ErrDegenerate, total)
	}

	for _, c := range AssetClasses {
		out[c] /= total
	}
	return out, nil
}

// IsNormalized reports whether the allocation is non-negative and sums to 1
func (a Allocation) IsNormalized() bool {
	for _, c := range AssetClasses {
		if a[c] < 0 {
			return false
		}
	}
	return math.Abs(a.Sum()-1.0) <= SumTolerance
}

// Round returns a copy with each bucket rounded to the given decimals. A
// normalized allocation stays normalized: the rounding residue is added to
// the largest bucket.
func (a Allocation) Round(decimals int) Allocation {
	pow := math.Pow(10, float64(decimals))
	out := make(Allocation, len(AssetClasses))
	for _, c := range AssetClasses {
		out[c] = math.Round(a[c]*pow) / pow
	}
	if !a.IsNormalized() {
		return out
	}

	largest := AssetClasses[0]
	for _, c := range AssetClasses[1:] {
		if out[c] > out[largest] {
			largest = c
		}
	}
	out[largest] = math.Round((out[largest]+1-out.Sum())*pow) / pow
	return out
}
