package risk

import (
	"fmt"

	"github.com/finsphere/finsphere/internal/allocation"
)

const (
	crashEquityShare      = 0.25
	volatilityEquityShare = 0.15
	stressEquityShare     = 0.30
	liquidityKeepShare    = 0.60
	currencyGoldShift     = 0.10
)

// AdjustAllocation applies the action of every high or critical event, in
// event order, to a copy of base and renormalizes the result.
func AdjustAllocation(base allocation.Allocation, events []Event) (allocation.Allocation, error) {
	current := base.Clone()

	for _, e := range events {
		if !e.Category.Valid() {
			return nil, fmt.Errorf("%w: %q from rule %s", ErrUnknownRiskCategory, e.Category, e.Rule)
		}
		if !e.Severity.AtLeastHigh() {
			continue
		}
		if err := apply(current, e); err != nil {
			return nil, err
		}
	}

	return current.Normalize()
}

func apply(a allocation.Allocation, e Event) error {
	switch e.Action {
	case ActionNone:
		// informational rule, nothing to move
	case ActionCrash:
		a.Move(allocation.Equity, a[allocation.Equity]*crashEquityShare, map[allocation.AssetClass]float64{
			allocation.Debt:   0.6,
			allocation.Liquid: 0.4,
		})
	case ActionVolatility:
		a.Move(allocation.Equity, a[allocation.Equity]*volatilityEquityShare, map[allocation.AssetClass]float64{
			allocation.Debt: 0.7,
			allocation.Gold: 0.3,
		})
	case ActionStress:
		a.Move(allocation.Equity, a[allocation.Equity]*stressEquityShare, map[allocation.AssetClass]float64{
			allocation.Liquid: 0.6,
			allocation.Debt:   0.4,
		})
	case ActionCriticalLiquidity:
		freed := 0.0
		for _, class := range allocation.AssetClasses {
			if class == allocation.Liquid {
				continue
			}
			freed += a[class] * (1 - liquidityKeepShare)
			a[class] *= liquidityKeepShare
		}
		a[allocation.Liquid] += freed
	case ActionCurrency:
		share := currencyGoldShift / 3
		a[allocation.Equity] -= share
		a[allocation.Debt] -= share
		a[allocation.Liquid] -= share
		a[allocation.Gold] += currencyGoldShift
	default:
		return fmt.Errorf("%w: %q from rule %s", ErrUnknownAction, e.Action, e.Rule)
	}
	return nil
}
