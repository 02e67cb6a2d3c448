package allocation

import (
	"fmt"

	"github.com/finsphere/finsphere/internal/profile"
)

const (
	equityFloor = 0.20

	behavioralThreshold = 0.7
	behavioralShift     = 0.15
	behavioralDebtShare = 0.70

	shortHorizonLiquidBoost   = 0.20
	shortHorizonLiquidCeiling = 0.40
)

var tierAllocations = map[profile.RiskAppetite]Allocation{
	profile.Conservative: New(0.30, 0.50, 0.15, 0.05),
	profile.Moderate:     New(0.60, 0.25, 0.10, 0.05),
	profile.Aggressive:   New(0.80, 0.10, 0.05, 0.05),
}

// ForTier returns the canonical starting allocation for a risk tier
func ForTier(tier profile.RiskAppetite) (Allocation, error) {
	base, ok := tierAllocations[tier]
	if !ok {
		return nil, fmt.Errorf("%w: unknown risk appetite %q", profile.ErrInvalidProfile, tier)
	}
	return base.Clone(), nil
}

// Base returns the tier allocation adjusted for impulsive behavior and a
// short investment horizon. Equity never drops below 20% through these
// shifts and only what equity actually releases is moved, so the result
// still sums to 1.
func Base(p profile.UserProfile) (Allocation, error) {
	alloc, err := ForTier(p.RiskAppetite)
	if err != nil {
		return nil, err
	}

	if p.BehavioralScore > behavioralThreshold {
		shift := min(behavioralShift, alloc[Equity]-equityFloor)
		if shift > 0 {
			alloc.Move(Equity, shift, map[AssetClass]float64{
				Debt:   behavioralDebtShare,
				Liquid: 1 - behavioralDebtShare,
			})
		}
	}

	if p.InvestmentHorizon == profile.ShortTerm {
		shift := min(shortHorizonLiquidBoost, shortHorizonLiquidCeiling-alloc[Liquid], alloc[Equity]-equityFloor)
		if shift > 0 {
			alloc.Move(Equity, shift, map[AssetClass]float64{Liquid: 1})
		}
	}

	return alloc, nil
}
