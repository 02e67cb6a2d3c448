package risk

import (
	"fmt"
	"strings"

	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/profile"
)

// Rule thresholds
const (
	CrashThreshold           = -3.0
	VolatilityVIX            = 25.0
	ExtremeVolatilityVIX     = 35.0
	SectorDeclineThreshold   = -5.0
	MinDecliningSectors      = 3
	HighStressBaseline       = 7.0
	ImpulsiveBehavioralScore = 0.7
	LargePurchaseAmount      = 10000.0
	MinLargePurchases        = 2
	CriticalEmergencyMonths  = 2.0
	TargetEmergencyMonths    = 6.0
	LowSurplusThreshold      = 2000.0
	WeakRupeeThreshold       = 85.0
	HighBondYield            = 8.0
)

// Input is everything one evaluation pass looks at. Transactions and
// Biometrics are optional; nil means no history.
type Input struct {
	Profile      profile.UserProfile
	Market       market.Snapshot
	Transactions []profile.Transaction
	Biometrics   []profile.BiometricReading
}

// Trigger is what a matching rule reports back
type Trigger struct {
	// Severity overrides the rule's default when non-zero
	Severity    Severity
	Description string
	Conditions  map[string]any
}

// Rule is one declarative catalog entry
type Rule struct {
	Name              string
	Category          Category
	Severity          Severity
	Action            Action
	Confidence        float64
	AffectedAssets    []allocation.AssetClass
	RecommendedAction string
	Match             func(in Input) (Trigger, bool)
}

// Fire builds the event for a matched trigger
func (r Rule) Fire(t Trigger) Event {
	severity := r.Severity
	if t.Severity != 0 {
		severity = t.Severity
	}

	assets := make([]allocation.AssetClass, len(r.AffectedAssets))
	copy(assets, r.AffectedAssets)

	return Event{
		Rule:              r.Name,
		Category:          r.Category,
		Severity:          severity,
		Action:            r.Action,
		Description:       t.Description,
		Confidence:        r.Confidence,
		AffectedAssets:    assets,
		RecommendedAction: r.RecommendedAction,
		TriggerConditions: t.Conditions,
	}
}

// DefaultRules returns the canonical catalog in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:              "market_crash",
			Category:          CategoryMarket,
			Severity:          SeverityHigh,
			Action:            ActionCrash,
			Confidence:        0.9,
			AffectedAssets:    []allocation.AssetClass{allocation.Equity},
			RecommendedAction: "Reduce equity allocation by 25%",
			Match: func(in Input) (Trigger, bool) {
				m := in.Market
				if m.NiftyChange >= CrashThreshold || m.SensexChange >= CrashThreshold {
					return Trigger{}, false
				}
				return Trigger{
					Description: fmt.Sprintf("Market crash detected: Nifty %.1f%%, Sensex %.1f%%", m.NiftyChange, m.SensexChange),
					Conditions: map[string]any{
						"nifty_change":  m.NiftyChange,
						"sensex_change": m.SensexChange,
					},
				}, true
			},
		},
		{
			Name:              "high_volatility",
			Category:          CategoryMarket,
			Severity:          SeverityMedium,
			Action:            ActionVolatility,
			Confidence:        0.85,
			AffectedAssets:    []allocation.AssetClass{allocation.Equity, allocation.Debt},
			RecommendedAction: "Shift to defensive allocation",
			Match: func(in Input) (Trigger, bool) {
				vix := in.Market.VIXLevel
				if vix <= VolatilityVIX {
					return Trigger{}, false
				}
				t := Trigger{
					Description: fmt.Sprintf("High market volatility: VIX %.1f", vix),
					Conditions:  map[string]any{"vix_level": vix},
				}
				if vix > ExtremeVolatilityVIX {
					t.Severity = SeverityHigh
				}
				return t, true
			},
		},
		{
			Name:              "sector_concentration",
			Category:          CategoryMarket,
			Severity:          SeverityMedium,
			Action:            ActionNone,
			Confidence:        0.8,
			AffectedAssets:    []allocation.AssetClass{allocation.Equity},
			RecommendedAction: "Diversify across broad market indices",
			Match: func(in Input) (Trigger, bool) {
				declining := map[string]any{}
				var names []string
				for _, sector := range in.Market.Sectors() {
					if perf := in.Market.SectorPerformance[sector]; perf < SectorDeclineThreshold {
						declining[sector] = perf
						names = append(names, sector)
					}
				}
				if len(names) < MinDecliningSectors {
					return Trigger{}, false
				}
				return Trigger{
					Description: "Multiple sector declines: " + strings.Join(names, ", "),
					Conditions: map[string]any{
						"declining_sectors": declining,
						"sector_count":      len(names),
					},
				}, true
			},
		},
		{
			Name:              "high_stress",
			Category:          CategoryUserBehavioral,
			Severity:          SeverityHigh,
			Action:            ActionStress,
			Confidence:        0.9,
			AffectedAssets:    []allocation.AssetClass{allocation.Equity, allocation.Gold},
			RecommendedAction: "Shift to conservative allocation",
			Match: func(in Input) (Trigger, bool) {
				baseline := in.Profile.StressBaseline
				if baseline <= HighStressBaseline {
					return Trigger{}, false
				}
				return Trigger{
					Description: fmt.Sprintf("High baseline stress level: %.1f/10", baseline),
					Conditions:  map[string]any{"stress_baseline": baseline},
				}, true
			},
		},
		{
			Name:              "impulsive_behavior",
			Category:          CategoryUserBehavioral,
			Severity:          SeverityMedium,
			Action:            ActionNone,
			Confidence:        0.85,
			AffectedAssets:    []allocation.AssetClass{allocation.Equity, allocation.Gold},
			RecommendedAction: "Enable systematic investing only",
			Match: func(in Input) (Trigger, bool) {
				score := in.Profile.BehavioralScore
				if score <= ImpulsiveBehavioralScore {
					return Trigger{}, false
				}

				count := 0
				total := 0.0
				for _, t := range in.Transactions {
					if t.Amount > LargePurchaseAmount {
						count++
						total += t.Amount
					}
				}
				if count < MinLargePurchases {
					return Trigger{}, false
				}

				return Trigger{
					Description: fmt.Sprintf("High impulsive behavior score: %.2f", score),
					Conditions: map[string]any{
						"behavioral_score":      score,
						"large_purchases_count": count,
						"large_purchases_total": total,
					},
				}, true
			},
		},
		{
			Name:              "critical_emergency_fund",
			Category:          CategoryLiquidity,
			Severity:          SeverityCritical,
			Action:            ActionCriticalLiquidity,
			Confidence:        0.95,
			AffectedAssets:    allocation.AssetClasses,
			RecommendedAction: "Pause all investments, build emergency fund immediately",
			Match: func(in Input) (Trigger, bool) {
				months := in.Profile.EmergencyFundMonths
				if months >= CriticalEmergencyMonths {
					return Trigger{}, false
				}
				return Trigger{
					Description: fmt.Sprintf("Critical emergency fund shortage: %.1f months", months),
					Conditions:  map[string]any{"emergency_fund_months": months},
				}, true
			},
		},
		{
			Name:              "low_emergency_fund",
			Category:          CategoryLiquidity,
			Severity:          SeverityMedium,
			Action:            ActionNone,
			Confidence:        0.9,
			AffectedAssets:    []allocation.AssetClass{allocation.Liquid, allocation.Equity},
			RecommendedAction: "Increase liquid allocation, reduce equity exposure",
			Match: func(in Input) (Trigger, bool) {
				months := in.Profile.EmergencyFundMonths
				if months < CriticalEmergencyMonths || months >= TargetEmergencyMonths {
					return Trigger{}, false
				}
				return Trigger{
					Description: fmt.Sprintf("Low emergency fund: %.1f months (target: 6 months)", months),
					Conditions:  map[string]any{"emergency_fund_months": months},
				}, true
			},
		},
		{
			Name:              "low_surplus",
			Category:          CategoryLiquidity,
			Severity:          SeverityMedium,
			Action:            ActionNone,
			Confidence:        0.8,
			AffectedAssets:    []allocation.AssetClass{allocation.Equity, allocation.Debt},
			RecommendedAction: "Focus on increasing income or reducing expenses",
			Match: func(in Input) (Trigger, bool) {
				surplus := in.Profile.MonthlySurplus
				if surplus >= LowSurplusThreshold {
					return Trigger{}, false
				}
				return Trigger{
					Description: fmt.Sprintf("Low monthly surplus: ₹%.0f", surplus),
					Conditions:  map[string]any{"monthly_surplus": surplus},
				}, true
			},
		},
		{
			Name:              "currency_weakness",
			Category:          CategorySystemic,
			Severity:          SeverityMedium,
			Action:            ActionCurrency,
			Confidence:        0.8,
			AffectedAssets:    []allocation.AssetClass{allocation.Debt, allocation.Gold},
			RecommendedAction: "Consider gold and international exposure",
			Match: func(in Input) (Trigger, bool) {
				fx := in.Market.USDINR
				if fx <= WeakRupeeThreshold {
					return Trigger{}, false
				}
				return Trigger{
					Description: fmt.Sprintf("Currency weakness: USD/INR at %.2f", fx),
					Conditions:  map[string]any{"usd_inr": fx},
				}, true
			},
		},
		{
			Name:              "high_interest_rates",
			Category:          CategorySystemic,
			Severity:          SeverityMedium,
			Action:            ActionNone,
			Confidence:        0.85,
			AffectedAssets:    []allocation.AssetClass{allocation.Debt, allocation.Equity},
			RecommendedAction: "Prefer short duration bonds, be cautious on equity valuations",
			Match: func(in Input) (Trigger, bool) {
				yield := in.Market.BondYield10Y
				if yield <= HighBondYield {
					return Trigger{}, false
				}
				return Trigger{
					Description: fmt.Sprintf("High interest rates: 10Y yield at %.2f%%", yield),
					Conditions:  map[string]any{"bond_yield_10y": yield},
				}, true
			},
		},
	}
}
