package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/profile"
)

func baseProfile() profile.UserProfile {
	return profile.UserProfile{
		RiskAppetite:        profile.Moderate,
		InvestmentHorizon:   profile.LongTerm,
		MonthlySurplus:      10000,
		SpendingPersonality: profile.PersonalityBalanced,
		StressBaseline:      4,
		EmergencyFundMonths: 8,
		BehavioralScore:     0.3,
	}
}

func calmMarket() market.Snapshot {
	return market.Snapshot{
		Timestamp:    time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC),
		NiftyChange:  0.5,
		SensexChange: 0.5,
		VIXLevel:     18,
		GoldPrice:    62000,
		USDINR:       83.2,
		BondYield10Y: 7.1,
		SectorPerformance: map[string]float64{
			"banking": 0.4,
			"it":      -0.8,
		},
	}
}

func assertAllocation(t *testing.T, want, got allocation.Allocation) {
	t.Helper()
	for _, c := range allocation.AssetClasses {
		assert.InDelta(t, want[c], got[c], 1e-9, "asset class %s", c)
	}
}

func ruleNames(events []Event) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Rule)
	}
	return names
}

func TestEvaluate_CalmConditions(t *testing.T) {
	m, err := NewEngine().Evaluate(baseProfile(), calmMarket(), nil, nil)
	require.NoError(t, err)

	assert.Empty(t, m.ActiveRiskEvents)
	assert.Equal(t, 0.0, m.OverallRiskScore)
	assert.Equal(t, 1.0, m.ConfidenceAdjustment)
	assert.Empty(t, m.MonitoringAlerts)
	for _, c := range Categories {
		assert.Equal(t, 0.0, m.CategoryRisks[c], "category %s", c)
	}
	assertAllocation(t, allocation.New(0.60, 0.25, 0.10, 0.05), m.RiskAdjustedAllocation)
}

func TestEvaluate_HighStress(t *testing.T) {
	p := baseProfile()
	p.StressBaseline = 8

	m, err := NewEngine().Evaluate(p, calmMarket(), nil, nil)
	require.NoError(t, err)

	require.Len(t, m.ActiveRiskEvents, 1)
	event := m.ActiveRiskEvents[0]
	assert.Equal(t, "high_stress", event.Rule)
	assert.Equal(t, CategoryUserBehavioral, event.Category)
	assert.Equal(t, SeverityHigh, event.Severity)
	assert.Equal(t, 8.0, event.TriggerConditions["stress_baseline"])
	assert.Equal(t, "High baseline stress level: 8.0/10", event.Description)

	assert.Equal(t, 7.5, m.CategoryRisks[CategoryUserBehavioral])
	for _, c := range Categories {
		if c != CategoryUserBehavioral {
			assert.Equal(t, 0.0, m.CategoryRisks[c], "category %s", c)
		}
	}
	assert.Equal(t, 1.5, m.OverallRiskScore)
	assert.Equal(t, []string{"1 high-risk events detected"}, m.MonitoringAlerts)

	// 30% of equity (0.18) leaves: 60% to liquid, 40% to debt
	assertAllocation(t, allocation.New(0.42, 0.322, 0.208, 0.05), m.RiskAdjustedAllocation)
}

func TestEvaluate_EmergencyFundBoundaries(t *testing.T) {
	tests := []struct {
		months   float64
		critical bool
		low      bool
	}{
		{months: 0, critical: true},
		{months: 1.99, critical: true},
		{months: 2.0, low: true},
		{months: 5.99, low: true},
		{months: 6.0},
		{months: 12},
	}

	for _, tt := range tests {
		p := baseProfile()
		p.EmergencyFundMonths = tt.months

		m, err := NewEngine().Evaluate(p, calmMarket(), nil, nil)
		require.NoError(t, err)

		names := ruleNames(m.ActiveRiskEvents)
		assert.Equal(t, tt.critical, contains(names, "critical_emergency_fund"), "months=%.2f", tt.months)
		assert.Equal(t, tt.low, contains(names, "low_emergency_fund"), "months=%.2f", tt.months)
	}
}

func TestEvaluate_CriticalEmergencyFundMovesToLiquid(t *testing.T) {
	p := baseProfile()
	p.EmergencyFundMonths = 1

	m, err := NewEngine().Evaluate(p, calmMarket(), nil, nil)
	require.NoError(t, err)

	require.Len(t, m.ActiveRiskEvents, 1)
	assert.Equal(t, SeverityCritical, m.ActiveRiskEvents[0].Severity)
	assert.ElementsMatch(t, allocation.AssetClasses, m.ActiveRiskEvents[0].AffectedAssets)
	assert.Equal(t, 10.0, m.CategoryRisks[CategoryLiquidity])
	assert.Equal(t, 2.0, m.OverallRiskScore)
	assertAllocation(t, allocation.New(0.36, 0.15, 0.46, 0.03), m.RiskAdjustedAllocation)
}

func TestEvaluate_MarketCrash(t *testing.T) {
	snap := calmMarket()
	snap.NiftyChange = -4
	snap.SensexChange = -3.5
	snap.VIXLevel = 30

	m, err := NewEngine().Evaluate(baseProfile(), snap, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"market_crash", "high_volatility"}, ruleNames(m.ActiveRiskEvents))
	assert.Equal(t, SeverityMedium, m.ActiveRiskEvents[1].Severity)
	assert.Equal(t, 6.25, m.CategoryRisks[CategoryMarket])
	assert.Equal(t, 1.25, m.OverallRiskScore)

	// only the crash is severe enough to move money
	assertAllocation(t, allocation.New(0.45, 0.34, 0.16, 0.05), m.RiskAdjustedAllocation)
}

func TestEvaluate_ExtremeVolatilityAppliesInOrder(t *testing.T) {
	snap := calmMarket()
	snap.NiftyChange = -4
	snap.SensexChange = -3.5
	snap.VIXLevel = 40

	m, err := NewEngine().Evaluate(baseProfile(), snap, nil, nil)
	require.NoError(t, err)

	require.Len(t, m.ActiveRiskEvents, 2)
	assert.Equal(t, SeverityHigh, m.ActiveRiskEvents[1].Severity)
	assert.Equal(t, 7.5, m.CategoryRisks[CategoryMarket])
	assertAllocation(t, allocation.New(0.3825, 0.38725, 0.16, 0.07025), m.RiskAdjustedAllocation)
}

func TestEvaluate_CrashNeedsBothIndices(t *testing.T) {
	snap := calmMarket()
	snap.NiftyChange = -4
	snap.SensexChange = -2.9

	m, err := NewEngine().Evaluate(baseProfile(), snap, nil, nil)
	require.NoError(t, err)
	assert.NotContains(t, ruleNames(m.ActiveRiskEvents), "market_crash")
}

func TestEvaluate_SectorDeclines(t *testing.T) {
	snap := calmMarket()
	snap.SectorPerformance = map[string]float64{
		"auto":    -6,
		"banking": -5.5,
		"it":      -7.2,
		"pharma":  -5.0,
	}

	m, err := NewEngine().Evaluate(baseProfile(), snap, nil, nil)
	require.NoError(t, err)

	require.Len(t, m.ActiveRiskEvents, 1)
	event := m.ActiveRiskEvents[0]
	assert.Equal(t, "sector_concentration", event.Rule)
	assert.Equal(t, "Multiple sector declines: auto, banking, it", event.Description)
	assert.Equal(t, 3, event.TriggerConditions["sector_count"])

	snap.SectorPerformance["it"] = 1
	m, err = NewEngine().Evaluate(baseProfile(), snap, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, m.ActiveRiskEvents)
}

func TestEvaluate_ImpulsiveBehavior(t *testing.T) {
	p := baseProfile()
	p.BehavioralScore = 0.8

	large := []profile.Transaction{
		{Amount: 12000, Category: "electronics"},
		{Amount: 500, Category: "food"},
		{Amount: 15000, Category: "shopping"},
	}

	m, err := NewEngine().Evaluate(p, calmMarket(), large, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"impulsive_behavior"}, ruleNames(m.ActiveRiskEvents))
	event := m.ActiveRiskEvents[0]
	assert.Equal(t, 0.8, event.TriggerConditions["behavioral_score"])
	assert.Equal(t, 2, event.TriggerConditions["large_purchases_count"])
	assert.Equal(t, 27000.0, event.TriggerConditions["large_purchases_total"])

	// no history means the rule cannot fire
	m, err = NewEngine().Evaluate(p, calmMarket(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, m.ActiveRiskEvents)

	m, err = NewEngine().Evaluate(p, calmMarket(), large[:2], nil)
	require.NoError(t, err)
	assert.Empty(t, m.ActiveRiskEvents)
}

func TestEvaluate_SystemicRules(t *testing.T) {
	snap := calmMarket()
	snap.USDINR = 86
	snap.BondYield10Y = 8.2

	p := baseProfile()
	p.MonthlySurplus = 1500

	m, err := NewEngine().Evaluate(p, snap, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"low_surplus", "currency_weakness", "high_interest_rates"}, ruleNames(m.ActiveRiskEvents))
	assert.Equal(t, 5.0, m.CategoryRisks[CategorySystemic])
	assert.Equal(t, 5.0, m.CategoryRisks[CategoryLiquidity])
	assert.Equal(t, 2.0, m.OverallRiskScore)

	// medium events leave the allocation alone
	assertAllocation(t, allocation.New(0.60, 0.25, 0.10, 0.05), m.RiskAdjustedAllocation)
}

func TestEvaluate_Monotonic(t *testing.T) {
	snap := calmMarket()
	snap.USDINR = 86

	p := baseProfile()
	p.EmergencyFundMonths = 3
	p.StressBaseline = 5

	before, err := NewEngine().Evaluate(p, snap, nil, nil)
	require.NoError(t, err)

	p.StressBaseline = 8
	after, err := NewEngine().Evaluate(p, snap, nil, nil)
	require.NoError(t, err)

	beforeNames := ruleNames(before.ActiveRiskEvents)
	afterNames := ruleNames(after.ActiveRiskEvents)
	assert.NotContains(t, beforeNames, "high_stress")
	assert.Contains(t, afterNames, "high_stress")
	assert.Subset(t, afterNames, beforeNames)
}

func TestEvaluate_Idempotent(t *testing.T) {
	snap := calmMarket()
	snap.NiftyChange = -5
	snap.SensexChange = -4
	snap.VIXLevel = 38
	snap.USDINR = 87

	p := baseProfile()
	p.StressBaseline = 9
	p.EmergencyFundMonths = 1

	engine := NewEngine()
	first, err := engine.Evaluate(p, snap, nil, nil)
	require.NoError(t, err)
	second, err := engine.Evaluate(p, snap, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluate_AllocationAlwaysNormalized(t *testing.T) {
	markets := []func(*market.Snapshot){
		func(s *market.Snapshot) {},
		func(s *market.Snapshot) { s.NiftyChange, s.SensexChange = -6, -6 },
		func(s *market.Snapshot) { s.VIXLevel = 45 },
		func(s *market.Snapshot) { s.USDINR, s.BondYield10Y = 90, 9 },
	}
	profiles := []func(*profile.UserProfile){
		func(p *profile.UserProfile) {},
		func(p *profile.UserProfile) { p.StressBaseline = 10 },
		func(p *profile.UserProfile) { p.EmergencyFundMonths = 0 },
		func(p *profile.UserProfile) { p.BehavioralScore, p.InvestmentHorizon = 1, profile.ShortTerm },
	}

	for _, tier := range profile.RiskAppetites {
		for _, mm := range markets {
			for _, pm := range profiles {
				p := baseProfile()
				p.RiskAppetite = tier
				pm(&p)
				snap := calmMarket()
				mm(&snap)

				m, err := NewEngine().Evaluate(p, snap, nil, nil)
				require.NoError(t, err)
				assert.True(t, m.RiskAdjustedAllocation.IsNormalized(), "tier=%s alloc=%v", tier, m.RiskAdjustedAllocation)
				assert.GreaterOrEqual(t, m.OverallRiskScore, 0.0)
				assert.LessOrEqual(t, m.OverallRiskScore, 10.0)
			}
		}
	}
}

func TestEvaluate_InvalidInput(t *testing.T) {
	engine := NewEngine()

	p := baseProfile()
	p.StressBaseline = 11
	_, err := engine.Evaluate(p, calmMarket(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidProfile)
	assert.True(t, IsInputError(err))

	p = baseProfile()
	p.BehavioralScore = math.NaN()
	_, err = engine.Evaluate(p, calmMarket(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidProfile)

	p = baseProfile()
	p.RiskAppetite = "reckless"
	_, err = engine.Evaluate(p, calmMarket(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidProfile)

	snap := calmMarket()
	snap.NiftyChange = math.Inf(-1)
	_, err = engine.Evaluate(baseProfile(), snap, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidMarketData)
	assert.True(t, IsInputError(err))

	snap = calmMarket()
	snap.USDINR = 0
	_, err = engine.Evaluate(baseProfile(), snap, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidMarketData)
}

func TestEvaluate_CustomRuleWithUnknownAction(t *testing.T) {
	rule := Rule{
		Name:     "teleport",
		Category: CategoryRegulatory,
		Severity: SeverityCritical,
		Action:   Action("teleport"),
		Match: func(Input) (Trigger, bool) {
			return Trigger{Description: "always"}, true
		},
	}

	_, err := NewEngine(rule).Evaluate(baseProfile(), calmMarket(), nil, nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.False(t, IsInputError(err))
}

func TestSummary(t *testing.T) {
	p := baseProfile()
	p.StressBaseline = 8

	m, err := NewEngine().Evaluate(p, calmMarket(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t,
		"Overall risk level: Low (1.5/10). 1 critical risk factors detected. 1 high-risk events detected",
		Summary(m))

	calm, err := NewEngine().Evaluate(baseProfile(), calmMarket(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Overall risk level: Low (0.0/10)", Summary(calm))

	assert.Equal(t, "Overall risk level: High (7.5/10)", Summary(&Metrics{OverallRiskScore: 7.5}))
	assert.Equal(t, "Overall risk level: Moderate (4.5/10)", Summary(&Metrics{OverallRiskScore: 4.5}))
}

func TestDefaultRules_Catalog(t *testing.T) {
	rules := DefaultRules()
	require.Len(t, rules, 10)

	seen := map[string]bool{}
	for _, r := range rules {
		assert.False(t, seen[r.Name], "duplicate rule %s", r.Name)
		seen[r.Name] = true
		assert.True(t, r.Category.Valid(), r.Name)
		assert.NotNil(t, r.Match, r.Name)
		assert.NotEmpty(t, r.AffectedAssets, r.Name)
		assert.NotEmpty(t, r.RecommendedAction, r.Name)
		assert.Greater(t, r.Confidence, 0.0, r.Name)
		assert.LessOrEqual(t, r.Confidence, 1.0, r.Name)
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
