package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsphere/finsphere/internal/allocation"
)

func event(c Category, s Severity, a Action) Event {
	return Event{Rule: string(c) + "_" + s.String(), Category: c, Severity: s, Action: a}
}

func TestAggregate_AveragesOverAllCategories(t *testing.T) {
	m, err := Aggregate([]Event{
		event(CategoryMarket, SeverityHigh, ActionNone),
		event(CategoryMarket, SeverityLow, ActionNone),
		event(CategoryLiquidity, SeverityMedium, ActionNone),
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, m.CategoryRisks[CategoryMarket])
	assert.Equal(t, 5.0, m.CategoryRisks[CategoryLiquidity])
	assert.Equal(t, 0.0, m.CategoryRisks[CategoryRegulatory])
	assert.Len(t, m.CategoryRisks, len(Categories))
	assert.Equal(t, 2.0, m.OverallRiskScore)
	assert.Equal(t, 1.0, m.ConfidenceAdjustment)
	assert.Equal(t, []string{"1 high-risk events detected"}, m.MonitoringAlerts)
}

func TestAggregate_CriticalEverywhere(t *testing.T) {
	var events []Event
	for _, c := range Categories {
		events = append(events, event(c, SeverityCritical, ActionNone))
	}

	m, err := Aggregate(events)
	require.NoError(t, err)

	assert.Equal(t, 10.0, m.OverallRiskScore)
	assert.Equal(t, 0.7, m.ConfidenceAdjustment)
	assert.Equal(t, []string{
		"5 high-risk events detected",
		"Overall risk level CRITICAL - immediate review required",
	}, m.MonitoringAlerts)
}

func TestAggregate_HighBand(t *testing.T) {
	m, err := Aggregate([]Event{
		event(CategoryMarket, SeverityCritical, ActionNone),
		event(CategoryUserBehavioral, SeverityCritical, ActionNone),
		event(CategoryLiquidity, SeverityCritical, ActionNone),
		event(CategorySystemic, SeverityLow, ActionNone),
	})
	require.NoError(t, err)

	assert.Equal(t, 6.5, m.OverallRiskScore)
	assert.Equal(t, 0.85, m.ConfidenceAdjustment)
	assert.Equal(t, []string{
		"3 high-risk events detected",
		"Overall risk level HIGH - enhanced monitoring recommended",
	}, m.MonitoringAlerts)
}

func TestAggregate_UnknownCategory(t *testing.T) {
	_, err := Aggregate([]Event{event(Category("weather"), SeverityLow, ActionNone)})
	assert.ErrorIs(t, err, ErrUnknownRiskCategory)
}

func TestConfidenceAdjustment(t *testing.T) {
	tests := []struct {
		overall float64
		want    float64
	}{
		{0, 1.0},
		{5.0, 1.0},
		{5.01, 0.85},
		{7.0, 0.85},
		{7.01, 0.7},
		{10, 0.7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ConfidenceAdjustment(tt.overall), "overall=%.2f", tt.overall)
	}
}

func TestAdjustAllocation_Actions(t *testing.T) {
	base := allocation.New(0.60, 0.25, 0.10, 0.05)

	tests := []struct {
		name   string
		action Action
		want   allocation.Allocation
	}{
		{"crash", ActionCrash, allocation.New(0.45, 0.34, 0.16, 0.05)},
		{"volatility", ActionVolatility, allocation.New(0.51, 0.313, 0.10, 0.077)},
		{"stress", ActionStress, allocation.New(0.42, 0.322, 0.208, 0.05)},
		{"critical liquidity", ActionCriticalLiquidity, allocation.New(0.36, 0.15, 0.46, 0.03)},
		{"currency", ActionCurrency, allocation.New(0.60-0.1/3, 0.25-0.1/3, 0.10-0.1/3, 0.15)},
		{"none", ActionNone, base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AdjustAllocation(base, []Event{event(CategoryMarket, SeverityHigh, tt.action)})
			require.NoError(t, err)
			assertAllocation(t, tt.want, got)
			assert.True(t, got.IsNormalized())
		})
	}

	// base is never mutated
	assertAllocation(t, allocation.New(0.60, 0.25, 0.10, 0.05), base)
}

func TestAdjustAllocation_SkipsLowerSeverities(t *testing.T) {
	base := allocation.New(0.60, 0.25, 0.10, 0.05)
	got, err := AdjustAllocation(base, []Event{
		event(CategoryMarket, SeverityMedium, ActionCrash),
		event(CategorySystemic, SeverityLow, ActionCurrency),
		event(CategoryMarket, SeverityMedium, Action("not_implemented")),
	})
	require.NoError(t, err)
	assertAllocation(t, base, got)
}

func TestAdjustAllocation_CurrencyClampsNegativeBuckets(t *testing.T) {
	got, err := AdjustAllocation(allocation.New(0.70, 0.30, 0, 0), []Event{
		event(CategorySystemic, SeverityHigh, ActionCurrency),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, got[allocation.Liquid])
	assert.True(t, got.IsNormalized())
}

func TestAdjustAllocation_Errors(t *testing.T) {
	base := allocation.New(0.60, 0.25, 0.10, 0.05)

	_, err := AdjustAllocation(base, []Event{event(CategoryMarket, SeverityHigh, Action("teleport"))})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = AdjustAllocation(base, []Event{event(Category("weather"), SeverityLow, ActionNone)})
	assert.ErrorIs(t, err, ErrUnknownRiskCategory)

	_, err = AdjustAllocation(allocation.New(0, 0, 0, 0), nil)
	assert.ErrorIs(t, err, ErrAllocationDegenerate)
}

func TestSeverityText(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var parsed Severity
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, s, parsed)
	}

	var s Severity
	assert.Error(t, s.UnmarshalText([]byte("catastrophic")))
}
