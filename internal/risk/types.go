package risk

import (
	"fmt"

	"github.com/finsphere/finsphere/internal/allocation"
)

// Category groups risk events for scoring
type Category string

const (
	CategoryMarket         Category = "market"
	CategoryUserBehavioral Category = "user_behavioral"
	CategoryLiquidity      Category = "liquidity"
	CategorySystemic       Category = "systemic"
	CategoryRegulatory     Category = "regulatory"
)

// Categories is the fixed category set; the overall score always averages
// over all of them
var Categories = []Category{
	CategoryMarket,
	CategoryUserBehavioral,
	CategoryLiquidity,
	CategorySystemic,
	CategoryRegulatory,
}

// Valid reports whether the category is known
func (c Category) Valid() bool {
	switch c {
	case CategoryMarket, CategoryUserBehavioral, CategoryLiquidity, CategorySystemic, CategoryRegulatory:
		return true
	}
	return false
}

// Severity is an ordinal; comparisons use the integer value
type Severity int

const (
	SeverityLow      Severity = 1
	SeverityMedium   Severity = 2
	SeverityHigh     Severity = 3
	SeverityCritical Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText renders the label
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a label
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "low":
		*s = SeverityLow
	case "medium":
		*s = SeverityMedium
	case "high":
		*s = SeverityHigh
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// AtLeastHigh reports whether the event qualifies for allocation changes
func (s Severity) AtLeastHigh() bool {
	return s >= SeverityHigh
}

// Action names the allocation transformation tied to a rule
type Action string

const (
	ActionNone              Action = "none"
	ActionCrash             Action = "crash"
	ActionVolatility        Action = "volatility"
	ActionStress            Action = "stress"
	ActionCriticalLiquidity Action = "critical_liquidity"
	ActionCurrency          Action = "currency"
)

// Event is one fired rule
type Event struct {
	Rule              string                  `json:"rule"`
	Category          Category                `json:"category"`
	Severity          Severity                `json:"severity"`
	Action            Action                  `json:"action"`
	Description       string                  `json:"description"`
	Confidence        float64                 `json:"confidence"`
	AffectedAssets    []allocation.AssetClass `json:"affected_assets"`
	RecommendedAction string                  `json:"recommended_action"`
	TriggerConditions map[string]any          `json:"trigger_conditions"`
}

// Metrics is the output of one evaluation pass
type Metrics struct {
	OverallRiskScore       float64               `json:"overall_risk_score"`
	CategoryRisks          map[Category]float64  `json:"category_risks"`
	ActiveRiskEvents       []Event               `json:"active_risk_events"`
	RiskAdjustedAllocation allocation.Allocation `json:"risk_adjusted_allocation"`
	ConfidenceAdjustment   float64               `json:"confidence_adjustment"`
	MonitoringAlerts       []string              `json:"monitoring_alerts"`
}

// HighSeverityEvents returns events with severity high or critical
func (m *Metrics) HighSeverityEvents() []Event {
	var out []Event
	for _, e := range m.ActiveRiskEvents {
		if e.Severity.AtLeastHigh() {
			out = append(out, e)
		}
	}
	return out
}
