package risk

import (
	"fmt"
	"strings"

	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/profile"
)

// Engine evaluates a rule catalog against a profile and market snapshot.
// It is stateless and safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine. With no rules it uses DefaultRules.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// Rules returns the catalog in evaluation order
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Events runs every rule and returns the ones that fired, in catalog order
func (e *Engine) Events(in Input) []Event {
	var events []Event
	for _, r := range e.rules {
		if t, ok := r.Match(in); ok {
			events = append(events, r.Fire(t))
		}
	}
	return events
}

// Evaluate produces the risk metrics and the risk-adjusted allocation.
// Missing transaction or biometric history is treated as empty.
func (e *Engine) Evaluate(
	p profile.UserProfile,
	snapshot market.Snapshot,
	transactions []profile.Transaction,
	biometrics []profile.BiometricReading,
) (*Metrics, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	base, err := allocation.Base(p)
	if err != nil {
		return nil, err
	}

	events := e.Events(Input{
		Profile:      p,
		Market:       snapshot,
		Transactions: transactions,
		Biometrics:   biometrics,
	})

	metrics, err := Aggregate(events)
	if err != nil {
		return nil, err
	}

	adjusted, err := AdjustAllocation(base, events)
	if err != nil {
		return nil, fmt.Errorf("adjust allocation: %w", err)
	}
	metrics.RiskAdjustedAllocation = adjusted

	return &metrics, nil
}

// Summary renders a short human-readable digest of the metrics
func Summary(m *Metrics) string {
	level := "Low"
	switch {
	case m.OverallRiskScore > 7:
		level = "High"
	case m.OverallRiskScore > 4:
		level = "Moderate"
	}

	parts := []string{fmt.Sprintf("Overall risk level: %s (%.1f/10)", level, m.OverallRiskScore)}

	critical := 0
	for _, e := range m.ActiveRiskEvents {
		if e.Severity.AtLeastHigh() {
			critical++
		}
	}
	if critical > 0 {
		parts = append(parts, fmt.Sprintf("%d critical risk factors detected", critical))
	}

	alerts := m.MonitoringAlerts
	if len(alerts) > 2 {
		alerts = alerts[:2]
	}
	parts = append(parts, alerts...)

	return strings.Join(parts, ". ")
}
