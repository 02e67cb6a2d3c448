package risk

import (
	"fmt"
	"math"
)

const (
	severityScale   = 2.5
	maxCategoryRisk = 10.0

	criticalOverall = 8.0
	highOverall     = 6.0
)

// Aggregate reduces events to per-category and overall scores, the
// confidence multiplier, and monitoring alerts. Events with a category
// outside the fixed set fail with ErrUnknownRiskCategory.
func Aggregate(events []Event) (Metrics, error) {
	sums := make(map[Category]float64, len(Categories))
	counts := make(map[Category]int, len(Categories))
	for _, e := range events {
		if !e.Category.Valid() {
			return Metrics{}, fmt.Errorf("%w: %q from rule %s", ErrUnknownRiskCategory, e.Category, e.Rule)
		}
		sums[e.Category] += float64(e.Severity)
		counts[e.Category]++
	}

	categoryRisks := make(map[Category]float64, len(Categories))
	total := 0.0
	for _, c := range Categories {
		score := 0.0
		if n := counts[c]; n > 0 {
			score = math.Min(maxCategoryRisk, sums[c]/float64(n)*severityScale)
		}
		categoryRisks[c] = score
		total += score
	}
	overall := math.Round(total/float64(len(Categories))*100) / 100

	return Metrics{
		OverallRiskScore:     overall,
		CategoryRisks:        categoryRisks,
		ActiveRiskEvents:     events,
		ConfidenceAdjustment: ConfidenceAdjustment(overall),
		MonitoringAlerts:     Alerts(events, overall),
	}, nil
}

// ConfidenceAdjustment is a step function of the overall score
func ConfidenceAdjustment(overall float64) float64 {
	switch {
	case overall > 7:
		return 0.7
	case overall > 5:
		return 0.85
	default:
		return 1.0
	}
}

// Alerts builds monitoring warnings. The band alert is added on top of the
// high-severity count alert.
func Alerts(events []Event, overall float64) []string {
	alerts := []string{}

	high := 0
	for _, e := range events {
		if e.Severity.AtLeastHigh() {
			high++
		}
	}
	if high > 0 {
		alerts = append(alerts, fmt.Sprintf("%d high-risk events detected", high))
	}

	switch {
	case overall > criticalOverall:
		alerts = append(alerts, "Overall risk level CRITICAL - immediate review required")
	case overall > highOverall:
		alerts = append(alerts, "Overall risk level HIGH - enhanced monitoring recommended")
	}
	return alerts
}
