package intervention

import (
	"time"

	"github.com/finsphere/finsphere/internal/profile"
)

const (
	// DefaultSuccessRate is assumed for users with no intervention history
	DefaultSuccessRate = 0.5

	spendingWindow       = 7 * 24 * time.Hour
	stressedPurchaseMark = 0.6
)

// Effectiveness summarizes how a user responded to past interventions
type Effectiveness struct {
	SuccessRate       float64  `json:"success_rate"`
	PreferredSeverity Severity `json:"preferred_severity"`
	Total             int      `json:"total_interventions"`
	Successful        int      `json:"successful_interventions"`
}

// Analyze computes the success rate: the share of interventions that
// prevented the purchase
func Analyze(history []profile.InterventionRecord) Effectiveness {
	if len(history) == 0 {
		return Effectiveness{SuccessRate: DefaultSuccessRate, PreferredSeverity: SeverityMedium}
	}

	var successful, snoozed, proceeded int
	for _, r := range history {
		if r.Effectiveness == profile.EffectivenessPrevented {
			successful++
		}
		switch r.UserAction {
		case profile.ActionSnoozed:
			snoozed++
		case profile.ActionProceeded:
			proceeded++
		}
	}

	preferred := SeverityHigh
	if snoozed > proceeded {
		preferred = SeverityLow
	}

	return Effectiveness{
		SuccessRate:       float64(successful) / float64(len(history)),
		PreferredSeverity: preferred,
		Total:             len(history),
		Successful:        successful,
	}
}

// SpendingRisk labels
const (
	SpendingSafe     = "Safe"
	SpendingModerate = "Moderate"
	SpendingCritical = "Critical"
)

// SpendingRisk looks at purchases made under stress in the last week
// together with the current stress score
func SpendingRisk(transactions []profile.Transaction, stressScore float64, now time.Time) string {
	cutoff := now.Add(-spendingWindow)

	stressed := 0
	for _, t := range transactions {
		if t.Timestamp.Before(cutoff) {
			continue
		}
		if t.StressAtTime > stressedPurchaseMark {
			stressed++
		}
	}

	switch {
	case stressed > 2 || stressScore > 0.7:
		return SpendingCritical
	case stressed > 0 || stressScore > 0.4:
		return SpendingModerate
	default:
		return SpendingSafe
	}
}
