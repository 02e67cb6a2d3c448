package intervention

import (
	"fmt"
	"sort"
	"time"

	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/stress"
)

const (
	// DefaultBaselineStress is used when a user has neither a recent
	// reading nor a recorded baseline
	DefaultBaselineStress = 0.3

	currentReadingWindow = 24 * time.Hour
	recentInterventions  = 3
)

// RecentIntervention is one dashboard feed line
type RecentIntervention struct {
	Time   string `json:"time"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Dashboard is the user's at-a-glance state
type Dashboard struct {
	StressLevel         string               `json:"stress_level"`
	StressScore         float64              `json:"stress_score"`
	SpendingRisk        string               `json:"spending_risk"`
	CognitiveLoad       string               `json:"cognitive_load"`
	SavingsRunway       string               `json:"savings_runway"`
	RecentInterventions []RecentIntervention `json:"recent_interventions"`
}

// DashboardInput gathers the records a dashboard is computed from.
// BaselineStress is on the 0-1 scale; zero means not recorded.
type DashboardInput struct {
	Biometrics     []profile.BiometricReading
	Transactions   []profile.Transaction
	Interventions  []profile.InterventionRecord
	Financials     *profile.Financials
	BaselineStress float64
}

// CurrentStress returns the newest reading from the last 24 hours, falling
// back to the baseline
func CurrentStress(readings []profile.BiometricReading, baseline float64, now time.Time) float64 {
	cutoff := now.Add(-currentReadingWindow)

	var latest *profile.BiometricReading
	for i := range readings {
		r := &readings[i]
		if r.Timestamp.Before(cutoff) {
			continue
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	if latest != nil {
		return latest.StressScore
	}
	if baseline > 0 {
		return baseline
	}
	return DefaultBaselineStress
}

// BuildDashboard assembles the dashboard view
func BuildDashboard(in DashboardInput, now time.Time) Dashboard {
	score := CurrentStress(in.Biometrics, in.BaselineStress, now)

	runway := "Unknown"
	if in.Financials != nil && in.Financials.Validate() == nil {
		runway = fmt.Sprintf("%.1f Mo", in.Financials.EmergencyFundMonths())
	}

	history := make([]profile.InterventionRecord, len(in.Interventions))
	copy(history, in.Interventions)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.After(history[j].Timestamp)
	})
	if len(history) > recentInterventions {
		history = history[:recentInterventions]
	}

	recent := make([]RecentIntervention, 0, len(history))
	for _, r := range history {
		recent = append(recent, RecentIntervention{
			Time:   TimeAgo(r.Timestamp, now),
			Action: "Intervention on " + SiteName(r.ContextURL),
			Reason: r.Message,
		})
	}

	return Dashboard{
		StressLevel:         stress.Level(score),
		StressScore:         score,
		SpendingRisk:        SpendingRisk(in.Transactions, score, now),
		CognitiveLoad:       stress.CognitiveLoad(score),
		SavingsRunway:       runway,
		RecentInterventions: recent,
	}
}

// TimeAgo renders a coarse relative time such as "3 hours ago"
func TimeAgo(ts, now time.Time) string {
	diff := now.Sub(ts)
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff >= 24*time.Hour:
		return plural(int(diff/(24*time.Hour)), "day")
	case diff > time.Hour:
		return plural(int(diff/time.Hour), "hour")
	default:
		return plural(int(diff/time.Minute), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
