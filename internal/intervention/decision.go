// Package intervention decides when to interject before an impulsive
// purchase and how hard to push.
package intervention

import (
	"fmt"
	"math"
	"time"

	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/stress"
)

// Severity of an intervention
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Thresholds tune the decision rules
type Thresholds struct {
	ShoppingStress     float64 `mapstructure:"shopping_stress"`
	HighStress         float64 `mapstructure:"high_stress"`
	GigStress          float64 `mapstructure:"gig_stress"`
	LowSuccessRate     float64 `mapstructure:"low_success_rate"`
	EscalationDelayMin int     `mapstructure:"escalation_delay_minutes"`
}

// DefaultThresholds returns the canonical decision thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		ShoppingStress:     0.5,
		HighStress:         0.7,
		GigStress:          0.6,
		LowSuccessRate:     0.3,
		EscalationDelayMin: 2,
	}
}

// History is what the engine knows about the user's past behavior
type History struct {
	Interventions []profile.InterventionRecord
	Transactions  []profile.Transaction
}

// Context explains which signals produced a decision
type Context struct {
	Site         SiteKind `json:"site"`
	StressLevel  string   `json:"stress_level"`
	StressScore  float64  `json:"stress_score"`
	SpendingRisk string   `json:"spending_risk"`
	SuccessRate  float64  `json:"intervention_success_rate"`
}

// Decision is the result of one intervention check
type Decision struct {
	ShouldIntervene bool     `json:"should_intervene"`
	Severity        Severity `json:"severity"`
	DelayMinutes    int      `json:"delay_minutes"`
	Message         string   `json:"message"`
	Context         Context  `json:"contributing_context"`
}

// Engine makes intervention decisions. It holds no per-user state.
type Engine struct {
	thresholds Thresholds
	now        func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithThresholds overrides the default thresholds
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithClock sets the time source used for the spending window
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an intervention engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds returns the active thresholds
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Decide never fails. Unclassified sites never trigger an intervention and
// a non-finite score is treated as calm.
func (e *Engine) Decide(stressScore float64, contextURL string, h History) Decision {
	score := sanitizeScore(stressScore)
	site := Classify(contextURL)
	eff := Analyze(h.Interventions)
	level := stress.Level(score)

	d := Decision{
		Severity: SeverityLow,
		Context: Context{
			Site:         site,
			StressLevel:  level,
			StressScore:  score,
			SpendingRisk: SpendingRisk(h.Transactions, score, e.now()),
			SuccessRate:  eff.SuccessRate,
		},
	}

	th := e.thresholds
	switch {
	case site == SiteShopping && score > th.ShoppingStress:
		d.ShouldIntervene = true
		if score > th.HighStress {
			d.Severity = SeverityHigh
			d.DelayMinutes = 10
			d.Message = fmt.Sprintf("HIGH STRESS ALERT: Your stress level is %s. Take a break before purchasing.", level)
		} else {
			d.Severity = SeverityMedium
			d.DelayMinutes = 5
			d.Message = "CAUTION: Elevated stress detected. Consider if this purchase aligns with your goals."
		}
	case site == SiteGigWork && score > th.GigStress:
		d.ShouldIntervene = true
		d.Severity = SeverityMedium
		d.DelayMinutes = 7
		d.Message = "High stress detected. Review your pricing carefully to avoid undervaluing your work."
	}

	// interventions the user keeps ignoring get louder, never quieter
	if d.ShouldIntervene && eff.SuccessRate < th.LowSuccessRate {
		if d.Severity == SeverityLow {
			d.Severity = SeverityMedium
		}
		d.DelayMinutes += th.EscalationDelayMin
	}

	return d
}

func sanitizeScore(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Min(v, 1)
}
