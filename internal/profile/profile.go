// Package profile holds the user behavioral/financial profile and the
// history records it is derived from.
package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/finsphere/finsphere/internal/validation"
)

var (
	// ErrInvalidProfile reports a malformed or incomplete user profile
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrNoFinancials reports a user who has never declared their financials
	ErrNoFinancials = errors.New("no declared financials")
)

// RiskAppetite is the user's stated tolerance tier
type RiskAppetite string

const (
	Conservative RiskAppetite = "conservative"
	Moderate     RiskAppetite = "moderate"
	Aggressive   RiskAppetite = "aggressive"
)

// RiskAppetites lists the known tiers
var RiskAppetites = []RiskAppetite{Conservative, Moderate, Aggressive}

// Valid reports whether the tier is known
func (r RiskAppetite) Valid() bool {
	switch r {
	case Conservative, Moderate, Aggressive:
		return true
	}
	return false
}

// Horizon is the investment horizon
type Horizon string

const (
	ShortTerm  Horizon = "short"
	MediumTerm Horizon = "medium"
	LongTerm   Horizon = "long"
)

// Spending personality labels
const (
	PersonalityLifestyle    = "lifestyle"
	PersonalityConservative = "conservative"
	PersonalityBalanced     = "balanced"
)

// UserProfile is built fresh per recommendation request
type UserProfile struct {
	RiskAppetite        RiskAppetite `json:"risk_appetite"`
	InvestmentHorizon   Horizon      `json:"investment_horizon"`
	MonthlySurplus      float64      `json:"monthly_surplus"`
	SpendingPersonality string       `json:"spending_personality"`
	StressBaseline      float64      `json:"stress_baseline"`
	EmergencyFundMonths float64      `json:"emergency_fund_months"`
	BehavioralScore     float64      `json:"behavioral_score"`
	InvestmentGoals     []string     `json:"investment_goals,omitempty"`
}

// Validate checks required numeric fields are present, finite and in range.
// The returned error wraps ErrInvalidProfile.
func (p UserProfile) Validate() error {
	v := validation.NewValidator()

	v.OneOf("risk_appetite", string(p.RiskAppetite), []string{
		string(Conservative), string(Moderate), string(Aggressive),
	})
	if p.InvestmentHorizon != "" {
		v.OneOf("investment_horizon", string(p.InvestmentHorizon), []string{
			string(ShortTerm), string(MediumTerm), string(LongTerm),
		})
	}
	v.NonNegative("monthly_surplus", p.MonthlySurplus)
	v.Range("stress_baseline", p.StressBaseline, 0, 10)
	v.NonNegative("emergency_fund_months", p.EmergencyFundMonths)
	v.Range("behavioral_score", p.BehavioralScore, 0, 1)

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

// Transaction is a recorded purchase
type Transaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Amount       float64   `json:"amount"`
	Category     string    `json:"category"`
	Merchant     string    `json:"merchant"`
	StressAtTime float64   `json:"stress_at_time"`
	Timestamp    time.Time `json:"timestamp"`
}

// BiometricReading is one wearable sample with its derived stress score
type BiometricReading struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	HeartRate   float64   `json:"heart_rate"`
	HRV         float64   `json:"hrv"`
	StressScore float64   `json:"stress_score"`
	Timestamp   time.Time `json:"timestamp"`
}

// User actions recorded against an intervention
const (
	ActionProceeded = "proceeded"
	ActionSnoozed   = "snoozed"
	ActionCancelled = "cancelled"
	ActionUnknown   = "unknown"
)

// Intervention effectiveness outcomes
const (
	EffectivenessPrevented = "prevented_purchase"
	EffectivenessIgnored   = "ignored"
	EffectivenessUnknown   = "unknown"
)

// InterventionRecord is a past intervention and how the user responded
type InterventionRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Severity      string    `json:"severity"`
	ContextURL    string    `json:"context_url"`
	Message       string    `json:"message"`
	DelayMinutes  int       `json:"delay_minutes"`
	UserAction    string    `json:"user_action"`
	Effectiveness string    `json:"effectiveness"`
	Timestamp     time.Time `json:"timestamp"`
}

// Financials are the user's self-declared balances
type Financials struct {
	MonthlyIncome   float64  `json:"monthly_income"`
	MonthlyExpenses float64  `json:"monthly_expenses"`
	Savings         float64  `json:"savings"`
	Horizon         Horizon  `json:"investment_horizon"`
	Goals           []string `json:"investment_goals"`
}

// Validate checks the figures the emergency fund is derived from.
// The returned error wraps ErrInvalidProfile.
func (f Financials) Validate() error {
	v := validation.NewValidator()
	v.Positive("monthly_expenses", f.MonthlyExpenses)
	v.NonNegative("savings", f.Savings)
	v.NonNegative("monthly_income", f.MonthlyIncome)
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

// EmergencyFundMonths converts savings into months of covered expenses
func (f Financials) EmergencyFundMonths() float64 {
	if f.MonthlyExpenses <= 0 {
		return 0
	}
	return f.Savings / f.MonthlyExpenses
}
