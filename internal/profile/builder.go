package profile

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Builder defaults used when a user has no history of the relevant kind
const (
	DefaultBehavioralScore = 0.3
	DefaultMonthlySurplus  = 5000.0
	DefaultStressBaseline  = 4.0

	surplusShare      = 0.2
	surplusFloor      = 1000.0
	surplusCap        = 50000.0
	surplusWindow     = 30
	aggressiveSpread  = 2000.0
	moderateSpread    = 500.0
	lifestyleRatio    = 0.4
	conservativeRatio = 0.2
)

var discretionaryCategories = map[string]bool{
	"fashion":       true,
	"entertainment": true,
	"dining":        true,
	"electronics":   true,
}

var defaultGoals = []string{"wealth_building", "tax_saving"}

// History is everything the builder knows about one user
type History struct {
	Transactions  []Transaction
	Biometrics    []BiometricReading
	Interventions []InterventionRecord
	Financials    *Financials
}

// RequireFinancials reports whether the history can back an emergency fund
// figure. It returns ErrNoFinancials when nothing was declared and an
// ErrInvalidProfile error when the declared figures are unusable.
func (h History) RequireFinancials() error {
	if h.Financials == nil {
		return ErrNoFinancials
	}
	return h.Financials.Validate()
}

// Build derives a profile from transaction, biometric and intervention
// history. It is deterministic over its input.
func Build(h History) UserProfile {
	txns := sortedTransactions(h.Transactions)

	p := UserProfile{
		RiskAppetite:        riskAppetite(txns),
		InvestmentHorizon:   MediumTerm,
		MonthlySurplus:      monthlySurplus(txns),
		SpendingPersonality: spendingPersonality(txns),
		StressBaseline:      stressBaseline(h.Biometrics),
		BehavioralScore:     behavioralScore(h.Interventions, h.Biometrics),
		InvestmentGoals:     defaultGoals,
	}

	if f := h.Financials; f != nil {
		p.EmergencyFundMonths = f.EmergencyFundMonths()
		if f.Horizon != "" {
			p.InvestmentHorizon = f.Horizon
		}
		if len(f.Goals) > 0 {
			p.InvestmentGoals = f.Goals
		}
	}

	return p
}

func sortedTransactions(txns []Transaction) []Transaction {
	out := make([]Transaction, len(txns))
	copy(out, txns)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// riskAppetite treats a wide spending spread relative to the mean as
// tolerance for volatility
func riskAppetite(txns []Transaction) RiskAppetite {
	if len(txns) == 0 {
		return Moderate
	}

	amounts := amountsOf(txns)
	mean, variance := stat.PopMeanVariance(amounts, nil)
	if len(amounts) < 2 {
		variance = 0
	}

	spread := variance / (mean + 1)
	switch {
	case spread > aggressiveSpread:
		return Aggressive
	case spread > moderateSpread:
		return Moderate
	default:
		return Conservative
	}
}

// behavioralScore is the share of interventions the user overrode, blended
// with average stress when readings exist
func behavioralScore(interventions []InterventionRecord, readings []BiometricReading) float64 {
	if len(interventions) == 0 {
		return DefaultBehavioralScore
	}

	ignored := 0
	for _, i := range interventions {
		if i.UserAction == ActionProceeded {
			ignored++
		}
	}
	ignoreRate := float64(ignored) / float64(len(interventions))

	if len(readings) > 0 {
		avgStress := stat.Mean(stressScores(readings), nil)
		return min(1.0, ignoreRate*0.7+avgStress*0.3)
	}

	return min(1.0, ignoreRate)
}

func monthlySurplus(txns []Transaction) float64 {
	if len(txns) == 0 {
		return DefaultMonthlySurplus
	}

	recent := txns
	if len(recent) > surplusWindow {
		recent = recent[len(recent)-surplusWindow:]
	}

	spent := 0.0
	for _, t := range recent {
		spent += t.Amount
	}

	return min(max(surplusFloor, spent*surplusShare), surplusCap)
}

func spendingPersonality(txns []Transaction) string {
	if len(txns) == 0 {
		return PersonalityBalanced
	}

	discretionary := 0
	for _, t := range txns {
		if discretionaryCategories[strings.ToLower(t.Category)] {
			discretionary++
		}
	}

	ratio := float64(discretionary) / float64(len(txns))
	switch {
	case ratio > lifestyleRatio:
		return PersonalityLifestyle
	case ratio < conservativeRatio:
		return PersonalityConservative
	default:
		return PersonalityBalanced
	}
}

// stressBaseline reports mean stress on the 0-10 scale
func stressBaseline(readings []BiometricReading) float64 {
	if len(readings) == 0 {
		return DefaultStressBaseline
	}
	return stat.Mean(stressScores(readings), nil) * 10
}

func amountsOf(txns []Transaction) []float64 {
	out := make([]float64, len(txns))
	for i, t := range txns {
		out[i] = t.Amount
	}
	return out
}

func stressScores(readings []BiometricReading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.StressScore
	}
	return out
}
