package llm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/risk"
)

// RecommendationContext is what the model sees when explaining a portfolio
type RecommendationContext struct {
	Profile    profile.UserProfile
	Market     market.Snapshot
	Allocation allocation.Allocation
	MonthlySIP float64
	Confidence float64
	Risk       *risk.Metrics
}

// RiskContext is what the model sees when explaining risk adjustments
type RiskContext struct {
	Profile profile.UserProfile
	Market  market.Snapshot
	Risk    *risk.Metrics
}

// MarketContext is what the model sees when commenting on the market.
// Summary is a one-line reading of the snapshot written by the caller.
type MarketContext struct {
	Market  market.Snapshot
	Summary string
}

const investmentSystemPrompt = `You are a certified financial advisor with expertise in Indian markets.
You explain portfolio recommendations to retail investors in plain, friendly language.
Never promise returns. Keep answers short.`

const riskSystemPrompt = `You are a risk management specialist for retail investors in India.
You explain risk adjustments calmly and clearly without jargon.`

// BuildInvestmentPrompt renders the investment explanation request
func BuildInvestmentPrompt(c RecommendationContext) string {
	p, m := c.Profile, c.Market

	overall, events := 0.0, 0
	if c.Risk != nil {
		overall, events = c.Risk.OverallRiskScore, len(c.Risk.ActiveRiskEvents)
	}

	return fmt.Sprintf(`Provide a clear, personalized explanation for this investment recommendation.

USER PROFILE:
- Risk Appetite: %s
- Monthly Surplus: %s
- Emergency Fund: %.1f months
- Stress Level: %.1f/10
- Spending Personality: %s
- Investment Horizon: %s
- Behavioral Score: %.2f (higher = more impulsive)

CURRENT MARKET CONDITIONS:
- Nifty 50: %+.1f%% today
- Market Volatility (VIX): %.1f
- Market Phase: %s
- Bond Yields: %.1f%%
- USD/INR: %.2f
- Gold: %s/10g

RECOMMENDED PORTFOLIO:
%s
- Monthly SIP: %s

RISK ANALYSIS:
- Overall Risk Score: %.1f/10
- Active Risk Events: %d
- Confidence Level: %.0f%%

Provide a 3-4 sentence explanation that:
1. Explains WHY this allocation makes sense for this specific user
2. Addresses current market conditions and their impact
3. Highlights any important warnings or considerations
4. Uses simple, non-technical language`,
		p.RiskAppetite,
		Rupees(p.MonthlySurplus),
		p.EmergencyFundMonths,
		p.StressBaseline,
		orDefault(p.SpendingPersonality, profile.PersonalityBalanced),
		orDefault(string(p.InvestmentHorizon), string(profile.MediumTerm)),
		p.BehavioralScore,
		m.NiftyChange,
		m.VIXLevel,
		m.Condition(),
		m.BondYield10Y,
		m.USDINR,
		Rupees(m.GoldPrice),
		formatAllocation(c.Allocation),
		Rupees(c.MonthlySIP),
		overall,
		events,
		c.Confidence*100,
	)
}

const marketSystemPrompt = `You are a market analyst writing for first-time retail investors in India.
You describe market moves plainly and never predict prices.`

// BuildMarketPrompt renders the market commentary request
func BuildMarketPrompt(c MarketContext) string {
	m := c.Market
	return fmt.Sprintf(`As a market analyst, provide a concise market update and its implications for investors.

MARKET SNAPSHOT:
- Nifty 50: %+.1f%%
- Sensex: %+.1f%%
- VIX: %.1f (%s)
- Market Condition: %s

SECTOR PERFORMANCE:
%s

ECONOMIC INDICATORS:
- 10Y Bond Yield: %.2f%%
- USD/INR: %.2f
- Gold: %s/10g

IMPLICATIONS FOR INVESTORS:
%s

Provide a 2-3 sentence market commentary that:
1. Summarizes the key market moves
2. Explains what this means for different types of investors
3. Offers actionable guidance for portfolio management
4. Uses accessible language without market jargon`,
		m.NiftyChange,
		m.SensexChange,
		m.VIXLevel,
		VolatilityLabel(m.VIXLevel),
		m.Condition(),
		SectorSummary(m),
		m.BondYield10Y,
		m.USDINR,
		Rupees(m.GoldPrice),
		orDefault(c.Summary, "Maintain a balanced approach"),
	)
}

// BuildRiskPrompt renders the risk explanation request
func BuildRiskPrompt(c RiskContext) string {
	m := c.Risk
	if m == nil {
		m = &risk.Metrics{}
	}

	return fmt.Sprintf(`Explain the current risk situation and recommended actions.

RISK ASSESSMENT:
- Overall Risk Level: %.1f/10 (%s)
- Market Risk: %.1f/10
- Behavioral Risk: %.1f/10
- Liquidity Risk: %.1f/10
- Systemic Risk: %.1f/10

ACTIVE RISK EVENTS:
%s

CURRENT MARKET CONDITIONS:
- Market Phase: %s
- Volatility: %s
- Recent Performance: Nifty %+.1f%%

RISK ADJUSTMENTS MADE:
%s

USER CONTEXT:
- Risk Tolerance: %s
- Financial Cushion: %.1f months
- Stress Level: %.1f/10

Provide a clear 2-3 sentence explanation that:
1. Summarizes the key risk factors in simple terms
2. Explains why the adjustments were made
3. Gives actionable guidance for the user`,
		m.OverallRiskScore,
		RiskLevel(m.OverallRiskScore),
		m.CategoryRisks[risk.CategoryMarket],
		m.CategoryRisks[risk.CategoryUserBehavioral],
		m.CategoryRisks[risk.CategoryLiquidity],
		m.CategoryRisks[risk.CategorySystemic],
		summarizeEvents(m.ActiveRiskEvents),
		c.Market.Condition(),
		VolatilityLabel(c.Market.VIXLevel),
		c.Market.NiftyChange,
		summarizeAdjustments(m.ActiveRiskEvents),
		c.Profile.RiskAppetite,
		c.Profile.EmergencyFundMonths,
		c.Profile.StressBaseline,
	)
}

// RiskLevel labels an overall risk score
func RiskLevel(score float64) string {
	switch {
	case score > 7:
		return "High"
	case score > 4:
		return "Moderate"
	default:
		return "Low"
	}
}

// VolatilityLabel describes a VIX level in plain words
func VolatilityLabel(vix float64) string {
	switch {
	case vix > 25:
		return "High volatility"
	case vix > 18:
		return "Moderate volatility"
	default:
		return "Low volatility"
	}
}

func summarizeEvents(events []risk.Event) string {
	if len(events) == 0 {
		return "No active risk events detected"
	}

	var high []risk.Event
	for _, e := range events {
		if e.Severity.AtLeastHigh() {
			high = append(high, e)
		}
	}
	if len(high) > 0 {
		return fmt.Sprintf("%d high-priority risks including: %s", len(high), high[0].Description)
	}
	return fmt.Sprintf("%d risk factors being monitored", len(events))
}

func summarizeAdjustments(events []risk.Event) string {
	if len(events) == 0 {
		return "No adjustments needed"
	}

	var adjustments []string
	for _, e := range events[:min(2, len(events))] {
		for _, a := range e.AffectedAssets {
			switch a {
			case allocation.Equity:
				adjustments = append(adjustments, "reduced equity allocation")
			case allocation.Liquid:
				adjustments = append(adjustments, "increased liquid funds")
			}
		}
	}
	if len(adjustments) == 0 {
		return "Portfolio rebalancing applied"
	}
	return strings.Join(adjustments, ", ")
}

func formatAllocation(a allocation.Allocation) string {
	lines := make([]string, 0, len(allocation.AssetClasses))
	for _, c := range allocation.AssetClasses {
		lines = append(lines, fmt.Sprintf("- %s: %.0f%%", titleCase(string(c)), a[c]*100))
	}
	return strings.Join(lines, "\n")
}

// SectorSummary names the best and worst sector of a snapshot
func SectorSummary(m market.Snapshot) string {
	names := m.Sectors()
	if len(names) == 0 {
		return "Mixed sector performance"
	}
	sort.SliceStable(names, func(i, j int) bool {
		return m.SectorPerformance[names[i]] > m.SectorPerformance[names[j]]
	})
	best, worst := names[0], names[len(names)-1]
	return fmt.Sprintf("%s leading (%+.1f%%), %s lagging (%+.1f%%)",
		best, m.SectorPerformance[best], worst, m.SectorPerformance[worst])
}

// Rupees formats a whole-rupee amount with thousands separators
func Rupees(v float64) string {
	neg := v < 0
	digits := strconv.FormatInt(int64(math.Round(math.Abs(v))), 10)

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-₹" + b.String()
	}
	return "₹" + b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
