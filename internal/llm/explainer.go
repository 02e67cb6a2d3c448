package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	fallbackConfidence = 0.7
	riskConfidence     = 0.9
	marketConfidence   = 0.8
	defaultTimeout     = 15 * time.Second
)

var fallbackTexts = map[ReasoningType]string{
	ReasoningInvestment: "This allocation balances growth potential with risk management based on your profile and current market conditions. The recommended systematic investment approach helps reduce market timing risks while building wealth over time.",
	ReasoningRisk:       "Current risk levels require some portfolio adjustments to maintain appropriate balance between growth and safety. These changes help protect your investments during uncertain periods.",
	ReasoningMarket:     "Mixed market conditions suggest maintaining a balanced investment approach. Focus on systematic investing rather than trying to time market movements.",
}

// Explainer attaches natural-language explanations to recommendations. It
// never returns an error: when the model is unavailable the explanation is
// a canned text flagged with Fallback.
type Explainer struct {
	client  Completer
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewExplainer creates an explainer. A nil client always yields fallbacks.
func NewExplainer(client Completer, timeout time.Duration) *Explainer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Explainer{
		client:  client,
		timeout: timeout,
		now:     time.Now,
		logger:  log.With().Str("component", "explainer").Logger(),
	}
}

// ExplainRecommendation explains why a portfolio suits the user
func (e *Explainer) ExplainRecommendation(ctx context.Context, c RecommendationContext) Explanation {
	return e.explain(ctx, ReasoningInvestment, investmentSystemPrompt, BuildInvestmentPrompt(c), c.Confidence)
}

// ExplainRisk explains the risk adjustments that were applied
func (e *Explainer) ExplainRisk(ctx context.Context, c RiskContext) Explanation {
	return e.explain(ctx, ReasoningRisk, riskSystemPrompt, BuildRiskPrompt(c), riskConfidence)
}

// ExplainMarket comments on the current market for investors
func (e *Explainer) ExplainMarket(ctx context.Context, c MarketContext) Explanation {
	return e.explain(ctx, ReasoningMarket, marketSystemPrompt, BuildMarketPrompt(c), marketConfidence)
}

func (e *Explainer) explain(ctx context.Context, kind ReasoningType, system, prompt string, confidence float64) Explanation {
	if e.client == nil {
		return e.Fallback(kind)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.client.CompleteWithSystem(ctx, system, prompt)
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("reasoning_type", string(kind)).
			Msg("LLM explanation failed, using fallback")
		return e.Fallback(kind)
	}

	keyPoints, warnings := ExtractInsights(text)
	return Explanation{
		Text:          text,
		KeyPoints:     keyPoints,
		Warnings:      warnings,
		Confidence:    confidence,
		ReasoningType: kind,
		GeneratedAt:   e.now(),
	}
}

// Fallback returns the canned explanation for a reasoning type
func (e *Explainer) Fallback(kind ReasoningType) Explanation {
	text, ok := fallbackTexts[kind]
	if !ok {
		text = "Investment analysis completed with current market considerations."
	}
	return Explanation{
		Text:          text,
		KeyPoints:     []string{"Balanced approach recommended", "Focus on systematic investing", "Regular review important"},
		Warnings:      []string{"Market conditions may change", "Maintain emergency fund"},
		Confidence:    fallbackConfidence,
		ReasoningType: kind,
		GeneratedAt:   e.now(),
		Fallback:      true,
	}
}
