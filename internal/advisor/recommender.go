// Package advisor turns a user's history and the current market into an
// investment recommendation: profile, risk evaluation, instruments, SIP
// sizing and a natural-language explanation.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/llm"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/metrics"
	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/risk"
)

const (
	reviewPeriod = 30 * 24 * time.Hour
	recentWindow = 30 * 24 * time.Hour
)

// HistorySource loads the records a profile is built from
type HistorySource interface {
	LoadHistory(ctx context.Context, userID string) (profile.History, error)
}

// EvaluationRecorder persists risk evaluations for audit
type EvaluationRecorder interface {
	RecordEvaluation(ctx context.Context, a *Assessment) error
}

// Publisher announces finished recommendations to other services
type Publisher interface {
	PublishRecommendation(ctx context.Context, r *Recommendation) error
}

// Assessment is a risk evaluation for one user
type Assessment struct {
	UserID      string              `json:"user_id"`
	Profile     profile.UserProfile `json:"profile"`
	Market      market.Snapshot     `json:"market"`
	Metrics     *risk.Metrics       `json:"risk_metrics"`
	Summary     string              `json:"risk_summary"`
	Explanation *llm.Explanation    `json:"explanation,omitempty"`
	EvaluatedAt time.Time           `json:"evaluated_at"`
}

// RiskAnalysis is the risk section of a recommendation
type RiskAnalysis struct {
	OverallRiskScore  float64                   `json:"overall_risk_score"`
	CategoryRisks     map[risk.Category]float64 `json:"category_risks"`
	ActiveEventsCount int                       `json:"active_events_count"`
	ActiveEvents      []risk.Event              `json:"active_events"`
	RiskSummary       string                    `json:"risk_summary"`
}

// Insights carries the explanation metadata
type Insights struct {
	KeyPoints   []string  `json:"key_points"`
	Confidence  float64   `json:"confidence"`
	GeneratedAt time.Time `json:"generated_at"`
	Fallback    bool      `json:"fallback"`
}

// Recommendation is the full answer for one user
type Recommendation struct {
	UserID                string                `json:"user_id"`
	RecommendedAllocation allocation.Allocation `json:"recommended_allocation"`
	RiskLevel             profile.RiskAppetite  `json:"risk_level"`
	MonthlySIPAmount      float64               `json:"monthly_sip_amount"`
	SpecificInstruments   []Instrument          `json:"specific_instruments"`
	Reasoning             string                `json:"reasoning"`
	ConfidenceScore       float64               `json:"confidence_score"`
	MarketContext         string                `json:"market_context"`
	MarketSource          string                `json:"market_source"`
	Warnings              []string              `json:"warnings"`
	Alternatives          []Alternative         `json:"alternatives"`
	ReviewDate            time.Time             `json:"review_date"`
	RiskAnalysis          RiskAnalysis          `json:"risk_analysis"`
	Insights              Insights              `json:"llm_insights"`
	GeneratedAt           time.Time             `json:"generated_at"`
}

// Recommender wires the pipeline together
type Recommender struct {
	history   HistorySource
	market    market.Provider
	engine    *risk.Engine
	explainer *llm.Explainer
	recorder  EvaluationRecorder
	publisher Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Recommender
type Option func(*Recommender)

// WithRecorder persists every evaluation
func WithRecorder(r EvaluationRecorder) Option {
	return func(rec *Recommender) { rec.recorder = r }
}

// WithPublisher announces every recommendation
func WithPublisher(p Publisher) Option {
	return func(rec *Recommender) { rec.publisher = p }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(rec *Recommender) { rec.now = now }
}

// NewRecommender creates a recommender. A nil engine uses the default rule
// catalog and a nil explainer always produces fallback text.
func NewRecommender(history HistorySource, provider market.Provider, engine *risk.Engine, explainer *llm.Explainer, opts ...Option) *Recommender {
	if engine == nil {
		engine = risk.NewEngine()
	}
	if explainer == nil {
		explainer = llm.NewExplainer(nil, 0)
	}

	r := &Recommender{
		history:   history,
		market:    provider,
		engine:    engine,
		explainer: explainer,
		now:       time.Now,
		logger:    log.With().Str("component", "advisor").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Assess builds the profile and evaluates risk without producing a full
// recommendation. The explanation is attached only when explain is set.
func (r *Recommender) Assess(ctx context.Context, userID string, explain bool) (*Assessment, error) {
	a, err := r.assess(ctx, userID)
	if err != nil {
		return nil, err
	}

	if explain {
		exp := r.explainer.ExplainRisk(ctx, llm.RiskContext{
			Profile: a.Profile,
			Market:  a.Market,
			Risk:    a.Metrics,
		})
		a.Explanation = &exp
	}
	return a, nil
}

// Recommend produces a full recommendation for the user
func (r *Recommender) Recommend(ctx context.Context, userID string) (*Recommendation, error) {
	a, err := r.assess(ctx, userID)
	if err != nil {
		return nil, err
	}

	m := a.Metrics
	final := m.RiskAdjustedAllocation
	sip := MonthlySIP(a.Profile).InexactFloat64()
	confidence := Confidence(a.Profile, a.Market, m.ActiveRiskEvents) * m.ConfidenceAdjustment

	exp := r.explainer.ExplainRecommendation(ctx, llm.RecommendationContext{
		Profile:    a.Profile,
		Market:     a.Market,
		Allocation: final,
		MonthlySIP: sip,
		Confidence: confidence,
		Risk:       m,
	})

	warnings := make([]string, 0, len(exp.Warnings)+len(m.MonitoringAlerts))
	warnings = append(warnings, exp.Warnings...)
	warnings = append(warnings, m.MonitoringAlerts...)

	now := r.now()
	rec := &Recommendation{
		UserID:                userID,
		RecommendedAllocation: final.Round(4),
		RiskLevel:             a.Profile.RiskAppetite,
		MonthlySIPAmount:      sip,
		SpecificInstruments:   Instruments(final, a.Market),
		Reasoning:             exp.Text,
		ConfidenceScore:       confidence,
		MarketContext:         MarketContext(a.Market),
		MarketSource:          a.Market.Source,
		Warnings:              warnings,
		Alternatives:          Alternatives(a.Market),
		ReviewDate:            now.Add(reviewPeriod),
		RiskAnalysis: RiskAnalysis{
			OverallRiskScore:  m.OverallRiskScore,
			CategoryRisks:     m.CategoryRisks,
			ActiveEventsCount: len(m.ActiveRiskEvents),
			ActiveEvents:      m.ActiveRiskEvents,
			RiskSummary:       a.Summary,
		},
		Insights: Insights{
			KeyPoints:   exp.KeyPoints,
			Confidence:  exp.Confidence,
			GeneratedAt: exp.GeneratedAt,
			Fallback:    exp.Fallback,
		},
		GeneratedAt: now,
	}

	metrics.RecordRecommendation(string(rec.RiskLevel))

	if r.publisher != nil {
		if err := r.publisher.PublishRecommendation(ctx, rec); err != nil {
			r.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to publish recommendation")
		}
	}

	r.logger.Info().
		Str("user_id", userID).
		Float64("overall_risk_score", m.OverallRiskScore).
		Int("risk_events", len(m.ActiveRiskEvents)).
		Float64("monthly_sip", sip).
		Float64("confidence", confidence).
		Bool("llm_fallback", exp.Fallback).
		Str("market_source", a.Market.Source).
		Msg("Recommendation generated")

	return rec, nil
}

func (r *Recommender) assess(ctx context.Context, userID string) (*Assessment, error) {
	var (
		history profile.History
		snap    market.Snapshot
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := r.history.LoadHistory(gctx, userID)
		if err != nil {
			return fmt.Errorf("load history for %s: %w", userID, err)
		}
		history = h
		return nil
	})
	g.Go(func() error {
		s, err := r.market.Snapshot(gctx)
		if err != nil {
			// the core needs a snapshot, not a reason
			r.logger.Warn().Err(err).Msg("Market provider failed, using default snapshot")
			s = market.Default(r.now())
		}
		snap = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// an emergency fund of zero would trip the liquidity rules, so advice
	// waits until the user has declared usable financials
	if err := history.RequireFinancials(); err != nil {
		metrics.RecordRiskEvaluation(metrics.ResultInvalidInput, 0)
		return nil, fmt.Errorf("profile for %s: %w", userID, err)
	}

	p := profile.Build(history)
	recent := recentTransactions(history.Transactions, r.now())

	m, err := r.engine.Evaluate(p, snap, recent, history.Biometrics)
	if err != nil {
		metrics.RecordRiskEvaluation(evaluationResult(err), 0)
		return nil, fmt.Errorf("evaluate risk for %s: %w", userID, err)
	}

	metrics.RecordRiskEvaluation(metrics.ResultOK, m.OverallRiskScore)
	for _, e := range m.ActiveRiskEvents {
		metrics.RecordRiskEvent(string(e.Category), e.Severity.String())
	}

	a := &Assessment{
		UserID:      userID,
		Profile:     p,
		Market:      snap,
		Metrics:     m,
		Summary:     risk.Summary(m),
		EvaluatedAt: r.now(),
	}

	if r.recorder != nil {
		if err := r.recorder.RecordEvaluation(ctx, a); err != nil {
			r.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to record risk evaluation")
		}
	}

	return a, nil
}

func evaluationResult(err error) string {
	switch {
	case risk.IsInputError(err):
		return metrics.ResultInvalidInput
	case errors.Is(err, risk.ErrAllocationDegenerate):
		return metrics.ResultDegenerate
	default:
		return metrics.ResultInternalError
	}
}

func recentTransactions(txns []profile.Transaction, now time.Time) []profile.Transaction {
	cutoff := now.Add(-recentWindow)
	out := make([]profile.Transaction, 0, len(txns))
	for _, t := range txns {
		if !t.Timestamp.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
