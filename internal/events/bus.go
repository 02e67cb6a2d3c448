// Package events publishes coaching events (recommendations, interventions,
// outcomes, risk alerts) on NATS for downstream consumers such as the
// notification service and the analytics pipeline.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/advisor"
	"github.com/finsphere/finsphere/internal/intervention"
)

// ErrNotConnected is returned when publishing while NATS is down
var ErrNotConnected = errors.New("event bus not connected")

// Topic names the kind of event; it is the last subject token
type Topic string

const (
	TopicRecommendation        Topic = "recommendation.issued"
	TopicInterventionTriggered Topic = "intervention.triggered"
	TopicInterventionOutcome   Topic = "intervention.outcome"
	TopicRiskAlert             Topic = "risk.alert"
)

// RiskAlertThreshold is the overall risk score above which a recommendation
// also raises a risk alert
const RiskAlertThreshold = 6.0

// Envelope wraps every published payload
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	Topic     Topic           `json:"topic"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Decode unmarshals the payload into v
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler is a callback for received events
type Handler func(env *Envelope) error

// Config configures the bus
type Config struct {
	URL    string
	Prefix string // Subject prefix (default: "finsphere")
	Name   string // Client connection name
}

// Bus publishes coaching events
type Bus struct {
	nc     *nats.Conn
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

var _ advisor.Publisher = (*Bus)(nil)

// Connect opens a NATS connection with infinite reconnects
func Connect(cfg Config) (*Bus, error) {
	if cfg.Name == "" {
		cfg.Name = "finsphere-api"
	}

	logger := log.With().Str("component", "events").Logger()

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return NewBus(nc, cfg.Prefix), nil
}

// NewBus wraps an existing connection
func NewBus(nc *nats.Conn, prefix string) *Bus {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "finsphere"
	}

	b := &Bus{
		nc:     nc,
		prefix: prefix,
		now:    time.Now,
		logger: log.With().Str("component", "events").Logger(),
	}

	b.logger.Info().
		Str("nats_url", nc.ConnectedUrl()).
		Str("prefix", prefix).
		Msg("Event bus initialized")

	return b
}

// Subject returns the NATS subject a topic is published on
func (b *Bus) Subject(topic Topic) string {
	return b.prefix + "." + string(topic)
}

// Publish wraps payload in an envelope and publishes it on the topic subject
func (b *Bus) Publish(ctx context.Context, topic Topic, userID string, payload any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !b.nc.IsConnected() {
		return ErrNotConnected
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}

	env := Envelope{
		ID:        uuid.New(),
		Topic:     topic,
		UserID:    userID,
		Payload:   body,
		Timestamp: b.now(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	subject := b.Subject(topic)
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}

	b.logger.Debug().
		Str("event_id", env.ID.String()).
		Str("user_id", userID).
		Str("subject", subject).
		Msg("Published event")

	return nil
}

// Subscribe delivers every event on topic to handler. Handler errors are
// logged and the message is dropped.
func (b *Bus) Subscribe(topic Topic, handler Handler) (*nats.Subscription, error) {
	subject := b.Subject(topic)

	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.logger.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to unmarshal event")
			return
		}
		if err := handler(&env); err != nil {
			b.logger.Error().Err(err).
				Str("event_id", env.ID.String()).
				Str("subject", msg.Subject).
				Msg("Event handler failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	b.logger.Info().Str("subject", subject).Msg("Subscribed to events")
	return sub, nil
}

// Flush waits until the server has processed every published message
func (b *Bus) Flush(timeout time.Duration) error {
	return b.nc.FlushTimeout(timeout)
}

// Close drains pending messages and closes the connection
func (b *Bus) Close() error {
	if b.nc == nil {
		return nil
	}
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	b.logger.Info().Msg("Event bus closed")
	return nil
}

// RecommendationIssued is the recommendation event payload
type RecommendationIssued struct {
	RiskLevel        string             `json:"risk_level"`
	Allocation       map[string]float64 `json:"allocation"`
	MonthlySIPAmount float64            `json:"monthly_sip_amount"`
	ConfidenceScore  float64            `json:"confidence_score"`
	MarketSource     string             `json:"market_source"`
	Warnings         []string           `json:"warnings"`
}

// RiskAlert is raised when a recommendation carries elevated risk
type RiskAlert struct {
	OverallRiskScore float64  `json:"overall_risk_score"`
	ActiveEvents     int      `json:"active_events"`
	Summary          string   `json:"summary"`
	Alerts           []string `json:"alerts"`
}

// PublishRecommendation announces a recommendation, and a risk alert when
// its overall risk score exceeds RiskAlertThreshold
func (b *Bus) PublishRecommendation(ctx context.Context, r *advisor.Recommendation) error {
	alloc := make(map[string]float64, len(r.RecommendedAllocation))
	for k, v := range r.RecommendedAllocation {
		alloc[string(k)] = v
	}

	err := b.Publish(ctx, TopicRecommendation, r.UserID, RecommendationIssued{
		RiskLevel:        string(r.RiskLevel),
		Allocation:       alloc,
		MonthlySIPAmount: r.MonthlySIPAmount,
		ConfidenceScore:  r.ConfidenceScore,
		MarketSource:     r.MarketSource,
		Warnings:         r.Warnings,
	})
	if err != nil {
		return err
	}

	if r.RiskAnalysis.OverallRiskScore <= RiskAlertThreshold {
		return nil
	}
	return b.Publish(ctx, TopicRiskAlert, r.UserID, RiskAlert{
		OverallRiskScore: r.RiskAnalysis.OverallRiskScore,
		ActiveEvents:     r.RiskAnalysis.ActiveEventsCount,
		Summary:          r.RiskAnalysis.RiskSummary,
		Alerts:           r.Warnings,
	})
}

// InterventionTriggered is the payload for a shown intervention
type InterventionTriggered struct {
	InterventionID string                `json:"intervention_id"`
	ContextURL     string                `json:"context_url"`
	Decision       intervention.Decision `json:"decision"`
}

// PublishIntervention announces an intervention shown to the user
func (b *Bus) PublishIntervention(ctx context.Context, userID, interventionID, contextURL string, d intervention.Decision) error {
	return b.Publish(ctx, TopicInterventionTriggered, userID, InterventionTriggered{
		InterventionID: interventionID,
		ContextURL:     contextURL,
		Decision:       d,
	})
}

// InterventionOutcome is the payload for a user's response
type InterventionOutcome struct {
	InterventionID string `json:"intervention_id"`
	UserAction     string `json:"user_action"`
	Effectiveness  string `json:"effectiveness"`
}

// PublishOutcome announces how the user responded to an intervention
func (b *Bus) PublishOutcome(ctx context.Context, userID, interventionID, action, effectiveness string) error {
	return b.Publish(ctx, TopicInterventionOutcome, userID, InterventionOutcome{
		InterventionID: interventionID,
		UserAction:     action,
		Effectiveness:  effectiveness,
	})
}
