package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/events"
	"github.com/finsphere/finsphere/internal/intervention"
	"github.com/finsphere/finsphere/internal/metrics"
)

// CriticalRiskScore is the overall risk score from which a risk alert is
// raised as critical instead of warning.
const CriticalRiskScore = 8.0

// EventSource is the subscribing half of the event bus
type EventSource interface {
	Subscribe(topic events.Topic, handler events.Handler) (*nats.Subscription, error)
}

// Subscriber turns risk and intervention events into alerts
type Subscriber struct {
	manager *Manager
	timeout time.Duration
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber that delivers through manager. Each
// delivery gets its own timeout.
func NewSubscriber(manager *Manager, timeout time.Duration) *Subscriber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Subscriber{manager: manager, timeout: timeout}
}

// Start subscribes to the risk alert and intervention topics
func (s *Subscriber) Start(source EventSource) error {
	handlers := map[events.Topic]events.Handler{
		events.TopicRiskAlert:             s.HandleRiskAlert,
		events.TopicInterventionTriggered: s.HandleIntervention,
	}
	for topic, h := range handlers {
		sub, err := source.Subscribe(topic, h)
		if err != nil {
			s.Stop()
			return err
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Stop removes all subscriptions
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Str("subject", sub.Subject).Msg("Unsubscribe failed")
		}
	}
	s.subs = nil
}

// HandleRiskAlert raises an alert for an elevated risk assessment
func (s *Subscriber) HandleRiskAlert(env *events.Envelope) error {
	var p events.RiskAlert
	if err := env.Decode(&p); err != nil {
		return fmt.Errorf("decode risk alert: %w", err)
	}

	severity := SeverityWarning
	if p.OverallRiskScore >= CriticalRiskScore {
		severity = SeverityCritical
	}

	message := p.Summary
	if message == "" {
		message = fmt.Sprintf("Overall risk score is %.1f out of 10", p.OverallRiskScore)
	}

	metadata := map[string]any{
		"overall_risk_score": p.OverallRiskScore,
		"active_events":      p.ActiveEvents,
	}
	if len(p.Alerts) > 0 {
		metadata["top_alert"] = p.Alerts[0]
	}

	return s.send(Alert{
		Title:     "Elevated financial risk",
		Message:   message,
		Severity:  severity,
		UserID:    env.UserID,
		Timestamp: env.Timestamp,
		Metadata:  metadata,
	})
}

// HandleIntervention raises an alert for medium and high severity
// interventions. Low severity pauses stay in the browser.
func (s *Subscriber) HandleIntervention(env *events.Envelope) error {
	var p events.InterventionTriggered
	if err := env.Decode(&p); err != nil {
		return fmt.Errorf("decode intervention: %w", err)
	}

	var severity Severity
	switch p.Decision.Severity {
	case intervention.SeverityHigh:
		severity = SeverityCritical
	case intervention.SeverityMedium:
		severity = SeverityWarning
	default:
		return nil
	}

	return s.send(Alert{
		Title:     "Take a breath before you buy",
		Message:   p.Decision.Message,
		Severity:  severity,
		UserID:    env.UserID,
		Timestamp: env.Timestamp,
		Metadata: map[string]any{
			"intervention_id": p.InterventionID,
			"context_url":     p.ContextURL,
			"delay_minutes":   p.Decision.DelayMinutes,
		},
	})
}

func (s *Subscriber) send(alert Alert) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err := s.manager.Send(ctx, alert)
	metrics.RecordAlert(string(alert.Severity), err == nil)
	return err
}
