package alerts

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsphere/finsphere/internal/events"
	"github.com/finsphere/finsphere/internal/intervention"
)

func envelope(t *testing.T, topic events.Topic, payload any) *events.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &events.Envelope{
		ID:        uuid.New(),
		Topic:     topic,
		UserID:    "user-1",
		Payload:   data,
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandleRiskAlert(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		summary  string
		severity Severity
		message  string
	}{
		{"warning", 6.5, "Stress is affecting spending", SeverityWarning, "Stress is affecting spending"},
		{"critical", 8.2, "Several risks at once", SeverityCritical, "Several risks at once"},
		{"no summary", 7, "", SeverityWarning, "Overall risk score is 7.0 out of 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockAlerter(nil)
			s := NewSubscriber(NewManager(mock), time.Second)

			env := envelope(t, events.TopicRiskAlert, events.RiskAlert{
				OverallRiskScore: tt.score,
				ActiveEvents:     2,
				Summary:          tt.summary,
				Alerts:           []string{"High stress spending"},
			})
			require.NoError(t, s.HandleRiskAlert(env))

			got := mock.Alerts()
			require.Len(t, got, 1)
			assert.Equal(t, tt.severity, got[0].Severity)
			assert.Equal(t, tt.message, got[0].Message)
			assert.Equal(t, "user-1", got[0].UserID)
			assert.Equal(t, env.Timestamp, got[0].Timestamp)
			assert.Equal(t, "High stress spending", got[0].Metadata["top_alert"])
		})
	}
}

func TestHandleRiskAlertBadPayload(t *testing.T) {
	s := NewSubscriber(NewManager(NewMockAlerter(nil)), 0)
	env := &events.Envelope{Topic: events.TopicRiskAlert, Payload: json.RawMessage(`"nope"`)}
	assert.Error(t, s.HandleRiskAlert(env))
}

func TestHandleIntervention(t *testing.T) {
	tests := []struct {
		severity intervention.Severity
		want     Severity
		sent     bool
	}{
		{intervention.SeverityHigh, SeverityCritical, true},
		{intervention.SeverityMedium, SeverityWarning, true},
		{intervention.SeverityLow, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			mock := NewMockAlerter(nil)
			s := NewSubscriber(NewManager(mock), time.Second)

			env := envelope(t, events.TopicInterventionTriggered, events.InterventionTriggered{
				InterventionID: "int-1",
				ContextURL:     "https://www.myntra.com",
				Decision: intervention.Decision{
					ShouldIntervene: true,
					Severity:        tt.severity,
					DelayMinutes:    2,
					Message:         "Pause for a moment",
				},
			})
			require.NoError(t, s.HandleIntervention(env))

			got := mock.Alerts()
			if !tt.sent {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Severity)
			assert.Equal(t, "Pause for a moment", got[0].Message)
			assert.Equal(t, "int-1", got[0].Metadata["intervention_id"])
		})
	}
}

func TestSubscriberReceivesBusEvents(t *testing.T) {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(ns.Shutdown)

	bus, err := events.Connect(events.Config{URL: ns.ClientURL(), Prefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	mock := NewMockAlerter(nil)
	s := NewSubscriber(NewManager(mock), time.Second)
	require.NoError(t, s.Start(bus))
	t.Cleanup(s.Stop)
	require.NoError(t, bus.Flush(time.Second))

	require.NoError(t, bus.PublishIntervention(context.Background(), "user-9", "int-9", "https://www.amazon.in", intervention.Decision{
		ShouldIntervene: true,
		Severity:        intervention.SeverityHigh,
		Message:         "Cool off",
	}))
	require.NoError(t, bus.Flush(time.Second))

	assert.Eventually(t, func() bool { return len(mock.Alerts()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "user-9", mock.Alerts()[0].UserID)
}
