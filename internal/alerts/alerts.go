package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Severity levels for alerts
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is a notification about a user's coaching state. UserID is empty for
// operator-only alerts.
type Alert struct {
	Title     string
	Message   string
	Severity  Severity
	UserID    string
	Timestamp time.Time
	Metadata  map[string]any
}

// Alerter delivers alerts over one channel
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// Manager fans an alert out to every configured channel
type Manager struct {
	alerters []Alerter
	now      func() time.Time
}

// NewManager creates a new alert manager
func NewManager(alerters ...Alerter) *Manager {
	return &Manager{
		alerters: alerters,
		now:      time.Now,
	}
}

// Add registers another channel
func (m *Manager) Add(a Alerter) {
	m.alerters = append(m.alerters, a)
}

// Len returns the number of configured channels
func (m *Manager) Len() int {
	return len(m.alerters)
}

// Send delivers the alert to every channel. A failing channel does not stop
// the others; all failures are joined into the returned error.
func (m *Manager) Send(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = m.now()
	}

	var errs []error
	for _, alerter := range m.alerters {
		if err := alerter.Send(ctx, alert); err != nil {
			log.Error().
				Err(err).
				Str("title", alert.Title).
				Str("user_id", alert.UserID).
				Msg("Failed to send alert")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// LogAlerter writes alerts to the structured log
type LogAlerter struct{}

// NewLogAlerter creates a new log-based alerter
func NewLogAlerter() *LogAlerter {
	return &LogAlerter{}
}

// Send logs the alert at a level matching its severity
func (l *LogAlerter) Send(_ context.Context, alert Alert) error {
	event := log.Info()
	switch alert.Severity {
	case SeverityCritical:
		event = log.Error()
	case SeverityWarning:
		event = log.Warn()
	}

	for key, value := range alert.Metadata {
		event = event.Interface(key, value)
	}

	event.
		Str("alert_title", alert.Title).
		Str("alert_severity", string(alert.Severity)).
		Str("user_id", alert.UserID).
		Time("alert_time", alert.Timestamp).
		Msg(fmt.Sprintf("ALERT: %s", alert.Message))

	return nil
}
