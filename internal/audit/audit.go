// Package audit records security- and advice-relevant events: who was
// evaluated, what fired, which interventions were shown.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/finsphere/finsphere/internal/metrics"
)

// EventType represents the type of audit event
type EventType string

const (
	// Advice events
	EventTypeRiskEvaluated          EventType = "RISK_EVALUATED"
	EventTypeRecommendationIssued   EventType = "RECOMMENDATION_ISSUED"
	EventTypeInterventionTriggered  EventType = "INTERVENTION_TRIGGERED"
	EventTypeInterventionOutcome    EventType = "INTERVENTION_OUTCOME"
	EventTypeBiometricIngested      EventType = "BIOMETRIC_INGESTED"
	EventTypeTransactionIngested    EventType = "TRANSACTION_INGESTED"
	EventTypeProfileUpdated         EventType = "PROFILE_UPDATED"
	EventTypeMarketSnapshotDegraded EventType = "MARKET_SNAPSHOT_DEGRADED"

	// Security events
	EventTypeRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"
	EventTypeInvalidInput      EventType = "INVALID_INPUT"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event represents a single audit log event
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType EventType      `json:"event_type"`
	Severity  Severity       `json:"severity"`
	UserID    string         `json:"user_id,omitempty"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent,omitempty"`
	Resource  string         `json:"resource,omitempty"` // intervention ID, evaluation ID, etc.
	Action    string         `json:"action"`
	Success   bool           `json:"success"`
	ErrorMsg  string         `json:"error_message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Duration  int64          `json:"duration_ms,omitempty"`
}

// Pool is the subset of pgxpool.Pool the audit log writes through
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Logger handles audit logging operations
type Logger struct {
	db      Pool
	enabled bool
	now     func() time.Time
}

// NewLogger creates a new audit logger. A nil pool logs without persisting.
func NewLogger(db Pool, enabled bool) *Logger {
	return &Logger{
		db:      db,
		enabled: enabled,
		now:     time.Now,
	}
}

// Log records an audit event
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if !l.enabled {
		return nil
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	logEvent := log.With().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.EventType)).
		Str("severity", string(event.Severity)).
		Str("user_id", event.UserID).
		Str("resource", event.Resource).
		Str("action", event.Action).
		Bool("success", event.Success).
		Logger()

	if event.ErrorMsg != "" {
		logEvent = logEvent.With().Str("error", event.ErrorMsg).Logger()
	}

	switch event.Severity {
	case SeverityCritical, SeverityError:
		logEvent.Error().Msg("Audit event")
	case SeverityWarning:
		logEvent.Warn().Msg("Audit event")
	default:
		logEvent.Info().Msg("Audit event")
	}

	if l.db != nil {
		if err := l.persistEvent(ctx, event); err != nil {
			metrics.RecordAudit(string(event.EventType), false)
			return err
		}
	}

	metrics.RecordAudit(string(event.EventType), true)
	return nil
}

// persistEvent stores the audit event in the database
func (l *Logger) persistEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO audit_logs (
			id, timestamp, event_type, severity, user_id, ip_address,
			user_agent, resource, action, success, error_message,
			metadata, request_id, duration_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit event metadata")
			metadataJSON = []byte("{}")
		}
	}

	_, err := l.db.Exec(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.EventType),
		string(event.Severity),
		event.UserID,
		event.IPAddress,
		event.UserAgent,
		event.Resource,
		event.Action,
		event.Success,
		event.ErrorMsg,
		metadataJSON,
		event.RequestID,
		event.Duration,
	)
	if err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.EventType)).
			Msg("Failed to persist audit event to database")
		return fmt.Errorf("failed to persist audit event: %w", err)
	}

	return nil
}

// QueryFilters defines filters for querying audit events
type QueryFilters struct {
	EventType EventType
	UserID    string
	StartTime time.Time
	EndTime   time.Time
	Success   *bool
	Limit     int
}

// Query retrieves audit events based on filters, newest first
func (l *Logger) Query(ctx context.Context, filters *QueryFilters) ([]Event, error) {
	if l.db == nil {
		return nil, nil
	}

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filters.EventType != "" {
		add("event_type = $%d", string(filters.EventType))
	}
	if filters.UserID != "" {
		add("user_id = $%d", filters.UserID)
	}
	if !filters.StartTime.IsZero() {
		add("timestamp >= $%d", filters.StartTime)
	}
	if !filters.EndTime.IsZero() {
		add("timestamp <= $%d", filters.EndTime)
	}
	if filters.Success != nil {
		add("success = $%d", *filters.Success)
	}

	query := `
		SELECT
			id, timestamp, event_type, severity, user_id, ip_address,
			user_agent, resource, action, success, error_message,
			metadata, request_id, duration_ms
		FROM audit_logs`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\t\tORDER BY timestamp DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf("\n\t\tLIMIT $%d", len(args))
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			event        Event
			eventType    string
			severity     string
			metadataJSON []byte
		)

		if err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&eventType,
			&severity,
			&event.UserID,
			&event.IPAddress,
			&event.UserAgent,
			&event.Resource,
			&event.Action,
			&event.Success,
			&event.ErrorMsg,
			&metadataJSON,
			&event.RequestID,
			&event.Duration,
		); err != nil {
			return nil, err
		}
		event.EventType = EventType(eventType)
		event.Severity = Severity(severity)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				log.Warn().Err(err).Msg("Failed to unmarshal audit event metadata")
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

// LogIntervention records an intervention decision shown to a user
func (l *Logger) LogIntervention(ctx context.Context, userID, interventionID, severity, contextURL string, delayMinutes int) error {
	auditSeverity := SeverityInfo
	if severity == "high" {
		auditSeverity = SeverityWarning
	}

	return l.Log(ctx, &Event{
		EventType: EventTypeInterventionTriggered,
		Severity:  auditSeverity,
		UserID:    userID,
		Resource:  interventionID,
		Action:    "Intervention shown",
		Success:   true,
		Metadata: map[string]any{
			"severity":      severity,
			"context_url":   contextURL,
			"delay_minutes": delayMinutes,
		},
	})
}

// LogOutcome records the user's response to an intervention
func (l *Logger) LogOutcome(ctx context.Context, userID, interventionID, action, effectiveness string, success bool, errorMsg string) error {
	severity := SeverityInfo
	if !success {
		severity = SeverityWarning
	}

	return l.Log(ctx, &Event{
		EventType: EventTypeInterventionOutcome,
		Severity:  severity,
		UserID:    userID,
		Resource:  interventionID,
		Action:    "Intervention outcome recorded",
		Success:   success,
		ErrorMsg:  errorMsg,
		Metadata: map[string]any{
			"user_action":   action,
			"effectiveness": effectiveness,
		},
	})
}

// LogSecurityEvent logs a security-related event (rate limit, invalid input)
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType EventType, userID, ipAddress, resource, action string, metadata map[string]any) error {
	return l.Log(ctx, &Event{
		EventType: eventType,
		Severity:  SeverityWarning,
		UserID:    userID,
		IPAddress: ipAddress,
		Resource:  resource,
		Action:    action,
		Success:   false,
		Metadata:  metadata,
	})
}
