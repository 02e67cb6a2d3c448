package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finsphere/finsphere/internal/advisor"
	"github.com/finsphere/finsphere/internal/risk"
)

// ErrIncompleteAssessment is returned for an assessment without risk metrics
var ErrIncompleteAssessment = errors.New("assessment has no risk metrics")

// EvaluationRecord is one persisted risk evaluation. Events keep the exact
// trigger conditions that fired each rule.
type EvaluationRecord struct {
	ID                   uuid.UUID                 `json:"id"`
	UserID               string                    `json:"user_id"`
	OverallRiskScore     float64                   `json:"overall_risk_score"`
	ConfidenceAdjustment float64                   `json:"confidence_adjustment"`
	CategoryRisks        map[risk.Category]float64 `json:"category_risks"`
	Events               []risk.Event              `json:"events"`
	Allocation           map[string]float64        `json:"allocation"`
	Market               json.RawMessage           `json:"market"`
	Summary              string                    `json:"summary"`
	EvaluatedAt          time.Time                 `json:"evaluated_at"`
}

var _ advisor.EvaluationRecorder = (*Logger)(nil)

// RecordEvaluation persists a risk evaluation and logs a RISK_EVALUATED event
func (l *Logger) RecordEvaluation(ctx context.Context, a *advisor.Assessment) error {
	if !l.enabled {
		return nil
	}
	if a == nil || a.Metrics == nil {
		return ErrIncompleteAssessment
	}

	id := uuid.New()
	evaluatedAt := a.EvaluatedAt
	if evaluatedAt.IsZero() {
		evaluatedAt = l.now()
	}

	if l.db != nil {
		if err := l.persistEvaluation(ctx, id, evaluatedAt, a); err != nil {
			_ = l.Log(ctx, &Event{
				EventType: EventTypeRiskEvaluated,
				Severity:  SeverityError,
				UserID:    a.UserID,
				Resource:  id.String(),
				Action:    "Risk evaluation",
				Success:   false,
				ErrorMsg:  err.Error(),
				Metadata:  map[string]any{"overall_risk_score": a.Metrics.OverallRiskScore},
			})
			return err
		}
	}

	return l.Log(ctx, &Event{
		EventType: EventTypeRiskEvaluated,
		Severity:  evaluationSeverity(a.Metrics),
		UserID:    a.UserID,
		Resource:  id.String(),
		Action:    "Risk evaluation",
		Success:   true,
		Metadata: map[string]any{
			"overall_risk_score": a.Metrics.OverallRiskScore,
			"active_events":      len(a.Metrics.ActiveRiskEvents),
			"market_source":      a.Market.Source,
		},
	})
}

func (l *Logger) persistEvaluation(ctx context.Context, id uuid.UUID, evaluatedAt time.Time, a *advisor.Assessment) error {
	query := `
		INSERT INTO risk_evaluations (
			id, user_id, overall_risk_score, confidence_adjustment,
			category_risks, events, allocation, market, summary, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	m := a.Metrics
	categoryJSON, err := json.Marshal(m.CategoryRisks)
	if err != nil {
		return fmt.Errorf("failed to marshal category risks: %w", err)
	}
	events := m.ActiveRiskEvents
	if events == nil {
		events = []risk.Event{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal risk events: %w", err)
	}
	allocationJSON, err := json.Marshal(m.RiskAdjustedAllocation)
	if err != nil {
		return fmt.Errorf("failed to marshal allocation: %w", err)
	}
	marketJSON, err := json.Marshal(a.Market)
	if err != nil {
		return fmt.Errorf("failed to marshal market snapshot: %w", err)
	}

	if _, err := l.db.Exec(ctx, query,
		id,
		a.UserID,
		m.OverallRiskScore,
		m.ConfidenceAdjustment,
		categoryJSON,
		eventsJSON,
		allocationJSON,
		marketJSON,
		a.Summary,
		evaluatedAt,
	); err != nil {
		return fmt.Errorf("failed to persist risk evaluation: %w", err)
	}
	return nil
}

// Evaluations returns the user's newest risk evaluations, at most limit
func (l *Logger) Evaluations(ctx context.Context, userID string, limit int) ([]EvaluationRecord, error) {
	if l.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, overall_risk_score, confidence_adjustment,
		       category_risks, events, allocation, market, summary, evaluated_at
		FROM risk_evaluations
		WHERE user_id = $1
		ORDER BY evaluated_at DESC
		LIMIT $2
	`

	rows, err := l.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk evaluations: %w", err)
	}
	defer rows.Close()

	records := []EvaluationRecord{}
	for rows.Next() {
		var (
			r              EvaluationRecord
			categoryJSON   []byte
			eventsJSON     []byte
			allocationJSON []byte
			marketJSON     []byte
		)
		if err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.OverallRiskScore,
			&r.ConfidenceAdjustment,
			&categoryJSON,
			&eventsJSON,
			&allocationJSON,
			&marketJSON,
			&r.Summary,
			&r.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan risk evaluation: %w", err)
		}
		if err := json.Unmarshal(categoryJSON, &r.CategoryRisks); err != nil {
			return nil, fmt.Errorf("failed to decode category risks: %w", err)
		}
		if err := json.Unmarshal(eventsJSON, &r.Events); err != nil {
			return nil, fmt.Errorf("failed to decode risk events: %w", err)
		}
		if err := json.Unmarshal(allocationJSON, &r.Allocation); err != nil {
			return nil, fmt.Errorf("failed to decode allocation: %w", err)
		}
		r.Market = marketJSON
		records = append(records, r)
	}

	return records, rows.Err()
}

func evaluationSeverity(m *risk.Metrics) Severity {
	switch {
	case m.OverallRiskScore > 8:
		return SeverityCritical
	case m.OverallRiskScore > 6:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
