package db

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/finsphere/finsphere/internal/profile"
)

// MaxInterventionHistory bounds how many past interventions are loaded per user
const MaxInterventionHistory = 200

// InsertIntervention stores a delivered intervention. The outcome starts as unknown.
func (db *DB) InsertIntervention(ctx context.Context, r *profile.InterventionRecord) error {
	defer observe("insert_intervention", time.Now())

	query := `
		INSERT INTO interventions (
			id, user_id, severity, context_url, message, delay_minutes,
			user_action, effectiveness, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = db.now()
	}
	if r.UserAction == "" {
		r.UserAction = profile.ActionUnknown
	}
	if r.Effectiveness == "" {
		r.Effectiveness = profile.EffectivenessUnknown
	}

	_, err := db.pool.Exec(ctx, query,
		r.ID,
		r.UserID,
		r.Severity,
		r.ContextURL,
		r.Message,
		r.DelayMinutes,
		r.UserAction,
		r.Effectiveness,
		r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert intervention: %w", err)
	}
	return nil
}

// RecordOutcome stores how the user responded to an intervention.
// Returns ErrNotFound when the intervention does not belong to the user.
func (db *DB) RecordOutcome(ctx context.Context, userID, interventionID, action, effectiveness string) error {
	defer observe("record_outcome", time.Now())

	query := `
		UPDATE interventions
		SET user_action = $3, effectiveness = $4
		WHERE id = $1 AND user_id = $2
	`

	tag, err := db.pool.Exec(ctx, query, interventionID, userID, action, effectiveness)
	if err != nil {
		return fmt.Errorf("failed to record intervention outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("intervention %s: %w", interventionID, ErrNotFound)
	}
	return nil
}

// ListInterventions returns the user's newest interventions, at most limit,
// ordered oldest first
func (db *DB) ListInterventions(ctx context.Context, userID string, limit int) ([]profile.InterventionRecord, error) {
	defer observe("list_interventions", time.Now())

	if limit <= 0 || limit > MaxInterventionHistory {
		limit = MaxInterventionHistory
	}

	query := `
		SELECT id::text, user_id, severity, context_url, message, delay_minutes,
		       user_action, effectiveness, created_at
		FROM interventions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interventions: %w", err)
	}
	defer rows.Close()

	var records []profile.InterventionRecord
	for rows.Next() {
		var r profile.InterventionRecord
		if err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.Severity,
			&r.ContextURL,
			&r.Message,
			&r.DelayMinutes,
			&r.UserAction,
			&r.Effectiveness,
			&r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intervention: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(records)
	return records, nil
}
