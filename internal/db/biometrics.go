package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finsphere/finsphere/internal/profile"
)

// InsertBiometric stores one reading, assigning an ID and timestamp if unset
func (db *DB) InsertBiometric(ctx context.Context, r *profile.BiometricReading) error {
	defer observe("insert_biometric", time.Now())

	query := `
		INSERT INTO biometric_readings (id, user_id, heart_rate, hrv, stress_score, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = db.now()
	}

	_, err := db.pool.Exec(ctx, query, r.ID, r.UserID, r.HeartRate, r.HRV, r.StressScore, r.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert biometric reading: %w", err)
	}
	return nil
}

// RecentBiometrics returns the user's readings since the given time, oldest first
func (db *DB) RecentBiometrics(ctx context.Context, userID string, since time.Time) ([]profile.BiometricReading, error) {
	defer observe("recent_biometrics", time.Now())

	query := `
		SELECT id::text, user_id, heart_rate, hrv, stress_score, recorded_at
		FROM biometric_readings
		WHERE user_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`

	rows, err := db.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query biometric readings: %w", err)
	}
	defer rows.Close()

	var readings []profile.BiometricReading
	for rows.Next() {
		r, err := scanBiometric(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan biometric reading: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// LatestBiometric returns the user's newest reading or ErrNotFound
func (db *DB) LatestBiometric(ctx context.Context, userID string) (*profile.BiometricReading, error) {
	defer observe("latest_biometric", time.Now())

	query := `
		SELECT id::text, user_id, heart_rate, hrv, stress_score, recorded_at
		FROM biometric_readings
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	r, err := scanBiometric(db.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("biometrics for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest biometric reading: %w", err)
	}
	return &r, nil
}

func scanBiometric(row pgx.Row) (profile.BiometricReading, error) {
	var r profile.BiometricReading
	err := row.Scan(&r.ID, &r.UserID, &r.HeartRate, &r.HRV, &r.StressScore, &r.Timestamp)
	return r, err
}
