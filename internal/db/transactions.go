package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finsphere/finsphere/internal/profile"
)

// InsertTransaction stores one purchase, assigning an ID and timestamp if unset
func (db *DB) InsertTransaction(ctx context.Context, t *profile.Transaction) error {
	defer observe("insert_transaction", time.Now())

	query := `
		INSERT INTO transactions (id, user_id, amount, category, merchant, stress_at_time, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = db.now()
	}

	_, err := db.pool.Exec(ctx, query, t.ID, t.UserID, t.Amount, t.Category, t.Merchant, t.StressAtTime, t.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// RecentTransactions returns the user's purchases since the given time, oldest first
func (db *DB) RecentTransactions(ctx context.Context, userID string, since time.Time) ([]profile.Transaction, error) {
	defer observe("recent_transactions", time.Now())

	query := `
		SELECT id::text, user_id, amount, category, merchant, stress_at_time, occurred_at
		FROM transactions
		WHERE user_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at ASC
	`

	rows, err := db.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []profile.Transaction
	for rows.Next() {
		var t profile.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Category, &t.Merchant, &t.StressAtTime, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
