package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/finsphere/finsphere/internal/profile"
)

// User is a registered user with self-declared financials
type User struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	MonthlyIncome   float64         `json:"monthly_income"`
	MonthlyExpenses float64         `json:"monthly_expenses"`
	Savings         float64         `json:"savings"`
	Horizon         profile.Horizon `json:"investment_horizon"`
	Goals           []string        `json:"investment_goals"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Financials returns the user's balances in profile form
func (u *User) Financials() *profile.Financials {
	return &profile.Financials{
		MonthlyIncome:   u.MonthlyIncome,
		MonthlyExpenses: u.MonthlyExpenses,
		Savings:         u.Savings,
		Horizon:         u.Horizon,
		Goals:           u.Goals,
	}
}

// UpsertUser creates the user or replaces their profile fields
func (db *DB) UpsertUser(ctx context.Context, u *User) error {
	defer observe("upsert_user", time.Now())

	query := `
		INSERT INTO users (
			id, name, email, monthly_income, monthly_expenses, savings,
			investment_horizon, investment_goals, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			monthly_income = EXCLUDED.monthly_income,
			monthly_expenses = EXCLUDED.monthly_expenses,
			savings = EXCLUDED.savings,
			investment_horizon = EXCLUDED.investment_horizon,
			investment_goals = EXCLUDED.investment_goals,
			updated_at = EXCLUDED.updated_at
	`

	now := db.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := db.pool.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.MonthlyIncome,
		u.MonthlyExpenses,
		u.Savings,
		string(u.Horizon),
		u.Goals,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser returns the user or ErrNotFound
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	defer observe("get_user", time.Now())

	query := `
		SELECT id, name, email, monthly_income, monthly_expenses, savings,
		       investment_horizon, investment_goals, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var u User
	var horizon string
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.MonthlyIncome,
		&u.MonthlyExpenses,
		&u.Savings,
		&horizon,
		&u.Goals,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	u.Horizon = profile.Horizon(horizon)

	return &u, nil
}
