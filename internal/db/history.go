package db

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finsphere/finsphere/internal/profile"
)

// HistoryWindow is how far back transactions and biometrics are loaded
const HistoryWindow = 90 * 24 * time.Hour

// LoadHistory gathers everything the profile builder and intervention engine
// need for one user. A user without a stored record has nil financials.
func (db *DB) LoadHistory(ctx context.Context, userID string) (profile.History, error) {
	return guarded(db, func() (profile.History, error) {
		return db.loadHistory(ctx, userID)
	})
}

func (db *DB) loadHistory(ctx context.Context, userID string) (profile.History, error) {
	since := db.now().Add(-HistoryWindow)

	var h profile.History
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		u, err := db.GetUser(gctx, userID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		h.Financials = u.Financials()
		return nil
	})
	g.Go(func() error {
		txns, err := db.RecentTransactions(gctx, userID, since)
		h.Transactions = txns
		return err
	})
	g.Go(func() error {
		readings, err := db.RecentBiometrics(gctx, userID, since)
		h.Biometrics = readings
		return err
	})
	g.Go(func() error {
		records, err := db.ListInterventions(gctx, userID, MaxInterventionHistory)
		h.Interventions = records
		return err
	})

	if err := g.Wait(); err != nil {
		return profile.History{}, err
	}
	return h, nil
}
