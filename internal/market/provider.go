package market

import (
	"context"
	"errors"
)

// ErrFetchFailed reports that the upstream market feed could not be read.
// It never reaches the risk core; callers fall back to a cached snapshot.
var ErrFetchFailed = errors.New("market data fetch failed")

// Snapshot sources
const (
	SourceLive          = "live"
	SourceCache         = "cache"
	SourceLastKnownGood = "last_known_good"
)

// Provider supplies market snapshots
type Provider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) (Snapshot, error)

// Snapshot calls f
func (f ProviderFunc) Snapshot(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}
