package market

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultRefreshSchedule refreshes the cached snapshot every minute
const DefaultRefreshSchedule = "@every 1m"

// Refresher periodically pulls a fresh snapshot into the cache so request
// paths rarely wait on the upstream feed
type Refresher struct {
	provider *ResilientProvider
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRefresher creates a refresher for the given cron schedule
func NewRefresher(provider *ResilientProvider, schedule string, log zerolog.Logger) *Refresher {
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}
	return &Refresher{
		provider: provider,
		cron:     cron.New(cron.WithSeconds()),
		schedule: schedule,
		timeout:  10 * time.Second,
		log:      log.With().Str("component", "market_refresher").Logger(),
	}
}

// Name identifies the job in logs
func (r *Refresher) Name() string {
	return "market_snapshot_refresh"
}

// Run performs one refresh
func (r *Refresher) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	snap, err := r.provider.Refresh(ctx)
	if err != nil {
		return err
	}

	r.log.Debug().
		Time("snapshot_at", snap.Timestamp).
		Str("condition", string(snap.Condition())).
		Msg("Market snapshot refreshed")
	return nil
}

// Start registers the job, runs it once and starts the scheduler
func (r *Refresher) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.Run(); err != nil {
			r.log.Warn().Err(err).Str("job", r.Name()).Msg("Job failed")
		}
	})
	if err != nil {
		return err
	}

	if err := r.Run(); err != nil {
		r.log.Warn().Err(err).Msg("Initial market refresh failed")
	}

	r.cron.Start()
	r.log.Info().Str("schedule", r.schedule).Msg("Market refresher started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info().Msg("Market refresher stopped")
}
