package market

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var simulatedSectors = []string{"IT", "Banking", "Pharma", "Auto", "FMCG", "Metals", "Energy", "Realty"}

// SimulatedProvider generates plausible Indian market readings. It stands in
// for a licensed NSE/BSE feed.
type SimulatedProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulatedProvider creates a provider with a deterministic seed
func NewSimulatedProvider(seed uint64) *SimulatedProvider {
	return &SimulatedProvider{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

// Snapshot returns a freshly simulated snapshot
func (p *SimulatedProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	p.mu.Lock()
	q := Quote{
		Timestamp:         p.now().UTC(),
		NiftyChange:       round2(p.uniform(-2.5, 2.5)),
		SensexChange:      round2(p.uniform(-2.5, 2.5)),
		VIXLevel:          round2(p.uniform(12, 35)),
		GoldPrice:         round2(p.uniform(62000, 68000)),
		USDINR:            round2(p.uniform(82.5, 84.5)),
		BondYield10Y:      round2(p.uniform(6.8, 7.5)),
		SectorPerformance: make(map[string]float64, len(simulatedSectors)),
	}
	for _, sector := range simulatedSectors {
		q.SectorPerformance[sector] = round2(p.uniform(-3, 3))
	}
	p.mu.Unlock()

	snap, err := NewSnapshot(q)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Source = SourceLive

	log.Debug().
		Float64("nifty_change", snap.NiftyChange).
		Float64("vix", snap.VIXLevel).
		Str("condition", string(snap.Condition())).
		Msg("Simulated market snapshot")

	return snap, nil
}

func (p *SimulatedProvider) uniform(lo, hi float64) float64 {
	return lo + p.rng.Float64()*(hi-lo)
}
