// Package market supplies point-in-time market snapshots and classifies
// the prevailing regime.
package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/finsphere/finsphere/internal/validation"
)

// ErrInvalidMarketData reports a malformed or incomplete snapshot
var ErrInvalidMarketData = errors.New("invalid market data")

// Condition is the coarse market regime
type Condition string

const (
	Bull     Condition = "bull"
	Bear     Condition = "bear"
	Sideways Condition = "sideways"
	Volatile Condition = "volatile"
)

// Classification thresholds
const (
	VolatileVIX    = 25.0
	BullNiftyMove  = 1.5
	BearNiftyMove  = -1.5
	FallbackSource = "default"
)

// Classify derives the regime from the Nifty move and VIX. Volatility
// takes priority over direction.
func Classify(niftyChange, vixLevel float64) Condition {
	switch {
	case vixLevel > VolatileVIX:
		return Volatile
	case niftyChange > BullNiftyMove:
		return Bull
	case niftyChange < BearNiftyMove:
		return Bear
	default:
		return Sideways
	}
}

// Snapshot is an immutable point-in-time market record. The condition is
// derived at construction and cannot be set independently.
type Snapshot struct {
	Timestamp         time.Time
	NiftyChange       float64
	SensexChange      float64
	VIXLevel          float64
	GoldPrice         float64
	USDINR            float64
	BondYield10Y      float64
	SectorPerformance map[string]float64
	// Source records where the snapshot came from (live, cache,
	// last_known_good, default)
	Source string

	condition Condition
}

// Quote carries the raw readings used to build a Snapshot
type Quote struct {
	Timestamp         time.Time
	NiftyChange       float64
	SensexChange      float64
	VIXLevel          float64
	GoldPrice         float64
	USDINR            float64
	BondYield10Y      float64
	SectorPerformance map[string]float64
}

// NewSnapshot validates the quote and classifies it once
func NewSnapshot(q Quote) (Snapshot, error) {
	s := Snapshot{
		Timestamp:         q.Timestamp,
		NiftyChange:       q.NiftyChange,
		SensexChange:      q.SensexChange,
		VIXLevel:          q.VIXLevel,
		GoldPrice:         q.GoldPrice,
		USDINR:            q.USDINR,
		BondYield10Y:      q.BondYield10Y,
		SectorPerformance: copySectors(q.SectorPerformance),
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	s.condition = Classify(s.NiftyChange, s.VIXLevel)
	return s, nil
}

// Default is the documented fallback used when no live data is available
func Default(now time.Time) Snapshot {
	s, _ := NewSnapshot(Quote{
		Timestamp:    now,
		NiftyChange:  0.5,
		SensexChange: 0.4,
		VIXLevel:     18.0,
		GoldPrice:    65000,
		USDINR:       83.2,
		BondYield10Y: 7.1,
		SectorPerformance: map[string]float64{
			"IT":      0.5,
			"Banking": 0.3,
			"Pharma":  -0.2,
		},
	})
	s.Source = FallbackSource
	return s
}

// Condition returns the regime derived at construction
func (s Snapshot) Condition() Condition {
	if s.condition == "" {
		return Classify(s.NiftyChange, s.VIXLevel)
	}
	return s.condition
}

// Validate checks required fields are present and finite.
// The returned error wraps ErrInvalidMarketData.
func (s Snapshot) Validate() error {
	v := validation.NewValidator()

	v.Finite("nifty_change", s.NiftyChange)
	v.Finite("sensex_change", s.SensexChange)
	v.NonNegative("vix_level", s.VIXLevel)
	v.NonNegative("gold_price", s.GoldPrice)
	v.Positive("usd_inr", s.USDINR)
	v.Finite("bond_yield_10y", s.BondYield10Y)
	for _, name := range s.Sectors() {
		v.Finite("sector_performance."+name, s.SectorPerformance[name])
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMarketData, err)
	}
	return nil
}

// Sectors returns sector names in sorted order
func (s Snapshot) Sectors() []string {
	names := make([]string, 0, len(s.SectorPerformance))
	for name := range s.SectorPerformance {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithSource returns a copy tagged with a different source
func (s Snapshot) WithSource(source string) Snapshot {
	s.Source = source
	s.SectorPerformance = copySectors(s.SectorPerformance)
	return s
}

type snapshotJSON struct {
	Timestamp         time.Time          `json:"timestamp"`
	NiftyChange       float64            `json:"nifty_change"`
	SensexChange      float64            `json:"sensex_change"`
	VIXLevel          float64            `json:"vix_level"`
	GoldPrice         float64            `json:"gold_price"`
	USDINR            float64            `json:"usd_inr"`
	BondYield10Y      float64            `json:"bond_yield_10y"`
	MarketCondition   Condition          `json:"market_condition"`
	SectorPerformance map[string]float64 `json:"sector_performance"`
	Source            string             `json:"source,omitempty"`
}

// MarshalJSON includes the derived condition
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Timestamp:         s.Timestamp,
		NiftyChange:       s.NiftyChange,
		SensexChange:      s.SensexChange,
		VIXLevel:          s.VIXLevel,
		GoldPrice:         s.GoldPrice,
		USDINR:            s.USDINR,
		BondYield10Y:      s.BondYield10Y,
		MarketCondition:   s.Condition(),
		SectorPerformance: s.SectorPerformance,
		Source:            s.Source,
	})
}

// UnmarshalJSON ignores any serialized condition and reclassifies
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	snap, err := NewSnapshot(Quote{
		Timestamp:         raw.Timestamp,
		NiftyChange:       raw.NiftyChange,
		SensexChange:      raw.SensexChange,
		VIXLevel:          raw.VIXLevel,
		GoldPrice:         raw.GoldPrice,
		USDINR:            raw.USDINR,
		BondYield10Y:      raw.BondYield10Y,
		SectorPerformance: raw.SectorPerformance,
	})
	if err != nil {
		return err
	}
	snap.Source = raw.Source
	*s = snap
	return nil
}

func copySectors(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// round2 rounds to two decimals for display
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
