package advisor

import (
	"math"

	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/profile"
	"github.com/finsphere/finsphere/internal/risk"
)

const (
	baseConfidence = 0.8
	minConfidence  = 0.5
	maxConfidence  = 0.95
)

// Confidence scores how much the recommendation should be trusted before
// the risk engine's adjustment multiplier is applied
func Confidence(p profile.UserProfile, snap market.Snapshot, events []risk.Event) float64 {
	c := baseConfidence
	if snap.VIXLevel > 25 {
		c -= 0.1
	}
	if p.BehavioralScore > 0.7 {
		c -= 0.1
	}
	if len(events) >= 2 {
		c += 0.05
	}
	if p.EmergencyFundMonths < 2 {
		c -= 0.15
	}
	return math.Max(minConfidence, math.Min(maxConfidence, c))
}
