package advisor

import (
	"fmt"
	"math"

	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/market"
)

// Alternative is another portfolio the user could consider
type Alternative struct {
	Name           string                `json:"name"`
	Allocation     allocation.Allocation `json:"allocation"`
	Description    string                `json:"description"`
	ExpectedReturn string                `json:"expected_return"`
}

// defensiveVIX adds the defensive alternative above this volatility
const defensiveVIX = 20

// Alternatives lists fixed alternative strategies, plus a defensive one in
// volatile markets
func Alternatives(snap market.Snapshot) []Alternative {
	alts := []Alternative{
		{
			Name:           "Conservative Approach",
			Allocation:     allocation.New(0.3, 0.5, 0.2, 0),
			Description:    "Lower risk, stable returns, suitable for risk-averse investors",
			ExpectedReturn: "8-10% annually",
		},
		{
			Name:           "Growth Focused",
			Allocation:     allocation.New(0.8, 0.1, 0.1, 0),
			Description:    "Higher risk, higher potential returns, suitable for young investors",
			ExpectedReturn: "12-15% annually",
		},
	}

	if snap.VIXLevel > defensiveVIX {
		alts = append(alts, Alternative{
			Name:           "Market Defensive",
			Allocation:     allocation.New(0.4, 0.4, 0.15, 0.05),
			Description:    "Defensive allocation for volatile market conditions",
			ExpectedReturn: "9-11% annually",
		})
	}
	return alts
}

// MarketContext is a one-line description of the snapshot
func MarketContext(snap market.Snapshot) string {
	direction := "down"
	if snap.NiftyChange > 0 {
		direction = "up"
	}

	vol := "low"
	switch {
	case snap.VIXLevel > 25:
		vol = "high"
	case snap.VIXLevel > 18:
		vol = "moderate"
	}

	yields := "moderate"
	if snap.BondYield10Y > HighYieldThreshold {
		yields = "elevated"
	}

	return fmt.Sprintf("Market: Nifty 50 %s %.1f%%, volatility %s (VIX: %.1f), bond yields %s (%.1f%%). Condition: %s.",
		direction, math.Abs(snap.NiftyChange), vol, snap.VIXLevel, yields, snap.BondYield10Y, snap.Condition())
}
