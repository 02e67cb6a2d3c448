package advisor

import (
	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/market"
)

// HighYieldThreshold switches debt picks toward long duration
const HighYieldThreshold = 7.2

// Instrument is a concrete fund suggestion for part of one asset class
type Instrument struct {
	Type       allocation.AssetClass `json:"type"`
	Name       string                `json:"name"`
	Allocation float64               `json:"allocation"`
	Reason     string                `json:"reason"`
}

type pick struct {
	name   string
	share  float64
	reason string
}

// Instruments splits each asset class into specific funds. Equity picks
// depend on the market regime and debt picks on the 10Y yield.
func Instruments(a allocation.Allocation, snap market.Snapshot) []Instrument {
	var out []Instrument
	add := func(class allocation.AssetClass, picks ...pick) {
		if a[class] <= 0 {
			return
		}
		for _, p := range picks {
			out = append(out, Instrument{
				Type:       class,
				Name:       p.name,
				Allocation: a[class] * p.share,
				Reason:     p.reason,
			})
		}
	}

	if snap.Condition() == market.Volatile {
		add(allocation.Equity,
			pick{"Large Cap Index Fund", 0.6, "Stable during volatile markets"},
			pick{"Multi-Cap Fund", 0.4, "Diversified equity exposure"},
		)
	} else {
		add(allocation.Equity,
			pick{"Nifty 50 Index Fund", 0.5, "Low-cost broad market exposure"},
			pick{"Mid & Small Cap Fund", 0.3, "Higher growth potential"},
			pick{"International Fund", 0.2, "Global diversification"},
		)
	}

	if snap.BondYield10Y > HighYieldThreshold {
		add(allocation.Debt,
			pick{"Long Duration Fund", 0.6, "Lock in high yields"},
			pick{"Corporate Bond Fund", 0.3, "Higher yield than government bonds"},
		)
	} else {
		add(allocation.Debt,
			pick{"Short Duration Fund", 0.7, "Lower interest rate risk"},
			pick{"Corporate Bond Fund", 0.3, "Higher yield than government bonds"},
		)
	}

	add(allocation.Liquid, pick{"Liquid Fund", 1, "Emergency fund and short-term goals"})
	add(allocation.Gold, pick{"Gold ETF", 1, "Hedge against inflation and currency"})

	return out
}
