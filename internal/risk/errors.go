package risk

import (
	"errors"

	"github.com/finsphere/finsphere/internal/allocation"
	"github.com/finsphere/finsphere/internal/market"
	"github.com/finsphere/finsphere/internal/profile"
)

// Failure kinds surfaced by the risk core. Callers match with errors.Is.
var (
	ErrInvalidProfile       = profile.ErrInvalidProfile
	ErrInvalidMarketData    = market.ErrInvalidMarketData
	ErrAllocationDegenerate = allocation.ErrDegenerate

	// ErrUnknownRiskCategory and ErrUnknownAction mean a rule references an
	// adjustment the adjuster does not implement. Skipping it silently
	// would under-protect the portfolio.
	ErrUnknownRiskCategory = errors.New("unknown risk category")
	ErrUnknownAction       = errors.New("unknown risk action")
)

// IsInputError reports whether err was caused by bad caller input rather
// than a defect in the rule catalog
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidProfile) || errors.Is(err, ErrInvalidMarketData)
}
