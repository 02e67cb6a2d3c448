package advisor

import (
	"github.com/shopspring/decimal"

	"github.com/finsphere/finsphere/internal/profile"
)

var (
	sipSurplusShare   = decimal.RequireFromString("0.8")
	sipBuildingFactor = decimal.RequireFromString("0.6")
	sipMinimum        = decimal.NewFromInt(1000)
	sipMaximum        = decimal.NewFromInt(25000)
)

// targetEmergencyMonths is the cushion below which part of the surplus is
// held back for the emergency fund
const targetEmergencyMonths = 6

// MonthlySIP returns the suggested systematic investment, in whole rupees:
// 80% of surplus, cut to 60% of that while the emergency fund is under six
// months, bounded to [1000, 25000].
func MonthlySIP(p profile.UserProfile) decimal.Decimal {
	amount := decimal.NewFromFloat(p.MonthlySurplus).Mul(sipSurplusShare)
	if p.EmergencyFundMonths < targetEmergencyMonths {
		amount = amount.Mul(sipBuildingFactor)
	}
	amount = decimal.Min(decimal.Max(amount, sipMinimum), sipMaximum)
	return amount.Round(0)
}
