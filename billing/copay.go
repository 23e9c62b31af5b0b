/*
copay.go - Statutory copay/insurance split

PURPOSE:
  The guardian pays 10% of the total billed amount, capped by a monthly
  ceiling determined by the household's income category; insurance funds
  the remainder. An unrecognized income category falls back to the
  least-favorable (general) ceiling rather than silently charging zero.
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// Income categories for the four-tier ceiling table.
const (
	IncomeGeneral    = "general"     // household income above 8.9M yen
	IncomeGeneralLow = "general_low" // household income up to 8.9M yen
	IncomeLow        = "low_income"
	IncomeWelfare    = "welfare" // public-assistance households
)

// GeneralCeiling is the least-favorable monthly copay ceiling in yen.
const GeneralCeiling = 37200

// CopayTable maps income categories to monthly copay ceilings in yen.
type CopayTable map[string]int64

// DefaultCopayTable returns the statutory four-tier table.
func DefaultCopayTable() CopayTable {
	return CopayTable{
		IncomeGeneral:    GeneralCeiling,
		IncomeGeneralLow: 4600,
		IncomeLow:        0,
		IncomeWelfare:    0,
	}
}

// CeilingFor returns the monthly ceiling for an income category. Unknown
// or empty categories fall back to the general tier; known reports
// whether the category was recognized so callers can surface the
// fallback loudly.
func (t CopayTable) CeilingFor(category string) (ceiling int64, known bool) {
	if c, ok := t[category]; ok {
		return c, true
	}
	return GeneralCeiling, false
}

var tenPercent = decimal.NewFromFloat(0.10)

// Copay computes the guardian's share: floor(totalAmount * 0.10), capped
// at the ceiling. A zero ceiling means the household pays nothing.
func Copay(totalAmount, ceiling int64) int64 {
	if ceiling <= 0 {
		return 0
	}
	share := decimal.NewFromInt(totalAmount).Mul(tenPercent).Floor().IntPart()
	if share > ceiling {
		return ceiling
	}
	return share
}

// Split divides a total amount into copay and insurance portions. The
// two always sum back to the total.
func Split(totalAmount, ceiling int64) (copay, insurance int64) {
	copay = Copay(totalAmount, ceiling)
	return copay, totalAmount - copay
}

// =============================================================================
// REGION-GRADE UNIT PRICES
// =============================================================================

// DefaultUnitPrice is the yen value of one unit outside graded regions.
var DefaultUnitPrice = decimal.NewFromInt(10)

// regionUnitRates maps region grades (1-8) to yen per unit.
var regionUnitRates = map[int]decimal.Decimal{
	1: decimal.NewFromFloat(11.12),
	2: decimal.NewFromFloat(10.88),
	3: decimal.NewFromFloat(10.70),
	4: decimal.NewFromFloat(10.52),
	5: decimal.NewFromFloat(10.28),
	6: decimal.NewFromFloat(10.10),
	7: decimal.NewFromFloat(10.00),
	8: decimal.NewFromFloat(10.00),
}

// UnitPriceForRegion returns the yen-per-unit rate for a facility's
// region grade, or the default rate for unknown grades.
func UnitPriceForRegion(grade int) decimal.Decimal {
	if rate, ok := regionUnitRates[grade]; ok {
		return rate
	}
	return DefaultUnitPrice
}
