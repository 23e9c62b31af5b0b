package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STAFFING MEASURES - FTE and headcount predicates
// =============================================================================

// standardWeeklyHours is the full-time baseline: 40h/week counts as 1.0.
const standardWeeklyHours = 40

var (
	fullTimeHours = decimal.NewFromInt(standardWeeklyHours)
	decimalOne    = decimal.NewFromInt(1)
)

// FTE computes the aggregate full-time-equivalent of the active staff:
// sum of weekly hours divided by 40. A missing WeeklyHours defaults to
// 40 for full-time and 20 for any other employment type.
func FTE(staff []Staff) decimal.Decimal {
	total := decimal.Zero
	for _, s := range staff {
		if !s.Active {
			continue
		}
		hours := s.WeeklyHours
		if hours == 0 {
			if s.EmploymentType == "fulltime" {
				hours = standardWeeklyHours
			} else {
				hours = standardWeeklyHours / 2
			}
		}
		total = total.Add(decimal.NewFromInt(int64(hours)).Div(fullTimeHours))
	}
	return total
}

// CountQualified counts active staff holding at least one of the given
// qualification codes or names.
func CountQualified(staff []Staff, qualifications []string) int {
	wanted := make(map[string]struct{}, len(qualifications))
	for _, q := range qualifications {
		wanted[q] = struct{}{}
	}

	count := 0
	for _, s := range staff {
		if !s.Active {
			continue
		}
		for _, q := range s.Qualifications {
			if _, ok := wanted[q]; ok {
				count++
				break
			}
		}
	}
	return count
}

// CountExperienced counts active staff with at least minYears of
// experience.
func CountExperienced(staff []Staff, minYears int) int {
	count := 0
	for _, s := range staff {
		if s.Active && s.YearsOfExperience >= minYears {
			count++
		}
	}
	return count
}
