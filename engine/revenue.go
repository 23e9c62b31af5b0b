/*
revenue.go - Revenue/unit calculator

PURPOSE:
  Combines a base service reward, fixed-unit additions, and at most one
  percentage-based addition into daily and monthly unit totals for
  what-if revenue projections.

PIPELINE:
  1. Resolve exclusivity groups
  2. Apply monthly occurrence caps
  3. Check eligibility requirements
  4. Generate suggestions
  5. Accumulate units; the percentage addition is computed last, over the
     running subtotal (base + all fixed-unit contributions)

PROPERTIES:
  - Pure and deterministic: identical inputs (including selection order)
    produce identical totals and breakdown ordering
  - Percentage additions contribute to the monthly total only, never to
    the illustrative daily rate
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/careflow/billing-engine/catalog"
)

var oneHundred = decimal.NewFromInt(100)

// Input carries everything one calculation run needs. Versions may be
// empty, in which case the base catalog fields apply.
type Input struct {
	Selections   []catalog.AdditionSelection
	Additions    []catalog.Addition
	Versions     []catalog.AdditionVersion
	Staff        []Staff
	Children     []Child
	BaseUnits    int
	BusinessDays int
	UnitPrice    decimal.Decimal
	Config       *catalog.RuleConfig
}

// Calculate runs the full what-if projection against the catalog
// snapshot as given.
func Calculate(in Input) CalculationResult {
	cfg := in.Config
	if cfg == nil {
		cfg = catalog.DefaultRuleConfig()
	}

	resolved, conflicts := ResolveExclusiveGroups(in.Selections, in.Additions, cfg)
	limited, limitWarnings := ApplyMonthlyLimits(resolved, in.Additions, cfg, in.BusinessDays)
	requirementWarnings := CheckRequirements(limited, in.Additions, in.Staff, in.Children, cfg)
	suggestions := GenerateSuggestions(in.Staff, limited, in.Additions, cfg)

	additionByCode := make(map[string]catalog.Addition, len(in.Additions))
	for _, a := range in.Additions {
		additionByCode[a.Code] = a
	}
	hardFailures := make(map[string]bool)
	for _, w := range requirementWarnings {
		if w.Severity == SeverityError {
			hardFailures[w.AdditionCode] = true
		}
	}
	demoted := make(map[string]bool)
	for _, w := range conflicts {
		demoted[w.AdditionCode] = true
	}

	totalPerDay := in.BaseUnits
	totalPerMonth := in.BaseUnits * in.BusinessDays
	// Running subtotal the percentage addition is computed over.
	treatmentBase := totalPerMonth

	breakdown := make([]Breakdown, 0, len(limited))
	for _, sel := range limited {
		addition, ok := additionByCode[sel.Code]
		if !ok {
			continue
		}

		status, reason := lineStatus(sel, demoted[sel.Code], hardFailures[sel.Code], in.BusinessDays)

		if addition.IsPercentage {
			rate := decimal.Zero
			if addition.PercentageRate != nil {
				rate = *addition.PercentageRate
			}
			// Computed after the fixed-unit pass, over the full subtotal.
			breakdown = append(breakdown, Breakdown{
				Code:           addition.Code,
				Name:           displayName(addition, sel.Code),
				Occurrences:    in.BusinessDays,
				IsPercentage:   true,
				PercentageRate: rate,
				Status:         status,
				StatusReason:   reason,
			})
			continue
		}

		unitsPerDay := addition.Units()
		occurrences := sel.CustomOccurrences
		if occurrences == 0 {
			occurrences = in.BusinessDays
		}
		totalUnits := 0
		if status == LineActive || status == LineLimited {
			totalUnits = unitsPerDay * occurrences
			totalPerMonth += totalUnits
			treatmentBase += totalUnits
			if occurrences == in.BusinessDays {
				totalPerDay += unitsPerDay
			}
		}

		breakdown = append(breakdown, Breakdown{
			Code:         addition.Code,
			Name:         displayName(addition, sel.Code),
			UnitsPerDay:  unitsPerDay,
			Occurrences:  occurrences,
			TotalUnits:   totalUnits,
			Status:       status,
			StatusReason: reason,
		})
	}

	// At most one percentage addition survives exclusivity resolution.
	for i := range breakdown {
		b := &breakdown[i]
		if !b.IsPercentage || b.Status != LineActive || b.PercentageRate.IsZero() {
			continue
		}
		b.TotalUnits = int(decimal.NewFromInt(int64(treatmentBase)).
			Mul(b.PercentageRate).Div(oneHundred).Floor().IntPart())
		totalPerMonth += b.TotalUnits
	}

	warnings := make([]Warning, 0, len(conflicts)+len(limitWarnings)+len(requirementWarnings))
	warnings = append(warnings, conflicts...)
	warnings = append(warnings, limitWarnings...)
	warnings = append(warnings, requirementWarnings...)

	return CalculationResult{
		TotalUnitsPerDay:       totalPerDay,
		TotalUnitsPerMonth:     totalPerMonth,
		EstimatedMonthlyAmount: decimal.NewFromInt(int64(totalPerMonth)).Mul(in.UnitPrice).Floor().IntPart(),
		Breakdown:              breakdown,
		Warnings:               warnings,
		Suggestions:            suggestions,
	}
}

// CalculateForMonth resolves the catalog snapshot as of the first day of
// the target month, then runs the projection with those versioned values.
func CalculateForMonth(in Input, year int, month time.Month) CalculationResult {
	target := catalog.MonthStart(year, month)
	in.Additions = catalog.MergeWithVersions(in.Additions, in.Versions, target)
	return Calculate(in)
}

func lineStatus(sel catalog.AdditionSelection, demoted, hardFailure bool, businessDays int) (LineStatus, string) {
	switch {
	case !sel.Enabled && demoted:
		return LineExcluded, "excluded by exclusivity resolution"
	case !sel.Enabled:
		return LineInvalid, "disabled"
	case hardFailure:
		return LineInvalid, "requirements not met"
	case sel.CustomOccurrences > 0 && sel.CustomOccurrences < businessDays:
		return LineLimited, fmt.Sprintf("limited to %d/month", sel.CustomOccurrences)
	default:
		return LineActive, ""
	}
}
