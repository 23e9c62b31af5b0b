/*
limits.go - Period-limit enforcer

PURPOSE:
  Several additions carry a legal monthly maximum (specialist support 4
  days, agency cooperation once, ...). The enforcer clamps each enabled
  selection's requested occurrence count to its effective cap: the
  config override table takes priority over the addition's own
  MaxPerMonth.

PROPERTIES:
  - Never increases a requested count
  - Clamped output is always <= the applicable cap
  - Uncapped selections pass through unchanged
*/
package engine

import (
	"fmt"

	"github.com/careflow/billing-engine/catalog"
)

// ApplyMonthlyLimits clamps enabled selections to their monthly caps.
// A selection's requested count is its custom override, or else the
// number of business days in the billing period. Each clamp emits one
// over_limit warning (severity info).
func ApplyMonthlyLimits(selections []catalog.AdditionSelection, additions []catalog.Addition, cfg *catalog.RuleConfig, businessDays int) ([]catalog.AdditionSelection, []Warning) {
	additionByCode := make(map[string]catalog.Addition, len(additions))
	for _, a := range additions {
		additionByCode[a.Code] = a
	}

	var warnings []Warning
	limited := make([]catalog.AdditionSelection, len(selections))
	for i, sel := range selections {
		limited[i] = sel
		if !sel.Enabled {
			continue
		}
		addition, ok := additionByCode[sel.Code]
		if !ok {
			continue
		}
		limit, capped := cfg.MonthlyLimitFor(addition)
		if !capped {
			continue
		}

		requested := sel.CustomOccurrences
		if requested == 0 {
			requested = businessDays
		}
		if requested <= limit {
			continue
		}

		limited[i].CustomOccurrences = limit
		warnings = append(warnings, Warning{
			Type:         WarnOverLimit,
			AdditionCode: sel.Code,
			AdditionName: displayName(addition, sel.Code),
			Message: fmt.Sprintf("%s is limited to %d/month (requested %d, clamped to %d)",
				displayName(addition, sel.Code), limit, requested, limit),
			Severity: SeverityInfo,
		})
	}

	return limited, warnings
}
