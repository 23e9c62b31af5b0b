/*
suggest.go - Suggestion generator

PURPOSE:
  Inspects staffing composition and proposes additions the facility has
  not enabled but is plausibly eligible for. Suggestions are advisory:
  they never override or mutate the operator's explicit choices.

ESTIMATES:
  Potential units use the configured fixed business-day assumption
  (and the monthly cap where one applies), so the numbers line up with
  what the revenue calculator would produce if the operator enabled the
  addition for a typical month.
*/
package engine

import (
	"fmt"
	"sort"

	"github.com/careflow/billing-engine/catalog"
)

const codeTransport = "transport"

// GenerateSuggestions proposes not-yet-enabled additions based on the
// staffing composition. Output is sorted by priority, then insertion
// order.
func GenerateSuggestions(staff []Staff, selections []catalog.AdditionSelection, additions []catalog.Addition, cfg *catalog.RuleConfig) []Suggestion {
	additionByCode := make(map[string]catalog.Addition, len(additions))
	for _, a := range additions {
		additionByCode[a.Code] = a
	}
	enabled := make(map[string]bool, len(selections))
	for _, s := range selections {
		if s.Enabled {
			enabled[s.Code] = true
		}
	}

	var suggestions []Suggestion

	// Specialist support: a PT/OT/ST/psychologist on staff qualifies.
	specialists := CountQualified(staff, cfg.SpecialistQualifications)
	if specialists > 0 && !enabled[codeSpecialistSupport] {
		if a, ok := additionByCode[codeSpecialistSupport]; ok {
			occurrences := cfg.EstimatedBusinessDays
			if limit, capped := cfg.MonthlyLimitFor(a); capped {
				occurrences = limit
			}
			suggestions = append(suggestions, Suggestion{
				AdditionCode:   a.Code,
				AdditionName:   displayName(a, a.Code),
				PotentialUnits: a.Units() * occurrences,
				Reason:         "staff hold PT/OT/ST/psychologist qualifications",
				Requirements:   "direct support delivered under a specialist support plan",
				Priority:       PriorityHigh,
			})
		}
	}

	// Senior-staff allocation tier I: experienced, sufficiently staffed
	// team with no tier in the group enabled yet.
	experienced := CountExperienced(staff, seniorExperienceYears)
	fte := FTE(staff)
	if experienced > 0 && fte.GreaterThanOrEqual(decimalOne) {
		groupEnabled := false
		for _, code := range cfg.ExclusiveGroups[catalog.GroupStaffAllocation] {
			if enabled[code] {
				groupEnabled = true
				break
			}
		}
		if !groupEnabled {
			if a, ok := additionByCode["staff_allocation_1_fulltime"]; ok {
				suggestions = append(suggestions, Suggestion{
					AdditionCode:   a.Code,
					AdditionName:   displayName(a, a.Code),
					PotentialUnits: a.Units() * cfg.EstimatedBusinessDays,
					Reason: fmt.Sprintf("%d staff with %d+ years of experience, full-time equivalent %s",
						experienced, seniorExperienceYears, fte.StringFixed(1)),
					Requirements: "1.0+ full-time dedicated allocation",
					Priority:     PriorityHigh,
				})
			}
		}
	}

	// Transport: almost every facility qualifies, so suggest whenever
	// not yet enabled.
	if !enabled[codeTransport] {
		if a, ok := additionByCode[codeTransport]; ok {
			suggestions = append(suggestions, Suggestion{
				AdditionCode:   a.Code,
				AdditionName:   displayName(a, a.Code),
				PotentialUnits: a.Units() * 2 * cfg.EstimatedBusinessDays, // round trip
				Reason:         "available to any facility providing transport",
				Requirements:   "transport between home or nursery and the facility (per leg)",
				Priority:       PriorityMedium,
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return priorityRank(suggestions[i].Priority) < priorityRank(suggestions[j].Priority)
	})
	return suggestions
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}
