/*
exclusive.go - Exclusivity resolver

PURPOSE:
  Within a mutually-exclusive group (staff allocation tiers,
  treatment-improvement tiers, extended-hours tiers, ...) at most one
  addition may be billed. Given the operator's selections, keep the
  member with the highest unit value and demote the rest, emitting one
  conflict warning per demoted code.

PROPERTIES:
  - Idempotent: resolving an already-resolved selection changes nothing
  - Ties break by catalog order (first occurrence wins)
  - Groups with at most one enabled member are left untouched
*/
package engine

import (
	"fmt"
	"sort"

	"github.com/careflow/billing-engine/catalog"
)

// ResolveExclusiveGroups enforces at most one enabled selection per
// exclusivity group. Returns the resolved selection set (input order
// preserved) and one exclusive_conflict warning per demoted selection.
func ResolveExclusiveGroups(selections []catalog.AdditionSelection, additions []catalog.Addition, cfg *catalog.RuleConfig) ([]catalog.AdditionSelection, []Warning) {
	resolved := make([]catalog.AdditionSelection, len(selections))
	copy(resolved, selections)

	var warnings []Warning
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

	for _, group := range groupNames(cfg) {
		winner := bestInGroup(cfg.ExclusiveGroups[group], enabled, additions)
		if winner == "" {
			continue
		}
		for _, code := range cfg.ExclusiveGroups[group] {
			if code == winner || !enabled[code] {
				continue
			}
			for i := range resolved {
				if resolved[i].Code == code {
					resolved[i].Enabled = false
				}
			}
			demoted := additionByCode[code]
			retained := additionByCode[winner]
			warnings = append(warnings, Warning{
				Type:         WarnExclusiveConflict,
				AdditionCode: code,
				AdditionName: displayName(demoted, code),
				Message: fmt.Sprintf("%s cannot be billed together with %s",
					displayName(demoted, code), displayName(retained, winner)),
				Severity: SeverityWarning,
			})
		}
	}

	return resolved, warnings
}

// BestInGroup returns the enabled group member with the highest unit
// value, or "" when the group has at most one enabled member (nothing to
// resolve). Ties break by catalog order.
func BestInGroup(group []string, selections []catalog.AdditionSelection, additions []catalog.Addition) string {
	enabled := make(map[string]bool, len(selections))
	for _, s := range selections {
		if s.Enabled {
			enabled[s.Code] = true
		}
	}
	return bestInGroup(group, enabled, additions)
}

func bestInGroup(group []string, enabled map[string]bool, additions []catalog.Addition) string {
	inGroup := make(map[string]bool, len(group))
	for _, code := range group {
		inGroup[code] = true
	}

	selectedCount := 0
	for code := range enabled {
		if inGroup[code] {
			selectedCount++
		}
	}
	if selectedCount <= 1 {
		return ""
	}

	// Walk the catalog, not the group list, so ties resolve by catalog
	// order deterministically.
	best := ""
	bestUnits := -1
	for _, a := range additions {
		if !inGroup[a.Code] || !enabled[a.Code] {
			continue
		}
		if a.Units() > bestUnits {
			bestUnits = a.Units()
			best = a.Code
		}
	}
	return best
}

// groupNames returns the configured group names in stable order.
func groupNames(cfg *catalog.RuleConfig) []string {
	names := make([]string, 0, len(cfg.ExclusiveGroups))
	for name := range cfg.ExclusiveGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func displayName(a catalog.Addition, fallback string) string {
	if a.Name != "" {
		return a.Name
	}
	return fallback
}
