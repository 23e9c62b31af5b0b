/*
requirements.go - Eligibility checker

PURPOSE:
  Cross-references staffing composition (headcount, qualifications,
  experience, FTE) and child attributes (care-needs scores, protected
  status) against each enabled addition's stated requirements.

SEVERITY:
  Hard staffing gates fail with severity error (they block submission);
  population-based gates (does an eligible child attend?) fail with
  severity warning. Passing predicates are silent.
*/
package engine

import (
	"fmt"
	"strings"

	"github.com/careflow/billing-engine/catalog"
)

// Addition code families with checkable requirements.
const (
	codeFamilyStaffAllocation1 = "staff_allocation_1"
	codeFamilyBehaviorSupport  = "behavior_support"
	codeSpecialistSupport      = "specialist_support"
	codeIndividualSupport2     = "individual_support_2"

	// behaviorScoreThreshold is the minimum behavior-disorder score a
	// child needs for behavior-support eligibility.
	behaviorScoreThreshold = 20

	// seniorExperienceYears gates the senior-staff allocation tiers.
	seniorExperienceYears = 5
)

// CheckRequirements evaluates eligibility predicates for every enabled
// selection and returns a requirement_not_met warning per failed gate.
// The computation never aborts; the caller still gets a usable result.
func CheckRequirements(selections []catalog.AdditionSelection, additions []catalog.Addition, staff []Staff, children []Child, cfg *catalog.RuleConfig) []Warning {
	additionByCode := make(map[string]catalog.Addition, len(additions))
	for _, a := range additions {
		additionByCode[a.Code] = a
	}

	fte := FTE(staff)
	var warnings []Warning

	for _, sel := range selections {
		if !sel.Enabled {
			continue
		}
		addition, ok := additionByCode[sel.Code]
		if !ok {
			continue
		}
		name := displayName(addition, sel.Code)

		switch {
		case strings.HasPrefix(sel.Code, codeFamilyStaffAllocation1):
			if CountExperienced(staff, seniorExperienceYears) == 0 {
				warnings = append(warnings, Warning{
					Type:         WarnRequirementNotMet,
					AdditionCode: sel.Code,
					AdditionName: name,
					Message:      fmt.Sprintf("no staff with %d+ years of experience", seniorExperienceYears),
					Severity:     SeverityError,
				})
			}
			if fte.LessThan(decimalOne) {
				warnings = append(warnings, Warning{
					Type:         WarnRequirementNotMet,
					AdditionCode: sel.Code,
					AdditionName: name,
					Message:      fmt.Sprintf("full-time equivalent %s (1.0 or more required)", fte.StringFixed(1)),
					Severity:     SeverityError,
				})
			}

		case sel.Code == codeSpecialistSupport:
			if CountQualified(staff, cfg.SpecialistQualifications) == 0 {
				warnings = append(warnings, Warning{
					Type:         WarnRequirementNotMet,
					AdditionCode: sel.Code,
					AdditionName: name,
					Message:      "no staff holding a PT/OT/ST/psychologist qualification",
					Severity:     SeverityError,
				})
			}

		case strings.HasPrefix(sel.Code, codeFamilyBehaviorSupport):
			if !anyChild(children, func(c Child) bool { return c.BehaviorDisorderScore >= behaviorScoreThreshold }) {
				warnings = append(warnings, Warning{
					Type:         WarnRequirementNotMet,
					AdditionCode: sel.Code,
					AdditionName: name,
					Message:      fmt.Sprintf("no child with a behavior-disorder score of %d or higher", behaviorScoreThreshold),
					Severity:     SeverityWarning,
				})
			}

		case sel.Code == codeIndividualSupport2:
			if !anyChild(children, func(c Child) bool { return c.ProtectedChild }) {
				warnings = append(warnings, Warning{
					Type:         WarnRequirementNotMet,
					AdditionCode: sel.Code,
					AdditionName: name,
					Message:      "no child flagged as requiring protection or support",
					Severity:     SeverityWarning,
				})
			}
		}
	}

	return warnings
}

func anyChild(children []Child, pred func(Child) bool) bool {
	for _, c := range children {
		if pred(c) {
			return true
		}
	}
	return false
}
