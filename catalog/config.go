/*
config.go - Rule configuration injected at engine startup

PURPOSE:
  Exclusivity groups, monthly caps, and qualification code sets change
  with legal revisions. They are modeled as an explicit configuration
  object handed to the engine rather than hard-coded literals, so a law
  revision is a config (or catalog version) update, not a code change.

FORMAT:
  RuleConfig is JSON-loadable. DefaultRuleConfig returns the ruleset in
  force for the 2024 reward revision; deployments can override it with
  a config file at startup.
*/
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
)

// =============================================================================
// RULE CONFIG
// =============================================================================

// RuleConfig bundles the static rule tables consumed by the engine.
type RuleConfig struct {
	// ExclusiveGroups maps a group name to the addition codes that are
	// mutually exclusive within it. At most one member of a group may be
	// billed simultaneously.
	ExclusiveGroups map[string][]string `json:"exclusive_groups"`

	// MonthlyLimits overrides the per-addition monthly occurrence cap.
	// Takes priority over Addition.MaxPerMonth.
	MonthlyLimits map[string]int `json:"monthly_limits"`

	// SpecialistQualifications lists the qualification codes (and their
	// localized names) that satisfy the specialist-support requirement.
	SpecialistQualifications []string `json:"specialist_qualifications"`

	// QualificationNames maps qualification codes to display names.
	QualificationNames map[string]string `json:"qualification_names"`

	// EstimatedBusinessDays is the fixed business-day assumption used for
	// suggestion unit estimates.
	EstimatedBusinessDays int `json:"estimated_business_days"`
}

// GroupOf returns the name of the exclusivity group containing the code,
// or "" when the code is not in any group.
func (c *RuleConfig) GroupOf(code string) string {
	for name, codes := range c.ExclusiveGroups {
		for _, member := range codes {
			if member == code {
				return name
			}
		}
	}
	return ""
}

// MonthlyLimitFor returns the effective monthly cap for an addition: the
// config override if present, else the addition's own MaxPerMonth, else
// (0, false) for uncapped additions.
func (c *RuleConfig) MonthlyLimitFor(a Addition) (int, bool) {
	if limit, ok := c.MonthlyLimits[a.Code]; ok {
		return limit, true
	}
	if a.MaxPerMonth != nil {
		return *a.MaxPerMonth, true
	}
	return 0, false
}

// ParseRuleConfig reads a JSON rule configuration. Missing sections fall
// back to the defaults so partial overrides stay safe.
func ParseRuleConfig(r io.Reader) (*RuleConfig, error) {
	cfg := DefaultRuleConfig()
	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse rule config: %w", err)
	}
	if cfg.EstimatedBusinessDays <= 0 {
		cfg.EstimatedBusinessDays = defaultEstimatedBusinessDays
	}
	return cfg, nil
}

// =============================================================================
// DEFAULTS - 2024 reward revision ruleset
// =============================================================================

// Exclusivity group names.
const (
	GroupStaffAllocation      = "staff_allocation"
	GroupTreatmentImprovement = "treatment_improvement"
	GroupExtension            = "extension"
	GroupBehaviorSupport      = "behavior_support"
	GroupIndividualSupport1   = "individual_support_1"
)

// Qualification codes.
const (
	QualPhysicalTherapist     = "PT"
	QualOccupationalTherapist = "OT"
	QualSpeechTherapist       = "ST"
	QualPsychologist          = "PSYCHOLOGIST"
	QualNurseryTeacher        = "NURSERY_TEACHER"
	QualChildInstructor       = "CHILD_INSTRUCTOR"
	QualSocialWorker          = "SOCIAL_WORKER"
	QualNurse                 = "NURSE"
	QualCareWorker            = "CARE_WORKER"
)

const defaultEstimatedBusinessDays = 22

// DefaultRuleConfig returns the built-in ruleset.
func DefaultRuleConfig() *RuleConfig {
	return &RuleConfig{
		ExclusiveGroups: map[string][]string{
			// Senior-staff allocation tiers (at most one)
			GroupStaffAllocation: {
				"staff_allocation_1_fulltime", // 187 units
				"staff_allocation_1_convert",  // 123 units
				"staff_allocation_2_fulltime", // 152 units
				"staff_allocation_2_convert",  // 107 units
				"staff_allocation_3",          // 90 units
			},
			// Treatment-improvement tiers (percentage-based, at most one)
			GroupTreatmentImprovement: {
				"treatment_improvement_1", // 14%
				"treatment_improvement_2", // 10%
				"treatment_improvement_3", // 8.1%
				"treatment_improvement_4", // 5.5%
			},
			// Extended-hours tiers (at most one)
			GroupExtension: {
				"extension_1h",     // 61 units
				"extension_2h",     // 92 units
				"extension_over2h", // 123 units
			},
			// Behavior-support tiers
			GroupBehaviorSupport: {
				"behavior_support_1",
				"behavior_support_1_initial",
				"behavior_support_2",
				"behavior_support_2_initial",
			},
			// Individual support (I) tiers
			GroupIndividualSupport1: {
				"individual_support_1",
				"individual_support_1_high",
			},
		},
		MonthlyLimits: map[string]int{
			"specialist_support":   4, // 4 days/month
			"family_support_1":     2,
			"family_support_2":     2,
			"family_support_3":     4,
			"family_support_4":     4,
			"agency_cooperation_1": 1,
			"agency_cooperation_2": 1,
			"intensive_support":    4,
		},
		SpecialistQualifications: []string{
			QualPhysicalTherapist,
			QualOccupationalTherapist,
			QualSpeechTherapist,
			QualPsychologist,
			"physical therapist",
			"occupational therapist",
			"speech therapist",
			"certified psychologist",
		},
		QualificationNames: map[string]string{
			QualPhysicalTherapist:     "physical therapist",
			QualOccupationalTherapist: "occupational therapist",
			QualSpeechTherapist:       "speech therapist",
			QualPsychologist:          "certified psychologist",
			QualNurseryTeacher:        "nursery teacher",
			QualChildInstructor:       "child instructor",
			QualSocialWorker:          "social worker",
			QualNurse:                 "nurse",
			QualCareWorker:            "care worker",
		},
		EstimatedBusinessDays: defaultEstimatedBusinessDays,
	}
}
