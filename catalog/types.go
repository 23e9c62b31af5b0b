/*
Package catalog defines the rule catalog for welfare-service additions.

PURPOSE:
  An Addition is a surcharge/benefit line item billed on top of a base
  service reward under welfare-billing rules. The catalog describes each
  addition's unit value, exclusivity, per-period caps, and eligibility
  requirements, plus a temporal versioning layer so that legal revisions
  can change an addition's parameters on a given effective date without
  losing history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Addition: A catalogued surcharge line item
  - AdditionVersion: Time-sliced override of an Addition's mutable fields
  - LawRevision: Named change event grouping one or more versions
  - FacilityAdditionSetting: Per-facility enablement of preset additions
  - AdditionSelection: Ephemeral per-calculation enablement input

ADDITION KINDS:
  facility_preset: Enabled once through a facility-level application and
                   approval workflow; never toggled per calculation.
  monthly:         The operator toggles these per calculation run.
  daily:           Derived automatically from daily usage records.

DESIGN PRINCIPLES:
  1. Immutability: Published versions and revisions are never edited
  2. Read safety: Version lookup never fails; it falls back to base fields
  3. Write-time integrity: Overlapping version ranges are rejected on save

SEE ALSO:
  - versions.go: Effective-version lookup and catalog snapshot merging
  - config.go:   Exclusive groups, monthly caps, qualification codes
  - selection.go: Facility-setting merge and kind partitioning
*/
package catalog

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ADDITION - Catalogued surcharge line item
// =============================================================================

// AdditionKind determines how an addition gets enabled.
type AdditionKind string

const (
	KindFacilityPreset AdditionKind = "facility_preset"
	KindMonthly        AdditionKind = "monthly"
	KindDaily          AdditionKind = "daily"
)

// Addition is a single catalogued surcharge. UnitValue is nil when the
// addition is percentage-based; PercentageRate is nil otherwise.
type Addition struct {
	Code           string
	Name           string
	ShortName      string
	CategoryCode   string
	UnitValue      *int
	IsPercentage   bool
	PercentageRate *decimal.Decimal
	MaxPerMonth    *int
	MaxPerDay      int // defaults to 1
	IsExclusive    bool
	ExclusiveGroup string // may be empty; groups are also declared in RuleConfig

	Requirements     string
	RequirementsData map[string]any

	ApplicableServices []string
	Kind               AdditionKind
}

// Units returns the fixed unit value, or 0 for percentage-based additions.
func (a Addition) Units() int {
	if a.UnitValue == nil {
		return 0
	}
	return *a.UnitValue
}

// =============================================================================
// ADDITION VERSION - Time-sliced parameter override
// =============================================================================

// AdditionVersion overrides an Addition's mutable fields for a date range.
// EffectiveFrom and EffectiveTo are inclusive; a nil EffectiveTo means the
// version is open-ended. For one addition, ranges must never overlap: at
// most one version is effective on any calendar date.
type AdditionVersion struct {
	ID             string
	AdditionCode   string
	VersionNumber  int
	UnitValue      *int
	IsPercentage   bool
	PercentageRate *decimal.Decimal

	Requirements     string
	RequirementsData map[string]any

	MaxPerMonth *int
	MaxPerDay   *int // nil = keep the base Addition's value

	EffectiveFrom Date
	EffectiveTo   *Date
	RevisionID    string
	Notes         string
}

// Covers reports whether the version is effective on the target date.
func (v AdditionVersion) Covers(target Date) bool {
	if target.Before(v.EffectiveFrom) {
		return false
	}
	if v.EffectiveTo != nil && target.After(*v.EffectiveTo) {
		return false
	}
	return true
}

// =============================================================================
// LAW REVISION - Audit grouping for version changes
// =============================================================================

// LawRevision is a named legal change event. Immutable once published;
// used for audit and traceability only.
type LawRevision struct {
	ID          string
	Date        Date
	Name        string
	Description string
	SourceURL   string
	Active      bool
}

// =============================================================================
// FACILITY ADDITION SETTING - Preset enablement per facility
// =============================================================================

// SettingStatus tracks the application workflow of a preset addition.
// Only StatusActive contributes to calculations.
type SettingStatus string

const (
	StatusPlanned   SettingStatus = "planned"
	StatusApplying  SettingStatus = "applying"
	StatusSubmitted SettingStatus = "submitted"
	StatusActive    SettingStatus = "active"
	StatusInactive  SettingStatus = "inactive"
)

// FacilityAdditionSetting records a facility's enablement of a
// facility_preset addition.
type FacilityAdditionSetting struct {
	ID            string
	FacilityID    string
	AdditionCode  string
	Enabled       bool
	Status        SettingStatus
	EffectiveFrom *Date
	EffectiveTo   *Date
}

// Applies reports whether the setting contributes to calculations.
func (s FacilityAdditionSetting) Applies() bool {
	return s.Enabled && s.Status == StatusActive
}

// =============================================================================
// ADDITION SELECTION - Per-calculation enablement input
// =============================================================================

// AdditionSelection is the ephemeral input to a calculation run.
// CustomOccurrences overrides the default occurrence count for the period
// (the number of business days); zero means no override. The period-limit
// enforcer clamps it against the addition's cap.
type AdditionSelection struct {
	Code              string
	Enabled           bool
	CustomOccurrences int
}
