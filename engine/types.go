/*
Package engine implements the addition rules engine.

PURPOSE:
  Pure computation over a catalog snapshot and a selection set: resolve
  mutually-exclusive addition groups, clamp capped additions to their
  legal maximums, validate eligibility against staffing and child
  attributes, propose plausible additions, and combine everything into
  daily and monthly unit totals for what-if revenue projections.

KEY CONCEPTS IN THIS FILE (types.go):
  - Staff/Child: The live context eligibility is checked against
  - Warning: A diagnostic that never aborts computation
  - Suggestion: An advisory proposal that never mutates selections
  - Breakdown: Per-selection line explaining why it did or did not count
  - CalculationResult: The complete what-if projection output

DESIGN PRINCIPLES:
  1. Purity: No I/O, no shared mutable state, safe for concurrent callers
  2. Determinism: Identical inputs produce identical totals and ordering
  3. Transparency: Every selection appears in the breakdown with a reason

SEE ALSO:
  - exclusive.go:    Exclusivity resolver
  - limits.go:       Period-limit enforcer
  - requirements.go: Eligibility checker
  - suggest.go:      Suggestion generator
  - revenue.go:      Revenue/unit calculator
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STAFF / CHILD CONTEXT
// =============================================================================

// Staff is the slice of an employee record the engine consumes:
// qualifications, experience, and working hours for eligibility and
// full-time-equivalent math. Not a full HR model.
type Staff struct {
	ID                string
	Name              string
	Qualifications    []string
	YearsOfExperience int
	EmploymentType    string // "fulltime" or "parttime"
	WeeklyHours       int    // 0 = unknown, defaulted by employment type
	Active            bool
}

// Child is the slice of a child record the engine consumes. IncomeCategory
// drives the statutory copay ceiling in the billing package.
type Child struct {
	ID                    string
	Name                  string
	MedicalCareScore      int
	BehaviorDisorderScore int
	CareNeedsCategory     string
	ProtectedChild        bool
	IncomeCategory        string
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

type WarningType string

const (
	WarnRequirementNotMet WarningType = "requirement_not_met"
	WarnExclusiveConflict WarningType = "exclusive_conflict"
	WarnOverLimit         WarningType = "over_limit"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Warning is a diagnostic attached to a still-usable result. Severity
// lets presentation layers decide what blocks submission (error) versus
// what is merely informative.
type Warning struct {
	Type         WarningType
	AdditionCode string
	AdditionName string
	Message      string
	Severity     Severity
}

// =============================================================================
// SUGGESTIONS
// =============================================================================

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Suggestion proposes an addition the facility is plausibly eligible for
// but has not enabled. Advisory only; never mutates the selection set.
type Suggestion struct {
	AdditionCode   string
	AdditionName   string
	PotentialUnits int
	Reason         string
	Requirements   string
	Priority       Priority
}

// =============================================================================
// CALCULATION OUTPUT
// =============================================================================

type LineStatus string

const (
	LineActive   LineStatus = "active"
	LineExcluded LineStatus = "excluded"
	LineLimited  LineStatus = "limited"
	LineInvalid  LineStatus = "invalid"
)

// Breakdown is one selection's contribution line. Every selection,
// active or not, appears exactly once so the caller can render why each
// line did or did not contribute.
type Breakdown struct {
	Code           string
	Name           string
	UnitsPerDay    int
	Occurrences    int
	TotalUnits     int
	IsPercentage   bool
	PercentageRate decimal.Decimal
	Status         LineStatus
	StatusReason   string
}

// CalculationResult is the complete what-if projection.
type CalculationResult struct {
	TotalUnitsPerDay       int
	TotalUnitsPerMonth     int
	EstimatedMonthlyAmount int64 // monthly units x unit price, floored
	Breakdown              []Breakdown
	Warnings               []Warning
	Suggestions            []Suggestion
}
