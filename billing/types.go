/*
Package billing aggregates daily usage records into monthly insurance
billing records.

PURPOSE:
  Consumes the raw per-child, per-day usage facts recorded by day-to-day
  operation, classifies each child's service type, expands per-day
  additions (pickup/dropoff, absence handling, free-form addons), and
  produces per-child BillingRecords with per-day BillingDetails, split
  into the guardian's statutory copay and the insurance-funded
  remainder.

LIFECYCLE:
  Records move none -> draft -> confirmed. Regeneration replaces drafts
  only; confirmed and submitted records are never touched.

KEY CONCEPTS IN THIS FILE (types.go):
  - UsageRecord: One child/day attendance fact (immutable input)
  - ServiceCode: Catalog entry mapping codes to base unit values
  - BillingRecord/BillingDetail: The aggregation output
  - Store: The persistence contract the aggregator requires

SEE ALSO:
  - aggregator.go: The generate/confirm state machine
  - copay.go:      Income-tier ceilings and the 10% copay split
  - export.go:     Government-submission CSV contract
*/
package billing

import (
	"time"

	"github.com/careflow/billing-engine/catalog"
)

// =============================================================================
// USAGE RECORDS - Immutable aggregation input
// =============================================================================

// ServiceStatus describes how a scheduled day actually went.
type ServiceStatus string

const (
	// StatusUsed: the child attended; base reward plus daily additions.
	StatusUsed ServiceStatus = "used"
	// StatusAbsentNoAddition: absence with nothing billable.
	StatusAbsentNoAddition ServiceStatus = "absent_no_addition"
	// StatusAbsenceAddition: absence where only the absence-response
	// addition is billable.
	StatusAbsenceAddition ServiceStatus = "absence_addition_only"
)

// UsageRecord is one child/day attendance fact produced by day-to-day
// operation. Immutable input to the aggregator.
type UsageRecord struct {
	ID            string
	FacilityID    string
	ChildID       string
	Date          catalog.Date
	Status        ServiceStatus
	PlannedStart  string // "HH:MM", may be empty
	PlannedEnd    string
	ActualStart   string
	ActualEnd     string
	Pickup        bool
	Dropoff       bool
	AddonNames    []string // free-form addon names matched against the service-code catalog
	BillingTarget bool
}

// =============================================================================
// SERVICE CODES
// =============================================================================

// ServiceCode categories.
const (
	CategoryChildDevelopment = "child_development"
	CategoryAfterSchoolDay   = "after_school_day"
	CategoryAddition         = "addition"
)

// ServiceCode maps a statutory service code to its base unit value.
type ServiceCode struct {
	ID          string
	Code        string
	Name        string
	Category    string
	BaseUnits   int
	Description string
}

// CodeSet names the well-known codes the aggregator derives additions
// from. Injected so statutory renumbering is a configuration change.
type CodeSet struct {
	ChildDevelopmentBase string
	AfterSchoolBase      string
	OneWayTransport      string
	RoundTripTransport   string
	AbsenceResponse      string
}

// DefaultCodeSet returns the statutory codes in force.
func DefaultCodeSet() CodeSet {
	return CodeSet{
		ChildDevelopmentBase: "611111",
		AfterSchoolBase:      "631111",
		OneWayTransport:      "616701",
		RoundTripTransport:   "616702",
		AbsenceResponse:      "617101",
	}
}

// Service types inferred per child.
const (
	ServiceChildDevelopment = "child_development"
	ServiceAfterSchoolDay   = "after_school_day"
)

// fallbackBaseUnits applies when the service-code catalog is missing the
// base reward entry for the inferred service type.
const fallbackBaseUnits = 604

// =============================================================================
// BILLING OUTPUT
// =============================================================================

// BillingStatus is the lifecycle state of a monthly record.
type BillingStatus string

const (
	StatusDraft     BillingStatus = "draft"
	StatusConfirmed BillingStatus = "confirmed"
	StatusSubmitted BillingStatus = "submitted"
)

// BillingRecord is one child/facility/month aggregate.
type BillingRecord struct {
	ID              string
	FacilityID      string
	ChildID         string
	YearMonth       string // "YYYY-MM"
	ServiceType     string
	TotalUnits      int
	UnitPrice       string // decimal string, yen per unit
	TotalAmount     int64
	CopayAmount     int64
	InsuranceAmount int64
	UpperLimit      int64
	Status          BillingStatus
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Denormalized for display and export.
	ChildName         string
	BeneficiaryNumber string
}

// AppliedAddition is one addition applied on a billing-detail day.
type AppliedAddition struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Units int    `json:"units"`
}

// BillingDetail is one child/day line under a BillingRecord. Owned
// exclusively by its record; deleted and regenerated alongside it while
// in draft state.
type BillingDetail struct {
	ID          string
	RecordID    string
	ServiceDate catalog.Date
	ServiceCode string
	UnitCount   int
	IsAbsence   bool
	AbsenceType string
	Additions   []AppliedAddition
}

// Child is the slice of the child master the aggregator needs.
type Child struct {
	ID                string
	Name              string
	BeneficiaryNumber string
	IncomeCategory    string
}

// Facility is the slice of the facility master the exporter needs.
type Facility struct {
	ID          string
	Name        string
	Code        string
	RegionGrade int
}
