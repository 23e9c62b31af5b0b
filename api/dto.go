/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Catalog:
    AdditionDTO, AdditionVersionDTO, LawRevisionDTO, FacilitySettingDTO

  Calculation:
    CalculateRequest, CalculationResultDTO and its line types

  Billing:
    UsageRecordDTO, BillingRecordDTO, BillingDetailDTO,
    GenerateRequest, GenerateReportDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain shapes these mirror
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/careflow/billing-engine/billing"
	"github.com/careflow/billing-engine/catalog"
	"github.com/careflow/billing-engine/engine"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CATALOG TYPES
// =============================================================================

// AdditionDTO represents a catalog row in API requests and responses.
type AdditionDTO struct {
	Code               string         `json:"code"`
	Name               string         `json:"name"`
	ShortName          string         `json:"short_name,omitempty"`
	CategoryCode       string         `json:"category_code,omitempty"`
	UnitValue          *int           `json:"unit_value,omitempty"`
	IsPercentage       bool           `json:"is_percentage"`
	PercentageRate     *string        `json:"percentage_rate,omitempty"`
	MaxPerMonth        *int           `json:"max_per_month,omitempty"`
	MaxPerDay          int            `json:"max_per_day"`
	IsExclusive        bool           `json:"is_exclusive"`
	ExclusiveGroup     string         `json:"exclusive_group,omitempty"`
	Requirements       string         `json:"requirements,omitempty"`
	RequirementsData   map[string]any `json:"requirements_data,omitempty"`
	ApplicableServices []string       `json:"applicable_services,omitempty"`
	Kind               string         `json:"kind"`
}

func toAdditionDTO(a catalog.Addition) AdditionDTO {
	dto := AdditionDTO{
		Code:               a.Code,
		Name:               a.Name,
		ShortName:          a.ShortName,
		CategoryCode:       a.CategoryCode,
		UnitValue:          a.UnitValue,
		IsPercentage:       a.IsPercentage,
		MaxPerMonth:        a.MaxPerMonth,
		MaxPerDay:          a.MaxPerDay,
		IsExclusive:        a.IsExclusive,
		ExclusiveGroup:     a.ExclusiveGroup,
		Requirements:       a.Requirements,
		RequirementsData:   a.RequirementsData,
		ApplicableServices: a.ApplicableServices,
		Kind:               string(a.Kind),
	}
	if a.PercentageRate != nil {
		s := a.PercentageRate.String()
		dto.PercentageRate = &s
	}
	return dto
}

func (d AdditionDTO) toDomain() (catalog.Addition, error) {
	a := catalog.Addition{
		Code:               d.Code,
		Name:               d.Name,
		ShortName:          d.ShortName,
		CategoryCode:       d.CategoryCode,
		UnitValue:          d.UnitValue,
		IsPercentage:       d.IsPercentage,
		MaxPerMonth:        d.MaxPerMonth,
		MaxPerDay:          d.MaxPerDay,
		IsExclusive:        d.IsExclusive,
		ExclusiveGroup:     d.ExclusiveGroup,
		Requirements:       d.Requirements,
		RequirementsData:   d.RequirementsData,
		ApplicableServices: d.ApplicableServices,
		Kind:               catalog.AdditionKind(d.Kind),
	}
	if a.MaxPerDay == 0 {
		a.MaxPerDay = 1
	}
	if a.Kind == "" {
		a.Kind = catalog.KindMonthly
	}
	if d.PercentageRate != nil {
		rate, err := decimal.NewFromString(*d.PercentageRate)
		if err != nil {
			return a, err
		}
		a.PercentageRate = &rate
	}
	return a, nil
}

// AdditionVersionDTO represents a time-sliced catalog override.
type AdditionVersionDTO struct {
	ID               string         `json:"id"`
	AdditionCode     string         `json:"addition_code"`
	VersionNumber    int            `json:"version_number"`
	UnitValue        *int           `json:"unit_value,omitempty"`
	IsPercentage     bool           `json:"is_percentage"`
	PercentageRate   *string        `json:"percentage_rate,omitempty"`
	Requirements     string         `json:"requirements,omitempty"`
	RequirementsData map[string]any `json:"requirements_data,omitempty"`
	MaxPerMonth      *int           `json:"max_per_month,omitempty"`
	MaxPerDay        *int           `json:"max_per_day,omitempty"`
	EffectiveFrom    string         `json:"effective_from"`
	EffectiveTo      *string        `json:"effective_to,omitempty"`
	RevisionID       string         `json:"revision_id,omitempty"`
	Notes            string         `json:"notes,omitempty"`
}

func toVersionDTO(v catalog.AdditionVersion) AdditionVersionDTO {
	dto := AdditionVersionDTO{
		ID:               v.ID,
		AdditionCode:     v.AdditionCode,
		VersionNumber:    v.VersionNumber,
		UnitValue:        v.UnitValue,
		IsPercentage:     v.IsPercentage,
		Requirements:     v.Requirements,
		RequirementsData: v.RequirementsData,
		MaxPerMonth:      v.MaxPerMonth,
		MaxPerDay:        v.MaxPerDay,
		EffectiveFrom:    v.EffectiveFrom.String(),
		RevisionID:       v.RevisionID,
		Notes:            v.Notes,
	}
	if v.PercentageRate != nil {
		s := v.PercentageRate.String()
		dto.PercentageRate = &s
	}
	if v.EffectiveTo != nil {
		s := v.EffectiveTo.String()
		dto.EffectiveTo = &s
	}
	return dto
}

func (d AdditionVersionDTO) toDomain() (catalog.AdditionVersion, error) {
	v := catalog.AdditionVersion{
		ID:               d.ID,
		AdditionCode:     d.AdditionCode,
		VersionNumber:    d.VersionNumber,
		UnitValue:        d.UnitValue,
		IsPercentage:     d.IsPercentage,
		Requirements:     d.Requirements,
		RequirementsData: d.RequirementsData,
		MaxPerMonth:      d.MaxPerMonth,
		MaxPerDay:        d.MaxPerDay,
		RevisionID:       d.RevisionID,
		Notes:            d.Notes,
	}
	from, err := catalog.ParseDate(d.EffectiveFrom)
	if err != nil {
		return v, err
	}
	v.EffectiveFrom = from
	if d.EffectiveTo != nil {
		to, err := catalog.ParseDate(*d.EffectiveTo)
		if err != nil {
			return v, err
		}
		v.EffectiveTo = &to
	}
	if d.PercentageRate != nil {
		rate, err := decimal.NewFromString(*d.PercentageRate)
		if err != nil {
			return v, err
		}
		v.PercentageRate = &rate
	}
	return v, nil
}

// LawRevisionDTO represents a legal change event.
type LawRevisionDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	Active      bool   `json:"active"`
}

// FacilitySettingDTO represents one facility's enablement of a preset
// addition.
type FacilitySettingDTO struct {
	ID            string  `json:"id"`
	FacilityID    string  `json:"facility_id"`
	AdditionCode  string  `json:"addition_code"`
	Enabled       bool    `json:"enabled"`
	Status        string  `json:"status"`
	EffectiveFrom *string `json:"effective_from,omitempty"`
	EffectiveTo   *string `json:"effective_to,omitempty"`
}

// FacilityDTO represents a facility master row.
type FacilityDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	RegionGrade int    `json:"region_grade"`
}

// ChildMasterDTO represents a child master row for billing.
type ChildMasterDTO struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	BeneficiaryNumber string `json:"beneficiary_number,omitempty"`
	IncomeCategory    string `json:"income_category,omitempty"`
}

// ServiceCodeDTO represents a statutory service code.
type ServiceCodeDTO struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	BaseUnits   int    `json:"base_units"`
	Description string `json:"description,omitempty"`
}

// =============================================================================
// CALCULATION TYPES
// =============================================================================

// SelectionDTO is one addition toggle in a calculation request.
type SelectionDTO struct {
	Code              string `json:"code"`
	Enabled           bool   `json:"enabled"`
	CustomOccurrences int    `json:"custom_occurrences,omitempty"`
}

// StaffDTO is the staffing context for eligibility and FTE math.
type StaffDTO struct {
	ID                string   `json:"id"`
	Name              string   `json:"name,omitempty"`
	Qualifications    []string `json:"qualifications,omitempty"`
	YearsOfExperience int      `json:"years_of_experience"`
	EmploymentType    string   `json:"employment_type,omitempty"`
	WeeklyHours       int      `json:"weekly_hours,omitempty"`
	Active            bool     `json:"active"`
}

// CalcChildDTO is the child context for eligibility checks.
type CalcChildDTO struct {
	ID                    string `json:"id"`
	Name                  string `json:"name,omitempty"`
	MedicalCareScore      int    `json:"medical_care_score,omitempty"`
	BehaviorDisorderScore int    `json:"behavior_disorder_score,omitempty"`
	CareNeedsCategory     string `json:"care_needs_category,omitempty"`
	ProtectedChild        bool   `json:"protected_child,omitempty"`
	IncomeCategory        string `json:"income_category,omitempty"`
}

// CalculateRequest is a what-if projection request. When FacilityID is
// set, the facility's preset settings are merged over the manual
// selections first. When YearMonth is set, the catalog snapshot is
// resolved as of that month and BusinessDays defaults to the month's
// weekday count.
type CalculateRequest struct {
	FacilityID   string         `json:"facility_id,omitempty"`
	YearMonth    string         `json:"year_month,omitempty"` // "YYYY-MM"
	Selections   []SelectionDTO `json:"selections"`
	Staff        []StaffDTO     `json:"staff,omitempty"`
	Children     []CalcChildDTO `json:"children,omitempty"`
	BaseUnits    int            `json:"base_units"`
	BusinessDays int            `json:"business_days,omitempty"`
	UnitPrice    string         `json:"unit_price,omitempty"` // decimal, yen per unit
}

// BreakdownDTO is one selection's contribution line.
type BreakdownDTO struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	UnitsPerDay    int    `json:"units_per_day"`
	Occurrences    int    `json:"occurrences"`
	TotalUnits     int    `json:"total_units"`
	IsPercentage   bool   `json:"is_percentage"`
	PercentageRate string `json:"percentage_rate,omitempty"`
	Status         string `json:"status"`
	StatusReason   string `json:"status_reason,omitempty"`
}

// WarningDTO is a non-fatal diagnostic on a calculation.
type WarningDTO struct {
	Type         string `json:"type"`
	AdditionCode string `json:"addition_code"`
	AdditionName string `json:"addition_name,omitempty"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
}

// SuggestionDTO proposes a plausibly-eligible addition.
type SuggestionDTO struct {
	AdditionCode   string `json:"addition_code"`
	AdditionName   string `json:"addition_name"`
	PotentialUnits int    `json:"potential_units"`
	Reason         string `json:"reason"`
	Requirements   string `json:"requirements,omitempty"`
	Priority       string `json:"priority"`
}

// CalculationResultDTO is the full what-if projection response.
type CalculationResultDTO struct {
	TotalUnitsPerDay       int             `json:"total_units_per_day"`
	TotalUnitsPerMonth     int             `json:"total_units_per_month"`
	EstimatedMonthlyAmount int64           `json:"estimated_monthly_amount"`
	Breakdown              []BreakdownDTO  `json:"breakdown"`
	Warnings               []WarningDTO    `json:"warnings"`
	Suggestions            []SuggestionDTO `json:"suggestions"`
}

func toResultDTO(res engine.CalculationResult) CalculationResultDTO {
	dto := CalculationResultDTO{
		TotalUnitsPerDay:       res.TotalUnitsPerDay,
		TotalUnitsPerMonth:     res.TotalUnitsPerMonth,
		EstimatedMonthlyAmount: res.EstimatedMonthlyAmount,
		Breakdown:              make([]BreakdownDTO, 0, len(res.Breakdown)),
		Warnings:               make([]WarningDTO, 0, len(res.Warnings)),
		Suggestions:            make([]SuggestionDTO, 0, len(res.Suggestions)),
	}
	for _, b := range res.Breakdown {
		line := BreakdownDTO{
			Code:         b.Code,
			Name:         b.Name,
			UnitsPerDay:  b.UnitsPerDay,
			Occurrences:  b.Occurrences,
			TotalUnits:   b.TotalUnits,
			IsPercentage: b.IsPercentage,
			Status:       string(b.Status),
			StatusReason: b.StatusReason,
		}
		if b.IsPercentage {
			line.PercentageRate = b.PercentageRate.String()
		}
		dto.Breakdown = append(dto.Breakdown, line)
	}
	for _, w := range res.Warnings {
		dto.Warnings = append(dto.Warnings, WarningDTO{
			Type:         string(w.Type),
			AdditionCode: w.AdditionCode,
			AdditionName: w.AdditionName,
			Message:      w.Message,
			Severity:     string(w.Severity),
		})
	}
	for _, s := range res.Suggestions {
		dto.Suggestions = append(dto.Suggestions, SuggestionDTO{
			AdditionCode:   s.AdditionCode,
			AdditionName:   s.AdditionName,
			PotentialUnits: s.PotentialUnits,
			Reason:         s.Reason,
			Requirements:   s.Requirements,
			Priority:       string(s.Priority),
		})
	}
	return dto
}

// =============================================================================
// BILLING TYPES
// =============================================================================

// UsageRecordDTO is one child/day attendance fact for ingestion.
type UsageRecordDTO struct {
	ID            string   `json:"id,omitempty"`
	FacilityID    string   `json:"facility_id"`
	ChildID       string   `json:"child_id"`
	Date          string   `json:"date"` // "YYYY-MM-DD"
	Status        string   `json:"status"`
	PlannedStart  string   `json:"planned_start,omitempty"`
	PlannedEnd    string   `json:"planned_end,omitempty"`
	ActualStart   string   `json:"actual_start,omitempty"`
	ActualEnd     string   `json:"actual_end,omitempty"`
	Pickup        bool     `json:"pickup"`
	Dropoff       bool     `json:"dropoff"`
	AddonNames    []string `json:"addon_names,omitempty"`
	BillingTarget bool     `json:"billing_target"`
}

// GenerateRequest triggers monthly billing generation.
type GenerateRequest struct {
	FacilityID string `json:"facility_id"`
	YearMonth  string `json:"year_month"` // "YYYY-MM"
}

// BillingRecordDTO is one child/month billing aggregate.
type BillingRecordDTO struct {
	ID                string `json:"id"`
	FacilityID        string `json:"facility_id"`
	ChildID           string `json:"child_id"`
	ChildName         string `json:"child_name,omitempty"`
	BeneficiaryNumber string `json:"beneficiary_number,omitempty"`
	YearMonth         string `json:"year_month"`
	ServiceType       string `json:"service_type"`
	TotalUnits        int    `json:"total_units"`
	UnitPrice         string `json:"unit_price"`
	TotalAmount       int64  `json:"total_amount"`
	CopayAmount       int64  `json:"copay_amount"`
	InsuranceAmount   int64  `json:"insurance_amount"`
	UpperLimit        int64  `json:"upper_limit"`
	Status            string `json:"status"`
	Notes             string `json:"notes,omitempty"`
}

func toRecordDTO(r billing.BillingRecord) BillingRecordDTO {
	return BillingRecordDTO{
		ID:                r.ID,
		FacilityID:        r.FacilityID,
		ChildID:           r.ChildID,
		ChildName:         r.ChildName,
		BeneficiaryNumber: r.BeneficiaryNumber,
		YearMonth:         r.YearMonth,
		ServiceType:       r.ServiceType,
		TotalUnits:        r.TotalUnits,
		UnitPrice:         r.UnitPrice,
		TotalAmount:       r.TotalAmount,
		CopayAmount:       r.CopayAmount,
		InsuranceAmount:   r.InsuranceAmount,
		UpperLimit:        r.UpperLimit,
		Status:            string(r.Status),
		Notes:             r.Notes,
	}
}

// BillingDetailDTO is one child/day line under a record.
type BillingDetailDTO struct {
	ID          string                    `json:"id"`
	RecordID    string                    `json:"record_id"`
	ServiceDate string                    `json:"service_date"`
	ServiceCode string                    `json:"service_code"`
	UnitCount   int                       `json:"unit_count"`
	IsAbsence   bool                      `json:"is_absence"`
	AbsenceType string                    `json:"absence_type,omitempty"`
	Additions   []billing.AppliedAddition `json:"additions"`
}

// GenerateReportDTO is the outcome of one generation run.
type GenerateReportDTO struct {
	FacilityID string             `json:"facility_id"`
	YearMonth  string             `json:"year_month"`
	Records    []BillingRecordDTO `json:"records"`
	Errors     []RunErrorDTO      `json:"errors,omitempty"`
	Warnings   []RunWarningDTO    `json:"warnings,omitempty"`
}

// RunErrorDTO names one child whose record failed to persist.
type RunErrorDTO struct {
	ChildID string `json:"child_id"`
	Message string `json:"message"`
}

// RunWarningDTO is a non-fatal diagnostic from a generation run.
type RunWarningDTO struct {
	ChildID string `json:"child_id"`
	Message string `json:"message"`
}
