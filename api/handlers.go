/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the rule catalog, the what-if revenue calculator, and the
  monthly billing aggregator via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Catalog:
    GET    /api/additions                 List the catalog
    POST   /api/additions                 Upsert a catalog row
    GET    /api/additions/{code}          Get one addition
    DELETE /api/additions/{code}          Remove an addition
    GET    /api/additions/{code}/versions List an addition's versions
    POST   /api/versions                  Save a version (overlap-checked)
    GET    /api/revisions                 List law revisions
    POST   /api/revisions                 Save a law revision

  Masters:
    POST   /api/facilities                Upsert a facility
    GET    /api/facilities/{id}/settings  List preset settings
    POST   /api/facilities/{id}/settings  Upsert a preset setting
    POST   /api/children                  Upsert a child
    GET    /api/service-codes             List service codes
    POST   /api/service-codes             Upsert a service code

  Calculation:
    POST   /api/calculate                 What-if revenue projection

  Billing:
    POST   /api/usage                     Ingest usage records (batch)
    POST   /api/billing/generate          Generate draft records
    POST   /api/billing/confirm           Confirm draft records
    GET    /api/billing/records           List a period's records
    GET    /api/billing/records/{id}      Get one record
    GET    /api/billing/records/{id}/details Per-day lines
    PUT    /api/billing/records/{id}/notes Amend draft notes
    GET    /api/billing/export            Submission CSV

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (version overlap, non-draft mutation)
  - 422: Generation precondition failed (no usage)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/careflow/billing-engine/billing"
	"github.com/careflow/billing-engine/catalog"
	"github.com/careflow/billing-engine/engine"
	"github.com/careflow/billing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Aggregator *billing.Aggregator
	Config     *catalog.RuleConfig
}

// NewHandler creates a new handler with the given store. A nil config
// falls back to the built-in rule configuration.
func NewHandler(store *sqlite.Store, cfg *catalog.RuleConfig) *Handler {
	if cfg == nil {
		cfg = catalog.DefaultRuleConfig()
	}
	return &Handler{
		Store:      store,
		Aggregator: billing.NewAggregator(store),
		Config:     cfg,
	}
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

// ListAdditions returns the full catalog in catalog order.
// GET /api/additions
func (h *Handler) ListAdditions(w http.ResponseWriter, r *http.Request) {
	additions, err := h.Store.ListAdditions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list additions", err)
		return
	}

	dtos := make([]AdditionDTO, 0, len(additions))
	for _, a := range additions {
		dtos = append(dtos, toAdditionDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveAddition upserts a catalog row.
// POST /api/additions
func (h *Handler) SaveAddition(w http.ResponseWriter, r *http.Request) {
	var req AdditionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "code and name are required", nil)
		return
	}

	addition, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid percentage rate", err)
		return
	}

	if err := h.Store.SaveAddition(r.Context(), addition); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save addition", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdditionDTO(addition))
}

// GetAddition returns one catalog row.
// GET /api/additions/{code}
func (h *Handler) GetAddition(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	addition, err := h.Store.GetAddition(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get addition", err)
		return
	}
	if addition == nil {
		writeError(w, http.StatusNotFound, "Addition not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAdditionDTO(*addition))
}

// DeleteAddition removes a catalog row.
// DELETE /api/additions/{code}
func (h *Handler) DeleteAddition(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.Store.DeleteAddition(r.Context(), code); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete addition", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListVersions returns an addition's versions in effective-date order.
// GET /api/additions/{code}/versions
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	versions, err := h.Store.ListVersions(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list versions", err)
		return
	}

	dtos := make([]AdditionVersionDTO, 0, len(versions))
	for _, v := range versions {
		dtos = append(dtos, toVersionDTO(v))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveVersion persists a version after the write-time overlap check.
// POST /api/versions
func (h *Handler) SaveVersion(w http.ResponseWriter, r *http.Request) {
	var req AdditionVersionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AdditionCode == "" {
		writeError(w, http.StatusBadRequest, "addition_code is required", nil)
		return
	}

	version, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid version fields", err)
		return
	}
	if version.ID == "" {
		version.ID = uuid.NewString()
	}

	if err := h.Store.SaveAdditionVersion(r.Context(), version); err != nil {
		if errors.Is(err, catalog.ErrVersionOverlap) {
			writeError(w, http.StatusConflict, "Version effective ranges overlap", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save version", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVersionDTO(version))
}

// ListRevisions returns all law revisions, newest first.
// GET /api/revisions
func (h *Handler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	revisions, err := h.Store.ListLawRevisions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list revisions", err)
		return
	}

	dtos := make([]LawRevisionDTO, 0, len(revisions))
	for _, rev := range revisions {
		dtos = append(dtos, LawRevisionDTO{
			ID:          rev.ID,
			Date:        rev.Date.String(),
			Name:        rev.Name,
			Description: rev.Description,
			SourceURL:   rev.SourceURL,
			Active:      rev.Active,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveRevision saves a law revision.
// POST /api/revisions
func (h *Handler) SaveRevision(w http.ResponseWriter, r *http.Request) {
	var req LawRevisionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	date, err := catalog.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	revision := catalog.LawRevision{
		ID:          req.ID,
		Date:        date,
		Name:        req.Name,
		Description: req.Description,
		SourceURL:   req.SourceURL,
		Active:      req.Active,
	}
	if err := h.Store.SaveLawRevision(r.Context(), revision); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save revision", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// MASTER ENDPOINTS
// =============================================================================

// SaveFacility upserts a facility master row.
// POST /api/facilities
func (h *Handler) SaveFacility(w http.ResponseWriter, r *http.Request) {
	var req FacilityDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	facility := billing.Facility{ID: req.ID, Name: req.Name, Code: req.Code, RegionGrade: req.RegionGrade}
	if err := h.Store.SaveFacility(r.Context(), facility); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save facility", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListFacilitySettings returns one facility's preset settings.
// GET /api/facilities/{id}/settings
func (h *Handler) ListFacilitySettings(w http.ResponseWriter, r *http.Request) {
	facilityID := chi.URLParam(r, "id")

	settings, err := h.Store.FacilitySettings(r.Context(), facilityID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list facility settings", err)
		return
	}

	dtos := make([]FacilitySettingDTO, 0, len(settings))
	for _, s := range settings {
		dto := FacilitySettingDTO{
			ID:           s.ID,
			FacilityID:   s.FacilityID,
			AdditionCode: s.AdditionCode,
			Enabled:      s.Enabled,
			Status:       string(s.Status),
		}
		if s.EffectiveFrom != nil {
			v := s.EffectiveFrom.String()
			dto.EffectiveFrom = &v
		}
		if s.EffectiveTo != nil {
			v := s.EffectiveTo.String()
			dto.EffectiveTo = &v
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveFacilitySetting upserts one preset enablement.
// POST /api/facilities/{id}/settings
func (h *Handler) SaveFacilitySetting(w http.ResponseWriter, r *http.Request) {
	facilityID := chi.URLParam(r, "id")

	var req FacilitySettingDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AdditionCode == "" {
		writeError(w, http.StatusBadRequest, "addition_code is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.FacilityID = facilityID

	setting := catalog.FacilityAdditionSetting{
		ID:           req.ID,
		FacilityID:   facilityID,
		AdditionCode: req.AdditionCode,
		Enabled:      req.Enabled,
		Status:       catalog.SettingStatus(req.Status),
	}
	if req.EffectiveFrom != nil {
		d, err := catalog.ParseDate(*req.EffectiveFrom)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_from", err)
			return
		}
		setting.EffectiveFrom = &d
	}
	if req.EffectiveTo != nil {
		d, err := catalog.ParseDate(*req.EffectiveTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_to", err)
			return
		}
		setting.EffectiveTo = &d
	}

	if err := h.Store.SaveFacilitySetting(r.Context(), setting); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save facility setting", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// SaveChild upserts a child master row.
// POST /api/children
func (h *Handler) SaveChild(w http.ResponseWriter, r *http.Request) {
	var req ChildMasterDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	child := billing.Child{
		ID:                req.ID,
		Name:              req.Name,
		BeneficiaryNumber: req.BeneficiaryNumber,
		IncomeCategory:    req.IncomeCategory,
	}
	if err := h.Store.SaveChild(r.Context(), child); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save child", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListServiceCodes returns the service-code catalog.
// GET /api/service-codes
func (h *Handler) ListServiceCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.Store.ServiceCodes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list service codes", err)
		return
	}

	dtos := make([]ServiceCodeDTO, 0, len(codes))
	for _, c := range codes {
		dtos = append(dtos, ServiceCodeDTO{
			ID: c.ID, Code: c.Code, Name: c.Name,
			Category: c.Category, BaseUnits: c.BaseUnits, Description: c.Description,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveServiceCode upserts a statutory service code.
// POST /api/service-codes
func (h *Handler) SaveServiceCode(w http.ResponseWriter, r *http.Request) {
	var req ServiceCodeDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "code and name are required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	code := billing.ServiceCode{
		ID: req.ID, Code: req.Code, Name: req.Name,
		Category: req.Category, BaseUnits: req.BaseUnits, Description: req.Description,
	}
	if err := h.Store.SaveServiceCode(r.Context(), code); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save service code", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// CALCULATION ENDPOINT
// =============================================================================

// Calculate runs a what-if revenue projection.
// POST /api/calculate
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BaseUnits < 0 {
		writeError(w, http.StatusBadRequest, "base_units must not be negative", nil)
		return
	}

	additions, err := h.Store.ListAdditions(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load catalog", err)
		return
	}
	versions, err := h.Store.ListVersions(ctx, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load versions", err)
		return
	}

	selections := make([]catalog.AdditionSelection, 0, len(req.Selections))
	for _, s := range req.Selections {
		selections = append(selections, catalog.AdditionSelection{
			Code:              s.Code,
			Enabled:           s.Enabled,
			CustomOccurrences: s.CustomOccurrences,
		})
	}

	// Preset additions come from the facility's approved settings, not
	// from the request.
	if req.FacilityID != "" {
		settings, err := h.Store.FacilitySettings(ctx, req.FacilityID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load facility settings", err)
			return
		}
		selections = catalog.MergeWithFacilitySettings(selections, additions, settings)
	}

	unitPrice := billing.DefaultUnitPrice
	if req.UnitPrice != "" {
		unitPrice, err = decimal.NewFromString(req.UnitPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
			return
		}
	}

	staff := make([]engine.Staff, 0, len(req.Staff))
	for _, s := range req.Staff {
		staff = append(staff, engine.Staff{
			ID:                s.ID,
			Name:              s.Name,
			Qualifications:    s.Qualifications,
			YearsOfExperience: s.YearsOfExperience,
			EmploymentType:    s.EmploymentType,
			WeeklyHours:       s.WeeklyHours,
			Active:            s.Active,
		})
	}
	children := make([]engine.Child, 0, len(req.Children))
	for _, c := range req.Children {
		children = append(children, engine.Child{
			ID:                    c.ID,
			Name:                  c.Name,
			MedicalCareScore:      c.MedicalCareScore,
			BehaviorDisorderScore: c.BehaviorDisorderScore,
			CareNeedsCategory:     c.CareNeedsCategory,
			ProtectedChild:        c.ProtectedChild,
			IncomeCategory:        c.IncomeCategory,
		})
	}

	input := engine.Input{
		Selections:   selections,
		Additions:    additions,
		Versions:     versions,
		Staff:        staff,
		Children:     children,
		BaseUnits:    req.BaseUnits,
		BusinessDays: req.BusinessDays,
		UnitPrice:    unitPrice,
		Config:       h.Config,
	}

	var result engine.CalculationResult
	if req.YearMonth != "" {
		year, month, err := catalog.ParseYearMonth(req.YearMonth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year_month", err)
			return
		}
		if input.BusinessDays == 0 {
			input.BusinessDays = catalog.BusinessDays(year, month)
		}
		result = engine.CalculateForMonth(input, year, month)
	} else {
		if input.BusinessDays == 0 {
			input.BusinessDays = h.Config.EstimatedBusinessDays
		}
		result = engine.Calculate(input)
	}

	writeJSON(w, http.StatusOK, toResultDTO(result))
}

// =============================================================================
// USAGE ENDPOINTS
// =============================================================================

// IngestUsage saves a batch of usage records, one row per child per day.
// POST /api/usage
func (h *Handler) IngestUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqs []UsageRecordDTO
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saved := 0
	for i, req := range reqs {
		if req.FacilityID == "" || req.ChildID == "" {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("record %d: facility_id and child_id are required", i), nil)
			return
		}
		date, err := catalog.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("record %d: invalid date", i), err)
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		record := billing.UsageRecord{
			ID:            req.ID,
			FacilityID:    req.FacilityID,
			ChildID:       req.ChildID,
			Date:          date,
			Status:        billing.ServiceStatus(req.Status),
			PlannedStart:  req.PlannedStart,
			PlannedEnd:    req.PlannedEnd,
			ActualStart:   req.ActualStart,
			ActualEnd:     req.ActualEnd,
			Pickup:        req.Pickup,
			Dropoff:       req.Dropoff,
			AddonNames:    req.AddonNames,
			BillingTarget: req.BillingTarget,
		}
		if err := h.Store.SaveUsageRecord(ctx, record); err != nil {
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to save usage record %d", i), err)
			return
		}
		saved++
	}

	writeJSON(w, http.StatusCreated, map[string]int{"saved": saved})
}

// =============================================================================
// BILLING ENDPOINTS
// =============================================================================

// GenerateBilling runs the monthly aggregation for one facility/period.
// POST /api/billing/generate
func (h *Handler) GenerateBilling(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FacilityID == "" || req.YearMonth == "" {
		writeError(w, http.StatusBadRequest, "facility_id and year_month are required", nil)
		return
	}

	report, err := h.Aggregator.Generate(r.Context(), req.FacilityID, req.YearMonth)
	if err != nil {
		if errors.Is(err, billing.ErrNoUsage) {
			writeError(w, http.StatusUnprocessableEntity, "No billing-eligible usage records for period", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to generate billing", err)
		return
	}

	dto := GenerateReportDTO{
		FacilityID: report.FacilityID,
		YearMonth:  report.YearMonth,
		Records:    make([]BillingRecordDTO, 0, len(report.Records)),
	}
	for _, rec := range report.Records {
		dto.Records = append(dto.Records, toRecordDTO(rec))
	}
	for _, e := range report.Errors {
		dto.Errors = append(dto.Errors, RunErrorDTO{ChildID: e.ChildID, Message: e.Err.Error()})
	}
	for _, wn := range report.Warnings {
		dto.Warnings = append(dto.Warnings, RunWarningDTO{ChildID: wn.ChildID, Message: wn.Message})
	}

	status := http.StatusOK
	if len(dto.Errors) > 0 {
		// Partial success; failed children are listed for a re-run.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, dto)
}

// ConfirmBilling transitions the period's drafts to confirmed.
// POST /api/billing/confirm
func (h *Handler) ConfirmBilling(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.FacilityID == "" || req.YearMonth == "" {
		writeError(w, http.StatusBadRequest, "facility_id and year_month are required", nil)
		return
	}

	confirmed, err := h.Aggregator.Confirm(r.Context(), req.FacilityID, req.YearMonth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to confirm billing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"confirmed": confirmed})
}

// ListBillingRecords returns a period's records.
// GET /api/billing/records?facility_id=&year_month=
func (h *Handler) ListBillingRecords(w http.ResponseWriter, r *http.Request) {
	facilityID := r.URL.Query().Get("facility_id")
	yearMonth := r.URL.Query().Get("year_month")
	if facilityID == "" || yearMonth == "" {
		writeError(w, http.StatusBadRequest, "facility_id and year_month are required", nil)
		return
	}

	records, err := h.Store.RecordsForMonth(r.Context(), facilityID, yearMonth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list billing records", err)
		return
	}

	dtos := make([]BillingRecordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBillingRecord returns one record.
// GET /api/billing/records/{id}
func (h *Handler) GetBillingRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.Store.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get billing record", err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "Billing record not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(*record))
}

// GetBillingDetails returns a record's per-day lines.
// GET /api/billing/records/{id}/details
func (h *Handler) GetBillingDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	details, err := h.Store.DetailsForRecord(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get billing details", err)
		return
	}

	dtos := make([]BillingDetailDTO, 0, len(details))
	for _, d := range details {
		additions := d.Additions
		if additions == nil {
			additions = []billing.AppliedAddition{}
		}
		dtos = append(dtos, BillingDetailDTO{
			ID:          d.ID,
			RecordID:    d.RecordID,
			ServiceDate: d.ServiceDate.String(),
			ServiceCode: d.ServiceCode,
			UnitCount:   d.UnitCount,
			IsAbsence:   d.IsAbsence,
			AbsenceType: d.AbsenceType,
			Additions:   additions,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateBillingNotes amends the operator notes on a draft record.
// PUT /api/billing/records/{id}/notes
func (h *Handler) UpdateBillingNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.UpdateRecordNotes(r.Context(), id, req.Notes); err != nil {
		if errors.Is(err, sqlite.ErrRecordNotDraft) {
			writeError(w, http.StatusConflict, "Record is not in draft state", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update notes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExportBilling streams the submission CSV for one facility/period.
// GET /api/billing/export?facility_id=&year_month=
func (h *Handler) ExportBilling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facilityID := r.URL.Query().Get("facility_id")
	yearMonth := r.URL.Query().Get("year_month")
	if facilityID == "" || yearMonth == "" {
		writeError(w, http.StatusBadRequest, "facility_id and year_month are required", nil)
		return
	}

	records, err := h.Store.RecordsForMonth(ctx, facilityID, yearMonth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load billing records", err)
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "No billing records for period", nil)
		return
	}

	var facility billing.Facility
	if f, err := h.Store.Facility(ctx, facilityID); err == nil && f != nil {
		facility = *f
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="billing_%s_%s.csv"`, facilityID, yearMonth))
	if err := billing.ExportCSV(w, facility, yearMonth, records); err != nil {
		// Headers are already out; nothing sane left to send.
		return
	}
}

// ResetDatabase clears all data (dev only).
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
