/*
aggregator.go - Monthly billing generation

PURPOSE:
  The generate/confirm state machine per (facility, month):
  none -> draft -> confirmed. Generate loads the month's usage records,
  infers each child's service type, expands per-day additions, replaces
  any existing draft records, and persists one draft BillingRecord plus
  its BillingDetails per child with the statutory copay split applied.

CONCURRENCY:
  Generate performs a non-atomic delete-then-insert per (facility,
  month). Two concurrent runs for the same key can interleave one run's
  delete with the other's insert, so runs are serialized through a keyed
  mutex. Each child's record+details insert runs in one database
  transaction; a failed child is reported and skipped, not fatal.

SEE ALSO:
  - copay.go:  Ceiling lookup and split
  - export.go: CSV rendering of the persisted records
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNoUsage is returned by Generate when the period has no
// billing-eligible usage records. Nothing is written in that case.
var ErrNoUsage = errors.New("no billing-eligible usage records for period")

// Store is the persistence contract the aggregator requires.
type Store interface {
	// UsageForMonth returns all usage records for the facility and
	// YYYY-MM period, billing-eligible or not.
	UsageForMonth(ctx context.Context, facilityID, yearMonth string) ([]UsageRecord, error)

	// ChildrenByID resolves child master data for the given IDs.
	ChildrenByID(ctx context.Context, ids []string) (map[string]Child, error)

	// ServiceCodes returns the full service-code catalog.
	ServiceCodes(ctx context.Context) ([]ServiceCode, error)

	// Facility returns facility master data, or nil when unknown.
	Facility(ctx context.Context, id string) (*Facility, error)

	// DeleteDraftRecords removes draft records (and their details) for
	// the facility/period. Confirmed and submitted records must never
	// be touched.
	DeleteDraftRecords(ctx context.Context, facilityID, yearMonth string) error

	// InsertRecord persists one record and its details atomically.
	InsertRecord(ctx context.Context, rec BillingRecord, details []BillingDetail) error

	// ConfirmDrafts transitions all draft records for the period to
	// confirmed, returning how many changed.
	ConfirmDrafts(ctx context.Context, facilityID, yearMonth string) (int, error)
}

// ChildError reports one child whose record could not be persisted,
// with enough identity for a targeted retry.
type ChildError struct {
	ChildID string
	Err     error
}

func (e ChildError) Error() string {
	return fmt.Sprintf("child %s: %v", e.ChildID, e.Err)
}

// RunWarning is a non-fatal diagnostic from a generation run.
type RunWarning struct {
	ChildID string
	Message string
}

// RunReport is the outcome of one Generate call. A partially-failed run
// lists the failed children; the caller re-runs after fixing the cause.
type RunReport struct {
	FacilityID string
	YearMonth  string
	Records    []BillingRecord
	Errors     []ChildError
	Warnings   []RunWarning
}

// Aggregator builds monthly billing records from usage records.
type Aggregator struct {
	Store Store
	Copay CopayTable
	Codes CodeSet

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{
		Store: store,
		Copay: DefaultCopayTable(),
		Codes: DefaultCodeSet(),
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing runs for one (facility, month).
func (a *Aggregator) lockFor(facilityID, yearMonth string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := facilityID + "/" + yearMonth
	if a.locks[key] == nil {
		a.locks[key] = &sync.Mutex{}
	}
	return a.locks[key]
}

// Generate builds draft billing records for every child with
// billing-eligible usage in the period. Pre-existing drafts for the
// period are replaced; confirmed and submitted records stay untouched.
// One child's persistence failure does not abort the others.
func (a *Aggregator) Generate(ctx context.Context, facilityID, yearMonth string) (*RunReport, error) {
	lock := a.lockFor(facilityID, yearMonth)
	lock.Lock()
	defer lock.Unlock()

	usage, err := a.Store.UsageForMonth(ctx, facilityID, yearMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage records: %w", err)
	}
	eligible := usage[:0:0]
	for _, u := range usage {
		if u.BillingTarget {
			eligible = append(eligible, u)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: facility %s, %s", ErrNoUsage, facilityID, yearMonth)
	}

	byChild := make(map[string][]UsageRecord)
	for _, u := range eligible {
		byChild[u.ChildID] = append(byChild[u.ChildID], u)
	}
	childIDs := make([]string, 0, len(byChild))
	for id := range byChild {
		childIDs = append(childIDs, id)
	}
	sort.Strings(childIDs)

	children, err := a.Store.ChildrenByID(ctx, childIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load children: %w", err)
	}
	codes, err := a.Store.ServiceCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load service codes: %w", err)
	}
	codeByCode := make(map[string]ServiceCode, len(codes))
	for _, c := range codes {
		codeByCode[c.Code] = c
	}

	unitPrice := DefaultUnitPrice
	if facility, err := a.Store.Facility(ctx, facilityID); err == nil && facility != nil {
		unitPrice = UnitPriceForRegion(facility.RegionGrade)
	}

	// Replace drafts only; regeneration never touches confirmed records.
	if err := a.Store.DeleteDraftRecords(ctx, facilityID, yearMonth); err != nil {
		return nil, fmt.Errorf("failed to delete draft records: %w", err)
	}

	report := &RunReport{FacilityID: facilityID, YearMonth: yearMonth}
	now := time.Now().UTC()

	for _, childID := range childIDs {
		usages := byChild[childID]
		sort.Slice(usages, func(i, j int) bool { return usages[i].Date.Before(usages[j].Date) })

		child := children[childID]
		serviceType := InferServiceType(usages)
		baseCode, baseUnits := a.baseReward(serviceType, codeByCode)

		rec := BillingRecord{
			ID:                uuid.NewString(),
			FacilityID:        facilityID,
			ChildID:           childID,
			YearMonth:         yearMonth,
			ServiceType:       serviceType,
			UnitPrice:         unitPrice.String(),
			Status:            StatusDraft,
			CreatedAt:         now,
			UpdatedAt:         now,
			ChildName:         child.Name,
			BeneficiaryNumber: child.BeneficiaryNumber,
		}

		details := make([]BillingDetail, 0, len(usages))
		totalUnits := 0
		for _, u := range usages {
			d := a.buildDetail(rec.ID, u, baseCode, baseUnits, codes, codeByCode)
			totalUnits += d.UnitCount
			details = append(details, d)
		}

		ceiling, known := a.Copay.CeilingFor(child.IncomeCategory)
		if !known {
			report.Warnings = append(report.Warnings, RunWarning{
				ChildID: childID,
				Message: fmt.Sprintf("unrecognized income category %q, falling back to general ceiling %d", child.IncomeCategory, GeneralCeiling),
			})
		}

		rec.TotalUnits = totalUnits
		rec.TotalAmount = decimal.NewFromInt(int64(totalUnits)).Mul(unitPrice).Floor().IntPart()
		rec.UpperLimit = ceiling
		rec.CopayAmount, rec.InsuranceAmount = Split(rec.TotalAmount, ceiling)

		if err := a.Store.InsertRecord(ctx, rec, details); err != nil {
			report.Errors = append(report.Errors, ChildError{ChildID: childID, Err: err})
			continue
		}
		report.Records = append(report.Records, rec)
	}

	return report, nil
}

// Confirm bulk-transitions the period's draft records to confirmed.
// A period with no drafts is a no-op, not an error.
func (a *Aggregator) Confirm(ctx context.Context, facilityID, yearMonth string) (int, error) {
	return a.Store.ConfirmDrafts(ctx, facilityID, yearMonth)
}

// =============================================================================
// SERVICE-TYPE INFERENCE
// =============================================================================

// InferServiceType classifies a child's service type by majority vote of
// AM vs PM actual start times across the period: an AM majority means
// child-development support, otherwise after-school day service.
//
// This is a heuristic, not a stored fact. An exact 50/50 split (or no
// usable start times at all) deterministically falls back to
// after-school day service.
func InferServiceType(usages []UsageRecord) string {
	amCount := 0
	for _, u := range usages {
		if hour, ok := startHour(u.ActualStart); ok && hour < 12 {
			amCount++
		}
	}
	if amCount*2 > len(usages) {
		return ServiceChildDevelopment
	}
	return ServiceAfterSchoolDay
}

func startHour(hhmm string) (int, bool) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) == 0 || parts[0] == "" {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	return hour, true
}

// =============================================================================
// DETAIL DERIVATION
// =============================================================================

func (a *Aggregator) baseReward(serviceType string, codeByCode map[string]ServiceCode) (string, int) {
	code := a.Codes.AfterSchoolBase
	if serviceType == ServiceChildDevelopment {
		code = a.Codes.ChildDevelopmentBase
	}
	if c, ok := codeByCode[code]; ok {
		return c.Code, c.BaseUnits
	}
	return code, fallbackBaseUnits
}

// buildDetail derives one per-day billing line from a usage record.
func (a *Aggregator) buildDetail(recordID string, u UsageRecord, baseCode string, baseUnits int, codes []ServiceCode, codeByCode map[string]ServiceCode) BillingDetail {
	detail := BillingDetail{
		ID:          uuid.NewString(),
		RecordID:    recordID,
		ServiceDate: u.Date,
		ServiceCode: baseCode,
	}

	switch u.Status {
	case StatusAbsentNoAddition:
		detail.IsAbsence = true
		detail.AbsenceType = string(u.Status)
		detail.ServiceCode = a.Codes.AbsenceResponse
		return detail

	case StatusAbsenceAddition:
		detail.IsAbsence = true
		detail.AbsenceType = string(u.Status)
		detail.ServiceCode = a.Codes.AbsenceResponse
		if c, ok := codeByCode[a.Codes.AbsenceResponse]; ok {
			detail.Additions = append(detail.Additions, AppliedAddition{Code: c.Code, Name: c.Name, Units: c.BaseUnits})
			detail.UnitCount = c.BaseUnits
		}
		return detail
	}

	detail.UnitCount = baseUnits

	// Transport: round trip when both legs ran, single leg otherwise.
	switch {
	case u.Pickup && u.Dropoff:
		if c, ok := codeByCode[a.Codes.RoundTripTransport]; ok {
			detail.Additions = append(detail.Additions, AppliedAddition{Code: c.Code, Name: c.Name, Units: c.BaseUnits})
			detail.UnitCount += c.BaseUnits
		}
	case u.Pickup || u.Dropoff:
		if c, ok := codeByCode[a.Codes.OneWayTransport]; ok {
			detail.Additions = append(detail.Additions, AppliedAddition{Code: c.Code, Name: c.Name, Units: c.BaseUnits})
			detail.UnitCount += c.BaseUnits
		}
	}

	// Free-form addons recorded on the day, matched by name against the
	// addition category of the service-code catalog.
	for _, addon := range u.AddonNames {
		for _, c := range codes {
			if c.Category == CategoryAddition && strings.Contains(c.Name, addon) {
				detail.Additions = append(detail.Additions, AppliedAddition{Code: c.Code, Name: c.Name, Units: c.BaseUnits})
				detail.UnitCount += c.BaseUnits
				break
			}
		}
	}

	return detail
}
