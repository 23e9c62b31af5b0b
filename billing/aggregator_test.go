package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/billing-engine/billing"
	"github.com/careflow/billing-engine/catalog"
	"github.com/careflow/billing-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestAggregator(t *testing.T) (*billing.Aggregator, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return billing.NewAggregator(store), store
}

func seedMasterData(t *testing.T, store *sqlite.Store) {
	ctx := context.Background()

	require.NoError(t, store.SaveFacility(ctx, billing.Facility{
		ID: "fac-1", Name: "Sunny Side", Code: "1310000001", RegionGrade: 7,
	}))
	require.NoError(t, store.SaveChild(ctx, billing.Child{
		ID: "child-a", Name: "Aoi", BeneficiaryNumber: "0000000001", IncomeCategory: billing.IncomeGeneralLow,
	}))
	require.NoError(t, store.SaveChild(ctx, billing.Child{
		ID: "child-b", Name: "Ren", BeneficiaryNumber: "0000000002", IncomeCategory: billing.IncomeGeneral,
	}))

	codes := []billing.ServiceCode{
		{ID: "sc-1", Code: "631111", Name: "After-school day service", Category: billing.CategoryAfterSchoolDay, BaseUnits: 604},
		{ID: "sc-2", Code: "611111", Name: "Child development support", Category: billing.CategoryChildDevelopment, BaseUnits: 885},
		{ID: "sc-3", Code: "616701", Name: "Transport (one way)", Category: billing.CategoryAddition, BaseUnits: 27},
		{ID: "sc-4", Code: "616702", Name: "Transport (round trip)", Category: billing.CategoryAddition, BaseUnits: 54},
		{ID: "sc-5", Code: "617101", Name: "Absence response", Category: billing.CategoryAddition, BaseUnits: 94},
		{ID: "sc-6", Code: "612345", Name: "Extended care addition", Category: billing.CategoryAddition, BaseUnits: 61},
	}
	for _, c := range codes {
		require.NoError(t, store.SaveServiceCode(ctx, c))
	}
}

func usedDay(id, childID, date, start string) billing.UsageRecord {
	return billing.UsageRecord{
		ID:            id,
		FacilityID:    "fac-1",
		ChildID:       childID,
		Date:          catalog.MustDate(date),
		Status:        billing.StatusUsed,
		ActualStart:   start,
		BillingTarget: true,
	}
}

func saveUsages(t *testing.T, store *sqlite.Store, usages ...billing.UsageRecord) {
	ctx := context.Background()
	for _, u := range usages {
		require.NoError(t, store.SaveUsageRecord(ctx, u))
	}
}

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerate_BuildsDraftRecordsPerChild(t *testing.T) {
	// GIVEN: Two children with attended days in 2025-06
	// WHEN: Generating billing for the month
	// THEN: One draft record per child with totals, copay split, and
	//       per-day details persisted

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	saveUsages(t, store,
		usedDay("u1", "child-a", "2025-06-02", "13:00"),
		usedDay("u2", "child-a", "2025-06-03", "13:30"),
		usedDay("u3", "child-b", "2025-06-02", "14:00"),
	)

	report, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	require.Len(t, report.Records, 2)
	assert.Empty(t, report.Errors)

	// Children come back in deterministic ID order.
	recA := report.Records[0]
	assert.Equal(t, "child-a", recA.ChildID)
	assert.Equal(t, billing.StatusDraft, recA.Status)
	assert.Equal(t, billing.ServiceAfterSchoolDay, recA.ServiceType)
	assert.Equal(t, 604*2, recA.TotalUnits)
	// Region grade 7 bills at 10 yen/unit.
	assert.Equal(t, "10", recA.UnitPrice)
	assert.Equal(t, int64(12080), recA.TotalAmount)
	// general_low ceiling is 4600; 10% of 12080 = 1208 stays under it.
	assert.Equal(t, int64(1208), recA.CopayAmount)
	assert.Equal(t, int64(10872), recA.InsuranceAmount)
	assert.Equal(t, recA.TotalAmount, recA.CopayAmount+recA.InsuranceAmount)
	assert.Equal(t, "Aoi", recA.ChildName)
	assert.Equal(t, "0000000001", recA.BeneficiaryNumber)

	// Persisted, not just reported.
	stored, err := store.RecordsForMonth(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	details, err := store.DetailsForRecord(ctx, recA.ID)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "631111", details[0].ServiceCode)
	assert.Equal(t, 604, details[0].UnitCount)
}

func TestGenerate_NoEligibleUsage(t *testing.T) {
	// GIVEN: A month with no usage, then one with a record excluded from
	//        billing
	// WHEN: Generating
	// THEN: ErrNoUsage both times; nothing is written

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	_, err := agg.Generate(ctx, "fac-1", "2025-06")
	assert.ErrorIs(t, err, billing.ErrNoUsage)

	excluded := usedDay("u1", "child-a", "2025-06-02", "13:00")
	excluded.BillingTarget = false
	saveUsages(t, store, excluded)

	_, err = agg.Generate(ctx, "fac-1", "2025-06")
	assert.ErrorIs(t, err, billing.ErrNoUsage)

	stored, err := store.RecordsForMonth(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestGenerate_ReplacesDraftsOnly(t *testing.T) {
	// GIVEN: A generated month where child-a's record was confirmed
	// WHEN: Regenerating the same month
	// THEN: The confirmed record survives untouched; only drafts are
	//       replaced

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	saveUsages(t, store, usedDay("u1", "child-a", "2025-06-02", "13:00"))

	first, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	require.Len(t, first.Records, 1)
	confirmedID := first.Records[0].ID

	n, err := agg.Confirm(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Regenerate: the confirmed record must not be deleted.
	second, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.NotEqual(t, confirmedID, second.Records[0].ID)

	stored, err := store.RecordsForMonth(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	require.Len(t, stored, 2)

	byID := make(map[string]billing.BillingRecord)
	for _, r := range stored {
		byID[r.ID] = r
	}
	assert.Equal(t, billing.StatusConfirmed, byID[confirmedID].Status)
	assert.Equal(t, billing.StatusDraft, byID[second.Records[0].ID].Status)
}

func TestGenerate_RegenerationIsStable(t *testing.T) {
	// GIVEN: A generated draft month
	// WHEN: Generating again with unchanged usage
	// THEN: Still exactly one record per child, same totals

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	saveUsages(t, store,
		usedDay("u1", "child-a", "2025-06-02", "13:00"),
		usedDay("u2", "child-a", "2025-06-03", "13:00"),
	)

	first, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	second, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)

	assert.Equal(t, first.Records[0].TotalUnits, second.Records[0].TotalUnits)
	assert.Equal(t, first.Records[0].TotalAmount, second.Records[0].TotalAmount)

	stored, err := store.RecordsForMonth(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Len(t, stored, 1, "regeneration must replace drafts, not accumulate them")
}

// =============================================================================
// CONFIRMATION
// =============================================================================

func TestConfirm_NoDraftsIsNoOp(t *testing.T) {
	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	n, err := agg.Confirm(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConfirm_OnlyOnceEffective(t *testing.T) {
	// GIVEN: A confirmed month
	// WHEN: Confirming again
	// THEN: Zero records change the second time

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	saveUsages(t, store, usedDay("u1", "child-a", "2025-06-02", "13:00"))
	_, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)

	n, err := agg.Confirm(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = agg.Confirm(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// =============================================================================
// SERVICE-TYPE INFERENCE
// =============================================================================

func TestInferServiceType(t *testing.T) {
	am := func(start string) billing.UsageRecord {
		return billing.UsageRecord{ActualStart: start}
	}

	// AM majority classifies as child development support.
	assert.Equal(t, billing.ServiceChildDevelopment,
		billing.InferServiceType([]billing.UsageRecord{am("09:00"), am("10:30"), am("14:00")}))

	// A 50/50 split deterministically falls back to after-school.
	assert.Equal(t, billing.ServiceAfterSchoolDay,
		billing.InferServiceType([]billing.UsageRecord{am("09:00"), am("14:00")}))

	// No usable start times at all falls back too.
	assert.Equal(t, billing.ServiceAfterSchoolDay,
		billing.InferServiceType([]billing.UsageRecord{am(""), am("")}))
}

func TestGenerate_AMUsageBillsChildDevelopmentBase(t *testing.T) {
	// GIVEN: A child attending mornings only
	// WHEN: Generating
	// THEN: The record uses the child-development base reward (885 units)

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	saveUsages(t, store,
		usedDay("u1", "child-a", "2025-06-02", "09:00"),
		usedDay("u2", "child-a", "2025-06-03", "09:30"),
	)

	report, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	require.Len(t, report.Records, 1)

	assert.Equal(t, billing.ServiceChildDevelopment, report.Records[0].ServiceType)
	assert.Equal(t, 885*2, report.Records[0].TotalUnits)

	details, err := store.DetailsForRecord(ctx, report.Records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "611111", details[0].ServiceCode)
}

// =============================================================================
// DETAIL DERIVATION
// =============================================================================

func TestGenerate_TransportAdditions(t *testing.T) {
	// GIVEN: One day with both transport legs and one with pickup only
	// WHEN: Generating
	// THEN: Round-trip (54) and one-way (27) additions respectively

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	roundTrip := usedDay("u1", "child-a", "2025-06-02", "13:00")
	roundTrip.Pickup = true
	roundTrip.Dropoff = true
	oneWay := usedDay("u2", "child-a", "2025-06-03", "13:00")
	oneWay.Pickup = true
	saveUsages(t, store, roundTrip, oneWay)

	report, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, (604+54)+(604+27), report.Records[0].TotalUnits)

	details, err := store.DetailsForRecord(ctx, report.Records[0].ID)
	require.NoError(t, err)
	require.Len(t, details, 2)

	require.Len(t, details[0].Additions, 1)
	assert.Equal(t, "616702", details[0].Additions[0].Code)
	assert.Equal(t, 604+54, details[0].UnitCount)

	require.Len(t, details[1].Additions, 1)
	assert.Equal(t, "616701", details[1].Additions[0].Code)
	assert.Equal(t, 604+27, details[1].UnitCount)
}

func TestGenerate_AbsenceHandling(t *testing.T) {
	// GIVEN: One plain absence and one absence with the response addition
	// WHEN: Generating
	// THEN: The plain absence bills nothing; the other bills only the
	//       absence-response units (94)

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	plain := usedDay("u1", "child-a", "2025-06-02", "")
	plain.Status = billing.StatusAbsentNoAddition
	responded := usedDay("u2", "child-a", "2025-06-03", "")
	responded.Status = billing.StatusAbsenceAddition
	saveUsages(t, store, plain, responded)

	report, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, 94, report.Records[0].TotalUnits)

	details, err := store.DetailsForRecord(ctx, report.Records[0].ID)
	require.NoError(t, err)
	require.Len(t, details, 2)

	assert.True(t, details[0].IsAbsence)
	assert.Equal(t, "617101", details[0].ServiceCode)
	assert.Zero(t, details[0].UnitCount)
	assert.Empty(t, details[0].Additions)

	assert.True(t, details[1].IsAbsence)
	assert.Equal(t, 94, details[1].UnitCount)
	require.Len(t, details[1].Additions, 1)
	assert.Equal(t, "617101", details[1].Additions[0].Code)
}

func TestGenerate_AddonNameMatching(t *testing.T) {
	// GIVEN: A day with a free-form addon naming the extended-care entry
	// WHEN: Generating
	// THEN: The catalog entry's units (61) are added to that day

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	day := usedDay("u1", "child-a", "2025-06-02", "13:00")
	day.AddonNames = []string{"Extended care"}
	saveUsages(t, store, day)

	report, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Equal(t, 604+61, report.Records[0].TotalUnits)

	details, err := store.DetailsForRecord(ctx, report.Records[0].ID)
	require.NoError(t, err)
	require.Len(t, details[0].Additions, 1)
	assert.Equal(t, "612345", details[0].Additions[0].Code)
}

// =============================================================================
// COPAY EDGE CASES
// =============================================================================

func TestGenerate_UnknownIncomeCategoryWarns(t *testing.T) {
	// GIVEN: A child whose income category is not in the table
	// WHEN: Generating
	// THEN: The general ceiling applies and the run reports a warning

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	require.NoError(t, store.SaveChild(ctx, billing.Child{
		ID: "child-x", Name: "Mio", BeneficiaryNumber: "0000000003", IncomeCategory: "unknown_tier",
	}))
	saveUsages(t, store, usedDay("u1", "child-x", "2025-06-02", "13:00"))

	report, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Equal(t, int64(billing.GeneralCeiling), report.Records[0].UpperLimit)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "child-x", report.Warnings[0].ChildID)
	assert.Contains(t, report.Warnings[0].Message, "unknown_tier")
}

func TestGenerate_ZeroCeilingMeansNoCopay(t *testing.T) {
	// GIVEN: A welfare-household child
	// WHEN: Generating
	// THEN: Insurance funds everything

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	require.NoError(t, store.SaveChild(ctx, billing.Child{
		ID: "child-w", Name: "Yui", BeneficiaryNumber: "0000000004", IncomeCategory: billing.IncomeWelfare,
	}))
	saveUsages(t, store, usedDay("u1", "child-w", "2025-06-02", "13:00"))

	report, err := agg.Generate(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	rec := report.Records[0]
	assert.Zero(t, rec.CopayAmount)
	assert.Equal(t, rec.TotalAmount, rec.InsuranceAmount)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestGenerate_ConcurrentRunsDoNotAccumulate(t *testing.T) {
	// GIVEN: Ten concurrent generation runs for one (facility, month)
	// WHEN: All complete
	// THEN: Exactly one record per child remains

	agg, store := newTestAggregator(t)
	seedMasterData(t, store)
	ctx := context.Background()

	saveUsages(t, store,
		usedDay("u1", "child-a", "2025-06-02", "13:00"),
		usedDay("u2", "child-b", "2025-06-02", "13:00"),
	)

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := agg.Generate(ctx, "fac-1", "2025-06")
			errs <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-errs)
	}

	stored, err := store.RecordsForMonth(ctx, "fac-1", "2025-06")
	require.NoError(t, err)
	assert.Len(t, stored, 2, "expected one record per child")
}
