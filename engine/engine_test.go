package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/careflow/billing-engine/catalog"
	"github.com/careflow/billing-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func intp(n int) *int { return &n }

func ratep(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

// testCatalog returns a small slice of the real catalog, in catalog order.
func testCatalog() []catalog.Addition {
	return []catalog.Addition{
		{Code: "staff_allocation_1_fulltime", Name: "Senior staff allocation I (full-time)", UnitValue: intp(187), MaxPerDay: 1},
		{Code: "staff_allocation_1_convert", Name: "Senior staff allocation I (converted)", UnitValue: intp(123), MaxPerDay: 1},
		{Code: "staff_allocation_2_fulltime", Name: "Senior staff allocation II (full-time)", UnitValue: intp(152), MaxPerDay: 1},
		{Code: "treatment_improvement_1", Name: "Treatment improvement I", IsPercentage: true, PercentageRate: ratep(14), MaxPerDay: 1},
		{Code: "extension_1h", Name: "Extended hours (1h)", UnitValue: intp(61), MaxPerDay: 1},
		{Code: "extension_2h", Name: "Extended hours (2h)", UnitValue: intp(92), MaxPerDay: 1},
		{Code: "specialist_support", Name: "Specialist support", UnitValue: intp(187), MaxPerMonth: intp(4), MaxPerDay: 1},
		{Code: "behavior_support_1", Name: "Behavior support I", UnitValue: intp(96), MaxPerDay: 1},
		{Code: "individual_support_2", Name: "Individual support II", UnitValue: intp(150), MaxPerDay: 1},
		{Code: "transport", Name: "Transport", UnitValue: intp(54), MaxPerDay: 2},
	}
}

func selections(codes ...string) []catalog.AdditionSelection {
	out := make([]catalog.AdditionSelection, 0, len(codes))
	for _, c := range codes {
		out = append(out, catalog.AdditionSelection{Code: c, Enabled: true})
	}
	return out
}

func enabledCodes(sels []catalog.AdditionSelection) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sels {
		if s.Enabled {
			out[s.Code] = true
		}
	}
	return out
}

func seniorStaff() []engine.Staff {
	return []engine.Staff{
		{ID: "s1", Name: "Sato", YearsOfExperience: 8, EmploymentType: "fulltime", Active: true},
		{ID: "s2", Name: "Tanaka", YearsOfExperience: 2, EmploymentType: "parttime", Active: true},
	}
}

// =============================================================================
// EXCLUSIVITY RESOLVER
// =============================================================================

func TestResolveExclusiveGroups_HighestUnitValueWins(t *testing.T) {
	// GIVEN: Both senior-staff allocation tiers I enabled (187 and 123 units)
	// WHEN: Resolving exclusivity
	// THEN: The 187-unit tier survives, the 123-unit tier is demoted with
	//       one conflict warning

	cfg := catalog.DefaultRuleConfig()
	sels := selections("staff_allocation_1_fulltime", "staff_allocation_1_convert")

	resolved, warnings := engine.ResolveExclusiveGroups(sels, testCatalog(), cfg)

	enabled := enabledCodes(resolved)
	if !enabled["staff_allocation_1_fulltime"] {
		t.Error("expected the 187-unit tier to stay enabled")
	}
	if enabled["staff_allocation_1_convert"] {
		t.Error("expected the 123-unit tier to be demoted")
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one conflict warning, got %d", len(warnings))
	}
	if warnings[0].Type != engine.WarnExclusiveConflict || warnings[0].Severity != engine.SeverityWarning {
		t.Errorf("unexpected warning shape: %+v", warnings[0])
	}
	if warnings[0].AdditionCode != "staff_allocation_1_convert" {
		t.Errorf("expected warning on the demoted code, got %s", warnings[0].AdditionCode)
	}
}

func TestResolveExclusiveGroups_Idempotent(t *testing.T) {
	// GIVEN: A selection set already resolved once
	// WHEN: Resolving again
	// THEN: Nothing changes and no new warnings appear

	cfg := catalog.DefaultRuleConfig()
	sels := selections("staff_allocation_1_fulltime", "staff_allocation_1_convert", "extension_2h")

	once, _ := engine.ResolveExclusiveGroups(sels, testCatalog(), cfg)
	twice, warnings := engine.ResolveExclusiveGroups(once, testCatalog(), cfg)

	if len(warnings) != 0 {
		t.Errorf("expected no warnings on second pass, got %d", len(warnings))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("selection %d changed on second pass: %+v != %+v", i, once[i], twice[i])
		}
	}
}

func TestResolveExclusiveGroups_TieBreaksByCatalogOrder(t *testing.T) {
	// GIVEN: Two enabled group members with equal unit values
	// WHEN: Resolving
	// THEN: The one appearing first in the catalog wins

	cfg := &catalog.RuleConfig{
		ExclusiveGroups: map[string][]string{"g": {"b_second", "a_first"}},
	}
	additions := []catalog.Addition{
		{Code: "a_first", Name: "A", UnitValue: intp(100)},
		{Code: "b_second", Name: "B", UnitValue: intp(100)},
	}

	resolved, _ := engine.ResolveExclusiveGroups(selections("b_second", "a_first"), additions, cfg)

	enabled := enabledCodes(resolved)
	if !enabled["a_first"] || enabled["b_second"] {
		t.Errorf("expected catalog-order tie-break to keep a_first, got %v", enabled)
	}
}

func TestResolveExclusiveGroups_SingleMemberUntouched(t *testing.T) {
	// GIVEN: Only one enabled member of a group
	// WHEN: Resolving
	// THEN: No demotion, no warnings

	cfg := catalog.DefaultRuleConfig()
	resolved, warnings := engine.ResolveExclusiveGroups(
		selections("extension_2h"), testCatalog(), cfg)

	if !enabledCodes(resolved)["extension_2h"] {
		t.Error("expected lone group member to stay enabled")
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %d", len(warnings))
	}
}

func TestBestInGroup(t *testing.T) {
	// GIVEN: The senior-staff allocation group with two tiers enabled
	// WHEN: Picking the best member directly
	// THEN: The highest unit value wins; a group with one enabled member
	//       reports nothing to resolve

	group := []string{"staff_allocation_1_fulltime", "staff_allocation_1_convert", "staff_allocation_2_fulltime"}

	best := engine.BestInGroup(group,
		selections("staff_allocation_1_fulltime", "staff_allocation_1_convert"), testCatalog())
	if best != "staff_allocation_1_fulltime" {
		t.Errorf("expected the 187-unit tier, got %q", best)
	}

	if best := engine.BestInGroup(group, selections("staff_allocation_1_convert"), testCatalog()); best != "" {
		t.Errorf("expected nothing to resolve for a lone member, got %q", best)
	}
}

// =============================================================================
// PERIOD-LIMIT ENFORCER
// =============================================================================

func TestApplyMonthlyLimits_ClampsToCapWithInfoWarning(t *testing.T) {
	// GIVEN: Specialist support (cap 4/month) requested for 20 business days
	// WHEN: Applying limits
	// THEN: Clamped to 4 with one info-severity warning

	cfg := catalog.DefaultRuleConfig()
	limited, warnings := engine.ApplyMonthlyLimits(
		selections("specialist_support"), testCatalog(), cfg, 20)

	if got := limited[0].CustomOccurrences; got != 4 {
		t.Errorf("expected clamp to 4, got %d", got)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one over-limit warning, got %d", len(warnings))
	}
	if warnings[0].Type != engine.WarnOverLimit || warnings[0].Severity != engine.SeverityInfo {
		t.Errorf("unexpected warning shape: %+v", warnings[0])
	}
}

func TestApplyMonthlyLimits_NeverIncreases(t *testing.T) {
	// GIVEN: A request already below the cap
	// WHEN: Applying limits
	// THEN: The request passes through unchanged

	cfg := catalog.DefaultRuleConfig()
	sels := []catalog.AdditionSelection{
		{Code: "specialist_support", Enabled: true, CustomOccurrences: 2},
	}

	limited, warnings := engine.ApplyMonthlyLimits(sels, testCatalog(), cfg, 20)

	if got := limited[0].CustomOccurrences; got != 2 {
		t.Errorf("expected 2 to pass through, got %d", got)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %d", len(warnings))
	}
}

func TestApplyMonthlyLimits_UncappedPassThrough(t *testing.T) {
	cfg := catalog.DefaultRuleConfig()
	limited, warnings := engine.ApplyMonthlyLimits(
		selections("extension_2h"), testCatalog(), cfg, 20)

	if got := limited[0].CustomOccurrences; got != 0 {
		t.Errorf("expected uncapped selection untouched, got %d", got)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %d", len(warnings))
	}
}

// =============================================================================
// ELIGIBILITY CHECKER
// =============================================================================

func TestCheckRequirements_StaffAllocationHardGates(t *testing.T) {
	// GIVEN: Senior-staff allocation I enabled with no experienced staff
	//        and under 1.0 FTE
	// WHEN: Checking requirements
	// THEN: Two error-severity warnings (experience and FTE)

	cfg := catalog.DefaultRuleConfig()
	staff := []engine.Staff{
		{ID: "s1", YearsOfExperience: 2, EmploymentType: "parttime", Active: true},
	}

	warnings := engine.CheckRequirements(
		selections("staff_allocation_1_fulltime"), testCatalog(), staff, nil, cfg)

	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %+v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if w.Severity != engine.SeverityError {
			t.Errorf("expected error severity, got %s: %s", w.Severity, w.Message)
		}
	}
}

func TestCheckRequirements_StaffAllocationSatisfied(t *testing.T) {
	// GIVEN: An experienced full-timer on staff
	// WHEN: Checking requirements
	// THEN: No warnings

	cfg := catalog.DefaultRuleConfig()
	warnings := engine.CheckRequirements(
		selections("staff_allocation_1_fulltime"), testCatalog(), seniorStaff(), nil, cfg)

	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %+v", warnings)
	}
}

func TestCheckRequirements_SpecialistNeedsQualification(t *testing.T) {
	// GIVEN: Specialist support enabled with no therapist on staff
	// WHEN: Checking requirements
	// THEN: One error-severity warning; adding an OT clears it

	cfg := catalog.DefaultRuleConfig()
	unqualified := []engine.Staff{{ID: "s1", Qualifications: []string{"NURSE"}, Active: true}}

	warnings := engine.CheckRequirements(
		selections("specialist_support"), testCatalog(), unqualified, nil, cfg)
	if len(warnings) != 1 || warnings[0].Severity != engine.SeverityError {
		t.Fatalf("expected one error warning, got %+v", warnings)
	}

	qualified := append(unqualified, engine.Staff{
		ID: "s2", Qualifications: []string{catalog.QualOccupationalTherapist}, Active: true,
	})
	warnings = engine.CheckRequirements(
		selections("specialist_support"), testCatalog(), qualified, nil, cfg)
	if len(warnings) != 0 {
		t.Errorf("expected no warnings with an OT on staff, got %+v", warnings)
	}
}

func TestCheckRequirements_BehaviorSupportScoreGate(t *testing.T) {
	// GIVEN: Behavior support enabled, no child at or above score 20
	// WHEN: Checking requirements
	// THEN: Warning severity (population gate, does not block submission)

	cfg := catalog.DefaultRuleConfig()
	children := []engine.Child{{ID: "c1", BehaviorDisorderScore: 12}}

	warnings := engine.CheckRequirements(
		selections("behavior_support_1"), testCatalog(), seniorStaff(), children, cfg)
	if len(warnings) != 1 || warnings[0].Severity != engine.SeverityWarning {
		t.Fatalf("expected one warning-severity diagnostic, got %+v", warnings)
	}

	children = append(children, engine.Child{ID: "c2", BehaviorDisorderScore: 20})
	warnings = engine.CheckRequirements(
		selections("behavior_support_1"), testCatalog(), seniorStaff(), children, cfg)
	if len(warnings) != 0 {
		t.Errorf("expected score 20 to satisfy the gate, got %+v", warnings)
	}
}

func TestCheckRequirements_IndividualSupport2NeedsProtectedChild(t *testing.T) {
	cfg := catalog.DefaultRuleConfig()

	warnings := engine.CheckRequirements(
		selections("individual_support_2"), testCatalog(), seniorStaff(),
		[]engine.Child{{ID: "c1"}}, cfg)
	if len(warnings) != 1 || warnings[0].Severity != engine.SeverityWarning {
		t.Fatalf("expected one warning-severity diagnostic, got %+v", warnings)
	}

	warnings = engine.CheckRequirements(
		selections("individual_support_2"), testCatalog(), seniorStaff(),
		[]engine.Child{{ID: "c1", ProtectedChild: true}}, cfg)
	if len(warnings) != 0 {
		t.Errorf("expected protected child to satisfy the gate, got %+v", warnings)
	}
}

// =============================================================================
// STAFFING MATH
// =============================================================================

func TestFTE_DefaultsAndInactives(t *testing.T) {
	// GIVEN: A full-timer with unknown hours, a part-timer with unknown
	//        hours, and an inactive full-timer
	// WHEN: Computing the full-time equivalent
	// THEN: 1.0 + 0.5 + 0 = 1.5

	staff := []engine.Staff{
		{ID: "s1", EmploymentType: "fulltime", Active: true},
		{ID: "s2", EmploymentType: "parttime", Active: true},
		{ID: "s3", EmploymentType: "fulltime", Active: false},
	}

	if got := engine.FTE(staff); !got.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("expected FTE 1.5, got %s", got)
	}
}

func TestFTE_ExplicitHours(t *testing.T) {
	staff := []engine.Staff{
		{ID: "s1", EmploymentType: "parttime", WeeklyHours: 30, Active: true},
	}
	if got := engine.FTE(staff); !got.Equal(decimal.NewFromFloat(0.75)) {
		t.Errorf("expected FTE 0.75 for 30/40 hours, got %s", got)
	}
}

// =============================================================================
// SUGGESTION GENERATOR
// =============================================================================

func TestGenerateSuggestions_SpecialistAndTransport(t *testing.T) {
	// GIVEN: An OT on staff, nothing enabled yet
	// WHEN: Generating suggestions
	// THEN: Specialist support (high, capped at 4 occurrences) sorts before
	//       transport (medium, round trip over the business-day assumption)

	cfg := catalog.DefaultRuleConfig()
	staff := []engine.Staff{
		{ID: "s1", Qualifications: []string{catalog.QualOccupationalTherapist}, Active: true},
	}

	suggestions := engine.GenerateSuggestions(staff, nil, testCatalog(), cfg)

	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %+v", len(suggestions), suggestions)
	}
	if suggestions[0].AdditionCode != "specialist_support" || suggestions[0].Priority != engine.PriorityHigh {
		t.Errorf("expected specialist_support first with high priority, got %+v", suggestions[0])
	}
	if got := suggestions[0].PotentialUnits; got != 187*4 {
		t.Errorf("expected potential units capped at 187*4, got %d", got)
	}
	if suggestions[1].AdditionCode != "transport" || suggestions[1].Priority != engine.PriorityMedium {
		t.Errorf("expected transport second with medium priority, got %+v", suggestions[1])
	}
	if got := suggestions[1].PotentialUnits; got != 54*2*22 {
		t.Errorf("expected round-trip transport estimate 54*2*22, got %d", got)
	}
}

func TestGenerateSuggestions_NeverSuggestsEnabled(t *testing.T) {
	// GIVEN: Specialist support and transport already enabled
	// WHEN: Generating suggestions with a qualified, experienced team
	// THEN: Only the staff-allocation proposal remains

	cfg := catalog.DefaultRuleConfig()
	staff := []engine.Staff{
		{ID: "s1", Qualifications: []string{catalog.QualPhysicalTherapist},
			YearsOfExperience: 7, EmploymentType: "fulltime", Active: true},
	}

	suggestions := engine.GenerateSuggestions(staff,
		selections("specialist_support", "transport"), testCatalog(), cfg)

	if len(suggestions) != 1 || suggestions[0].AdditionCode != "staff_allocation_1_fulltime" {
		t.Fatalf("expected only the staff-allocation suggestion, got %+v", suggestions)
	}
}
