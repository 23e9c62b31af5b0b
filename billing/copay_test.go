package billing_test

import (
	"testing"

	"github.com/careflow/billing-engine/billing"
)

func TestCeilingFor(t *testing.T) {
	// GIVEN: The statutory four-tier table
	// WHEN: Looking up each category plus an unknown one
	// THEN: Known categories map to their ceilings; unknown falls back to
	//       the general tier and reports it

	table := billing.DefaultCopayTable()

	cases := []struct {
		category string
		ceiling  int64
		known    bool
	}{
		{billing.IncomeGeneral, 37200, true},
		{billing.IncomeGeneralLow, 4600, true},
		{billing.IncomeLow, 0, true},
		{billing.IncomeWelfare, 0, true},
		{"mystery", 37200, false},
		{"", 37200, false},
	}
	for _, c := range cases {
		ceiling, known := table.CeilingFor(c.category)
		if ceiling != c.ceiling || known != c.known {
			t.Errorf("CeilingFor(%q) = (%d, %v), want (%d, %v)",
				c.category, ceiling, known, c.ceiling, c.known)
		}
	}
}

func TestCopay(t *testing.T) {
	// 10% share, floored, capped by the ceiling.
	if got := billing.Copay(100000, 37200); got != 10000 {
		t.Errorf("expected 10%% share 10000, got %d", got)
	}
	// Fractional share floors.
	if got := billing.Copay(12345, 37200); got != 1234 {
		t.Errorf("expected floored share 1234, got %d", got)
	}
	// Ceiling caps the share.
	if got := billing.Copay(500000, 4600); got != 4600 {
		t.Errorf("expected ceiling 4600, got %d", got)
	}
	// Zero ceiling means no copay at all.
	if got := billing.Copay(500000, 0); got != 0 {
		t.Errorf("expected zero copay for zero ceiling, got %d", got)
	}
}

func TestSplit_SumsToTotal(t *testing.T) {
	// GIVEN: A range of totals across all ceilings
	// WHEN: Splitting into copay and insurance
	// THEN: The two portions always sum back to the total

	totals := []int64{0, 1, 999, 12345, 139200, 500000}
	ceilings := []int64{0, 4600, 37200}

	for _, total := range totals {
		for _, ceiling := range ceilings {
			copay, insurance := billing.Split(total, ceiling)
			if copay+insurance != total {
				t.Errorf("Split(%d, %d) = %d + %d, does not sum to total",
					total, ceiling, copay, insurance)
			}
			if copay > ceiling && ceiling > 0 {
				t.Errorf("Split(%d, %d) copay %d exceeds ceiling", total, ceiling, copay)
			}
		}
	}
}

func TestUnitPriceForRegion(t *testing.T) {
	// Grade 1 is the most expensive region.
	if got := billing.UnitPriceForRegion(1); got.String() != "11.12" {
		t.Errorf("expected 11.12 for grade 1, got %s", got)
	}
	// Grades 7 and 8 share the 10.00 rate.
	for _, grade := range []int{7, 8} {
		if got := billing.UnitPriceForRegion(grade); got.String() != "10" {
			t.Errorf("expected 10 for grade %d, got %s", grade, got)
		}
	}
	// Ungraded regions use the default rate.
	if got := billing.UnitPriceForRegion(0); !got.Equal(billing.DefaultUnitPrice) {
		t.Errorf("expected default rate for grade 0, got %s", got)
	}
	if got := billing.UnitPriceForRegion(99); !got.Equal(billing.DefaultUnitPrice) {
		t.Errorf("expected default rate for grade 99, got %s", got)
	}
}
