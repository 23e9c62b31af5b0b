package billing_test

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/careflow/billing-engine/billing"
)

func exportFixture() (billing.Facility, []billing.BillingRecord) {
	facility := billing.Facility{
		ID: "fac-1", Name: "Sunny Side", Code: "1310000001", RegionGrade: 7,
	}
	records := []billing.BillingRecord{
		{
			BeneficiaryNumber: "0000000001",
			ChildName:         "Aoi",
			ServiceType:       billing.ServiceAfterSchoolDay,
			TotalUnits:        12080,
			UnitPrice:         "10",
			TotalAmount:       120800,
			CopayAmount:       4600,
			InsuranceAmount:   116200,
			UpperLimit:        4600,
			Status:            billing.StatusConfirmed,
		},
		{
			BeneficiaryNumber: "0000000002",
			ChildName:         "Ren",
			ServiceType:       billing.ServiceChildDevelopment,
			TotalUnits:        1770,
			UnitPrice:         "10",
			TotalAmount:       17700,
			CopayAmount:       1770,
			InsuranceAmount:   15930,
			UpperLimit:        37200,
			Status:            billing.StatusDraft,
		},
	}
	return facility, records
}

func TestExportCSV_RowLayout(t *testing.T) {
	// GIVEN: Two billing records for 2025-06
	// WHEN: Exporting
	// THEN: One header, one detail per record, one trailer with
	//       reconciliation totals

	facility, records := exportFixture()
	var buf bytes.Buffer

	if err := billing.ExportCSV(&buf, facility, "2025-06", records); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}

	reader := csv.NewReader(&buf)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("export produced invalid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows (header + 2 details + trailer), got %d", len(rows))
	}

	header := rows[0]
	wantHeader := []string{"1", "1310000001", "Sunny Side", "202506", "2"}
	for i := range wantHeader {
		if header[i] != wantHeader[i] {
			t.Errorf("header field %d = %q, want %q", i, header[i], wantHeader[i])
		}
	}

	detail := rows[1]
	wantDetail := []string{
		"2", "0000000001", "Aoi", "after_school_day",
		"12080", "10", "120800", "4600", "116200", "4600", "confirmed",
	}
	if len(detail) != len(wantDetail) {
		t.Fatalf("expected %d detail fields, got %d", len(wantDetail), len(detail))
	}
	for i := range wantDetail {
		if detail[i] != wantDetail[i] {
			t.Errorf("detail field %d = %q, want %q", i, detail[i], wantDetail[i])
		}
	}

	trailer := rows[3]
	// insurance 116200+15930, copay 4600+1770, grand total = their sum
	wantTrailer := []string{"3", "2", "132130", "6370", "138500"}
	for i := range wantTrailer {
		if trailer[i] != wantTrailer[i] {
			t.Errorf("trailer field %d = %q, want %q", i, trailer[i], wantTrailer[i])
		}
	}
}

func TestExportCSV_EmptyPeriodWritesNothing(t *testing.T) {
	facility, _ := exportFixture()
	var buf bytes.Buffer

	if err := billing.ExportCSV(&buf, facility, "2025-06", nil); err != nil {
		t.Fatalf("unexpected error for empty period: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty period, got %q", buf.String())
	}
}

func TestExportCSV_PreservesRecordOrder(t *testing.T) {
	// The exporter renders records as given; sorting is the caller's job.
	facility, records := exportFixture()
	records[0], records[1] = records[1], records[0]

	var buf bytes.Buffer
	if err := billing.ExportCSV(&buf, facility, "2025-06", records); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}

	reader := csv.NewReader(&buf)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("export produced invalid CSV: %v", err)
	}
	if rows[1][1] != "0000000002" || rows[2][1] != "0000000001" {
		t.Errorf("expected caller order preserved, got %q then %q", rows[1][1], rows[2][1])
	}
}
