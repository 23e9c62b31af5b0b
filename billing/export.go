/*
export.go - Government-submission CSV

PURPOSE:
  Renders a period's billing records into the row-oriented submission
  format: one header row (record type 1) identifying the facility and
  period, one detail row (type 2) per child record, and one trailer row
  (type 3) carrying the totals the receiving side reconciles against.

FORMAT:
  type 1: 1, facility code, facility name, YYYYMM, record count
  type 2: 2, beneficiary number, child name, service type, total units,
          unit price, total amount, copay, insurance amount, ceiling,
          status
  type 3: 3, record count, insurance total, copay total, grand total
*/
package billing

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExportCSV writes the submission CSV for one facility/period. Records
// are rendered in the order given; the caller decides sorting. An empty
// record set writes nothing and returns nil.
func ExportCSV(w io.Writer, facility Facility, yearMonth string, records []BillingRecord) error {
	if len(records) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)

	period := strings.ReplaceAll(yearMonth, "-", "")
	if err := cw.Write([]string{
		"1",
		facility.Code,
		facility.Name,
		period,
		strconv.Itoa(len(records)),
	}); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	var insuranceTotal, copayTotal int64
	for _, rec := range records {
		insuranceTotal += rec.InsuranceAmount
		copayTotal += rec.CopayAmount

		if err := cw.Write([]string{
			"2",
			rec.BeneficiaryNumber,
			rec.ChildName,
			rec.ServiceType,
			strconv.Itoa(rec.TotalUnits),
			rec.UnitPrice,
			strconv.FormatInt(rec.TotalAmount, 10),
			strconv.FormatInt(rec.CopayAmount, 10),
			strconv.FormatInt(rec.InsuranceAmount, 10),
			strconv.FormatInt(rec.UpperLimit, 10),
			string(rec.Status),
		}); err != nil {
			return fmt.Errorf("failed to write detail row: %w", err)
		}
	}

	if err := cw.Write([]string{
		"3",
		strconv.Itoa(len(records)),
		strconv.FormatInt(insuranceTotal, 10),
		strconv.FormatInt(copayTotal, 10),
		strconv.FormatInt(insuranceTotal+copayTotal, 10),
	}); err != nil {
		return fmt.Errorf("failed to write trailer row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
