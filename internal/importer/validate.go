package importer

// validate.go checks mapped rows for structural and semantic correctness
// before extraction.
//
// Rules:
//   - amount and description are always required
//   - date is additionally required for income records
//   - amount must parse to a finite number > 0
//   - an unparsable date is an error; a future date is only a warning
//   - an expense row carrying neither category nor vendor gets a warning
//
// Rows that are empty across every mapped column are silently excluded.
// Row numbers in errors and warnings are 1-based and header-offset adjusted,
// so the first data row is row 2.

import (
	"fmt"
	"time"
)

// headerOffset converts a 0-based data row index into the spreadsheet row
// number users see (1-based, after the header row).
const headerOffset = 2

// ValidationReport is the outcome of validating a full row set.
type ValidationReport struct {
	Valid    bool         `json:"isValid"`
	RowCount int          `json:"rowCount"`
	Errors   []RowError   `json:"errors"`
	Warnings []RowWarning `json:"warnings"`
}

// ValidateRows validates every non-blank row against the confirmed mapping.
// Valid is false iff at least one error was found.
func ValidateRows(rows []ParsedRow, mapping FieldMapping, recordType RecordType, opts ImportOptions) ValidationReport {
	report := ValidationReport{Valid: true}

	for i, row := range rows {
		if isBlankRow(row, mapping) {
			continue
		}
		report.RowCount++

		errs, warns := validateRow(row, i+headerOffset, mapping, recordType, opts)
		report.Errors = append(report.Errors, errs...)
		report.Warnings = append(report.Warnings, warns...)
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// validateRow checks a single row. rowNum is the adjusted spreadsheet row
// number used for attribution.
func validateRow(row ParsedRow, rowNum int, mapping FieldMapping, recordType RecordType, opts ImportOptions) ([]RowError, []RowWarning) {
	var errs []RowError
	var warns []RowWarning

	value := func(field string) string {
		col := mapping.ColumnFor(field)
		if col == "" {
			return ""
		}
		return row[col]
	}

	if desc := value(FieldDescription); desc == "" {
		errs = append(errs, RowError{Row: rowNum, Field: FieldDescription, Message: "description is required"})
	}

	amount := value(FieldAmount)
	if amount == "" {
		errs = append(errs, RowError{Row: rowNum, Field: FieldAmount, Message: "amount is required"})
	} else if _, err := ParseAmount(amount); err != nil {
		errs = append(errs, RowError{Row: rowNum, Field: FieldAmount, Message: err.Error(), Value: amount})
	}

	date := value(FieldDate)
	switch {
	case date == "" && recordType == RecordIncome:
		errs = append(errs, RowError{Row: rowNum, Field: FieldDate, Message: "date is required for income records"})
	case date != "":
		t, err := ParseDate(date, opts.DateFormat)
		if err != nil {
			errs = append(errs, RowError{Row: rowNum, Field: FieldDate, Message: err.Error(), Value: date})
		} else if t.After(time.Now()) {
			warns = append(warns, RowWarning{Row: rowNum, Field: FieldDate, Message: fmt.Sprintf("date %s is in the future", t.Format("2006-01-02")), Value: date})
		}
	}

	if recordType == RecordExpense && value(FieldCategory) == "" && value(FieldVendor) == "" {
		warns = append(warns, RowWarning{Row: rowNum, Message: "expense row has neither category nor vendor"})
	}

	return errs, warns
}
