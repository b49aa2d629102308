package importer

import (
	"strings"
	"testing"
	"time"
)

var testMapping = FieldMapping{
	"Date":        FieldDate,
	"Description": FieldDescription,
	"Amount":      FieldAmount,
	"Category":    FieldCategory,
	"Vendor":      FieldVendor,
}

func expenseRow(overrides map[string]string) ParsedRow {
	row := ParsedRow{
		"Date":        "15/01/2024",
		"Description": "Office supplies",
		"Amount":      "49.99",
		"Category":    "Office",
		"Vendor":      "Staples",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func TestValidateRows_Valid(t *testing.T) {
	rows := []ParsedRow{expenseRow(nil), expenseRow(map[string]string{"Amount": "$1,234.56"})}

	report := ValidateRows(rows, testMapping, RecordExpense, ImportOptions{})

	if !report.Valid {
		t.Errorf("Valid = false, errors: %v", report.Errors)
	}
	if report.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", report.RowCount)
	}
}

func TestValidateRows_RequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		row       ParsedRow
		rt        RecordType
		wantField string
	}{
		{"missing description", expenseRow(map[string]string{"Description": ""}), RecordExpense, FieldDescription},
		{"missing amount", expenseRow(map[string]string{"Amount": ""}), RecordExpense, FieldAmount},
		{"invalid amount", expenseRow(map[string]string{"Amount": "-5"}), RecordExpense, FieldAmount},
		{"zero amount", expenseRow(map[string]string{"Amount": "0"}), RecordExpense, FieldAmount},
		{"income missing date", expenseRow(map[string]string{"Date": ""}), RecordIncome, FieldDate},
		{"invalid date", expenseRow(map[string]string{"Date": "13/13/2024"}), RecordExpense, FieldDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ValidateRows([]ParsedRow{tt.row}, testMapping, tt.rt, ImportOptions{})

			if report.Valid {
				t.Fatal("Valid = true, want false")
			}
			found := false
			for _, e := range report.Errors {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %q, errors: %v", tt.wantField, report.Errors)
			}
		})
	}
}

func TestValidateRows_ExpenseWithoutDateIsValid(t *testing.T) {
	row := expenseRow(map[string]string{"Date": ""})

	report := ValidateRows([]ParsedRow{row}, testMapping, RecordExpense, ImportOptions{})

	if !report.Valid {
		t.Errorf("Valid = false, errors: %v", report.Errors)
	}
}

func TestValidateRows_FutureDateWarns(t *testing.T) {
	future := time.Now().AddDate(1, 0, 0).Format("02/01/2006")
	row := expenseRow(map[string]string{"Date": future})

	report := ValidateRows([]ParsedRow{row}, testMapping, RecordExpense, ImportOptions{})

	if !report.Valid {
		t.Fatalf("future date should warn, not error: %v", report.Errors)
	}
	if len(report.Warnings) == 0 {
		t.Fatal("expected a future-date warning")
	}
	if !strings.Contains(report.Warnings[0].Message, "future") {
		t.Errorf("warning = %q, want mention of future", report.Warnings[0].Message)
	}
}

func TestValidateRows_ExpenseWithoutReferencesWarns(t *testing.T) {
	row := expenseRow(map[string]string{"Category": "", "Vendor": ""})

	report := ValidateRows([]ParsedRow{row}, testMapping, RecordExpense, ImportOptions{})

	if !report.Valid {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want exactly one", report.Warnings)
	}
}

func TestValidateRows_BlankRowsSkipped(t *testing.T) {
	rows := []ParsedRow{
		expenseRow(nil),
		{"Date": "", "Description": "", "Amount": "", "Category": "", "Vendor": ""},
		expenseRow(nil),
	}

	report := ValidateRows(rows, testMapping, RecordExpense, ImportOptions{})

	if report.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2 (blank row excluded)", report.RowCount)
	}
	if !report.Valid {
		t.Errorf("Valid = false, errors: %v", report.Errors)
	}
}

func TestValidateRows_RowNumbering(t *testing.T) {
	rows := []ParsedRow{
		expenseRow(nil),
		expenseRow(map[string]string{"Amount": "bogus"}),
	}

	report := ValidateRows(rows, testMapping, RecordExpense, ImportOptions{})

	if len(report.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", report.Errors)
	}
	// Second data row sits on spreadsheet row 3 (row 1 is the header).
	if report.Errors[0].Row != 3 {
		t.Errorf("error Row = %d, want 3", report.Errors[0].Row)
	}
}

func TestValidateRows_ExplicitDateFormat(t *testing.T) {
	row := expenseRow(map[string]string{"Date": "2024/01/15"})

	report := ValidateRows([]ParsedRow{row}, testMapping, RecordExpense, ImportOptions{DateFormat: "2006/01/02"})
	if !report.Valid {
		t.Errorf("Valid = false with explicit format, errors: %v", report.Errors)
	}

	report = ValidateRows([]ParsedRow{row}, testMapping, RecordExpense, ImportOptions{})
	if report.Valid {
		t.Error("Valid = true without explicit format, want false")
	}
}
