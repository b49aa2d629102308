package importer

import (
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseFile_CSV(t *testing.T) {
	data := []byte("Date,Description,Amount\n2024-01-15, Coffee ,4.50\n2024-01-16,Lunch,12.00\n")

	pf, err := ParseFile(data, "csv")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	wantHeaders := []string{"Date", "Description", "Amount"}
	if len(pf.Headers) != len(wantHeaders) {
		t.Fatalf("Headers = %v, want %v", pf.Headers, wantHeaders)
	}
	for i, h := range wantHeaders {
		if pf.Headers[i] != h {
			t.Errorf("Headers[%d] = %q, want %q", i, pf.Headers[i], h)
		}
	}

	if pf.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", pf.TotalRows)
	}

	// Cell values are trimmed
	if got := pf.Rows[0]["Description"]; got != "Coffee" {
		t.Errorf("Rows[0][Description] = %q, want %q", got, "Coffee")
	}
	if got := pf.Rows[1]["Amount"]; got != "12.00" {
		t.Errorf("Rows[1][Amount] = %q, want %q", got, "12.00")
	}
}

func TestParseFile_CSVWithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Date,Amount\n2024-01-01,5\n")...)

	pf, err := ParseFile(data, "csv")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if pf.Headers[0] != "Date" {
		t.Errorf("Headers[0] = %q, want %q (BOM not stripped)", pf.Headers[0], "Date")
	}
}

func TestParseFile_InvalidUTF8(t *testing.T) {
	data := []byte("Name,Amount\nCaf\xff,5\n")

	pf, err := ParseFile(data, "csv")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if got := pf.Rows[0]["Name"]; !strings.Contains(got, "�") {
		t.Errorf("Rows[0][Name] = %q, want replacement rune for invalid byte", got)
	}
}

func TestParseFile_EmptyHeaderCells(t *testing.T) {
	data := []byte("Date,,Amount\n2024-01-01,x,5\n")

	pf, err := ParseFile(data, "csv")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if pf.Headers[1] != "column_2" {
		t.Errorf("Headers[1] = %q, want %q", pf.Headers[1], "column_2")
	}
	if got := pf.Rows[0]["column_2"]; got != "x" {
		t.Errorf("Rows[0][column_2] = %q, want %q", got, "x")
	}
}

func TestParseFile_DuplicateHeaders(t *testing.T) {
	data := []byte("Amount,amount,Date\n1,2,2024-01-01\n")

	pf, err := ParseFile(data, "csv")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if len(pf.Headers) != 2 {
		t.Fatalf("Headers = %v, want 2 entries", pf.Headers)
	}
	if len(pf.Warnings) == 0 {
		t.Error("expected a duplicate-header warning")
	}
	// First occurrence wins
	if got := pf.Rows[0]["Amount"]; got != "1" {
		t.Errorf("Rows[0][Amount] = %q, want %q", got, "1")
	}
}

func TestParseFile_ShortRows(t *testing.T) {
	data := []byte("Date,Description,Amount\n2024-01-01,Rent\n")

	pf, err := ParseFile(data, "csv")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if got := pf.Rows[0]["Amount"]; got != "" {
		t.Errorf("missing cell = %q, want empty string", got)
	}
}

func TestParseFile_StructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"empty file", "", "csv"},
		{"headers only", "Date,Amount\n", "csv"},
		{"unsupported format", "a,b\n1,2\n", "pdf"},
		{"unreadable xlsx", "not a zip archive", "xlsx"},
		{"unreadable xls", "not a workbook", "xls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile([]byte(tt.data), tt.format)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsParseError(err) {
				t.Errorf("error %v is not a ParseError", err)
			}
		})
	}
}

func TestParseFile_SizeLimit(t *testing.T) {
	old := MaxFileSize
	MaxFileSize = 16
	defer func() { MaxFileSize = old }()

	_, err := ParseFile([]byte("Date,Amount\n2024-01-01,5.00\n"), "csv")
	if err == nil {
		t.Fatal("expected size limit error")
	}
	if !IsParseError(err) {
		t.Errorf("error %v is not a ParseError", err)
	}
}

func TestParseFile_XLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]any{
		{"Date", "Description", "Amount"},
		{"2024-01-15", "Coffee", "4.50"},
		{"2024-01-16", "Lunch", "12.00"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	pf, err := ParseFile(buf.Bytes(), "xlsx")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if pf.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", pf.TotalRows)
	}
	if got := pf.Rows[0]["Description"]; got != "Coffee" {
		t.Errorf("Rows[0][Description] = %q, want %q", got, "Coffee")
	}
}

func TestParseFile_FormatNormalization(t *testing.T) {
	data := []byte("Date,Amount\n2024-01-01,5\n")

	for _, format := range []string{"CSV", ".csv", " csv "} {
		if _, err := ParseFile(data, format); err != nil {
			t.Errorf("ParseFile(%q) error = %v", format, err)
		}
	}
}

func TestIsBlankRow(t *testing.T) {
	mapping := FieldMapping{"Date": FieldDate, "Amount": FieldAmount}

	tests := []struct {
		name string
		row  ParsedRow
		want bool
	}{
		{"all mapped empty", ParsedRow{"Date": "", "Amount": " ", "Note": "x"}, true},
		{"one mapped set", ParsedRow{"Date": "2024-01-01", "Amount": ""}, false},
		{"fully empty", ParsedRow{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBlankRow(tt.row, mapping); got != tt.want {
				t.Errorf("isBlankRow() = %v, want %v", got, tt.want)
			}
		})
	}
}
