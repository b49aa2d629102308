package importer

// parser.go converts raw spreadsheet bytes into an ordered header list and a
// set of trimmed, string-keyed rows.
//
// Supported formats:
//   - csv: comma-delimited with a required header row
//   - xlsx: first worksheet, first row = headers
//   - xls: legacy BIFF workbooks, same layout as xlsx
//
// Parsing is pure and deterministic for identical input bytes. Structural
// problems (unsupported format, no headers, no data rows, unreadable file)
// are fatal ParseErrors; minor per-row oddities become warnings.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// MaxFileSize is the maximum allowed spreadsheet size (100MB).
var MaxFileSize int64 = 100 * 1024 * 1024

// ParseFile parses file bytes in the declared format ("csv", "xlsx" or
// "xls") into headers and rows. The returned error, when non-nil, is always
// a *ParseError.
func ParseFile(data []byte, format string) (*ParsedFile, error) {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))

	if int64(len(data)) > MaxFileSize {
		return nil, &ParseError{Format: format, Reason: fmt.Sprintf("file exceeds %dMB limit", MaxFileSize/(1024*1024))}
	}

	var (
		records [][]string
		err     error
	)
	switch format {
	case "csv":
		records, err = parseCSV(sanitizeUTF8(stripBOM(data)))
	case "xlsx":
		records, err = parseXLSX(data)
	case "xls":
		records, err = parseXLS(data)
	default:
		return nil, &ParseError{Format: format, Reason: "unsupported file format"}
	}
	if err != nil {
		return nil, &ParseError{Format: format, Reason: "unreadable file", Err: err}
	}

	return buildParsedFile(records)
}

// buildParsedFile turns raw records into the header list and keyed rows.
// The first record is the header row; empty header cells get positional
// names and duplicate header names keep the first occurrence only.
func buildParsedFile(records [][]string) (*ParsedFile, error) {
	if len(records) == 0 {
		return nil, &ParseError{Reason: "file has no header row"}
	}

	pf := &ParsedFile{}

	seen := make(map[string]bool)
	cols := make([]int, 0, len(records[0])) // source column index per kept header
	for i, h := range records[0] {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if seen[strings.ToLower(name)] {
			pf.Warnings = append(pf.Warnings, fmt.Sprintf("duplicate header %q: keeping first occurrence, dropping column %d", name, i+1))
			continue
		}
		seen[strings.ToLower(name)] = true
		pf.Headers = append(pf.Headers, name)
		cols = append(cols, i)
	}

	if len(pf.Headers) == 0 {
		return nil, &ParseError{Reason: "file has no header row"}
	}

	for n, rec := range records[1:] {
		if len(rec) > len(records[0]) {
			pf.Warnings = append(pf.Warnings, fmt.Sprintf("row %d: %d extra cells ignored", n+2, len(rec)-len(records[0])))
		}
		row := make(ParsedRow, len(pf.Headers))
		for j, header := range pf.Headers {
			src := cols[j]
			if src < len(rec) {
				row[header] = strings.TrimSpace(rec[src])
			} else {
				row[header] = ""
			}
		}
		pf.Rows = append(pf.Rows, row)
	}

	if len(pf.Rows) == 0 {
		return nil, &ParseError{Reason: "file has no data rows"}
	}

	pf.TotalRows = len(pf.Rows)
	return pf, nil
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// parseXLSX reads the first worksheet of an xlsx workbook.
func parseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	return f.GetRows(sheets[0])
}

// parseXLS reads the first sheet of a legacy BIFF workbook.
func parseXLS(data []byte) ([][]string, error) {
	book, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	sheet, err := book.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	var records [][]string
	for _, r := range sheet.GetRows() {
		var rec []string
		for _, c := range r.GetCols() {
			rec = append(rec, c.GetString())
		}
		records = append(records, rec)
	}
	return records, nil
}

// stripBOM removes a UTF-8 byte order mark, common in Windows exports.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// downstream string handling never sees broken encodings.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

// isBlankRow reports whether a row is empty across every mapped column.
// Rows like this are silently excluded from validation and processing.
func isBlankRow(row ParsedRow, mapping FieldMapping) bool {
	for col := range mapping {
		if strings.TrimSpace(row[col]) != "" {
			return false
		}
	}
	return true
}
