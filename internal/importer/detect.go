package importer

// detect.go heuristically maps spreadsheet headers to semantic fields.
//
// Detection is a best-effort suggestion only, never authoritative: callers
// must confirm or override the mapping before a job starts, so mistakes here
// are always recoverable. Given identical headers the result is identical.

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// detectionOrder is the fixed scan order for semantic fields. Earlier fields
// claim headers first; a claimed header is excluded from later field scans.
var detectionOrder = []string{
	FieldDate,
	FieldDescription,
	FieldAmount,
	FieldCategory,
	FieldVendor,
	FieldRecurring,
}

// fieldPatterns holds the ordered substring patterns per semantic field.
// The first lower-cased header containing a pattern wins.
var fieldPatterns = map[string][]string{
	FieldDate:        {"date", "day", "posted", "when"},
	FieldDescription: {"description", "desc", "memo", "narration", "details", "note", "title"},
	FieldAmount:      {"amount", "value", "price", "total", "sum", "cost"},
	FieldCategory:    {"category", "group", "class"},
	FieldVendor:      {"vendor", "payee", "merchant", "supplier", "store", "shop"},
	FieldRecurring:   {"recurring", "recurs", "repeat", "subscription"},
}

// maxFuzzyDistance bounds the fallback edit-distance match for headers that
// contain no pattern substring (e.g. "amnt" -> amount).
const maxFuzzyDistance = 2

// DetectColumns suggests a source-column -> semantic-field mapping for the
// given header list. Each header is attributed to at most one field.
func DetectColumns(headers []string) FieldMapping {
	mapping := make(FieldMapping)
	claimed := make(map[string]bool, len(headers))

	for _, field := range detectionOrder {
		if col, ok := matchSubstring(headers, claimed, fieldPatterns[field]); ok {
			mapping[col] = field
			claimed[col] = true
		}
	}

	// Second pass: let unmatched fields claim near-miss headers. Substring
	// matches above always take precedence.
	for _, field := range detectionOrder {
		if mapping.ColumnFor(field) != "" {
			continue
		}
		if col, ok := matchFuzzy(headers, claimed, field); ok {
			mapping[col] = field
			claimed[col] = true
		}
	}

	return mapping
}

// matchSubstring returns the first unclaimed header containing one of the
// ordered patterns. Patterns are tried in priority order.
func matchSubstring(headers []string, claimed map[string]bool, patterns []string) (string, bool) {
	for _, p := range patterns {
		for _, h := range headers {
			if claimed[h] {
				continue
			}
			if strings.Contains(strings.ToLower(h), p) {
				return h, true
			}
		}
	}
	return "", false
}

// matchFuzzy returns the first unclaimed header within maxFuzzyDistance of
// the field's canonical name. Very short headers are skipped: edit distance
// on them is mostly noise.
func matchFuzzy(headers []string, claimed map[string]bool, field string) (string, bool) {
	for _, h := range headers {
		if claimed[h] {
			continue
		}
		lower := strings.ToLower(h)
		if len(lower) < 4 {
			continue
		}
		if levenshtein.ComputeDistance(lower, field) <= maxFuzzyDistance {
			return h, true
		}
	}
	return "", false
}
