package importer

// convert.go coerces the messy strings users put in spreadsheets into typed
// values:
//   - amounts with currency symbols, thousands separators, and accounting
//     parentheses
//   - dates in a handful of regional formats, tried in a fixed priority order
//   - the many spellings of yes/no for the recurring flag

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// amountReplacer strips currency symbols, thousands separators, and
// whitespace before numeric parsing.
var amountReplacer = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "",
	",", "", " ", "", "\t", "",
)

// ParseAmount parses a monetary amount. The value must resolve to a finite
// number greater than zero; zero and negative amounts are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}

	// Accounting format "(123.45)" means negative.
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	cleaned = strings.TrimSpace(amountReplacer.Replace(cleaned))

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be greater than zero")
	}

	return d, nil
}

// nativeDateLayouts are tried before the regional fallbacks. They cover the
// unambiguous machine formats exports tend to use.
var nativeDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// layeredDateLayouts are the regional fallbacks, in priority order. Day-first
// formats win over month-first: "31/01/2024" is January 31, and "01/02/2024"
// is February 1.
var layeredDateLayouts = []string{
	"02/01/2006", // DD/MM/YYYY
	"02.01.2006", // DD.MM.YYYY
	"01/02/2006", // MM/DD/YYYY
	"2006-01-02", // YYYY-MM-DD
}

// ParseDate parses a date using the layered format chain. When explicit is
// non-empty (a Go reference layout from ImportOptions.DateFormat) it is
// tried first.
func ParseDate(s, explicit string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}

	if explicit != "" {
		if t, err := time.Parse(explicit, cleaned); err == nil {
			return t, nil
		}
	}

	for _, layout := range nativeDateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}

	for _, layout := range layeredDateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseRecurring interprets the recurring flag column. Unrecognized values
// count as false rather than failing the row.
func ParseRecurring(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true
	default:
		return false
	}
}
