package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDateOutputFormat is the canonical date representation.
const DefaultDateOutputFormat = "2006-01-02"

// CommonDateFormats are tried in order when parsing dates from payer
// exports. Formats seen across credit-card settlement and claim reports.
var CommonDateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"01-02-2006",
	"1/2/2006",
	"2006/01/02",
	"01/02/06",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseAmount parses a money value from a report cell, stripping currency
// symbols, thousands separators, and percent signs. Parenthesized values
// are treated as negative, which is how settlement exports encode refunds.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	replacer := strings.NewReplacer("$", "", ",", "", "%", "", " ", "")
	cleaned = replacer.Replace(cleaned)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no numeric content in %q", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseDateAny parses a date string against CommonDateFormats, then any
// extra formats supplied by the caller, returning the first success.
func ParseDateAny(s string, extraFormats ...string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := make([]string, 0, len(CommonDateFormats)+len(extraFormats))
	formats = append(formats, CommonDateFormats...)
	formats = append(formats, extraFormats...)

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, trimmed); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date %q: %w", s, lastErr)
}

// LooksNumeric reports whether a cell value parses as a money amount.
// Used by the header sniffer to tell header rows from data rows.
func LooksNumeric(s string) bool {
	_, err := ParseAmount(s)
	return err == nil
}

// LooksDate reports whether a cell value parses as a date.
func LooksDate(s string) bool {
	_, err := ParseDateAny(s)
	return err == nil
}
