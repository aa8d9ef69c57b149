// Package dateparse parses the date formats seen in bank exports and import
// spreadsheets. Day-first formats take precedence: the platform's tenants
// write 05/04/2024 meaning 5 April.
package dateparse

import (
	"fmt"
	"strings"
	"time"
)

// formats is tried in order; the first successful parse wins.
var formats = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"20060102",
}

// Parse parses a date string in any of the accepted regional formats. The
// result is truncated to the calendar day in UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err != nil {
			lastErr = err
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date %q: %w", s, lastErr)
}

// IsWithinAcceptableRange reports whether the date is plausible for an
// imported money-movement record: no more than one day in the future and no
// more than ten years in the past.
func IsWithinAcceptableRange(t time.Time) bool {
	now := time.Now()
	if t.After(now.Add(24 * time.Hour)) {
		return false
	}
	return !t.Before(now.AddDate(-10, 0, 0))
}
