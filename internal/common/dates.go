// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date form the portal accepts (DD/MM/YYYY).
const DateLayout = "02/01/2006"

// dayMonthYear matches an already-localized date, with or without zero padding.
var dayMonthYear = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// isoLayouts are the alternate shapes the sheet has been seen to return.
var isoLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// NormalizeDate converts a sheet date value to DD/MM/YYYY.
// Empty input defaults to the current date.
func NormalizeDate(raw string) string {
	return NormalizeDateAt(raw, time.Now())
}

// NormalizeDateAt is NormalizeDate with an injectable clock for tests.
//
// Accepted shapes: DD/MM/YYYY (returned unchanged apart from zero padding),
// YYYY-MM-DD, YYYY/MM/DD, RFC3339, and the verbose timestamp form a
// spreadsheet formula can produce ("Thu Oct 02 2025 00:00:00 GMT+0200 ...").
// A value that matches none of them is returned as-is so the portal's own
// validation reports it rather than this code inventing a date.
func NormalizeDateAt(raw string, now time.Time) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return now.Format(DateLayout)
	}

	// Already day-first. Never reinterpret it, only pad.
	if m := dayMonthYear.FindStringSubmatch(value); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%02d/%02d/%s", day, month, m[3])
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(DateLayout)
		}
	}

	if t, ok := parseVerboseTimestamp(value); ok {
		return t.Format(DateLayout)
	}

	return value
}

// parseVerboseTimestamp handles "Thu Oct 02 2025 00:00:00 GMT+0200 (South
// Africa Standard Time)" style values by reading the leading
// weekday/month/day/year fields and ignoring the rest.
func parseVerboseTimestamp(value string) (time.Time, bool) {
	fields := strings.Fields(value)
	if len(fields) < 4 || len(fields[0]) != 3 {
		return time.Time{}, false
	}

	candidate := strings.Join(fields[1:4], " ")
	for _, layout := range []string{"Jan 02 2006", "Jan 2 2006"} {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
