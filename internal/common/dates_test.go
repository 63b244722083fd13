package common

import (
	"testing"
	"time"
)

// Helper to create a time easily
func mustTime(t *testing.T, layout, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", value, err)
	}
	return parsed
}

func TestNormalizeDateAt(t *testing.T) {
	now := mustTime(t, "2006-01-02", "2026-08-21")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already day first", "02/10/2026", "02/10/2026"},
		{"day first unpadded", "2/10/2026", "02/10/2026"},
		{"iso dashes", "2026-10-02", "02/10/2026"},
		{"iso slashes", "2026/10/02", "02/10/2026"},
		{"rfc3339", "2026-10-02T00:00:00Z", "02/10/2026"},
		{"iso with time", "2026-10-02 08:30:00", "02/10/2026"},
		{"verbose timestamp", "Fri Oct 02 2026 00:00:00 GMT+0200 (South Africa Standard Time)", "02/10/2026"},
		{"verbose single digit day", "Fri Oct 2 2026 00:00:00 GMT+0200", "02/10/2026"},
		{"empty defaults to today", "", "21/08/2026"},
		{"whitespace defaults to today", "   ", "21/08/2026"},
		{"unparseable passes through", "next Tuesday", "next Tuesday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDateAt(tt.input, now)
			if got != tt.want {
				t.Errorf("NormalizeDateAt(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeDateNeverReordersDayFirst(t *testing.T) {
	// A day-first value that would also parse as month-first must not be
	// reinterpreted.
	got := NormalizeDateAt("03/04/2026", time.Now())
	if got != "03/04/2026" {
		t.Errorf("NormalizeDateAt reordered a day-first date: got %q", got)
	}
}
