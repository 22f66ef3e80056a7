package queue

import (
	"testing"
	"time"
)

func TestFormatTimeOrdersAsStrings(t *testing.T) {
	whole := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	later := whole.Add(500 * time.Millisecond)

	if got, want := formatTime(whole), "2026-08-29T12:00:00.000000000Z"; got != want {
		t.Fatalf("formatTime = %q, want %q", got, want)
	}
	if formatTime(whole) >= formatTime(later) {
		t.Fatalf("whole-second timestamp must sort before a later sub-second one: %q vs %q",
			formatTime(whole), formatTime(later))
	}

	parsed, err := parseTimeString(formatTime(later))
	if err != nil {
		t.Fatalf("parseTimeString failed: %v", err)
	}
	if !parsed.Equal(later) {
		t.Fatalf("round trip changed the instant: %v vs %v", parsed, later)
	}
}
