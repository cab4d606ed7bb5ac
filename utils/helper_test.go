package utils

import (
	"testing"
	"time"
)

func TestParseDateString(t *testing.T) {
	got, err := ParseDateString(" 2026-08-25 ")
	if err != nil {
		t.Fatalf("ParseDateString: %v", err)
	}
	want := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	for _, bad := range []string{"", "25-08-2026", "2026/08/25", "not a date"} {
		if _, err := ParseDateString(bad); err == nil {
			t.Errorf("ParseDateString(%q) should fail", bad)
		}
	}
}

func TestDayBoundsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+6:30", int((6*time.Hour + 30*time.Minute).Seconds()))
	local := time.Date(2026, 8, 25, 3, 15, 0, 0, loc) // 2026-08-24 20:45 UTC

	start := StartOfDayUTC(local)
	if want := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("StartOfDayUTC: got %s, want %s", start, want)
	}

	end := EndOfDayUTC(local)
	if !end.After(start) || end.Day() != 24 {
		t.Errorf("EndOfDayUTC must stay inside the same UTC day, got %s", end)
	}
}

func TestParseDecimal(t *testing.T) {
	got, err := ParseDecimal(" 12.5 ")
	if err != nil {
		t.Fatalf("ParseDecimal: %v", err)
	}
	if got.String() != "12.5" {
		t.Fatalf("got %s", got)
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Error("empty string should fail")
	}
	if _, err := ParseDecimal("abc"); err == nil {
		t.Error("garbage should fail")
	}
}
