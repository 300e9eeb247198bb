package clock

import (
	"testing"
	"time"
)

func TestDateOfUsesReportingZone(t *testing.T) {
	cal := NewCalendar("Europe/Moscow")

	// 22:30 UTC is already the next day in MSK (UTC+3).
	instant := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	got := cal.DateOf(instant)
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DateOf = %v, want %v", got, want)
	}
}

func TestMonthKeyCrossesMonthBoundaryInZone(t *testing.T) {
	cal := NewCalendar("Europe/Moscow")

	instant := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	if key := cal.MonthKey(instant); key != "2026-02" {
		t.Fatalf("MonthKey = %q, want 2026-02", key)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	cal := NewCalendar("UTC")
	if _, err := cal.ParseDate("not-a-date"); err != ErrInvalidDate {
		t.Fatalf("ParseDate error = %v, want ErrInvalidDate", err)
	}
	parsed, err := cal.ParseDate("2026-08-24")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if parsed.Day() != 24 || parsed.Month() != time.August {
		t.Fatalf("ParseDate = %v", parsed)
	}
}

func TestDaysBetween(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)
	if d := DaysBetween(from, to); d != 7 {
		t.Fatalf("DaysBetween = %d, want 7", d)
	}
	if d := DaysBetween(to, from); d != -7 {
		t.Fatalf("DaysBetween reversed = %d, want -7", d)
	}
}

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	fake := NewFakeClock(start)
	fake.Advance(48 * time.Hour)
	if got := fake.Now(); !got.Equal(start.Add(48 * time.Hour)) {
		t.Fatalf("Now = %v", got)
	}
}
