package clock

import (
	"errors"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid_date")

// Calendar resolves calendar-day boundaries in a fixed reporting zone.
// Leave activation, expiry and month bucketing all key off this zone,
// not off UTC, so a request starts on the day its members expect.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the reporting zone. An unknown zone falls back to UTC.
func NewCalendar(timezone string) Calendar {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Today returns the current calendar date in the reporting zone,
// normalized to midnight UTC for storage.
func (c Calendar) Today(now time.Time) time.Time {
	return c.DateOf(now)
}

// DateOf truncates an instant to its calendar date in the reporting zone.
func (c Calendar) DateOf(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized calendar date.
func (c Calendar) ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return parsed, nil
}

// MonthKey returns the YYYY-MM usage bucket for an instant.
func (c Calendar) MonthKey(t time.Time) string {
	return t.In(c.loc).Format("2006-01")
}

// DaysBetween counts whole calendar days from one date to another.
// Negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
