// Package contest defines the contest-day calendar shared by posting, voting and winner resolution.
//
// A contest day is identified by its label: midnight UTC of the civil date observed in the
// configured contest timezone. Every query that scopes data to a day uses the half-open
// interval [label, label+24h) over stored labels, so all components agree on one boundary.
package contest

import (
	"errors"
	"strings"
	"time"
)

// DayLayout is the wire format for contest days.
const DayLayout = "2006-01-02"

// ErrInvalidDay is returned when a day string cannot be parsed.
var ErrInvalidDay = errors.New("invalid date, expected YYYY-MM-DD")

// Range is a half-open interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Calendar maps instants onto contest days.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar returns a calendar cutting days at midnight in loc. A nil loc means UTC.
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, now: time.Now}
}

// WithClock returns a copy of the calendar that reads the current time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	cp := *c
	cp.now = now
	return &cp
}

// Location returns the contest timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current instant.
func (c *Calendar) Now() time.Time {
	return c.now()
}

// DayOf returns the label of the contest day containing t.
func (c *Calendar) DayOf(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the label of the current contest day.
func (c *Calendar) Today() time.Time {
	return c.DayOf(c.now())
}

// Yesterday returns the label of the previous contest day.
func (c *Calendar) Yesterday() time.Time {
	return c.Today().AddDate(0, 0, -1)
}

// Parse reads a day from either YYYY-MM-DD or an RFC3339 timestamp.
// Timestamps are placed on the contest day they fall in.
func (c *Calendar) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDay
	}
	if d, err := time.Parse(DayLayout, s); err == nil {
		return d.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return c.DayOf(t), nil
	}
	return time.Time{}, ErrInvalidDay
}

// ParseOr parses s, returning fallback when s is empty.
func (c *Calendar) ParseOr(s string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return c.Parse(s)
}

// DayRange returns the interval covering a single day label.
func DayRange(day time.Time) Range {
	day = Normalize(day)
	return Range{From: day, To: day.AddDate(0, 0, 1)}
}

// LastDays returns the range covering n days ending with (and including) day.
func LastDays(day time.Time, n int) Range {
	if n < 1 {
		n = 1
	}
	day = Normalize(day)
	return Range{From: day.AddDate(0, 0, -(n - 1)), To: day.AddDate(0, 0, 1)}
}

// Normalize truncates a label to midnight UTC of its date.
func Normalize(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Format renders a day label as YYYY-MM-DD.
func Format(day time.Time) string {
	return day.UTC().Format(DayLayout)
}

// NextBoundary returns the instant the contest day after t begins, in the contest timezone.
func (c *Calendar) NextBoundary(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, c.loc)
}
