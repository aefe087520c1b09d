package contest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCalendar_TodayUTC(t *testing.T) {
	cal := NewCalendar(nil).WithClock(fixedClock(time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)))

	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), cal.Today())
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), cal.Yesterday())
}

func TestCalendar_TodayHonoursTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on the 16th is still the evening of the 15th in New York.
	cal := NewCalendar(loc).WithClock(fixedClock(time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-15", Format(cal.Today()))

	// Tokyo is already on the 16th at 20:00 UTC on the 15th.
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	cal = NewCalendar(tokyo).WithClock(fixedClock(time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-16", Format(cal.Today()))
}

func TestCalendar_Parse(t *testing.T) {
	cal := NewCalendar(time.UTC)

	d, err := cal.Parse("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	d, err = cal.Parse("2024-03-15T18:30:00-07:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-16", Format(d))

	_, err = cal.Parse("15/03/2024")
	assert.ErrorIs(t, err, ErrInvalidDay)

	_, err = cal.Parse("  ")
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestCalendar_ParseOr(t *testing.T) {
	cal := NewCalendar(time.UTC)
	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	d, err := cal.ParseOr("", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, d)

	d, err = cal.ParseOr("2024-02-29", fallback)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", Format(d))
}

func TestDayRange(t *testing.T) {
	r := DayRange(time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), r.To)
	assert.True(t, r.Contains(r.From))
	assert.False(t, r.Contains(r.To))
}

func TestLastDays(t *testing.T) {
	r := LastDays(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 7)
	assert.Equal(t, "2024-03-09", Format(r.From))
	assert.Equal(t, "2024-03-16", Format(r.To))

	r = LastDays(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 0)
	assert.Equal(t, "2024-03-15", Format(r.From))
}

func TestCalendar_NextBoundary(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	cal := NewCalendar(loc)

	next := cal.NextBoundary(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, loc), next)
}
