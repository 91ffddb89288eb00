package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func newClock(t *testing.T, eodHour, eodMinute int, weekStart time.Weekday) *PeriodClock {
	t.Helper()
	c, err := New(chicago(t), eodHour, eodMinute, weekStart)
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	loc := chicago(t)
	_, err := New(nil, 23, 59, time.Sunday)
	assert.Error(t, err)
	_, err = New(loc, 24, 0, time.Sunday)
	assert.Error(t, err)
	_, err = New(loc, 23, 60, time.Sunday)
	assert.Error(t, err)
	_, err = New(loc, 23, 59, time.Weekday(7))
	assert.Error(t, err)
}

func TestIsEndOfDayRollover(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"just after midnight", time.Date(2025, 3, 11, 0, 5, 0, 0, loc), false},
		{"at trigger", time.Date(2025, 3, 11, 0, 29, 0, 0, loc), true},
		{"after trigger", time.Date(2025, 3, 11, 0, 35, 0, 0, loc), true},
		{"rest of day", time.Date(2025, 3, 11, 14, 0, 0, 0, loc), true},
		{"eod itself", time.Date(2025, 3, 11, 23, 59, 0, 0, loc), true},
		{"zero", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsEndOfDay(tt.at))
		})
	}
}

func TestIsEndOfDaySameDayTrigger(t *testing.T) {
	c := newClock(t, 17, 0, time.Sunday)
	loc := c.Location()

	assert.False(t, c.IsEndOfDay(time.Date(2025, 3, 11, 17, 29, 0, 0, loc)))
	assert.True(t, c.IsEndOfDay(time.Date(2025, 3, 11, 17, 30, 0, 0, loc)))
	assert.True(t, c.IsEndOfDay(time.Date(2025, 3, 11, 18, 0, 0, 0, loc)))
	assert.False(t, c.IsEndOfDay(time.Date(2025, 3, 11, 9, 0, 0, 0, loc)))

	// Minute overflow without a day rollover.
	c = newClock(t, 16, 45, time.Sunday)
	assert.False(t, c.IsEndOfDay(time.Date(2025, 3, 11, 17, 14, 0, 0, loc)))
	assert.True(t, c.IsEndOfDay(time.Date(2025, 3, 11, 17, 15, 0, 0, loc)))
}

func TestIsEndOfDayConvertsZone(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	// 06:35 UTC in March (CDT) is 01:35 Chicago.
	assert.True(t, c.IsEndOfDay(time.Date(2025, 3, 11, 6, 35, 0, 0, time.UTC)))
	// 05:10 UTC is 00:10 Chicago.
	assert.False(t, c.IsEndOfDay(time.Date(2025, 3, 11, 5, 10, 0, 0, time.UTC)))
}

func TestClosingDay(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()
	got := c.ClosingDay(time.Date(2025, 3, 11, 0, 35, 0, 0, loc))
	assert.Equal(t, "2025-03-10", c.DateKey(got))

	c = newClock(t, 17, 0, time.Sunday)
	got = c.ClosingDay(time.Date(2025, 3, 11, 17, 35, 0, 0, loc))
	assert.Equal(t, "2025-03-11", c.DateKey(got))
}

func TestDayWindow(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	start, end := c.DayWindow(day)
	assert.True(t, time.Date(2025, 3, 10, 0, 0, 0, 0, loc).Equal(start))
	assert.True(t, time.Date(2025, 3, 11, 0, 0, 0, 0, loc).Equal(end))

	c = newClock(t, 17, 30, time.Sunday)
	start, end = c.DayWindow(day)
	assert.True(t, time.Date(2025, 3, 9, 18, 0, 0, 0, loc).Equal(start))
	assert.True(t, time.Date(2025, 3, 10, 18, 0, 0, 0, loc).Equal(end))
}

func TestDayWindowAcrossDST(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()
	// Spring forward on 2025-03-09 makes the day 23 hours long.
	start, end := c.DayWindow(time.Date(2025, 3, 9, 0, 0, 0, 0, loc))
	assert.Equal(t, 23*time.Hour, end.Sub(start))
	// Fall back on 2025-11-02 makes it 25 hours long.
	start, end = c.DayWindow(time.Date(2025, 11, 2, 0, 0, 0, 0, loc))
	assert.Equal(t, 25*time.Hour, end.Sub(start))
}

func TestHourStartRepeatedHour(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	// 06:30 UTC on 2025-11-02 is 01:30 CDT, 07:30 UTC is 01:30 CST.
	first := c.HourStart(time.Date(2025, 11, 2, 6, 30, 0, 0, time.UTC))
	second := c.HourStart(time.Date(2025, 11, 2, 7, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Hour, second.Sub(first))
	assert.Equal(t, 1, first.Hour())
	assert.Equal(t, 1, second.Hour())
}

func TestIsEndOfWeek(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()
	// 2025-03-15 is a Saturday.
	assert.True(t, c.IsEndOfWeek(time.Date(2025, 3, 15, 23, 59, 0, 0, loc)))
	assert.False(t, c.IsEndOfWeek(time.Date(2025, 3, 15, 23, 58, 0, 0, loc)))
	assert.False(t, c.IsEndOfWeek(time.Date(2025, 3, 16, 23, 59, 0, 0, loc)))

	c = newClock(t, 23, 59, time.Monday)
	assert.True(t, c.IsEndOfWeek(time.Date(2025, 3, 16, 23, 59, 0, 0, loc)))
	assert.False(t, c.IsEndOfWeek(time.Date(2025, 3, 15, 23, 59, 0, 0, loc)))
	assert.False(t, c.IsEndOfWeek(time.Time{}))
}

func TestIsEndOfMonth(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()
	assert.True(t, c.IsEndOfMonth(time.Date(2024, 2, 29, 23, 59, 0, 0, loc)))
	assert.False(t, c.IsEndOfMonth(time.Date(2024, 2, 28, 23, 59, 0, 0, loc)))
	assert.False(t, c.IsEndOfMonth(time.Date(2024, 2, 29, 12, 0, 0, 0, loc)))
	assert.True(t, c.IsEndOfMonth(time.Date(2025, 12, 31, 23, 59, 30, 0, loc)))
}

func TestWeekBounds(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()
	// Wednesday 2025-03-12.
	start, end := c.WeekBounds(time.Date(2025, 3, 12, 0, 0, 0, 0, loc))
	assert.Equal(t, "2025-03-09", c.DateKey(start))
	assert.Equal(t, "2025-03-15", c.DateKey(end))

	c = newClock(t, 23, 59, time.Monday)
	start, end = c.WeekBounds(time.Date(2025, 3, 12, 0, 0, 0, 0, loc))
	assert.Equal(t, "2025-03-10", c.DateKey(start))
	assert.Equal(t, "2025-03-16", c.DateKey(end))

	// A Sunday with Monday starts belongs to the previous week.
	start, _ = c.WeekBounds(time.Date(2025, 3, 16, 0, 0, 0, 0, loc))
	assert.Equal(t, "2025-03-10", c.DateKey(start))
}

func TestWeekNumber(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()

	year, week := c.WeekNumber(time.Date(2025, 1, 1, 0, 0, 0, 0, loc))
	// 2025-01-01 is a Wednesday, its week starts 2024-12-29.
	assert.Equal(t, 2024, year)
	assert.Equal(t, 52, week)

	year, week = c.WeekNumber(time.Date(2025, 1, 5, 0, 0, 0, 0, loc))
	assert.Equal(t, 2025, year)
	assert.Equal(t, 1, week)

	year, week = c.WeekNumber(time.Date(2025, 3, 12, 0, 0, 0, 0, loc))
	assert.Equal(t, 2025, year)
	assert.Equal(t, 10, week)

	// Every day of a week maps to the same key.
	start, _ := c.WeekBounds(time.Date(2026, 1, 1, 0, 0, 0, 0, loc))
	y0, w0 := c.WeekNumber(start)
	for i := range 7 {
		y, w := c.WeekNumber(c.AddDays(start, i))
		assert.Equal(t, y0, y)
		assert.Equal(t, w0, w)
	}

	year, week = c.WeekNumber(time.Time{})
	assert.Zero(t, year)
	assert.Zero(t, week)
}

func TestMonthBounds(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()
	first, last := c.MonthBounds(time.Date(2024, 2, 10, 15, 0, 0, 0, loc))
	assert.Equal(t, "2024-02-01", c.DateKey(first))
	assert.Equal(t, "2024-02-29", c.DateKey(last))
}

func TestNaiveAndToBusiness(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	naive := time.Date(2025, 7, 4, 8, 15, 0, 0, time.UTC)
	got := c.Naive(naive)
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, c.Location(), got.Location())

	conv := c.ToBusiness(naive)
	assert.Equal(t, 3, conv.Hour())
	assert.True(t, c.ToBusiness(time.Time{}).IsZero())
	assert.True(t, c.Naive(time.Time{}).IsZero())
}

func TestSameDay(t *testing.T) {
	c := newClock(t, 23, 59, time.Sunday)
	loc := c.Location()
	assert.True(t, c.SameDay(time.Date(2025, 3, 11, 0, 1, 0, 0, loc), time.Date(2025, 3, 11, 23, 0, 0, 0, loc)))
	assert.False(t, c.SameDay(time.Date(2025, 3, 11, 23, 0, 0, 0, loc), time.Date(2025, 3, 12, 0, 1, 0, 0, loc)))
	assert.False(t, c.SameDay(time.Time{}, time.Date(2025, 3, 12, 0, 1, 0, 0, loc)))
}
