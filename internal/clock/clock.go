// Package clock has business-calendar logic for period boundaries.
package clock

import (
	"fmt"
	"time"
)

// TriggerDelay is how long after the configured end of day the daily rollup fires.
const TriggerDelay = 30 * time.Minute

// DateLayout is the storage layout of business dates.
const DateLayout = "2006-01-02"

// PeriodClock decides period boundaries in a single business time zone.
type PeriodClock struct {
	loc       *time.Location
	eodHour   int
	eodMinute int
	weekStart time.Weekday
}

// New creates a PeriodClock for the zone, end-of-day time and first weekday.
func New(loc *time.Location, eodHour, eodMinute int, weekStart time.Weekday) (*PeriodClock, error) {
	if loc == nil {
		return nil, fmt.Errorf("business time zone is required")
	}
	if eodHour < 0 || eodHour > 23 {
		return nil, fmt.Errorf("eod hour must be between 0 and 23 (received %d)", eodHour)
	}
	if eodMinute < 0 || eodMinute > 59 {
		return nil, fmt.Errorf("eod minute must be between 0 and 59 (received %d)", eodMinute)
	}
	if weekStart < time.Sunday || weekStart > time.Saturday {
		return nil, fmt.Errorf("invalid week start day %d", weekStart)
	}
	return &PeriodClock{loc: loc, eodHour: eodHour, eodMinute: eodMinute, weekStart: weekStart}, nil
}

// Location returns the business time zone.
func (c *PeriodClock) Location() *time.Location {
	return c.loc
}

// WeekStart returns the configured first day of the week.
func (c *PeriodClock) WeekStart() time.Weekday {
	return c.weekStart
}

// Naive reinterprets the wall clock of t as business time, ignoring t's zone.
// Source timestamps are stored without a zone and must pass through here.
func (c *PeriodClock) Naive(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
}

// ToBusiness converts an instant to business time.
func (c *PeriodClock) ToBusiness(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(c.loc)
}

// StartOfDay returns midnight of t's business date.
func (c *PeriodClock) StartOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	bt := t.In(c.loc)
	return time.Date(bt.Year(), bt.Month(), bt.Day(), 0, 0, 0, 0, c.loc)
}

// DateKey formats t's business date.
func (c *PeriodClock) DateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(c.loc).Format(DateLayout)
}

// ParseDate parses a business date key into its midnight.
func (c *PeriodClock) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, c.loc)
}

// SameDay reports whether a and b fall on the same business date.
func (c *PeriodClock) SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.In(c.loc).Date()
	by, bm, bd := b.In(c.loc).Date()
	return ay == by && am == bm && ad == bd
}

// AddDays moves a business date by n calendar days, keeping midnight across DST changes.
func (c *PeriodClock) AddDays(day time.Time, n int) time.Time {
	d := day.In(c.loc)
	return time.Date(d.Year(), d.Month(), d.Day()+n, 0, 0, 0, 0, c.loc)
}

// HourStart returns the start of t's business hour.
func (c *PeriodClock) HourStart(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	bt := t.In(c.loc)
	within := time.Duration(bt.Minute())*time.Minute +
		time.Duration(bt.Second())*time.Second +
		time.Duration(bt.Nanosecond())
	return bt.Add(-within)
}

// ceilHour rounds t up to the next business hour boundary.
func (c *PeriodClock) ceilHour(t time.Time) time.Time {
	h := c.HourStart(t)
	if h.Equal(t) {
		return h
	}
	return h.Add(time.Hour)
}

// EOD returns the configured end-of-day instant on day's business date.
func (c *PeriodClock) EOD(day time.Time) time.Time {
	d := day.In(c.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.eodHour, c.eodMinute, 0, 0, c.loc)
}

// trigger returns the daily trigger time and whether it rolled into the next day.
func (c *PeriodClock) trigger() (hour, minute int, rolled bool) {
	hour, minute = c.eodHour, c.eodMinute+int(TriggerDelay/time.Minute)
	if minute >= 60 {
		hour = (hour + 1) % 24
		minute %= 60
		rolled = hour == 0
	}
	return hour, minute, rolled
}

// IsEndOfDay reports whether t is at or past the daily trigger time.
// When the trigger rolls past midnight, the whole following day counts
// once the trigger minute has passed.
func (c *PeriodClock) IsEndOfDay(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	bt := t.In(c.loc)
	hour, minute, rolled := c.trigger()
	if rolled {
		if bt.Hour() == 0 {
			return bt.Minute() >= minute
		}
		return true
	}
	if bt.Hour() != hour {
		return bt.Hour() > hour
	}
	return bt.Minute() >= minute
}

// ClosingDay returns the business date whose end of day t's trigger closes.
func (c *PeriodClock) ClosingDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	day := c.StartOfDay(t)
	if _, _, rolled := c.trigger(); rolled {
		return c.AddDays(day, -1)
	}
	return day
}

// DayWindow returns the instants covered by a daily summary of day.
// The window runs between consecutive end-of-day times, widened to whole hours
// so that it is exactly tiled by batch-aggregate periods.
func (c *PeriodClock) DayWindow(day time.Time) (start, end time.Time) {
	return c.ceilHour(c.EOD(c.AddDays(day, -1))), c.ceilHour(c.EOD(day))
}

// RollingStart returns the start of the business day a period ending at end belongs to.
func (c *PeriodClock) RollingStart(end time.Time) time.Time {
	return c.StartOfDay(end.Add(-time.Nanosecond))
}

// atOrAfterEOD reports whether business time bt is at or past the raw end of day.
func (c *PeriodClock) atOrAfterEOD(bt time.Time) bool {
	if bt.Hour() != c.eodHour {
		return bt.Hour() > c.eodHour
	}
	return bt.Minute() >= c.eodMinute
}

// IsEndOfWeek reports whether t is on the last day of the week at or after end of day.
func (c *PeriodClock) IsEndOfWeek(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	bt := t.In(c.loc)
	last := (c.weekStart + 6) % 7
	return bt.Weekday() == last && c.atOrAfterEOD(bt)
}

// IsEndOfMonth reports whether t is on the last day of its month at or after end of day.
func (c *PeriodClock) IsEndOfMonth(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	bt := t.In(c.loc)
	return bt.AddDate(0, 0, 1).Month() != bt.Month() && c.atOrAfterEOD(bt)
}

// WeekBounds returns the first and last business dates of day's week.
func (c *PeriodClock) WeekBounds(day time.Time) (start, end time.Time) {
	if day.IsZero() {
		return day, day
	}
	d := day.In(c.loc)
	since := (int(d.Weekday()) - int(c.weekStart) + 7) % 7
	start = c.AddDays(d, -since)
	return start, c.AddDays(start, 6)
}

// WeekNumber returns the year and 1-based week index of day's week. The index
// counts 7-day blocks from Jan 1 of the year the week starts in, so a week
// that begins in December belongs to that December's year.
func (c *PeriodClock) WeekNumber(day time.Time) (year, week int) {
	if day.IsZero() {
		return 0, 0
	}
	start, _ := c.WeekBounds(day)
	year = start.Year()
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := int(civil(start).Sub(jan1).Hours() / 24)
	return year, days/7 + 1
}

// MonthBounds returns the first and last business dates of day's month.
func (c *PeriodClock) MonthBounds(day time.Time) (first, last time.Time) {
	if day.IsZero() {
		return day, day
	}
	d := day.In(c.loc)
	first = time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, c.loc)
	last = time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, c.loc)
	return first, last
}

// civil strips zone and clock from a date so day arithmetic ignores DST.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
