package core

import (
	"strings"
	"time"
)

const (
	RangeAll   DateRange = "all"
	RangeToday DateRange = "today"
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
	RangeYear  DateRange = "year"
)

// DateRange names a window anchored at evaluation time.
type DateRange string

// Interval is a half-open date interval [Start, End).
type Interval struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains reports whether d lies in [Start, End).
func (i Interval) Contains(d Date) bool {
	return !d.Before(i.Start) && d.Before(i.End)
}

func (r DateRange) Valid() bool {
	switch r {
	case RangeAll, RangeToday, RangeWeek, RangeMonth, RangeYear:
		return true
	default:
		return false
	}
}

// IntervalFor maps r to the concrete interval containing now. The second
// result is false for RangeAll, which has no bounds.
func IntervalFor(r DateRange, now time.Time, weekStart time.Weekday) (Interval, bool) {
	today := DateOf(now)
	switch r {
	case RangeToday:
		return Interval{Start: today, End: today.AddDays(1)}, true
	case RangeWeek:
		start := StartOfWeek(today, weekStart)
		return Interval{Start: start, End: start.AddDays(7)}, true
	case RangeMonth:
		start := NewDate(today.Year(), int(today.Month()), 1)
		return Interval{Start: start, End: Date{Time: start.AddDate(0, 1, 0)}}, true
	case RangeYear:
		start := NewDate(today.Year(), 1, 1)
		return Interval{Start: start, End: NewDate(today.Year()+1, 1, 1)}, true
	default:
		return Interval{}, false
	}
}

// StartOfWeek returns the most recent weekStart on or before d.
func StartOfWeek(d Date, weekStart time.Weekday) Date {
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDays(-offset)
}

// ParseWeekday accepts English weekday names, full or abbreviated.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return wd, true
		}
	}
	return time.Sunday, false
}

// AdvanceDue returns the due date one period after due. Month-based
// frequencies keep anchorDay as the day of month, clamped to the last day
// of shorter months, so a schedule starting on the 31st does not drift.
func AdvanceDue(due Date, anchorDay int, f Frequency) Date {
	switch f {
	case Weekly:
		return due.AddDays(7)
	case Monthly:
		return addMonthsClamped(due, 1, anchorDay)
	case Quarterly:
		return addMonthsClamped(due, 3, anchorDay)
	case Yearly:
		return addMonthsClamped(due, 12, anchorDay)
	default:
		return due
	}
}

func addMonthsClamped(d Date, months, anchorDay int) Date {
	// Normalise through the first of the month so AddDate cannot overflow.
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := anchorDay
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(first.Year(), int(first.Month()), day)
}
