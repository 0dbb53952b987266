package services

import (
	"time"

	"fintrack/internal/core"
)

// SkipReason explains why a template does not emit in a pass. The empty
// reason means the template is due.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipPaused         SkipReason = "paused"
	SkipEnded          SkipReason = "ended"
	SkipNotDue         SkipReason = "not_due"
	SkipProcessedToday SkipReason = "processed_today"
)

// Dueness evaluates rt at now and returns its effective due date and, when
// it should not emit, the reason.
//
// A template is due once the calendar day of now reaches nextDue (or
// startDate before the first emission). It emits at most once per calendar
// day, and never once its due date has moved past endDate.
func Dueness(rt core.RecurringTemplate, now time.Time) (core.Date, SkipReason) {
	due := rt.DueDate()
	today := core.DateOf(now)

	switch {
	case !rt.IsActive:
		return due, SkipPaused
	case rt.EndedBy(due):
		return due, SkipEnded
	case today.Before(due):
		return due, SkipNotDue
	case rt.LastProcessed != nil && rt.LastProcessed.Equal(today):
		return due, SkipProcessedToday
	default:
		return due, SkipNone
	}
}
