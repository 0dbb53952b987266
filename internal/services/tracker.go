package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/clock"
	"fintrack/internal/core"
)

// Tracker is the read model consumed by the HTTP API and the CLI.
type Tracker struct {
	Entries   *EntryService
	Templates *TemplateService
	Recurring *RecurringProcessor
	Profiles  *ProfileService
	Liveness  *LivenessMonitor

	clock     clock.Clock
	weekStart time.Weekday
}

func NewTracker(entries *EntryService, templates *TemplateService, recurring *RecurringProcessor, profiles *ProfileService, liveness *LivenessMonitor, clk clock.Clock, weekStart time.Weekday) *Tracker {
	return &Tracker{
		Entries:   entries,
		Templates: templates,
		Recurring: recurring,
		Profiles:  profiles,
		Liveness:  liveness,
		clock:     clk,
		weekStart: weekStart,
	}
}

// Totals sums every entry in the store.
func (t *Tracker) Totals(ctx context.Context) (core.Totals, error) {
	entries, err := t.Entries.List(ctx)
	if err != nil {
		return core.Totals{}, err
	}
	return TotalsFor(entries), nil
}

// View filters entries for display, evaluated at the current time.
func (t *Tracker) View(ctx context.Context, c Criteria) ([]core.Transaction, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	entries, err := t.Entries.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(entries, c, t.clock.Now(), t.WeekStart(ctx))
}

// Breakdown groups entries of type et within range r by category.
func (t *Tracker) Breakdown(ctx context.Context, et core.EntryType, r core.DateRange) ([]core.CategoryAmount, decimal.Decimal, error) {
	if !et.Valid() {
		return nil, decimal.Zero, core.ErrInvalidType
	}
	entries, err := t.View(ctx, Criteria{Type: string(et), DateRange: r})
	if err != nil {
		return nil, decimal.Zero, err
	}
	shares := CategoryShares(entries, et)
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	return shares, total, nil
}

// Series buckets all entries into the last n periods.
func (t *Tracker) Series(ctx context.Context, period string, n int) ([]core.BucketTotal, error) {
	intervals, err := IntervalsFor(period, t.clock.Now(), n, t.WeekStart(ctx))
	if err != nil {
		return nil, err
	}
	entries, err := t.Entries.List(ctx)
	if err != nil {
		return nil, err
	}
	return BucketByPeriod(entries, intervals), nil
}

func (t *Tracker) Upcoming(ctx context.Context, limit int) ([]core.RecurringTemplate, error) {
	return t.Recurring.Upcoming(ctx, limit)
}

// ProcessDue runs one scheduler pass at the current time.
func (t *Tracker) ProcessDue(ctx context.Context) (ProcessResult, error) {
	return t.Recurring.ProcessDue(ctx, t.clock.Now())
}

func (t *Tracker) ProcessNow(ctx context.Context, templateID string) (core.Transaction, error) {
	return t.Recurring.ProcessNow(ctx, templateID)
}

// WeekStart is the profile's week start, falling back to the configured
// default.
func (t *Tracker) WeekStart(ctx context.Context) time.Weekday {
	if t.Profiles == nil {
		return t.weekStart
	}
	p, err := t.Profiles.Get(ctx)
	if err != nil || p.WeekStart == "" {
		return t.weekStart
	}
	if wd, ok := core.ParseWeekday(p.WeekStart); ok {
		return wd
	}
	return t.weekStart
}

// Currency is the profile currency, EUR when unset.
func (t *Tracker) Currency(ctx context.Context) string {
	if t.Profiles != nil {
		if p, err := t.Profiles.Get(ctx); err == nil && p.Currency != "" {
			return p.Currency
		}
	}
	return core.DefaultProfile().Currency
}
