package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"fintrack/internal/claim"
	"fintrack/internal/clock"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
)

// Trigger tags the description of an emitted transaction.
type Trigger string

const (
	TriggerAuto   Trigger = "Auto"
	TriggerManual Trigger = "Manual"
)

// ProcessFailure records a template that could not be emitted.
type ProcessFailure struct {
	TemplateID string
	Err        error
}

// ProcessResult summarises one pass.
type ProcessResult struct {
	Emitted  []core.Transaction
	Failures []ProcessFailure
}

// RecurringProcessor emits transactions from due recurring templates.
type RecurringProcessor struct {
	templates *TemplateService
	entries   *EntryService
	claims    claim.Claimer
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewRecurringProcessor(templates *TemplateService, entries *EntryService, claims claim.Claimer, clk clock.Clock, m *metrics.Metrics, logger *log.Logger) *RecurringProcessor {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &RecurringProcessor{
		templates: templates,
		entries:   entries,
		claims:    claims,
		clock:     clk,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentRecurring),
	}
}

// Run is a pass at the current clock time, shaped for the scheduler.
func (p *RecurringProcessor) Run(ctx context.Context) error {
	_, err := p.ProcessDue(ctx, p.clock.Now())
	return err
}

// ProcessDue emits at most one transaction per due template. Missed
// periods are not backfilled: a template overdue by several periods
// catches up one period per day.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (ProcessResult, error) {
	start := time.Now()
	defer func() { p.metrics.RecurringPassDuration.Observe(time.Since(start).Seconds()) }()

	templates, err := p.templates.List(ctx)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("list templates: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing recurring templates",
		"total", len(templates),
		"processing_date", core.DateOf(now).String())

	var result ProcessResult
	for _, rt := range templates {
		due, reason := Dueness(rt, now)
		if reason != SkipNone {
			p.logger.DebugContext(ctx, "Template skipped", log.FieldTemplateID, rt.ID, "reason", reason, log.FieldDueDate, due.String())
			continue
		}

		entry, err := p.emit(ctx, rt, due, now, TriggerAuto)
		if err != nil {
			result.Failures = append(result.Failures, ProcessFailure{TemplateID: rt.ID, Err: err})
			continue
		}
		if entry != nil {
			result.Emitted = append(result.Emitted, *entry)
		}
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"emitted", len(result.Emitted),
		"failed", len(result.Failures),
		"total_checked", len(templates))
	return result, nil
}

// ProcessNow emits one manual transaction for template id regardless of its
// due date, then advances its schedule.
func (p *RecurringProcessor) ProcessNow(ctx context.Context, id string) (core.Transaction, error) {
	rt, err := p.templates.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	due := rt.DueDate()
	if !rt.IsActive {
		return core.Transaction{}, core.NewValidationError("isActive", "template is paused")
	}
	if rt.EndedBy(due) {
		return core.Transaction{}, core.NewValidationError("endDate", "template has ended")
	}

	entry, err := p.emit(ctx, rt, due, p.clock.Now(), TriggerManual)
	if err != nil {
		return core.Transaction{}, err
	}
	if entry == nil {
		return core.Transaction{}, core.NewValidationError("id", fmt.Sprintf("template is already being processed for %s", due))
	}
	return *entry, nil
}

// Upcoming returns active templates ordered by effective due date. A limit
// of zero or less returns all of them.
func (p *RecurringProcessor) Upcoming(ctx context.Context, limit int) ([]core.RecurringTemplate, error) {
	templates, err := p.templates.List(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]core.RecurringTemplate, 0, len(templates))
	for _, rt := range templates {
		if rt.IsActive {
			active = append(active, rt)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].DueDate().Before(active[j].DueDate())
	})
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

// emit claims (template, due), appends the transaction and advances the
// template. A nil entry with nil error means another process holds the
// claim. The claim is released only when the entry was not stored.
func (p *RecurringProcessor) emit(ctx context.Context, rt core.RecurringTemplate, due core.Date, now time.Time, trigger Trigger) (*core.Transaction, error) {
	logger := p.logger.With(log.FieldTemplateID, rt.ID, log.FieldDueDate, due.String(), "trigger", trigger)

	won, err := p.claims.Claim(ctx, rt.ID, due)
	if err != nil {
		p.metrics.RecurringFailures.WithLabelValues("claim").Inc()
		logger.ErrorContext(ctx, "Failed to claim emission", log.FieldError, err)
		return nil, fmt.Errorf("claim template %s: %w", rt.ID, err)
	}
	if !won {
		p.metrics.ClaimsLost.Inc()
		logger.InfoContext(ctx, "Emission already claimed elsewhere")
		return nil, nil
	}

	entry, err := p.entries.Create(ctx, emission(rt, now, trigger))
	if err != nil {
		p.metrics.RecurringFailures.WithLabelValues("entry").Inc()
		logger.ErrorContext(ctx, "Failed to create entry from recurring template", log.FieldError, err)
		if rerr := p.claims.Release(ctx, rt.ID, due); rerr != nil {
			logger.WarnContext(ctx, "Failed to release claim", log.FieldError, rerr)
		}
		return nil, err
	}

	if _, err := p.templates.markEmitted(ctx, rt.ID, due, core.DateOf(now)); err != nil {
		// The entry is stored; the claim stays held so the next pass
		// does not emit the same period again.
		p.metrics.RecurringFailures.WithLabelValues("advance").Inc()
		logger.ErrorContext(ctx, "Failed to advance template after emission", log.FieldEntryID, entry.ID, log.FieldError, err)
		return &entry, nil
	}

	p.metrics.RecurringEmissions.WithLabelValues(strings.ToLower(string(trigger))).Inc()
	logger.InfoContext(ctx, "Created entry from recurring template",
		log.FieldEntryID, entry.ID,
		log.FieldAmount, entry.Amount.String(),
		"frequency", rt.Frequency)
	return &entry, nil
}

func emission(rt core.RecurringTemplate, now time.Time, trigger Trigger) core.Transaction {
	suffix := fmt.Sprintf(" (%s)", trigger)
	desc := core.TruncateText(rt.Description, core.MaxDescriptionLen-utf8.RuneCountInString(suffix))
	return core.Transaction{
		Type:        rt.Type,
		Amount:      rt.Amount,
		Category:    rt.Category,
		Description: desc + suffix,
		Date:        core.DateOf(now),
		IsRecurring: true,
		RecurringID: rt.ID,
	}
}
