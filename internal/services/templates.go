package services

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/clock"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/repository"
)

// TemplateService owns the recurring template collection. Every change
// replaces and persists the whole collection under one lock.
type TemplateService struct {
	mu     sync.Mutex
	repo   *repository.Repository[[]core.RecurringTemplate]
	ids    core.IDGenerator
	clock  clock.Clock
	logger *log.Logger
}

func NewTemplateService(repo *repository.Repository[[]core.RecurringTemplate], ids core.IDGenerator, clk clock.Clock, logger *log.Logger) *TemplateService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TemplateService{
		repo:   repo,
		ids:    ids,
		clock:  clk,
		logger: logger.WithComponent(log.ComponentRecurring),
	}
}

func (s *TemplateService) List(ctx context.Context) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *TemplateService) Get(ctx context.Context, id string) (core.RecurringTemplate, error) {
	templates, err := s.List(ctx)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	i := indexTemplate(templates, id)
	if i < 0 {
		return core.RecurringTemplate{}, core.NewNotFound("template", id)
	}
	return templates[i], nil
}

// Create stores a new template. Scheduler-owned fields are cleared.
func (s *TemplateService) Create(ctx context.Context, rt core.RecurringTemplate) (core.RecurringTemplate, error) {
	if err := rt.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}
	rt.ID = s.ids.NewID()
	rt.CreatedAt = s.clock.Now().UTC()
	rt.LastProcessed = nil
	rt.NextDue = nil

	err := s.mutate(ctx, log.OpCreate, func(templates []core.RecurringTemplate) ([]core.RecurringTemplate, error) {
		return append(templates, rt), nil
	})
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	s.logger.InfoContext(ctx, "Template created", log.FieldTemplateID, rt.ID, "frequency", rt.Frequency, "active", rt.IsActive)
	return rt, nil
}

// Update applies a user edit. The result must still be valid.
func (s *TemplateService) Update(ctx context.Context, id string, patch core.TemplatePatch) (core.RecurringTemplate, error) {
	var updated core.RecurringTemplate
	err := s.mutate(ctx, log.OpUpdate, func(templates []core.RecurringTemplate) ([]core.RecurringTemplate, error) {
		i := indexTemplate(templates, id)
		if i < 0 {
			return nil, core.NewNotFound("template", id)
		}
		updated = patch.Apply(templates[i])
		if err := updated.Validate(); err != nil {
			return nil, err
		}
		templates[i] = updated
		return templates, nil
	})
	return updated, err
}

// SetActive moves a template between Active and Paused.
func (s *TemplateService) SetActive(ctx context.Context, id string, active bool) (core.RecurringTemplate, error) {
	return s.Update(ctx, id, core.TemplatePatch{IsActive: &active})
}

// Toggle flips a template between Active and Paused.
func (s *TemplateService) Toggle(ctx context.Context, id string) (core.RecurringTemplate, error) {
	var updated core.RecurringTemplate
	err := s.mutate(ctx, log.OpUpdate, func(templates []core.RecurringTemplate) ([]core.RecurringTemplate, error) {
		i := indexTemplate(templates, id)
		if i < 0 {
			return nil, core.NewNotFound("template", id)
		}
		templates[i].IsActive = !templates[i].IsActive
		updated = templates[i]
		return templates, nil
	})
	if err == nil {
		s.logger.InfoContext(ctx, "Template toggled", log.FieldTemplateID, id, "active", updated.IsActive)
	}
	return updated, err
}

// Delete removes a template in any state.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, log.OpDelete, func(templates []core.RecurringTemplate) ([]core.RecurringTemplate, error) {
		i := indexTemplate(templates, id)
		if i < 0 {
			return nil, core.NewNotFound("template", id)
		}
		return append(templates[:i], templates[i+1:]...), nil
	})
}

// markEmitted records a committed emission: nextDue moves one period past
// due and lastProcessed becomes processed.
func (s *TemplateService) markEmitted(ctx context.Context, id string, due, processed core.Date) (core.RecurringTemplate, error) {
	var updated core.RecurringTemplate
	err := s.mutate(ctx, log.OpEmit, func(templates []core.RecurringTemplate) ([]core.RecurringTemplate, error) {
		i := indexTemplate(templates, id)
		if i < 0 {
			return nil, core.NewNotFound("template", id)
		}
		rt := templates[i]
		next := core.AdvanceDue(due, rt.StartDate.Day(), rt.Frequency)
		rt.NextDue = &next
		rt.LastProcessed = &processed
		templates[i] = rt
		updated = rt
		return templates, nil
	})
	return updated, err
}

func (s *TemplateService) load(ctx context.Context) ([]core.RecurringTemplate, error) {
	templates, err := s.repo.Get(ctx)
	if err != nil {
		return nil, core.NewPersistenceError("load templates", err)
	}
	return templates, nil
}

func (s *TemplateService) mutate(ctx context.Context, op string, fn func([]core.RecurringTemplate) ([]core.RecurringTemplate, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates, err := s.load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(templates)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist templates", log.FieldOperation, op, log.FieldError, err)
		return core.NewPersistenceError(fmt.Sprintf("%s template", op), err)
	}
	return nil
}

func indexTemplate(templates []core.RecurringTemplate, id string) int {
	for i := range templates {
		if templates[i].ID == id {
			return i
		}
	}
	return -1
}
