package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/entrystore"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
)

// EventPublisher forwards committed entry changes to the sync pipeline.
type EventPublisher interface {
	PublishEntryEvent(ctx context.Context, event amqp.EntryEvent) error
}

// EntryService orchestrates entry operations across the entry store and AMQP.
type EntryService struct {
	store     entrystore.Store
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *log.Logger
}

// NewEntryService wires the service. publisher may be nil.
func NewEntryService(store entrystore.Store, publisher EventPublisher, m *metrics.Metrics, logger *log.Logger) *EntryService {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &EntryService{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentEntries),
	}
}

func (s *EntryService) List(ctx context.Context) ([]core.Transaction, error) {
	entries, err := s.store.List(ctx)
	s.metrics.EntryOperations.WithLabelValues(log.OpList, metrics.Result(err)).Inc()
	return entries, err
}

// Create validates t, stores it and publishes a sync event.
func (s *EntryService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		s.metrics.EntryOperations.WithLabelValues(log.OpCreate, "invalid").Inc()
		return core.Transaction{}, err
	}

	stored, err := s.store.Add(ctx, t)
	s.metrics.EntryOperations.WithLabelValues(log.OpCreate, metrics.Result(err)).Inc()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create entry", log.FieldError, err, log.FieldOperation, log.OpCreate)
		return core.Transaction{}, fmt.Errorf("create entry: %w", err)
	}
	s.metrics.EntryAmount.WithLabelValues(string(stored.Type)).Observe(stored.Amount.InexactFloat64())

	s.logger.InfoContext(ctx, "Entry created",
		log.NewFields().WithOperation(log.OpCreate).
			WithEntry(stored.ID, string(stored.Type), stored.Amount, stored.Category).ToSlice()...)
	s.committed(ctx, amqp.NewUpsertEvent(stored))
	return stored, nil
}

// Update applies patch to entry id. The patched entry must still be valid.
func (s *EntryService) Update(ctx context.Context, id string, patch core.EntryPatch) (core.Transaction, error) {
	stored, err := s.store.Update(ctx, id, patch)
	s.metrics.EntryOperations.WithLabelValues(log.OpUpdate, metrics.Result(err)).Inc()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update entry %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Entry updated", log.FieldEntryID, id)
	s.committed(ctx, amqp.NewUpsertEvent(stored))
	return stored, nil
}

func (s *EntryService) Delete(ctx context.Context, id string) error {
	err := s.store.Remove(ctx, id)
	s.metrics.EntryOperations.WithLabelValues(log.OpDelete, metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Entry deleted", log.FieldEntryID, id)
	s.committed(ctx, amqp.NewDeleteEvent(id))
	return nil
}

// committed forwards a stored change to the sync pipeline. Publish
// failures are logged; the entry is already persisted.
func (s *EntryService) committed(ctx context.Context, event amqp.EntryEvent) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping sync event", log.FieldEntryID, event.EntryID)
		return
	}

	err := s.publisher.PublishEntryEvent(ctx, event)
	s.metrics.EventsPublished.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync event",
			log.FieldEntryID, event.EntryID,
			"action", event.Action,
			log.FieldError, err)
	}
}

// Close closes the publisher when it holds a connection.
func (s *EntryService) Close() error {
	var errs []error
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close entry service: %w", err)
	}
	return nil
}
