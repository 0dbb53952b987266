package worker

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/sheets"
)

// SyncWorker applies committed entry events to the spreadsheet mirror.
type SyncWorker struct {
	mirror  sheets.Mirror
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewSyncWorker(mirror sheets.Mirror, m *metrics.Metrics, logger *log.Logger) *SyncWorker {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{mirror: mirror, metrics: m, logger: logger.WithComponent(log.ComponentWorker)}
}

// Handle processes a single entry event from AMQP. A returned error makes
// the consumer requeue the message.
func (w *SyncWorker) Handle(ctx context.Context, event amqp.EntryEvent) error {
	w.logger.InfoContext(ctx, "Processing entry event",
		log.FieldEntryID, event.EntryID,
		"action", event.Action)

	var err error
	switch event.Action {
	case amqp.ActionUpsert:
		err = w.mirror.Upsert(ctx, *event.Entry)
	case amqp.ActionDelete:
		err = w.mirror.Delete(ctx, event.EntryID)
	default:
		err = fmt.Errorf("unknown entry action %q", event.Action)
	}
	w.metrics.SheetSyncs.WithLabelValues(string(event.Action), metrics.Result(err)).Inc()

	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror entry",
			log.FieldEntryID, event.EntryID,
			"action", event.Action,
			log.FieldError, err)
		return fmt.Errorf("mirror %s %s: %w", event.Action, event.EntryID, err)
	}
	w.logger.InfoContext(ctx, "Successfully mirrored entry", log.FieldEntryID, event.EntryID, "action", event.Action)
	return nil
}

// ReconcileResult counts the writes a reconciliation made.
type ReconcileResult struct {
	Upserted int
	Deleted  int
	Failed   int
}

// Reconcile brings the mirror in line with entries: every entry is
// upserted and, when the mirror can list its rows, rows for entries that
// no longer exist are deleted. It is the backup path for events lost while
// the broker was unreachable.
func (w *SyncWorker) Reconcile(ctx context.Context, entries []core.Transaction) (ReconcileResult, error) {
	var res ReconcileResult
	keep := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		keep[e.ID] = struct{}{}
		if err := w.Handle(ctx, amqp.NewUpsertEvent(e)); err != nil {
			res.Failed++
			continue
		}
		res.Upserted++
	}

	lister, ok := w.mirror.(sheets.Lister)
	if !ok {
		return res, nil
	}
	ids, err := lister.ListIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list mirrored ids: %w", err)
	}
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := w.Handle(ctx, amqp.NewDeleteEvent(id)); err != nil {
			res.Failed++
			continue
		}
		res.Deleted++
	}

	w.logger.InfoContext(ctx, "Reconciliation complete",
		"upserted", res.Upserted,
		"deleted", res.Deleted,
		"failed", res.Failed)
	return res, nil
}
