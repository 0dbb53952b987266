package services

import (
	"context"

	"fintrack/internal/core"
	"fintrack/internal/eventbus"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/repository"
)

// Refresher reloads a cached view from its source.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshOnReconnect reloads r whenever the liveness monitor reports the
// persistence collaborator reachable again. Entries changed elsewhere while
// offline become visible without a restart.
func RefreshOnReconnect(bus *eventbus.Bus, r Refresher, logger *log.Logger) (unsubscribe func()) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentLiveness)
	return eventbus.SubscribeTyped(bus, eventbus.TopicNetworkStatus, func(ctx context.Context, s NetworkStatus) {
		if !s.Available {
			return
		}
		if err := r.Refresh(ctx); err != nil {
			logger.WarnContext(ctx, "Failed to refresh entries after reconnect", log.FieldError, err)
			return
		}
		logger.InfoContext(ctx, "Entries refreshed after reconnect")
	})
}

// WatchEntries keeps the stored-entries gauge in step with the collection.
func WatchEntries(repo *repository.Repository[[]core.Transaction], m *metrics.Metrics) (unsubscribe func()) {
	return repo.Subscribe(func(_ context.Context, entries []core.Transaction) {
		m.StoredEntries.Set(float64(len(entries)))
	})
}

// WatchTemplates keeps the active-templates gauge in step with the
// collection.
func WatchTemplates(repo *repository.Repository[[]core.RecurringTemplate], m *metrics.Metrics) (unsubscribe func()) {
	return repo.Subscribe(func(_ context.Context, templates []core.RecurringTemplate) {
		active := 0
		for _, t := range templates {
			if t.IsActive {
				active++
			}
		}
		m.ActiveTemplates.Set(float64(active))
	})
}
