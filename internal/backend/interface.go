package backend

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/claim"
	"fintrack/internal/clock"
	"fintrack/internal/config"
	"fintrack/internal/entrystore"
	"fintrack/internal/eventbus"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend is the wired object graph shared by every command.
type Backend struct {
	Config  *config.Config
	Clock   clock.Clock
	Bus     *eventbus.Bus
	Caches  *cache.Manager
	Metrics *metrics.Metrics

	Store   storage.Store
	Redis   *redis.Client
	Entries entrystore.Store
	Claims  claim.Claimer
	// AMQP is nil when no broker is configured or it was unreachable.
	AMQP *amqp.Client

	Tracker *services.Tracker

	cleanups []CleanupFunc
}

func (b *Backend) onClose(fn CleanupFunc) {
	b.cleanups = append(b.cleanups, fn)
}

func (b *Backend) unsubscribeOnClose(unsubscribe ...func()) {
	for _, u := range unsubscribe {
		u := u
		b.onClose(func() error {
			u()
			return nil
		})
	}
}

// Close releases resources in reverse order of acquisition.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanups = nil
	return errors.Join(errs...)
}
