package services

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fintrack/internal/clock"
	"fintrack/internal/entrystore"
	"fintrack/internal/eventbus"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
)

const (
	pingRetries  = 2
	pingInterval = 250 * time.Millisecond
)

// NetworkStatus is the last known reachability of the persistence
// collaborator.
type NetworkStatus struct {
	Available bool      `json:"available"`
	LastCheck time.Time `json:"lastCheck"`
	Error     string    `json:"error,omitempty"`
}

// LivenessMonitor pings the entry store's collaborator and publishes
// status changes on the bus. Operations are never blocked by it; it only
// drives the offline banner.
type LivenessMonitor struct {
	pinger  entrystore.Pinger
	bus     *eventbus.Bus
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *log.Logger

	mu     sync.RWMutex
	status NetworkStatus
}

func NewLivenessMonitor(pinger entrystore.Pinger, bus *eventbus.Bus, clk clock.Clock, m *metrics.Metrics, logger *log.Logger) *LivenessMonitor {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = log.Discard()
	}
	m.NetworkAvailable.Set(1)
	return &LivenessMonitor{
		pinger:  pinger,
		bus:     bus,
		clock:   clk,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentLiveness),
		status:  NetworkStatus{Available: true},
	}
}

// Run performs one check, shaped for the scheduler.
func (m *LivenessMonitor) Run(ctx context.Context) error {
	m.Check(ctx)
	return nil
}

// Check pings the collaborator, retrying briefly before declaring it
// unavailable.
func (m *LivenessMonitor) Check(ctx context.Context) NetworkStatus {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(pingInterval), pingRetries), ctx)
	err := backoff.Retry(func() error { return m.pinger.Ping(ctx) }, b)

	next := NetworkStatus{Available: err == nil, LastCheck: m.clock.Now().UTC()}
	if err != nil {
		next.Error = err.Error()
		m.metrics.LivenessChecks.WithLabelValues("offline").Inc()
		m.metrics.NetworkAvailable.Set(0)
	} else {
		m.metrics.LivenessChecks.WithLabelValues("online").Inc()
		m.metrics.NetworkAvailable.Set(1)
	}

	m.mu.Lock()
	changed := m.status.Available != next.Available
	m.status = next
	m.mu.Unlock()

	if changed {
		if next.Available {
			m.logger.InfoContext(ctx, "Persistence collaborator reachable again")
		} else {
			m.logger.WarnContext(ctx, "Persistence collaborator unreachable", log.FieldError, err)
		}
		if m.bus != nil {
			m.bus.Publish(ctx, eventbus.TopicNetworkStatus, next)
		}
	}
	return next
}

func (m *LivenessMonitor) Status() NetworkStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
