// Package app assembles the long-running processes: the API server with its
// schedulers, and the spreadsheet sync worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	httpapi "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/sheets"
	"fintrack/internal/worker"
)

// Application owns the backend and the metrics registry for one process.
type Application struct {
	cfg      *config.Config
	logger   *log.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	Backend *backend.Backend
}

// New wires the backend with a process-wide metrics registry.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Application, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	b, err := backend.New(ctx, cfg, backend.Options{Metrics: m, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("initialize backend: %w", err)
	}

	return &Application{
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentApp),
		registry: reg,
		metrics:  m,
		Backend:  b,
	}, nil
}

func (a *Application) Close() error {
	return a.Backend.Close()
}

// Serve runs the HTTP API, the recurring scheduler, the liveness monitor
// and the cache sweeper until ctx is cancelled or one of them fails.
func (a *Application) Serve(ctx context.Context) error {
	var gatherer prometheus.Gatherer
	if a.cfg.MetricsEnabled {
		gatherer = a.registry
	}
	srv, err := httpapi.NewServer(httpapi.Config{
		Addr:               ":" + a.cfg.Port,
		RateLimitPerMinute: a.cfg.RateLimitPerMinute,
		TrustedProxies:     a.cfg.TrustedProxies,
	}, a.Backend.Tracker, a.metrics, gatherer, a.Backend.Caches, a.logger)
	if err != nil {
		return fmt.Errorf("build HTTP server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	sched := a.startSchedulers(ctx)

	g.Go(func() error {
		return srv.Run(ctx, a.cfg.HTTPShutdownTimeout)
	})
	g.Go(func() error {
		a.Backend.Caches.Run(ctx, a.cfg.CacheSweep)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return nil
	})

	a.logger.Info("Application started",
		"port", a.cfg.Port,
		"recurring_interval", a.cfg.RecurringInterval.String(),
		"liveness_interval", a.cfg.LivenessInterval.String(),
		"metrics", strconv.FormatBool(gatherer != nil))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("Application stopped")
	return nil
}

// Schedule runs the recurring scheduler and the liveness monitor without
// the HTTP API until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	sched := a.startSchedulers(ctx)
	a.logger.Info("Scheduler started",
		"recurring_interval", a.cfg.RecurringInterval.String(),
		"liveness_interval", a.cfg.LivenessInterval.String())

	a.Backend.Caches.Run(ctx, a.cfg.CacheSweep)
	sched.Stop()
	a.logger.Info("Scheduler stopped")
	return nil
}

func (a *Application) startSchedulers(ctx context.Context) *worker.Scheduler {
	sched := worker.NewScheduler(ctx, a.logger)
	tracker := a.Backend.Tracker
	sched.Every("recurring", a.cfg.RecurringInterval, tracker.Recurring.Run)
	sched.Every("liveness", a.cfg.LivenessInterval, tracker.Liveness.Run)
	return sched
}

// Sync consumes entry events into mirror and periodically reconciles the
// whole entry list, until ctx is cancelled. Without a broker only the
// reconciliation runs.
func (a *Application) Sync(ctx context.Context, mirror sheets.Mirror) error {
	sw := a.SyncWorker(mirror)

	g, ctx := errgroup.WithContext(ctx)
	sched := worker.NewScheduler(ctx, a.logger)

	sched.Every("reconcile", a.cfg.ReconcileInterval, func(ctx context.Context) error {
		_, err := a.Reconcile(ctx, sw)
		return err
	})

	if client := a.Backend.AMQP; client != nil {
		g.Go(func() error {
			err := client.ConsumeEntryEvents(ctx, sw.Handle)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		a.logger.Warn("No AMQP broker available, relying on periodic reconciliation")
	}
	g.Go(func() error {
		a.Backend.Caches.Run(ctx, a.cfg.CacheSweep)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Reconcile mirrors the current entry list once.
func (a *Application) Reconcile(ctx context.Context, sw *worker.SyncWorker) (worker.ReconcileResult, error) {
	entries, err := a.Backend.Tracker.Entries.List(ctx)
	if err != nil {
		return worker.ReconcileResult{}, fmt.Errorf("list entries: %w", err)
	}
	return sw.Reconcile(ctx, entries)
}

// SyncWorker builds a worker over mirror sharing this application's
// metrics and logger.
func (a *Application) SyncWorker(mirror sheets.Mirror) *worker.SyncWorker {
	return worker.NewSyncWorker(mirror, a.metrics, a.logger)
}
