package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fintrack/internal/cache"
	"fintrack/internal/http/dto"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Config holds the HTTP surface settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	TrustedProxies     []string
}

// Server is the JSON API over a Tracker.
type Server struct {
	*http.Server

	tracker *services.Tracker
	metrics *metrics.Metrics
	logger  *log.Logger
	limiter *ratelimit.Limiter
}

// NewServer builds the router. gatherer backs /metrics and may be nil to
// disable it. Rate limiter windows are registered with caches when given.
func NewServer(cfg Config, tracker *services.Tracker, m *metrics.Metrics, gatherer prometheus.Gatherer, caches *cache.Manager, logger *log.Logger) (*Server, error) {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = log.Discard()
	}

	detector, err := security.NewDetector(m, cfg.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		tracker: tracker,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
	}
	if caches != nil {
		caches.Register(s.limiter.Clients())
	}

	tracer := trace.NewMiddleware(detector.ExtractClientIP, m)

	r := chi.NewRouter()
	r.Use(log.Middleware(logger))
	r.Use(tracer.RequestID)
	r.Use(log.RequestIDMiddleware(trace.FromRequest))
	r.Use(tracer.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, dto.ErrorResponse{Error: dto.CodeNotFound, Message: "no such route"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, dto.ErrorResponse{Error: dto.CodeBadRequest, Message: "method not allowed"})
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimited))

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handleCreateEntry)
			r.Put("/{id}", s.handleUpdateEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
		})

		r.Get("/totals", s.handleTotals)
		r.Get("/view", s.handleView)
		r.Get("/breakdown", s.handleBreakdown)
		r.Get("/series", s.handleSeries)

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/upcoming", s.handleUpcoming)
			r.Post("/process", s.handleProcessDue)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
			r.Post("/{id}/toggle", s.handleToggleTemplate)
			r.Post("/{id}/process", s.handleProcessNow)
		})

		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handleUpdateProfile)
		r.Get("/categories", s.handleCategories)
		r.Get("/status", s.handleStatus)
	})

	s.Server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited.Inc()
	writeError(w, http.StatusTooManyRequests, dto.ErrorResponse{Error: dto.CodeRateLimited, Message: "rate limit exceeded"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports 503 while the liveness monitor sees the persistence
// collaborator as unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.tracker.Liveness != nil {
		if st := s.tracker.Liveness.Status(); !st.Available {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": st.Error})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
