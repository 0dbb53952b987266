package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Entry metrics
	EntryOperations *prometheus.CounterVec
	EntryAmount     *prometheus.HistogramVec

	// Recurring metrics
	RecurringEmissions    *prometheus.CounterVec
	RecurringFailures     *prometheus.CounterVec
	RecurringPassDuration prometheus.Histogram
	ClaimsLost            prometheus.Counter

	// Collection metrics
	StoredEntries   prometheus.Gauge
	ActiveTemplates prometheus.Gauge

	// Connectivity metrics
	NetworkAvailable prometheus.Gauge
	LivenessChecks   *prometheus.CounterVec

	// Sync metrics
	EventsPublished *prometheus.CounterVec
	SheetSyncs      *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
	RateLimited  prometheus.Counter
	Suspicious   prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EntryOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_entry_operations_total",
				Help: "Total entry store operations by type and result",
			},
			[]string{"operation", "result"},
		),
		EntryAmount: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_entry_amount",
				Help:    "Amounts of recorded entries",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"type"},
		),

		RecurringEmissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_recurring_emissions_total",
				Help: "Transactions emitted from recurring templates",
			},
			[]string{"trigger"},
		),
		RecurringFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_recurring_failures_total",
				Help: "Recurring emissions that failed, by stage",
			},
			[]string{"stage"},
		),
		RecurringPassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fintrack_recurring_pass_duration_seconds",
			Help:    "Duration of a recurring processing pass",
			Buckets: prometheus.DefBuckets,
		}),
		ClaimsLost: f.NewCounter(prometheus.CounterOpts{
			Name: "fintrack_recurring_claims_lost_total",
			Help: "Emissions skipped because another process claimed the slot",
		}),

		StoredEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "fintrack_entries_stored",
			Help: "Entries in the local collection after the last write",
		}),
		ActiveTemplates: f.NewGauge(prometheus.GaugeOpts{
			Name: "fintrack_recurring_templates_active",
			Help: "Active recurring templates after the last write",
		}),

		NetworkAvailable: f.NewGauge(prometheus.GaugeOpts{
			Name: "fintrack_network_available",
			Help: "1 when the persistence collaborator is reachable",
		}),
		LivenessChecks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_liveness_checks_total",
				Help: "Liveness checks by result",
			},
			[]string{"result"},
		),

		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_events_published_total",
				Help: "Entry events published to the broker by result",
			},
			[]string{"result"},
		),
		SheetSyncs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_sheet_syncs_total",
				Help: "Spreadsheet mirror writes by action and result",
			},
			[]string{"action", "result"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "fintrack_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "fintrack_http_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		}),
		Suspicious: f.NewCounter(prometheus.CounterOpts{
			Name: "fintrack_http_suspicious_requests_total",
			Help: "Requests matching a known probing pattern",
		}),
	}
}

// NewNop returns metrics registered on a throwaway registry. Used by tests
// and one-shot CLI commands.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
