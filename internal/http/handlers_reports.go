package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/http/dto"
	"fintrack/internal/services"
)

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.tracker.Totals(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.Totals(totals, s.tracker.Currency(r.Context())))
}

// handleView filters entries by search text, type, category and range.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := services.Criteria{
		SearchText: q.Get("search"),
		Type:       strings.TrimSpace(q.Get("type")),
		Category:   strings.TrimSpace(q.Get("category")),
		DateRange:  core.DateRange(strings.TrimSpace(q.Get("range"))),
	}

	entries, err := s.tracker.View(r.Context(), criteria)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.EntryList(entries))
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	et := core.EntryType(strings.TrimSpace(q.Get("type")))
	if et == "" {
		et = core.Expense
	}
	rng := core.DateRange(strings.TrimSpace(q.Get("range")))
	if rng == "" {
		rng = core.RangeAll
	}

	shares, total, err := s.tracker.Breakdown(r.Context(), et, rng)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if shares == nil {
		shares = []core.CategoryAmount{}
	}
	writeJSON(w, http.StatusOK, dto.BreakdownResponse{Type: et, Total: total, Categories: shares})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	period := strings.TrimSpace(r.URL.Query().Get("period"))
	if period == "" {
		period = "month"
	}
	count, err := parseIntQuery(r, "count", 6)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	buckets, err := s.tracker.Series(r.Context(), period, count)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SeriesResponse{Period: period, Buckets: buckets})
}
