package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/http/dto"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.Profiles.Get(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p core.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		badRequest(w, err)
		return
	}

	saved, err := s.tracker.Profiles.Update(r.Context(), p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.tracker.Profiles.Categories()
	writeJSON(w, http.StatusOK, dto.CategoriesResponse{
		Income:  cats.For(core.Income),
		Expense: cats.For(core.Expense),
	})
}

// handleStatus drives the offline banner.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := dto.StatusResponse{NetworkAvailable: true}
	if s.tracker.Liveness != nil {
		st := s.tracker.Liveness.Status()
		resp.NetworkAvailable = st.Available
		if !st.LastCheck.IsZero() {
			last := st.LastCheck
			resp.LastCheck = &last
		}
		if !st.Available {
			resp.Message = "Network unavailable. Changes cannot be saved right now."
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
