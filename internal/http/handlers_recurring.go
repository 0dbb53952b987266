package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/http/dto"
)

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.tracker.Templates.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TemplateList(templates))
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	created, err := s.tracker.Templates.Create(r.Context(), req.ToTemplate())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	rt, err := s.tracker.Templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var patch core.TemplatePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		badRequest(w, err)
		return
	}

	updated, err := s.tracker.Templates.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleTemplate sets isActive when given, otherwise flips it.
func (s *Server) handleToggleTemplate(w http.ResponseWriter, r *http.Request) {
	var req dto.SetActiveRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	var (
		rt  core.RecurringTemplate
		err error
	)
	if req.IsActive != nil {
		rt, err = s.tracker.Templates.SetActive(r.Context(), id, *req.IsActive)
	} else {
		rt, err = s.tracker.Templates.Toggle(r.Context(), id)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", 5)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	upcoming, err := s.tracker.Upcoming(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TemplateList(upcoming))
}

func (s *Server) handleProcessDue(w http.ResponseWriter, r *http.Request) {
	result, err := s.tracker.ProcessDue(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := dto.ProcessResponse{Emitted: len(result.Emitted), Entries: result.Emitted}
	if resp.Entries == nil {
		resp.Entries = []core.Transaction{}
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, dto.ProcessFailure{TemplateID: f.TemplateID, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProcessNow(w http.ResponseWriter, r *http.Request) {
	entry, err := s.tracker.ProcessNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
