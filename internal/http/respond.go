package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/http/dto"
	"fintrack/internal/log"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("empty request body")

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, resp dto.ErrorResponse) {
	writeJSON(w, status, resp)
}

// writeDomainError maps err onto a status and error body and logs server
// side failures.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path, log.FieldError, err)
	}
	writeError(w, status, resp)
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) (int, dto.ErrorResponse) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, dto.ErrorResponse{Error: dto.CodeValidation, Message: ve.Message, Field: ve.Field}
	case core.IsNotFound(err):
		return http.StatusNotFound, dto.ErrorResponse{Error: dto.CodeNotFound, Message: err.Error()}
	case errors.Is(err, core.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable, dto.ErrorResponse{Error: dto.CodePersistence, Message: "Network unavailable. Changes were not saved."}
	case core.IsPersistence(err):
		return http.StatusServiceUnavailable, dto.ErrorResponse{Error: dto.CodePersistence, Message: "Could not save changes. Please try again."}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Error: dto.CodeInternal, Message: "internal error"}
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
// An empty body yields errEmptyBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, dto.ErrorResponse{Error: dto.CodeBadRequest, Message: err.Error()})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) (int, error) {
	val := strings.TrimSpace(r.URL.Query().Get(key))
	if val == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(key, key+" must be an integer")
	}
	return i, nil
}
