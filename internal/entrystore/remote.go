package entrystore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/http/dto"
	"fintrack/internal/log"
)

const entriesPath = "/api/v1/entries"

// Remote keeps the session's collection in memory and commits every change
// to a REST API first.
type Remote struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger

	mu      sync.Mutex
	entries []core.Transaction
	loaded  bool
}

func NewRemote(baseURL string, timeout time.Duration, logger *log.Logger) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.WithComponent(log.ComponentStorage),
	}
}

func (r *Remote) List(ctx context.Context) ([]core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		if err := r.refresh(ctx); err != nil {
			return nil, err
		}
	}
	return slices.Clone(r.entries), nil
}

// Refresh replaces the session collection with the server's copy.
func (r *Remote) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refresh(ctx)
}

func (r *Remote) refresh(ctx context.Context) error {
	var resp dto.EntryListResponse
	if err := r.do(ctx, "list entries", http.MethodGet, entriesPath, nil, &resp); err != nil {
		return err
	}
	r.entries = resp.Entries
	r.loaded = true
	return nil
}

func (r *Remote) Add(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	req := dto.CreateEntryRequest{
		Type:        t.Type,
		Amount:      t.Amount,
		Category:    t.Category,
		Description: t.Description,
		Date:        t.Date,
		IsRecurring: t.IsRecurring,
		RecurringID: t.RecurringID,
	}
	var created core.Transaction
	if err := r.do(ctx, "create entry", http.MethodPost, entriesPath, req, &created); err != nil {
		return core.Transaction{}, err
	}

	if r.loaded {
		r.entries = append([]core.Transaction{created}, r.entries...)
	}
	return created, nil
}

func (r *Remote) Update(ctx context.Context, id string, patch core.EntryPatch) (core.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated core.Transaction
	if err := r.do(ctx, "update entry", http.MethodPut, entriesPath+"/"+url.PathEscape(id), patch, &updated); err != nil {
		r.refreshOnNotFound(ctx, err)
		return core.Transaction{}, err
	}
	if i := r.index(id); i >= 0 {
		r.entries = slices.Clone(r.entries)
		r.entries[i] = updated
	}
	return updated, nil
}

func (r *Remote) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.do(ctx, "delete entry", http.MethodDelete, entriesPath+"/"+url.PathEscape(id), nil, nil); err != nil {
		r.refreshOnNotFound(ctx, err)
		return err
	}
	if i := r.index(id); i >= 0 {
		r.entries = slices.Delete(slices.Clone(r.entries), i, i+1)
	}
	return nil
}

// Ping checks the API health endpoint.
func (r *Remote) Ping(ctx context.Context) error {
	return r.do(ctx, "ping", http.MethodGet, "/healthz", nil, nil)
}

// refreshOnNotFound reloads the session collection after the server
// reports an entry missing, so the view drops what no longer exists.
// Callers hold r.mu.
func (r *Remote) refreshOnNotFound(ctx context.Context, err error) {
	if !core.IsNotFound(err) || !r.loaded {
		return
	}
	if rerr := r.refresh(ctx); rerr != nil {
		r.logger.WarnContext(ctx, "Failed to refresh entries after not found", log.FieldError, rerr)
	}
}

func (r *Remote) index(id string) int {
	return slices.IndexFunc(r.entries, func(t core.Transaction) bool { return t.ID == id })
}

// do performs one API call and maps the outcome onto the domain error
// taxonomy: 404 is NotFound, 400/422 is a ValidationError, anything else
// is a PersistenceError.
func (r *Remote) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.WarnContext(ctx, "Remote API unreachable", log.FieldOperation, op, log.FieldError, err)
		return core.NewPersistenceError(op, fmt.Errorf("%w: %v", core.ErrNetworkUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return core.NewPersistenceError(op, fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	var apiErr dto.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
	message := apiErr.Message
	if message == "" {
		message = apiErr.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return core.NewNotFound("entry", strings.TrimPrefix(path, entriesPath+"/"))
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return core.NewValidationError(apiErr.Field, message)
	default:
		r.logger.WarnContext(ctx, "Remote API rejected request",
			log.FieldOperation, op, log.FieldStatusCode, resp.StatusCode, log.FieldError, message)
		return core.NewPersistenceError(op, fmt.Errorf("status %d: %s", resp.StatusCode, message))
	}
}
