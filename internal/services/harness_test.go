package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/claim"
	"fintrack/internal/clock"
	"fintrack/internal/core"
	"fintrack/internal/entrystore"
	"fintrack/internal/metrics"
	"fintrack/internal/repository"
	"fintrack/internal/storage"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

// keyFailStore refuses writes to one key while failKey is set.
type keyFailStore struct {
	*storage.MemoryStore
	failKey string
}

func (s *keyFailStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failKey != "" && key == s.failKey {
		return errors.New("write refused")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

type harness struct {
	kv        *keyFailStore
	clock     *clock.Fixed
	store     *entrystore.Local
	entries   *EntryService
	templates *TemplateService
	processor *RecurringProcessor
	claims    *claim.Memory
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	h := &harness{
		kv:     &keyFailStore{MemoryStore: storage.NewMemoryStore()},
		clock:  clock.NewFixed(now),
		claims: claim.NewMemory(48*time.Hour, 128),
	}
	ids := &seqIDs{}
	m := metrics.NewNop()

	entryRepo := repository.New(h.kv, repository.KeyEntries,
		repository.WithDefault(func() []core.Transaction { return []core.Transaction{} }))
	templateRepo := repository.New(h.kv, repository.KeyTemplates,
		repository.WithDefault(func() []core.RecurringTemplate { return []core.RecurringTemplate{} }))

	h.store = entrystore.NewLocal(entryRepo, ids, h.clock)
	h.entries = NewEntryService(h.store, nil, m, nil)
	h.templates = NewTemplateService(templateRepo, ids, h.clock, nil)
	h.processor = NewRecurringProcessor(h.templates, h.entries, h.claims, h.clock, m, nil)
	return h
}

func (h *harness) addTemplate(t *testing.T, rt core.RecurringTemplate) core.RecurringTemplate {
	t.Helper()
	created, err := h.templates.Create(context.Background(), rt)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return created
}

func rentTemplate(start core.Date, f core.Frequency) core.RecurringTemplate {
	return core.RecurringTemplate{
		Type:        core.Expense,
		Description: "Rent",
		Amount:      decimal.NewFromInt(900),
		Category:    "Housing",
		Frequency:   f,
		StartDate:   start,
		IsActive:    true,
	}
}

func entry(t core.EntryType, amount, category, desc string, date core.Date) core.Transaction {
	return core.Transaction{
		Type:        t,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Description: desc,
		Date:        date,
	}
}
