package entrystore

import (
	"context"
	"slices"
	"sync"

	"fintrack/internal/clock"
	"fintrack/internal/core"
	"fintrack/internal/repository"
)

// Local keeps the collection in a key-value repository. Every call reads
// the stored collection so that processes sharing the store see each
// other's writes; the mutex serialises read-modify-write within this
// process.
type Local struct {
	mu    sync.Mutex
	repo  *repository.Repository[[]core.Transaction]
	ids   core.IDGenerator
	clock clock.Clock
}

func NewLocal(repo *repository.Repository[[]core.Transaction], ids core.IDGenerator, clk clock.Clock) *Local {
	return &Local{repo: repo, ids: ids, clock: clk}
}

func (l *Local) List(ctx context.Context) ([]core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

func (l *Local) Add(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return core.Transaction{}, err
	}

	t.ID = l.ids.NewID()
	t.CreatedAt = l.clock.Now().UTC()
	next := append([]core.Transaction{t}, entries...)
	if err := l.commit(ctx, "add entry", next); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (l *Local) Update(ctx context.Context, id string, patch core.EntryPatch) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return core.Transaction{}, err
	}

	i := indexOf(entries, id)
	if i < 0 {
		return core.Transaction{}, core.NewNotFound("entry", id)
	}
	updated := patch.Apply(entries[i])
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}

	entries[i] = updated
	if err := l.commit(ctx, "update entry", entries); err != nil {
		return core.Transaction{}, err
	}
	return updated, nil
}

func (l *Local) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return err
	}

	i := indexOf(entries, id)
	if i < 0 {
		return core.NewNotFound("entry", id)
	}
	return l.commit(ctx, "delete entry", slices.Delete(entries, i, i+1))
}

// Ping reports whether the backing store can be read.
func (l *Local) Ping(ctx context.Context) error {
	if _, err := l.repo.Get(ctx); err != nil {
		return core.NewPersistenceError("ping", err)
	}
	return nil
}

// load returns a fresh copy of the stored collection.
func (l *Local) load(ctx context.Context) ([]core.Transaction, error) {
	entries, err := l.repo.Get(ctx)
	if err != nil {
		return nil, core.NewPersistenceError("load entries", err)
	}
	return entries, nil
}

func (l *Local) commit(ctx context.Context, op string, next []core.Transaction) error {
	if err := l.repo.Set(ctx, next); err != nil {
		return core.NewPersistenceError(op, err)
	}
	return nil
}

func indexOf(entries []core.Transaction, id string) int {
	return slices.IndexFunc(entries, func(t core.Transaction) bool { return t.ID == id })
}
