// Package entrystore holds the session's transaction list and keeps it in
// step with a persistence collaborator.
package entrystore

import (
	"context"

	"fintrack/internal/core"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// Store is the ordered collection of transactions, newest first. Every
// mutation is persisted before it becomes visible; a failed write leaves
// the collection unchanged and returns a *core.PersistenceError.
type Store interface {
	List(ctx context.Context) ([]core.Transaction, error)
	// Add stores t and returns it with ID and CreatedAt assigned.
	Add(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, id string, patch core.EntryPatch) (core.Transaction, error)
	Remove(ctx context.Context, id string) error
}

// Pinger reports whether the persistence collaborator is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
