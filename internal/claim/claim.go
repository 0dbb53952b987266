// Package claim guards recurring emissions so that one (template, due date)
// pair is emitted at most once across processes sharing a claimer.
package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

//go:generate mockgen -source=claim.go -destination=mocks/mock_claim.go -package=mocks

// Claimer is a compare-and-set lock keyed by template and due date.
type Claimer interface {
	// Claim reports whether the caller won the (templateID, due) slot.
	Claim(ctx context.Context, templateID string, due core.Date) (bool, error)
	// Release gives the slot back after a failed emission.
	Release(ctx context.Context, templateID string, due core.Date) error
}

func key(templateID string, due core.Date) string {
	return fmt.Sprintf("fintrack:claim:%s:%s", templateID, due)
}

// Memory claims slots in a process-local LRU. It prevents duplicates
// within one process only.
type Memory struct {
	slots *cache.LRUCache[struct{}]
}

func NewMemory(ttl time.Duration, capacity int) *Memory {
	return &Memory{slots: cache.NewLRUCache[struct{}](capacity, ttl)}
}

// Cache exposes the backing LRU so it can be registered for sweeping.
func (m *Memory) Cache() *cache.LRUCache[struct{}] {
	return m.slots
}

func (m *Memory) Claim(_ context.Context, templateID string, due core.Date) (bool, error) {
	return m.slots.SetIfAbsent(key(templateID, due), struct{}{}), nil
}

func (m *Memory) Release(_ context.Context, templateID string, due core.Date) error {
	m.slots.Delete(key(templateID, due))
	return nil
}

// Redis claims slots with SETNX so every process sharing the server agrees.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Claim(ctx context.Context, templateID string, due core.Date) (bool, error) {
	ok, err := r.client.SetNX(ctx, key(templateID, due), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", templateID, err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, templateID string, due core.Date) error {
	if err := r.client.Del(ctx, key(templateID, due)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", templateID, err)
	}
	return nil
}
