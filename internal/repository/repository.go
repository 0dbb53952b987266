// Package repository provides typed access to one storage key, with a
// versioned envelope and change notifications.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fintrack/internal/eventbus"
	"fintrack/internal/storage"
)

// Persisted keys.
const (
	KeyEntries   = "entries"
	KeyTemplates = "recurring_templates"
	KeyProfile   = "profile"
)

// Migration upgrades raw data from version N to N+1.
type Migration func(json.RawMessage) (json.RawMessage, error)

type envelope struct {
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Repository reads and writes a single T under one storage key.
type Repository[T any] struct {
	store      storage.Store
	key        string
	version    int
	migrations map[int]Migration
	zero       func() T
	bus        *eventbus.Bus
	topic      eventbus.Topic
}

type Option[T any] func(*Repository[T])

// WithVersion sets the current schema version and the migrations that lead
// up to it, keyed by the version they upgrade from.
func WithVersion[T any](version int, migrations map[int]Migration) Option[T] {
	return func(r *Repository[T]) {
		r.version = version
		r.migrations = migrations
	}
}

// WithDefault sets the value returned when the key has never been written.
func WithDefault[T any](fn func() T) Option[T] {
	return func(r *Repository[T]) { r.zero = fn }
}

// WithBus publishes change notifications on a shared bus under topic.
func WithBus[T any](bus *eventbus.Bus, topic eventbus.Topic) Option[T] {
	return func(r *Repository[T]) {
		r.bus = bus
		r.topic = topic
	}
}

func New[T any](store storage.Store, key string, opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		store:   store,
		key:     key,
		version: 1,
		zero:    func() T { var v T; return v },
		bus:     eventbus.New(),
		topic:   eventbus.Topic(key),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository[T]) Key() string { return r.key }

// Get loads the stored value, upgrading older envelopes. A key that was
// never written yields the default value.
func (r *Repository[T]) Get(ctx context.Context) (T, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return r.zero(), nil
	}
	if err != nil {
		return r.zero(), fmt.Errorf("load %s: %w", r.key, err)
	}

	version, data := unwrap(raw)
	if version > r.version {
		return r.zero(), fmt.Errorf("load %s: stored version %d is newer than supported version %d", r.key, version, r.version)
	}
	for v := version; v < r.version; v++ {
		migrate, ok := r.migrations[v]
		if !ok {
			if v == 0 {
				continue
			}
			return r.zero(), fmt.Errorf("load %s: no migration from version %d", r.key, v)
		}
		if data, err = migrate(data); err != nil {
			return r.zero(), fmt.Errorf("load %s: migrate from version %d: %w", r.key, v, err)
		}
	}

	value := r.zero()
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return value, nil
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return r.zero(), fmt.Errorf("decode %s: %w", r.key, err)
	}
	return value, nil
}

// Set replaces the stored value and then notifies subscribers.
func (r *Repository[T]) Set(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.key, err)
	}
	raw, err := json.Marshal(envelope{Version: r.version, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", r.key, err)
	}
	if err := r.store.Set(ctx, r.key, raw); err != nil {
		return fmt.Errorf("save %s: %w", r.key, err)
	}
	r.bus.Publish(ctx, r.topic, value)
	return nil
}

// Subscribe registers fn to run after every successful Set.
func (r *Repository[T]) Subscribe(fn func(context.Context, T)) (unsubscribe func()) {
	return eventbus.SubscribeTyped(r.bus, r.topic, fn)
}

// unwrap splits an envelope into version and payload. Records written
// before envelopes existed are returned whole as version 0.
func unwrap(raw []byte) (int, json.RawMessage) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		v, hasVersion := fields["version"]
		d, hasData := fields["data"]
		if hasVersion && hasData && len(fields) == 2 {
			var version int
			if err := json.Unmarshal(v, &version); err == nil {
				return version, d
			}
		}
	}
	return 0, raw
}
