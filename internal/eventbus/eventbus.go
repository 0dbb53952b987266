// Package eventbus is a small synchronous publish/subscribe dispatcher used
// to notify in-process observers of stored-state and connectivity changes.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Topic identifies a stream of events.
type Topic string

const (
	TopicTemplatesChanged Topic = "templates.changed"
	TopicProfileChanged   Topic = "profile.changed"
	TopicEntriesChanged   Topic = "entries.changed"
	TopicNetworkStatus    Topic = "network.status"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Topic     Topic
	Timestamp time.Time
	Data      any
}

type handler func(context.Context, Event)

// Bus is a concurrency-safe synchronous dispatcher. Handlers run in
// subscription order during Publish.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]handler
	order  map[Topic][]uint64
	nextID uint64
}

func New() *Bus {
	return &Bus{
		subs:  make(map[Topic]map[uint64]handler),
		order: make(map[Topic][]uint64),
	}
}

// Subscribe registers h for topic and returns a func that removes it.
func (b *Bus) Subscribe(topic Topic, h func(context.Context, Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]handler)
	}
	b.subs[topic][id] = h
	b.order[topic] = append(b.order[topic], id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			ids := b.order[topic]
			for i, v := range ids {
				if v == id {
					b.order[topic] = append(ids[:i:i], ids[i+1:]...)
					break
				}
			}
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
				delete(b.order, topic)
			}
		})
	}
}

// SubscribeTyped registers a handler that only receives payloads of type T.
func SubscribeTyped[T any](b *Bus, topic Topic, h func(context.Context, T)) (unsubscribe func()) {
	return b.Subscribe(topic, func(ctx context.Context, e Event) {
		if data, ok := e.Data.(T); ok {
			h(ctx, data)
		}
	})
}

// Publish delivers data to every subscriber of topic. A panicking handler is
// logged and does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, topic Topic, data any) {
	b.mu.RLock()
	ids := append([]uint64(nil), b.order[topic]...)
	handlers := make([]handler, 0, len(ids))
	for _, id := range ids {
		if h, ok := b.subs[topic][id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	e := Event{Topic: topic, Timestamp: time.Now(), Data: data}
	for _, h := range handlers {
		h := h
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.ErrorContext(ctx, "Event handler panicked", "topic", topic, "panic", r)
				}
			}()
			h(ctx, e)
		}()
	}
}

// Count returns the number of subscribers for topic.
func (b *Bus) Count(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
