// Package bus is the in-process event bus. Components publish state changes
// (config reloads, job history writes) and the console subscribes to them.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
)

// Topics published by tgstatctl components.
const (
	TopicConfigReloaded = "config.reloaded" // Data: *config.Config
	TopicJobsChanged    = "jobs.changed"    // Data: types.JobRecord
)

// Event represents a notification broadcast to subscribers
type Event struct {
	Topic     string    // Event topic, one of the Topic* constants
	Data      any       // Optional payload data
	Timestamp time.Time // When the event was published
}

// EventHandler processes an event (no return value - fire and forget)
type EventHandler func(Event)

// SubscriptionID uniquely identifies an event subscription
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// Bus fans events out to topic subscribers. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID uint64
	wg     sync.WaitGroup
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for a topic and returns a function that removes it.
func (b *Bus) Subscribe(topic string, handler EventHandler) (SubscriptionID, func()) {
	id := SubscriptionID(atomic.AddUint64(&b.nextID, 1))

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	L_trace("bus: subscribed", "topic", topic, "subscriptionID", id)
	return id, func() { b.Unsubscribe(id) }
}

// Unsubscribe removes a subscription by its ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subs {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			return true
		}
	}
	return false
}

// Publish broadcasts data to every subscriber of topic.
// Handlers run in their own goroutines; a panicking handler is logged and dropped.
func (b *Bus) Publish(topic string, data any) {
	event := Event{Topic: topic, Data: data, Timestamp: time.Now()}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		L_trace("bus: no subscribers", "topic", topic)
		return
	}
	L_debug("bus: publish", "topic", topic, "subscribers", len(subs))

	for _, sub := range subs {
		b.wg.Add(1)
		go func(s subscription) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					L_error("bus: handler panic", "topic", topic, "subscriptionID", s.id, "panic", r)
				}
			}()
			s.handler(event)
		}(sub)
	}
}

// Wait blocks until every handler started so far has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}
