package utils

import (
	"encoding/json"
	"sync"
	"time"
)

// CachedEvent is one webhook notification held in the in-memory cache
type CachedEvent struct {
	ID         uint64          `json:"id"`
	Type       string          `json:"type"`
	ProviderID string          `json:"provider_id"`
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"received_at"`
}

// EventCache is a bounded append-only ring buffer of webhook events,
// polled by external clients. Once capacity is reached the oldest events
// are evicted. It is constructed once at startup and only reset through
// the explicit Clear operation.
type EventCache struct {
	mu       sync.RWMutex
	events   []CachedEvent
	capacity int
	nextID   uint64
}

const DefaultEventCacheSize = 10000

func NewEventCache(capacity int) *EventCache {
	if capacity <= 0 {
		capacity = DefaultEventCacheSize
	}
	return &EventCache{
		capacity: capacity,
		nextID:   1,
	}
}

// Add appends an event, evicting the oldest entries past capacity
func (ec *EventCache) Add(eventType, providerID string, data json.RawMessage) CachedEvent {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ev := CachedEvent{
		ID:         ec.nextID,
		Type:       eventType,
		ProviderID: providerID,
		Data:       data,
		ReceivedAt: time.Now().UTC(),
	}
	ec.nextID++

	ec.events = append(ec.events, ev)
	if len(ec.events) > ec.capacity {
		ec.events = ec.events[len(ec.events)-ec.capacity:]
	}
	return ev
}

// Since returns events with ID greater than sinceID, plus the latest id
func (ec *EventCache) Since(sinceID uint64) ([]CachedEvent, uint64) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	var out []CachedEvent
	for _, ev := range ec.events {
		if ev.ID > sinceID {
			out = append(out, ev)
		}
	}

	var latest uint64
	if len(ec.events) > 0 {
		latest = ec.events[len(ec.events)-1].ID
	}
	return out, latest
}

// Search filters by event type and/or provider id, newest first
func (ec *EventCache) Search(eventType, providerID string, limit int) []CachedEvent {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	var out []CachedEvent
	for i := len(ec.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := ec.events[i]
		if eventType != "" && ev.Type != eventType {
			continue
		}
		if providerID != "" && ev.ProviderID != providerID {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Summary reports the total count, counts by type, and the newest events
func (ec *EventCache) Summary(recent int) (int, map[string]int, []CachedEvent) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	byType := make(map[string]int)
	for _, ev := range ec.events {
		byType[ev.Type]++
	}

	if recent > len(ec.events) {
		recent = len(ec.events)
	}
	newest := make([]CachedEvent, recent)
	copy(newest, ec.events[len(ec.events)-recent:])

	return len(ec.events), byType, newest
}

// Len returns the number of cached events
func (ec *EventCache) Len() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.events)
}

// Clear empties the cache and resets the id counter, returning how many
// events were dropped
func (ec *EventCache) Clear() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	n := len(ec.events)
	ec.events = nil
	ec.nextID = 1
	return n
}
