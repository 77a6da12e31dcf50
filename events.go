package agenda

import (
	"strconv"
	"sync"
	"time"
)

// EventKind identifies a notification published on the Bus.
type EventKind string

const (
	EventSyncCompleted    EventKind = "sync_completed"
	EventSyncFailed       EventKind = "sync_failed"
	EventCacheInvalidated EventKind = "cache_invalidated"
	EventOnline           EventKind = "online"
	EventOffline          EventKind = "offline"
)

// Event is a notification delivered to Bus subscribers.
type Event struct {
	Kind     EventKind
	Report   *SyncReport // sync events
	Err      error       // EventSyncFailed
	Category Category    // EventCacheInvalidated
	Key      string      // EventCacheInvalidated
	At       time.Time
}

// Invalidator receives write-only cache invalidation signals.
type Invalidator interface {
	Invalidate(category Category, key string)
}

// Bus fans events out to subscribers. Subscribers run synchronously on the
// publishing goroutine and must not block. A nil *Bus drops events.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Invalidate publishes EventCacheInvalidated for category and key.
func (b *Bus) Invalidate(category Category, key string) {
	b.Publish(Event{Kind: EventCacheInvalidated, Category: category, Key: key})
}

// cacheKey is the invalidation key for one owner's records in a year.
func cacheKey(owner string, year int) string {
	if year == 0 {
		return owner
	}
	return owner + "/" + strconv.Itoa(year)
}
