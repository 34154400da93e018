// Package events provides the typed notification feeds that the metronome,
// the workout state machine and the playback monitor publish on.
package events

import (
	"sort"
	"sync"
)

// Feed is a typed pub/sub point. Listeners are called synchronously on the
// publishing goroutine, in registration order, outside the feed's lock.
type Feed[T any] struct {
	mu        sync.RWMutex
	listeners map[uint64]func(T)
	nextID    uint64
	replay    bool
	last      T
	hasLast   bool
}

// NewFeed creates a feed. With replay set, a new listener immediately
// receives the most recent published value, if any.
func NewFeed[T any](replay bool) *Feed[T] {
	return &Feed[T]{
		listeners: make(map[uint64]func(T)),
		replay:    replay,
	}
}

// Subscribe registers fn and returns the function that removes it.
func (f *Feed[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		panic("events: nil listener")
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	last, send := f.last, f.replay && f.hasLast
	f.mu.Unlock()

	if send {
		fn(last)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers v to every current listener.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	if f.replay {
		f.last = v
		f.hasLast = true
	}
	ids := make([]uint64, 0, len(f.listeners))
	for id := range f.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.listeners[id])
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Last returns the most recently published value on a replay feed.
func (f *Feed[T]) Last() (T, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.last, f.hasLast
}

// Len reports the number of registered listeners.
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}

// Channel subscribes a buffered channel to the feed. Values are dropped
// when the buffer is full so a slow reader never stalls the publisher.
func Channel[T any](f *Feed[T], size int) (<-chan T, func()) {
	ch := make(chan T, size)
	unsubscribe := f.Subscribe(func(v T) {
		select {
		case ch <- v:
		default:
		}
	})
	return ch, unsubscribe
}
