// Package event provides generic event emission utilities.
package event

import "sync"

// Poster runs a function on some other goroutine, typically an event loop.
type Poster interface {
	Post(fn func()) bool
}

// Emitter fans events out to registered handlers.
//
// By default handlers run synchronously on the emitting goroutine. When a
// Poster is set, each Emit is posted to it instead, so handlers observe events
// on the poster's goroutine in emission order.
type Emitter[E any] struct {
	mu sync.RWMutex
	// +checklocks:mu
	handlers []subscription[E]
	// +checklocks:mu
	nextID uint64
	// +checklocks:mu
	poster Poster
}

type subscription[E any] struct {
	id uint64
	fn func(E)
}

// SetPoster routes future emissions through p. A nil p restores synchronous
// delivery.
func (e *Emitter[E]) SetPoster(p Poster) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.poster = p
}

// OnEvent registers an event handler and returns a function that removes it.
func (e *Emitter[E]) OnEvent(handler func(E)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, subscription[E]{id: id, fn: handler})

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[E]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.handlers {
		if s.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Emit sends an event to all registered handlers.
// The handler set is snapshotted at call time, so handlers registered during
// emission do not see the event.
// Must not be called with lock held.
func (e *Emitter[E]) Emit(event E) {
	e.mu.RLock()
	handlers := make([]func(E), len(e.handlers))
	for i, s := range e.handlers {
		handlers[i] = s.fn
	}
	poster := e.poster
	e.mu.RUnlock()

	deliver := func() {
		for _, h := range handlers {
			h(event)
		}
	}
	if poster != nil {
		// A stopped poster drops the event.
		poster.Post(deliver)
		return
	}
	deliver()
}

// Len returns the number of registered handlers.
func (e *Emitter[E]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}
