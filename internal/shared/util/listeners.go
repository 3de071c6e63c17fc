package util

import (
	"sort"
	"sync"
)

// Listeners is a registry of callbacks for one event type.
type Listeners[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
}

// Add registers fn and returns a function that removes it.
func (l *Listeners[T]) Add(fn func(T)) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

// Emit calls every registered listener in registration order. Listeners run
// outside the registry lock and may unsubscribe themselves.
func (l *Listeners[T]) Emit(v T) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	fns := make([]func(T), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered listeners.
func (l *Listeners[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}
