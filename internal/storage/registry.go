package storage

import (
	"sync"
	"time"
)

// Registry holds live sessions by id and forgets them after ttl of
// inactivity.
type Registry[T any] struct {
	mu    sync.RWMutex
	items map[string]*entry[T]
	ttl   time.Duration
	now   func() time.Time
}

type entry[T any] struct {
	v    T
	seen time.Time
}

func NewRegistry[T any](ttl time.Duration) *Registry[T] {
	return &Registry[T]{items: make(map[string]*entry[T]), ttl: ttl, now: time.Now}
}

func (r *Registry[T]) Put(id string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = &entry[T]{v: v, seen: r.now()}
}

func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok || (r.ttl > 0 && r.now().Sub(e.seen) > r.ttl) {
		var zero T
		return zero, false
	}
	e.seen = r.now()
	return e.v, true
}

func (r *Registry[T]) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Sweep drops expired sessions and returns them so the caller can
// release their resources.
func (r *Registry[T]) Sweep() []T {
	if r.ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []T
	for id, e := range r.items {
		if r.now().Sub(e.seen) > r.ttl {
			delete(r.items, id)
			out = append(out, e.v)
		}
	}
	return out
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
