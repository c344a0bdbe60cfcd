package slice

import (
	"context"
	"sync"
	"time"
)

// Registry keeps one value per key (one resource set per browser) and
// evicts values that were not used for ttl. A zero ttl never expires.
type Registry[V any] struct {
	create  func(key string) V
	release func(V)
	ttl     time.Duration
	now     func() time.Time
	onSize  func(int)

	mu      sync.Mutex
	entries map[string]*entry[V]
}

type entry[V any] struct {
	value    V
	lastSeen time.Time
}

// NewRegistry builds values with create and disposes of them with release.
func NewRegistry[V any](ttl time.Duration, create func(key string) V, release func(V)) *Registry[V] {
	if release == nil {
		release = func(V) {}
	}
	return &Registry[V]{
		create:  create,
		release: release,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry[V]),
	}
}

// OnSize is called with the entry count after every change.
func (r *Registry[V]) OnSize(fn func(int)) {
	r.mu.Lock()
	r.onSize = fn
	r.mu.Unlock()
}

// Get returns the value for key, creating it when missing or expired.
// Every call extends the entry's lifetime.
func (r *Registry[V]) Get(key string) V {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e, ok := r.entries[key]; ok {
		if !r.expired(e, now) {
			e.lastSeen = now
			return e.value
		}
		r.release(e.value)
		delete(r.entries, key)
	}
	e := &entry[V]{value: r.create(key), lastSeen: now}
	r.entries[key] = e
	r.sizeChanged()
	return e.value
}

// Invalidate disposes of the value for key. Call it on logout.
func (r *Registry[V]) Invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		r.release(e.value)
		delete(r.entries, key)
		r.sizeChanged()
	}
}

// Sweep disposes of expired values and returns how many were removed.
func (r *Registry[V]) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for k, e := range r.entries {
		if r.expired(e, now) {
			r.release(e.value)
			delete(r.entries, k)
			n++
		}
	}
	if n > 0 {
		r.sizeChanged()
	}
	return n
}

// Len returns the number of live entries.
func (r *Registry[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps every interval until ctx is done, then releases everything.
func (r *Registry[V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

// Close releases every value.
func (r *Registry[V]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.entries {
		r.release(e.value)
		delete(r.entries, k)
	}
	r.sizeChanged()
}

func (r *Registry[V]) expired(e *entry[V], now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.lastSeen) >= r.ttl
}

func (r *Registry[V]) sizeChanged() {
	if r.onSize != nil {
		r.onSize(len(r.entries))
	}
}
