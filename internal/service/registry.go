package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnendingLoop/ImageVariants/internal/metrics"
	"github.com/UnendingLoop/ImageVariants/internal/variant"
	"github.com/google/uuid"
)

// liveEntry keeps one in-memory Variant per id so that its mutators stay serialized across requests.
// mu additionally covers persisting the outcome of a mutation.
type liveEntry struct {
	v         *variant.Variant
	createdAt *time.Time
	mu        sync.Mutex
	lastUsed  atomic.Int64 // unix nano
}

func newLiveEntry(v *variant.Variant, createdAt *time.Time) *liveEntry {
	e := &liveEntry{v: v, createdAt: createdAt}
	e.touch()
	return e
}

func (e *liveEntry) touch() { e.lastUsed.Store(time.Now().UnixNano()) }

type registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*liveEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[uuid.UUID]*liveEntry)}
}

func (r *registry) get(id uuid.UUID) (*liveEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if ok {
		e.touch()
	}
	return e, ok
}

func (r *registry) put(v *variant.Variant) *liveEntry {
	now := time.Now().UTC()
	e := newLiveEntry(v, &now)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[v.ID()] = e
	metrics.VariantsLive.Set(float64(len(r.entries)))
	return e
}

// putIfAbsent keeps an already registered entry; loaded reports that v was not stored.
func (r *registry) putIfAbsent(v *variant.Variant, createdAt *time.Time) (e *liveEntry, loaded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[v.ID()]; ok {
		e.touch()
		return e, true
	}
	e = newLiveEntry(v, createdAt)
	r.entries[v.ID()] = e
	metrics.VariantsLive.Set(float64(len(r.entries)))
	return e, false
}

func (r *registry) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	metrics.VariantsLive.Set(float64(len(r.entries)))
}

// evictIdle drops entries unused since before now-maxIdle. The variants are not destroyed: their
// resources are referenced from the DB and the next access restores them from there.
// Entries whose mutex is held are in use and stay.
func (r *registry) evictIdle(now time.Time, maxIdle time.Duration) int {
	deadline := now.Add(-maxIdle).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.entries {
		if e.lastUsed.Load() > deadline || !e.mu.TryLock() {
			continue
		}
		delete(r.entries, id)
		e.mu.Unlock()
		evicted++
	}
	metrics.VariantsLive.Set(float64(len(r.entries)))
	return evicted
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
