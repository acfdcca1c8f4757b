package topology

import (
	"sync"
	"sync/atomic"
)

// Holder keeps current Topology and publishes replacements atomically.
// Concurrent publishers never interleave partial updates: every replacement is
// computed from a snapshot and stored with compare-and-swap.
type Holder struct {
	cur atomic.Pointer[Topology]

	m      sync.Mutex
	nextID uint64
	subs   map[uint64]func(*Topology)
}

// NewHolder creates holder with initial topology.
func NewHolder(t *Topology) *Holder {
	h := &Holder{subs: make(map[uint64]func(*Topology))}
	h.cur.Store(t)
	return h
}

// Load returns current topology.
func (h *Holder) Load() *Topology {
	return h.cur.Load()
}

// Replace publishes new master address for the named group.
// It returns false if group is not tracked or the address is unchanged.
func (h *Holder) Replace(name, host string, port int) bool {
	for {
		old := h.cur.Load()
		i := old.Index(name)
		if i < 0 {
			return false
		}
		spec := old.Shard(i)
		spec.Host = host
		spec.Port = port
		next := old.With(i, spec)
		if next == old {
			return false
		}
		if h.cur.CompareAndSwap(old, next) {
			h.notify(next)
			return true
		}
	}
}

// Store publishes whole topology. Topology must have the same groups in the same order.
// It returns false if t is element-wise equal to current one or groups differ.
func (h *Holder) Store(t *Topology) bool {
	for {
		old := h.cur.Load()
		if old.Equal(t) || !sameGroups(old, t) {
			return false
		}
		if h.cur.CompareAndSwap(old, t) {
			h.notify(t)
			return true
		}
	}
}

// Subscribe registers callback called after every published change.
// Callback is called in publisher's goroutine and must not block for long.
// Returned function unregisters callback.
func (h *Holder) Subscribe(cb func(*Topology)) (cancel func()) {
	h.m.Lock()
	defer h.m.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = cb
	return func() {
		h.m.Lock()
		defer h.m.Unlock()
		delete(h.subs, id)
	}
}

func (h *Holder) notify(t *Topology) {
	h.m.Lock()
	cbs := make([]func(*Topology), 0, len(h.subs))
	for _, cb := range h.subs {
		cbs = append(cbs, cb)
	}
	h.m.Unlock()
	for _, cb := range cbs {
		cb(t)
	}
}

func sameGroups(a, b *Topology) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.Shard(i).Name != b.Shard(i).Name {
			return false
		}
	}
	return true
}
