package registry

import (
	"net/url"
	"sync"

	"github.com/llamaedge/nexus-gateway/internal/backend"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/kind"
)

// Pool is the ordered set of backends currently registered for a single
// Kind. Every descriptor it holds has that Kind among its declared Kinds.
type Pool struct {
	mu         sync.RWMutex
	k          kind.Kind
	descriptors []*backend.Descriptor
}

func newPool(k kind.Kind) *Pool {
	return &Pool{k: k}
}

// Select runs the least-connections routing policy: it scans every
// descriptor, picks the one with the minimum load (ties broken by
// first-seen/insertion order), atomically increments that descriptor's load,
// and returns its base URL. The scan takes only the pool's read lock; the
// load increment itself is a lock-free atomic op so it never blocks a
// concurrent reader.
func (p *Pool) Select() (*url.URL, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.descriptors) == 0 {
		return nil, gwerr.New(gwerr.NotFoundBackend, "No "+p.k.Token()+" server available")
	}

	chosen := p.descriptors[0]
	min := chosen.Load()
	for _, d := range p.descriptors[1:] {
		if l := d.Load(); l < min {
			chosen, min = d, l
		}
	}
	chosen.IncrLoad()
	return chosen.BaseURL, nil
}

// len reports the pool's current size. Callers must hold no lock; len takes
// its own read lock.
func (p *Pool) len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.descriptors)
}

// snapshot returns a value-copy list of every descriptor currently in the
// pool, in insertion order.
func (p *Pool) snapshot() []backend.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]backend.Snapshot, len(p.descriptors))
	for i, d := range p.descriptors {
		out[i] = d.Snapshot()
	}
	return out
}

// insert appends d to the pool. Callers (Registry.Register) must already
// hold the registry's write lock; insert additionally takes the pool's own
// write lock so that Select (which only needs a read lock) never blocks on
// the coarser registry lock.
func (p *Pool) insert(d *backend.Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.descriptors = append(p.descriptors, d)
}

// remove deletes every descriptor matching id from the pool. Returns true if
// at least one was removed.
func (p *Pool) remove(id backend.ID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := false
	kept := p.descriptors[:0]
	for _, d := range p.descriptors {
		if d.ID == id {
			removed = true
			continue
		}
		kept = append(kept, d)
	}
	p.descriptors = kept
	return removed
}
