// Package registry implements the gateway's backend registry: the
// process-lifetime map from Kind to Pool, with reader-writer concurrency
// discipline and atomic cross-pool register/unregister. It generalizes the
// map[string]Driver-behind-sync.RWMutex pattern the gateway's lineage uses
// for its vectorstore and embeddings driver registries into a pool-of-
// backends registry keyed by capability Kind.
package registry

import (
	"net/http"
	"sync"

	"github.com/llamaedge/nexus-gateway/internal/backend"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/kind"
)

// Capabilities is the parsed /v1/info response for a backend, cached by the
// Registry on successful verification (spec requires this cache be
// populated, not left as a commented-out no-op).
type Capabilities struct {
	ChatModel       *ModelDescriptor `json:"chatModel,omitempty"`
	EmbeddingModel  *ModelDescriptor `json:"embeddingModel,omitempty"`
	ImageModel      *ModelDescriptor `json:"imageModel,omitempty"`
	TTSModel        *ModelDescriptor `json:"ttsModel,omitempty"`
	TranslateModel  *ModelDescriptor `json:"translateModel,omitempty"`
	TranscribeModel *ModelDescriptor `json:"transcribeModel,omitempty"`
}

// ModelDescriptor is the per-kind model metadata a backend's /v1/info
// reports, including the RAG-relevant prompt template fields.
type ModelDescriptor struct {
	Name             string `json:"name"`
	PromptTemplate   string `json:"promptTemplate,omitempty"`
	HasSystemPrompt  bool   `json:"hasSystemPrompt,omitempty"`
}

// ForKind returns the ModelDescriptor matching k, or nil if the backend
// didn't declare one.
func (c *Capabilities) ForKind(k kind.Kind) *ModelDescriptor {
	switch k {
	case kind.Chat:
		return c.ChatModel
	case kind.Embeddings:
		return c.EmbeddingModel
	case kind.Image:
		return c.ImageModel
	case kind.TTS:
		return c.TTSModel
	case kind.Translate:
		return c.TranslateModel
	case kind.Transcribe:
		return c.TranscribeModel
	}
	return nil
}

// Registry is the process-wide Kind→Pool map. Pools are created lazily on
// first register of that Kind; an absent key behaves as an empty pool.
type Registry struct {
	mu    sync.RWMutex
	pools map[kind.Kind]*Pool

	capMu        sync.RWMutex
	capabilities map[backend.ID]*Capabilities
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		pools:        make(map[kind.Kind]*Pool),
		capabilities: make(map[backend.ID]*Capabilities),
	}
}

// Pool returns the pool for k, creating it if this is the first reference.
// Pool is exposed so dispatchers can call Select without going through the
// coarser registry lock on every request.
func (r *Registry) Pool(k kind.Kind) *Pool {
	r.mu.RLock()
	p, ok := r.pools[k]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[k]; ok {
		return p
	}
	p = newPool(k)
	r.pools[k] = p
	return p
}

// Register assigns a BackendId (if absent) and atomically inserts d into
// every pool matching d.Kinds — either it lands in all of them or, on
// failure, none. The registry's write lock is held across pool lookup and
// insertion into every pool, never across network I/O (verification must
// already have completed before Register is called).
func (r *Registry) Register(d *backend.Descriptor) (backend.ID, error) {
	if d.Kinds.Empty() {
		return "", gwerr.New(gwerr.BadRequest, "backend kinds must not be empty")
	}
	if d.ID == "" {
		d.ID = backend.NewID(d.Kinds)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pools := make([]*Pool, 0, len(d.Kinds.Kinds()))
	for _, k := range d.Kinds.Kinds() {
		p, ok := r.pools[k]
		if !ok {
			p = newPool(k)
			r.pools[k] = p
		}
		pools = append(pools, p)
	}

	// Insertion into each pool additionally takes that pool's own write
	// lock; the registry lock stays held so no other register or unregister
	// interleaves with this multi-pool commit.
	for _, p := range pools {
		p.insert(d)
	}
	return d.ID, nil
}

// Unregister parses the Kind tokens from id's prefix and removes the
// matching descriptor from every one of those pools. It is best-effort
// across pools: it reports NotFoundBackend only if no pool contained id at
// all.
func (r *Registry) Unregister(id backend.ID) error {
	kinds := id.Kinds()
	if kinds.Empty() {
		return gwerr.New(gwerr.NotFoundBackend, "unknown backend id: "+string(id))
	}

	found := false
	for _, k := range kinds.Kinds() {
		p := r.Pool(k)
		if p.remove(id) {
			found = true
		}
	}

	r.capMu.Lock()
	delete(r.capabilities, id)
	r.capMu.Unlock()

	if !found {
		return gwerr.New(gwerr.NotFoundBackend, "unknown backend id: "+string(id))
	}
	return nil
}

// List returns a snapshot of every non-empty pool, keyed by kind token.
func (r *Registry) List() map[string][]backend.Snapshot {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.pools))
	keys := make([]kind.Kind, 0, len(r.pools))
	for k, p := range r.pools {
		pools = append(pools, p)
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	out := make(map[string][]backend.Snapshot, len(pools))
	for i, p := range pools {
		snap := p.snapshot()
		if len(snap) == 0 {
			continue
		}
		out[keys[i].Token()] = snap
	}
	return out
}

// PutCapabilities populates the capability cache for id. Called by the admin
// register handler with the capabilities the verifier returned, after
// Register has committed the descriptor.
func (r *Registry) PutCapabilities(id backend.ID, caps *Capabilities) {
	r.capMu.Lock()
	defer r.capMu.Unlock()
	r.capabilities[id] = caps
}

// Capabilities returns the cached capabilities for id, if any.
func (r *Registry) Capabilities(id backend.ID) (*Capabilities, bool) {
	r.capMu.RLock()
	defer r.capMu.RUnlock()
	c, ok := r.capabilities[id]
	return c, ok
}

// HTTPClient is the request-issuing interface satisfied by *http.Client. The
// verifier and proxy in this module hold a concrete *http.Client and do not
// use it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
