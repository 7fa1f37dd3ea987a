package vectordb

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry caches one Driver per vector-DB server URL, so repeated RAG
// requests against the same server reuse a single gRPC connection rather
// than dialing per request. Adapted from the gateway lineage's
// map[string]Driver-behind-sync.RWMutex pattern used for its vectorstore
// and embeddings driver registries.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver

	// dial constructs a live Driver for a URL not yet cached. Overridable in
	// tests to avoid dialing real Qdrant.
	dial func(rawURL string) (Driver, error)
}

// NewRegistry constructs a Registry that dials real Qdrant servers.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]Driver),
		dial:    dialQdrant,
	}
}

// NewTestRegistry constructs a Registry backed entirely by a MemoryDriver,
// ignoring the requested URL — used by RAG pipeline tests.
func NewTestRegistry() *Registry {
	shared := NewMemoryDriver()
	return &Registry{
		drivers: make(map[string]Driver),
		dial:    func(string) (Driver, error) { return shared, nil },
	}
}

func dialQdrant(rawURL string) (Driver, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing vector DB url %q: %w", rawURL, err)
	}
	port := 6334
	if p := u.Port(); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}
	return NewQdrantDriver(u.Hostname(), port, "", u.Scheme == "https")
}

// Get returns the Driver for rawURL, dialing and caching one if absent.
func (r *Registry) Get(rawURL string) (Driver, error) {
	r.mu.RLock()
	d, ok := r.drivers[rawURL]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drivers[rawURL]; ok {
		return d, nil
	}
	d, err := r.dial(rawURL)
	if err != nil {
		return nil, err
	}
	r.drivers[rawURL] = d
	log.Info().Str("url", rawURL).Msg("vector DB driver connected")
	return d, nil
}

// Close tears down every cached driver.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for url, d := range r.drivers {
		if err := d.Close(); err != nil {
			log.Warn().Str("url", url).Err(err).Msg("error closing vector DB driver")
		}
	}
}
