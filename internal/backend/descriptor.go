// Package backend defines the gateway's backend descriptor: the identity and
// load state of a single downstream inference server.
package backend

import (
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/kind"
)

// ID is the opaque identity the Registry assigns a backend at registration
// time, of the form "<kind-tokens>-server-<nonce>".
type ID string

// Kinds parses the leading kind-token segment of an ID back into a Set.
func (id ID) Kinds() kind.Set {
	s := string(id)
	const suffix = "-server-"
	if i := lastIndex(s, suffix); i >= 0 {
		return kind.ParseSet(s[:i])
	}
	return 0
}

func lastIndex(s, sub string) int {
	for i := len(s) - len(sub); i >= 0; i-- {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// NewID assigns a fresh ID for the given kind set using a random nonce.
func NewID(kinds kind.Set) ID {
	nonce := uuid.New().String()[:8]
	return ID(fmt.Sprintf("%s-server-%s", kinds.Format(), nonce))
}

// Descriptor is a backend's immutable identity plus its mutable, atomically
// observed load counter. Descriptors are shared by pointer across every pool
// they belong to so that the load counter is a single observable quantity;
// a value copy per pool would give each pool its own counter.
type Descriptor struct {
	ID      ID
	BaseURL *url.URL
	Kinds   kind.Set

	load atomic.Uint64
}

// New validates and constructs a Descriptor. The ID is not yet assigned;
// Registry.Register assigns it atomically with insertion.
func New(rawURL string, kinds kind.Set) (*Descriptor, error) {
	if kinds.Empty() {
		return nil, gwerr.New(gwerr.BadRequest, "backend kinds must not be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, gwerr.Wrap(gwerr.SocketAddr, "invalid backend base URL: "+rawURL, err)
	}
	return &Descriptor{BaseURL: u, Kinds: kinds}, nil
}

// Load returns the current load counter value. Safe for concurrent use.
func (d *Descriptor) Load() uint64 {
	return d.load.Load()
}

// IncrLoad atomically increments the load counter by one and returns the new
// value. The counter is never decremented: it counts every request routed
// to the backend, which Pool.Select compares.
func (d *Descriptor) IncrLoad() uint64 {
	return d.load.Add(1)
}

// Snapshot is a value-type copy of a Descriptor suitable for returning from
// Registry.List, decoupled from the live, mutating instance.
type Snapshot struct {
	ID      ID     `json:"id"`
	BaseURL string `json:"url"`
	Kinds   []string `json:"kinds"`
	Load    uint64 `json:"load"`
}

// Snapshot captures the descriptor's current state as an immutable value.
func (d *Descriptor) Snapshot() Snapshot {
	kinds := d.Kinds.Kinds()
	toks := make([]string, len(kinds))
	for i, k := range kinds {
		toks[i] = k.Token()
	}
	return Snapshot{
		ID:      d.ID,
		BaseURL: d.BaseURL.String(),
		Kinds:   toks,
		Load:    d.Load(),
	}
}
