// Package verifier probes a candidate backend's declared capabilities before
// the registry commits its registration.
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/llamaedge/nexus-gateway/internal/backend"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/kind"
	"github.com/llamaedge/nexus-gateway/internal/registry"
	"github.com/rs/zerolog/log"
)

// ModelList is the body shape of a backend's GET /v1/models response.
type ModelList struct {
	Data []Model `json:"data"`
}

// Model is a single entry in a backend's model list.
type Model struct {
	ID string `json:"id"`
}

// Verifier probes candidate backends against the contract in spec §4.4.
type Verifier struct {
	client *http.Client
}

// New constructs a Verifier with the given per-hop timeout.
func New(hopTimeout time.Duration) *Verifier {
	return &Verifier{client: &http.Client{Timeout: hopTimeout}}
}

// Verify runs the full admission sequence for a candidate descriptor: it
// fetches /v1/info, asserts every declared Kind has a matching model
// descriptor, fetches /v1/models, and returns the parsed capabilities plus
// model list on success. It performs no side effects on the registry —
// callers persist the result only after Verify returns without error, so a
// failed verification leaves no trace.
func (v *Verifier) Verify(ctx context.Context, d *backend.Descriptor) (*registry.Capabilities, *ModelList, error) {
	base := strings.TrimRight(d.BaseURL.String(), "/")

	caps, err := v.fetchInfo(ctx, base)
	if err != nil {
		return nil, nil, err
	}

	for _, k := range d.Kinds.Kinds() {
		if caps.ForKind(k) == nil {
			return nil, nil, gwerr.New(gwerr.Operation,
				fmt.Sprintf("backend %s declared kind %q but /v1/info reports no matching model", base, k.Token()))
		}
	}

	models, err := v.fetchModels(ctx, base)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("backend", base).Strs("kinds", tokensOf(d.Kinds)).Msg("backend verification succeeded")
	return caps, models, nil
}

func tokensOf(s kind.Set) []string {
	ks := s.Kinds()
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = k.Token()
	}
	return out
}

func (v *Verifier) fetchInfo(ctx context.Context, base string) (*registry.Capabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/info", nil)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Operation, "building /v1/info request", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Operation, "contacting "+base+"/v1/info", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gwerr.New(gwerr.Operation, fmt.Sprintf("%s/v1/info returned status %d", base, resp.StatusCode))
	}

	var caps registry.Capabilities
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return nil, gwerr.Wrap(gwerr.Operation, "decoding /v1/info body", err)
	}
	return &caps, nil
}

func (v *Verifier) fetchModels(ctx context.Context, base string) (*ModelList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/models", nil)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Operation, "building /v1/models request", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Operation, "contacting "+base+"/v1/models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, gwerr.New(gwerr.Operation, fmt.Sprintf("%s/v1/models returned status %d", base, resp.StatusCode))
	}

	// An empty 2xx body is read as an empty model list.
	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil && err != io.EOF {
		return nil, gwerr.Wrap(gwerr.Operation, "decoding /v1/models body", err)
	}
	return &list, nil
}
