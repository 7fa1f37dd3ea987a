// Package handlers implements the gateway's admin and discovery HTTP
// surface: backend registration/deregistration, the aggregated model/info
// listing, health, and RAG collection management (spec §4.8).
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/llamaedge/nexus-gateway/internal/backend"
	"github.com/llamaedge/nexus-gateway/internal/dispatch"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/kind"
	"github.com/llamaedge/nexus-gateway/internal/proxy"
	"github.com/llamaedge/nexus-gateway/internal/rag"
	"github.com/llamaedge/nexus-gateway/internal/registry"
	"github.com/llamaedge/nexus-gateway/internal/verifier"
	"github.com/rs/zerolog/log"
)

// Handlers holds the admin/discovery surface's dependencies.
type Handlers struct {
	Registry   *registry.Registry
	Verifier   *verifier.Verifier
	Dispatcher *dispatch.Dispatcher
	Ingester   *rag.Ingester
}

// New constructs a Handlers.
func New(reg *registry.Registry, v *verifier.Verifier, d *dispatch.Dispatcher, ing *rag.Ingester) *Handlers {
	return &Handlers{Registry: reg, Verifier: v, Dispatcher: d, Ingester: ing}
}

// ── Admin: backend registration (spec §4.8, §4.4) ───────────────────────

type registerRequest struct {
	URL   string   `json:"url"`
	Kinds []string `json:"kinds"`
}

type registerResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

// RegisterServer verifies and registers a candidate backend descriptor
// posted to POST /admin/servers/register (spec §4.8, §4.4, §4.3).
func (h *Handlers) RegisterServer(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, gwerr.Wrap(gwerr.BadRequest, "decoding register request", err))
		return
	}

	var set kind.Set
	for _, tok := range req.Kinds {
		k, ok := kind.Parse(tok)
		if !ok {
			respondError(w, gwerr.New(gwerr.InvalidKind, "unknown kind: "+tok))
			return
		}
		set |= kind.Set(k)
	}

	d, err := backend.New(req.URL, set)
	if err != nil {
		respondError(w, err)
		return
	}

	caps, _, err := h.Verifier.Verify(r.Context(), d)
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := h.Registry.Register(d)
	if err != nil {
		respondError(w, err)
		return
	}
	h.Registry.PutCapabilities(id, caps)

	log.Info().Str("backend_id", string(id)).Str("url", req.URL).Msg("backend registered")
	respondJSON(w, http.StatusOK, registerResponse{
		ID:   string(id),
		URL:  d.BaseURL.String(),
		Kind: set.Format(),
	})
}

type unregisterRequest struct {
	ServerID string `json:"serverId"`
}

type unregisterResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// UnregisterServer removes a backend by ID, posted to
// POST /admin/servers/unregister (spec §4.8, §4.3).
func (h *Handlers) UnregisterServer(w http.ResponseWriter, r *http.Request) {
	var req unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, gwerr.Wrap(gwerr.BadRequest, "decoding unregister request", err))
		return
	}
	if err := h.Registry.Unregister(backend.ID(req.ServerID)); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, unregisterResponse{
		Message: "server unregistered",
		ID:      req.ServerID,
	})
}

// ListServers returns every non-empty pool's current snapshot, posted to
// POST /admin/servers (spec §4.8, §4.3).
func (h *Handlers) ListServers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Registry.List())
}

// ── Discovery: GET /v1/models, GET /v1/info, GET /healthz (spec §6) ─────

// ListModels returns one entry per registered backend, whose id is the
// backend id. The /v1/models lists fetched during verification are not
// stored, so backend model names are not included.
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID string `json:"id"`
	}
	var out []entry
	for _, snaps := range h.Registry.List() {
		for _, snap := range snaps {
			out = append(out, entry{ID: string(snap.ID)})
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": out})
}

// Info reports the gateway's aggregated per-kind capability summary.
func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]string)
	for token, snaps := range h.Registry.List() {
		ids := make([]string, len(snaps))
		for i, s := range snaps {
			ids[i] = string(s.ID)
		}
		out[token] = ids
	}
	respondJSON(w, http.StatusOK, out)
}

// Health reports process liveness, independent of backend availability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Admin: RAG collection management (spec §4.7.1, §4.8) ───────────────

type createCollectionRequest struct {
	URL        string `json:"url"`
	Collection string `json:"collectionName"`
	Dimension  uint64 `json:"dimension"`
	APIKey     string `json:"apiKey,omitempty"`
}

// CreateCollection creates a named vector-DB collection.
func (h *Handlers) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, gwerr.Wrap(gwerr.BadRequest, "decoding create-collection request", err))
		return
	}
	if err := h.Ingester.CreateCollection(r.Context(), req.URL, req.Collection, req.Dimension, req.APIKey); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"collection": req.Collection})
}

type ingestDocument struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Format   string            `json:"format,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type ingestRequest struct {
	URL        string           `json:"url"`
	Collection string           `json:"collectionName"`
	Documents  []ingestDocument `json:"documents"`
	APIKey     string           `json:"apiKey,omitempty"`
}

// IngestCollection chunks, embeds, and upserts a batch of documents.
func (h *Handlers) IngestCollection(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, gwerr.Wrap(gwerr.BadRequest, "decoding ingest request", err))
		return
	}

	docs := make([]rag.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = rag.Document{ID: d.ID, Content: d.Content, Format: d.Format, Metadata: d.Metadata}
	}

	result, err := h.Ingester.PersistEmbeddings(r.Context(), proxy.RequestID(r), req.URL, req.Collection, docs, req.APIKey)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps a gwerr.Error (or any other error) to its HTTP status
// and writes a JSON error body, per spec §7.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	var gerr *gwerr.Error
	if ok := asGatewayError(err, &gerr); ok {
		status = gerr.Status()
		message = gerr.Message
	}
	respondJSON(w, status, map[string]string{"error": message})
}

func asGatewayError(err error, target **gwerr.Error) bool {
	for err != nil {
		if g, ok := err.(*gwerr.Error); ok {
			*target = g
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}
