// Package dispatch implements one handler per public inference endpoint: it
// resolves the endpoint's Kind, selects a backend from the registry, and
// hands off to the proxy engine.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/kind"
	"github.com/llamaedge/nexus-gateway/internal/proxy"
	"github.com/llamaedge/nexus-gateway/internal/registry"
)

// Endpoint binds a public sub-path to the Kind it dispatches to.
type Endpoint struct {
	Kind    kind.Kind
	SubPath string
}

var (
	ChatCompletions     = Endpoint{kind.Chat, "/v1/chat/completions"}
	Embeddings          = Endpoint{kind.Embeddings, "/v1/embeddings"}
	AudioTranscriptions = Endpoint{kind.Transcribe, "/v1/audio/transcriptions"}
	AudioTranslations   = Endpoint{kind.Translate, "/v1/audio/translations"}
	AudioSpeech         = Endpoint{kind.TTS, "/v1/audio/speech"}
	ImageGenerations    = Endpoint{kind.Image, "/v1/images/generations"}
	ImageEdits          = Endpoint{kind.Image, "/v1/images/edits"}
)

// Dispatcher selects and proxies requests for a fixed set of endpoints.
type Dispatcher struct {
	Registry *registry.Registry
	Proxy    *proxy.Engine
}

// New constructs a Dispatcher over the given registry and proxy engine.
func New(reg *registry.Registry, eng *proxy.Engine) *Dispatcher {
	return &Dispatcher{Registry: reg, Proxy: eng}
}

// Dispatch selects a backend for ep.Kind and forwards r to ep.SubPath on it.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request, ep Endpoint) error {
	base, err := d.Registry.Pool(ep.Kind).Select()
	if err != nil {
		return err
	}
	return d.Proxy.Forward(w, r, base.String(), ep.SubPath, proxy.RequestID(r))
}

// Handler returns an http.HandlerFunc bound to a fixed endpoint, writing any
// returned error through the supplied error responder.
func (d *Dispatcher) Handler(ep Endpoint, onError func(http.ResponseWriter, *http.Request, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Dispatch(w, r, ep); err != nil {
			onError(w, r, err)
		}
	}
}

// CallJSON performs an in-process, non-streaming JSON call to a backend
// selected for ep.Kind: it marshals reqBody, POSTs it to ep.SubPath, and
// decodes the JSON response into respBody. This is how the RAG orchestrator
// invokes the embeddings dispatcher (spec §4.7 step 3, §9 "RAG as in-process
// sub-dispatch") — it goes straight to the chosen backend over HTTP rather
// than looping back through the gateway's own router, avoiding a second
// serialize/deserialize round trip of the outer chat request.
func (d *Dispatcher) CallJSON(ctx context.Context, ep Endpoint, requestID string, reqBody, respBody any) error {
	base, err := d.Registry.Pool(ep.Kind).Select()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return gwerr.Wrap(gwerr.Operation, "marshaling sub-dispatch request", err)
	}

	target := proxy.ComposeURL(base, ep.SubPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return gwerr.Wrap(gwerr.Operation, "building sub-dispatch request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-request-id", requestID)

	resp, err := d.Proxy.Client.Do(req)
	if err != nil {
		return gwerr.Wrap(gwerr.Operation, "sub-dispatch to "+target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gwerr.Wrap(gwerr.Operation, "reading sub-dispatch response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gwerr.New(gwerr.Operation, target+" returned status "+http.StatusText(resp.StatusCode))
	}
	if respBody != nil {
		if err := json.Unmarshal(body, respBody); err != nil {
			return gwerr.Wrap(gwerr.Operation, "decoding sub-dispatch response", err)
		}
	}
	return nil
}

// ParseKind maps a bare kind token to a Kind, returning InvalidKind for an
// unrecognized token.
func ParseKind(token string) (kind.Kind, error) {
	k, ok := kind.Parse(token)
	if !ok {
		return 0, gwerr.New(gwerr.InvalidKind, "unknown kind: "+token)
	}
	return k, nil
}
