// Package proxy forwards inbound requests to a selected backend, preserving
// streaming semantics and translating transport failures into the gateway's
// error taxonomy. It deliberately forwards by hand rather than through
// net/http/httputil.ReverseProxy, in the spirit of the original gateway's
// manual proxy_request (URI rewrite, then a raw client.Do) — this keeps the
// Content-Type forcing rules in §4.5 under direct control.
package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/rs/zerolog/log"
)

// hopByHop lists headers that must not be forwarded verbatim between hops.
var hopByHop = map[string]struct{}{
	"Connection":          {},
	"Proxy-Connection":    {},
	"Keep-Alive":          {},
	"Transfer-Encoding":   {},
	"Te":                  {},
	"Trailer":             {},
	"Upgrade":             {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
}

// Engine forwards requests to backend base URLs.
type Engine struct {
	Client *http.Client
}

// New constructs an Engine with the given per-hop timeout.
func New(hopTimeout time.Duration) *Engine {
	return &Engine{Client: &http.Client{Timeout: hopTimeout}}
}

// audioSpeechSuffix is the one sub-path whose response Content-Type is
// echoed verbatim rather than normalized (spec §9 asymmetry note).
const audioSpeechSuffix = "/v1/audio/speech"

// Forward builds the outbound request against backendBase+subPath, copies
// the inbound method/headers/body, issues it, and copies the response
// status/headers/body back onto w. requestID is used only for log
// correlation; it has already been resolved to "unknown" by the caller if
// the inbound request carried none.
func (e *Engine) Forward(w http.ResponseWriter, r *http.Request, backendBase, subPath string, requestID string) error {
	target := strings.TrimRight(backendBase, "/") + subPath
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	// Only a chat body is buffered: it is inspected for "stream": true to pick
	// the forced response Content-Type. Every other body is handed to the
	// outbound request unbuffered, as the inbound io.Reader itself.
	var body io.Reader = r.Body
	var streaming bool
	isChat := strings.HasSuffix(subPath, "/v1/chat/completions")
	if r.Body != nil && isChat {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			return gwerr.Wrap(gwerr.Operation, "reading inbound body", err)
		}
		r.Body.Close()
		streaming = peekStream(bodyBytes)
		body = bytes.NewReader(bodyBytes)
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		return gwerr.Wrap(gwerr.Operation, "building outbound request", err)
	}
	if !isChat {
		outReq.ContentLength = r.ContentLength
	}
	copyHeaders(outReq.Header, r.Header)

	start := time.Now()
	resp, err := e.Client.Do(outReq)
	if err != nil {
		log.Error().Str("request_id", requestID).Str("target", target).Err(err).Msg("downstream request failed")
		return gwerr.Wrap(gwerr.Operation, "forwarding to "+target+" failed after "+time.Since(start).String(), err)
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	switch {
	case strings.HasSuffix(subPath, audioSpeechSuffix):
		// leave backend's Content-Type untouched
	case isChat && streaming:
		w.Header().Set("Content-Type", "text/event-stream")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Warn().Str("request_id", requestID).Err(err).Msg("error streaming response body")
		return gwerr.Wrap(gwerr.Operation, "streaming response body", err)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("target", target).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("proxied request")
	return nil
}

func peekStream(body []byte) bool {
	var probe struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Stream
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if _, skip := hopByHop[http.CanonicalHeaderKey(name)]; skip {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// ComposeURL is exported for callers (e.g. Dispatcher.CallJSON) that need
// the same trim+join rule without issuing a request themselves.
func ComposeURL(base *url.URL, subPath string) string {
	return strings.TrimRight(base.String(), "/") + subPath
}

// RequestID extracts x-request-id from r, defaulting to "unknown" per §4.5.
func RequestID(r *http.Request) string {
	if id := r.Header.Get("x-request-id"); id != "" {
		return id
	}
	return "unknown"
}
