package proxy_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/llamaedge/nexus-gateway/internal/proxy"
)

func TestForwardNonStreamingChatNormalizesJSON(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("backend received path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer backend.Close()

	engine := proxy.New(5 * time.Second)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"stream":false}`))
	rec := httptest.NewRecorder()

	if err := engine.Forward(rec, req, backend.URL, "/v1/chat/completions", "req-1"); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

func TestForwardStreamingChatSetsEventStream(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: hello\n\n"))
	}))
	defer backend.Close()

	engine := proxy.New(5 * time.Second)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"stream":true}`))
	rec := httptest.NewRecorder()

	if err := engine.Forward(rec, req, backend.URL, "/v1/chat/completions", "req-1"); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
}

func TestForwardAudioSpeechPreservesBackendContentType(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("binary-audio"))
	}))
	defer backend.Close()

	engine := proxy.New(5 * time.Second)
	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	if err := engine.Forward(rec, req, backend.URL, "/v1/audio/speech", "req-1"); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q, want audio/mpeg (preserved verbatim)", got)
	}
}

func TestForwardStripsHopByHopHeaders(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Connection") != "" {
			t.Error("Connection header should have been stripped before forwarding")
		}
		w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	engine := proxy.New(5 * time.Second)
	req := httptest.NewRequest(http.MethodPost, "/v1/embeddings", strings.NewReader(`{}`))
	req.Header.Set("Connection", "keep-alive")
	rec := httptest.NewRecorder()

	if err := engine.Forward(rec, req, backend.URL, "/v1/embeddings", "req-1"); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
}

func TestForwardDownstreamErrorWrapsOperation(t *testing.T) {
	engine := proxy.New(5 * time.Second)
	req := httptest.NewRequest(http.MethodPost, "/v1/embeddings", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	err := engine.Forward(rec, req, "http://127.0.0.1:1", "/v1/embeddings", "req-1")
	if err == nil {
		t.Fatal("Forward() to an unreachable backend should error")
	}
}

func TestComposeURL(t *testing.T) {
	base, _ := url.Parse("http://host:8080/")
	got := proxy.ComposeURL(base, "/v1/models")
	if got != "http://host:8080/v1/models" {
		t.Errorf("ComposeURL() = %q", got)
	}
}

func TestRequestIDDefaultsToUnknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := proxy.RequestID(req); got != "unknown" {
		t.Errorf("RequestID() = %q, want unknown", got)
	}
	req.Header.Set("x-request-id", "abc-123")
	if got := proxy.RequestID(req); got != "abc-123" {
		t.Errorf("RequestID() = %q, want abc-123", got)
	}
}
