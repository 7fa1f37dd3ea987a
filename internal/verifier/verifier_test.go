package verifier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/llamaedge/nexus-gateway/internal/backend"
	"github.com/llamaedge/nexus-gateway/internal/kind"
	"github.com/llamaedge/nexus-gateway/internal/verifier"
)

func TestVerifySucceeds(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/info":
			w.Write([]byte(`{"chatModel":{"name":"llama-3","hasSystemPrompt":true}}`))
		case "/v1/models":
			w.Write([]byte(`{"data":[{"id":"llama-3"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backendSrv.Close()

	d, err := backend.New(backendSrv.URL, kind.NewSet(kind.Chat))
	if err != nil {
		t.Fatalf("backend.New() error = %v", err)
	}

	v := verifier.New(2 * time.Second)
	caps, models, err := v.Verify(context.Background(), d)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if caps.ChatModel == nil || caps.ChatModel.Name != "llama-3" {
		t.Errorf("Verify() caps = %+v", caps)
	}
	if len(models.Data) != 1 || models.Data[0].ID != "llama-3" {
		t.Errorf("Verify() models = %+v", models)
	}
}

func TestVerifyFailsWhenDeclaredKindMissingFromInfo(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/info" {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer backendSrv.Close()

	d, err := backend.New(backendSrv.URL, kind.NewSet(kind.Chat))
	if err != nil {
		t.Fatalf("backend.New() error = %v", err)
	}

	v := verifier.New(2 * time.Second)
	if _, _, err := v.Verify(context.Background(), d); err == nil {
		t.Error("Verify() should error when a declared kind has no matching /v1/info model")
	}
}

func TestVerifyFailsOnNon2xxInfo(t *testing.T) {
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer backendSrv.Close()

	d, err := backend.New(backendSrv.URL, kind.NewSet(kind.Chat))
	if err != nil {
		t.Fatalf("backend.New() error = %v", err)
	}

	v := verifier.New(2 * time.Second)
	if _, _, err := v.Verify(context.Background(), d); err == nil {
		t.Error("Verify() should error on a non-2xx /v1/info response")
	}
}
