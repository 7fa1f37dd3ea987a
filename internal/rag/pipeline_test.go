package rag_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/llamaedge/nexus-gateway/internal/backend"
	"github.com/llamaedge/nexus-gateway/internal/dispatch"
	"github.com/llamaedge/nexus-gateway/internal/kind"
	"github.com/llamaedge/nexus-gateway/internal/proxy"
	"github.com/llamaedge/nexus-gateway/internal/rag"
	"github.com/llamaedge/nexus-gateway/internal/registry"
	"github.com/llamaedge/nexus-gateway/internal/vectordb"
)

// stubBackend serves the fixed embedding [1,0] on /v1/embeddings (embedVector
// is not used) and a canned reply on /v1/chat/completions, so a test runs the
// pipeline without a real model.
func stubBackend(t *testing.T, embedVector []float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/v1/embeddings"):
			w.Write([]byte(`{"data":[{"embedding":[1,0]}]}`))
		case strings.HasSuffix(r.URL.Path, "/v1/chat/completions"):
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"answer"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOrchestratorHandleMergesRetrievedContext(t *testing.T) {
	backendSrv := stubBackend(t, []float32{1, 0})
	defer backendSrv.Close()

	reg := registry.New()
	chatDesc, err := backend.New(backendSrv.URL, kind.NewSet(kind.Chat))
	if err != nil {
		t.Fatalf("backend.New() error = %v", err)
	}
	if _, err := reg.Register(chatDesc); err != nil {
		t.Fatalf("Register(chat) error = %v", err)
	}
	embedDesc, err := backend.New(backendSrv.URL, kind.NewSet(kind.Embeddings))
	if err != nil {
		t.Fatalf("backend.New() error = %v", err)
	}
	if _, err := reg.Register(embedDesc); err != nil {
		t.Fatalf("Register(embeddings) error = %v", err)
	}
	reg.PutCapabilities(chatDesc.ID, &registry.Capabilities{
		ChatModel: &registry.ModelDescriptor{Name: "m", HasSystemPrompt: true},
	})

	vdbs := vectordb.NewTestRegistry()
	driver, err := vdbs.Get("http://vdb")
	if err != nil {
		t.Fatalf("vdbs.Get() error = %v", err)
	}
	ctx := context.Background()
	if err := driver.CreateCollection(ctx, "docs", 2, ""); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if err := driver.UpsertPoints(ctx, "docs", []vectordb.Point{
		{Vector: []float32{1, 0}, Payload: map[string]string{"source": "the answer is 42"}},
	}, ""); err != nil {
		t.Fatalf("UpsertPoints() error = %v", err)
	}

	d := dispatch.New(reg, proxy.New(5*time.Second))
	orch := rag.New(reg, vdbs, d, rag.Config{
		Enabled:       true,
		Policy:        rag.PolicySystemMessage,
		ContextWindow: 1,
		DefaultVDB: rag.DefaultVectorDB{
			URL:             "http://vdb",
			CollectionNames: []string{"docs"},
			Limit:           5,
			ScoreThreshold:  0,
		},
	})

	body := `{"model":"m","messages":[{"role":"user","content":"what is the answer?"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	if err := orch.Handle(rec, req); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestOrchestratorHandleRejectsEmptyMessages(t *testing.T) {
	reg := registry.New()
	vdbs := vectordb.NewTestRegistry()
	d := dispatch.New(reg, proxy.New(time.Second))
	orch := rag.New(reg, vdbs, d, rag.Config{Enabled: true, Policy: rag.PolicySystemMessage, ContextWindow: 1})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"m","messages":[]}`))
	rec := httptest.NewRecorder()

	if err := orch.Handle(rec, req); err == nil {
		t.Error("Handle() with no messages should error")
	}
}
