package rag_test

import (
	"context"
	"net/http"
	"net/http/httptest"
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

func newIngester(t *testing.T, embedSrv string) (*rag.Ingester, *vectordb.Registry) {
	t.Helper()
	reg := registry.New()
	desc, err := backend.New(embedSrv, kind.NewSet(kind.Embeddings))
	if err != nil {
		t.Fatalf("backend.New() error = %v", err)
	}
	if _, err := reg.Register(desc); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	d := dispatch.New(reg, proxy.New(5*time.Second))
	vdbs := vectordb.NewTestRegistry()
	return rag.NewIngester(vdbs, d, rag.DefaultChunkerConfig()), vdbs
}

func TestPersistEmbeddingsChunksEmbedsAndUpserts(t *testing.T) {
	embedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer embedSrv.Close()

	ing, vdbs := newIngester(t, embedSrv.URL)

	result, err := ing.PersistEmbeddings(context.Background(), "req-1", "http://vdb", "docs",
		[]rag.Document{{ID: "1", Content: "a short document"}}, "")
	if err != nil {
		t.Fatalf("PersistEmbeddings() error = %v", err)
	}
	if result.DocumentsProcessed != 1 || result.ChunksCreated != 1 || result.VectorsStored != 1 {
		t.Errorf("PersistEmbeddings() result = %+v", result)
	}

	driver, err := vdbs.Get("http://vdb")
	if err != nil {
		t.Fatalf("vdbs.Get() error = %v", err)
	}
	hits, err := driver.SearchPoints(context.Background(), "docs", []float32{0.1, 0.2}, 5, 0, "")
	if err != nil {
		t.Fatalf("SearchPoints() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Source != "a short document" {
		t.Errorf("SearchPoints() = %+v, want the ingested chunk text preserved verbatim", hits)
	}
}

func TestPersistEmbeddingsEmptyDocsIsNoop(t *testing.T) {
	ing, _ := newIngester(t, "http://unused")
	result, err := ing.PersistEmbeddings(context.Background(), "req-1", "http://vdb", "docs", nil, "")
	if err != nil {
		t.Fatalf("PersistEmbeddings() error = %v", err)
	}
	if result.DocumentsProcessed != 0 {
		t.Errorf("PersistEmbeddings() with no docs = %+v", result)
	}
}

func TestPersistEmbeddingsMismatchedVectorCountErrors(t *testing.T) {
	embedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer embedSrv.Close()

	ing, _ := newIngester(t, embedSrv.URL)
	_, err := ing.PersistEmbeddings(context.Background(), "req-1", "http://vdb", "docs",
		[]rag.Document{{ID: "1", Content: "a short document"}}, "")
	if err == nil {
		t.Error("PersistEmbeddings() should error when the embeddings backend returns a mismatched vector count")
	}
}

func TestCreateCollectionIdempotent(t *testing.T) {
	ing, _ := newIngester(t, "http://unused")
	if err := ing.CreateCollection(context.Background(), "http://vdb", "docs", 2, ""); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if err := ing.CreateCollection(context.Background(), "http://vdb", "docs", 2, ""); err != nil {
		t.Fatalf("CreateCollection() second call error = %v", err)
	}
}
