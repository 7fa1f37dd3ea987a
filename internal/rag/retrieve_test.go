package rag_test

import (
	"context"
	"testing"

	"github.com/llamaedge/nexus-gateway/internal/rag"
	"github.com/llamaedge/nexus-gateway/internal/vectordb"
)

func TestRetrieveDedupsWithinAndAcrossCollections(t *testing.T) {
	reg := vectordb.NewTestRegistry()
	driver, err := reg.Get("http://vdb")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	ctx := context.Background()
	if err := driver.CreateCollection(ctx, "docs-a", 2, ""); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	if err := driver.CreateCollection(ctx, "docs-b", 2, ""); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}

	points := []vectordb.Point{
		{Vector: []float32{1, 0}, Payload: map[string]string{"source": "shared chunk"}},
		{Vector: []float32{1, 0}, Payload: map[string]string{"source": "shared chunk"}},
		{Vector: []float32{0.9, 0.1}, Payload: map[string]string{"source": "unique to a"}},
	}
	if err := driver.UpsertPoints(ctx, "docs-a", points, ""); err != nil {
		t.Fatalf("UpsertPoints(docs-a) error = %v", err)
	}
	if err := driver.UpsertPoints(ctx, "docs-b", []vectordb.Point{
		{Vector: []float32{1, 0}, Payload: map[string]string{"source": "shared chunk"}},
	}, ""); err != nil {
		t.Fatalf("UpsertPoints(docs-b) error = %v", err)
	}

	configs := []rag.VectorDBConfig{
		{URL: "http://vdb", CollectionName: "docs-a", Limit: 10, ScoreThreshold: 0},
		{URL: "http://vdb", CollectionName: "docs-b", Limit: 10, ScoreThreshold: 0},
	}

	sets, err := rag.Retrieve(ctx, reg, configs, []float32{1, 0}, "")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	// docs-a keeps "shared chunk" once (within-collection dedup) plus "unique to a";
	// docs-b's "shared chunk" is dropped entirely (cross-collection dedup), so it
	// contributes no points and is dropped from the result.
	if len(sets) != 1 {
		t.Fatalf("Retrieve() returned %d sets, want 1 (docs-b fully deduped away)", len(sets))
	}
	if sets[0].Config.CollectionName != "docs-a" {
		t.Errorf("surviving set = %q, want docs-a", sets[0].Config.CollectionName)
	}
	if len(sets[0].Points) != 2 {
		t.Errorf("docs-a point count = %d, want 2", len(sets[0].Points))
	}
}

func TestJoinContextConcatenatesSources(t *testing.T) {
	sets := []rag.RetrievedSet{
		{Points: []vectordbScoredPoint("a", "b")},
	}
	got := rag.JoinContext(sets)
	want := "a\n\nb\n\n"
	if got != want {
		t.Errorf("JoinContext() = %q, want %q", got, want)
	}
}

func vectordbScoredPoint(sources ...string) []vectordb.ScoredPoint {
	out := make([]vectordb.ScoredPoint, len(sources))
	for i, s := range sources {
		out[i] = vectordb.ScoredPoint{Source: s, Score: 1}
	}
	return out
}
