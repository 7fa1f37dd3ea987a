package vectordb

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryDriver is a brute-force, cosine-similarity in-memory Driver,
// adapted from the gateway lineage's embedded vector store for use as a
// test double standing in for a live Qdrant server — no test should dial a
// real Qdrant instance to exercise the RAG pipeline's dedup/merge logic.
type MemoryDriver struct {
	mu          sync.RWMutex
	collections map[string][]memPoint
}

type memPoint struct {
	vector []float32
	source string
}

// NewMemoryDriver constructs an empty MemoryDriver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{collections: make(map[string][]memPoint)}
}

func (d *MemoryDriver) SearchPoints(_ context.Context, collection string, queryVector []float32, limit uint64, scoreThreshold float32, _ string) ([]ScoredPoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	type scored struct {
		source string
		score  float32
	}
	var candidates []scored
	for _, p := range d.collections[collection] {
		score := cosineSimilarity(queryVector, p.vector)
		if score < scoreThreshold {
			continue
		}
		candidates = append(candidates, scored{source: p.source, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if uint64(len(candidates)) > limit {
		candidates = candidates[:limit]
	}
	out := make([]ScoredPoint, len(candidates))
	for i, c := range candidates {
		out[i] = ScoredPoint{Source: c.source, Score: c.score}
	}
	return out, nil
}

func (d *MemoryDriver) CreateCollection(_ context.Context, collection string, _ uint64, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.collections[collection]; !ok {
		d.collections[collection] = nil
	}
	return nil
}

func (d *MemoryDriver) UpsertPoints(_ context.Context, collection string, points []Point, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range points {
		d.collections[collection] = append(d.collections[collection], memPoint{
			vector: p.Vector,
			source: p.Payload["source"],
		})
	}
	return nil
}

func (d *MemoryDriver) Close() error { return nil }

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
