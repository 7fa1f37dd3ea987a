package rag

import (
	"context"
	"time"

	"github.com/llamaedge/nexus-gateway/internal/dispatch"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/vectordb"
	"github.com/llamaedge/nexus-gateway/pkg/models"
	"github.com/rs/zerolog/log"
)

// Document is one raw document handed to the admin ingestion surface
// (spec §4.8 POST /admin/collections/ingest).
type Document struct {
	ID       string
	Content  string
	Format   string // "txt" or "md"; defaults to "txt"
	Metadata map[string]string
}

// IngestResult reports what PersistEmbeddings did.
type IngestResult struct {
	DocumentsProcessed int
	ChunksCreated       int
	VectorsStored       int
}

// Ingester implements the chunk → embed → upsert pipeline behind the admin
// collection-management endpoints (spec §4.7.1).
type Ingester struct {
	VectorDBs  *vectordb.Registry
	Dispatcher *dispatch.Dispatcher
	Chunker    ChunkerConfig
}

// NewIngester constructs an Ingester.
func NewIngester(vdbs *vectordb.Registry, d *dispatch.Dispatcher, chunker ChunkerConfig) *Ingester {
	return &Ingester{VectorDBs: vdbs, Dispatcher: d, Chunker: chunker}
}

// CreateCollection idempotently creates a named collection with the given
// embedding dimensionality on the vector DB at url (spec §4.8
// POST /admin/collections).
func (ing *Ingester) CreateCollection(ctx context.Context, url, collection string, dim uint64, apiKey string) error {
	driver, err := ing.VectorDBs.Get(url)
	if err != nil {
		return gwerr.Wrap(gwerr.Operation, "connecting to vector DB "+url, err)
	}
	if err := driver.CreateCollection(ctx, collection, dim, apiKey); err != nil {
		return gwerr.Wrap(gwerr.Operation, "creating collection "+collection, err)
	}
	return nil
}

// PersistEmbeddings chunks every document, embeds the chunks via the
// in-process embeddings sub-dispatch, and upserts the resulting points into
// collection on the vector DB at url (spec §4.7.1 / §4.8
// POST /admin/collections/ingest). Each point's "source" payload field holds
// the chunk text itself — the same convention Retrieve reads back via
// vectordb.ScoredPoint.Source, so a RAG query later reproduces this exact
// text as context.
func (ing *Ingester) PersistEmbeddings(ctx context.Context, requestID, url, collection string, docs []Document, apiKey string) (*IngestResult, error) {
	start := time.Now()
	if len(docs) == 0 {
		return &IngestResult{}, nil
	}

	var texts []string
	for _, doc := range docs {
		format := doc.Format
		if format == "" {
			format = "txt"
		}
		chunks, err := ChunkDocument(format, doc.Content, ing.Chunker)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			texts = append(texts, c.Text)
		}
	}
	if len(texts) == 0 {
		return &IngestResult{DocumentsProcessed: len(docs)}, nil
	}

	embReq := models.EmbeddingRequest{Input: texts}
	var embResp models.EmbeddingResponse
	if err := ing.Dispatcher.CallJSON(ctx, dispatch.Embeddings, requestID, embReq, &embResp); err != nil {
		return nil, err
	}
	if len(embResp.Data) != len(texts) {
		return nil, gwerr.New(gwerr.Operation, "embeddings backend returned a mismatched vector count")
	}

	driver, err := ing.VectorDBs.Get(url)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Operation, "connecting to vector DB "+url, err)
	}

	points := make([]vectordb.Point, len(texts))
	for i, text := range texts {
		points[i] = vectordb.Point{
			Vector:  embResp.Data[i].Embedding,
			Payload: map[string]string{"source": text},
		}
	}
	if err := driver.UpsertPoints(ctx, collection, points, apiKey); err != nil {
		return nil, gwerr.Wrap(gwerr.Operation, "upserting points into "+collection, err)
	}

	log.Info().
		Str("request_id", requestID).
		Str("collection", collection).
		Int("documents", len(docs)).
		Int("chunks", len(texts)).
		Dur("elapsed", time.Since(start)).
		Msg("ingestion complete")

	return &IngestResult{
		DocumentsProcessed: len(docs),
		ChunksCreated:       len(texts),
		VectorsStored:       len(points),
	}, nil
}
