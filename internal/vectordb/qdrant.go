package vectordb

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantDriver implements Driver against a real Qdrant server over gRPC.
type QdrantDriver struct {
	client *qdrant.Client
}

// NewQdrantDriver dials host:port (Qdrant's gRPC port, conventionally 6334).
// apiKey, when non-empty, is sent as the connection-level API key. The
// per-method apiKey parameters are accepted but not used: no per-call key is
// sent to the server.
func NewQdrantDriver(host string, port int, apiKey string, useTLS bool) (*QdrantDriver, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing qdrant at %s:%d: %w", host, port, err)
	}
	return &QdrantDriver{client: client}, nil
}

func (d *QdrantDriver) SearchPoints(ctx context.Context, collection string, queryVector []float32, limit uint64, scoreThreshold float32, apiKey string) ([]ScoredPoint, error) {
	threshold := scoreThreshold
	hits, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search in %q: %w", collection, err)
	}

	out := make([]ScoredPoint, 0, len(hits))
	for _, h := range hits {
		source := ""
		if v, ok := h.Payload["source"]; ok {
			source = v.GetStringValue()
		}
		out = append(out, ScoredPoint{Source: source, Score: h.GetScore()})
	}
	return out, nil
}

func (d *QdrantDriver) CreateCollection(ctx context.Context, collection string, dim uint64, apiKey string) error {
	exists, err := d.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", collection, err)
	}
	if exists {
		return nil
	}
	return d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (d *QdrantDriver) UpsertPoints(ctx context.Context, collection string, points []Point, apiKey string) error {
	upserts := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = qdrant.NewValueString(v)
		}
		upserts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}
	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         upserts,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert into %q: %w", collection, err)
	}
	return nil
}

func (d *QdrantDriver) Close() error {
	return d.client.Close()
}
