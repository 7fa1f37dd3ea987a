package rag

import (
	"context"

	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/vectordb"
	"github.com/llamaedge/nexus-gateway/pkg/models"
)

// VectorDBConfig is one collection to search: a server URL, a collection
// name, and the search parameters for that collection.
type VectorDBConfig struct {
	URL            string
	CollectionName string
	Limit          uint64
	ScoreThreshold float32
}

// DefaultVectorDB is the gateway's static fallback RAG configuration,
// loaded from the config file (spec §6 "vector-DB defaults").
type DefaultVectorDB struct {
	URL             string
	CollectionNames []string
	Limit           uint64
	ScoreThreshold  float32
}

// ResolveVectorDBConfigs implements spec §4.7 step 1: either all four
// per-request override fields are present (and the three parallel arrays
// agree in length), or none are, in which case the static default list is
// used. Any partial combination is a BadRequest.
func ResolveVectorDBConfigs(req *models.ChatRequest, def DefaultVectorDB) ([]VectorDBConfig, error) {
	hasURL := req.VDBServerURL != ""
	hasNames := req.VDBCollectionNames != nil
	hasLimits := req.VDBLimits != nil
	hasThresholds := req.VDBScoreThresholds != nil

	switch {
	case hasURL && hasNames && hasLimits && hasThresholds:
		if len(req.VDBCollectionNames) != len(req.VDBLimits) || len(req.VDBCollectionNames) != len(req.VDBScoreThresholds) {
			return nil, gwerr.New(gwerr.BadRequest,
				"the number of elements of `collection name`, `limit`, `score_threshold` in the request should be the same")
		}
		configs := make([]VectorDBConfig, len(req.VDBCollectionNames))
		for i, name := range req.VDBCollectionNames {
			configs[i] = VectorDBConfig{
				URL:            req.VDBServerURL,
				CollectionName: name,
				Limit:          req.VDBLimits[i],
				ScoreThreshold: req.VDBScoreThresholds[i],
			}
		}
		return configs, nil

	case !hasURL && !hasNames && !hasLimits && !hasThresholds:
		configs := make([]VectorDBConfig, len(def.CollectionNames))
		for i, name := range def.CollectionNames {
			configs[i] = VectorDBConfig{
				URL:            def.URL,
				CollectionName: name,
				Limit:          def.Limit,
				ScoreThreshold: def.ScoreThreshold,
			}
		}
		return configs, nil

	default:
		return nil, gwerr.New(gwerr.BadRequest,
			"the vectorDB settings in the request are not correct: vdbServerUrl, vdbCollectionName, limit, and scoreThreshold must all be provided together or all omitted")
	}
}

// RetrievedSet is the deduplicated result of searching one collection.
type RetrievedSet struct {
	Config VectorDBConfig
	Points []vectordb.ScoredPoint
}

// Retrieve runs the search+dedup stage (spec §4.7 steps 4-5) across every
// config: within a collection's results, points are deduplicated by Source;
// across collections, the running seen set additionally drops any point
// whose Source already surfaced from an earlier collection. A collection
// whose point list is empty after dedup is dropped from the result
// entirely.
func Retrieve(ctx context.Context, reg *vectordb.Registry, configs []VectorDBConfig, queryVector []float32, apiKey string) ([]RetrievedSet, error) {
	seen := make(map[string]struct{})
	var out []RetrievedSet

	for _, cfg := range configs {
		driver, err := reg.Get(cfg.URL)
		if err != nil {
			return nil, gwerr.Wrap(gwerr.Operation, "connecting to vector DB "+cfg.URL, err)
		}

		hits, err := driver.SearchPoints(ctx, cfg.CollectionName, queryVector, cfg.Limit, cfg.ScoreThreshold, apiKey)
		if err != nil {
			return nil, gwerr.Wrap(gwerr.Operation, "searching collection "+cfg.CollectionName, err)
		}

		var unique []vectordb.ScoredPoint
		withinCollection := make(map[string]struct{})
		for _, h := range hits {
			if _, dup := withinCollection[h.Source]; dup {
				continue
			}
			withinCollection[h.Source] = struct{}{}

			if _, dup := seen[h.Source]; dup {
				continue
			}
			seen[h.Source] = struct{}{}
			unique = append(unique, h)
		}

		if len(unique) == 0 {
			continue
		}
		out = append(out, RetrievedSet{Config: cfg, Points: unique})
	}

	return out, nil
}

// JoinContext concatenates every retrieved point's Source across every
// surviving set, matching the original's "push source, push \n\n" context
// assembly.
func JoinContext(sets []RetrievedSet) string {
	var out string
	for _, s := range sets {
		for _, p := range s.Points {
			out += p.Source + "\n\n"
		}
	}
	return out
}
