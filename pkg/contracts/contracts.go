// Package contracts re-exports the gateway's extension points — the vector
// DB driver contract and the backend capability types — under pkg/ so an
// external module can implement or consume them without importing
// internal/ directly.
package contracts

import (
	"github.com/llamaedge/nexus-gateway/internal/registry"
	"github.com/llamaedge/nexus-gateway/internal/vectordb"
)

// Driver is a type alias for the vector DB contract a custom backend (e.g.
// something other than Qdrant) must implement to plug into the RAG
// orchestrator.
type Driver = vectordb.Driver

// Point is a type alias for a single vector+payload upserted through Driver.
type Point = vectordb.Point

// ScoredPoint is a type alias for a single search hit returned by Driver.
type ScoredPoint = vectordb.ScoredPoint

// Capabilities is a type alias for a verified backend's declared per-kind
// model metadata, as cached by the registry.
type Capabilities = registry.Capabilities

// ModelDescriptor is a type alias for one kind's model metadata within
// Capabilities.
type ModelDescriptor = registry.ModelDescriptor
