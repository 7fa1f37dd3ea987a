// Package server is the gateway's composition root: it wires config,
// logging, telemetry, registry, verifier, proxy, dispatcher, vector-DB
// registry, and RAG orchestrator into a single ready-to-serve *Server,
// following the lineage's buildServer() pattern.
package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"net/http"

	"github.com/llamaedge/nexus-gateway/internal/api"
	"github.com/llamaedge/nexus-gateway/internal/api/handlers"
	"github.com/llamaedge/nexus-gateway/internal/config"
	"github.com/llamaedge/nexus-gateway/internal/dispatch"
	"github.com/llamaedge/nexus-gateway/internal/proxy"
	"github.com/llamaedge/nexus-gateway/internal/rag"
	"github.com/llamaedge/nexus-gateway/internal/registry"
	"github.com/llamaedge/nexus-gateway/internal/telemetry"
	"github.com/llamaedge/nexus-gateway/internal/vectordb"
	"github.com/llamaedge/nexus-gateway/internal/verifier"

	"github.com/rs/zerolog/log"
)

// Version is the gateway's build version, reported via telemetry resource
// attributes and the CLI's version subcommand.
const Version = "0.1.0"

// Server holds the gateway's fully wired components.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Registry is the backend registry. Exposed so an embedder can
	// pre-register backends before serving.
	Registry *registry.Registry

	// VectorDBs caches vector-DB driver connections.
	VectorDBs *vectordb.Registry

	// Config is the loaded process configuration.
	Config *config.Config

	// BindAddr is the address Handler should be served on.
	BindAddr string

	// shutdownFunc flushes telemetry on graceful shutdown.
	shutdownFunc func(context.Context) error
}

// New loads configPath, wires every component, and returns a ready Server.
func New(ctx context.Context, configPath string) (*Server, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig wires every component from an already-loaded cfg. Callers
// that need to override a config value from outside the file/environment
// (e.g. the CLI's --rag-enable flag) must mutate cfg and call this before
// any decision baked into the router, not after.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(telemetry.Config{
		Endpoint:       os.Getenv("GATEWAY_OTEL_ENDPOINT"),
		ServiceName:    "nexus-gateway",
		ServiceVersion: Version,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	reg := registry.New()
	log.Info().Msg("backend registry initialized")

	hopTimeout := time.Duration(cfg.Server.HopTimeoutMS) * time.Millisecond
	proxyEngine := proxy.New(hopTimeout)
	verif := verifier.New(hopTimeout)
	dispatcher := dispatch.New(reg, proxyEngine)

	var vdbs *vectordb.Registry
	var orchestrator *rag.Orchestrator
	var ingester *rag.Ingester

	if cfg.RAG.Enable {
		vdbs = vectordb.NewRegistry()

		names := cfg.VectorDB.CollectionNames
		limit := cfg.VectorDB.Limit
		threshold := float32(cfg.VectorDB.ScoreThreshold)

		ragCfg := rag.Config{
			Enabled:       true,
			Prompt:        cfg.RAG.Prompt,
			Policy:        rag.Policy(cfg.RAG.Policy),
			ContextWindow: cfg.RAG.ContextWindow,
			DefaultVDB: rag.DefaultVectorDB{
				URL:             cfg.VectorDB.URL,
				CollectionNames: names,
				Limit:           limit,
				ScoreThreshold:  threshold,
			},
		}
		orchestrator = rag.New(reg, vdbs, dispatcher, ragCfg)
		ingester = rag.NewIngester(vdbs, dispatcher, rag.DefaultChunkerConfig())
		log.Info().Strs("collections", names).Msg("RAG pipeline initialized")
	} else {
		// The admin collection-management surface still needs a vector DB
		// registry and ingester even when the chat-time RAG pipeline is off.
		vdbs = vectordb.NewRegistry()
		ingester = rag.NewIngester(vdbs, dispatcher, rag.DefaultChunkerConfig())
		log.Info().Msg("RAG pipeline disabled (rag.enable=false)")
	}

	h := handlers.New(reg, verif, dispatcher, ingester)
	router := api.NewRouter(h, dispatcher, orchestrator)

	return &Server{
		Handler:      router,
		Registry:     reg,
		VectorDBs:    vdbs,
		Config:       cfg,
		BindAddr:     cfg.Server.BindAddr,
		shutdownFunc: shutdown,
	}, nil
}

// Shutdown flushes telemetry and closes cached vector-DB connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.VectorDBs != nil {
		s.VectorDBs.Close()
	}
	if s.shutdownFunc != nil {
		return s.shutdownFunc(ctx)
	}
	return nil
}
