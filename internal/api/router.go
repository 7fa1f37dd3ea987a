// Package api composes the gateway's HTTP router: the seven public
// inference endpoints, the discovery surface, and the admin surface, behind
// a fixed middleware chain (spec §10.4).
package api

import (
	"net/http"

	"github.com/llamaedge/nexus-gateway/internal/api/handlers"
	"github.com/llamaedge/nexus-gateway/internal/api/middleware"
	"github.com/llamaedge/nexus-gateway/internal/dispatch"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/rag"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the gateway's router. orchestrator is nil when RAG is
// disabled, in which case /v1/chat/completions dispatches straight to the
// chat kind pool.
func NewRouter(h *handlers.Handlers, d *dispatch.Dispatcher, orchestrator *rag.Orchestrator) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(chimw.Recoverer)

	// Wildcard origin, no credentials: the gateway's public inference surface
	// has no session/cookie auth to protect, matching the fixed security
	// posture of the lineage's CORS setup generalized to "always", not just
	// "on error" (spec §10.4).
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Get("/v1/models", h.ListModels)
	r.Get("/v1/info", h.Info)

	r.Post("/v1/chat/completions", chatHandler(d, orchestrator))
	r.Post("/v1/embeddings", d.Handler(dispatch.Embeddings, errHandlerFunc))
	r.Post("/v1/audio/transcriptions", d.Handler(dispatch.AudioTranscriptions, errHandlerFunc))
	r.Post("/v1/audio/translations", d.Handler(dispatch.AudioTranslations, errHandlerFunc))
	r.Post("/v1/audio/speech", d.Handler(dispatch.AudioSpeech, errHandlerFunc))
	r.Post("/v1/images/generations", d.Handler(dispatch.ImageGenerations, errHandlerFunc))
	r.Post("/v1/images/edits", d.Handler(dispatch.ImageEdits, errHandlerFunc))

	r.Route("/admin", func(r chi.Router) {
		r.Route("/servers", func(r chi.Router) {
			r.Post("/", h.ListServers)
			r.Post("/register", h.RegisterServer)
			r.Post("/unregister", h.UnregisterServer)
		})
		r.Route("/collections", func(r chi.Router) {
			r.Post("/", h.CreateCollection)
			r.Post("/ingest", h.IngestCollection)
		})
	})

	return r
}

// chatHandler routes to the RAG orchestrator when configured, otherwise
// straight to the chat dispatcher (spec §4.6 "special case — chat").
func chatHandler(d *dispatch.Dispatcher, orchestrator *rag.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if orchestrator != nil {
			err = orchestrator.Handle(w, r)
		} else {
			err = d.Dispatch(w, r, dispatch.ChatCompletions)
		}
		if err != nil {
			errHandlerFunc(w, r, err)
		}
	}
}

// errHandlerFunc writes a gwerr-aware JSON error response.
func errHandlerFunc(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	if gerr, ok := err.(*gwerr.Error); ok {
		status = gerr.Status()
		message = gerr.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + jsonEscape(message) + `"}`))
}

func jsonEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			out = append(out, '\\', s[i])
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
