// Package rag implements the gateway's retrieval-augmented generation
// pipeline: embed the user's query, search one or more vector-DB
// collections, deduplicate the retrieved points, and rewrite the chat
// message array before handing off to the chat dispatcher.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/llamaedge/nexus-gateway/internal/backend"
	"github.com/llamaedge/nexus-gateway/internal/dispatch"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/proxy"
	"github.com/llamaedge/nexus-gateway/internal/registry"
	"github.com/llamaedge/nexus-gateway/internal/vectordb"
	"github.com/llamaedge/nexus-gateway/pkg/models"
	"github.com/rs/zerolog/log"
)

// Config is the static RAG configuration resolved from the gateway's config
// file (spec §6 "RAG enable/prompt/policy/contextWindow").
type Config struct {
	Enabled       bool
	Prompt        string
	Policy        Policy
	ContextWindow int
	DefaultVDB    DefaultVectorDB
}

// Orchestrator runs the RAG pipeline described in spec §4.7, then forwards
// the rewritten chat request to the chat kind dispatcher.
type Orchestrator struct {
	Registry   *registry.Registry
	VectorDBs  *vectordb.Registry
	Dispatcher *dispatch.Dispatcher
	Config     Config
}

// New constructs an Orchestrator.
func New(reg *registry.Registry, vdbs *vectordb.Registry, d *dispatch.Dispatcher, cfg Config) *Orchestrator {
	return &Orchestrator{Registry: reg, VectorDBs: vdbs, Dispatcher: d, Config: cfg}
}

// Handle implements the full RAG pipeline for one inbound chat request and
// writes the final response to w. It is the RAG-enabled alternative to a
// plain dispatch.Dispatcher.Dispatch(ChatCompletions) call (spec §4.6
// "special case — chat").
func (o *Orchestrator) Handle(w http.ResponseWriter, r *http.Request) error {
	requestID := proxy.RequestID(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return gwerr.Wrap(gwerr.Operation, "reading chat request body", err)
	}
	r.Body.Close()

	var chatReq models.ChatRequest
	if err := json.Unmarshal(body, &chatReq); err != nil {
		return gwerr.Wrap(gwerr.BadRequest, "malformed chat request body", err)
	}
	if len(chatReq.Messages) == 0 {
		return gwerr.New(gwerr.BadRequest, "found empty chat messages")
	}

	configs, err := ResolveVectorDBConfigs(&chatReq, o.Config.DefaultVDB)
	if err != nil {
		return err
	}

	contextWindow := o.Config.ContextWindow
	if chatReq.ContextWindow != nil && *chatReq.ContextWindow > 0 {
		contextWindow = *chatReq.ContextWindow
	}
	if contextWindow <= 0 {
		contextWindow = 1
	}

	queryText, err := DeriveQueryText(chatReq.Messages, contextWindow)
	if err != nil {
		return err
	}

	ctx := r.Context()
	queryVector, err := o.embed(ctx, requestID, queryText)
	if err != nil {
		return err
	}

	apiKey := chatReq.VDBAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("VDB_API_KEY")
	}

	sets, err := Retrieve(ctx, o.VectorDBs, configs, queryVector, apiKey)
	if err != nil {
		return err
	}

	joined := JoinContext(sets)
	if joined != "" {
		chatReq.Messages, err = o.mergeContext(chatReq.Messages, joined, requestID)
		if err != nil {
			return err
		}
	}

	rewritten, err := json.Marshal(chatReq)
	if err != nil {
		return gwerr.Wrap(gwerr.Operation, "re-encoding rewritten chat request", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(rewritten))
	r.ContentLength = int64(len(rewritten))

	return o.Dispatcher.Dispatch(w, r, dispatch.ChatCompletions)
}

// embed constructs an EmbeddingRequest for queryText and invokes the
// embeddings dispatcher in-process (spec §4.7 step 3, §9).
func (o *Orchestrator) embed(ctx context.Context, requestID, queryText string) ([]float32, error) {
	req := models.EmbeddingRequest{Input: []string{queryText}}
	var resp models.EmbeddingResponse
	if err := o.Dispatcher.CallJSON(ctx, dispatch.Embeddings, requestID, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, gwerr.New(gwerr.Operation, "no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}

// mergeContext looks up a currently registered chat backend's declared
// prompt-template capabilities to decide whether SystemMessage demotes to
// LastUserMessage, then delegates to MergeContext. The capability cache only
// records what a backend declared at verification time, not which instance
// will actually serve this request — the real backend is chosen again, by
// the pool's own Select, inside Dispatch after the merge.
func (o *Orchestrator) mergeContext(messages []models.Message, context, requestID string) ([]models.Message, error) {
	hasSystemPrompt := false
	var backendID backend.ID
	for _, snap := range o.Registry.List()["chat"] {
		backendID = snap.ID
		break
	}
	if backendID != "" {
		if caps, ok := o.Registry.Capabilities(backendID); ok && caps.ChatModel != nil {
			hasSystemPrompt = caps.ChatModel.HasSystemPrompt
		}
	}

	log.Debug().Str("request_id", requestID).Str("context", context).Msg("merging RAG context into chat request")
	return MergeContext(messages, context, hasSystemPrompt, o.Config.Policy, o.Config.Prompt, string(backendID))
}
