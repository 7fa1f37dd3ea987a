// Package config loads the gateway's TOML configuration file, overlaying
// environment variables of the form GATEWAY_<SECTION>_<FIELD>, in the style
// of the lineage's envStr/envInt/envBool helpers.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/llamaedge/nexus-gateway/internal/gwerr"
	"github.com/llamaedge/nexus-gateway/internal/rag"
)

// Config holds the gateway's full process configuration (spec §6
// "Configuration file").
type Config struct {
	Server   ServerConfig   `toml:"server"`
	RAG      RAGConfig      `toml:"rag"`
	VectorDB VectorDBConfig `toml:"vectordb"`
}

type ServerConfig struct {
	BindAddr     string `toml:"bind_addr"`
	HopTimeoutMS int    `toml:"hop_timeout_ms"`
}

type RAGConfig struct {
	Enable        bool   `toml:"enable"`
	Prompt        string `toml:"prompt"`
	Policy        string `toml:"policy"`
	ContextWindow int    `toml:"context_window"`
}

type VectorDBConfig struct {
	URL             string   `toml:"url"`
	CollectionNames []string `toml:"collection_names"`
	Limit           uint64   `toml:"limit"`
	ScoreThreshold  float64  `toml:"score_threshold"`
}

// Load reads path as TOML, overlays GATEWAY_<SECTION>_<FIELD> environment
// variables, then validates. A missing/malformed file maps to
// gwerr.FailedToLoadConfig; a semantically invalid value (bad bind address,
// unrecognized RAG policy) maps to gwerr.ArgumentError.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, gwerr.Wrap(gwerr.FailedToLoadConfig, "loading config file "+path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddr:     "0.0.0.0:8080",
			HopTimeoutMS: 30_000,
		},
		RAG: RAGConfig{
			Enable:        false,
			Policy:        string(rag.PolicySystemMessage),
			ContextWindow: 1,
		},
		VectorDB: VectorDBConfig{
			Limit:          5,
			ScoreThreshold: 0.5,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.BindAddr = envStr("GATEWAY_SERVER_BIND_ADDR", cfg.Server.BindAddr)
	cfg.Server.HopTimeoutMS = envInt("GATEWAY_SERVER_HOP_TIMEOUT_MS", cfg.Server.HopTimeoutMS)

	cfg.RAG.Enable = envBool("GATEWAY_RAG_ENABLE", cfg.RAG.Enable)
	cfg.RAG.Prompt = envStr("GATEWAY_RAG_PROMPT", cfg.RAG.Prompt)
	cfg.RAG.Policy = envStr("GATEWAY_RAG_POLICY", cfg.RAG.Policy)
	cfg.RAG.ContextWindow = envInt("GATEWAY_RAG_CONTEXT_WINDOW", cfg.RAG.ContextWindow)

	cfg.VectorDB.URL = envStr("GATEWAY_VECTORDB_URL", cfg.VectorDB.URL)
	if names := os.Getenv("GATEWAY_VECTORDB_COLLECTION_NAMES"); names != "" {
		cfg.VectorDB.CollectionNames = strings.Split(names, ",")
	}
	cfg.VectorDB.Limit = uint64(envInt("GATEWAY_VECTORDB_LIMIT", int(cfg.VectorDB.Limit)))
	cfg.VectorDB.ScoreThreshold = envFloat("GATEWAY_VECTORDB_SCORE_THRESHOLD", cfg.VectorDB.ScoreThreshold)
}

func validate(cfg *Config) error {
	if cfg.Server.BindAddr == "" {
		return gwerr.New(gwerr.ArgumentError, "server.bind_addr must not be empty")
	}
	if cfg.Server.HopTimeoutMS <= 0 {
		return gwerr.New(gwerr.ArgumentError, "server.hop_timeout_ms must be positive")
	}
	if cfg.RAG.Enable {
		switch rag.Policy(cfg.RAG.Policy) {
		case rag.PolicySystemMessage, rag.PolicyLastUserMessage:
		default:
			return gwerr.New(gwerr.ArgumentError, "rag.policy must be SystemMessage or LastUserMessage, got "+cfg.RAG.Policy)
		}
		if cfg.RAG.ContextWindow <= 0 {
			return gwerr.New(gwerr.ArgumentError, "rag.context_window must be positive")
		}
		if cfg.VectorDB.URL == "" || len(cfg.VectorDB.CollectionNames) == 0 {
			return gwerr.New(gwerr.ArgumentError, "rag.enable requires vectordb.url and vectordb.collection_names")
		}
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
