// Package server provides the public entry point for initializing the
// comms engine server.
//
// This package exists in pkg/ (not internal/) so that upstream services
// can import it and compose the full engine behind their own middleware.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/blociq/comms-engine/internal/api"
	"github.com/blociq/comms-engine/internal/api/handlers"
	"github.com/blociq/comms-engine/internal/config"
	"github.com/blociq/comms-engine/internal/directory"
	"github.com/blociq/comms-engine/internal/drafts"
	"github.com/blociq/comms-engine/internal/engine"
	"github.com/blociq/comms-engine/internal/llm"
	"github.com/blociq/comms-engine/internal/retention"
	"github.com/blociq/comms-engine/internal/telemetry"
	"github.com/blociq/comms-engine/internal/tonelog"
	"github.com/blociq/comms-engine/pkg/contracts"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized comms engine.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Drafts is the draft store. Exposed so embedding services can
	// reach the same store the handlers use.
	Drafts contracts.DraftStore

	// Directory is the building/leaseholder data provider.
	Directory contracts.ContextProvider

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown: it flushes
	// telemetry and closes the stores.
	ShutdownFunc func(context.Context) error
}

// New initializes all engine components from environment configuration
// and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the engine with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	// Initialize telemetry
	otelShutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// Draft store: in-memory with JSON snapshot, or sqlite
	var draftStore contracts.DraftStore
	switch cfg.Data.Backend {
	case "sqlite":
		draftStore, err = drafts.NewSQLiteStore(cfg.Data.DraftsDB)
		if err != nil {
			return nil, fmt.Errorf("open drafts store: %w", err)
		}
		log.Info().Str("path", cfg.Data.DraftsDB).Msg("✅ SQLite draft store initialized")
	default:
		draftStore = drafts.NewMemoryStore(cfg.Data.Dir)
		log.Info().Msg("✅ In-memory draft store initialized")
	}

	// Directory (buildings, leaseholders, compliance assets)
	dir, err := directory.Open(cfg.Data.DirectoryDB)
	if err != nil {
		draftStore.Close()
		return nil, fmt.Errorf("open directory: %w", err)
	}
	log.Info().Str("path", cfg.Data.DirectoryDB).Msg("✅ Directory initialized")

	// Completion providers
	client, err := llm.New(ctx, providersFromConfig(cfg.Providers), cfg.Providers.Strategy)
	if err != nil {
		draftStore.Close()
		dir.Close()
		return nil, fmt.Errorf("init model client: %w", err)
	}
	log.Info().Str("strategy", cfg.Providers.Strategy).Msg("✅ Model client initialized")

	// Drafting engine + tone log
	eng := engine.New(dir, client, draftStore, cfg.Providers.DefaultModel)
	toneLog := tonelog.New(cfg.Data.ToneLogCapacity)
	log.Info().Str("session", toneLog.SessionID()).Msg("✅ Drafting engine initialized")

	// Build handlers + API router
	h := handlers.New(dir, eng, draftStore, toneLog)
	router := api.NewRouter(cfg, h)

	// Background draft retention sweep
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go retention.NewJanitor(draftStore, cfg.Data.RetentionDays, 0).Start(janitorCtx)

	shutdown := func(ctx context.Context) error {
		stopJanitor()
		if err := draftStore.Close(); err != nil {
			log.Warn().Err(err).Msg("Draft store close failed")
		}
		if err := dir.Close(); err != nil {
			log.Warn().Err(err).Msg("Directory close failed")
		}
		return otelShutdown(ctx)
	}

	return &Server{
		Handler:      router,
		Drafts:       draftStore,
		Directory:    dir,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// providersFromConfig builds the provider chain in fallback order:
// OpenAI, Anthropic, Gemini, then Ollama. Providers without credentials
// are skipped; with nothing configured a local Ollama default is used
// so the engine still runs in development.
func providersFromConfig(pc config.ProvidersConfig) []llm.ProviderConfig {
	var providers []llm.ProviderConfig
	if pc.OpenAIKey != "" {
		providers = append(providers, llm.ProviderConfig{
			Name:     "openai",
			Kind:     llm.KindOpenAI,
			Endpoint: pc.OpenAIEndpoint,
			APIKey:   pc.OpenAIKey,
			Model:    pc.OpenAIModel,
		})
	}
	if pc.AnthropicKey != "" {
		providers = append(providers, llm.ProviderConfig{
			Name:     "anthropic",
			Kind:     llm.KindAnthropic,
			Endpoint: pc.AnthropicEndpoint,
			APIKey:   pc.AnthropicKey,
			Model:    pc.AnthropicModel,
		})
	}
	if pc.GeminiKey != "" {
		providers = append(providers, llm.ProviderConfig{
			Name:   "gemini",
			Kind:   llm.KindGemini,
			APIKey: pc.GeminiKey,
			Model:  pc.GeminiModel,
		})
	}
	if pc.OllamaEndpoint != "" || len(providers) == 0 {
		providers = append(providers, llm.ProviderConfig{
			Name:     "ollama",
			Kind:     llm.KindOllama,
			Endpoint: pc.OllamaEndpoint,
			Model:    pc.OllamaModel,
		})
	}
	return providers
}
