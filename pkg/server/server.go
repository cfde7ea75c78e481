// Package server wires the cold-chain backend components into a ready
// HTTP server. It lives in pkg/ so deployments can embed the backend and
// compose their own middleware around Handler.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/internal/agent"
	"github.com/aegisharvest/coldchain/internal/api"
	"github.com/aegisharvest/coldchain/internal/api/handlers"
	"github.com/aegisharvest/coldchain/internal/config"
	"github.com/aegisharvest/coldchain/internal/ml"
	"github.com/aegisharvest/coldchain/internal/oracle"
	"github.com/aegisharvest/coldchain/internal/retention"
	"github.com/aegisharvest/coldchain/internal/store"
	"github.com/aegisharvest/coldchain/internal/telemetry"
	"github.com/aegisharvest/coldchain/internal/ws"
)

// Server holds the initialized backend.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store (in-memory unless DATABASE_URL is set).
	Store store.Store

	// Hub is the live telemetry fan-out; Run it on its own goroutine.
	Hub *ws.Hub

	// Janitor sweeps expired telemetry and prediction records; Start it
	// on its own goroutine.
	Janitor *retention.Janitor

	// Port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry on graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the backend with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var dataStore store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		dataStore = pg
	} else {
		dataStore = store.NewMemoryStore()
		log.Info().Msg("in-memory store initialized")
	}

	// Model artifacts load lazily on the first prediction, so a missing
	// models directory degrades the predict endpoints instead of the boot.
	engine := ml.NewEngine(cfg.Models.Dir)
	if err := engine.Load(); err != nil {
		log.Warn().Err(err).Str("dir", cfg.Models.Dir).Msg("model artifacts not loaded yet")
	} else {
		log.Info().Str("dir", cfg.Models.Dir).Msg("prediction engine ready")
	}

	var oracleClient oracle.Client
	if cfg.Oracle.APIKey != "" {
		opts := []oracle.OpenAIOption{oracle.WithModel(cfg.Oracle.Model)}
		if cfg.Oracle.Endpoint != "" {
			opts = append(opts, oracle.WithEndpoint(cfg.Oracle.Endpoint))
		}
		oracleClient = oracle.NewOpenAIClient(cfg.Oracle.APIKey, opts...)
		log.Info().Str("model", cfg.Oracle.Model).Msg("oracle client initialized")
	} else {
		oracleClient = oracle.Unconfigured{}
		log.Warn().Msg("OPENAI_API_KEY not set, copilot will answer with fallback text")
	}

	var detector agent.ActionDetector
	if cfg.Agent.ActionExpr != "" {
		detector, err = agent.NewExprDetector(cfg.Agent.ActionExpr)
		if err != nil {
			return nil, fmt.Errorf("init action detector: %w", err)
		}
		log.Info().Str("expr", cfg.Agent.ActionExpr).Msg("expression action detector enabled")
	}

	registry := agent.NewRegistry(engine, dataStore)
	copilot := agent.NewService(oracleClient, registry, dataStore, detector)

	hub := ws.NewHub()
	h := handlers.New(dataStore, engine, copilot, hub)
	router := api.NewRouter(cfg, h, hub.ServeWS)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Hub:          hub,
		Janitor:      retention.NewJanitor(dataStore, 6*time.Hour),
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
