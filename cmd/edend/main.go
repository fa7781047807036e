// Package main provides the entry point for the eden daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/edenlabs/eden/internal/config"
	"github.com/edenlabs/eden/internal/db"
	"github.com/edenlabs/eden/internal/events"
	"github.com/edenlabs/eden/internal/grounding"
	"github.com/edenlabs/eden/internal/llm"
	"github.com/edenlabs/eden/internal/memory"
	"github.com/edenlabs/eden/internal/metrics"
	"github.com/edenlabs/eden/internal/orchestrator"
	"github.com/edenlabs/eden/internal/scheduler"
	"github.com/edenlabs/eden/internal/server"
	"github.com/edenlabs/eden/internal/voice"
	"github.com/edenlabs/eden/internal/wakeword"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()
	if path := os.Getenv("EDEN_CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			os.Stderr.WriteString("invalid config file: " + err.Error() + "\n")
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("edend starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"embed_model", cfg.EmbedModel,
		"llm_model", cfg.LLMModel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()

	// Connect to database
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, collector)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(context.Background())
	}()

	if err := dbClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	// Embedding + generation backends
	embedder, err := llm.NewEmbedder(cfg, collector)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	model, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		logger.Error("failed to create model", "error", err)
		os.Exit(1)
	}
	logger.Info("llm backends initialized", "embedder", embedder.Model(), "model", model.Model())

	// Episodic memory, warmed from the store
	store := memory.NewStore(dbClient, embedder, cfg.Assistant.CacheCapacity, collector)
	if err := store.Initialize(ctx); err != nil {
		logger.Error("failed to initialize memory store", "error", err)
		os.Exit(1)
	}

	validator := grounding.NewContextValidator(
		cfg.Assistant.GroundingThreshold,
		cfg.Assistant.MaxContextLength,
		cfg.Assistant.ProactivePersonality,
		collector,
	)

	// The daemon ships without a platform audio stack; capture and
	// recognition run on their documented degraded fallbacks until the
	// UI wires real sources in over the gateway.
	bus := events.NewBus()
	defer bus.Close()

	orch := orchestrator.New(cfg.Assistant, orchestrator.Deps{
		Store:     store,
		Validator: validator,
		Generator: model,
		Bus:       bus,
		Voice:     voice.NewMonitor(voice.NewNullSource(), bus, cfg.Assistant.VADSensitivity),
		WakeWord:  wakeword.NewDetector(wakeword.NewNoopRecognizer(), bus, cfg.Assistant.WakeWords, cfg.Assistant.VADSensitivity),
		Runner:    scheduler.NewRunner(),
	})
	if err := orch.Initialize(); err != nil {
		logger.Error("failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}
	defer orch.Close()

	addr := os.Getenv("EDEN_GATEWAY_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8474"
	}

	logger.Info("daemon ready, serving gateway")
	gateway := server.NewGateway(orch, bus, collector, logger)
	if err := gateway.Run(ctx, addr); err != nil && ctx.Err() == nil {
		logger.Error("gateway error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
