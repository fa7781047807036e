// Package cli provides the command-line interface for eden.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/edenlabs/eden/internal/config"
	"github.com/edenlabs/eden/internal/db"
	"github.com/edenlabs/eden/internal/events"
	"github.com/edenlabs/eden/internal/grounding"
	"github.com/edenlabs/eden/internal/llm"
	"github.com/edenlabs/eden/internal/memory"
	"github.com/edenlabs/eden/internal/metrics"
	"github.com/edenlabs/eden/internal/orchestrator"
	"github.com/edenlabs/eden/internal/scheduler"
	"github.com/edenlabs/eden/internal/voice"
	"github.com/edenlabs/eden/internal/wakeword"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configFile string
	verbose    bool

	// Global state built in PersistentPreRunE
	cfg       config.Config
	logger    *slog.Logger
	logClose  func() error
	collector *metrics.Collector
	dbClient  *db.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "eden",
	Short: "Local conversational assistant with episodic memory",
	Long: `Eden is a local, privacy-preserving conversational assistant. It remembers
past exchanges as episodes, retrieves the relevant ones for each turn,
grounds generation against them, and keeps an eye on hallucination risk.

Everything runs against a local SurrealDB instance and a local or remote
LLM backend; nothing leaves the machine unless you configure it to.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if configFile != "" {
			if err := cfg.ApplyFile(configFile); err != nil {
				return fmt.Errorf("apply config file: %w", err)
			}
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, logClose = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		collector = metrics.NewCollector()

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger, collector)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logClose != nil {
			_ = logClose()
		}
	},
}

// newStore builds and warms the episodic memory store.
func newStore(ctx context.Context) (*memory.Store, error) {
	embedder, err := llm.NewEmbedder(cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	store := memory.NewStore(dbClient, embedder, cfg.Assistant.CacheCapacity, collector)
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize memory store: %w", err)
	}
	return store, nil
}

// newOrchestrator builds the full conversational stack. The CLI has no
// audio hardware wired in, so voice capture and speech recognition run
// on their documented degraded fallbacks.
func newOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, *events.Bus, error) {
	store, err := newStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	model, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		return nil, nil, fmt.Errorf("init model: %w", err)
	}

	validator := grounding.NewContextValidator(
		cfg.Assistant.GroundingThreshold,
		cfg.Assistant.MaxContextLength,
		cfg.Assistant.ProactivePersonality,
		collector,
	)

	bus := events.NewBus()
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
		bus.Close()
		return nil, nil, fmt.Errorf("initialize orchestrator: %w", err)
	}
	return orch, bus, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config overlay file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}
