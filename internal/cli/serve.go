package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edenlabs/eden/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant daemon with the UI gateway",
	Long: `Run the assistant as a daemon: the full conversational stack plus the
WebSocket gateway that the UI connects to for events and commands.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8474", "gateway listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, bus, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()
	defer orch.Close()

	gateway := server.NewGateway(orch, bus, collector, logger)
	if err := gateway.Run(ctx, serveAddr); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
