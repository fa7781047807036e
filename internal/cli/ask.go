package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edenlabs/eden/internal/models"
	"github.com/edenlabs/eden/internal/orchestrator"
)

var (
	askMode          string
	askSkipGrounding bool
	askConversation  string
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask the assistant a question",
	Long: `Ask the assistant a question. Relevant past exchanges are retrieved from
episodic memory, the response is grounded against them, and the exchange
is recorded as a new episode.

Examples:
  eden ask "what did we decide about the database schema?"
  eden ask --mode detailed "explain the retrieval pipeline"
  eden ask --skip-grounding "tell me a joke"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "", "force response mode (fast|detailed)")
	askCmd.Flags().BoolVar(&askSkipGrounding, "skip-grounding", false, "bypass grounding and validation")
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "conversation id to scope retrieval and recording")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	orch, bus, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()
	defer orch.Close()

	opts := orchestrator.QueryOptions{
		SkipGrounding:  askSkipGrounding,
		ConversationID: askConversation,
	}
	if askMode != "" {
		mode, err := models.ParseMode(askMode)
		if err != nil {
			return err
		}
		opts.ForceMode = mode
	}

	result, err := orch.ProcessQuery(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("process query: %w", err)
	}

	fmt.Println(result.Response)
	fmt.Printf("\n[mode: %s", result.Context.Mode)
	if result.Validation != nil {
		fmt.Printf(", grounded: %t, confidence: %.2f, risk: %s",
			result.Validation.IsGrounded, result.Validation.Confidence, result.Validation.Risk)
		if result.Validation.Regenerated {
			fmt.Print(", regenerated")
		}
	}
	fmt.Println("]")

	return nil
}
