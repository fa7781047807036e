package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edenlabs/eden/internal/models"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <episode-id> <positive|negative>",
	Short: "Rate a remembered exchange",
	Long: `Attach satisfaction feedback to an episode. Feedback feeds the memory
statistics and future retrieval tuning.

Examples:
  eden feedback ep_5f3a... positive
  eden feedback ep_5f3a... negative`,
	Args: cobra.ExactArgs(2),
	RunE: runFeedback,
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var value models.Satisfaction
	switch args[1] {
	case string(models.SatisfactionPositive):
		value = models.SatisfactionPositive
	case string(models.SatisfactionNegative):
		value = models.SatisfactionNegative
	default:
		return fmt.Errorf("feedback must be %q or %q", models.SatisfactionPositive, models.SatisfactionNegative)
	}

	store, err := newStore(ctx)
	if err != nil {
		return err
	}

	found, err := store.UpdateSatisfaction(ctx, args[0], value)
	if err != nil {
		return fmt.Errorf("update satisfaction: %w", err)
	}
	if !found {
		return fmt.Errorf("episode %q not found", args[0])
	}

	fmt.Printf("Recorded %s feedback on %s\n", value, args[0])
	return nil
}
