package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edenlabs/eden/internal/memory"
)

var (
	searchLimit         int
	searchMinSimilarity float64
	searchConversation  string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search episodic memory",
	Long: `Search past exchanges by semantic similarity.

Examples:
  eden search "database schema discussion"
  eden search -n 10 --min-similarity 0.4 "deployment"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "max results")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", 0.5, "similarity floor")
	searchCmd.Flags().StringVar(&searchConversation, "conversation", "", "restrict to one conversation")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := newStore(ctx)
	if err != nil {
		return err
	}

	result, err := store.SearchEpisodes(ctx, args[0], memory.SearchOptions{
		TopK:           searchLimit,
		MinSimilarity:  searchMinSimilarity,
		ConversationID: searchConversation,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(result.Episodes) == 0 {
		fmt.Println("No matching episodes.")
		return nil
	}

	fmt.Printf("%d match(es), showing %d:\n\n", result.MatchCount, len(result.Episodes))
	for _, ep := range result.Episodes {
		fmt.Printf("%d. [%.2f] %s (%s)\n", ep.Rank, ep.Similarity, ep.ID, ep.Timestamp.Format("2006-01-02 15:04"))
		fmt.Printf("   User: %s\n", ep.UserMessage)
		fmt.Printf("   Assistant: %s\n", ep.AssistantResponse)
		if ep.Satisfaction != nil {
			fmt.Printf("   Feedback: %s\n", *ep.Satisfaction)
		}
		fmt.Println()
	}

	return nil
}
