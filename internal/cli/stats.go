package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := newStore(ctx)
	if err != nil {
		return err
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Printf("Episodes:        %d\n", stats.TotalEpisodes)
	fmt.Printf("Cached:          %d\n", stats.CachedEpisodes)
	if stats.OldestTimestamp != nil {
		fmt.Printf("Oldest:          %s\n", stats.OldestTimestamp.Format("2006-01-02 15:04"))
	}
	if stats.NewestTimestamp != nil {
		fmt.Printf("Newest:          %s\n", stats.NewestTimestamp.Format("2006-01-02 15:04"))
	}
	if stats.AvgSatisfaction != nil {
		fmt.Printf("Satisfaction:    %.0f%% positive\n", *stats.AvgSatisfaction*100)
	}

	snap := collector.Snapshot()
	if snap.DBQuery != nil {
		fmt.Printf("DB queries:      %d (avg %.1fms)\n", snap.DBQuery.Count, snap.DBQuery.AvgTimeMs)
	}
	if snap.Embedding != nil {
		fmt.Printf("Embeddings:      %d (avg %.1fms)\n", snap.Embedding.Count, snap.Embedding.AvgTimeMs)
	}

	return nil
}
