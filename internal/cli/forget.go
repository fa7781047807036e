package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	forgetEpisode      string
	forgetConversation string
	forgetAll          bool
	forgetYes          bool
)

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Delete remembered exchanges",
	Long: `Delete a single episode, a whole conversation, or everything.

Examples:
  eden forget --episode ep_5f3a...
  eden forget --conversation conv_42
  eden forget --all --yes`,
	RunE: runForget,
}

func init() {
	forgetCmd.Flags().StringVar(&forgetEpisode, "episode", "", "episode id to delete")
	forgetCmd.Flags().StringVar(&forgetConversation, "conversation", "", "conversation id to clear")
	forgetCmd.Flags().BoolVar(&forgetAll, "all", false, "delete every episode")
	forgetCmd.Flags().BoolVarP(&forgetYes, "yes", "y", false, "skip confirmation")
}

func runForget(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	set := 0
	for _, b := range []bool{forgetEpisode != "", forgetConversation != "", forgetAll} {
		if b {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("specify exactly one of --episode, --conversation, --all")
	}

	store, err := newStore(ctx)
	if err != nil {
		return err
	}

	if forgetEpisode != "" {
		found, err := store.DeleteEpisode(ctx, forgetEpisode)
		if err != nil {
			return fmt.Errorf("delete episode: %w", err)
		}
		if !found {
			fmt.Printf("Episode %s does not exist; nothing to do.\n", forgetEpisode)
			return nil
		}
		fmt.Printf("Deleted episode %s\n", forgetEpisode)
		return nil
	}

	target := "ALL episodes"
	if forgetConversation != "" {
		target = fmt.Sprintf("all episodes of conversation %s", forgetConversation)
	}
	if !forgetYes && !confirm(fmt.Sprintf("Delete %s?", target)) {
		fmt.Println("Aborted.")
		return nil
	}

	removed, err := store.ClearEpisodes(ctx, forgetConversation)
	if err != nil {
		return fmt.Errorf("clear episodes: %w", err)
	}
	fmt.Printf("Deleted %d episode(s)\n", removed)
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
