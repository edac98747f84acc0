package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/paddle-arena/internal/storage"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history <player>",
	Short: "Show a player's rating and recent matches",
	Long: `Display a player's current rating and their most recent matches.

Examples:
  arena history alice
  arena history alice --limit 50`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&flagHistoryLimit, "limit", 20, "Number of matches to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	player := args[0]

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("cannot open match database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	rating, err := store.Rating(ctx, player)
	if err != nil {
		return err
	}
	matches, err := store.PlayerHistory(ctx, player, flagHistoryLimit)
	if err != nil {
		return err
	}

	fmt.Printf("%s - rating %d (%d W / %d L)\n", player, rating.Rating, rating.Wins, rating.Losses)
	fmt.Println()

	if len(matches) == 0 {
		fmt.Println("No matches recorded yet.")
		return nil
	}

	fmt.Printf("  %-10s  %-16s  %-5s  %-6s  %-10s  %s\n", "Room", "Opponent", "Score", "Result", "Reason", "Date")
	fmt.Printf("  %-10s  %-16s  %-5s  %-6s  %-10s  %s\n", "----", "--------", "-----", "------", "------", "----")
	for _, m := range matches {
		seat := 0
		if m.Players[1] == player {
			seat = 1
		}
		result := "lost"
		switch m.Winner {
		case player:
			result = "won"
		case "":
			result = "-"
		}
		score := fmt.Sprintf("%d-%d", m.Score[seat], m.Score[1-seat])
		fmt.Printf("  %-10s  %-16s  %-5s  %-6s  %-10s  %s\n",
			m.RoomCode, m.Players[1-seat], score, result, m.Reason,
			m.EndedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
