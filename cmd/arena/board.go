package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/paddle-arena/internal/platform/board"
	"github.com/vovakirdan/paddle-arena/internal/storage"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Browse the leaderboard and recent matches",
	Long: `Open an interactive view of player ratings and the most recent
matches recorded by this server.

Controls:
  tab      - Switch between leaderboard and recent matches
  up/down  - Scroll
  r        - Refresh
  q        - Quit`,
	RunE: runBoard,
}

func runBoard(_ *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("board needs an interactive terminal; use 'arena history' instead")
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("cannot open match database: %w", err)
	}
	defer store.Close()

	width, height := 80, 24
	if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
		width, height = w, h
	}
	return board.Run(store, width, height)
}
