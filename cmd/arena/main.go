// arena is a real-time two-player paddle game server.
//
// Usage:
//
//	arena serve                      - Start the WebSocket and SSH event channels
//	arena board                      - Browse the leaderboard and recent matches
//	arena history <player>           - Show a player's rating and match history
//	arena stake <code>               - Seed an escrow record for a staked room
//	arena grant <player> <kind> <n>  - Credit power-up inventory
//
// Global flags:
//
//	--config <path>  - Config file (default: ~/.arena/arena.yaml, then ./configs/arena.yaml)
//	--env <path>     - Dotenv file loaded before the config (default: .env)
//	--db <path>      - Override the database path
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/paddle-arena/internal/config"
)

var (
	// Global flags
	flagConfig string
	flagEnv    string
	flagDBPath string

	// cfg is loaded once before any subcommand runs.
	cfg config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Paddle Arena - real-time two-player paddle matches",
	Long: `Paddle Arena runs head-to-head paddle matches over WebSocket and SSH,
with optional staking, power-ups, ratings and match history.

Available commands:
  serve    - Start the game server
  board    - Leaderboard and recent matches
  history  - A player's match history
  stake    - Seed an escrow record
  grant    - Credit power-ups to a player

Examples:
  arena serve
  arena serve --config ./configs/arena.yaml
  arena history alice
  arena stake DUEL42 --host 0xabc --amount 100
  arena grant alice shield 3`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(flagEnv); err != nil {
			return err
		}
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if flagDBPath != "" {
			loaded.Storage.Path = flagDBPath
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", ".env", "Path to dotenv file")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to match database (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(stakeCmd)
	rootCmd.AddCommand(grantCmd)
}
