package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/paddle-arena/internal/inventory"
	"github.com/vovakirdan/paddle-arena/internal/match"
)

var grantCmd = &cobra.Command{
	Use:   "grant <player> <kind> <n>",
	Short: "Credit power-ups to a player",
	Long: `Add n power-ups of a kind to a player's inventory. Inventory is keyed
by wallet address when the player has one, otherwise by name.

Kinds: speedBoost, shield, multiball

Examples:
  arena grant alice shield 3
  arena grant 0xabc multiball 1`,
	Args: cobra.ExactArgs(3),
	RunE: runGrant,
}

func runGrant(cmd *cobra.Command, args []string) error {
	player := args[0]
	kind, ok := match.ParseKind(args[1])
	if !ok {
		return fmt.Errorf("unknown power-up %q", args[1])
	}
	n, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", args[2], err)
	}

	ctx := cmd.Context()
	rdb, err := dialRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := inventory.NewStore(rdb, cfg.Redis.KeyPrefix)
	balance, err := store.Grant(ctx, player, kind, n)
	if err != nil {
		return err
	}
	fmt.Printf("%s now has %d %s\n", player, balance, kind)
	return nil
}
