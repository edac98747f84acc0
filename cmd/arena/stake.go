package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/paddle-arena/internal/escrow"
	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
	"github.com/vovakirdan/paddle-arena/internal/room"
)

var (
	flagStakeHost        string
	flagStakeGuest       string
	flagStakeAmount      int64
	flagStakeGuestStaked bool
)

var stakeCmd = &cobra.Command{
	Use:   "stake <code>",
	Short: "Seed an escrow record for a staked room",
	Long: `Write the escrow record a staked room is created from. A host that
creates a room with this code gets a staked room; the guest must stake
(or be seeded with --guest-staked) before the match starts.

Examples:
  arena stake DUEL42 --host 0xabc --amount 100
  arena stake DUEL42 --host 0xabc --amount 100 --guest 0xdef --guest-staked`,
	Args: cobra.ExactArgs(1),
	RunE: runStake,
}

func init() {
	stakeCmd.Flags().StringVar(&flagStakeHost, "host", "", "Host wallet address")
	stakeCmd.Flags().StringVar(&flagStakeGuest, "guest", "", "Guest wallet address")
	stakeCmd.Flags().Int64Var(&flagStakeAmount, "amount", 0, "Stake amount per player")
	stakeCmd.Flags().BoolVar(&flagStakeGuestStaked, "guest-staked", false, "Mark the guest stake as already confirmed")
	_ = stakeCmd.MarkFlagRequired("host")
	_ = stakeCmd.MarkFlagRequired("amount")
}

func runStake(cmd *cobra.Command, args []string) error {
	code := room.NormalizeCode(args[0])
	if !room.IsValidCode(code) {
		return fmt.Errorf("invalid room code %q", args[0])
	}

	ctx := cmd.Context()
	rdb, err := dialRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := escrow.NewStore(rdb, cfg.Redis.KeyPrefix, nil)
	err = store.Seed(ctx, multiplayer.StakeInfo{
		RoomCode:     code,
		HostAddress:  flagStakeHost,
		GuestAddress: flagStakeGuest,
		Amount:       flagStakeAmount,
		GuestStaked:  flagStakeGuestStaked,
	})
	if err != nil {
		return err
	}

	rec, err := store.Get(ctx, code)
	if err != nil {
		return err
	}
	fmt.Printf("Escrow seeded for %s: host %s, amount %d, guest staked %t\n",
		rec.RoomCode, rec.HostAddress, rec.Amount, rec.GuestStaked)
	return nil
}
