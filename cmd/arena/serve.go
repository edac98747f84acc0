package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/paddle-arena/internal/escrow"
	"github.com/vovakirdan/paddle-arena/internal/inventory"
	"github.com/vovakirdan/paddle-arena/internal/match"
	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
	"github.com/vovakirdan/paddle-arena/internal/platform/sshline"
	"github.com/vovakirdan/paddle-arena/internal/platform/ws"
	"github.com/vovakirdan/paddle-arena/internal/room"
	"github.com/vovakirdan/paddle-arena/internal/signing"
	"github.com/vovakirdan/paddle-arena/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var (
	flagWSAddr  string
	flagSSHAddr string
	flagHostKey string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arena server",
	Long: `Start the game server. Clients connect over WebSocket at /ws
(?name=<player>&wallet=<address>) or over SSH, exchanging one JSON
envelope {"t": <type>, "p": <payload>} per frame or line.

Staking and power-up inventory need Redis (redis.addr). Without it the
server runs unstaked matches and power-ups are free.

Host key handling:
  - If --host-key is provided, uses that key file
  - Otherwise uses server.host_key_path, auto-generating the key

Examples:
  arena serve                      # Listen on :8080 (ws) and :2222 (ssh)
  arena serve --ws :9000           # WebSocket on port 9000
  arena serve --ssh ""             # Disable the SSH channel

SSH clients connect with:
  ssh -p 2222 -o SetEnv=ARENA_WALLET=0xabc alice@localhost`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagWSAddr, "ws", "", "WebSocket address (host:port, overrides config)")
	serveCmd.Flags().StringVar(&flagSSHAddr, "ssh", "", "SSH address (host:port, overrides config)")
	serveCmd.Flags().StringVar(&flagHostKey, "host-key", "", "Path to SSH host key file")
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "arena",
	})
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func runServe(cmd *cobra.Command, _ []string) error {
	if flagWSAddr != "" {
		cfg.Server.WSAddr = flagWSAddr
	}
	if cmd.Flags().Changed("ssh") {
		cfg.Server.SSHAddr = flagSSHAddr
	}
	if flagHostKey != "" {
		cfg.Server.HostKeyPath = flagHostKey
	}

	logger := newLogger()
	var collab multiplayer.Collaborators

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logger.Warn("could not open match database, results will not be saved", "error", err)
	} else {
		defer store.Close()
		collab.Results = store
		collab.Ratings = store
	}

	signer, err := loadSigner(logger)
	if err != nil {
		return err
	}
	collab.Signer = signer

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = newRedis(cfg.Redis)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, staking and power-ups will fail until it returns",
				"addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
		escrows := escrow.NewStore(rdb, cfg.Redis.KeyPrefix, signer)
		collab.Escrow = escrows
		collab.Abandon = escrows
		collab.Inventory = inventory.NewStore(rdb, cfg.Redis.KeyPrefix)
	} else {
		logger.Info("redis not configured, staking and power-up inventory disabled")
	}

	coord := multiplayer.NewCoordinator(
		cfg.CoordinatorConfig(),
		room.NewRegistry(),
		match.NewSimulator(cfg.MatchConfig()),
		multiplayer.NewSessionRegistry(),
		logger.WithPrefix("coordinator"),
	)
	coord.SetCollaborators(collab)
	if err := coord.Start(); err != nil {
		return fmt.Errorf("cannot start coordinator: %w", err)
	}

	wsServer := ws.NewServer(ws.Config{
		Address:      cfg.Server.WSAddr,
		PingInterval: cfg.Server.PingInterval,
	}, coord, logger.WithPrefix("ws"))

	var sshServer *sshline.Server
	if cfg.Server.SSHAddr != "" {
		sshServer, err = sshline.NewServer(sshline.Config{
			Address:     cfg.Server.SSHAddr,
			HostKeyPath: cfg.Server.HostKeyPath,
			IdleTimeout: cfg.Server.IdleTimeout,
		}, coord, logger.WithPrefix("ssh"))
		if err != nil {
			coord.Stop()
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- wsServer.ListenAndServe() }()
	if sshServer != nil {
		go func() { errCh <- sshServer.ListenAndServe() }()
	}

	fmt.Printf("Arena listening: ws %s", wsServer.Addr())
	if sshServer != nil {
		fmt.Printf(", ssh %s", sshServer.Addr())
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("server error", "error", serveErr)
		}
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("ws shutdown: %w", err))
	}
	if sshServer != nil {
		if err := sshServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("ssh shutdown: %w", err))
		}
	}
	coord.Stop()

	errs = append(errs, serveErr)
	return errors.Join(errs...)
}

func loadSigner(logger *log.Logger) (*signing.Signer, error) {
	if cfg.Signing.PrivateKey != "" {
		signer, err := signing.FromHex(cfg.Signing.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("signing key: %w", err)
		}
		logger.Info("loaded signing key", "pubkey", signer.PublicKeyHex())
		return signer, nil
	}
	signer, err := signing.Generate()
	if err != nil {
		return nil, err
	}
	logger.Warn("no signing key configured, using an ephemeral key", "pubkey", signer.PublicKeyHex())
	return signer, nil
}
