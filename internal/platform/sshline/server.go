// Package sshline serves the arena event channel over SSH as JSON lines.
// Each line a client writes is one {"t","p"} envelope; each line the server
// writes back is one event.
package sshline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/google/uuid"

	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
)

// WalletEnv is the environment variable a client sets to present a wallet.
const WalletEnv = "ARENA_WALLET"

const maxLineSize = 64 * 1024

// Config holds configuration for the SSH server.
type Config struct {
	// Address is the host:port to listen on (e.g., ":2222").
	Address string

	// HostKeyPath is the path to the host key file.
	// If empty, a key will be auto-generated at ~/.arena/host_key.
	HostKeyPath string

	// IdleTimeout is how long to wait before closing idle connections.
	IdleTimeout time.Duration

	// EventBuffer is the per-session outbound queue size.
	EventBuffer int
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:     ":2222",
		IdleTimeout: 10 * time.Minute,
		EventBuffer: 256,
	}
}

// Server wraps a Wish SSH server that bridges sessions to the coordinator.
type Server struct {
	config Config
	server *ssh.Server
	coord  *multiplayer.Coordinator
	logger *log.Logger
}

// NewServer creates a new SSH server with the given configuration.
func NewServer(cfg Config, coord *multiplayer.Coordinator, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}

	srv := &Server{
		config: cfg,
		coord:  coord,
		logger: logger,
	}

	hostKeyPath := cfg.HostKeyPath
	if hostKeyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("sshline: cannot get home directory: %w", err)
		}
		hostKeyPath = filepath.Join(home, ".arena", "host_key")
	}
	if err := os.MkdirAll(filepath.Dir(hostKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("sshline: cannot create host key directory: %w", err)
	}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithMiddleware(
			srv.sessionHandler,
			srv.loggingMiddleware,
		),
	}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(cfg.IdleTimeout))
	}

	server, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("sshline: cannot create SSH server: %w", err)
	}
	srv.server = server
	return srv, nil
}

// sessionHandler is the terminal middleware: it owns the session until the
// client disconnects.
func (s *Server) sessionHandler(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		ident := multiplayer.Identity{
			Name:   sess.User(),
			Wallet: walletFromEnv(sess.Environ()),
		}
		if err := s.ServeStream(sess.Context(), sess, ident); err != nil {
			s.logger.Debug("stream ended", "user", sess.User(), "error", err)
			_ = sess.Exit(1)
		} else {
			_ = sess.Exit(0)
		}
		next(sess)
	}
}

// loggingMiddleware logs SSH session events.
func (s *Server) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		s.logger.Info("session started",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
		next(sess)
		s.logger.Info("session ended",
			"user", sess.User(),
			"remote", sess.RemoteAddr().String(),
		)
	}
}

// ListenAndServe starts the SSH server and blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting SSH server", "address", s.config.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *Server) Addr() string {
	return s.config.Address
}

// ServeStream runs one session over rw until the reader ends. It registers
// ident with the coordinator and reports the disconnect on return.
func (s *Server) ServeStream(ctx context.Context, rw io.ReadWriter, ident multiplayer.Identity) error {
	id := multiplayer.SessionID(uuid.NewString())
	sess := multiplayer.NewChannelSession(id, s.config.EventBuffer)
	s.coord.Sessions().Register(sess, ident)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writeLoop(ctx, rw, sess)
	}()

	err := s.readLoop(rw, id)

	cancel()
	sess.Close()
	<-writeDone
	s.coord.Send(multiplayer.SessionDisconnectedMsg{SessionID: id})
	return err
}

func (s *Server) readLoop(r io.Reader, id multiplayer.SessionID) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := s.coord.Dispatch(id, line); err != nil {
			s.logger.Debug("rejected line", "session", id, "error", err)
		}
	}
	return scanner.Err()
}

func (s *Server) writeLoop(ctx context.Context, w io.Writer, sess *multiplayer.ChannelSession) {
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		case evt := <-sess.Events():
			env, err := multiplayer.EventEnvelope(evt)
			if err != nil {
				s.logger.Error("cannot encode event", "event", evt.EventName(), "error", err)
				continue
			}
			if err := enc.Encode(env); err != nil {
				s.logger.Debug("write failed", "session", sess.ID(), "error", err)
				return
			}
		}
	}
}

func walletFromEnv(environ []string) string {
	prefix := WalletEnv + "="
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(kv, prefix))
		}
	}
	return ""
}
