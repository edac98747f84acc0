// Package ws serves the arena event channel over WebSocket.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vovakirdan/paddle-arena/internal/multiplayer"
)

// Config holds configuration for the WebSocket server.
type Config struct {
	// Address is the host:port to listen on (e.g., ":8080").
	Address string

	// PingInterval is how often idle connections are pinged.
	PingInterval time.Duration

	// WriteTimeout bounds a single frame write or ping.
	WriteTimeout time.Duration

	// OriginPatterns lists allowed cross-origin hosts. Empty allows any origin.
	OriginPatterns []string

	// EventBuffer is the per-session outbound queue size.
	EventBuffer int
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:      ":8080",
		PingInterval: 20 * time.Second,
		WriteTimeout: 5 * time.Second,
		EventBuffer:  256,
	}
}

// Server bridges WebSocket connections to the coordinator.
type Server struct {
	config Config
	coord  *multiplayer.Coordinator
	logger *log.Logger
	http   *http.Server

	// cancel ends the base context of every request, which reaches
	// hijacked sockets that http.Server.Shutdown does not track.
	cancel context.CancelFunc
}

// NewServer creates a WebSocket server for coord.
func NewServer(cfg Config, coord *multiplayer.Coordinator, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}

	base, cancel := context.WithCancel(context.Background())
	srv := &Server{
		config: cfg,
		coord:  coord,
		logger: logger,
		cancel: cancel,
	}
	srv.http = &http.Server{
		Addr:              cfg.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	return srv
}

// Handler returns the HTTP handler serving /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.loggingMiddleware(http.HandlerFunc(s.serveWS)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	return mux
}

// loggingMiddleware logs WebSocket session events.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		s.logger.Info("session started", "user", name, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
		s.logger.Info("session ended", "user", name, "remote", r.RemoteAddr)
	})
}

// ListenAndServe starts the server and blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting WebSocket server", "address", s.config.Address)
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("ws: cannot listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Open sockets are closed and their
// sessions go through normal disconnect handling.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.http.Shutdown(ctx)
}

// Addr returns the server's listen address string.
func (s *Server) Addr() string {
	return s.config.Address
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{
		OriginPatterns:     s.config.OriginPatterns,
		InsecureSkipVerify: len(s.config.OriginPatterns) == 0,
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	query := r.URL.Query()
	ident := multiplayer.Identity{Name: query.Get("name"), Wallet: query.Get("wallet")}
	id := multiplayer.SessionID(uuid.NewString())
	sess := multiplayer.NewChannelSession(id, s.config.EventBuffer)
	s.coord.Sessions().Register(sess, ident)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		defer cancel()
		s.writeLoop(ctx, conn, sess)
	}()

	err = s.readLoop(ctx, conn, id)

	cancel()
	sess.Close()
	<-writeDone
	s.coord.Send(multiplayer.SessionDisconnectedMsg{SessionID: id})

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
		_ = conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
		_ = conn.Close(websocket.StatusGoingAway, "session closed")
	default:
		s.logger.Debug("websocket read ended", "session", id, "error", err)
		_ = conn.Close(websocket.StatusInternalError, "read failed")
	}
}

// readLoop forwards inbound text frames to the coordinator until the
// connection fails.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, id multiplayer.SessionID) error {
	for {
		typ, frame, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		if err := s.coord.Dispatch(id, frame); err != nil {
			s.logger.Debug("rejected frame", "session", id, "error", err)
		}
	}
}

// writeLoop drains the session queue into the socket and keeps it alive
// with pings.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sess *multiplayer.ChannelSession) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

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
			wctx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
			err = wsjson.Write(wctx, conn, env)
			cancel()
			if err != nil {
				s.logger.Debug("websocket write failed", "session", sess.ID(), "error", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				s.logger.Info("ping failed, closing session", "session", sess.ID(), "error", err)
				return
			}
		}
	}
}
