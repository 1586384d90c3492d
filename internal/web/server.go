// Package web serves the REST and WebSocket surface over the session
// store, the identity resolver, and the fan-out hub.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/dialogs/internal/channel"
	"github.com/soyeahso/dialogs/internal/config"
	"github.com/soyeahso/dialogs/internal/directory"
	"github.com/soyeahso/dialogs/internal/hub"
	"github.com/soyeahso/dialogs/internal/logging"
	"github.com/soyeahso/dialogs/internal/store"
	"github.com/soyeahso/dialogs/internal/syncer"
	"github.com/soyeahso/dialogs/internal/version"
)

// Server is the dialogs HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	db       *store.DB
	store    *store.RecordingStore
	resolver *directory.Resolver
	hub      *hub.Hub
	version  string

	// Optional collaborators, nil when not configured.
	channels *channel.Registry
	sync     *syncer.Syncer
	notify   StatusNotifier

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithChannels sets the channel registry for health reporting.
func WithChannels(ch *channel.Registry) ServerOption {
	return func(s *Server) {
		s.channels = ch
	}
}

// WithSyncer sets the directory syncer for the admin endpoints.
func WithSyncer(sy *syncer.Syncer) ServerOption {
	return func(s *Server) {
		s.sync = sy
	}
}

// New creates a web server over the given collaborators.
func New(cfg config.Config, db *store.DB, resolver *directory.Resolver, h *hub.Hub, log *logging.Logger, opts ...ServerOption) *Server {
	allowedOrigins := cfg.Server.AllowedOrigins
	s := &Server{
		cfg:      cfg,
		log:      log.Sub("web"),
		db:       db,
		store:    store.NewRecordingStore(db),
		resolver: resolver,
		hub:      h,
		version:  version.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(allowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin
// headers. If no origins are configured, only same-origin (no Origin
// header) or non-browser clients are allowed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the full route tree wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)
}

// Start begins listening for HTTP and WebSocket connections. It blocks
// until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Msg("web server ready")

	// Shutdown when the context is cancelled.
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades HTTP to WebSocket and hands the connection to
// the hub's read loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(1024 * 1024)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new viewer connection")
	s.hub.Serve(hub.NewClient(conn, s.log.Sub("ws")))
}
