package transport

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/version"
)

// APIPath is the WebSocket endpoint.
const APIPath = "/api/v1"

const contentTypeCBOR = "application/cbor"

//go:embed web
var webFS embed.FS

// Server exposes a Backend over HTTP and WebSocket.
type Server struct {
	config  Config
	backend Backend
	hub     *hub

	upgrader websocket.Upgrader
	router   chi.Router

	logger         *slog.Logger
	protocolLogger log.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	running    atomic.Bool
}

// NewServer creates a server for backend.
func NewServer(backend Backend, config Config) (*Server, error) {
	if backend == nil {
		return nil, ErrNoBackend
	}
	config = config.withDefaults()

	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	s := &Server{
		config:         config,
		backend:        backend,
		hub:            newHub(),
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    version.SupportedSubprotocols(),
			CheckOrigin:     checkOrigin,
		},
	}

	router, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.router = router
	return s, nil
}

func (s *Server) routes() (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.config.Metrics.Middleware(routePattern))
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get(APIPath, s.handleWebSocket)
	r.Get(APIPath+"/state", s.handleState)

	if s.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.config.Metrics.Handler())
	}
	if s.config.UI {
		static, err := fs.Sub(webFS, "web")
		if err != nil {
			return nil, fmt.Errorf("web assets: %w", err)
		}
		r.Handle("/*", http.FileServerFS(static))
	}
	return r, nil
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// Handler returns the HTTP handler, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
// ctx becomes the base context of every request.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("transport listening", "addr", ln.Addr().String(), "ui", s.config.UI)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()
	return nil
}

// Stop disconnects every client and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.hub.closeAll()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	return srv.Shutdown(ctx)
}

// Addr returns the listening address, or nil when not started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of open WebSocket clients.
func (s *Server) ConnectionCount() int {
	return s.hub.count()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newConn(s, ws, r)
	s.hub.add(c)
	s.protocolLogger.Log(log.NewStateEvent(c.id, log.TransportWebSocket, log.StateEntityConnection, "", "CONNECTED", r.RemoteAddr))
	s.logger.Info("client connected", "conn", c.id, "remote", r.RemoteAddr, "subprotocol", ws.Subprotocol())

	defer func() {
		s.hub.remove(c)
		s.protocolLogger.Log(log.NewStateEvent(c.id, log.TransportWebSocket, log.StateEntityConnection, "CONNECTED", "DISCONNECTED", ""))
		s.logger.Info("client disconnected", "conn", c.id)
	}()

	detach, err := s.backend.Attach(c.peer, c)
	if err != nil {
		s.logger.Warn("attach failed", "conn", c.id, "error", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "state unavailable"),
			time.Now().Add(s.config.WriteTimeout))
		_ = ws.Close()
		return
	}
	defer detach()

	go c.writePump()
	c.readPump(r.Context())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	doc, err := s.backend.Snapshot()
	if err != nil {
		s.logger.Warn("snapshot failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if strings.Contains(r.Header.Get("Accept"), contentTypeCBOR) {
		data, err := doc.MarshalCBOR()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", contentTypeCBOR)
		_, _ = w.Write(data)
		return
	}

	data, err := doc.MarshalJSON()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     version.Firmware,
		"api":         version.Current,
		"connections": s.hub.count(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
