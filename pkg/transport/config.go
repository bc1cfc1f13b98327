package transport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/metrics"
)

// Transport defaults.
const (
	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultReadLimit is the largest accepted request frame (16 KB).
	DefaultReadLimit = 16 * 1024

	// DefaultSendQueueSize is the number of frames queued per client before
	// the client is considered slow and dropped.
	DefaultSendQueueSize = 16

	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 5 * time.Second
)

// Transport errors.
var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrNoBackend      = errors.New("backend is required")
)

// Config configures a Server.
type Config struct {
	// Address to listen on (e.g., ":8080" or "127.0.0.1:8080").
	Address string

	// ReadLimit is the maximum request frame size in bytes.
	ReadLimit int64

	// SendQueueSize is the per-client outgoing frame queue length.
	SendQueueSize int

	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration

	// KeepAlive configures ping/pong liveness checks.
	KeepAlive KeepAliveConfig

	// AllowedOrigins enables CORS for the HTTP endpoints when non-empty.
	AllowedOrigins []string

	// CheckOrigin validates the Origin header of WebSocket upgrades.
	// If nil, every origin is accepted.
	CheckOrigin func(r *http.Request) bool

	// UI serves the embedded web interface at "/".
	UI bool

	// Logger receives operational messages. If nil, slog.Default() is used.
	Logger *slog.Logger

	// ProtocolLogger captures frames and connection state (optional).
	ProtocolLogger log.Logger

	// Metrics adds HTTP counters and the /metrics endpoint (optional).
	Metrics *metrics.Metrics
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:       DefaultAddress,
		ReadLimit:     DefaultReadLimit,
		SendQueueSize: DefaultSendQueueSize,
		WriteTimeout:  DefaultWriteTimeout,
		KeepAlive:     DefaultKeepAliveConfig(),
		UI:            true,
	}
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = DefaultReadLimit
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	c.KeepAlive = c.KeepAlive.withDefaults()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.ProtocolLogger = log.OrNoop(c.ProtocolLogger)
	return c
}
