package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/metrics"
	"github.com/smartrelay/relay-go/pkg/settings"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrReservedKey    = errors.New("key is reserved by the settings tree")
)

// DefaultTickInterval is how often Run checks the tree for changes.
const DefaultTickInterval = 100 * time.Millisecond

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not running.
	StateIdle ServiceState = iota

	// StateRunning - the tick loop is running.
	StateRunning

	// StateStopped - the tick loop has returned.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a Service.
type Config struct {
	// Settings configures the tree.
	Settings settings.Config

	// TickInterval is the period of the tick loop (default 100ms).
	// The tracker's MinInterval still bounds how often updates go out.
	TickInterval time.Duration

	// Logger receives operational messages. If nil, slog.Default() is used.
	Logger *slog.Logger

	// ProtocolLogger captures requests, responses and notifications.
	// If nil, nothing is captured.
	ProtocolLogger log.Logger

	// Metrics records command and tick counters. May be nil.
	Metrics *metrics.Metrics
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Settings:     settings.DefaultConfig(),
		TickInterval: DefaultTickInterval,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	}
	if c.Settings.Name == "" {
		return fmt.Errorf("%w: device name is empty", ErrInvalidConfig)
	}
	if c.Settings.Capacity < 0 {
		return fmt.Errorf("%w: negative document capacity", ErrInvalidConfig)
	}
	return nil
}

// Peer identifies the connection a request arrived on.
type Peer struct {
	// ConnectionID is unique per connection (a UUID for WebSocket clients).
	ConnectionID string

	// Transport is the channel the peer uses.
	Transport log.Transport

	// RemoteAddr is the remote address, if known.
	RemoteAddr string
}

// LocalPeer is used for commands issued on the device itself.
var LocalPeer = Peer{ConnectionID: "local", Transport: log.TransportLocal}
