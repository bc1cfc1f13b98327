package transport

import "time"

// Ping/pong defaults. With these a silent peer is dropped after at most
// 30s*3 + 5s.
const (
	DefaultPingInterval   = 30 * time.Second
	DefaultPongTimeout    = 5 * time.Second
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig controls how the server notices dead WebSocket peers.
// The server pings every PingInterval; a peer that sends neither a pong
// nor a frame within DetectionDelay is disconnected.
type KeepAliveConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the defaults above.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{}.withDefaults()
}

func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return c
}

// DetectionDelay is the read deadline applied after every pong or frame.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return time.Duration(c.MaxMissedPongs)*c.PingInterval + c.PongTimeout
}
