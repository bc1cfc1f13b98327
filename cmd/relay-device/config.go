package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smartrelay/relay-go/pkg/mqtt"
	"github.com/smartrelay/relay-go/pkg/tracker"
	"github.com/smartrelay/relay-go/pkg/transport"
)

// Config holds the device configuration. Every field can be set in the
// YAML file given with -config; flags set on the command line win.
type Config struct {
	ConfigFile string `yaml:"-"`

	Name           string  `yaml:"name"`
	Address        string  `yaml:"address"`
	LogLevel       string  `yaml:"log_level"`
	ProtocolLog    string  `yaml:"protocol_log"`
	ProtocolLogMax int64   `yaml:"protocol_log_max_bytes"`
	MinInterval    uint    `yaml:"min_interval_ms"`
	Capacity       int     `yaml:"capacity"`
	Load           float64 `yaml:"load_watts"`
	Simulate       bool    `yaml:"simulate"`

	UI             bool   `yaml:"ui"`
	Metrics        bool   `yaml:"metrics"`
	AllowedOrigins string `yaml:"allowed_origins"`

	MQTT MQTTConfig `yaml:"mqtt"`
	MDNS MDNSConfig `yaml:"mdns"`

	Interactive bool `yaml:"-"`
}

// MQTTConfig configures the optional MQTT bridge.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Prefix   string `yaml:"prefix"`
	ClientID string `yaml:"client_id"`
}

// MDNSConfig configures service advertisement.
type MDNSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interface string `yaml:"interface"`
}

func defaultConfig() Config {
	return Config{
		Name:        "smartrelay",
		Address:     transport.DefaultAddress,
		LogLevel:    "info",
		MinInterval: uint(tracker.DefaultMinInterval),
		Load:        60,
		UI:          true,
		Metrics:     true,
		MQTT: MQTTConfig{
			Prefix: mqtt.DefaultPrefix,
		},
	}
}

func newFlagSet(cfg *Config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("relay-device", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Configuration file path (YAML)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Device name (sys.name)")
	fs.StringVar(&cfg.Address, "addr", cfg.Address, "HTTP/WebSocket listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.ProtocolLog, "protocol-log", cfg.ProtocolLog, "Protocol log: file path, \"stderr\", or empty to disable")
	fs.Int64Var(&cfg.ProtocolLogMax, "protocol-log-max", cfg.ProtocolLogMax, "Rotate the protocol log file at this size in bytes (0 = never)")
	fs.UintVar(&cfg.MinInterval, "min-interval", cfg.MinInterval, "Minimum time between updates in milliseconds")
	fs.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "Update document capacity in slots (0 = unbounded)")
	fs.Float64Var(&cfg.Load, "load", cfg.Load, "Power drawn while the relay is on, in watts")
	fs.BoolVar(&cfg.Simulate, "simulate", cfg.Simulate, "Vary the reported power while the relay is on")
	fs.BoolVar(&cfg.UI, "ui", cfg.UI, "Serve the web interface")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "Expose Prometheus metrics at /metrics")
	fs.StringVar(&cfg.AllowedOrigins, "cors", cfg.AllowedOrigins, "Comma-separated origins allowed for cross-origin HTTP requests")
	fs.StringVar(&cfg.MQTT.Broker, "mqtt", cfg.MQTT.Broker, "MQTT broker URL (e.g. mqtt://localhost:1883); empty disables the bridge")
	fs.StringVar(&cfg.MQTT.Prefix, "mqtt-prefix", cfg.MQTT.Prefix, "MQTT topic prefix")
	fs.StringVar(&cfg.MQTT.ClientID, "mqtt-client-id", cfg.MQTT.ClientID, "MQTT client ID (generated if empty)")
	fs.BoolVar(&cfg.MDNS.Enabled, "mdns", cfg.MDNS.Enabled, "Advertise the device via mDNS")
	fs.StringVar(&cfg.MDNS.Interface, "interface", cfg.MDNS.Interface, "Network interface for mDNS (all if empty)")
	fs.BoolVar(&cfg.Interactive, "interactive", cfg.Interactive, "Enable interactive command mode")
	return fs
}

// loadConfig parses args and, when -config is given, the YAML file. Flags
// given explicitly override values from the file.
func loadConfig(args []string, output io.Writer) (Config, error) {
	cfg := defaultConfig()
	fs := newFlagSet(&cfg, output)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	if cfg.ConfigFile != "" {
		fileCfg, err := readConfigFile(cfg.ConfigFile)
		if err != nil {
			return Config{}, err
		}
		override := newFlagSet(&fileCfg, io.Discard)
		var setErr error
		fs.Visit(func(f *flag.Flag) {
			if err := override.Set(f.Name, f.Value.String()); err != nil && setErr == nil {
				setErr = err
			}
		})
		if setErr != nil {
			return Config{}, setErr
		}
		fileCfg.ConfigFile = cfg.ConfigFile
		cfg = fileCfg
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Name == "" {
		return errors.New("device name must not be empty")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MinInterval > uint(^uint32(0)) {
		return fmt.Errorf("min interval %d ms out of range", c.MinInterval)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", c.Capacity)
	}
	if c.Load < 0 {
		return fmt.Errorf("load must not be negative, got %g", c.Load)
	}
	if c.ProtocolLogMax < 0 {
		return fmt.Errorf("protocol log size limit must not be negative, got %d", c.ProtocolLogMax)
	}
	return nil
}

// Origins returns the CORS origins as a list.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
