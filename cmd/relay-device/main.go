// Command relay-device runs a smart relay: the settings tree, the relay
// output and every transport that exposes them.
//
// This command wires together:
//   - the settings service and its tick loop
//   - the HTTP/WebSocket API with the embedded web interface
//   - an optional MQTT bridge
//   - optional mDNS advertising
//   - protocol logging and Prometheus metrics
//
// Usage:
//
//	relay-device [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-name string          Device name (default "smartrelay")
//	-addr string          HTTP/WebSocket listen address (default ":8080")
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Protocol log file, or "stderr"
//	-protocol-log-max int Rotate the protocol log at this size in bytes
//	-mqtt string          MQTT broker URL
//	-mdns                 Advertise via mDNS
//	-interactive          Enable interactive command mode
//
// Examples:
//
//	# Start with defaults and the web interface on :8080
//	relay-device
//
//	# Mirror state to MQTT and advertise on the LAN
//	relay-device -mqtt mqtt://broker:1883 -mqtt-prefix home/relay1 -mdns
//
//	# Start from a config file with debug logging
//	relay-device -config /etc/smartrelay/relay.yaml -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/smartrelay/relay-go/cmd/relay-device/interactive"
	"github.com/smartrelay/relay-go/pkg/discovery"
	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/metrics"
	"github.com/smartrelay/relay-go/pkg/mqtt"
	"github.com/smartrelay/relay-go/pkg/service"
	"github.com/smartrelay/relay-go/pkg/transport"
	"github.com/smartrelay/relay-go/pkg/version"
)

const (
	shutdownTimeout = 5 * time.Second

	// traceSize is the number of protocol events kept for the console.
	traceSize = 256
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay-device: %v\n", err)
		os.Exit(2)
	}

	out := &redirect{w: os.Stderr}
	logger := setupLogging(cfg.LogLevel, out)

	if err := run(cfg, logger, out); err != nil {
		logger.Error("relay-device failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger, out *redirect) error {
	logger.Info("Smart Relay", "name", cfg.Name, "version", version.Firmware, "api", version.Current)

	protocolLogger, closeLog, err := setupProtocolLog(cfg.ProtocolLog, cfg.ProtocolLogMax, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	var recorder *log.Recorder
	if cfg.Interactive {
		recorder = log.NewRecorder(traceSize)
		protocolLogger = log.NewMultiLogger(protocolLogger, recorder)
	}

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New()
	}

	svcConfig := service.DefaultConfig()
	svcConfig.Settings.Name = cfg.Name
	svcConfig.Settings.MinInterval = uint32(cfg.MinInterval)
	svcConfig.Settings.Capacity = cfg.Capacity
	svcConfig.Logger = logger
	svcConfig.ProtocolLogger = protocolLogger
	svcConfig.Metrics = m

	svc, err := service.New(svcConfig)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	relay := NewRelay(svc, cfg.Load)
	if err := registerCommands(svc, relay); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("service stopped", "error", err)
		}
	}()

	trConfig := transport.DefaultConfig()
	trConfig.Address = cfg.Address
	trConfig.UI = cfg.UI
	trConfig.AllowedOrigins = cfg.Origins()
	trConfig.Logger = logger
	trConfig.ProtocolLogger = protocolLogger
	trConfig.Metrics = m

	server, err := transport.NewServer(svc, trConfig)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := server.Stop(stopCtx); err != nil {
			logger.Warn("transport shutdown", "error", err)
		}
	}()

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer client.Close()

		bridgeConfig := mqtt.DefaultBridgeConfig()
		bridgeConfig.Prefix = cfg.MQTT.Prefix
		bridgeConfig.Logger = logger
		bridgeConfig.ProtocolLogger = protocolLogger
		bridge, err := mqtt.NewBridge(client, svc, bridgeConfig)
		if err != nil {
			return fmt.Errorf("mqtt bridge: %w", err)
		}
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("mqtt bridge: %w", err)
		}
		defer bridge.Stop()
	}

	if cfg.MDNS.Enabled {
		stopAdvertising, err := advertise(ctx, svc, server, cfg, logger, &wg)
		if err != nil {
			// The device stays usable without mDNS.
			logger.Warn("mdns advertising failed", "error", err)
		} else {
			defer stopAdvertising()
		}
	}

	if cfg.Simulate {
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Simulate(ctx, time.Second, logger)
		}()
	}

	if cfg.Interactive {
		console, err := interactive.New(svc, &deviceInfo{server: server, recorder: recorder})
		if err != nil {
			return fmt.Errorf("interactive: %w", err)
		}
		// Log through readline so output does not break the prompt.
		out.Set(console.Stdout())
		defer out.Set(os.Stderr)
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()
	wg.Wait()
	return nil
}

// advertise registers the device via mDNS and keeps the instance name in
// sync with sys.name.
func advertise(ctx context.Context, svc *service.Service, server *transport.Server, cfg Config, logger *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	port := discovery.DefaultPort
	if tcp, ok := server.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	info := discovery.ServiceInfo{
		Name:       cfg.Name,
		Version:    version.Firmware,
		APIVersion: version.Current,
		Path:       transport.APIPath,
		Port:       uint16(port),
	}

	advConfig := discovery.DefaultAdvertiserConfig()
	advConfig.Interface = cfg.MDNS.Interface
	advConfig.Logger = logger
	adv := discovery.NewMDNSAdvertiser(advConfig)
	if err := adv.Advertise(ctx, &info); err != nil {
		return nil, err
	}

	r := newRenamer(adv, info)
	remove := svc.AddSink(r)
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.run(ctx, logger)
	}()

	return func() {
		remove()
		adv.Stop()
	}, nil
}

func setupLogging(level string, w io.Writer) *slog.Logger {
	lvl, _ := parseLevel(level)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
	slog.SetDefault(logger)
	return logger
}

// setupProtocolLog selects the protocol logger: a CBOR file, the
// operational log ("stderr"), or nothing.
func setupProtocolLog(target string, maxSize int64, logger *slog.Logger) (log.Logger, func(), error) {
	switch target {
	case "":
		return log.NoopLogger{}, func() {}, nil
	case "stderr":
		return log.NewSlogAdapter(logger), func() {}, nil
	}

	file, err := log.NewRotatingFileLogger(target, maxSize)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol log: %w", err)
	}
	logger.Info("protocol log enabled", "path", target)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		return log.NewMultiLogger(file, log.NewSlogAdapter(logger)), func() { _ = file.Close() }, nil
	}
	return file, func() { _ = file.Close() }, nil
}

// redirect is an io.Writer whose target can be swapped while logging.
type redirect struct {
	mu sync.Mutex
	w  io.Writer
}

func (r *redirect) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Write(p)
}

// Set changes the target.
func (r *redirect) Set(w io.Writer) {
	r.mu.Lock()
	r.w = w
	r.mu.Unlock()
}

// deviceInfo implements interactive.DeviceInfo.
type deviceInfo struct {
	server   *transport.Server
	recorder *log.Recorder
}

// ListenAddr implements interactive.DeviceInfo.
func (d *deviceInfo) ListenAddr() string {
	if addr := d.server.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// ConnectionCount implements interactive.DeviceInfo.
func (d *deviceInfo) ConnectionCount() int {
	return d.server.ConnectionCount()
}

// Trace implements interactive.DeviceInfo.
func (d *deviceInfo) Trace() []log.Event {
	if d.recorder == nil {
		return nil
	}
	events := d.recorder.Events()
	if events == nil {
		events = []log.Event{}
	}
	return events
}
