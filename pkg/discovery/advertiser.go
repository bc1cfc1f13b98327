package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser announces the device on the local network.
type Advertiser interface {
	// Advertise starts advertising the device, replacing any previous
	// registration.
	Advertise(ctx context.Context, info *ServiceInfo) error

	// Update replaces the TXT records of the running registration.
	Update(info *ServiceInfo) error

	// Stop withdraws the registration. It is a no-op when not advertising.
	Stop()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration

	// Logger receives operational messages. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}

// server is the part of *zeroconf.Server the advertiser uses.
type server interface {
	SetText(text []string)
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
}

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config   AdvertiserConfig
	logger   *slog.Logger
	register registerFunc

	mu       sync.Mutex
	server   server
	instance string
}

var _ Advertiser = (*MDNSAdvertiser)(nil)

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MDNSAdvertiser{
		config:   config,
		logger:   logger,
		register: zeroconfRegister,
	}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		a.logger.Warn("mdns interface not found, using all", "interface", a.config.Interface, "error", err)
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise implements Advertiser.
func (a *MDNSAdvertiser) Advertise(_ context.Context, info *ServiceInfo) error {
	instance := info.InstanceName()
	if err := ValidateInstanceName(instance); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	txt := TXTRecordsToStrings(EncodeServiceTXT(info))
	srv, err := a.register(instance, ServiceType, Domain, port, txt, a.getInterfaces(), opts...)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = srv
	a.instance = instance
	a.logger.Info("mdns advertising", "instance", instance, "service", ServiceType, "port", port)
	return nil
}

// Update implements Advertiser.
func (a *MDNSAdvertiser) Update(info *ServiceInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(TXTRecordsToStrings(EncodeServiceTXT(info)))
	a.logger.Debug("mdns txt updated", "instance", a.instance, "name", info.Name)
	return nil
}

// Stop implements Advertiser.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Info("mdns stopped", "instance", a.instance)
	}
}

// Advertising reports whether a registration is active.
func (a *MDNSAdvertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}
