package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceType is the DNS-SD service type of a relay.
	ServiceType = "_smartrelay._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default HTTP port.
	DefaultPort = 8080

	// DefaultPath is the default WebSocket endpoint path.
	DefaultPath = "/api/v1"
)

// TXT record keys.
const (
	TXTKeyName    = "name" // Device name
	TXTKeyVersion = "ver"  // Firmware version
	TXTKeyAPI     = "api"  // API version (optional)
	TXTKeyPath    = "path" // WebSocket path (optional, default /api/v1)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 5 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTValueLen bounds a single TXT value so key=value fits a
	// 255 byte string.
	MaxTXTValueLen = 200
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotAdvertising      = errors.New("not advertising")
	ErrNotFound            = errors.New("service not found")
)

// ServiceInfo is what a device advertises about itself.
type ServiceInfo struct {
	// Name is the device name (sys.name).
	Name string

	// Version is the firmware version.
	Version string

	// APIVersion is the protocol API version (optional).
	APIVersion string

	// Path is the WebSocket endpoint path. Empty means DefaultPath.
	Path string

	// Port is the HTTP port. Zero means DefaultPort.
	Port uint16
}

// InstanceName returns the DNS-SD instance name for the device.
func (i *ServiceInfo) InstanceName() string {
	name := i.Name
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// Service is a relay found by browsing.
type Service struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Host is the advertised host name.
	Host string

	// Port is the HTTP port.
	Port uint16

	// Addresses are the resolved IPv4 and IPv6 addresses.
	Addresses []string

	// Info is the decoded TXT data.
	Info ServiceInfo
}

// URL returns the WebSocket URL on the first address, or "" when none is
// known.
func (s *Service) URL() string {
	if len(s.Addresses) == 0 {
		return ""
	}
	path := s.Info.Path
	if path == "" {
		path = DefaultPath
	}
	return "ws://" + net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(s.Port))) + path
}
