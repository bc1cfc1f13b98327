package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/smartrelay/relay-go/pkg/discovery"
)

// target is where a command connects: a fixed address, or a relay found by
// mDNS under a name (any relay when both are empty).
type target struct {
	addr    string
	name    string
	iface   string
	cbor    bool
	timeout time.Duration
}

func (t *target) register(fs *flag.FlagSet) {
	fs.StringVar(&t.addr, "addr", "", "Relay address: host:port or ws:// URL (skips mDNS)")
	fs.StringVar(&t.name, "name", "", "Relay name to look up via mDNS")
	fs.StringVar(&t.iface, "iface", "", "Network interface for mDNS (default: all)")
	fs.BoolVar(&t.cbor, "cbor", false, "Talk CBOR instead of JSON")
	fs.DurationVar(&t.timeout, "timeout", 5*time.Second, "Discovery and request timeout")
}

// newBrowser builds the mDNS browser for discover and name lookups.
var newBrowser = func(iface string, timeout time.Duration) discovery.Browser {
	return discovery.NewMDNSBrowser(discovery.BrowserConfig{BrowseTimeout: timeout, Interface: iface})
}

// url returns the WebSocket URL of the target relay.
func (t *target) url(ctx context.Context) (string, error) {
	if t.addr != "" {
		if t.name != "" {
			return "", errors.New("-addr and -name are mutually exclusive")
		}
		return normalizeURL(t.addr), nil
	}

	svc, err := newBrowser(t.iface, t.timeout).Find(ctx, t.name)
	if err != nil {
		if t.name == "" {
			return "", fmt.Errorf("no relay found: %w", err)
		}
		return "", fmt.Errorf("relay %q: %w", t.name, err)
	}
	u := svc.URL()
	if u == "" {
		return "", fmt.Errorf("relay %q advertised no address", svc.InstanceName)
	}
	return u, nil
}

// normalizeURL accepts ws://, wss://, http://, https:// or a bare
// host:port, which gets the default API path.
func normalizeURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return addr
	case strings.HasPrefix(addr, "http://"):
		return "ws://" + strings.TrimPrefix(addr, "http://")
	case strings.HasPrefix(addr, "https://"):
		return "wss://" + strings.TrimPrefix(addr, "https://")
	}
	return "ws://" + addr + discovery.DefaultPath
}
