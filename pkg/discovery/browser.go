package discovery

import (
	"context"
	"net"
	"slices"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds relays on the local network.
type Browser interface {
	// Browse streams relays as they are found. The channel is closed when
	// ctx is done. Addresses seen on several interfaces are merged into one
	// entry, which is sent once.
	Browse(ctx context.Context) (<-chan *Service, error)

	// Find returns the first relay whose name matches, or the first relay
	// at all when name is empty.
	Find(ctx context.Context, name string) (*Service, error)
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Find when ctx has no deadline.
	// Default: 5 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

var _ Browser = (*MDNSBrowser)(nil)

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}
}

// Browse implements Browser.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Service, error) {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	out := aggregate(ctx, entries, removed)

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}()
	return out, nil
}

// Find implements Browser.
func (b *MDNSBrowser) Find(ctx context.Context, name string) (*Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.BrowseTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for svc := range found {
		if name == "" || svc.Info.Name == name || svc.InstanceName == name {
			return svc, nil
		}
	}
	return nil, ErrNotFound
}

// aggregate merges entries by instance name and emits each new service
// once. Removals drop addresses; a service without addresses is forgotten.
// Consumers get a copy, so later merges never touch a delivered Service.
func aggregate(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry) <-chan *Service {
	out := make(chan *Service)

	go func() {
		defer close(out)

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToService(entry)
				if svc == nil {
					continue
				}

				if existing, found := services[svc.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.InstanceName] = svc
				select {
				case out <- svc.clone():
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToService converts a zeroconf entry. Entries with unusable TXT
// records yield nil.
func entryToService(entry *zeroconf.ServiceEntry) *Service {
	info, err := DecodeServiceTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	info.Port = uint16(entry.Port)

	return &Service{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    entryAddresses(entry),
		Info:         *info,
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the addresses of entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, addr := range entryAddresses(entry) {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

func (s *Service) clone() *Service {
	c := *s
	c.Addresses = slices.Clone(s.Addresses)
	return &c
}
