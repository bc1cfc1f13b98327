package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smartrelay/relay-go/pkg/discovery"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// renamer keeps the mDNS TXT record in sync with sys.name. Notify runs
// under the service lock, so it only records the latest name and wakes the
// update goroutine.
type renamer struct {
	adv  discovery.Advertiser
	info discovery.ServiceInfo

	mu      sync.Mutex
	pending string
	wake    chan struct{}
}

func newRenamer(adv discovery.Advertiser, info discovery.ServiceInfo) *renamer {
	return &renamer{adv: adv, info: info, wake: make(chan struct{}, 1)}
}

// Notify implements service.Sink.
func (r *renamer) Notify(n *wire.Notification) {
	sys, ok := n.Params.GetObject("sys")
	if !ok {
		return
	}
	name, ok := sys.GetString("name")
	if !ok || name == "" {
		return
	}

	r.mu.Lock()
	r.pending = name
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *renamer) run(ctx context.Context, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}

		r.mu.Lock()
		name := r.pending
		r.mu.Unlock()
		if name == r.info.Name {
			continue
		}

		r.info.Name = name
		info := r.info
		if err := r.adv.Update(&info); err != nil {
			logger.Warn("update mdns advertisement", "name", name, "error", err)
			continue
		}
		logger.Info("mdns advertisement updated", "name", name)
	}
}
