package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/interaction"
	"github.com/smartrelay/relay-go/pkg/property"
	"github.com/smartrelay/relay-go/pkg/service"
	"github.com/smartrelay/relay-go/pkg/settings"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// Device command names.
const (
	MethodRelay = "relay"
	MethodTest  = "test"
)

// Top-level keys published outside the settings tree.
const (
	KeyRelay = "relay"
	KeyPower = "power"
)

// ParamState is the relay command parameter.
const ParamState = "state"

// Relay is the switched output. Its state and the simulated power draw are
// reported with Service.Publish.
type Relay struct {
	svc  *service.Service
	load float64

	mu sync.Mutex
	on bool
}

// NewRelay creates a relay that draws load watts while on.
func NewRelay(svc *service.Service, load float64) *Relay {
	return &Relay{svc: svc, load: load}
}

// Set switches the relay and publishes the new state and power.
//
// r.mu is held while publishing so a concurrent Simulate step cannot
// publish a power value for the previous state after this one.
func (r *Relay) Set(on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.on = on

	if err := r.svc.Publish(KeyRelay, on); err != nil {
		return err
	}
	return r.svc.Publish(KeyPower, r.powerLocked(0))
}

// On reports whether the relay is on.
func (r *Relay) On() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.on
}

// powerLocked returns the draw for the current state, scaled by 1+jitter.
func (r *Relay) powerLocked(jitter float64) float64 {
	if !r.on {
		return 0
	}
	return r.load * (1 + jitter)
}

// publishJitter publishes the power scaled by 1+jitter if the relay is on.
func (r *Relay) publishJitter(jitter float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.on {
		return nil
	}
	return r.svc.Publish(KeyPower, r.powerLocked(jitter))
}

// handle implements the relay command. It runs under the service lock, so
// it only touches the relay and Publish.
func (r *Relay) handle(params *document.Object, b *document.Builder) interaction.Result {
	on, err := interaction.BoolParam(params, ParamState)
	if err != nil {
		return interaction.Failure(wire.InvalidParams, err)
	}
	if err := r.Set(on); err != nil {
		return interaction.Failure(wire.InternalError, err)
	}

	out, err := b.NewObject()
	if err != nil {
		return interaction.Failure(wire.InternalError, err)
	}
	if err := out.Set(interaction.ParamValue, on); err != nil {
		return interaction.Failure(wire.InternalError, err)
	}
	return interaction.Success(out)
}

// Simulate varies the reported power by up to ±5% every interval while the
// relay is on.
func (r *Relay) Simulate(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jitter := (rand.Float64() - 0.5) / 10
			if err := r.publishJitter(jitter); err != nil {
				logger.Warn("publish power", "error", err)
			}
		}
	}
}

// registerCommands adds the relay and test commands to svc and publishes
// the initial relay state.
func registerCommands(svc *service.Service, r *Relay) error {
	var test *property.Container
	_ = svc.Do(func(s *settings.Settings) error {
		test = s.Test()
		return nil
	})

	if err := svc.RegisterCommand(MethodRelay, r.handle); err != nil {
		return fmt.Errorf("register %s: %w", MethodRelay, err)
	}
	err := svc.RegisterCommand(MethodTest, func(_ *document.Object, b *document.Builder) interaction.Result {
		doc, err := test.ToDocument(b)
		if err != nil {
			return interaction.Failure(wire.InternalError, err)
		}
		return interaction.Success(doc)
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", MethodTest, err)
	}

	return r.Set(false)
}
