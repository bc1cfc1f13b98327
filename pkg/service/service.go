package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/interaction"
	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/metrics"
	"github.com/smartrelay/relay-go/pkg/property"
	"github.com/smartrelay/relay-go/pkg/settings"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// broadcastID is the connection ID recorded for notifications sent to every sink.
const broadcastID = "broadcast"

// Service shares one settings tree between goroutines.
//
// Lock order: mu, then extrasMu, then sinkMu.
type Service struct {
	mu       sync.Mutex
	config   Config
	settings *settings.Settings
	state    ServiceState
	start    time.Time
	now      func() time.Time

	// Top-level values published outside the tree.
	extrasMu sync.Mutex
	extras   *document.Object

	sinkMu sync.Mutex
	sinks  sinkSet

	logger         *slog.Logger
	protocolLogger log.Logger
	metrics        *metrics.Metrics
}

// New creates a service and initializes its settings tree.
func New(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		config:         config,
		settings:       settings.New(config.Settings),
		state:          StateIdle,
		now:            time.Now,
		extras:         document.New(),
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
		metrics:        config.Metrics,
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	svc.protocolLogger = log.OrNoop(svc.protocolLogger)

	if err := svc.settings.Init(); err != nil {
		return nil, fmt.Errorf("init settings: %w", err)
	}
	if err := svc.settings.OnDirtyProperties(svc.onDirty); err != nil {
		return nil, err
	}
	svc.start = svc.now()
	return svc, nil
}

// State returns the current service state.
func (s *Service) State() ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Do runs fn with exclusive access to the settings tree. Leaf changes made
// by fn are reported on the next tick.
func (s *Service) Do(fn func(*settings.Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.settings)
}

// RegisterCommand adds a device command. The handler runs with the service
// lock held; it may call Publish but no other Service method.
func (s *Service) RegisterCommand(method string, h interaction.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.RegisterCommand(method, h)
}

// Methods returns the registered command names.
func (s *Service) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Methods()
}

// Command dispatches a request from peer. It returns nil for notifications
// (requests without an ID).
func (s *Service) Command(ctx context.Context, peer Peer, req *wire.Request) *wire.Response {
	start := time.Now()
	s.protocolLogger.Log(log.NewMessageEvent(peer.ConnectionID, peer.Transport, log.DirectionIn, log.RequestMessage(req)))

	var res interaction.Result
	if err := ctx.Err(); err != nil {
		res = interaction.Failure(wire.InternalError, err)
	} else {
		s.mu.Lock()
		res = s.settings.OnCommand(req.Method, req.Params, document.NewBuilder(s.config.Settings.Capacity))
		s.mu.Unlock()
	}

	elapsed := time.Since(start)
	s.metrics.ObserveCommand(req.Method, res.Code, elapsed)
	if !res.OK() {
		s.logger.Debug("command failed",
			"conn", peer.ConnectionID,
			"method", req.Method,
			"code", res.Code.String(),
			"error", res.Message())
	}

	if req.IsNotification() {
		return nil
	}
	resp := res.Response(req.ID)
	s.protocolLogger.Log(log.NewMessageEvent(peer.ConnectionID, peer.Transport, log.DirectionOut, log.ResponseMessage(resp, elapsed)))
	return resp
}

// Attach sends the "connect" notification carrying the full state to sink
// and registers it for updates. Both happen under the service lock, so
// connect is always the first notification the sink sees. The returned
// function detaches the sink; it is safe to call more than once.
func (s *Service) Attach(peer Peer, sink Sink) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extrasMu.Lock()
	defer s.extrasMu.Unlock()

	doc, err := s.snapshotLocked()
	if err != nil {
		return nil, err
	}
	connect := &wire.Notification{Method: wire.MethodConnect, Params: doc}

	s.protocolLogger.Log(log.NewStateEvent(peer.ConnectionID, peer.Transport, log.StateEntityConnection, "", "attached", ""))
	s.protocolLogger.Log(log.NewSnapshotEvent(peer.ConnectionID, peer.Transport, wire.MethodConnect, doc))
	s.protocolLogger.Log(log.NewMessageEvent(peer.ConnectionID, peer.Transport, log.DirectionOut, log.NotificationMessage(connect)))
	s.metrics.ObserveNotification(wire.MethodConnect)
	s.metrics.ConnectionOpened(peer.Transport.String())
	s.logger.Debug("peer attached", "conn", peer.ConnectionID, "transport", peer.Transport.String(), "remote", peer.RemoteAddr)

	s.sinkMu.Lock()
	sink.Notify(connect)
	id := s.sinks.add(sink)
	s.sinkMu.Unlock()

	var once sync.Once
	detach := func() {
		once.Do(func() {
			s.sinkMu.Lock()
			removed := s.sinks.remove(id)
			s.sinkMu.Unlock()
			if !removed {
				return
			}
			s.metrics.ConnectionClosed(peer.Transport.String())
			s.protocolLogger.Log(log.NewStateEvent(peer.ConnectionID, peer.Transport, log.StateEntityConnection, "attached", "detached", ""))
			s.logger.Debug("peer detached", "conn", peer.ConnectionID)
		})
	}
	return detach, nil
}

// AddSink registers sink for updates without a connect snapshot and returns
// a function that removes it.
func (s *Service) AddSink(sink Sink) func() {
	s.sinkMu.Lock()
	id := s.sinks.add(sink)
	s.sinkMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sinkMu.Lock()
			s.sinks.remove(id)
			s.sinkMu.Unlock()
		})
	}
}

// SinkCount returns the number of attached sinks.
func (s *Service) SinkCount() int {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	return s.sinks.len()
}

// Snapshot returns the full state: the tree followed by published values.
func (s *Service) Snapshot() (*document.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extrasMu.Lock()
	defer s.extrasMu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() (*document.Object, error) {
	doc, err := s.settings.ToDocument(document.NewBuilder(s.config.Settings.Capacity))
	if err != nil {
		return nil, fmt.Errorf("serialize settings: %w", err)
	}
	if err := document.Merge(doc, s.extras); err != nil {
		return nil, fmt.Errorf("merge published values: %w", err)
	}
	return doc, nil
}

// Publish sets a top-level value held outside the settings tree and sends
// it to every sink as an update. Publishing an unchanged scalar sends
// nothing. Keys of the tree itself are rejected.
func (s *Service) Publish(key string, value any) error {
	if _, ok := s.settings.Root().Child(key); ok {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}

	s.extrasMu.Lock()
	defer s.extrasMu.Unlock()

	old, had := s.extras.Get(key)
	if err := s.extras.Set(key, value); err != nil {
		return err
	}
	current, _ := s.extras.Get(key)
	if had && sameScalar(old, current) {
		return nil
	}

	update := document.New()
	if err := update.Set(key, current); err != nil {
		return err
	}
	s.emit(&wire.Notification{Method: wire.MethodUpdate, Params: update})
	return nil
}

// Published returns a value set with Publish.
func (s *Service) Published(key string) (any, bool) {
	s.extrasMu.Lock()
	defer s.extrasMu.Unlock()
	return s.extras.Get(key)
}

func sameScalar(a, b any) bool {
	switch a.(type) {
	case *document.Object, []any:
		return false
	}
	return a == b
}

// Tick runs one check immediately instead of waiting for the tick loop.
func (s *Service) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked(s.now())
}

func (s *Service) tickLocked(now time.Time) {
	elapsed := now.Sub(s.start)
	uptime := int64(elapsed / time.Second)
	if err := s.settings.Uptime().Set(property.Int(uptime)); err != nil {
		s.logger.Warn("update uptime", "error", err)
	}
	s.metrics.SetUptime(uptime)

	before := s.settings.TickerStats().Reports
	err := s.settings.Tick(uint32(elapsed.Milliseconds()))
	switch {
	case err != nil:
		s.metrics.ObserveTick(metrics.TickFailed)
		s.logger.Warn("dirty report failed", "error", err)
	case s.settings.TickerStats().Reports > before:
		s.metrics.ObserveTick(metrics.TickReported)
	default:
		s.metrics.ObserveTick(metrics.TickIdle)
	}
}

// onDirty runs inside settings.Tick with mu held.
func (s *Service) onDirty(doc *document.Object, _ *document.Builder) {
	s.emit(&wire.Notification{Method: wire.MethodUpdate, Params: doc})
}

func (s *Service) emit(n *wire.Notification) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()

	s.protocolLogger.Log(log.NewMessageEvent(broadcastID, log.TransportLocal, log.DirectionOut, log.NotificationMessage(n)))
	s.metrics.ObserveNotification(n.Method)
	s.sinks.notify(n)
}

// Run drives the tick loop until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	old := s.state
	s.state = StateRunning
	s.mu.Unlock()

	s.protocolLogger.Log(log.NewStateEvent("", log.TransportLocal, log.StateEntityService, old.String(), StateRunning.String(), ""))
	s.logger.Info("service running",
		"name", s.config.Settings.Name,
		"version", s.config.Settings.Version,
		"tick", s.config.TickInterval)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.state = StateStopped
			s.mu.Unlock()
			s.protocolLogger.Log(log.NewStateEvent("", log.TransportLocal, log.StateEntityService, StateRunning.String(), StateStopped.String(), ctx.Err().Error()))
			s.logger.Info("service stopped")
			return nil
		case <-ticker.C:
			s.mu.Lock()
			s.tickLocked(s.now())
			s.mu.Unlock()
		}
	}
}
