package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/service"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// Topic suffixes below the bridge prefix.
const (
	TopicState       = "state"
	TopicUpdate      = "update"
	TopicRPC         = "rpc"
	TopicRPCResponse = "rpc/response"
)

// Bridge defaults.
const (
	DefaultPrefix    = "smartrelay"
	DefaultQueueSize = 64
)

// Bridge errors.
var (
	ErrNoClient       = errors.New("mqtt client is required")
	ErrNoBackend      = errors.New("backend is required")
	ErrInvalidPrefix  = errors.New("invalid topic prefix")
	ErrAlreadyStarted = errors.New("bridge already started")
)

// Backend is the part of the service the bridge needs.
type Backend interface {
	Attach(peer service.Peer, sink service.Sink) (func(), error)
	Command(ctx context.Context, peer service.Peer, req *wire.Request) *wire.Response
	Snapshot() (*document.Object, error)
}

var _ Backend = (*service.Service)(nil)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Prefix is the topic prefix, without a trailing slash.
	Prefix string

	// QueueSize is the number of notifications buffered for publishing.
	// When the queue overflows, pending notifications are discarded and
	// the state topic is republished from a fresh snapshot.
	QueueSize int

	// Logger receives operational messages. If nil, slog.Default() is used.
	Logger *slog.Logger

	// ProtocolLogger records bridge state changes (optional).
	ProtocolLogger log.Logger
}

// DefaultBridgeConfig returns a BridgeConfig with defaults.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Prefix:    DefaultPrefix,
		QueueSize: DefaultQueueSize,
	}
}

func (c BridgeConfig) validate() error {
	if c.Prefix == "" || strings.HasSuffix(c.Prefix, "/") || strings.ContainsAny(c.Prefix, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, c.Prefix)
	}
	return nil
}

// Bridge mirrors service notifications to MQTT and answers requests
// received on the rpc topic.
type Bridge struct {
	client  ClientAPI
	backend Backend
	config  BridgeConfig
	peer    service.Peer

	logger         *slog.Logger
	protocolLogger log.Logger

	queue   chan *wire.Notification
	dropped atomic.Uint64

	// state is the merged copy published on <prefix>/state. Only the run
	// goroutine touches it.
	state *document.Object
	// resync is set after a drop; kick wakes the run loop to handle it.
	resync atomic.Bool
	kick   chan struct{}

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	detach  func()
	wg      sync.WaitGroup
}

// NewBridge creates a bridge between client and backend.
func NewBridge(client ClientAPI, backend Backend, config BridgeConfig) (*Bridge, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if backend == nil {
		return nil, ErrNoBackend
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	b := &Bridge{
		client:  client,
		backend: backend,
		config:  config,
		peer: service.Peer{
			ConnectionID: uuid.New().String(),
			Transport:    log.TransportMQTT,
			RemoteAddr:   config.Prefix,
		},
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
		queue:          make(chan *wire.Notification, config.QueueSize),
		kick:           make(chan struct{}, 1),
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.protocolLogger = log.OrNoop(b.protocolLogger)
	return b, nil
}

// Topic returns the full topic for a suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.config.Prefix + "/" + suffix
}

// Dropped returns the number of notifications dropped on a full queue.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Start subscribes to the rpc topic, attaches to the backend and starts
// publishing. The first publish is the retained full state.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	if err := b.client.Subscribe(b.Topic(TopicRPC), b.onRequest); err != nil {
		b.cancel()
		return fmt.Errorf("subscribe %s: %w", b.Topic(TopicRPC), err)
	}

	detach, err := b.backend.Attach(b.peer, b)
	if err != nil {
		_ = b.client.Unsubscribe(b.Topic(TopicRPC))
		b.cancel()
		return fmt.Errorf("attach: %w", err)
	}
	b.detach = detach
	b.started = true

	b.wg.Add(1)
	go b.run(b.ctx)

	b.protocolLogger.Log(log.NewStateEvent(b.peer.ConnectionID, log.TransportMQTT, log.StateEntityBridge, "STOPPED", "RUNNING", b.config.Prefix))
	b.logger.Info("mqtt bridge started", "prefix", b.config.Prefix)
	return nil
}

// Stop detaches from the backend and waits for pending publishes.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	detach, cancel := b.detach, b.cancel
	b.mu.Unlock()

	if err := b.client.Unsubscribe(b.Topic(TopicRPC)); err != nil {
		b.logger.Warn("mqtt unsubscribe failed", "error", err)
	}
	detach()
	cancel()
	b.wg.Wait()

	b.protocolLogger.Log(log.NewStateEvent(b.peer.ConnectionID, log.TransportMQTT, log.StateEntityBridge, "RUNNING", "STOPPED", ""))
	b.logger.Info("mqtt bridge stopped", "prefix", b.config.Prefix)
}

// Notify implements service.Sink. The document is copied because the
// caller reuses its builder after returning.
func (b *Bridge) Notify(n *wire.Notification) {
	params, err := document.Clone(document.NewBuilder(0), n.Params)
	if err != nil {
		b.logger.Warn("copy notification", "method", n.Method, "error", err)
		return
	}

	select {
	case b.queue <- &wire.Notification{Method: n.Method, Params: params}:
	default:
		b.dropped.Add(1)
		b.resync.Store(true)
		select {
		case b.kick <- struct{}{}:
		default:
		}
		b.logger.Warn("mqtt queue full, dropping notification", "method", n.Method)
	}
}

func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.kick:
		case n := <-b.queue:
			b.publish(n)
		}
		if b.resync.CompareAndSwap(true, false) {
			b.resyncState()
		}
	}
}

// resyncState discards queued notifications and republishes the state from
// a fresh snapshot. Notifications queued after the snapshot are merged on
// top as usual.
func (b *Bridge) resyncState() {
drain:
	for {
		select {
		case <-b.queue:
		default:
			break drain
		}
	}

	doc, err := b.backend.Snapshot()
	if err != nil {
		b.logger.Warn("mqtt resync failed", "error", err)
		return
	}
	b.state = doc
	b.logger.Debug("mqtt state resynced", "dropped", b.dropped.Load())
	if err := b.publishDocument(TopicState, b.state, true); err != nil {
		b.logger.Warn("mqtt publish state failed", "error", err)
	}
}

func (b *Bridge) publish(n *wire.Notification) {
	switch n.Method {
	case wire.MethodConnect:
		b.state = n.Params
	case wire.MethodUpdate:
		if err := b.publishDocument(TopicUpdate, n.Params, false); err != nil {
			b.logger.Warn("mqtt publish update failed", "error", err)
		}
		if b.state == nil {
			b.state = document.New()
		}
		if err := document.Merge(b.state, n.Params); err != nil {
			b.logger.Warn("merge update", "error", err)
			return
		}
	default:
		return
	}

	if err := b.publishDocument(TopicState, b.state, true); err != nil {
		b.logger.Warn("mqtt publish state failed", "error", err)
	}
}

func (b *Bridge) publishDocument(suffix string, doc *document.Object, retain bool) error {
	if doc == nil {
		doc = document.New()
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return err
	}
	return b.client.PublishWith(b.Topic(suffix), data, retain)
}

// onRequest runs on the client's delivery goroutine.
func (b *Bridge) onRequest(_ paho.Client, msg Message) {
	codec := wire.JSONCodec{}
	req, err := codec.DecodeRequest(msg.Payload())
	var resp *wire.Response
	if err != nil {
		var werr *wire.Error
		if !errors.As(err, &werr) {
			werr = wire.NewError(wire.ParseError, "%v", err)
		}
		b.protocolLogger.Log(log.NewErrorEvent(b.peer.ConnectionID, log.TransportMQTT, log.LayerWire, werr, "decode request"))
		var id any
		if req != nil {
			id = req.ID
		}
		resp = wire.NewErrorResponse(id, werr)
	} else {
		resp = b.backend.Command(b.context(), b.peer, req)
	}
	if resp == nil {
		return
	}

	data, err := codec.EncodeResponse(resp)
	if err != nil {
		b.logger.Warn("encode mqtt response", "error", err)
		return
	}
	if err := b.client.Publish(b.Topic(TopicRPCResponse), data); err != nil {
		b.logger.Warn("mqtt publish response failed", "error", err)
	}
}

func (b *Bridge) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}
