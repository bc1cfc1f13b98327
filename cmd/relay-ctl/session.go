package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartrelay/relay-go/pkg/interaction"
	"github.com/smartrelay/relay-go/pkg/version"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// notificationBuffer is how many notifications may wait for the reader
// before new ones are dropped.
const notificationBuffer = 64

// session is one WebSocket connection to a relay with an RPC client on top.
type session struct {
	ws     *websocket.Conn
	client *interaction.Client
	codec  wire.Codec
	logger *slog.Logger

	writeMu sync.Mutex

	notes chan *wire.Notification
	done  chan struct{}
}

// dial connects to url and waits for the connect notification, which it
// returns.
func dial(ctx context.Context, url string, binary bool, logger *slog.Logger) (*session, *wire.Notification, error) {
	dialer := websocket.Dialer{
		Subprotocols:     version.SupportedSubprotocols(),
		HandshakeTimeout: 5 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", url, err)
	}
	logger.Debug("connected", "url", url, "subprotocol", ws.Subprotocol())

	s := &session{
		ws:     ws,
		codec:  wire.CodecFor(binary),
		logger: logger,
		notes:  make(chan *wire.Notification, notificationBuffer),
		done:   make(chan struct{}),
	}
	s.client = interaction.NewClient(interaction.SenderFunc(s.send), s.codec)
	s.client.SetNotificationHandler(s.queue)
	go s.readLoop()

	select {
	case n := <-s.notes:
		if n.Method != wire.MethodConnect {
			s.Close()
			return nil, nil, fmt.Errorf("expected %s notification, got %s", wire.MethodConnect, n.Method)
		}
		return s, n, nil
	case <-s.done:
		s.Close()
		return nil, nil, errors.New("connection closed before connect notification")
	case <-ctx.Done():
		s.Close()
		return nil, nil, ctx.Err()
	}
}

func (s *session) send(data []byte) error {
	kind := websocket.TextMessage
	if s.codec.Binary() {
		kind = websocket.BinaryMessage
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteMessage(kind, data)
}

func (s *session) queue(n *wire.Notification) {
	select {
	case s.notes <- n:
	default:
		s.logger.Warn("notification dropped", "method", n.Method)
	}
}

func (s *session) readLoop() {
	defer close(s.done)
	for {
		kind, data, err := s.ws.ReadMessage()
		if err != nil {
			s.logger.Debug("read stopped", "error", err)
			return
		}
		codec := wire.CodecFor(kind == websocket.BinaryMessage)
		if err := s.client.HandleFrameWith(codec, data); err != nil {
			s.logger.Warn("unhandled frame", "codec", codec.Name(), "error", err)
		}
	}
}

// Notifications yields notifications received after connect.
func (s *session) Notifications() <-chan *wire.Notification { return s.notes }

// Done is closed when the connection drops.
func (s *session) Done() <-chan struct{} { return s.done }

// Close sends a normal close frame and releases the connection.
func (s *session) Close() {
	_ = s.client.Close()
	s.writeMu.Lock()
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	_ = s.ws.Close()
}
