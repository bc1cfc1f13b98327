package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smartrelay/relay-go/pkg/log"
	"github.com/smartrelay/relay-go/pkg/service"
	"github.com/smartrelay/relay-go/pkg/wire"
)

type frame struct {
	kind int
	data []byte
}

// conn is one WebSocket client. It is attached to the backend as a sink.
type conn struct {
	id     string
	ws     *websocket.Conn
	peer   service.Peer
	server *Server

	send      chan frame
	done      chan struct{}
	closeOnce sync.Once

	// binary is true while the client talks CBOR.
	binary atomic.Bool
}

var _ service.Sink = (*conn)(nil)

func newConn(s *Server, ws *websocket.Conn, r *http.Request) *conn {
	id := uuid.New().String()
	return &conn{
		id:     id,
		ws:     ws,
		server: s,
		peer: service.Peer{
			ConnectionID: id,
			Transport:    log.TransportWebSocket,
			RemoteAddr:   r.RemoteAddr,
		},
		send: make(chan frame, s.config.SendQueueSize),
		done: make(chan struct{}),
	}
}

// Notify implements service.Sink. It never blocks.
func (c *conn) Notify(n *wire.Notification) {
	codec := wire.CodecFor(c.binary.Load())
	data, err := codec.EncodeNotification(n)
	if err != nil {
		c.server.logger.Warn("encode notification", "conn", c.id, "method", n.Method, "error", err)
		return
	}
	c.enqueue(codec, data)
}

func (c *conn) enqueue(codec wire.Codec, data []byte) bool {
	kind := websocket.TextMessage
	if codec.Binary() {
		kind = websocket.BinaryMessage
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame{kind: kind, data: data}:
		return true
	default:
		c.server.logger.Warn("dropping slow client", "conn", c.id, "remote", c.peer.RemoteAddr)
		c.server.protocolLogger.Log(log.NewStateEvent(c.id, log.TransportWebSocket,
			log.StateEntityConnection, "CONNECTED", "DROPPED", "send queue full"))
		c.close()
		return false
	}
}

// close stops both pumps. Safe to call more than once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.SetReadDeadline(time.Now())
	})
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *conn) readPump(ctx context.Context) {
	defer c.close()

	delay := c.server.config.KeepAlive.DetectionDelay()
	c.ws.SetReadLimit(c.server.config.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(delay))
	c.ws.SetPongHandler(func(string) error {
		c.logControl(log.DirectionIn, log.ControlMsgPong, nil)
		return c.ws.SetReadDeadline(time.Now().Add(delay))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				code := ce.Code
				c.logControl(log.DirectionIn, log.ControlMsgClose, &code)
			case !c.closed():
				c.server.logger.Debug("read failed", "conn", c.id, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(delay))
		c.server.protocolLogger.Log(log.NewFrameEvent(c.id, log.TransportWebSocket, log.DirectionIn, data))

		c.handleFrame(ctx, kind == websocket.BinaryMessage, data)
	}
}

// handleFrame decodes one request and queues its response in the same
// encoding.
func (c *conn) handleFrame(ctx context.Context, binary bool, data []byte) {
	c.binary.Store(binary)
	codec := wire.CodecFor(binary)

	req, err := codec.DecodeRequest(data)
	if err != nil {
		var werr *wire.Error
		if !errors.As(err, &werr) {
			werr = wire.NewError(wire.ParseError, "%v", err)
		}
		c.server.protocolLogger.Log(log.NewErrorEvent(c.id, log.TransportWebSocket, log.LayerWire, werr, "decode request"))

		var id any
		if req != nil {
			id = req.ID
		}
		c.sendResponse(codec, wire.NewErrorResponse(id, werr))
		return
	}

	if resp := c.server.backend.Command(ctx, c.peer, req); resp != nil {
		c.sendResponse(codec, resp)
	}
}

func (c *conn) sendResponse(codec wire.Codec, resp *wire.Response) {
	data, err := codec.EncodeResponse(resp)
	if err != nil {
		c.server.logger.Warn("encode response", "conn", c.id, "error", err)
		data, err = codec.EncodeResponse(wire.NewErrorResponse(resp.ID, wire.NewError(wire.InternalError, "")))
		if err != nil {
			return
		}
	}
	c.enqueue(codec, data)
}

func (c *conn) writePump() {
	ka := c.server.config.KeepAlive
	ticker := time.NewTicker(ka.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.write(f); err != nil {
				c.server.logger.Debug("write failed", "conn", c.id, "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
			c.logControl(log.DirectionOut, log.ControlMsgPing, nil)

		case <-c.done:
			code := websocket.CloseNormalClosure
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, ""),
				time.Now().Add(c.server.config.WriteTimeout))
			c.logControl(log.DirectionOut, log.ControlMsgClose, &code)
			return
		}
	}
}

func (c *conn) write(f frame) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(f.kind, f.data); err != nil {
		return err
	}
	c.server.protocolLogger.Log(log.NewFrameEvent(c.id, log.TransportWebSocket, log.DirectionOut, f.data))
	return nil
}

func (c *conn) logControl(dir log.Direction, typ log.ControlMsgType, closeCode *int) {
	c.server.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		Transport:    log.TransportWebSocket,
		ControlMsg:   &log.ControlMsgEvent{Type: typ, CloseCode: closeCode},
	})
}
