package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("client is closed")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// DefaultTimeout is the default time to wait for a response.
const DefaultTimeout = 10 * time.Second

// Sender writes an encoded frame to the device.
type Sender interface {
	Send(data []byte) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(data []byte) error

// Send implements Sender.
func (f SenderFunc) Send(data []byte) error { return f(data) }

// Client sends commands to a device and matches the replies.
type Client struct {
	mu sync.RWMutex

	sender  Sender
	codec   wire.Codec
	timeout time.Duration

	nextID int64

	// pendingMu guards pending and closed.
	pending   map[int64]chan *wire.Response
	pendingMu sync.Mutex
	closed    bool

	notifyHandler func(*wire.Notification)
}

// NewClient creates a client that writes frames through sender.
func NewClient(sender Sender, codec wire.Codec) *Client {
	return &Client{
		sender:  sender,
		codec:   codec,
		timeout: DefaultTimeout,
		pending: make(map[int64]chan *wire.Response),
	}
}

// SetTimeout sets the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetNotificationHandler sets the handler for incoming notifications.
func (c *Client) SetNotificationHandler(handler func(*wire.Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyHandler = handler
}

// Close fails every pending call.
func (c *Client) Close() error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	return nil
}

// Call sends method with params and waits for the result.
func (c *Client) Call(ctx context.Context, method string, params *document.Object) (*document.Object, error) {
	c.mu.RLock()
	timeout := c.timeout
	c.mu.RUnlock()

	id := atomic.AddInt64(&c.nextID, 1)
	respCh := make(chan *wire.Response, 1)

	c.pendingMu.Lock()
	if c.closed {
		c.pendingMu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	data, err := c.codec.EncodeRequest(&wire.Request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	if err := c.sender.Send(data); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrRequestTimeout
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrClientClosed
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// Read returns the value at path: a scalar for a leaf or a
// *document.Object for a container.
func (c *Client) Read(ctx context.Context, path string) (any, error) {
	params := document.New()
	if err := params.Set(ParamPath, path); err != nil {
		return nil, err
	}
	result, err := c.Call(ctx, MethodRead, params)
	if err != nil {
		return nil, err
	}
	return resultValue(result)
}

// Write stores value at path and returns the value the device kept.
func (c *Client) Write(ctx context.Context, path string, value any) (any, error) {
	params := document.New()
	if err := params.Set(ParamPath, path); err != nil {
		return nil, err
	}
	if err := params.Set(ParamValue, value); err != nil {
		return nil, err
	}
	result, err := c.Call(ctx, MethodWrite, params)
	if err != nil {
		return nil, err
	}
	return resultValue(result)
}

// HandleFrame routes an incoming frame to the waiting call or to the
// notification handler.
func (c *Client) HandleFrame(data []byte) error {
	return c.HandleFrameWith(c.codec, data)
}

// HandleFrameWith is HandleFrame for a frame in a different encoding. A
// device answers in the encoding of the last request, so its connect
// notification is JSON even for a CBOR client.
func (c *Client) HandleFrameWith(codec wire.Codec, data []byte) error {
	if n, err := codec.DecodeNotification(data); err == nil {
		c.HandleNotification(n)
		return nil
	}
	resp, err := codec.DecodeResponse(data)
	if err != nil {
		return err
	}
	return c.HandleResponse(resp)
}

// HandleResponse delivers a response to its pending call.
func (c *Client) HandleResponse(resp *wire.Response) error {
	id, ok := responseID(resp.ID)
	if !ok {
		return fmt.Errorf("%w: id %v", ErrUnexpectedReply, resp.ID)
	}

	// The send happens under pendingMu so Close cannot close ch first.
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch, exists := c.pending[id]
	if !exists {
		return fmt.Errorf("%w: id %d", ErrUnexpectedReply, id)
	}
	select {
	case ch <- resp:
	default:
	}
	return nil
}

// HandleNotification passes a notification to the registered handler.
func (c *Client) HandleNotification(n *wire.Notification) {
	c.mu.RLock()
	handler := c.notifyHandler
	c.mu.RUnlock()

	if handler != nil {
		handler(n)
	}
}

func resultValue(result *document.Object) (any, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: empty result", ErrUnexpectedReply)
	}
	v, ok := result.Get(ParamValue)
	if !ok {
		return nil, fmt.Errorf("%w: result without value", ErrUnexpectedReply)
	}
	return v, nil
}

func responseID(id any) (int64, bool) {
	switch v := id.(type) {
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
