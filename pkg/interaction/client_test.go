package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/smartrelay/relay-go/pkg/document"
	"github.com/smartrelay/relay-go/pkg/wire"
)

// loopback answers every frame with the dispatcher, as a device would.
func loopback(t *testing.T, d *Dispatcher, codec wire.Codec, client **Client) Sender {
	return SenderFunc(func(data []byte) error {
		req, err := codec.DecodeRequest(data)
		if err != nil {
			t.Errorf("device failed to decode request: %v", err)
			return err
		}
		resp := d.Handle(req.Method, req.Params, document.NewBuilder(0)).Response(req.ID)
		out, err := codec.EncodeResponse(resp)
		if err != nil {
			return err
		}
		go func() { _ = (*client).HandleFrame(out) }()
		return nil
	})
}

func TestClientReadWrite(t *testing.T) {
	for _, codec := range []wire.Codec{wire.JSONCodec{}, wire.CBORCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			tr := newTestTree()
			var client *Client
			client = NewClient(loopback(t, NewDispatcher(tr.root), codec, &client), codec)
			ctx := context.Background()

			v, err := client.Write(ctx, "test.int", 9)
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if n, ok := asInt(v); !ok || n != 9 {
				t.Errorf("Write returned %#v, want 9", v)
			}

			v, err = client.Read(ctx, "test.int")
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if n, ok := asInt(v); !ok || n != 9 {
				t.Errorf("Read returned %#v, want 9", v)
			}

			_, err = client.Write(ctx, "test.int", -3)
			var werr *wire.Error
			if !errors.As(err, &werr) || werr.Code != wire.InvalidParams {
				t.Errorf("expected INVALID_PARAMS, got %v", err)
			}
		})
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func TestClientTimeout(t *testing.T) {
	client := NewClient(SenderFunc(func([]byte) error { return nil }), wire.JSONCodec{})
	client.SetTimeout(20 * time.Millisecond)

	_, err := client.Read(context.Background(), "test.int")
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("expected ErrRequestTimeout, got %v", err)
	}
}

func TestClientContextCancel(t *testing.T) {
	client := NewClient(SenderFunc(func([]byte) error { return nil }), wire.JSONCodec{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Read(ctx, "test.int")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClientClosed(t *testing.T) {
	client := NewClient(SenderFunc(func([]byte) error { return nil }), wire.JSONCodec{})
	_ = client.Close()

	_, err := client.Call(context.Background(), MethodRead, nil)
	if !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestClientCloseDuringCall(t *testing.T) {
	for i := 0; i < 200; i++ {
		sent := make(chan []byte, 1)
		client := NewClient(SenderFunc(func(data []byte) error {
			sent <- data
			return nil
		}), wire.JSONCodec{})
		client.SetTimeout(5 * time.Second)

		type outcome struct {
			err     error
			elapsed time.Duration
		}
		done := make(chan outcome, 1)
		go func() {
			start := time.Now()
			_, err := client.Call(context.Background(), "relay", nil)
			done <- outcome{err, time.Since(start)}
		}()

		req, err := wire.JSONCodec{}.DecodeRequest(<-sent)
		if err != nil {
			t.Fatalf("DecodeRequest failed: %v", err)
		}
		reply, err := wire.JSONCodec{}.EncodeResponse(wire.NewResult(req.ID, nil))
		if err != nil {
			t.Fatalf("EncodeResponse failed: %v", err)
		}

		// Replies and Close race; neither order may panic.
		go func() { _ = client.HandleFrame(reply) }()
		_ = client.Close()

		res := <-done
		if res.err != nil && !errors.Is(res.err, ErrClientClosed) {
			t.Fatalf("Call returned %v", res.err)
		}
		if res.elapsed > time.Second {
			t.Fatalf("Call waited %v after Close", res.elapsed)
		}
		if err := client.HandleFrame(reply); !errors.Is(err, ErrUnexpectedReply) {
			t.Fatalf("reply after Close: %v", err)
		}
	}
}

func TestClientNotifications(t *testing.T) {
	client := NewClient(SenderFunc(func([]byte) error { return nil }), wire.JSONCodec{})

	var got *wire.Notification
	client.SetNotificationHandler(func(n *wire.Notification) { got = n })

	err := client.HandleFrame([]byte(`{"jsonrpc":"2.0","method":"update","params":{"test":{"int":1}}}`))
	if err != nil {
		t.Fatalf("HandleFrame failed: %v", err)
	}
	if got == nil || got.Method != wire.MethodUpdate {
		t.Fatalf("notification not delivered: %+v", got)
	}
}

func TestClientHandleFrameWithOtherCodec(t *testing.T) {
	client := NewClient(SenderFunc(func([]byte) error { return nil }), wire.CBORCodec{})

	var got *wire.Notification
	client.SetNotificationHandler(func(n *wire.Notification) { got = n })

	frame := []byte(`{"jsonrpc":"2.0","method":"connect","params":{"relay":false}}`)
	if err := client.HandleFrame(frame); err == nil {
		t.Error("CBOR client accepted a JSON frame")
	}
	if err := client.HandleFrameWith(wire.JSONCodec{}, frame); err != nil {
		t.Fatalf("HandleFrameWith failed: %v", err)
	}
	if got == nil || got.Method != wire.MethodConnect {
		t.Fatalf("connect not delivered: %+v", got)
	}
}

func TestClientUnexpectedReply(t *testing.T) {
	client := NewClient(SenderFunc(func([]byte) error { return nil }), wire.JSONCodec{})

	err := client.HandleFrame([]byte(`{"jsonrpc":"2.0","id":99,"result":{"value":1}}`))
	if !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("expected ErrUnexpectedReply, got %v", err)
	}
}
