package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultConnectTimeout bounds the initial broker connection.
const DefaultConnectTimeout = 10 * time.Second

// ErrInvalidBroker is returned for broker URLs that cannot be used.
var ErrInvalidBroker = errors.New("invalid broker url")

// ClientAPI is the broker surface the bridge needs. It lets tests run
// without a live broker.
type ClientAPI interface {
	Subscribe(topic string, cb Handler) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte) error
	PublishWith(topic string, payload []byte, retain bool) error
}

// Message is re-exported for handlers.
type Message = paho.Message

// Handler is the subscription callback signature.
type Handler = paho.MessageHandler

// Client is a paho-backed ClientAPI.
type Client struct {
	cli    paho.Client
	logger *slog.Logger
}

var _ ClientAPI = (*Client)(nil)

// Connect dials the broker at brokerURL. Supported schemes are mqtt/tcp,
// ssl/tls and ws/wss; credentials are taken from the URL user info.
func Connect(brokerURL, clientID string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := clientOptions(brokerURL, clientID)
	if err != nil {
		return nil, err
	}
	opts.OnConnect = func(paho.Client) { logger.Info("mqtt connected", "broker", redact(brokerURL)) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { logger.Error("mqtt connection lost", "error", err) }

	cli := paho.NewClient(opts)
	t := cli.Connect()
	if !t.WaitTimeout(DefaultConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %s", DefaultConnectTimeout)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return &Client{cli: cli, logger: logger}, nil
}

func clientOptions(brokerURL, clientID string) (*paho.ClientOptions, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBroker, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidBroker, redact(brokerURL))
	}

	var server string
	switch u.Scheme {
	case "mqtt", "tcp":
		server = "tcp://" + u.Host
	case "ssl", "tls":
		server = "ssl://" + u.Host
	case "ws", "wss":
		server = u.Scheme + "://" + u.Host + u.Path
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBroker, u.Scheme)
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(server)
	if clientID == "" {
		clientID = "smartrelay-" + time.Now().Format("150405.000")
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(DefaultConnectTimeout)
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}
	if u.Scheme == "ssl" || u.Scheme == "tls" || u.Scheme == "wss" {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts, nil
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

// Subscribe implements ClientAPI.
func (c *Client) Subscribe(topic string, cb Handler) error {
	t := c.cli.Subscribe(topic, 0, cb)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	c.logger.Info("mqtt subscribed", "topic", topic)
	return nil
}

// Publish implements ClientAPI.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.PublishWith(topic, payload, false)
}

// PublishWith implements ClientAPI.
func (c *Client) PublishWith(topic string, payload []byte, retain bool) error {
	t := c.cli.Publish(topic, 0, retain, payload)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

// Unsubscribe implements ClientAPI.
func (c *Client) Unsubscribe(topic string) error {
	t := c.cli.Unsubscribe(topic)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	c.logger.Info("mqtt unsubscribed", "topic", topic)
	return nil
}

// Close disconnects, waiting up to 250 ms for in-flight work.
func (c *Client) Close() {
	c.cli.Disconnect(250)
}
