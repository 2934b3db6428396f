package mqtt

import (
	"context"
	"drivechat/app/config"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const disconnectQuiesceMs = 250

// Client publishes single messages, opening a fresh broker connection per call
type Client struct {
	cfg config.MQTT
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return New(cfg.MQTT), nil
}

func New(cfg config.MQTT) *Client {
	return &Client{
		cfg: cfg,
	}
}

func (c *Client) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)
}

// Publish connects, publishes the payload once and disconnects.
// The context deadline bounds both the connect handshake and the publish.
func (c *Client) Publish(ctx context.Context, topic, payload string) error {
	errBuilder := oops.
		In("mqtt").
		With("broker", c.BrokerURL()).
		With("topic", topic)

	connectTimeout := c.cfg.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		connectTimeout = time.Until(deadline)
	}
	if connectTimeout <= 0 {
		return errBuilder.Errorf("publish deadline exceeded before connecting")
	}

	opts := paho.NewClientOptions().
		AddBroker(c.BrokerURL()).
		SetClientID(c.clientID()).
		SetKeepAlive(c.cfg.KeepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetCleanSession(true)

	if c.cfg.Username != "" {
		opts = opts.SetUsername(c.cfg.Username).SetPassword(c.cfg.Password)
	}

	client := paho.NewClient(opts)

	if err := wait(ctx, client.Connect()); err != nil {
		// a handshake finishing after the deadline would otherwise stay connected
		client.Disconnect(0)
		return errBuilder.Wrapf(err, "failed to connect to broker")
	}
	defer client.Disconnect(disconnectQuiesceMs)

	if err := wait(ctx, client.Publish(topic, c.cfg.QoS, false, payload)); err != nil {
		return errBuilder.Wrapf(err, "failed to publish message")
	}

	slog.Debug("MQTT message published",
		slog.String("topic", topic),
		slog.String("payload", payload),
	)

	return nil
}

// clientID is the configured prefix plus a random suffix, concurrent connections never share an id
func (c *Client) clientID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return c.cfg.ClientID + "-" + suffix
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
