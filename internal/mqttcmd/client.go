package mqttcmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/taskmgr"
)

// MessageHandler receives one inbound message.
type MessageHandler func(topic string, payload []byte)

// Transport is the broker connection used by Service.
type Transport interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topics ...string) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// opTimeout bounds every broker round trip.
const opTimeout = 5 * time.Second

var errTimeout = errors.New("mqtt: operation timed out")

// Client wraps a paho client.
type Client struct {
	client mqtt.Client
	broker string
	logger *zap.Logger
}

// NewClient configures the broker connection in cfg without dialing it.
func NewClient(cfg config.MQTTConfig, logger *zap.Logger) *Client {
	logger = logger.Named("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.RetryInterval)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
	})

	return &Client{client: mqtt.NewClient(opts), broker: cfg.Broker, logger: logger}
}

// Connect dials the broker every retry until the first connect succeeds or
// ctx is done. The client reconnects on its own after that.
func (c *Client) Connect(ctx context.Context, retry time.Duration) error {
	for {
		err := wait(c.client.Connect())
		if err == nil {
			return nil
		}
		c.logger.Warn("mqtt connect failed, retrying",
			zap.String("broker", c.broker), zap.Duration("retry", retry), zap.Error(err))
		if !taskmgr.Sleep(ctx, retry) {
			return fmt.Errorf("connect to mqtt broker %s: %w", c.broker, ctx.Err())
		}
	}
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(opTimeout) {
		return errTimeout
	}
	return token.Error()
}

func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if err := wait(token); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Unsubscribe(topics ...string) error {
	if err := wait(c.client.Unsubscribe(topics...)); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if err := wait(c.client.Publish(topic, qos, retained, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect waits up to 250ms for in-flight work.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}
