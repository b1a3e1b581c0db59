// Package bus consumes device events from the MQTT broker and feeds them to
// the event translator.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/events"
)

const (
	connectTimeout    = 10 * time.Second
	handleTimeout     = 30 * time.Second
	disconnectQuiesce = 250 // milliseconds

	eventRegisterDevice      = "register_device"
	eventPhysicalInteraction = "physical_interaction"
)

// EventHandler processes decoded bus events. Errors are logged, not
// redelivered: the broker delivers at least once and handlers are idempotent.
type EventHandler interface {
	HandleRegister(ctx context.Context, event *events.RegisterEvent) error
	HandleInteraction(ctx context.Context, event *events.InteractionEvent) error
}

// Consumer subscribes to the device events topic and dispatches messages by
// their event type.
type Consumer struct {
	client  pahomqtt.Client
	cfg     config.MQTTConfig
	handler EventHandler
	log     *logrus.Logger
}

// NewConsumer creates a bus consumer. Call Start to connect and subscribe.
func NewConsumer(cfg config.MQTTConfig, handler EventHandler, log *logrus.Logger) *Consumer {
	return &Consumer{
		cfg:     cfg,
		handler: handler,
		log:     log,
	}
}

// Start connects to the broker and subscribes to the events topic.
// Subscriptions are restored automatically on reconnect.
func (c *Consumer) Start() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetOrderMatters(false)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		token := client.Subscribe(c.cfg.EventsTopic, byte(c.cfg.QoS), c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.WithError(err).WithField("topic", c.cfg.EventsTopic).Error("Failed to subscribe to events topic")
			return
		}
		c.log.WithField("topic", c.cfg.EventsTopic).Info("Subscribed to events topic")
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.WithError(err).Warn("Broker connection lost, reconnecting")
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("broker connect timed out after %v", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	c.log.WithField("broker", c.cfg.BrokerURL).Info("Connected to event broker")
	return nil
}

// Close disconnects from the broker.
func (c *Consumer) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(disconnectQuiesce)
	}
}

func (c *Consumer) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := c.handleMessage(ctx, msg.Payload()); err != nil {
		c.log.WithError(err).WithField("topic", msg.Topic()).Error("Failed to handle bus message")
	}
}

// handleMessage peeks at the event type and dispatches to the handler.
func (c *Consumer) handleMessage(ctx context.Context, payload []byte) error {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("failed to decode event envelope: %w", err)
	}

	switch envelope.Event {
	case eventRegisterDevice:
		var event events.RegisterEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to decode register event: %w", err)
		}
		return c.handler.HandleRegister(ctx, &event)

	case eventPhysicalInteraction:
		var event events.InteractionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("failed to decode interaction event: %w", err)
		}
		return c.handler.HandleInteraction(ctx, &event)

	default:
		c.log.WithField("event", envelope.Event).Debug("Ignoring unknown event type")
		return nil
	}
}
