package bus

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/events"
)

type recordingHandler struct {
	registered   *events.RegisterEvent
	interactions *events.InteractionEvent
	err          error
}

func (h *recordingHandler) HandleRegister(_ context.Context, event *events.RegisterEvent) error {
	h.registered = event
	return h.err
}

func (h *recordingHandler) HandleInteraction(_ context.Context, event *events.InteractionEvent) error {
	h.interactions = event
	return h.err
}

func newTestConsumer(handler EventHandler) *Consumer {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewConsumer(config.MQTTConfig{EventsTopic: "devices/events"}, handler, log)
}

func TestHandleMessageDispatchesRegister(t *testing.T) {
	handler := &recordingHandler{}
	consumer := newTestConsumer(handler)

	payload := []byte(`{
		"event": "register_device",
		"device_id": "lamp-1",
		"device_name": "Sala",
		"user_id": "u1",
		"properties": {"power": true, "brightness": true},
		"buttons": {},
		"modes": [{"name": "fan_speed", "values": ["low", "high"]}],
		"device_template": "light_brightness",
		"topic_events": "devices/lamp-1/events"
	}`)

	require.NoError(t, consumer.handleMessage(context.Background(), payload))
	require.NotNil(t, handler.registered)
	assert.Equal(t, "lamp-1", handler.registered.DeviceID)
	assert.True(t, handler.registered.Properties["power"])
	require.Len(t, handler.registered.Modes, 1)
	assert.Equal(t, "fan_speed", handler.registered.Modes[0].Name)
	assert.Nil(t, handler.interactions)
}

func TestHandleMessageDispatchesInteraction(t *testing.T) {
	handler := &recordingHandler{}
	consumer := newTestConsumer(handler)

	payload := []byte(`{
		"event": "physical_interaction",
		"device_id": "lock-1",
		"property": "lock",
		"state": {"lock": "LOCKED"}
	}`)

	require.NoError(t, consumer.handleMessage(context.Background(), payload))
	require.NotNil(t, handler.interactions)
	assert.Equal(t, "lock-1", handler.interactions.DeviceID)
	assert.Equal(t, "lock", handler.interactions.Property)
	assert.Equal(t, "LOCKED", handler.interactions.State["lock"])
}

func TestHandleMessageIgnoresUnknownEvents(t *testing.T) {
	handler := &recordingHandler{}
	consumer := newTestConsumer(handler)

	require.NoError(t, consumer.handleMessage(context.Background(), []byte(`{"event":"heartbeat"}`)))
	assert.Nil(t, handler.registered)
	assert.Nil(t, handler.interactions)
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	consumer := newTestConsumer(&recordingHandler{})
	assert.Error(t, consumer.handleMessage(context.Background(), []byte(`not json`)))
}

func TestHandleMessageSurfacesHandlerError(t *testing.T) {
	handler := &recordingHandler{err: assert.AnError}
	consumer := newTestConsumer(handler)

	err := consumer.handleMessage(context.Background(), []byte(`{"event":"physical_interaction","device_id":"d1","property":"power","state":{}}`))
	assert.ErrorIs(t, err, assert.AnError)
}
