package shadow

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
)

type fakeClient struct {
	state    *State
	stateErr error

	lastDesired map[string]interface{}
	echo        map[string]interface{}
	updateErr   error
}

func (c *fakeClient) GetState(_ context.Context, _ string) (*State, error) {
	return c.state, c.stateErr
}

func (c *fakeClient) UpdateDesired(_ context.Context, _ string, desired map[string]interface{}) (map[string]interface{}, error) {
	c.lastDesired = desired
	if c.updateErr != nil {
		return nil, c.updateErr
	}
	if c.echo != nil {
		return c.echo, nil
	}
	return desired, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestSynchronizer(client Client, now time.Time) *Synchronizer {
	s := NewSynchronizer(client, 600, 3600, testLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestWriteDesiredReturnsAcknowledgedValues(t *testing.T) {
	client := &fakeClient{echo: map[string]interface{}{"power": "ON"}}
	s := newTestSynchronizer(client, time.Now())

	accepted, err := s.WriteDesired(context.Background(), "d1", map[string]interface{}{"power": "ON"})
	require.NoError(t, err)
	assert.Equal(t, "ON", accepted["power"])
	assert.Equal(t, "ON", client.lastDesired["power"])
}

func TestToAssistantValueDefaults(t *testing.T) {
	s := newTestSynchronizer(&fakeClient{}, time.Now())

	assert.Equal(t, "OFF", s.ToAssistantValue("power", nil))
	assert.Equal(t, "ON", s.ToAssistantValue("power", "ON"))
	assert.Equal(t, "UNLOCKED", s.ToAssistantValue("lock", nil))
	assert.Equal(t, "NOT_DETECTED", s.ToAssistantValue("sensorContact", nil))
	assert.Equal(t, float64(42), s.ToAssistantValue("brightness", float64(42)))
}

func TestToAssistantValueDecodesColor(t *testing.T) {
	s := newTestSynchronizer(&fakeClient{}, time.Now())

	value := s.ToAssistantValue("color", map[string]interface{}{
		"r": float64(255), "g": float64(0), "b": float64(0),
	})

	hsb, ok := value.(alexa.ColorValue)
	require.True(t, ok)
	assert.Equal(t, float64(0), hsb.Hue)
	assert.Equal(t, float64(1), hsb.Saturation)
	assert.Equal(t, float64(1), hsb.Brightness)
}

func TestToAssistantValueDecodesTemperature(t *testing.T) {
	s := newTestSynchronizer(&fakeClient{}, time.Now())

	value := s.ToAssistantValue("sensorTemperature", map[string]interface{}{"value": 21.5})

	reading, ok := value.(alexa.TemperatureValue)
	require.True(t, ok)
	assert.Equal(t, 21.5, reading.Value)
	assert.Equal(t, "CELSIUS", reading.Scale)
}

func TestReportablePropertiesStalenessBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := &State{
		Reported: map[string]interface{}{
			"power":      "ON",
			"brightness": float64(80),
			"lock":       "LOCKED",
		},
		ReportedAt: map[string]time.Time{
			// One second inside the window: reportable.
			"power": now.Add(-599 * time.Second),
			// Exactly at the window: stale.
			"brightness": now.Add(-600 * time.Second),
			// Well past it.
			"lock": now.Add(-time.Hour),
		},
	}
	s := newTestSynchronizer(&fakeClient{}, now)

	properties := s.ReportableProperties(state, []string{"power", "brightness", "lock"})

	require.Len(t, properties, 1)
	assert.Equal(t, "powerState", properties[0].Name)
	assert.Equal(t, "ON", properties[0].Value)
}

func TestReportablePropertiesSkipsUnreportedCapabilities(t *testing.T) {
	now := time.Now()
	state := &State{
		Reported:   map[string]interface{}{"power": "ON"},
		ReportedAt: map[string]time.Time{"power": now},
	}
	s := newTestSynchronizer(&fakeClient{}, now)

	properties := s.ReportableProperties(state, []string{"power", "brightness"})
	require.Len(t, properties, 1)
}

func TestReportablePropertiesSetsModeInstance(t *testing.T) {
	now := time.Now()
	state := &State{
		Reported:   map[string]interface{}{"mode:fan_speed": "high"},
		ReportedAt: map[string]time.Time{"mode:fan_speed": now},
	}
	s := newTestSynchronizer(&fakeClient{}, now)

	properties := s.ReportableProperties(state, []string{"mode:fan_speed"})
	require.Len(t, properties, 1)
	assert.Equal(t, "fan_speed", properties[0].Instance)
	assert.Equal(t, "mode", properties[0].Name)
}

func TestConnectivityProperty(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSynchronizer(&fakeClient{}, now)

	fresh := s.ConnectivityProperty(&State{ObservedAt: now.Add(-time.Minute)})
	assert.Equal(t, map[string]string{"value": ConnectivityOK}, fresh.Value)

	stale := s.ConnectivityProperty(&State{ObservedAt: now.Add(-2 * time.Hour)})
	assert.Equal(t, map[string]string{"value": ConnectivityUnreachable}, stale.Value)
	assert.Equal(t, alexa.NamespaceEndpointHealth, stale.Namespace)
}
