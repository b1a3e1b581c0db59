package shadow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/capabilities"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/color"
)

// Connectivity values reported under Alexa.EndpointHealth.
const (
	ConnectivityOK          = "OK"
	ConnectivityUnreachable = "UNREACHABLE"
)

// contextUncertaintyMs is the uncertainty bound attached to properties read
// from the shadow rather than freshly sampled.
const contextUncertaintyMs = 6000

// Synchronizer mediates between directive handlers and the shadow store:
// reads, desired-state writes, staleness filtering and value decoding.
type Synchronizer struct {
	client Client
	log    *logrus.Logger
	now    func() time.Time

	// staleWindow bounds the age of a reported property before it is
	// dropped from state reports. reachabilityWindow bounds the age of the
	// last shadow observation before the device counts as unreachable.
	// Both come from configuration (shadow.stale_window,
	// shadow.reachability_window).
	staleWindow        time.Duration
	reachabilityWindow time.Duration
}

// NewSynchronizer creates a state synchronizer. Windows are in seconds.
func NewSynchronizer(client Client, staleWindowSec, reachabilityWindowSec int, log *logrus.Logger) *Synchronizer {
	return &Synchronizer{
		client:             client,
		log:                log,
		now:                time.Now,
		staleWindow:        time.Duration(staleWindowSec) * time.Second,
		reachabilityWindow: time.Duration(reachabilityWindowSec) * time.Second,
	}
}

// ReadState fetches the shadow document for a device.
func (s *Synchronizer) ReadState(ctx context.Context, deviceID string) (*State, error) {
	return s.client.GetState(ctx, deviceID)
}

// WriteDesired patches desired state and returns the acknowledged values.
// Callers must build responses from the acknowledged value, not the request.
func (s *Synchronizer) WriteDesired(ctx context.Context, deviceID string, patch map[string]interface{}) (map[string]interface{}, error) {
	accepted, err := s.client.UpdateDesired(ctx, deviceID, patch)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"device_id": deviceID,
		"patch":     patch,
	}).Debug("Desired state updated")

	return accepted, nil
}

// ToAssistantValue decodes a stored capability value into the representation
// Alexa expects. Color converts stored RGB to HSB; absent values get the
// capability's defined default; unknown capabilities pass through unchanged.
func (s *Synchronizer) ToAssistantValue(capability string, raw interface{}) interface{} {
	switch capability {
	case capabilities.Color:
		return decodeColor(raw)
	case capabilities.Power:
		if raw == nil {
			return "OFF"
		}
		return raw
	case capabilities.Lock:
		if raw == nil {
			return "UNLOCKED"
		}
		return raw
	case capabilities.SensorContact:
		if raw == nil {
			return "NOT_DETECTED"
		}
		return raw
	case capabilities.SensorTemperature:
		return decodeTemperature(raw)
	default:
		return raw
	}
}

// ReportableProperties builds the state-report property list for a device:
// every declared capability whose reported value is fresh enough. A property
// is included only while now - lastReportedAt < staleWindow.
func (s *Synchronizer) ReportableProperties(state *State, caps []string) []alexa.Property {
	now := s.now()
	sampled := now.UTC().Format(time.RFC3339)
	properties := make([]alexa.Property, 0, len(caps))

	for _, capability := range caps {
		raw, ok := state.Reported[capability]
		if !ok {
			continue
		}

		reportedAt, ok := state.ReportedAt[capability]
		if !ok || now.Sub(reportedAt) >= s.staleWindow {
			continue
		}

		property := alexa.Property{
			Namespace:                 capabilities.PropertyNamespaceFor(capability),
			Name:                      capabilities.PropertyNameFor(capability),
			Value:                     s.ToAssistantValue(capability, raw),
			TimeOfSample:              sampled,
			UncertaintyInMilliseconds: contextUncertaintyMs,
		}
		if capabilities.IsMode(capability) {
			property.Instance = capabilities.ModeInstance(capability)
		}
		properties = append(properties, property)
	}

	return properties
}

// ConnectivityProperty derives the EndpointHealth connectivity property from
// the age of the device's last shadow observation.
func (s *Synchronizer) ConnectivityProperty(state *State) alexa.Property {
	value := ConnectivityOK
	if s.now().Sub(state.ObservedAt) > s.reachabilityWindow {
		value = ConnectivityUnreachable
	}

	return alexa.Property{
		Namespace:                 alexa.NamespaceEndpointHealth,
		Name:                      "connectivity",
		Value:                     map[string]string{"value": value},
		TimeOfSample:              s.now().UTC().Format(time.RFC3339),
		UncertaintyInMilliseconds: 0,
	}
}

func decodeColor(raw interface{}) interface{} {
	rgb, ok := raw.(map[string]interface{})
	if !ok {
		return raw
	}

	r := intField(rgb, "r")
	g := intField(rgb, "g")
	b := intField(rgb, "b")

	hue, saturation, brightness := color.RgbToHsb(r, g, b)
	return alexa.ColorValue{
		Hue:        hue,
		Saturation: saturation,
		Brightness: brightness,
	}
}

func decodeTemperature(raw interface{}) interface{} {
	reading, ok := raw.(map[string]interface{})
	if !ok {
		return raw
	}

	value, _ := reading["value"].(float64)
	scale, _ := reading["scale"].(string)
	if scale == "" {
		scale = "CELSIUS"
	}

	return alexa.TemperatureValue{Value: value, Scale: scale}
}

func intField(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
