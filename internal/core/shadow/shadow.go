// Package shadow reads and writes device-shadow documents and transforms
// stored device state into Alexa property values.
package shadow

import (
	"context"
	"time"
)

// State is a snapshot of a device's shadow document.
type State struct {
	// Reported holds the device-reported value per capability.
	Reported map[string]interface{}
	// Delta holds desired values not yet acknowledged by the device.
	Delta map[string]interface{}
	// ReportedAt holds the last report time per capability.
	ReportedAt map[string]time.Time
	// ObservedAt is the shadow document timestamp.
	ObservedAt time.Time
}

// Client is the device-shadow store boundary.
type Client interface {
	// GetState fetches the full shadow document for a device.
	GetState(ctx context.Context, deviceID string) (*State, error)
	// UpdateDesired patches desired state and returns the values the store
	// actually accepted, which may differ from the request.
	UpdateDesired(ctx context.Context, deviceID string, desired map[string]interface{}) (map[string]interface{}, error)
}
