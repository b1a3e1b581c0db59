// Package events converts device-originated events into outbound Alexa
// reports: discovery AddOrUpdateReports for registrations, ChangeReports and
// doorbell events for physical interactions.
package events

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/capabilities"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/shadow"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/models"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/repositories"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/errors"
)

// Uncertainty bounds for interaction reports: the triggering property was
// sampled at the moment of the event, context properties come from the
// snapshot the device sent along.
const (
	triggerUncertaintyMs = 0
	contextUncertaintyMs = 6000
)

const templateDoorbell = "doorbell"

// RegisterEvent is the register_device message from the bus.
type RegisterEvent struct {
	Event      string          `json:"event"`
	DeviceID   string          `json:"device_id"`
	DeviceName string          `json:"device_name,omitempty"`
	UserID     string          `json:"user_id"`
	Properties map[string]bool `json:"properties"`
	Buttons    map[string]bool `json:"buttons"`
	Modes      []models.Mode   `json:"modes,omitempty"`
	Template   string          `json:"device_template"`
	TopicEvent string          `json:"topic_events"`
}

// InteractionEvent is the physical_interaction message from the bus.
type InteractionEvent struct {
	Event       string                 `json:"event"`
	DeviceID    string                 `json:"device_id"`
	Property    string                 `json:"property"`
	State       map[string]interface{} `json:"state"`
	Correlation string                 `json:"correlation,omitempty"`
}

// CredentialSource supplies a valid bearer token for a user. It is consulted
// immediately before every outbound report.
type CredentialSource interface {
	GetValidToken(ctx context.Context, userID string) (*oauth2.Token, error)
}

// Gateway sends a report to the Alexa event gateway.
type Gateway interface {
	SendEvent(ctx context.Context, accessToken string, report *alexa.Response) error
}

// Translator turns device events into outbound reports. Errors surface to
// the bus consumer so messages can be retried or dead-lettered.
type Translator struct {
	devices repositories.DeviceRepository
	sync    *shadow.Synchronizer
	creds   CredentialSource
	gateway Gateway
	log     *logrus.Logger
	now     func() time.Time
}

// NewTranslator creates an event translator
func NewTranslator(devices repositories.DeviceRepository, sync *shadow.Synchronizer, creds CredentialSource, gateway Gateway, log *logrus.Logger) *Translator {
	return &Translator{
		devices: devices,
		sync:    sync,
		creds:   creds,
		gateway: gateway,
		log:     log,
		now:     time.Now,
	}
}

// HandleRegister persists the device described by a registration event and
// reports it to Alexa as a discovery AddOrUpdateReport. Registration is
// idempotent: re-registration merges capabilities, it never shrinks them.
func (t *Translator) HandleRegister(ctx context.Context, event *RegisterEvent) error {
	device := &models.Device{
		DeviceID:     event.DeviceID,
		UserID:       event.UserID,
		Template:     event.Template,
		Name:         event.DeviceName,
		Capabilities: capabilitySet(event),
		Modes:        event.Modes,
		TopicEvents:  event.TopicEvent,
	}
	if device.Name == "" {
		device.Name = "device_" + event.DeviceID
	}

	if existing, err := t.devices.GetByID(ctx, event.DeviceID); err == nil {
		device.Capabilities = mergeCapabilities(existing.Capabilities, device.Capabilities)
	}

	if err := t.devices.Upsert(ctx, device); err != nil {
		return err
	}

	token, err := t.creds.GetValidToken(ctx, device.UserID)
	if err != nil {
		return err
	}

	report := &alexa.Response{
		Event: alexa.Event{
			Header: alexa.Header{
				Namespace:      alexa.NamespaceDiscovery,
				Name:           alexa.NameAddOrUpdateReport,
				MessageID:      uuid.New().String(),
				PayloadVersion: alexa.PayloadVersion,
			},
			Payload: alexa.DiscoveryPayload{
				Endpoints: []alexa.DiscoveryEndpoint{capabilities.BuildEndpoint(device)},
				Scope:     &alexa.Scope{Type: "BearerToken", Token: token.AccessToken},
			},
		},
	}

	if err := t.gateway.SendEvent(ctx, token.AccessToken, report); err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{
		"device_id": device.DeviceID,
		"template":  device.Template,
	}).Info("Device registered and reported")

	return nil
}

// HandleInteraction reports a physical interaction: doorbell devices produce
// a DoorbellPress event, everything else a ChangeReport carrying the
// triggering property plus the rest of the state snapshot as context.
func (t *Translator) HandleInteraction(ctx context.Context, event *InteractionEvent) error {
	device, err := t.devices.GetByID(ctx, event.DeviceID)
	if err != nil {
		return errors.Wrap(errors.ErrNoSuchEndpoint, err)
	}

	token, err := t.creds.GetValidToken(ctx, device.UserID)
	if err != nil {
		return err
	}

	var report *alexa.Response
	if device.Template == templateDoorbell {
		report = t.doorbellReport(device, token)
	} else {
		if event.Property == "" {
			return errors.WithDetails(errors.ErrInvalidValue, "interaction event missing property")
		}
		report = t.changeReport(device, event, token)
	}

	if err := t.gateway.SendEvent(ctx, token.AccessToken, report); err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{
		"device_id": event.DeviceID,
		"property":  event.Property,
		"name":      report.Event.Header.Name,
	}).Info("Interaction reported")

	return nil
}

func (t *Translator) doorbellReport(device *models.Device, token *oauth2.Token) *alexa.Response {
	return &alexa.Response{
		Event: alexa.Event{
			Header: alexa.Header{
				Namespace:      alexa.NamespaceDoorbellEventSource,
				Name:           alexa.NameDoorbellPress,
				MessageID:      uuid.New().String(),
				PayloadVersion: alexa.PayloadVersion,
			},
			Endpoint: t.bearerEndpoint(device.DeviceID, token),
			Payload: alexa.DoorbellPayload{
				Timestamp: t.now().UTC().Format(time.RFC3339),
			},
		},
	}
}

func (t *Translator) changeReport(device *models.Device, event *InteractionEvent, token *oauth2.Token) *alexa.Response {
	sampled := t.now().UTC().Format(time.RFC3339)

	trigger := alexa.Property{
		Namespace:                 capabilities.PropertyNamespaceFor(event.Property),
		Name:                      capabilities.PropertyNameFor(event.Property),
		Value:                     t.sync.ToAssistantValue(event.Property, event.State[event.Property]),
		TimeOfSample:              sampled,
		UncertaintyInMilliseconds: triggerUncertaintyMs,
	}
	if capabilities.IsMode(event.Property) {
		trigger.Instance = capabilities.ModeInstance(event.Property)
	}

	contextProperties := make([]alexa.Property, 0, len(event.State))
	for _, property := range sortedKeys(event.State) {
		if property == event.Property {
			continue
		}
		contextProperty := alexa.Property{
			Namespace:                 capabilities.PropertyNamespaceFor(property),
			Name:                      capabilities.PropertyNameFor(property),
			Value:                     t.sync.ToAssistantValue(property, event.State[property]),
			TimeOfSample:              sampled,
			UncertaintyInMilliseconds: contextUncertaintyMs,
		}
		if capabilities.IsMode(property) {
			contextProperty.Instance = capabilities.ModeInstance(property)
		}
		contextProperties = append(contextProperties, contextProperty)
	}

	header := alexa.Header{
		Namespace:      alexa.NamespaceAlexa,
		Name:           alexa.NameChangeReport,
		MessageID:      uuid.New().String(),
		PayloadVersion: alexa.PayloadVersion,
	}

	// A correlation turns the report into a direct StateReport answer.
	if event.Correlation != "" {
		header.Name = alexa.NameStateReport
		header.CorrelationToken = event.Correlation
		return &alexa.Response{
			Event: alexa.Event{
				Header:   header,
				Endpoint: t.bearerEndpoint(device.DeviceID, token),
				Payload:  struct{}{},
			},
			Context: &alexa.Context{
				Properties: append([]alexa.Property{trigger}, contextProperties...),
			},
		}
	}

	return &alexa.Response{
		Event: alexa.Event{
			Header:   header,
			Endpoint: t.bearerEndpoint(device.DeviceID, token),
			Payload: alexa.ChangePayload{
				Change: alexa.Change{
					Cause:      alexa.Cause{Type: alexa.CausePhysicalInteraction},
					Properties: []alexa.Property{trigger},
				},
			},
		},
		Context: &alexa.Context{Properties: contextProperties},
	}
}

func (t *Translator) bearerEndpoint(deviceID string, token *oauth2.Token) *alexa.Endpoint {
	return &alexa.Endpoint{
		Scope:      &alexa.Scope{Type: "BearerToken", Token: token.AccessToken},
		EndpointID: deviceID,
	}
}

// capabilitySet derives the declared capability list from a register event:
// every true property or button, plus one mode capability per declared mode.
func capabilitySet(event *RegisterEvent) models.StringList {
	set := make(map[string]struct{})
	for name, enabled := range event.Properties {
		if enabled {
			set[name] = struct{}{}
		}
	}
	for name, enabled := range event.Buttons {
		if enabled {
			set[name] = struct{}{}
		}
	}

	caps := make([]string, 0, len(set)+len(event.Modes))
	for name := range set {
		caps = append(caps, name)
	}
	sort.Strings(caps)

	for _, mode := range event.Modes {
		caps = append(caps, capabilities.ModeCapability(mode.Name))
	}

	return caps
}

func mergeCapabilities(existing, incoming models.StringList) models.StringList {
	seen := make(map[string]struct{}, len(incoming))
	merged := make(models.StringList, 0, len(existing)+len(incoming))
	for _, c := range incoming {
		seen[c] = struct{}{}
		merged = append(merged, c)
	}
	for _, c := range existing {
		if _, ok := seen[c]; !ok {
			merged = append(merged, c)
		}
	}
	sort.Strings(merged)
	return merged
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
