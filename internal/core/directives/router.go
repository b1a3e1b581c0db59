// Package directives dispatches inbound Alexa directives to capability
// handlers and builds the response envelope.
package directives

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/capabilities"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/color"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/shadow"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/models"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/errors"
)

// responseUncertaintyMs is attached to acknowledged directive responses;
// the shadow echo confirms acceptance, not the physical device state.
const responseUncertaintyMs = 6000

// DeviceStore is the slice of device persistence the router needs.
type DeviceStore interface {
	GetByID(ctx context.Context, deviceID string) (*models.Device, error)
	GetByUser(ctx context.Context, userID string) ([]*models.Device, error)
}

// Authorizer handles the account-linking and scope-resolution paths.
type Authorizer interface {
	AcceptGrant(ctx context.Context, code, granteeToken string) error
	ResolveUser(ctx context.Context, accessToken string) (string, error)
}

// Router resolves a directive's target device, dispatches to the capability
// handler and produces the response envelope. It is stateless per call; all
// handler errors become ErrorResponse envelopes.
type Router struct {
	devices DeviceStore
	sync    *shadow.Synchronizer
	auth    Authorizer
	log     *logrus.Logger
	now     func() time.Time
}

// NewRouter creates a directive router
func NewRouter(devices DeviceStore, sync *shadow.Synchronizer, auth Authorizer, log *logrus.Logger) *Router {
	return &Router{
		devices: devices,
		sync:    sync,
		auth:    auth,
		log:     log,
		now:     time.Now,
	}
}

// Handle processes one directive and always returns a structured response;
// failures become ErrorResponse envelopes rather than transport errors.
func (r *Router) Handle(ctx context.Context, req *alexa.DirectiveRequest) *alexa.Response {
	directive := &req.Directive
	header := directive.Header

	var resp *alexa.Response
	var err error

	switch header.Namespace {
	case alexa.NamespaceAuthorization:
		resp, err = r.handleAcceptGrant(ctx, directive)
	case alexa.NamespaceDiscovery:
		resp, err = r.handleDiscover(ctx, directive)
	default:
		resp, err = r.handleEndpointDirective(ctx, directive)
	}

	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"namespace": header.Namespace,
			"name":      header.Name,
		}).Error("Directive failed")
		return r.errorResponse(directive, err)
	}

	return resp
}

// handleEndpointDirective covers every directive targeting a device.
func (r *Router) handleEndpointDirective(ctx context.Context, directive *alexa.Directive) (*alexa.Response, error) {
	if directive.Endpoint == nil || directive.Endpoint.EndpointID == "" {
		return nil, errors.ErrNoSuchEndpoint
	}

	device, err := r.devices.GetByID(ctx, directive.Endpoint.EndpointID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNoSuchEndpoint, err)
	}

	header := directive.Header
	responseName := alexa.NameResponse
	var properties []alexa.Property

	switch {
	case header.Namespace == alexa.NamespacePowerController:
		properties, err = r.handlePower(ctx, device, header.Name)
	case header.Namespace == alexa.NamespaceBrightnessController:
		properties, err = r.handleBrightness(ctx, device, directive.Payload)
	case header.Namespace == alexa.NamespaceColorController:
		properties, err = r.handleColor(ctx, device, directive.Payload)
	case header.Namespace == alexa.NamespaceLockController:
		properties, err = r.handleLock(ctx, device, header.Name)
	case header.Namespace == alexa.NamespaceModeController:
		properties, err = r.handleMode(ctx, device, header.Instance, directive.Payload)
	case header.Namespace == alexa.NamespaceAlexa && header.Name == alexa.NameReportState:
		properties, err = r.handleReportState(ctx, device)
		responseName = alexa.NameStateReport
	default:
		// Observed fallback: respond with an empty property list instead of
		// an error. Logged distinctly so it is not mistaken for a real no-op.
		r.log.WithFields(logrus.Fields{
			"namespace": header.Namespace,
			"name":      header.Name,
		}).Warn("Unrecognized directive, responding with empty property list")
		properties = []alexa.Property{}
	}
	if err != nil {
		return nil, err
	}

	return &alexa.Response{
		Event: alexa.Event{
			Header: alexa.Header{
				Namespace:        alexa.NamespaceAlexa,
				Name:             responseName,
				MessageID:        uuid.New().String(),
				CorrelationToken: header.CorrelationToken,
				PayloadVersion:   alexa.PayloadVersion,
			},
			Endpoint: copyEndpoint(directive.Endpoint),
			Payload:  struct{}{},
		},
		Context: &alexa.Context{Properties: properties},
	}, nil
}

func (r *Router) handlePower(ctx context.Context, device *models.Device, action string) ([]alexa.Property, error) {
	value := "OFF"
	if action == alexa.NameTurnOn {
		value = "ON"
	}

	accepted, err := r.sync.WriteDesired(ctx, device.DeviceID, map[string]interface{}{
		capabilities.Power: value,
	})
	if err != nil {
		return nil, err
	}

	return []alexa.Property{r.property(capabilities.Power, acknowledged(accepted, capabilities.Power, value))}, nil
}

func (r *Router) handleBrightness(ctx context.Context, device *models.Device, payload json.RawMessage) ([]alexa.Property, error) {
	var body struct {
		Brightness *float64 `json:"brightness"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Brightness == nil {
		return nil, errors.WithDetails(errors.ErrInvalidValue, "brightness must be numeric")
	}

	accepted, err := r.sync.WriteDesired(ctx, device.DeviceID, map[string]interface{}{
		capabilities.Brightness: *body.Brightness,
	})
	if err != nil {
		return nil, err
	}

	return []alexa.Property{r.property(capabilities.Brightness, acknowledged(accepted, capabilities.Brightness, *body.Brightness))}, nil
}

func (r *Router) handleColor(ctx context.Context, device *models.Device, payload json.RawMessage) ([]alexa.Property, error) {
	var body struct {
		Color *alexa.ColorValue `json:"color"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Color == nil {
		return nil, errors.WithDetails(errors.ErrInvalidValue, "color must be an HSB object")
	}

	red, green, blue := color.HsbToRgb(body.Color.Hue, body.Color.Saturation, body.Color.Brightness)

	if _, err := r.sync.WriteDesired(ctx, device.DeviceID, map[string]interface{}{
		capabilities.Color: map[string]interface{}{"r": red, "g": green, "b": blue},
	}); err != nil {
		return nil, err
	}

	// The response echoes the requested HSB tuple: the device may not
	// confirm exact values, and the command input is what Alexa expects back.
	return []alexa.Property{r.property(capabilities.Color, *body.Color)}, nil
}

func (r *Router) handleLock(ctx context.Context, device *models.Device, action string) ([]alexa.Property, error) {
	value := "LOCKED"
	if action == alexa.NameUnlock {
		value = "UNLOCKED"
	}

	accepted, err := r.sync.WriteDesired(ctx, device.DeviceID, map[string]interface{}{
		capabilities.Lock: value,
	})
	if err != nil {
		return nil, err
	}

	return []alexa.Property{r.property(capabilities.Lock, acknowledged(accepted, capabilities.Lock, value))}, nil
}

func (r *Router) handleMode(ctx context.Context, device *models.Device, instance string, payload json.RawMessage) ([]alexa.Property, error) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Mode == "" {
		return nil, errors.WithDetails(errors.ErrInvalidValue, "mode must be a non-empty string")
	}

	capability := capabilities.ModeCapability(instance)
	accepted, err := r.sync.WriteDesired(ctx, device.DeviceID, map[string]interface{}{
		capability: body.Mode,
	})
	if err != nil {
		return nil, err
	}

	property := r.property(capability, acknowledged(accepted, capability, body.Mode))
	property.Instance = instance
	return []alexa.Property{property}, nil
}

func (r *Router) handleReportState(ctx context.Context, device *models.Device) ([]alexa.Property, error) {
	state, err := r.sync.ReadState(ctx, device.DeviceID)
	if err != nil {
		return nil, err
	}

	properties := r.sync.ReportableProperties(state, device.Capabilities)
	properties = append(properties, r.sync.ConnectivityProperty(state))
	return properties, nil
}

func (r *Router) handleAcceptGrant(ctx context.Context, directive *alexa.Directive) (*alexa.Response, error) {
	var payload struct {
		Grant struct {
			Code string `json:"code"`
		} `json:"grant"`
		Grantee struct {
			Token string `json:"token"`
		} `json:"grantee"`
	}
	if err := json.Unmarshal(directive.Payload, &payload); err != nil {
		return nil, errors.WithDetails(errors.ErrInvalidValue, "malformed AcceptGrant payload")
	}

	if err := r.auth.AcceptGrant(ctx, payload.Grant.Code, payload.Grantee.Token); err != nil {
		return nil, err
	}

	return &alexa.Response{
		Event: alexa.Event{
			Header: alexa.Header{
				Namespace:      alexa.NamespaceAuthorization,
				Name:           alexa.NameAcceptGrantResponse,
				MessageID:      uuid.New().String(),
				PayloadVersion: alexa.PayloadVersion,
			},
			Payload: struct{}{},
		},
	}, nil
}

func (r *Router) handleDiscover(ctx context.Context, directive *alexa.Directive) (*alexa.Response, error) {
	var payload struct {
		Scope struct {
			Token string `json:"token"`
		} `json:"scope"`
	}
	if err := json.Unmarshal(directive.Payload, &payload); err != nil {
		return nil, errors.WithDetails(errors.ErrInvalidValue, "malformed Discover payload")
	}

	userID, err := r.auth.ResolveUser(ctx, payload.Scope.Token)
	if err != nil {
		return nil, err
	}

	devices, err := r.devices.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	endpoints := make([]alexa.DiscoveryEndpoint, 0, len(devices))
	for _, device := range devices {
		endpoints = append(endpoints, capabilities.BuildEndpoint(device))
	}

	return &alexa.Response{
		Event: alexa.Event{
			Header: alexa.Header{
				Namespace:      alexa.NamespaceDiscovery,
				Name:           alexa.NameDiscoverResponse,
				MessageID:      uuid.New().String(),
				PayloadVersion: alexa.PayloadVersion,
			},
			Payload: alexa.DiscoveryPayload{Endpoints: endpoints},
		},
	}, nil
}

func (r *Router) errorResponse(directive *alexa.Directive, err error) *alexa.Response {
	message := errors.ErrInternal.Message
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}

	return &alexa.Response{
		Event: alexa.Event{
			Header: alexa.Header{
				Namespace:        alexa.NamespaceAlexa,
				Name:             alexa.NameErrorResponse,
				MessageID:        uuid.New().String(),
				CorrelationToken: directive.Header.CorrelationToken,
				PayloadVersion:   alexa.PayloadVersion,
			},
			Endpoint: copyEndpoint(directive.Endpoint),
			Payload: alexa.ErrorPayload{
				Type:    errors.AlexaErrorType(err),
				Message: message,
			},
		},
	}
}

func (r *Router) property(capability string, value interface{}) alexa.Property {
	return alexa.Property{
		Namespace:                 capabilities.PropertyNamespaceFor(capability),
		Name:                      capabilities.PropertyNameFor(capability),
		Value:                     value,
		TimeOfSample:              r.now().UTC().Format(time.RFC3339),
		UncertaintyInMilliseconds: responseUncertaintyMs,
	}
}

// acknowledged picks the value the shadow echoed back, falling back to the
// requested value when the echo omitted the key.
func acknowledged(accepted map[string]interface{}, key string, requested interface{}) interface{} {
	if accepted != nil {
		if v, ok := accepted[key]; ok && v != nil {
			return v
		}
	}
	return requested
}

func copyEndpoint(endpoint *alexa.Endpoint) *alexa.Endpoint {
	if endpoint == nil {
		return nil
	}
	copied := *endpoint
	return &copied
}
