package alexa

import "encoding/json"

// PayloadVersion is the Smart Home API version spoken on every envelope.
const PayloadVersion = "3"

// Interface namespaces
const (
	NamespaceAlexa                = "Alexa"
	NamespaceDiscovery            = "Alexa.Discovery"
	NamespaceAuthorization        = "Alexa.Authorization"
	NamespacePowerController      = "Alexa.PowerController"
	NamespaceBrightnessController = "Alexa.BrightnessController"
	NamespaceColorController      = "Alexa.ColorController"
	NamespaceLockController       = "Alexa.LockController"
	NamespaceModeController       = "Alexa.ModeController"
	NamespaceContactSensor        = "Alexa.ContactSensor"
	NamespaceTemperatureSensor    = "Alexa.TemperatureSensor"
	NamespaceDoorbellEventSource  = "Alexa.DoorbellEventSource"
	NamespaceEndpointHealth       = "Alexa.EndpointHealth"
)

// Header names
const (
	NameTurnOn              = "TurnOn"
	NameTurnOff             = "TurnOff"
	NameSetBrightness       = "SetBrightness"
	NameSetColor            = "SetColor"
	NameLock                = "Lock"
	NameUnlock              = "Unlock"
	NameSetMode             = "SetMode"
	NameReportState         = "ReportState"
	NameStateReport         = "StateReport"
	NameResponse            = "Response"
	NameErrorResponse       = "ErrorResponse"
	NameDiscover            = "Discover"
	NameDiscoverResponse    = "Discover.Response"
	NameAddOrUpdateReport   = "AddOrUpdateReport"
	NameChangeReport        = "ChangeReport"
	NameDoorbellPress       = "DoorbellPress"
	NameAcceptGrant         = "AcceptGrant"
	NameAcceptGrantResponse = "AcceptGrant.Response"
)

// CausePhysicalInteraction marks a change triggered on the device itself.
const CausePhysicalInteraction = "PHYSICAL_INTERACTION"

// DirectiveRequest is the inbound envelope from the Alexa cloud
type DirectiveRequest struct {
	Directive Directive `json:"directive"`
}

// Directive carries the header, the target endpoint and the raw payload
type Directive struct {
	Header   Header          `json:"header"`
	Endpoint *Endpoint       `json:"endpoint,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Header contains envelope metadata
type Header struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	PayloadVersion   string `json:"payloadVersion"`
	MessageID        string `json:"messageId"`
	CorrelationToken string `json:"correlationToken,omitempty"`
	Instance         string `json:"instance,omitempty"`
}

// Scope carries the bearer credential
type Scope struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Endpoint identifies a device
type Endpoint struct {
	Scope      *Scope            `json:"scope,omitempty"`
	EndpointID string            `json:"endpointId"`
	Cookie     map[string]string `json:"cookie,omitempty"`
}

// Property is a single reported capability property
type Property struct {
	Namespace                 string      `json:"namespace"`
	Instance                  string      `json:"instance,omitempty"`
	Name                      string      `json:"name"`
	Value                     interface{} `json:"value"`
	TimeOfSample              string      `json:"timeOfSample"`
	UncertaintyInMilliseconds int         `json:"uncertaintyInMilliseconds"`
}

// Context carries property state alongside an event
type Context struct {
	Properties []Property `json:"properties"`
}

// Event is the event half of an outbound envelope
type Event struct {
	Header   Header      `json:"header"`
	Endpoint *Endpoint   `json:"endpoint,omitempty"`
	Payload  interface{} `json:"payload"`
}

// Response is the outbound envelope, both for directive responses and for
// proactive reports sent to the event gateway.
type Response struct {
	Event   Event    `json:"event"`
	Context *Context `json:"context,omitempty"`
}

// ErrorPayload is the payload of an ErrorResponse
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Cause describes what triggered a change
type Cause struct {
	Type string `json:"type"`
}

// Change is the changed-property half of a ChangeReport payload
type Change struct {
	Cause      Cause      `json:"cause"`
	Properties []Property `json:"properties"`
}

// ChangePayload is the payload of a ChangeReport
type ChangePayload struct {
	Change Change `json:"change"`
}

// DoorbellPayload is the payload of a DoorbellPress event
type DoorbellPayload struct {
	Timestamp string `json:"timestamp"`
}

// DiscoveryPayload lists discovered endpoints. Scope is present on
// AddOrUpdateReport payloads sent to the event gateway.
type DiscoveryPayload struct {
	Endpoints []DiscoveryEndpoint `json:"endpoints"`
	Scope     *Scope              `json:"scope,omitempty"`
}

// DiscoveryEndpoint describes one discoverable device
type DiscoveryEndpoint struct {
	EndpointID        string                 `json:"endpointId"`
	ManufacturerName  string                 `json:"manufacturerName"`
	FriendlyName      string                 `json:"friendlyName"`
	Description       string                 `json:"description"`
	DisplayCategories []string               `json:"displayCategories"`
	Capabilities      []CapabilityDescriptor `json:"capabilities"`
}

// CapabilityDescriptor advertises one capability interface of an endpoint
type CapabilityDescriptor struct {
	Type                string                `json:"type"`
	Interface           string                `json:"interface"`
	Instance            string                `json:"instance,omitempty"`
	Version             string                `json:"version"`
	Properties          *CapabilityProperties `json:"properties,omitempty"`
	CapabilityResources *Resources            `json:"capabilityResources,omitempty"`
	Configuration       *ModeConfiguration    `json:"configuration,omitempty"`
}

// CapabilityProperties lists the properties an interface supports
type CapabilityProperties struct {
	Supported           []SupportedProperty `json:"supported"`
	ProactivelyReported bool                `json:"proactivelyReported"`
	Retrievable         bool                `json:"retrievable"`
	NonControllable     *bool               `json:"nonControllable,omitempty"`
}

// SupportedProperty names one supported property
type SupportedProperty struct {
	Name string `json:"name"`
}

// Resources holds localized friendly names
type Resources struct {
	FriendlyNames []FriendlyName `json:"friendlyNames"`
}

// FriendlyName is one localized label
type FriendlyName struct {
	Type  string            `json:"@type"`
	Value FriendlyNameValue `json:"value"`
}

// FriendlyNameValue is the text/locale pair of a friendly name
type FriendlyNameValue struct {
	Text   string `json:"text"`
	Locale string `json:"locale"`
}

// ModeConfiguration describes the ordered values of a mode instance
type ModeConfiguration struct {
	Ordered        bool            `json:"ordered"`
	SupportedModes []SupportedMode `json:"supportedModes"`
}

// SupportedMode is one allowed mode value with its resources
type SupportedMode struct {
	Value         string    `json:"value"`
	ModeResources Resources `json:"modeResources"`
}

// ColorValue is the HSB color tuple as Alexa represents it
type ColorValue struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Brightness float64 `json:"brightness"`
}

// TemperatureValue is a sensor temperature reading with its scale
type TemperatureValue struct {
	Value float64 `json:"value"`
	Scale string  `json:"scale"`
}
