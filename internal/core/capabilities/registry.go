// Package capabilities maps device capability names to Alexa interface
// namespaces, property names and display categories. Lookups never fail:
// unknown capabilities degrade to the power mapping, unknown templates to
// the SWITCH category.
package capabilities

import (
	"strings"

	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/models"
)

// Capability names as the firmware reports them.
const (
	Power             = "power"
	Brightness        = "brightness"
	Color             = "color"
	Lock              = "lock"
	SensorContact     = "sensorContact"
	SensorTemperature = "sensorTemperature"

	// modePrefix marks instance capabilities, e.g. "mode:fan_speed".
	modePrefix = "mode:"
)

const (
	capabilityTypeInterface = "AlexaInterface"
	interfaceVersion        = "3"
	friendlyNameLocale      = "pt-BR"
)

var propertyNamespaces = map[string]string{
	Power:             alexa.NamespacePowerController,
	Brightness:        alexa.NamespaceBrightnessController,
	Color:             alexa.NamespaceColorController,
	Lock:              alexa.NamespaceLockController,
	SensorContact:     alexa.NamespaceContactSensor,
	SensorTemperature: alexa.NamespaceTemperatureSensor,
}

var propertyNames = map[string]string{
	Power:             "powerState",
	Brightness:        "brightness",
	Color:             "color",
	Lock:              "lockState",
	SensorContact:     "detectionState",
	SensorTemperature: "temperature",
}

var displayCategories = map[string]string{
	"switch":             "SWITCH",
	"light":              "LIGHT",
	"light_rgb":          "LIGHT",
	"light_brightness":   "LIGHT",
	"smartlock":          "SMARTLOCK",
	"contact_sensor":     "CONTACT_SENSOR",
	"temperature_sensor": "TEMPERATURE_SENSOR",
	"doorbell":           "DOORBELL",
}

// Friendly labels for known mode instances and values. Lookups fall back to
// the raw string so unrecognized modes still discover.
var modeFriendlyNames = map[string]string{
	"fan_speed": "velocidade",
	"open_mode": "abertura",
}

var modeFriendlyValues = map[string]string{
	"low":    "baixa",
	"medium": "média",
	"high":   "alta",
	"auto":   "automática",
	"open":   "aberto",
	"closed": "fechado",
}

// IsMode reports whether the capability is a mode instance capability.
func IsMode(capability string) bool {
	return strings.HasPrefix(capability, modePrefix)
}

// ModeInstance returns the instance name of a mode capability.
func ModeInstance(capability string) string {
	return strings.TrimPrefix(capability, modePrefix)
}

// ModeCapability builds the capability name for a mode instance.
func ModeCapability(instance string) string {
	return modePrefix + instance
}

// PropertyNamespaceFor returns the Alexa interface namespace for a
// capability. Unknown capabilities map to the power namespace.
func PropertyNamespaceFor(capability string) string {
	if IsMode(capability) {
		return alexa.NamespaceModeController
	}
	if ns, ok := propertyNamespaces[capability]; ok {
		return ns
	}
	return propertyNamespaces[Power]
}

// PropertyNameFor returns the reported property name for a capability.
// Unknown capabilities map to the power property.
func PropertyNameFor(capability string) string {
	if IsMode(capability) {
		return "mode"
	}
	if name, ok := propertyNames[capability]; ok {
		return name
	}
	return propertyNames[Power]
}

// DisplayCategoryFor returns the display category for a device template,
// falling back to SWITCH.
func DisplayCategoryFor(template string) string {
	if category, ok := displayCategories[template]; ok {
		return category
	}
	return displayCategories["switch"]
}

// Descriptor builds the discovery descriptor for one capability. Mode
// capabilities get an ordered supportedModes configuration with localized
// value labels; everything else advertises a single retrievable,
// proactively reported property.
func Descriptor(capability string, modeValues []string) alexa.CapabilityDescriptor {
	if IsMode(capability) {
		return modeDescriptor(ModeInstance(capability), modeValues)
	}

	return alexa.CapabilityDescriptor{
		Type:      capabilityTypeInterface,
		Interface: PropertyNamespaceFor(capability),
		Version:   interfaceVersion,
		Properties: &alexa.CapabilityProperties{
			Supported:           []alexa.SupportedProperty{{Name: PropertyNameFor(capability)}},
			ProactivelyReported: true,
			Retrievable:         true,
		},
	}
}

func modeDescriptor(instance string, values []string) alexa.CapabilityDescriptor {
	supported := make([]alexa.SupportedMode, 0, len(values))
	for _, value := range values {
		supported = append(supported, alexa.SupportedMode{
			Value:         value,
			ModeResources: friendlyResources(lookupOrIdentity(modeFriendlyValues, value)),
		})
	}

	nonControllable := false
	return alexa.CapabilityDescriptor{
		Type:      capabilityTypeInterface,
		Interface: alexa.NamespaceModeController,
		Instance:  instance,
		Version:   interfaceVersion,
		Properties: &alexa.CapabilityProperties{
			Supported:           []alexa.SupportedProperty{{Name: "mode"}},
			ProactivelyReported: true,
			Retrievable:         true,
			NonControllable:     &nonControllable,
		},
		CapabilityResources: resourcesPtr(friendlyResources(lookupOrIdentity(modeFriendlyNames, instance))),
		Configuration: &alexa.ModeConfiguration{
			Ordered:        true,
			SupportedModes: supported,
		},
	}
}

// BaseCapability is the implicit base Alexa interface every endpoint with a
// template or at least one capability advertises.
func BaseCapability() alexa.CapabilityDescriptor {
	return alexa.CapabilityDescriptor{
		Type:      capabilityTypeInterface,
		Interface: alexa.NamespaceAlexa,
		Version:   interfaceVersion,
	}
}

// EndpointHealthCapability is the implicit connectivity interface every
// endpoint advertises.
func EndpointHealthCapability() alexa.CapabilityDescriptor {
	return alexa.CapabilityDescriptor{
		Type:      capabilityTypeInterface,
		Interface: alexa.NamespaceEndpointHealth,
		Version:   interfaceVersion,
		Properties: &alexa.CapabilityProperties{
			Supported:           []alexa.SupportedProperty{{Name: "connectivity"}},
			ProactivelyReported: false,
			Retrievable:         true,
		},
	}
}

// BuildEndpoint assembles the full discovery endpoint descriptor for a
// device: category, implicit capabilities and one descriptor per declared
// capability and mode.
func BuildEndpoint(device *models.Device) alexa.DiscoveryEndpoint {
	descriptors := []alexa.CapabilityDescriptor{EndpointHealthCapability()}

	if device.Template != "" || len(device.Capabilities) > 0 {
		descriptors = append(descriptors, BaseCapability())
	}

	modeValues := make(map[string][]string, len(device.Modes))
	for _, mode := range device.Modes {
		modeValues[mode.Name] = mode.Values
	}

	for _, capability := range device.Capabilities {
		if IsMode(capability) {
			descriptors = append(descriptors, Descriptor(capability, modeValues[ModeInstance(capability)]))
			continue
		}
		descriptors = append(descriptors, Descriptor(capability, nil))
	}

	return alexa.DiscoveryEndpoint{
		EndpointID:        device.DeviceID,
		ManufacturerName:  "Guirra DIY",
		FriendlyName:      device.Name,
		Description:       "Smart Home DIY",
		DisplayCategories: []string{DisplayCategoryFor(device.Template)},
		Capabilities:      descriptors,
	}
}

func lookupOrIdentity(table map[string]string, key string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return key
}

func friendlyResources(text string) alexa.Resources {
	return alexa.Resources{
		FriendlyNames: []alexa.FriendlyName{
			{
				Type: "text",
				Value: alexa.FriendlyNameValue{
					Text:   text,
					Locale: friendlyNameLocale,
				},
			},
		},
	}
}

func resourcesPtr(r alexa.Resources) *alexa.Resources {
	return &r
}
