package w1

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// DeviceID identifies a single 1-wire slave: a two-hex-digit family code,
// a dash and a twelve-hex-digit serial, as exposed by the kernel driver.
type DeviceID string

var deviceIdPattern = regexp.MustCompile(`^[0-9a-f]{2}-[0-9a-f]{12}$`)

// temperatureFamilies maps family codes of known temperature sensors to
// their model names.
var temperatureFamilies = map[string]string{
	"10": "DS18S20",
	"22": "DS1822",
	"28": "DS18B20",
	"3b": "DS1825",
	"42": "DS28EA00",
}

// Valid reports whether id has the FF-XXXXXXXXXXXX shape.
func (id DeviceID) Valid() bool {
	return deviceIdPattern.MatchString(strings.ToLower(string(id)))
}

// Family returns the two-hex-digit family code of the device.
func (id DeviceID) Family() string {
	if !id.Valid() {
		return ""
	}
	return strings.ToLower(string(id))[:2]
}

// Serial returns the serial part of the device identifier.
func (id DeviceID) Serial() string {
	if !id.Valid() {
		return ""
	}
	return strings.ToLower(string(id))[3:]
}

func (id DeviceID) String() string {
	return string(id)
}

// resolveSensorType returns the sensor model for id. An explicit type
// always wins; otherwise the model is looked up from the family code.
// An unknown family with no explicit type is a configuration error.
func resolveSensorType(id DeviceID, explicit string) (string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}

	if !id.Valid() {
		return "", errors.Errorf("malformed device identifier: %s", id)
	}

	model, known := temperatureFamilies[id.Family()]
	if !known {
		return "", errors.Errorf("device %s: family %s is not a known temperature sensor, set the type explicitly", id, id.Family())
	}

	return model, nil
}
