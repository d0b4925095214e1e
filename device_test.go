package w1

import (
	"strings"
	"testing"
)

func TestDeviceIDValid(t *testing.T) {
	valid := []DeviceID{
		"28-000005e2fdc3",
		"10-0008039a2f11",
		"3b-000000182799",
	}
	invalid := []DeviceID{
		"",
		"28",
		"28-0005e2fdc3",
		"28_000005e2fdc3",
		"2-0000005e2fdc3",
		"w1_bus_master1",
		"28-000005e2fdc3/w1_slave",
	}

	for _, id := range valid {
		if !id.Valid() {
			t.Errorf("expected %s to be valid", id)
		}
	}
	for _, id := range invalid {
		if id.Valid() {
			t.Errorf("expected %s to be invalid", id)
		}
	}
}

func TestDeviceIDParts(t *testing.T) {
	id := DeviceID("28-000005e2fdc3")

	if id.Family() != "28" {
		t.Errorf("family got: %s, want: 28", id.Family())
	}
	if id.Serial() != "000005e2fdc3" {
		t.Errorf("serial got: %s, want: 000005e2fdc3", id.Serial())
	}
}

func TestResolveSensorTypeFromFamily(t *testing.T) {
	cases := map[DeviceID]string{
		"10-0008039a2f11": "DS18S20",
		"22-000000182799": "DS1822",
		"28-000005e2fdc3": "DS18B20",
		"3b-000000182799": "DS1825",
		"42-000000182799": "DS28EA00",
	}

	for id, want := range cases {
		got, err := resolveSensorType(id, "")
		if err != nil {
			t.Errorf("resolveSensorType(%s) returned err: %v", id, err)
		}
		if got != want {
			t.Errorf("resolveSensorType(%s) got: %s, want: %s", id, got, want)
		}
	}
}

func TestResolveSensorTypeExplicitWins(t *testing.T) {
	got, err := resolveSensorType("99-000005e2fdc3", "MAX31850")
	if err != nil {
		t.Errorf("explicit type should not error, got: %v", err)
	}
	if got != "MAX31850" {
		t.Errorf("got: %s, want: MAX31850", got)
	}
}

func TestResolveSensorTypeUnknownFamily(t *testing.T) {
	_, err := resolveSensorType("99-000005e2fdc3", "")
	if err == nil {
		t.Fatal("expected error for unknown family without explicit type")
	}
	if !strings.Contains(err.Error(), "99") {
		t.Errorf("error should name the family, got: %v", err)
	}
}

func TestTemperatureUnits(t *testing.T) {
	temp := FromMillidegrees(21562)

	assertFloats(t, temp.Celsius(), 21.562)
	assertInts(t, temp.Millidegrees(), 21562)
	assertFloats(t, temp.Kelvin(), 21.562+273.15)
	assertFloats(t, temp.Fahrenheit(), 21.562*9/5+32)
}

func TestErrorValueInvalid(t *testing.T) {
	if ErrorValue.Valid() {
		t.Error("ErrorValue must not be a valid reading")
	}
	if !FromMillidegrees(21562).Valid() {
		t.Error("a real reading must be valid")
	}
}
