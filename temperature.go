package w1

import (
	"fmt"
	"math"
)

// Temperature is a sensor reading in degrees Celsius.
type Temperature float64

// ErrorValue marks a failed reading. Absolute zero is out of range for
// every supported sensor family, so it doubles as the error marker.
const ErrorValue Temperature = -273.15

// Valid reports whether t carries a real reading.
func (t Temperature) Valid() bool {
	return t != ErrorValue
}

func (t Temperature) Celsius() float64 {
	return float64(t)
}

func (t Temperature) Fahrenheit() float64 {
	return float64(t)*9/5 + 32
}

func (t Temperature) Kelvin() float64 {
	return float64(t) + 273.15
}

// Millidegrees returns the reading in the raw driver unit.
func (t Temperature) Millidegrees() int {
	return int(math.Round(float64(t) * 1000))
}

func (t Temperature) String() string {
	if !t.Valid() {
		return "no reading"
	}
	return fmt.Sprintf("%.3f °C", float64(t))
}

// FromMillidegrees converts a raw driver value to a Temperature.
func FromMillidegrees(milli int) Temperature {
	return Temperature(float64(milli) / 1000)
}
