package w1

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/pkg/errors"
)

const oldDataDuration = 10 * time.Minute

// Sensor is one configured 1-wire thermometer: a device identifier plus
// how often to poll it and how to present it. It doubles as the Sink its
// binding feeds, retaining the last good reading across failed cycles.
type Sensor struct {
	Device string
	Name   string
	Type   string
	Period string

	binding *Binding

	mu         sync.Mutex
	value      Temperature
	lastUpdate time.Time

	hkA           *accessory.Thermometer
	hkStatusFault *characteristic.StatusFault
}

func (s *Sensor) Init() error {
	if !DeviceID(s.Device).Valid() {
		return errors.Errorf("malformed device identifier: %s", s.Device)
	}

	name := s.Name
	if len(name) == 0 {
		name = s.Device
	}

	info := accessory.Info{
		Name:         name,
		SerialNumber: fmt.Sprintf("w1:%s", s.Device),
	}
	s.hkA = accessory.NewTemperatureSensor(info)
	s.hkStatusFault = characteristic.NewStatusFault()
	s.hkStatusFault.SetValue(characteristic.StatusFaultGeneralFault)
	s.hkA.TempSensor.AddC(s.hkStatusFault.C)

	s.value = ErrorValue

	return nil
}

func (s *Sensor) period() (time.Duration, error) {
	if len(s.Period) == 0 {
		return defaultBindPeriod, nil
	}
	return time.ParseDuration(s.Period)
}

// Set receives poll results. A failed reading only flips the fault flag;
// the last good value stays visible.
func (s *Sensor) Set(value Temperature) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !value.Valid() {
		if s.hkStatusFault != nil {
			s.hkStatusFault.SetValue(characteristic.StatusFaultGeneralFault)
		}
		return
	}

	s.value = value
	s.lastUpdate = time.Now()

	if s.hkStatusFault != nil {
		s.hkStatusFault.SetValue(characteristic.StatusFaultNoFault)
	}
	if s.hkA != nil {
		s.hkA.TempSensor.CurrentTemperature.SetValue(value.Celsius())
	}
}

// Value returns the last good reading, or an error when there was none
// yet or the data went stale.
func (s *Sensor) Value() (value Temperature, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastUpdate.IsZero() {
		err = errors.Errorf("sensor %s was never read successfully", s.Device)
		return
	}

	if time.Since(s.lastUpdate) > oldDataDuration {
		err = errors.Errorf("sensor %s data is too old (%v)", s.Device, time.Since(s.lastUpdate))
		return
	}

	value = s.value
	return
}

func (s *Sensor) setBinding(b *Binding) {
	s.mu.Lock()
	s.binding = b
	s.mu.Unlock()
}

// Binding returns the installed binding, nil before BindSensors ran.
func (s *Sensor) Binding() *Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

// LastUpdate returns when the sensor last produced a good reading.
func (s *Sensor) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}

func (s *Sensor) GetHk() *accessory.A {
	if s.hkA == nil {
		return nil
	}
	return s.hkA.A
}

func (s *Sensor) GetUniqueId() uint64 {
	hash := fnv.New64()
	hash.Write([]byte("sensor_" + s.Device))
	return hash.Sum64()
}
