package w1

import "time"

// Binding is a standing association between a device and a sink, kept
// fresh by periodic polling. It runs until the process exits unless Stop
// is called.
type Binding struct {
	device     DeviceID
	sensorType string
	period     time.Duration
	sink       Sink
	poller     *Poller
}

func (b *Binding) Device() DeviceID {
	return b.device
}

// Type returns the resolved sensor model the binding reads.
func (b *Binding) Type() string {
	return b.sensorType
}

func (b *Binding) Period() time.Duration {
	return b.period
}

// Stop ends the polling. The sink keeps whatever value it last received.
func (b *Binding) Stop() {
	b.poller.Stop()
}
