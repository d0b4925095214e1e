package w1

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	dnslog "github.com/brutella/dnssd/log"
	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	hklog "github.com/brutella/hap/log"
	"github.com/eclipse/paho.golang/paho"
	"github.com/pkg/errors"

	"github.com/efrecon/w1/drivers"
	"github.com/efrecon/w1/mqtt"
)

const defaultHomeKitDirectory = "./homekit"
const homeKitBridgeName = "w1"

const defaultBindPeriod = 10 * time.Second

// streamRetryInterval is how long the kit waits before polling a source
// again after it reported no complete line.
const streamRetryInterval = 50 * time.Millisecond

// Kit ties a 1-wire bus to the configured sensors and the surfaces that
// republish their readings. The exported fields come straight from the
// JSON configuration file.
type Kit struct {
	Name string

	Sensors []*Sensor

	HkPin       string
	HkDirectory string
	HkAddress   string
	HkDebug     bool

	MqttBroker string
	HttpAddr   string

	Sysfs  *drivers.SysfsBus
	Mock   *drivers.MockBus
	Influx *InfluxExport

	// ReadTimeout bounds one asynchronous read; zero means wait for
	// the stream to end, like the driver protocol promises.
	ReadTimeout time.Duration

	bus        drivers.Bus
	scheduler  Scheduler
	bindings   []*Binding
	mqttClient *mqtt.MqttClient
	hub        *readingHub
	logger     *log.Logger

	mu          sync.Mutex
	deviceLocks map[DeviceID]*sync.Mutex
}

func (k *Kit) log() *log.Logger {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.logger == nil {
		k.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "w1: ",
			Level:  log.GetLevel(),
		})
	}
	return k.logger
}

// Scheduler returns the timing capability in use, defaulting to process
// timers.
func (k *Kit) Scheduler() Scheduler {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.scheduler == nil {
		k.scheduler = timerScheduler{}
	}
	return k.scheduler
}

// SetScheduler replaces the timing capability. Tests use it to step
// through poll cycles manually.
func (k *Kit) SetScheduler(s Scheduler) {
	k.mu.Lock()
	k.scheduler = s
	k.mu.Unlock()
}

// InitBus picks the configured bus driver and prepares it. With nothing
// configured the kernel sysfs tree is used.
func (k *Kit) InitBus() error {
	switch {
	case k.Mock != nil:
		k.bus = k.Mock
	case k.Sysfs != nil:
		k.bus = k.Sysfs
	default:
		k.Sysfs = &drivers.SysfsBus{}
		k.bus = k.Sysfs
	}

	err := k.bus.Setup()
	if err != nil {
		return errors.Wrapf(err, "failed to setup %s bus", k.bus)
	}

	k.log().Info("bus ready", "driver", k.bus.String())
	return nil
}

// SetBus injects a bus directly, bypassing InitBus.
func (k *Kit) SetBus(bus drivers.Bus) {
	k.bus = bus
}

// ListDevices enumerates attached devices whose family matches the
// pattern; an empty pattern matches any family.
func (k *Kit) ListDevices(familyPattern string) (devices []DeviceID, err error) {
	if k.bus == nil {
		err = errors.New("bus not initialized")
		return
	}

	names, err := k.bus.ListDevices(familyPattern)
	if err != nil {
		return
	}

	for _, name := range names {
		devices = append(devices, DeviceID(name))
	}

	return
}

func (k *Kit) deviceLock(device DeviceID) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.deviceLocks == nil {
		k.deviceLocks = make(map[DeviceID]*sync.Mutex)
	}

	lock, found := k.deviceLocks[device]
	if !found {
		lock = &sync.Mutex{}
		k.deviceLocks[device] = lock
	}

	return lock
}

// Temperature performs one blocking read of the device. Every failure
// (device missing, CRC mismatch, malformed output) comes back as
// ErrorValue.
func (k *Kit) Temperature(device DeviceID) Temperature {
	lock := k.deviceLock(device)
	lock.Lock()
	defer lock.Unlock()

	if k.bus == nil {
		return ErrorValue
	}

	source, err := k.bus.Open(string(device))
	if err != nil {
		return ErrorValue
	}

	result := ErrorValue
	session := newReadSession(device, source, func(value Temperature) {
		result = value
	})

	for !session.pump() {
		time.Sleep(streamRetryInterval)
	}

	return result
}

// TemperatureAsync reads the device without blocking the caller; the
// callback receives exactly one value, ErrorValue on any failure. Reads
// of the same device are serialized, so two in-flight requests queue
// rather than race on the driver file.
func (k *Kit) TemperatureAsync(device DeviceID, callback func(Temperature)) {
	go func() {
		lock := k.deviceLock(device)
		lock.Lock()

		if k.bus == nil {
			lock.Unlock()
			callback(ErrorValue)
			return
		}

		source, err := k.bus.Open(string(device))
		if err != nil {
			lock.Unlock()
			callback(ErrorValue)
			return
		}

		session := newReadSession(device, source, func(value Temperature) {
			lock.Unlock()
			callback(value)
		})

		if k.ReadTimeout > 0 {
			k.Scheduler().AfterFunc(k.ReadTimeout, session.abort)
		}

		k.drive(session)
	}()
}

// drive pumps a session, rescheduling itself while the source has no
// complete line yet.
func (k *Kit) drive(session *readSession) {
	if session.pump() {
		return
	}

	k.Scheduler().AfterFunc(streamRetryInterval, func() {
		k.drive(session)
	})
}

// BindSink installs a recurring read of the device that feeds every
// result into the sink. An unknown family without an explicit sensor
// type fails before any polling starts.
func (k *Kit) BindSink(device DeviceID, sink Sink, period time.Duration, sensorType string) (*Binding, error) {
	model, err := resolveSensorType(device, sensorType)
	if err != nil {
		return nil, errors.Wrap(err, "cannot bind sensor")
	}

	if period <= 0 {
		period = defaultBindPeriod
	}

	binding := &Binding{
		device:     device,
		sensorType: model,
		period:     period,
		sink:       sink,
	}

	binding.poller = newPoller(period, func() {
		k.TemperatureAsync(device, sink.Set)
	}, k.Scheduler())

	sink.Set(ErrorValue)
	binding.poller.Start()

	k.mu.Lock()
	k.bindings = append(k.bindings, binding)
	k.mu.Unlock()

	return binding, nil
}

// Bind associates the device with a caller-owned destination variable.
// The destination starts out as ErrorValue and afterwards only ever
// holds good readings: a failed cycle keeps the previous value.
func (k *Kit) Bind(device DeviceID, dest *Temperature, period time.Duration, sensorType string) (*Binding, error) {
	*dest = ErrorValue
	return k.BindSink(device, lastGoodSink{NewVariableSink(dest)}, period, sensorType)
}

// BindSensors installs a binding for every configured sensor, fanning
// readings out to the HomeKit accessory and the optional exporters.
func (k *Kit) BindSensors() error {
	for _, sensor := range k.Sensors {
		err := sensor.Init()
		if err != nil {
			return errors.Wrapf(err, "failed to init sensor %s", sensor.Device)
		}

		period, err := sensor.period()
		if err != nil {
			return errors.Wrapf(err, "bad period for sensor %s", sensor.Device)
		}

		sinks := multiSink{sensor}
		if k.mqttClient != nil {
			sinks = append(sinks, lastGoodSink{&mqttSink{kit: k, device: DeviceID(sensor.Device)}})
		}
		if k.Influx != nil && k.Influx.IsReady() {
			sinks = append(sinks, lastGoodSink{&influxSink{export: k.Influx, device: DeviceID(sensor.Device)}})
		}
		if k.hub != nil {
			sinks = append(sinks, lastGoodSink{&hubSink{hub: k.hub, device: DeviceID(sensor.Device)}})
		}

		binding, err := k.BindSink(DeviceID(sensor.Device), sinks, period, sensor.Type)
		if err != nil {
			return err
		}
		sensor.setBinding(binding)

		k.log().Info("sensor bound", "device", sensor.Device, "type", binding.Type(), "period", period)
	}

	return nil
}

// GetHkAccessories collects the HomeKit accessories of all configured
// sensors.
func (k *Kit) GetHkAccessories(firmwareVersion string) (acc []*accessory.A) {
	acc = []*accessory.A{}

	for _, sensor := range k.Sensors {
		a := sensor.GetHk()
		if a != nil {
			if a.Info != nil && a.Info.FirmwareRevision != nil {
				a.Info.FirmwareRevision.SetValue(firmwareVersion)
			}
			a.Id = sensor.GetUniqueId()
			acc = append(acc, a)
		}
	}

	return
}

// StartHomeKit runs the hap bridge until the context is cancelled or a
// termination signal arrives.
func (k *Kit) StartHomeKit(ctx context.Context, firmwareVersion string) error {
	hkName := k.Name
	if len(hkName) < 1 {
		hkName = homeKitBridgeName
	}
	bridge := accessory.NewBridge(accessory.Info{
		Name:     hkName,
		Firmware: firmwareVersion,
	})

	var store hap.Store
	if len(k.HkDirectory) > 1 {
		store = hap.NewFsStore(k.HkDirectory)
	} else {
		store = hap.NewFsStore(defaultHomeKitDirectory)
	}
	hkServer, err := hap.NewServer(store, bridge.A, k.GetHkAccessories(firmwareVersion)...)
	if err != nil {
		return errors.Wrap(err, "failed to create HomeKit server")
	}
	hkServer.Pin = k.HkPin
	if len(k.HkAddress) > 0 {
		hkServer.Addr = k.HkAddress
	}

	if k.HkDebug {
		hklog.Debug.Enable()
		dnslog.Debug.Enable()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-c
		signal.Stop(c)
		cancel()
	}()

	return hkServer.ListenAndServe(ctx)
}

// InitMqtt connects to the configured broker and registers a read
// trigger topic per sensor.
func (k *Kit) InitMqtt() (err error) {
	if len(k.MqttBroker) == 0 {
		err = errors.New("mqtt broker not set")
		return
	}

	clientName := k.Name
	if len(clientName) == 0 {
		clientName = homeKitBridgeName
	}

	mc, err := mqtt.NewMqttClient(k.MqttBroker, clientName)
	if err != nil {
		err = errors.Wrap(err, "failed to create mqtt client")
		return
	}

	k.mqttClient = mc

	mqttHandlers := []mqtt.MqttHandler{}
	for _, sensor := range k.Sensors {
		mqttHandlers = append(mqttHandlers, &readTrigger{kit: k, sensor: sensor})
	}

	err = mc.Connect(mqttHandlers)
	if err != nil {
		err = errors.Wrap(err, "failed to connect to mqtt broker")
	}

	return
}

// InitInflux prepares the optional InfluxDB exporter.
func (k *Kit) InitInflux() error {
	if k.Influx == nil {
		return errors.New("influx export not configured")
	}

	err := k.Influx.Setup()
	if err != nil {
		return errors.Wrap(err, "failed to setup influx export")
	}

	return nil
}

// Close stops every binding and releases the bus and exporters.
func (k *Kit) Close() (err error) {
	k.mu.Lock()
	bindings := k.bindings
	k.bindings = nil
	k.mu.Unlock()

	for _, binding := range bindings {
		binding.Stop()
	}

	if k.Influx != nil {
		k.Influx.Close()
	}

	if k.bus != nil {
		closeErr := k.bus.Close()
		if closeErr != nil {
			err = errors.Wrap(closeErr, "failed to close bus")
		}
	}

	return
}

// mqttSink republishes readings on the broker.
type mqttSink struct {
	kit    *Kit
	device DeviceID
}

func (ms *mqttSink) Set(value Temperature) {
	topic := fmt.Sprintf("%s/%s/temperature", homeKitBridgeName, ms.device)
	err := ms.kit.mqttClient.Publish(topic, []byte(fmt.Sprintf("%.3f", value.Celsius())))
	if err != nil {
		ms.kit.log().Error("failed to publish reading", "device", ms.device, "err", err)
	}
}

// readTrigger forces an immediate poll of a sensor when anything arrives
// on its read topic.
type readTrigger struct {
	kit    *Kit
	sensor *Sensor
}

func (rt *readTrigger) MqttSubscribeTopic() string {
	return fmt.Sprintf("%s/%s/read", homeKitBridgeName, rt.sensor.Device)
}

func (rt *readTrigger) MqttHandle(pub *paho.Publish) {
	rt.kit.TemperatureAsync(DeviceID(rt.sensor.Device), func(value Temperature) {
		rt.sensor.Set(value)
	})
}
