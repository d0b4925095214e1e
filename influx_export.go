package w1

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
)

const defaultInfluxMeasurement = "w1"

// InfluxExport forwards good readings to an InfluxDB bucket, one point
// per poll cycle, tagged with the device identifier.
type InfluxExport struct {
	Host         string
	Organization string
	Bucket       string
	Measurement  string
	Token        string

	client   influxdb2.Client
	writeApi api.WriteAPI
	ready    bool
}

func (ie *InfluxExport) Setup() error {
	if len(ie.Host) == 0 {
		return errors.New("influx host not set")
	}

	ie.client = influxdb2.NewClient(ie.Host, ie.Token)
	ie.writeApi = ie.client.WriteAPI(ie.Organization, ie.Bucket)
	ie.ready = true

	return nil
}

func (ie *InfluxExport) IsReady() bool {
	return ie.ready
}

func (ie *InfluxExport) measurement() string {
	if len(ie.Measurement) > 0 {
		return ie.Measurement
	}
	return defaultInfluxMeasurement
}

// Write queues one reading; the client batches and sends in the
// background.
func (ie *InfluxExport) Write(device DeviceID, value Temperature) {
	if !ie.ready {
		return
	}

	point := influxdb2.NewPoint(ie.measurement(),
		map[string]string{"device": string(device)},
		map[string]interface{}{"temperature": value.Celsius()},
		time.Now())
	ie.writeApi.WritePoint(point)
}

func (ie *InfluxExport) Close() {
	if ie.client != nil {
		ie.writeApi.Flush()
		ie.client.Close()
	}
	ie.ready = false
}

// influxSink adapts the exporter to the Sink interface for one device.
type influxSink struct {
	export *InfluxExport
	device DeviceID
}

func (is *influxSink) Set(value Temperature) {
	is.export.Write(is.device, value)
}
