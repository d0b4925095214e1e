package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/hubertat/servicemaker"

	"github.com/efrecon/w1"
)

var (
	Version string
	Build   string

	config      = flag.String("config", "config.json", "path of the configuration file")
	flagInstall = flag.Bool("install", false, "Install service in os")
	flagList    = flag.Bool("list", false, "list attached temperature devices and exit")
	readTimeout = flag.String("read-timeout", "0s", "abort a single sensor read after this duration (0 disables)")

	w1Service = servicemaker.ServiceMaker{
		User:               "w1",
		ServicePath:        "/etc/systemd/system/w1.service",
		ServiceDescription: "w1 service: 1-wire temperature sensor poller with HomeKit, MQTT, HTTP and InfluxDB surfaces",
		ExecDir:            "/srv/w1",
		ExecName:           "w1",
	}
)

func main() {
	log.Printf("w1 %s started\n", Version)
	flag.Parse()

	if *flagInstall {
		err := w1Service.InstallService()
		if err != nil {
			panic(err)
		} else {
			log.Println("service installed!")
			return
		}
	}

	kit := &w1.Kit{}
	configFile, err := os.Open(*config)
	if err == nil {
		cBuff, err := io.ReadAll(configFile)
		if err != nil {
			log.Fatalf("failed reading config file: %v\n", err)
		}

		err = json.Unmarshal(cBuff, kit)
		if err != nil {
			log.Fatalf("failed unmarshalling json config: %v", err)
		}
	} else {
		log.Fatalf("can't find/open config file (%s), will terminate. Reason: \n%v\n", *config, err)
	}

	timeout, err := time.ParseDuration(*readTimeout)
	if err != nil {
		log.Fatalf("bad read-timeout: %v", err)
	}
	kit.ReadTimeout = timeout

	log.Println("will init w1 bus...")
	err = kit.InitBus()
	defer kit.Close()
	if err != nil {
		panic(err)
	}

	if *flagList {
		devices, err := kit.ListDevices("")
		if err != nil {
			log.Fatalf("failed listing devices: %v", err)
		}
		for _, device := range devices {
			log.Printf("found device: %s (family %s)\n", device, device.Family())
		}
		return
	}

	if len(kit.MqttBroker) > 0 {
		log.Println("will connect mqtt broker...")
		err = kit.InitMqtt()
		if err != nil {
			log.Printf("mqtt init failed, continuing without: %v\n", err)
		}
	}

	if kit.Influx != nil {
		log.Println("will init influx export...")
		err = kit.InitInflux()
		if err != nil {
			log.Printf("influx init failed, continuing without: %v\n", err)
		}
	}

	if len(kit.HttpAddr) > 0 {
		err = kit.StartHTTP()
		if err != nil {
			panic(err)
		}
	}

	err = kit.BindSensors()
	if err != nil {
		panic(err)
	}

	if len(kit.HkPin) == 8 {
		log.Println("Starting with HomeKit server")
		log.Fatal(kit.StartHomeKit(context.Background(), Version))
	} else {
		log.Println("HomeKit not configured, disabled")
		select {}
	}
}
