package w1

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

const httpTimeoutsMs = 3000

type sensorReading struct {
	Device      string  `json:"device"`
	Name        string  `json:"name,omitempty"`
	Type        string  `json:"type,omitempty"`
	Temperature float64 `json:"temperature"`
	Valid       bool    `json:"valid"`
	LastUpdate  string  `json:"lastUpdate,omitempty"`
}

// readingHub fans live readings out to websocket subscribers.
type readingHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newReadingHub() *readingHub {
	return &readingHub{clients: make(map[*websocket.Conn]bool)}
}

func (h *readingHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *readingHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *readingHub) broadcast(reading sensorReading) {
	payload, err := json.Marshal(reading)
	if err != nil {
		return
	}

	h.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(conn)
		}
	}
}

// hubSink pushes the readings of one device into the hub.
type hubSink struct {
	hub    *readingHub
	device DeviceID
}

func (hs *hubSink) Set(value Temperature) {
	hs.hub.broadcast(sensorReading{
		Device:      string(hs.device),
		Temperature: value.Celsius(),
		Valid:       value.Valid(),
	})
}

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StartHTTP serves the sensor readings over HTTP: a JSON listing, a
// per-device endpoint and a websocket stream of live readings. Must be
// called before BindSensors for the stream to carry every sensor.
func (k *Kit) StartHTTP() error {
	if len(k.HttpAddr) == 0 {
		return errors.New("http address not set")
	}

	k.hub = newReadingHub()

	handler := httprouter.New()
	handler.GET("/sensors", k.handleSensors)
	handler.GET("/sensors/:device", k.handleSensor)
	handler.GET("/live", k.handleLive)

	httpTimeout := httpTimeoutsMs * time.Millisecond

	server := &http.Server{
		Addr:              k.HttpAddr,
		Handler:           handler,
		ReadHeaderTimeout: httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			k.log().Error("http server stopped", "err", err)
		}
	}()

	k.log().Info("http server listening", "addr", k.HttpAddr)
	return nil
}

func (k *Kit) readingFor(sensor *Sensor) sensorReading {
	reading := sensorReading{
		Device: sensor.Device,
		Name:   sensor.Name,
	}
	if binding := sensor.Binding(); binding != nil {
		reading.Type = binding.Type()
	}

	value, err := sensor.Value()
	if err == nil {
		reading.Temperature = value.Celsius()
		reading.Valid = true
		reading.LastUpdate = sensor.LastUpdate().Format(time.RFC3339)
	} else {
		reading.Temperature = ErrorValue.Celsius()
	}

	return reading
}

func (k *Kit) handleSensors(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	readings := []sensorReading{}
	for _, sensor := range k.Sensors {
		readings = append(readings, k.readingFor(sensor))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(readings)
}

func (k *Kit) handleSensor(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	for _, sensor := range k.Sensors {
		if sensor.Device == p.ByName("device") {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(k.readingFor(sensor))
			return
		}
	}

	http.Error(w, "sensor not found", http.StatusNotFound)
}

func (k *Kit) handleLive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		k.log().Error("websocket upgrade failed", "err", err)
		return
	}

	k.hub.add(conn)

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			k.hub.remove(conn)
			return
		}
	}
}
