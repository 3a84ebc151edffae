package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const vehiclesTopic = "vehicles"

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// VehiclesWSHandler streams fleet telemetry over /ws/vehicles. Each
// published snapshot is forwarded as one JSON frame; slow consumers drop
// frames rather than stall the broker.
func (s *Server) VehiclesWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(vehiclesTopic)
	defer s.Broker.Unsubscribe(vehiclesTopic, ch)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	done := make(chan struct{})
	// Drain the read side so pings are answered and closes noticed.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}
