// Package main runs a demo WebSocket client for fleet telemetry.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Start a simulation session
	body := []byte(`{"useWeighted":true,"weightTime":1,"weightWastedLoad":1,"weightWastedIdle":1}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/api/simulation/start", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var startResp struct {
		Session struct {
			ID          string `json:"id"`
			SessionName string `json:"sessionName"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&startResp); err != nil {
		log.Fatal(err)
	}
	log.Printf("Session: %s (%s)", startResp.Session.SessionName, startResp.Session.ID)

	// Connect WS and print snapshots for a minute
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws/vehicles"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_ = c.SetReadDeadline(time.Now().Add(30 * time.Second))
		var evt struct {
			Type string `json:"type"`
			Data struct {
				TS       string            `json:"ts"`
				Vehicles []json.RawMessage `json:"vehicles"`
			} `json:"data"`
		}
		if err := c.ReadJSON(&evt); err != nil {
			log.Fatal(err)
		}
		log.Printf("%s at %s: %d vehicles", evt.Type, evt.Data.TS, len(evt.Data.Vehicles))
	}

	// Stop the session
	req, _ = http.NewRequest(http.MethodPost, base+"/api/simulation/stop", nil)
	if resp, err := http.DefaultClient.Do(req); err == nil {
		_ = resp.Body.Close()
	}
}
