package api

import (
    "context"
    "log"
    "time"

    "fleetsim/internal/sim"
    "fleetsim/internal/store"
)

// Telemetry periodically publishes a fleet snapshot to the broker for
// websocket subscribers. Idle vehicles are included so a map client can
// render the whole fleet from any single frame.
type Telemetry struct {
    Store    store.Store
    Motion   *sim.MotionEngine
    Broker   EventBroker
    Interval time.Duration
    Stop     chan struct{}
}

func NewTelemetry(st store.Store, motion *sim.MotionEngine, broker EventBroker, interval time.Duration) *Telemetry {
    if interval <= 0 { interval = 5 * time.Second }
    return &Telemetry{Store: st, Motion: motion, Broker: broker, Interval: interval, Stop: make(chan struct{})}
}

func (t *Telemetry) Start() {
    go func() {
        ticker := time.NewTicker(t.Interval)
        defer ticker.Stop()
        for {
            select {
            case <-t.Stop:
                return
            case <-ticker.C:
                t.pushOnce()
            }
        }
    }()
}

func (t *Telemetry) pushOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    vehicles, err := t.Store.FindVehicles(ctx, "")
    if err != nil {
        log.Printf("telemetry: vehicle snapshot failed: %v", err)
        return
    }
    views := t.Motion.Overlay(vehicles)
    t.Broker.Publish(vehiclesTopic, Event{
        Type: "vehicles.snapshot",
        Data: map[string]any{"ts": time.Now().UTC().Format(time.RFC3339), "vehicles": views},
    })
}
