package api

import (
    "net/http"
    "strconv"
    "time"

    "fleetsim/internal/metrics"
    "fleetsim/internal/route"
    "fleetsim/internal/sim"
    "fleetsim/internal/store"
)

type Server struct {
    Store  store.Store
    Engine *sim.Engine
    Motion *sim.MotionEngine
    Routes *route.Service
    Broker EventBroker
}

func NewServer(st store.Store, engine *sim.Engine, motion *sim.MotionEngine, routes *route.Service, broker EventBroker) *Server {
    if broker == nil {
        broker = NewBroker()
    }
    return &Server{Store: st, Engine: engine, Motion: motion, Routes: routes, Broker: broker}
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

// WithMetrics wraps a handler with request counting and latency tracking.
func WithMetrics(path string, h http.HandlerFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        start := time.Now()
        h(rec, r)
        status := strconv.Itoa(rec.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
    }
}
