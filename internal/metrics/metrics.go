package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the simulator
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // Ticks counts completed clock ticks by outcome
    Ticks = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "sim_ticks_total", Help: "Simulation ticks by outcome."},
        []string{"outcome"},
    )
    // TickDuration tracks wall time spent advancing one tick
    TickDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "sim_tick_duration_seconds", Help: "Wall time per simulation tick.", Buckets: prometheus.DefBuckets},
    )
    // DispatchDuration tracks wall time of one dispatch pass
    DispatchDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "sim_dispatch_duration_seconds", Help: "Wall time per dispatch pass.", Buckets: prometheus.DefBuckets},
    )
    // Assignments counts demand-to-vehicle assignments by strategy
    Assignments = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "sim_assignments_total", Help: "Demand assignments by strategy."},
        []string{"strategy"},
    )
    // DemandsGenerated counts demands created by the generator
    DemandsGenerated = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "sim_demands_generated_total", Help: "Demands created by the generator."},
    )
    // DemandsCompleted counts demands delivered end to end
    DemandsCompleted = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "sim_demands_completed_total", Help: "Demands delivered."},
    )
    // VehiclesByStatus gauges the fleet split by status
    VehiclesByStatus = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "sim_vehicles_by_status", Help: "Vehicles per status."},
        []string{"status"},
    )
    // RouteCacheLookups counts route cache hits and misses
    RouteCacheLookups = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "sim_route_cache_lookups_total", Help: "Route cache lookups by result."},
        []string{"result"},
    )
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(Ticks)
        Registry.MustRegister(TickDuration)
        Registry.MustRegister(DispatchDuration)
        Registry.MustRegister(Assignments)
        Registry.MustRegister(DemandsGenerated)
        Registry.MustRegister(DemandsCompleted)
        Registry.MustRegister(VehiclesByStatus)
        Registry.MustRegister(RouteCacheLookups)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
