package main

import (
    "context"
    "log"
    "net/http"
    "os"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "fleetsim/internal/api"
    "fleetsim/internal/config"
    "fleetsim/internal/metrics"
    "fleetsim/internal/route"
    "fleetsim/internal/seed"
    "fleetsim/internal/sim"
    "fleetsim/internal/store"
)

func main() {
    _ = godotenv.Load()

    cfgPath := os.Getenv("CONFIG_PATH")
    if cfgPath == "" {
        cfgPath = "configs/config.yaml"
    }
    cfg, err := config.Load(cfgPath)
    if err != nil {
        log.Fatalf("config: %v", err)
    }

    metrics.RegisterDefault()

    ctx := context.Background()

    var st store.Store
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        st = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            log.Fatalf("postgres: %v", err)
        }
        if os.Getenv("DB_MIGRATE") != "false" {
            if err := sp.EnsureSchema(ctx); err != nil {
                log.Fatalf("schema: %v", err)
            }
        }
        st = sp
    }

    if cfg.ScenarioPath != "" {
        sc, err := seed.LoadScenario(cfg.ScenarioPath)
        if err != nil {
            log.Fatalf("seed: %v", err)
        }
        if err := seed.Apply(ctx, st, sc); err != nil {
            log.Fatalf("seed: %v", err)
        }
    }

    var provider route.Provider
    if cfg.AmapKey != "" {
        provider = route.NewAmapClient(cfg.AmapKey)
    } else {
        log.Printf("no AMAP_KEY set, using synthetic straight-line routes")
        provider = route.NewSyntheticProvider(cfg.Sim.NominalSpeed)
    }
    routes := route.NewService(st, provider)

    if cfg.Route.PrewarmOnStart {
        go func() {
            prewarmer := route.NewPrewarmer(st, routes, cfg.Route.PrewarmQPS)
            n, err := prewarmer.Prewarm(context.Background())
            if err != nil {
                log.Printf("prewarm: %v", err)
                return
            }
            log.Printf("prewarm: fetched %d routes", n)
        }()
    }

    gen := sim.NewGenerator(st, cfg.Sim.BacklogCap, cfg.Sim.GenProbability, cfg.Sim.BurstSize)
    disp := sim.NewDispatcher(st, cfg.Sim.NominalSpeed)
    motion := sim.NewMotionEngine(st, routes, gen, cfg.Sim.DwellSeconds, cfg.Sim.NominalSpeed)
    engine := sim.NewEngine(st, gen, disp, motion, cfg)

    var broker api.EventBroker
    if cfg.RedisURL != "" {
        if rb, err := api.NewRedisBroker(cfg.RedisURL); err == nil {
            broker = rb
        } else {
            log.Printf("redis broker unavailable, falling back to in-memory: %v", err)
            broker = api.NewBroker()
        }
    } else {
        broker = api.NewBroker()
    }

    srvDeps := api.NewServer(st, engine, motion, routes, broker)

    mux := http.NewServeMux()

    // Simulation lifecycle
    mux.HandleFunc("/api/simulation/start", api.WithMetrics("/api/simulation/start", srvDeps.SimulationStartHandler))
    mux.HandleFunc("/api/simulation/stop", api.WithMetrics("/api/simulation/stop", srvDeps.SimulationStopHandler))
    mux.HandleFunc("/api/simulation/status", api.WithMetrics("/api/simulation/status", srvDeps.SimulationStatusHandler))
    mux.HandleFunc("/api/simulation/sessions", api.WithMetrics("/api/simulation/sessions", srvDeps.SessionsHandler))

    // Fleet and demand queries
    mux.HandleFunc("/api/vehicles", api.WithMetrics("/api/vehicles", srvDeps.VehiclesHandler))
    mux.HandleFunc("/api/vehicles/speed", api.WithMetrics("/api/vehicles/speed", srvDeps.VehicleSpeedHandler))
    mux.HandleFunc("/api/demands", api.WithMetrics("/api/demands", srvDeps.DemandsHandler))

    // Telemetry stream
    mux.HandleFunc("/ws/vehicles", srvDeps.VehiclesWSHandler)

    // Health and metrics
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    telemetry := api.NewTelemetry(st, motion, broker, cfg.Sim.TelemetryInterval)
    telemetry.Start()

    srv := &http.Server{
        Addr:              cfg.HTTPAddr,
        Handler:           logMiddleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Printf("fleetsim listening on %s", cfg.HTTPAddr)
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        dur := time.Since(start)
        log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}
