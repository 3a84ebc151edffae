package sim

import (
    "context"
    "errors"
    "fmt"
    "log"
    "runtime"
    "sync"
    "sync/atomic"
    "time"

    "fleetsim/internal/config"
    "fleetsim/internal/metrics"
    "fleetsim/internal/model"
    "fleetsim/internal/store"
)

var (
    ErrAlreadyRunning = errors.New("sim: already running")
    ErrNotRunning     = errors.New("sim: not running")
)

// Engine owns the run/stop lifecycle and the tick loop. One real second
// advances simulated time by a fixed step. Demand generation and vehicle
// motion run synchronously on the clock goroutine; dispatch runs
// asynchronously with at most one pass in flight.
type Engine struct {
    Store      store.Store
    Generator  *Generator
    Dispatcher *Dispatcher
    Motion     *MotionEngine

    TickInterval time.Duration
    StepSeconds  int64
    OnTickError  string

    running      atomic.Bool
    dispatchBusy atomic.Bool
    workers      chan struct{}

    mu      sync.Mutex
    session model.SimulationSession
    simTime int64
    stopCh  chan struct{}
    wg      sync.WaitGroup
}

func NewEngine(st store.Store, gen *Generator, disp *Dispatcher, motion *MotionEngine, cfg config.Config) *Engine {
    return &Engine{
        Store:        st,
        Generator:    gen,
        Dispatcher:   disp,
        Motion:       motion,
        TickInterval: cfg.Sim.TickInterval,
        StepSeconds:  cfg.Sim.StepSeconds,
        OnTickError:  cfg.Sim.OnTickError,
        workers:      make(chan struct{}, runtime.GOMAXPROCS(0)),
    }
}

func (e *Engine) IsRunning() bool { return e.running.Load() }

// SimTime returns the current simulated time in seconds since session start.
func (e *Engine) SimTime() int64 {
    e.mu.Lock()
    defer e.mu.Unlock()
    return e.simTime
}

// Session returns a copy of the active session, or false when stopped.
func (e *Engine) Session() (model.SimulationSession, bool) {
    e.mu.Lock()
    defer e.mu.Unlock()
    if !e.running.Load() {
        return model.SimulationSession{}, false
    }
    return e.session, true
}

// Start transitions STOPPED -> RUNNING. A session left open by a crash is
// resumed with its original id and weight configuration instead of opening
// a second one.
func (e *Engine) Start(ctx context.Context, weights model.DispatchWeights) error {
    if !e.running.CompareAndSwap(false, true) {
        return ErrAlreadyRunning
    }

    session, err := e.Store.FindLatestOpenSession(ctx)
    switch {
    case err == nil:
        log.Printf("sim: resuming open session %s (%s)", session.ID, session.SessionName)
    case errors.Is(err, store.ErrNotFound):
        session = model.SimulationSession{
            StartTime:        time.Now(),
            UseWeighted:      weights.UseWeighted,
            WeightTime:       weights.Time,
            WeightWastedLoad: weights.WastedLoad,
            WeightWastedIdle: weights.WastedIdle,
        }
        id, err := e.Store.InsertSession(ctx, session)
        if err != nil {
            e.running.Store(false)
            return err
        }
        session.ID = id
        session.SessionName = sessionName(id)
        if err := e.Store.UpdateSession(ctx, session); err != nil {
            e.running.Store(false)
            return err
        }
        log.Printf("sim: started session %s", session.SessionName)
    default:
        e.running.Store(false)
        return err
    }

    e.mu.Lock()
    e.session = session
    e.simTime = 0
    e.stopCh = make(chan struct{})
    e.mu.Unlock()

    e.wg.Add(1)
    go e.run(e.stopCh)
    return nil
}

// Stop transitions RUNNING -> STOPPED: halts the loop, finalizes the
// session KPIs, then clears all demands and parks the fleet.
func (e *Engine) Stop(ctx context.Context) error {
    if !e.running.CompareAndSwap(true, false) {
        return ErrNotRunning
    }
    e.mu.Lock()
    close(e.stopCh)
    e.mu.Unlock()
    e.wg.Wait()

    e.mu.Lock()
    session := e.session
    e.session = model.SimulationSession{}
    e.mu.Unlock()

    if session.ID != "" {
        kpis, completed, err := e.Motion.FleetKPIs(ctx)
        if err != nil {
            log.Printf("sim: kpi aggregation failed: %v", err)
        } else {
            session.AvgNoLoadDistance = kpis.AvgNoLoadDistance
            session.AvgLoadDistance = kpis.AvgLoadDistance
            session.AvgTotalDuration = kpis.AvgTotalDuration
            session.AvgWaitingDuration = kpis.AvgWaitingDuration
            session.TotalWastedCapacity = kpis.TotalWastedCapacity
            session.TotalDemandsCompleted = completed
        }
        session.EndTime = nowPtr()
        if err := e.Store.UpdateSession(ctx, session); err != nil {
            log.Printf("sim: session finalize failed: %v", err)
        }
    }

    if err := e.Store.DeleteAllDemands(ctx); err != nil {
        log.Printf("sim: demand cleanup failed: %v", err)
    }
    if err := e.Store.ResetAllVehicles(ctx); err != nil {
        log.Printf("sim: vehicle reset failed: %v", err)
    }
    e.Motion.ClearCache()
    log.Printf("sim: session %s stopped", session.SessionName)
    return nil
}

func (e *Engine) run(stopCh chan struct{}) {
    defer e.wg.Done()
    ticker := time.NewTicker(e.TickInterval)
    defer ticker.Stop()
    for {
        select {
        case <-stopCh:
            return
        case <-ticker.C:
            if err := e.Tick(context.Background()); err != nil {
                if e.OnTickError == config.TickErrorLog {
                    log.Printf("sim: tick failed: %v", err)
                    metrics.Ticks.WithLabelValues("error").Inc()
                    continue
                }
                log.Printf("sim: tick failed, stopping: %v", err)
                metrics.Ticks.WithLabelValues("fatal").Inc()
                // Stop blocks on this goroutine's exit, so it must run
                // elsewhere.
                go func() {
                    if err := e.Stop(context.Background()); err != nil {
                        log.Printf("sim: emergency stop failed: %v", err)
                    }
                }()
                return
            }
            metrics.Ticks.WithLabelValues("ok").Inc()
        }
    }
}

// Tick advances one simulation step: generate demands, kick off a dispatch
// pass unless one is still in flight, then advance all vehicle motion.
// Motion is synchronous so that an advanced clock is always fully reflected
// in vehicle state before the next tick observes it.
func (e *Engine) Tick(ctx context.Context) error {
    start := time.Now()
    defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

    e.mu.Lock()
    e.simTime += e.StepSeconds
    simTime := e.simTime
    weights := e.session.Weights()
    e.mu.Unlock()

    if err := e.Generator.Generate(ctx); err != nil {
        return fmt.Errorf("generate: %w", err)
    }

    if e.dispatchBusy.CompareAndSwap(false, true) {
        e.workers <- struct{}{}
        go func() {
            defer func() {
                <-e.workers
                e.dispatchBusy.Store(false)
            }()
            // Dispatch errors are absorbed; the next tick retries.
            if err := e.Dispatcher.Run(context.Background(), weights); err != nil {
                log.Printf("sim: dispatch pass failed: %v", err)
            }
        }()
    }

    if err := e.Motion.Advance(ctx, simTime, e.StepSeconds); err != nil {
        return fmt.Errorf("advance: %w", err)
    }
    return nil
}

// sessionName derives the display name from the generated id.
func sessionName(id string) string {
    short := id
    if len(short) > 8 {
        short = short[:8]
    }
    return "Sandbox #" + short
}

func nowPtr() *time.Time {
    t := time.Now()
    return &t
}
