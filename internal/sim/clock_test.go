package sim

import (
    "context"
    "strings"
    "testing"
    "time"

    "fleetsim/internal/config"
    "fleetsim/internal/model"
)

// newTestEngine builds an engine whose ticker never fires during the test,
// so ticks are driven manually through Tick.
func newTestEngine(t *testing.T, w *world, probability float64) *Engine {
    t.Helper()
    cfg := config.Default()
    cfg.Sim.TickInterval = time.Hour
    gen := NewGenerator(w.st, cfg.Sim.BacklogCap, probability, cfg.Sim.BurstSize)
    disp := NewDispatcher(w.st, cfg.Sim.NominalSpeed)
    motion := NewMotionEngine(w.st, w.routeService(), gen, cfg.Sim.DwellSeconds, cfg.Sim.NominalSpeed)
    return NewEngine(w.st, gen, disp, motion, cfg)
}

func TestStartStopIdempotent(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    eng := newTestEngine(t, w, 0)

    if eng.IsRunning() { t.Fatal("fresh engine should be stopped") }
    if err := eng.Start(ctx, model.DispatchWeights{}); err != nil { t.Fatal(err) }
    if !eng.IsRunning() { t.Fatal("engine should be running") }

    if err := eng.Start(ctx, model.DispatchWeights{}); err != ErrAlreadyRunning {
        t.Fatalf("second start: want ErrAlreadyRunning, got %v", err)
    }

    if err := eng.Stop(ctx); err != nil { t.Fatal(err) }
    if eng.IsRunning() { t.Fatal("engine should be stopped") }
    if err := eng.Stop(ctx); err != ErrNotRunning {
        t.Fatalf("second stop: want ErrNotRunning, got %v", err)
    }
}

func TestStartCreatesNamedSession(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    eng := newTestEngine(t, w, 0)

    weights := model.DispatchWeights{UseWeighted: true, Time: 2, WastedLoad: 1, WastedIdle: 0.5}
    if err := eng.Start(ctx, weights); err != nil { t.Fatal(err) }
    defer func() { _ = eng.Stop(ctx) }()

    session, ok := eng.Session()
    if !ok { t.Fatal("running engine should expose its session") }
    if !strings.HasPrefix(session.SessionName, "Sandbox #") { t.Fatalf("session name = %q", session.SessionName) }
    if !session.UseWeighted || session.WeightTime != 2 { t.Fatalf("weights not stored: %+v", session) }

    stored, err := w.st.FindSessionByID(ctx, session.ID)
    if err != nil { t.Fatal(err) }
    if stored.EndTime != nil { t.Fatal("session should be open") }
    if stored.SessionName != session.SessionName { t.Fatal("rename not persisted") }
}

func TestStartResumesOpenSession(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()

    crashed := model.SimulationSession{
        SessionName: "Sandbox #deadbeef",
        StartTime:   time.Now().Add(-time.Hour),
        UseWeighted: true,
        WeightTime:  3,
    }
    id, err := w.st.InsertSession(ctx, crashed)
    if err != nil { t.Fatal(err) }

    eng := newTestEngine(t, w, 0)
    if err := eng.Start(ctx, model.DispatchWeights{}); err != nil { t.Fatal(err) }
    defer func() { _ = eng.Stop(ctx) }()

    session, _ := eng.Session()
    if session.ID != id { t.Fatalf("want resumed session %s, got %s", id, session.ID) }
    if !session.UseWeighted || session.WeightTime != 3 { t.Fatal("resumed session should keep its weights") }

    sessions, _ := w.st.ListSessions(ctx)
    if len(sessions) != 1 { t.Fatalf("resume must not open a second session, have %d", len(sessions)) }
}

func TestTickAdvancesTimeAndGenerates(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    w.addVehicle(t, "v1", 120.11, 30.21)
    eng := newTestEngine(t, w, 1.0)

    if err := eng.Start(ctx, model.DispatchWeights{}); err != nil { t.Fatal(err) }
    defer func() { _ = eng.Stop(ctx) }()

    if err := eng.Tick(ctx); err != nil { t.Fatal(err) }
    if got := eng.SimTime(); got != 60 { t.Fatalf("sim time = %d, want 60", got) }

    n, _ := w.st.CountDemandsByStatus(ctx, "")
    if n == 0 { t.Fatal("probability-1 generator should have produced demands") }

    if err := eng.Tick(ctx); err != nil { t.Fatal(err) }
    if got := eng.SimTime(); got != 120 { t.Fatalf("sim time = %d, want 120", got) }
}

func TestStopFinalizesSessionAndResetsWorld(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    w.addVehicle(t, "v1", 120.11, 30.21)
    eng := newTestEngine(t, w, 0)

    if err := eng.Start(ctx, model.DispatchWeights{}); err != nil { t.Fatal(err) }
    session, _ := eng.Session()

    // Let the idle fleet accumulate waiting time before stopping.
    for i := 0; i < 3; i++ {
        if err := eng.Tick(ctx); err != nil { t.Fatal(err) }
    }
    // Leftover demands at stop time must be swept.
    w.addDemand(t, "d1", 30, 25)
    if err := eng.Stop(ctx); err != nil { t.Fatal(err) }

    stored, err := w.st.FindSessionByID(ctx, session.ID)
    if err != nil { t.Fatal(err) }
    if stored.EndTime == nil { t.Fatal("stop must stamp the session end time") }
    if stored.AvgWaitingDuration == 0 { t.Fatal("fleet KPIs not aggregated") }

    if n, _ := w.st.CountDemandsByStatus(ctx, ""); n != 0 { t.Fatalf("demands not cleared, %d left", n) }
    vehicles, _ := w.st.FindVehicles(ctx, "")
    for _, v := range vehicles {
        if v.Status != model.VehicleIdle { t.Fatalf("vehicle %s not reset: %s", v.PlateNumber, v.Status) }
    }

    if _, ok := eng.Session(); ok { t.Fatal("stopped engine should not expose a session") }
}

func TestSessionNameDerivation(t *testing.T) {
    if got := sessionName("0123456789abcdef"); got != "Sandbox #01234567" { t.Fatalf("got %q", got) }
    if got := sessionName("ab"); got != "Sandbox #ab" { t.Fatalf("short id: got %q", got) }
}
