package store

import (
    "context"
    "testing"
    "time"

    "fleetsim/internal/model"
)

func TestMemoryVehicleCRUD(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()

    if _, err := m.FindVehicleByID(ctx, "nope"); err != ErrNotFound {
        t.Fatalf("want ErrNotFound, got %v", err)
    }

    v := model.Vehicle{PlateNumber: "ZJ-T001", Status: model.VehicleIdle}
    if err := m.InsertVehicle(ctx, v); err != nil { t.Fatal(err) }

    all, err := m.FindVehicles(ctx, "")
    if err != nil { t.Fatal(err) }
    if len(all) != 1 { t.Fatalf("want 1 vehicle, got %d", len(all)) }
    if all[0].ID == "" { t.Fatal("insert should generate an id") }

    got := all[0]
    got.Status = model.VehicleMovingToPickup
    got.Speed = 10
    if err := m.UpdateVehicle(ctx, got); err != nil { t.Fatal(err) }

    idle, _ := m.FindVehicles(ctx, model.VehicleIdle)
    if len(idle) != 0 { t.Fatalf("no vehicle should be idle, got %d", len(idle)) }

    if err := m.UpdateVehicle(ctx, model.Vehicle{ID: "nope"}); err != ErrNotFound {
        t.Fatalf("update of unknown id: want ErrNotFound, got %v", err)
    }
}

func TestMemoryResetAllVehiclesPreservesCounters(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    v := model.Vehicle{
        PlateNumber:     "ZJ-T002",
        Status:          model.VehicleInTransit,
        CurrentDemandID: "d1",
        Speed:           10,
        NoLoadDistance:  1234,
        DriveDuration:   600,
    }
    if err := m.InsertVehicle(ctx, v); err != nil { t.Fatal(err) }
    if err := m.ResetAllVehicles(ctx); err != nil { t.Fatal(err) }

    all, _ := m.FindVehicles(ctx, "")
    got := all[0]
    if got.Status != model.VehicleIdle { t.Fatalf("status = %s", got.Status) }
    if got.CurrentDemandID != "" || got.Speed != 0 { t.Fatalf("demand/speed not cleared: %+v", got) }
    if got.NoLoadDistance != 1234 || got.DriveDuration != 600 { t.Fatalf("counters clobbered: %+v", got) }
}

func TestMemoryDemandOrderAndCount(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    var first string
    for i := 0; i < 3; i++ {
        id, err := m.InsertDemand(ctx, model.TransportDemand{Status: model.DemandPending, CargoName: "cargo"})
        if err != nil { t.Fatal(err) }
        if i == 0 { first = id }
    }

    n, err := m.CountDemandsByStatus(ctx, model.DemandPending)
    if err != nil { t.Fatal(err) }
    if n != 3 { t.Fatalf("pending count = %d", n) }

    pending, _ := m.FindDemandsByStatus(ctx, model.DemandPending)
    if pending[0].ID != first { t.Fatal("query order should follow insertion order") }

    d := pending[0]
    d.Status = model.DemandCompleted
    if err := m.UpdateDemand(ctx, d); err != nil { t.Fatal(err) }
    if n, _ = m.CountDemandsByStatus(ctx, model.DemandPending); n != 2 { t.Fatalf("pending after complete = %d", n) }

    if err := m.DeleteAllDemands(ctx); err != nil { t.Fatal(err) }
    if n, _ = m.CountDemandsByStatus(ctx, ""); n != 0 { t.Fatalf("count after delete = %d", n) }
}

func TestMemoryRouteCacheAppendOnly(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    r := model.RouteInfo{OriginCoords: "120.100000,30.200000", DestinationCoords: "120.200000,30.300000", Distance: 6000, Polyline: "a"}

    id1, err := m.InsertCachedRoute(ctx, r)
    if err != nil { t.Fatal(err) }
    r.Distance = 9999
    id2, err := m.InsertCachedRoute(ctx, r)
    if err != nil { t.Fatal(err) }
    if id1 != id2 { t.Fatal("duplicate key should return the existing id") }

    got, err := m.FindCachedRoute(ctx, r.OriginCoords, r.DestinationCoords)
    if err != nil { t.Fatal(err) }
    if got.Distance != 6000 { t.Fatalf("second insert must not overwrite, distance = %d", got.Distance) }

    if _, err := m.FindCachedRoute(ctx, "x", "y"); err != ErrNotFound {
        t.Fatalf("want ErrNotFound, got %v", err)
    }
}

func TestMemoryLatestOpenSession(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()

    if _, err := m.FindLatestOpenSession(ctx); err != ErrNotFound {
        t.Fatalf("want ErrNotFound on empty store, got %v", err)
    }

    t0 := time.Now().Add(-2 * time.Hour)
    t1 := time.Now().Add(-1 * time.Hour)
    end := time.Now().Add(-90 * time.Minute)

    if _, err := m.InsertSession(ctx, model.SimulationSession{SessionName: "closed", StartTime: t0, EndTime: &end}); err != nil { t.Fatal(err) }
    openID, err := m.InsertSession(ctx, model.SimulationSession{SessionName: "open-old", StartTime: t0})
    if err != nil { t.Fatal(err) }
    latestID, err := m.InsertSession(ctx, model.SimulationSession{SessionName: "open-new", StartTime: t1})
    if err != nil { t.Fatal(err) }

    got, err := m.FindLatestOpenSession(ctx)
    if err != nil { t.Fatal(err) }
    if got.ID != latestID { t.Fatalf("want latest open session %s, got %s (%s)", latestID, got.ID, got.SessionName) }
    _ = openID

    sessions, _ := m.ListSessions(ctx)
    if len(sessions) != 3 { t.Fatalf("want 3 sessions, got %d", len(sessions)) }
    if sessions[0].ID != latestID { t.Fatal("list should be start time descending") }
}

func TestMemoryStageLookup(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    tmpl := model.SupplyChainTemplate{ID: "tmpl1", Name: "chain"}
    if err := m.InsertTemplate(ctx, tmpl); err != nil { t.Fatal(err) }
    for i := 1; i <= 2; i++ {
        s := model.SupplyChainStage{TemplateID: "tmpl1", StageOrder: i, CargoName: "c"}
        if err := m.InsertStage(ctx, s); err != nil { t.Fatal(err) }
    }

    s, err := m.FindStage(ctx, "tmpl1", 2)
    if err != nil { t.Fatal(err) }
    if s.StageOrder != 2 { t.Fatalf("stage order = %d", s.StageOrder) }

    if _, err := m.FindStage(ctx, "tmpl1", 3); err != ErrNotFound {
        t.Fatalf("missing stage: want ErrNotFound, got %v", err)
    }
}
