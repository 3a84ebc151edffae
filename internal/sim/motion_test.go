package sim

import (
    "context"
    "errors"
    "testing"

    "fleetsim/internal/geo"
    "fleetsim/internal/model"
    "fleetsim/internal/route"
)

// 0.0537 degrees of latitude is just under 6 km on the haversine sphere,
// so at 10 m/s and 60 s steps the leg takes exactly 10 movement ticks.
const tenTickLat = 30.2537

func setupPickupLeg(t *testing.T, w *world) *MotionEngine {
    t.Helper()
    ctx := context.Background()

    pickup := model.Poi{ID: "poi-pickup", Name: "Pickup", SimType: model.RoleLumberYard, Lng: 120.10, Lat: tenTickLat}
    if err := w.st.InsertPoi(ctx, pickup); err != nil { t.Fatal(err) }

    d := model.TransportDemand{
        ID: "d-leg", OriginPoiID: pickup.ID, DestinationPoiID: w.mill.ID,
        CargoWeight: 30, CargoVolume: 25, Status: model.DemandAssigned, AssignedVehicleID: "v1",
        TemplateID: w.tmplID, StageOrder: 1,
    }
    if _, err := w.st.InsertDemand(ctx, d); err != nil { t.Fatal(err) }

    v := model.Vehicle{
        ID: "v1", PlateNumber: "v1", TypeID: w.typeID,
        Status: model.VehicleMovingToPickup, CurrentDemandID: d.ID,
        CurrentLng: 120.10, CurrentLat: 30.20, Speed: 10,
    }
    if err := w.st.InsertVehicle(ctx, v); err != nil { t.Fatal(err) }

    w.cacheRoute(t, model.GeoPoint{Lng: 120.10, Lat: 30.20}, model.GeoPoint{Lng: 120.10, Lat: tenTickLat}, 5971)
    return NewMotionEngine(w.st, w.routeService(), NewGenerator(w.st, 40, 0, 1), 300, 10)
}

func TestMotionArrivesInExactTicks(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    eng := setupPickupLeg(t, w)

    simTime := int64(0)
    tick := func() {
        simTime += 60
        if err := eng.Advance(ctx, simTime, 60); err != nil { t.Fatal(err) }
    }

    // First tick only initializes the route.
    tick()
    if got := w.vehicle(t, "v1"); got.Status != model.VehicleMovingToPickup {
        t.Fatalf("after init: status = %s", got.Status)
    }

    // Nine movement ticks cover 5400 m of the ~5971 m leg.
    prev := 0.0
    for i := 0; i < 9; i++ {
        tick()
        got := w.vehicle(t, "v1")
        if got.Status != model.VehicleMovingToPickup {
            t.Fatalf("tick %d: left MOVING_TO_PICKUP early (%s)", i+2, got.Status)
        }
        if got.NoLoadDistance < prev { t.Fatalf("traveled distance regressed: %v -> %v", prev, got.NoLoadDistance) }
        prev = got.NoLoadDistance
    }

    // The tenth movement tick arrives.
    tick()
    got := w.vehicle(t, "v1")
    if got.Status != model.VehicleLoading { t.Fatalf("want LOADING on tick 10, got %s", got.Status) }
    if got.Speed != 0 { t.Fatalf("speed should reset on arrival, got %v", got.Speed) }
    if got.NoLoadDistance > 6000 { t.Fatalf("traveled %v exceeds route length", got.NoLoadDistance) }

    d := w.demand(t, "d-leg")
    if d.PickupTime == nil { t.Fatal("pickup time not stamped") }
}

func TestDwellExactly300SimSeconds(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    eng := setupPickupLeg(t, w)

    // Drive to arrival: init + 10 movement ticks.
    simTime := int64(0)
    for i := 0; i < 11; i++ {
        simTime += 60
        if err := eng.Advance(ctx, simTime, 60); err != nil { t.Fatal(err) }
    }
    if got := w.vehicle(t, "v1"); got.Status != model.VehicleLoading { t.Fatalf("setup: want LOADING, got %s", got.Status) }
    arrivedAt := simTime

    // Loading holds through T+299.
    for simTime < arrivedAt+300-60 {
        simTime += 60
        if err := eng.Advance(ctx, simTime, 60); err != nil { t.Fatal(err) }
        if got := w.vehicle(t, "v1"); got.Status != model.VehicleLoading {
            t.Fatalf("sim %ds after arrival: want LOADING, got %s", simTime-arrivedAt, got.Status)
        }
    }

    // At T+300 the dwell completes.
    simTime += 60
    if err := eng.Advance(ctx, simTime, 60); err != nil { t.Fatal(err) }
    got := w.vehicle(t, "v1")
    if got.Status != model.VehicleInTransit { t.Fatalf("want IN_TRANSIT at T+300, got %s", got.Status) }
    if got.ShippedWeight != 30 || got.ShippedVolume != 25 { t.Fatalf("cargo not loaded: %v/%v", got.ShippedWeight, got.ShippedVolume) }
}

func TestFullDeliveryLifecycle(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    eng := setupPickupLeg(t, w)
    gen := eng.Generator

    simTime := int64(0)
    var completedAt int64
    for i := 0; i < 200; i++ {
        simTime += 60
        if err := eng.Advance(ctx, simTime, 60); err != nil { t.Fatal(err) }
        if d := w.demand(t, "d-leg"); d.Status == model.DemandCompleted {
            completedAt = simTime
            break
        }
    }
    if completedAt == 0 { t.Fatal("delivery never completed") }

    d := w.demand(t, "d-leg")
    if d.CompletionTime == nil { t.Fatal("completion time not stamped") }

    v := w.vehicle(t, "v1")
    if v.Status != model.VehicleIdle { t.Fatalf("vehicle should be idle, got %s", v.Status) }
    if v.CurrentDemandID != "" { t.Fatal("vehicle demand not cleared") }
    if v.NoLoadDistance <= 0 || v.LoadDistance <= 0 { t.Fatalf("distance counters: %v/%v", v.NoLoadDistance, v.LoadDistance) }

    // Stage 1 completion chains into stage 2, starting where it ended.
    pending, _ := w.st.FindDemandsByStatus(ctx, model.DemandPending)
    if len(pending) != 1 { t.Fatalf("want 1 chained demand, got %d", len(pending)) }
    if pending[0].OriginPoiID != d.DestinationPoiID { t.Fatal("chained demand origin mismatch") }
    _ = gen
}

func TestSpeedOverrideTakesEffectNextTick(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    eng := setupPickupLeg(t, w)

    // Init, then one movement tick at the nominal 10 m/s.
    if err := eng.Advance(ctx, 60, 60); err != nil { t.Fatal(err) }
    if err := eng.Advance(ctx, 120, 60); err != nil { t.Fatal(err) }
    before := w.vehicle(t, "v1").NoLoadDistance

    if _, err := eng.UpdateVehicleSpeed(ctx, "v1", 100); err != nil { t.Fatal(err) }

    if err := eng.Advance(ctx, 180, 60); err != nil { t.Fatal(err) }
    got := w.vehicle(t, "v1")
    delta := got.NoLoadDistance - before
    // 100 m/s over a 60 s step covers the remaining ~5400 m and arrives.
    if got.Status != model.VehicleLoading { t.Fatalf("want LOADING after boosted tick, got %s (moved %v m)", got.Status, delta) }
}

func TestSpeedOverrideUnknownVehicle(t *testing.T) {
    w := newWorld(t)
    eng := NewMotionEngine(w.st, w.routeService(), NewGenerator(w.st, 40, 0, 1), 300, 10)
    if _, err := eng.UpdateVehicleSpeed(context.Background(), "ghost", 5); err == nil {
        t.Fatal("want error for unknown vehicle")
    }
}

type failingProvider struct{ calls int }

func (p *failingProvider) Directions(context.Context, string, string) (route.Leg, error) {
    p.calls++
    return route.Leg{}, errors.New("upstream down")
}

func TestRouteInitRetriesNextTick(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()

    d := model.TransportDemand{
        ID: "d1", OriginPoiID: w.yard.ID, DestinationPoiID: w.mill.ID,
        CargoWeight: 30, CargoVolume: 25, Status: model.DemandAssigned, AssignedVehicleID: "v1",
    }
    if _, err := w.st.InsertDemand(ctx, d); err != nil { t.Fatal(err) }
    v := model.Vehicle{
        ID: "v1", PlateNumber: "v1", TypeID: w.typeID,
        Status: model.VehicleMovingToPickup, CurrentDemandID: d.ID,
        CurrentLng: 120.15, CurrentLat: 30.22, Speed: 10,
    }
    if err := w.st.InsertVehicle(ctx, v); err != nil { t.Fatal(err) }

    provider := &failingProvider{}
    eng := NewMotionEngine(w.st, route.NewService(w.st, provider), NewGenerator(w.st, 40, 0, 1), 300, 10)

    // Provider failures leave the vehicle stationary, not reset.
    for i := 1; i <= 3; i++ {
        if err := eng.Advance(ctx, int64(i*60), 60); err != nil { t.Fatal(err) }
        got := w.vehicle(t, "v1")
        if got.Status != model.VehicleMovingToPickup { t.Fatalf("tick %d: status = %s", i, got.Status) }
        if got.CurrentLng != 120.15 || got.CurrentLat != 30.22 { t.Fatalf("vehicle moved without a route") }
    }
    if provider.calls != 3 { t.Fatalf("want 3 retries, got %d", provider.calls) }

    // Once a route appears in the cache, init succeeds and motion resumes.
    w.cacheRoute(t, model.GeoPoint{Lng: 120.15, Lat: 30.22}, model.GeoPoint{Lng: w.yard.Lng, Lat: w.yard.Lat}, 6000)
    if err := eng.Advance(ctx, 240, 60); err != nil { t.Fatal(err) }
    if err := eng.Advance(ctx, 300, 60); err != nil { t.Fatal(err) }
    if got := w.vehicle(t, "v1"); got.NoLoadDistance <= 0 {
        t.Fatal("vehicle should be moving after the cache was filled")
    }
}

func TestMalformedPolylineResetsVehicle(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()

    d := model.TransportDemand{
        ID: "d1", OriginPoiID: w.yard.ID, DestinationPoiID: w.mill.ID,
        Status: model.DemandAssigned, AssignedVehicleID: "v1",
    }
    if _, err := w.st.InsertDemand(ctx, d); err != nil { t.Fatal(err) }
    v := model.Vehicle{
        ID: "v1", PlateNumber: "v1", TypeID: w.typeID,
        Status: model.VehicleMovingToPickup, CurrentDemandID: d.ID,
        CurrentLng: 120.15, CurrentLat: 30.22, Speed: 10,
    }
    if err := w.st.InsertVehicle(ctx, v); err != nil { t.Fatal(err) }

    // A single-vertex polyline cannot be driven.
    r := model.RouteInfo{
        OriginCoords:      geo.FormatCoords(model.GeoPoint{Lng: 120.15, Lat: 30.22}),
        DestinationCoords: geo.FormatCoords(model.GeoPoint{Lng: w.yard.Lng, Lat: w.yard.Lat}),
        Distance:          6000,
        Polyline:          "120.150000,30.220000",
    }
    if _, err := w.st.InsertCachedRoute(ctx, r); err != nil { t.Fatal(err) }

    eng := NewMotionEngine(w.st, w.routeService(), NewGenerator(w.st, 40, 0, 1), 300, 10)
    if err := eng.Advance(ctx, 60, 60); err != nil { t.Fatal(err) }

    got := w.vehicle(t, "v1")
    if got.Status != model.VehicleIdle { t.Fatalf("want reset to IDLE, got %s", got.Status) }
    if got.CurrentDemandID != "" || got.Speed != 0 { t.Fatalf("reset incomplete: %+v", got) }
}

func TestIdleVehiclesAccumulateWaiting(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    w.addVehicle(t, "v1", 120.10, 30.20)
    eng := NewMotionEngine(w.st, w.routeService(), NewGenerator(w.st, 40, 0, 1), 300, 10)

    for i := 1; i <= 3; i++ {
        if err := eng.Advance(ctx, int64(i*60), 60); err != nil { t.Fatal(err) }
    }
    if got := w.vehicle(t, "v1"); got.WaitingDuration != 180 {
        t.Fatalf("waiting duration = %v, want 180", got.WaitingDuration)
    }
}

func TestTransitRouteInitializedWithLoadCompletion(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    eng := setupPickupLeg(t, w)

    // Init + 10 movement ticks to arrive, then 5 dwell ticks; the 16th
    // tick completes the 300 s load.
    simTime := int64(0)
    for i := 0; i < 16; i++ {
        simTime += 60
        if err := eng.Advance(ctx, simTime, 60); err != nil { t.Fatal(err) }
    }
    got := w.vehicle(t, "v1")
    if got.Status != model.VehicleInTransit { t.Fatalf("setup: want IN_TRANSIT, got %s", got.Status) }
    if got.Speed != 10 { t.Fatalf("speed = %v, want cruising speed on load completion", got.Speed) }

    // The transit leg's route is set up in the same tick the load
    // completes, not one tick later.
    views := eng.Overlay([]model.Vehicle{got})
    if len(views) != 1 { t.Fatalf("overlay returned %d views", len(views)) }
    if views[0].RoutePolyline == "" { t.Fatal("transit route not initialized in the load-completion tick") }

    // So the very next tick covers ground.
    simTime += 60
    if err := eng.Advance(ctx, simTime, 60); err != nil { t.Fatal(err) }
    if v := w.vehicle(t, "v1"); v.LoadDistance <= 0 {
        t.Fatalf("tick after load completion covered %v m", v.LoadDistance)
    }
}

func TestOverlayExposesTransientFields(t *testing.T) {
    w := newWorld(t)
    ctx := context.Background()
    eng := setupPickupLeg(t, w)

    if err := eng.Advance(ctx, 60, 60); err != nil { t.Fatal(err) } // init
    if err := eng.Advance(ctx, 120, 60); err != nil { t.Fatal(err) }

    vehicles, _ := w.st.FindVehicles(ctx, "")
    views := eng.Overlay(vehicles)
    var view *model.VehicleView
    for i := range views {
        if views[i].ID == "v1" { view = &views[i] }
    }
    if view == nil { t.Fatal("v1 missing from overlay") }
    if view.RoutePolyline == "" { t.Fatal("route polyline not exposed") }
    if view.TraveledPolyline == "" { t.Fatal("traveled trail not exposed") }
    if view.RouteDistance != 5971 { t.Fatalf("route distance = %d", view.RouteDistance) }
}
