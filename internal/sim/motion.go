package sim

import (
    "context"
    "errors"
    "log"
    "sync"

    "fleetsim/internal/geo"
    "fleetsim/internal/metrics"
    "fleetsim/internal/model"
    "fleetsim/internal/route"
    "fleetsim/internal/store"
)

// MotionEngine advances every active vehicle along its route each tick and
// drives the loading/unloading dwell timers. It owns a runtime cache of
// non-IDLE vehicles holding the simulation-only state that is never
// persisted (parsed path, traveled trail, checkpoint index).
type MotionEngine struct {
    Store        store.Store
    Routes       *route.Service
    Generator    *Generator
    DwellSeconds int64
    NominalSpeed float64

    mu    sync.RWMutex
    cache map[string]*model.VehicleView
}

func NewMotionEngine(st store.Store, routes *route.Service, gen *Generator, dwellSeconds int64, nominalSpeed float64) *MotionEngine {
    return &MotionEngine{
        Store:        st,
        Routes:       routes,
        Generator:    gen,
        DwellSeconds: dwellSeconds,
        NominalSpeed: nominalSpeed,
        cache:        map[string]*model.VehicleView{},
    }
}

// Advance runs synchronously on the clock goroutine. Query paths read the
// cache concurrently through Overlay, so every cache mutation happens under
// the lock.
func (e *MotionEngine) Advance(ctx context.Context, simTime, step int64) error {
    vehicles, err := e.Store.FindVehicles(ctx, "")
    if err != nil {
        return err
    }

    counts := map[model.VehicleStatus]int{}
    for _, v := range vehicles {
        counts[v.Status]++
        switch v.Status {
        case model.VehicleIdle:
            v.WaitingDuration += float64(step)
            if err := e.Store.UpdateVehicle(ctx, v); err != nil {
                return err
            }
        case model.VehicleMaintenance, model.VehicleRefused:
            // parked, never advanced
        case model.VehicleMovingToPickup, model.VehicleInTransit:
            rv := e.merge(v)
            if err := e.advanceMoving(ctx, rv, simTime, step); err != nil {
                return err
            }
        case model.VehicleLoading, model.VehicleUnloading:
            rv := e.merge(v)
            if err := e.advanceDwell(ctx, rv, simTime); err != nil {
                return err
            }
        }
    }

    e.evictIdle()
    for _, s := range []model.VehicleStatus{
        model.VehicleIdle, model.VehicleMovingToPickup, model.VehicleLoading,
        model.VehicleInTransit, model.VehicleUnloading, model.VehicleMaintenance,
        model.VehicleRefused,
    } {
        metrics.VehiclesByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
    }
    return nil
}

// merge folds the freshly persisted row into the cache entry. Persisted
// fields win (a manual speed change must take effect next step), except the
// position of a vehicle with an active route, which only the engine moves.
func (e *MotionEngine) merge(v model.Vehicle) *model.VehicleView {
    e.mu.Lock()
    defer e.mu.Unlock()
    cached, ok := e.cache[v.ID]
    if !ok {
        rv := &model.VehicleView{Vehicle: v}
        rv.LastReachedIndex = -1
        e.cache[v.ID] = rv
        return rv
    }
    sim := cached.VehicleSim
    lng, lat := cached.CurrentLng, cached.CurrentLat
    cached.Vehicle = v
    cached.VehicleSim = sim
    if len(sim.ParsedPath) > 0 {
        cached.CurrentLng, cached.CurrentLat = lng, lat
    }
    return cached
}

func (e *MotionEngine) evictIdle() {
    e.mu.Lock()
    defer e.mu.Unlock()
    for id, rv := range e.cache {
        if rv.Status == model.VehicleIdle {
            delete(e.cache, id)
        }
    }
}

// Overlay decorates persisted rows with the cached transient fields for
// read-only snapshots. It never mutates engine state.
func (e *MotionEngine) Overlay(vehicles []model.Vehicle) []model.VehicleView {
    e.mu.RLock()
    defer e.mu.RUnlock()
    out := make([]model.VehicleView, 0, len(vehicles))
    for _, v := range vehicles {
        view := model.VehicleView{Vehicle: v}
        if cached, ok := e.cache[v.ID]; ok {
            view.VehicleSim = cached.VehicleSim
            view.CurrentLng, view.CurrentLat = cached.CurrentLng, cached.CurrentLat
            view.ParsedPath = nil // not serialized
        }
        out = append(out, view)
    }
    return out
}

func (e *MotionEngine) demandFor(ctx context.Context, rv *model.VehicleView) (model.TransportDemand, bool, error) {
    if rv.CurrentDemandID == "" {
        return model.TransportDemand{}, false, nil
    }
    found, err := e.Store.FindDemandsByIDs(ctx, []string{rv.CurrentDemandID})
    if err != nil {
        return model.TransportDemand{}, false, err
    }
    if len(found) == 0 {
        return model.TransportDemand{}, false, nil
    }
    return found[0], true, nil
}

func (e *MotionEngine) advanceMoving(ctx context.Context, rv *model.VehicleView, simTime, step int64) error {
    if len(rv.ParsedPath) == 0 {
        return e.initRoute(ctx, rv, simTime)
    }

    traveled, arrived := e.stepAlongPath(rv, rv.Speed*float64(step))
    if rv.Status == model.VehicleMovingToPickup {
        rv.NoLoadDistance += traveled
    } else {
        rv.LoadDistance += traveled
    }
    rv.DriveDuration += float64(step)

    if !arrived {
        e.appendTrail(rv, geo.FormatCoords(model.GeoPoint{Lng: rv.CurrentLng, Lat: rv.CurrentLat}))
        return e.Store.UpdateVehicle(ctx, rv.Vehicle)
    }

    // Snap to the final vertex and replace the incremental trail with the
    // exact route shape.
    last := rv.ParsedPath[len(rv.ParsedPath)-1]
    rv.CurrentLng, rv.CurrentLat = last.Lng, last.Lat
    rv.TraveledPolyline = rv.RoutePolyline

    demand, ok, err := e.demandFor(ctx, rv)
    if err != nil {
        return err
    }
    if !ok {
        log.Printf("sim: vehicle %s arrived with no demand, resetting", rv.PlateNumber)
        return e.resetToIdle(ctx, rv)
    }

    if rv.Status == model.VehicleMovingToPickup {
        rv.Status = model.VehicleLoading
        now := nowPtr()
        demand.PickupTime = now
        if err := e.Store.UpdateDemand(ctx, demand); err != nil {
            return err
        }
    } else {
        rv.Status = model.VehicleUnloading
    }
    rv.Speed = 0
    rv.ActionStart = simTime
    rv.LastReachedIndex = -1
    rv.ParsedPath = nil
    rv.RoutePolyline = ""
    return e.Store.UpdateVehicle(ctx, rv.Vehicle)
}

func (e *MotionEngine) advanceDwell(ctx context.Context, rv *model.VehicleView, simTime int64) error {
    if simTime-rv.ActionStart < e.DwellSeconds {
        return nil
    }

    demand, ok, err := e.demandFor(ctx, rv)
    if err != nil {
        return err
    }
    if !ok {
        log.Printf("sim: vehicle %s dwelling with no demand, resetting", rv.PlateNumber)
        return e.resetToIdle(ctx, rv)
    }

    if rv.Status == model.VehicleLoading {
        rv.ShippedWeight += demand.CargoWeight
        rv.ShippedVolume += demand.CargoVolume
        rv.Status = model.VehicleInTransit
        rv.VehicleSim = model.VehicleSim{LastReachedIndex: -1}
        if err := e.Store.UpdateVehicle(ctx, rv.Vehicle); err != nil {
            return err
        }
        // Start the transit leg in the same tick so the vehicle never
        // stands between states without a route; a provider miss here
        // still falls back to the lazy init on the next tick.
        return e.initRoute(ctx, rv, simTime)
    }

    // UNLOADING finished: close out the demand, free the vehicle, and let
    // the supply chain spawn the next leg.
    demand.Status = model.DemandCompleted
    demand.CompletionTime = nowPtr()
    if err := e.Store.UpdateDemand(ctx, demand); err != nil {
        return err
    }
    metrics.DemandsCompleted.Inc()
    if err := e.resetToIdle(ctx, rv); err != nil {
        return err
    }
    return e.Generator.TriggerNextDemand(ctx, demand)
}

// initRoute resolves the current leg's endpoints and asks the route service
// for a polyline. A provider miss leaves the vehicle stationary for this
// tick and is retried on the next; a malformed polyline or unresolvable
// demand resets the vehicle instead of propagating.
func (e *MotionEngine) initRoute(ctx context.Context, rv *model.VehicleView, simTime int64) error {
    demand, ok, err := e.demandFor(ctx, rv)
    if err != nil {
        return err
    }
    if !ok {
        log.Printf("sim: vehicle %s has no demand for route init, resetting", rv.PlateNumber)
        return e.resetToIdle(ctx, rv)
    }

    var origin, dest string
    if rv.Status == model.VehicleMovingToPickup {
        origin = geo.FormatCoords(model.GeoPoint{Lng: rv.CurrentLng, Lat: rv.CurrentLat})
        dest, err = e.poiCoords(ctx, demand.OriginPoiID)
    } else {
        origin, err = e.poiCoords(ctx, demand.OriginPoiID)
        if err == nil {
            dest, err = e.poiCoords(ctx, demand.DestinationPoiID)
        }
    }
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            log.Printf("sim: vehicle %s demand %s references missing poi, resetting", rv.PlateNumber, demand.ID)
            return e.resetToIdle(ctx, rv)
        }
        return err
    }

    info, err := e.Routes.GetRoute(ctx, origin, dest)
    if err != nil {
        if errors.Is(err, route.ErrSamePoint) {
            log.Printf("sim: vehicle %s degenerate leg %s -> %s, resetting", rv.PlateNumber, origin, dest)
            return e.resetToIdle(ctx, rv)
        }
        // Stay put and try again next tick.
        log.Printf("sim: route init for vehicle %s failed: %v", rv.PlateNumber, err)
        return nil
    }

    path := geo.ParsePolyline(info.Polyline)
    if path == nil {
        log.Printf("sim: vehicle %s got malformed polyline %s -> %s, resetting", rv.PlateNumber, origin, dest)
        return e.resetToIdle(ctx, rv)
    }

    rv.RoutePolyline = info.Polyline
    rv.ParsedPath = path
    rv.RouteDistance = info.Distance
    rv.RouteDuration = info.Duration
    rv.ActionStart = simTime
    rv.LastReachedIndex = 0
    rv.TraveledPolyline = origin
    rv.CurrentLng, rv.CurrentLat = path[0].Lng, path[0].Lat
    rv.Speed = e.NominalSpeed
    return e.Store.UpdateVehicle(ctx, rv.Vehicle)
}

func (e *MotionEngine) poiCoords(ctx context.Context, id string) (string, error) {
    poi, err := e.Store.FindPoiByID(ctx, id)
    if err != nil {
        return "", err
    }
    return geo.FormatCoords(model.GeoPoint{Lng: poi.Lng, Lat: poi.Lat}), nil
}

// stepAlongPath consumes meters of travel from the checkpoint vertex
// forward, passing vertices whole and interpolating inside the final
// partial segment. It returns the distance actually covered and whether
// the final vertex was reached.
func (e *MotionEngine) stepAlongPath(rv *model.VehicleView, meters float64) (float64, bool) {
    path := rv.ParsedPath
    idx := rv.LastReachedIndex
    if idx < 0 {
        idx = 0
    }
    pos := model.GeoPoint{Lng: rv.CurrentLng, Lat: rv.CurrentLat}
    remaining := meters
    traveled := 0.0

    for idx < len(path)-1 && remaining > 0 {
        next := path[idx+1]
        segLeft := geo.HaversineMeters(pos, next)
        if segLeft <= remaining+geo.ArrivalEpsilonM {
            // Passed the vertex whole; carry the leftover into the next segment.
            traveled += segLeft
            remaining -= segLeft
            pos = next
            idx++
            continue
        }
        pos = geo.Interpolate(pos, next, remaining/segLeft)
        traveled += remaining
        remaining = 0
    }

    rv.LastReachedIndex = idx
    rv.CurrentLng, rv.CurrentLat = pos.Lng, pos.Lat
    return traveled, idx >= len(path)-1
}

func (e *MotionEngine) appendTrail(rv *model.VehicleView, point string) {
    if rv.TraveledPolyline == "" {
        rv.TraveledPolyline = point
        return
    }
    rv.TraveledPolyline += ";" + point
}

func (e *MotionEngine) resetToIdle(ctx context.Context, rv *model.VehicleView) error {
    rv.Status = model.VehicleIdle
    rv.CurrentDemandID = ""
    rv.Speed = 0
    rv.VehicleSim = model.VehicleSim{LastReachedIndex: -1}
    return e.Store.UpdateVehicle(ctx, rv.Vehicle)
}

// UpdateVehicleSpeed applies a manual speed override. The cache entry is
// patched directly so the change takes effect on the next advance without
// restarting the route.
func (e *MotionEngine) UpdateVehicleSpeed(ctx context.Context, id string, speed float64) (model.Vehicle, error) {
    v, err := e.Store.FindVehicleByID(ctx, id)
    if err != nil {
        return model.Vehicle{}, err
    }
    v.Speed = speed
    if err := e.Store.UpdateVehicle(ctx, v); err != nil {
        return model.Vehicle{}, err
    }
    e.mu.Lock()
    if cached, ok := e.cache[id]; ok {
        cached.Speed = speed
    }
    e.mu.Unlock()
    return v, nil
}

// ClearCache drops all runtime state. Called when a session ends and every
// vehicle has been reset.
func (e *MotionEngine) ClearCache() {
    e.mu.Lock()
    e.cache = map[string]*model.VehicleView{}
    e.mu.Unlock()
}

// FleetKPIs aggregates per-vehicle counters plus the wasted capacity of all
// completed demands for session finalization.
func (e *MotionEngine) FleetKPIs(ctx context.Context) (model.FleetKPIs, int, error) {
    vehicles, err := e.Store.FindVehicles(ctx, "")
    if err != nil {
        return model.FleetKPIs{}, 0, err
    }
    var k model.FleetKPIs
    if n := float64(len(vehicles)); n > 0 {
        for _, v := range vehicles {
            k.AvgNoLoadDistance += v.NoLoadDistance
            k.AvgLoadDistance += v.LoadDistance
            k.AvgTotalDuration += v.DriveDuration + v.WaitingDuration
            k.AvgWaitingDuration += v.WaitingDuration
        }
        k.AvgNoLoadDistance /= n
        k.AvgLoadDistance /= n
        k.AvgTotalDuration /= n
        k.AvgWaitingDuration /= n
    }

    types, err := e.Store.FindVehicleTypes(ctx)
    if err != nil {
        return model.FleetKPIs{}, 0, err
    }
    typeByID := make(map[string]model.VehicleType, len(types))
    for _, t := range types {
        typeByID[t.ID] = t
    }
    vehicleByID := make(map[string]model.Vehicle, len(vehicles))
    for _, v := range vehicles {
        vehicleByID[v.ID] = v
    }

    completed, err := e.Store.FindDemandsByStatus(ctx, model.DemandCompleted)
    if err != nil {
        return model.FleetKPIs{}, 0, err
    }
    for _, d := range completed {
        v, ok := vehicleByID[d.AssignedVehicleID]
        if !ok {
            continue
        }
        if t, ok := typeByID[v.TypeID]; ok {
            k.TotalWastedCapacity += t.MaxLoadWeight - d.CargoWeight
        }
    }
    return k, len(completed), nil
}
