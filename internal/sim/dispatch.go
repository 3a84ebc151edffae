package sim

import (
    "context"
    "errors"
    "log"
    "sort"
    "time"

    "fleetsim/internal/geo"
    "fleetsim/internal/metrics"
    "fleetsim/internal/model"
    "fleetsim/internal/store"
)

// Dispatcher matches pending demands to idle vehicles under capacity
// constraints. Two strategies share the same inputs and the same
// assignment side effect.
type Dispatcher struct {
    Store        store.Store
    NominalSpeed float64 // meters per simulated second
}

func NewDispatcher(st store.Store, nominalSpeed float64) *Dispatcher {
    return &Dispatcher{Store: st, NominalSpeed: nominalSpeed}
}

// Run executes one dispatch pass with the strategy the weights select.
func (d *Dispatcher) Run(ctx context.Context, w model.DispatchWeights) error {
    start := time.Now()
    defer func() { metrics.DispatchDuration.Observe(time.Since(start).Seconds()) }()
    if w.UseWeighted {
        return d.DispatchPendingDemandsByCost(ctx, w)
    }
    return d.DispatchPendingDemands(ctx)
}

func (d *Dispatcher) loadInputs(ctx context.Context) ([]model.TransportDemand, []model.Vehicle, map[string]model.VehicleType, error) {
    demands, err := d.Store.FindDemandsByStatus(ctx, model.DemandPending)
    if err != nil {
        return nil, nil, nil, err
    }
    vehicles, err := d.Store.FindVehicles(ctx, model.VehicleIdle)
    if err != nil {
        return nil, nil, nil, err
    }
    types, err := d.Store.FindVehicleTypes(ctx)
    if err != nil {
        return nil, nil, nil, err
    }
    byID := make(map[string]model.VehicleType, len(types))
    for _, t := range types {
        byID[t.ID] = t
    }
    return demands, vehicles, byID, nil
}

func fits(d model.TransportDemand, t model.VehicleType) bool {
    return d.CargoWeight <= t.MaxLoadWeight && d.CargoVolume <= t.MaxLoadVolume
}

// DispatchPendingDemands is the first-fit strategy: demands in query order,
// each taking the first idle vehicle whose capacity covers it. An assigned
// vehicle leaves the working set for the rest of the pass.
func (d *Dispatcher) DispatchPendingDemands(ctx context.Context) error {
    demands, vehicles, types, err := d.loadInputs(ctx)
    if err != nil {
        return err
    }
    for _, dem := range demands {
        for i, v := range vehicles {
            t, ok := types[v.TypeID]
            if !ok || !fits(dem, t) {
                continue
            }
            if err := d.assign(ctx, dem, v); err != nil {
                return err
            }
            metrics.Assignments.WithLabelValues("first_fit").Inc()
            vehicles = append(vehicles[:i], vehicles[i+1:]...)
            break
        }
    }
    return nil
}

type candidate struct {
    demandIdx  int
    vehicleIdx int
    cost       float64
}

// DispatchPendingDemandsByCost scores every feasible (demand, vehicle)
// pair and commits assignments greedily from cheapest to dearest, skipping
// pairs whose demand or vehicle was already claimed this pass.
func (d *Dispatcher) DispatchPendingDemandsByCost(ctx context.Context, w model.DispatchWeights) error {
    demands, vehicles, types, err := d.loadInputs(ctx)
    if err != nil {
        return err
    }
    if len(demands) == 0 || len(vehicles) == 0 {
        return nil
    }

    var maxFleetWeight float64
    for _, t := range types {
        if t.MaxLoadWeight > maxFleetWeight {
            maxFleetWeight = t.MaxLoadWeight
        }
    }
    if maxFleetWeight <= 0 {
        maxFleetWeight = 1
    }

    pois := map[string]model.GeoPoint{}
    poiPoint := func(id string) (model.GeoPoint, bool) {
        if p, ok := pois[id]; ok {
            return p, true
        }
        poi, err := d.Store.FindPoiByID(ctx, id)
        if err != nil {
            if !errors.Is(err, store.ErrNotFound) {
                log.Printf("sim: dispatch poi lookup %s: %v", id, err)
            }
            return model.GeoPoint{}, false
        }
        p := model.GeoPoint{Lng: poi.Lng, Lat: poi.Lat}
        pois[id] = p
        return p, true
    }

    var cands []candidate
    for di, dem := range demands {
        origin, ok := poiPoint(dem.OriginPoiID)
        if !ok {
            continue
        }
        dest, ok := poiPoint(dem.DestinationPoiID)
        if !ok {
            continue
        }
        legDist := geo.HaversineMeters(origin, dest)
        for vi, v := range vehicles {
            t, ok := types[v.TypeID]
            if !ok || !fits(dem, t) {
                continue
            }
            pos := model.GeoPoint{Lng: v.CurrentLng, Lat: v.CurrentLat}
            travelTime := (geo.HaversineMeters(pos, origin) + legDist) / d.NominalSpeed
            wasted := (t.MaxLoadWeight - dem.CargoWeight) / maxFleetWeight
            cost := w.Time*travelTime + w.WastedLoad*wasted*3600 - w.WastedIdle*v.WaitingDuration
            cands = append(cands, candidate{demandIdx: di, vehicleIdx: vi, cost: cost})
        }
    }

    // Stable sort keeps enumeration order as the tie-break, so a fixed
    // candidate set always yields the same assignments.
    sort.SliceStable(cands, func(i, j int) bool { return cands[i].cost < cands[j].cost })

    claimedDemands := make(map[int]bool, len(demands))
    claimedVehicles := make(map[int]bool, len(vehicles))
    for _, c := range cands {
        if claimedDemands[c.demandIdx] || claimedVehicles[c.vehicleIdx] {
            continue
        }
        if err := d.assign(ctx, demands[c.demandIdx], vehicles[c.vehicleIdx]); err != nil {
            return err
        }
        metrics.Assignments.WithLabelValues("weighted_cost").Inc()
        claimedDemands[c.demandIdx] = true
        claimedVehicles[c.vehicleIdx] = true
    }
    return nil
}

// assign commits one demand to one vehicle. Two single-entity writes; a
// failure between them leaves an inconsistency window the motion engine
// tolerates by resetting orphaned vehicles.
func (d *Dispatcher) assign(ctx context.Context, dem model.TransportDemand, v model.Vehicle) error {
    now := time.Now()
    dem.Status = model.DemandAssigned
    dem.AssignedVehicleID = v.ID
    dem.AssignmentTime = &now
    if err := d.Store.UpdateDemand(ctx, dem); err != nil {
        return err
    }

    v.Status = model.VehicleMovingToPickup
    v.CurrentDemandID = dem.ID
    v.Speed = d.NominalSpeed
    return d.Store.UpdateVehicle(ctx, v)
}
