package sim

import (
    "context"
    "testing"

    "fleetsim/internal/geo"
    "fleetsim/internal/model"
    "fleetsim/internal/route"
    "fleetsim/internal/store"
)

// world is a small seeded universe shared by the sim tests: one two-stage
// template over three POI roles and a configurable fleet.
type world struct {
    st     *store.Memory
    typeID string
    tmplID string
    yard   model.Poi
    mill   model.Poi
    plant  model.Poi
}

func newWorld(t *testing.T) *world {
    t.Helper()
    ctx := context.Background()
    st := store.NewMemory()

    vt := model.VehicleType{ID: "vt-light", Name: "Light Truck", MaxLoadWeight: 50, MaxLoadVolume: 50}
    if err := st.InsertVehicleType(ctx, vt); err != nil { t.Fatal(err) }

    w := &world{
        st:     st,
        typeID: vt.ID,
        tmplID: "tmpl-furniture",
        yard:   model.Poi{ID: "poi-yard", Name: "Yard", SimType: model.RoleLumberYard, Lng: 120.10, Lat: 30.20},
        mill:   model.Poi{ID: "poi-mill", Name: "Mill", SimType: model.RoleSawmill, Lng: 120.20, Lat: 30.25},
        plant:  model.Poi{ID: "poi-plant", Name: "Plant", SimType: model.RoleFurnitureFactory, Lng: 120.30, Lat: 30.30},
    }
    for _, p := range []model.Poi{w.yard, w.mill, w.plant} {
        if err := st.InsertPoi(ctx, p); err != nil { t.Fatal(err) }
    }

    if err := st.InsertTemplate(ctx, model.SupplyChainTemplate{ID: w.tmplID, Name: "Furniture"}); err != nil { t.Fatal(err) }
    stages := []model.SupplyChainStage{
        {TemplateID: w.tmplID, StageOrder: 1, OriginPoiType: model.RoleLumberYard, DestinationPoiType: model.RoleSawmill, CargoName: "Raw Timber", CargoWeight: 30, CargoVolume: 25},
        {TemplateID: w.tmplID, StageOrder: 2, OriginPoiType: model.RoleSawmill, DestinationPoiType: model.RoleFurnitureFactory, CargoName: "Cut Lumber", CargoWeight: 25, CargoVolume: 20},
    }
    for _, s := range stages {
        if err := st.InsertStage(ctx, s); err != nil { t.Fatal(err) }
    }
    return w
}

func (w *world) addVehicle(t *testing.T, id string, lng, lat float64) model.Vehicle {
    t.Helper()
    v := model.Vehicle{ID: id, PlateNumber: id, TypeID: w.typeID, Status: model.VehicleIdle, CurrentLng: lng, CurrentLat: lat}
    if err := w.st.InsertVehicle(context.Background(), v); err != nil { t.Fatal(err) }
    return v
}

func (w *world) addDemand(t *testing.T, id string, weight, volume float64) model.TransportDemand {
    t.Helper()
    d := model.TransportDemand{
        ID:               id,
        OriginPoiID:      w.yard.ID,
        DestinationPoiID: w.mill.ID,
        CargoName:        "Raw Timber",
        CargoWeight:      weight,
        CargoVolume:      volume,
        Status:           model.DemandPending,
        TemplateID:       w.tmplID,
        StageOrder:       1,
    }
    if _, err := w.st.InsertDemand(context.Background(), d); err != nil { t.Fatal(err) }
    return d
}

// cacheRoute inserts a precomputed route so motion never needs a provider.
func (w *world) cacheRoute(t *testing.T, from, to model.GeoPoint, distance int) {
    t.Helper()
    r := model.RouteInfo{
        OriginCoords:      geo.FormatCoords(from),
        DestinationCoords: geo.FormatCoords(to),
        Distance:          distance,
        Duration:          distance / 10,
        Polyline:          geo.FormatCoords(from) + ";" + geo.FormatCoords(to),
    }
    if _, err := w.st.InsertCachedRoute(context.Background(), r); err != nil { t.Fatal(err) }
}

func (w *world) routeService() *route.Service {
    return route.NewService(w.st, route.NewSyntheticProvider(10))
}

func (w *world) vehicle(t *testing.T, id string) model.Vehicle {
    t.Helper()
    v, err := w.st.FindVehicleByID(context.Background(), id)
    if err != nil { t.Fatal(err) }
    return v
}

func (w *world) demand(t *testing.T, id string) model.TransportDemand {
    t.Helper()
    ds, err := w.st.FindDemandsByIDs(context.Background(), []string{id})
    if err != nil { t.Fatal(err) }
    if len(ds) != 1 { t.Fatalf("demand %s not found", id) }
    return ds[0]
}
