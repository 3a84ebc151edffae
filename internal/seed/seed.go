package seed

import (
    "context"
    "fmt"
    "log"
    "os"

    "gopkg.in/yaml.v3"

    "fleetsim/internal/model"
    "fleetsim/internal/store"
)

// Scenario is the YAML shape of a seed file: the static world the
// simulation runs against.
type Scenario struct {
    VehicleTypes []struct {
        Name                 string  `yaml:"name"`
        MaxLoadWeight        float64 `yaml:"max_load_weight"`
        MaxLoadVolume        float64 `yaml:"max_load_volume"`
        CarbonEmissionFactor float64 `yaml:"carbon_emission_factor"`
    } `yaml:"vehicle_types"`

    Vehicles []struct {
        PlateNumber string  `yaml:"plate_number"`
        Type        string  `yaml:"type"`
        Lng         float64 `yaml:"lng"`
        Lat         float64 `yaml:"lat"`
    } `yaml:"vehicles"`

    Pois []struct {
        Name    string  `yaml:"name"`
        Address string  `yaml:"address"`
        SimType string  `yaml:"sim_type"`
        Lng     float64 `yaml:"lng"`
        Lat     float64 `yaml:"lat"`
    } `yaml:"pois"`

    Templates []struct {
        Name        string `yaml:"name"`
        Description string `yaml:"description"`
        Stages      []struct {
            Origin      string  `yaml:"origin"`
            Destination string  `yaml:"destination"`
            CargoName   string  `yaml:"cargo_name"`
            CargoWeight float64 `yaml:"cargo_weight"`
            CargoVolume float64 `yaml:"cargo_volume"`
        } `yaml:"stages"`
    } `yaml:"templates"`
}

func LoadScenario(path string) (Scenario, error) {
    var sc Scenario
    data, err := os.ReadFile(path)
    if err != nil {
        return sc, fmt.Errorf("seed: read %s: %w", path, err)
    }
    if err := yaml.Unmarshal(data, &sc); err != nil {
        return sc, fmt.Errorf("seed: parse %s: %w", path, err)
    }
    return sc, nil
}

// Apply inserts the scenario into an empty store. A store that already
// holds vehicles is left untouched so restarts do not duplicate the world.
func Apply(ctx context.Context, st store.Store, sc Scenario) error {
    existing, err := st.FindVehicles(ctx, "")
    if err != nil {
        return err
    }
    if len(existing) > 0 {
        log.Printf("seed: store already has %d vehicles, skipping", len(existing))
        return nil
    }

    typeIDs := map[string]string{}
    for _, vt := range sc.VehicleTypes {
        t := model.VehicleType{
            Name:                 vt.Name,
            MaxLoadWeight:        vt.MaxLoadWeight,
            MaxLoadVolume:        vt.MaxLoadVolume,
            CarbonEmissionFactor: vt.CarbonEmissionFactor,
        }
        if err := st.InsertVehicleType(ctx, t); err != nil {
            return err
        }
    }
    types, err := st.FindVehicleTypes(ctx)
    if err != nil {
        return err
    }
    for _, t := range types {
        typeIDs[t.Name] = t.ID
    }

    for _, v := range sc.Vehicles {
        typeID, ok := typeIDs[v.Type]
        if !ok {
            return fmt.Errorf("seed: vehicle %s references unknown type %q", v.PlateNumber, v.Type)
        }
        vehicle := model.Vehicle{
            PlateNumber: v.PlateNumber,
            TypeID:      typeID,
            Status:      model.VehicleIdle,
            CurrentLng:  v.Lng,
            CurrentLat:  v.Lat,
        }
        if err := st.InsertVehicle(ctx, vehicle); err != nil {
            return err
        }
    }

    for _, p := range sc.Pois {
        poi := model.Poi{
            Name:    p.Name,
            Address: p.Address,
            Lng:     p.Lng,
            Lat:     p.Lat,
            SimType: model.PoiRole(p.SimType),
        }
        if err := st.InsertPoi(ctx, poi); err != nil {
            return err
        }
    }

    for _, tmpl := range sc.Templates {
        t := model.SupplyChainTemplate{Name: tmpl.Name, Description: tmpl.Description}
        if err := st.InsertTemplate(ctx, t); err != nil {
            return err
        }
    }
    templates, err := st.FindTemplates(ctx)
    if err != nil {
        return err
    }
    tmplIDs := map[string]string{}
    for _, t := range templates {
        tmplIDs[t.Name] = t.ID
    }
    for _, tmpl := range sc.Templates {
        id := tmplIDs[tmpl.Name]
        for i, stg := range tmpl.Stages {
            stage := model.SupplyChainStage{
                TemplateID:         id,
                StageOrder:         i + 1,
                OriginPoiType:      model.PoiRole(stg.Origin),
                DestinationPoiType: model.PoiRole(stg.Destination),
                CargoName:          stg.CargoName,
                CargoWeight:        stg.CargoWeight,
                CargoVolume:        stg.CargoVolume,
            }
            if err := st.InsertStage(ctx, stage); err != nil {
                return err
            }
        }
    }

    log.Printf("seed: loaded %d types, %d vehicles, %d pois, %d templates",
        len(sc.VehicleTypes), len(sc.Vehicles), len(sc.Pois), len(sc.Templates))
    return nil
}
