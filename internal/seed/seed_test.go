package seed

import (
    "context"
    "os"
    "path/filepath"
    "testing"

    "fleetsim/internal/model"
    "fleetsim/internal/store"
)

const scenarioYAML = `
vehicle_types:
  - name: Light Truck
    max_load_weight: 50
    max_load_volume: 50
vehicles:
  - plate_number: ZJ-T001
    type: Light Truck
    lng: 120.1
    lat: 30.2
pois:
  - name: North Yard
    sim_type: LUMBER_YARD
    lng: 120.10
    lat: 30.20
  - name: River Sawmill
    sim_type: SAWMILL
    lng: 120.20
    lat: 30.25
templates:
  - name: Furniture Chain
    stages:
      - origin: LUMBER_YARD
        destination: SAWMILL
        cargo_name: Raw Timber
        cargo_weight: 30
        cargo_volume: 25
      - origin: SAWMILL
        destination: FURNITURE_FACTORY
        cargo_name: Cut Lumber
        cargo_weight: 25
        cargo_volume: 20
`

func writeScenario(t *testing.T, body string) string {
    t.Helper()
    path := filepath.Join(t.TempDir(), "scenario.yaml")
    if err := os.WriteFile(path, []byte(body), 0o644); err != nil { t.Fatal(err) }
    return path
}

func TestLoadAndApply(t *testing.T) {
    ctx := context.Background()
    sc, err := LoadScenario(writeScenario(t, scenarioYAML))
    if err != nil { t.Fatalf("load: %v", err) }

    st := store.NewMemory()
    if err := Apply(ctx, st, sc); err != nil { t.Fatalf("apply: %v", err) }

    vehicles, err := st.FindVehicles(ctx, "")
    if err != nil { t.Fatal(err) }
    if len(vehicles) != 1 { t.Fatalf("want 1 vehicle, got %d", len(vehicles)) }
    if vehicles[0].Status != model.VehicleIdle { t.Fatalf("status = %q", vehicles[0].Status) }
    if vehicles[0].TypeID == "" { t.Fatal("vehicle type not linked") }

    pois, err := st.FindPoisBySimType(ctx, model.RoleSawmill)
    if err != nil { t.Fatal(err) }
    if len(pois) != 1 { t.Fatalf("want 1 sawmill, got %d", len(pois)) }

    templates, err := st.FindTemplates(ctx)
    if err != nil { t.Fatal(err) }
    if len(templates) != 1 { t.Fatalf("want 1 template, got %d", len(templates)) }
    stage, err := st.FindStage(ctx, templates[0].ID, 2)
    if err != nil { t.Fatal(err) }
    if stage.CargoName != "Cut Lumber" { t.Fatalf("stage 2 cargo = %q", stage.CargoName) }
}

func TestApplySkipsSeededStore(t *testing.T) {
    ctx := context.Background()
    sc, err := LoadScenario(writeScenario(t, scenarioYAML))
    if err != nil { t.Fatal(err) }

    st := store.NewMemory()
    if err := Apply(ctx, st, sc); err != nil { t.Fatal(err) }
    if err := Apply(ctx, st, sc); err != nil { t.Fatal(err) }

    vehicles, err := st.FindVehicles(ctx, "")
    if err != nil { t.Fatal(err) }
    if len(vehicles) != 1 { t.Fatalf("reseed duplicated vehicles: %d", len(vehicles)) }
}

func TestApplyUnknownTypeFails(t *testing.T) {
    body := "vehicles:\n  - plate_number: ZJ-T001\n    type: Ghost Truck\n    lng: 120.1\n    lat: 30.2\n"
    sc, err := LoadScenario(writeScenario(t, body))
    if err != nil { t.Fatal(err) }
    if err := Apply(context.Background(), store.NewMemory(), sc); err == nil {
        t.Fatal("unknown vehicle type should fail")
    }
}
