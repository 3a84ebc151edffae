package store

import (
    "context"
    "errors"

    "fleetsim/internal/model"
)

// Store is the persistence interface consumed by the simulation engine and
// the API server. All operations are single-entity and best-effort: no
// multi-row transaction is assumed by callers.
type Store interface {
    // Vehicles
    FindVehicles(ctx context.Context, status model.VehicleStatus) ([]model.Vehicle, error) // "" means all
    FindVehicleByID(ctx context.Context, id string) (model.Vehicle, error)
    InsertVehicle(ctx context.Context, v model.Vehicle) error
    UpdateVehicle(ctx context.Context, v model.Vehicle) error
    // ResetAllVehicles returns every vehicle to IDLE with demand, speed and
    // route state cleared. Counters are preserved.
    ResetAllVehicles(ctx context.Context) error
    FindVehicleTypes(ctx context.Context) ([]model.VehicleType, error)
    InsertVehicleType(ctx context.Context, t model.VehicleType) error

    // Transport demands
    FindDemandsByStatus(ctx context.Context, status model.DemandStatus) ([]model.TransportDemand, error)
    FindDemandsByIDs(ctx context.Context, ids []string) ([]model.TransportDemand, error)
    CountDemandsByStatus(ctx context.Context, status model.DemandStatus) (int, error)
    InsertDemand(ctx context.Context, d model.TransportDemand) (string, error)
    UpdateDemand(ctx context.Context, d model.TransportDemand) error
    DeleteAllDemands(ctx context.Context) error

    // POIs
    FindPoiByID(ctx context.Context, id string) (model.Poi, error)
    FindPoisBySimType(ctx context.Context, role model.PoiRole) ([]model.Poi, error)
    InsertPoi(ctx context.Context, p model.Poi) error

    // Supply chain
    FindTemplates(ctx context.Context) ([]model.SupplyChainTemplate, error)
    FindStage(ctx context.Context, templateID string, order int) (model.SupplyChainStage, error)
    FindAllStages(ctx context.Context) ([]model.SupplyChainStage, error)
    InsertTemplate(ctx context.Context, t model.SupplyChainTemplate) error
    InsertStage(ctx context.Context, s model.SupplyChainStage) error

    // Route cache, keyed by normalized coordinates. At most one entry per key.
    FindCachedRoute(ctx context.Context, origin, destination string) (model.RouteInfo, error)
    InsertCachedRoute(ctx context.Context, r model.RouteInfo) (string, error)

    // Simulation sessions
    InsertSession(ctx context.Context, s model.SimulationSession) (string, error)
    UpdateSession(ctx context.Context, s model.SimulationSession) error
    FindSessionByID(ctx context.Context, id string) (model.SimulationSession, error)
    // FindLatestOpenSession returns the most recent session with no end
    // time, used by the clock for crash-resume.
    FindLatestOpenSession(ctx context.Context) (model.SimulationSession, error)
    ListSessions(ctx context.Context) ([]model.SimulationSession, error) // start time descending
}

var ErrNotFound = errors.New("not found")
