package model

import "time"

// VehicleStatus is the vehicle state machine driven by the motion engine.
type VehicleStatus string

const (
    VehicleIdle           VehicleStatus = "IDLE"
    VehicleMovingToPickup VehicleStatus = "MOVING_TO_PICKUP"
    VehicleLoading        VehicleStatus = "LOADING"
    VehicleInTransit      VehicleStatus = "IN_TRANSIT"
    VehicleUnloading      VehicleStatus = "UNLOADING"
    // Parked states, never advanced by the motion engine.
    VehicleMaintenance VehicleStatus = "MAINTENANCE"
    VehicleRefused     VehicleStatus = "REFUSED"
)

// DemandStatus is the transport demand lifecycle.
type DemandStatus string

const (
    DemandPending   DemandStatus = "PENDING"
    DemandAssigned  DemandStatus = "ASSIGNED"
    DemandCompleted DemandStatus = "COMPLETED"
    DemandCancelled DemandStatus = "CANCELLED"
)

// PoiRole maps a POI onto its role in the supply chain. The set is open;
// these are the roles the default scenario uses.
type PoiRole string

const (
    RoleLumberYard       PoiRole = "LUMBER_YARD"
    RoleSawmill          PoiRole = "SAWMILL"
    RoleFurnitureFactory PoiRole = "FURNITURE_FACTORY"
    RoleFurnitureMarket  PoiRole = "FURNITURE_MARKET"
    RoleIronMine         PoiRole = "IRON_MINE"
    RoleSteelMill        PoiRole = "STEEL_MILL"
    RoleHardwareFactory  PoiRole = "HARDWARE_FACTORY"
)

// Vehicle holds the persisted vehicle record. Simulation-only transient
// state lives in VehicleSim and survives only in the motion engine's
// runtime cache.
type Vehicle struct {
    ID              string        `json:"id"`
    PlateNumber     string        `json:"plateNumber"`
    TypeID          string        `json:"typeId"`
    Status          VehicleStatus `json:"status"`
    CurrentLng      float64       `json:"currentLng"`
    CurrentLat      float64       `json:"currentLat"`
    CurrentDemandID string        `json:"currentDemandId,omitempty"`
    Speed           float64       `json:"speed"` // meters per simulated second

    // Cumulative counters, updated by the motion engine. Persisted so they
    // survive runtime-cache eviction and feed session KPIs.
    ShippedWeight   float64 `json:"shippedWeight"`
    ShippedVolume   float64 `json:"shippedVolume"`
    NoLoadDistance  float64 `json:"noLoadDistance"`  // meters, MOVING_TO_PICKUP legs
    LoadDistance    float64 `json:"loadDistance"`    // meters, IN_TRANSIT legs
    DriveDuration   float64 `json:"driveDuration"`   // simulated seconds in motion
    WaitingDuration float64 `json:"waitingDuration"` // simulated seconds spent IDLE

    LastUpdate time.Time `json:"lastUpdate,omitempty"`
}

// VehicleSim is the simulation-only subset of vehicle state. It is merged
// with the persisted record by the motion engine each tick and never
// written to the store.
type VehicleSim struct {
    RoutePolyline    string     `json:"routePolyline,omitempty"`
    ParsedPath       []GeoPoint `json:"-"`
    TraveledPolyline string     `json:"traveledPolyline,omitempty"`
    RouteDistance    int        `json:"routeDistance,omitempty"` // meters
    RouteDuration    int        `json:"routeDuration,omitempty"` // seconds
    ActionStart      int64      `json:"actionStart,omitempty"`   // simulated seconds
    LastReachedIndex int        `json:"-"`                       // checkpoint vertex, -1 when unset
}

// VehicleView is the read-only snapshot served to clients: the persisted
// record plus the display-relevant transient fields.
type VehicleView struct {
    Vehicle
    VehicleSim
}

type GeoPoint struct {
    Lng float64 `json:"lng"`
    Lat float64 `json:"lat"`
}

// VehicleType is the shared, read-only capacity profile of a vehicle.
type VehicleType struct {
    ID                   string  `json:"id"`
    Name                 string  `json:"name"`
    MaxLoadWeight        float64 `json:"maxLoadWeight"`
    MaxLoadVolume        float64 `json:"maxLoadVolume"`
    CarbonEmissionFactor float64 `json:"carbonEmissionFactor"`
}

// TransportDemand is one leg of cargo to move between two POIs.
type TransportDemand struct {
    ID                string       `json:"id"`
    OriginPoiID       string       `json:"originPoiId"`
    DestinationPoiID  string       `json:"destinationPoiId"`
    CargoName         string       `json:"cargoName"`
    CargoWeight       float64      `json:"cargoWeight"`
    CargoVolume       float64      `json:"cargoVolume"`
    Status            DemandStatus `json:"status"`
    AssignedVehicleID string       `json:"assignedVehicleId,omitempty"`
    CreationTime      time.Time    `json:"creationTime"`
    AssignmentTime    *time.Time   `json:"assignmentTime,omitempty"`
    PickupTime        *time.Time   `json:"pickupTime,omitempty"`
    CompletionTime    *time.Time   `json:"completionTime,omitempty"`

    // Supply-chain provenance. Empty TemplateID means an ad-hoc demand
    // that never triggers a follow-up stage.
    TemplateID string `json:"templateId,omitempty"`
    StageOrder int    `json:"stageOrder,omitempty"`
}

// Poi is a geocoded point with a simulation role.
type Poi struct {
    ID      string  `json:"id"`
    Name    string  `json:"name"`
    Address string  `json:"address,omitempty"`
    Lng     float64 `json:"lng"`
    Lat     float64 `json:"lat"`
    SimType PoiRole `json:"simType"`
}

// SupplyChainTemplate owns an ordered sequence of stages.
type SupplyChainTemplate struct {
    ID          string `json:"id"`
    Name        string `json:"name"`
    Description string `json:"description,omitempty"`
}

// SupplyChainStage binds origin/destination POI roles and a cargo profile
// for one leg of a template. Immutable after seeding.
type SupplyChainStage struct {
    ID                 string  `json:"id"`
    TemplateID         string  `json:"templateId"`
    StageOrder         int     `json:"stageOrder"`
    OriginPoiType      PoiRole `json:"originPoiType"`
    DestinationPoiType PoiRole `json:"destinationPoiType"`
    CargoName          string  `json:"cargoName"`
    CargoWeight        float64 `json:"cargoWeight"`
    CargoVolume        float64 `json:"cargoVolume"`
}

// RouteInfo is one cached driving route, keyed by normalized coordinates.
type RouteInfo struct {
    ID                string    `json:"id"`
    OriginCoords      string    `json:"originCoords"`
    DestinationCoords string    `json:"destinationCoords"`
    Distance          int       `json:"distance"` // meters
    Duration          int       `json:"duration"` // seconds
    Polyline          string    `json:"polyline"` // "lng,lat;lng,lat;..."
    CreatedAt         time.Time `json:"createdAt,omitempty"`
}

// DispatchWeights configures one simulation run's assignment strategy.
type DispatchWeights struct {
    UseWeighted bool    `json:"useWeighted"`
    Time        float64 `json:"weightTime"`
    WastedLoad  float64 `json:"weightWastedLoad"`
    WastedIdle  float64 `json:"weightWastedIdle"`
}

// SimulationSession records one run's configuration and result KPIs.
// At most one session with a nil EndTime should exist; the clock resumes
// it after a crash instead of opening a second one.
type SimulationSession struct {
    ID          string     `json:"id"`
    SessionName string     `json:"sessionName"`
    StartTime   time.Time  `json:"startTime"`
    EndTime     *time.Time `json:"endTime,omitempty"`

    UseWeighted      bool    `json:"useWeighted"`
    WeightTime       float64 `json:"weightTime"`
    WeightWastedLoad float64 `json:"weightWastedLoad"`
    WeightWastedIdle float64 `json:"weightWastedIdle"`

    AvgNoLoadDistance     float64 `json:"avgNoLoadDistance"`
    AvgLoadDistance       float64 `json:"avgLoadDistance"`
    AvgTotalDuration      float64 `json:"avgTotalDuration"`
    AvgWaitingDuration    float64 `json:"avgWaitingDuration"`
    TotalDemandsCompleted int     `json:"totalDemandsCompleted"`
    TotalWastedCapacity   float64 `json:"totalWastedCapacity"`
    Notes                 string  `json:"notes,omitempty"`
}

// Weights reconstructs the dispatch configuration stored on a session.
func (s SimulationSession) Weights() DispatchWeights {
    return DispatchWeights{
        UseWeighted: s.UseWeighted,
        Time:        s.WeightTime,
        WastedLoad:  s.WeightWastedLoad,
        WastedIdle:  s.WeightWastedIdle,
    }
}

// FleetKPIs aggregates per-vehicle counters for session finalization.
type FleetKPIs struct {
    AvgNoLoadDistance   float64 `json:"avgNoLoadDistance"`
    AvgLoadDistance     float64 `json:"avgLoadDistance"`
    AvgTotalDuration    float64 `json:"avgTotalDuration"`
    AvgWaitingDuration  float64 `json:"avgWaitingDuration"`
    TotalWastedCapacity float64 `json:"totalWastedCapacity"`
}
