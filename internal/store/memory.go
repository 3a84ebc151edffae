package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"

    "fleetsim/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu        sync.Mutex
    vehicles  map[string]model.Vehicle
    vehicleIDs []string // insertion order, keeps query order deterministic
    types     map[string]model.VehicleType
    typeIDs   []string
    demands   map[string]model.TransportDemand
    demandIDs []string
    pois      map[string]model.Poi
    poiIDs    []string
    templates map[string]model.SupplyChainTemplate
    tmplIDs   []string
    stages    []model.SupplyChainStage
    routes    map[string]model.RouteInfo // key: origin + "|" + destination
    sessions  map[string]model.SimulationSession
    sessIDs   []string
}

func NewMemory() *Memory {
    return &Memory{
        vehicles:  map[string]model.Vehicle{},
        types:     map[string]model.VehicleType{},
        demands:   map[string]model.TransportDemand{},
        pois:      map[string]model.Poi{},
        templates: map[string]model.SupplyChainTemplate{},
        routes:    map[string]model.RouteInfo{},
        sessions:  map[string]model.SimulationSession{},
    }
}

// Vehicles

func (m *Memory) FindVehicles(ctx context.Context, status model.VehicleStatus) ([]model.Vehicle, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Vehicle{}
    for _, id := range m.vehicleIDs {
        v := m.vehicles[id]
        if status == "" || v.Status == status { out = append(out, v) }
    }
    return out, nil
}

func (m *Memory) FindVehicleByID(ctx context.Context, id string) (model.Vehicle, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    v, ok := m.vehicles[id]
    if !ok { return model.Vehicle{}, ErrNotFound }
    return v, nil
}

func (m *Memory) InsertVehicle(ctx context.Context, v model.Vehicle) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if v.ID == "" { v.ID = uuid.New().String() }
    if _, ok := m.vehicles[v.ID]; !ok { m.vehicleIDs = append(m.vehicleIDs, v.ID) }
    m.vehicles[v.ID] = v
    return nil
}

func (m *Memory) UpdateVehicle(ctx context.Context, v model.Vehicle) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.vehicles[v.ID]; !ok { return ErrNotFound }
    v.LastUpdate = time.Now()
    m.vehicles[v.ID] = v
    return nil
}

func (m *Memory) ResetAllVehicles(ctx context.Context) error {
    m.mu.Lock(); defer m.mu.Unlock()
    for id, v := range m.vehicles {
        v.Status = model.VehicleIdle
        v.CurrentDemandID = ""
        v.Speed = 0
        v.LastUpdate = time.Now()
        m.vehicles[id] = v
    }
    return nil
}

func (m *Memory) FindVehicleTypes(ctx context.Context) ([]model.VehicleType, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make([]model.VehicleType, 0, len(m.typeIDs))
    for _, id := range m.typeIDs { out = append(out, m.types[id]) }
    return out, nil
}

func (m *Memory) InsertVehicleType(ctx context.Context, t model.VehicleType) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if t.ID == "" { t.ID = uuid.New().String() }
    if _, ok := m.types[t.ID]; !ok { m.typeIDs = append(m.typeIDs, t.ID) }
    m.types[t.ID] = t
    return nil
}

// Demands

func (m *Memory) FindDemandsByStatus(ctx context.Context, status model.DemandStatus) ([]model.TransportDemand, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.TransportDemand{}
    for _, id := range m.demandIDs {
        d := m.demands[id]
        if status == "" || d.Status == status { out = append(out, d) }
    }
    return out, nil
}

func (m *Memory) FindDemandsByIDs(ctx context.Context, ids []string) ([]model.TransportDemand, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.TransportDemand{}
    for _, id := range ids {
        if d, ok := m.demands[id]; ok { out = append(out, d) }
    }
    return out, nil
}

func (m *Memory) CountDemandsByStatus(ctx context.Context, status model.DemandStatus) (int, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    n := 0
    for _, d := range m.demands {
        if status == "" || d.Status == status { n++ }
    }
    return n, nil
}

func (m *Memory) InsertDemand(ctx context.Context, d model.TransportDemand) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if d.ID == "" { d.ID = uuid.New().String() }
    if d.CreationTime.IsZero() { d.CreationTime = time.Now() }
    if _, ok := m.demands[d.ID]; !ok { m.demandIDs = append(m.demandIDs, d.ID) }
    m.demands[d.ID] = d
    return d.ID, nil
}

func (m *Memory) UpdateDemand(ctx context.Context, d model.TransportDemand) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.demands[d.ID]; !ok { return ErrNotFound }
    m.demands[d.ID] = d
    return nil
}

func (m *Memory) DeleteAllDemands(ctx context.Context) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.demands = map[string]model.TransportDemand{}
    m.demandIDs = nil
    return nil
}

// POIs

func (m *Memory) FindPoiByID(ctx context.Context, id string) (model.Poi, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.pois[id]
    if !ok { return model.Poi{}, ErrNotFound }
    return p, nil
}

func (m *Memory) FindPoisBySimType(ctx context.Context, role model.PoiRole) ([]model.Poi, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []model.Poi{}
    for _, id := range m.poiIDs {
        if p := m.pois[id]; p.SimType == role { out = append(out, p) }
    }
    return out, nil
}

func (m *Memory) InsertPoi(ctx context.Context, p model.Poi) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if p.ID == "" { p.ID = uuid.New().String() }
    if _, ok := m.pois[p.ID]; !ok { m.poiIDs = append(m.poiIDs, p.ID) }
    m.pois[p.ID] = p
    return nil
}

// Supply chain

func (m *Memory) FindTemplates(ctx context.Context) ([]model.SupplyChainTemplate, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make([]model.SupplyChainTemplate, 0, len(m.tmplIDs))
    for _, id := range m.tmplIDs { out = append(out, m.templates[id]) }
    return out, nil
}

func (m *Memory) FindStage(ctx context.Context, templateID string, order int) (model.SupplyChainStage, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    for _, s := range m.stages {
        if s.TemplateID == templateID && s.StageOrder == order { return s, nil }
    }
    return model.SupplyChainStage{}, ErrNotFound
}

func (m *Memory) FindAllStages(ctx context.Context) ([]model.SupplyChainStage, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return append([]model.SupplyChainStage(nil), m.stages...), nil
}

func (m *Memory) InsertTemplate(ctx context.Context, t model.SupplyChainTemplate) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if t.ID == "" { t.ID = uuid.New().String() }
    if _, ok := m.templates[t.ID]; !ok { m.tmplIDs = append(m.tmplIDs, t.ID) }
    m.templates[t.ID] = t
    return nil
}

func (m *Memory) InsertStage(ctx context.Context, s model.SupplyChainStage) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if s.ID == "" { s.ID = uuid.New().String() }
    m.stages = append(m.stages, s)
    return nil
}

// Route cache

func routeKey(origin, destination string) string { return origin + "|" + destination }

func (m *Memory) FindCachedRoute(ctx context.Context, origin, destination string) (model.RouteInfo, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.routes[routeKey(origin, destination)]
    if !ok { return model.RouteInfo{}, ErrNotFound }
    return r, nil
}

func (m *Memory) InsertCachedRoute(ctx context.Context, r model.RouteInfo) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    key := routeKey(r.OriginCoords, r.DestinationCoords)
    if existing, ok := m.routes[key]; ok {
        // Append-only: at most one entry per key.
        return existing.ID, nil
    }
    if r.ID == "" { r.ID = uuid.New().String() }
    if r.CreatedAt.IsZero() { r.CreatedAt = time.Now() }
    m.routes[key] = r
    return r.ID, nil
}

// Sessions

func (m *Memory) InsertSession(ctx context.Context, s model.SimulationSession) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if s.ID == "" { s.ID = uuid.New().String() }
    if _, ok := m.sessions[s.ID]; !ok { m.sessIDs = append(m.sessIDs, s.ID) }
    m.sessions[s.ID] = s
    return s.ID, nil
}

func (m *Memory) UpdateSession(ctx context.Context, s model.SimulationSession) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.sessions[s.ID]; !ok { return ErrNotFound }
    m.sessions[s.ID] = s
    return nil
}

func (m *Memory) FindSessionByID(ctx context.Context, id string) (model.SimulationSession, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.sessions[id]
    if !ok { return model.SimulationSession{}, ErrNotFound }
    return s, nil
}

func (m *Memory) FindLatestOpenSession(ctx context.Context) (model.SimulationSession, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var best *model.SimulationSession
    for _, id := range m.sessIDs {
        s := m.sessions[id]
        if s.EndTime != nil { continue }
        if best == nil || s.StartTime.After(best.StartTime) {
            cp := s
            best = &cp
        }
    }
    if best == nil { return model.SimulationSession{}, ErrNotFound }
    return *best, nil
}

func (m *Memory) ListSessions(ctx context.Context) ([]model.SimulationSession, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make([]model.SimulationSession, 0, len(m.sessIDs))
    for _, id := range m.sessIDs { out = append(out, m.sessions[id]) }
    sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
    return out, nil
}
