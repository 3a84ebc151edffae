package store

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "fleetsim/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

// EnsureSchema creates the tables when they do not exist yet (dev helper).
func (p *Postgres) EnsureSchema(ctx context.Context) error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS vehicle_types (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            max_load_weight DOUBLE PRECISION NOT NULL,
            max_load_volume DOUBLE PRECISION NOT NULL,
            carbon_emission_factor DOUBLE PRECISION NOT NULL DEFAULT 0
        )`,
        `CREATE TABLE IF NOT EXISTS vehicles (
            id TEXT PRIMARY KEY,
            plate_number TEXT NOT NULL,
            type_id TEXT NOT NULL REFERENCES vehicle_types(id),
            status TEXT NOT NULL,
            current_lng DOUBLE PRECISION NOT NULL,
            current_lat DOUBLE PRECISION NOT NULL,
            current_demand_id TEXT,
            speed DOUBLE PRECISION NOT NULL DEFAULT 0,
            shipped_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
            shipped_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
            no_load_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
            load_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
            drive_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
            waiting_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
            last_update TIMESTAMPTZ
        )`,
        `CREATE TABLE IF NOT EXISTS transport_demands (
            id TEXT PRIMARY KEY,
            origin_poi_id TEXT NOT NULL,
            destination_poi_id TEXT NOT NULL,
            cargo_name TEXT NOT NULL,
            cargo_weight DOUBLE PRECISION NOT NULL,
            cargo_volume DOUBLE PRECISION NOT NULL,
            status TEXT NOT NULL,
            assigned_vehicle_id TEXT,
            creation_time TIMESTAMPTZ NOT NULL,
            assignment_time TIMESTAMPTZ,
            pickup_time TIMESTAMPTZ,
            completion_time TIMESTAMPTZ,
            template_id TEXT,
            stage_order INT NOT NULL DEFAULT 0
        )`,
        `CREATE TABLE IF NOT EXISTS pois (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            address TEXT,
            lng DOUBLE PRECISION NOT NULL,
            lat DOUBLE PRECISION NOT NULL,
            sim_type TEXT NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS supply_chain_templates (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT
        )`,
        `CREATE TABLE IF NOT EXISTS supply_chain_stages (
            id TEXT PRIMARY KEY,
            template_id TEXT NOT NULL REFERENCES supply_chain_templates(id),
            stage_order INT NOT NULL,
            origin_poi_type TEXT NOT NULL,
            destination_poi_type TEXT NOT NULL,
            cargo_name TEXT NOT NULL,
            cargo_weight DOUBLE PRECISION NOT NULL,
            cargo_volume DOUBLE PRECISION NOT NULL,
            UNIQUE (template_id, stage_order)
        )`,
        `CREATE TABLE IF NOT EXISTS route_cache (
            id TEXT PRIMARY KEY,
            origin_coords TEXT NOT NULL,
            destination_coords TEXT NOT NULL,
            distance INT NOT NULL,
            duration INT NOT NULL,
            polyline TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            UNIQUE (origin_coords, destination_coords)
        )`,
        `CREATE TABLE IF NOT EXISTS simulation_sessions (
            id TEXT PRIMARY KEY,
            session_name TEXT NOT NULL,
            start_time TIMESTAMPTZ NOT NULL,
            end_time TIMESTAMPTZ,
            use_weighted BOOLEAN NOT NULL DEFAULT false,
            weight_time DOUBLE PRECISION NOT NULL DEFAULT 0,
            weight_wasted_load DOUBLE PRECISION NOT NULL DEFAULT 0,
            weight_wasted_idle DOUBLE PRECISION NOT NULL DEFAULT 0,
            avg_no_load_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
            avg_load_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
            avg_total_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
            avg_waiting_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
            total_demands_completed INT NOT NULL DEFAULT 0,
            total_wasted_capacity DOUBLE PRECISION NOT NULL DEFAULT 0,
            notes TEXT
        )`,
    }
    for _, s := range stmts {
        if _, err := p.db.ExecContext(ctx, s); err != nil {
            return err
        }
    }
    return nil
}

const vehicleCols = `id, plate_number, type_id, status, current_lng, current_lat,
    COALESCE(current_demand_id,''), speed, shipped_weight, shipped_volume,
    no_load_distance, load_distance, drive_duration, waiting_duration, last_update`

func scanVehicle(row interface{ Scan(...any) error }) (model.Vehicle, error) {
    var v model.Vehicle
    var last sql.NullTime
    err := row.Scan(&v.ID, &v.PlateNumber, &v.TypeID, &v.Status, &v.CurrentLng, &v.CurrentLat,
        &v.CurrentDemandID, &v.Speed, &v.ShippedWeight, &v.ShippedVolume,
        &v.NoLoadDistance, &v.LoadDistance, &v.DriveDuration, &v.WaitingDuration, &last)
    if last.Valid { v.LastUpdate = last.Time }
    return v, err
}

func (p *Postgres) FindVehicles(ctx context.Context, status model.VehicleStatus) ([]model.Vehicle, error) {
    q := `SELECT ` + vehicleCols + ` FROM vehicles ORDER BY plate_number`
    args := []any{}
    if status != "" {
        q = `SELECT ` + vehicleCols + ` FROM vehicles WHERE status=$1 ORDER BY plate_number`
        args = append(args, string(status))
    }
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Vehicle{}
    for rows.Next() {
        v, err := scanVehicle(rows)
        if err != nil { return nil, err }
        out = append(out, v)
    }
    return out, rows.Err()
}

func (p *Postgres) FindVehicleByID(ctx context.Context, id string) (model.Vehicle, error) {
    row := p.db.QueryRowContext(ctx, `SELECT `+vehicleCols+` FROM vehicles WHERE id=$1`, id)
    v, err := scanVehicle(row)
    if errors.Is(err, sql.ErrNoRows) { return model.Vehicle{}, ErrNotFound }
    return v, err
}

func (p *Postgres) InsertVehicle(ctx context.Context, v model.Vehicle) error {
    if v.ID == "" { v.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO vehicles
        (id, plate_number, type_id, status, current_lng, current_lat, current_demand_id, speed,
         shipped_weight, shipped_volume, no_load_distance, load_distance, drive_duration, waiting_duration, last_update)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
        v.ID, v.PlateNumber, v.TypeID, string(v.Status), v.CurrentLng, v.CurrentLat,
        nullIfEmpty(v.CurrentDemandID), v.Speed, v.ShippedWeight, v.ShippedVolume,
        v.NoLoadDistance, v.LoadDistance, v.DriveDuration, v.WaitingDuration, time.Now())
    return err
}

func (p *Postgres) UpdateVehicle(ctx context.Context, v model.Vehicle) error {
    res, err := p.db.ExecContext(ctx, `UPDATE vehicles SET
        plate_number=$2, type_id=$3, status=$4, current_lng=$5, current_lat=$6,
        current_demand_id=$7, speed=$8, shipped_weight=$9, shipped_volume=$10,
        no_load_distance=$11, load_distance=$12, drive_duration=$13, waiting_duration=$14,
        last_update=$15 WHERE id=$1`,
        v.ID, v.PlateNumber, v.TypeID, string(v.Status), v.CurrentLng, v.CurrentLat,
        nullIfEmpty(v.CurrentDemandID), v.Speed, v.ShippedWeight, v.ShippedVolume,
        v.NoLoadDistance, v.LoadDistance, v.DriveDuration, v.WaitingDuration, time.Now())
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) ResetAllVehicles(ctx context.Context) error {
    _, err := p.db.ExecContext(ctx, `UPDATE vehicles SET
        status=$1, current_demand_id=NULL, speed=0, last_update=now()`, string(model.VehicleIdle))
    return err
}

func (p *Postgres) FindVehicleTypes(ctx context.Context) ([]model.VehicleType, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id, name, max_load_weight, max_load_volume,
        carbon_emission_factor FROM vehicle_types ORDER BY name`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.VehicleType{}
    for rows.Next() {
        var t model.VehicleType
        if err := rows.Scan(&t.ID, &t.Name, &t.MaxLoadWeight, &t.MaxLoadVolume, &t.CarbonEmissionFactor); err != nil {
            return nil, err
        }
        out = append(out, t)
    }
    return out, rows.Err()
}

func (p *Postgres) InsertVehicleType(ctx context.Context, t model.VehicleType) error {
    if t.ID == "" { t.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO vehicle_types
        (id, name, max_load_weight, max_load_volume, carbon_emission_factor)
        VALUES ($1,$2,$3,$4,$5) ON CONFLICT (id) DO NOTHING`,
        t.ID, t.Name, t.MaxLoadWeight, t.MaxLoadVolume, t.CarbonEmissionFactor)
    return err
}

const demandCols = `id, origin_poi_id, destination_poi_id, cargo_name, cargo_weight, cargo_volume,
    status, COALESCE(assigned_vehicle_id,''), creation_time, assignment_time, pickup_time,
    completion_time, COALESCE(template_id,''), stage_order`

func scanDemand(row interface{ Scan(...any) error }) (model.TransportDemand, error) {
    var d model.TransportDemand
    var at, pt, ct sql.NullTime
    err := row.Scan(&d.ID, &d.OriginPoiID, &d.DestinationPoiID, &d.CargoName, &d.CargoWeight,
        &d.CargoVolume, &d.Status, &d.AssignedVehicleID, &d.CreationTime, &at, &pt, &ct,
        &d.TemplateID, &d.StageOrder)
    if at.Valid { d.AssignmentTime = &at.Time }
    if pt.Valid { d.PickupTime = &pt.Time }
    if ct.Valid { d.CompletionTime = &ct.Time }
    return d, err
}

func (p *Postgres) FindDemandsByStatus(ctx context.Context, status model.DemandStatus) ([]model.TransportDemand, error) {
    q := `SELECT ` + demandCols + ` FROM transport_demands ORDER BY creation_time`
    args := []any{}
    if status != "" {
        q = `SELECT ` + demandCols + ` FROM transport_demands WHERE status=$1 ORDER BY creation_time`
        args = append(args, string(status))
    }
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.TransportDemand{}
    for rows.Next() {
        d, err := scanDemand(rows)
        if err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) FindDemandsByIDs(ctx context.Context, ids []string) ([]model.TransportDemand, error) {
    out := []model.TransportDemand{}
    for _, id := range ids {
        row := p.db.QueryRowContext(ctx, `SELECT `+demandCols+` FROM transport_demands WHERE id=$1`, id)
        d, err := scanDemand(row)
        if errors.Is(err, sql.ErrNoRows) { continue }
        if err != nil { return nil, err }
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) CountDemandsByStatus(ctx context.Context, status model.DemandStatus) (int, error) {
    var n int
    var err error
    if status == "" {
        err = p.db.QueryRowContext(ctx, `SELECT count(*) FROM transport_demands`).Scan(&n)
    } else {
        err = p.db.QueryRowContext(ctx, `SELECT count(*) FROM transport_demands WHERE status=$1`, string(status)).Scan(&n)
    }
    return n, err
}

func (p *Postgres) InsertDemand(ctx context.Context, d model.TransportDemand) (string, error) {
    if d.ID == "" { d.ID = uuid.New().String() }
    if d.CreationTime.IsZero() { d.CreationTime = time.Now() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO transport_demands
        (id, origin_poi_id, destination_poi_id, cargo_name, cargo_weight, cargo_volume, status,
         assigned_vehicle_id, creation_time, assignment_time, pickup_time, completion_time, template_id, stage_order)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
        d.ID, d.OriginPoiID, d.DestinationPoiID, d.CargoName, d.CargoWeight, d.CargoVolume,
        string(d.Status), nullIfEmpty(d.AssignedVehicleID), d.CreationTime,
        nullTime(d.AssignmentTime), nullTime(d.PickupTime), nullTime(d.CompletionTime),
        nullIfEmpty(d.TemplateID), d.StageOrder)
    return d.ID, err
}

func (p *Postgres) UpdateDemand(ctx context.Context, d model.TransportDemand) error {
    res, err := p.db.ExecContext(ctx, `UPDATE transport_demands SET
        origin_poi_id=$2, destination_poi_id=$3, cargo_name=$4, cargo_weight=$5, cargo_volume=$6,
        status=$7, assigned_vehicle_id=$8, assignment_time=$9, pickup_time=$10, completion_time=$11
        WHERE id=$1`,
        d.ID, d.OriginPoiID, d.DestinationPoiID, d.CargoName, d.CargoWeight, d.CargoVolume,
        string(d.Status), nullIfEmpty(d.AssignedVehicleID),
        nullTime(d.AssignmentTime), nullTime(d.PickupTime), nullTime(d.CompletionTime))
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) DeleteAllDemands(ctx context.Context) error {
    _, err := p.db.ExecContext(ctx, `DELETE FROM transport_demands`)
    return err
}

func (p *Postgres) FindPoiByID(ctx context.Context, id string) (model.Poi, error) {
    var poi model.Poi
    err := p.db.QueryRowContext(ctx, `SELECT id, name, COALESCE(address,''), lng, lat, sim_type
        FROM pois WHERE id=$1`, id).
        Scan(&poi.ID, &poi.Name, &poi.Address, &poi.Lng, &poi.Lat, &poi.SimType)
    if errors.Is(err, sql.ErrNoRows) { return model.Poi{}, ErrNotFound }
    return poi, err
}

func (p *Postgres) FindPoisBySimType(ctx context.Context, role model.PoiRole) ([]model.Poi, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id, name, COALESCE(address,''), lng, lat, sim_type
        FROM pois WHERE sim_type=$1 ORDER BY name`, string(role))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Poi{}
    for rows.Next() {
        var poi model.Poi
        if err := rows.Scan(&poi.ID, &poi.Name, &poi.Address, &poi.Lng, &poi.Lat, &poi.SimType); err != nil {
            return nil, err
        }
        out = append(out, poi)
    }
    return out, rows.Err()
}

func (p *Postgres) InsertPoi(ctx context.Context, poi model.Poi) error {
    if poi.ID == "" { poi.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO pois (id, name, address, lng, lat, sim_type)
        VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`,
        poi.ID, poi.Name, nullIfEmpty(poi.Address), poi.Lng, poi.Lat, string(poi.SimType))
    return err
}

func (p *Postgres) FindTemplates(ctx context.Context) ([]model.SupplyChainTemplate, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id, name, COALESCE(description,'')
        FROM supply_chain_templates ORDER BY name`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.SupplyChainTemplate{}
    for rows.Next() {
        var t model.SupplyChainTemplate
        if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

const stageCols = `id, template_id, stage_order, origin_poi_type, destination_poi_type,
    cargo_name, cargo_weight, cargo_volume`

func (p *Postgres) FindStage(ctx context.Context, templateID string, order int) (model.SupplyChainStage, error) {
    var s model.SupplyChainStage
    err := p.db.QueryRowContext(ctx, `SELECT `+stageCols+` FROM supply_chain_stages
        WHERE template_id=$1 AND stage_order=$2`, templateID, order).
        Scan(&s.ID, &s.TemplateID, &s.StageOrder, &s.OriginPoiType, &s.DestinationPoiType,
            &s.CargoName, &s.CargoWeight, &s.CargoVolume)
    if errors.Is(err, sql.ErrNoRows) { return model.SupplyChainStage{}, ErrNotFound }
    return s, err
}

func (p *Postgres) FindAllStages(ctx context.Context) ([]model.SupplyChainStage, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+stageCols+` FROM supply_chain_stages
        ORDER BY template_id, stage_order`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.SupplyChainStage{}
    for rows.Next() {
        var s model.SupplyChainStage
        if err := rows.Scan(&s.ID, &s.TemplateID, &s.StageOrder, &s.OriginPoiType,
            &s.DestinationPoiType, &s.CargoName, &s.CargoWeight, &s.CargoVolume); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) InsertTemplate(ctx context.Context, t model.SupplyChainTemplate) error {
    if t.ID == "" { t.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO supply_chain_templates (id, name, description)
        VALUES ($1,$2,$3) ON CONFLICT (id) DO NOTHING`, t.ID, t.Name, nullIfEmpty(t.Description))
    return err
}

func (p *Postgres) InsertStage(ctx context.Context, s model.SupplyChainStage) error {
    if s.ID == "" { s.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO supply_chain_stages
        (id, template_id, stage_order, origin_poi_type, destination_poi_type, cargo_name, cargo_weight, cargo_volume)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (template_id, stage_order) DO NOTHING`,
        s.ID, s.TemplateID, s.StageOrder, string(s.OriginPoiType), string(s.DestinationPoiType),
        s.CargoName, s.CargoWeight, s.CargoVolume)
    return err
}

func (p *Postgres) FindCachedRoute(ctx context.Context, origin, destination string) (model.RouteInfo, error) {
    var r model.RouteInfo
    err := p.db.QueryRowContext(ctx, `SELECT id, origin_coords, destination_coords, distance, duration, polyline, created_at
        FROM route_cache WHERE origin_coords=$1 AND destination_coords=$2`, origin, destination).
        Scan(&r.ID, &r.OriginCoords, &r.DestinationCoords, &r.Distance, &r.Duration, &r.Polyline, &r.CreatedAt)
    if errors.Is(err, sql.ErrNoRows) { return model.RouteInfo{}, ErrNotFound }
    return r, err
}

func (p *Postgres) InsertCachedRoute(ctx context.Context, r model.RouteInfo) (string, error) {
    if r.ID == "" { r.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO route_cache
        (id, origin_coords, destination_coords, distance, duration, polyline)
        VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (origin_coords, destination_coords) DO NOTHING`,
        r.ID, r.OriginCoords, r.DestinationCoords, r.Distance, r.Duration, r.Polyline)
    return r.ID, err
}

const sessionCols = `id, session_name, start_time, end_time, use_weighted, weight_time,
    weight_wasted_load, weight_wasted_idle, avg_no_load_distance, avg_load_distance,
    avg_total_duration, avg_waiting_duration, total_demands_completed, total_wasted_capacity,
    COALESCE(notes,'')`

func scanSession(row interface{ Scan(...any) error }) (model.SimulationSession, error) {
    var s model.SimulationSession
    var end sql.NullTime
    err := row.Scan(&s.ID, &s.SessionName, &s.StartTime, &end, &s.UseWeighted, &s.WeightTime,
        &s.WeightWastedLoad, &s.WeightWastedIdle, &s.AvgNoLoadDistance, &s.AvgLoadDistance,
        &s.AvgTotalDuration, &s.AvgWaitingDuration, &s.TotalDemandsCompleted, &s.TotalWastedCapacity,
        &s.Notes)
    if end.Valid { s.EndTime = &end.Time }
    return s, err
}

func (p *Postgres) InsertSession(ctx context.Context, s model.SimulationSession) (string, error) {
    if s.ID == "" { s.ID = uuid.New().String() }
    _, err := p.db.ExecContext(ctx, `INSERT INTO simulation_sessions
        (id, session_name, start_time, end_time, use_weighted, weight_time, weight_wasted_load,
         weight_wasted_idle, avg_no_load_distance, avg_load_distance, avg_total_duration,
         avg_waiting_duration, total_demands_completed, total_wasted_capacity, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
        s.ID, s.SessionName, s.StartTime, nullTime(s.EndTime), s.UseWeighted, s.WeightTime,
        s.WeightWastedLoad, s.WeightWastedIdle, s.AvgNoLoadDistance, s.AvgLoadDistance,
        s.AvgTotalDuration, s.AvgWaitingDuration, s.TotalDemandsCompleted, s.TotalWastedCapacity,
        nullIfEmpty(s.Notes))
    return s.ID, err
}

func (p *Postgres) UpdateSession(ctx context.Context, s model.SimulationSession) error {
    res, err := p.db.ExecContext(ctx, `UPDATE simulation_sessions SET
        session_name=$2, end_time=$3, use_weighted=$4, weight_time=$5, weight_wasted_load=$6,
        weight_wasted_idle=$7, avg_no_load_distance=$8, avg_load_distance=$9, avg_total_duration=$10,
        avg_waiting_duration=$11, total_demands_completed=$12, total_wasted_capacity=$13, notes=$14
        WHERE id=$1`,
        s.ID, s.SessionName, nullTime(s.EndTime), s.UseWeighted, s.WeightTime, s.WeightWastedLoad,
        s.WeightWastedIdle, s.AvgNoLoadDistance, s.AvgLoadDistance, s.AvgTotalDuration,
        s.AvgWaitingDuration, s.TotalDemandsCompleted, s.TotalWastedCapacity, nullIfEmpty(s.Notes))
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) FindSessionByID(ctx context.Context, id string) (model.SimulationSession, error) {
    row := p.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM simulation_sessions WHERE id=$1`, id)
    s, err := scanSession(row)
    if errors.Is(err, sql.ErrNoRows) { return model.SimulationSession{}, ErrNotFound }
    return s, err
}

func (p *Postgres) FindLatestOpenSession(ctx context.Context) (model.SimulationSession, error) {
    row := p.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM simulation_sessions
        WHERE end_time IS NULL ORDER BY start_time DESC LIMIT 1`)
    s, err := scanSession(row)
    if errors.Is(err, sql.ErrNoRows) { return model.SimulationSession{}, ErrNotFound }
    return s, err
}

func (p *Postgres) ListSessions(ctx context.Context) ([]model.SimulationSession, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT `+sessionCols+` FROM simulation_sessions
        ORDER BY start_time DESC`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.SimulationSession{}
    for rows.Next() {
        s, err := scanSession(rows)
        if err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func nullIfEmpty(s string) any {
    if s == "" { return nil }
    return s
}

func nullTime(t *time.Time) any {
    if t == nil { return nil }
    return *t
}
