package api

import (
    "encoding/json"
    "errors"
    "net/http"

    "fleetsim/internal/buildinfo"
    "fleetsim/internal/model"
    "fleetsim/internal/sim"
    "fleetsim/internal/store"
)

// SimulationStartHandler handles POST /api/simulation/start
func (s *Server) SimulationStartHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req struct {
        UseWeighted      bool    `json:"useWeighted"`
        WeightTime       float64 `json:"weightTime"`
        WeightWastedLoad float64 `json:"weightWastedLoad"`
        WeightWastedIdle float64 `json:"weightWastedIdle"`
    }
    if r.Body != nil && r.ContentLength != 0 {
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
    }
    weights := model.DispatchWeights{
        UseWeighted: req.UseWeighted,
        Time:        req.WeightTime,
        WastedLoad:  req.WeightWastedLoad,
        WastedIdle:  req.WeightWastedIdle,
    }
    if err := s.Engine.Start(r.Context(), weights); err != nil {
        if errors.Is(err, sim.ErrAlreadyRunning) {
            writeProblem(w, http.StatusConflict, "Already running", "a simulation session is active", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Start failed", err.Error(), r.URL.Path)
        return
    }
    session, _ := s.Engine.Session()
    writeJSON(w, http.StatusOK, map[string]any{"running": true, "session": session})
}

// SimulationStopHandler handles POST /api/simulation/stop
func (s *Server) SimulationStopHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    if err := s.Engine.Stop(r.Context()); err != nil {
        if errors.Is(err, sim.ErrNotRunning) {
            writeProblem(w, http.StatusConflict, "Not running", "no simulation session is active", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Stop failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

// SimulationStatusHandler handles GET /api/simulation/status
func (s *Server) SimulationStatusHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    out := map[string]any{"running": s.Engine.IsRunning(), "simTime": s.Engine.SimTime()}
    if session, ok := s.Engine.Session(); ok {
        out["session"] = session
    }
    writeJSON(w, http.StatusOK, out)
}

// SessionsHandler handles GET /api/simulation/sessions
func (s *Server) SessionsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    sessions, err := s.Store.ListSessions(r.Context())
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List sessions failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": sessions})
}

// VehiclesHandler handles GET /api/vehicles?status=
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    status := model.VehicleStatus(r.URL.Query().Get("status"))
    vehicles, err := s.Store.FindVehicles(r.Context(), status)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": s.Motion.Overlay(vehicles)})
}

// VehicleSpeedHandler handles PUT /api/vehicles/speed
func (s *Server) VehicleSpeedHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPut {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req struct {
        VehicleID string  `json:"vehicleId"`
        Speed     float64 `json:"speed"`
    }
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.VehicleID == "" || req.Speed < 0 {
        writeProblem(w, http.StatusBadRequest, "Invalid speed update", "vehicleId required and speed must be non-negative", r.URL.Path)
        return
    }
    v, err := s.Motion.UpdateVehicleSpeed(r.Context(), req.VehicleID, req.Speed)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Vehicle not found", req.VehicleID, r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Speed update failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, v)
}

// DemandsHandler handles GET /api/demands?status=
func (s *Server) DemandsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    status := model.DemandStatus(r.URL.Query().Get("status"))
    demands, err := s.Store.FindDemandsByStatus(r.Context(), status)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List demands failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": demands})
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]any{
        "ok":      true,
        "running": s.Engine.IsRunning(),
        "build":   buildinfo.Info(),
    })
}
