package sim

import (
    "context"
    "errors"
    "log"
    "math/rand"
    "sync"
    "time"

    "fleetsim/internal/metrics"
    "fleetsim/internal/model"
    "fleetsim/internal/store"
)

// Generator produces transport demands from supply-chain templates. Each
// tick it may instantiate the first stage of a random template; completed
// demands chain into their template's next stage.
type Generator struct {
    Store store.Store

    BacklogCap  int     // pending demands above this pause generation
    Probability float64 // chance per tick that a burst is generated
    BurstSize   int

    mu  sync.Mutex
    rng *rand.Rand
}

func NewGenerator(st store.Store, backlogCap int, probability float64, burst int) *Generator {
    return &Generator{
        Store:       st,
        BacklogCap:  backlogCap,
        Probability: probability,
        BurstSize:   burst,
        rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
    }
}

func (g *Generator) roll() float64 {
    g.mu.Lock()
    defer g.mu.Unlock()
    return g.rng.Float64()
}

func (g *Generator) pick(n int) int {
    g.mu.Lock()
    defer g.mu.Unlock()
    return g.rng.Intn(n)
}

// Generate runs once per tick. It skips entirely while the pending backlog
// sits at the cap, and otherwise creates a burst of first-stage demands,
// each from its own uniformly random template. The burst is truncated so
// the pending count never exceeds the cap.
func (g *Generator) Generate(ctx context.Context) error {
    pending, err := g.Store.CountDemandsByStatus(ctx, model.DemandPending)
    if err != nil {
        return err
    }
    if pending >= g.BacklogCap {
        return nil
    }
    if g.roll() >= g.Probability {
        return nil
    }

    templates, err := g.Store.FindTemplates(ctx)
    if err != nil {
        return err
    }
    if len(templates) == 0 {
        return nil
    }

    burst := g.BurstSize
    if room := g.BacklogCap - pending; burst > room {
        burst = room
    }
    // Each slot of the burst draws its own template.
    for i := 0; i < burst; i++ {
        tmpl := templates[g.pick(len(templates))]
        stage, err := g.Store.FindStage(ctx, tmpl.ID, 1)
        if err != nil {
            if errors.Is(err, store.ErrNotFound) {
                log.Printf("sim: template %s has no first stage", tmpl.Name)
                continue
            }
            return err
        }
        if _, err := g.createDemandFromStage(ctx, stage, ""); err != nil {
            return err
        }
    }
    return nil
}

// TriggerNextDemand chains a completed demand into the next stage of its
// template. The new leg starts where the completed one ended. A missing
// next stage means the chain is done.
func (g *Generator) TriggerNextDemand(ctx context.Context, completed model.TransportDemand) error {
    if completed.TemplateID == "" {
        return nil
    }
    stage, err := g.Store.FindStage(ctx, completed.TemplateID, completed.StageOrder+1)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            return nil
        }
        return err
    }
    _, err = g.createDemandFromStage(ctx, stage, completed.DestinationPoiID)
    return err
}

// createDemandFromStage resolves the stage's POI roles to concrete points
// and inserts a PENDING demand. Unresolvable roles and degenerate
// origin==destination pairs are skipped without error.
func (g *Generator) createDemandFromStage(ctx context.Context, stage model.SupplyChainStage, fixedOriginPoiID string) (bool, error) {
    var origin model.Poi
    if fixedOriginPoiID != "" {
        p, err := g.Store.FindPoiByID(ctx, fixedOriginPoiID)
        if err != nil {
            if errors.Is(err, store.ErrNotFound) { return false, nil }
            return false, err
        }
        origin = p
    } else {
        origins, err := g.Store.FindPoisBySimType(ctx, stage.OriginPoiType)
        if err != nil {
            return false, err
        }
        if len(origins) == 0 {
            return false, nil
        }
        origin = origins[g.pick(len(origins))]
    }

    dests, err := g.Store.FindPoisBySimType(ctx, stage.DestinationPoiType)
    if err != nil {
        return false, err
    }
    if len(dests) == 0 {
        return false, nil
    }
    // A draw that collides with the origin skips this slot instead of
    // redrawing among the remaining candidates.
    dest := dests[g.pick(len(dests))]
    if dest.ID == origin.ID {
        return false, nil
    }

    demand := model.TransportDemand{
        OriginPoiID:      origin.ID,
        DestinationPoiID: dest.ID,
        CargoName:        stage.CargoName,
        CargoWeight:      stage.CargoWeight,
        CargoVolume:      stage.CargoVolume,
        Status:           model.DemandPending,
        CreationTime:     time.Now(),
        TemplateID:       stage.TemplateID,
        StageOrder:       stage.StageOrder,
    }
    if _, err := g.Store.InsertDemand(ctx, demand); err != nil {
        return false, err
    }
    metrics.DemandsGenerated.Inc()
    return true, nil
}
