package route

import (
    "context"
    "errors"
    "fmt"
    "log"

    "golang.org/x/time/rate"

    "fleetsim/internal/geo"
    "fleetsim/internal/model"
    "fleetsim/internal/store"
)

// Prewarmer fills the route cache with every origin/destination pair a
// supply-chain stage can produce, so the simulation never blocks on the
// directions API mid-tick.
type Prewarmer struct {
    Store   store.Store
    Service *Service
    Limiter *rate.Limiter
}

func NewPrewarmer(st store.Store, svc *Service, qps float64) *Prewarmer {
    if qps <= 0 {
        qps = 3
    }
    return &Prewarmer{Store: st, Service: svc, Limiter: rate.NewLimiter(rate.Limit(qps), 1)}
}

// Prewarm walks all stages and requests the route for every POI pair the
// stage could generate. Misses count against the rate limiter; cache hits
// and degenerate pairs are free.
func (p *Prewarmer) Prewarm(ctx context.Context) (int, error) {
    stages, err := p.Store.FindAllStages(ctx)
    if err != nil {
        return 0, err
    }
    fetched := 0
    for _, stage := range stages {
        origins, err := p.Store.FindPoisBySimType(ctx, stage.OriginPoiType)
        if err != nil {
            return fetched, err
        }
        dests, err := p.Store.FindPoisBySimType(ctx, stage.DestinationPoiType)
        if err != nil {
            return fetched, err
        }
        for _, o := range origins {
            for _, d := range dests {
                oc := geo.FormatCoords(model.GeoPoint{Lng: o.Lng, Lat: o.Lat})
                dc := geo.FormatCoords(model.GeoPoint{Lng: d.Lng, Lat: d.Lat})
                if oc == dc {
                    continue
                }
                if _, err := p.Store.FindCachedRoute(ctx, oc, dc); err == nil {
                    continue
                } else if !errors.Is(err, store.ErrNotFound) {
                    return fetched, err
                }
                if err := p.Limiter.Wait(ctx); err != nil {
                    return fetched, err
                }
                if _, err := p.Service.GetRoute(ctx, oc, dc); err != nil {
                    if errors.Is(err, ErrNoRoute) || errors.Is(err, ErrSamePoint) {
                        log.Printf("route: prewarm skip %s -> %s: %v", o.Name, d.Name, err)
                        continue
                    }
                    return fetched, fmt.Errorf("prewarm %s -> %s: %w", o.Name, d.Name, err)
                }
                fetched++
            }
        }
    }
    return fetched, nil
}
