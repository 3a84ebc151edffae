package route

import (
    "context"
    "errors"
    "log"

    "fleetsim/internal/geo"
    "fleetsim/internal/model"
    "fleetsim/internal/store"
)

// Service resolves driving routes cache-first, falling back to the provider
// and persisting every fresh answer.
type Service struct {
    Store    store.Store
    Provider Provider
}

func NewService(st store.Store, p Provider) *Service {
    return &Service{Store: st, Provider: p}
}

// GetRoute returns the cached route between two points, fetching and caching
// it on a miss. Coordinates are normalized before lookup so that equivalent
// spellings hit the same cache row.
func (s *Service) GetRoute(ctx context.Context, origin, destination string) (model.RouteInfo, error) {
    origin = geo.NormalizeCoords(origin)
    destination = geo.NormalizeCoords(destination)
    if origin == destination {
        return model.RouteInfo{}, ErrSamePoint
    }

    cached, err := s.Store.FindCachedRoute(ctx, origin, destination)
    if err == nil {
        return cached, nil
    }
    if !errors.Is(err, store.ErrNotFound) {
        return model.RouteInfo{}, err
    }

    leg, err := s.Provider.Directions(ctx, origin, destination)
    if err != nil {
        return model.RouteInfo{}, err
    }
    info := model.RouteInfo{
        OriginCoords:      origin,
        DestinationCoords: destination,
        Distance:          leg.Distance,
        Duration:          leg.Duration,
        Polyline:          leg.Polyline,
    }
    id, err := s.Store.InsertCachedRoute(ctx, info)
    if err != nil {
        // Serve the route anyway; the next miss will retry the insert.
        log.Printf("route: cache insert failed for %s -> %s: %v", origin, destination, err)
        return info, nil
    }
    info.ID = id
    return info, nil
}
