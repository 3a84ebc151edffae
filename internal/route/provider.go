package route

import (
    "context"
    "errors"
)

// Leg is a single driving route as returned by an external directions API.
type Leg struct {
    Distance int    // meters
    Duration int    // seconds
    Polyline string // "lng,lat;lng,lat;..."
}

// Provider fetches driving directions between two normalized coordinate strings.
type Provider interface {
    Directions(ctx context.Context, origin, destination string) (Leg, error)
}

var (
    ErrNoRoute   = errors.New("route: no drivable route")
    ErrSamePoint = errors.New("route: origin equals destination")
)
