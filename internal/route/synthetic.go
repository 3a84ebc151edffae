package route

import (
    "context"
    "math"

    "fleetsim/internal/geo"
)

// SyntheticProvider fabricates straight-line routes so the simulation can
// run without a directions API key. Distance is great-circle; duration
// assumes the given cruise speed.
type SyntheticProvider struct {
    CruiseSpeed float64 // meters per second
    Segments    int     // vertices minus one, minimum 1
}

func NewSyntheticProvider(cruiseSpeed float64) *SyntheticProvider {
    if cruiseSpeed <= 0 {
        cruiseSpeed = 10
    }
    return &SyntheticProvider{CruiseSpeed: cruiseSpeed, Segments: 4}
}

func (p *SyntheticProvider) Directions(_ context.Context, origin, destination string) (Leg, error) {
    o, err := geo.ParseCoords(origin)
    if err != nil {
        return Leg{}, err
    }
    d, err := geo.ParseCoords(destination)
    if err != nil {
        return Leg{}, err
    }
    if geo.SamePoint(o, d) {
        return Leg{}, ErrSamePoint
    }

    segs := p.Segments
    if segs < 1 {
        segs = 1
    }
    poly := geo.FormatCoords(o)
    for i := 1; i <= segs; i++ {
        poly += ";" + geo.FormatCoords(geo.Interpolate(o, d, float64(i)/float64(segs)))
    }

    dist := int(math.Round(geo.HaversineMeters(o, d)))
    dur := int(math.Round(float64(dist) / p.CruiseSpeed))
    return Leg{Distance: dist, Duration: dur, Polyline: poly}, nil
}
