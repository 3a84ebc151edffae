package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"fleetsim/internal/model"
)

const (
	earthRadiusM = 6371000.0

	// CoordEpsilon is the tolerance for treating two coordinates as the
	// same vertex (roughly 0.1m at the equator).
	CoordEpsilon = 1e-6

	// ArrivalEpsilonM treats a near-zero residual distance to the next
	// vertex as "already there", so floating-point residue never stalls
	// the distance-stepping loop.
	ArrivalEpsilonM = 0.1
)

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b model.GeoPoint) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}

// ParseCoords parses a "lng,lat" pair.
func ParseCoords(s string) (model.GeoPoint, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return model.GeoPoint{}, fmt.Errorf("parse coords %q: want \"lng,lat\"", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("parse coords %q: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("parse coords %q: %w", s, err)
	}
	return model.GeoPoint{Lng: lng, Lat: lat}, nil
}

// FormatCoords renders a point as a "lng,lat" cache key with fixed
// 6-decimal precision.
func FormatCoords(p model.GeoPoint) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat)
}

// NormalizeCoords canonicalizes a "lng,lat" string to fixed 6-decimal
// precision so it can serve as a route-cache key. Normalizing an already
// normalized string is a no-op; malformed input is returned unchanged.
func NormalizeCoords(coords string) string {
	p, err := ParseCoords(coords)
	if err != nil {
		return coords
	}
	return FormatCoords(p)
}

// SamePoint reports whether two points coincide within CoordEpsilon.
func SamePoint(a, b model.GeoPoint) bool {
	return math.Abs(a.Lng-b.Lng) < CoordEpsilon && math.Abs(a.Lat-b.Lat) < CoordEpsilon
}

// ParsePolyline turns a "lng,lat;lng,lat;..." string into a vertex list.
// Empty segments and malformed pairs are dropped, consecutive duplicate
// vertices are collapsed. Returns nil when fewer than two distinct
// vertices remain: such a polyline cannot be driven.
func ParsePolyline(polyline string) []model.GeoPoint {
	if polyline == "" {
		return nil
	}
	var path []model.GeoPoint
	for _, seg := range strings.Split(polyline, ";") {
		if seg == "" || !strings.Contains(seg, ",") {
			continue
		}
		p, err := ParseCoords(seg)
		if err != nil {
			continue
		}
		if len(path) > 0 && SamePoint(path[len(path)-1], p) {
			continue
		}
		path = append(path, p)
	}
	if len(path) < 2 {
		return nil
	}
	return path
}

// Interpolate returns the point a fraction t of the way from a to b.
func Interpolate(a, b model.GeoPoint, t float64) model.GeoPoint {
	return model.GeoPoint{
		Lng: a.Lng + (b.Lng-a.Lng)*t,
		Lat: a.Lat + (b.Lat-a.Lat)*t,
	}
}
