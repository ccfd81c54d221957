package model

import (
	"fmt"
	"math"
)

// earthRadiusM is the mean Earth radius used by the haversine formula.
const earthRadiusM = 6371000.0

// GeoPoint is a WGS84 coordinate with an optional horizontal accuracy.
type GeoPoint struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	AccuracyM float64 `json:"accuracy_m,omitempty"`
}

// Validate checks that the coordinate lies on the globe.
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %f out of range", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %f out of range", p.Lon)
	}
	if p.AccuracyM < 0 {
		return fmt.Errorf("accuracy must not be negative")
	}
	return nil
}

// Region maps the point onto a coarse one-decimal-degree cell, used to name
// regional alert channels. Roughly an 11 km cell at the equator.
func (p GeoPoint) Region() string {
	return fmt.Sprintf("%.1f,%.1f", p.Lat, p.Lon)
}

// Haversine returns the great-circle distance between two points in meters.
// The approximation is sufficient for dispatch radii well under a few
// hundred kilometers.
func Haversine(a, b GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
