package domain

import "fmt"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports whether the point lies within the valid degree ranges.
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidPoint, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidPoint, p.Lon)
	}
	return nil
}

// ViewportBounds is the visible rectangle of a map surface.
type ViewportBounds struct {
	NorthEast GeoPoint `json:"north_east"`
	SouthWest GeoPoint `json:"south_west"`
}

// CrossesAntimeridian reports whether the bounds wrap across the 180th
// meridian, in which case NorthEast.Lon is west of SouthWest.Lon.
func (b ViewportBounds) CrossesAntimeridian() bool {
	return b.NorthEast.Lon < b.SouthWest.Lon
}

// LonSpan returns the east-west extent in degrees, in [0, 360).
func (b ViewportBounds) LonSpan() float64 {
	span := b.NorthEast.Lon - b.SouthWest.Lon
	if span < 0 {
		span += 360
	}
	return span
}

// Center returns the midpoint of the bounds.
func (b ViewportBounds) Center() GeoPoint {
	return GeoPoint{
		Lat: (b.NorthEast.Lat + b.SouthWest.Lat) / 2,
		Lon: WrapLon(b.SouthWest.Lon + b.LonSpan()/2),
	}
}

// Contains reports whether p lies inside the bounds (edges included).
func (b ViewportBounds) Contains(p GeoPoint) bool {
	if p.Lat < b.SouthWest.Lat || p.Lat > b.NorthEast.Lat {
		return false
	}
	if b.CrossesAntimeridian() {
		return p.Lon >= b.SouthWest.Lon || p.Lon <= b.NorthEast.Lon
	}
	return p.Lon >= b.SouthWest.Lon && p.Lon <= b.NorthEast.Lon
}

// WrapLon brings lon back into [-180, 180].
func WrapLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
