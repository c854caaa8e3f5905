package geospatial

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

const (
	earthRadiusMiles = 3958.8
	kmPerMile        = 1.609344

	// FallbackMeters is reported for a viewport whose bounds are not known yet.
	FallbackMeters = 1000.0
)

// DistanceMeters returns the great-circle distance between a and b on a
// spherical Earth, rounded to the nearest meter.
func DistanceMeters(a, b domain.GeoPoint) float64 {
	// s2's LatLng.Distance is the haversine central angle.
	angle := latLng(a).Distance(latLng(b)).Radians()
	miles := earthRadiusMiles * angle
	return math.Round(miles * kmPerMile * 1000)
}

// ViewportHeightMeters is the north-south edge of bounds measured along the
// western meridian. The viewport is assumed to be axis-aligned.
func ViewportHeightMeters(bounds domain.ViewportBounds, ok bool) float64 {
	if !ok {
		return FallbackMeters
	}
	top := domain.GeoPoint{Lat: bounds.NorthEast.Lat, Lon: bounds.SouthWest.Lon}
	return DistanceMeters(top, bounds.SouthWest)
}

// ViewportWidthMeters is the east-west edge of bounds measured along the
// southern parallel.
func ViewportWidthMeters(bounds domain.ViewportBounds, ok bool) float64 {
	if !ok {
		return FallbackMeters
	}
	east := domain.GeoPoint{Lat: bounds.SouthWest.Lat, Lon: bounds.NorthEast.Lon}
	return DistanceMeters(east, bounds.SouthWest)
}

func latLng(p domain.GeoPoint) s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}
