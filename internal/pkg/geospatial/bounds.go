package geospatial

import (
	"github.com/golang/geo/s2"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// BoundsBuilder grows a bounding rectangle to include every point added.
// The zero value is empty and ready to use.
type BoundsBuilder struct {
	rect  s2.Rect
	valid bool
}

// Extend grows the bounds to include p.
func (b *BoundsBuilder) Extend(p domain.GeoPoint) {
	ll := s2.LatLngFromDegrees(p.Lat, p.Lon)
	if !b.valid {
		b.rect = s2.RectFromLatLng(ll)
		b.valid = true
		return
	}
	b.rect = b.rect.AddPoint(ll)
}

// Empty reports whether no point has been added.
func (b *BoundsBuilder) Empty() bool {
	return !b.valid
}

// Bounds returns the accumulated rectangle; ok is false when empty.
func (b *BoundsBuilder) Bounds() (domain.ViewportBounds, bool) {
	if !b.valid {
		return domain.ViewportBounds{}, false
	}
	hi, lo := b.rect.Hi(), b.rect.Lo()
	return domain.ViewportBounds{
		NorthEast: domain.GeoPoint{Lat: hi.Lat.Degrees(), Lon: hi.Lng.Degrees()},
		SouthWest: domain.GeoPoint{Lat: lo.Lat.Degrees(), Lon: lo.Lng.Degrees()},
	}, true
}

// Reset empties the builder.
func (b *BoundsBuilder) Reset() {
	b.rect = s2.Rect{}
	b.valid = false
}
