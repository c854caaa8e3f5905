package ports

import (
	"context"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// MapProvider builds renderable map surfaces. Implementations wrap a real
// mapping SDK (or a headless stand-in).
type MapProvider interface {
	// InitSurface blocks until the surface is ready or the provider rejects
	// the configuration.
	InitSurface(ctx context.Context, cfg domain.SurfaceConfig) (Surface, error)
}

// MarkerFactory creates marker handles that are not yet attached to a map.
type MarkerFactory interface {
	CreateMarker(opts domain.MarkerOptions) MarkerHandle
}

// Surface is a live map view. Callbacks registered with OnSettle and
// OnCenterChanged are delivered one at a time by the provider and stay
// registered for the surface's lifetime.
type Surface interface {
	MarkerFactory

	// Bounds returns the visible viewport; ok is false until the surface
	// has been laid out.
	Bounds() (bounds domain.ViewportBounds, ok bool)
	Center() domain.GeoPoint
	FitBounds(bounds domain.ViewportBounds)

	OnSettle(fn func())
	OnCenterChanged(fn func())
}

// MarkerHandle is a provider-owned marker.
type MarkerHandle interface {
	ID() string
	Position() domain.GeoPoint
	Title() string
	Label() string

	SetPosition(p domain.GeoPoint)
	// SetMap attaches the marker to s, or detaches it when s is nil.
	SetMap(s Surface)
	OnClick(fn func())
}

// Navigator is implemented by surfaces whose view can be driven from the
// server side (headless surfaces).
type Navigator interface {
	Pan(center domain.GeoPoint)
	SetZoom(zoom int)
	Zoom() int
}
