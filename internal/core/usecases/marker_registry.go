package usecases

import (
	"fmt"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// ReplaceOptions control ReplaceAll.
type ReplaceOptions struct {
	FitBounds bool
	// Bounds must already include every new marker's position.
	Bounds *domain.ViewportBounds
}

// MarkerRegistry tracks the markers a session has put on its surface, in
// creation order. Every add and remove goes through the registry so its
// list matches what the provider renders.
//
// MarkerRegistry is not safe for concurrent use; MapSession serializes
// access to it.
type MarkerRegistry struct {
	markers []ports.MarkerHandle
}

// NewMarkerRegistry creates an empty registry.
func NewMarkerRegistry() *MarkerRegistry {
	return &MarkerRegistry{}
}

// Create builds a marker from opts merged over the defaults and registers
// it. The marker is not attached to any surface.
func (r *MarkerRegistry) Create(factory ports.MarkerFactory, opts domain.MarkerOptions) (ports.MarkerHandle, error) {
	if factory == nil {
		return nil, fmt.Errorf("create marker: %w", domain.ErrPrecondition)
	}
	opts = opts.WithDefaults()
	if err := opts.Position.Validate(); err != nil {
		return nil, fmt.Errorf("create marker: %w", err)
	}
	m := factory.CreateMarker(opts)
	if m == nil {
		return nil, fmt.Errorf("create marker: provider returned no marker: %w", domain.ErrPrecondition)
	}
	r.markers = append(r.markers, m)
	return m, nil
}

// Show attaches markers to surface. Markers the registry does not know yet
// are registered.
func (r *MarkerRegistry) Show(surface ports.Surface, markers []ports.MarkerHandle) error {
	if surface == nil {
		return fmt.Errorf("show markers: %w", domain.ErrPrecondition)
	}
	for _, m := range markers {
		if !r.contains(m) {
			r.markers = append(r.markers, m)
		}
		m.SetMap(surface)
	}
	return nil
}

// ClearAll detaches every registered marker and empties the registry.
// Calling it on an empty registry is a no-op.
func (r *MarkerRegistry) ClearAll() {
	for _, m := range r.markers {
		m.SetMap(nil)
	}
	r.markers = r.markers[:0]
}

// ReplaceAll clears the registry, attaches markers and optionally fits the
// viewport to opts.Bounds.
func (r *MarkerRegistry) ReplaceAll(surface ports.Surface, markers []ports.MarkerHandle, opts ReplaceOptions) error {
	if surface == nil {
		return fmt.Errorf("replace markers: %w", domain.ErrPrecondition)
	}
	r.ClearAll()
	for _, m := range markers {
		r.markers = append(r.markers, m)
		m.SetMap(surface)
	}
	if opts.FitBounds && opts.Bounds != nil {
		surface.FitBounds(*opts.Bounds)
	}
	return nil
}

// Len returns the number of registered markers.
func (r *MarkerRegistry) Len() int {
	return len(r.markers)
}

// Snapshot returns the registered markers as plain values.
func (r *MarkerRegistry) Snapshot() []domain.Marker {
	out := make([]domain.Marker, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, snapshotMarker(m))
	}
	return out
}

func (r *MarkerRegistry) contains(m ports.MarkerHandle) bool {
	for _, existing := range r.markers {
		if existing.ID() == m.ID() {
			return true
		}
	}
	return false
}

func snapshotMarker(m ports.MarkerHandle) domain.Marker {
	return domain.Marker{
		ID:       m.ID(),
		Position: m.Position(),
		Title:    m.Title(),
		Label:    m.Label(),
	}
}
