package memory

import (
	"sync"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// Marker is a headless marker handle.
type Marker struct {
	id    string
	title string
	label string

	mu       sync.Mutex
	position domain.GeoPoint
	surface  *Surface
	onClick  []func()
}

var _ ports.MarkerHandle = (*Marker)(nil)

func (m *Marker) ID() string    { return m.id }
func (m *Marker) Title() string { return m.title }
func (m *Marker) Label() string { return m.label }

func (m *Marker) Position() domain.GeoPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Marker) SetPosition(p domain.GeoPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = p
}

// SetMap attaches the marker to s or detaches it when s is nil. Surfaces
// from other providers are treated as nil.
func (m *Marker) SetMap(s ports.Surface) {
	next, _ := s.(*Surface)

	m.mu.Lock()
	prev := m.surface
	m.surface = next
	m.mu.Unlock()

	if prev != nil && prev != next {
		prev.detach(m)
	}
	if next != nil {
		next.attach(m)
	}
}

// Attached reports whether the marker is on a surface.
func (m *Marker) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.surface != nil
}

func (m *Marker) OnClick(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClick = append(m.onClick, fn)
}

func (m *Marker) clickHandlers() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]func(){}, m.onClick...)
}
