package remote

import (
	"sync"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// Marker is a page-side marker addressed by id.
type Marker struct {
	id    string
	title string
	label string
	owner *Surface

	mu       sync.Mutex
	position domain.GeoPoint
	attached bool
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
	m.position = p
	m.mu.Unlock()

	m.owner.send(Command{Type: CmdMarkerPosition, MarkerID: m.id, Position: &p})
}

// SetMap attaches the marker to its own surface, or detaches it when s is
// nil. A marker cannot move between connections.
func (m *Marker) SetMap(s ports.Surface) {
	attach := s != nil
	if attach && s != ports.Surface(m.owner) {
		m.owner.logger.Warn("marker attached to foreign surface ignored", "marker_id", m.id)
		return
	}

	m.mu.Lock()
	changed := m.attached != attach
	m.attached = attach
	m.mu.Unlock()
	if !changed {
		return
	}
	m.owner.track(m, attach)

	if attach {
		m.owner.send(Command{Type: CmdMarkerAttach, MarkerID: m.id})
	} else {
		m.owner.send(Command{Type: CmdMarkerDetach, MarkerID: m.id})
	}
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
