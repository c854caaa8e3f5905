package remote

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// Surface mirrors a browser map. Center and bounds are the values the page
// last reported.
type Surface struct {
	sender Sender
	logger *slog.Logger

	mu       sync.Mutex
	center   domain.GeoPoint
	bounds   *domain.ViewportBounds
	onSettle []func()
	onCenter []func()
	markers  map[string]*Marker
}

var _ ports.Surface = (*Surface)(nil)

func newSurface(sender Sender, logger *slog.Logger, center domain.GeoPoint) *Surface {
	return &Surface{
		sender:  sender,
		logger:  logger,
		center:  center,
		markers: make(map[string]*Marker),
	}
}

func (s *Surface) Bounds() (domain.ViewportBounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bounds == nil {
		return domain.ViewportBounds{}, false
	}
	return *s.bounds, true
}

func (s *Surface) Center() domain.GeoPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

// FitBounds asks the page to fit b. The view is updated when the page
// reports back.
func (s *Surface) FitBounds(b domain.ViewportBounds) {
	s.send(Command{Type: CmdFitBounds, Bounds: &b})
}

func (s *Surface) OnSettle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSettle = append(s.onSettle, fn)
}

func (s *Surface) OnCenterChanged(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCenter = append(s.onCenter, fn)
}

// CreateMarker registers a detached marker on the page.
func (s *Surface) CreateMarker(opts domain.MarkerOptions) ports.MarkerHandle {
	opts = opts.WithDefaults()
	m := &Marker{
		id:       uuid.NewString(),
		title:    opts.Title,
		owner:    s,
		position: *opts.Position,
	}
	if opts.Label != nil {
		m.label = opts.Label.Text
	}

	s.send(Command{Type: CmdCreateMarker, MarkerID: m.id, Marker: &opts})
	return m
}

// track records which markers are attached; clicks only reach those.
func (s *Surface) track(m *Marker, attached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attached {
		s.markers[m.id] = m
	} else {
		delete(s.markers, m.id)
	}
}

func (s *Surface) update(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Center != nil {
		s.center = *ev.Center
	}
	if ev.Bounds != nil {
		b := *ev.Bounds
		s.bounds = &b
	}
}

// dispatch updates the cached view first, then runs the callbacks.
func (s *Surface) dispatch(ev Event) {
	s.update(ev)

	var handlers []func()
	s.mu.Lock()
	switch ev.Type {
	case EvtSettle:
		handlers = append(handlers, s.onSettle...)
	case EvtCenterChanged:
		handlers = append(handlers, s.onCenter...)
	case EvtMarkerClick:
		if m, ok := s.markers[ev.MarkerID]; ok {
			handlers = m.clickHandlers()
		} else {
			s.logger.Warn("click on unknown marker", "marker_id", ev.MarkerID)
		}
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (s *Surface) send(cmd Command) {
	if err := s.sender.Send(cmd); err != nil {
		s.logger.Warn("send map command", "type", cmd.Type, "marker_id", cmd.MarkerID, "error", err)
	}
}
