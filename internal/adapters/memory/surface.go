package memory

import (
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

const (
	tileSize = 256
	maxLat   = 85.05112878 // web mercator limit
)

// Surface is a headless map view. View changes apply immediately; the
// matching notifications are queued and delivered one at a time on the
// surface's dispatcher goroutine, never on the caller's.
type Surface struct {
	logger *slog.Logger

	mu       sync.Mutex
	center   domain.GeoPoint
	zoom     int
	minZoom  int
	maxZoom  int
	widthPx  int
	heightPx int
	laidOut  bool
	onSettle []func()
	onCenter []func()
	markers  map[string]*Marker
	queue    []func()
	closed   bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ ports.Surface   = (*Surface)(nil)
	_ ports.Navigator = (*Surface)(nil)
)

func newSurface(cfg domain.SurfaceConfig, widthPx, heightPx int, logger *slog.Logger) *Surface {
	s := &Surface{
		logger:   logger.With("element_id", cfg.HostElementID),
		center:   cfg.View.Center,
		minZoom:  cfg.View.MinZoom,
		maxZoom:  cfg.View.MaxZoom,
		widthPx:  widthPx,
		heightPx: heightPx,
		markers:  make(map[string]*Marker),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.zoom = s.clampZoom(cfg.View.Zoom)
	go s.dispatch()
	return s
}

// Bounds returns the visible rectangle once the first layout pass ran.
func (s *Surface) Bounds() (domain.ViewportBounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.laidOut {
		return domain.ViewportBounds{}, false
	}
	return s.boundsLocked(), true
}

func (s *Surface) Center() domain.GeoPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

func (s *Surface) Zoom() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// Pan moves the view center.
func (s *Surface) Pan(center domain.GeoPoint) {
	s.mu.Lock()
	moved := center != s.center
	s.center = center
	s.mu.Unlock()

	s.notifyMove(moved)
}

// SetZoom changes the zoom level, clamped to the configured range.
func (s *Surface) SetZoom(zoom int) {
	s.mu.Lock()
	s.zoom = s.clampZoom(zoom)
	s.mu.Unlock()

	s.notifyMove(false)
}

// FitBounds centers the view on b and picks the highest zoom at which b is
// fully visible.
func (s *Surface) FitBounds(b domain.ViewportBounds) {
	s.mu.Lock()
	center := b.Center()
	moved := center != s.center
	s.center = center
	s.zoom = s.fitZoomLocked(b)
	s.mu.Unlock()

	s.notifyMove(moved)
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

// CreateMarker builds a detached marker.
func (s *Surface) CreateMarker(opts domain.MarkerOptions) ports.MarkerHandle {
	opts = opts.WithDefaults()
	m := &Marker{
		id:       uuid.NewString(),
		position: *opts.Position,
		title:    opts.Title,
	}
	if opts.Label != nil {
		m.label = opts.Label.Text
	}
	return m
}

// Markers returns the markers currently attached to the surface.
func (s *Surface) Markers() []*Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Marker, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, m)
	}
	return out
}

// ClickMarker simulates a user click on an attached marker. It reports
// false when no such marker is attached.
func (s *Surface) ClickMarker(id string) bool {
	s.mu.Lock()
	m, ok := s.markers[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.enqueue(m.clickHandlers()...)
	return true
}

// Sync blocks until every notification queued before the call has been
// delivered, or the surface is closed.
func (s *Surface) Sync() {
	barrier := make(chan struct{})
	if !s.enqueue(func() { close(barrier) }) {
		return
	}
	select {
	case <-barrier:
	case <-s.done:
	}
}

// Close stops the dispatcher and drops pending notifications.
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

func (s *Surface) attach(m *Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[m.id] = m
}

func (s *Surface) detach(m *Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, m.id)
}

// layout is the first pass after creation; from here on bounds are known.
func (s *Surface) layout() {
	s.mu.Lock()
	s.laidOut = true
	handlers := append([]func(){}, s.onSettle...)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (s *Surface) notifyMove(moved bool) {
	s.mu.Lock()
	var handlers []func()
	if moved {
		handlers = append(handlers, s.onCenter...)
	}
	handlers = append(handlers, s.onSettle...)
	s.mu.Unlock()

	s.enqueue(handlers...)
}

func (s *Surface) enqueue(fns ...func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, fns...)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Surface) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if s.closed || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			fn := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.run(fn)
		}
	}
}

func (s *Surface) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("surface callback panicked", "panic", r)
		}
	}()
	fn()
}

func (s *Surface) clampZoom(z int) int {
	return max(s.minZoom, min(s.maxZoom, z))
}

// spansLocked returns the visible longitude and latitude spans in degrees
// at zoom z around the current center.
func (s *Surface) spansLocked(z int, lat float64) (lonSpan, latSpan float64) {
	degPerPx := 360.0 / (tileSize * math.Exp2(float64(z)))
	lonSpan = float64(s.widthPx) * degPerPx
	latSpan = float64(s.heightPx) * degPerPx * math.Cos(lat*math.Pi/180)
	return lonSpan, latSpan
}

func (s *Surface) boundsLocked() domain.ViewportBounds {
	lonSpan, latSpan := s.spansLocked(s.zoom, s.center.Lat)
	b := domain.ViewportBounds{
		NorthEast: domain.GeoPoint{Lat: math.Min(maxLat, s.center.Lat+latSpan/2)},
		SouthWest: domain.GeoPoint{Lat: math.Max(-maxLat, s.center.Lat-latSpan/2)},
	}
	if lonSpan >= 360 {
		b.NorthEast.Lon, b.SouthWest.Lon = 180, -180
		return b
	}
	// Views over the 180th meridian wrap, as fitted marker bounds do.
	b.NorthEast.Lon = domain.WrapLon(s.center.Lon + lonSpan/2)
	b.SouthWest.Lon = domain.WrapLon(s.center.Lon - lonSpan/2)
	return b
}

func (s *Surface) fitZoomLocked(b domain.ViewportBounds) int {
	wantLon := b.LonSpan()
	wantLat := b.NorthEast.Lat - b.SouthWest.Lat
	lat := b.Center().Lat
	for z := s.maxZoom; z > s.minZoom; z-- {
		lonSpan, latSpan := s.spansLocked(z, lat)
		if lonSpan >= wantLon && latSpan >= wantLat {
			return z
		}
	}
	return s.minZoom
}
