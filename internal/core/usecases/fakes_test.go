package usecases_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// --- Mock MapProvider ---

type mockProvider struct {
	initSurfaceFn func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error)
}

func (m *mockProvider) InitSurface(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
	if m.initSurfaceFn != nil {
		return m.initSurfaceFn(ctx, cfg)
	}
	return newFakeSurface(cfg.View.Center), nil
}

// --- Fake Surface ---

type fakeSurface struct {
	mu       sync.Mutex
	center   domain.GeoPoint
	bounds   domain.ViewportBounds
	laidOut  bool
	fitted   []domain.ViewportBounds
	onSettle func()
	onCenter func()
	created  []*fakeMarker
	closed   bool
	// noMarkers makes CreateMarker return nothing, like a provider that
	// lost its map.
	noMarkers bool
}

// newFakeSurface returns a laid-out surface with a 0.2 x 0.1 degree
// viewport around center.
func newFakeSurface(center domain.GeoPoint) *fakeSurface {
	s := &fakeSurface{center: center, laidOut: true}
	s.bounds = boxAround(center, 0.1, 0.05)
	return s
}

func boxAround(c domain.GeoPoint, halfLon, halfLat float64) domain.ViewportBounds {
	return domain.ViewportBounds{
		NorthEast: domain.GeoPoint{Lat: c.Lat + halfLat, Lon: c.Lon + halfLon},
		SouthWest: domain.GeoPoint{Lat: c.Lat - halfLat, Lon: c.Lon - halfLon},
	}
}

func (s *fakeSurface) Bounds() (domain.ViewportBounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds, s.laidOut
}

func (s *fakeSurface) Center() domain.GeoPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

func (s *fakeSurface) FitBounds(b domain.ViewportBounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = append(s.fitted, b)
}

func (s *fakeSurface) OnSettle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSettle = fn
}

func (s *fakeSurface) OnCenterChanged(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCenter = fn
}

func (s *fakeSurface) CreateMarker(opts domain.MarkerOptions) ports.MarkerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noMarkers {
		return nil
	}
	m := &fakeMarker{id: fmt.Sprintf("m%d", len(s.created)+1), title: opts.Title}
	if opts.Position != nil {
		m.position = *opts.Position
	}
	if opts.Label != nil {
		m.label = opts.Label.Text
	}
	s.created = append(s.created, m)
	return m
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// settle simulates the provider reporting a new viewport.
func (s *fakeSurface) settle(b domain.ViewportBounds) {
	s.mu.Lock()
	s.bounds = b
	s.laidOut = true
	fn := s.onSettle
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// moveTo simulates a user drag: the center moves first, then the view settles.
func (s *fakeSurface) moveTo(c domain.GeoPoint) {
	s.mu.Lock()
	s.center = c
	s.bounds = boxAround(c, 0.1, 0.05)
	fn := s.onCenter
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *fakeSurface) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSurface) fits() []domain.ViewportBounds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ViewportBounds(nil), s.fitted...)
}

// --- Fake navigable surface ---

type fakeNavSurface struct {
	*fakeSurface
	pans  []domain.GeoPoint
	zooms []int
}

func (s *fakeNavSurface) Pan(c domain.GeoPoint) { s.pans = append(s.pans, c) }
func (s *fakeNavSurface) SetZoom(z int)         { s.zooms = append(s.zooms, z) }
func (s *fakeNavSurface) Zoom() int {
	if len(s.zooms) == 0 {
		return 13
	}
	return s.zooms[len(s.zooms)-1]
}

// --- Fake MarkerHandle ---

type fakeMarker struct {
	mu       sync.Mutex
	id       string
	title    string
	label    string
	position domain.GeoPoint
	surface  ports.Surface
	setMaps  []ports.Surface
	clicks   []func()
}

func (m *fakeMarker) ID() string    { return m.id }
func (m *fakeMarker) Title() string { return m.title }
func (m *fakeMarker) Label() string { return m.label }

func (m *fakeMarker) Position() domain.GeoPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *fakeMarker) SetPosition(p domain.GeoPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = p
}

func (m *fakeMarker) SetMap(s ports.Surface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surface = s
	m.setMaps = append(m.setMaps, s)
}

func (m *fakeMarker) OnClick(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, fn)
}

func (m *fakeMarker) attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.surface != nil
}

func (m *fakeMarker) click() {
	m.mu.Lock()
	fns := append([]func(){}, m.clicks...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu                   sync.Mutex
	publishStateFn       func(ctx context.Context, st domain.SessionState) error
	publishMarkerClickFn func(ctx context.Context, click domain.MarkerClick) error
	states               []domain.SessionState
	clicks               []domain.MarkerClick
}

func (m *mockPublisher) PublishState(ctx context.Context, st domain.SessionState) error {
	m.mu.Lock()
	m.states = append(m.states, st)
	m.mu.Unlock()
	if m.publishStateFn != nil {
		return m.publishStateFn(ctx, st)
	}
	return nil
}

func (m *mockPublisher) PublishMarkerClick(ctx context.Context, click domain.MarkerClick) error {
	m.mu.Lock()
	m.clicks = append(m.clicks, click)
	m.mu.Unlock()
	if m.publishMarkerClickFn != nil {
		return m.publishMarkerClickFn(ctx, click)
	}
	return nil
}

func (m *mockPublisher) published() []domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SessionState(nil), m.states...)
}

// --- Mock StateStore ---

type mockStore struct {
	mu          sync.Mutex
	saveStateFn func(ctx context.Context, st domain.SessionState) error
	loadStateFn func(ctx context.Context, id string) (*domain.SessionState, error)
	saved       map[string]domain.SessionState
	deleted     []string
}

func (m *mockStore) SaveState(ctx context.Context, st domain.SessionState) error {
	if m.saveStateFn != nil {
		return m.saveStateFn(ctx, st)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string]domain.SessionState)
	}
	m.saved[st.SessionID] = st
	return nil
}

func (m *mockStore) LoadState(ctx context.Context, id string) (*domain.SessionState, error) {
	if m.loadStateFn != nil {
		return m.loadStateFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.saved[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &st, nil
}

func (m *mockStore) DeleteState(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.saved[id]
	return ok
}

// --- helpers ---

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

const eps = 1e-9

func near(a, b domain.GeoPoint) bool {
	return abs(a.Lat-b.Lat) < eps && abs(a.Lon-b.Lon) < eps
}

// covers is ViewportBounds.Contains with room for float rounding.
func covers(b domain.ViewportBounds, p domain.GeoPoint) bool {
	if p.Lat < b.SouthWest.Lat-eps || p.Lat > b.NorthEast.Lat+eps {
		return false
	}
	if b.CrossesAntimeridian() {
		return p.Lon >= b.SouthWest.Lon-eps || p.Lon <= b.NorthEast.Lon+eps
	}
	return p.Lon >= b.SouthWest.Lon-eps && p.Lon <= b.NorthEast.Lon+eps
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func point(lat, lon float64) *domain.GeoPoint {
	return &domain.GeoPoint{Lat: lat, Lon: lon}
}
