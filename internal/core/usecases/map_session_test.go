package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

var initOpts = domain.InitOptions{APIKey: "key", HostElementID: "Map", CreateInitMarker: true}

// stateLog collects every state a session publishes.
type stateLog struct {
	mu     sync.Mutex
	states []domain.SessionState
}

func (l *stateLog) add(st domain.SessionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, st)
}

func (l *stateLog) all() []domain.SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.SessionState(nil), l.states...)
}

func (l *stateLog) last(t *testing.T) domain.SessionState {
	t.Helper()
	all := l.all()
	if len(all) == 0 {
		t.Fatal("no state published")
	}
	return all[len(all)-1]
}

// readySession returns an initialized session on a fake surface.
func readySession(t *testing.T, opts domain.InitOptions) (*usecases.MapSession, *fakeSurface, *stateLog) {
	t.Helper()
	var surface *fakeSurface
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			surface = newFakeSurface(cfg.View.Center)
			return surface, nil
		},
	}
	log := &stateLog{}
	s := usecases.NewMapSession("s1", provider, usecases.WithStateListener(log.add))
	if err := s.Init(context.Background(), opts); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s, surface, log
}

func TestMapSession_InitReady(t *testing.T) {
	s, surface, log := readySession(t, initOpts)

	if s.Status() != domain.StatusReady {
		t.Fatalf("expected ready, got %s", s.Status())
	}

	st := log.last(t)
	if st.Status != domain.StatusReady {
		t.Errorf("published status %s", st.Status)
	}
	if st.Center != domain.DefaultCenter {
		t.Errorf("expected default center, got %+v", st.Center)
	}
	if st.Bounds == nil || st.ViewportWidthMeters <= 0 || st.ViewportHeightMeters <= 0 {
		t.Errorf("expected measured viewport, got %+v", st)
	}
	if len(st.Markers) != 1 {
		t.Fatalf("expected the init marker, got %d markers", len(st.Markers))
	}

	m, ok := s.InitMarker()
	if !ok || !near(m.Position, domain.DefaultCenter) {
		t.Errorf("expected init marker at center, got %+v (ok=%v)", m, ok)
	}
	if m.Title != "Marker Title" {
		t.Errorf("expected default title, got %q", m.Title)
	}

	fits := surface.fits()
	if len(fits) != 1 || !covers(fits[0], domain.DefaultCenter) {
		t.Errorf("expected the view fitted to the init marker, got %+v", fits)
	}
}

func TestMapSession_InitWithoutMarker(t *testing.T) {
	s, surface, log := readySession(t, domain.InitOptions{APIKey: "key", HostElementID: "Map"})

	if _, ok := s.InitMarker(); ok {
		t.Error("expected no init marker")
	}
	if len(log.last(t).Markers) != 0 {
		t.Error("expected no markers")
	}
	if len(surface.fits()) != 0 {
		t.Error("expected no FitBounds without markers")
	}
}

func TestMapSession_InitAppliesOverrides(t *testing.T) {
	var got domain.SurfaceConfig
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			got = cfg
			return newFakeSurface(cfg.View.Center), nil
		},
	}
	zoom := 9
	opts := initOpts
	opts.View = &domain.ViewOverrides{Center: point(41.0, 29.0), Zoom: &zoom}
	opts.API = &domain.APIOptions{Language: "en"}

	s := usecases.NewMapSession("s1", provider)
	if err := s.Init(context.Background(), opts); err != nil {
		t.Fatalf("init: %v", err)
	}
	if got.View.Center != *opts.View.Center || got.View.Zoom != 9 {
		t.Errorf("view overrides not applied: %+v", got.View)
	}
	if got.View.MinZoom != 2 || got.View.MaxZoom != 18 {
		t.Errorf("expected default zoom range, got %d..%d", got.View.MinZoom, got.View.MaxZoom)
	}
	if got.API.Language != "en" || got.API.Region != "TR" {
		t.Errorf("api options not merged: %+v", got.API)
	}
	if got.APIKey != "key" || got.HostElementID != "Map" {
		t.Errorf("unexpected surface config: %+v", got)
	}
}

func TestMapSession_InitInvalidCenter(t *testing.T) {
	called := false
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			called = true
			return nil, nil
		},
	}
	opts := initOpts
	opts.View = &domain.ViewOverrides{Center: point(0, 200)}

	s := usecases.NewMapSession("s1", provider)
	if err := s.Init(context.Background(), opts); !errors.Is(err, domain.ErrInvalidPoint) {
		t.Errorf("expected ErrInvalidPoint, got %v", err)
	}
	if called {
		t.Error("provider must not be called with an invalid center")
	}
	if s.Status() != domain.StatusUninitialized {
		t.Errorf("expected uninitialized, got %s", s.Status())
	}
}

func TestMapSession_ConcurrentInit(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			close(started)
			<-release
			return newFakeSurface(cfg.View.Center), nil
		},
	}
	s := usecases.NewMapSession("s1", provider)

	done := make(chan error, 1)
	go func() { done <- s.Init(context.Background(), initOpts) }()
	<-started

	if s.Status() != domain.StatusInitializing {
		t.Errorf("expected initializing, got %s", s.Status())
	}
	if err := s.Init(context.Background(), initOpts); !errors.Is(err, domain.ErrInitInProgress) {
		t.Errorf("expected ErrInitInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := s.Init(context.Background(), initOpts); !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestMapSession_InitFailureThenRetry(t *testing.T) {
	fail := true
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			if fail {
				return nil, errors.New("auth rejected")
			}
			return newFakeSurface(cfg.View.Center), nil
		},
	}
	log := &stateLog{}
	s := usecases.NewMapSession("s1", provider, usecases.WithStateListener(log.add))

	if err := s.Init(context.Background(), initOpts); !errors.Is(err, domain.ErrInitialization) {
		t.Fatalf("expected ErrInitialization, got %v", err)
	}
	if s.Status() != domain.StatusUninitialized {
		t.Errorf("expected uninitialized after failure, got %s", s.Status())
	}
	if len(log.all()) != 0 {
		t.Error("failed init must not publish state")
	}
	if _, err := s.AddMarker(domain.MarkerOptions{}, false); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("expected ErrPrecondition before ready, got %v", err)
	}

	fail = false
	if err := s.Init(context.Background(), initOpts); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.Status() != domain.StatusReady {
		t.Errorf("expected ready after retry, got %s", s.Status())
	}
}

func TestMapSession_InitMarkerFailureReleasesSurface(t *testing.T) {
	var surfaces []*fakeSurface
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			surface := newFakeSurface(cfg.View.Center)
			surface.noMarkers = len(surfaces) == 0
			surfaces = append(surfaces, surface)
			return surface, nil
		},
	}
	log := &stateLog{}
	s := usecases.NewMapSession("s1", provider, usecases.WithStateListener(log.add))

	err := s.Init(context.Background(), initOpts)
	if !errors.Is(err, domain.ErrInitialization) || !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("expected ErrInitialization wrapping ErrPrecondition, got %v", err)
	}
	if !surfaces[0].isClosed() {
		t.Error("surface of the failed init was not closed")
	}
	if s.Status() != domain.StatusUninitialized {
		t.Errorf("expected uninitialized, got %s", s.Status())
	}
	if len(log.all()) != 0 {
		t.Error("failed init must not publish state")
	}

	if err := s.Init(context.Background(), initOpts); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if surfaces[1].isClosed() {
		t.Error("surface of the successful init was closed")
	}
	if m, ok := s.InitMarker(); !ok || len(log.last(t).Markers) != 1 || log.last(t).Markers[0].ID != m.ID {
		t.Errorf("expected only the retry's init marker, got %+v", log.last(t).Markers)
	}
}

func TestMapSession_InitWithoutSurface(t *testing.T) {
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			return nil, nil
		},
	}
	s := usecases.NewMapSession("s1", provider)
	if err := s.Init(context.Background(), initOpts); !errors.Is(err, domain.ErrInitialization) {
		t.Fatalf("expected ErrInitialization, got %v", err)
	}
	if s.Status() != domain.StatusUninitialized {
		t.Errorf("expected uninitialized, got %s", s.Status())
	}
}

func TestMapSession_InitContextDeadline(t *testing.T) {
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s := usecases.NewMapSession("s1", provider)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Init(ctx, initOpts)
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, domain.ErrInitialization) {
		t.Errorf("expected deadline wrapped in ErrInitialization, got %v", err)
	}
	if s.Status() != domain.StatusUninitialized {
		t.Errorf("expected uninitialized, got %s", s.Status())
	}
}

func TestMapSession_StateBeforeInit(t *testing.T) {
	s := usecases.NewMapSession("s1", &mockProvider{})
	st := s.State()
	if st.SessionID != "s1" || st.Status != domain.StatusUninitialized || st.Markers == nil {
		t.Errorf("unexpected pre-init state: %+v", st)
	}
	if err := s.ClearMarkers(); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("expected ErrPrecondition, got %v", err)
	}
}

func TestMapSession_SettleRefreshesViewport(t *testing.T) {
	s, surface, log := readySession(t, initOpts)
	before := log.last(t)

	wider := boxAround(domain.DefaultCenter, 0.5, 0.25)
	surface.settle(wider)

	st := log.last(t)
	if st.Bounds == nil || *st.Bounds != wider {
		t.Errorf("expected bounds %+v, got %+v", wider, st.Bounds)
	}
	if st.ViewportWidthMeters <= before.ViewportWidthMeters {
		t.Errorf("expected a wider viewport: %f <= %f", st.ViewportWidthMeters, before.ViewportWidthMeters)
	}
	if st.Center != before.Center {
		t.Errorf("settle must not move the center: %+v", st.Center)
	}
	if got := s.State(); got.ViewportWidthMeters != st.ViewportWidthMeters {
		t.Errorf("State() out of sync with the published state")
	}
}

func TestMapSession_CenterChangedMovesInitMarker(t *testing.T) {
	s, surface, log := readySession(t, initOpts)

	istanbul := domain.GeoPoint{Lat: 41.08416633, Lon: 29.053666452}
	surface.moveTo(istanbul)

	st := log.last(t)
	if st.Center != istanbul {
		t.Errorf("expected center %+v, got %+v", istanbul, st.Center)
	}
	if st.Bounds == nil || !covers(*st.Bounds, istanbul) {
		t.Errorf("bounds and center disagree: %+v", st.Bounds)
	}
	m, _ := s.InitMarker()
	if m.Position != istanbul {
		t.Errorf("init marker not moved: %+v", m.Position)
	}
	if len(st.Markers) != 1 || st.Markers[0].Position != istanbul {
		t.Errorf("published markers stale: %+v", st.Markers)
	}

	// A later settle keeps the center reported by the move.
	surface.settle(boxAround(istanbul, 0.2, 0.1))
	if got := log.last(t).Center; got != istanbul {
		t.Errorf("settle reset the center to %+v", got)
	}
}

func TestMapSession_AddMarkerFitsAllMarkers(t *testing.T) {
	s, surface, log := readySession(t, initOpts)

	izmir := domain.GeoPoint{Lat: 38.4237, Lon: 27.1428}
	m, err := s.AddMarker(domain.MarkerOptions{Position: &izmir, Title: "Izmir"}, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.Title != "Izmir" || m.Label != "Marker Label" {
		t.Errorf("unexpected marker: %+v", m)
	}

	fits := surface.fits()
	last := fits[len(fits)-1]
	if !covers(last, izmir) || !covers(last, domain.DefaultCenter) {
		t.Errorf("fit %+v does not cover both markers", last)
	}
	if got := len(log.last(t).Markers); got != 2 {
		t.Errorf("expected 2 markers, got %d", got)
	}

	// Without fit the view is left alone.
	n := len(fits)
	if _, err := s.AddMarker(domain.MarkerOptions{Position: point(37, 35)}, false); err != nil {
		t.Fatal(err)
	}
	if len(surface.fits()) != n {
		t.Error("AddMarker without fit called FitBounds")
	}
}

func TestMapSession_AddMarkerInvalidPosition(t *testing.T) {
	s, _, log := readySession(t, initOpts)
	n := len(log.all())

	if _, err := s.AddMarker(domain.MarkerOptions{Position: point(-91, 0)}, true); !errors.Is(err, domain.ErrInvalidPoint) {
		t.Errorf("expected ErrInvalidPoint, got %v", err)
	}
	if len(log.all()) != n {
		t.Error("rejected marker must not publish state")
	}
}

func TestMapSession_ReplaceMarkers(t *testing.T) {
	s, surface, log := readySession(t, initOpts)
	initMarker := surface.created[0]

	want := []domain.MarkerOptions{
		{Position: point(39.925018, 32.836956), Title: "Ankara"},
		{Position: point(41.08416633, 29.053666452), Title: "Istanbul"},
	}
	markers, err := s.ReplaceMarkers(want, true)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(markers) != 2 || markers[0].Title != "Ankara" || markers[1].Title != "Istanbul" {
		t.Fatalf("unexpected markers: %+v", markers)
	}
	if initMarker.attached() {
		t.Error("init marker still attached after replace")
	}
	if _, ok := s.InitMarker(); ok {
		t.Error("init marker still tracked after replace")
	}

	fits := surface.fits()
	last := fits[len(fits)-1]
	for _, w := range want {
		if !covers(last, *w.Position) {
			t.Errorf("fit %+v misses %+v", last, *w.Position)
		}
	}
	if got := log.last(t).Markers; len(got) != 2 {
		t.Errorf("published %d markers", len(got))
	}

	// The init marker is gone, so moving the map leaves markers in place.
	surface.moveTo(domain.GeoPoint{Lat: 37, Lon: 35})
	for _, m := range log.last(t).Markers {
		if m.Position.Lat == 37 {
			t.Errorf("marker %s followed the center", m.ID)
		}
	}
}

func TestMapSession_ReplaceMarkersValidatesFirst(t *testing.T) {
	s, surface, log := readySession(t, initOpts)
	n, created := len(log.all()), len(surface.created)

	_, err := s.ReplaceMarkers([]domain.MarkerOptions{
		{Position: point(40, 30)},
		{Position: point(95, 30)},
	}, true)
	if !errors.Is(err, domain.ErrInvalidPoint) {
		t.Fatalf("expected ErrInvalidPoint, got %v", err)
	}
	if len(surface.created) != created || len(log.all()) != n {
		t.Error("rejected replace changed the surface")
	}
	if _, ok := s.InitMarker(); !ok {
		t.Error("init marker lost after rejected replace")
	}
}

func TestMapSession_ReplaceWithEmptyList(t *testing.T) {
	s, surface, log := readySession(t, initOpts)
	n := len(surface.fits())

	markers, err := s.ReplaceMarkers(nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(markers) != 0 || len(log.last(t).Markers) != 0 {
		t.Errorf("expected no markers, got %+v", markers)
	}
	if len(surface.fits()) != n {
		t.Error("empty replace must not fit bounds")
	}
	if s.Status() != domain.StatusReady {
		t.Error("session left ready state")
	}
}

func TestMapSession_ClearMarkersTwice(t *testing.T) {
	s, surface, log := readySession(t, initOpts)

	if err := s.ClearMarkers(); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearMarkers(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if surface.created[0].attached() {
		t.Error("init marker still attached")
	}
	if got := log.last(t).Markers; len(got) != 0 {
		t.Errorf("expected no markers, got %+v", got)
	}

	// Bounds restart from scratch after a clear.
	p := domain.GeoPoint{Lat: 36.9, Lon: 30.7}
	if _, err := s.AddMarker(domain.MarkerOptions{Position: &p}, true); err != nil {
		t.Fatal(err)
	}
	fits := surface.fits()
	if last := fits[len(fits)-1]; covers(last, domain.DefaultCenter) {
		t.Errorf("fit %+v still includes the cleared init marker", last)
	}
}

func TestMapSession_NavigateUnsupported(t *testing.T) {
	s, _, _ := readySession(t, initOpts)
	zoom := 5
	if err := s.Navigate(nil, &zoom); !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestMapSession_Navigate(t *testing.T) {
	nav := &fakeNavSurface{fakeSurface: newFakeSurface(domain.DefaultCenter)}
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			return nav, nil
		},
	}
	s := usecases.NewMapSession("s1", provider)
	if err := s.Init(context.Background(), initOpts); err != nil {
		t.Fatal(err)
	}

	zoom := 7
	if err := s.Navigate(point(41, 29), &zoom); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if len(nav.pans) != 1 || nav.pans[0] != (domain.GeoPoint{Lat: 41, Lon: 29}) {
		t.Errorf("unexpected pans: %+v", nav.pans)
	}
	if len(nav.zooms) != 1 || nav.zooms[0] != 7 {
		t.Errorf("unexpected zooms: %+v", nav.zooms)
	}

	if err := s.Navigate(point(100, 0), nil); !errors.Is(err, domain.ErrInvalidPoint) {
		t.Errorf("expected ErrInvalidPoint, got %v", err)
	}
	if len(nav.pans) != 1 {
		t.Error("invalid center reached the surface")
	}
}

func TestMapSession_MarkerClick(t *testing.T) {
	var (
		mu     sync.Mutex
		clicks []domain.MarkerClick
	)
	var surface *fakeSurface
	provider := &mockProvider{
		initSurfaceFn: func(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
			surface = newFakeSurface(cfg.View.Center)
			return surface, nil
		},
	}
	s := usecases.NewMapSession("s1", provider, usecases.WithClickListener(func(c domain.MarkerClick) {
		mu.Lock()
		defer mu.Unlock()
		clicks = append(clicks, c)
	}))
	if err := s.Init(context.Background(), initOpts); err != nil {
		t.Fatal(err)
	}
	added, err := s.AddMarker(domain.MarkerOptions{Position: point(40, 30), Title: "Added"}, false)
	if err != nil {
		t.Fatal(err)
	}

	surface.created[0].click()
	surface.created[1].click()

	mu.Lock()
	defer mu.Unlock()
	if len(clicks) != 2 {
		t.Fatalf("expected 2 clicks, got %d", len(clicks))
	}
	if clicks[0].SessionID != "s1" || clicks[0].Marker.Title != "Marker Title" {
		t.Errorf("unexpected init marker click: %+v", clicks[0])
	}
	if clicks[1].Marker.ID != added.ID {
		t.Errorf("expected click on %s, got %+v", added.ID, clicks[1])
	}
}

func TestMapSession_CloseReleasesSurface(t *testing.T) {
	s, surface, _ := readySession(t, initOpts)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !surface.closed {
		t.Error("surface not closed")
	}

	// Closing a session that never initialized is fine.
	if err := usecases.NewMapSession("s2", &mockProvider{}).Close(); err != nil {
		t.Errorf("close uninitialized: %v", err)
	}
}
