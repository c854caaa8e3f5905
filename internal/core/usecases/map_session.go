package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/pkg/geospatial"
	"github.com/samirrijal/pinmap/internal/pkg/telemetry"
)

// SessionOption configures a MapSession.
type SessionOption func(*MapSession)

// WithStateListener registers fn to receive every published state. fn runs
// while the session is locked: it must return quickly and must not call
// back into the session.
func WithStateListener(fn func(domain.SessionState)) SessionOption {
	return func(s *MapSession) { s.onState = fn }
}

// WithClickListener registers fn to receive marker clicks.
func WithClickListener(fn func(domain.MarkerClick)) SessionOption {
	return func(s *MapSession) { s.onClick = fn }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *MapSession) { s.logger = l }
}

// MapSession drives one map surface: it initializes the provider once,
// owns the marker registry and keeps the derived viewport state current
// as the provider reports pans and zooms.
//
// Provider callbacks and public operations are serialized by mu, so a
// state snapshot never mixes values from two updates.
type MapSession struct {
	id       string
	provider ports.MapProvider
	logger   *slog.Logger
	onState  func(domain.SessionState)
	onClick  func(domain.MarkerClick)

	mu         sync.Mutex
	status     domain.SessionStatus
	surface    ports.Surface
	markers    *MarkerRegistry
	initMarker ports.MarkerHandle
	bounds     geospatial.BoundsBuilder

	state atomic.Pointer[domain.SessionState]
}

// NewMapSession creates an uninitialized session backed by provider.
func NewMapSession(id string, provider ports.MapProvider, opts ...SessionOption) *MapSession {
	s := &MapSession{
		id:       id,
		provider: provider,
		logger:   slog.Default(),
		markers:  NewMarkerRegistry(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("session_id", id)
	return s
}

// ID returns the session identifier.
func (s *MapSession) ID() string { return s.id }

// Status returns the lifecycle state.
func (s *MapSession) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns the last published state. Before Ready it only carries the
// id and status.
func (s *MapSession) State() domain.SessionState {
	if st := s.state.Load(); st != nil {
		return *st
	}
	return domain.SessionState{SessionID: s.id, Status: s.Status(), Markers: []domain.Marker{}}
}

// Init builds the surface and subscribes to its notifications. It blocks
// until the provider is ready. Only one Init may be in flight; on failure
// the session returns to Uninitialized and the caller may retry.
func (s *MapSession) Init(ctx context.Context, opts domain.InitOptions) error {
	cfg := domain.SurfaceConfig{
		APIKey:        opts.APIKey,
		HostElementID: opts.HostElementID,
		Append:        opts.Append,
		View:          domain.DefaultViewOptions().Merge(opts.View),
		API:           domain.DefaultAPIOptions().Merge(opts.API),
	}
	if err := cfg.View.Center.Validate(); err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	s.mu.Lock()
	switch s.status {
	case domain.StatusInitializing:
		s.mu.Unlock()
		return domain.ErrInitInProgress
	case domain.StatusReady:
		s.mu.Unlock()
		return domain.ErrAlreadyInitialized
	}
	s.status = domain.StatusInitializing
	s.mu.Unlock()

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanSessionInit,
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.Bool("session.init_marker", opts.CreateInitMarker),
		))
	defer span.End()

	start := time.Now()
	surface, err := s.provider.InitSurface(ctx, cfg)
	if err == nil && surface == nil {
		err = fmt.Errorf("provider returned no surface")
	}
	if err != nil {
		s.mu.Lock()
		s.status = domain.StatusUninitialized
		s.mu.Unlock()

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("map provider init failed", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.surface = surface
	if opts.CreateInitMarker {
		center := cfg.View.Center
		m, err := s.markers.Create(surface, domain.MarkerOptions{Position: &center})
		if err == nil {
			err = s.markers.Show(surface, []ports.MarkerHandle{m})
		}
		if err != nil {
			s.abandonLocked(surface)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("%w: init marker: %w", domain.ErrInitialization, err)
		}
		m.OnClick(s.markerClicked(m))
		s.initMarker = m

		s.bounds.Extend(center)
		if b, ok := s.bounds.Bounds(); ok {
			surface.FitBounds(b)
		}
	}

	surface.OnSettle(s.handleSettle)
	surface.OnCenterChanged(s.handleCenterChanged)

	s.status = domain.StatusReady
	s.publishLocked(surface.Center())

	s.logger.Info("map session ready",
		"init_marker", opts.CreateInitMarker,
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// InitMarker returns the marker created by Init, if any.
func (s *MapSession) InitMarker() (domain.Marker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initMarker == nil {
		return domain.Marker{}, false
	}
	return snapshotMarker(s.initMarker), true
}

// AddMarker creates a marker, attaches it and extends the session bounds
// with its position. With fitBounds the viewport is fitted to every
// marker added since the last clear.
func (s *MapSession) AddMarker(opts domain.MarkerOptions, fitBounds bool) (domain.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusReady {
		return domain.Marker{}, fmt.Errorf("add marker: %w", domain.ErrPrecondition)
	}

	m, err := s.markers.Create(s.surface, opts)
	if err != nil {
		return domain.Marker{}, err
	}
	if err := s.markers.Show(s.surface, []ports.MarkerHandle{m}); err != nil {
		return domain.Marker{}, err
	}
	m.OnClick(s.markerClicked(m))

	s.bounds.Extend(m.Position())
	if fitBounds {
		if b, ok := s.bounds.Bounds(); ok {
			s.surface.FitBounds(b)
		}
	}

	s.publishLocked(s.currentCenterLocked())
	return snapshotMarker(m), nil
}

// ReplaceMarkers swaps every marker on the surface for a new set built
// from markerOpts. Every position is validated before anything changes.
func (s *MapSession) ReplaceMarkers(markerOpts []domain.MarkerOptions, fitBounds bool) ([]domain.Marker, error) {
	resolved := make([]domain.MarkerOptions, 0, len(markerOpts))
	for i, o := range markerOpts {
		o = o.WithDefaults()
		if err := o.Position.Validate(); err != nil {
			return nil, fmt.Errorf("marker %d: %w", i, err)
		}
		resolved = append(resolved, o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusReady {
		return nil, fmt.Errorf("replace markers: %w", domain.ErrPrecondition)
	}

	handles := make([]ports.MarkerHandle, 0, len(resolved))
	s.bounds.Reset()
	for _, o := range resolved {
		m := s.surface.CreateMarker(o)
		m.OnClick(s.markerClicked(m))
		handles = append(handles, m)
		s.bounds.Extend(*o.Position)
	}

	opts := ReplaceOptions{FitBounds: fitBounds}
	if b, ok := s.bounds.Bounds(); ok {
		opts.Bounds = &b
	}
	if err := s.markers.ReplaceAll(s.surface, handles, opts); err != nil {
		return nil, err
	}
	// The init marker, if any, was detached with the rest.
	s.initMarker = nil

	s.publishLocked(s.currentCenterLocked())
	return s.markers.Snapshot(), nil
}

// ClearMarkers detaches every marker. Clearing an empty session is a no-op
// apart from republishing the state.
func (s *MapSession) ClearMarkers() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusReady {
		return fmt.Errorf("clear markers: %w", domain.ErrPrecondition)
	}

	s.markers.ClearAll()
	s.initMarker = nil
	s.bounds.Reset()

	s.publishLocked(s.currentCenterLocked())
	return nil
}

// Navigate pans and/or zooms surfaces that support server-side view
// changes. Notifications caused by the move arrive through the usual
// settle and center-changed handlers.
func (s *MapSession) Navigate(center *domain.GeoPoint, zoom *int) error {
	if center != nil {
		if err := center.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.status != domain.StatusReady {
		s.mu.Unlock()
		return fmt.Errorf("navigate: %w", domain.ErrPrecondition)
	}
	nav, ok := s.surface.(ports.Navigator)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("navigate: %w", domain.ErrUnsupported)
	}

	if zoom != nil {
		nav.SetZoom(*zoom)
	}
	if center != nil {
		nav.Pan(*center)
	}
	return nil
}

// Close releases the surface if the provider made it closable.
func (s *MapSession) Close() error {
	s.mu.Lock()
	surface := s.surface
	s.mu.Unlock()

	if c, ok := surface.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// abandonLocked undoes a half-finished Init so the caller may retry.
func (s *MapSession) abandonLocked(surface ports.Surface) {
	s.markers.ClearAll()
	s.surface = nil
	s.status = domain.StatusUninitialized
	if c, ok := surface.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("close abandoned surface", "error", err)
		}
	}
}

func (s *MapSession) handleSettle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishLocked(s.currentCenterLocked())
}

func (s *MapSession) handleCenterChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()

	center := s.surface.Center()
	if s.initMarker != nil {
		s.initMarker.SetPosition(center)
	}
	s.publishLocked(center)
}

func (s *MapSession) markerClicked(m ports.MarkerHandle) func() {
	return func() {
		s.mu.Lock()
		marker := snapshotMarker(m)
		s.mu.Unlock()

		s.logger.Info("marker clicked", "marker_id", marker.ID, "title", marker.Title)
		if s.onClick != nil {
			s.onClick(domain.MarkerClick{SessionID: s.id, Marker: marker, Time: time.Now().UTC()})
		}
	}
}

// currentCenterLocked keeps the last published center; settle events do
// not move it.
func (s *MapSession) currentCenterLocked() domain.GeoPoint {
	if st := s.state.Load(); st != nil {
		return st.Center
	}
	return s.surface.Center()
}

func (s *MapSession) publishLocked(center domain.GeoPoint) {
	bounds, ok := s.surface.Bounds()
	st := &domain.SessionState{
		SessionID:            s.id,
		Status:               s.status,
		Center:               center,
		ViewportWidthMeters:  geospatial.ViewportWidthMeters(bounds, ok),
		ViewportHeightMeters: geospatial.ViewportHeightMeters(bounds, ok),
		Markers:              s.markers.Snapshot(),
		UpdatedAt:            time.Now().UTC(),
	}
	if ok {
		st.Bounds = &bounds
	}
	s.state.Store(st)

	if s.onState != nil {
		s.onState(*st)
	}
}
