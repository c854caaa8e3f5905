package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/pkg/geospatial"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
	"github.com/samirrijal/pinmap/internal/pkg/telemetry"
)

const publishTimeout = 2 * time.Second

// SessionService keeps the live map sessions of this process and fans
// their state out to the event publisher and the snapshot store. The
// fan-out runs on one goroutine per session, off the caller's path.
type SessionService struct {
	publisher ports.EventPublisher
	store     ports.StateStore
	defaults  domain.InitOptions

	mu       sync.RWMutex
	sessions map[string]*MapSession
	fanouts  map[string]*stateFanout
}

// NewSessionService creates a SessionService. publisher and store may be
// nil. defaults supply the API key, host element and view overrides that
// callers do not set themselves.
func NewSessionService(publisher ports.EventPublisher, store ports.StateStore, defaults domain.InitOptions) *SessionService {
	return &SessionService{
		publisher: publisher,
		store:     store,
		defaults:  defaults,
		sessions:  make(map[string]*MapSession),
		fanouts:   make(map[string]*stateFanout),
	}
}

// Open creates a session on provider, registers it and initializes it.
// When Init fails the session is not registered.
func (s *SessionService) Open(ctx context.Context, provider ports.MapProvider, opts domain.InitOptions) (*MapSession, error) {
	return s.OpenWithID(ctx, uuid.NewString(), provider, opts)
}

// OpenWithID is Open with a caller-chosen id.
func (s *SessionService) OpenWithID(ctx context.Context, id string, provider ports.MapProvider, opts domain.InitOptions) (*MapSession, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrAlreadyInitialized)
	}
	fanout := newStateFanout(s.deliverState)
	session := NewMapSession(id, provider,
		WithStateListener(fanout.offer),
		WithClickListener(s.clickListener()),
	)
	s.sessions[id] = session
	s.fanouts[id] = fanout
	s.mu.Unlock()

	if err := session.Init(ctx, s.withDefaults(opts)); err != nil {
		s.mu.Lock()
		delete(s.sessions, id)
		delete(s.fanouts, id)
		s.mu.Unlock()
		fanout.close()
		metrics.SessionInits.WithLabelValues("error").Inc()
		return nil, err
	}

	s.mu.RLock()
	_, stillOpen := s.sessions[id]
	s.mu.RUnlock()
	if !stillOpen {
		fanout.close()
		_ = session.Close()
		return nil, fmt.Errorf("session %s closed during init: %w", id, domain.ErrSessionNotFound)
	}

	metrics.SessionInits.WithLabelValues("ok").Inc()
	metrics.ActiveSessions.Inc()
	return session, nil
}

// Get returns a live session.
func (s *SessionService) Get(id string) (*MapSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok || session.Status() != domain.StatusReady {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return session, nil
}

// List returns the states of all ready sessions ordered by id.
func (s *SessionService) List() []domain.SessionState {
	s.mu.RLock()
	sessions := make([]*MapSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	states := make([]domain.SessionState, 0, len(sessions))
	for _, session := range sessions {
		if session.Status() == domain.StatusReady {
			states = append(states, session.State())
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].SessionID < states[j].SessionID })
	return states
}

// State returns the state of a session, falling back to the last snapshot
// in the store when the session does not live in this process.
func (s *SessionService) State(ctx context.Context, id string) (*domain.SessionState, error) {
	if session, err := s.Get(id); err == nil {
		st := session.State()
		return &st, nil
	}
	if s.store == nil {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	st, err := s.store.LoadState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, errors.Join(domain.ErrSessionNotFound, err))
	}
	return st, nil
}

// ReplaceMarkers replaces the markers of session id.
func (s *SessionService) ReplaceMarkers(ctx context.Context, id string, markerOpts []domain.MarkerOptions, fitBounds bool) ([]domain.Marker, error) {
	_, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanSessionReplace,
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.Int("markers.count", len(markerOpts)),
		))
	defer span.End()

	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	markers, err := session.ReplaceMarkers(markerOpts, fitBounds)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.MarkerOperations.WithLabelValues("replace").Inc()
	return markers, nil
}

// AddMarker appends one marker to session id.
func (s *SessionService) AddMarker(id string, opts domain.MarkerOptions, fitBounds bool) (domain.Marker, error) {
	session, err := s.Get(id)
	if err != nil {
		return domain.Marker{}, err
	}
	m, err := session.AddMarker(opts, fitBounds)
	if err != nil {
		return domain.Marker{}, err
	}
	metrics.MarkerOperations.WithLabelValues("add").Inc()
	return m, nil
}

// ClearMarkers removes every marker from session id.
func (s *SessionService) ClearMarkers(id string) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := session.ClearMarkers(); err != nil {
		return err
	}
	metrics.MarkerOperations.WithLabelValues("clear").Inc()
	return nil
}

// Navigate moves the view of session id. Only headless surfaces can be
// driven this way.
func (s *SessionService) Navigate(id string, center *domain.GeoPoint, zoom *int) error {
	session, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := session.Navigate(center, zoom); err != nil {
		return err
	}
	metrics.MarkerOperations.WithLabelValues("navigate").Inc()
	return nil
}

// Close unregisters session id, releases its surface and drops its
// snapshot.
func (s *SessionService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	fanout := s.fanouts[id]
	if ok {
		delete(s.sessions, id)
		delete(s.fanouts, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}

	if session.Status() == domain.StatusReady {
		metrics.ActiveSessions.Dec()
	}
	// Stop the fan-out first so no late snapshot outlives the delete.
	if fanout != nil {
		fanout.close()
	}
	if s.store != nil {
		if err := s.store.DeleteState(ctx, id); err != nil {
			slog.Warn("delete session snapshot", "session_id", id, "error", err)
		}
	}
	return session.Close()
}

// CloseAll closes every session; used on shutdown.
func (s *SessionService) CloseAll(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		if err := s.Close(ctx, id); err != nil {
			slog.Warn("close session", "session_id", id, "error", err)
		}
	}
}

// Distance returns the great-circle distance between two points in meters.
func (s *SessionService) Distance(from, to domain.GeoPoint) (float64, error) {
	if err := from.Validate(); err != nil {
		return 0, fmt.Errorf("from: %w", err)
	}
	if err := to.Validate(); err != nil {
		return 0, fmt.Errorf("to: %w", err)
	}
	return geospatial.DistanceMeters(from, to), nil
}

func (s *SessionService) withDefaults(opts domain.InitOptions) domain.InitOptions {
	if opts.APIKey == "" {
		opts.APIKey = s.defaults.APIKey
	}
	if opts.HostElementID == "" {
		opts.HostElementID = s.defaults.HostElementID
	}
	if opts.View == nil {
		opts.View = s.defaults.View
	}
	if opts.API == nil {
		opts.API = s.defaults.API
	}
	return opts
}

// deliverState runs on the session's fan-out goroutine.
func (s *SessionService) deliverState(st domain.SessionState) {
	metrics.ViewportUpdates.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, telemetry.SpanStatePublish,
		trace.WithAttributes(attribute.String("session.id", st.SessionID)))
	defer span.End()

	if s.store != nil {
		if err := s.store.SaveState(ctx, st); err != nil {
			metrics.PublishErrors.WithLabelValues("store").Inc()
			slog.Warn("save session snapshot", "session_id", st.SessionID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishState(ctx, st); err != nil {
			metrics.PublishErrors.WithLabelValues("publisher").Inc()
			slog.Warn("publish session state", "session_id", st.SessionID, "error", err)
		}
	}
}

func (s *SessionService) clickListener() func(domain.MarkerClick) {
	return func(click domain.MarkerClick) {
		if s.publisher == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.PublishMarkerClick(ctx, click); err != nil {
			metrics.PublishErrors.WithLabelValues("publisher").Inc()
			slog.Warn("publish marker click", "session_id", click.SessionID, "error", err)
		}
	}
}
