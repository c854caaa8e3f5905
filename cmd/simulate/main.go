package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/pinmap/internal/adapters/memory"
	natsadapter "github.com/samirrijal/pinmap/internal/adapters/nats"
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/core/usecases"
	"github.com/samirrijal/pinmap/internal/pkg/config"
	"github.com/samirrijal/pinmap/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest describes one simulated session: the markers to show and the
// route the view follows.
type Manifest struct {
	SessionID string                 `json:"session_id,omitempty"`
	Interval  string                 `json:"interval,omitempty"` // e.g. "2s"
	Zoom      *int                   `json:"zoom,omitempty"`
	Clicks    bool                   `json:"simulate_clicks,omitempty"`
	Markers   []domain.MarkerOptions `json:"markers"`
	// Waypoints default to the marker positions.
	Waypoints []domain.GeoPoint `json:"waypoints,omitempty"`
}

func (m *Manifest) route() []domain.GeoPoint {
	if len(m.Waypoints) > 0 {
		return m.Waypoints
	}
	route := make([]domain.GeoPoint, 0, len(m.Markers))
	for _, mk := range m.Markers {
		if mk.Position != nil {
			route = append(route, *mk.Position)
		}
	}
	return route
}

func (m *Manifest) interval() time.Duration {
	d, err := time.ParseDuration(m.Interval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// surfaceTap keeps the headless surface the session runs on so the
// simulator can wait for settles and click markers.
type surfaceTap struct {
	*memory.Provider

	mu      sync.Mutex
	surface *memory.Surface
}

func (t *surfaceTap) InitSurface(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
	s, err := t.Provider.InitSurface(ctx, cfg)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.surface, _ = s.(*memory.Surface)
	t.mu.Unlock()
	return s, nil
}

func (t *surfaceTap) get() *memory.Surface {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.surface
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("pinmap-simulate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	manifest, err := loadManifest(manifestPath)
	if err != nil {
		log.Fatalf("manifest: %v", err)
	}
	route := manifest.route()
	if len(route) == 0 {
		log.Fatalf("manifest %s has no markers or waypoints", manifestPath)
	}

	// NATS (optional)
	var publisher ports.EventPublisher
	var subscriber *natsadapter.Subscriber
	if cfg.NATS.URL != "" {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, running without fan-out", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			if subscriber, err = natsadapter.NewSubscriber(pub.Conn()); err != nil {
				slog.Warn("nats subscriber unavailable", "error", err)
			}
		}
	}

	sessions := usecases.NewSessionService(publisher, nil, cfg.Map.InitOptions())
	tap := &surfaceTap{Provider: memory.NewProvider(
		memory.WithViewport(cfg.Surface.WidthPx, cfg.Surface.HeightPx),
		memory.WithLogger(logger),
	)}

	id := manifest.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	initCtx, initCancel := context.WithTimeout(ctx, time.Duration(cfg.Server.InitTimeout)*time.Second)
	_, err = sessions.OpenWithID(initCtx, id, tap, domain.InitOptions{CreateInitMarker: false})
	initCancel()
	if err != nil {
		log.Fatalf("open session: %v", err)
	}
	defer sessions.CloseAll(context.Background())

	if subscriber != nil {
		defer subscriber.Close()
		err := subscriber.SubscribeMarkerClicks(ctx, "pinmap-simulate", func(_ context.Context, click domain.MarkerClick) error {
			slog.Info("marker click received",
				"session_id", click.SessionID,
				"marker_id", click.Marker.ID,
				"title", click.Marker.Title,
			)
			return nil
		})
		if err != nil {
			slog.Warn("click consumer unavailable", "error", err)
		}
	}

	markers, err := sessions.ReplaceMarkers(ctx, id, manifest.Markers, true)
	if err != nil {
		log.Fatalf("replace markers: %v", err)
	}
	surface := tap.get()
	surface.Sync()
	logState(sessions, id, "fitted")

	if manifest.Zoom != nil {
		if err := sessions.Navigate(id, nil, manifest.Zoom); err != nil {
			slog.Warn("set zoom", "error", err)
		}
	}

	slog.Info("simulation started",
		"session_id", id,
		"markers", len(markers),
		"waypoints", len(route),
		"interval", manifest.interval().String(),
	)

	ticker := time.NewTicker(manifest.interval())
	defer ticker.Stop()

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	step := 0
	for {
		select {
		case <-ticker.C:
			next := route[step%len(route)]
			if err := sessions.Navigate(id, &next, nil); err != nil {
				slog.Warn("pan", "error", err)
				continue
			}
			surface.Sync()
			logState(sessions, id, fmt.Sprintf("waypoint %d", step%len(route)))

			if manifest.Clicks && len(markers) > 0 {
				m := markers[rand.Intn(len(markers))]
				if !surface.ClickMarker(m.ID) {
					slog.Warn("simulated click missed", "marker_id", m.ID)
				}
				surface.Sync()
			}
			step++
		case <-ctx.Done():
			return
		case sig := <-quit:
			slog.Info("shutting down simulator", "signal", sig.String())
			cancel()
			return
		}
	}
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

func logState(sessions *usecases.SessionService, id, step string) {
	session, err := sessions.Get(id)
	if err != nil {
		slog.Warn("session gone", "session_id", id, "error", err)
		return
	}
	st := session.State()
	slog.Info("viewport",
		"step", step,
		"lat", st.Center.Lat,
		"lon", st.Center.Lon,
		"width_m", int(st.ViewportWidthMeters),
		"height_m", int(st.ViewportHeightMeters),
		"markers", len(st.Markers),
	)
}
