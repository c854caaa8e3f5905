// Package memory implements a headless map provider. Surfaces keep their
// view in process and compute bounds from a pixel viewport, so sessions can
// run without a browser.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// ErrMissingAPIKey is returned by InitSurface when no key is configured.
var ErrMissingAPIKey = errors.New("memory: api key rejected")

// Option configures a Provider.
type Option func(*Provider)

// WithViewport sets the pixel size of every surface.
func WithViewport(widthPx, heightPx int) Option {
	return func(p *Provider) {
		p.widthPx = widthPx
		p.heightPx = heightPx
	}
}

// WithInitDelay makes InitSurface wait d before the surface is ready.
func WithInitDelay(d time.Duration) Option {
	return func(p *Provider) { p.initDelay = d }
}

// WithInitError makes every InitSurface call fail with err.
func WithInitError(err error) Option {
	return func(p *Provider) { p.initErr = err }
}

// WithLogger sets the logger used by surfaces.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// Provider builds headless surfaces. It is safe for concurrent use.
type Provider struct {
	widthPx   int
	heightPx  int
	initDelay time.Duration
	initErr   error
	logger    *slog.Logger
}

// NewProvider creates a Provider with a 1280x800 viewport.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		widthPx:  1280,
		heightPx: 800,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// InitSurface validates cfg and returns a surface whose first layout pass
// is already queued.
func (p *Provider) InitSurface(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if p.initErr != nil {
		return nil, p.initErr
	}
	if cfg.View.MinZoom > cfg.View.MaxZoom {
		return nil, fmt.Errorf("memory: min zoom %d above max zoom %d", cfg.View.MinZoom, cfg.View.MaxZoom)
	}

	if p.initDelay > 0 {
		t := time.NewTimer(p.initDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newSurface(cfg, p.widthPx, p.heightPx, p.logger)
	s.enqueue(s.layout)
	return s, nil
}
