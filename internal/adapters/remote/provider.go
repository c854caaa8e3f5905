package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

var (
	// ErrInitRejected is returned when the page reports init_failed.
	ErrInitRejected = errors.New("remote: map init rejected")
	// ErrSurfaceExists is returned by a second InitSurface on one connection.
	ErrSurfaceExists = errors.New("remote: connection already has a surface")
	// ErrUnknownEvent is returned by Dispatch for unrecognized event types.
	ErrUnknownEvent = errors.New("remote: unknown event")
)

// Provider serves one page connection and builds at most one surface.
//
// Dispatch must be called from a single goroutine (the connection's read
// loop); surface callbacks run on that goroutine in event order.
type Provider struct {
	sender Sender
	logger *slog.Logger

	mu      sync.Mutex
	pending *Surface
	initCh  chan error
	surface *Surface
}

// NewProvider creates a Provider that sends commands through sender.
func NewProvider(sender Sender, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{sender: sender, logger: logger}
}

// InitSurface sends the init command and waits for the page to answer
// ready or init_failed.
func (p *Provider) InitSurface(ctx context.Context, cfg domain.SurfaceConfig) (ports.Surface, error) {
	p.mu.Lock()
	if p.surface != nil || p.pending != nil {
		p.mu.Unlock()
		return nil, ErrSurfaceExists
	}
	s := newSurface(p.sender, p.logger, cfg.View.Center)
	initCh := make(chan error, 1)
	p.pending = s
	p.initCh = initCh
	p.mu.Unlock()

	if err := p.sender.Send(Command{Type: CmdInit, Config: &cfg}); err != nil {
		p.abandon(s)
		return nil, fmt.Errorf("send init: %w", err)
	}

	select {
	case <-ctx.Done():
		p.abandon(s)
		return nil, ctx.Err()
	case err := <-initCh:
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Surface returns the ready surface, if any.
func (p *Provider) Surface() (*Surface, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface, p.surface != nil
}

// Dispatch applies one event from the page.
func (p *Provider) Dispatch(ev Event) error {
	switch ev.Type {
	case EvtReady, EvtInitFailed:
		p.answerInit(ev)
		return nil

	case EvtSettle, EvtCenterChanged, EvtMarkerClick:
		surface, ok := p.Surface()
		if !ok {
			p.logger.Debug("event before ready ignored", "type", ev.Type)
			return nil
		}
		surface.dispatch(ev)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}

func (p *Provider) answerInit(ev Event) {
	p.mu.Lock()
	s, initCh := p.pending, p.initCh
	p.pending, p.initCh = nil, nil
	if s == nil {
		p.mu.Unlock()
		p.logger.Warn("init answer without pending init", "type", ev.Type)
		return
	}

	var result error
	if ev.Type == EvtReady {
		s.update(ev)
		p.surface = s
	} else {
		result = fmt.Errorf("%w: %s", ErrInitRejected, ev.Error)
	}
	p.mu.Unlock()

	initCh <- result
}

// abandon drops s after InitSurface gave up on it.
func (p *Provider) abandon(s *Surface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == s {
		p.pending, p.initCh = nil, nil
	}
	if p.surface == s {
		p.surface = nil
	}
}
