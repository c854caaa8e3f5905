package ports

import (
	"context"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishState(ctx context.Context, state domain.SessionState) error
	PublishMarkerClick(ctx context.Context, click domain.MarkerClick) error
}

// StateStore keeps the last published state of each session.
type StateStore interface {
	SaveState(ctx context.Context, state domain.SessionState) error
	LoadState(ctx context.Context, sessionID string) (*domain.SessionState, error)
	DeleteState(ctx context.Context, sessionID string) error
}
