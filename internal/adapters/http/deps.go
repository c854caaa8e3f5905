package http

import (
	"time"

	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/pinmap/internal/adapters/nats"
	"github.com/samirrijal/pinmap/internal/adapters/valkey"
	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionService
	// Headless provider backing sessions created over REST.
	Surfaces    ports.MapProvider
	InitTimeout time.Duration
	NATS        *nats.Conn
	States      *natsadapter.Subscriber
	Store       *valkey.StateStore
}

func (d *Dependencies) initTimeout() time.Duration {
	if d.InitTimeout <= 0 {
		return 30 * time.Second
	}
	return d.InitTimeout
}
