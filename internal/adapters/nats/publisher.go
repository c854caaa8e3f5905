package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// Subjects and streams.
const (
	StateStream       = "SESSION_STATE"
	StateSubjectAll   = "pinmap.session.*.state"
	ClickStream       = "MARKER_CLICKS"
	ClickSubjectAll   = "pinmap.marker.*.clicked"
	stateSubjectFmt   = "pinmap.session.%s.state"
	clickSubjectFmt   = "pinmap.marker.%s.clicked"
	stateStreamMaxAge = 24 * time.Hour
	clickStreamMaxAge = 1 * time.Hour
)

// StateSubject is the subject session id publishes its state on.
func StateSubject(sessionID string) string {
	return fmt.Sprintf(stateSubjectFmt, sessionID)
}

// ClickSubject is the subject marker clicks of session id are published on.
func ClickSubject(sessionID string) string {
	return fmt.Sprintf(clickSubjectFmt, sessionID)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			// Only the latest state of each session is worth keeping.
			Name:              StateStream,
			Subjects:          []string{StateSubjectAll},
			Retention:         nats.LimitsPolicy,
			MaxMsgsPerSubject: 1,
			MaxAge:            stateStreamMaxAge,
			Storage:           nats.FileStorage,
		},
		{
			Name:      ClickStream,
			Subjects:  []string{ClickSubjectAll},
			Retention: nats.InterestPolicy,
			MaxAge:    clickStreamMaxAge,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishState(ctx context.Context, state domain.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(StateSubject(state.SessionID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishMarkerClick(ctx context.Context, click domain.MarkerClick) error {
	data, err := json.Marshal(click)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ClickSubject(click.SessionID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
