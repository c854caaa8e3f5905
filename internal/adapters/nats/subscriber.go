package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// Subscriber reads session events back from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber on an existing connection.
func NewSubscriber(conn *nats.Conn) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeStates delivers the latest state of every matching session and
// then each new one. sessionID "" means all sessions. The returned
// subscription belongs to the caller.
func (s *Subscriber) SubscribeStates(ctx context.Context, sessionID string, handler func(ctx context.Context, st domain.SessionState)) (*nats.Subscription, error) {
	subject := StateSubjectAll
	if sessionID != "" {
		if err := domain.ValidateSessionID(sessionID); err != nil {
			return nil, err
		}
		subject = StateSubject(sessionID)
	}
	return s.js.Subscribe(subject, func(msg *nats.Msg) {
		var st domain.SessionState
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			return
		}
		handler(ctx, st)
	},
		nats.OrderedConsumer(),
		nats.DeliverLastPerSubject(),
	)
}

// SubscribeMarkerClicks hands every click to handler through a durable
// consumer; a failing handler gets the click redelivered.
func (s *Subscriber) SubscribeMarkerClicks(ctx context.Context, durable string, handler func(ctx context.Context, click domain.MarkerClick) error) error {
	sub, err := s.js.Subscribe(ClickSubjectAll, func(msg *nats.Msg) {
		var click domain.MarkerClick
		if err := json.Unmarshal(msg.Data, &click); err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, click); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes the durable consumers. The connection stays open.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}
