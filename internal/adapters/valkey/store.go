package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// StateStore implements ports.StateStore using Valkey (Redis-compatible).
// Snapshots expire after ttl unless refreshed by a newer state.
type StateStore struct {
	client valkey.Client
	ttl    time.Duration
}

// New creates a new Valkey-backed state store.
func New(addr string, ttl time.Duration) (*StateStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &StateStore{client: client, ttl: ttl}, nil
}

func stateKey(sessionID string) string {
	return "session:" + sessionID + ":state"
}

// SaveState stores st as the latest snapshot of its session.
func (s *StateStore) SaveState(ctx context.Context, st domain.SessionState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	cmd := s.client.Do(ctx,
		s.client.B().Set().Key(stateKey(st.SessionID)).Value(string(data)).Ex(s.ttl).Build(),
	)
	return cmd.Error()
}

// LoadState returns the latest snapshot. A missing key yields
// domain.ErrSessionNotFound.
func (s *StateStore) LoadState(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	b, err := s.client.Do(ctx, s.client.B().Get().Key(stateKey(sessionID)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var st domain.SessionState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return &st, nil
}

// DeleteState removes a snapshot.
func (s *StateStore) DeleteState(ctx context.Context, sessionID string) error {
	cmd := s.client.Do(ctx, s.client.B().Del().Key(stateKey(sessionID)).Build())
	return cmd.Error()
}

// Ping checks connectivity.
func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (s *StateStore) Close() {
	s.client.Close()
}
