package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/pinmap/internal/adapters/remote"
	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

const pingInterval = 30 * time.Second

// wsMessage is sent from client to subscribe/unsubscribe to session states.
type wsMessage struct {
	Action    string `json:"action"`     // "subscribe" | "unsubscribe"
	SessionID string `json:"session_id"` // "" = all sessions
}

// wsConn serializes writes to a websocket connection.
type wsConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func (w *wsConn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteMessage(websocket.PingMessage, nil)
}

func (w *wsConn) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.Close()
}

// keepAlive pings until done is closed or a write fails.
func (w *wsConn) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// StateRelayHandler relays session states from NATS to the client.
// Clients send JSON: {"action":"subscribe","session_id":"abc"}
// An empty session_id means all sessions. Every subscription starts with
// the latest known state of each matching session.
func StateRelayHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		w := &wsConn{c: c}

		if deps.States == nil {
			_ = w.writeJSON(fiber.Map{"error": "state relay not configured"})
			return
		}

		metrics.ActiveWebSockets.WithLabelValues("state").Inc()
		defer metrics.ActiveWebSockets.WithLabelValues("state").Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws state client connected", "remote", remoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		relay := func(_ context.Context, st domain.SessionState) {
			_ = w.writeJSON(st)
		}

		subs := make(map[string]*nats.Subscription) // session id -> subscription

		subscribe := func(sessionID string) error {
			sub, err := deps.States.SubscribeStates(ctx, sessionID, relay)
			if err != nil {
				return err
			}
			subs[sessionID] = sub
			return nil
		}

		// Auto-subscribe to the session given in the URL, or to all
		if err := subscribe(c.Query("session_id")); err != nil {
			slog.Warn("ws default subscribe error", "error", err)
			return
		}

		done := make(chan struct{})
		go w.keepAlive(done)

		// Read client messages for subscribe/unsubscribe
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = w.writeJSON(fiber.Map{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[m.SessionID]; exists {
					_ = w.writeJSON(fiber.Map{"status": "already subscribed", "session_id": m.SessionID})
					continue
				}
				if err := subscribe(m.SessionID); err != nil {
					_ = w.writeJSON(fiber.Map{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = w.writeJSON(fiber.Map{"status": "subscribed", "session_id": m.SessionID})

			case "unsubscribe":
				if s, exists := subs[m.SessionID]; exists {
					_ = s.Unsubscribe()
					delete(subs, m.SessionID)
					_ = w.writeJSON(fiber.Map{"status": "unsubscribed", "session_id": m.SessionID})
				} else {
					_ = w.writeJSON(fiber.Map{"error": "not subscribed to " + m.SessionID})
				}

			default:
				_ = w.writeJSON(fiber.Map{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws state client disconnected", "remote", remoteAddr)
	}
}

// MapSocketHandler binds a browser-hosted map to session :id. The server
// sends remote.Command messages and the page answers with remote.Event
// messages. The session lives as long as the connection.
//
// Query parameters: api_key, element_id, init_marker (default true).
func MapSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		w := &wsConn{c: c}

		id := c.Params("id")
		logger := slog.Default().With("session_id", id)

		metrics.ActiveWebSockets.WithLabelValues("map").Inc()
		defer metrics.ActiveWebSockets.WithLabelValues("map").Dec()

		provider := remote.NewProvider(remote.SenderFunc(func(cmd remote.Command) error {
			return w.writeJSON(cmd)
		}), logger)

		opts := domain.InitOptions{
			APIKey:           c.Query("api_key"),
			HostElementID:    c.Query("element_id"),
			CreateInitMarker: c.Query("init_marker", "true") != "false",
		}

		ctx, cancel := context.WithTimeout(context.Background(), deps.initTimeout())
		defer cancel()

		opened := make(chan bool, 1)
		go func() {
			session, err := deps.Sessions.OpenWithID(ctx, id, provider, opts)
			if err != nil {
				logger.Warn("map socket init failed", "error", err)
				_ = w.writeJSON(fiber.Map{"type": "error", "error": err.Error()})
				w.close()
				opened <- false
				return
			}
			_ = w.writeJSON(fiber.Map{"type": "session_ready", "state": session.State()})
			opened <- true
		}()

		done := make(chan struct{})
		go w.keepAlive(done)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			var ev remote.Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				_ = w.writeJSON(fiber.Map{"type": "error", "error": "invalid JSON"})
				continue
			}
			if err := provider.Dispatch(ev); err != nil {
				_ = w.writeJSON(fiber.Map{"type": "error", "error": err.Error()})
			}
		}

		close(done)
		cancel()
		if <-opened {
			if err := deps.Sessions.Close(context.Background(), id); err != nil {
				logger.Warn("close session", "error", err)
			}
		}
		logger.Info("map socket disconnected")
	}
}
