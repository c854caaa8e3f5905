// Package remote implements a map provider whose surface lives in a
// browser. The server drives it with JSON commands and mirrors its view
// from the events the page sends back.
package remote

import (
	"github.com/samirrijal/pinmap/internal/core/domain"
)

// Command types sent to the page.
const (
	CmdInit           = "init"
	CmdCreateMarker   = "create_marker"
	CmdMarkerPosition = "marker_position"
	CmdMarkerAttach   = "marker_attach"
	CmdMarkerDetach   = "marker_detach"
	CmdFitBounds      = "fit_bounds"
)

// Event types received from the page.
const (
	EvtReady         = "ready"
	EvtInitFailed    = "init_failed"
	EvtSettle        = "settle"
	EvtCenterChanged = "center_changed"
	EvtMarkerClick   = "marker_click"
)

// Command is one server-to-page message.
type Command struct {
	Type     string                 `json:"type"`
	Config   *domain.SurfaceConfig  `json:"config,omitempty"`
	MarkerID string                 `json:"marker_id,omitempty"`
	Marker   *domain.MarkerOptions  `json:"marker,omitempty"`
	Position *domain.GeoPoint       `json:"position,omitempty"`
	Bounds   *domain.ViewportBounds `json:"bounds,omitempty"`
}

// Event is one page-to-server message. Center and Bounds carry the view
// as the page sees it after the event.
type Event struct {
	Type     string                 `json:"type"`
	Center   *domain.GeoPoint       `json:"center,omitempty"`
	Bounds   *domain.ViewportBounds `json:"bounds,omitempty"`
	MarkerID string                 `json:"marker_id,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Sender delivers commands to the page.
type Sender interface {
	Send(cmd Command) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(cmd Command) error

func (f SenderFunc) Send(cmd Command) error { return f(cmd) }
