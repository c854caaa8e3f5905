package domain

import (
	"fmt"
	"regexp"
	"time"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateSessionID checks that id is 1 to 64 letters, digits, '-' or '_'.
// Ids are used verbatim as NATS subject tokens and Valkey keys.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// SessionStatus is the lifecycle state of a map session.
type SessionStatus int

const (
	StatusUninitialized SessionStatus = iota
	StatusInitializing
	StatusReady
)

func (s SessionStatus) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// MarshalText renders the status as its lowercase name in JSON.
func (s SessionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the name produced by MarshalText.
func (s *SessionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ready":
		*s = StatusReady
	case "initializing":
		*s = StatusInitializing
	default:
		*s = StatusUninitialized
	}
	return nil
}

// Marker is a snapshot of a pin currently tracked by a session.
type Marker struct {
	ID       string   `json:"id"` // provider handle id
	Position GeoPoint `json:"position"`
	Title    string   `json:"title"`
	Label    string   `json:"label"`
}

// MarkerLabel is the text drawn next to a marker.
type MarkerLabel struct {
	Text       string `json:"text"`
	Color      string `json:"color,omitempty"`
	FontSize   string `json:"font_size,omitempty"`
	FontWeight string `json:"font_weight,omitempty"`
	FontFamily string `json:"font_family,omitempty"`
}

// Pixel is a screen offset relative to the icon's top-left corner.
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MarkerIcon describes the marker image.
type MarkerIcon struct {
	URL         string `json:"url"`
	Size        int    `json:"size"` // square, in pixels
	Anchor      Pixel  `json:"anchor"`
	LabelOrigin Pixel  `json:"label_origin"`
}

// MarkerOptions are the caller-supplied attributes of a new marker. Zero
// fields fall back to DefaultMarkerOptions.
type MarkerOptions struct {
	Position  *GeoPoint    `json:"position,omitempty"`
	Title     string       `json:"title,omitempty"`
	Label     *MarkerLabel `json:"label,omitempty"`
	Icon      *MarkerIcon  `json:"icon,omitempty"`
	Animation string       `json:"animation,omitempty"`
}

// SessionState is the derived, presentation-facing view of a session.
// Instances are immutable once published.
type SessionState struct {
	SessionID            string          `json:"session_id"`
	Status               SessionStatus   `json:"status"`
	Center               GeoPoint        `json:"center"`
	ViewportWidthMeters  float64         `json:"viewport_width_meters"`
	ViewportHeightMeters float64         `json:"viewport_height_meters"`
	Bounds               *ViewportBounds `json:"bounds,omitempty"`
	Markers              []Marker        `json:"markers"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// MarkerClick is emitted when a user clicks a marker on a live surface.
type MarkerClick struct {
	SessionID string    `json:"session_id"`
	Marker    Marker    `json:"marker"`
	Time      time.Time `json:"time"`
}
