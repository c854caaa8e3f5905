package http

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// parsePoint parses "lat,lon".
func parsePoint(s string) (domain.GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.GeoPoint{}, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("invalid longitude %q", parts[1])
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, nil
}

// DistanceResponse is the body of GET /v1/distance.
type DistanceResponse struct {
	From   domain.GeoPoint `json:"from"`
	To     domain.GeoPoint `json:"to"`
	Meters float64         `json:"meters"`
}

// DistanceHandler returns the great-circle distance between two points.
func DistanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("from") == "" || c.Query("to") == "" {
			return errBadRequest(c, "from and to are required (lat,lon)")
		}
		from, err := parsePoint(c.Query("from"))
		if err != nil {
			return errBadRequest(c, "from: "+err.Error())
		}
		to, err := parsePoint(c.Query("to"))
		if err != nil {
			return errBadRequest(c, "to: "+err.Error())
		}

		meters, err := deps.Sessions.Distance(from, to)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("Cache-Control", "public, max-age=86400")
		return c.JSON(DistanceResponse{From: from, To: to, Meters: meters})
	}
}

// CreateSessionRequest is the body of POST /v1/sessions. Omitted fields
// take the server defaults.
type CreateSessionRequest struct {
	ID               string                `json:"id"`
	APIKey           string                `json:"api_key"`
	HostElementID    string                `json:"host_element_id"`
	CreateInitMarker *bool                 `json:"create_init_marker"`
	View             *domain.ViewOverrides `json:"view"`
	API              *domain.APIOptions    `json:"api"`
}

// CreateSessionHandler opens a headless session and waits until it is ready.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CreateSessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		opts := domain.InitOptions{
			APIKey:           req.APIKey,
			HostElementID:    req.HostElementID,
			CreateInitMarker: true,
			View:             req.View,
			API:              req.API,
		}
		if req.CreateInitMarker != nil {
			opts.CreateInitMarker = *req.CreateInitMarker
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), deps.initTimeout())
		defer cancel()

		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		if _, err := deps.Sessions.OpenWithID(ctx, req.ID, deps.Surfaces, opts); err != nil {
			LoggerFromCtx(c.UserContext()).Warn("open session failed", "error", err)
			return errFromDomain(c, err)
		}

		st, err := deps.Sessions.State(ctx, req.ID)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/sessions/" + req.ID)
		return c.Status(fiber.StatusCreated).JSON(st)
	}
}

// ListSessionsHandler returns the states of all live sessions.
func ListSessionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(paginate(c, deps.Sessions.List()))
	}
}

// GetSessionHandler returns the current state of a session.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := deps.Sessions.State(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(st)
	}
}

// DeleteSessionHandler closes a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

const maxMarkersPerRequest = 500

// ReplaceMarkersRequest is the body of POST /v1/sessions/:id/markers.
type ReplaceMarkersRequest struct {
	Markers   []domain.MarkerOptions `json:"markers"`
	FitBounds bool                   `json:"fit_bounds"`
}

// ReplaceMarkersHandler swaps every marker of a session for a new set.
func ReplaceMarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ReplaceMarkersRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Markers) > maxMarkersPerRequest {
			return errBadRequest(c, fmt.Sprintf("too many markers (max %d)", maxMarkersPerRequest))
		}

		id := c.Params("id")
		if _, err := deps.Sessions.ReplaceMarkers(c.UserContext(), id, req.Markers, req.FitBounds); err != nil {
			return errFromDomain(c, err)
		}
		st, err := deps.Sessions.State(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(st)
	}
}

// AppendMarkerRequest is the body of POST /v1/sessions/:id/markers/append.
type AppendMarkerRequest struct {
	Marker    domain.MarkerOptions `json:"marker"`
	FitBounds bool                 `json:"fit_bounds"`
}

// AppendMarkerHandler adds one marker to a session.
func AppendMarkerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req AppendMarkerRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		m, err := deps.Sessions.AddMarker(c.Params("id"), req.Marker, req.FitBounds)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	}
}

// ClearMarkersHandler removes every marker from a session.
func ClearMarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.ClearMarkers(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ViewRequest is the body of POST /v1/sessions/:id/view.
type ViewRequest struct {
	Center *domain.GeoPoint `json:"center"`
	Zoom   *int             `json:"zoom"`
}

// ViewHandler pans and/or zooms a headless session. The new state is
// published once the surface settles.
func ViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ViewRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Center == nil && req.Zoom == nil {
			return errBadRequest(c, "center or zoom is required")
		}

		if err := deps.Sessions.Navigate(c.Params("id"), req.Center, req.Zoom); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusAccepted)
	}
}
