package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_topology/internal/graph"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/models"
)

const (
	defaultLimit  = 100
	maxLimit      = 1000
	defaultRadius = 500
	maxRadius     = 50000
)

// HealthCheck reports the state of one dependency
type HealthCheck func(ctx context.Context) error

// Handlers serves the loaded topology over HTTP
type Handlers struct {
	graph   *graph.InMemoryGraph
	exports ExportCache
	checks  map[string]HealthCheck
	now     func() time.Time
}

// NewHandlers creates handlers over g. exports may be nil.
func NewHandlers(g *graph.InMemoryGraph, exports ExportCache, checks map[string]HealthCheck) *Handlers {
	if checks == nil {
		checks = make(map[string]HealthCheck)
	}
	return &Handlers{
		graph:   g,
		exports: exports,
		checks:  checks,
		now:     time.Now,
	}
}

// StationResponse is a station with its outgoing connections
type StationResponse struct {
	Station    models.Station     `json:"station"`
	Neighbours []models.Neighbour `json:"neighbours"`
}

// ServingResponse is one stop of a route
type ServingResponse struct {
	Sequence   int            `json:"sequence"`
	IsTerminus bool           `json:"is_terminus"`
	Station    models.Station `json:"station"`
}

// RouteServingsResponse is a route with its ordered stops
type RouteServingsResponse struct {
	Route    models.Route      `json:"route"`
	Servings []ServingResponse `json:"servings"`
}

// Health handles GET /health
func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx := c.Context()

	checks := fiber.Map{}
	healthy := true

	topologyStatus := "ok"
	if !h.graph.IsLoaded() {
		topologyStatus = "not loaded"
		healthy = false
	}
	checks["topology"] = topologyStatus

	for name, check := range h.checks {
		status := "ok"
		if err := check(ctx); err != nil {
			status = err.Error()
			healthy = false
		}
		checks[name] = status
	}

	status := "healthy"
	httpStatus := fiber.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	response := fiber.Map{
		"status": status,
		"checks": checks,
	}
	if h.graph.IsLoaded() {
		response["version"] = h.graph.Version()
		response["loaded_at"] = h.graph.LoadedAt().UTC().Format(time.RFC3339)
	}

	return c.Status(httpStatus).JSON(response)
}

// Stations handles GET /v1/stations
// Query params:
//   - near: lat,lon to search around (optional)
//   - radius: search radius in metres (default 500, max 50000)
//   - type: transport type filter (optional)
//   - limit: max results (default 100, max 1000)
func (h *Handlers) Stations(c *fiber.Ctx) error {
	if !h.graph.IsLoaded() {
		return notLoaded(c)
	}

	limit, err := parseLimit(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	typeFilter := models.TransportType(c.Query("type"))

	if near := c.Query("near"); near != "" {
		lat, lon, err := parseCoordinates(near)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("invalid 'near' coordinates: %v", err),
			})
		}

		radius := c.QueryInt("radius", defaultRadius)
		if radius <= 0 || radius > maxRadius {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("radius must be between 1 and %d", maxRadius),
			})
		}

		nearby := h.graph.FindNearestStations(lat, lon, radius, maxLimit)
		results := make([]models.NearbyStation, 0, len(nearby))
		for _, n := range nearby {
			if typeFilter != "" && !hasType(n.Station.Types, typeFilter) {
				continue
			}
			results = append(results, n)
			if len(results) == limit {
				break
			}
		}

		return c.JSON(fiber.Map{
			"stations": results,
			"count":    len(results),
		})
	}

	stations := make([]models.Station, 0)
	for _, s := range h.graph.Topology().Stations {
		if typeFilter != "" && !hasType(s.Types, typeFilter) {
			continue
		}
		stations = append(stations, s)
		if len(stations) == limit {
			break
		}
	}

	return c.JSON(fiber.Map{
		"stations": stations,
		"count":    len(stations),
	})
}

// Station handles GET /v1/stations/:id
func (h *Handlers) Station(c *fiber.Ctx) error {
	if !h.graph.IsLoaded() {
		return notLoaded(c)
	}

	id := c.Params("id")
	station, ok := h.graph.Station(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("station %s not found", id),
		})
	}

	neighbours := h.graph.Neighbours(id)
	if neighbours == nil {
		neighbours = []models.Neighbour{}
	}

	return c.JSON(StationResponse{
		Station:    station,
		Neighbours: neighbours,
	})
}

// Connections handles GET /v1/connections
func (h *Handlers) Connections(c *fiber.Ctx) error {
	if !h.graph.IsLoaded() {
		return notLoaded(c)
	}

	t := h.graph.Topology()
	connections := t.Connections
	if connections == nil {
		connections = []models.Connection{}
	}

	return c.JSON(fiber.Map{
		"directed":    t.Directed,
		"connections": connections,
		"count":       len(connections),
	})
}

// Routes handles GET /v1/routes
// Query params:
//   - transport_type: filter by inferred mode (optional)
func (h *Handlers) Routes(c *fiber.Ctx) error {
	if !h.graph.IsLoaded() {
		return notLoaded(c)
	}

	modeFilter := models.TransportType(c.Query("transport_type"))

	routes := make([]models.Route, 0)
	for _, r := range h.graph.Topology().Routes {
		if modeFilter != "" && r.TransportType != modeFilter {
			continue
		}
		routes = append(routes, r)
	}

	return c.JSON(fiber.Map{
		"routes": routes,
		"count":  len(routes),
	})
}

// RouteServings handles GET /v1/routes/:id/servings
func (h *Handlers) RouteServings(c *fiber.Ctx) error {
	if !h.graph.IsLoaded() {
		return notLoaded(c)
	}

	id := c.Params("id")
	route, ok := h.graph.Route(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("route %s not found", id),
		})
	}

	servings := h.graph.Servings(id)
	stops := make([]ServingResponse, 0, len(servings))
	for _, sv := range servings {
		station, ok := h.graph.Station(sv.StationID)
		if !ok {
			logger.Warn("Serving references unknown station", "route", id, "station", sv.StationID)
			continue
		}
		stops = append(stops, ServingResponse{
			Sequence:   sv.Sequence,
			IsTerminus: sv.IsTerminus,
			Station:    station,
		})
	}

	return c.JSON(RouteServingsResponse{
		Route:    route,
		Servings: stops,
	})
}

// Path handles GET /v1/path?from=&to=
func (h *Handlers) Path(c *fiber.Ctx) error {
	if !h.graph.IsLoaded() {
		return notLoaded(c)
	}

	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing required parameters: from and to",
		})
	}

	path, err := h.graph.ShortestPath(c.Context(), from, to)
	switch {
	case errors.Is(err, graph.ErrStationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, graph.ErrNoPath):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no path found between the specified stations",
		})
	case err != nil:
		logger.Error("Path search failed", "from", from, "to", to, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "path search failed",
		})
	}

	return c.JSON(path)
}

func notLoaded(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "topology not loaded",
	})
}

func parseLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

func hasType(types []models.TransportType, want models.TransportType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// parseCoordinates parses "lat,lon" format
func parseCoordinates(coordStr string) (lat, lon float64, err error) {
	parts := strings.Split(coordStr, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected format: lat,lon")
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}

	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}

	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude must be between -180 and 180")
	}

	return lat, lon, nil
}
