package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/citylink/citylink_core/internal/db"
	"github.com/citylink/citylink_core/internal/fare"
	"github.com/citylink/citylink_core/internal/models"
	"github.com/citylink/citylink_core/internal/schedule"
)

// CommitRouteRequest creates a persisted route from a chosen candidate's
// geometry
type CommitRouteRequest struct {
	Name                 string            `json:"name"`
	Waypoints            []models.Waypoint `json:"waypoints"`
	TotalDistanceKm      float64           `json:"total_distance_km"`
	EstimatedDurationMin int               `json:"estimated_duration_min"`
	NumStops             int               `json:"num_stops"`
}

// CommitRoute handles POST /v2/routes/commit: persists an admin-chosen
// route candidate with derived intermediate stops
func CommitRoute(c *fiber.Ctx) error {
	var req CommitRouteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}

	if len(req.Waypoints) < 2 {
		return c.Status(400).JSON(fiber.Map{
			"error": "at least 2 waypoints are required",
		})
	}
	if req.EstimatedDurationMin <= 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "estimated_duration_min must be positive",
		})
	}

	numStops := req.NumStops
	if numStops < 1 {
		numStops = 10
	}

	route := models.Route{
		RouteID:              fmt.Sprintf("RT-%s", uuid.NewString()[:8]),
		Name:                 req.Name,
		Waypoints:            req.Waypoints,
		IntermediateStops:    schedule.DeriveStops(req.Waypoints, req.EstimatedDurationMin, numStops),
		TotalDistanceKm:      req.TotalDistanceKm,
		EstimatedDurationMin: req.EstimatedDurationMin,
		Status:               "active",
	}

	pool, err := db.GetDB()
	if err != nil {
		log.Printf("Database error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	waypointsJSON, _ := json.Marshal(route.Waypoints)
	stopsJSON, _ := json.Marshal(route.IntermediateStops)

	_, err = pool.Exec(c.Context(), `
		INSERT INTO route (route_id, name, waypoints, intermediate_stops, total_distance_km, estimated_duration_min, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, route.RouteID, route.Name, waypointsJSON, stopsJSON,
		route.TotalDistanceKm, route.EstimatedDurationMin, route.Status)
	if err != nil {
		log.Printf("Failed to insert route: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(201).JSON(route)
}

// RoutesList handles GET /v2/routes/list
func RoutesList(c *fiber.Ctx) error {
	pool, err := db.GetDB()
	if err != nil {
		log.Printf("Database error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	routes, err := loadActiveRoutes(c.Context(), pool)
	if err != nil {
		log.Printf("Failed to load routes: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"routes": routes,
		"total":  len(routes),
	})
}

// FareRequest is the fare calculation request body
type FareRequest struct {
	DistanceKm float64 `json:"distance_km"`
	IsPeakHour *bool   `json:"is_peak_hour"`
}

// CalculateFare handles POST /v2/fare/calculate. When is_peak_hour is
// omitted the current wall-clock time decides.
func CalculateFare(c *fiber.Ctx) error {
	var req FareRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}

	isPeak := fare.IsPeakHour(nowFunc(), fare.DefaultPeakWindows())
	if req.IsPeakHour != nil {
		isPeak = *req.IsPeakHour
	}

	cfg := loadFareConfig(c.Context())

	breakdown, err := fare.CalculateBreakdown(req.DistanceKm, isPeak, cfg)
	if err != nil {
		if errors.Is(err, fare.ErrNoMatchingSlab) {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("Fare calculation failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(breakdown)
}

// RouteFare handles GET /v2/fare/route/:id
func RouteFare(c *fiber.Ctx) error {
	routeID := c.Params("id")
	isPeak, _ := strconv.ParseBool(c.Query("is_peak_hour", "false"))

	pool, err := db.GetDB()
	if err != nil {
		log.Printf("Database error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	route, err := loadRoute(c.Context(), pool, routeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(404).JSON(fiber.Map{"error": "route not found"})
		}
		log.Printf("Failed to load route %s: %v", routeID, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	breakdown, err := fare.CalculateBreakdown(route.TotalDistanceKm, isPeak, loadFareConfig(c.Context()))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(breakdown)
}

// GenerateScheduleRequest deploys buses onto a route
type GenerateScheduleRequest struct {
	RouteID      string                 `json:"route_id"`
	NumBuses     int                    `json:"num_buses"`
	FrequencyMin int                    `json:"frequency_min"`
	PeakHour     bool                   `json:"peak_hour"`
	Window       models.OperatingWindow `json:"operating_window"`
}

// GenerateSchedule handles POST /v2/schedules/generate: produces the
// deterministic per-bus timetable and persists it, replacing any prior
// plan for the route
func GenerateSchedule(c *fiber.Ctx) error {
	var req GenerateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}

	if req.Window.Start == "" {
		req.Window = models.OperatingWindow{Start: "06:00", End: "22:00"}
	}

	pool, err := db.GetDB()
	if err != nil {
		log.Printf("Database error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	route, err := loadRoute(c.Context(), pool, req.RouteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(404).JSON(fiber.Map{"error": "route not found"})
		}
		log.Printf("Failed to load route %s: %v", req.RouteID, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	plan, err := schedule.Generate(route, req.NumBuses, req.FrequencyMin, req.PeakHour, req.Window)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidParams) {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("Schedule generation failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	planJSON, _ := json.Marshal(plan)
	_, err = pool.Exec(c.Context(), `
		INSERT INTO schedule_plan (route_id, plan)
		VALUES ($1, $2)
		ON CONFLICT (route_id) DO UPDATE SET plan = EXCLUDED.plan, updated_at = NOW()
	`, plan.RouteID, planJSON)
	if err != nil {
		log.Printf("Failed to persist schedule plan: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"plan":   plan,
		"matrix": schedule.BuildMatrix(plan),
	})
}

// ScheduleMatrix handles GET /v2/routes/:id/schedule-matrix
func ScheduleMatrix(c *fiber.Ctx) error {
	routeID := c.Params("id")

	pool, err := db.GetDB()
	if err != nil {
		log.Printf("Database error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	plan, err := loadSchedulePlan(c.Context(), pool, routeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(404).JSON(fiber.Map{"error": "no schedule for route"})
		}
		log.Printf("Failed to load schedule plan for %s: %v", routeID, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(schedule.BuildMatrix(plan))
}

// loadRoute reads one route row, decoding its JSONB geometry
func loadRoute(ctx context.Context, pool queryer, routeID string) (models.Route, error) {
	var (
		route         models.Route
		waypointsJSON []byte
		stopsJSON     []byte
	)

	err := pool.QueryRow(ctx, `
		SELECT route_id, name, waypoints, intermediate_stops, total_distance_km, estimated_duration_min, status
		FROM route
		WHERE route_id = $1
	`, routeID).Scan(&route.RouteID, &route.Name, &waypointsJSON, &stopsJSON,
		&route.TotalDistanceKm, &route.EstimatedDurationMin, &route.Status)
	if err != nil {
		return models.Route{}, err
	}

	if err := json.Unmarshal(waypointsJSON, &route.Waypoints); err != nil {
		return models.Route{}, fmt.Errorf("corrupt waypoints for route %s: %w", routeID, err)
	}
	if err := json.Unmarshal(stopsJSON, &route.IntermediateStops); err != nil {
		return models.Route{}, fmt.Errorf("corrupt stops for route %s: %w", routeID, err)
	}

	return route, nil
}

// loadActiveRoutes reads all deployable routes
func loadActiveRoutes(ctx context.Context, pool queryer) ([]models.Route, error) {
	rows, err := pool.Query(ctx, `
		SELECT route_id, name, waypoints, intermediate_stops, total_distance_km, estimated_duration_min, status
		FROM route
		WHERE status = 'active'
		ORDER BY route_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	routes := []models.Route{}
	for rows.Next() {
		var (
			route         models.Route
			waypointsJSON []byte
			stopsJSON     []byte
		)
		if err := rows.Scan(&route.RouteID, &route.Name, &waypointsJSON, &stopsJSON,
			&route.TotalDistanceKm, &route.EstimatedDurationMin, &route.Status); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}
		if err := json.Unmarshal(waypointsJSON, &route.Waypoints); err != nil {
			log.Printf("Corrupt waypoints for route %s: %v", route.RouteID, err)
			continue
		}
		if err := json.Unmarshal(stopsJSON, &route.IntermediateStops); err != nil {
			log.Printf("Corrupt stops for route %s: %v", route.RouteID, err)
			continue
		}
		routes = append(routes, route)
	}

	return routes, nil
}

// loadSchedulePlan reads one route's persisted timetable
func loadSchedulePlan(ctx context.Context, pool queryer, routeID string) (*schedule.Plan, error) {
	var planJSON []byte
	err := pool.QueryRow(ctx, `
		SELECT plan FROM schedule_plan WHERE route_id = $1
	`, routeID).Scan(&planJSON)
	if err != nil {
		return nil, err
	}

	var plan schedule.Plan
	if err := json.Unmarshal(planJSON, &plan); err != nil {
		return nil, fmt.Errorf("corrupt schedule plan for route %s: %w", routeID, err)
	}

	return &plan, nil
}

// loadFareConfig reads the fare table, falling back to the default
// Bhopal config when none is seeded
func loadFareConfig(ctx context.Context) models.FareConfig {
	pool, err := db.GetDB()
	if err != nil {
		return fare.DefaultConfig()
	}

	rows, err := pool.Query(ctx, `
		SELECT up_to_km, base_fare_inr FROM fare_slab ORDER BY up_to_km
	`)
	if err != nil {
		return fare.DefaultConfig()
	}
	defer rows.Close()

	var slabs []models.FareSlab
	for rows.Next() {
		var slab models.FareSlab
		if err := rows.Scan(&slab.UpToKm, &slab.BaseFareINR); err != nil {
			continue
		}
		slabs = append(slabs, slab)
	}
	if len(slabs) == 0 {
		return fare.DefaultConfig()
	}

	multiplier := 1.2
	if err := pool.QueryRow(ctx, `SELECT peak_multiplier FROM fare_config LIMIT 1`).Scan(&multiplier); err != nil {
		multiplier = 1.2
	}

	return models.FareConfig{Slabs: slabs, PeakMultiplier: multiplier}
}
