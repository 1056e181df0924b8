package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/citylink/citylink_core/internal/db"
	"github.com/citylink/citylink_core/internal/fare"
	"github.com/citylink/citylink_core/internal/middleware"
	"github.com/citylink/citylink_core/internal/models"
	"github.com/citylink/citylink_core/internal/trip"
)

var (
	tracker     *trip.Tracker
	trackerOnce sync.Once
)

// getTracker returns the process-wide trip tracker (singleton pattern).
// Route geometry is looked up from the database so leg distances follow
// the route instead of the straight line.
func getTracker() *trip.Tracker {
	trackerOnce.Do(func() {
		lookup := func(routeID string) (models.Route, bool) {
			pool, err := db.GetDB()
			if err != nil {
				return models.Route{}, false
			}
			route, err := loadRoute(context.Background(), pool, routeID)
			if err != nil {
				return models.Route{}, false
			}
			return route, true
		}

		tracker = trip.NewTracker(lookup, loadFareConfig(context.Background()), fare.DefaultPeakWindows())
	})
	return tracker
}

// requestUser pulls the authenticated identity set by the auth middleware
func requestUser(c *fiber.Ctx) (*middleware.UserContext, bool) {
	user, ok := c.Locals("user").(*middleware.UserContext)
	return user, ok
}

// Connections handles GET /v2/trips/connections?from=lat,lng&to=lat,lng:
// ranked direct and single-transfer itineraries over the deployed routes
func Connections(c *fiber.Ctx) error {
	fromLat, fromLng, err := parseCoordinates(c.Query("from"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'from' parameter: %v", err),
		})
	}
	toLat, toLng, err := parseCoordinates(c.Query("to"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid 'to' parameter: %v", err),
		})
	}

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

	schedules, err := loadLeadSchedules(c.Context(), pool)
	if err != nil {
		log.Printf("Failed to load schedules: %v", err)
		schedules = map[string]models.ScheduleEntry{}
	}

	resolver := trip.NewResolver(loadFareConfig(c.Context()), fare.DefaultPeakWindows())
	options, err := resolver.FindConnections(
		models.GeoPoint{Lat: fromLat, Lng: fromLng},
		models.GeoPoint{Lat: toLat, Lng: toLng},
		routes, schedules, nowFunc(),
	)
	if err != nil {
		log.Printf("Connection search failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{
		"options": options,
		"total":   len(options),
	})
}

// StartTripRequest boards a passenger onto a bus
type StartTripRequest struct {
	RouteID   string          `json:"route_id"`
	BusNumber string          `json:"bus_number"`
	Boarding  models.GeoPoint `json:"boarding"`
}

// StartTrip handles POST /v2/trips/start
func StartTrip(c *fiber.Ctx) error {
	user, ok := requestUser(c)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "authentication required"})
	}

	var req StartTripRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}
	if req.RouteID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "route_id is required"})
	}

	started, err := getTracker().StartTrip(user.UserID, req.RouteID, req.BusNumber, req.Boarding, nowFunc())
	if err != nil {
		if errors.Is(err, trip.ErrTripActive) {
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("Failed to start trip for %s: %v", user.UserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(201).JSON(started)
}

// SwitchRouteRequest moves the passenger onto a connecting bus
type SwitchRouteRequest struct {
	RouteID   string          `json:"route_id"`
	BusNumber string          `json:"bus_number"`
	Boarding  models.GeoPoint `json:"boarding"`
}

// SwitchRoute handles POST /v2/trips/switch: closes the current leg at
// the transfer point and continues the same trip on the new route
func SwitchRoute(c *fiber.Ctx) error {
	user, ok := requestUser(c)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "authentication required"})
	}

	var req SwitchRouteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}
	if req.RouteID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "route_id is required"})
	}

	switched, err := getTracker().SwitchRoute(user.UserID, req.RouteID, req.BusNumber, req.Boarding, nowFunc())
	if err != nil {
		if errors.Is(err, trip.ErrNoActiveTrip) {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("Failed to switch route for %s: %v", user.UserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(switched)
}

// CompleteTripRequest ends the trip at the alighting point
type CompleteTripRequest struct {
	Alighting models.GeoPoint `json:"alighting"`
}

// CompleteTrip handles POST /v2/trips/complete: finalizes the fare and
// archives the trip as travel history
func CompleteTrip(c *fiber.Ctx) error {
	user, ok := requestUser(c)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "authentication required"})
	}

	var req CompleteTripRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}

	completed, err := getTracker().CompleteTrip(user.UserID, req.Alighting, nowFunc())
	if err != nil {
		if errors.Is(err, trip.ErrNoActiveTrip) {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("Failed to complete trip for %s: %v", user.UserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	// A history write failure must not fail the completion itself
	if err := archiveTrip(c.Context(), completed); err != nil {
		log.Printf("Failed to archive trip %s: %v", completed.TripID, err)
	}

	return c.JSON(completed)
}

// ActiveTrip handles GET /v2/trips/active
func ActiveTrip(c *fiber.Ctx) error {
	user, ok := requestUser(c)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "authentication required"})
	}

	active, ok := getTracker().ActiveTrip(user.UserID)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "no active trip"})
	}

	return c.JSON(active)
}

// TripHistory handles GET /v2/trips/history
func TripHistory(c *fiber.Ctx) error {
	user, ok := requestUser(c)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "authentication required"})
	}

	pool, err := db.GetDB()
	if err != nil {
		log.Printf("Database error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	rows, err := pool.Query(c.Context(), `
		SELECT trip FROM travel_history
		WHERE passenger_id = $1
		ORDER BY completed_at DESC
		LIMIT 50
	`, user.UserID)
	if err != nil {
		log.Printf("Failed to load travel history: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
	defer rows.Close()

	trips := []models.Trip{}
	for rows.Next() {
		var tripJSON []byte
		if err := rows.Scan(&tripJSON); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}
		var t models.Trip
		if err := json.Unmarshal(tripJSON, &t); err != nil {
			log.Printf("Corrupt trip record: %v", err)
			continue
		}
		trips = append(trips, t)
	}

	return c.JSON(fiber.Map{
		"trips": trips,
		"total": len(trips),
	})
}

// archiveTrip persists a finalized trip to travel history
func archiveTrip(ctx context.Context, completed models.Trip) error {
	pool, err := db.GetDB()
	if err != nil {
		return err
	}

	tripJSON, err := json.Marshal(completed)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO travel_history (trip_id, passenger_id, total_fare_inr, completed_at, trip)
		VALUES ($1, $2, $3, $4, $5)
	`, completed.TripID, completed.PassengerID, completed.TotalFareINR, completed.CompletedAt, tripJSON)
	return err
}

// loadLeadSchedules maps each scheduled route to its lead bus timetable,
// which carries the route's public departure times
func loadLeadSchedules(ctx context.Context, pool queryer) (map[string]models.ScheduleEntry, error) {
	rows, err := pool.Query(ctx, `SELECT route_id, plan FROM schedule_plan`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make(map[string]models.ScheduleEntry)
	for rows.Next() {
		var (
			routeID  string
			planJSON []byte
		)
		if err := rows.Scan(&routeID, &planJSON); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}

		var plan struct {
			Entries []models.ScheduleEntry `json:"entries"`
		}
		if err := json.Unmarshal(planJSON, &plan); err != nil {
			log.Printf("Corrupt schedule plan for route %s: %v", routeID, err)
			continue
		}
		if len(plan.Entries) > 0 {
			schedules[routeID] = plan.Entries[0]
		}
	}

	return schedules, nil
}
