package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/citylink/citylink_core/internal/cache"
	"github.com/citylink/citylink_core/internal/db"
	"github.com/citylink/citylink_core/internal/graph"
	"github.com/citylink/citylink_core/internal/models"
	"github.com/citylink/citylink_core/internal/routing"
)

// Polyline is one candidate route geometry from the maps provider, with
// the provider's per-segment road metrics
type Polyline struct {
	Waypoints []models.Waypoint      `json:"waypoints"`
	Segments  []models.SegmentMetric `json:"segments"`
}

// PlanRequest is the route-planning request body. The surrounding system
// queries the maps provider and forwards the alternative polylines here.
type PlanRequest struct {
	Origin       models.GeoPoint `json:"origin"`
	Destination  models.GeoPoint `json:"destination"`
	K            int             `json:"k"`
	Alternatives []Polyline      `json:"alternatives"`
}

// PlanResponse carries the ranked candidates for AI re-ranking and
// admin review
type PlanResponse struct {
	Candidates []models.RouteCandidate `json:"candidates"`
	Total      int                     `json:"total"`
}

// PlanRoutes handles POST /v2/routes/plan: merges the candidate
// polylines into one graph and returns the best and alternate paths
func PlanRoutes(c *fiber.Ctx) error {
	var req PlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}

	if len(req.Alternatives) == 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "at least one alternative polyline is required",
		})
	}

	k := req.K
	if k < 1 {
		k = 3
	}
	if k > 10 {
		k = 10
	}

	candidates, err := computePlan(c.Context(), &req, k)
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrInvalidInput):
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, routing.ErrNoPath):
			return c.Status(404).JSON(fiber.Map{
				"error": "no path found between the specified locations",
			})
		default:
			log.Printf("Plan computation failed: %v", err)
			return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
		}
	}

	return c.JSON(PlanResponse{
		Candidates: candidates,
		Total:      len(candidates),
	})
}

// computePlan builds the merged graph and runs the k-shortest-path
// search, with Redis caching around the pure computation
func computePlan(ctx context.Context, req *PlanRequest, k int) ([]models.RouteCandidate, error) {
	cacheKey := cache.PlanKey(req.Origin.Lat, req.Origin.Lng, req.Destination.Lat, req.Destination.Lng, k)
	lockKey := cache.LockKey(cacheKey)

	if cached, err := cache.GetCandidates(ctx, cacheKey); err == nil && cached != nil {
		return cached, nil
	}

	acquired, err := cache.AcquireLock(ctx, lockKey, 5*time.Second)
	if err != nil {
		log.Printf("Failed to acquire lock: %v", err)
		// Continue without lock (degrade gracefully)
	} else if !acquired {
		// Another request is computing this plan, wait for it
		if cached, err := cache.WaitForLock(ctx, cacheKey, 3*time.Second); err == nil && cached != nil {
			return cached, nil
		}
		// If waiting failed, compute anyway
	}

	defer func() {
		if acquired {
			cache.ReleaseLock(ctx, lockKey)
		}
	}()

	g := graph.New()
	for _, alt := range req.Alternatives {
		if err := g.AddPath(alt.Waypoints, alt.Segments); err != nil {
			return nil, err
		}
	}

	source, err := resolveNode(g, req.Origin, req.Alternatives[0].Waypoints[0])
	if err != nil {
		return nil, err
	}
	lastWP := req.Alternatives[0].Waypoints[len(req.Alternatives[0].Waypoints)-1]
	dest, err := resolveNode(g, req.Destination, lastWP)
	if err != nil {
		return nil, err
	}

	candidates, err := routing.KShortestPaths(g, source, dest, k)
	if err != nil {
		return nil, err
	}

	if err := cache.SetCandidates(ctx, cacheKey, candidates, 10*time.Minute); err != nil {
		log.Printf("Failed to cache plan: %v", err)
	}

	return candidates, nil
}

// resolveNode maps a query point onto the graph: the exact coordinate
// bucket when the point is a waypoint, otherwise the polyline endpoint
// the maps provider snapped it to
func resolveNode(g *graph.RouteGraph, p models.GeoPoint, fallback models.Waypoint) (int64, error) {
	if id, ok := g.NodeID(p.Lat, p.Lng); ok {
		return id, nil
	}
	if id, ok := g.NodeID(fallback.Lat, fallback.Lng); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: point (%.6f, %.6f) is not on any polyline",
		routing.ErrNoPath, p.Lat, p.Lng)
}

// Health handles the /health endpoint
func Health(c *fiber.Ctx) error {
	ctx := c.Context()

	dbErr := db.HealthCheck(ctx)
	dbStatus := "ok"
	if dbErr != nil {
		dbStatus = dbErr.Error()
	}

	redisErr := cache.HealthCheck(ctx)
	redisStatus := "ok"
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := 200
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = 503
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

// parseCoordinates parses a "lat,lng" string into floats
func parseCoordinates(coordStr string) (lat, lng float64, err error) {
	parts := strings.Split(coordStr, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected format: lat,lng")
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}

	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}

	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("longitude must be between -180 and 180")
	}

	return lat, lng, nil
}
