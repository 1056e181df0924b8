package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/citylink/citylink_core/internal/db"
	"github.com/citylink/citylink_core/internal/middleware"
	"github.com/citylink/citylink_core/internal/models"
	"github.com/citylink/citylink_core/internal/schedule"
)

// cityAvgSpeedKmh estimates route duration from road distance for the
// demo routes, which carry no provider metrics
const cityAvgSpeedKmh = 20.0

func main() {
	reset := flag.Bool("reset", false, "Drop and recreate all tables before seeding")
	issueTokens := flag.Bool("tokens", false, "Print demo JWTs for a passenger and an admin")
	flag.Parse()

	godotenv.Load()

	log.Println("Starting CityLink seed...")

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if *reset {
		log.Println("Dropping existing tables...")
		if err := dropTables(ctx, pool); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	log.Println("Step 1/3: Creating tables...")
	if err := createTables(ctx, pool); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("Step 2/3: Seeding fare configuration...")
	if err := seedFareConfig(ctx, pool); err != nil {
		log.Fatalf("Failed to seed fare config: %v", err)
	}

	log.Println("Step 3/3: Seeding demo routes...")
	if err := seedRoutes(ctx, pool); err != nil {
		log.Fatalf("Failed to seed routes: %v", err)
	}

	if *issueTokens {
		printDemoTokens()
	}

	log.Println("Seed completed successfully!")
}

func dropTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		DROP TABLE IF EXISTS travel_history;
		DROP TABLE IF EXISTS schedule_plan;
		DROP TABLE IF EXISTS fare_slab;
		DROP TABLE IF EXISTS fare_config;
		DROP TABLE IF EXISTS route;
	`)
	return err
}

func createTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS route (
			route_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			waypoints JSONB NOT NULL,
			intermediate_stops JSONB NOT NULL,
			total_distance_km DOUBLE PRECISION NOT NULL,
			estimated_duration_min INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS fare_slab (
			up_to_km DOUBLE PRECISION PRIMARY KEY,
			base_fare_inr DOUBLE PRECISION NOT NULL
		);

		CREATE TABLE IF NOT EXISTS fare_config (
			id SERIAL PRIMARY KEY,
			peak_multiplier DOUBLE PRECISION NOT NULL
		);

		CREATE TABLE IF NOT EXISTS schedule_plan (
			route_id TEXT PRIMARY KEY REFERENCES route(route_id),
			plan JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS travel_history (
			trip_id TEXT PRIMARY KEY,
			passenger_id TEXT NOT NULL,
			total_fare_inr DOUBLE PRECISION NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL,
			trip JSONB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_travel_history_passenger
			ON travel_history (passenger_id, completed_at DESC);
	`)
	return err
}

// seedFareConfig writes the BCLL slab table: up to 5 km ₹10, 10 km ₹15,
// 20 km ₹25, beyond that ₹40, with a 1.2x peak multiplier
func seedFareConfig(ctx context.Context, pool *pgxpool.Pool) error {
	slabs := []models.FareSlab{
		{UpToKm: 5, BaseFareINR: 10},
		{UpToKm: 10, BaseFareINR: 15},
		{UpToKm: 20, BaseFareINR: 25},
		{UpToKm: 50, BaseFareINR: 40},
	}

	if _, err := pool.Exec(ctx, `DELETE FROM fare_slab`); err != nil {
		return err
	}
	for _, slab := range slabs {
		_, err := pool.Exec(ctx, `
			INSERT INTO fare_slab (up_to_km, base_fare_inr) VALUES ($1, $2)
		`, slab.UpToKm, slab.BaseFareINR)
		if err != nil {
			return err
		}
	}

	if _, err := pool.Exec(ctx, `DELETE FROM fare_config`); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, `INSERT INTO fare_config (peak_multiplier) VALUES (1.2)`)
	if err != nil {
		return err
	}

	log.Printf("Seeded %d fare slabs", len(slabs))
	return nil
}

type demoStop struct {
	name     string
	lat, lng float64
}

// seedRoutes inserts two demo routes over Bhopal's major stops, with
// stops and timings derived the same way route commit derives them
func seedRoutes(ctx context.Context, pool *pgxpool.Pool) error {
	routes := []struct {
		id    string
		name  string
		stops []demoStop
	}{
		{
			id:   "RT-DEMO-01",
			name: "MP Nagar - BHEL Express",
			stops: []demoStop{
				{"MP Nagar Zone-1", 23.2599, 77.4126},
				{"New Market", 23.2637, 77.4125},
				{"Bhopal Junction Railway Station", 23.2697, 77.4119},
				{"BHEL", 23.2759, 77.4011},
			},
		},
		{
			id:   "RT-DEMO-02",
			name: "TT Nagar - Govindpura Link",
			stops: []demoStop{
				{"TT Nagar", 23.2447, 77.4056},
				{"Bittan Market", 23.2456, 77.4025},
				{"MP Nagar Zone-1", 23.2599, 77.4126},
				{"Habibganj Railway Station", 23.2295, 77.4385},
				{"Ashoka Garden", 23.2282, 77.4465},
				{"Govindpura", 23.2443, 77.4742},
			},
		},
	}

	for _, r := range routes {
		waypoints := make([]models.Waypoint, len(r.stops))
		totalKm := 0.0
		for i, s := range r.stops {
			waypoints[i] = models.Waypoint{Index: i, Lat: s.lat, Lng: s.lng}
			if i > 0 {
				prev := r.stops[i-1]
				totalKm += haversineKm(prev.lat, prev.lng, s.lat, s.lng)
			}
		}

		durationMin := int(math.Ceil(totalKm / cityAvgSpeedKmh * 60))

		// numStops excludes the terminal, which DeriveStops always adds;
		// every waypoint here is a real stop, so the derived list lines
		// up 1:1 and gets the real names back
		stops := schedule.DeriveStops(waypoints, durationMin, len(r.stops)-1)
		for i := range stops {
			if i < len(r.stops) {
				stops[i].Name = r.stops[i].name
			}
		}

		waypointsJSON, _ := json.Marshal(waypoints)
		stopsJSON, _ := json.Marshal(stops)

		_, err := pool.Exec(ctx, `
			INSERT INTO route (route_id, name, waypoints, intermediate_stops, total_distance_km, estimated_duration_min, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'active')
			ON CONFLICT (route_id) DO UPDATE SET
				name = EXCLUDED.name,
				waypoints = EXCLUDED.waypoints,
				intermediate_stops = EXCLUDED.intermediate_stops,
				total_distance_km = EXCLUDED.total_distance_km,
				estimated_duration_min = EXCLUDED.estimated_duration_min
		`, r.id, r.name, waypointsJSON, stopsJSON, round2(totalKm), durationMin)
		if err != nil {
			return fmt.Errorf("insert route %s: %w", r.id, err)
		}

		log.Printf("Seeded route %s (%s): %.2f km, %d min", r.id, r.name, totalKm, durationMin)
	}

	return nil
}

func printDemoTokens() {
	passenger, err := middleware.IssueToken("demo-passenger", middleware.RolePassenger, 24*time.Hour)
	if err != nil {
		log.Printf("Failed to issue passenger token: %v", err)
		return
	}
	admin, err := middleware.IssueToken("demo-admin", middleware.RoleAdmin, 24*time.Hour)
	if err != nil {
		log.Printf("Failed to issue admin token: %v", err)
		return
	}

	fmt.Printf("Passenger token:\n%s\n\nAdmin token:\n%s\n", passenger, admin)
}

// haversineKm calculates the distance between two coordinates in km
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
