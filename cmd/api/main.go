package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/citylink/citylink_core/internal/api"
	"github.com/citylink/citylink_core/internal/cache"
	"github.com/citylink/citylink_core/internal/db"
	"github.com/citylink/citylink_core/internal/middleware"
)

func main() {
	// .env is optional; real deployments inject the environment
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	log.Println("Starting CityLink API server...")

	// Initialize database connection
	if _, err := db.GetDB(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Database connection established")

	// Initialize Redis connection
	rdb, err := cache.GetClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer cache.Close()
	log.Println("✓ Redis connection established")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CityLink API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Public routes
	app.Get("/health", api.Health)

	// Authenticated routes
	auth := middleware.AuthMiddleware()
	rateLimit := middleware.RateLimitMiddleware(rdb)
	passenger := middleware.RequireRole(middleware.RolePassenger)
	admin := middleware.RequireRole(middleware.RoleAdmin)

	app.Get("/v2/routes/list", auth, rateLimit, passenger, api.RoutesList)
	app.Post("/v2/fare/calculate", auth, rateLimit, passenger, api.CalculateFare)
	app.Get("/v2/fare/route/:id", auth, rateLimit, passenger, api.RouteFare)
	app.Get("/v2/routes/:id/schedule-matrix", auth, rateLimit, passenger, api.ScheduleMatrix)

	app.Get("/v2/trips/connections", auth, rateLimit, passenger, api.Connections)
	app.Post("/v2/trips/start", auth, rateLimit, passenger, api.StartTrip)
	app.Post("/v2/trips/switch", auth, rateLimit, passenger, api.SwitchRoute)
	app.Post("/v2/trips/complete", auth, rateLimit, passenger, api.CompleteTrip)
	app.Get("/v2/trips/active", auth, rateLimit, passenger, api.ActiveTrip)
	app.Get("/v2/trips/history", auth, rateLimit, passenger, api.TripHistory)

	app.Post("/v2/routes/plan", auth, rateLimit, admin, api.PlanRoutes)
	app.Post("/v2/routes/commit", auth, rateLimit, admin, api.CommitRoute)
	app.Post("/v2/schedules/generate", auth, rateLimit, admin, api.GenerateSchedule)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	// Get port from environment
	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	// Start server
	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("📍 Connections: http://localhost%s/v2/trips/connections?from=LAT,LON&to=LAT,LON", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
