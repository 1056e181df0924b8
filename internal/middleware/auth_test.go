package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func testApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	chain := append([]fiber.Handler{}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		user, _ := c.Locals("user").(*UserContext)
		return c.JSON(fiber.Map{"user_id": user.UserID, "role": user.Role})
	})
	app.Get("/protected", chain...)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	app := testApp(AuthMiddleware())

	t.Run("Missing token is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("Malformed header is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Token abc123")
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("Garbage token is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("Expired token is rejected", func(t *testing.T) {
		token, err := IssueToken("p1", RolePassenger, -time.Minute)
		assert.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("Valid token passes with user context", func(t *testing.T) {
		token, err := IssueToken("p1", RolePassenger, time.Hour)
		assert.NoError(t, err)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})
}

func TestRequireRole(t *testing.T) {
	app := testApp(AuthMiddleware(), RequireRole(RoleAdmin))

	request := func(role string) int {
		token, _ := IssueToken("u1", role, time.Hour)
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		return resp.StatusCode
	}

	t.Run("Passenger cannot reach admin routes", func(t *testing.T) {
		assert.Equal(t, 403, request(RolePassenger))
	})

	t.Run("Admin passes", func(t *testing.T) {
		assert.Equal(t, 200, request(RoleAdmin))
	})

	t.Run("Admin passes passenger role checks too", func(t *testing.T) {
		passengerApp := testApp(AuthMiddleware(), RequireRole(RolePassenger))
		token, _ := IssueToken("u1", RoleAdmin, time.Hour)
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := passengerApp.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})
}
