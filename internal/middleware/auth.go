package middleware

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// RolePassenger can search, resolve itineraries, and run trips
	RolePassenger = "passenger"
	// RoleAdmin can additionally commit routes and generate schedules
	RoleAdmin = "admin"
)

// UserContext holds the authenticated user's identity for the request
type UserContext struct {
	UserID string
	Role   string
}

// Claims is the JWT payload issued by the auth collaborator
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// jwtSecret returns the shared signing secret
func jwtSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("citylink-dev-secret")
}

// AuthMiddleware validates the bearer JWT and stores the user context
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{
				"error":   "missing_token",
				"message": "Authentication required. Use Authorization: Bearer YOUR_TOKEN",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{
				"error":   "invalid_auth_format",
				"message": "Authorization header must be in format: Bearer YOUR_TOKEN",
			})
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return jwtSecret(), nil
		})
		if err != nil || !token.Valid {
			return c.Status(401).JSON(fiber.Map{
				"error":   "invalid_token",
				"message": "The provided token is invalid or expired",
			})
		}

		c.Locals("user", &UserContext{
			UserID: claims.Subject,
			Role:   claims.Role,
		})

		return c.Next()
	}
}

// RequireRole checks that the authenticated user has the given role.
// Admins pass every role check.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("user").(*UserContext)
		if !ok {
			return c.Status(401).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Authentication required",
			})
		}

		if user.Role != role && user.Role != RoleAdmin {
			return c.Status(403).JSON(fiber.Map{
				"error":         "insufficient_permissions",
				"message":       "Your account does not have the required role",
				"required_role": role,
			})
		}

		return c.Next()
	}
}

// IssueToken signs a JWT for a user. Used by the seed tool and tests;
// the real product issues tokens from its auth service.
func IssueToken(userID, role string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}
