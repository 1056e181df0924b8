package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPerSecond = 10
	defaultPerDay    = 10000
)

// RateLimitMiddleware implements per-user rate limiting with Redis
// counters, checked per second and per day
func RateLimitMiddleware(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Fall back to client IP when the request is unauthenticated
		subject := c.IP()
		if user, ok := c.Locals("user").(*UserContext); ok {
			subject = user.UserID
		}

		ctx := context.Background()
		now := time.Now()

		keySecond := fmt.Sprintf("rl:user:%s:second:%d", subject, now.Unix())
		keyDay := fmt.Sprintf("rl:user:%s:day:%s", subject, now.Format("2006-01-02"))

		countSecond, err := rdb.Incr(ctx, keySecond).Result()
		if err == nil {
			rdb.Expire(ctx, keySecond, 2*time.Second)

			if countSecond > defaultPerSecond {
				c.Set("X-RateLimit-Limit-Second", strconv.Itoa(defaultPerSecond))
				c.Set("X-RateLimit-Remaining-Second", "0")
				c.Set("Retry-After", "1")

				return c.Status(429).JSON(fiber.Map{
					"error":       "rate_limit_exceeded",
					"message":     "Too many requests per second",
					"limit_type":  "per_second",
					"limit":       defaultPerSecond,
					"retry_after": 1,
				})
			}
		}

		countDay, err := rdb.Incr(ctx, keyDay).Result()
		if err == nil {
			rdb.Expire(ctx, keyDay, 25*time.Hour)

			if countDay > defaultPerDay {
				tomorrow := now.AddDate(0, 0, 1)
				midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
				retryAfter := int64(midnight.Sub(now).Seconds())

				c.Set("X-RateLimit-Limit-Day", strconv.Itoa(defaultPerDay))
				c.Set("X-RateLimit-Remaining-Day", "0")
				c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				return c.Status(429).JSON(fiber.Map{
					"error":       "daily_quota_exceeded",
					"message":     "Daily quota exceeded",
					"limit_type":  "per_day",
					"limit":       defaultPerDay,
					"used":        countDay,
					"retry_after": retryAfter,
					"reset_at":    midnight.Format(time.RFC3339),
				})
			}

			c.Set("X-RateLimit-Remaining-Day", strconv.FormatInt(defaultPerDay-countDay, 10))
		}

		c.Set("X-RateLimit-Limit-Second", strconv.Itoa(defaultPerSecond))
		c.Set("X-RateLimit-Limit-Day", strconv.Itoa(defaultPerDay))

		return c.Next()
	}
}
