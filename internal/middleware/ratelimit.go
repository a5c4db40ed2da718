package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PlacementRateLimit caps order placements per caller per minute using a
// Redis counter. Fails open when Redis is down or not configured: a burst
// of orders is cheaper than a dead checkout.
func PlacementRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		caller := c.IP()
		if p, ok := Principal(c); ok {
			caller = p.UserID
		}
		key := "rl:place:" + caller
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many orders placed, try again later")
		}
		return c.Next()
	}
}
