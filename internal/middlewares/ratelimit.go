package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// TokenRateLimiter limits token requests per client IP and realm. Counters live
// in storage so every instance sharing it sees the same budget.
func TokenRateLimiter(storage fiber.Storage, max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
		KeyGenerator: func(ctx *fiber.Ctx) string {
			return "rl:token:" + ctx.Params("realm") + ":" + ctx.IP()
		},
		LimitReached: func(ctx *fiber.Ctx) error {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":             "slow_down",
				"error_description": "Too many requests. Please try again later.",
			})
		},
	})
}
