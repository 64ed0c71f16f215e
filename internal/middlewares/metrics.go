package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/metrics"
)

// HTTPMetrics records the count and latency of every request by route pattern.
func HTTPMetrics(recorder metrics.Recorder) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()
		status := ctx.Response().StatusCode()
		if fiberErr, ok := err.(*fiber.Error); ok {
			status = fiberErr.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		recorder.RecordHTTPRequest(ctx.Method(), ctx.Route().Path, status, time.Since(start))
		return err
	}
}
