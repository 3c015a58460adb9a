// Package middleware holds the fiber middleware of the v1 API
package middleware

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/logger"
)

// Logger returns a middleware that logs HTTP requests
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		fields := logger.Fields{
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start).String(),
			"ip":      c.IP(),
			"method":  c.Method(),
			"path":    c.Path(),
			"handler": c.Route().Name,
		}
		if err != nil {
			fields["error"] = err.Error()
			logger.WarnWithFields("Request failed", fields)
			return err
		}
		if c.Response().StatusCode() >= fiber.StatusInternalServerError {
			logger.WarnWithFields("Request", fields)
			return nil
		}
		logger.InfoWithFields("Request", fields)
		return nil
	}
}
