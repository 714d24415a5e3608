package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds a readiness endpoint that pings the backends in use.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		backends := fiber.Map{"postgres": "in-memory", "redis": "in-memory"}
		healthy := true

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			backends["postgres"] = "ok"
			if err := d.DB.Ping(ctx); err != nil {
				backends["postgres"], healthy = err.Error(), false
			}
		}
		if d.Cache != nil {
			backends["redis"] = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				backends["redis"], healthy = err.Error(), false
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    backends,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
