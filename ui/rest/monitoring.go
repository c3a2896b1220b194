package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/omnidesk/omnibridge/messaging/registry"
	"github.com/omnidesk/omnibridge/pkg/msgworker"
)

type MonitoringHandler struct {
	registry *registry.Registry
	pool     *msgworker.Pool
}

// InitRestMonitoring registers the operational introspection endpoints.
func InitRestMonitoring(app fiber.Router, reg *registry.Registry, pool *msgworker.Pool) {
	h := &MonitoringHandler{registry: reg, pool: pool}

	g := app.Group("/monitoring")
	g.Get("/adapters", h.GetAdapterStats)
	g.Get("/workers", h.GetWorkerPoolStats)
}

func (h *MonitoringHandler) GetAdapterStats(c *fiber.Ctx) error {
	return c.JSON(h.registry.GetStats())
}

func (h *MonitoringHandler) GetWorkerPoolStats(c *fiber.Ctx) error {
	if h.pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "worker pool not initialized",
		})
	}
	return c.JSON(h.pool.GetStats())
}
