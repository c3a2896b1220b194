package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/omnidesk/omnibridge/usecase"
)

type Health struct {
	Service usecase.IHealthUsecase
}

func InitRestHealth(app fiber.Router, service usecase.IHealthUsecase) Health {
	handler := Health{Service: service}
	app.Get("/health/status", handler.GetStatus)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	return responseOK(c, "Health status retrieved", h.Service.GetStatus(c.UserContext()))
}
