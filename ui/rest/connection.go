package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/usecase"
)

type Connection struct {
	Service usecase.IConnectionUsecase
}

func InitRestConnection(app fiber.Router, service usecase.IConnectionUsecase) Connection {
	rest := Connection{Service: service}

	app.Post("/connections", rest.Create)
	app.Get("/connections", rest.List)
	app.Get("/connections/:id/status", rest.Status)
	app.Post("/connections/:id/initialize", rest.Initialize)
	app.Delete("/connections/:id", rest.Remove)
	app.Get("/connections/:id/profile/:addr", rest.ProfileInfo)

	return rest
}

type createConnectionRequest struct {
	Type        channel.ChannelType `json:"type"`
	Name        string              `json:"name"`
	Credentials channel.Credentials `json:"credentials"`
}

func (controller *Connection) Create(c *fiber.Ctx) error {
	var request createConnectionRequest
	if err := c.BodyParser(&request); err != nil {
		return responseBadRequest(c, err.Error())
	}

	status, err := controller.Service.Create(c.UserContext(), channel.ConnectionDescriptor{
		Type:        request.Type,
		Name:        request.Name,
		Credentials: request.Credentials,
	})
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Connection created", status)
}

func (controller *Connection) List(c *fiber.Ctx) error {
	statuses, err := controller.Service.List(c.UserContext())
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Connections retrieved", statuses)
}

func (controller *Connection) Status(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	status, err := controller.Service.Status(c.UserContext(), id)
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Connection status retrieved", status)
}

func (controller *Connection) Initialize(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	status, err := controller.Service.Initialize(c.UserContext(), id)
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Connection initialized", status)
}

func (controller *Connection) Remove(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	if err := controller.Service.Remove(c.UserContext(), id); err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Connection removed", nil)
}

func (controller *Connection) ProfileInfo(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}
	info, err := controller.Service.ProfileInfo(c.UserContext(), id, c.Params("addr"))
	if err != nil {
		return responseError(c, err)
	}
	return responseOK(c, "Profile retrieved", info)
}
