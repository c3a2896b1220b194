package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/registry"
	"github.com/sirupsen/logrus"
)

type Webhook struct {
	Registry *registry.Registry
	Config   *config.Config
}

// InitRestWebhook registers the inbound callback endpoints Meta delivers to:
// the verification handshake plus one receiver per connection.
func InitRestWebhook(app fiber.Router, reg *registry.Registry, cfg *config.Config) Webhook {
	rest := Webhook{Registry: reg, Config: cfg}

	app.Get("/webhooks/:channel", rest.Verify)
	app.Post("/webhooks/:channel/:id", rest.Receive)

	return rest
}

// Verify answers the hub.challenge handshake Meta performs when the callback
// URL is registered for a page, Instagram account or WABA number.
func (controller *Webhook) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token == "" || token != controller.Config.Meta.VerifyToken {
		return c.SendStatus(fiber.StatusForbidden)
	}
	return c.SendString(challenge)
}

func (controller *Webhook) Receive(c *fiber.Ctx) error {
	id, ok := connectionID(c)
	if !ok {
		return responseBadRequest(c, "invalid connection id")
	}

	adapter, found := controller.Registry.GetAdapter(id)
	if !found {
		logrus.WithField("connection_id", id).Warn("[WEBHOOK] Event for unknown connection")
		// 200 anyway: Meta retries aggressively on non-2xx and the connection
		// may simply not be restored yet.
		return c.SendString("EVENT_RECEIVED")
	}

	pusher, supported := adapter.(channel.EventPusher)
	if !supported {
		logrus.WithFields(logrus.Fields{
			"connection_id": id,
			"channel":       adapter.Type(),
		}).Warn("[WEBHOOK] Event for a channel without webhook support")
		return c.SendString("EVENT_RECEIVED")
	}

	if _, err := pusher.ProcessIncomingMessage(c.Body()); err != nil {
		logrus.WithError(err).WithField("connection_id", id).Error("[WEBHOOK] Failed to process event")
	}
	return c.SendString("EVENT_RECEIVED")
}
