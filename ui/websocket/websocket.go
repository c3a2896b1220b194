package websocket

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/omnidesk/omnibridge/infrastructure/webchat"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/messaging/registry"
	"github.com/sirupsen/logrus"
)

// wireEvent is the frame shape both directions use on the visitor socket.
type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// visitorMessage is the inbound "message" event payload.
type visitorMessage struct {
	Body      string `json:"body"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// connTransport adapts one fiber websocket connection into the push surface
// the web-chat adapter writes to. Writes are serialized: gorilla-style
// websockets allow one concurrent writer.
type connTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *connTransport) Send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(wireEvent{Event: event, Data: payload})
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *connTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.WriteMessage(websocket.CloseMessage, []byte{})
	return t.conn.Close()
}

// RegisterRoutes mounts the visitor websocket endpoint. Each socket binds to
// one web-chat connection; recipient_id resumes a prior session within its
// grace window.
func RegisterRoutes(app fiber.Router, reg *registry.Registry) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws/:id", websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()

		id, err := parseConnectionID(conn.Params("id"))
		if err != nil {
			logrus.WithError(err).Warn("[WS] Rejected socket with bad connection id")
			return
		}

		adapter, ok := reg.GetAdapter(id)
		if !ok {
			logrus.WithField("connection_id", id).Warn("[WS] Socket for unknown connection")
			return
		}
		wc, ok := adapter.(*webchat.Adapter)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"connection_id": id,
				"channel":       adapter.Type(),
			}).Warn("[WS] Socket for a non web-chat connection")
			return
		}
		if adapter.Status() != channel.StatusConnected {
			logrus.WithField("connection_id", id).Warn("[WS] Socket for a disconnected web-chat adapter")
			return
		}

		transport := &connTransport{conn: conn}
		session, err := wc.RegisterTransport(context.Background(), transport, webchat.VisitorInfo{
			RecipientID: conn.Query("recipient_id"),
			Name:        conn.Query("name"),
			Email:       conn.Query("email"),
		})
		if err != nil {
			logrus.WithError(err).Error("[WS] Could not register visitor transport")
			return
		}
		defer wc.UnregisterTransport(session.RecipientID)

		readLoop(wc, session.RecipientID, conn)
	}))
}

func parseConnectionID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}

func readLoop(wc *webchat.Adapter, recipientID string, conn *websocket.Conn) {
	for {
		messageType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("[WS] Read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var event wireEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			logrus.WithError(err).Debug("[WS] Dropping malformed frame")
			continue
		}

		switch event.Event {
		case "message":
			var vm visitorMessage
			if err := json.Unmarshal(event.Data, &vm); err != nil {
				logrus.WithError(err).Debug("[WS] Dropping malformed message payload")
				continue
			}
			var media *message.Media
			if vm.MediaURL != "" {
				media = &message.Media{
					Type:    message.MediaType(vm.MediaType),
					URL:     vm.MediaURL,
					Caption: vm.Caption,
				}
			}
			if _, err := wc.HandleVisitorMessage(recipientID, vm.Body, media); err != nil {
				logrus.WithError(err).WithField("recipient_id", recipientID).Warn("[WS] Visitor message rejected")
			}
		default:
			logrus.WithField("event", event.Event).Debug("[WS] Ignoring unknown event")
		}
	}
}
