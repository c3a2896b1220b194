package webchat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/omnidesk/omnibridge/messaging/domain/address"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
)

// SendMessage pushes a message event to the visitor's live transport. The
// recipient must map to a non-expired session.
func (wc *Adapter) SendMessage(_ context.Context, req message.SendRequest) (message.Normalized, error) {
	recipientID, err := address.NormalizeSessionID(req.To)
	if err != nil {
		return message.Normalized{}, err
	}
	if !wc.Supports(req.Kind) {
		return message.Normalized{}, apperror.UnsupportedContent(string(channel.TypeWebChat), string(req.Kind))
	}
	if req.Kind == message.KindMedia {
		if req.Media == nil {
			return message.Normalized{}, apperror.Validation("media payload is required")
		}
		if req.Media.URL == "" {
			return message.Normalized{}, apperror.UnsupportedContent(string(channel.TypeWebChat), "media buffer")
		}
	}

	live, transport, err := wc.session(recipientID)
	if err != nil {
		return message.Normalized{}, err
	}

	normalized := message.Normalized{
		ID:        uuid.NewString(),
		From:      wc.desc.Name,
		To:        recipientID,
		Body:      req.Body,
		Timestamp: message.NowMillis(),
		FromMe:    true,
		Ack:       message.AckServer,
	}
	payload := map[string]interface{}{
		"id":   normalized.ID,
		"body": req.Body,
	}
	if req.Kind == message.KindMedia {
		normalized.MediaType = req.Media.Type
		normalized.MediaURL = req.Media.URL
		normalized.Caption = req.Media.Caption
		payload["media_type"] = string(req.Media.Type)
		payload["media_url"] = req.Media.URL
		payload["caption"] = req.Media.Caption
	}

	if err := transport.Send("message", payload); err != nil {
		return message.Normalized{}, apperror.SendMessage(err)
	}

	wc.mu.Lock()
	live.meta.LastActivity = time.Now()
	wc.mu.Unlock()
	return normalized, nil
}

// The widget protocol has no buffer upload; media travels by URL only.

func (wc *Adapter) SendDocumentMessage(_ context.Context, _ string, _ []byte, _, _, _ string) (message.Normalized, error) {
	return message.Normalized{}, apperror.UnsupportedContent(string(channel.TypeWebChat), "media buffer")
}

func (wc *Adapter) SendImageMessage(_ context.Context, _ string, _ []byte, _, _ string) (message.Normalized, error) {
	return message.Normalized{}, apperror.UnsupportedContent(string(channel.TypeWebChat), "media buffer")
}

func (wc *Adapter) SendVideoMessage(_ context.Context, _ string, _ []byte, _, _ string) (message.Normalized, error) {
	return message.Normalized{}, apperror.UnsupportedContent(string(channel.TypeWebChat), "media buffer")
}

func (wc *Adapter) SendAudioMessage(_ context.Context, _ string, _ []byte, _ string, _ bool) (message.Normalized, error) {
	return message.Normalized{}, apperror.UnsupportedContent(string(channel.TypeWebChat), "media buffer")
}

func (wc *Adapter) DeleteMessage(_ context.Context, _, _ string, _ time.Time) error {
	return apperror.DeleteNotSupported(string(channel.TypeWebChat))
}

func (wc *Adapter) EditMessage(_ context.Context, _, _, _ string, _ time.Time) (message.Normalized, error) {
	return message.Normalized{}, apperror.EditNotSupported(string(channel.TypeWebChat))
}

// Web chat visitors have no profile surface.

func (wc *Adapter) GetProfilePicture(_ context.Context, _ string) *string { return nil }

func (wc *Adapter) GetStatus(_ context.Context, _ string) *string { return nil }

func (wc *Adapter) GetProfileInfo(_ context.Context, _ string) *channel.ProfileInfo { return nil }

// MarkAsRead forwards a read event to the visitor; advisory.
func (wc *Adapter) MarkAsRead(_ context.Context, addr string, messageIDs []string) {
	wc.pushEvent(addr, "read", map[string]interface{}{"ids": messageIDs})
}

// SendPresenceUpdate forwards a typing event to the visitor; advisory.
func (wc *Adapter) SendPresenceUpdate(_ context.Context, addr string, typing bool) {
	wc.pushEvent(addr, "typing", map[string]interface{}{"typing": typing})
}

func (wc *Adapter) pushEvent(addr, event string, data map[string]interface{}) {
	recipientID, err := address.NormalizeSessionID(addr)
	if err != nil {
		logrus.WithError(err).Debug("[WEBCHAT] Skipping event for invalid recipient")
		return
	}
	_, transport, err := wc.session(recipientID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"connection_id": wc.connectionID,
			"event":         event,
		}).Debug("[WEBCHAT] No live session for advisory event")
		return
	}
	if err := transport.Send(event, data); err != nil {
		logrus.WithError(err).WithField("event", event).Debug("[WEBCHAT] Failed to push event")
	}
}

var _ channel.Adapter = (*Adapter)(nil)
