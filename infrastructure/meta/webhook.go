package meta

import (
	"encoding/json"

	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/sirupsen/logrus"
)

type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []webhookMessaging `json:"messaging"`
	} `json:"entry"`
}

type webhookMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		MID         string `json:"mid"`
		Text        string `json:"text"`
		IsEcho      bool   `json:"is_echo"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
}

// ProcessIncomingMessage normalizes a raw webhook delivery from the
// Messenger/Instagram platform. Deliveries can batch several messaging events;
// every one of them is emitted. The return value is the first normalized
// message, nil when the delivery carried none (delivery receipts, postbacks).
func (ma *Adapter) ProcessIncomingMessage(raw []byte) (*message.Normalized, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	var first *message.Normalized
	for _, entry := range envelope.Entry {
		for _, wm := range entry.Messaging {
			if wm.Message == nil || wm.Message.MID == "" {
				continue
			}
			normalized := ma.normalizeWebhook(wm)
			ma.EmitMessage(normalized)
			if first == nil {
				first = &normalized
			}
		}
	}
	if first == nil {
		logrus.WithField("connection_id", ma.connectionID).Debug("[META] Webhook delivery carried no message")
	}
	return first, nil
}

func (ma *Adapter) normalizeWebhook(wm webhookMessaging) message.Normalized {
	normalized := message.Normalized{
		ID:        wm.Message.MID,
		From:      wm.Sender.ID,
		To:        wm.Recipient.ID,
		Body:      wm.Message.Text,
		Timestamp: wm.Timestamp,
		FromMe:    wm.Message.IsEcho,
		Ack:       message.AckDelivered,
	}
	if normalized.Timestamp == 0 {
		normalized.Timestamp = message.NowMillis()
	}

	for _, att := range wm.Message.Attachments {
		switch att.Type {
		case "image":
			normalized.MediaType = message.MediaTypeImage
		case "video":
			normalized.MediaType = message.MediaTypeVideo
		case "audio":
			normalized.MediaType = message.MediaTypeAudio
		case "file":
			normalized.MediaType = message.MediaTypeDocument
		default:
			continue
		}
		normalized.MediaURL = att.Payload.URL
		break
	}
	return normalized
}
