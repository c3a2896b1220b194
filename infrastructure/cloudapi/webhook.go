package cloudapi

import (
	"encoding/json"
	"strconv"

	"github.com/omnidesk/omnibridge/messaging/domain/address"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/sirupsen/logrus"
)

type webhookEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *webhookMedia `json:"image"`
	Video    *webhookMedia `json:"video"`
	Audio    *webhookMedia `json:"audio"`
	Document *webhookMedia `json:"document"`
	Sticker  *webhookMedia `json:"sticker"`
	Button   *struct {
		Text string `json:"text"`
	} `json:"button"`
	Interactive *struct {
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

type webhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

// ProcessIncomingMessage normalizes a raw webhook delivery. A delivery can
// batch several messages; each is emitted. The return value is the first
// normalized message, nil for status-only deliveries (acks, errors).
func (ca *Adapter) ProcessIncomingMessage(raw []byte) (*message.Normalized, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	var first *message.Normalized
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			for _, wm := range change.Value.Messages {
				normalized := ca.normalizeWebhook(wm)
				ca.EmitMessage(normalized)
				if first == nil {
					first = &normalized
				}
			}
		}
	}
	if first == nil {
		logrus.WithField("connection_id", ca.connectionID).Debug("[CLOUDAPI] Webhook delivery carried no message")
	}
	return first, nil
}

func (ca *Adapter) normalizeWebhook(wm webhookMessage) message.Normalized {
	from, err := address.NormalizeWhatsApp(wm.From)
	if err != nil {
		from = wm.From
	}
	normalized := message.Normalized{
		ID:        wm.ID,
		From:      from,
		To:        ca.desc.Credentials.PhoneNumberID,
		Timestamp: parseUnixSeconds(wm.Timestamp),
		Ack:       message.AckDelivered,
	}

	switch {
	case wm.Text != nil:
		normalized.Body = wm.Text.Body
	case wm.Button != nil:
		normalized.Body = wm.Button.Text
	case wm.Interactive != nil:
		if wm.Interactive.ButtonReply != nil {
			normalized.Body = wm.Interactive.ButtonReply.Title
		} else if wm.Interactive.ListReply != nil {
			normalized.Body = wm.Interactive.ListReply.Title
		}
	case wm.Image != nil:
		normalized.MediaType = message.MediaTypeImage
		normalized.MediaURL = wm.Image.ID
		normalized.Caption = wm.Image.Caption
	case wm.Video != nil:
		normalized.MediaType = message.MediaTypeVideo
		normalized.MediaURL = wm.Video.ID
		normalized.Caption = wm.Video.Caption
	case wm.Audio != nil:
		normalized.MediaType = message.MediaTypeAudio
		normalized.MediaURL = wm.Audio.ID
	case wm.Document != nil:
		normalized.MediaType = message.MediaTypeDocument
		normalized.MediaURL = wm.Document.ID
		normalized.Caption = wm.Document.Caption
	case wm.Sticker != nil:
		normalized.MediaType = message.MediaTypeSticker
		normalized.MediaURL = wm.Sticker.ID
	}
	return normalized
}

func parseUnixSeconds(s string) int64 {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return message.NowMillis()
	}
	return secs * 1000
}
