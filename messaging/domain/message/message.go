package message

import "time"

// MediaType classifies media payloads across every channel.
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypePTT      MediaType = "ptt"
	MediaTypeDocument MediaType = "document"
	MediaTypeSticker  MediaType = "sticker"
)

// DeliveryAck mirrors the acknowledgement ladder channels report for outbound
// messages. Channels without receipts leave it empty.
type DeliveryAck string

const (
	AckPending   DeliveryAck = "pending"
	AckServer    DeliveryAck = "server"
	AckDelivered DeliveryAck = "delivered"
	AckRead      DeliveryAck = "read"
)

// Normalized is the channel-agnostic message shape every adapter produces on
// both the send and receive paths. It is the only shape the rest of the
// platform ever sees.
type Normalized struct {
	ID            string      `json:"id"`
	From          string      `json:"from"`
	To            string      `json:"to"`
	Body          string      `json:"body"`
	Timestamp     int64       `json:"timestamp"` // unix millis
	FromMe        bool        `json:"from_me"`
	MediaType     MediaType   `json:"media_type,omitempty"`
	MediaURL      string      `json:"media_url,omitempty"`
	Caption       string      `json:"caption,omitempty"`
	Ack           DeliveryAck `json:"ack,omitempty"`
	IsGroup       bool        `json:"is_group,omitempty"`
	ParticipantID string      `json:"participant_id,omitempty"`
}

// NowMillis is the timestamp adapters stamp on messages they author.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
