package channel

import (
	"context"
	"time"

	"github.com/omnidesk/omnibridge/messaging/domain/message"
)

// MessageListener receives normalized inbound messages.
type MessageListener func(message.Normalized)

// StatusListener receives connection status transitions.
type StatusListener func(ConnectionStatus)

// Adapter is the capability interface every channel variant implements. The
// five concrete variants share no implementation; each encapsulates all
// protocol-specific I/O for one backend.
//
// Error contract: send/edit/delete surface every failure with a
// machine-readable apperror code. Profile lookups are best-effort and return
// nil instead of an error when the channel has no such concept or the lookup
// fails. MarkAsRead and SendPresenceUpdate are advisory: failures are logged
// and swallowed, so they return nothing.
type Adapter interface {
	ID() uint
	Type() ChannelType
	Status() ConnectionStatus

	// Initialize validates credentials and the transport, and transitions the
	// status to connected. Never retried automatically.
	Initialize(ctx context.Context) error

	// Disconnect releases the transport and notifies status listeners.
	// Idempotent.
	Disconnect(ctx context.Context) error

	// Supports reports whether this channel can deliver the given content
	// kind. SendMessage fails with UNSUPPORTED_CONTENT for kinds it cannot.
	Supports(kind message.Kind) bool

	// SendMessage is the single send entry point; it normalizes the recipient
	// first and signals INVALID_RECIPIENT before any network I/O.
	SendMessage(ctx context.Context, req message.SendRequest) (message.Normalized, error)

	// Buffer-based convenience senders. Channels with a two-step
	// upload-then-reference flow raise MEDIA_UPLOAD_ERROR distinctly from
	// SEND_MESSAGE_ERROR.
	SendDocumentMessage(ctx context.Context, to string, data []byte, fileName, mimeType, caption string) (message.Normalized, error)
	SendImageMessage(ctx context.Context, to string, data []byte, mimeType, caption string) (message.Normalized, error)
	SendVideoMessage(ctx context.Context, to string, data []byte, mimeType, caption string) (message.Normalized, error)
	SendAudioMessage(ctx context.Context, to string, data []byte, mimeType string, ptt bool) (message.Normalized, error)

	// DeleteMessage and EditMessage are capability-gated; adapters without
	// support fail with DELETE_NOT_SUPPORTED / EDIT_NOT_SUPPORTED, and
	// channels with validity windows fail with MESSAGE_TOO_OLD. sentAt is the
	// original message timestamp used for the local age check.
	DeleteMessage(ctx context.Context, to, messageID string, sentAt time.Time) error
	EditMessage(ctx context.Context, to, messageID, newBody string, sentAt time.Time) (message.Normalized, error)

	// Best-effort profile lookups; nil means "no such concept here" or
	// "lookup failed", never an error.
	GetProfilePicture(ctx context.Context, addr string) *string
	GetStatus(ctx context.Context, addr string) *string
	GetProfileInfo(ctx context.Context, addr string) *ProfileInfo

	// Advisory operations; failures are logged, never surfaced.
	MarkAsRead(ctx context.Context, addr string, messageIDs []string)
	SendPresenceUpdate(ctx context.Context, addr string, typing bool)

	// Callback registration. Listeners run in registration order; a panicking
	// listener is caught and logged and never aborts the remaining ones.
	OnMessage(listener MessageListener)
	OnConnectionUpdate(listener StatusListener)
}

// EventPusher is implemented by adapters fed by external webhook delivery
// (Facebook, Instagram, cloud-api): the collaborator pushes raw events in and
// gets back the normalized message, or nil when the event carries none.
type EventPusher interface {
	ProcessIncomingMessage(raw []byte) (*message.Normalized, error)
}
