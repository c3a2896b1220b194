package whatsapp

import (
	"context"
	"sync"
	"time"

	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

var nowFunc = time.Now

// Adapter is the socket-based unofficial-protocol variant. It owns a
// persistent stateful transport that can silently die; every send runs
// through the reconnection controller in reconnect.go.
type Adapter struct {
	*channel.Emitter

	connectionID uint
	desc         channel.ConnectionDescriptor
	provider     ClientProvider
	metaStore    message.MetaStore
	cfg          *config.WhatsAppConfig

	mu        sync.RWMutex
	client    Transport
	status    channel.ConnectionStatus
	handlerID uint32
}

// NewAdapter wires the socket variant. metaStore may be nil; quoted replies
// then always degrade to minimal quotes.
func NewAdapter(desc channel.ConnectionDescriptor, provider ClientProvider, metaStore message.MetaStore, cfg *config.WhatsAppConfig, dispatcher channel.Dispatcher) *Adapter {
	return &Adapter{
		Emitter:      channel.NewEmitter(desc.ID, dispatcher),
		connectionID: desc.ID,
		desc:         desc,
		provider:     provider,
		metaStore:    metaStore,
		cfg:          cfg,
		status:       channel.StatusDisconnected,
	}
}

func (wa *Adapter) ID() uint {
	return wa.connectionID
}

func (wa *Adapter) Type() channel.ChannelType {
	return channel.TypeWhatsApp
}

func (wa *Adapter) Status() channel.ConnectionStatus {
	wa.mu.RLock()
	cli := wa.client
	status := wa.status
	wa.mu.RUnlock()

	if status == channel.StatusConnected && (cli == nil || !cli.IsConnected()) {
		return channel.StatusDisconnected
	}
	return status
}

func (wa *Adapter) Supports(kind message.Kind) bool {
	switch kind {
	case message.KindText, message.KindMedia, message.KindButtons, message.KindList, message.KindContact:
		return true
	default:
		return false
	}
}

// Initialize acquires the shared client handle, registers the event bridge
// and connects the socket. Never retried automatically.
func (wa *Adapter) Initialize(ctx context.Context) error {
	wa.setStatus(channel.StatusConnecting)

	cli, err := wa.provider.AcquireClient(ctx, wa.connectionID)
	if err != nil {
		wa.setStatus(channel.StatusDisconnected)
		return apperror.InitFailure("failed to acquire whatsapp client", err)
	}

	wa.mu.Lock()
	wa.client = cli
	if wa.handlerID != 0 {
		cli.RemoveEventHandler(wa.handlerID)
	}
	wa.handlerID = cli.AddEventHandler(wa.handleEvent)
	wa.mu.Unlock()

	if !cli.IsConnected() {
		if err := cli.Connect(); err != nil {
			wa.setStatus(channel.StatusDisconnected)
			return apperror.InitFailure("failed to connect whatsapp socket", err)
		}
	}

	wa.setStatus(channel.StatusConnected)
	logrus.WithField("connection_id", wa.connectionID).Info("[WHATSAPP] Adapter initialized")
	return nil
}

// Disconnect releases the transport. Idempotent.
func (wa *Adapter) Disconnect(ctx context.Context) error {
	wa.mu.Lock()
	cli := wa.client
	handlerID := wa.handlerID
	wa.client = nil
	wa.handlerID = 0
	wa.mu.Unlock()

	if cli != nil {
		if handlerID != 0 {
			cli.RemoveEventHandler(handlerID)
		}
		cli.Disconnect()
	}

	wa.setStatus(channel.StatusDisconnected)
	return nil
}

func (wa *Adapter) setStatus(status channel.ConnectionStatus) {
	wa.mu.Lock()
	changed := wa.status != status
	wa.status = status
	wa.mu.Unlock()

	if changed {
		wa.EmitStatus(status)
	}
}

func (wa *Adapter) transport() Transport {
	wa.mu.RLock()
	defer wa.mu.RUnlock()
	return wa.client
}

// handleEvent bridges whatsmeow events into normalized messages and status
// transitions.
func (wa *Adapter) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		wa.setStatus(channel.StatusConnected)

	case *events.Disconnected:
		wa.setStatus(channel.StatusDisconnected)

	case *events.LoggedOut:
		logrus.WithField("connection_id", wa.connectionID).Warn("[WHATSAPP] Device logged out")
		wa.setStatus(channel.StatusDisconnected)

	case *events.StreamReplaced:
		logrus.WithField("connection_id", wa.connectionID).Warn("[WHATSAPP] Stream replaced by another session")
		wa.setStatus(channel.StatusDisconnected)

	case *events.Message:
		// Stories and broadcast statuses are not chat traffic.
		if v.Info.Chat.String() == types.StatusBroadcastJID.String() {
			return
		}
		normalized := wa.normalizeIncoming(v)
		wa.rememberMeta(normalized)
		wa.EmitMessage(normalized)
	}
}

// normalizeIncoming maps a whatsmeow message event to the channel-agnostic
// shape.
func (wa *Adapter) normalizeIncoming(evt *events.Message) message.Normalized {
	msg := evt.Message
	normalized := message.Normalized{
		ID:        evt.Info.ID,
		From:      evt.Info.Chat.String(),
		To:        wa.ownAddress(),
		Timestamp: evt.Info.Timestamp.UnixMilli(),
		FromMe:    evt.Info.IsFromMe,
		IsGroup:   evt.Info.IsGroup,
	}
	if evt.Info.IsGroup {
		normalized.ParticipantID = evt.Info.Sender.String()
	}

	switch {
	case msg.GetConversation() != "":
		normalized.Body = msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		normalized.Body = msg.GetExtendedTextMessage().GetText()
	case msg.GetImageMessage() != nil:
		normalized.MediaType = message.MediaTypeImage
		normalized.Caption = msg.GetImageMessage().GetCaption()
		normalized.Body = normalized.Caption
	case msg.GetVideoMessage() != nil:
		normalized.MediaType = message.MediaTypeVideo
		normalized.Caption = msg.GetVideoMessage().GetCaption()
		normalized.Body = normalized.Caption
	case msg.GetAudioMessage() != nil:
		normalized.MediaType = message.MediaTypeAudio
		if msg.GetAudioMessage().GetPTT() {
			normalized.MediaType = message.MediaTypePTT
		}
	case msg.GetDocumentMessage() != nil:
		normalized.MediaType = message.MediaTypeDocument
		normalized.Caption = msg.GetDocumentMessage().GetCaption()
		normalized.Body = msg.GetDocumentMessage().GetFileName()
	case msg.GetStickerMessage() != nil:
		normalized.MediaType = message.MediaTypeSticker
	case msg.GetButtonsResponseMessage() != nil:
		normalized.Body = msg.GetButtonsResponseMessage().GetSelectedDisplayText()
	case msg.GetListResponseMessage() != nil:
		normalized.Body = msg.GetListResponseMessage().GetTitle()
	}

	return normalized
}

func (wa *Adapter) rememberMeta(msg message.Normalized) {
	if wa.metaStore == nil {
		return
	}
	sender := msg.From
	if msg.ParticipantID != "" {
		sender = msg.ParticipantID
	}
	meta := message.Meta{
		ConnectionID: wa.connectionID,
		MessageID:    msg.ID,
		ChatJID:      msg.From,
		Sender:       sender,
		FromMe:       msg.FromMe,
		SentAt:       time.UnixMilli(msg.Timestamp),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wa.metaStore.Save(ctx, meta); err != nil {
		logrus.WithError(err).Debug("[WHATSAPP] Failed to store message metadata")
	}
}

func (wa *Adapter) ownAddress() string {
	if cli := wa.transport(); cli != nil {
		if jid := cli.OwnJID(); !jid.IsEmpty() {
			return jid.ToNonAD().String()
		}
	}
	return ""
}
