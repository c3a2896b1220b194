package webchat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/messaging/session"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/sirupsen/logrus"
)

// Transport is one live visitor realtime connection. ui/websocket adapts a
// fiber websocket conn into this. Send pushes one named event to the visitor.
type Transport interface {
	Send(event string, data interface{}) error
	Close() error
}

// VisitorInfo is what the HTTP layer knows about a connecting visitor. A
// non-empty RecipientID means the widget is reconnecting a known session.
type VisitorInfo struct {
	RecipientID string
	SessionID   string
	Name        string
	Email       string
}

type liveSession struct {
	meta      session.WebChatSession
	transport Transport
	cleanup   *time.Timer
}

// Adapter is the only variant with inbound realtime multiplexing: one
// instance serves a namespace shared by many concurrent visitor sessions.
// Sessions survive transport loss for a grace window so page reloads keep the
// same recipient id.
type Adapter struct {
	*channel.Emitter

	connectionID uint
	desc         channel.ConnectionDescriptor
	store        session.Store
	cfg          *config.WebChatConfig

	mu       sync.Mutex
	sessions map[string]*liveSession
	status   channel.ConnectionStatus
}

func NewAdapter(desc channel.ConnectionDescriptor, store session.Store, cfg *config.WebChatConfig, dispatcher channel.Dispatcher) *Adapter {
	if store == nil {
		store = session.NewMemoryStore()
	}
	return &Adapter{
		Emitter:      channel.NewEmitter(desc.ID, dispatcher),
		connectionID: desc.ID,
		desc:         desc,
		store:        store,
		cfg:          cfg,
		sessions:     make(map[string]*liveSession),
		status:       channel.StatusDisconnected,
	}
}

func (wc *Adapter) ID() uint                         { return wc.connectionID }
func (wc *Adapter) Type() channel.ChannelType        { return channel.TypeWebChat }
func (wc *Adapter) Status() channel.ConnectionStatus {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.status
}

func (wc *Adapter) Supports(kind message.Kind) bool {
	return kind == message.KindText || kind == message.KindMedia
}

// Initialize just opens the namespace; visitors attach their own transports.
func (wc *Adapter) Initialize(_ context.Context) error {
	wc.setStatus(channel.StatusConnected)
	logrus.WithField("connection_id", wc.connectionID).Info("[WEBCHAT] Namespace ready")
	return nil
}

// Disconnect closes every live transport and drops all sessions.
func (wc *Adapter) Disconnect(ctx context.Context) error {
	wc.mu.Lock()
	sessions := wc.sessions
	wc.sessions = make(map[string]*liveSession)
	wc.mu.Unlock()

	for recipientID, live := range sessions {
		if live.cleanup != nil {
			live.cleanup.Stop()
		}
		if live.transport != nil {
			_ = live.transport.Close()
		}
		if err := wc.store.Delete(ctx, wc.connectionID, recipientID); err != nil {
			logrus.WithError(err).Debug("[WEBCHAT] Failed to delete session metadata")
		}
	}
	wc.setStatus(channel.StatusDisconnected)
	return nil
}

func (wc *Adapter) setStatus(status channel.ConnectionStatus) {
	wc.mu.Lock()
	changed := wc.status != status
	wc.status = status
	wc.mu.Unlock()

	if changed {
		wc.EmitStatus(status)
	}
}

// RegisterTransport attaches a visitor connection. A reconnect within the
// grace window cancels the pending cleanup and preserves the recipient id and
// visitor fields; otherwise a fresh session is minted. The visitor receives a
// session_start event carrying the recipient id and the configured greeting.
func (wc *Adapter) RegisterTransport(ctx context.Context, t Transport, visitor VisitorInfo) (session.WebChatSession, error) {
	now := time.Now()

	wc.mu.Lock()
	live := wc.resumeLocked(ctx, visitor)
	if live == nil {
		live = &liveSession{meta: session.WebChatSession{
			RecipientID: uuid.NewString(),
			StartedAt:   now,
		}}
		wc.sessions[live.meta.RecipientID] = live
	}
	if live.cleanup != nil {
		live.cleanup.Stop()
		live.cleanup = nil
	}
	live.transport = t
	live.meta.SessionID = visitor.SessionID
	live.meta.LastActivity = now
	if visitor.Name != "" {
		live.meta.VisitorName = visitor.Name
	}
	if visitor.Email != "" {
		live.meta.VisitorEmail = visitor.Email
	}
	meta := live.meta
	wc.mu.Unlock()

	if err := wc.store.Save(ctx, wc.connectionID, meta); err != nil {
		logrus.WithError(err).Debug("[WEBCHAT] Failed to persist session metadata")
	}

	payload := map[string]interface{}{"recipient_id": meta.RecipientID}
	if greeting := wc.desc.Credentials.GreetingMessage; greeting != "" {
		payload["greeting"] = greeting
	}
	if err := t.Send("session_start", payload); err != nil {
		logrus.WithError(err).Debug("[WEBCHAT] Failed to deliver session_start")
	}

	logrus.WithFields(logrus.Fields{
		"connection_id": wc.connectionID,
		"recipient_id":  meta.RecipientID,
	}).Debug("[WEBCHAT] Transport registered")
	return meta, nil
}

// resumeLocked finds a resumable session for the visitor, first among live
// sessions, then in the metadata store. Caller holds wc.mu.
func (wc *Adapter) resumeLocked(ctx context.Context, visitor VisitorInfo) *liveSession {
	if visitor.RecipientID == "" {
		return nil
	}
	if live, ok := wc.sessions[visitor.RecipientID]; ok {
		return live
	}
	meta, ok, err := wc.store.Get(ctx, wc.connectionID, visitor.RecipientID)
	if err != nil {
		logrus.WithError(err).Debug("[WEBCHAT] Session metadata lookup failed")
		return nil
	}
	if !ok {
		return nil
	}
	live := &liveSession{meta: meta}
	wc.sessions[meta.RecipientID] = live
	return live
}

// UnregisterTransport is called when a visitor connection drops. The session
// stays resumable for the grace window, then is evicted for good.
func (wc *Adapter) UnregisterTransport(recipientID string) {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	live, ok := wc.sessions[recipientID]
	if !ok {
		return
	}
	live.transport = nil
	if live.cleanup != nil {
		live.cleanup.Stop()
	}
	live.cleanup = time.AfterFunc(wc.cfg.SessionGraceWindow, func() {
		wc.expire(recipientID)
	})
}

func (wc *Adapter) expire(recipientID string) {
	wc.mu.Lock()
	live, ok := wc.sessions[recipientID]
	if !ok || live.transport != nil {
		// reconnected while the timer was firing
		wc.mu.Unlock()
		return
	}
	delete(wc.sessions, recipientID)
	wc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wc.store.Delete(ctx, wc.connectionID, recipientID); err != nil {
		logrus.WithError(err).Debug("[WEBCHAT] Failed to delete expired session")
	}
	logrus.WithFields(logrus.Fields{
		"connection_id": wc.connectionID,
		"recipient_id":  recipientID,
	}).Debug("[WEBCHAT] Session expired")
}

// HandleVisitorMessage normalizes one inbound visitor message and pushes it to
// the registered listeners.
func (wc *Adapter) HandleVisitorMessage(recipientID, body string, media *message.Media) (message.Normalized, error) {
	wc.mu.Lock()
	live, ok := wc.sessions[recipientID]
	if !ok {
		wc.mu.Unlock()
		return message.Normalized{}, apperror.SessionNotFound(recipientID)
	}
	live.meta.LastActivity = time.Now()
	meta := live.meta
	wc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wc.store.Save(ctx, wc.connectionID, meta); err != nil {
		logrus.WithError(err).Debug("[WEBCHAT] Failed to persist session metadata")
	}

	normalized := message.Normalized{
		ID:        uuid.NewString(),
		From:      recipientID,
		To:        wc.desc.Name,
		Body:      body,
		Timestamp: message.NowMillis(),
		Ack:       message.AckDelivered,
	}
	if media != nil {
		normalized.MediaType = media.Type
		normalized.MediaURL = media.URL
		normalized.Caption = media.Caption
	}
	wc.EmitMessage(normalized)
	return normalized, nil
}

func (wc *Adapter) session(recipientID string) (*liveSession, Transport, error) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	live, ok := wc.sessions[recipientID]
	if !ok || live.transport == nil {
		return nil, nil, apperror.SessionNotFound(recipientID)
	}
	return live, live.transport, nil
}
