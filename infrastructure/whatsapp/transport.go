package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/omnidesk/omnibridge/config"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Transport is the slice of the whatsmeow client the adapter actually uses.
// Narrowing it here keeps the reconnection controller testable against fakes.
type Transport interface {
	IsConnected() bool
	IsLoggedIn() bool
	Connect() error
	Disconnect()
	OwnJID() types.JID
	SendMessage(ctx context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error)
	Upload(ctx context.Context, data []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
	BuildRevoke(chat, sender types.JID, id types.MessageID) *waE2E.Message
	MarkRead(ctx context.Context, ids []types.MessageID, chat types.JID) error
	SendChatPresence(ctx context.Context, jid types.JID, state types.ChatPresence, media types.ChatPresenceMedia) error
	GetProfilePictureInfo(ctx context.Context, jid types.JID, params *whatsmeow.GetProfilePictureParams) (*types.ProfilePictureInfo, error)
	GetUserInfo(ctx context.Context, jids []types.JID) (map[types.JID]types.UserInfo, error)
	AddEventHandler(handler whatsmeow.EventHandler) uint32
	RemoveEventHandler(id uint32) bool
}

// ClientProvider owns the shared pool of live whatsmeow clients. The adapter
// re-acquires its handle through it during reinitialization; acquiring is
// idempotent and never constructs a second competing client for the same id.
type ClientProvider interface {
	AcquireClient(ctx context.Context, connectionID uint) (Transport, error)
}

// meowTransport adapts *whatsmeow.Client to the Transport interface.
type meowTransport struct {
	*whatsmeow.Client
}

func (t *meowTransport) OwnJID() types.JID {
	if t.Store != nil && t.Store.ID != nil {
		return *t.Store.ID
	}
	return types.EmptyJID
}

func (t *meowTransport) MarkRead(ctx context.Context, ids []types.MessageID, chat types.JID) error {
	return t.Client.MarkRead(ctx, ids, nowFunc(), chat, t.OwnJID())
}

// SendMessage narrows the client's variadic signature to the Transport shape.
func (t *meowTransport) SendMessage(ctx context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error) {
	return t.Client.SendMessage(ctx, to, msg)
}

var _ Transport = (*meowTransport)(nil)

// PoolProvider is the production ClientProvider: one whatsmeow client per
// connection id, backed by a per-connection sqlite device store.
type PoolProvider struct {
	cfg *config.WhatsAppConfig

	mu      sync.Mutex
	clients map[uint]*meowTransport
}

func NewPoolProvider(cfg *config.WhatsAppConfig) *PoolProvider {
	return &PoolProvider{
		cfg:     cfg,
		clients: make(map[uint]*meowTransport),
	}
}

// AcquireClient returns the current shared client handle for the connection,
// constructing it on first use. Safe for concurrent reinitialization races:
// both callers get the same handle.
func (p *PoolProvider) AcquireClient(ctx context.Context, connectionID uint) (Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cli, ok := p.clients[connectionID]; ok {
		return cli, nil
	}

	if err := os.MkdirAll(p.cfg.StoreDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	dbPath := filepath.Join(p.cfg.StoreDir, fmt.Sprintf("whatsapp-%d.db", connectionID))
	dbLog := waLog.Stdout(fmt.Sprintf("DB-%d", connectionID), p.cfg.LogLevel, true)

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to init device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if device == nil {
		device = container.NewDevice()
	}

	clientLog := waLog.Stdout(fmt.Sprintf("Client-%d", connectionID), p.cfg.LogLevel, true)
	client := whatsmeow.NewClient(device, clientLog)
	client.EnableAutoReconnect = true
	client.AutoTrustIdentity = true

	cli := &meowTransport{Client: client}
	p.clients[connectionID] = cli

	logrus.WithField("connection_id", connectionID).Info("[WHATSAPP] Client created from device store")
	return cli, nil
}

// ReleaseClient drops a connection's client from the pool, disconnecting it.
func (p *PoolProvider) ReleaseClient(connectionID uint) {
	p.mu.Lock()
	cli, ok := p.clients[connectionID]
	delete(p.clients, connectionID)
	p.mu.Unlock()

	if ok {
		cli.Disconnect()
		logrus.WithField("connection_id", connectionID).Info("[WHATSAPP] Client released")
	}
}
