package whatsapp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	loggedIn  bool

	connectErr error
	sendErrs   []error // popped per SendMessage call; nil entry means success
	sendCalls  int
	lastMsg    *waE2E.Message
	lastTo     types.JID

	connectCalls int
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) IsLoggedIn() bool { return f.loggedIn }

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeTransport) OwnJID() types.JID {
	return types.NewJID("15550001111", types.DefaultUserServer)
}

func (f *fakeTransport) SendMessage(_ context.Context, to types.JID, msg *waE2E.Message) (whatsmeow.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	f.lastMsg = msg
	f.lastTo = to
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return whatsmeow.SendResponse{}, err
		}
	}
	return whatsmeow.SendResponse{ID: "MSG1", Timestamp: time.Now()}, nil
}

func (f *fakeTransport) Upload(context.Context, []byte, whatsmeow.MediaType) (whatsmeow.UploadResponse, error) {
	return whatsmeow.UploadResponse{URL: "https://mmg.whatsapp.net/x", DirectPath: "/x"}, nil
}

func (f *fakeTransport) BuildRevoke(chat, sender types.JID, id types.MessageID) *waE2E.Message {
	return &waE2E.Message{}
}

func (f *fakeTransport) MarkRead(context.Context, []types.MessageID, types.JID) error { return nil }

func (f *fakeTransport) SendChatPresence(context.Context, types.JID, types.ChatPresence, types.ChatPresenceMedia) error {
	return nil
}

func (f *fakeTransport) GetProfilePictureInfo(context.Context, types.JID, *whatsmeow.GetProfilePictureParams) (*types.ProfilePictureInfo, error) {
	return nil, errors.New("not supported in fake")
}

func (f *fakeTransport) GetUserInfo(context.Context, []types.JID) (map[types.JID]types.UserInfo, error) {
	return nil, errors.New("not supported in fake")
}

func (f *fakeTransport) AddEventHandler(whatsmeow.EventHandler) uint32 { return 1 }
func (f *fakeTransport) RemoveEventHandler(uint32) bool               { return true }

type fakeProvider struct {
	mu       sync.Mutex
	cli      *fakeTransport
	acquires int
	err      error
	// onAcquire lets tests flip transport state at reinitialization time.
	onAcquire func(*fakeTransport)
}

func (p *fakeProvider) AcquireClient(_ context.Context, _ uint) (Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquires++
	if p.err != nil {
		return nil, p.err
	}
	if p.onAcquire != nil {
		p.onAcquire(p.cli)
	}
	return p.cli, nil
}

type memMetaStore struct {
	mu    sync.Mutex
	metas map[string]message.Meta
}

func newMemMetaStore() *memMetaStore {
	return &memMetaStore{metas: make(map[string]message.Meta)}
}

func (s *memMetaStore) Save(_ context.Context, meta message.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[meta.MessageID] = meta
	return nil
}

func (s *memMetaStore) Get(_ context.Context, _ uint, messageID string) (message.Meta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.metas[messageID]
	return meta, ok
}

func (s *memMetaStore) PruneOlderThan(context.Context, time.Time) error { return nil }

func testConfig() *config.WhatsAppConfig {
	cfg := config.Default().WhatsApp
	cfg.RetryBackoff = time.Millisecond
	return &cfg
}

func testAdapter(cli *fakeTransport, provider *fakeProvider) *Adapter {
	desc := channel.ConnectionDescriptor{ID: 1, Type: channel.TypeWhatsApp}
	wa := NewAdapter(desc, provider, newMemMetaStore(), testConfig(), nil)
	wa.client = cli
	wa.status = channel.StatusConnected
	return wa
}

func TestSendText_Success(t *testing.T) {
	cli := &fakeTransport{connected: true}
	wa := testAdapter(cli, &fakeProvider{cli: cli})

	resp, err := wa.SendMessage(context.Background(), message.Text("55119988(77)66", "hello there"))
	require.NoError(t, err)

	assert.Equal(t, "MSG1", resp.ID)
	assert.True(t, resp.FromMe)
	assert.Equal(t, "hello there", resp.Body)
	assert.Equal(t, "55119988776"+"6@s.whatsapp.net", resp.To)
	assert.Equal(t, 1, cli.sendCalls)
}

func TestSendText_InvalidRecipientBeforeNetworkIO(t *testing.T) {
	cli := &fakeTransport{connected: true}
	wa := testAdapter(cli, &fakeProvider{cli: cli})

	_, err := wa.SendMessage(context.Background(), message.Text("", "hi"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidRecipient, apperror.CodeOf(err))
	assert.Zero(t, cli.sendCalls, "no network call may happen for an invalid recipient")
}

func TestSend_ReadinessCheckReinitializesOnce(t *testing.T) {
	cli := &fakeTransport{connected: false}
	provider := &fakeProvider{cli: cli, onAcquire: func(f *fakeTransport) {
		// Reinitialization hands back a handle that connects fine.
		f.connectErr = nil
	}}
	wa := testAdapter(cli, provider)

	resp, err := wa.SendMessage(context.Background(), message.Text("5511999887766", "hi"))
	require.NoError(t, err, "send must succeed after one internal reinitialization")
	assert.Equal(t, "MSG1", resp.ID)
	assert.Equal(t, 1, provider.acquires)
}

func TestSend_TransportStaysDead_NoSecondRetry(t *testing.T) {
	cli := &fakeTransport{connected: false, connectErr: errors.New("websocket not connected")}
	provider := &fakeProvider{cli: cli}
	wa := testAdapter(cli, provider)

	_, err := wa.SendMessage(context.Background(), message.Text("5511999887766", "hi"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeSocketNotAvailable, apperror.CodeOf(err))
	assert.Equal(t, 1, provider.acquires, "exactly one reinitialization attempt")
	assert.Zero(t, cli.sendCalls)
}

func TestSend_ClosedConnRetriesExactlyOnce(t *testing.T) {
	cli := &fakeTransport{
		connected: true,
		sendErrs:  []error{errors.New("websocket disconnected"), nil},
	}
	provider := &fakeProvider{cli: cli}
	wa := testAdapter(cli, provider)

	resp, err := wa.SendMessage(context.Background(), message.Text("5511999887766", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "MSG1", resp.ID)
	assert.Equal(t, 2, cli.sendCalls, "original send plus one retry")
	assert.Equal(t, 1, provider.acquires)
}

func TestSend_SecondFailurePropagatesUnmodified(t *testing.T) {
	permanent := errors.New("websocket disconnected")
	cli := &fakeTransport{
		connected: true,
		sendErrs:  []error{permanent, permanent},
	}
	wa := testAdapter(cli, &fakeProvider{cli: cli})

	_, err := wa.SendMessage(context.Background(), message.Text("5511999887766", "hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, permanent, "second failure must propagate unmodified")
	assert.Equal(t, 2, cli.sendCalls, "never more than one retry")
}

func TestSend_NonTransportErrorNotRetried(t *testing.T) {
	sendErr := errors.New("server returned 403")
	cli := &fakeTransport{connected: true, sendErrs: []error{sendErr}}
	wa := testAdapter(cli, &fakeProvider{cli: cli})

	_, err := wa.SendMessage(context.Background(), message.Text("5511999887766", "hi"))
	require.Error(t, err)
	assert.Equal(t, 1, cli.sendCalls, "non-transport errors are not retried")
}

func TestQuoteContext_ResolvesStoredMetadata(t *testing.T) {
	cli := &fakeTransport{connected: true}
	wa := testAdapter(cli, &fakeProvider{cli: cli})
	require.NoError(t, wa.metaStore.Save(context.Background(), message.Meta{
		ConnectionID: 1,
		MessageID:    "QUOTED1",
		ChatJID:      "5511999887766@s.whatsapp.net",
		Sender:       "5511999887766@s.whatsapp.net",
	}))

	req := message.Text("5522000111222", "reply")
	req.QuoteID = "QUOTED1"
	_, err := wa.SendMessage(context.Background(), req)
	require.NoError(t, err)

	ctxInfo := cli.lastMsg.GetExtendedTextMessage().GetContextInfo()
	require.NotNil(t, ctxInfo)
	assert.Equal(t, "QUOTED1", ctxInfo.GetStanzaID())
	assert.Equal(t, "5511999887766@s.whatsapp.net", ctxInfo.GetParticipant())
}

func TestQuoteContext_MissDegradesToMinimalQuote(t *testing.T) {
	cli := &fakeTransport{connected: true}
	wa := testAdapter(cli, &fakeProvider{cli: cli})

	req := message.Text("5522000111222", "reply")
	req.QuoteID = "UNKNOWN"
	_, err := wa.SendMessage(context.Background(), req)
	require.NoError(t, err, "metadata miss must not fail the send")

	ctxInfo := cli.lastMsg.GetExtendedTextMessage().GetContextInfo()
	require.NotNil(t, ctxInfo)
	assert.Equal(t, "UNKNOWN", ctxInfo.GetStanzaID())
	assert.Equal(t, "5522000111222@s.whatsapp.net", ctxInfo.GetParticipant())
}

func TestEditMessage_NotSupported(t *testing.T) {
	cli := &fakeTransport{connected: true}
	wa := testAdapter(cli, &fakeProvider{cli: cli})

	_, err := wa.EditMessage(context.Background(), "5511999887766", "MSG1", "new", time.Now())
	assert.Equal(t, apperror.CodeEditNotSupported, apperror.CodeOf(err))
}

func TestSupports(t *testing.T) {
	wa := testAdapter(&fakeTransport{}, &fakeProvider{})
	assert.True(t, wa.Supports(message.KindText))
	assert.True(t, wa.Supports(message.KindButtons))
	assert.True(t, wa.Supports(message.KindList))
	assert.False(t, wa.Supports(message.KindTemplate))
}

func TestUnsupportedKindFailsWithoutNetworkIO(t *testing.T) {
	cli := &fakeTransport{connected: true}
	wa := testAdapter(cli, &fakeProvider{cli: cli})

	req := message.SendRequest{To: "5511999887766", Kind: message.KindTemplate, Template: &message.Template{Name: "x", Language: "en"}}
	_, err := wa.SendMessage(context.Background(), req)
	assert.Equal(t, apperror.CodeUnsupportedContent, apperror.CodeOf(err))
	assert.Zero(t, cli.sendCalls)
}
