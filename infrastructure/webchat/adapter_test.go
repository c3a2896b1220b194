package webchat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/messaging/session"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu     sync.Mutex
	events []string
	data   []interface{}
	closed bool
}

func (f *fakeTransport) Send(event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.data = append(f.data, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func testWebChatAdapter(grace time.Duration) *Adapter {
	cfg := config.WebChatConfig{SessionGraceWindow: grace}
	desc := channel.ConnectionDescriptor{
		ID:   9,
		Type: channel.TypeWebChat,
		Name: "support-widget",
		Credentials: channel.Credentials{
			GreetingMessage: "Hi! How can we help?",
		},
	}
	wc := NewAdapter(desc, nil, &cfg, nil)
	_ = wc.Initialize(context.Background())
	return wc
}

func TestRegisterTransport_MintsSessionAndGreets(t *testing.T) {
	wc := testWebChatAdapter(time.Minute)
	tr := &fakeTransport{}

	sess, err := wc.RegisterTransport(context.Background(), tr, VisitorInfo{SessionID: "sock-1", Name: "Ana"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.RecipientID)
	assert.Equal(t, "Ana", sess.VisitorName)

	events := tr.eventNames()
	require.Len(t, events, 1)
	assert.Equal(t, "session_start", events[0])

	payload := tr.data[0].(map[string]interface{})
	assert.Equal(t, sess.RecipientID, payload["recipient_id"])
	assert.Equal(t, "Hi! How can we help?", payload["greeting"])
}

func TestStatusIsSafeUnderConcurrentReads(t *testing.T) {
	wc := testWebChatAdapter(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = wc.Status()
			}
		}()
	}
	for i := 0; i < 25; i++ {
		require.NoError(t, wc.Initialize(context.Background()))
		require.NoError(t, wc.Disconnect(context.Background()))
	}
	wg.Wait()
}

func TestSendText(t *testing.T) {
	wc := testWebChatAdapter(time.Minute)
	tr := &fakeTransport{}
	sess, err := wc.RegisterTransport(context.Background(), tr, VisitorInfo{SessionID: "sock-1"})
	require.NoError(t, err)

	resp, err := wc.SendMessage(context.Background(), message.Text(sess.RecipientID, "hello visitor"))
	require.NoError(t, err)
	assert.True(t, resp.FromMe)
	assert.Equal(t, "hello visitor", resp.Body)
	assert.Equal(t, sess.RecipientID, resp.To)
	assert.Contains(t, tr.eventNames(), "message")
}

func TestSendToUnknownSession(t *testing.T) {
	wc := testWebChatAdapter(time.Minute)

	_, err := wc.SendMessage(context.Background(), message.Text("nope", "hello"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeSessionNotFound, apperror.CodeOf(err))
}

func TestReconnectWithinGracePreservesIdentity(t *testing.T) {
	wc := testWebChatAdapter(200 * time.Millisecond)
	first := &fakeTransport{}
	sess, err := wc.RegisterTransport(context.Background(), first, VisitorInfo{
		SessionID: "sock-1", Name: "Ana", Email: "ana@example.com",
	})
	require.NoError(t, err)

	wc.UnregisterTransport(sess.RecipientID)

	second := &fakeTransport{}
	resumed, err := wc.RegisterTransport(context.Background(), second, VisitorInfo{
		RecipientID: sess.RecipientID, SessionID: "sock-2",
	})
	require.NoError(t, err)

	assert.Equal(t, sess.RecipientID, resumed.RecipientID, "recipient id survives reconnect")
	assert.Equal(t, "Ana", resumed.VisitorName, "visitor fields survive reconnect")
	assert.Equal(t, "ana@example.com", resumed.VisitorEmail)

	// the pending cleanup must be cancelled, not evict the live session
	time.Sleep(350 * time.Millisecond)
	_, err = wc.SendMessage(context.Background(), message.Text(sess.RecipientID, "still here"))
	require.NoError(t, err)
}

func TestSessionExpiresAfterGraceWindow(t *testing.T) {
	wc := testWebChatAdapter(50 * time.Millisecond)
	tr := &fakeTransport{}
	sess, err := wc.RegisterTransport(context.Background(), tr, VisitorInfo{SessionID: "sock-1"})
	require.NoError(t, err)

	wc.UnregisterTransport(sess.RecipientID)
	time.Sleep(150 * time.Millisecond)

	_, err = wc.SendMessage(context.Background(), message.Text(sess.RecipientID, "anyone?"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeSessionNotFound, apperror.CodeOf(err))
}

func TestHandleVisitorMessage(t *testing.T) {
	cfg := config.WebChatConfig{SessionGraceWindow: time.Minute}
	desc := channel.ConnectionDescriptor{ID: 9, Type: channel.TypeWebChat, Name: "support-widget"}
	wc := NewAdapter(desc, nil, &cfg, syncDispatcher{})
	require.NoError(t, wc.Initialize(context.Background()))

	var received []message.Normalized
	wc.OnMessage(func(msg message.Normalized) { received = append(received, msg) })

	sess, err := wc.RegisterTransport(context.Background(), &fakeTransport{}, VisitorInfo{SessionID: "sock-1"})
	require.NoError(t, err)

	normalized, err := wc.HandleVisitorMessage(sess.RecipientID, "need help", nil)
	require.NoError(t, err)
	assert.Equal(t, sess.RecipientID, normalized.From)
	assert.False(t, normalized.FromMe)
	require.Len(t, received, 1)
	assert.Equal(t, "need help", received[0].Body)
}

func TestVisitorActivityIsPersisted(t *testing.T) {
	cfg := config.WebChatConfig{SessionGraceWindow: time.Minute}
	desc := channel.ConnectionDescriptor{ID: 9, Type: channel.TypeWebChat, Name: "support-widget"}
	store := session.NewMemoryStore()
	wc := NewAdapter(desc, store, &cfg, syncDispatcher{})
	require.NoError(t, wc.Initialize(context.Background()))

	ctx := context.Background()
	sess, err := wc.RegisterTransport(ctx, &fakeTransport{}, VisitorInfo{SessionID: "sock-1"})
	require.NoError(t, err)

	stored, ok, err := store.Get(ctx, 9, sess.RecipientID)
	require.NoError(t, err)
	require.True(t, ok)
	registeredAt := stored.LastActivity
	assert.False(t, registeredAt.IsZero())

	time.Sleep(5 * time.Millisecond)
	_, err = wc.HandleVisitorMessage(sess.RecipientID, "still here", nil)
	require.NoError(t, err)

	stored, ok, err = store.Get(ctx, 9, sess.RecipientID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.LastActivity.After(registeredAt),
		"inbound traffic must refresh the stored timestamp")
}

func TestHandleVisitorMessage_UnknownSession(t *testing.T) {
	wc := testWebChatAdapter(time.Minute)
	_, err := wc.HandleVisitorMessage("ghost", "hello", nil)
	assert.Equal(t, apperror.CodeSessionNotFound, apperror.CodeOf(err))
}

func TestMediaRequiresURL(t *testing.T) {
	wc := testWebChatAdapter(time.Minute)
	sess, err := wc.RegisterTransport(context.Background(), &fakeTransport{}, VisitorInfo{SessionID: "sock-1"})
	require.NoError(t, err)

	req := message.WithMedia(sess.RecipientID, message.Media{Type: message.MediaTypeImage, Data: []byte{1}})
	_, err = wc.SendMessage(context.Background(), req)
	assert.Equal(t, apperror.CodeUnsupportedContent, apperror.CodeOf(err))

	req = message.WithMedia(sess.RecipientID, message.Media{Type: message.MediaTypeImage, URL: "https://img.example.com/x.jpg"})
	_, err = wc.SendMessage(context.Background(), req)
	require.NoError(t, err)
}

func TestDisconnectClosesTransports(t *testing.T) {
	wc := testWebChatAdapter(time.Minute)
	tr := &fakeTransport{}
	sess, err := wc.RegisterTransport(context.Background(), tr, VisitorInfo{SessionID: "sock-1"})
	require.NoError(t, err)

	require.NoError(t, wc.Disconnect(context.Background()))
	assert.True(t, tr.closed)
	assert.Equal(t, channel.StatusDisconnected, wc.Status())

	_, err = wc.SendMessage(context.Background(), message.Text(sess.RecipientID, "hello"))
	assert.Equal(t, apperror.CodeSessionNotFound, apperror.CodeOf(err))
}

type syncDispatcher struct{}

func (syncDispatcher) Dispatch(_ uint, _ string, fn func()) { fn() }
