package meta

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/domain/message"
	"github.com/omnidesk/omnibridge/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graphStub struct {
	mu       sync.Mutex
	requests []map[string]interface{}
	paths    []string
}

func (g *graphStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.paths = append(g.paths, r.URL.Path)
		if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
			raw, _ := io.ReadAll(r.Body)
			var body map[string]interface{}
			_ = json.Unmarshal(raw, &body)
			g.requests = append(g.requests, body)
		}
		g.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			_, _ = w.Write([]byte(`{"recipient_id":"900100","message_id":"m_OUT1"}`))
		case strings.HasSuffix(r.URL.Path, "/message_attachments"):
			_, _ = w.Write([]byte(`{"attachment_id":"ATT9"}`))
		default:
			_, _ = w.Write([]byte(`{"id":"777","name":"Acme Support"}`))
		}
	}
}

func (g *graphStub) lastMessage(t *testing.T) map[string]interface{} {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.requests)
	return g.requests[len(g.requests)-1]
}

func testMetaAdapter(t *testing.T, stub *graphStub, channelType channel.ChannelType) *Adapter {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default().Meta
	cfg.GraphBaseURL = srv.URL
	desc := channel.ConnectionDescriptor{
		ID:   3,
		Type: channelType,
		Credentials: channel.Credentials{
			Token:       "token",
			PageID:      "777",
			InstagramID: "888",
		},
	}
	if channelType == channel.TypeInstagram {
		return NewInstagramAdapter(desc, &cfg, nil)
	}
	return NewFacebookAdapter(desc, &cfg, nil)
}

func TestInitialize(t *testing.T) {
	ma := testMetaAdapter(t, &graphStub{}, channel.TypeFacebook)
	require.NoError(t, ma.Initialize(context.Background()))
	assert.Equal(t, channel.StatusConnected, ma.Status())
}

func TestStatusIsSafeUnderConcurrentReads(t *testing.T) {
	ma := testMetaAdapter(t, &graphStub{}, channel.TypeFacebook)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = ma.Status()
			}
		}()
	}
	for i := 0; i < 25; i++ {
		require.NoError(t, ma.Initialize(context.Background()))
		require.NoError(t, ma.Disconnect(context.Background()))
	}
	wg.Wait()
}

func TestSendText(t *testing.T) {
	stub := &graphStub{}
	ma := testMetaAdapter(t, stub, channel.TypeFacebook)

	resp, err := ma.SendMessage(context.Background(), message.Text("  900100  ", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "m_OUT1", resp.ID)
	assert.True(t, resp.FromMe)
	assert.Equal(t, "hello", resp.Body)
	assert.Equal(t, "900100", resp.To, "platform ids are trimmed, nothing more")

	last := stub.lastMessage(t)
	msg, ok := last["message"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hello", msg["text"])
}

func TestSendButtons_Unsupported(t *testing.T) {
	ma := testMetaAdapter(t, &graphStub{}, channel.TypeFacebook)

	req := message.SendRequest{To: "900100", Kind: message.KindButtons, Body: "pick", Buttons: []message.Button{{ID: "a", Label: "A"}}}
	_, err := ma.SendMessage(context.Background(), req)
	assert.Equal(t, apperror.CodeUnsupportedContent, apperror.CodeOf(err))
}

func TestFacebookDocumentIsFileAttachment(t *testing.T) {
	stub := &graphStub{}
	ma := testMetaAdapter(t, stub, channel.TypeFacebook)

	req := message.WithMedia("900100", message.Media{
		Type: message.MediaTypeDocument, URL: "https://files.example.com/invoice.pdf", FileName: "invoice.pdf",
	})
	_, err := ma.SendMessage(context.Background(), req)
	require.NoError(t, err)

	msg := stub.lastMessage(t)["message"].(map[string]interface{})
	att := msg["attachment"].(map[string]interface{})
	assert.Equal(t, "file", att["type"])
}

func TestInstagramDocumentDegradesToLinkText(t *testing.T) {
	stub := &graphStub{}
	ma := testMetaAdapter(t, stub, channel.TypeInstagram)

	req := message.WithMedia("900100", message.Media{
		Type: message.MediaTypeDocument, URL: "https://files.example.com/invoice.pdf", FileName: "invoice.pdf",
	})
	resp, err := ma.SendMessage(context.Background(), req)
	require.NoError(t, err, "instagram documents must degrade, never fail")
	assert.Contains(t, resp.Body, "invoice.pdf")
	assert.Contains(t, resp.Body, "https://files.example.com/invoice.pdf")

	msg := stub.lastMessage(t)["message"].(map[string]interface{})
	text, ok := msg["text"].(string)
	require.True(t, ok, "the wire payload must be a text message")
	assert.Contains(t, text, "invoice.pdf")
}

func TestInstagramBufferDocumentIsRejected(t *testing.T) {
	stub := &graphStub{}
	ma := testMetaAdapter(t, stub, channel.TypeInstagram)

	req := message.WithMedia("900100", message.Media{
		Type: message.MediaTypeDocument, Data: []byte("%PDF-1.4"), FileName: "invoice.pdf",
	})
	_, err := ma.SendMessage(context.Background(), req)
	assert.Equal(t, apperror.CodeUnsupportedContent, apperror.CodeOf(err))
	assert.Empty(t, stub.paths, "nothing must reach the graph api")
}

func TestInstagramImageStillSendsAsAttachment(t *testing.T) {
	stub := &graphStub{}
	ma := testMetaAdapter(t, stub, channel.TypeInstagram)

	req := message.WithMedia("900100", message.Media{Type: message.MediaTypeImage, URL: "https://img.example.com/x.jpg"})
	_, err := ma.SendMessage(context.Background(), req)
	require.NoError(t, err)

	msg := stub.lastMessage(t)["message"].(map[string]interface{})
	att := msg["attachment"].(map[string]interface{})
	assert.Equal(t, "image", att["type"])
}

func TestSendBufferMediaUploadsAttachment(t *testing.T) {
	stub := &graphStub{}
	ma := testMetaAdapter(t, stub, channel.TypeFacebook)

	_, err := ma.SendImageMessage(context.Background(), "900100", []byte{0xFF, 0xD8}, "image/jpeg", "")
	require.NoError(t, err)

	msg := stub.lastMessage(t)["message"].(map[string]interface{})
	att := msg["attachment"].(map[string]interface{})
	payload := att["payload"].(map[string]interface{})
	assert.Equal(t, "ATT9", payload["attachment_id"], "payload references the uploaded attachment id")
}

func TestEditDeleteNotSupported(t *testing.T) {
	ma := testMetaAdapter(t, &graphStub{}, channel.TypeFacebook)
	ctx := context.Background()

	_, err := ma.EditMessage(ctx, "900100", "m_X", "new", time.Time{})
	assert.Equal(t, apperror.CodeEditNotSupported, apperror.CodeOf(err))

	err = ma.DeleteMessage(ctx, "900100", "m_X", time.Time{})
	assert.Equal(t, apperror.CodeDeleteNotSupported, apperror.CodeOf(err))
}

func TestProfileLookupFailureReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.Default().Meta
	cfg.GraphBaseURL = srv.URL
	desc := channel.ConnectionDescriptor{ID: 3, Type: channel.TypeFacebook, Credentials: channel.Credentials{Token: "t", PageID: "777"}}
	ma := NewFacebookAdapter(desc, &cfg, nil)

	assert.Nil(t, ma.GetProfileInfo(context.Background(), "900100"))
	assert.Nil(t, ma.GetProfilePicture(context.Background(), "900100"))
}

type syncDispatcher struct{}

func (syncDispatcher) Dispatch(_ uint, _ string, fn func()) { fn() }

func TestProcessIncomingMessage_Text(t *testing.T) {
	cfg := config.Default().Meta
	desc := channel.ConnectionDescriptor{ID: 3, Type: channel.TypeFacebook, Credentials: channel.Credentials{Token: "t", PageID: "777"}}
	ma := NewFacebookAdapter(desc, &cfg, syncDispatcher{})

	var received []message.Normalized
	ma.OnMessage(func(msg message.Normalized) { received = append(received, msg) })

	raw := []byte(`{
		"object": "page",
		"entry": [{"messaging": [{
			"sender": {"id": "900100"},
			"recipient": {"id": "777"},
			"timestamp": 1693400000000,
			"message": {"mid": "m_IN1", "text": "hi"}
		}]}]
	}`)
	normalized, err := ma.ProcessIncomingMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, normalized)
	assert.Equal(t, "m_IN1", normalized.ID)
	assert.Equal(t, "900100", normalized.From)
	assert.Equal(t, "hi", normalized.Body)
	assert.False(t, normalized.FromMe)
	require.Len(t, received, 1, "listeners observe the pushed message")
}

func TestProcessIncomingMessage_BatchedDelivery(t *testing.T) {
	cfg := config.Default().Meta
	desc := channel.ConnectionDescriptor{ID: 3, Type: channel.TypeFacebook, Credentials: channel.Credentials{Token: "t", PageID: "777"}}
	ma := NewFacebookAdapter(desc, &cfg, syncDispatcher{})

	var ids []string
	ma.OnMessage(func(msg message.Normalized) { ids = append(ids, msg.ID) })

	raw := []byte(`{
		"object": "page",
		"entry": [{"messaging": [
			{"sender": {"id": "900100"}, "recipient": {"id": "777"}, "timestamp": 1693400000000,
			 "message": {"mid": "m_IN1", "text": "first"}},
			{"sender": {"id": "900100"}, "recipient": {"id": "777"}, "timestamp": 1693400001000,
			 "message": {"mid": "m_IN2", "text": "second"}}
		]}]
	}`)
	normalized, err := ma.ProcessIncomingMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, normalized)
	assert.Equal(t, "m_IN1", normalized.ID)
	assert.Equal(t, []string{"m_IN1", "m_IN2"}, ids, "every batched event reaches the listeners")
}

func TestProcessIncomingMessage_DeliveryReceiptYieldsNil(t *testing.T) {
	ma := testMetaAdapter(t, &graphStub{}, channel.TypeFacebook)

	raw := []byte(`{"object":"page","entry":[{"messaging":[{"sender":{"id":"900100"},"delivery":{"mids":["m_X"]}}]}]}`)
	normalized, err := ma.ProcessIncomingMessage(raw)
	require.NoError(t, err)
	assert.Nil(t, normalized)
}
