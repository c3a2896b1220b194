package cloudapi

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

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type graphStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	// failPaths returns 500 for any path containing the key.
	failPaths map[string]bool
}

func newGraphStub() *graphStub {
	return &graphStub{failPaths: make(map[string]bool)}
}

func (g *graphStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
		if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &rec.Body)
		}
		g.requests = append(g.requests, rec)
		failed := false
		for key := range g.failPaths {
			if strings.Contains(r.URL.Path, key) {
				failed = true
			}
		}
		g.mu.Unlock()

		if failed {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"OAuthException","code":100}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.TEST1"}]}`))
		case strings.HasSuffix(r.URL.Path, "/media"):
			_, _ = w.Write([]byte(`{"id":"MEDIA42"}`))
		case strings.Contains(r.URL.Path, "/555000111"):
			_, _ = w.Write([]byte(`{"verified_name":"Acme","display_phone_number":"+1 555-000-1111","quality_rating":"GREEN","id":"555000111"}`))
		default:
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}
}

func (g *graphStub) count(pathPart string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, req := range g.requests {
		if strings.Contains(req.Path, pathPart) {
			n++
		}
	}
	return n
}

func (g *graphStub) last(t *testing.T) recordedRequest {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.requests)
	return g.requests[len(g.requests)-1]
}

type memConnStore struct {
	mu   sync.Mutex
	info map[uint]channel.ProvisioningInfo
	err  error
}

func (s *memConnStore) UpdateProvisioning(id uint, info channel.ProvisioningInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.info == nil {
		s.info = make(map[uint]channel.ProvisioningInfo)
	}
	s.info[id] = info
	return nil
}

func testCloudAdapter(t *testing.T, stub *graphStub, store channel.ConnectionStore) *Adapter {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default().CloudAPI
	cfg.BaseURL = srv.URL
	desc := channel.ConnectionDescriptor{
		ID:   7,
		Type: channel.TypeWhatsAppCloud,
		Credentials: channel.Credentials{
			Token:         "token",
			PhoneNumberID: "555000111",
			BusinessID:    "999888777",
			TwoFactorPIN:  "123456",
		},
	}
	return NewAdapter(desc, store, &cfg, nil)
}

func TestInitialize_ProvisioningWriteBack(t *testing.T) {
	stub := newGraphStub()
	store := &memConnStore{}
	ca := testCloudAdapter(t, stub, store)

	require.NoError(t, ca.Initialize(context.Background()))
	assert.Equal(t, channel.StatusConnected, ca.Status())

	assert.Equal(t, 1, stub.count("subscribed_apps"))
	assert.Equal(t, 1, stub.count("register"))

	info, ok := store.info[7]
	require.True(t, ok, "provisioning info must be written back")
	assert.Equal(t, "555000111", info.PhoneNumberID)
	assert.Equal(t, "+1 555-000-1111", info.PhoneNumber)
}

func TestStatusIsSafeUnderConcurrentReads(t *testing.T) {
	ca := testCloudAdapter(t, newGraphStub(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = ca.Status()
			}
		}()
	}
	for i := 0; i < 25; i++ {
		require.NoError(t, ca.Initialize(context.Background()))
		require.NoError(t, ca.Disconnect(context.Background()))
	}
	wg.Wait()
}

func TestInitialize_ProvisioningFailuresAreWarnings(t *testing.T) {
	stub := newGraphStub()
	stub.failPaths["subscribed_apps"] = true
	stub.failPaths["register"] = true
	ca := testCloudAdapter(t, stub, &memConnStore{})

	require.NoError(t, ca.Initialize(context.Background()),
		"subscription and registration failures must not be fatal")
	assert.Equal(t, channel.StatusConnected, ca.Status())
}

func TestInitialize_ToleratesStoreFailure(t *testing.T) {
	stub := newGraphStub()
	store := &memConnStore{err: assert.AnError}
	ca := testCloudAdapter(t, stub, store)

	require.NoError(t, ca.Initialize(context.Background()),
		"a failing provisioning write-back must not break connectivity")
	assert.Equal(t, channel.StatusConnected, ca.Status())
}

func TestSendText(t *testing.T) {
	stub := newGraphStub()
	ca := testCloudAdapter(t, stub, nil)

	resp, err := ca.SendMessage(context.Background(), message.Text("+55 (11) 99988-7766", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "wamid.TEST1", resp.ID)
	assert.True(t, resp.FromMe)
	assert.Equal(t, "hello", resp.Body)

	last := stub.last(t)
	assert.Equal(t, "text", last.Body["type"])
	assert.Equal(t, "5511999887766", last.Body["to"], "wire recipient is the bare digit string")
}

func TestSendMedia_TwoPhaseUpload(t *testing.T) {
	stub := newGraphStub()
	ca := testCloudAdapter(t, stub, nil)

	resp, err := ca.SendImageMessage(context.Background(), "5511999887766", []byte{0xFF, 0xD8}, "image/jpeg", "look")
	require.NoError(t, err)
	assert.Equal(t, "wamid.TEST1", resp.ID)

	require.Equal(t, 1, stub.count("/media"), "upload must run before the message call")
	last := stub.last(t)
	assert.Equal(t, "image", last.Body["type"])
	img, ok := last.Body["image"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "MEDIA42", img["id"], "message payload references the uploaded media id")
}

func TestEditMessage_ExpiredIsLocalCheck(t *testing.T) {
	stub := newGraphStub()
	ca := testCloudAdapter(t, stub, nil)

	sentAt := time.Now().Add(-16 * time.Minute)
	_, err := ca.EditMessage(context.Background(), "5511999887766", "wamid.OLD", "new body", sentAt)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeMessageTooOld, apperror.CodeOf(err))
	assert.Zero(t, stub.count("/messages"), "expired edits must not reach the network")
}

func TestEditMessage_WithinWindow(t *testing.T) {
	stub := newGraphStub()
	ca := testCloudAdapter(t, stub, nil)

	resp, err := ca.EditMessage(context.Background(), "5511999887766", "wamid.RECENT", "new body", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "new body", resp.Body)
	assert.Equal(t, 1, stub.count("/messages"))
}

func TestDeleteMessage_ExpiredIsLocalCheck(t *testing.T) {
	stub := newGraphStub()
	ca := testCloudAdapter(t, stub, nil)

	err := ca.DeleteMessage(context.Background(), "5511999887766", "wamid.OLD", time.Now().Add(-25*time.Hour))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeMessageTooOld, apperror.CodeOf(err))
	assert.Zero(t, stub.count("/messages"))
}

func TestProfileLookupsReturnNil(t *testing.T) {
	ca := testCloudAdapter(t, newGraphStub(), nil)
	ctx := context.Background()
	assert.Nil(t, ca.GetProfilePicture(ctx, "5511999887766"))
	assert.Nil(t, ca.GetStatus(ctx, "5511999887766"))
	assert.Nil(t, ca.GetProfileInfo(ctx, "5511999887766"))
}

func TestProcessIncomingMessage_Text(t *testing.T) {
	ca := testCloudAdapter(t, newGraphStub(), nil)

	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {
			"contacts": [{"wa_id": "5511999887766", "profile": {"name": "Maria"}}],
			"messages": [{"from": "5511999887766", "id": "wamid.IN1", "timestamp": "1693400000", "type": "text", "text": {"body": "hi there"}}]
		}}]}]
	}`)

	normalized, err := ca.ProcessIncomingMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, normalized)
	assert.Equal(t, "wamid.IN1", normalized.ID)
	assert.Equal(t, "hi there", normalized.Body)
	assert.Equal(t, "5511999887766@s.whatsapp.net", normalized.From)
	assert.False(t, normalized.FromMe)
}

type syncDispatcher struct{}

func (syncDispatcher) Dispatch(_ uint, _ string, fn func()) { fn() }

func TestProcessIncomingMessage_BatchedDelivery(t *testing.T) {
	cfg := config.Default().CloudAPI
	desc := channel.ConnectionDescriptor{
		ID:          7,
		Type:        channel.TypeWhatsAppCloud,
		Credentials: channel.Credentials{Token: "token", PhoneNumberID: "555000111"},
	}
	ca := NewAdapter(desc, nil, &cfg, syncDispatcher{})

	var ids []string
	ca.OnMessage(func(msg message.Normalized) { ids = append(ids, msg.ID) })

	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {
			"contacts": [{"wa_id": "5511999887766", "profile": {"name": "Maria"}}],
			"messages": [
				{"from": "5511999887766", "id": "wamid.IN1", "timestamp": "1693400000", "type": "text", "text": {"body": "first"}},
				{"from": "5511999887766", "id": "wamid.IN2", "timestamp": "1693400001", "type": "text", "text": {"body": "second"}}
			]
		}}]}]
	}`)

	normalized, err := ca.ProcessIncomingMessage(raw)
	require.NoError(t, err)
	require.NotNil(t, normalized)
	assert.Equal(t, "wamid.IN1", normalized.ID)
	assert.Equal(t, []string{"wamid.IN1", "wamid.IN2"}, ids, "every batched event reaches the listeners")
}

func TestProcessIncomingMessage_StatusOnlyYieldsNil(t *testing.T) {
	ca := testCloudAdapter(t, newGraphStub(), nil)

	raw := []byte(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.X","status":"delivered"}]}}]}]}`)
	normalized, err := ca.ProcessIncomingMessage(raw)
	require.NoError(t, err)
	assert.Nil(t, normalized)
}
