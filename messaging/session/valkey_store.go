package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/omnidesk/omnibridge/infrastructure/valkey"
)

// ValkeyStore keeps web-chat session metadata in Valkey so visitor identity
// survives process restarts and is shared across nodes. Entries expire on
// their own after the TTL; the adapter's grace-window cleanup handles the
// live-transport side.
type ValkeyStore struct {
	client *valkey.Client
	ttl    time.Duration
}

// NewValkeyStore builds a store whose entries outlive the grace window by a
// generous margin, so a reconnecting visitor always finds their metadata.
func NewValkeyStore(client *valkey.Client, graceWindow time.Duration) *ValkeyStore {
	return &ValkeyStore{client: client, ttl: graceWindow * 12}
}

func (s *ValkeyStore) key(connectionID uint, recipientID string) string {
	return s.client.Key("webchat", fmt.Sprintf("%d", connectionID), recipientID)
}

func (s *ValkeyStore) Save(ctx context.Context, connectionID uint, sess WebChatSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	cmd := s.client.Inner().B().Set().
		Key(s.key(connectionID, sess.RecipientID)).
		Value(string(data)).
		Ex(s.ttl).
		Build()
	if err := s.client.Inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Get(ctx context.Context, connectionID uint, recipientID string) (WebChatSession, bool, error) {
	cmd := s.client.Inner().B().Get().Key(s.key(connectionID, recipientID)).Build()
	data, err := s.client.Inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return WebChatSession{}, false, nil
		}
		return WebChatSession{}, false, fmt.Errorf("failed to get session: %w", err)
	}

	var sess WebChatSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return WebChatSession{}, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return sess, true, nil
}

func (s *ValkeyStore) Delete(ctx context.Context, connectionID uint, recipientID string) error {
	cmd := s.client.Inner().B().Del().Key(s.key(connectionID, recipientID)).Build()
	if err := s.client.Inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

var _ Store = (*ValkeyStore)(nil)
var _ Store = (*MemoryStore)(nil)
