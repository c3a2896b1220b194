package message

import (
	"context"
	"time"
)

// Meta is the stored delivery metadata for one message: enough to rebuild a
// protocol-correct quote reference later (remote address plus author).
type Meta struct {
	ConnectionID uint      `json:"connection_id"`
	MessageID    string    `json:"message_id"`
	ChatJID      string    `json:"chat_jid"`
	Sender       string    `json:"sender"`
	FromMe       bool      `json:"from_me"`
	SentAt       time.Time `json:"sent_at"`
}

// MetaStore persists message metadata. Lookups may legitimately miss (pruned
// rows, messages from before the connection existed); callers degrade instead
// of failing.
type MetaStore interface {
	Save(ctx context.Context, meta Meta) error
	Get(ctx context.Context, connectionID uint, messageID string) (Meta, bool)
	// PruneOlderThan drops rows older than the cutoff.
	PruneOlderThan(ctx context.Context, cutoff time.Time) error
}
