package session

import (
	"context"
	"time"
)

// WebChatSession is the per-visitor state of one web-chat conversation. The
// recipient id is the stable address the rest of the platform sends to; it
// survives transport reconnects within the grace window.
type WebChatSession struct {
	SessionID    string    `json:"session_id"`
	RecipientID  string    `json:"recipient_id"`
	VisitorName  string    `json:"visitor_name,omitempty"`
	VisitorEmail string    `json:"visitor_email,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Store persists web-chat session metadata keyed by connection id and
// recipient id. The live transport handle never goes through here; only the
// metadata needed to restore a visitor identity on reconnect.
type Store interface {
	Save(ctx context.Context, connectionID uint, s WebChatSession) error
	Get(ctx context.Context, connectionID uint, recipientID string) (WebChatSession, bool, error)
	Delete(ctx context.Context, connectionID uint, recipientID string) error
}
