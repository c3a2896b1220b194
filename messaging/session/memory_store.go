package session

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is the single-process session store. It is the default when no
// valkey address is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]WebChatSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]WebChatSession)}
}

func memoryKey(connectionID uint, recipientID string) string {
	return fmt.Sprintf("%d:%s", connectionID, recipientID)
}

func (s *MemoryStore) Save(_ context.Context, connectionID uint, sess WebChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[memoryKey(connectionID, sess.RecipientID)] = sess
	return nil
}

func (s *MemoryStore) Get(_ context.Context, connectionID uint, recipientID string) (WebChatSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[memoryKey(connectionID, recipientID)]
	return sess, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, connectionID uint, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, memoryKey(connectionID, recipientID))
	return nil
}
