// Package conversation provides the persistence layer for conversation and
// message rows: a thread-safe in-memory store for development and tests, and
// a SQLite-backed store for single-node deployments. Both implement the
// narrow repository interfaces in core.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentgraph/core"
)

// InMemoryStore keeps conversations and messages in process memory. Safe for
// concurrent use.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]core.Conversation
	messages      map[string][]core.Message
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: map[string]core.Conversation{},
		messages:      map[string][]core.Message{},
	}
}

// Get implements core.ConversationStore.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
	}
	return &conv, nil
}

// CreateOrGet implements core.ConversationStore.
func (s *InMemoryStore) CreateOrGet(_ context.Context, conv *core.Conversation) (*core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conversations[conv.ID]; ok {
		out := existing
		return &out, nil
	}
	stored := *conv
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.conversations[stored.ID] = stored
	out := stored
	return &out, nil
}

// Update implements core.ConversationStore.
func (s *InMemoryStore) Update(_ context.Context, conv *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrConversationNotFound, conv.ID)
	}
	stored := *conv
	stored.UpdatedAt = time.Now().UTC()
	s.conversations[stored.ID] = stored
	return nil
}

// ActiveAgent implements core.ConversationStore.
func (s *InMemoryStore) ActiveAgent(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
	}
	return conv.ActiveAgentID, nil
}

// SetActiveAgent implements core.ConversationStore.
func (s *InMemoryStore) SetActiveAgent(_ context.Context, id, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
	}
	conv.ActiveAgentID = agentID
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[id] = conv
	return nil
}

// Create implements core.MessageStore.
func (s *InMemoryStore) Create(_ context.Context, msg *core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

// List implements core.MessageStore.
func (s *InMemoryStore) List(_ context.Context, conversationID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Count implements core.MessageStore.
func (s *InMemoryStore) Count(_ context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[conversationID]), nil
}
