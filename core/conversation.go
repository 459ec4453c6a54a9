package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message visibility. Internal messages (delegate results, bookkeeping) are
// part of the model-facing history but never rendered to end users.
const (
	VisibilityUserFacing = "user-facing"
	VisibilityInternal   = "internal"
)

// Message types.
const (
	MessageTypeChat           = "chat"
	MessageTypeDelegateResult = "delegate-result"
)

// SessionData is the session-protocol bookkeeping stored on a conversation
// created through the JSON-RPC session surface. Conversations created by the
// streaming protocols carry no session data.
type SessionData struct {
	SessionType     string `json:"session_type"`
	GraphID         string `json:"graph_id"`
	ProtocolVersion string `json:"protocol_version"`
	Initialized     bool   `json:"initialized"`
}

// ConversationMetadata is the JSON blob persisted alongside a conversation
// row. ResolvedContext caches the last resolved context variables so
// continuing turns can inherit them without re-supplying the request context.
type ConversationMetadata struct {
	SessionData     *SessionData   `json:"session_data,omitempty"`
	ResolvedContext map[string]any `json:"resolved_context,omitempty"`
}

// Conversation identifies a logical multi-turn exchange. Its id doubles as
// the session id for the session protocol. At most one agent is active per
// conversation at any time.
type Conversation struct {
	ID            string               `json:"id" db:"id"`
	TenantID      string               `json:"tenant_id" db:"tenant_id"`
	ProjectID     string               `json:"project_id" db:"project_id"`
	ActiveAgentID string               `json:"active_agent_id" db:"active_agent_id"`
	Metadata      ConversationMetadata `json:"metadata"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" db:"updated_at"`
}

// Message is one turn of a conversation.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Role           string    `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	Visibility     string    `json:"visibility" db:"visibility"`
	MessageType    string    `json:"message_type" db:"message_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// NewMessage constructs a user-facing chat message with a fresh id.
func NewMessage(conversationID, role, content string) *Message {
	return &Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Visibility:     VisibilityUserFacing,
		MessageType:    MessageTypeChat,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewID generates a unique identifier for conversations, messages and runs.
func NewID() string { return uuid.NewString() }

// ConversationStore persists conversation rows. Implementations must be safe
// for concurrent use; the active-agent read-then-write is last-write-wins by
// design of the caller, not serialized here.
type ConversationStore interface {
	// Get returns the conversation or ErrConversationNotFound.
	Get(ctx context.Context, id string) (*Conversation, error)
	// CreateOrGet persists conv if no row with its id exists, otherwise
	// returns the existing row unchanged.
	CreateOrGet(ctx context.Context, conv *Conversation) (*Conversation, error)
	// Update overwrites the stored row for conv.ID.
	Update(ctx context.Context, conv *Conversation) error
	// ActiveAgent reads the active agent pointer.
	ActiveAgent(ctx context.Context, id string) (string, error)
	// SetActiveAgent overwrites the active agent pointer.
	SetActiveAgent(ctx context.Context, id, agentID string) error
}

// MessageStore persists message rows in insertion order.
type MessageStore interface {
	Create(ctx context.Context, msg *Message) error
	// List returns all messages of a conversation, oldest first.
	List(ctx context.Context, conversationID string) ([]Message, error)
	// Count returns the number of messages in a conversation. Zero means
	// the next run is the conversation's first turn.
	Count(ctx context.Context, conversationID string) (int, error)
}
