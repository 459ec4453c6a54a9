package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentgraph/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	project_id      TEXT NOT NULL,
	active_agent_id TEXT NOT NULL DEFAULT '',
	metadata        TEXT NOT NULL DEFAULT '{}',
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	visibility      TEXT NOT NULL,
	message_type    TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, created_at);
`

// conversationRow mirrors the conversations table; metadata is a JSON blob.
type conversationRow struct {
	ID            string    `db:"id"`
	TenantID      string    `db:"tenant_id"`
	ProjectID     string    `db:"project_id"`
	ActiveAgentID string    `db:"active_agent_id"`
	Metadata      string    `db:"metadata"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// SQLiteStore persists conversations and messages in a SQLite database. It
// implements core.ConversationStore and core.MessageStore.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get implements core.ConversationStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Conversation, error) {
	var row conversationRow
	query := `SELECT id, tenant_id, project_id, active_agent_id, metadata, created_at, updated_at FROM conversations WHERE id = ?`
	if err := sqlscan.Get(ctx, s.db, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
		}
		return nil, err
	}
	return rowToConversation(row)
}

// CreateOrGet implements core.ConversationStore.
func (s *SQLiteStore) CreateOrGet(ctx context.Context, conv *core.Conversation) (*core.Conversation, error) {
	existing, err := s.Get(ctx, conv.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, core.ErrConversationNotFound) {
		return nil, err
	}

	metadata, err := json.Marshal(conv.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal conversation metadata: %w", err)
	}
	now := time.Now().UTC()
	created := conv.CreatedAt
	if created.IsZero() {
		created = now
	}
	query := `INSERT INTO conversations (id, tenant_id, project_id, active_agent_id, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, conv.ID, conv.TenantID, conv.ProjectID, conv.ActiveAgentID, string(metadata), created, now); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return s.Get(ctx, conv.ID)
}

// Update implements core.ConversationStore.
func (s *SQLiteStore) Update(ctx context.Context, conv *core.Conversation) error {
	metadata, err := json.Marshal(conv.Metadata)
	if err != nil {
		return fmt.Errorf("marshal conversation metadata: %w", err)
	}
	query := `UPDATE conversations SET active_agent_id = ?, metadata = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, conv.ActiveAgentID, string(metadata), time.Now().UTC(), conv.ID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrConversationNotFound, conv.ID)
	}
	return nil
}

// ActiveAgent implements core.ConversationStore.
func (s *SQLiteStore) ActiveAgent(ctx context.Context, id string) (string, error) {
	var agentID string
	query := `SELECT active_agent_id FROM conversations WHERE id = ?`
	if err := sqlscan.Get(ctx, s.db, &agentID, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
		}
		return "", err
	}
	return agentID, nil
}

// SetActiveAgent implements core.ConversationStore.
func (s *SQLiteStore) SetActiveAgent(ctx context.Context, id, agentID string) error {
	query := `UPDATE conversations SET active_agent_id = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, agentID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set active agent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", core.ErrConversationNotFound, id)
	}
	return nil
}

// Create implements core.MessageStore.
func (s *SQLiteStore) Create(ctx context.Context, msg *core.Message) error {
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	query := `INSERT INTO messages (id, conversation_id, role, content, visibility, message_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Visibility, msg.MessageType, created); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// List implements core.MessageStore.
func (s *SQLiteStore) List(ctx context.Context, conversationID string) ([]core.Message, error) {
	var msgs []core.Message
	// rowid reflects insertion order, so messages created within the same
	// clock tick still come back in the order they were written.
	query := `SELECT id, conversation_id, role, content, visibility, message_type, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at, rowid`
	if err := sqlscan.Select(ctx, s.db, &msgs, query, conversationID); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Count implements core.MessageStore.
func (s *SQLiteStore) Count(ctx context.Context, conversationID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`
	if err := sqlscan.Get(ctx, s.db, &n, query, conversationID); err != nil {
		return 0, err
	}
	return n, nil
}

func rowToConversation(row conversationRow) (*core.Conversation, error) {
	conv := &core.Conversation{
		ID:            row.ID,
		TenantID:      row.TenantID,
		ProjectID:     row.ProjectID,
		ActiveAgentID: row.ActiveAgentID,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.Metadata != "" {
		if err := json.Unmarshal([]byte(row.Metadata), &conv.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal conversation metadata: %w", err)
		}
	}
	return conv, nil
}
