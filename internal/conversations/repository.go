// Package conversations provides the messaging bounded context: one
// conversation per lead and channel, with an append-only message log.
package conversations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// Conversation groups the messages exchanged with a lead on one channel.
type Conversation struct {
	ID                     uuid.UUID
	TenantID               uuid.UUID
	LeadID                 uuid.UUID
	Channel                string
	Status                 string
	ChatwootConversationID *int64
	LastMessageAt          *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Message is one entry in a conversation. Messages are append-only: provider
// retries with the same provider_message_id produce separate rows.
type Message struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ConversationID    uuid.UUID
	Direction         string
	Text              string
	MediaURL          *string
	MediaObjectKey    *string
	Provider          *string
	ProviderMessageID *string
	CreatedAt         time.Time
}

// AppendMessageParams carries a message insert.
type AppendMessageParams struct {
	TenantID          uuid.UUID
	ConversationID    uuid.UUID
	Direction         string
	Text              string
	MediaURL          *string
	Provider          *string
	ProviderMessageID *string
}

// Repository provides data access for conversations and messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new conversations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const conversationColumns = `
	id, tenant_id, lead_id, channel, status, chatwoot_conversation_id,
	last_message_at, created_at, updated_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.TenantID, &c.LeadID, &c.Channel, &c.Status,
		&c.ChatwootConversationID, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetOrCreate fetches the lead's conversation on a channel, creating it when
// absent. The (lead_id, channel) unique constraint makes this race safe.
func (r *Repository) GetOrCreate(ctx context.Context, tenantID, leadID uuid.UUID, channel string) (Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (tenant_id, lead_id, channel)
		VALUES ($1, $2, $3)
		ON CONFLICT (lead_id, channel)
		DO UPDATE SET updated_at = now()
		RETURNING `+conversationColumns+`
	`, tenantID, leadID, channel)
	return scanConversation(row)
}

// Get retrieves a conversation, tenant scoped.
func (r *Repository) Get(ctx context.Context, conversationID, tenantID uuid.UUID) (Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1 AND tenant_id = $2
	`, conversationID, tenantID)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// List returns the tenant's conversations, most recent traffic first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE tenant_id = $1
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// SetStatus updates a conversation's status.
func (r *Repository) SetStatus(ctx context.Context, conversationID, tenantID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET status = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, conversationID, tenantID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// LinkChatwoot stores the mirrored Chatwoot conversation ID.
func (r *Repository) LinkChatwoot(ctx context.Context, conversationID, tenantID uuid.UUID, chatwootID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET chatwoot_conversation_id = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, conversationID, tenantID, chatwootID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ChatwootConversationID returns the linked Chatwoot conversation, nil when
// the conversation is not mirrored.
func (r *Repository) ChatwootConversationID(ctx context.Context, conversationID, tenantID uuid.UUID) (*int64, error) {
	var id *int64
	err := r.pool.QueryRow(ctx, `
		SELECT chatwoot_conversation_id FROM conversations
		WHERE id = $1 AND tenant_id = $2
	`, conversationID, tenantID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	return id, err
}

// AppendMessage inserts a message and bumps the conversation's activity
// timestamp in one transaction. Always inserts, never deduplicates.
func (r *Repository) AppendMessage(ctx context.Context, params AppendMessageParams) (Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO messages (tenant_id, conversation_id, direction, text, media_url, provider, provider_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, tenant_id, conversation_id, direction, text, media_url, media_object_key,
		          provider, provider_message_id, created_at
	`, params.TenantID, params.ConversationID, params.Direction, params.Text,
		params.MediaURL, params.Provider, params.ProviderMessageID)

	var m Message
	if err := row.Scan(&m.ID, &m.TenantID, &m.ConversationID, &m.Direction, &m.Text,
		&m.MediaURL, &m.MediaObjectKey, &m.Provider, &m.ProviderMessageID, &m.CreatedAt); err != nil {
		return Message{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations SET last_message_at = $2, updated_at = now()
		WHERE id = $1
	`, params.ConversationID, m.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	return m, tx.Commit(ctx)
}

// SetMediaObjectKey records where a message's media was archived.
func (r *Repository) SetMediaObjectKey(ctx context.Context, messageID, tenantID uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages SET media_object_key = $3
		WHERE id = $1 AND tenant_id = $2
	`, messageID, tenantID, key)
	return err
}

// GetMessage retrieves a single message, tenant scoped.
func (r *Repository) GetMessage(ctx context.Context, messageID, tenantID uuid.UUID) (Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, conversation_id, direction, text, media_url, media_object_key,
		       provider, provider_message_id, created_at
		FROM messages
		WHERE id = $1 AND tenant_id = $2
	`, messageID, tenantID)

	var m Message
	err := row.Scan(&m.ID, &m.TenantID, &m.ConversationID, &m.Direction, &m.Text,
		&m.MediaURL, &m.MediaObjectKey, &m.Provider, &m.ProviderMessageID, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrMessageNotFound
	}
	return m, err
}

// ListMessages returns a conversation's messages, oldest first.
func (r *Repository) ListMessages(ctx context.Context, conversationID, tenantID uuid.UUID, limit, offset int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, conversation_id, direction, text, media_url, media_object_key,
		       provider, provider_message_id, created_at
		FROM messages
		WHERE conversation_id = $1 AND tenant_id = $2
		ORDER BY created_at
		LIMIT $3 OFFSET $4
	`, conversationID, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ConversationID, &m.Direction, &m.Text,
			&m.MediaURL, &m.MediaObjectKey, &m.Provider, &m.ProviderMessageID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
