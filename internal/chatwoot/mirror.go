package chatwoot

import (
	"context"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// ConversationDirectory resolves the Chatwoot mirror target of a
// conversation.
type ConversationDirectory interface {
	ChatwootConversationID(ctx context.Context, conversationID, tenantID uuid.UUID) (*int64, error)
}

// Mirror subscribes to message events and replays them into Chatwoot.
// Conversations without a linked Chatwoot ID are skipped silently.
type Mirror struct {
	client *Client
	convs  ConversationDirectory
	log    *logger.Logger
}

// NewMirror creates the Chatwoot mirror, or nil when the client is not
// configured.
func NewMirror(client *Client, convs ConversationDirectory, log *logger.Logger) *Mirror {
	if client == nil {
		return nil
	}
	return &Mirror{client: client, convs: convs, log: log}
}

// Register subscribes the mirror to the event bus.
func (m *Mirror) Register(bus events.Bus) {
	if m == nil {
		return
	}
	bus.Subscribe(events.InboundMessageReceived{}.EventName(), events.HandlerFunc(m.onInbound))
	bus.Subscribe(events.OutboundMessageSent{}.EventName(), events.HandlerFunc(m.onOutbound))
}

func (m *Mirror) onInbound(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.InboundMessageReceived)
	if !ok {
		return nil
	}
	m.mirror(ctx, ev.ConversationID, ev.TenantID, ev.Text, "in")
	return nil
}

func (m *Mirror) onOutbound(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.OutboundMessageSent)
	if !ok {
		return nil
	}
	m.mirror(ctx, ev.ConversationID, ev.TenantID, ev.Text, "out")
	return nil
}

func (m *Mirror) mirror(ctx context.Context, conversationID, tenantID uuid.UUID, text, direction string) {
	chatwootID, err := m.convs.ChatwootConversationID(ctx, conversationID, tenantID)
	if err != nil {
		m.log.Warn("chatwoot mirror lookup failed", "error", err, "conversation_id", conversationID)
		return
	}
	if chatwootID == nil {
		return
	}
	if text == "" {
		return
	}
	m.client.MirrorMessage(ctx, *chatwootID, text, direction)
}
