package conversations

import (
	"context"
	"testing"
	"time"

	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	convs    map[uuid.UUID]Conversation
	messages []Message
}

func newMemStore() *memStore {
	return &memStore{convs: make(map[uuid.UUID]Conversation)}
}

func (m *memStore) GetOrCreate(_ context.Context, tenantID, leadID uuid.UUID, channel string) (Conversation, error) {
	for _, conv := range m.convs {
		if conv.LeadID == leadID && conv.Channel == channel {
			return conv, nil
		}
	}
	conv := Conversation{
		ID:        uuid.New(),
		TenantID:  tenantID,
		LeadID:    leadID,
		Channel:   channel,
		Status:    "open",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.convs[conv.ID] = conv
	return conv, nil
}

func (m *memStore) Get(_ context.Context, conversationID, tenantID uuid.UUID) (Conversation, error) {
	conv, ok := m.convs[conversationID]
	if !ok || conv.TenantID != tenantID {
		return Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

func (m *memStore) List(_ context.Context, tenantID uuid.UUID, _, _ int) ([]Conversation, error) {
	var out []Conversation
	for _, conv := range m.convs {
		if conv.TenantID == tenantID {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, conversationID, tenantID uuid.UUID, status string) error {
	conv, ok := m.convs[conversationID]
	if !ok || conv.TenantID != tenantID {
		return ErrConversationNotFound
	}
	conv.Status = status
	m.convs[conversationID] = conv
	return nil
}

func (m *memStore) LinkChatwoot(_ context.Context, conversationID, tenantID uuid.UUID, chatwootID int64) error {
	conv, ok := m.convs[conversationID]
	if !ok || conv.TenantID != tenantID {
		return ErrConversationNotFound
	}
	conv.ChatwootConversationID = &chatwootID
	m.convs[conversationID] = conv
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, params AppendMessageParams) (Message, error) {
	msg := Message{
		ID:                uuid.New(),
		TenantID:          params.TenantID,
		ConversationID:    params.ConversationID,
		Direction:         params.Direction,
		Text:              params.Text,
		MediaURL:          params.MediaURL,
		Provider:          params.Provider,
		ProviderMessageID: params.ProviderMessageID,
		CreatedAt:         time.Now(),
	}
	m.messages = append(m.messages, msg)
	if conv, ok := m.convs[params.ConversationID]; ok {
		at := msg.CreatedAt
		conv.LastMessageAt = &at
		m.convs[params.ConversationID] = conv
	}
	return msg, nil
}

func (m *memStore) SetMediaObjectKey(_ context.Context, messageID, tenantID uuid.UUID, key string) error {
	for i, msg := range m.messages {
		if msg.ID == messageID && msg.TenantID == tenantID {
			m.messages[i].MediaObjectKey = &key
		}
	}
	return nil
}

func (m *memStore) GetMessage(_ context.Context, messageID, tenantID uuid.UUID) (Message, error) {
	for _, msg := range m.messages {
		if msg.ID == messageID && msg.TenantID == tenantID {
			return msg, nil
		}
	}
	return Message{}, ErrMessageNotFound
}

func (m *memStore) ListMessages(_ context.Context, conversationID, tenantID uuid.UUID, _, _ int) ([]Message, error) {
	var out []Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.TenantID == tenantID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type memLeads struct {
	leads map[uuid.UUID]leadsrepo.Lead
}

func (m *memLeads) Get(_ context.Context, leadID, tenantID uuid.UUID) (leadsrepo.Lead, error) {
	lead, ok := m.leads[leadID]
	if !ok || lead.TenantID != tenantID {
		return leadsrepo.Lead{}, leadsrepo.ErrLeadNotFound
	}
	return lead, nil
}

type memSender struct {
	sent []string
	id   string
	err  error
}

func (m *memSender) SendText(_ context.Context, _, text string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, text)
	return m.id, nil
}

type memMetrics struct {
	in, out int
}

func (m *memMetrics) MessageIn(_ context.Context, _ uuid.UUID, _ time.Time)  { m.in++ }
func (m *memMetrics) MessageOut(_ context.Context, _ uuid.UUID, _ time.Time) { m.out++ }

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

func newTestService(tenantID uuid.UUID, sender Sender) (*Service, *memStore, *memLeads, *memMetrics) {
	store := newMemStore()
	leads := &memLeads{leads: make(map[uuid.UUID]leadsrepo.Lead)}
	metrics := &memMetrics{}
	svc := NewService(store, leads, sender, metrics, nil, nopBus{}, logger.New("test"))
	return svc, store, leads, metrics
}

func TestRecordInboundCreatesConversationOnFirstContact(t *testing.T) {
	tenantID := uuid.New()
	leadID := uuid.New()
	svc, store, _, metrics := newTestService(tenantID, nil)

	msg, err := svc.RecordInbound(context.Background(), InboundInput{
		TenantID:          tenantID,
		LeadID:            leadID,
		Text:              "oi, quero saber o preco",
		Provider:          "evolution",
		ProviderMessageID: "WAMID-1",
	})
	if err != nil {
		t.Fatalf("RecordInbound failed: %v", err)
	}
	if msg.Direction != "in" {
		t.Errorf("direction = %q, want in", msg.Direction)
	}
	if len(store.convs) != 1 {
		t.Fatalf("conversation count = %d, want 1", len(store.convs))
	}
	for _, conv := range store.convs {
		if conv.Channel != "whatsapp" {
			t.Errorf("channel = %q, want whatsapp", conv.Channel)
		}
		if conv.LastMessageAt == nil {
			t.Error("last_message_at not set")
		}
	}
	if metrics.in != 1 {
		t.Errorf("messages_in = %d, want 1", metrics.in)
	}
}

func TestRecordInboundReusesConversation(t *testing.T) {
	tenantID := uuid.New()
	leadID := uuid.New()
	svc, store, _, _ := newTestService(tenantID, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordInbound(context.Background(), InboundInput{
			TenantID: tenantID,
			LeadID:   leadID,
			Text:     "mensagem",
		})
		if err != nil {
			t.Fatalf("RecordInbound #%d failed: %v", i, err)
		}
	}
	if len(store.convs) != 1 {
		t.Errorf("conversation count = %d, want 1", len(store.convs))
	}
	if len(store.messages) != 3 {
		t.Errorf("message count = %d, want 3", len(store.messages))
	}
}

func TestRecordInboundKeepsDuplicateProviderMessageIDs(t *testing.T) {
	tenantID := uuid.New()
	leadID := uuid.New()
	svc, store, _, _ := newTestService(tenantID, nil)

	// provider retries deliver the same message twice; both land as rows
	for i := 0; i < 2; i++ {
		_, err := svc.RecordInbound(context.Background(), InboundInput{
			TenantID:          tenantID,
			LeadID:            leadID,
			Text:              "mesma mensagem",
			Provider:          "evolution",
			ProviderMessageID: "WAMID-DUP",
		})
		if err != nil {
			t.Fatalf("RecordInbound #%d failed: %v", i, err)
		}
	}
	if len(store.messages) != 2 {
		t.Fatalf("message count = %d, want 2 (no dedup by provider message ID)", len(store.messages))
	}
}

func TestRecordInboundRejectsEmptyContent(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _, _ := newTestService(tenantID, nil)

	_, err := svc.RecordInbound(context.Background(), InboundInput{
		TenantID: tenantID,
		LeadID:   uuid.New(),
		Text:     "   ",
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSendTextStoresOutboundMessage(t *testing.T) {
	tenantID := uuid.New()
	leadID := uuid.New()
	sender := &memSender{id: "WAMID-OUT"}
	svc, store, leads, metrics := newTestService(tenantID, sender)

	phone := "+5511988887777"
	leads.leads[leadID] = leadsrepo.Lead{ID: leadID, TenantID: tenantID, Phone: &phone}

	msg, err := svc.SendTextToLead(context.Background(), leadID, tenantID, "ola, tudo bem?")
	if err != nil {
		t.Fatalf("SendTextToLead failed: %v", err)
	}
	if msg.Direction != "out" {
		t.Errorf("direction = %q, want out", msg.Direction)
	}
	if msg.ProviderMessageID == nil || *msg.ProviderMessageID != "WAMID-OUT" {
		t.Errorf("provider message ID = %v, want WAMID-OUT", msg.ProviderMessageID)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent count = %d, want 1", len(sender.sent))
	}
	if metrics.out != 1 {
		t.Errorf("messages_out = %d, want 1", metrics.out)
	}
	if len(store.messages) != 1 {
		t.Errorf("stored count = %d, want 1", len(store.messages))
	}
}

func TestSendTextFailsWithoutProvider(t *testing.T) {
	tenantID := uuid.New()
	leadID := uuid.New()
	svc, _, leads, _ := newTestService(tenantID, nil)

	phone := "+5511988887777"
	leads.leads[leadID] = leadsrepo.Lead{ID: leadID, TenantID: tenantID, Phone: &phone}

	_, err := svc.SendTextToLead(context.Background(), leadID, tenantID, "ola")
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestSendTextRequiresLeadPhone(t *testing.T) {
	tenantID := uuid.New()
	leadID := uuid.New()
	svc, _, leads, _ := newTestService(tenantID, &memSender{})

	leads.leads[leadID] = leadsrepo.Lead{ID: leadID, TenantID: tenantID}

	_, err := svc.SendTextToLead(context.Background(), leadID, tenantID, "ola")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetStatusValidatesVocabulary(t *testing.T) {
	tenantID := uuid.New()
	svc, store, _, _ := newTestService(tenantID, nil)

	conv, err := store.GetOrCreate(context.Background(), tenantID, uuid.New(), "whatsapp")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if err := svc.SetStatus(context.Background(), conv.ID, tenantID, "archived"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.SetStatus(context.Background(), conv.ID, tenantID, "resolved"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
}
