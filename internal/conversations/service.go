package conversations

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store abstracts conversation persistence for the service layer.
type Store interface {
	GetOrCreate(ctx context.Context, tenantID, leadID uuid.UUID, channel string) (Conversation, error)
	Get(ctx context.Context, conversationID, tenantID uuid.UUID) (Conversation, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Conversation, error)
	SetStatus(ctx context.Context, conversationID, tenantID uuid.UUID, status string) error
	LinkChatwoot(ctx context.Context, conversationID, tenantID uuid.UUID, chatwootID int64) error
	AppendMessage(ctx context.Context, params AppendMessageParams) (Message, error)
	SetMediaObjectKey(ctx context.Context, messageID, tenantID uuid.UUID, key string) error
	GetMessage(ctx context.Context, messageID, tenantID uuid.UUID) (Message, error)
	ListMessages(ctx context.Context, conversationID, tenantID uuid.UUID, limit, offset int) ([]Message, error)
}

// LeadDirectory resolves leads for outbound sends.
type LeadDirectory interface {
	Get(ctx context.Context, leadID, tenantID uuid.UUID) (leadsrepo.Lead, error)
}

// Sender delivers outbound text to the messaging provider and returns the
// provider message ID.
type Sender interface {
	SendText(ctx context.Context, phoneNumber, text string) (string, error)
}

// MetricsRecorder receives message counter increments.
type MetricsRecorder interface {
	MessageIn(ctx context.Context, tenantID uuid.UUID, at time.Time)
	MessageOut(ctx context.Context, tenantID uuid.UUID, at time.Time)
}

// MediaArchiver copies provider media into durable storage.
type MediaArchiver interface {
	ArchiveFromURL(ctx context.Context, tenantID, messageID uuid.UUID, mediaURL string) string
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Service implements conversation use cases.
type Service struct {
	store    Store
	leads    LeadDirectory
	sender   Sender
	metrics  MetricsRecorder
	archiver MediaArchiver
	bus      events.Bus
	logger   *logger.Logger
}

// NewService creates a new conversations service. sender and archiver may be
// nil when the provider or object storage is not configured.
func NewService(store Store, leads LeadDirectory, sender Sender, metrics MetricsRecorder, archiver MediaArchiver, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		leads:    leads,
		sender:   sender,
		metrics:  metrics,
		archiver: archiver,
		bus:      bus,
		logger:   log,
	}
}

// InboundInput is a provider-reported message attributed to a lead.
type InboundInput struct {
	TenantID          uuid.UUID
	LeadID            uuid.UUID
	Channel           string
	Text              string
	MediaURL          string
	Provider          string
	ProviderMessageID string
}

// RecordInbound stores an inbound message on the lead's conversation for the
// channel, creating the conversation on first contact. Messages are append
// only: a provider retry with the same provider message ID lands as another
// row.
func (s *Service) RecordInbound(ctx context.Context, input InboundInput) (Message, error) {
	const op = "conversations.RecordInbound"

	channel := input.Channel
	if channel == "" {
		channel = domain.ChannelWhatsApp
	}
	if strings.TrimSpace(input.Text) == "" && input.MediaURL == "" {
		return Message{}, apperr.Validation("message has no content").WithOp(op)
	}

	conv, err := s.store.GetOrCreate(ctx, input.TenantID, input.LeadID, channel)
	if err != nil {
		return Message{}, apperr.Wrap(apperr.KindInternal, "failed to resolve conversation", err).WithOp(op)
	}

	msg, err := s.store.AppendMessage(ctx, AppendMessageParams{
		TenantID:          input.TenantID,
		ConversationID:    conv.ID,
		Direction:         "in",
		Text:              input.Text,
		MediaURL:          optional(input.MediaURL),
		Provider:          optional(input.Provider),
		ProviderMessageID: optional(input.ProviderMessageID),
	})
	if err != nil {
		return Message{}, apperr.Wrap(apperr.KindInternal, "failed to store message", err).WithOp(op)
	}

	if input.MediaURL != "" && s.archiver != nil {
		if key := s.archiver.ArchiveFromURL(ctx, input.TenantID, msg.ID, input.MediaURL); key != "" {
			if err := s.store.SetMediaObjectKey(ctx, msg.ID, input.TenantID, key); err != nil {
				s.logger.DatabaseError("conversations.SetMediaObjectKey", err)
			} else {
				msg.MediaObjectKey = &key
			}
		}
	}

	s.metrics.MessageIn(ctx, input.TenantID, msg.CreatedAt)
	s.bus.Publish(ctx, events.InboundMessageReceived{
		BaseEvent:      events.NewBaseEvent(),
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		LeadID:         input.LeadID,
		TenantID:       input.TenantID,
		Channel:        channel,
		Text:           input.Text,
		MediaURL:       input.MediaURL,
	})

	return msg, nil
}

// SendText delivers an operator message on an existing conversation.
func (s *Service) SendText(ctx context.Context, conversationID, tenantID uuid.UUID, text string) (Message, error) {
	const op = "conversations.SendText"

	if strings.TrimSpace(text) == "" {
		return Message{}, apperr.Validation("message text is required").WithOp(op)
	}

	conv, err := s.store.Get(ctx, conversationID, tenantID)
	if errors.Is(err, ErrConversationNotFound) {
		return Message{}, apperr.NotFound("conversation not found").WithOp(op)
	}
	if err != nil {
		return Message{}, apperr.Wrap(apperr.KindInternal, "failed to load conversation", err).WithOp(op)
	}

	return s.send(ctx, conv, text)
}

// SendTextToLead delivers an operator message to a lead's WhatsApp
// conversation, creating it on first contact.
func (s *Service) SendTextToLead(ctx context.Context, leadID, tenantID uuid.UUID, text string) (Message, error) {
	const op = "conversations.SendTextToLead"

	if strings.TrimSpace(text) == "" {
		return Message{}, apperr.Validation("message text is required").WithOp(op)
	}

	conv, err := s.store.GetOrCreate(ctx, tenantID, leadID, domain.ChannelWhatsApp)
	if err != nil {
		return Message{}, apperr.Wrap(apperr.KindInternal, "failed to resolve conversation", err).WithOp(op)
	}

	return s.send(ctx, conv, text)
}

func (s *Service) send(ctx context.Context, conv Conversation, text string) (Message, error) {
	const op = "conversations.send"

	if s.sender == nil {
		return Message{}, apperr.New(apperr.KindInternal, "whatsapp provider is not configured").WithOp(op)
	}

	lead, err := s.leads.Get(ctx, conv.LeadID, conv.TenantID)
	if err != nil {
		return Message{}, err
	}
	if lead.Phone == nil || *lead.Phone == "" {
		return Message{}, apperr.Validation("lead has no phone number").WithOp(op)
	}

	providerMessageID, err := s.sender.SendText(ctx, *lead.Phone, text)
	if err != nil {
		return Message{}, apperr.Wrap(apperr.KindInternal, "provider send failed", err).WithOp(op)
	}

	provider := "evolution"
	msg, err := s.store.AppendMessage(ctx, AppendMessageParams{
		TenantID:          conv.TenantID,
		ConversationID:    conv.ID,
		Direction:         "out",
		Text:              text,
		Provider:          &provider,
		ProviderMessageID: optional(providerMessageID),
	})
	if err != nil {
		// delivered but not stored; surface loudly, the log is the trail
		s.logger.Error("outbound message delivered but not stored",
			"error", err, "conversation_id", conv.ID, "provider_message_id", providerMessageID)
		return Message{}, apperr.Wrap(apperr.KindInternal, "failed to store message", err).WithOp(op)
	}

	s.metrics.MessageOut(ctx, conv.TenantID, msg.CreatedAt)
	s.bus.Publish(ctx, events.OutboundMessageSent{
		BaseEvent:      events.NewBaseEvent(),
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		LeadID:         conv.LeadID,
		TenantID:       conv.TenantID,
		Channel:        conv.Channel,
		Text:           text,
	})

	return msg, nil
}

// Get returns a conversation.
func (s *Service) Get(ctx context.Context, conversationID, tenantID uuid.UUID) (Conversation, error) {
	conv, err := s.store.Get(ctx, conversationID, tenantID)
	if errors.Is(err, ErrConversationNotFound) {
		return Conversation{}, apperr.NotFound("conversation not found").WithOp("conversations.Get")
	}
	return conv, err
}

// List returns the tenant's conversations, most recent traffic first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Conversation, error) {
	return s.store.List(ctx, tenantID, limit, offset)
}

// Messages returns a conversation's messages after confirming tenant scope.
func (s *Service) Messages(ctx context.Context, conversationID, tenantID uuid.UUID, limit, offset int) ([]Message, error) {
	if _, err := s.Get(ctx, conversationID, tenantID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID, tenantID, limit, offset)
}

// SetStatus updates a conversation's status.
func (s *Service) SetStatus(ctx context.Context, conversationID, tenantID uuid.UUID, status string) error {
	switch status {
	case domain.ConversationOpen, domain.ConversationPending, domain.ConversationResolved:
	default:
		return apperr.Validation("unknown conversation status").WithOp("conversations.SetStatus")
	}
	err := s.store.SetStatus(ctx, conversationID, tenantID, status)
	if errors.Is(err, ErrConversationNotFound) {
		return apperr.NotFound("conversation not found").WithOp("conversations.SetStatus")
	}
	return err
}

// LinkChatwoot stores the Chatwoot conversation mirror target.
func (s *Service) LinkChatwoot(ctx context.Context, conversationID, tenantID uuid.UUID, chatwootID int64) error {
	err := s.store.LinkChatwoot(ctx, conversationID, tenantID, chatwootID)
	if errors.Is(err, ErrConversationNotFound) {
		return apperr.NotFound("conversation not found").WithOp("conversations.LinkChatwoot")
	}
	return err
}

// MediaDownloadURL returns a presigned link to a message's archived media.
func (s *Service) MediaDownloadURL(ctx context.Context, messageID, tenantID uuid.UUID) (string, error) {
	const op = "conversations.MediaDownloadURL"

	msg, err := s.store.GetMessage(ctx, messageID, tenantID)
	if errors.Is(err, ErrMessageNotFound) {
		return "", apperr.NotFound("message not found").WithOp(op)
	}
	if err != nil {
		return "", err
	}
	if msg.MediaObjectKey == nil {
		return "", apperr.NotFound("message has no archived media").WithOp(op)
	}
	if s.archiver == nil {
		return "", apperr.New(apperr.KindInternal, "media storage is not configured").WithOp(op)
	}
	url, err := s.archiver.DownloadURL(ctx, *msg.MediaObjectKey)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to presign media URL", err).WithOp(op)
	}
	return url, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
