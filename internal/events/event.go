// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadflow_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCaptured is published when an inbound contact or form post resolves to
// a lead. IsNew distinguishes first contact from a tracking re-capture.
type LeadCaptured struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	IsNew    bool      `json:"isNew"`
	Origin   string    `json:"origin"`
	Source   string    `json:"source,omitempty"` // ingress path: lead-capture, messages-inbound, whatsapp, n8n
	Name     string    `json:"name,omitempty"`
	Phone    string    `json:"phone,omitempty"`
	Email    string    `json:"email,omitempty"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// LeadStageChanged is published when a lead moves between pipeline stages.
type LeadStageChanged struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	TenantID   uuid.UUID  `json:"tenantId"`
	PipelineID uuid.UUID  `json:"pipelineId"`
	FromStage  uuid.UUID  `json:"fromStage"`
	ToStage    uuid.UUID  `json:"toStage"`
	ToFinal    bool       `json:"toFinal"`
	ActorID    *uuid.UUID `json:"actorId,omitempty"`
}

func (e LeadStageChanged) EventName() string { return "leads.stage.changed" }

// LeadScheduled is published when a follow-up is scheduled for a lead.
type LeadScheduled struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	TenantID    uuid.UUID `json:"tenantId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Note        string    `json:"note,omitempty"`
}

func (e LeadScheduled) EventName() string { return "leads.lead.scheduled" }

// =============================================================================
// Conversations Domain Events
// =============================================================================

// InboundMessageReceived is published for every stored inbound message.
type InboundMessageReceived struct {
	BaseEvent
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	LeadID         uuid.UUID `json:"leadId"`
	TenantID       uuid.UUID `json:"tenantId"`
	Channel        string    `json:"channel"`
	Text           string    `json:"text,omitempty"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
}

func (e InboundMessageReceived) EventName() string { return "conversations.message.inbound" }

// OutboundMessageSent is published after an operator message is delivered to
// the provider and stored.
type OutboundMessageSent struct {
	BaseEvent
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID uuid.UUID `json:"conversationId"`
	LeadID         uuid.UUID `json:"leadId"`
	TenantID       uuid.UUID `json:"tenantId"`
	Channel        string    `json:"channel"`
	Text           string    `json:"text,omitempty"`
}

func (e OutboundMessageSent) EventName() string { return "conversations.message.outbound" }

// =============================================================================
// Sales Domain Events
// =============================================================================

// SaleRecorded is published when an operator marks a lead as sold.
type SaleRecorded struct {
	BaseEvent
	SaleID      uuid.UUID `json:"saleId"`
	LeadID      uuid.UUID `json:"leadId"`
	TenantID    uuid.UUID `json:"tenantId"`
	AmountCents int64     `json:"amountCents"`
}

func (e SaleRecorded) EventName() string { return "sales.sale.recorded" }
