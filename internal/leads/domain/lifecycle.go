package domain

// Lead lifecycle event types recorded in the append-only audit trail.
const (
	EventLeadCreated  = "created"
	EventLeadUpdated  = "updated"
	EventStageChanged = "stage_changed"
	EventScheduled    = "scheduled"
	EventSold         = "sold"
)

// Conversation channels.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelInternal = "internal"
)

// Conversation statuses.
const (
	ConversationOpen     = "open"
	ConversationPending  = "pending"
	ConversationResolved = "resolved"
)
