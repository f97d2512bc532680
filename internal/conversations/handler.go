package conversations

import (
	"net/http"
	"strconv"
	"time"

	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles conversation HTTP requests.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates a new conversations handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ConversationResponse is the API shape of a conversation.
type ConversationResponse struct {
	ID                     uuid.UUID  `json:"id"`
	LeadID                 uuid.UUID  `json:"leadId"`
	Channel                string     `json:"channel"`
	Status                 string     `json:"status"`
	ChatwootConversationID *int64     `json:"chatwootConversationId,omitempty"`
	LastMessageAt          *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// MessageResponse is the API shape of a message.
type MessageResponse struct {
	ID                uuid.UUID `json:"id"`
	ConversationID    uuid.UUID `json:"conversationId"`
	Direction         string    `json:"direction"`
	Text              string    `json:"text"`
	MediaURL          *string   `json:"mediaUrl,omitempty"`
	HasArchivedMedia  bool      `json:"hasArchivedMedia"`
	Provider          *string   `json:"provider,omitempty"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// SendMessageRequest is the outbound message body.
type SendMessageRequest struct {
	Text string `json:"text" validate:"required,min=1,max=4096"`
}

// SetStatusRequest updates a conversation's status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open pending resolved"`
}

// LinkChatwootRequest links the conversation to its Chatwoot mirror.
type LinkChatwootRequest struct {
	ChatwootConversationID int64 `json:"chatwootConversationId" validate:"required,min=1"`
}

// HandleList lists the tenant's conversations.
// GET /api/v1/conversations
func (h *Handler) HandleList(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	convs, err := h.svc.List(c.Request.Context(), tenantID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]ConversationResponse, len(convs))
	for i, conv := range convs {
		result[i] = toConversationResponse(conv)
	}
	httpkit.OK(c, result)
}

// HandleGet returns a single conversation.
// GET /api/v1/conversations/:id
func (h *Handler) HandleGet(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid conversation ID", nil)
		return
	}

	conv, err := h.svc.Get(c.Request.Context(), conversationID, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toConversationResponse(conv))
}

// HandleMessages lists a conversation's messages.
// GET /api/v1/conversations/:id/messages
func (h *Handler) HandleMessages(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid conversation ID", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.svc.Messages(c.Request.Context(), conversationID, tenantID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		result[i] = toMessageResponse(msg)
	}
	httpkit.OK(c, result)
}

// HandleSend delivers an operator message on the conversation.
// POST /api/v1/conversations/:id/messages
func (h *Handler) HandleSend(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid conversation ID", nil)
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	msg, err := h.svc.SendText(c.Request.Context(), conversationID, tenantID, req.Text)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toMessageResponse(msg))
}

// HandleSetStatus updates a conversation's status.
// PATCH /api/v1/conversations/:id/status
func (h *Handler) HandleSetStatus(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid conversation ID", nil)
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	if err := h.svc.SetStatus(c.Request.Context(), conversationID, tenantID, req.Status); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"success": true})
}

// HandleLinkChatwoot links the conversation to its Chatwoot mirror.
// PUT /api/v1/conversations/:id/chatwoot
func (h *Handler) HandleLinkChatwoot(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid conversation ID", nil)
		return
	}

	var req LinkChatwootRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	if err := h.svc.LinkChatwoot(c.Request.Context(), conversationID, tenantID, req.ChatwootConversationID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"success": true})
}

// HandleMediaURL returns a presigned link to a message's archived media.
// GET /api/v1/messages/:id/media
func (h *Handler) HandleMediaURL(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid message ID", nil)
		return
	}

	url, err := h.svc.MediaDownloadURL(c.Request.Context(), messageID, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"url": url})
}

func toConversationResponse(conv Conversation) ConversationResponse {
	return ConversationResponse{
		ID:                     conv.ID,
		LeadID:                 conv.LeadID,
		Channel:                conv.Channel,
		Status:                 conv.Status,
		ChatwootConversationID: conv.ChatwootConversationID,
		LastMessageAt:          conv.LastMessageAt,
		CreatedAt:              conv.CreatedAt,
	}
}

func toMessageResponse(msg Message) MessageResponse {
	return MessageResponse{
		ID:                msg.ID,
		ConversationID:    msg.ConversationID,
		Direction:         msg.Direction,
		Text:              msg.Text,
		MediaURL:          msg.MediaURL,
		HasArchivedMedia:  msg.MediaObjectKey != nil,
		Provider:          msg.Provider,
		ProviderMessageID: msg.ProviderMessageID,
		CreatedAt:         msg.CreatedAt,
	}
}

func requireTenant(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.UUID{}, false
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusForbidden, "no tenant context", nil)
		return uuid.UUID{}, false
	}
	return *tenantID, true
}
