package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"leadflow_backend/internal/conversations"
	leadsrepo "leadflow_backend/internal/leads/repository"
	leadsvc "leadflow_backend/internal/leads/service"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request body"
	msgValidationFailed = "validation error"
)

// LeadResolver is the slice of the leads service the ingress needs.
type LeadResolver interface {
	Capture(ctx context.Context, input leadsvc.CaptureInput) (leadsvc.CaptureResult, error)
	FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (leadsrepo.Lead, error)
	MoveStage(ctx context.Context, leadID, tenantID, stageID uuid.UUID, actorID *uuid.UUID) (leadsrepo.Lead, error)
	Schedule(ctx context.Context, leadID, tenantID uuid.UUID, at time.Time, note string) (leadsrepo.Lead, error)
}

// MessageRecorder records inbound traffic on the lead's conversation.
type MessageRecorder interface {
	RecordInbound(ctx context.Context, input conversations.InboundInput) (conversations.Message, error)
}

// Handler handles webhook ingress and API key management requests.
type Handler struct {
	leads    LeadResolver
	messages MessageRecorder
	repo     *Repository
	val      *validator.Validator
	log      *logger.Logger
}

// NewHandler creates a new webhooks handler.
func NewHandler(leads LeadResolver, messages MessageRecorder, repo *Repository, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{leads: leads, messages: messages, repo: repo, val: val, log: log}
}

// HandleEvolution ingests Evolution API events. The tenant comes from the
// API key; events that carry no customer message are acknowledged and
// dropped so the provider does not retry them.
// POST /webhooks/whatsapp
func (h *Handler) HandleEvolution(c *gin.Context) {
	tenantID, ok := webhookTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant context", nil)
		return
	}

	var payload evolutionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.WebhookEvent("evolution", payload.Event, false, "malformed payload")
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	msg, ok := extractEvolutionMessage(payload)
	if !ok {
		h.log.WebhookEvent("evolution", payload.Event, true, "no message content")
		httpkit.OK(c, gin.H{"success": true, "ignored": true})
		return
	}
	if msg.FromMe || msg.IsGroup {
		h.log.WebhookEvent("evolution", payload.Event, true, "own or group message")
		httpkit.OK(c, gin.H{"success": true, "ignored": true})
		return
	}

	result, err := h.leads.Capture(c.Request.Context(), leadsvc.CaptureInput{
		TenantID: tenantID,
		Name:     msg.SenderName,
		Phone:    msg.SenderDigits,
		Origin:   "whatsapp",
		Source:   "whatsapp",
		PlatformData: map[string]any{
			"instance":     payload.Instance,
			"remote_jid":   payload.Data.Key.RemoteJid,
			"push_name":    payload.Data.PushName,
			"message_type": payload.Data.MessageType,
		},
	})
	if err != nil {
		h.log.WebhookEvent("evolution", payload.Event, false, err.Error())
		httpkit.HandleError(c, err)
		return
	}

	_, err = h.messages.RecordInbound(c.Request.Context(), conversations.InboundInput{
		TenantID:          tenantID,
		LeadID:            result.Lead.ID,
		Channel:           "whatsapp",
		Text:              msg.Text,
		MediaURL:          msg.MediaURL,
		Provider:          "evolution",
		ProviderMessageID: msg.ProviderMessageID,
	})
	if err != nil {
		h.log.WebhookEvent("evolution", payload.Event, false, err.Error())
		httpkit.HandleError(c, err)
		return
	}

	h.log.WebhookEvent("evolution", payload.Event, true, "")
	httpkit.OK(c, gin.H{"success": true, "leadId": result.Lead.ID, "isNew": result.IsNew})
}

// InboundMessageRequest is the provider-neutral inbound ingress payload,
// used by integrations that flatten their provider's envelope themselves.
type InboundMessageRequest struct {
	Phone             string         `json:"phone" validate:"required"`
	Name              string         `json:"name" validate:"omitempty,max=200"`
	Text              string         `json:"text" validate:"omitempty,max=10000"`
	MediaURL          string         `json:"mediaUrl" validate:"omitempty,url"`
	Channel           string         `json:"channel" validate:"omitempty,oneof=whatsapp instagram webchat"`
	Provider          string         `json:"provider" validate:"omitempty,max=50"`
	ProviderMessageID string         `json:"providerMessageId" validate:"omitempty,max=200"`
	Fields            map[string]any `json:"fields"`
}

// HandleInboundMessage ingests a generic inbound message: resolve the sender
// to a lead, then append the message to its conversation.
// POST /webhooks/messages-inbound
func (h *Handler) HandleInboundMessage(c *gin.Context) {
	tenantID, ok := webhookTenantID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing tenant context", nil)
		return
	}

	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.leads.Capture(c.Request.Context(), leadsvc.CaptureInput{
		TenantID: tenantID,
		Name:     req.Name,
		Phone:    req.Phone,
		Fields:   req.Fields,
		Source:   "messages-inbound",
	})
	if err != nil {
		h.log.WebhookEvent("messages-inbound", "message", false, err.Error())
		httpkit.HandleError(c, err)
		return
	}

	message, err := h.messages.RecordInbound(c.Request.Context(), conversations.InboundInput{
		TenantID:          tenantID,
		LeadID:            result.Lead.ID,
		Channel:           req.Channel,
		Text:              req.Text,
		MediaURL:          req.MediaURL,
		Provider:          req.Provider,
		ProviderMessageID: req.ProviderMessageID,
	})
	if err != nil {
		h.log.WebhookEvent("messages-inbound", "message", false, err.Error())
		httpkit.HandleError(c, err)
		return
	}

	h.log.WebhookEvent("messages-inbound", "message", true, "")
	httpkit.OK(c, gin.H{"success": true, "leadId": result.Lead.ID, "messageId": message.ID})
}

// n8nEnvelope is the outer automation callback shape. Flows name the action
// under either "action" or "type" and may nest the fields under "data".
type n8nEnvelope struct {
	Action string          `json:"action"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

// N8NRequest carries the fields of one automation action. Which fields are
// required depends on the action.
type N8NRequest struct {
	TenantID    uuid.UUID      `json:"tenantId" validate:"required"`
	LeadID      *uuid.UUID     `json:"leadId"`
	StageID     *uuid.UUID     `json:"stageId"`
	Name        string         `json:"name" validate:"omitempty,max=200"`
	Phone       string         `json:"phone" validate:"omitempty,max=30"`
	Email       string         `json:"email" validate:"omitempty,email"`
	Origin      string         `json:"origin" validate:"omitempty,max=50"`
	ScheduledAt *time.Time     `json:"scheduledAt"`
	Note        string         `json:"note" validate:"omitempty,max=1000"`
	Fields      map[string]any `json:"fields"`
}

// HandleN8N dispatches automation callbacks. The flow authenticates with the
// shared HMAC secret and names the tenant explicitly in the payload.
// POST /webhooks/n8n
func (h *Handler) HandleN8N(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var env n8nEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	action := env.Action
	if action == "" {
		action = env.Type
	}

	// fields nest under "data"; older flows send them flat
	payload := body
	if len(env.Data) > 0 && string(env.Data) != "null" {
		payload = env.Data
	}
	var req N8NRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	switch action {
	case "lead_create":
		result, err := h.leads.Capture(c.Request.Context(), leadsvc.CaptureInput{
			TenantID: req.TenantID,
			Name:     req.Name,
			Phone:    req.Phone,
			Email:    req.Email,
			Origin:   req.Origin,
			Fields:   req.Fields,
			Source:   "n8n",
		})
		if err != nil {
			h.log.WebhookEvent("n8n", action, false, err.Error())
			httpkit.HandleError(c, err)
			return
		}
		h.log.WebhookEvent("n8n", action, true, "")
		httpkit.OK(c, gin.H{"success": true, "leadId": result.Lead.ID, "isNew": result.IsNew})

	case "lead_status_update":
		if req.StageID == nil {
			httpkit.Error(c, http.StatusBadRequest, "stageId is required for lead_status_update", nil)
			return
		}
		lead, ok := h.resolveLead(c, req)
		if !ok {
			return
		}
		if _, err := h.leads.MoveStage(c.Request.Context(), lead.ID, req.TenantID, *req.StageID, nil); err != nil {
			h.log.WebhookEvent("n8n", action, false, err.Error())
			httpkit.HandleError(c, err)
			return
		}
		h.log.WebhookEvent("n8n", action, true, "")
		httpkit.OK(c, gin.H{"success": true, "leadId": lead.ID})

	case "lead_schedule":
		if req.ScheduledAt == nil {
			httpkit.Error(c, http.StatusBadRequest, "scheduledAt is required for lead_schedule", nil)
			return
		}
		lead, ok := h.resolveLead(c, req)
		if !ok {
			return
		}
		if _, err := h.leads.Schedule(c.Request.Context(), lead.ID, req.TenantID, *req.ScheduledAt, req.Note); err != nil {
			h.log.WebhookEvent("n8n", action, false, err.Error())
			httpkit.HandleError(c, err)
			return
		}
		h.log.WebhookEvent("n8n", action, true, "")
		httpkit.OK(c, gin.H{"success": true, "leadId": lead.ID})

	default:
		h.log.WebhookEvent("n8n", action, false, "unsupported action")
		httpkit.Error(c, http.StatusBadRequest, "unsupported action", action)
	}
}

// resolveLead finds the target lead by explicit ID, falling back to the
// phone matching key.
func (h *Handler) resolveLead(c *gin.Context, req N8NRequest) (leadsrepo.Lead, bool) {
	if req.LeadID != nil {
		return leadsrepo.Lead{ID: *req.LeadID, TenantID: req.TenantID}, true
	}
	if req.Phone == "" {
		httpkit.Error(c, http.StatusBadRequest, "leadId or phone is required", nil)
		return leadsrepo.Lead{}, false
	}
	lead, err := h.leads.FindByPhone(c.Request.Context(), req.TenantID, req.Phone)
	if httpkit.HandleError(c, err) {
		return leadsrepo.Lead{}, false
	}
	return lead, true
}
