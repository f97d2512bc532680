// Package handler exposes the leads module over HTTP.
package handler

import (
	"net/http"

	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request body"
	msgValidationFailed = "validation error"
)

// Handler handles lead HTTP requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Capture is the public form-capture endpoint.
// POST /api/v1/lead-capture
func (h *Handler) Capture(c *gin.Context) {
	var req transport.CaptureLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Capture(c.Request.Context(), service.CaptureInput{
		TenantID:    req.TenantID,
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		Origin:      req.Origin,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		Referrer:    req.Referrer,
		Fields:      req.Fields,
		Source:      "lead-capture",
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, transport.CaptureLeadResponse{
		Lead:  toLeadResponse(result.Lead),
		IsNew: result.IsNew,
	})
}

// List returns the tenant's leads.
// GET /api/v1/leads
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	leads, err := h.svc.List(c.Request.Context(), tenantID, req.Limit, req.Offset)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.LeadResponse, len(leads))
	for i, lead := range leads {
		result[i] = toLeadResponse(lead)
	}
	httpkit.OK(c, result)
}

// Get returns a single lead.
// GET /api/v1/leads/:id
func (h *Handler) Get(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), leadID, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

// MoveStage transitions a lead to another pipeline stage.
// PATCH /api/v1/leads/:id/stage
func (h *Handler) MoveStage(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	var req transport.MoveStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	actorID := identity.UserID()

	lead, err := h.svc.MoveStage(c.Request.Context(), leadID, tenantID, req.StageID, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

// Schedule stores a follow-up time for the lead.
// POST /api/v1/leads/:id/schedule
func (h *Handler) Schedule(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	var req transport.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Schedule(c.Request.Context(), leadID, tenantID, req.ScheduledAt, req.Note)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLeadResponse(lead))
}

// Timeline returns a lead's audit trail.
// GET /api/v1/leads/:id/events
func (h *Handler) Timeline(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	events, err := h.svc.Timeline(c.Request.Context(), leadID, tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]transport.LeadEventResponse, len(events))
	for i, ev := range events {
		result[i] = transport.LeadEventResponse{
			ID:        ev.ID,
			Type:      ev.Type,
			ActorID:   ev.ActorID,
			Data:      ev.Data,
			CreatedAt: ev.CreatedAt,
		}
	}
	httpkit.OK(c, result)
}

func toLeadResponse(lead repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:          lead.ID,
		PipelineID:  lead.PipelineID,
		StageID:     lead.StageID,
		Name:        lead.Name,
		Phone:       lead.Phone,
		Email:       lead.Email,
		Origin:      lead.Origin,
		UTMSource:   lead.UTMSource,
		UTMMedium:   lead.UTMMedium,
		UTMCampaign: lead.UTMCampaign,
		Referrer:    lead.Referrer,
		Fields:      lead.Fields,
		ScheduledAt: lead.ScheduledAt,
		CreatedAt:   lead.CreatedAt,
		UpdatedAt:   lead.UpdatedAt,
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
