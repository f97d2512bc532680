package notifications

import (
	"net/http"
	"strconv"
	"time"

	"leadflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NotificationResponse is the API shape of a notification.
type NotificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	LeadID    *uuid.UUID `json:"leadId,omitempty"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	IsRead    bool       `json:"isRead"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Handler handles notification HTTP requests.
type Handler struct {
	svc *Service
}

// NewHandler creates a new notifications handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// HandleList returns the tenant's notification feed.
// GET /api/v1/notifications?unread=true&limit=50&offset=0
func (h *Handler) HandleList(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.svc.List(c.Request.Context(), tenantID, unreadOnly, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	unread, err := h.svc.CountUnread(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, toResponse(n))
	}
	httpkit.OK(c, gin.H{"notifications": out, "unreadCount": unread})
}

// HandleMarkRead marks one notification as read.
// POST /api/v1/notifications/:id/read
func (h *Handler) HandleMarkRead(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}

	if httpkit.HandleError(c, h.svc.MarkRead(c.Request.Context(), notificationID, tenantID)) {
		return
	}
	httpkit.OK(c, gin.H{"success": true})
}

// HandleMarkAllRead marks every unread notification as read.
// POST /api/v1/notifications/read-all
func (h *Handler) HandleMarkAllRead(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	count, err := h.svc.MarkAllRead(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"success": true, "marked": count})
}

func toResponse(n Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		LeadID:    n.LeadID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		IsRead:    n.ReadAt != nil,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
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
