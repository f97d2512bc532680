package sales

import (
	"net/http"
	"strconv"
	"time"

	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles sale HTTP requests.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates a new sales handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RecordSaleRequest is the body for marking a lead as sold.
type RecordSaleRequest struct {
	LeadID      uuid.UUID `json:"leadId" validate:"required"`
	AmountCents int64     `json:"amountCents" validate:"min=0"`
	Description string    `json:"description" validate:"max=500"`
}

// SaleResponse is the API shape of a sale.
type SaleResponse struct {
	ID          uuid.UUID `json:"id"`
	LeadID      uuid.UUID `json:"leadId"`
	AmountCents int64     `json:"amountCents"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HandleRecord records a sale for a lead.
// POST /api/v1/sales
func (h *Handler) HandleRecord(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var req RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	actorID := identity.UserID()

	sale, err := h.svc.Record(c.Request.Context(), tenantID, req.LeadID, req.AmountCents, req.Description, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toSaleResponse(sale))
}

// LeadSaleRequest is the body for the lead-scoped sale route, where the
// lead comes from the path.
type LeadSaleRequest struct {
	AmountCents int64  `json:"amountCents" validate:"min=0"`
	Description string `json:"description" validate:"max=500"`
}

// HandleRecordForLead records a sale for the lead in the path.
// POST /api/v1/leads/:id/sale
func (h *Handler) HandleRecordForLead(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req LeadSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	actorID := identity.UserID()

	sale, err := h.svc.Record(c.Request.Context(), tenantID, leadID, req.AmountCents, req.Description, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toSaleResponse(sale))
}

// HandleList lists the tenant's sales.
// GET /api/v1/sales
func (h *Handler) HandleList(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sales, err := h.svc.List(c.Request.Context(), tenantID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]SaleResponse, len(sales))
	for i, sale := range sales {
		result[i] = toSaleResponse(sale)
	}
	httpkit.OK(c, result)
}

// HandleListByLead lists a lead's sales.
// GET /api/v1/leads/:id/sales
func (h *Handler) HandleListByLead(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	sales, err := h.svc.ListByLead(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]SaleResponse, len(sales))
	for i, sale := range sales {
		result[i] = toSaleResponse(sale)
	}
	httpkit.OK(c, result)
}

func toSaleResponse(s Sale) SaleResponse {
	return SaleResponse{
		ID:          s.ID,
		LeadID:      s.LeadID,
		AmountCents: s.AmountCents,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
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
