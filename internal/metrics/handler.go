package metrics

import (
	"net/http"
	"time"

	"leadflow_backend/internal/tenants"
	"leadflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles metric HTTP requests.
type Handler struct {
	svc         *Service
	tenantsSvc  *tenants.Service
	tenantsRepo *tenants.Repository
}

// NewHandler creates a new metrics handler.
func NewHandler(svc *Service, tenantsSvc *tenants.Service, tenantsRepo *tenants.Repository) *Handler {
	return &Handler{svc: svc, tenantsSvc: tenantsSvc, tenantsRepo: tenantsRepo}
}

// FunnelStageResponse is one stage of the funnel with its current lead count.
type FunnelStageResponse struct {
	StageID  uuid.UUID `json:"stageId"`
	Name     string    `json:"name"`
	Position int       `json:"position"`
	IsFinal  bool      `json:"isFinal"`
	Count    int       `json:"count"`
}

// HandleDaily returns the tenant's daily counters.
// GET /api/v1/metrics/daily?from=2026-08-01&to=2026-08-31
func (h *Handler) HandleDaily(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD", nil)
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD", nil)
			return
		}
		to = parsed
	}

	rows, err := h.svc.Range(c.Request.Context(), tenantID, from, to)
	if httpkit.HandleError(c, err) {
		return
	}
	if rows == nil {
		rows = []Daily{}
	}
	httpkit.OK(c, rows)
}

// HandleFunnel returns the per-stage lead counts of a pipeline. Defaults to
// the tenant's default pipeline when pipelineId is not given.
// GET /api/v1/metrics/funnel?pipelineId=...
func (h *Handler) HandleFunnel(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var pipelineID uuid.UUID
	if v := c.Query("pipelineId"); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid pipeline ID", nil)
			return
		}
		pipelineID = parsed
	} else {
		pipeline, _, err := h.tenantsSvc.EntryStage(c.Request.Context(), tenantID)
		if httpkit.HandleError(c, err) {
			return
		}
		pipelineID = pipeline.ID
	}

	pipeline, err := h.tenantsSvc.ResolvePipeline(c.Request.Context(), tenantID, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}

	counts, err := h.tenantsRepo.StageCounts(c.Request.Context(), tenantID, pipelineID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]FunnelStageResponse, len(pipeline.Stages))
	for i, stage := range pipeline.Stages {
		result[i] = FunnelStageResponse{
			StageID:  stage.ID,
			Name:     stage.Name,
			Position: stage.Position,
			IsFinal:  stage.IsFinal,
			Count:    counts[stage.ID],
		}
	}
	httpkit.OK(c, result)
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
