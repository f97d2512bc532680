package tenants

import (
	"errors"
	"net/http"

	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles pipeline/stage HTTP requests.
type Handler struct {
	service *Service
	repo    *Repository
	val     *validator.Validator
}

// NewHandler creates a new tenants handler.
func NewHandler(service *Service, repo *Repository, val *validator.Validator) *Handler {
	return &Handler{service: service, repo: repo, val: val}
}

// StageResponse is the API shape of a pipeline stage.
type StageResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Position int       `json:"position"`
	IsFinal  bool      `json:"isFinal"`
}

// PipelineResponse is the API shape of a pipeline.
type PipelineResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	IsDefault bool            `json:"isDefault"`
	Position  int             `json:"position"`
	Stages    []StageResponse `json:"stages"`
}

// CreatePipelineRequest is the request body for creating a pipeline.
type CreatePipelineRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=100"`
	IsDefault bool   `json:"isDefault"`
	Position  int    `json:"position" validate:"min=0"`
}

// CreateStageRequest is the request body for adding a stage to a pipeline.
type CreateStageRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Position int    `json:"position" validate:"min=0"`
	IsFinal  bool   `json:"isFinal"`
}

// UpdateStageRequest is the request body for editing a stage.
type UpdateStageRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Position int    `json:"position" validate:"min=0"`
	IsFinal  bool   `json:"isFinal"`
}

// HandleListPipelines lists the tenant's pipelines with stages.
// GET /api/v1/pipelines
func (h *Handler) HandleListPipelines(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	pipelines, err := h.repo.ListPipelines(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]PipelineResponse, len(pipelines))
	for i, p := range pipelines {
		result[i] = toPipelineResponse(p)
	}
	httpkit.OK(c, result)
}

// HandleCreatePipeline creates a pipeline for the tenant.
// POST /api/v1/pipelines
func (h *Handler) HandleCreatePipeline(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var req CreatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	pipeline, err := h.repo.CreatePipeline(c.Request.Context(), tenantID, req.Name, req.IsDefault, req.Position)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, toPipelineResponse(pipeline))
}

// HandleCreateStage adds a stage to a pipeline.
// POST /api/v1/pipelines/:pipelineId/stages
func (h *Handler) HandleCreateStage(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	pipelineID, err := uuid.Parse(c.Param("pipelineId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid pipeline ID", nil)
		return
	}

	var req CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	// pipeline must belong to the tenant
	if _, err := h.repo.GetPipeline(c.Request.Context(), pipelineID, tenantID); err != nil {
		if errors.Is(err, ErrPipelineNotFound) {
			httpkit.Error(c, http.StatusNotFound, "pipeline not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	color := req.Color
	if color == "" {
		color = "#6b7280"
	}

	stage, err := h.repo.CreateStage(c.Request.Context(), tenantID, pipelineID, req.Name, color, req.Position, req.IsFinal)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, toStageResponse(stage))
}

// HandleUpdateStage edits a stage.
// PATCH /api/v1/pipelines/:pipelineId/stages/:stageId
func (h *Handler) HandleUpdateStage(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	stageID, err := uuid.Parse(c.Param("stageId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid stage ID", nil)
		return
	}

	var req UpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	color := req.Color
	if color == "" {
		color = "#6b7280"
	}

	stage, err := h.repo.UpdateStage(c.Request.Context(), stageID, tenantID, req.Name, color, req.Position, req.IsFinal)
	if err != nil {
		if errors.Is(err, ErrStageNotFound) {
			httpkit.Error(c, http.StatusNotFound, "stage not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStageResponse(stage))
}

// HandleDeleteStage removes an empty stage.
// DELETE /api/v1/pipelines/:pipelineId/stages/:stageId
func (h *Handler) HandleDeleteStage(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	stageID, err := uuid.Parse(c.Param("stageId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid stage ID", nil)
		return
	}

	if err := h.repo.DeleteStage(c.Request.Context(), stageID, tenantID); err != nil {
		switch {
		case errors.Is(err, ErrStageNotFound):
			httpkit.Error(c, http.StatusNotFound, "stage not found", nil)
		case errors.Is(err, ErrStageOccupied):
			httpkit.Error(c, http.StatusConflict, "stage still has leads", nil)
		default:
			httpkit.HandleError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func toPipelineResponse(p Pipeline) PipelineResponse {
	stages := make([]StageResponse, len(p.Stages))
	for i, s := range p.Stages {
		stages[i] = toStageResponse(s)
	}
	return PipelineResponse{
		ID:        p.ID,
		Name:      p.Name,
		IsDefault: p.IsDefault,
		Position:  p.Position,
		Stages:    stages,
	}
}

func toStageResponse(s Stage) StageResponse {
	return StageResponse{
		ID:       s.ID,
		Name:     s.Name,
		Color:    s.Color,
		Position: s.Position,
		IsFinal:  s.IsFinal,
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
