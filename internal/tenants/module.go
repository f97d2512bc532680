// Package tenants provides the tenant/pipeline bounded context module.
package tenants

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tenants bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	repo    *Repository
}

// NewModule creates and initializes the tenants module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := NewRepository(pool)
	service := NewService(repo)
	handler := NewHandler(service, repo, val)

	return &Module{
		handler: handler,
		service: service,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tenants"
}

// Service exposes tenant resolution to other modules.
func (m *Module) Service() *Service {
	return m.service
}

// Repository exposes the tenants repository to sibling modules.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/pipelines")
	group.GET("", m.handler.HandleListPipelines)
	group.POST("", m.handler.HandleCreatePipeline)
	group.POST("/:pipelineId/stages", m.handler.HandleCreateStage)
	group.PATCH("/:pipelineId/stages/:stageId", m.handler.HandleUpdateStage)
	group.DELETE("/:pipelineId/stages/:stageId", m.handler.HandleDeleteStage)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
