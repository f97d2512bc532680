package metrics

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/tenants"
	"leadflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the metrics bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the metrics module.
func NewModule(pool *pgxpool.Pool, tenantsSvc *tenants.Service, tenantsRepo *tenants.Repository, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, log)

	return &Module{
		handler: NewHandler(svc, tenantsSvc, tenantsRepo),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "metrics"
}

// Service exposes counter recording to sibling modules and the recompute job
// to the worker.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts the metrics query routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/metrics")
	group.GET("/daily", m.handler.HandleDaily)
	group.GET("/funnel", m.handler.HandleFunnel)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
