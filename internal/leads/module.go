// Package leads provides the lead bounded context: capture, deduplication,
// pipeline transitions, and the audit timeline.
package leads

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leads/handler"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/service"
	"leadflow_backend/internal/tenants"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	tenantsSvc *tenants.Service,
	metrics service.MetricsRecorder,
	scheduler service.ReminderScheduler,
	bus events.Bus,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, tenantsSvc, metrics, scheduler, bus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service exposes lead capture and transitions to sibling modules (webhooks,
// sales, conversations).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the leads repository to sibling modules.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the public capture endpoint and the protected lead
// management routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/lead-capture", m.handler.Capture)

	group := ctx.Protected.Group("/leads")
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.Get)
	group.PATCH("/:id/stage", m.handler.MoveStage)
	group.POST("/:id/schedule", m.handler.Schedule)
	group.GET("/:id/events", m.handler.Timeline)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
