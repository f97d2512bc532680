package sales

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the sales bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the sales module.
func NewModule(
	pool *pgxpool.Pool,
	leads LeadDirectory,
	timeline LeadTimeline,
	stages StageDirectory,
	metrics MetricsRecorder,
	bus events.Bus,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, leads, timeline, stages, metrics, bus, log)

	return &Module{
		handler: NewHandler(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "sales"
}

// Service exposes sale recording to the webhooks module.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts the sales routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/sales")
	group.POST("", m.handler.HandleRecord)
	group.GET("", m.handler.HandleList)

	ctx.Protected.POST("/leads/:id/sale", m.handler.HandleRecordForLead)
	ctx.Protected.GET("/leads/:id/sales", m.handler.HandleListByLead)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
