package notifications

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the notifications bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates the notifications module and subscribes it to the bus.
func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) *Module {
	svc := NewService(NewRepository(pool), log)
	svc.Register(bus)
	return &Module{
		handler: NewHandler(svc),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notifications"
}

// RegisterRoutes mounts the notification feed routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	group.GET("", m.handler.HandleList)
	group.POST("/:id/read", m.handler.HandleMarkRead)
	group.POST("/read-all", m.handler.HandleMarkAllRead)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
