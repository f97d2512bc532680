package conversations

import (
	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the conversations bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
	repo    *Repository
}

// NewModule creates and initializes the conversations module.
func NewModule(
	pool *pgxpool.Pool,
	leads LeadDirectory,
	sender Sender,
	metrics MetricsRecorder,
	archiver MediaArchiver,
	bus events.Bus,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, leads, sender, metrics, archiver, bus, log)

	return &Module{
		handler: NewHandler(svc, val),
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "conversations"
}

// Service exposes message recording to the webhooks module.
func (m *Module) Service() *Service {
	return m.service
}

// Repository exposes conversation lookups to the Chatwoot mirror.
func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterRoutes mounts the conversation routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/conversations")
	group.GET("", m.handler.HandleList)
	group.GET("/:id", m.handler.HandleGet)
	group.GET("/:id/messages", m.handler.HandleMessages)
	group.POST("/:id/messages", m.handler.HandleSend)
	group.PATCH("/:id/status", m.handler.HandleSetStatus)
	group.PUT("/:id/chatwoot", m.handler.HandleLinkChatwoot)

	ctx.Protected.GET("/messages/:id/media", m.handler.HandleMediaURL)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
