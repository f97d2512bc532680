package webhooks

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhooks bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	repo    *Repository
	keys    KeyStore
	cfg     config.WebhookConfig
}

// NewModule creates and initializes the webhooks module.
func NewModule(
	pool *pgxpool.Pool,
	leads LeadResolver,
	messages MessageRecorder,
	cfg config.WebhookConfig,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := NewRepository(pool)
	return &Module{
		handler: NewHandler(leads, messages, repo, val, log),
		repo:    repo,
		keys:    repo,
		cfg:     cfg,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhooks"
}

// RegisterRoutes mounts the ingress endpoints under /webhooks and the key
// management endpoints under the protected API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	apiKeyAuth := APIKeyAuthMiddleware(m.keys)

	whatsapp := ctx.Webhooks.Group("/whatsapp")
	whatsapp.Use(apiKeyAuth)
	// provider installations that sign their callbacks get verified too
	if secret := m.cfg.GetEvolutionWebhookSecret(); secret != "" {
		whatsapp.Use(SignatureAuthMiddleware(secret))
	}
	whatsapp.POST("", m.handler.HandleEvolution)

	inbound := ctx.Webhooks.Group("/messages-inbound")
	inbound.Use(apiKeyAuth)
	if secret := m.cfg.GetEvolutionWebhookSecret(); secret != "" {
		inbound.Use(SignatureAuthMiddleware(secret))
	}
	inbound.POST("", m.handler.HandleInboundMessage)

	n8n := ctx.Webhooks.Group("/n8n")
	n8n.Use(SignatureAuthMiddleware(m.cfg.GetN8NWebhookSecret()))
	n8n.POST("", m.handler.HandleN8N)

	keys := ctx.Protected.Group("/webhook-keys")
	keys.POST("", m.handler.HandleCreateKey)
	keys.GET("", m.handler.HandleListKeys)
	keys.DELETE("/:id", m.handler.HandleRevokeKey)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
