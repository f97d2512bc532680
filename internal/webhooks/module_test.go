package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeKeyStore struct {
	key APIKey
}

func (f *fakeKeyStore) GetByHash(_ context.Context, keyHash string) (APIKey, error) {
	if keyHash != HashKey("valid-key") {
		return APIKey{}, ErrAPIKeyNotFound
	}
	return f.key, nil
}

type fakeWebhookConfig struct {
	evolutionSecret string
	n8nSecret       string
}

func (f fakeWebhookConfig) GetEvolutionWebhookSecret() string { return f.evolutionSecret }
func (f fakeWebhookConfig) GetN8NWebhookSecret() string       { return f.n8nSecret }

func newIngressEngine(t *testing.T, cfg fakeWebhookConfig) (*gin.Engine, *fakeLeads) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	leads := &fakeLeads{leadID: uuid.New()}
	keys := &fakeKeyStore{key: APIKey{ID: uuid.New(), TenantID: uuid.New()}}
	m := &Module{
		handler: NewHandler(leads, &fakeMessages{}, nil, validator.New(), logger.New("test")),
		keys:    keys,
		cfg:     cfg,
	}

	engine := gin.New()
	m.RegisterRoutes(&apphttp.RouterContext{
		Engine:    engine,
		V1:        engine.Group("/api/v1"),
		Protected: engine.Group("/api/v1"),
		Webhooks:  engine.Group("/webhooks"),
	})
	return engine, leads
}

func postInbound(engine *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/messages-inbound", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-API-Key", "valid-key")
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestInboundRequiresSignatureWhenSecretConfigured(t *testing.T) {
	engine, leads := newIngressEngine(t, fakeWebhookConfig{evolutionSecret: "topsecret"})
	body := []byte(`{"phone":"+5511988887777","text":"oi"}`)

	rec := postInbound(engine, body, SignBody("wrong-secret", body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong signature: status = %d, want 401", rec.Code)
	}
	if len(leads.captured) != 0 {
		t.Fatal("forged request reached the leads service")
	}

	rec = postInbound(engine, body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: status = %d, want 401", rec.Code)
	}
}

func TestInboundAcceptsSignedRequest(t *testing.T) {
	engine, leads := newIngressEngine(t, fakeWebhookConfig{evolutionSecret: "topsecret"})
	body := []byte(`{"phone":"+5511988887777","text":"oi"}`)

	rec := postInbound(engine, body, SignBody("topsecret", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("signed request: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(leads.captured) != 1 {
		t.Fatalf("expected one capture, got %d", len(leads.captured))
	}
}

func TestInboundSkipsSignatureWhenUnconfigured(t *testing.T) {
	engine, _ := newIngressEngine(t, fakeWebhookConfig{})
	body := []byte(`{"phone":"+5511988887777","text":"oi"}`)

	rec := postInbound(engine, body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unsigned request without secret: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}
