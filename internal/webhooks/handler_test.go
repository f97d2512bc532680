package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadflow_backend/internal/conversations"
	leadsrepo "leadflow_backend/internal/leads/repository"
	leadsvc "leadflow_backend/internal/leads/service"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeLeads struct {
	captured  []leadsvc.CaptureInput
	moved     []uuid.UUID
	scheduled []time.Time
	leadID    uuid.UUID
}

func (f *fakeLeads) Capture(_ context.Context, input leadsvc.CaptureInput) (leadsvc.CaptureResult, error) {
	f.captured = append(f.captured, input)
	return leadsvc.CaptureResult{Lead: leadsrepo.Lead{ID: f.leadID, TenantID: input.TenantID}, IsNew: true}, nil
}

func (f *fakeLeads) FindByPhone(_ context.Context, tenantID uuid.UUID, _ string) (leadsrepo.Lead, error) {
	return leadsrepo.Lead{ID: f.leadID, TenantID: tenantID}, nil
}

func (f *fakeLeads) MoveStage(_ context.Context, leadID, tenantID, _ uuid.UUID, _ *uuid.UUID) (leadsrepo.Lead, error) {
	f.moved = append(f.moved, leadID)
	return leadsrepo.Lead{ID: leadID, TenantID: tenantID}, nil
}

func (f *fakeLeads) Schedule(_ context.Context, leadID, tenantID uuid.UUID, at time.Time, _ string) (leadsrepo.Lead, error) {
	f.scheduled = append(f.scheduled, at)
	return leadsrepo.Lead{ID: leadID, TenantID: tenantID}, nil
}

type fakeMessages struct {
	inbound []conversations.InboundInput
}

func (f *fakeMessages) RecordInbound(_ context.Context, input conversations.InboundInput) (conversations.Message, error) {
	f.inbound = append(f.inbound, input)
	return conversations.Message{ID: uuid.New()}, nil
}

func postN8N(t *testing.T, leads *fakeLeads, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(leads, &fakeMessages{}, nil, validator.New(), logger.New("test"))
	engine := gin.New()
	engine.POST("/webhooks/n8n", h.HandleN8N)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/n8n", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestN8NEnvelopeWithTypeAndData(t *testing.T) {
	leads := &fakeLeads{leadID: uuid.New()}
	tenantID := uuid.New()

	body := fmt.Sprintf(`{"type":"lead_create","data":{"tenantId":%q,"name":"Ana","phone":"+5511988887777"}}`, tenantID)
	rec := postN8N(t, leads, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(leads.captured) != 1 {
		t.Fatalf("expected one capture, got %d", len(leads.captured))
	}
	if leads.captured[0].TenantID != tenantID {
		t.Fatalf("tenant from data envelope not used: got %s", leads.captured[0].TenantID)
	}
	if leads.captured[0].Name != "Ana" {
		t.Fatalf("name from data envelope not used: got %q", leads.captured[0].Name)
	}
	if leads.captured[0].Source != "n8n" {
		t.Fatalf("expected source n8n, got %q", leads.captured[0].Source)
	}
}

func TestN8NFlatActionStillAccepted(t *testing.T) {
	leads := &fakeLeads{leadID: uuid.New()}
	tenantID := uuid.New()

	body := fmt.Sprintf(`{"action":"lead_create","tenantId":%q,"name":"Bia","email":"bia@example.com"}`, tenantID)
	rec := postN8N(t, leads, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(leads.captured) != 1 {
		t.Fatalf("expected one capture, got %d", len(leads.captured))
	}
}

func TestN8NScheduleFromEnvelope(t *testing.T) {
	leads := &fakeLeads{leadID: uuid.New()}
	tenantID := uuid.New()
	leadID := uuid.New()
	at := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	body := fmt.Sprintf(
		`{"type":"lead_schedule","data":{"tenantId":%q,"leadId":%q,"scheduledAt":%q,"note":"call back"}}`,
		tenantID, leadID, at.Format(time.RFC3339),
	)
	rec := postN8N(t, leads, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(leads.scheduled) != 1 {
		t.Fatalf("expected one schedule call, got %d", len(leads.scheduled))
	}
	if !leads.scheduled[0].Equal(at) {
		t.Fatalf("expected schedule at %s, got %s", at, leads.scheduled[0])
	}
}

func TestN8NRejectsUnsupportedAction(t *testing.T) {
	leads := &fakeLeads{leadID: uuid.New()}

	body := fmt.Sprintf(`{"action":"lead_delete","tenantId":%q}`, uuid.New())
	rec := postN8N(t, leads, body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(leads.captured)+len(leads.moved)+len(leads.scheduled) != 0 {
		t.Fatal("unsupported action reached the leads service")
	}
}

func TestN8NRejectsMissingTenant(t *testing.T) {
	leads := &fakeLeads{leadID: uuid.New()}

	rec := postN8N(t, leads, `{"type":"lead_create","data":{"name":"Ana"}}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if resp["error"] != "validation error" {
		t.Fatalf("expected validation error, got %v", resp["error"])
	}
}
