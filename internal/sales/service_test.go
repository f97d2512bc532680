package sales

import (
	"context"
	"testing"
	"time"

	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/tenants"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type memSales struct {
	sales []Sale
}

func (m *memSales) Create(_ context.Context, tenantID, leadID uuid.UUID, amountCents int64, description string) (Sale, error) {
	sale := Sale{
		ID:          uuid.New(),
		TenantID:    tenantID,
		LeadID:      leadID,
		AmountCents: amountCents,
		Description: description,
		CreatedAt:   time.Now(),
	}
	m.sales = append(m.sales, sale)
	return sale, nil
}

func (m *memSales) List(_ context.Context, tenantID uuid.UUID, _, _ int) ([]Sale, error) {
	var out []Sale
	for _, s := range m.sales {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSales) ListByLead(_ context.Context, tenantID, leadID uuid.UUID) ([]Sale, error) {
	var out []Sale
	for _, s := range m.sales {
		if s.TenantID == tenantID && s.LeadID == leadID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memLeadDir struct {
	lead  leadsrepo.Lead
	moves []uuid.UUID
}

func (m *memLeadDir) Get(_ context.Context, leadID, tenantID uuid.UUID) (leadsrepo.Lead, error) {
	if m.lead.ID != leadID || m.lead.TenantID != tenantID {
		return leadsrepo.Lead{}, apperr.NotFound("lead not found")
	}
	return m.lead, nil
}

func (m *memLeadDir) MoveStage(_ context.Context, _, _, stageID uuid.UUID, _ *uuid.UUID) (leadsrepo.Lead, error) {
	m.moves = append(m.moves, stageID)
	m.lead.StageID = stageID
	return m.lead, nil
}

type memTimeline struct {
	types []string
}

func (m *memTimeline) AppendEvent(_ context.Context, _, _ uuid.UUID, eventType string, _ *uuid.UUID, _ map[string]any) error {
	m.types = append(m.types, eventType)
	return nil
}

type memStageDir struct {
	final tenants.Stage
}

func (m *memStageDir) FinalStage(_ context.Context, _, _ uuid.UUID) (tenants.Stage, error) {
	return m.final, nil
}

type memSaleMetrics struct {
	count int
	cents int64
}

func (m *memSaleMetrics) Sale(_ context.Context, _ uuid.UUID, _ time.Time, amountCents int64) {
	m.count++
	m.cents += amountCents
}

type nopBus struct{}

func (nopBus) Publish(context.Context, events.Event)           {}
func (nopBus) PublishSync(context.Context, events.Event) error { return nil }
func (nopBus) Subscribe(string, events.Handler)                {}

func setup() (svc *Service, store *memSales, leadDir *memLeadDir, timeline *memTimeline, metrics *memSaleMetrics, tenantID uuid.UUID) {
	tenantID = uuid.New()
	pipelineID := uuid.New()
	leadDir = &memLeadDir{lead: leadsrepo.Lead{
		ID:         uuid.New(),
		TenantID:   tenantID,
		PipelineID: pipelineID,
		StageID:    uuid.New(),
	}}
	stageDir := &memStageDir{final: tenants.Stage{ID: uuid.New(), PipelineID: pipelineID, IsFinal: true}}
	store = &memSales{}
	timeline = &memTimeline{}
	metrics = &memSaleMetrics{}
	svc = NewService(store, leadDir, timeline, stageDir, metrics, nopBus{}, logger.New("test"))
	return
}

func TestRecordSaleMovesLeadToFinalStage(t *testing.T) {
	svc, store, leadDir, timeline, metrics, tenantID := setup()

	sale, err := svc.Record(context.Background(), tenantID, leadDir.lead.ID, 150000, "plano anual", nil)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if sale.AmountCents != 150000 {
		t.Errorf("amount = %d, want 150000", sale.AmountCents)
	}
	if len(store.sales) != 1 {
		t.Fatalf("sale count = %d, want 1", len(store.sales))
	}
	if len(leadDir.moves) != 1 {
		t.Fatalf("move count = %d, want 1", len(leadDir.moves))
	}
	if len(timeline.types) != 1 || timeline.types[0] != "sold" {
		t.Errorf("timeline = %v, want [sold]", timeline.types)
	}
	if metrics.count != 1 || metrics.cents != 150000 {
		t.Errorf("metrics = %d/%d, want 1/150000", metrics.count, metrics.cents)
	}
}

func TestRecordSaleSkipsMoveWhenAlreadyFinal(t *testing.T) {
	svc, _, leadDir, _, _, tenantID := setup()

	// put the lead in the final stage first
	first, err := svc.Record(context.Background(), tenantID, leadDir.lead.ID, 100, "", nil)
	if err != nil {
		t.Fatalf("first Record failed: %v", err)
	}
	_ = first

	if _, err := svc.Record(context.Background(), tenantID, leadDir.lead.ID, 200, "", nil); err != nil {
		t.Fatalf("second Record failed: %v", err)
	}
	if len(leadDir.moves) != 1 {
		t.Errorf("move count = %d, want 1 (no move when already final)", len(leadDir.moves))
	}
}

func TestRecordSaleRejectsNegativeAmount(t *testing.T) {
	svc, _, leadDir, _, _, tenantID := setup()

	_, err := svc.Record(context.Background(), tenantID, leadDir.lead.ID, -1, "", nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordSaleUnknownLead(t *testing.T) {
	svc, store, _, _, _, tenantID := setup()

	_, err := svc.Record(context.Background(), tenantID, uuid.New(), 100, "", nil)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(store.sales) != 0 {
		t.Errorf("sale recorded for unknown lead")
	}
}
