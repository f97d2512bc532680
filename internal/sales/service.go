package sales

import (
	"context"
	"time"

	"leadflow_backend/internal/events"
	leadsrepo "leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/tenants"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Store abstracts sale persistence for the service layer.
type Store interface {
	Create(ctx context.Context, tenantID, leadID uuid.UUID, amountCents int64, description string) (Sale, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Sale, error)
	ListByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Sale, error)
}

// LeadDirectory resolves and transitions leads.
type LeadDirectory interface {
	Get(ctx context.Context, leadID, tenantID uuid.UUID) (leadsrepo.Lead, error)
	MoveStage(ctx context.Context, leadID, tenantID, stageID uuid.UUID, actorID *uuid.UUID) (leadsrepo.Lead, error)
}

// LeadTimeline appends audit events to a lead.
type LeadTimeline interface {
	AppendEvent(ctx context.Context, tenantID, leadID uuid.UUID, eventType string, actorID *uuid.UUID, data map[string]any) error
}

// StageDirectory resolves a pipeline's final stage.
type StageDirectory interface {
	FinalStage(ctx context.Context, tenantID, pipelineID uuid.UUID) (tenants.Stage, error)
}

// MetricsRecorder receives sale counter increments.
type MetricsRecorder interface {
	Sale(ctx context.Context, tenantID uuid.UUID, at time.Time, amountCents int64)
}

// Service implements sale recording.
type Service struct {
	store    Store
	leads    LeadDirectory
	timeline LeadTimeline
	stages   StageDirectory
	metrics  MetricsRecorder
	bus      events.Bus
	logger   *logger.Logger
}

// NewService creates a new sales service.
func NewService(store Store, leads LeadDirectory, timeline LeadTimeline, stages StageDirectory, metrics MetricsRecorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		leads:    leads,
		timeline: timeline,
		stages:   stages,
		metrics:  metrics,
		bus:      bus,
		logger:   log,
	}
}

// Record snapshots a sale for the lead and drives the lead into the final
// stage of its pipeline. A lead can be sold more than once; each sale is its
// own row, and the stage move only happens when the lead is not final yet.
func (s *Service) Record(ctx context.Context, tenantID, leadID uuid.UUID, amountCents int64, description string, actorID *uuid.UUID) (Sale, error) {
	const op = "sales.Record"

	if amountCents < 0 {
		return Sale{}, apperr.Validation("amount must not be negative").WithOp(op)
	}

	lead, err := s.leads.Get(ctx, leadID, tenantID)
	if err != nil {
		return Sale{}, err
	}

	sale, err := s.store.Create(ctx, tenantID, leadID, amountCents, sanitize.Text(description))
	if err != nil {
		return Sale{}, apperr.Wrap(apperr.KindInternal, "failed to record sale", err).WithOp(op)
	}

	finalStage, err := s.stages.FinalStage(ctx, tenantID, lead.PipelineID)
	if err != nil {
		// the sale row stands; the lead just stays where it is
		s.logger.Error("could not resolve final stage after sale", "error", err, "lead_id", leadID)
	} else if lead.StageID != finalStage.ID {
		if _, err := s.leads.MoveStage(ctx, leadID, tenantID, finalStage.ID, actorID); err != nil {
			s.logger.Error("could not move sold lead to final stage", "error", err, "lead_id", leadID)
		}
	}

	if err := s.timeline.AppendEvent(ctx, tenantID, leadID, "sold", actorID, map[string]any{
		"sale_id":      sale.ID,
		"amount_cents": amountCents,
	}); err != nil {
		s.logger.DatabaseError("sales.AppendEvent", err)
	}

	s.metrics.Sale(ctx, tenantID, sale.CreatedAt, amountCents)
	s.bus.Publish(ctx, events.SaleRecorded{
		BaseEvent:   events.NewBaseEvent(),
		SaleID:      sale.ID,
		LeadID:      leadID,
		TenantID:    tenantID,
		AmountCents: amountCents,
	})

	return sale, nil
}

// List returns the tenant's sales, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Sale, error) {
	return s.store.List(ctx, tenantID, limit, offset)
}

// ListByLead returns a lead's sales after confirming it exists.
func (s *Service) ListByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Sale, error) {
	if _, err := s.leads.Get(ctx, leadID, tenantID); err != nil {
		return nil, err
	}
	return s.store.ListByLead(ctx, tenantID, leadID)
}
