// Package service implements lead capture, deduplication, and lifecycle
// transitions.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/tenants"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"
	"leadflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

// StageDirectory resolves pipeline stages for the tenant.
type StageDirectory interface {
	EntryStage(ctx context.Context, tenantID uuid.UUID) (tenants.Pipeline, tenants.Stage, error)
	Stage(ctx context.Context, tenantID, stageID uuid.UUID) (tenants.Stage, error)
}

// MetricsRecorder receives daily counter increments as side effects of lead
// operations. Implemented by the metrics module.
type MetricsRecorder interface {
	LeadIn(ctx context.Context, tenantID uuid.UUID, at time.Time)
	StageChange(ctx context.Context, tenantID uuid.UUID, at time.Time)
}

// ReminderScheduler enqueues delayed follow-up reminders.
type ReminderScheduler interface {
	ScheduleFollowUp(ctx context.Context, tenantID, leadID uuid.UUID, at time.Time) error
}

// Service implements lead use cases.
type Service struct {
	store     repository.Store
	stages    StageDirectory
	metrics   MetricsRecorder
	scheduler ReminderScheduler
	bus       events.Bus
	logger    *logger.Logger
}

// New creates a new leads service. scheduler may be nil when no worker is
// deployed; scheduling then only persists the follow-up time.
func New(store repository.Store, stages StageDirectory, metrics MetricsRecorder, scheduler ReminderScheduler, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		stages:    stages,
		metrics:   metrics,
		scheduler: scheduler,
		bus:       bus,
		logger:    log,
	}
}

// CaptureInput is a normalized capture request, regardless of ingress path.
type CaptureInput struct {
	TenantID     uuid.UUID
	Name         string
	Phone        string
	Email        string
	Origin       string // when set and known, wins over UTM classification
	UTMSource    string
	UTMMedium    string
	UTMCampaign  string
	Referrer     string
	Fields       map[string]any
	PlatformData map[string]any
	Source       string // ingress path: lead-capture, messages-inbound, whatsapp, n8n
}

// CaptureResult carries the resolved lead and whether it was just created.
type CaptureResult struct {
	Lead  repository.Lead
	IsNew bool
}

// Capture resolves an inbound contact to a lead: match by phone digits first,
// then by email; create in the entry stage when neither matches. Matches get
// their tracking attribution overwritten with the newest capture. Exactly one
// identifier (phone or email) is required.
func (s *Service) Capture(ctx context.Context, input CaptureInput) (CaptureResult, error) {
	const op = "leads.Capture"

	name := sanitize.Text(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	normalized := phone.NormalizeE164(input.Phone)
	digits := phone.Digits(normalized)

	if digits == "" && email == "" {
		return CaptureResult{}, apperr.Validation("phone or email is required").WithOp(op)
	}

	origin := s.resolveOrigin(input)

	existing, err := s.match(ctx, input.TenantID, digits, email)
	if err != nil && !errors.Is(err, repository.ErrLeadNotFound) {
		return CaptureResult{}, apperr.Wrap(apperr.KindInternal, "failed to match lead", err).WithOp(op)
	}

	if err == nil {
		lead, err := s.store.UpdateTracking(ctx, existing.ID, input.TenantID, repository.UpdateTrackingParams{
			Name:        name,
			Origin:      string(origin),
			UTMSource:   optional(input.UTMSource),
			UTMMedium:   optional(input.UTMMedium),
			UTMCampaign: optional(input.UTMCampaign),
			Referrer:    optional(input.Referrer),
			Fields:      input.Fields,
		})
		if err != nil {
			return CaptureResult{}, apperr.Wrap(apperr.KindInternal, "failed to update lead tracking", err).WithOp(op)
		}
		s.publishCaptured(ctx, lead, false, input.Source)
		return CaptureResult{Lead: lead, IsNew: false}, nil
	}

	pipeline, stage, err := s.stages.EntryStage(ctx, input.TenantID)
	if err != nil {
		return CaptureResult{}, err
	}

	lead, err := s.store.Create(ctx, repository.CreateLeadParams{
		TenantID:     input.TenantID,
		PipelineID:   pipeline.ID,
		StageID:      stage.ID,
		Name:         name,
		Phone:        optional(normalized),
		PhoneDigits:  optional(digits),
		Email:        optional(email),
		Origin:       string(origin),
		UTMSource:    optional(input.UTMSource),
		UTMMedium:    optional(input.UTMMedium),
		UTMCampaign:  optional(input.UTMCampaign),
		Referrer:     optional(input.Referrer),
		Fields:       input.Fields,
		PlatformData: input.PlatformData,
	})
	if err != nil {
		return CaptureResult{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err).WithOp(op)
	}

	s.metrics.LeadIn(ctx, input.TenantID, lead.CreatedAt)
	s.publishCaptured(ctx, lead, true, input.Source)

	return CaptureResult{Lead: lead, IsNew: true}, nil
}

func (s *Service) resolveOrigin(input CaptureInput) domain.Origin {
	if input.Origin != "" {
		declared := domain.Origin(strings.ToLower(strings.TrimSpace(input.Origin)))
		if domain.IsKnownOrigin(declared) {
			return declared
		}
	}
	return domain.ClassifyOrigin(input.UTMSource, input.UTMMedium)
}

func (s *Service) match(ctx context.Context, tenantID uuid.UUID, digits, email string) (repository.Lead, error) {
	if digits != "" {
		lead, err := s.store.FindByPhoneDigits(ctx, tenantID, digits)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, repository.ErrLeadNotFound) {
			return repository.Lead{}, err
		}
	}
	if email != "" {
		return s.store.FindByEmail(ctx, tenantID, email)
	}
	return repository.Lead{}, repository.ErrLeadNotFound
}

func (s *Service) publishCaptured(ctx context.Context, lead repository.Lead, isNew bool, source string) {
	ev := events.LeadCaptured{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		IsNew:     isNew,
		Origin:    lead.Origin,
		Source:    source,
		Name:      lead.Name,
	}
	if lead.Phone != nil {
		ev.Phone = *lead.Phone
	}
	if lead.Email != nil {
		ev.Email = *lead.Email
	}
	s.bus.Publish(ctx, ev)
}

// FindByPhone resolves a lead by phone using the digits-only matching key.
func (s *Service) FindByPhone(ctx context.Context, tenantID uuid.UUID, phoneNumber string) (repository.Lead, error) {
	digits := phone.Digits(phone.NormalizeE164(phoneNumber))
	if digits == "" {
		return repository.Lead{}, apperr.Validation("phone is required").WithOp("leads.FindByPhone")
	}
	lead, err := s.store.FindByPhoneDigits(ctx, tenantID, digits)
	if errors.Is(err, repository.ErrLeadNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found").WithOp("leads.FindByPhone")
	}
	return lead, err
}

// Get returns a single lead.
func (s *Service) Get(ctx context.Context, leadID, tenantID uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.Get(ctx, leadID, tenantID)
	if errors.Is(err, repository.ErrLeadNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found").WithOp("leads.Get")
	}
	return lead, err
}

// List returns the tenant's leads ordered by recency.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]repository.Lead, error) {
	return s.store.List(ctx, tenantID, limit, offset)
}

// MoveStage transitions a lead to another stage in its pipeline. The target
// stage must belong to the same tenant and pipeline. No-op moves are rejected.
func (s *Service) MoveStage(ctx context.Context, leadID, tenantID, stageID uuid.UUID, actorID *uuid.UUID) (repository.Lead, error) {
	const op = "leads.MoveStage"

	lead, err := s.Get(ctx, leadID, tenantID)
	if err != nil {
		return repository.Lead{}, err
	}

	stage, err := s.stages.Stage(ctx, tenantID, stageID)
	if err != nil {
		return repository.Lead{}, err
	}
	if stage.PipelineID != lead.PipelineID {
		return repository.Lead{}, apperr.Validation("stage belongs to a different pipeline").WithOp(op)
	}
	if stage.ID == lead.StageID {
		return repository.Lead{}, apperr.Validation("lead is already in this stage").WithOp(op)
	}

	fromStage := lead.StageID
	eventData := map[string]any{
		"from_stage": fromStage,
		"to_stage":   stage.ID,
	}
	if actorID != nil {
		eventData["actor_id"] = *actorID
	}

	updated, err := s.store.UpdateStage(ctx, leadID, tenantID, stageID, eventData)
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to move lead stage", err).WithOp(op)
	}

	s.metrics.StageChange(ctx, tenantID, time.Now())
	s.bus.Publish(ctx, events.LeadStageChanged{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     leadID,
		TenantID:   tenantID,
		PipelineID: lead.PipelineID,
		FromStage:  fromStage,
		ToStage:    stage.ID,
		ToFinal:    stage.IsFinal,
		ActorID:    actorID,
	})

	return updated, nil
}

// Schedule stores a follow-up time for the lead and, when a worker is wired,
// enqueues the reminder. Past times are rejected.
func (s *Service) Schedule(ctx context.Context, leadID, tenantID uuid.UUID, at time.Time, note string) (repository.Lead, error) {
	const op = "leads.Schedule"

	if at.Before(time.Now()) {
		return repository.Lead{}, apperr.Validation("scheduled time must be in the future").WithOp(op)
	}

	lead, err := s.store.SetSchedule(ctx, leadID, tenantID, at, note)
	if errors.Is(err, repository.ErrLeadNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found").WithOp(op)
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to schedule follow-up", err).WithOp(op)
	}

	// enqueue the value the database kept, not the caller's: timestamptz
	// rounds to microseconds and the worker matches on the stored time
	reminderAt := at
	if lead.ScheduledAt != nil {
		reminderAt = *lead.ScheduledAt
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleFollowUp(ctx, tenantID, leadID, reminderAt); err != nil {
			// the follow-up time is persisted; the reminder is best effort
			s.logger.Error("failed to enqueue follow-up reminder", "error", err, "lead_id", leadID)
		}
	}

	s.bus.Publish(ctx, events.LeadScheduled{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      leadID,
		TenantID:    tenantID,
		ScheduledAt: reminderAt,
		Note:        note,
	})

	return lead, nil
}

// Timeline returns a lead's audit trail, oldest first.
func (s *Service) Timeline(ctx context.Context, leadID, tenantID uuid.UUID) ([]repository.LeadEvent, error) {
	if _, err := s.Get(ctx, leadID, tenantID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, tenantID, leadID)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
