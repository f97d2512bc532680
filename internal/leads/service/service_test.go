package service

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/tenants"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/events"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	leads  map[uuid.UUID]repository.Lead
	events []repository.LeadEvent

	// mimics timestamptz precision when set
	scheduleRounding time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: make(map[uuid.UUID]repository.Lead)}
}

func (f *fakeStore) Get(_ context.Context, leadID, tenantID uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, repository.ErrLeadNotFound
	}
	return lead, nil
}

func (f *fakeStore) FindByPhoneDigits(_ context.Context, tenantID uuid.UUID, digits string) (repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.TenantID == tenantID && lead.PhoneDigits != nil && *lead.PhoneDigits == digits {
			return lead, nil
		}
	}
	return repository.Lead{}, repository.ErrLeadNotFound
}

func (f *fakeStore) FindByEmail(_ context.Context, tenantID uuid.UUID, email string) (repository.Lead, error) {
	for _, lead := range f.leads {
		if lead.TenantID == tenantID && lead.Email != nil && *lead.Email == email {
			return lead, nil
		}
	}
	return repository.Lead{}, repository.ErrLeadNotFound
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	lead := repository.Lead{
		ID:           uuid.New(),
		TenantID:     params.TenantID,
		PipelineID:   params.PipelineID,
		StageID:      params.StageID,
		Name:         params.Name,
		Phone:        params.Phone,
		PhoneDigits:  params.PhoneDigits,
		Email:        params.Email,
		Origin:       params.Origin,
		UTMSource:    params.UTMSource,
		UTMMedium:    params.UTMMedium,
		UTMCampaign:  params.UTMCampaign,
		Referrer:     params.Referrer,
		Fields:       params.Fields,
		PlatformData: params.PlatformData,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.leads[lead.ID] = lead
	f.appendEvent(lead.TenantID, lead.ID, "created", nil)
	return lead, nil
}

func (f *fakeStore) UpdateTracking(_ context.Context, leadID, tenantID uuid.UUID, params repository.UpdateTrackingParams) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, repository.ErrLeadNotFound
	}
	if params.Name != "" {
		lead.Name = params.Name
	}
	lead.Origin = params.Origin
	if params.UTMSource != nil {
		lead.UTMSource = params.UTMSource
	}
	if params.UTMMedium != nil {
		lead.UTMMedium = params.UTMMedium
	}
	if params.UTMCampaign != nil {
		lead.UTMCampaign = params.UTMCampaign
	}
	if params.Referrer != nil {
		lead.Referrer = params.Referrer
	}
	lead.UpdatedAt = time.Now()
	f.leads[leadID] = lead
	f.appendEvent(tenantID, leadID, "updated", nil)
	return lead, nil
}

func (f *fakeStore) UpdateStage(_ context.Context, leadID, tenantID, stageID uuid.UUID, eventData map[string]any) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, repository.ErrLeadNotFound
	}
	lead.StageID = stageID
	f.leads[leadID] = lead
	f.appendEvent(tenantID, leadID, "stage_changed", eventData)
	return lead, nil
}

func (f *fakeStore) SetSchedule(_ context.Context, leadID, tenantID uuid.UUID, scheduledAt time.Time, _ string) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok || lead.TenantID != tenantID {
		return repository.Lead{}, repository.ErrLeadNotFound
	}
	if f.scheduleRounding > 0 {
		scheduledAt = scheduledAt.Truncate(f.scheduleRounding)
	}
	lead.ScheduledAt = &scheduledAt
	f.leads[leadID] = lead
	f.appendEvent(tenantID, leadID, "scheduled", nil)
	return lead, nil
}

func (f *fakeStore) List(_ context.Context, tenantID uuid.UUID, _, _ int) ([]repository.Lead, error) {
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.TenantID == tenantID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendEvent(_ context.Context, tenantID, leadID uuid.UUID, eventType string, _ *uuid.UUID, data map[string]any) error {
	f.appendEvent(tenantID, leadID, eventType, data)
	return nil
}

func (f *fakeStore) ListEvents(_ context.Context, tenantID, leadID uuid.UUID) ([]repository.LeadEvent, error) {
	var out []repository.LeadEvent
	for _, ev := range f.events {
		if ev.TenantID == tenantID && ev.LeadID == leadID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) appendEvent(tenantID, leadID uuid.UUID, eventType string, data map[string]any) {
	f.events = append(f.events, repository.LeadEvent{
		ID:        uuid.New(),
		TenantID:  tenantID,
		LeadID:    leadID,
		Type:      eventType,
		Data:      data,
		CreatedAt: time.Now(),
	})
}

type fakeStages struct {
	pipeline tenants.Pipeline
	stages   map[uuid.UUID]tenants.Stage
	entry    tenants.Stage
}

func newFakeStages(tenantID uuid.UUID) *fakeStages {
	pipelineID := uuid.New()
	entry := tenants.Stage{ID: uuid.New(), TenantID: tenantID, PipelineID: pipelineID, Name: "Novo", Position: 0}
	won := tenants.Stage{ID: uuid.New(), TenantID: tenantID, PipelineID: pipelineID, Name: "Vendido", Position: 1, IsFinal: true}
	return &fakeStages{
		pipeline: tenants.Pipeline{ID: pipelineID, TenantID: tenantID, IsDefault: true, Stages: []tenants.Stage{entry, won}},
		stages:   map[uuid.UUID]tenants.Stage{entry.ID: entry, won.ID: won},
		entry:    entry,
	}
}

func (f *fakeStages) EntryStage(_ context.Context, _ uuid.UUID) (tenants.Pipeline, tenants.Stage, error) {
	return f.pipeline, f.entry, nil
}

func (f *fakeStages) Stage(_ context.Context, _, stageID uuid.UUID) (tenants.Stage, error) {
	stage, ok := f.stages[stageID]
	if !ok {
		return tenants.Stage{}, apperr.NotFound("stage not found")
	}
	return stage, nil
}

type fakeMetrics struct {
	leadsIn      int
	stageChanges int
}

func (f *fakeMetrics) LeadIn(_ context.Context, _ uuid.UUID, _ time.Time)      { f.leadsIn++ }
func (f *fakeMetrics) StageChange(_ context.Context, _ uuid.UUID, _ time.Time) { f.stageChanges++ }

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event)          { f.published = append(f.published, event) }
func (f *fakeBus) PublishSync(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}
func (f *fakeBus) Subscribe(string, events.Handler) {}

func newTestService(tenantID uuid.UUID) (*Service, *fakeStore, *fakeStages, *fakeMetrics, *fakeBus) {
	store := newFakeStore()
	stages := newFakeStages(tenantID)
	metrics := &fakeMetrics{}
	bus := &fakeBus{}
	svc := New(store, stages, metrics, nil, bus, logger.New("test"))
	return svc, store, stages, metrics, bus
}

func TestCaptureCreatesNewLeadInEntryStage(t *testing.T) {
	tenantID := uuid.New()
	svc, store, stages, metrics, _ := newTestService(tenantID)

	result, err := svc.Capture(context.Background(), CaptureInput{
		TenantID:  tenantID,
		Name:      "Maria Silva",
		Phone:     "+55 11 98888-7777",
		UTMSource: "instagram",
		Source:    "lead-capture",
	})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if !result.IsNew {
		t.Fatal("expected a new lead")
	}
	if result.Lead.StageID != stages.entry.ID {
		t.Errorf("lead not placed in entry stage: got %s", result.Lead.StageID)
	}
	if result.Lead.Origin != "instagram" {
		t.Errorf("origin = %q, want instagram", result.Lead.Origin)
	}
	if result.Lead.PhoneDigits == nil || *result.Lead.PhoneDigits != "5511988887777" {
		t.Errorf("phone digits not normalized: %v", result.Lead.PhoneDigits)
	}
	if metrics.leadsIn != 1 {
		t.Errorf("leads_in = %d, want 1", metrics.leadsIn)
	}
	if len(store.events) != 1 || store.events[0].Type != "created" {
		t.Errorf("expected a single created event, got %+v", store.events)
	}
}

func TestCaptureDeduplicatesByPhoneDigits(t *testing.T) {
	tenantID := uuid.New()
	svc, store, _, metrics, _ := newTestService(tenantID)

	first, err := svc.Capture(context.Background(), CaptureInput{
		TenantID: tenantID,
		Name:     "Maria",
		Phone:    "+5511988887777",
	})
	if err != nil {
		t.Fatalf("first Capture failed: %v", err)
	}

	// same contact, different formatting and fresh campaign attribution
	second, err := svc.Capture(context.Background(), CaptureInput{
		TenantID:  tenantID,
		Name:      "Maria Silva",
		Phone:     "(11) 98888-7777",
		UTMSource: "google",
		UTMMedium: "cpc",
	})
	if err != nil {
		t.Fatalf("second Capture failed: %v", err)
	}

	if second.IsNew {
		t.Fatal("re-capture must not create a new lead")
	}
	if second.Lead.ID != first.Lead.ID {
		t.Errorf("matched wrong lead: %s vs %s", second.Lead.ID, first.Lead.ID)
	}
	if len(store.leads) != 1 {
		t.Fatalf("lead count = %d, want 1", len(store.leads))
	}
	if second.Lead.Origin != "google_ads" {
		t.Errorf("tracking not overwritten: origin = %q", second.Lead.Origin)
	}
	if second.Lead.Name != "Maria Silva" {
		t.Errorf("name not refreshed: %q", second.Lead.Name)
	}
	if metrics.leadsIn != 1 {
		t.Errorf("leads_in = %d, want 1 (re-capture must not count)", metrics.leadsIn)
	}
}

func TestCaptureFallsBackToEmailMatch(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _, _, _ := newTestService(tenantID)

	first, err := svc.Capture(context.Background(), CaptureInput{
		TenantID: tenantID,
		Email:    "maria@example.com",
	})
	if err != nil {
		t.Fatalf("first Capture failed: %v", err)
	}

	second, err := svc.Capture(context.Background(), CaptureInput{
		TenantID: tenantID,
		Email:    "MARIA@example.com",
	})
	if err != nil {
		t.Fatalf("second Capture failed: %v", err)
	}
	if second.IsNew || second.Lead.ID != first.Lead.ID {
		t.Errorf("email match failed: isNew=%v id=%s want=%s", second.IsNew, second.Lead.ID, first.Lead.ID)
	}
}

func TestCaptureRequiresPhoneOrEmail(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _, _, _ := newTestService(tenantID)

	_, err := svc.Capture(context.Background(), CaptureInput{TenantID: tenantID, Name: "anon"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCaptureExplicitOriginWinsOverUTM(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _, _, _ := newTestService(tenantID)

	result, err := svc.Capture(context.Background(), CaptureInput{
		TenantID:  tenantID,
		Phone:     "+5511988887777",
		Origin:    "whatsapp",
		UTMSource: "google",
	})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if result.Lead.Origin != "whatsapp" {
		t.Errorf("origin = %q, want whatsapp", result.Lead.Origin)
	}
}

func TestCaptureUnknownExplicitOriginFallsBackToClassifier(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _, _, _ := newTestService(tenantID)

	result, err := svc.Capture(context.Background(), CaptureInput{
		TenantID:  tenantID,
		Phone:     "+5511988887777",
		Origin:    "carrier-pigeon",
		UTMSource: "fb_ads",
	})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if result.Lead.Origin != "facebook" {
		t.Errorf("origin = %q, want facebook", result.Lead.Origin)
	}
}

func TestMoveStagePublishesTransition(t *testing.T) {
	tenantID := uuid.New()
	svc, store, stages, metrics, bus := newTestService(tenantID)

	result, err := svc.Capture(context.Background(), CaptureInput{TenantID: tenantID, Phone: "+5511988887777"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	var finalStage uuid.UUID
	for id, stage := range stages.stages {
		if stage.IsFinal {
			finalStage = id
		}
	}

	moved, err := svc.MoveStage(context.Background(), result.Lead.ID, tenantID, finalStage, nil)
	if err != nil {
		t.Fatalf("MoveStage failed: %v", err)
	}
	if moved.StageID != finalStage {
		t.Errorf("stage not updated: %s", moved.StageID)
	}
	if metrics.stageChanges != 1 {
		t.Errorf("stage_changes = %d, want 1", metrics.stageChanges)
	}

	var found bool
	for _, ev := range store.events {
		if ev.Type == "stage_changed" {
			found = true
		}
	}
	if !found {
		t.Error("stage_changed event not recorded")
	}

	last := bus.published[len(bus.published)-1]
	if last.EventName() != "leads.stage.changed" {
		t.Errorf("published %q, want leads.stage.changed", last.EventName())
	}
}

func TestMoveStageRejectsSameStage(t *testing.T) {
	tenantID := uuid.New()
	svc, _, stages, _, _ := newTestService(tenantID)

	result, err := svc.Capture(context.Background(), CaptureInput{TenantID: tenantID, Phone: "+5511988887777"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	_, err = svc.MoveStage(context.Background(), result.Lead.ID, tenantID, stages.entry.ID, nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestScheduleRejectsPastTime(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _, _, _ := newTestService(tenantID)

	result, err := svc.Capture(context.Background(), CaptureInput{TenantID: tenantID, Phone: "+5511988887777"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	_, err = svc.Schedule(context.Background(), result.Lead.ID, tenantID, time.Now().Add(-time.Hour), "")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestScheduleStoresFollowUp(t *testing.T) {
	tenantID := uuid.New()
	svc, _, _, _, bus := newTestService(tenantID)

	result, err := svc.Capture(context.Background(), CaptureInput{TenantID: tenantID, Phone: "+5511988887777"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	at := time.Now().Add(24 * time.Hour)
	lead, err := svc.Schedule(context.Background(), result.Lead.ID, tenantID, at, "ligar amanha")
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if lead.ScheduledAt == nil || !lead.ScheduledAt.Equal(at) {
		t.Errorf("scheduled_at = %v, want %v", lead.ScheduledAt, at)
	}

	last := bus.published[len(bus.published)-1]
	if last.EventName() != "leads.lead.scheduled" {
		t.Errorf("published %q, want leads.lead.scheduled", last.EventName())
	}
}

type fakeScheduler struct {
	enqueued []time.Time
}

func (f *fakeScheduler) ScheduleFollowUp(_ context.Context, _, _ uuid.UUID, at time.Time) error {
	f.enqueued = append(f.enqueued, at)
	return nil
}

func TestScheduleEnqueuesStoredTime(t *testing.T) {
	tenantID := uuid.New()
	store := newFakeStore()
	store.scheduleRounding = time.Microsecond
	stages := newFakeStages(tenantID)
	reminders := &fakeScheduler{}
	svc := New(store, stages, &fakeMetrics{}, reminders, &fakeBus{}, logger.New("test"))

	result, err := svc.Capture(context.Background(), CaptureInput{TenantID: tenantID, Phone: "+5511988887777"})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	// nanosecond-precision input; the store keeps microseconds
	at := time.Now().Add(24 * time.Hour).Truncate(time.Microsecond).Add(789 * time.Nanosecond)
	lead, err := svc.Schedule(context.Background(), result.Lead.ID, tenantID, at, "")
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if len(reminders.enqueued) != 1 {
		t.Fatalf("expected one enqueued reminder, got %d", len(reminders.enqueued))
	}
	if lead.ScheduledAt == nil || !reminders.enqueued[0].Equal(*lead.ScheduledAt) {
		t.Errorf("enqueued %v, want stored %v", reminders.enqueued[0], lead.ScheduledAt)
	}
	if reminders.enqueued[0].Equal(at) {
		t.Error("enqueued the raw client time instead of the stored value")
	}
}
