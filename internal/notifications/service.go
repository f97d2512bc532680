package notifications

import (
	"context"
	"errors"
	"fmt"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Notification kinds.
const (
	KindLeadNew  = "lead_new"
	KindSale     = "sale"
	KindFollowUp = "follow_up"
	// KindFollowUpDue marks the reminder fired when the follow-up time arrives.
	KindFollowUpDue = "follow_up_due"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, tenantID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, error)
	CountUnread(ctx context.Context, tenantID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, notificationID, tenantID uuid.UUID) error
	MarkAllRead(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// Service turns domain events into notification rows and serves the
// operator-facing notification feed. Event handling is best effort: a failed
// insert is logged, never propagated to the publishing flow.
type Service struct {
	store Store
	log   *logger.Logger
}

// NewService creates the notifications service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Register subscribes the service to the domain events it renders.
func (s *Service) Register(bus events.Bus) {
	bus.Subscribe(events.LeadCaptured{}.EventName(), events.HandlerFunc(s.onLeadCaptured))
	bus.Subscribe(events.SaleRecorded{}.EventName(), events.HandlerFunc(s.onSaleRecorded))
	bus.Subscribe(events.LeadScheduled{}.EventName(), events.HandlerFunc(s.onLeadScheduled))
}

func (s *Service) onLeadCaptured(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.LeadCaptured)
	if !ok || !ev.IsNew {
		return nil
	}

	name := ev.Name
	if name == "" {
		name = "Unnamed lead"
	}
	s.create(ctx, CreateParams{
		TenantID: ev.TenantID,
		LeadID:   &ev.LeadID,
		Kind:     KindLeadNew,
		Title:    fmt.Sprintf("New lead: %s", name),
		Body:     fmt.Sprintf("Captured via %s (%s)", ev.Source, ev.Origin),
	})
	return nil
}

func (s *Service) onSaleRecorded(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.SaleRecorded)
	if !ok {
		return nil
	}

	s.create(ctx, CreateParams{
		TenantID: ev.TenantID,
		LeadID:   &ev.LeadID,
		Kind:     KindSale,
		Title:    "Sale recorded",
		Body:     fmt.Sprintf("R$ %.2f", float64(ev.AmountCents)/100),
	})
	return nil
}

func (s *Service) onLeadScheduled(ctx context.Context, event events.Event) error {
	ev, ok := event.(events.LeadScheduled)
	if !ok {
		return nil
	}

	body := fmt.Sprintf("Follow-up at %s", ev.ScheduledAt.Format("02/01/2006 15:04"))
	if ev.Note != "" {
		body += ": " + ev.Note
	}
	s.create(ctx, CreateParams{
		TenantID: ev.TenantID,
		LeadID:   &ev.LeadID,
		Kind:     KindFollowUp,
		Title:    "Follow-up scheduled",
		Body:     body,
	})
	return nil
}

func (s *Service) create(ctx context.Context, p CreateParams) {
	if _, err := s.store.Create(ctx, p); err != nil {
		s.log.DatabaseError("notifications.Create", err)
	}
}

// List returns the tenant's notification feed.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.store.List(ctx, tenantID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list notifications", err).WithOp("notifications.List")
	}
	return out, nil
}

// CountUnread returns the tenant's unread notification count.
func (s *Service) CountUnread(ctx context.Context, tenantID uuid.UUID) (int, error) {
	count, err := s.store.CountUnread(ctx, tenantID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to count notifications", err).WithOp("notifications.CountUnread")
	}
	return count, nil
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, notificationID, tenantID uuid.UUID) error {
	err := s.store.MarkRead(ctx, notificationID, tenantID)
	if errors.Is(err, ErrNotificationNotFound) {
		return apperr.NotFound("notification not found").WithOp("notifications.MarkRead")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to mark notification read", err).WithOp("notifications.MarkRead")
	}
	return nil
}

// MarkAllRead marks every unread notification for the tenant as read.
func (s *Service) MarkAllRead(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	count, err := s.store.MarkAllRead(ctx, tenantID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to mark notifications read", err).WithOp("notifications.MarkAllRead")
	}
	return count, nil
}
