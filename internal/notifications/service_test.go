package notifications

import (
	"context"
	"testing"
	"time"

	"leadflow_backend/internal/events"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	rows []Notification
}

func (m *memStore) Create(_ context.Context, p CreateParams) (Notification, error) {
	n := Notification{
		ID:        uuid.New(),
		TenantID:  p.TenantID,
		LeadID:    p.LeadID,
		Kind:      p.Kind,
		Title:     p.Title,
		Body:      p.Body,
		CreatedAt: time.Now(),
	}
	m.rows = append(m.rows, n)
	return n, nil
}

func (m *memStore) List(_ context.Context, tenantID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	var out []Notification
	for _, n := range m.rows {
		if n.TenantID != tenantID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memStore) CountUnread(_ context.Context, tenantID uuid.UUID) (int, error) {
	count := 0
	for _, n := range m.rows {
		if n.TenantID == tenantID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (m *memStore) MarkRead(_ context.Context, notificationID, tenantID uuid.UUID) error {
	for i := range m.rows {
		if m.rows[i].ID == notificationID && m.rows[i].TenantID == tenantID {
			now := time.Now()
			m.rows[i].ReadAt = &now
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *memStore) MarkAllRead(_ context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	now := time.Now()
	for i := range m.rows {
		if m.rows[i].TenantID == tenantID && m.rows[i].ReadAt == nil {
			m.rows[i].ReadAt = &now
			count++
		}
	}
	return count, nil
}

func newTestService() (*Service, *memStore) {
	store := &memStore{}
	return NewService(store, logger.New("test")), store
}

func TestNewLeadEventCreatesNotification(t *testing.T) {
	svc, store := newTestService()
	tenantID := uuid.New()
	leadID := uuid.New()

	err := svc.onLeadCaptured(context.Background(), events.LeadCaptured{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		TenantID:  tenantID,
		IsNew:     true,
		Origin:    "whatsapp",
		Source:    "whatsapp",
		Name:      "Maria Silva",
	})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if len(store.rows) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(store.rows))
	}
	n := store.rows[0]
	if n.Kind != KindLeadNew {
		t.Fatalf("kind = %q", n.Kind)
	}
	if n.LeadID == nil || *n.LeadID != leadID {
		t.Fatal("lead reference missing")
	}
}

func TestRecaptureDoesNotNotify(t *testing.T) {
	svc, store := newTestService()

	err := svc.onLeadCaptured(context.Background(), events.LeadCaptured{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
		TenantID:  uuid.New(),
		IsNew:     false,
	})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatalf("re-capture produced %d notifications", len(store.rows))
	}
}

func TestSaleEventCreatesNotification(t *testing.T) {
	svc, store := newTestService()

	err := svc.onSaleRecorded(context.Background(), events.SaleRecorded{
		BaseEvent:   events.NewBaseEvent(),
		SaleID:      uuid.New(),
		LeadID:      uuid.New(),
		TenantID:    uuid.New(),
		AmountCents: 250000,
	})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if len(store.rows) != 1 || store.rows[0].Kind != KindSale {
		t.Fatalf("expected one sale notification, got %+v", store.rows)
	}
	if store.rows[0].Body != "R$ 2500.00" {
		t.Fatalf("body = %q", store.rows[0].Body)
	}
}

func TestMarkAllReadClearsUnreadCount(t *testing.T) {
	svc, _ := newTestService()
	tenantID := uuid.New()
	ctx := context.Background()

	for range 3 {
		leadID := uuid.New()
		_ = svc.onLeadScheduled(ctx, events.LeadScheduled{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      leadID,
			TenantID:    tenantID,
			ScheduledAt: time.Now().Add(24 * time.Hour),
		})
	}

	count, err := svc.CountUnread(ctx, tenantID)
	if err != nil || count != 3 {
		t.Fatalf("unread = %d, err = %v", count, err)
	}

	marked, err := svc.MarkAllRead(ctx, tenantID)
	if err != nil || marked != 3 {
		t.Fatalf("marked = %d, err = %v", marked, err)
	}

	count, err = svc.CountUnread(ctx, tenantID)
	if err != nil || count != 0 {
		t.Fatalf("unread after mark-all = %d, err = %v", count, err)
	}
}
