package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store abstracts lead persistence for the service layer.
type Store interface {
	Get(ctx context.Context, leadID, tenantID uuid.UUID) (Lead, error)
	FindByPhoneDigits(ctx context.Context, tenantID uuid.UUID, digits string) (Lead, error)
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (Lead, error)
	Create(ctx context.Context, params CreateLeadParams) (Lead, error)
	UpdateTracking(ctx context.Context, leadID, tenantID uuid.UUID, params UpdateTrackingParams) (Lead, error)
	UpdateStage(ctx context.Context, leadID, tenantID, stageID uuid.UUID, eventData map[string]any) (Lead, error)
	SetSchedule(ctx context.Context, leadID, tenantID uuid.UUID, scheduledAt time.Time, note string) (Lead, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Lead, error)
	AppendEvent(ctx context.Context, tenantID, leadID uuid.UUID, eventType string, actorID *uuid.UUID, data map[string]any) error
	ListEvents(ctx context.Context, tenantID, leadID uuid.UUID) ([]LeadEvent, error)
}
