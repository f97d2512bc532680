package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LeadEvent is one entry in a lead's append-only audit timeline.
type LeadEvent struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	LeadID    uuid.UUID
	Type      string
	ActorID   *uuid.UUID
	Data      map[string]any
	CreatedAt time.Time
}

func appendEventTx(ctx context.Context, tx pgx.Tx, tenantID, leadID uuid.UUID, eventType string, data map[string]any) error {
	dataJSON, err := marshalBlob(data)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO lead_events (tenant_id, lead_id, type, data)
		VALUES ($1, $2, $3, $4)
	`, tenantID, leadID, eventType, dataJSON)
	return err
}

// AppendEvent records a standalone timeline entry outside any lead mutation.
func (r *Repository) AppendEvent(ctx context.Context, tenantID, leadID uuid.UUID, eventType string, actorID *uuid.UUID, data map[string]any) error {
	dataJSON, err := marshalBlob(data)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO lead_events (tenant_id, lead_id, type, actor_id, data)
		VALUES ($1, $2, $3, $4, $5)
	`, tenantID, leadID, eventType, actorID, dataJSON)
	return err
}

// ListEvents returns a lead's timeline, oldest first.
func (r *Repository) ListEvents(ctx context.Context, tenantID, leadID uuid.UUID) ([]LeadEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, type, actor_id, data, created_at
		FROM lead_events
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []LeadEvent
	for rows.Next() {
		var ev LeadEvent
		var dataRaw []byte
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.LeadID, &ev.Type, &ev.ActorID, &dataRaw, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(dataRaw) > 0 {
			_ = json.Unmarshal(dataRaw, &ev.Data)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
