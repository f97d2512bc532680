// Package notifications keeps operators informed: in-app notification rows
// fed by domain events, plus the follow-up reminder mailer.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Notification is a tenant-scoped in-app notification.
type Notification struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	LeadID    *uuid.UUID
	Kind      string
	Title     string
	Body      string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// CreateParams carries a notification insert.
type CreateParams struct {
	TenantID uuid.UUID
	LeadID   *uuid.UUID
	Kind     string
	Title    string
	Body     string
}

// Repository provides data access for notifications.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notification row.
func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	var n Notification
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (tenant_id, lead_id, kind, title, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tenant_id, lead_id, kind, title, body, read_at, created_at
	`, p.TenantID, p.LeadID, p.Kind, p.Title, p.Body).Scan(
		&n.ID, &n.TenantID, &n.LeadID, &n.Kind, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt,
	)
	return n, err
}

// List returns the tenant's notifications, newest first. When unreadOnly is
// set, read notifications are filtered out.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, kind, title, body, read_at, created_at
		FROM notifications
		WHERE tenant_id = $1 AND ($2 = false OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, tenantID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.TenantID, &n.LeadID, &n.Kind, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread notifications for the tenant.
func (r *Repository) CountUnread(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications
		WHERE tenant_id = $1 AND read_at IS NULL
	`, tenantID).Scan(&count)
	return count, err
}

// MarkRead marks one notification as read.
func (r *Repository) MarkRead(ctx context.Context, notificationID, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read_at = now()
		WHERE id = $1 AND tenant_id = $2 AND read_at IS NULL
	`, notificationID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// distinguish already-read from missing
		var exists bool
		if err := r.pool.QueryRow(ctx, `
			SELECT true FROM notifications WHERE id = $1 AND tenant_id = $2
		`, notificationID, tenantID).Scan(&exists); errors.Is(err, pgx.ErrNoRows) {
			return ErrNotificationNotFound
		}
	}
	return nil
}

// MarkAllRead marks every unread notification for the tenant as read and
// returns how many were affected.
func (r *Repository) MarkAllRead(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read_at = now()
		WHERE tenant_id = $1 AND read_at IS NULL
	`, tenantID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
