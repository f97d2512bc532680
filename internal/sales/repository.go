// Package sales provides the sale recording bounded context: a sale snapshots
// the deal value and drives the lead into its pipeline's final stage.
package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sale is a closed deal tied to a lead.
type Sale struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	LeadID      uuid.UUID
	AmountCents int64
	Description string
	CreatedAt   time.Time
}

// Repository provides data access for sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new sales repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a sale.
func (r *Repository) Create(ctx context.Context, tenantID, leadID uuid.UUID, amountCents int64, description string) (Sale, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sales (tenant_id, lead_id, amount_cents, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, tenant_id, lead_id, amount_cents, description, created_at
	`, tenantID, leadID, amountCents, description)

	var s Sale
	err := row.Scan(&s.ID, &s.TenantID, &s.LeadID, &s.AmountCents, &s.Description, &s.CreatedAt)
	return s, err
}

// List returns the tenant's sales, newest first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Sale, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, amount_cents, description, created_at
		FROM sales
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.TenantID, &s.LeadID, &s.AmountCents, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByLead returns a lead's sales, newest first.
func (r *Repository) ListByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, amount_cents, description, created_at
		FROM sales
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at DESC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.TenantID, &s.LeadID, &s.AmountCents, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
