// Package metrics provides the daily per-tenant counters bounded context.
// Counters are incremented synchronously by the owning modules and can be
// rebuilt from the source tables by the nightly recompute job.
package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Daily is one row of per-tenant daily counters.
type Daily struct {
	TenantID        uuid.UUID `json:"tenantId"`
	Date            time.Time `json:"date"`
	LeadsIn         int       `json:"leadsIn"`
	MessagesIn      int       `json:"messagesIn"`
	MessagesOut     int       `json:"messagesOut"`
	StageChanges    int       `json:"stageChanges"`
	SalesCount      int       `json:"salesCount"`
	SalesValueCents int64     `json:"salesValueCents"`
}

// Repository provides data access for daily metrics.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new metrics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Each increment is a single upsert so concurrent writers never lose counts.
// Column names are fixed per method, never interpolated.

func (r *Repository) IncrLeadsIn(ctx context.Context, tenantID uuid.UUID, day time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO metrics_daily (tenant_id, date, leads_in)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET leads_in = metrics_daily.leads_in + 1, updated_at = now()
	`, tenantID, day)
	return err
}

func (r *Repository) IncrMessagesIn(ctx context.Context, tenantID uuid.UUID, day time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO metrics_daily (tenant_id, date, messages_in)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET messages_in = metrics_daily.messages_in + 1, updated_at = now()
	`, tenantID, day)
	return err
}

func (r *Repository) IncrMessagesOut(ctx context.Context, tenantID uuid.UUID, day time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO metrics_daily (tenant_id, date, messages_out)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET messages_out = metrics_daily.messages_out + 1, updated_at = now()
	`, tenantID, day)
	return err
}

func (r *Repository) IncrStageChanges(ctx context.Context, tenantID uuid.UUID, day time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO metrics_daily (tenant_id, date, stage_changes)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET stage_changes = metrics_daily.stage_changes + 1, updated_at = now()
	`, tenantID, day)
	return err
}

func (r *Repository) IncrSale(ctx context.Context, tenantID uuid.UUID, day time.Time, amountCents int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO metrics_daily (tenant_id, date, sales_count, sales_value_cents)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET
			sales_count = metrics_daily.sales_count + 1,
			sales_value_cents = metrics_daily.sales_value_cents + EXCLUDED.sales_value_cents,
			updated_at = now()
	`, tenantID, day, amountCents)
	return err
}

// Range returns the tenant's daily rows within [from, to], oldest first.
// Days without activity have no row.
func (r *Repository) Range(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]Daily, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, date, leads_in, messages_in, messages_out,
		       stage_changes, sales_count, sales_value_cents
		FROM metrics_daily
		WHERE tenant_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Daily
	for rows.Next() {
		var d Daily
		if err := rows.Scan(&d.TenantID, &d.Date, &d.LeadsIn, &d.MessagesIn, &d.MessagesOut,
			&d.StageChanges, &d.SalesCount, &d.SalesValueCents); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecomputeDay rebuilds one day's counters for every tenant from the source
// tables. The upsert overwrites drifted rows, so the rebuild is idempotent.
func (r *Repository) RecomputeDay(ctx context.Context, day time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO metrics_daily
			(tenant_id, date, leads_in, messages_in, messages_out, stage_changes, sales_count, sales_value_cents, updated_at)
		SELECT
			t.id,
			$1::date,
			COALESCE(l.leads_in, 0),
			COALESCE(m.messages_in, 0),
			COALESCE(m.messages_out, 0),
			COALESCE(e.stage_changes, 0),
			COALESCE(s.sales_count, 0),
			COALESCE(s.sales_value_cents, 0),
			now()
		FROM tenants t
		LEFT JOIN (
			SELECT tenant_id, count(*) AS leads_in
			FROM leads
			WHERE created_at::date = $1::date
			GROUP BY tenant_id
		) l ON l.tenant_id = t.id
		LEFT JOIN (
			SELECT tenant_id,
			       count(*) FILTER (WHERE direction = 'in')  AS messages_in,
			       count(*) FILTER (WHERE direction = 'out') AS messages_out
			FROM messages
			WHERE created_at::date = $1::date
			GROUP BY tenant_id
		) m ON m.tenant_id = t.id
		LEFT JOIN (
			SELECT tenant_id, count(*) AS stage_changes
			FROM lead_events
			WHERE type = 'stage_changed' AND created_at::date = $1::date
			GROUP BY tenant_id
		) e ON e.tenant_id = t.id
		LEFT JOIN (
			SELECT tenant_id, count(*) AS sales_count, COALESCE(sum(amount_cents), 0) AS sales_value_cents
			FROM sales
			WHERE created_at::date = $1::date
			GROUP BY tenant_id
		) s ON s.tenant_id = t.id
		WHERE COALESCE(l.leads_in, 0) + COALESCE(m.messages_in, 0) + COALESCE(m.messages_out, 0)
		    + COALESCE(e.stage_changes, 0) + COALESCE(s.sales_count, 0) > 0
		ON CONFLICT (tenant_id, date)
		DO UPDATE SET
			leads_in = EXCLUDED.leads_in,
			messages_in = EXCLUDED.messages_in,
			messages_out = EXCLUDED.messages_out,
			stage_changes = EXCLUDED.stage_changes,
			sales_count = EXCLUDED.sales_count,
			sales_value_cents = EXCLUDED.sales_value_cents,
			updated_at = now()
	`, day)
	return err
}
