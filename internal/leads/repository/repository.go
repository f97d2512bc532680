// Package repository provides data access for leads and their audit trail.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrLeadNotFound = errors.New("lead not found")

// Lead is a prospective customer record tracked through a sales pipeline.
// Leads are never hard-deleted.
type Lead struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	PipelineID   uuid.UUID
	StageID      uuid.UUID
	Name         string
	Phone        *string
	PhoneDigits  *string
	Email        *string
	Origin       string
	UTMSource    *string
	UTMMedium    *string
	UTMCampaign  *string
	Referrer     *string
	Fields       map[string]any
	PlatformData map[string]any
	ScheduledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateLeadParams carries everything needed to insert a lead together with
// its "created" audit event in one transaction.
type CreateLeadParams struct {
	TenantID     uuid.UUID
	PipelineID   uuid.UUID
	StageID      uuid.UUID
	Name         string
	Phone        *string
	PhoneDigits  *string
	Email        *string
	Origin       string
	UTMSource    *string
	UTMMedium    *string
	UTMCampaign  *string
	Referrer     *string
	Fields       map[string]any
	PlatformData map[string]any
}

// UpdateTrackingParams overwrites a lead's tracking attribution on re-capture.
type UpdateTrackingParams struct {
	Name        string
	Origin      string
	UTMSource   *string
	UTMMedium   *string
	UTMCampaign *string
	Referrer    *string
	Fields      map[string]any
}

// Repository provides data access for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, tenant_id, pipeline_id, stage_id, name, phone, phone_digits, email,
	origin, utm_source, utm_medium, utm_campaign, referrer,
	fields, platform_data, scheduled_at, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	var fieldsRaw, platformRaw []byte
	err := row.Scan(
		&l.ID, &l.TenantID, &l.PipelineID, &l.StageID, &l.Name, &l.Phone, &l.PhoneDigits, &l.Email,
		&l.Origin, &l.UTMSource, &l.UTMMedium, &l.UTMCampaign, &l.Referrer,
		&fieldsRaw, &platformRaw, &l.ScheduledAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	if len(fieldsRaw) > 0 {
		_ = json.Unmarshal(fieldsRaw, &l.Fields)
	}
	if len(platformRaw) > 0 {
		_ = json.Unmarshal(platformRaw, &l.PlatformData)
	}
	return l, nil
}

// Get retrieves a lead by ID, tenant scoped.
func (r *Repository) Get(ctx context.Context, leadID, tenantID uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	return lead, err
}

// FindByPhoneDigits retrieves a lead by its digits-only phone key.
func (r *Repository) FindByPhoneDigits(ctx context.Context, tenantID uuid.UUID, digits string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND phone_digits = $2
		ORDER BY created_at
		LIMIT 1
	`, tenantID, digits)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	return lead, err
}

// FindByEmail retrieves a lead by email, case-insensitive.
func (r *Repository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND lower(email) = lower($2)
		ORDER BY created_at
		LIMIT 1
	`, tenantID, strings.TrimSpace(email))
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	return lead, err
}

// Create inserts the lead and its "created" audit event atomically.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	fieldsJSON, err := marshalBlob(params.Fields)
	if err != nil {
		return Lead{}, err
	}
	platformJSON, err := marshalBlob(params.PlatformData)
	if err != nil {
		return Lead{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO leads (
			tenant_id, pipeline_id, stage_id, name, phone, phone_digits, email,
			origin, utm_source, utm_medium, utm_campaign, referrer, fields, platform_data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+leadColumns+`
	`, params.TenantID, params.PipelineID, params.StageID, params.Name,
		params.Phone, params.PhoneDigits, params.Email, params.Origin,
		params.UTMSource, params.UTMMedium, params.UTMCampaign, params.Referrer,
		fieldsJSON, platformJSON)

	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, err
	}

	if err := appendEventTx(ctx, tx, lead.TenantID, lead.ID, "created", map[string]any{
		"origin": lead.Origin,
		"stage":  lead.StageID,
	}); err != nil {
		return Lead{}, err
	}

	return lead, tx.Commit(ctx)
}

// UpdateTracking overwrites name and tracking attribution with the latest
// capture and records an "updated" audit event atomically. Fields are merged
// shallowly, newest key wins.
func (r *Repository) UpdateTracking(ctx context.Context, leadID, tenantID uuid.UUID, params UpdateTrackingParams) (Lead, error) {
	fieldsJSON, err := marshalBlob(params.Fields)
	if err != nil {
		return Lead{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE leads SET
			name = CASE WHEN $3 <> '' THEN $3 ELSE name END,
			origin = $4,
			utm_source = COALESCE($5, utm_source),
			utm_medium = COALESCE($6, utm_medium),
			utm_campaign = COALESCE($7, utm_campaign),
			referrer = COALESCE($8, referrer),
			fields = fields || $9::jsonb,
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+leadColumns+`
	`, leadID, tenantID, params.Name, params.Origin,
		params.UTMSource, params.UTMMedium, params.UTMCampaign, params.Referrer, fieldsJSON)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	if err != nil {
		return Lead{}, err
	}

	if err := appendEventTx(ctx, tx, tenantID, leadID, "updated", map[string]any{
		"origin": params.Origin,
	}); err != nil {
		return Lead{}, err
	}

	return lead, tx.Commit(ctx)
}

// UpdateStage moves a lead to a new stage and records the transition atomically.
func (r *Repository) UpdateStage(ctx context.Context, leadID, tenantID, stageID uuid.UUID, eventData map[string]any) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE leads SET stage_id = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+leadColumns+`
	`, leadID, tenantID, stageID)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	if err != nil {
		return Lead{}, err
	}

	if err := appendEventTx(ctx, tx, tenantID, leadID, "stage_changed", eventData); err != nil {
		return Lead{}, err
	}

	return lead, tx.Commit(ctx)
}

// SetSchedule stores the follow-up time and records a "scheduled" audit event.
func (r *Repository) SetSchedule(ctx context.Context, leadID, tenantID uuid.UUID, scheduledAt time.Time, note string) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE leads SET scheduled_at = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+leadColumns+`
	`, leadID, tenantID, scheduledAt)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrLeadNotFound
	}
	if err != nil {
		return Lead{}, err
	}

	if err := appendEventTx(ctx, tx, tenantID, leadID, "scheduled", map[string]any{
		"scheduled_at": scheduledAt,
		"note":         note,
	}); err != nil {
		return Lead{}, err
	}

	return lead, tx.Commit(ctx)
}

// List returns the tenant's leads ordered by recency.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func marshalBlob(blob map[string]any) ([]byte, error) {
	if blob == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(blob)
}
