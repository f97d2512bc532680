// Package tenants provides the tenant/pipeline bounded context.
// Every other module resolves its tenant scope and pipeline layout here.
package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrStageNotFound    = errors.New("stage not found")
	ErrStageOccupied    = errors.New("stage still has leads")
)

// Tenant is an isolated customer organization.
type Tenant struct {
	ID          uuid.UUID
	Name        string
	NotifyEmail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Pipeline is an ordered sequence of stages a lead progresses through.
type Pipeline struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	IsDefault bool
	Position  int
	Stages    []Stage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stage is a single step within a pipeline. IsFinal is an explicit column,
// not inferred from the stage name.
type Stage struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	PipelineID uuid.UUID
	Name       string
	Color      string
	Position   int
	IsFinal    bool
}

// Repository provides data access for tenants, pipelines, and stages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new tenants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetTenant retrieves a tenant by ID.
func (r *Repository) GetTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, notify_email, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&t.ID, &t.Name, &t.NotifyEmail, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrTenantNotFound
	}
	return t, err
}

// DefaultPipeline returns the tenant's default pipeline with its ordered stages.
func (r *Repository) DefaultPipeline(ctx context.Context, tenantID uuid.UUID) (Pipeline, error) {
	var p Pipeline
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, is_default, position, created_at, updated_at
		FROM pipelines
		WHERE tenant_id = $1 AND is_default = true
	`, tenantID).Scan(&p.ID, &p.TenantID, &p.Name, &p.IsDefault, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pipeline{}, ErrPipelineNotFound
	}
	if err != nil {
		return Pipeline{}, err
	}

	stages, err := r.ListStages(ctx, p.ID)
	if err != nil {
		return Pipeline{}, err
	}
	p.Stages = stages
	return p, nil
}

// GetPipeline returns a pipeline with its ordered stages, tenant scoped.
func (r *Repository) GetPipeline(ctx context.Context, pipelineID, tenantID uuid.UUID) (Pipeline, error) {
	var p Pipeline
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, is_default, position, created_at, updated_at
		FROM pipelines
		WHERE id = $1 AND tenant_id = $2
	`, pipelineID, tenantID).Scan(&p.ID, &p.TenantID, &p.Name, &p.IsDefault, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Pipeline{}, ErrPipelineNotFound
	}
	if err != nil {
		return Pipeline{}, err
	}

	stages, err := r.ListStages(ctx, p.ID)
	if err != nil {
		return Pipeline{}, err
	}
	p.Stages = stages
	return p, nil
}

// ListPipelines returns all pipelines for a tenant with their stages.
func (r *Repository) ListPipelines(ctx context.Context, tenantID uuid.UUID) ([]Pipeline, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, is_default, position, created_at, updated_at
		FROM pipelines
		WHERE tenant_id = $1
		ORDER BY position, created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pipelines []Pipeline
	for rows.Next() {
		var p Pipeline
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.IsDefault, &p.Position, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range pipelines {
		stages, err := r.ListStages(ctx, pipelines[i].ID)
		if err != nil {
			return nil, err
		}
		pipelines[i].Stages = stages
	}
	return pipelines, nil
}

// ListStages returns a pipeline's stages ordered by position.
func (r *Repository) ListStages(ctx context.Context, pipelineID uuid.UUID) ([]Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, pipeline_id, name, color, position, is_final
		FROM stages
		WHERE pipeline_id = $1
		ORDER BY position
	`, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.ID, &s.TenantID, &s.PipelineID, &s.Name, &s.Color, &s.Position, &s.IsFinal); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// GetStage returns a stage by ID, tenant scoped.
func (r *Repository) GetStage(ctx context.Context, stageID, tenantID uuid.UUID) (Stage, error) {
	var s Stage
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, pipeline_id, name, color, position, is_final
		FROM stages
		WHERE id = $1 AND tenant_id = $2
	`, stageID, tenantID).Scan(&s.ID, &s.TenantID, &s.PipelineID, &s.Name, &s.Color, &s.Position, &s.IsFinal)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return s, err
}

// FinalStage returns the first final stage of a pipeline, if any.
func (r *Repository) FinalStage(ctx context.Context, pipelineID uuid.UUID) (Stage, error) {
	var s Stage
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, pipeline_id, name, color, position, is_final
		FROM stages
		WHERE pipeline_id = $1 AND is_final = true
		ORDER BY position
		LIMIT 1
	`, pipelineID).Scan(&s.ID, &s.TenantID, &s.PipelineID, &s.Name, &s.Color, &s.Position, &s.IsFinal)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return s, err
}

// CreatePipeline creates a pipeline. When isDefault is set, any previous
// default is cleared in the same transaction.
func (r *Repository) CreatePipeline(ctx context.Context, tenantID uuid.UUID, name string, isDefault bool, position int) (Pipeline, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Pipeline{}, err
	}
	defer tx.Rollback(ctx)

	if isDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE pipelines SET is_default = false, updated_at = now()
			WHERE tenant_id = $1 AND is_default = true
		`, tenantID); err != nil {
			return Pipeline{}, err
		}
	}

	var p Pipeline
	err = tx.QueryRow(ctx, `
		INSERT INTO pipelines (tenant_id, name, is_default, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, tenant_id, name, is_default, position, created_at, updated_at
	`, tenantID, name, isDefault, position).Scan(&p.ID, &p.TenantID, &p.Name, &p.IsDefault, &p.Position, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Pipeline{}, err
	}

	return p, tx.Commit(ctx)
}

// CreateStage appends a stage to a pipeline.
func (r *Repository) CreateStage(ctx context.Context, tenantID, pipelineID uuid.UUID, name, color string, position int, isFinal bool) (Stage, error) {
	var s Stage
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stages (tenant_id, pipeline_id, name, color, position, is_final)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tenant_id, pipeline_id, name, color, position, is_final
	`, tenantID, pipelineID, name, color, position, isFinal).Scan(
		&s.ID, &s.TenantID, &s.PipelineID, &s.Name, &s.Color, &s.Position, &s.IsFinal,
	)
	return s, err
}

// UpdateStage changes a stage's name, color, position, or final flag.
func (r *Repository) UpdateStage(ctx context.Context, stageID, tenantID uuid.UUID, name, color string, position int, isFinal bool) (Stage, error) {
	var s Stage
	err := r.pool.QueryRow(ctx, `
		UPDATE stages
		SET name = $3, color = $4, position = $5, is_final = $6
		WHERE id = $1 AND tenant_id = $2
		RETURNING id, tenant_id, pipeline_id, name, color, position, is_final
	`, stageID, tenantID, name, color, position, isFinal).Scan(
		&s.ID, &s.TenantID, &s.PipelineID, &s.Name, &s.Color, &s.Position, &s.IsFinal,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return s, err
}

// DeleteStage removes a stage. Fails when leads still occupy it so a
// misconfigured board cannot orphan leads.
func (r *Repository) DeleteStage(ctx context.Context, stageID, tenantID uuid.UUID) error {
	var occupied int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM leads WHERE stage_id = $1 AND tenant_id = $2
	`, stageID, tenantID).Scan(&occupied)
	if err != nil {
		return err
	}
	if occupied > 0 {
		return ErrStageOccupied
	}

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM stages WHERE id = $1 AND tenant_id = $2
	`, stageID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}

// StageCounts returns the number of active leads per stage of a pipeline.
func (r *Repository) StageCounts(ctx context.Context, tenantID, pipelineID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, COUNT(l.id)
		FROM stages s
		LEFT JOIN leads l ON l.stage_id = s.id AND l.tenant_id = s.tenant_id
		WHERE s.pipeline_id = $1 AND s.tenant_id = $2
		GROUP BY s.id
	`, pipelineID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var stageID uuid.UUID
		var count int
		if err := rows.Scan(&stageID, &count); err != nil {
			return nil, err
		}
		counts[stageID] = count
	}
	return counts, rows.Err()
}
