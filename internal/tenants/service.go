package tenants

import (
	"context"
	"errors"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// Service exposes tenant and pipeline resolution to other modules.
type Service struct {
	repo *Repository
}

// NewService creates a new tenants service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ResolveTenant confirms the tenant exists and returns it.
func (s *Service) ResolveTenant(ctx context.Context, tenantID uuid.UUID) (Tenant, error) {
	tenant, err := s.repo.GetTenant(ctx, tenantID)
	if errors.Is(err, ErrTenantNotFound) {
		return Tenant{}, apperr.NotFound("tenant not found").WithOp("tenants.ResolveTenant")
	}
	return tenant, err
}

// EntryStage resolves the tenant's default pipeline and its first stage.
// A tenant without a default pipeline, or a default pipeline without stages,
// cannot receive leads: the caller gets a typed not-found error instead of a
// silent short-circuit.
func (s *Service) EntryStage(ctx context.Context, tenantID uuid.UUID) (Pipeline, Stage, error) {
	pipeline, err := s.repo.DefaultPipeline(ctx, tenantID)
	if errors.Is(err, ErrPipelineNotFound) {
		return Pipeline{}, Stage{}, apperr.NotFound("tenant has no default pipeline").WithOp("tenants.EntryStage")
	}
	if err != nil {
		return Pipeline{}, Stage{}, err
	}
	if len(pipeline.Stages) == 0 {
		return Pipeline{}, Stage{}, apperr.NotFound("default pipeline has no stages").WithOp("tenants.EntryStage")
	}
	return pipeline, pipeline.Stages[0], nil
}

// ResolvePipeline retrieves a pipeline with its ordered stages, tenant scoped.
func (s *Service) ResolvePipeline(ctx context.Context, tenantID, pipelineID uuid.UUID) (Pipeline, error) {
	pipeline, err := s.repo.GetPipeline(ctx, pipelineID, tenantID)
	if errors.Is(err, ErrPipelineNotFound) {
		return Pipeline{}, apperr.NotFound("pipeline not found").WithOp("tenants.ResolvePipeline")
	}
	return pipeline, err
}

// Stage retrieves a single stage, tenant scoped.
func (s *Service) Stage(ctx context.Context, tenantID, stageID uuid.UUID) (Stage, error) {
	stage, err := s.repo.GetStage(ctx, stageID, tenantID)
	if errors.Is(err, ErrStageNotFound) {
		return Stage{}, apperr.NotFound("stage not found").WithOp("tenants.Stage")
	}
	return stage, err
}

// FinalStage resolves the closing stage of a pipeline via the explicit
// is_final column. Falls back to the last stage when none is flagged.
func (s *Service) FinalStage(ctx context.Context, tenantID, pipelineID uuid.UUID) (Stage, error) {
	stage, err := s.repo.FinalStage(ctx, pipelineID)
	if err == nil {
		return stage, nil
	}
	if !errors.Is(err, ErrStageNotFound) {
		return Stage{}, err
	}

	pipeline, err := s.repo.GetPipeline(ctx, pipelineID, tenantID)
	if errors.Is(err, ErrPipelineNotFound) {
		return Stage{}, apperr.NotFound("pipeline not found").WithOp("tenants.FinalStage")
	}
	if err != nil {
		return Stage{}, err
	}
	if len(pipeline.Stages) == 0 {
		return Stage{}, apperr.NotFound("pipeline has no stages").WithOp("tenants.FinalStage")
	}
	return pipeline.Stages[len(pipeline.Stages)-1], nil
}
