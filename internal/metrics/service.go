package metrics

import (
	"context"
	"time"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Service records counter increments and serves metric queries. Increments
// are best effort: a failed counter write is logged, never propagated, so a
// metrics outage cannot block lead or message flow.
type Service struct {
	repo   *Repository
	logger *logger.Logger
}

// NewService creates a new metrics service.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// dayOf buckets a timestamp into its UTC calendar day.
func dayOf(at time.Time) time.Time {
	return at.UTC().Truncate(24 * time.Hour)
}

// LeadIn counts a newly created lead.
func (s *Service) LeadIn(ctx context.Context, tenantID uuid.UUID, at time.Time) {
	if err := s.repo.IncrLeadsIn(ctx, tenantID, dayOf(at)); err != nil {
		s.logger.DatabaseError("metrics.leads_in", err)
	}
}

// MessageIn counts a stored inbound message.
func (s *Service) MessageIn(ctx context.Context, tenantID uuid.UUID, at time.Time) {
	if err := s.repo.IncrMessagesIn(ctx, tenantID, dayOf(at)); err != nil {
		s.logger.DatabaseError("metrics.messages_in", err)
	}
}

// MessageOut counts a stored outbound message.
func (s *Service) MessageOut(ctx context.Context, tenantID uuid.UUID, at time.Time) {
	if err := s.repo.IncrMessagesOut(ctx, tenantID, dayOf(at)); err != nil {
		s.logger.DatabaseError("metrics.messages_out", err)
	}
}

// StageChange counts a lead stage transition.
func (s *Service) StageChange(ctx context.Context, tenantID uuid.UUID, at time.Time) {
	if err := s.repo.IncrStageChanges(ctx, tenantID, dayOf(at)); err != nil {
		s.logger.DatabaseError("metrics.stage_changes", err)
	}
}

// Sale counts a recorded sale and its value.
func (s *Service) Sale(ctx context.Context, tenantID uuid.UUID, at time.Time, amountCents int64) {
	if err := s.repo.IncrSale(ctx, tenantID, dayOf(at), amountCents); err != nil {
		s.logger.DatabaseError("metrics.sales", err)
	}
}

// Range returns the tenant's daily counters in [from, to]. The range is
// capped at one year.
func (s *Service) Range(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]Daily, error) {
	const op = "metrics.Range"
	if to.Before(from) {
		return nil, apperr.Validation("to must not be before from").WithOp(op)
	}
	if to.Sub(from) > 366*24*time.Hour {
		return nil, apperr.Validation("range exceeds one year").WithOp(op)
	}
	rows, err := s.repo.Range(ctx, tenantID, dayOf(from), dayOf(to))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to query metrics", err).WithOp(op)
	}
	return rows, nil
}

// Recompute rebuilds one day's counters for all tenants. Runs nightly for
// the previous day and is safe to invoke ad hoc for any day.
func (s *Service) Recompute(ctx context.Context, day time.Time) error {
	if err := s.repo.RecomputeDay(ctx, dayOf(day)); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to recompute metrics", err).WithOp("metrics.Recompute")
	}
	s.logger.Info("metrics recomputed", "date", dayOf(day).Format("2006-01-02"))
	return nil
}
