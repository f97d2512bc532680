// Package transport defines the HTTP request/response shapes for the leads
// module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// CaptureLeadRequest is the public form-capture body. Tenant scope is always
// explicit; one of phone or email is required, enforced by the service.
type CaptureLeadRequest struct {
	TenantID    uuid.UUID      `json:"tenantId" validate:"required"`
	Name        string         `json:"name" validate:"max=200"`
	Phone       string         `json:"phone" validate:"omitempty,min=5,max=30"`
	Email       string         `json:"email" validate:"omitempty,email"`
	Origin      string         `json:"origin" validate:"omitempty,max=50"`
	UTMSource   string         `json:"utmSource" validate:"max=200"`
	UTMMedium   string         `json:"utmMedium" validate:"max=200"`
	UTMCampaign string         `json:"utmCampaign" validate:"max=200"`
	Referrer    string         `json:"referrer" validate:"max=500"`
	Fields      map[string]any `json:"fields"`
}

// MoveStageRequest moves a lead to another stage of its pipeline.
type MoveStageRequest struct {
	StageID uuid.UUID `json:"stageId" validate:"required"`
}

// ScheduleRequest sets a follow-up time on a lead.
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
	Note        string    `json:"note" validate:"max=500"`
}

// ListLeadsRequest carries pagination query parameters.
type ListLeadsRequest struct {
	Limit  int `form:"limit" validate:"min=0,max=200"`
	Offset int `form:"offset" validate:"min=0"`
}

// Response DTOs

// LeadResponse is the API shape of a lead.
type LeadResponse struct {
	ID          uuid.UUID      `json:"id"`
	PipelineID  uuid.UUID      `json:"pipelineId"`
	StageID     uuid.UUID      `json:"stageId"`
	Name        string         `json:"name"`
	Phone       *string        `json:"phone,omitempty"`
	Email       *string        `json:"email,omitempty"`
	Origin      string         `json:"origin"`
	UTMSource   *string        `json:"utmSource,omitempty"`
	UTMMedium   *string        `json:"utmMedium,omitempty"`
	UTMCampaign *string        `json:"utmCampaign,omitempty"`
	Referrer    *string        `json:"referrer,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	ScheduledAt *time.Time     `json:"scheduledAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// CaptureLeadResponse wraps the resolved lead with the dedup outcome.
type CaptureLeadResponse struct {
	Lead  LeadResponse `json:"lead"`
	IsNew bool         `json:"isNew"`
}

// LeadEventResponse is one audit trail entry.
type LeadEventResponse struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	ActorID   *uuid.UUID     `json:"actorId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
