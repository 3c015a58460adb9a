// Package handlers provides HTTP request handling
package handlers

import (
	"encoding/json"
	"time"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/services"
)

// JobListParams defines the parameters for listing jobs
type JobListParams struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=QUEUED PROCESSING COMPLETED FAILED"`
	JobType     string `json:"job_type,omitempty" validate:"omitempty,oneof=DISCOVERY_JOB EXTRACTION_JOB DM"`
	Page        int    `json:"page,omitempty" validate:"gte=0"`
	Limit       int    `json:"limit,omitempty" validate:"gte=0,lte=1000"`
}

// Validate validates the parameters for listing jobs
func (p JobListParams) Validate() error {
	return validateParams(p)
}

// Filter converts the params into a repository filter
func (p JobListParams) Filter() repos.JobFilter {
	return repos.JobFilter{
		Status:  models.JobStatus(p.Status),
		JobType: models.JobType(p.JobType),
	}
}

// EnqueueJobParams defines the body of a job enqueue request
type EnqueueJobParams struct {
	WorkspaceID string          `json:"workspace_id" validate:"required"`
	JobType     string          `json:"job_type" validate:"required,oneof=DISCOVERY_JOB EXTRACTION_JOB DM"`
	Payload     json.RawMessage `json:"payload" validate:"required"`
	// ScheduledAt defaults to now
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	AccountID   *uint      `json:"account_id,omitempty" validate:"omitempty,gt=0"`
	CampaignID  *uint      `json:"campaign_id,omitempty" validate:"omitempty,gt=0"`
	LeadID      *uint      `json:"lead_id,omitempty" validate:"omitempty,gt=0"`
}

// Validate validates the enqueue request
func (p EnqueueJobParams) Validate() error {
	return validateParams(p)
}

// Request converts the params into a service request
func (p EnqueueJobParams) Request() services.EnqueueRequest {
	req := services.EnqueueRequest{
		WorkspaceID: p.WorkspaceID,
		JobType:     models.JobType(p.JobType),
		Payload:     p.Payload,
		AccountID:   p.AccountID,
		CampaignID:  p.CampaignID,
		LeadID:      p.LeadID,
	}
	if p.ScheduledAt != nil {
		req.ScheduledAt = *p.ScheduledAt
	}
	return req
}
