// Package handlers provides HTTP request handling
package handlers

import (
	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
)

// LeadGetParams defines the parameters for retrieving a lead
type LeadGetParams struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	LeadID      uint   `json:"lead_id" validate:"required,gt=0"`
}

// Validate validates the parameters for retrieving a lead
func (p LeadGetParams) Validate() error {
	return validateParams(p)
}

// LeadEnrichParams defines the parameters for enriching a lead from its profile
type LeadEnrichParams struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	LeadID      uint   `json:"lead_id" validate:"required,gt=0"`
}

// Validate validates the parameters for enriching a lead
func (p LeadEnrichParams) Validate() error {
	return validateParams(p)
}

// LeadListParams defines the parameters for listing leads
type LeadListParams struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=new contacted replied converted unsubscribed"`
	City        string `json:"city,omitempty"`
	MinScore    int    `json:"min_score,omitempty" validate:"gte=0,lte=100"`
	Page        int    `json:"page,omitempty" validate:"gte=0"`
	Limit       int    `json:"limit,omitempty" validate:"gte=0,lte=1000"`
}

// Validate validates the parameters for listing leads
func (p LeadListParams) Validate() error {
	return validateParams(p)
}

// Filter converts the params into a repository filter
func (p LeadListParams) Filter() repos.LeadFilter {
	return repos.LeadFilter{
		Status:   models.LeadStatus(p.Status),
		City:     p.City,
		MinScore: p.MinScore,
	}
}
