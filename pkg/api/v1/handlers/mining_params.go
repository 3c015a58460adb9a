// Package handlers provides HTTP request handling
package handlers

import (
	"errors"
	"time"

	"github.com/socialora/outreach/internal/services"
)

// MiningRunParams defines the body of a comment mining request
type MiningRunParams struct {
	WorkspaceID string             `json:"workspace_id" validate:"required"`
	AccountID   uint               `json:"account_id,omitempty"`
	Posts       []services.PostRef `json:"posts" validate:"required,min=1,dive"`
	Keywords    []string           `json:"keywords" validate:"required,min=1"`
	From        *time.Time         `json:"from,omitempty"`
	To          *time.Time         `json:"to,omitempty"`
	SourceQuery string             `json:"source_query,omitempty"`
}

// Validate validates the mining request
func (p MiningRunParams) Validate() error {
	if err := validateParams(p); err != nil {
		return err
	}
	if p.From != nil && p.To != nil && p.To.Before(*p.From) {
		return errors.New("to must not be before from")
	}
	return nil
}

// Request converts the params into a service request
func (p MiningRunParams) Request() services.MiningRequest {
	req := services.MiningRequest{
		WorkspaceID: p.WorkspaceID,
		Posts:       p.Posts,
		Keywords:    p.Keywords,
		Source:      services.DefaultLeadSource,
		SourceQuery: p.SourceQuery,
	}
	if p.From != nil || p.To != nil {
		req.DateRange = &services.DateRange{}
		if p.From != nil {
			req.DateRange.From = *p.From
		}
		if p.To != nil {
			req.DateRange.To = *p.To
		}
	}
	return req
}

// AutonomousStopParams defines the body of a stop request
type AutonomousStopParams struct {
	RunID string `json:"run_id" validate:"required"`
}

// Validate validates the stop request
func (p AutonomousStopParams) Validate() error {
	return validateParams(p)
}
