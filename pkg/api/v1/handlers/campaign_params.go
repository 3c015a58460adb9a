// Package handlers provides HTTP request handling
package handlers

import (
	"time"

	"github.com/socialora/outreach/internal/services"
)

// ScheduleCampaignParams defines the body of a campaign schedule request
type ScheduleCampaignParams struct {
	AccountIDs   []uint     `json:"account_ids" validate:"required,min=1,dive,gt=0"`
	RecipientIDs []uint     `json:"recipient_ids,omitempty" validate:"omitempty,dive,gt=0"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	Activate     bool       `json:"activate,omitempty"`
}

// Validate validates the schedule request
func (p ScheduleCampaignParams) Validate() error {
	return validateParams(p)
}

// Config converts the params into the scheduler configuration
func (p ScheduleCampaignParams) Config() services.ScheduleConfig {
	cfg := services.ScheduleConfig{
		AccountIDs:   p.AccountIDs,
		RecipientIDs: p.RecipientIDs,
		Activate:     p.Activate,
	}
	if p.StartAt != nil {
		cfg.StartAt = *p.StartAt
	}
	return cfg
}
