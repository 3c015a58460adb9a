// Package types holds the response shapes shared by the API handlers and the client
package types

import "github.com/socialora/outreach/internal/db/models"

// PaginationResponse represents pagination information for list endpoints
// Example: {"total":42,"page":1,"limit":10,"offset":0}
type PaginationResponse struct {
	// Total number of items returned in this page
	Total int `json:"total"`

	// Current page number (1-based)
	Page int `json:"page"`

	// Maximum number of items per page
	Limit int `json:"limit"`

	// Number of items skipped from the beginning of the result set
	Offset int `json:"offset"`
}

// ListResponse defines a generic response structure for listing resources
// Example: {"rows":[{"id":1,"ig_username":"ali"}],"pagination":{"total":1,"page":1,"limit":100,"offset":0}}
type ListResponse[T any] struct {
	// Array of resource items
	Rows []T `json:"rows"`

	// Pagination information for the result set
	Pagination PaginationResponse `json:"pagination"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status string `json:"status"`
}

// AutonomousStartResponse is returned when an autonomous run is accepted
type AutonomousStartResponse struct {
	RunID string `json:"run_id"`
}

// CampaignScheduleResponse reports the recipients a schedule request placed
type CampaignScheduleResponse struct {
	CampaignID uint `json:"campaign_id"`
	Scheduled  int  `json:"scheduled"`
	// Recipients are the scheduled recipients with their sender and due time
	Recipients []models.CampaignRecipient `json:"recipients"`
}
