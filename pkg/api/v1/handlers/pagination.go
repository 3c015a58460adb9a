package handlers

import "github.com/socialora/outreach/internal/db/models"

const (
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 100
	// MinPageSize is the minimum allowed page size
	MinPageSize = 1
	// MaxPageSize is the maximum allowed page size
	MaxPageSize = 1000
)

// getPaginationOptions returns a ListOptions struct with validated pagination parameters
func getPaginationOptions(page, limit int) *models.ListOptions {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit < MinPageSize:
		limit = MinPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	return &models.ListOptions{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}
