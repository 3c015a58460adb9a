// Package models contains the persisted entities of the outreach core
package models

import "fmt"

const (
	// DefaultLimit is the max number of rows that are retrieved from the DB per listing API call
	DefaultLimit = 50
)

// ListOptions represents pagination and filtering options for list operations
type ListOptions struct {
	Limit  int `json:"limit"`  // Number of items to return
	Offset int `json:"offset"` // Number of items to skip
}

// ValidateWorkspaceID ensures a workspace scope was provided
func ValidateWorkspaceID(workspaceID string) error {
	if workspaceID == "" {
		return fmt.Errorf("workspace_id cannot be empty")
	}
	return nil
}
