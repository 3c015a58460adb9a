// Package handlers provides HTTP request handling
package handlers

// RPC method constants for standardized method naming
const (
	// Lead methods
	LeadGet    = "lead.get"
	LeadList   = "lead.list"
	LeadEnrich = "lead.enrich"

	// Job methods
	JobList = "job.list"
)

// IsLeadMethod checks if the given method is a lead operation
func IsLeadMethod(method string) bool {
	switch method {
	case LeadGet, LeadList, LeadEnrich:
		return true
	default:
		return false
	}
}

// IsJobMethod checks if the given method is a job operation
func IsJobMethod(method string) bool {
	return method == JobList
}
