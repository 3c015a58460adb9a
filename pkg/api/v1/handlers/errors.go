// Package handlers provides HTTP request handling
package handlers

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/services"
)

// Common error messages
const (
	ErrMsgInvalidParams     = "Invalid parameters"
	ErrMsgInvalidReqFormat  = "Invalid request format"
	ErrMsgInvalidReqBody    = "Invalid request body"
	ErrMsgMethodRequired    = "Method is required"
	ErrMsgUnknownMethod     = "Unknown method"
	ErrMsgUnknownLeadMethod = "Unknown lead method"
	ErrMsgUnknownJobMethod  = "Unknown job method"
	ErrMsgWorkspaceRequired = "Workspace id is required"
)

// Job error messages
const (
	ErrMsgInvalidJobID        = "Invalid job id"
	ErrMsgJobNotFound         = "Job not found"
	ErrMsgJobEnqueueFailed    = "Failed to enqueue job"
	ErrMsgJobClaimFailed      = "Failed to claim job"
	ErrMsgJobListFailed       = "Failed to list jobs"
	ErrMsgJobGetFailed        = "Failed to get job"
	ErrMsgScheduleCheckFailed = "Failed to check job schedule"
)

// Campaign error messages
const (
	ErrMsgInvalidCampaignID    = "Invalid campaign id"
	ErrMsgCampaignNotFound     = "Campaign not found"
	ErrMsgCampaignProcFailed   = "Failed to process campaigns"
	ErrMsgCampaignSchedFailed  = "Failed to schedule campaign"
	ErrMsgCampaignAccountsReqd = "At least one sender account is required"
)

// Mining error messages
const (
	ErrMsgMiningFailed     = "Failed to run comment mining"
	ErrMsgAutonomousFailed = "Failed to start autonomous mining"
	ErrMsgStopFailed       = "Failed to stop autonomous mining"
	ErrMsgRunInProgress    = "Autonomous run already in progress"
)

// Lead error messages
const (
	ErrMsgInvalidLeadID    = "Invalid lead id"
	ErrMsgLeadNotFound     = "Lead not found"
	ErrMsgLeadListFailed   = "Failed to list leads"
	ErrMsgLeadGetFailed    = "Failed to get lead"
	ErrMsgLeadEnrichFailed = "Failed to enrich lead"
)

// Pagination error messages
const (
	ErrMsgNegativePagination = "Page must be a positive number from 1"
)

// statusOf maps a service error to an HTTP status code
func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case services.IsValidationError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrRunInProgress):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// failureMessage picks the not-found message for lookups and the generic one otherwise
func failureMessage(err error, notFound, failed string) string {
	if errors.Is(err, services.ErrNotFound) {
		return notFound
	}
	return failed
}
