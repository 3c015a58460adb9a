package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/socialora/outreach/internal/db/models"
)

// Service errors
var (
	// ErrNotFound is returned when a job, campaign, lead or account does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a request is rejected before any work is done
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotConfigured is returned when a required collaborator or setting is missing
	ErrNotConfigured = errors.New("not configured")
)

// Outcome summarises a batch operation
type Outcome string

// Outcome values
const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// outcomeOf derives the outcome from the number of attempted and failed units
func outcomeOf(total, failed int) Outcome {
	switch {
	case failed == 0:
		return OutcomeSuccess
	case failed >= total:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// lookupError tags record-not-found errors with ErrNotFound
func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

// invalidInput tags validation errors with ErrInvalidInput
func invalidInput(err error) error {
	if err == nil || errors.Is(err, ErrInvalidInput) {
		return err
	}
	return errors.Join(ErrInvalidInput, err)
}

// IsValidationError reports whether err was caused by rejected input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, models.ErrInvalidPayload)
}
