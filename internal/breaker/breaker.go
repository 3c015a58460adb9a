// Package breaker builds the circuit breakers guarding outbound collaborators
package breaker

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/socialora/outreach/internal/logger"
)

// Settings tunes a breaker, zero values take the defaults
type Settings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// MinRequests is the number of requests in an interval before the failure ratio is considered
	MinRequests  uint32
	FailureRatio float64
	// IsSuccessful reports errors that must not count as failures, nil counts every error
	IsSuccessful func(err error) bool
}

func (s Settings) withDefaults() Settings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 5
	}
	if s.Interval == 0 {
		s.Interval = 30 * time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}
	return s
}

// New creates a breaker that opens once the failure ratio crosses the threshold
func New(name string, s Settings) *gobreaker.CircuitBreaker {
	s = s.withDefaults()
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		IsSuccessful: s.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnWithFields("Circuit breaker state changed", logger.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
}
