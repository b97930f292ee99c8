// Package health tracks the status endpoint's health across loader runs.
// State is kept in Redis so every process rendering pages sees the same
// failure streak.
package health

import (
	"time"
)

// DefaultKey is the Redis hash holding the endpoint health state.
const DefaultKey = "availability:health"

// Hash fields of the health state.
const (
	fieldConsecutiveFailures = "consecutive_failures"
	fieldLastError           = "last_error"
	fieldLastSuccess         = "last_success"
	fieldLastFailure         = "last_failure"
	fieldLastAttempts        = "last_attempts"
)

// UnhealthyThreshold is the failure streak at which the endpoint is
// reported unhealthy. A streak counts loads, not attempts.
const UnhealthyThreshold = 3

// State represents the endpoint health shared via Redis.
type State struct {
	// ConsecutiveFailures counts loads that ended in the error state since
	// the last successful load.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastError is the message of the most recent failure.
	LastError string `json:"last_error,omitempty"`

	LastSuccess time.Time `json:"last_success"`
	LastFailure time.Time `json:"last_failure"`

	// LastAttempts is the number of attempts the last successful load needed.
	LastAttempts int `json:"last_attempts"`

	// IsHealthy is true while ConsecutiveFailures < UnhealthyThreshold.
	IsHealthy bool `json:"is_healthy"`
}

// UpdateHealth updates the IsHealthy field based on ConsecutiveFailures.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.ConsecutiveFailures < UnhealthyThreshold
}

// FailingFor returns the time since the last success while a failure
// streak is running. Returns 0 if the endpoint is not failing or has never
// succeeded.
func (s *State) FailingFor() time.Duration {
	if s.ConsecutiveFailures == 0 || s.LastSuccess.IsZero() {
		return 0
	}
	return time.Since(s.LastSuccess)
}
