package loader

import (
	"context"
	"errors"
	"fmt"
)

// Common errors reported in Outcome.Err.
var (
	// ErrRetryExhausted is returned when every fetch attempt failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends between attempts.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrAlreadyLoaded is returned when Load is called twice on one loader.
	ErrAlreadyLoaded = errors.New("availability already loaded")

	// ErrNilResponse is returned when a Fetcher reports success without a response.
	ErrNilResponse = errors.New("fetcher returned no response")
)

// EndpointError is a failure reported by the status endpoint in the
// response body rather than at the transport level.
type EndpointError struct {
	Message string
}

// Error implements the error interface.
func (e *EndpointError) Error() string {
	return fmt.Sprintf("status endpoint error: %s", e.Message)
}

// Class returns the error class used in logs and metrics.
func (e *EndpointError) Class() string {
	return "endpoint"
}

// FetcherPanicError reports a Fetcher that panicked during an attempt.
// The attempt counts as failed and is retried like any other failure.
type FetcherPanicError struct {
	Value any
}

// Error implements the error interface.
func (e *FetcherPanicError) Error() string {
	return fmt.Sprintf("fetcher panicked: %v", e.Value)
}

// Class returns the error class used in logs and metrics.
func (e *FetcherPanicError) Class() string {
	return "panic"
}

// classified is implemented by fetch errors that know their error class.
type classified interface {
	Class() string
}

// errorClass returns the class of err, or "unknown".
func errorClass(err error) string {
	var c classified
	if errors.As(err, &c) {
		return c.Class()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNilResponse):
		return "decode"
	}
	return "unknown"
}
