package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrEmptyIDList is returned when no record ids are passed to FetchAvailability.
	ErrEmptyIDList = errors.New("id list is empty")

	// ErrEndpointReported is wrapped by StatusError when the endpoint answered
	// with an error field instead of availability data.
	ErrEndpointReported = errors.New("status endpoint reported an error")
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other non-2xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents an attempt that ran out of time.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassRateLimit represents a request that could not obtain a rate
	// limiter slot before its deadline.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassDecode represents a body that is not a valid response.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassEndpoint represents an error field in a well-formed response.
	ErrorClassEndpoint ErrorClass = "endpoint"
)

// StatusError represents a failed availability request with additional context.
type StatusError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("availability %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("availability %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// Class returns the error class as a string for logs and metrics.
func (e *StatusError) Class() string {
	return string(e.ErrorClass)
}
