package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents non-retryable HTTP errors (4xx and any
	// status outside the configured retryable set).
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents retryable server errors (500, 502, 503, 504).
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError represents a non-2xx response from the animals API.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
}

// retryable reports whether an error is worth another attempt. Network
// errors and server errors in the retryable status set are transient;
// anything else fails immediately without consuming remaining attempts.
func (c *Client) retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass == ErrorClassServer
	}
	// Anything that is not an APIError came from the transport layer.
	return true
}

// errorClassOf extracts the class from an error for metrics and logging.
func errorClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ErrorClassNetwork
}
