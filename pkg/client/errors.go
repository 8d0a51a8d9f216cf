package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetcher.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrDecode is returned when a successful response body cannot be
	// parsed as JSON. Decode failures are terminal and never retried.
	ErrDecode = errors.New("decode response body")
)

// bodyPreviewLimit bounds how much of an error response body is kept
// for diagnostics.
const bodyPreviewLimit = 300

// StatusError is a terminal HTTP error carrying the status code, reason
// phrase, and a truncated body preview for diagnosability.
type StatusError struct {
	StatusCode  int
	Status      string
	BodyPreview string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.BodyPreview != "" {
		return fmt.Sprintf("upstream returned %s: %s", e.Status, e.BodyPreview)
	}
	return fmt.Sprintf("upstream returned %s", e.Status)
}

// previewBody truncates an error response body to bodyPreviewLimit bytes.
func previewBody(body []byte) string {
	if len(body) > bodyPreviewLimit {
		return string(body[:bodyPreviewLimit])
	}
	return string(body)
}

// ErrorClass represents a classification of request errors for metrics.
type ErrorClass string

const (
	// ErrorClassClient represents non-retryable 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents retryable 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors with no response.
	ErrorClassNetwork ErrorClass = "network"
)

// classifyStatus categorizes a status code for observability.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == 429:
		return ErrorClassRateLimit
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}
