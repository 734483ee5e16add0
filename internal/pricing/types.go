// Package pricing provides a client for the structured flight pricing API.
// This package centralizes all pricing API interactions for the application.
package pricing

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when the client has no credentials. Callers
// use it to fall through to the scrape path without logging an API failure.
var ErrNotConfigured = errors.New("pricing API not configured")

// ErrNoOffers is returned when a search succeeds but yields no offers
// matching the request.
var ErrNoOffers = errors.New("no offers returned")

// APIError represents an error from the pricing API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pricing API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a rate limit error.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("pricing API rate limit exceeded, retry after %v", e.RetryAfter)
}
