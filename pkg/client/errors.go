package client

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrUnauthorized matches APIErrors caused by invalid credentials (401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited matches APIErrors caused by rate limiting (429, 503 or a
	// GraphQL error mentioning 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrGatewayTimeout matches APIErrors caused by a gateway timeout (504).
	ErrGatewayTimeout = errors.New("gateway timeout")

	// ErrServerError matches APIErrors caused by a 5xx server error.
	ErrServerError = errors.New("server error")

	// ErrNotFound is returned when a looked-up alert rule or integration
	// config key does not exist.
	ErrNotFound = errors.New("not found")
)

// ErrorClass represents a classification of API errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 401 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassUnauthorized represents 401 responses.
	ErrorClassUnauthorized ErrorClass = "unauthorized"

	// ErrorClassRateLimit represents 429 and 503 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassGatewayTimeout represents 504 responses.
	ErrorClassGatewayTimeout ErrorClass = "gateway_timeout"

	// ErrorClassServer represents other 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassGraphQL represents a 200 response carrying GraphQL errors.
	ErrorClassGraphQL ErrorClass = "graphql"
)

// GraphQLError is one entry of a GraphQL errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// APIError represents a JupiterOne API error with additional context.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	// Errors holds the GraphQL errors of a 200 response.
	Errors []GraphQLError
	// RetryAfter is the server-requested delay, if any.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jupiterone %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("jupiterone %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches the class sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Class == ErrorClassUnauthorized
	case ErrRateLimited:
		return e.Class == ErrorClassRateLimit
	case ErrGatewayTimeout:
		return e.Class == ErrorClassGatewayTimeout
	case ErrServerError:
		return e.Class == ErrorClassServer
	default:
		return false
	}
}

// classifyStatus maps a non-2xx status code to an error class and message.
func classifyStatus(status int) (ErrorClass, string) {
	switch {
	case status == 401:
		return ErrorClassUnauthorized, "401: Unauthorized. Please supply a valid account id and API token."
	case status == 429 || status == 503:
		return ErrorClassRateLimit, "JupiterOne API rate limit exceeded"
	case status == 504:
		return ErrorClassGatewayTimeout, "Gateway Timeout"
	case status == 500:
		return ErrorClassServer, "JupiterOne API internal server error"
	case status >= 500:
		return ErrorClassServer, fmt.Sprintf("JupiterOne API server error %d", status)
	default:
		return ErrorClassClient, fmt.Sprintf("JupiterOne API request failed with status %d", status)
	}
}

// graphQLError builds the error for a 200 response carrying GraphQL errors.
// A lone error mentioning 429 is a rate limit in disguise.
func graphQLError(errs []GraphQLError) *APIError {
	if len(errs) == 1 && strings.Contains(errs[0].Message, "429") {
		return &APIError{
			StatusCode: 200,
			Class:      ErrorClassRateLimit,
			Message:    "JupiterOne API rate limit exceeded",
			Errors:     errs,
		}
	}

	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	return &APIError{
		StatusCode: 200,
		Class:      ErrorClassGraphQL,
		Message:    strings.Join(messages, "; "),
		Errors:     errs,
	}
}
