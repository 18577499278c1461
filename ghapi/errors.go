package ghapi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidResponse is returned by must-exist operations whose payload
	// failed validation.
	ErrInvalidResponse = errors.New("invalid API response")
	// ErrCancelled is matched when a call ended because its context did.
	ErrCancelled = errors.New("API request cancelled")
	// ErrTooManyPages is returned when a listing still had pages left after
	// the page limit. It matches ErrInvalidResponse.
	ErrTooManyPages = fmt.Errorf("%w: too many pages", ErrInvalidResponse)
)

// StatusError is an unhandled non-2xx response.
type StatusError struct {
	StatusCode int
	Method     string
	Route      string
	// Message is the "message" field of a JSON error body, when present.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Route, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Route, e.StatusCode)
}

// TransportKind classifies a failed round trip using the fetcher's
// predicates.
type TransportKind string

const (
	TransportAbort        TransportKind = "abort"
	TransportDisconnected TransportKind = "disconnected"
	TransportFetcher      TransportKind = "fetcher"
	TransportUnknown      TransportKind = "unknown"
)

// TransportError wraps a fetcher failure. It is never retried here.
type TransportError struct {
	Kind   TransportKind
	Method string
	Route  string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s transport error: %v", e.Method, e.Route, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// GraphQLError carries the messages of a GraphQL "errors" array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// NotFoundError is returned by must-exist operations when the resource is
// absent.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ErrorResponse is the alternative payload of PostJob: the service answered
// with a status code instead of a job.
type ErrorResponse struct {
	Status int `json:"status"`
}

func (e *ErrorResponse) Error() string { return fmt.Sprintf("job rejected with status %d", e.Status) }
