// Package ghapi is a validated client for the GitHub REST and GraphQL APIs
// and for the agents service.
//
// Client performs a single round trip through a host-supplied fetch.Fetcher.
// It never retries; transport failures are classified into *TransportError
// and unhandled statuses into *StatusError. An absent body (204, an empty
// 2xx, or 404) is reported as a nil payload so callers can treat it as "not
// found" without inspecting status codes.
//
// Service layers the domain operations on top of Client. Every payload is
// checked with a validator from the validate package before any field is
// read. When validation fails the violating field is logged and the
// operation returns its declared fallback: an empty value for list-style
// lookups, or ErrInvalidResponse for operations whose resource must exist.
package ghapi
