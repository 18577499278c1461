// Package auth defines the bearer-token capability used by the API client
// and the remote edit engine. Obtaining and refreshing tokens is the host's
// responsibility; this package only describes how a token is handed over
// and offers two small suppliers.
//
// A TokenProvider returns the bearer token to attach to the next request.
// Static always returns the same token. NewExpiringToken wraps a JWT-shaped
// token and refuses to hand it out once its exp claim has passed, so that
// callers fail fast with ErrTokenExpired instead of sending a request the
// server is certain to reject.
//
// # Errors
//
// ErrUnauthorized signals that no usable token is available. ErrTokenExpired
// signals that a token exists but is past its expiry (including leeway); it
// is joined with ErrUnauthorized so either sentinel matches via errors.Is.
package auth
