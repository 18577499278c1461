package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized indicates no valid credentials are available.
var ErrUnauthorized = errors.New("unauthorized")

// ErrTokenExpired indicates the supplied token is past its expiry.
var ErrTokenExpired = errors.New("token expired")

// TokenProvider yields the bearer token for outbound API calls.
// Implementations must be safe for concurrent use.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (string, error)

func (f TokenProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Static is a TokenProvider that always returns the same token. An empty
// Static yields ErrUnauthorized.
type Static string

func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrUnauthorized
	}
	return string(s), nil
}
