package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiringTokenOption configures NewExpiringToken.
type ExpiringTokenOption func(*ExpiringToken)

// WithLeeway treats the token as expired this long before its exp claim.
func WithLeeway(d time.Duration) ExpiringTokenOption {
	return func(t *ExpiringToken) { t.leeway = d }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ExpiringTokenOption {
	return func(t *ExpiringToken) {
		if now != nil {
			t.now = now
		}
	}
}

// ExpiringToken hands out a JWT until its exp claim passes. The signature is
// not verified: the token is opaque to this process and the issuing service
// remains the authority on its validity.
type ExpiringToken struct {
	raw       string
	expiresAt time.Time
	subject   string
	leeway    time.Duration
	now       func() time.Time
}

// NewExpiringToken parses raw and records its expiry. Tokens without an exp
// claim never expire.
func NewExpiringToken(raw string, opts ...ExpiringTokenOption) (*ExpiringToken, error) {
	if raw == "" {
		return nil, ErrUnauthorized
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, errors.Join(ErrUnauthorized, fmt.Errorf("parse token: %w", err))
	}
	t := &ExpiringToken{
		raw:     raw,
		subject: claims.Subject,
		leeway:  time.Minute,
		now:     time.Now,
	}
	if claims.ExpiresAt != nil {
		t.expiresAt = claims.ExpiresAt.Time
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// ExpiresAt returns the exp claim, or the zero time when absent.
func (t *ExpiringToken) ExpiresAt() time.Time { return t.expiresAt }

// Subject returns the sub claim.
func (t *ExpiringToken) Subject() string { return t.subject }

func (t *ExpiringToken) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !t.expiresAt.IsZero() && !t.now().Add(t.leeway).Before(t.expiresAt) {
		return "", errors.Join(ErrUnauthorized, ErrTokenExpired)
	}
	return t.raw, nil
}

var (
	_ TokenProvider = Static("")
	_ TokenProvider = (*ExpiringToken)(nil)
	_ TokenProvider = TokenProviderFunc(nil)
)
