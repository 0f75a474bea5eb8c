// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	// DefaultTokenTTL is the session token lifetime when none is configured.
	DefaultTokenTTL = time.Hour

	// MinTokenSecretLen is the minimum HMAC secret size accepted for HS256.
	MinTokenSecretLen = 32
)

// Token verification failures. Expired is distinguished from malformed so the
// transport can report "session expired" instead of a generic rejection.
var (
	ErrTokenMalformed = oops.Code("TOKEN_MALFORMED").Errorf("token is malformed or its signature does not verify")
	ErrTokenExpired   = oops.Code("TOKEN_EXPIRED").Errorf("token has expired")
)

// sessionClaims binds a token to an account through the subject claim.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// TokenAuthority issues and verifies signed, time-bounded session tokens.
// It is pure and in-memory: the only state is the immutable signing secret
// and a clock, so a single instance is safe for concurrent use.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenAuthority creates a TokenAuthority signing with HS256.
// The secret must be at least MinTokenSecretLen bytes; a non-positive ttl
// falls back to DefaultTokenTTL.
func NewTokenAuthority(secret []byte, ttl time.Duration) (*TokenAuthority, error) {
	if len(secret) < MinTokenSecretLen {
		return nil, oops.Code("TOKEN_SECRET_TOO_SHORT").
			With("min_bytes", MinTokenSecretLen).
			Errorf("signing secret must be at least %d bytes", MinTokenSecretLen)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenAuthority{secret: secret, ttl: ttl, now: time.Now}, nil
}

// WithClock overrides the authority's time source and returns it. Intended
// for tests that need to move issuance or verification time around.
func (a *TokenAuthority) WithClock(now func() time.Time) *TokenAuthority {
	a.now = now
	return a
}

// TTL returns the configured token lifetime.
func (a *TokenAuthority) TTL() time.Duration {
	return a.ttl
}

// Issue signs a token asserting the account ID, issued now and expiring after
// the configured TTL.
func (a *TokenAuthority) Issue(accountID ulid.ULID) (string, error) {
	now := a.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the bound account ID.
// Expired tokens fail with ErrTokenExpired; anything else that does not
// verify, including an unexpected signing algorithm or an unparseable
// subject, fails with ErrTokenMalformed. Verification has no side effects.
func (a *TokenAuthority) Verify(token string) (ulid.ULID, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ulid.ULID{}, ErrTokenExpired
		}
		return ulid.ULID{}, ErrTokenMalformed
	}
	if !parsed.Valid {
		return ulid.ULID{}, ErrTokenMalformed
	}

	id, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, ErrTokenMalformed
	}
	return id, nil
}
