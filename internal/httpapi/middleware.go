// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/driftbox/accountd/internal/auth"
	"github.com/driftbox/accountd/internal/observability"
)

// Identity is the authenticated identity attached to a gated request.
type Identity struct {
	AccountID ulid.ULID
}

type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity attached by
// SessionGate, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// SessionGate gates a request on a valid bearer token. It extracts the token
// from the Authorization header, verifies it, resolves the bound account,
// and attaches the identity to the request context. Every failure is a 401;
// the message distinguishes an expired session from an invalid token so
// clients can prompt for re-login instead of reporting bad credentials.
//
// The gate has no side effects beyond attaching the identity, so it is safe
// to run on every protected request.
func SessionGate(tokens *auth.TokenAuthority, accounts auth.AccountRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			accountID, err := tokens.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					respondError(w, http.StatusUnauthorized, "token has expired")
					return
				}
				respondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			// The account may have been deleted after the token was issued;
			// a token for a dead account does not authenticate anyone.
			if _, err := accounts.GetByID(r.Context(), accountID); err != nil {
				if errors.Is(err, auth.ErrNotFound) {
					respondError(w, http.StatusUnauthorized, "account not found")
					return
				}
				logger.ErrorContext(r.Context(), "session gate account lookup failed",
					"account_id", accountID.String(), "error", err)
				respondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, Identity{AccountID: accountID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs every request with method, path, status, and duration,
// and records the request counter metric when metrics are enabled.
func RequestLogger(logger *slog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			if metrics != nil {
				metrics.RequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
			}
		})
	}
}
