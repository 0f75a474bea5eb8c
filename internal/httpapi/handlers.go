// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/driftbox/accountd/internal/auth"
	"github.com/driftbox/accountd/internal/observability"
	"github.com/driftbox/accountd/pkg/errutil"
)

// maxBodyBytes caps request bodies; the intake payloads are tiny.
const maxBodyBytes = 1 << 20

// Handlers holds the API route handlers.
type Handlers struct {
	svc     *auth.Service
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewHandlers creates the API handlers. metrics may be nil when the
// observability server is disabled.
func NewHandlers(svc *auth.Service, metrics *observability.Metrics, logger *slog.Logger) *Handlers {
	return &Handlers{svc: svc, metrics: metrics, logger: logger}
}

// userPayload is the account representation returned to clients. It never
// carries the password hash or the lockout counters.
type userPayload struct {
	ID        string     `json:"id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// authResponse is the body for successful register and login calls.
type authResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    userPayload `json:"user"`
}

// profileResponse is the body for a successful profile fetch.
type profileResponse struct {
	User userPayload `json:"user"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// HandleRegister creates an account and issues a session token.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decode(w, r, &in) {
		return
	}

	account, token, err := h.svc.Register(r.Context(), in)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message: "account registered successfully",
		Token:   token,
		User: userPayload{
			ID:       account.ID.String(),
			FullName: account.FullName,
			Email:    account.Email,
		},
	})
}

// HandleLogin verifies credentials and issues a session token.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if !decode(w, r, &in) {
		return
	}

	account, token, err := h.svc.Login(r.Context(), in)
	h.recordLoginOutcome(err)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message: "login successful",
		Token:   token,
		User: userPayload{
			ID:       account.ID.String(),
			FullName: account.FullName,
			Email:    account.Email,
		},
	})
}

// HandleProfile returns the authenticated account's profile.
func (h *Handlers) HandleProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		// Reachable only if the route was wired without SessionGate.
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	account, err := h.svc.Profile(r.Context(), identity.AccountID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	createdAt := account.CreatedAt
	writeJSON(w, http.StatusOK, profileResponse{
		User: userPayload{
			ID:        account.ID.String(),
			FullName:  account.FullName,
			Email:     account.Email,
			CreatedAt: &createdAt,
		},
	})
}

func (h *Handlers) recordLoginOutcome(err error) {
	if h.metrics == nil {
		return
	}

	outcome := "success"
	switch errutil.Code(err) {
	case "":
		if err != nil {
			outcome = "error"
		}
	case "AUTH_INVALID_CREDENTIALS":
		outcome = "invalid_credentials"
	case "AUTH_ACCOUNT_LOCKED":
		outcome = "locked"
	case "VALIDATION_FAILED":
		outcome = "validation"
	default:
		outcome = "error"
	}
	h.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
}

// NewRouter assembles the API routes with the session gate on protected
// endpoints and request logging around everything.
func NewRouter(svc *auth.Service, tokens *auth.TokenAuthority, accounts auth.AccountRepository, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	h := NewHandlers(svc, metrics, logger)
	gate := SessionGate(tokens, accounts, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", h.HandleRegister)
	mux.HandleFunc("POST /api/auth/login", h.HandleLogin)
	mux.Handle("GET /api/auth/profile", gate(http.HandlerFunc(h.HandleProfile)))
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	return RequestLogger(logger, metrics)(mux)
}
