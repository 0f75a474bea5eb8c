// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/driftbox/accountd/pkg/errutil"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// respondServiceError maps a service error to a response. Messages for
// security-sensitive failures are fixed strings: they never leak counters,
// lock deadlines, or whether an email exists.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch errutil.Code(err) {
	case "VALIDATION_FAILED":
		// Validation messages are written for the caller and safe to return.
		respondError(w, http.StatusBadRequest, err.Error())
	case "ACCOUNT_EMAIL_TAKEN":
		respondError(w, http.StatusConflict, "an account with this email already exists")
	case "AUTH_INVALID_CREDENTIALS":
		respondError(w, http.StatusUnauthorized, "invalid email or password")
	case "AUTH_ACCOUNT_LOCKED":
		respondError(w, http.StatusUnauthorized,
			"account is temporarily locked due to too many failed login attempts, please try again later")
	case "ACCOUNT_NOT_FOUND":
		respondError(w, http.StatusNotFound, "account not found")
	default:
		errutil.LogError(logger, "request failed", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
