// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package httpapi exposes the account service over HTTP.
//
// Routes:
//   - POST /api/auth/register - create an account, returns a session token
//   - POST /api/auth/login    - verify credentials, returns a session token
//   - GET  /api/auth/profile  - protected, returns the authenticated profile
//
// Protected routes sit behind SessionGate, which turns a bearer token into
// an authenticated Identity in the request context or rejects with 401.
package httpapi
