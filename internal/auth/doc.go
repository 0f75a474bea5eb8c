// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package auth implements the credential and session authority.
//
// # Domain Types
//
// Account is the durable credential record for one registered user. Create
// it through NewAccount, which validates required fields and assigns the ID;
// direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated accounts from the
// constructor.
//
// # Services
//
// Service coordinates the account operations:
//   - Register - create an account and issue a session token
//   - Login - verify credentials under the lockout policy and issue a token
//   - Profile - resolve an authenticated account
//
// TokenAuthority issues and verifies the signed session tokens. Verification
// is stateless: there is no server-side session table, a token is valid
// exactly when its signature checks out and its expiry has not passed.
package auth
