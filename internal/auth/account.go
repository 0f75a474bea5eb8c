// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account represents one registered user's credential record.
type Account struct {
	ID             ulid.ULID
	Email          string
	FullName       string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates a validated Account with a fresh ID. The password must
// already be hashed; plaintext never reaches this constructor. The email is
// stored in normalized (lowercased, trimmed) form.
func NewAccount(fullName, email, passwordHash string) (*Account, error) {
	if fullName == "" {
		return nil, oops.Code("ACCOUNT_INVALID_NAME").Errorf("full name cannot be empty")
	}
	if email == "" {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Email:        NormalizeEmail(email),
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail returns the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLocked returns true if the account is currently locked out.
func (a *Account) IsLocked() bool {
	return IsLockedOut(a.LockedUntil)
}

// Redacted returns a copy safe to hand outside the credential store: the
// password hash is cleared.
func (a *Account) Redacted() *Account {
	c := *a
	c.PasswordHash = ""
	return &c
}

// AccountRepository manages durable account records.
//
// RecordFailedAttempt and RecordSuccess must be applied as atomic
// read-modify-write operations at the storage layer. A separate read followed
// by a separate write loses increments when attempts against the same account
// race.
type AccountRepository interface {
	// Create stores a new account. A duplicate email fails with an
	// ACCOUNT_EMAIL_TAKEN error; the unique constraint at the storage layer
	// is the source of truth, not an application-level existence check.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// RecordFailedAttempt atomically increments the failure counter. When the
	// pre-increment count has reached LockThreshold-1 the lockout deadline is
	// set to LockoutDuration from now; below the threshold any stale deadline
	// is cleared.
	RecordFailedAttempt(ctx context.Context, email string) error

	// RecordSuccess atomically resets the failure counter, clears the lockout
	// deadline, and stamps the last login time.
	RecordSuccess(ctx context.Context, id ulid.ULID) error

	// IsLocked reports whether an account with that email exists and its
	// lockout deadline is still in the future at read time.
	IsLocked(ctx context.Context, email string) (bool, error)
}
