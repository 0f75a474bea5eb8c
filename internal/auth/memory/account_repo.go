// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package memory implements auth repositories in process memory. The
// implementation honors the same atomicity contract as the PostgreSQL
// repository and backs unit, end-to-end, and concurrency tests without a
// database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/driftbox/accountd/internal/auth"
)

// AccountRepository implements auth.AccountRepository with a mutex-guarded
// map. Every mutation runs under the lock, so the read-modify-write on the
// failure counter is atomic with respect to concurrent attempts.
type AccountRepository struct {
	mu      sync.Mutex
	byID    map[ulid.ULID]*auth.Account
	byEmail map[string]ulid.ULID
	now     func() time.Time
}

// NewAccountRepository creates an empty in-memory repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:    make(map[ulid.ULID]*auth.Account),
		byEmail: make(map[string]ulid.ULID),
		now:     time.Now,
	}
}

// WithClock overrides the repository's time source and returns it. Tests use
// this to move the lockout window around.
func (r *AccountRepository) WithClock(now func() time.Time) *AccountRepository {
	r.now = now
	return r
}

// Create stores a new account, failing with ACCOUNT_EMAIL_TAKEN when the
// normalized email is already registered. The check and insert happen under
// one lock acquisition, mirroring the database's unique constraint.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := auth.NormalizeEmail(account.Email)
	if _, exists := r.byEmail[key]; exists {
		return oops.Code("ACCOUNT_EMAIL_TAKEN").
			With("email", account.Email).
			Errorf("an account with this email already exists")
	}

	stored := *account
	r.byID[account.ID] = &stored
	r.byEmail[key] = account.ID
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	c := *account
	return &c, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.lookupLocked(email)
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	c := *account
	return &c, nil
}

// RecordFailedAttempt increments the failure counter and applies the lockout
// decision from the pre-increment value, all under the lock.
func (r *AccountRepository) RecordFailedAttempt(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.lookupLocked(email)
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}

	prev := account.FailedAttempts
	account.FailedAttempts++
	if auth.ShouldLock(prev) {
		deadline := auth.LockExpiry(r.now())
		account.LockedUntil = &deadline
	} else {
		account.LockedUntil = nil
	}
	account.UpdatedAt = r.now()
	return nil
}

// RecordSuccess resets the failure counter, clears the lockout deadline, and
// stamps the last login time.
func (r *AccountRepository) RecordSuccess(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}

	now := r.now()
	account.FailedAttempts = 0
	account.LockedUntil = nil
	account.LastLoginAt = &now
	account.UpdatedAt = now
	return nil
}

// IsLocked reports whether the account's lockout deadline is still in the
// future at read time.
func (r *AccountRepository) IsLocked(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.lookupLocked(email)
	if !ok {
		return false, nil
	}
	return account.LockedUntil != nil && account.LockedUntil.After(r.now()), nil
}

// lookupLocked resolves the normalized email to the stored account.
// Caller must hold r.mu.
func (r *AccountRepository) lookupLocked(email string) (*auth.Account, bool) {
	id, ok := r.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, false
	}
	account, ok := r.byID[id]
	return account, ok
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
