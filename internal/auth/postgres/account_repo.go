// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package postgres implements auth repositories backed by PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/driftbox/accountd/internal/auth"
)

// DB is the subset of pgxpool.Pool the repository needs. Tests substitute a
// pgxmock pool through the same interface.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account. Email uniqueness is enforced by the unique
// index on LOWER(email); a violation surfaces as ACCOUNT_EMAIL_TAKEN so the
// caller can report the conflict without a racy pre-check.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, email, full_name, password_hash,
			failed_attempts, locked_until, last_login_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		account.ID.String(),
		account.Email,
		account.FullName,
		account.PasswordHash,
		account.FailedAttempts,
		account.LockedUntil,
		account.LastLoginAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", account.Email).
				Errorf("an account with this email already exists")
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, full_name, password_hash,
		       failed_attempts, locked_until, last_login_at,
		       created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, full_name, password_hash,
		       failed_attempts, locked_until, last_login_at,
		       created_at, updated_at
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return account, nil
}

// RecordFailedAttempt increments the failure counter in a single UPDATE. The
// CASE expression reads the pre-increment counter, so the lockout deadline is
// set exactly on the threshold-th consecutive failure and stale deadlines are
// cleared below it. Concurrent attempts cannot lose increments because the
// whole read-modify-write happens inside one statement.
func (r *AccountRepository) RecordFailedAttempt(ctx context.Context, email string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE
		        WHEN failed_attempts >= $2 THEN now() + make_interval(secs => $3)
		        ELSE NULL
		    END,
		    updated_at = now()
		WHERE LOWER(email) = LOWER($1)
	`, email, auth.LockThreshold-1, auth.LockoutDuration.Seconds())
	if err != nil {
		return oops.Code("ACCOUNT_RECORD_FAILURE_FAILED").
			With("operation", "record failed attempt").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// RecordSuccess resets the failure counter, clears the lockout deadline, and
// stamps the last login time in one atomic statement.
func (r *AccountRepository) RecordSuccess(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET failed_attempts = 0,
		    locked_until = NULL,
		    last_login_at = now(),
		    updated_at = now()
		WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_RECORD_SUCCESS_FAILED").
			With("operation", "record success").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// IsLocked reports whether the lockout deadline is still in the future.
// Expiry is lazy: nothing ever clears a past deadline, the comparison against
// now() at read time is the whole mechanism.
func (r *AccountRepository) IsLocked(ctx context.Context, email string) (bool, error) {
	var locked bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE LOWER(email) = LOWER($1) AND locked_until > now()
		)
	`, email).Scan(&locked)
	if err != nil {
		return false, oops.Code("ACCOUNT_IS_LOCKED_FAILED").
			With("operation", "check lockout").
			Wrap(err)
	}
	return locked, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr          string
		email          string
		fullName       string
		passwordHash   string
		failedAttempts int
		lockedUntil    *time.Time
		lastLoginAt    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&idStr,
		&email,
		&fullName,
		&passwordHash,
		&failedAttempts,
		&lockedUntil,
		&lastLoginAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:             id,
		Email:          email,
		FullName:       fullName,
		PasswordHash:   passwordHash,
		FailedAttempts: failedAttempts,
		LockedUntil:    lockedUntil,
		LastLoginAt:    lastLoginAt,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
