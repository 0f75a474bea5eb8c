// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/driftbox/accountd/internal/observability"
)

// Service provides the account operations: registration, login, and profile
// lookup.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	tokens   *TokenAuthority
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(accounts AccountRepository, hasher PasswordHasher, tokens *TokenAuthority) (*Service, error) {
	return NewServiceWithLogger(accounts, hasher, tokens, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(accounts AccountRepository, hasher PasswordHasher, tokens *TokenAuthority, logger *slog.Logger) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token authority is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{accounts: accounts, hasher: hasher, tokens: tokens, logger: logger}, nil
}

// dummyPasswordHash is verified against when no account matches the email, so
// the unknown-email path pays the same bcrypt cost as a real verification.
// This is NOT a credential - the digest is a filler value that matches no
// password.
//
//nolint:gosec // G101: intentionally fake hash for timing equalization, not a credential.
const dummyPasswordHash = "$2a$10$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func errInvalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
}

func errAccountLocked() error {
	return oops.Code("AUTH_ACCOUNT_LOCKED").
		Errorf("account is temporarily locked due to too many failed login attempts, please try again later")
}

// Register validates the intake, creates the account with a hashed password,
// and issues a session token. A duplicate email surfaces as the repository's
// ACCOUNT_EMAIL_TAKEN error before any lockout state exists for the account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, string, error) {
	if err := in.Validate(); err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(in.FullName, in.Email, hash)
	if err != nil {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "build account").
			Wrap(err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, "", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID.String())
	return account.Redacted(), token, nil
}

// Login verifies the credentials under the lockout policy and, on success,
// resets the failure counters and issues a session token.
//
// The lock check runs before password verification, so attempts during the
// lock window never increment the counter. A wrong password always records a
// failed attempt; the caller-visible message stays generic except when the
// account is locked.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Account, string, error) {
	if err := in.Validate(); err != nil {
		return nil, "", err
	}

	email := NormalizeEmail(in.Email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn the same bcrypt cost as the real-password path so an
			// unknown email is not distinguishable by response time.
			s.hasher.Verify(in.Password, dummyPasswordHash)
			return nil, "", errInvalidCredentials()
		}
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	locked, err := s.accounts.IsLocked(ctx, email)
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "check lockout").
			Wrap(err)
	}
	if locked {
		return nil, "", errAccountLocked()
	}

	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		if recErr := s.accounts.RecordFailedAttempt(ctx, email); recErr != nil {
			s.logger.ErrorContext(ctx, "failed to record failed login attempt",
				"account_id", account.ID.String(), "error", recErr)
		}
		if ShouldLock(account.FailedAttempts) {
			observability.RecordAccountLockout()
			s.logger.WarnContext(ctx, "account locked after repeated failures",
				"account_id", account.ID.String())
			return nil, "", errAccountLocked()
		}
		return nil, "", errInvalidCredentials()
	}

	if err := s.accounts.RecordSuccess(ctx, account.ID); err != nil {
		// The counter reset is part of the login contract; failing to apply
		// it is a transient storage fault, not a successful login.
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "record success").
			Wrap(err)
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "account_id", account.ID.String())
	return account.Redacted(), token, nil
}

// Profile resolves the account bound to an authenticated identity.
func (s *Service) Profile(ctx context.Context, id ulid.ULID) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("ACCOUNT_NOT_FOUND").
				With("account_id", id.String()).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_PROFILE_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	return account.Redacted(), nil
}
