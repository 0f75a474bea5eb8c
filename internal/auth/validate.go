// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Registration input constraints.
const (
	MinFullNameLength = 3
	MaxFullNameLength = 100
	MinPasswordLength = 8
	MaxPasswordLength = 30
)

// PasswordSymbols is the set of special characters a password must draw from.
const PasswordSymbols = "@$!%*?&"

// emailRegex accepts one non-empty local part and a dotted domain. Anything
// fancier is the mail provider's problem.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RegisterInput is the intake for account registration.
type RegisterInput struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginInput is the intake for a login attempt.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func invalid(msg string) error {
	return oops.Code("VALIDATION_FAILED").Errorf("%s", msg)
}

// Validate checks the registration intake. It is pure: no storage access, no
// lockout-state mutation. A failure here never counts as a login attempt.
func (in RegisterInput) Validate() error {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return invalid("name is required")
	}
	// Name length counts characters, not bytes.
	if utf8.RuneCountInString(name) < MinFullNameLength {
		return invalid("name must be at least 3 characters")
	}
	if utf8.RuneCountInString(name) > MaxFullNameLength {
		return invalid("name cannot exceed 100 characters")
	}

	if err := validateEmail(in.Email); err != nil {
		return err
	}

	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if in.ConfirmPassword != in.Password {
		return invalid("passwords do not match")
	}
	return nil
}

// Validate checks the login intake.
func (in LoginInput) Validate() error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.Password == "" {
		return invalid("password is required")
	}
	return nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid("email is required")
	}
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return invalid("please provide a valid email")
	}
	return nil
}

// validatePassword enforces the registration password policy: 8-30 characters
// with at least one lowercase letter, one uppercase letter, one digit, and one
// symbol from PasswordSymbols, drawn only from those classes.
func validatePassword(password string) error {
	if password == "" {
		return invalid("password is required")
	}
	if len(password) < MinPasswordLength {
		return invalid("password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return invalid("password cannot exceed 30 characters")
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		default:
			return invalid("password contains characters outside letters, digits, and " + PasswordSymbols)
		}
	}
	if !lower || !upper || !digit || !symbol {
		return invalid("password must contain at least one uppercase letter, one lowercase letter, one number, and one special character")
	}
	return nil
}
