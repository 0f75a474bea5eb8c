// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"time"
)

// Lockout policy configuration.
const (
	// LockoutDuration is the time an account stays locked after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockThreshold is the number of consecutive failures that triggers a lockout.
	LockThreshold = 5
)

// ShouldLock reports whether the current failed attempt trips the lockout,
// given the failure count recorded *before* this attempt. The lock triggers
// on the LockThreshold-th consecutive failure, so the pre-increment counter
// is compared against LockThreshold-1.
func ShouldLock(prevFailures int) bool {
	return prevFailures >= LockThreshold-1
}

// LockExpiry returns the lockout deadline for a lock triggered at now.
func LockExpiry(now time.Time) time.Time {
	return now.Add(LockoutDuration)
}

// IsLockedOut returns true if the lockout deadline is in the future.
// A nil or past deadline means not locked; deadlines are never swept, they
// simply stop mattering once the clock passes them.
func IsLockedOut(lockedUntil *time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(time.Now())
}
