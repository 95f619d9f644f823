// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"time"

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/limes-clinsched/internal/engineerr"
)

// Transient is the interface a Store implementation's errors should satisfy
// when a failure is a transient "busy/locked" condition (e.g. a Postgres
// serialization failure or lock-not-available error) rather than a
// permanent one. WithBackoff only retries errors that report Transient() ==
// true; everything else propagates on the first attempt, per spec.md §7.
type Transient interface {
	Transient() bool
}

// IsTransient reports whether err identifies itself as a transient store
// error via the Transient interface.
func IsTransient(err error) bool {
	var t Transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// BackoffPolicy configures WithBackoff. It mirrors the shape of
// github.com/sapcc/go-bits/retry.ExponentialBackoff, but bounds the number
// of attempts instead of retrying forever, per spec.md §5 ("up to N
// attempts... then surfaced").
type BackoffPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
}

// DefaultBackoffPolicy starts at 150ms, doubles, caps at 5s, for up to 5 attempts.
var DefaultBackoffPolicy = BackoffPolicy{
	InitialInterval: 150 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	MaxAttempts:     5,
}

// WithBackoff retries action on transient errors using exponential backoff,
// up to policy.MaxAttempts times. Non-transient errors, and the final
// transient failure, are surfaced as a StoreBusy engineerr.Error (if
// transient) or returned unchanged (if not).
func WithBackoff(policy BackoffPolicy, action func() error) error {
	interval := policy.InitialInterval
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := action()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		logg.Error("store operation busy (attempt %d/%d): %s", attempt, policy.MaxAttempts, err.Error())
		time.Sleep(interval)
		interval *= 2
		if interval > policy.MaxInterval {
			interval = policy.MaxInterval
		}
	}
	return engineerr.Wrap(engineerr.StoreBusy, lastErr, "store operation did not succeed after %d attempts", policy.MaxAttempts)
}
