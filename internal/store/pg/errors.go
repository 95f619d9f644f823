// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package pg

import (
	"errors"

	"github.com/lib/pq"
)

// transientCodes are the Postgres error codes that store.WithBackoff should
// retry: lock_not_available, deadlock_detected, serialization_failure.
var transientCodes = map[pq.ErrorCode]bool{
	"55P03": true,
	"40P01": true,
	"40001": true,
}

// pgErr adapts a *pq.Error into the store.Transient interface.
type pgErr struct {
	err error
	code pq.ErrorCode
}

func (e *pgErr) Error() string  { return e.err.Error() }
func (e *pgErr) Unwrap() error  { return e.err }
func (e *pgErr) Transient() bool { return transientCodes[e.code] }

// wrapPgErr tags transient Postgres errors so internal/store.WithBackoff can
// recognize them; all other errors (including nil) pass through unchanged.
func wrapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &pgErr{err: err, code: pqErr.Code}
	}
	return err
}
