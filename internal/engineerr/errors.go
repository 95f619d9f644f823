// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package engineerr implements the error envelope that every core entry
// point (generate, reassign, swap, update_assignment) returns, per spec.md §7.
package engineerr

import "fmt"

// Kind is one of the seven error categories below; an unmet requirement is
// reported in a Result, not as an error Kind.
type Kind string

const (
	ConstraintViolated Kind = "ConstraintViolated"
	NotFound           Kind = "NotFound"
	ConfigInvalid      Kind = "ConfigInvalid"
	StoreBusy          Kind = "StoreBusy"
	Cancelled          Kind = "Cancelled"
	DeadlineExceeded   Kind = "DeadlineExceeded"
	Fatal              Kind = "Fatal"
)

// Error is the envelope returned on any call per spec.md §6.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with no details.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, preserving cause for errors.Is/As.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetails attaches structured details to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	asErr, ok := err.(*Error)
	return ok && asErr.Kind == kind
}
