// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package store defines the Data Store Interface of spec.md §6: the single
// seam between the scheduling core and whatever relational or document
// store a host application brings. Everything in internal/engine,
// internal/regeneration and internal/editing is written against this
// interface only; internal/store/pg and internal/storetest are its two
// implementations (production and test fixture, respectively), grounded on
// the teacher's own split between a real `internal/db` layer and in-memory
// `internal/test` fixtures.
package store

import (
	"context"

	"github.com/sapcc/limes-clinsched/internal/core"
)

// Entities is the bulk-loaded, period-scoped snapshot the Context Builder
// indexes. See spec.md §4.3.
type Entities struct {
	HealthSystems []core.HealthSystem
	Sites         []core.Site
	Clerkships    []core.Clerkship
	Electives     []core.Elective
	Students      []core.Student
	Preceptors    []core.Preceptor
	Teams         []core.Team
	CapacityRules []core.CapacityRule
	Availability  []core.Availability
	Blackouts     []core.BlackoutDate
	Enrollments   []core.Enrollment
}

// Store is the abstract Data Store Interface of spec.md §6.
type Store interface {
	// LoadPeriod fetches the SchedulingPeriod by id.
	LoadPeriod(ctx context.Context, periodID core.PeriodID) (core.SchedulingPeriod, error)
	// LoadEntities fetches every entity scoped to the given period.
	LoadEntities(ctx context.Context, period core.SchedulingPeriod) (Entities, error)
	// LoadAssignments fetches every Assignment whose date falls in [start, end].
	LoadAssignments(ctx context.Context, start, end core.Date) ([]core.Assignment, error)

	// Transaction runs fn inside an all-or-nothing transaction. If fn returns
	// an error, every mutation fn made through the Tx is rolled back and no
	// AuditLog is written, per spec.md §4.6.
	Transaction(ctx context.Context, fn func(Tx) error) error

	// AcquirePeriodLock and ReleasePeriodLock implement the advisory lock of
	// spec.md §5: at most one Regeneration invocation may run concurrently
	// against the same active SchedulingPeriod.
	AcquirePeriodLock(ctx context.Context, periodID core.PeriodID) error
	ReleasePeriodLock(ctx context.Context, periodID core.PeriodID) error
}

// Tx is the set of mutations available inside a Store.Transaction call.
type Tx interface {
	DeleteAssignments(ids []core.AssignmentID) error
	InsertAssignments(rows []core.Assignment) error
	InsertAuditLog(row core.AuditLog) error
}
