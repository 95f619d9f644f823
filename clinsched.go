// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package clinsched is the external entry point of spec.md §6: a host
// application wires a Store implementation and a configuration layer
// into a Service, then drives it through Generate for the Regeneration
// Service and Reassign/Swap/UpdateAssignment for the Editing Operations.
// Per spec.md §6, there is no CLI, no wire protocol and no
// environment-variable surface here; those are the province of whatever
// binary a host builds on top of this package, the way the teacher's own
// cmd/limes-collect is a thin driver over its internal/collector package
// rather than a place where scheduling logic lives.
//
// Every type referenced by an exported signature below is re-exported
// from its owning internal package via a type alias, since Go does not
// allow a package outside this module to import internal/core,
// internal/store, internal/constraints or internal/engine directly.
package clinsched

import (
	"context"

	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/editing"
	"github.com/sapcc/limes-clinsched/internal/engine"
	"github.com/sapcc/limes-clinsched/internal/regeneration"
	"github.com/sapcc/limes-clinsched/internal/store"
)

// Identifiers.
type (
	HealthSystemID = core.HealthSystemID
	SiteID         = core.SiteID
	ClerkshipID    = core.ClerkshipID
	ElectiveID     = core.ElectiveID
	StudentID      = core.StudentID
	PreceptorID    = core.PreceptorID
	TeamID         = core.TeamID
	AssignmentID   = core.AssignmentID
	PeriodID       = core.PeriodID
	AuditLogID     = core.AuditLogID
)

// Date and its constructor, so a host never needs to import internal/core
// to build one.
type Date = core.Date

var NewDate = core.NewDate

// Configuration layer types, per spec.md §4.1.
type (
	StrategyID       = core.StrategyID
	HealthSystemRule = core.HealthSystemRule
	ClerkshipConfig  = core.ClerkshipConfig
	GlobalDefaults   = core.GlobalDefaults
	ResolvedConfig   = core.ResolvedConfig
)

const (
	StrategyContinuousSingle = core.StrategyContinuousSingle
	StrategyContinuousTeam   = core.StrategyContinuousTeam
	StrategyBlockBased       = core.StrategyBlockBased
	StrategyDailyRotation    = core.StrategyDailyRotation
)

const (
	EnforceSameSystem  = core.EnforceSameSystem
	PreferSameSystem   = core.PreferSameSystem
	NoSystemPreference = core.NoSystemPreference
)

// Domain entity types a host's Store implementation exchanges with the
// core, and the Data Store Interface itself.
type (
	HealthSystem  = core.HealthSystem
	Site          = core.Site
	Clerkship     = core.Clerkship
	Elective      = core.Elective
	Student       = core.Student
	Preceptor     = core.Preceptor
	Team          = core.Team
	TeamMember    = core.TeamMember
	Availability  = core.Availability
	BlackoutDate  = core.BlackoutDate
	CapacityRule  = core.CapacityRule
	Enrollment    = core.Enrollment
	Requirement   = core.Requirement
	Assignment    = core.Assignment
	SchedulingPeriod = core.SchedulingPeriod
	AuditLog      = core.AuditLog

	Entities = store.Entities
	Store    = store.Store
	Tx       = store.Tx
)

// AssignmentStatus and its values.
type AssignmentStatus = core.AssignmentStatus

const (
	AssignmentScheduled = core.AssignmentScheduled
	AssignmentCompleted = core.AssignmentCompleted
	AssignmentCancelled = core.AssignmentCancelled
)

// ConstraintName identifies one of the Constraint Factory's named checks,
// for use in BypassedConstraints.
type ConstraintName = constraints.Name

const (
	DateInWindow             = constraints.DateInWindow
	NotBlackedOut            = constraints.NotBlackedOut
	StudentNotDoubleBooked   = constraints.StudentNotDoubleBooked
	PreceptorAvailable       = constraints.PreceptorAvailable
	PreceptorDailyCapacity   = constraints.PreceptorDailyCapacity
	PreceptorYearlyCapacity  = constraints.PreceptorYearlyCapacity
	HealthSystemRuleConstraint = constraints.HealthSystemRule
	SpecialtyMatch           = constraints.SpecialtyMatch
	ElectivePreceptorAllowed = constraints.ElectivePreceptorAllowed
	SameSiteForBlock         = constraints.SameSiteForBlock
	TeamMembership           = constraints.TeamMembership
)

// Regeneration Service types, per spec.md §4.6 and §6.
type (
	Mode              = regeneration.Mode
	GenerateRequest   = regeneration.Request
	StudentProgress   = regeneration.StudentProgress
	ImpactAnalysis    = regeneration.ImpactAnalysis
	Violation         = regeneration.Violation
	Summary           = regeneration.Summary
	GenerateResult    = regeneration.Result
	UnmetRequirement  = engine.UnmetRequirement
)

const (
	ModeFull           = regeneration.ModeFull
	ModeMinimalChange  = regeneration.ModeMinimalChange
	ModeFullReoptimize = regeneration.ModeFullReoptimize
	ModeCompletion     = regeneration.ModeCompletion
)

// Editing Operations types, per spec.md §4.7 and §6.
type (
	ValidationResult = editing.ValidationResult
	ReassignRequest  = editing.ReassignRequest
	SwapRequest      = editing.SwapRequest
	UpdateRequest    = editing.UpdateRequest
	UpdatePatch      = editing.UpdatePatch
)

// Service composes the Regeneration Service and the Editing Operations
// behind the single facade spec.md §6 describes: a host constructs one
// Service per deployment and calls Generate for full/minimal_change/
// full_reoptimize/completion regeneration, and Reassign/Swap/
// UpdateAssignment for the three editing operations. Both halves share
// the same Store, configuration layer and Constraint Factory, so a
// placement accepted by one is guaranteed legal to the other.
type Service struct {
	regen *regeneration.Service
	edit  *editing.Service
}

// NewService builds a Service backed by st, using defaults and configs to
// resolve each Requirement's strategy and limits per spec.md §4.1.
func NewService(st store.Store, defaults GlobalDefaults, configs map[ClerkshipID]*ClerkshipConfig) *Service {
	return &Service{
		regen: regeneration.NewService(st, defaults, configs),
		edit:  editing.NewService(st, defaults, configs),
	}
}

// Generate runs the Regeneration Service, per spec.md §4.6.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	return s.regen.Run(ctx, req)
}

// Reassign moves one Assignment to a different Preceptor, revalidating the
// result against the Constraint Factory before committing, per spec.md
// §4.7.
func (s *Service) Reassign(ctx context.Context, req ReassignRequest) (*ValidationResult, error) {
	return s.edit.Reassign(ctx, req)
}

// Swap exchanges the Preceptors of two Assignments, per spec.md §4.7.
func (s *Service) Swap(ctx context.Context, req SwapRequest) (*ValidationResult, error) {
	return s.edit.Swap(ctx, req)
}

// UpdateAssignment applies a partial patch (date and/or status) to one
// Assignment, per spec.md §4.7. A patch that only sets Status to
// AssignmentCancelled skips constraint revalidation entirely.
func (s *Service) UpdateAssignment(ctx context.Context, req UpdateRequest) (*ValidationResult, error) {
	return s.edit.UpdateAssignment(ctx, req)
}
