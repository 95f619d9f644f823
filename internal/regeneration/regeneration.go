// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package regeneration implements the Regeneration Service of spec.md §4.6:
// it splits a period's assignments at a cutoff date, credits past days
// toward each student's requirements, classifies existing future
// assignments under the current context, drives the Engine over whatever
// remains unsatisfied, and commits the result as a single transaction
// alongside an audit record. Grounded on the teacher's
// internal/collector.Scrape, which likewise bulk-loads, diffs against
// what's already persisted, and commits everything in one pass rather than
// incrementally.
package regeneration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sapcc/limes-clinsched/internal/audit"
	"github.com/sapcc/limes-clinsched/internal/clock"
	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/engine"
	"github.com/sapcc/limes-clinsched/internal/engineerr"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/metrics"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
	"github.com/sapcc/limes-clinsched/internal/store"
)

// Mode is one of the four named regeneration strategies of spec.md §4.6.
// "preview" is not a Mode; it is the orthogonal Request.Preview flag that
// applies to any of the four.
type Mode string

const (
	ModeFull           Mode = "full"
	ModeMinimalChange  Mode = "minimal_change"
	ModeFullReoptimize Mode = "full_reoptimize"
	ModeCompletion     Mode = "completion"
)

// classifies reports whether this Mode runs future-assignment
// classification at all, per spec.md §4.6 step 3 ("applies to
// minimal_change/completion").
func (m Mode) classifies() bool {
	return m == ModeMinimalChange || m == ModeCompletion
}

// Request is one Regeneration Service invocation, per spec.md §6's
// generate(...) call.
type Request struct {
	PeriodID   core.PeriodID
	StartDate  core.Date
	EndDate    core.Date
	CutoffDate core.Date // ignored for ModeFull (StartDate is used); otherwise zero value means "use Clock.Now()'s date"
	Mode       Mode
	Preview    bool

	BypassedConstraints []constraints.Name
	Deadline            time.Time // zero value means "no deadline"
}

// StudentProgress reports one (student, requirement) pair's standing after
// the invocation: how many days are required, how many are already
// credited by past and preserved future assignments, and how many are
// newly placed by this invocation.
type StudentProgress struct {
	StudentID     core.StudentID
	RequirementID string
	RequiredDays  int
	CreditedDays  int
	PlacedDays    int
	Complete      bool
}

// ImpactAnalysis is the always-computed summary of spec.md §4.6 step 4.
type ImpactAnalysis struct {
	PastCount        int
	ToDeleteCount    int
	PreservableCount int
	AffectedCount    int
	ReplaceableCount int
	StudentProgress  []StudentProgress
	Summary          string
}

// Violation describes one Affected future assignment, surfaced to the
// caller alongside UnmetRequirements.
type Violation struct {
	AssignmentID core.AssignmentID
	Constraint   string
	Reason       string
}

// Summary is the GenerateResult.summary object of spec.md §6.
type Summary struct {
	TotalAssignments int
	TotalViolations  int
	StrategiesUsed   []core.StrategyID
}

// Result is the GenerateResult of spec.md §6.
type Result struct {
	Preview           bool
	Impact            *ImpactAnalysis
	Assignments       []core.Assignment
	UnmetRequirements []engine.UnmetRequirement
	Violations        []Violation
	Summary           Summary

	PreservedPast   int
	PreservedFuture int
	DeletedFuture   int
	NewGenerated    int
	AuditLogID      core.AuditLogID
}

// Service is the Regeneration Service. Its fields are the seams a host
// application fills in: Store for persistence, Clock for "now", Defaults/
// Configs for the configuration layer internal/schedctx needs to build a
// Context.
type Service struct {
	Store    store.Store
	Clock    clock.Clock
	Defaults core.GlobalDefaults
	Configs  map[core.ClerkshipID]*core.ClerkshipConfig

	// NewAssignmentID and NewAuditLogID default to uuid.NewString-backed
	// generators; tests override them for deterministic fixtures.
	NewAssignmentID func() core.AssignmentID
	NewAuditLogID   func() core.AuditLogID
}

// NewService builds a Service with the real Clock and uuid-backed id
// generators.
func NewService(st store.Store, defaults core.GlobalDefaults, configs map[core.ClerkshipID]*core.ClerkshipConfig) *Service {
	return &Service{
		Store:           st,
		Clock:           clock.Real,
		Defaults:        defaults,
		Configs:         configs,
		NewAssignmentID: func() core.AssignmentID { return core.AssignmentID(uuid.NewString()) },
		NewAuditLogID:   func() core.AuditLogID { return core.AuditLogID(uuid.NewString()) },
	}
}

// Run executes one Regeneration Service invocation per spec.md §4.6's
// pipeline. On success (including a preview), it returns a *Result. On
// failure, err is an *engineerr.Error.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, engineerr.Wrap(engineerr.Cancelled, err, "regeneration cancelled before start")
	}

	switch req.Mode {
	case ModeFull, ModeMinimalChange, ModeFullReoptimize, ModeCompletion:
	default:
		return nil, engineerr.New(engineerr.ConfigInvalid, "unknown regeneration mode %q", req.Mode)
	}

	startedAt := s.Clock.Now()
	outcome := "error"
	defer func() {
		metrics.RegenerationsTotal.WithLabelValues(string(req.Mode), outcome).Inc()
		metrics.RegenerationDuration.WithLabelValues(string(req.Mode)).Observe(s.Clock.Now().Sub(startedAt).Seconds())
	}()

	bypass := make(map[constraints.Name]bool, len(req.BypassedConstraints))
	for _, n := range req.BypassedConstraints {
		bypass[n] = true
	}

	cutoff := req.CutoffDate
	switch {
	case req.Mode == ModeFull:
		cutoff = req.StartDate
	case cutoff == (core.Date{}):
		cutoff = core.DateFromTime(s.Clock.Now())
	}

	// Previews never write, so they are allowed to run concurrently with
	// each other; only a writing invocation takes the period's advisory
	// lock.
	if !req.Preview {
		if err := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
			return s.Store.AcquirePeriodLock(ctx, req.PeriodID)
		}); err != nil {
			return nil, asEngineErr(err, "could not acquire period lock")
		}
		defer func() {
			_ = s.Store.ReleasePeriodLock(ctx, req.PeriodID)
		}()
	}

	var period core.SchedulingPeriod
	if err := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
		var loadErr error
		period, loadErr = s.Store.LoadPeriod(ctx, req.PeriodID)
		return loadErr
	}); err != nil {
		return nil, asEngineErr(err, "could not load period %s", req.PeriodID)
	}

	var ents store.Entities
	if err := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
		var loadErr error
		ents, loadErr = s.Store.LoadEntities(ctx, period)
		return loadErr
	}); err != nil {
		return nil, asEngineErr(err, "could not load entities for period %s", req.PeriodID)
	}

	var allAssignments []core.Assignment
	if err := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
		var loadErr error
		allAssignments, loadErr = s.Store.LoadAssignments(ctx, req.StartDate, req.EndDate)
		return loadErr
	}); err != nil {
		return nil, asEngineErr(err, "could not load assignments for period %s", req.PeriodID)
	}

	var past, future []core.Assignment
	for _, a := range allAssignments {
		if a.Date.Before(cutoff) {
			past = append(past, a)
		} else {
			future = append(future, a)
		}
	}

	// classCtx spans the whole requested range so DateInWindow never rejects
	// an existing future assignment purely for being classified; it starts
	// seeded with past only, then accumulates Preservable/kept future
	// assignments as classification proceeds.
	classCtx, err := schedctx.Build(core.SchedulingPeriod{ID: period.ID, StartDate: req.StartDate, EndDate: req.EndDate, IsActive: period.IsActive}, ents, past, s.Configs, s.Defaults)
	if err != nil {
		return nil, asEngineErr(err, "could not build classification context")
	}
	classLedger := ledger.Seed(past)
	factory := constraints.NewFactory()

	var classified []ClassifiedAssignment
	if req.Mode.classifies() {
		classified = classifyFuture(classCtx, factory, classLedger, future, bypass)
	}

	preserved, toDeleteIDs := selectPreserved(req.Mode, future, classified, classCtx, classLedger)

	impact := buildImpact(req.Mode, past, future, classified)

	if err := ctx.Err(); err != nil {
		return nil, engineerr.Wrap(engineerr.Cancelled, err, "regeneration cancelled mid-pipeline")
	}

	creditSource := make([]core.Assignment, 0, len(past)+len(preserved))
	creditSource = append(creditSource, past...)
	creditSource = append(creditSource, preserved...)
	credits := buildCredits(creditSource)

	genPeriod := core.SchedulingPeriod{ID: period.ID, StartDate: cutoff, EndDate: req.EndDate, IsActive: period.IsActive}
	genCtx, err := schedctx.Build(genPeriod, ents, preserved, s.Configs, s.Defaults)
	if err != nil {
		return nil, asEngineErr(err, "could not build generation context")
	}
	genCtx.Requirements = applyCredits(genCtx.Requirements, credits)
	genLedger := ledger.Seed(preserved)

	eng := &engine.Engine{Factory: factory}
	newID := s.newAssignmentID()
	engResult, err := eng.Run(ctx, genCtx, genLedger, bypass, req.Deadline, newID)
	if err != nil {
		return nil, err
	}

	metrics.AssignmentsGeneratedTotal.WithLabelValues(string(req.Mode)).Add(float64(len(engResult.Assignments)))
	for _, u := range engResult.UnmetRequirements {
		metrics.UnmetRequirementsTotal.WithLabelValues(string(req.Mode), u.Reason).Inc()
	}

	violations := buildViolations(classified)
	impact.StudentProgress = buildStudentProgress(classCtx.Requirements, credits, engResult.Assignments)

	strategiesUsed := engResult.StrategiesUsed

	result := &Result{
		Preview:           req.Preview,
		Impact:            impact,
		Assignments:       engResult.Assignments,
		UnmetRequirements: engResult.UnmetRequirements,
		Violations:        violations,
		Summary: Summary{
			TotalAssignments: len(past) + len(preserved) + len(engResult.Assignments),
			TotalViolations:  len(violations),
			StrategiesUsed:   strategiesUsed,
		},
		PreservedPast:   len(past),
		PreservedFuture: len(preserved),
		DeletedFuture:   len(toDeleteIDs),
		NewGenerated:    len(engResult.Assignments),
	}

	if req.Preview {
		outcome = "preview"
		return result, nil
	}

	now := s.Clock.Now()
	for i := range engResult.Assignments {
		engResult.Assignments[i].CreatedAt = now
		engResult.Assignments[i].UpdatedAt = now
	}

	event := audit.RegenerationEvent{
		PeriodID:       req.PeriodID,
		Mode:           string(req.Mode),
		CutoffDate:     cutoff,
		EndDate:        req.EndDate,
		PastCount:      len(past),
		DeletedCount:   len(toDeleteIDs),
		PreservedCount: len(preserved),
		AffectedCount:  impact.AffectedCount,
		GeneratedCount: len(engResult.Assignments),
		Success:        true,
		Notes:          impact.Summary,
	}
	for n := range bypass {
		event.Bypassed = append(event.Bypassed, string(n))
	}
	sort.Strings(event.Bypassed)

	auditLog := event.ToAuditLog(s.Clock)
	auditLog.ID = s.newAuditLogID()

	txErr := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
		return s.Store.Transaction(ctx, func(tx store.Tx) error {
			if len(toDeleteIDs) > 0 {
				if err := tx.DeleteAssignments(toDeleteIDs); err != nil {
					return err
				}
			}
			if len(engResult.Assignments) > 0 {
				if err := tx.InsertAssignments(engResult.Assignments); err != nil {
					return err
				}
			}
			return tx.InsertAuditLog(auditLog)
		})
	})
	if txErr != nil {
		event.Success = false
		event.Reason = txErr.Error()
		audit.Log(event)
		return nil, asEngineErr(txErr, "regeneration transaction failed for period %s", req.PeriodID)
	}

	audit.Log(event)
	result.AuditLogID = auditLog.ID
	outcome = "success"
	return result, nil
}

func (s *Service) newAssignmentID() func() core.AssignmentID {
	if s.NewAssignmentID != nil {
		return s.NewAssignmentID
	}
	return func() core.AssignmentID { return core.AssignmentID(uuid.NewString()) }
}

func (s *Service) newAuditLogID() core.AuditLogID {
	if s.NewAuditLogID != nil {
		return s.NewAuditLogID()
	}
	return core.AuditLogID(uuid.NewString())
}

// selectPreserved decides, per Mode, which future assignments survive and
// which are deleted, committing any newly-kept ones into classCtx/classLedger
// so the generation pass sees them. minimal_change keeps exactly the
// Preservable ones (already committed during classifyFuture); completion
// keeps everything, including Affected rows, purely preserved as-is;
// full/full_reoptimize keep nothing.
func selectPreserved(mode Mode, future []core.Assignment, classified []ClassifiedAssignment, c *schedctx.Context, led *ledger.Ledger) (preserved []core.Assignment, toDeleteIDs []core.AssignmentID) {
	switch mode {
	case ModeFull, ModeFullReoptimize:
		for _, a := range future {
			toDeleteIDs = append(toDeleteIDs, a.ID)
		}
		return nil, toDeleteIDs
	case ModeCompletion:
		for _, ca := range classified {
			if ca.Class == Affected {
				commitFutureAssignment(c, led, ca.Assignment)
			}
			preserved = append(preserved, ca.Assignment)
		}
		return preserved, nil
	default: // ModeMinimalChange
		for _, ca := range classified {
			if ca.Class == Preservable {
				preserved = append(preserved, ca.Assignment)
			} else {
				toDeleteIDs = append(toDeleteIDs, ca.Assignment.ID)
			}
		}
		return preserved, toDeleteIDs
	}
}

func buildImpact(mode Mode, past, future []core.Assignment, classified []ClassifiedAssignment) *ImpactAnalysis {
	impact := &ImpactAnalysis{PastCount: len(past)}

	switch mode {
	case ModeFull, ModeFullReoptimize:
		impact.ToDeleteCount = len(future)
	case ModeCompletion:
		impact.ToDeleteCount = 0
		for _, ca := range classified {
			if ca.Class == Preservable {
				impact.PreservableCount++
			} else {
				impact.AffectedCount++
				if ca.Replaceable() {
					impact.ReplaceableCount++
				}
			}
		}
	default: // ModeMinimalChange
		for _, ca := range classified {
			if ca.Class == Preservable {
				impact.PreservableCount++
			} else {
				impact.AffectedCount++
				impact.ToDeleteCount++
				if ca.Replaceable() {
					impact.ReplaceableCount++
				}
			}
		}
	}

	impact.Summary = fmt.Sprintf(
		"mode=%s past=%d to_delete=%d preservable=%d affected=%d replaceable=%d",
		mode, impact.PastCount, impact.ToDeleteCount, impact.PreservableCount, impact.AffectedCount, impact.ReplaceableCount,
	)
	return impact
}

// buildStudentProgress reports, for every Requirement the context derived
// from current entities (uncredited), how many days are already credited
// (from past plus any preserved future assignments) versus newly placed by
// this invocation.
func buildStudentProgress(reqs []core.Requirement, credits map[string]int, generated []core.Assignment) []StudentProgress {
	placed := buildCredits(generated)

	out := make([]StudentProgress, 0, len(reqs))
	for _, r := range reqs {
		key := r.ID()
		credited := credits[key]
		placedDays := placed[key]
		out = append(out, StudentProgress{
			StudentID:     r.StudentID,
			RequirementID: key,
			RequiredDays:  r.RequiredDays,
			CreditedDays:  credited,
			PlacedDays:    placedDays,
			Complete:      credited+placedDays >= r.RequiredDays,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequirementID < out[j].RequirementID })
	return out
}

func buildViolations(classified []ClassifiedAssignment) []Violation {
	var out []Violation
	for _, ca := range classified {
		if ca.Class != Affected {
			continue
		}
		out = append(out, Violation{
			AssignmentID: ca.Assignment.ID,
			Constraint:   ca.ViolatedConstraint,
			Reason:       ca.Reason,
		})
	}
	return out
}

// asEngineErr wraps a non-engineerr error (typically a store error) as a
// Fatal *engineerr.Error, preserving any already-typed error (e.g. a
// StoreBusy raised by store.WithBackoff) unchanged.
func asEngineErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*engineerr.Error); ok {
		return ee
	}
	return engineerr.Wrap(engineerr.Fatal, err, format, args...)
}
