// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package editing implements the Editing Operations of spec.md §4.7:
// reassign, swap and update_assignment. Every operation runs the same
// Constraint Factory pipeline the Scheduling Engine uses via
// engine.Engine.ValidateCandidate, so there is exactly one source of truth
// for what makes a placement valid. Grounded on the teacher's habit of
// routing both its reconciliation loop and its one-off admin endpoints
// through the same quota-check helpers rather than duplicating validation.
package editing

import (
	"context"

	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/engine"
	"github.com/sapcc/limes-clinsched/internal/engineerr"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/metrics"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
	"github.com/sapcc/limes-clinsched/internal/store"
)

// ValidationResult is the ValidationResult of spec.md §6's editing API.
// Assignments carries the resulting row(s) whether or not the call was a
// dry run, so a caller can show a preview without a second round trip.
type ValidationResult struct {
	Valid       bool
	Errors      []string
	Assignments []core.Assignment
}

// Service is the Editing Operations surface. Unlike the Regeneration
// Service it takes no period lock: a single-assignment edit is not the
// "non-suspending computation" spec.md §5 scopes the lock to, and multiple
// edits against unrelated assignments should not serialize on each other.
type Service struct {
	Store    store.Store
	Defaults core.GlobalDefaults
	Configs  map[core.ClerkshipID]*core.ClerkshipConfig
}

// NewService builds an editing Service.
func NewService(st store.Store, defaults core.GlobalDefaults, configs map[core.ClerkshipID]*core.ClerkshipConfig) *Service {
	return &Service{Store: st, Defaults: defaults, Configs: configs}
}

// ReassignRequest is one reassign(assignment_id, new_preceptor_id, dry_run)
// call. PeriodID is not part of the language-neutral signature in spec.md
// §4.7, but the abstract Data Store Interface of §6 has no "find an
// assignment's period" lookup, so callers must supply it.
type ReassignRequest struct {
	PeriodID            core.PeriodID
	AssignmentID        core.AssignmentID
	NewPreceptorID      core.PreceptorID
	DryRun              bool
	BypassedConstraints []constraints.Name
}

// Reassign implements spec.md §4.7's reassign operation.
func (s *Service) Reassign(ctx context.Context, req ReassignRequest) (*ValidationResult, error) {
	bypass := bypassSet(req.BypassedConstraints)
	c, led, byID, err := s.loadContext(ctx, req.PeriodID, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	target, ok := byID[req.AssignmentID]
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "assignment %s not found", req.AssignmentID)
	}

	candidate := target
	candidate.PreceptorID = req.NewPreceptorID

	eng := &engine.Engine{Factory: constraints.NewFactory()}
	if err := eng.ValidateCandidate(c, led, candidateFor(c, candidate), bypass); err != nil {
		return record("reassign", rejected(err)), nil
	}

	result := &ValidationResult{Valid: true, Assignments: []core.Assignment{candidate}}
	if req.DryRun {
		return record("reassign", result), nil
	}
	if err := s.commit(ctx, []core.AssignmentID{target.ID}, []core.Assignment{candidate}); err != nil {
		return nil, err
	}
	return record("reassign", result), nil
}

// SwapRequest is one swap(assignment_id_1, assignment_id_2, dry_run) call.
type SwapRequest struct {
	PeriodID            core.PeriodID
	AssignmentID1       core.AssignmentID
	AssignmentID2       core.AssignmentID
	DryRun              bool
	BypassedConstraints []constraints.Name
}

// Swap implements spec.md §4.7's swap operation: the two assignments'
// preceptors trade places, each resulting row is validated against the
// other's hypothetical placement, and the whole thing is rejected if either
// side fails.
func (s *Service) Swap(ctx context.Context, req SwapRequest) (*ValidationResult, error) {
	bypass := bypassSet(req.BypassedConstraints)
	c, led, byID, err := s.loadContext(ctx, req.PeriodID, req.AssignmentID1, req.AssignmentID2)
	if err != nil {
		return nil, err
	}
	t1, ok := byID[req.AssignmentID1]
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "assignment %s not found", req.AssignmentID1)
	}
	t2, ok := byID[req.AssignmentID2]
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "assignment %s not found", req.AssignmentID2)
	}

	c1, c2 := t1, t2
	c1.PreceptorID, c2.PreceptorID = t2.PreceptorID, t1.PreceptorID

	eng := &engine.Engine{Factory: constraints.NewFactory()}
	cand1 := candidateFor(c, c1)
	if err := eng.ValidateCandidate(c, led, cand1, bypass); err != nil {
		return record("swap", rejected(err)), nil
	}

	// Speculatively commit c1 so c2's validation (capacity, double-booking)
	// sees its effect, then always roll it back: nothing is actually
	// persisted until the caller's own commit below.
	led.Record(cand1.PreceptorID, cand1.Date, cand1.BlockKey)
	c.AssignmentsByStudent[c1.StudentID] = append(c.AssignmentsByStudent[c1.StudentID], c1)

	cand2 := candidateFor(c, c2)
	verr := eng.ValidateCandidate(c, led, cand2, bypass)

	led.Unrecord(cand1.PreceptorID, cand1.Date, cand1.BlockKey)
	members := c.AssignmentsByStudent[c1.StudentID]
	c.AssignmentsByStudent[c1.StudentID] = members[:len(members)-1]

	if verr != nil {
		return record("swap", rejected(verr)), nil
	}

	result := &ValidationResult{Valid: true, Assignments: []core.Assignment{c1, c2}}
	if req.DryRun {
		return record("swap", result), nil
	}
	if err := s.commit(ctx, []core.AssignmentID{t1.ID, t2.ID}, []core.Assignment{c1, c2}); err != nil {
		return nil, err
	}
	return record("swap", result), nil
}

// UpdatePatch is the patch{date?, status?} object of spec.md §6's
// update_assignment call. A nil field leaves that column unchanged.
type UpdatePatch struct {
	Date   *core.Date
	Status *core.AssignmentStatus
}

// UpdateRequest is one update_assignment(id, patch) call.
type UpdateRequest struct {
	PeriodID            core.PeriodID
	AssignmentID        core.AssignmentID
	Patch               UpdatePatch
	DryRun              bool
	BypassedConstraints []constraints.Name
}

// UpdateAssignment implements spec.md §4.7's update_date, generalized to
// spec.md §6's full patch{date?, status?} shape. A patch that cancels the
// assignment always validates: cancelling can never violate a placement
// constraint, and a cancelled row no longer occupies a ledger slot.
func (s *Service) UpdateAssignment(ctx context.Context, req UpdateRequest) (*ValidationResult, error) {
	bypass := bypassSet(req.BypassedConstraints)
	c, led, byID, err := s.loadContext(ctx, req.PeriodID, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	target, ok := byID[req.AssignmentID]
	if !ok {
		return nil, engineerr.New(engineerr.NotFound, "assignment %s not found", req.AssignmentID)
	}

	candidate := target
	if req.Patch.Date != nil {
		candidate.Date = *req.Patch.Date
	}
	if req.Patch.Status != nil {
		candidate.Status = *req.Patch.Status
	}

	if candidate.Status != core.AssignmentCancelled {
		eng := &engine.Engine{Factory: constraints.NewFactory()}
		if err := eng.ValidateCandidate(c, led, candidateFor(c, candidate), bypass); err != nil {
			return record("update_assignment", rejected(err)), nil
		}
	}

	result := &ValidationResult{Valid: true, Assignments: []core.Assignment{candidate}}
	if req.DryRun {
		return record("update_assignment", result), nil
	}
	if err := s.commit(ctx, []core.AssignmentID{target.ID}, []core.Assignment{candidate}); err != nil {
		return nil, err
	}
	return record("update_assignment", result), nil
}

// loadContext loads the period's entities and assignments, excludes the
// given assignment ids from both the Context's indexes and the Ledger's
// counts (so re-validating a row against itself never double-counts its
// own prior placement), and returns every loaded assignment keyed by id so
// callers can look up the row(s) being edited.
func (s *Service) loadContext(ctx context.Context, periodID core.PeriodID, excludeIDs ...core.AssignmentID) (*schedctx.Context, *ledger.Ledger, map[core.AssignmentID]core.Assignment, error) {
	var period core.SchedulingPeriod
	if err := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
		var loadErr error
		period, loadErr = s.Store.LoadPeriod(ctx, periodID)
		return loadErr
	}); err != nil {
		return nil, nil, nil, asEngineErr(err, "could not load period %s", periodID)
	}

	var ents store.Entities
	if err := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
		var loadErr error
		ents, loadErr = s.Store.LoadEntities(ctx, period)
		return loadErr
	}); err != nil {
		return nil, nil, nil, asEngineErr(err, "could not load entities for period %s", periodID)
	}

	var all []core.Assignment
	if err := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
		var loadErr error
		all, loadErr = s.Store.LoadAssignments(ctx, period.StartDate, period.EndDate)
		return loadErr
	}); err != nil {
		return nil, nil, nil, asEngineErr(err, "could not load assignments for period %s", periodID)
	}

	exclude := make(map[core.AssignmentID]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = true
	}

	byID := make(map[core.AssignmentID]core.Assignment, len(all))
	indexed := make([]core.Assignment, 0, len(all))
	for _, a := range all {
		byID[a.ID] = a
		if !exclude[a.ID] {
			indexed = append(indexed, a)
		}
	}

	c, err := schedctx.Build(period, ents, indexed, s.Configs, s.Defaults)
	if err != nil {
		return nil, nil, nil, asEngineErr(err, "could not build context for period %s", periodID)
	}
	return c, ledger.Seed(indexed), byID, nil
}

func (s *Service) commit(ctx context.Context, deleteIDs []core.AssignmentID, inserts []core.Assignment) error {
	err := store.WithBackoff(store.DefaultBackoffPolicy, func() error {
		return s.Store.Transaction(ctx, func(tx store.Tx) error {
			if err := tx.DeleteAssignments(deleteIDs); err != nil {
				return err
			}
			return tx.InsertAssignments(inserts)
		})
	})
	if err != nil {
		return asEngineErr(err, "editing transaction failed")
	}
	return nil
}

func candidateFor(c *schedctx.Context, a core.Assignment) constraints.Candidate {
	req := schedctx.RequirementForAssignment(c, a)
	siteID := core.SiteID("")
	if a.SiteID != nil {
		siteID = *a.SiteID
	}
	return constraints.Candidate{Requirement: req, PreceptorID: a.PreceptorID, SiteID: siteID, Date: a.Date, BlockKey: a.BlockKey}
}

func rejected(err error) *ValidationResult {
	return &ValidationResult{Valid: false, Errors: []string{err.Error()}}
}

// record counts a completed (accepted or rejected) editing call. Store
// errors and not-found lookups return before this point and are not
// counted.
func record(operation string, res *ValidationResult) *ValidationResult {
	outcome := "rejected"
	if res.Valid {
		outcome = "accepted"
	}
	metrics.EditingOperationsTotal.WithLabelValues(operation, outcome).Inc()
	return res
}

func bypassSet(names []constraints.Name) map[constraints.Name]bool {
	out := make(map[constraints.Name]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

func asEngineErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*engineerr.Error); ok {
		return ee
	}
	return engineerr.Wrap(engineerr.Fatal, err, format, args...)
}
