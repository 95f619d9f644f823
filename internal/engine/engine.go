// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the Scheduling Engine of spec.md §4.4: given a
// built Context, it dispatches every Requirement to its resolved strategy in
// a deterministic order, collects the resulting placements into
// core.Assignment rows, and records every Requirement it could not fully
// satisfy. Grounded on the teacher's internal/collector Scrape loop, which
// likewise walks a deterministically-ordered work list, calls out to a
// pluggable implementation per item, and accumulates results plus failures
// into one report rather than failing the whole pass on one item's error.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/engineerr"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
	"github.com/sapcc/limes-clinsched/internal/strategy"
)

// UnmetRequirement records a Requirement the Engine could not fully satisfy.
type UnmetRequirement struct {
	Requirement  core.Requirement
	DaysPlaced   int
	DaysRequired int
	Reason       string
}

// Result is everything one Engine.Run call produces.
type Result struct {
	Assignments       []core.Assignment
	UnmetRequirements []UnmetRequirement
	StrategiesUsed    []core.StrategyID
}

// Engine dispatches Requirements to strategies and accumulates their output.
// It does not stamp CreatedAt/UpdatedAt itself; the caller (typically
// internal/regeneration) does that from its own clock.Clock right before
// persisting, since the Engine's Result may be discarded (e.g. a preview
// regeneration never reaches the store).
type Engine struct {
	Factory *constraints.Factory
}

// New builds an Engine with a fresh Constraint Factory.
func New() *Engine {
	return &Engine{Factory: constraints.NewFactory()}
}

// Run dispatches every Requirement in c.Requirements to its resolved
// strategy, in schedctx.RequirementLess order for reproducibility (I9), and
// returns the combined Result. led is mutated in place: every accepted
// placement increments its counters, so callers that need to Seed a Ledger
// from already-committed assignments must do so before calling Run.
//
// If deadline is non-zero and is reached before a requirement is
// dispatched, that requirement and every one after it become
// UnmetRequirements with reason "deadline_exceeded"; requirements already
// processed keep their results, per spec.md §5. ctx is checked before each
// requirement is dispatched; if it is cancelled by then, Run returns a
// Cancelled *engineerr.Error and an empty Result, so cancellation commits no
// partial state. A requirement already being placed runs to completion.
func (e *Engine) Run(ctx context.Context, c *schedctx.Context, led *ledger.Ledger, bypass map[constraints.Name]bool, deadline time.Time, newID func() core.AssignmentID) (Result, error) {
	if newID == nil {
		newID = func() core.AssignmentID { return core.AssignmentID(uuid.NewString()) }
	}

	reqs := make([]core.Requirement, len(c.Requirements))
	copy(reqs, c.Requirements)
	sort.Slice(reqs, func(i, j int) bool { return schedctx.RequirementLess(c, reqs[i], reqs[j]) })

	strategiesUsed := map[core.StrategyID]bool{}
	var result Result
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return Result{}, engineerr.Wrap(engineerr.Cancelled, err, "regeneration cancelled mid-requirement")
		}
		if req.RequiredDays <= 0 {
			continue
		}
		if !deadline.IsZero() && !deadline.After(time.Now()) {
			result.UnmetRequirements = append(result.UnmetRequirements, UnmetRequirement{
				Requirement:  req,
				DaysRequired: req.RequiredDays,
				Reason:       "deadline_exceeded",
			})
			continue
		}

		cfg := c.ResolvedConfigFor(req.ClerkshipID, req.RequirementType)
		strat := strategy.Registry.Instantiate(cfg.Strategy)
		if strat == nil {
			result.UnmetRequirements = append(result.UnmetRequirements, UnmetRequirement{
				Requirement:  req,
				DaysRequired: req.RequiredDays,
				Reason:       "no strategy registered for " + string(cfg.Strategy),
			})
			continue
		}
		strategiesUsed[cfg.Strategy] = true

		outcome := strat.Place(c, e.Factory, led, req, bypass)
		for _, p := range outcome.Placements {
			siteID := p.SiteID
			a := core.Assignment{
				ID:          newID(),
				StudentID:   req.StudentID,
				PreceptorID: p.PreceptorID,
				ClerkshipID: req.ClerkshipID,
				SiteID:      &siteID,
				ElectiveID:  req.ElectiveID,
				Date:        p.Date,
				Status:      core.AssignmentScheduled,
				BlockKey:    p.BlockKey,
			}
			result.Assignments = append(result.Assignments, a)
			c.AssignmentsByStudent[req.StudentID] = append(c.AssignmentsByStudent[req.StudentID], a)
			c.AssignmentsByDate[p.Date] = append(c.AssignmentsByDate[p.Date], a)
			c.AssignmentsByPreceptor[p.PreceptorID] = append(c.AssignmentsByPreceptor[p.PreceptorID], a)
		}

		if outcome.Unmet {
			reason := "no eligible preceptor found"
			if outcome.LastRejection.Reason != "" {
				reason = outcome.LastRejection.Reason
			}
			result.UnmetRequirements = append(result.UnmetRequirements, UnmetRequirement{
				Requirement:  req,
				DaysPlaced:   len(outcome.Placements),
				DaysRequired: req.RequiredDays,
				Reason:       reason,
			})
		}
	}

	sort.Slice(result.Assignments, func(i, j int) bool {
		if result.Assignments[i].StudentID != result.Assignments[j].StudentID {
			return result.Assignments[i].StudentID < result.Assignments[j].StudentID
		}
		return result.Assignments[i].Date.Before(result.Assignments[j].Date)
	})

	for id := range strategiesUsed {
		result.StrategiesUsed = append(result.StrategiesUsed, id)
	}
	sort.Slice(result.StrategiesUsed, func(i, j int) bool { return result.StrategiesUsed[i] < result.StrategiesUsed[j] })

	return result, nil
}

// ValidateCandidate re-checks a single (requirement, preceptor, site, date)
// placement against every non-bypassed constraint, for editing operations
// that must validate one proposed change without running a full strategy
// search. Returns a *engineerr.Error of kind ConstraintViolated on
// rejection.
func (e *Engine) ValidateCandidate(c *schedctx.Context, led *ledger.Ledger, cand constraints.Candidate, bypass map[constraints.Name]bool) error {
	v := e.Factory.Evaluate(c, led, cand, bypass)
	if !v.Accept {
		return engineerr.New(engineerr.ConstraintViolated, "%s", v.Reason).WithDetails(map[string]any{
			"constraint": string(v.Name),
		})
	}
	return nil
}
