// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package regeneration

import (
	"sort"

	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
)

// Classification is the outcome of re-validating one future Assignment
// against the current Context, per spec.md §4.6 step 3.
type Classification string

const (
	Preservable Classification = "preservable"
	Affected    Classification = "affected"
)

// Placement is a candidate replacement (preceptor, site) for an Affected
// assignment that turns out to be Replaceable.
type Placement struct {
	PreceptorID core.PreceptorID
	SiteID      core.SiteID
}

// ClassifiedAssignment is one future Assignment after classification.
type ClassifiedAssignment struct {
	Assignment core.Assignment
	Class      Classification

	// ViolatedConstraint and Reason are set only when Class is Affected.
	ViolatedConstraint string
	Reason             string

	// Replacement is non-nil only for Affected assignments that are also
	// Replaceable: a different preceptor who would satisfy every constraint
	// in the Affected assignment's place.
	Replacement *Placement
}

// Replaceable reports whether this Affected assignment has a candidate
// replacement.
func (ca ClassifiedAssignment) Replaceable() bool {
	return ca.Class == Affected && ca.Replacement != nil
}

// classifyFuture re-validates every future Assignment against c in ascending
// (student, date) order, so earlier assignments are already reflected in c's
// indexes and led's counters by the time a later one for the same student is
// checked. Every Preservable assignment is folded into c and led as it is
// accepted, matching spec.md §4.6 step 5's "commit Preservable into Ledger
// before Engine starts" for the assignments classification itself depends on.
func classifyFuture(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, future []core.Assignment, bypass map[constraints.Name]bool) []ClassifiedAssignment {
	sorted := make([]core.Assignment, len(future))
	copy(sorted, future)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StudentID != sorted[j].StudentID {
			return sorted[i].StudentID < sorted[j].StudentID
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]ClassifiedAssignment, 0, len(sorted))
	for _, a := range sorted {
		req := schedctx.RequirementForAssignment(c, a)
		siteID := core.SiteID("")
		if a.SiteID != nil {
			siteID = *a.SiteID
		}
		cand := constraints.Candidate{Requirement: req, PreceptorID: a.PreceptorID, SiteID: siteID, Date: a.Date, BlockKey: a.BlockKey}
		v := factory.Evaluate(c, led, cand, bypass)
		if v.Accept {
			commitFutureAssignment(c, led, a)
			out = append(out, ClassifiedAssignment{Assignment: a, Class: Preservable})
			continue
		}

		ca := ClassifiedAssignment{Assignment: a, Class: Affected, ViolatedConstraint: string(v.Name), Reason: v.Reason}
		if repl, ok := findReplacement(c, factory, led, req, a, bypass); ok {
			ca.Replacement = &repl
		}
		out = append(out, ca)
	}
	return out
}

// commitFutureAssignment folds a kept future Assignment into c's indexes and
// led's counters, so later classification/generation steps see it exactly
// as they would see an ordinary past assignment.
func commitFutureAssignment(c *schedctx.Context, led *ledger.Ledger, a core.Assignment) {
	c.AssignmentsByStudent[a.StudentID] = append(c.AssignmentsByStudent[a.StudentID], a)
	c.AssignmentsByDate[a.Date] = append(c.AssignmentsByDate[a.Date], a)
	c.AssignmentsByPreceptor[a.PreceptorID] = append(c.AssignmentsByPreceptor[a.PreceptorID], a)
	if a.CountsTowardCredit() {
		led.Record(a.PreceptorID, a.Date, a.BlockKey)
	}
}

// findReplacement tries every other known preceptor, in ascending
// PreceptorID order for determinism, preferring the assignment's original
// site when the candidate serves it. Returns the first preceptor who
// satisfies every non-bypassed constraint in the original assignment's
// place.
func findReplacement(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, a core.Assignment, bypass map[constraints.Name]bool) (Placement, bool) {
	ids := make([]core.PreceptorID, 0, len(c.PreceptorsByID))
	for id := range c.PreceptorsByID {
		if id != a.PreceptorID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := c.PreceptorsByID[id]
		var siteID core.SiteID
		switch {
		case a.SiteID != nil && p.SiteIDs[*a.SiteID]:
			siteID = *a.SiteID
		default:
			s, ok := anySiteFor(c, id)
			if !ok {
				continue
			}
			siteID = s
		}
		cand := constraints.Candidate{Requirement: req, PreceptorID: id, SiteID: siteID, Date: a.Date, BlockKey: a.BlockKey}
		if v := factory.Evaluate(c, led, cand, bypass); v.Accept {
			return Placement{PreceptorID: id, SiteID: siteID}, true
		}
	}
	return Placement{}, false
}

// anySiteFor returns the lexicographically lowest SiteID a preceptor
// serves, for deterministic replacement-site selection.
func anySiteFor(c *schedctx.Context, preceptorID core.PreceptorID) (core.SiteID, bool) {
	p, ok := c.PreceptorsByID[preceptorID]
	if !ok || len(p.SiteIDs) == 0 {
		return "", false
	}
	best := core.SiteID("")
	first := true
	for id := range p.SiteIDs {
		if first || id < best {
			best = id
			first = false
		}
	}
	return best, true
}
