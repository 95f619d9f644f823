// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package strategy

import (
	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
)

func init() {
	Registry.Add(func() Strategy { return &continuousSingle{} })
}

// continuousSingle implements spec.md §4.4's continuous_single strategy: a
// single preceptor at a single site on as many available,
// constraint-satisfying weekdays as needed to cover RequiredDays, walking
// forward from the period start; weekends and rejected days are skipped, so
// the placed days need not be consecutive. If
// the chosen preceptor runs out of room (capacity, availability, blackout)
// before RequiredDays is reached, the strategy tries the next preceptor
// from the same starting date rather than fragmenting across preceptors.
type continuousSingle struct{}

// PluginTypeID implements the Strategy interface.
func (s *continuousSingle) PluginTypeID() string { return string(core.StrategyContinuousSingle) }

func (s *continuousSingle) Place(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, bypass map[constraints.Name]bool) Outcome {
	var best Outcome
	var bestPenalty float64
	best.Unmet = true

	for _, preceptorID := range continuousSingleCandidateOrder(c, req) {
		siteID, ok := firstSiteFor(c, preceptorID)
		if !ok {
			continue
		}
		placements, penalty, lastReject := tryContinuousRun(c, factory, led, req, bypass, preceptorID, siteID, c.Period.StartDate, "")
		commitAndRollback(led, placements, true) // speculative; re-recorded below if this run wins
		better := len(placements) > len(best.Placements) ||
			(len(placements) == len(best.Placements) && len(placements) > 0 && penalty < bestPenalty)
		if better {
			best = Outcome{Placements: placements, Unmet: len(placements) < req.RequiredDays, LastRejection: lastReject}
			bestPenalty = penalty
		}
		if len(placements) >= req.RequiredDays && penalty == 0 {
			break
		}
	}

	for _, p := range best.Placements {
		led.Record(p.PreceptorID, p.Date, p.BlockKey)
	}
	return best
}

// continuousSingleCandidateOrder implements spec.md §4.4's continuous_single
// search order: preceptors whose team includes the requirement's clerkship
// are tried first, then every preceptor in the student's onboarded health
// systems (or every known preceptor, if the student has no onboarding
// records at all). Each tier is tie-broken by fewest prior assignments, then
// lexicographic preceptor id.
func continuousSingleCandidateOrder(c *schedctx.Context, req core.Requirement) []core.PreceptorID {
	seen := make(map[core.PreceptorID]bool)
	var tier1, tier2 []core.PreceptorID

	for _, t := range c.TeamsByClerkship[req.ClerkshipID] {
		for _, m := range t.Members {
			if seen[m.PreceptorID] {
				continue
			}
			seen[m.PreceptorID] = true
			tier1 = append(tier1, m.PreceptorID)
		}
	}

	student := c.StudentsByID[req.StudentID]
	for id, p := range c.PreceptorsByID {
		if seen[id] {
			continue
		}
		if len(student.OnboardedHealthSystems) > 0 && !student.OnboardedHealthSystems[p.HealthSystemID] {
			continue
		}
		seen[id] = true
		tier2 = append(tier2, id)
	}

	sortByPriorAssignmentsThenID(c, tier1)
	sortByPriorAssignmentsThenID(c, tier2)
	return append(tier1, tier2...)
}

// sortByPriorAssignmentsThenID orders ids by ascending count of pre-existing
// AssignmentsByPreceptor, then ascending lexicographic id.
func sortByPriorAssignmentsThenID(c *schedctx.Context, ids []core.PreceptorID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := ids[j-1], ids[j]
			if priorAssignmentsLess(c, b, a) {
				ids[j-1], ids[j] = ids[j], ids[j-1]
			} else {
				break
			}
		}
	}
}

func priorAssignmentsLess(c *schedctx.Context, a, b core.PreceptorID) bool {
	na, nb := len(c.AssignmentsByPreceptor[a]), len(c.AssignmentsByPreceptor[b])
	if na != nb {
		return na < nb
	}
	return a < b
}

// tryContinuousRun walks forward from startFrom recording placements with
// the given preceptor/site into led as it goes (so PreceptorDailyCapacity
// checks against already-tried days in this same run), stopping once
// RequiredDays is reached or the period ends. It returns the placements
// found, the summed Verdict.Penalty across them (spec.md §4.2's tie-break
// cost) and the last constraint rejection seen, then reverses its own
// ledger mutations so the caller can decide whether to keep them.
func tryContinuousRun(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, bypass map[constraints.Name]bool, preceptorID core.PreceptorID, siteID core.SiteID, startFrom core.Date, blockKey string) ([]Placement, float64, constraints.Verdict) {
	var placements []Placement
	var lastReject constraints.Verdict
	var penalty float64

	for _, date := range candidateDates(c, startFrom) {
		if len(placements) >= req.RequiredDays {
			break
		}
		if date.IsWeekend() {
			continue
		}
		cand := constraints.Candidate{Requirement: req, PreceptorID: preceptorID, SiteID: siteID, Date: date, BlockKey: blockKey}
		v := factory.Evaluate(c, led, cand, bypass)
		if !v.Accept {
			lastReject = v
			continue
		}
		penalty += v.Penalty
		led.Record(preceptorID, date, blockKey)
		placements = append(placements, Placement{PreceptorID: preceptorID, SiteID: siteID, Date: date, BlockKey: blockKey})
	}
	return placements, penalty, lastReject
}

// tryStrictConsecutiveRun is like tryContinuousRun but aborts at the first
// constraint-rejected day instead of skipping it, since a block_based block
// must be unbroken working days at one preceptor and one site. Weekends and
// cluster-wide blackouts are the documented exception: the window extends
// past them rather than aborting, so a block only needs wantSize working
// days, not wantSize calendar days.
func tryStrictConsecutiveRun(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, bypass map[constraints.Name]bool, preceptorID core.PreceptorID, siteID core.SiteID, startFrom core.Date, wantSize int, blockKey string) ([]Placement, float64, constraints.Verdict) {
	var placements []Placement
	var lastReject constraints.Verdict
	var penalty float64

	date := startFrom
	for len(placements) < wantSize {
		if date.After(c.Period.EndDate) {
			break
		}
		if date.IsWeekend() || c.IsBlackedOut(date) {
			date = date.AddDays(1)
			continue
		}
		cand := constraints.Candidate{Requirement: req, PreceptorID: preceptorID, SiteID: siteID, Date: date, BlockKey: blockKey}
		v := factory.Evaluate(c, led, cand, bypass)
		if !v.Accept {
			lastReject = v
			break
		}
		penalty += v.Penalty
		led.Record(preceptorID, date, blockKey)
		placements = append(placements, Placement{PreceptorID: preceptorID, SiteID: siteID, Date: date, BlockKey: blockKey})
		date = date.AddDays(1)
	}
	return placements, penalty, lastReject
}

// commitAndRollback optionally reverses the ledger effects of placements;
// used by strategies that speculatively try several candidates before
// settling on one.
func commitAndRollback(led *ledger.Ledger, placements []Placement, rollback bool) {
	if !rollback {
		return
	}
	for _, p := range placements {
		led.Unrecord(p.PreceptorID, p.Date, p.BlockKey)
	}
}
