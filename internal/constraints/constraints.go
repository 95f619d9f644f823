// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package constraints implements the Constraint Factory of spec.md §4.2: a
// fixed set of named predicates, each evaluated against a candidate
// (Requirement, Preceptor, Site, Date) placement, plus the bypass mechanism
// editing operations use to skip a subset of them. Grounded on the teacher's
// internal/core QuotaConstraint evaluators, which are likewise small,
// independently testable predicates combined by a caller-controlled list
// rather than one monolithic validator.
package constraints

import (
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
)

// Name identifies one of the eleven named constraints of spec.md §4.2.
type Name string

const (
	DateInWindow             Name = "date_in_window"
	NotBlackedOut            Name = "not_blacked_out"
	StudentNotDoubleBooked   Name = "student_not_double_booked"
	PreceptorAvailable       Name = "preceptor_available"
	PreceptorDailyCapacity   Name = "preceptor_daily_capacity"
	PreceptorYearlyCapacity  Name = "preceptor_yearly_capacity"
	HealthSystemRule         Name = "health_system_rule"
	SpecialtyMatch           Name = "specialty_match"
	ElectivePreceptorAllowed Name = "elective_preceptor_allowed"
	SameSiteForBlock         Name = "same_site_for_block"
	TeamMembership           Name = "team_membership"
)

// All lists every named constraint in the fixed evaluation order of
// spec.md §4.2: cheap, structural checks first, capacity checks last.
var All = []Name{
	DateInWindow,
	NotBlackedOut,
	StudentNotDoubleBooked,
	PreceptorAvailable,
	HealthSystemRule,
	SpecialtyMatch,
	ElectivePreceptorAllowed,
	TeamMembership,
	SameSiteForBlock,
	PreceptorDailyCapacity,
	PreceptorYearlyCapacity,
}

// Candidate is one prospective (requirement, preceptor, site, date)
// placement under evaluation.
type Candidate struct {
	Requirement core.Requirement
	PreceptorID core.PreceptorID
	SiteID      core.SiteID
	Date        core.Date
	// BlockKey is set when the candidate extends an in-progress block_based
	// block, so SameSiteForBlock can compare against the block's first site.
	BlockKey string
}

// Verdict is the result of evaluating one Candidate against one Name.
// Penalty is nonzero only on an otherwise-accepting Verdict: it is a
// tie-break cost (spec.md §4.2's "penalty costs ... summed for
// tie-breaking"), not a rejection, so a nonzero Penalty never implies
// Accept is false.
type Verdict struct {
	Name    Name
	Accept  bool
	Reason  string // human-readable rejection/penalty reason
	Penalty float64
}

// Evaluator evaluates a single named constraint.
type Evaluator func(c *schedctx.Context, led *ledger.Ledger, cand Candidate) Verdict

// Factory holds the fixed set of Evaluators and the Bypass mechanism callers
// use to skip a subset of them (the editing operations pass the caller's
// BypassedConstraints through; the assignment being replaced is kept out of
// the Context instead of being bypassed).
type Factory struct {
	evaluators map[Name]Evaluator
}

// NewFactory builds the Factory with every constraint wired to its
// evaluator.
func NewFactory() *Factory {
	return &Factory{
		evaluators: map[Name]Evaluator{
			DateInWindow:             evalDateInWindow,
			NotBlackedOut:            evalNotBlackedOut,
			StudentNotDoubleBooked:   evalStudentNotDoubleBooked,
			PreceptorAvailable:       evalPreceptorAvailable,
			PreceptorDailyCapacity:   evalPreceptorDailyCapacity,
			PreceptorYearlyCapacity:  evalPreceptorYearlyCapacity,
			HealthSystemRule:         evalHealthSystemRule,
			SpecialtyMatch:           evalSpecialtyMatch,
			ElectivePreceptorAllowed: evalElectivePreceptorAllowed,
			SameSiteForBlock:         evalSameSiteForBlock,
			TeamMembership:           evalTeamMembership,
		},
	}
}

// Evaluate runs every constraint in All except those named in bypass,
// short-circuiting at the first rejection. A constraint that accepts with a
// nonzero Penalty (e.g. HealthSystemRule under prefer_same_system) does not
// short-circuit; its cost is summed into the final accepting Verdict so
// callers can compare candidates by total penalty for tie-breaking.
func (f *Factory) Evaluate(c *schedctx.Context, led *ledger.Ledger, cand Candidate, bypass map[Name]bool) Verdict {
	var totalPenalty float64
	var lastPenalty Verdict
	for _, n := range All {
		if bypass[n] {
			continue
		}
		eval, ok := f.evaluators[n]
		if !ok {
			continue
		}
		v := eval(c, led, cand)
		if !v.Accept {
			return v
		}
		if v.Penalty > 0 {
			totalPenalty += v.Penalty
			lastPenalty = v
		}
	}
	if totalPenalty > 0 {
		return Verdict{Name: lastPenalty.Name, Accept: true, Reason: lastPenalty.Reason, Penalty: totalPenalty}
	}
	return Verdict{Accept: true}
}

func accept() Verdict { return Verdict{Accept: true} }

func reject(n Name, reason string) Verdict {
	return Verdict{Name: n, Accept: false, Reason: reason}
}

// penalize accepts the candidate but records a tie-break cost, for
// constraints like HealthSystemRule's prefer_same_system mode that should
// influence strategy candidate scoring without rejecting outright.
func penalize(n Name, reason string, cost float64) Verdict {
	return Verdict{Name: n, Accept: true, Reason: reason, Penalty: cost}
}

func evalDateInWindow(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	if !c.Period.Contains(cand.Date) {
		return reject(DateInWindow, "date falls outside the active scheduling period")
	}
	return accept()
}

func evalNotBlackedOut(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	if c.IsBlackedOut(cand.Date) {
		return reject(NotBlackedOut, "date is cluster-wide blacked out")
	}
	return accept()
}

func evalStudentNotDoubleBooked(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	for _, a := range c.AssignmentsByStudent[cand.Requirement.StudentID] {
		if a.Date.Equal(cand.Date) && a.CountsTowardCredit() {
			return reject(StudentNotDoubleBooked, "student already has an assignment on this date")
		}
	}
	return accept()
}

func evalPreceptorAvailable(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	if !c.IsAvailable(cand.PreceptorID, cand.SiteID, cand.Date) {
		return reject(PreceptorAvailable, "preceptor is not available at this site on this date")
	}
	return accept()
}

func evalPreceptorDailyCapacity(c *schedctx.Context, led *ledger.Ledger, cand Candidate) Verdict {
	p, ok := c.PreceptorsByID[cand.PreceptorID]
	if !ok {
		return reject(PreceptorDailyCapacity, "unknown preceptor")
	}
	cfg := c.ResolvedConfigFor(cand.Requirement.ClerkshipID, cand.Requirement.RequirementType)
	resolved := core.ResolveCapacity(c.CapacityRules, p, cand.Requirement.ClerkshipID, cand.Requirement.RequirementType, cfg)
	if led.DailyCount(cand.PreceptorID, cand.Date) >= resolved.MaxPerDay {
		return reject(PreceptorDailyCapacity, "preceptor is at daily capacity")
	}
	return accept()
}

func evalPreceptorYearlyCapacity(c *schedctx.Context, led *ledger.Ledger, cand Candidate) Verdict {
	p, ok := c.PreceptorsByID[cand.PreceptorID]
	if !ok {
		return reject(PreceptorYearlyCapacity, "unknown preceptor")
	}
	cfg := c.ResolvedConfigFor(cand.Requirement.ClerkshipID, cand.Requirement.RequirementType)
	resolved := core.ResolveCapacity(c.CapacityRules, p, cand.Requirement.ClerkshipID, cand.Requirement.RequirementType, cfg)
	if resolved.MaxPerYear <= 0 {
		return accept()
	}
	if led.YearlyCount(cand.PreceptorID, cand.Date.Year()) >= resolved.MaxPerYear {
		return reject(PreceptorYearlyCapacity, "preceptor is at yearly capacity")
	}
	return accept()
}

// healthSystemMismatchPenalty is the tie-break cost applied to a candidate
// outside the student's onboarded health systems under prefer_same_system.
const healthSystemMismatchPenalty = 1.0

// evalHealthSystemRule implements the student-onboarding rule of spec.md
// §4.2 item 7: a student may only be placed with a preceptor belonging to a
// health system the student is onboarded to, unless the student has no
// onboarding records at all (open question 1: no-record students may be
// placed anywhere), or the clerkship's resolved HealthSystemRule is less
// than enforce_same_system. enforce_same_system rejects a mismatch outright;
// prefer_same_system accepts it with a tie-break penalty; no_preference
// accepts it outright.
func evalHealthSystemRule(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	student, ok := c.StudentsByID[cand.Requirement.StudentID]
	if !ok {
		return reject(HealthSystemRule, "unknown student")
	}
	if len(student.OnboardedHealthSystems) == 0 {
		return accept()
	}
	p, ok := c.PreceptorsByID[cand.PreceptorID]
	if !ok {
		return reject(HealthSystemRule, "unknown preceptor")
	}
	if student.OnboardedHealthSystems[p.HealthSystemID] {
		return accept()
	}

	cfg := c.ResolvedConfigFor(cand.Requirement.ClerkshipID, cand.Requirement.RequirementType)
	switch cfg.HealthSystemRule {
	case core.EnforceSameSystem:
		return reject(HealthSystemRule, "student is not onboarded to the preceptor's health system")
	case core.PreferSameSystem:
		return penalize(HealthSystemRule, "preceptor is outside the student's onboarded health systems", healthSystemMismatchPenalty)
	default: // core.NoSystemPreference
		return accept()
	}
}

func evalSpecialtyMatch(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	cl, ok := c.ClerkshipsByID[cand.Requirement.ClerkshipID]
	if !ok {
		return reject(SpecialtyMatch, "unknown clerkship")
	}
	var wantSpecialty string
	if cand.Requirement.ElectiveID != nil {
		e, ok := c.ElectivesByID[*cand.Requirement.ElectiveID]
		if !ok {
			return reject(SpecialtyMatch, "unknown elective")
		}
		wantSpecialty = e.Specialty
	} else {
		wantSpecialty = cl.Specialty
	}
	if wantSpecialty == "" {
		return accept()
	}
	p, ok := c.PreceptorsByID[cand.PreceptorID]
	if !ok {
		return reject(SpecialtyMatch, "unknown preceptor")
	}
	if p.Specialty != wantSpecialty {
		return reject(SpecialtyMatch, "preceptor specialty does not match the requirement")
	}
	return accept()
}

// evalElectivePreceptorAllowed implements open question 3: an empty
// AvailablePreceptorIDs allow-list means any preceptor on the parent
// clerkship's teams is allowed, not "no one is allowed".
func evalElectivePreceptorAllowed(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	if cand.Requirement.ElectiveID == nil {
		return accept()
	}
	e, ok := c.ElectivesByID[*cand.Requirement.ElectiveID]
	if !ok {
		return reject(ElectivePreceptorAllowed, "unknown elective")
	}
	if len(e.AvailablePreceptorIDs) == 0 {
		return accept()
	}
	for _, id := range e.AvailablePreceptorIDs {
		if id == cand.PreceptorID {
			return accept()
		}
	}
	return reject(ElectivePreceptorAllowed, "preceptor is not on the elective's allow-list")
}

// evalSameSiteForBlock enforces that every assignment within a block_based
// block lands at the same site as the block's first assignment.
func evalSameSiteForBlock(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	if cand.BlockKey == "" {
		return accept()
	}
	for _, a := range c.AssignmentsByStudent[cand.Requirement.StudentID] {
		if a.BlockKey == cand.BlockKey && a.SiteID != nil && *a.SiteID != cand.SiteID {
			return reject(SameSiteForBlock, "block assignments must share one site")
		}
	}
	return accept()
}

// evalTeamMembership, for requirements whose clerkship has at least one
// Team, rejects a candidate preceptor who is not a member of any of those
// teams, and, for the first team they belong to that sets RequireSameSite
// with a non-empty SiteIDs, a site outside that set.
// Team.RequireSameHealthSystem and Team.RequireSameSpecialty are not checked.
func evalTeamMembership(c *schedctx.Context, _ *ledger.Ledger, cand Candidate) Verdict {
	teams := c.TeamsByClerkship[cand.Requirement.ClerkshipID]
	if len(teams) == 0 {
		return accept()
	}
	p, ok := c.PreceptorsByID[cand.PreceptorID]
	if !ok {
		return reject(TeamMembership, "unknown preceptor")
	}
	for _, t := range teams {
		member := false
		for _, m := range t.Members {
			if m.PreceptorID == cand.PreceptorID {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		if t.RequireSameSite && len(t.SiteIDs) > 0 && !t.SiteIDs[cand.SiteID] {
			return reject(TeamMembership, "site is not one of the team's permitted sites")
		}
		return accept()
	}
	return reject(TeamMembership, "preceptor is not a member of any team for this clerkship")
}
