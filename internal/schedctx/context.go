// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package schedctx implements the Context Builder of spec.md §4.3: it loads
// every entity scoped to the active SchedulingPeriod and indexes them by id,
// by date, by student and by preceptor so the rest of the engine never walks
// an unindexed slice. Grounded on the teacher's habit of loading a cluster's
// entities once per collector pass and indexing them into flat maps keyed by
// id (internal/core.Cluster, internal/collector's per-pass caches) rather
// than following live object references.
package schedctx

import (
	"fmt"
	"strings"

	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/engineerr"
	"github.com/sapcc/limes-clinsched/internal/store"
)

// availabilityKey indexes Availability records.
type availabilityKey struct {
	PreceptorID core.PreceptorID
	SiteID      core.SiteID
	Date        core.Date
}

// configKey indexes ResolvedConfig by the same (clerkship, requirement type)
// pair CapacityRule resolution uses.
type configKey struct {
	ClerkshipID core.ClerkshipID
	ReqType     core.RequirementType
}

// Context is the in-memory, per-invocation snapshot the Scheduling Engine
// and Regeneration Service operate over. It is rebuilt at the start of every
// invocation and discarded at the end, per spec.md §5.
type Context struct {
	Period core.SchedulingPeriod

	StudentsByID   map[core.StudentID]core.Student
	PreceptorsByID map[core.PreceptorID]core.Preceptor
	ClerkshipsByID map[core.ClerkshipID]core.Clerkship
	ElectivesByID  map[core.ElectiveID]core.Elective
	SitesByID      map[core.SiteID]core.Site

	TeamsByClerkship map[core.ClerkshipID][]core.Team
	CapacityRules    []core.CapacityRule
	configs          map[configKey]core.ResolvedConfig

	availability         map[availabilityKey]bool
	PreceptorHasAnyRecord map[core.PreceptorID]bool
	Blackouts            map[core.Date]bool

	Assignments            []core.Assignment
	AssignmentsByDate      map[core.Date][]core.Assignment
	AssignmentsByStudent   map[core.StudentID][]core.Assignment
	AssignmentsByPreceptor map[core.PreceptorID][]core.Assignment

	// Requirements is the per-student requirement list derived from
	// enrollments, ordered deterministically per spec.md §4.4's contract.
	Requirements []core.Requirement
}

// IsAvailable implements the availability lookup of invariant I6: if the
// pair has an explicit record, that record's value is authoritative;
// otherwise, a preceptor with no records at all defaults to available, but a
// preceptor with at least one record elsewhere is explicit-only (so an
// unrecorded (site, date) for them defaults to unavailable).
func (c *Context) IsAvailable(preceptorID core.PreceptorID, siteID core.SiteID, date core.Date) bool {
	if v, ok := c.availability[availabilityKey{preceptorID, siteID, date}]; ok {
		return v
	}
	return !c.PreceptorHasAnyRecord[preceptorID]
}

// IsBlackedOut implements invariant I5.
func (c *Context) IsBlackedOut(date core.Date) bool {
	return c.Blackouts[date]
}

// RequirementForAssignment reconstructs the Requirement an existing
// Assignment was originally placed against, for re-validation by the
// Regeneration Service and editing operations. RequiredDays is left at zero
// since callers that use this only re-check placement validity, never day
// counts.
func RequirementForAssignment(c *Context, a core.Assignment) core.Requirement {
	reqType := core.RequirementOutpatient
	if a.ElectiveID != nil {
		reqType = core.RequirementElective
	} else if cl, ok := c.ClerkshipsByID[a.ClerkshipID]; ok {
		reqType = cl.Type.DefaultRequirementType()
	}
	return core.Requirement{
		StudentID:       a.StudentID,
		ClerkshipID:     a.ClerkshipID,
		RequirementType: reqType,
		ElectiveID:      a.ElectiveID,
	}
}

// ResolvedConfigFor returns the merged ResolvedConfig for a (clerkship,
// requirement type) pair, computed once at Build time per spec.md §4.1.
func (c *Context) ResolvedConfigFor(clerkshipID core.ClerkshipID, reqType core.RequirementType) core.ResolvedConfig {
	return c.configs[configKey{clerkshipID, reqType}]
}

// Build loads and indexes a Context from a store snapshot, per spec.md §4.3.
// configs holds the per-clerkship override (nil entries fall back to
// defaults entirely); defaults supplies the three global baseline configs.
func Build(period core.SchedulingPeriod, ents store.Entities, assignments []core.Assignment, configs map[core.ClerkshipID]*core.ClerkshipConfig, defaults core.GlobalDefaults) (*Context, error) {
	c := &Context{
		Period:                 period,
		StudentsByID:           make(map[core.StudentID]core.Student, len(ents.Students)),
		PreceptorsByID:         make(map[core.PreceptorID]core.Preceptor, len(ents.Preceptors)),
		ClerkshipsByID:         make(map[core.ClerkshipID]core.Clerkship, len(ents.Clerkships)),
		ElectivesByID:          make(map[core.ElectiveID]core.Elective, len(ents.Electives)),
		SitesByID:              make(map[core.SiteID]core.Site, len(ents.Sites)),
		TeamsByClerkship:       make(map[core.ClerkshipID][]core.Team),
		CapacityRules:          ents.CapacityRules,
		availability:           make(map[availabilityKey]bool, len(ents.Availability)),
		PreceptorHasAnyRecord:  make(map[core.PreceptorID]bool),
		Blackouts:              make(map[core.Date]bool, len(ents.Blackouts)),
		Assignments:            assignments,
		AssignmentsByDate:      make(map[core.Date][]core.Assignment),
		AssignmentsByStudent:   make(map[core.StudentID][]core.Assignment),
		AssignmentsByPreceptor: make(map[core.PreceptorID][]core.Assignment),
	}

	for _, s := range ents.Students {
		c.StudentsByID[s.ID] = s
	}
	for _, p := range ents.Preceptors {
		c.PreceptorsByID[p.ID] = p
	}
	for _, cl := range ents.Clerkships {
		c.ClerkshipsByID[cl.ID] = cl
	}
	for _, e := range ents.Electives {
		c.ElectivesByID[e.ID] = e
	}
	for _, s := range ents.Sites {
		c.SitesByID[s.ID] = s
	}
	for _, t := range ents.Teams {
		c.TeamsByClerkship[t.ClerkshipID] = append(c.TeamsByClerkship[t.ClerkshipID], t)
	}
	for _, bd := range ents.Blackouts {
		c.Blackouts[bd.Date] = true
	}
	for _, av := range ents.Availability {
		c.availability[availabilityKey{av.PreceptorID, av.SiteID, av.Date}] = av.IsAvailable
		c.PreceptorHasAnyRecord[av.PreceptorID] = true
	}
	for _, a := range assignments {
		c.AssignmentsByDate[a.Date] = append(c.AssignmentsByDate[a.Date], a)
		c.AssignmentsByStudent[a.StudentID] = append(c.AssignmentsByStudent[a.StudentID], a)
		c.AssignmentsByPreceptor[a.PreceptorID] = append(c.AssignmentsByPreceptor[a.PreceptorID], a)
	}

	resolvedConfigs, configErrs := resolveAllConfigs(ents.Clerkships, configs, defaults)
	c.configs = resolvedConfigs
	if !configErrs.IsEmpty() {
		return nil, engineerr.New(engineerr.ConfigInvalid, "%s", strings.Join(configErrs.Strings(), "; "))
	}

	reqs, err := deriveRequirements(ents, c.ClerkshipsByID, c.ElectivesByID)
	if err != nil {
		return nil, err
	}
	sortRequirements(c, reqs)
	c.Requirements = reqs

	return c, nil
}

// resolveAllConfigs computes a ResolvedConfig for every (clerkship,
// requirement type) pair: outpatient, inpatient and elective for every
// clerkship, whether or not it owns an Elective. A validation failure for
// any of these pairs is reported.
func resolveAllConfigs(clerkships []core.Clerkship, overrides map[core.ClerkshipID]*core.ClerkshipConfig, defaults core.GlobalDefaults) (map[configKey]core.ResolvedConfig, core.ErrorSet) {
	out := make(map[configKey]core.ResolvedConfig, len(clerkships)*2)
	var errs core.ErrorSet
	for _, cl := range clerkships {
		override := overrides[cl.ID]
		for _, reqType := range []core.RequirementType{core.RequirementOutpatient, core.RequirementInpatient, core.RequirementElective} {
			rc, rcErrs := core.ResolveConfig(cl.Type, reqType, override, defaults)
			out[configKey{cl.ID, reqType}] = rc
			for _, e := range rcErrs {
				errs.Addf("clerkship %s (%s): %s", cl.ID, reqType, e)
			}
		}
	}
	return out, errs
}

// deriveRequirements implements spec.md §4.3's per-student requirement list:
// for each plain (elective-less) Enrollment row, one Requirement for the
// clerkship unless it is an elective_parent clerkship, plus one per required
// elective of that clerkship, plus one per optional elective of it the
// student has opted into via an Enrollment row naming that elective. An
// elective Enrollment row without a plain row for its clerkship yields no
// Requirement.
func deriveRequirements(ents store.Entities, clerkships map[core.ClerkshipID]core.Clerkship, electives map[core.ElectiveID]core.Elective) ([]core.Requirement, error) {
	electivesByParent := make(map[core.ClerkshipID][]core.Elective)
	for _, e := range ents.Electives {
		electivesByParent[e.ParentClerkshipID] = append(electivesByParent[e.ParentClerkshipID], e)
	}

	optedIn := make(map[string]bool) // studentID/electiveID
	for _, en := range ents.Enrollments {
		if en.ElectiveID != nil {
			optedIn[string(en.StudentID)+"/"+string(*en.ElectiveID)] = true
		}
	}

	var out []core.Requirement
	seenClerkshipEnrollment := make(map[string]bool) // studentID/clerkshipID
	for _, en := range ents.Enrollments {
		if en.ElectiveID != nil {
			continue // handled below, alongside required electives
		}
		cl, ok := clerkships[en.ClerkshipID]
		if !ok {
			return nil, fmt.Errorf("enrollment references unknown clerkship %s", en.ClerkshipID)
		}
		key := string(en.StudentID) + "/" + string(en.ClerkshipID)
		if seenClerkshipEnrollment[key] {
			continue
		}
		seenClerkshipEnrollment[key] = true

		if cl.Type != core.ClerkshipElectiveGroup {
			out = append(out, core.Requirement{
				StudentID:       en.StudentID,
				ClerkshipID:     en.ClerkshipID,
				RequirementType: cl.Type.DefaultRequirementType(),
				RequiredDays:    cl.RequiredDays,
			})
		}

		for _, e := range electivesByParent[en.ClerkshipID] {
			e := e
			include := e.IsRequired || optedIn[string(en.StudentID)+"/"+string(e.ID)]
			if !include {
				continue
			}
			out = append(out, core.Requirement{
				StudentID:       en.StudentID,
				ClerkshipID:     e.ParentClerkshipID,
				RequirementType: core.RequirementElective,
				RequiredDays:    e.MinimumDays,
				ElectiveID:      &e.ID,
			})
		}
	}

	return out, nil
}

// requirementCategory buckets a Requirement into the strategy-family
// dispatch order of spec.md §4.4: inpatient blocks first, then outpatient
// continuous, then electives, then daily-rotation.
func requirementCategory(c *Context, r core.Requirement) int {
	if r.ElectiveID != nil {
		return 2
	}
	switch c.ResolvedConfigFor(r.ClerkshipID, r.RequirementType).Strategy {
	case core.StrategyBlockBased:
		return 0
	case core.StrategyContinuousSingle, core.StrategyContinuousTeam:
		return 1
	case core.StrategyDailyRotation:
		return 3
	default:
		return 1
	}
}

// RequirementLess implements spec.md §4.4's dispatch order: requirements
// with more RequiredDays go first across students; within a student,
// requirements are grouped by strategy-family category (inpatient blocks,
// outpatient continuous, electives, daily-rotation), then ordered by
// ClerkshipID for reproducibility.
func RequirementLess(c *Context, a, b core.Requirement) bool {
	if a.RequiredDays != b.RequiredDays {
		return a.RequiredDays > b.RequiredDays
	}
	if a.StudentID != b.StudentID {
		return a.StudentID < b.StudentID
	}
	ca, cb := requirementCategory(c, a), requirementCategory(c, b)
	if ca != cb {
		return ca < cb
	}
	if a.ClerkshipID != b.ClerkshipID {
		return a.ClerkshipID < b.ClerkshipID
	}
	return a.ID() < b.ID()
}

// sortRequirements orders reqs in place per RequirementLess, using a manual
// insertion sort to match this package's existing sort style.
func sortRequirements(c *Context, reqs []core.Requirement) {
	for i := 1; i < len(reqs); i++ {
		for j := i; j > 0 && RequirementLess(c, reqs[j], reqs[j-1]); j-- {
			reqs[j-1], reqs[j] = reqs[j], reqs[j-1]
		}
	}
}
