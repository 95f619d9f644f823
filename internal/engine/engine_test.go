// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/engineerr"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
	"github.com/sapcc/limes-clinsched/internal/store"
)

func engineTestDefaults(strat core.StrategyID) core.GlobalDefaults {
	rc := core.ResolvedConfig{
		Strategy: strat, HealthSystemRule: core.NoSystemPreference,
		MaxPerDay: 1, MaxPerYear: 365, BlockSizeDays: 1,
	}
	return core.GlobalDefaults{Outpatient: rc, Inpatient: rc, Elective: rc}
}

func sequentialIDs(prefix string) func() core.AssignmentID {
	n := 0
	return func() core.AssignmentID {
		n++
		return core.AssignmentID(prefix + string(rune('0'+n)))
	}
}

// TestValidateCandidateRejectsConstraintViolation confirms ValidateCandidate
// wraps a Factory rejection as a ConstraintViolated engineerr.Error.
func TestValidateCandidateRejectsConstraintViolation(t *testing.T) {
	period := core.SchedulingPeriod{ID: "p1", StartDate: core.NewDate(2026, 1, 5), EndDate: core.NewDate(2026, 1, 9), IsActive: true}
	site := core.SiteID("site1")
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []core.Clerkship{{ID: "ck1", Type: core.ClerkshipOutpatient, RequiredDays: 1}},
		Students:      []core.Student{{ID: "stu1"}},
		Preceptors:    []core.Preceptor{{ID: "prec1", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1}},
		Enrollments:   []core.Enrollment{{StudentID: "stu1", ClerkshipID: "ck1"}},
	}
	c, err := schedctx.Build(period, ents, nil, nil, engineTestDefaults(core.StrategyContinuousSingle))
	if err != nil {
		t.Fatalf("schedctx.Build: %v", err)
	}

	e := New()
	cand := constraints.Candidate{
		Requirement: core.Requirement{StudentID: "stu1", ClerkshipID: "ck1", RequirementType: core.RequirementOutpatient, RequiredDays: 1},
		PreceptorID: "prec1", SiteID: site,
		Date: core.NewDate(2026, 2, 1), // outside the active period
	}
	err = e.ValidateCandidate(c, ledger.New(), cand, nil)
	if err == nil {
		t.Fatal("expected an error for a date outside the active period")
	}
	if !engineerr.IsKind(err, engineerr.ConstraintViolated) {
		t.Fatalf("expected ConstraintViolated, got %v", err)
	}
}

// TestRunDispatchesByRequirementLess confirms Run's defensive re-sort uses
// schedctx.RequirementLess (required_days DESC) rather than plain
// Requirement.ID() order, by checking the larger requirement is placed
// first and both requirements are fully placed.
func TestRunDispatchesByRequirementLess(t *testing.T) {
	period := core.SchedulingPeriod{ID: "p1", StartDate: core.NewDate(2026, 1, 5), EndDate: core.NewDate(2026, 1, 16), IsActive: true}
	site := core.SiteID("site1")
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships: []core.Clerkship{
			{ID: "ckA", Type: core.ClerkshipOutpatient, RequiredDays: 1},
			{ID: "ckB", Type: core.ClerkshipOutpatient, RequiredDays: 3},
		},
		Students: []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "prec1", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []core.Enrollment{
			{StudentID: "stu1", ClerkshipID: "ckA"},
			{StudentID: "stu1", ClerkshipID: "ckB"},
		},
	}
	c, err := schedctx.Build(period, ents, nil, nil, engineTestDefaults(core.StrategyContinuousSingle))
	if err != nil {
		t.Fatalf("schedctx.Build: %v", err)
	}

	if len(c.Requirements) != 2 || c.Requirements[0].ClerkshipID != "ckB" {
		t.Fatalf("expected ckB (required_days=3) ordered first, got %+v", c.Requirements)
	}

	e := New()
	led := ledger.New()
	res, err := e.Run(context.Background(), c, led, nil, time.Time{}, sequentialIDs("a"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Assignments) != 4 {
		t.Fatalf("expected 4 assignments (1+3 days), got %d", len(res.Assignments))
	}
	if len(res.UnmetRequirements) != 0 {
		t.Fatalf("unexpected unmet requirements: %+v", res.UnmetRequirements)
	}
}
