// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package schedctx

import (
	"testing"

	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/store"
)

func basicDefaults() core.GlobalDefaults {
	rc := core.ResolvedConfig{
		Strategy: core.StrategyContinuousSingle, HealthSystemRule: core.NoSystemPreference,
		MaxPerDay: 1, MaxPerYear: 365, BlockSizeDays: 1,
	}
	return core.GlobalDefaults{Outpatient: rc, Inpatient: rc, Elective: rc}
}

func basicPeriod() core.SchedulingPeriod {
	return core.SchedulingPeriod{ID: "p1", StartDate: core.NewDate(2026, 1, 1), EndDate: core.NewDate(2026, 1, 31), IsActive: true}
}

// TestBuildOrdersRequirementsByRequiredDaysDescending confirms
// c.Requirements is sorted by required_days descending across students,
// then by student id, matching spec.md §4.4's dispatch order contract.
func TestBuildOrdersRequirementsByRequiredDaysDescending(t *testing.T) {
	site := core.SiteID("site1")
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships: []core.Clerkship{
			{ID: "ckSmall", Type: core.ClerkshipOutpatient, RequiredDays: 2},
			{ID: "ckBig", Type: core.ClerkshipOutpatient, RequiredDays: 10},
		},
		Students: []core.Student{{ID: "stuZ"}, {ID: "stuA"}},
		Preceptors: []core.Preceptor{
			{ID: "prec1", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []core.Enrollment{
			{StudentID: "stuZ", ClerkshipID: "ckSmall"},
			{StudentID: "stuA", ClerkshipID: "ckBig"},
			{StudentID: "stuA", ClerkshipID: "ckSmall"},
		},
	}

	c, err := Build(basicPeriod(), ents, nil, nil, basicDefaults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(c.Requirements) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(c.Requirements))
	}
	if c.Requirements[0].ClerkshipID != "ckBig" {
		t.Fatalf("requirement[0] = %+v, want ckBig (required_days=10) first", c.Requirements[0])
	}
	// the two remaining ckSmall requirements (required_days=2) tie-break by
	// student id ascending.
	if c.Requirements[1].StudentID != "stuA" || c.Requirements[2].StudentID != "stuZ" {
		t.Fatalf("requirements[1:] = %+v, want stuA then stuZ", c.Requirements[1:])
	}
}

// TestRequirementLessCategorizesWithinStudent confirms that, for the same
// student and RequiredDays, an inpatient block_based requirement dispatches
// before an outpatient continuous one, which dispatches before a
// daily_rotation one, per spec.md §4.4's strategy-family ordering.
func TestRequirementLessCategorizesWithinStudent(t *testing.T) {
	site := core.SiteID("site1")
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships: []core.Clerkship{
			{ID: "ckInpatient", Type: core.ClerkshipInpatient, RequiredDays: 5},
			{ID: "ckOutpatient", Type: core.ClerkshipOutpatient, RequiredDays: 5},
			{ID: "ckRotation", Type: core.ClerkshipOutpatient, RequiredDays: 5},
		},
		Students: []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "prec1", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []core.Enrollment{
			{StudentID: "stu1", ClerkshipID: "ckRotation"},
			{StudentID: "stu1", ClerkshipID: "ckOutpatient"},
			{StudentID: "stu1", ClerkshipID: "ckInpatient"},
		},
	}

	defaults := basicDefaults()
	defaults.Inpatient.Strategy = core.StrategyBlockBased
	defaults.Inpatient.BlockSizeDays = 5
	configs := map[core.ClerkshipID]*core.ClerkshipConfig{}
	rotationStrat := core.StrategyDailyRotation
	configs["ckRotation"] = &core.ClerkshipConfig{ClerkshipID: "ckRotation", Strategy: &rotationStrat}

	c, err := Build(basicPeriod(), ents, nil, configs, defaults)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(c.Requirements) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(c.Requirements))
	}
	got := []core.ClerkshipID{c.Requirements[0].ClerkshipID, c.Requirements[1].ClerkshipID, c.Requirements[2].ClerkshipID}
	want := []core.ClerkshipID{"ckInpatient", "ckOutpatient", "ckRotation"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", got, want)
		}
	}
}

// TestBuildResolvesConfigsBeforeSortingRequirements guards against
// requirementCategory's dependency on c.configs: Build must compute
// resolved configs before deriving/sorting requirements, or
// ResolvedConfigFor would look up an empty map mid-sort.
func TestBuildResolvesConfigsBeforeSortingRequirements(t *testing.T) {
	site := core.SiteID("site1")
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []core.Clerkship{{ID: "ckInpatient", Type: core.ClerkshipInpatient, RequiredDays: 1}},
		Students:      []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "prec1", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []core.Enrollment{{StudentID: "stu1", ClerkshipID: "ckInpatient"}},
	}
	defaults := basicDefaults()
	defaults.Inpatient.Strategy = core.StrategyBlockBased
	defaults.Inpatient.BlockSizeDays = 1

	c, err := Build(basicPeriod(), ents, nil, nil, defaults)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if requirementCategory(c, c.Requirements[0]) != 0 {
		t.Fatalf("expected inpatient block_based requirement to categorize as 0, got %d", requirementCategory(c, c.Requirements[0]))
	}
}
