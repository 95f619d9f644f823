// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package clinsched

import (
	"context"
	"testing"

	"github.com/sapcc/limes-clinsched/internal/storetest"
)

func testDefaults() GlobalDefaults {
	rc := ResolvedConfig{
		Strategy:         StrategyContinuousSingle,
		HealthSystemRule: NoSystemPreference,
		MaxPerDay:        1,
		MaxPerYear:       365,
		BlockSizeDays:    1,
	}
	return GlobalDefaults{Outpatient: rc, Inpatient: rc, Elective: rc}
}

func basicPeriod() SchedulingPeriod {
	return SchedulingPeriod{
		ID:        "p1",
		StartDate: NewDate(2026, 1, 1),
		EndDate:   NewDate(2026, 1, 31),
		IsActive:  true,
	}
}

// TestServiceGenerateThenReassign exercises both halves of the facade
// against the same Service and Store: a full regeneration followed by a
// reassign of the assignment it produced, proving the public package
// wires Generate and Reassign to the same underlying Store without the
// caller touching any internal package.
func TestServiceGenerateThenReassign(t *testing.T) {
	period := basicPeriod()
	site := SiteID("site1")
	ents := Entities{
		HealthSystems: []HealthSystem{{ID: "hs1"}},
		Sites:         []Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []Clerkship{{ID: "ck1", Type: "outpatient", RequiredDays: 1}},
		Students:      []Student{{ID: "stu1"}},
		Preceptors: []Preceptor{
			{ID: "precA", HealthSystemID: "hs1", SiteIDs: map[SiteID]bool{site: true}, MaxStudentsPerDay: 1},
			{ID: "precB", HealthSystemID: "hs1", SiteIDs: map[SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []Enrollment{{StudentID: "stu1", ClerkshipID: "ck1"}},
	}

	mem := storetest.New(period)
	mem.Entities = ents

	svc := NewService(mem, testDefaults(), nil)

	genRes, err := svc.Generate(context.Background(), GenerateRequest{
		PeriodID:   period.ID,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
		CutoffDate: period.StartDate,
		Mode:       ModeFull,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if genRes.NewGenerated != 1 {
		t.Fatalf("NewGenerated = %d, want 1", genRes.NewGenerated)
	}
	placed := genRes.Assignments[0]
	if placed.PreceptorID != "precA" {
		t.Fatalf("PreceptorID = %s, want precA", placed.PreceptorID)
	}

	reassignRes, err := svc.Reassign(context.Background(), ReassignRequest{
		PeriodID:       period.ID,
		AssignmentID:   placed.ID,
		NewPreceptorID: "precB",
	})
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if !reassignRes.Valid {
		t.Fatalf("expected valid, got errors: %v", reassignRes.Errors)
	}
	if got := mem.Assignments[placed.ID].PreceptorID; got != "precB" {
		t.Fatalf("persisted PreceptorID = %s, want precB", got)
	}
}

// TestServiceSwapAndUpdateAssignment exercises Swap and UpdateAssignment
// through the facade against two directly-seeded Assignments.
func TestServiceSwapAndUpdateAssignment(t *testing.T) {
	period := basicPeriod()
	site := SiteID("site1")
	day1 := NewDate(2026, 1, 10)
	day2 := NewDate(2026, 1, 11)
	ents := Entities{
		HealthSystems: []HealthSystem{{ID: "hs1"}},
		Sites:         []Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []Clerkship{{ID: "ck1", Type: "outpatient", RequiredDays: 1}},
		Students:      []Student{{ID: "stu1"}, {ID: "stu2"}},
		Preceptors: []Preceptor{
			{ID: "precA", HealthSystemID: "hs1", SiteIDs: map[SiteID]bool{site: true}, MaxStudentsPerDay: 1},
			{ID: "precB", HealthSystemID: "hs1", SiteIDs: map[SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []Enrollment{
			{StudentID: "stu1", ClerkshipID: "ck1"},
			{StudentID: "stu2", ClerkshipID: "ck1"},
		},
	}

	mem := storetest.New(period)
	mem.Entities = ents
	mem.Assignments["a1"] = Assignment{
		ID: "a1", StudentID: "stu1", PreceptorID: "precA", ClerkshipID: "ck1",
		SiteID: &site, Date: day1, Status: AssignmentScheduled,
	}
	mem.Assignments["a2"] = Assignment{
		ID: "a2", StudentID: "stu2", PreceptorID: "precB", ClerkshipID: "ck1",
		SiteID: &site, Date: day2, Status: AssignmentScheduled,
	}

	svc := NewService(mem, testDefaults(), nil)

	swapRes, err := svc.Swap(context.Background(), SwapRequest{
		PeriodID: period.ID, AssignmentID1: "a1", AssignmentID2: "a2",
	})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if !swapRes.Valid {
		t.Fatalf("expected valid, got errors: %v", swapRes.Errors)
	}
	if got := mem.Assignments["a1"].PreceptorID; got != "precB" {
		t.Fatalf("a1 PreceptorID = %s, want precB", got)
	}

	cancelled := AssignmentCancelled
	updateRes, err := svc.UpdateAssignment(context.Background(), UpdateRequest{
		PeriodID: period.ID, AssignmentID: "a2", Patch: UpdatePatch{Status: &cancelled},
	})
	if err != nil {
		t.Fatalf("UpdateAssignment: %v", err)
	}
	if !updateRes.Valid {
		t.Fatalf("expected valid, got errors: %v", updateRes.Errors)
	}
	if got := mem.Assignments["a2"].Status; got != AssignmentCancelled {
		t.Fatalf("persisted Status = %s, want cancelled", got)
	}
}
