// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package regeneration

import (
	"context"
	"fmt"
	"testing"

	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/store"
	"github.com/sapcc/limes-clinsched/internal/storetest"
)

func testDefaults() core.GlobalDefaults {
	rc := core.ResolvedConfig{
		Strategy:         core.StrategyContinuousSingle,
		HealthSystemRule: core.NoSystemPreference,
		MaxPerDay:        1,
		MaxPerYear:       365,
		BlockSizeDays:    1,
	}
	return core.GlobalDefaults{Outpatient: rc, Inpatient: rc, Elective: rc}
}

func sequentialIDs(prefix string) func() core.AssignmentID {
	n := 0
	return func() core.AssignmentID {
		n++
		return core.AssignmentID(fmt.Sprintf("%s-%d", prefix, n))
	}
}

func basicPeriod() core.SchedulingPeriod {
	return core.SchedulingPeriod{
		ID:        "p1",
		StartDate: core.NewDate(2026, 1, 1),
		EndDate:   core.NewDate(2026, 1, 31),
		IsActive:  true,
	}
}

func TestRegenerationFullGeneratesRequiredDays(t *testing.T) {
	period := basicPeriod()
	site := core.SiteID("site1")
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []core.Clerkship{{ID: "ck1", Type: core.ClerkshipOutpatient, RequiredDays: 4}},
		Students:      []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "prec1", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []core.Enrollment{{StudentID: "stu1", ClerkshipID: "ck1"}},
	}

	mem := storetest.New(period)
	mem.Entities = ents

	svc := NewService(mem, testDefaults(), nil)
	svc.NewAssignmentID = sequentialIDs("a")

	res, err := svc.Run(context.Background(), Request{
		PeriodID:   period.ID,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
		CutoffDate: period.StartDate,
		Mode:       ModeFull,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NewGenerated != 4 {
		t.Fatalf("NewGenerated = %d, want 4", res.NewGenerated)
	}
	if len(res.UnmetRequirements) != 0 {
		t.Fatalf("unexpected unmet requirements: %+v", res.UnmetRequirements)
	}
	if res.AuditLogID == "" {
		t.Fatal("expected an audit log id on a non-preview run")
	}
	if len(mem.AuditLogs) != 1 {
		t.Fatalf("expected one persisted audit log, got %d", len(mem.AuditLogs))
	}
}

// TestRegenerationCompletionIsIdempotent mirrors scenario S5: a completion
// pass that already satisfies every requirement generates nothing the
// second time, and the previously generated days show up as preserved.
func TestRegenerationCompletionIsIdempotent(t *testing.T) {
	period := basicPeriod()
	site := core.SiteID("site1")
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []core.Clerkship{{ID: "ck1", Type: core.ClerkshipOutpatient, RequiredDays: 4}},
		Students:      []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "prec1", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []core.Enrollment{{StudentID: "stu1", ClerkshipID: "ck1"}},
	}

	mem := storetest.New(period)
	mem.Entities = ents

	svc := NewService(mem, testDefaults(), nil)
	svc.NewAssignmentID = sequentialIDs("a")

	req := Request{
		PeriodID:   period.ID,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
		CutoffDate: period.StartDate,
	}

	req.Mode = ModeFull
	first, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.NewGenerated != 4 {
		t.Fatalf("first NewGenerated = %d, want 4", first.NewGenerated)
	}

	req.Mode = ModeCompletion
	second, err := svc.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.NewGenerated != 0 {
		t.Fatalf("second NewGenerated = %d, want 0", second.NewGenerated)
	}
	if second.PreservedFuture != 4 {
		t.Fatalf("second PreservedFuture = %d, want 4", second.PreservedFuture)
	}
	if second.DeletedFuture != 0 {
		t.Fatalf("second DeletedFuture = %d, want 0", second.DeletedFuture)
	}
}

// TestRegenerationMinimalChangeReplacesAffectedAssignment mirrors scenario
// S4: an existing future assignment whose preceptor has since become
// unavailable is classified affected/replaceable, deleted, and replaced by
// a newly generated assignment with a different preceptor.
func TestRegenerationMinimalChangeReplacesAffectedAssignment(t *testing.T) {
	period := basicPeriod()
	site := core.SiteID("site1")
	badDay := core.NewDate(2026, 1, 10)
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []core.Clerkship{{ID: "ck1", Type: core.ClerkshipOutpatient, RequiredDays: 1}},
		Students:      []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "precX", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
			{ID: "precY", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments:  []core.Enrollment{{StudentID: "stu1", ClerkshipID: "ck1"}},
		Availability: []core.Availability{{PreceptorID: "precX", SiteID: site, Date: badDay, IsAvailable: false}},
	}

	mem := storetest.New(period)
	mem.Entities = ents
	mem.Assignments["a1"] = core.Assignment{
		ID: "a1", StudentID: "stu1", PreceptorID: "precX", ClerkshipID: "ck1",
		SiteID: &site, Date: badDay, Status: core.AssignmentScheduled,
	}

	svc := NewService(mem, testDefaults(), nil)
	svc.NewAssignmentID = sequentialIDs("b")

	res, err := svc.Run(context.Background(), Request{
		PeriodID:   period.ID,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
		CutoffDate: period.StartDate,
		Mode:       ModeMinimalChange,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Impact.AffectedCount != 1 || res.Impact.ReplaceableCount != 1 {
		t.Fatalf("impact = %+v, want affected=1 replaceable=1", res.Impact)
	}
	if res.DeletedFuture != 1 {
		t.Fatalf("DeletedFuture = %d, want 1", res.DeletedFuture)
	}
	if res.NewGenerated != 1 {
		t.Fatalf("NewGenerated = %d, want 1", res.NewGenerated)
	}
	if res.Assignments[0].PreceptorID != "precY" {
		t.Fatalf("replacement preceptor = %s, want precY", res.Assignments[0].PreceptorID)
	}
}

// TestRegenerationS1CapacityCeilingDailyRotation mirrors scenario S1: with
// two preceptors capped at MaxPerDay=1, a daily_rotation requirement for
// four days must spread across both preceptors rather than stalling once
// the first hits its daily ceiling.
func TestRegenerationS1CapacityCeilingDailyRotation(t *testing.T) {
	period := basicPeriod()
	site := core.SiteID("site1")
	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []core.Clerkship{{ID: "ck1", Type: core.ClerkshipOutpatient, RequiredDays: 4}},
		Students:      []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "precA", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
			{ID: "precB", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []core.Enrollment{{StudentID: "stu1", ClerkshipID: "ck1"}},
	}

	mem := storetest.New(period)
	mem.Entities = ents

	rc := core.ResolvedConfig{
		Strategy: core.StrategyDailyRotation, HealthSystemRule: core.NoSystemPreference,
		MaxPerDay: 1, MaxPerYear: 365, BlockSizeDays: 1,
	}
	svc := NewService(mem, core.GlobalDefaults{Outpatient: rc, Inpatient: rc, Elective: rc}, nil)
	svc.NewAssignmentID = sequentialIDs("a")

	res, err := svc.Run(context.Background(), Request{
		PeriodID:   period.ID,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
		CutoffDate: period.StartDate,
		Mode:       ModeFull,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NewGenerated != 4 {
		t.Fatalf("NewGenerated = %d, want 4", res.NewGenerated)
	}
	if len(res.UnmetRequirements) != 0 {
		t.Fatalf("unexpected unmet requirements: %+v", res.UnmetRequirements)
	}
	usedA, usedB := false, false
	for _, a := range res.Assignments {
		if a.PreceptorID == "precA" {
			usedA = true
		}
		if a.PreceptorID == "precB" {
			usedB = true
		}
	}
	if !usedA || !usedB {
		t.Fatalf("expected both preceptors used across the four days, got %+v", res.Assignments)
	}
}

// TestRegenerationS2TeamInterleaving mirrors scenario S2: a continuous_team
// requirement interleaves between a primary and fallback team member as
// their availability alternates, rather than exhausting one member's whole
// remaining period before trying the other.
func TestRegenerationS2TeamInterleaving(t *testing.T) {
	period := core.SchedulingPeriod{ID: "p1", StartDate: core.NewDate(2026, 1, 5), EndDate: core.NewDate(2026, 1, 9), IsActive: true}
	site := core.SiteID("site1")
	mon, tue, wed, thu, fri :=
		core.NewDate(2026, 1, 5), core.NewDate(2026, 1, 6), core.NewDate(2026, 1, 7),
		core.NewDate(2026, 1, 8), core.NewDate(2026, 1, 9)

	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []core.Clerkship{{ID: "ck1", Type: core.ClerkshipOutpatient, RequiredDays: 5}},
		Students:      []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "amanda", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
			{ID: "sarah", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Teams: []core.Team{
			{ID: "t1", ClerkshipID: "ck1", Members: []core.TeamMember{
				{PreceptorID: "amanda", Priority: 1},
				{PreceptorID: "sarah", Priority: 2},
			}},
		},
		Enrollments: []core.Enrollment{{StudentID: "stu1", ClerkshipID: "ck1"}},
		Availability: []core.Availability{
			{PreceptorID: "amanda", SiteID: site, Date: mon, IsAvailable: true},
			{PreceptorID: "amanda", SiteID: site, Date: tue, IsAvailable: false},
			{PreceptorID: "amanda", SiteID: site, Date: wed, IsAvailable: true},
			{PreceptorID: "amanda", SiteID: site, Date: thu, IsAvailable: false},
			{PreceptorID: "amanda", SiteID: site, Date: fri, IsAvailable: true},
			{PreceptorID: "sarah", SiteID: site, Date: mon, IsAvailable: false},
			{PreceptorID: "sarah", SiteID: site, Date: tue, IsAvailable: true},
			{PreceptorID: "sarah", SiteID: site, Date: wed, IsAvailable: false},
			{PreceptorID: "sarah", SiteID: site, Date: thu, IsAvailable: true},
			{PreceptorID: "sarah", SiteID: site, Date: fri, IsAvailable: false},
		},
	}

	mem := storetest.New(period)
	mem.Entities = ents

	rc := core.ResolvedConfig{
		Strategy: core.StrategyContinuousTeam, HealthSystemRule: core.NoSystemPreference,
		MaxPerDay: 1, MaxPerYear: 365, BlockSizeDays: 1,
	}
	svc := NewService(mem, core.GlobalDefaults{Outpatient: rc, Inpatient: rc, Elective: rc}, nil)
	svc.NewAssignmentID = sequentialIDs("a")

	res, err := svc.Run(context.Background(), Request{
		PeriodID:   period.ID,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
		CutoffDate: period.StartDate,
		Mode:       ModeFull,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NewGenerated != 5 {
		t.Fatalf("NewGenerated = %d, want 5", res.NewGenerated)
	}
	want := []core.PreceptorID{"amanda", "sarah", "amanda", "sarah", "amanda"}
	for i, a := range res.Assignments {
		if a.PreceptorID != want[i] {
			t.Fatalf("assignment[%d] = %s, want %s (interleaved)", i, a.PreceptorID, want[i])
		}
	}
}

// TestRegenerationS3RespectsBlackout mirrors scenario S3: a cluster-wide
// blackout date must never receive an assignment, even though the
// requirement's preceptor is otherwise available every day of the period.
func TestRegenerationS3RespectsBlackout(t *testing.T) {
	period := core.SchedulingPeriod{ID: "p1", StartDate: core.NewDate(2026, 1, 5), EndDate: core.NewDate(2026, 1, 9), IsActive: true}
	site := core.SiteID("site1")
	blackedOut := core.NewDate(2026, 1, 5)

	ents := store.Entities{
		HealthSystems: []core.HealthSystem{{ID: "hs1"}},
		Sites:         []core.Site{{ID: site, HealthSystemID: "hs1"}},
		Clerkships:    []core.Clerkship{{ID: "ck1", Type: core.ClerkshipOutpatient, RequiredDays: 1}},
		Students:      []core.Student{{ID: "stu1"}},
		Preceptors: []core.Preceptor{
			{ID: "prec1", HealthSystemID: "hs1", SiteIDs: map[core.SiteID]bool{site: true}, MaxStudentsPerDay: 1},
		},
		Enrollments: []core.Enrollment{{StudentID: "stu1", ClerkshipID: "ck1"}},
		Blackouts:   []core.BlackoutDate{{Date: blackedOut, Reason: "holiday"}},
	}

	mem := storetest.New(period)
	mem.Entities = ents

	svc := NewService(mem, testDefaults(), nil)
	svc.NewAssignmentID = sequentialIDs("a")

	res, err := svc.Run(context.Background(), Request{
		PeriodID:   period.ID,
		StartDate:  period.StartDate,
		EndDate:    period.EndDate,
		CutoffDate: period.StartDate,
		Mode:       ModeFull,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NewGenerated != 1 {
		t.Fatalf("NewGenerated = %d, want 1", res.NewGenerated)
	}
	if res.Assignments[0].Date.Equal(blackedOut) {
		t.Fatalf("assignment landed on the blacked-out date %s", blackedOut)
	}
}
