// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package core

import "time"

// HealthSystem is an organization that owns one or more Sites.
type HealthSystem struct {
	ID   HealthSystemID `db:"id"`
	Name string         `db:"name"`
}

// Site is a physical location owned by a HealthSystem.
type Site struct {
	ID             SiteID         `db:"id"`
	Name           string         `db:"name"`
	HealthSystemID HealthSystemID `db:"health_system_id"`
}

// Clerkship is a rotation with a required number of days.
type Clerkship struct {
	ID           ClerkshipID   `db:"id"`
	Name         string        `db:"name"`
	Type         ClerkshipType `db:"type"`
	RequiredDays int           `db:"required_days"`
	Specialty    string        `db:"specialty"` // empty = unset
}

// Elective is a sub-rotation within an elective-parent Clerkship.
type Elective struct {
	ID                    ElectiveID     `db:"id"`
	ParentClerkshipID     ClerkshipID    `db:"parent_clerkship_id"`
	MinimumDays           int            `db:"minimum_days"`
	Specialty             string         `db:"specialty"`
	IsRequired            bool           `db:"is_required"`
	AvailablePreceptorIDs []PreceptorID  `db:"-"` // empty = any preceptor on the clerkship's teams allowed
}

// Student is enrolled in clerkships (tracked externally as Enrollments) and is
// onboarded to a set of health systems.
type Student struct {
	ID                  StudentID                 `db:"id"`
	Name                string                    `db:"name"`
	OnboardedHealthSystems map[HealthSystemID]bool `db:"-"`
}

// Preceptor hosts students on specific dates at specific sites.
type Preceptor struct {
	ID                 PreceptorID        `db:"id"`
	Name               string             `db:"name"`
	Specialty          string             `db:"specialty"`
	HealthSystemID     HealthSystemID     `db:"health_system_id"`
	SiteIDs            map[SiteID]bool    `db:"-"`
	MaxStudentsPerDay  int                `db:"max_students"`
	IsGlobalFallbackOnly bool             `db:"is_global_fallback_only"`
}

// TeamMember is one (preceptor, priority) slot in a Team's ordered roster.
// Lower Priority values are consulted first by continuous_team.
type TeamMember struct {
	PreceptorID PreceptorID
	Priority    int
}

// Team is an ordered group of preceptors under a clerkship, used by
// continuous_team for primary + fallback scheduling.
type Team struct {
	ID                     TeamID       `db:"id"`
	ClerkshipID            ClerkshipID  `db:"clerkship_id"`
	SiteIDs                map[SiteID]bool `db:"-"`
	RequireSameHealthSystem bool        `db:"require_same_health_system"`
	RequireSameSite        bool         `db:"require_same_site"`
	RequireSameSpecialty   bool         `db:"require_same_specialty"`
	Members                []TeamMember `db:"-"`
}

// SortedMembers returns Members sorted by ascending Priority, ties broken by
// PreceptorID so that iteration order is reproducible.
func (t Team) SortedMembers() []TeamMember {
	out := make([]TeamMember, len(t.Members))
	copy(out, t.Members)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.Priority > b.Priority || (a.Priority == b.Priority && a.PreceptorID > b.PreceptorID) {
				out[j-1], out[j] = out[j], out[j-1]
			} else {
				break
			}
		}
	}
	return out
}

// Availability is a single (preceptor, site, date) calendar entry.
type Availability struct {
	PreceptorID PreceptorID `db:"preceptor_id"`
	SiteID      SiteID      `db:"site_id"`
	Date        Date        `db:"date"`
	IsAvailable bool        `db:"is_available"`
}

// BlackoutDate is a date on which no assignments may occur, cluster-wide.
type BlackoutDate struct {
	Date   Date   `db:"date"`
	Reason string `db:"reason"`
}

// CapacityRule narrows a Preceptor's per-day/per-year/per-block capacity for
// a given (clerkship, requirement type) pair. The most specific non-nil rule
// wins: (clerkship+type) > clerkship > type > general > Preceptor.MaxStudentsPerDay.
type CapacityRule struct {
	PreceptorID     PreceptorID
	ClerkshipID     *ClerkshipID
	RequirementType *RequirementType
	MaxPerDay       *int
	MaxPerYear      *int
	MaxPerBlock     *int
}

// specificity ranks a rule for the "most specific wins" resolution: higher
// is more specific.
func (r CapacityRule) specificity() int {
	switch {
	case r.ClerkshipID != nil && r.RequirementType != nil:
		return 3
	case r.ClerkshipID != nil:
		return 2
	case r.RequirementType != nil:
		return 1
	default:
		return 0
	}
}

// Enrollment is an external record of a student opting into a clerkship or,
// for optional electives, explicitly opting in.
type Enrollment struct {
	StudentID   StudentID
	ClerkshipID ClerkshipID
	ElectiveID  *ElectiveID // set only for an opted-in optional elective
}

// Requirement is a derived (not persisted) (student, clerkship[/elective])
// row that the Engine tries to fulfill.
type Requirement struct {
	StudentID       StudentID
	ClerkshipID     ClerkshipID
	RequirementType RequirementType
	RequiredDays    int
	ElectiveID      *ElectiveID
}

// ID returns a stable synthetic identifier for this requirement, used to key
// UnmetRequirement entries and credit lookups.
func (r Requirement) ID() string {
	if r.ElectiveID != nil {
		return string(r.StudentID) + "/" + string(r.ClerkshipID) + "/" + string(*r.ElectiveID)
	}
	return string(r.StudentID) + "/" + string(r.ClerkshipID)
}

// Assignment is a single (student, preceptor, clerkship, date) tuple.
type Assignment struct {
	ID          AssignmentID     `db:"id"`
	StudentID   StudentID        `db:"student_id"`
	PreceptorID PreceptorID      `db:"preceptor_id"`
	ClerkshipID ClerkshipID      `db:"clerkship_id"`
	SiteID      *SiteID          `db:"site_id"`
	ElectiveID  *ElectiveID      `db:"elective_id"`
	Date        Date             `db:"date"`
	Status      AssignmentStatus `db:"status"`
	CreatedAt   time.Time        `db:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at"`
	// BlockKey groups assignments belonging to the same block_based block for
	// a (student, clerkship); empty for strategies that don't form blocks.
	BlockKey string `db:"block_key"`
}

// CountsTowardCredit reports whether this assignment should reduce a future
// regeneration's effective required_days, per the decision recorded in
// SPEC_FULL.md open question 4: only scheduled and completed assignments count.
func (a Assignment) CountsTowardCredit() bool {
	return a.Status == AssignmentScheduled || a.Status == AssignmentCompleted
}

// SchedulingPeriod bounds the date range that assignments may fall within.
type SchedulingPeriod struct {
	ID        PeriodID `db:"id"`
	StartDate Date     `db:"start_date"`
	EndDate   Date     `db:"end_date"`
	IsActive  bool     `db:"is_active"`
}

// Contains reports whether d falls within [StartDate, EndDate].
func (p SchedulingPeriod) Contains(d Date) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}
