// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package pg

import (
	gorp "github.com/go-gorp/gorp/v3"

	"github.com/sapcc/limes-clinsched/internal/core"
)

// loadTeams assembles core.Team values from the normalized teams/team_sites/
// team_members tables, the way the teacher's internal/db/buildindex.go joins
// normalized rows back into nested in-memory structures.
func loadTeams(db gorp.SqlExecutor) ([]core.Team, error) {
	var teamRows []struct {
		ID                      string `db:"id"`
		ClerkshipID             string `db:"clerkship_id"`
		RequireSameHealthSystem bool   `db:"require_same_health_system"`
		RequireSameSite         bool   `db:"require_same_site"`
		RequireSameSpecialty    bool   `db:"require_same_specialty"`
	}
	if _, err := db.Select(&teamRows, `SELECT id, clerkship_id, require_same_health_system, require_same_site, require_same_specialty FROM teams`); err != nil {
		return nil, wrapPgErr(err)
	}

	var siteRows []struct {
		TeamID string `db:"team_id"`
		SiteID string `db:"site_id"`
	}
	if _, err := db.Select(&siteRows, `SELECT team_id, site_id FROM team_sites`); err != nil {
		return nil, wrapPgErr(err)
	}
	sitesByTeam := map[string]map[core.SiteID]bool{}
	for _, r := range siteRows {
		if sitesByTeam[r.TeamID] == nil {
			sitesByTeam[r.TeamID] = map[core.SiteID]bool{}
		}
		sitesByTeam[r.TeamID][core.SiteID(r.SiteID)] = true
	}

	var memberRows []struct {
		TeamID      string `db:"team_id"`
		PreceptorID string `db:"preceptor_id"`
		Priority    int    `db:"priority"`
	}
	if _, err := db.Select(&memberRows, `SELECT team_id, preceptor_id, priority FROM team_members`); err != nil {
		return nil, wrapPgErr(err)
	}
	membersByTeam := map[string][]core.TeamMember{}
	for _, r := range memberRows {
		membersByTeam[r.TeamID] = append(membersByTeam[r.TeamID], core.TeamMember{
			PreceptorID: core.PreceptorID(r.PreceptorID),
			Priority:    r.Priority,
		})
	}

	teams := make([]core.Team, len(teamRows))
	for i, r := range teamRows {
		teams[i] = core.Team{
			ID:                      core.TeamID(r.ID),
			ClerkshipID:             core.ClerkshipID(r.ClerkshipID),
			SiteIDs:                 sitesByTeam[r.ID],
			RequireSameHealthSystem: r.RequireSameHealthSystem,
			RequireSameSite:         r.RequireSameSite,
			RequireSameSpecialty:    r.RequireSameSpecialty,
			Members:                 membersByTeam[r.ID],
		}
	}
	return teams, nil
}

func attachOnboardings(db gorp.SqlExecutor, students []core.Student) ([]core.Student, error) {
	var rows []struct {
		StudentID      string `db:"student_id"`
		HealthSystemID string `db:"health_system_id"`
	}
	if _, err := db.Select(&rows, `SELECT student_id, health_system_id FROM student_onboardings`); err != nil {
		return nil, wrapPgErr(err)
	}
	byStudent := map[string]map[core.HealthSystemID]bool{}
	for _, r := range rows {
		if byStudent[r.StudentID] == nil {
			byStudent[r.StudentID] = map[core.HealthSystemID]bool{}
		}
		byStudent[r.StudentID][core.HealthSystemID(r.HealthSystemID)] = true
	}
	for i := range students {
		students[i].OnboardedHealthSystems = byStudent[string(students[i].ID)]
	}
	return students, nil
}

func attachSites(db gorp.SqlExecutor, preceptors []core.Preceptor) ([]core.Preceptor, error) {
	var rows []struct {
		PreceptorID string `db:"preceptor_id"`
		SiteID      string `db:"site_id"`
	}
	if _, err := db.Select(&rows, `SELECT preceptor_id, site_id FROM preceptor_sites`); err != nil {
		return nil, wrapPgErr(err)
	}
	bySite := map[string]map[core.SiteID]bool{}
	for _, r := range rows {
		if bySite[r.PreceptorID] == nil {
			bySite[r.PreceptorID] = map[core.SiteID]bool{}
		}
		bySite[r.PreceptorID][core.SiteID(r.SiteID)] = true
	}
	for i := range preceptors {
		preceptors[i].SiteIDs = bySite[string(preceptors[i].ID)]
	}
	return preceptors, nil
}

func attachElectivePreceptors(db gorp.SqlExecutor, electives []core.Elective) ([]core.Elective, error) {
	var rows []struct {
		ElectiveID  string `db:"elective_id"`
		PreceptorID string `db:"preceptor_id"`
	}
	if _, err := db.Select(&rows, `SELECT elective_id, preceptor_id FROM elective_allowed_preceptors`); err != nil {
		return nil, wrapPgErr(err)
	}
	byElective := map[string][]core.PreceptorID{}
	for _, r := range rows {
		byElective[r.ElectiveID] = append(byElective[r.ElectiveID], core.PreceptorID(r.PreceptorID))
	}
	for i := range electives {
		electives[i].AvailablePreceptorIDs = byElective[string(electives[i].ID)]
	}
	return electives, nil
}
