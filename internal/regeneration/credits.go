// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package regeneration

import "github.com/sapcc/limes-clinsched/internal/core"

// buildCredits counts credit-bearing assignments per Requirement.ID(), so a
// later generation pass can reduce each Requirement's effective
// RequiredDays by the number of days the given assignments (past ones plus
// preserved future ones) already satisfy. Grounded on spec.md §4.6 step 2.
func buildCredits(assignments []core.Assignment) map[string]int {
	out := make(map[string]int)
	for _, a := range assignments {
		if !a.CountsTowardCredit() {
			continue
		}
		out[creditKey(a)]++
	}
	return out
}

// creditKey reproduces core.Requirement.ID()'s format directly from an
// Assignment's own fields, so credits can be computed without reconstructing
// a full Requirement for every past/preserved row.
func creditKey(a core.Assignment) string {
	if a.ElectiveID != nil {
		return string(a.StudentID) + "/" + string(a.ClerkshipID) + "/" + string(*a.ElectiveID)
	}
	return string(a.StudentID) + "/" + string(a.ClerkshipID)
}

// applyCredits returns a copy of reqs with each RequiredDays reduced by its
// credit, dropping any requirement whose credit already meets or exceeds it.
func applyCredits(reqs []core.Requirement, credits map[string]int) []core.Requirement {
	out := make([]core.Requirement, 0, len(reqs))
	for _, r := range reqs {
		remaining := r.RequiredDays - credits[r.ID()]
		if remaining <= 0 {
			continue
		}
		r.RequiredDays = remaining
		out = append(out, r)
	}
	return out
}
