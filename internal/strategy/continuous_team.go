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
	Registry.Add(func() Strategy { return &continuousTeam{} })
}

// continuousTeam implements spec.md §4.4's continuous_team strategy: a
// Requirement is covered by one Team's members. For each date in the
// period, in order, the team's members are tried in ascending
// TeamMember.Priority order and the first one that accepts the day fills
// it. This is a per-date greedy scan, not a per-member block: if the
// primary member is unavailable on a given day but available again the
// next, the schedule interleaves rather than handing the whole remainder
// to the fallback.
type continuousTeam struct{}

// PluginTypeID implements the Strategy interface.
func (s *continuousTeam) PluginTypeID() string { return string(core.StrategyContinuousTeam) }

func (s *continuousTeam) Place(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, bypass map[constraints.Name]bool) Outcome {
	teams := c.TeamsByClerkship[req.ClerkshipID]
	if len(teams) == 0 {
		return Outcome{Unmet: true}
	}
	team := teams[0]
	for _, t := range teams[1:] {
		if t.ID < team.ID {
			team = t
		}
	}

	members := team.SortedMembers()
	var out Outcome

	for _, date := range candidateDates(c, c.Period.StartDate) {
		if len(out.Placements) >= req.RequiredDays {
			break
		}
		if date.IsWeekend() {
			continue
		}
		for _, member := range members {
			siteID, ok := teamSiteFor(c, team, member.PreceptorID)
			if !ok {
				continue
			}
			cand := constraints.Candidate{Requirement: req, PreceptorID: member.PreceptorID, SiteID: siteID, Date: date}
			v := factory.Evaluate(c, led, cand, bypass)
			if !v.Accept {
				out.LastRejection = v
				continue
			}
			led.Record(member.PreceptorID, date, "")
			out.Placements = append(out.Placements, Placement{PreceptorID: member.PreceptorID, SiteID: siteID, Date: date})
			break
		}
	}

	if len(out.Placements) < req.RequiredDays {
		out.Unmet = true
	}
	return out
}

// teamSiteFor picks the lowest SiteID the team permits that the preceptor
// also serves at; if the team has no site restriction, falls back to the
// preceptor's own lowest site.
func teamSiteFor(c *schedctx.Context, team core.Team, preceptorID core.PreceptorID) (core.SiteID, bool) {
	p, ok := c.PreceptorsByID[preceptorID]
	if !ok {
		return "", false
	}
	if len(team.SiteIDs) == 0 {
		return firstSiteFor(c, preceptorID)
	}
	var best core.SiteID
	found := false
	for s := range team.SiteIDs {
		if !p.SiteIDs[s] {
			continue
		}
		if !found || s < best {
			best = s
			found = true
		}
	}
	return best, found
}
