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
	Registry.Add(func() Strategy { return &dailyRotation{} })
}

// dailyRotation implements spec.md §4.4's daily_rotation strategy: one day
// at a time, the least-loaded eligible preceptor is chosen independently of
// whoever filled the previous day, ranked by ascending DailyCount for that
// date, then ascending YearlyCount for that year, then lexicographic id.
// This spreads a student across many preceptors instead of anchoring them
// to one, which is the strategy's whole point for high-volume outpatient
// clerkships.
type dailyRotation struct{}

// PluginTypeID implements the Strategy interface.
func (s *dailyRotation) PluginTypeID() string { return string(core.StrategyDailyRotation) }

func (s *dailyRotation) Place(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, bypass map[constraints.Name]bool) Outcome {
	preceptorIDs := orderedPreceptorIDs(c)
	if len(preceptorIDs) == 0 {
		return Outcome{Unmet: true}
	}

	var out Outcome

	for _, date := range candidateDates(c, c.Period.StartDate) {
		if len(out.Placements) >= req.RequiredDays {
			break
		}
		candidates := make([]core.PreceptorID, len(preceptorIDs))
		copy(candidates, preceptorIDs)
		sortByLoadThenID(led, candidates, date)

		for _, preceptorID := range candidates {
			siteID, ok := firstSiteFor(c, preceptorID)
			if !ok {
				continue
			}
			cand := constraints.Candidate{Requirement: req, PreceptorID: preceptorID, SiteID: siteID, Date: date}
			v := factory.Evaluate(c, led, cand, bypass)
			if !v.Accept {
				out.LastRejection = v
				continue
			}
			led.Record(preceptorID, date, "")
			out.Placements = append(out.Placements, Placement{PreceptorID: preceptorID, SiteID: siteID, Date: date})
			break
		}
	}

	if len(out.Placements) < req.RequiredDays {
		out.Unmet = true
	}
	return out
}

// sortByLoadThenID orders ids ascending by led.DailyCount on date, then
// ascending by led.YearlyCount for date's year, then lexicographic id.
func sortByLoadThenID(led *ledger.Ledger, ids []core.PreceptorID, date core.Date) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := ids[j-1], ids[j]
			if loadLess(led, b, a, date) {
				ids[j-1], ids[j] = ids[j], ids[j-1]
			} else {
				break
			}
		}
	}
}

func loadLess(led *ledger.Ledger, a, b core.PreceptorID, date core.Date) bool {
	da, db := led.DailyCount(a, date), led.DailyCount(b, date)
	if da != db {
		return da < db
	}
	ya, yb := led.YearlyCount(a, date.Year()), led.YearlyCount(b, date.Year())
	if ya != yb {
		return ya < yb
	}
	return a < b
}
