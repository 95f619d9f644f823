// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package strategy implements the four placement strategies of spec.md
// §4.4 as pluggable.Registry[Strategy] plugins, grounded on the teacher's
// internal/core.QuotaPluginRegistry: each strategy self-registers via
// init(), is looked up by its StrategyID the way the teacher looks up a
// QuotaPlugin by service type, and the Engine holds no knowledge of any
// strategy's concrete type.
package strategy

import (
	"github.com/sapcc/go-bits/pluggable"

	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
)

// Placement is one (preceptor, site, date) slot a Strategy proposes for a
// Requirement. BlockKey is set for strategies that group consecutive days.
type Placement struct {
	PreceptorID core.PreceptorID
	SiteID      core.SiteID
	Date        core.Date
	BlockKey    string
}

// Outcome is the result of asking a Strategy to fulfil one Requirement as
// far as it can within the active period.
type Outcome struct {
	Placements []Placement
	// Unmet is true if the strategy could not fully satisfy the
	// Requirement's RequiredDays within the constraints it was given.
	Unmet bool
	// LastRejection carries the most informative constraint rejection seen
	// while searching, for the Engine to surface in an UnmetRequirement.
	LastRejection constraints.Verdict
}

// Strategy is the pluggable.Plugin interface every placement algorithm of
// spec.md §4.4 implements.
type Strategy interface {
	pluggable.Plugin
	// Place attempts to fulfil req as far as possible, consulting factory
	// for every candidate and recording accepted placements into led as it
	// goes so that later requirements in the same pass see updated counts.
	Place(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, bypass map[constraints.Name]bool) Outcome
}

// Registry is the pluggable.Registry for Strategy implementations.
var Registry pluggable.Registry[Strategy]

// candidateDates returns every date in the active period, in ascending
// order, starting from startFrom.
func candidateDates(c *schedctx.Context, startFrom core.Date) []core.Date {
	from := startFrom
	if from.Before(c.Period.StartDate) {
		from = c.Period.StartDate
	}
	return core.DatesBetween(from, c.Period.EndDate)
}

// orderedPreceptorIDs returns every known preceptor id sorted ascending,
// for strategies that scan the whole preceptor population deterministically.
func orderedPreceptorIDs(c *schedctx.Context) []core.PreceptorID {
	out := make([]core.PreceptorID, 0, len(c.PreceptorsByID))
	for id := range c.PreceptorsByID {
		out = append(out, id)
	}
	sortPreceptorIDs(out)
	return out
}

func sortPreceptorIDs(ids []core.PreceptorID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// firstSiteFor picks a deterministic default site to try a preceptor at:
// the lowest SiteID among the preceptor's SiteIDs. Strategies that need a
// specific site (e.g. matching a team's allowed sites) pick their own.
func firstSiteFor(c *schedctx.Context, preceptorID core.PreceptorID) (core.SiteID, bool) {
	p, ok := c.PreceptorsByID[preceptorID]
	if !ok || len(p.SiteIDs) == 0 {
		return "", false
	}
	var best core.SiteID
	first := true
	for s := range p.SiteIDs {
		if first || s < best {
			best = s
			first = false
		}
	}
	return best, true
}
