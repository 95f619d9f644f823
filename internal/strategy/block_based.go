// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package strategy

import (
	"fmt"

	"github.com/sapcc/limes-clinsched/internal/constraints"
	"github.com/sapcc/limes-clinsched/internal/core"
	"github.com/sapcc/limes-clinsched/internal/ledger"
	"github.com/sapcc/limes-clinsched/internal/schedctx"
)

func init() {
	Registry.Add(func() Strategy { return &blockBased{} })
}

// blockBased implements spec.md §4.4's block_based strategy: RequiredDays
// is split into fixed-size blocks (ResolvedConfig.BlockSizeDays), each block
// pinned to one preceptor and one site (SameSiteForBlock), blocks placed
// back-to-back starting from the period start. When AllowPartialBlocks is
// set, a block shorter than its wanted size is kept; otherwise a block that
// cannot be completed in full is dropped, placement stops there, and every
// remaining day of the requirement is left unmet.
type blockBased struct{}

// PluginTypeID implements the Strategy interface.
func (s *blockBased) PluginTypeID() string { return string(core.StrategyBlockBased) }

func (s *blockBased) Place(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, bypass map[constraints.Name]bool) Outcome {
	cfg := c.ResolvedConfigFor(req.ClerkshipID, req.RequirementType)
	blockSize := cfg.BlockSizeDays
	if blockSize <= 0 {
		blockSize = req.RequiredDays
	}

	var out Outcome
	placed := 0
	blockIndex := 0
	cursor := c.Period.StartDate

	for placed < req.RequiredDays {
		remaining := req.RequiredDays - placed
		wantSize := blockSize
		if wantSize > remaining {
			wantSize = remaining
		}

		blockKey := fmt.Sprintf("%s/block-%d", req.ID(), blockIndex)
		placements, lastReject := findBlock(c, factory, led, req, bypass, cursor, wantSize, blockKey)
		if len(placements) == 0 {
			out.Unmet = true
			out.LastRejection = lastReject
			break
		}
		if len(placements) < wantSize && !cfg.AllowPartialBlocks {
			commitAndRollback(led, placements, true)
			out.Unmet = true
			out.LastRejection = lastReject
			break
		}

		out.Placements = append(out.Placements, placements...)
		placed += len(placements)
		blockIndex++
		cursor = placements[len(placements)-1].Date.AddDays(1)
	}

	if placed < req.RequiredDays {
		out.Unmet = true
	}
	return out
}

// findBlock tries each preceptor in deterministic order for a block of
// wantSize consecutive days starting at startFrom, committing the winning
// attempt's ledger effects and rolling back every other attempt.
func findBlock(c *schedctx.Context, factory *constraints.Factory, led *ledger.Ledger, req core.Requirement, bypass map[constraints.Name]bool, startFrom core.Date, wantSize int, blockKey string) ([]Placement, constraints.Verdict) {
	var best []Placement
	var bestPenalty float64
	var lastReject constraints.Verdict
	cfg := c.ResolvedConfigFor(req.ClerkshipID, req.RequirementType)

	for _, preceptorID := range orderedPreceptorIDs(c) {
		siteID, ok := firstSiteFor(c, preceptorID)
		if !ok {
			continue
		}
		preceptor := c.PreceptorsByID[preceptorID]
		resolved := core.ResolveCapacity(c.CapacityRules, preceptor, req.ClerkshipID, req.RequirementType, cfg)
		if resolved.MaxPerBlock > 0 && led.BlocksForPreceptor(preceptorID) >= resolved.MaxPerBlock {
			lastReject = constraints.Verdict{Reason: "preceptor has reached max_blocks_per_year"}
			continue
		}
		placements, penalty, reject := tryStrictConsecutiveRun(c, factory, led, req, bypass, preceptorID, siteID, startFrom, wantSize, blockKey)
		commitAndRollback(led, placements, true)
		better := len(placements) > len(best) ||
			(len(placements) == len(best) && len(placements) > 0 && penalty < bestPenalty)
		if better {
			best = placements
			bestPenalty = penalty
			lastReject = reject
		}
		if len(best) >= wantSize && bestPenalty == 0 {
			break
		}
	}

	for _, p := range best {
		led.Record(p.PreceptorID, p.Date, p.BlockKey)
	}
	return best, lastReject
}
