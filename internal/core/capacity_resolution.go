// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package core

// ResolvedCapacity is the effective per-day/per-year/per-block ceiling for
// one preceptor within one (clerkship, requirement type) context, after
// applying the CapacityRule hierarchy of spec.md §3/§4.2.
type ResolvedCapacity struct {
	MaxPerDay   int
	MaxPerYear  int
	MaxPerBlock int // 0 means "no explicit per-block rule"
}

// ResolveCapacity picks the most specific CapacityRule for the given
// preceptor/clerkship/requirement type, falling back to the Preceptor's own
// MaxStudentsPerDay and to the ResolvedConfig's max_per_day/max_per_year
// when no rule narrows them further. Resolution order, most to least
// specific: (clerkship+type) > clerkship > type > general > Preceptor default.
func ResolveCapacity(rules []CapacityRule, preceptor Preceptor, clerkshipID ClerkshipID, reqType RequirementType, cfg ResolvedConfig) ResolvedCapacity {
	result := ResolvedCapacity{
		MaxPerDay:  preceptor.MaxStudentsPerDay,
		MaxPerYear: cfg.MaxPerYear,
	}
	if cfg.MaxPerDay > 0 && cfg.MaxPerDay < result.MaxPerDay {
		result.MaxPerDay = cfg.MaxPerDay
	}
	if cfg.MaxBlocksPerYear > 0 {
		result.MaxPerBlock = cfg.MaxBlocksPerYear
	}

	best := -1
	for _, rule := range rules {
		if rule.PreceptorID != preceptor.ID {
			continue
		}
		if rule.ClerkshipID != nil && *rule.ClerkshipID != clerkshipID {
			continue
		}
		if rule.RequirementType != nil && *rule.RequirementType != reqType {
			continue
		}
		if rule.specificity() > best {
			best = rule.specificity()
			if rule.MaxPerDay != nil {
				result.MaxPerDay = *rule.MaxPerDay
			}
			if rule.MaxPerYear != nil {
				result.MaxPerYear = *rule.MaxPerYear
			}
			if rule.MaxPerBlock != nil {
				result.MaxPerBlock = *rule.MaxPerBlock
			}
		}
	}
	return result
}
