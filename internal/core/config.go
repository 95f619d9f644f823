// SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

package core

// StrategyID names one of the four placement strategies. It is also the
// pluggable.Registry key that internal/strategy instantiates against.
type StrategyID string

const (
	StrategyContinuousSingle StrategyID = "continuous_single"
	StrategyContinuousTeam   StrategyID = "continuous_team"
	StrategyBlockBased       StrategyID = "block_based"
	StrategyDailyRotation    StrategyID = "daily_rotation"
)

// HealthSystemRule controls how strictly a candidate preceptor's health
// system must match the student's onboarding.
type HealthSystemRule string

const (
	EnforceSameSystem HealthSystemRule = "enforce_same_system"
	PreferSameSystem  HealthSystemRule = "prefer_same_system"
	NoSystemPreference HealthSystemRule = "no_preference"
)

// ClerkshipConfig is the per-clerkship override layer. Every
// field is a pointer (or has an explicit "is this set" sibling) so the
// resolver can distinguish "inherit from global defaults" from "override
// with the zero value".
type ClerkshipConfig struct {
	ClerkshipID             ClerkshipID
	Strategy                *StrategyID
	HealthSystemRule        *HealthSystemRule
	MaxPerDay               *int
	MaxPerYear              *int
	AllowTeams              *bool
	AllowFallbacks          *bool
	FallbackRequiresApproval *bool
	FallbackAllowCrossSystem *bool
	BlockSizeDays           *int
	AllowPartialBlocks      *bool
	PreferContinuousBlocks  *bool
	TeamSizeMin             *int
	TeamSizeMax             *int
	MaxBlocksPerYear        *int
}

// GlobalDefaults holds the three fully-populated default configs that
// ClerkshipConfig overrides are merged onto, one per RequirementType.
type GlobalDefaults struct {
	Outpatient ResolvedConfig
	Inpatient  ResolvedConfig
	Elective   ResolvedConfig
}

// ForType returns the default ResolvedConfig for the given requirement type.
func (g GlobalDefaults) ForType(t RequirementType) ResolvedConfig {
	switch t {
	case RequirementInpatient:
		return g.Inpatient
	case RequirementElective:
		return g.Elective
	default:
		return g.Outpatient
	}
}

// ConfigSource tags how a ResolvedConfig came to be, per spec.md §4.1.
type ConfigSource string

const (
	SourceGlobalDefaults  ConfigSource = "global_defaults"
	SourcePartialOverride ConfigSource = "partial_override"
	SourceFullOverride    ConfigSource = "full_override"
)

// ResolvedConfig is the fully populated, field-by-field merged configuration
// for one (clerkship, requirement type) pair. See spec.md §3.
type ResolvedConfig struct {
	Strategy                 StrategyID
	HealthSystemRule         HealthSystemRule
	MaxPerDay                int
	MaxPerYear               int
	AllowTeams               bool
	AllowFallbacks           bool
	FallbackRequiresApproval bool
	FallbackAllowCrossSystem bool
	BlockSizeDays            int
	AllowPartialBlocks       bool
	PreferContinuousBlocks   bool
	TeamSizeMin              int
	TeamSizeMax              int
	MaxBlocksPerYear         int

	Source           ConfigSource
	OverriddenFields []string
}

// ResolveConfig merges a per-clerkship override onto the matching global
// default, field by field, per spec.md §4.1. It never stops at the first
// invalid field: every violated constraint is reported in the returned
// ErrorSet so a caller can fix the whole configuration at once.
func ResolveConfig(clerkshipType ClerkshipType, reqType RequirementType, override *ClerkshipConfig, defaults GlobalDefaults) (ResolvedConfig, ErrorSet) {
	result := defaults.ForType(reqType)
	result.OverriddenFields = nil

	if override == nil {
		result.Source = SourceGlobalDefaults
		var errs ErrorSet
		validateResolvedConfig(clerkshipType, reqType, &result, &errs)
		return result, errs
	}

	overridden := 0
	set := func(name string, isSet bool, apply func()) {
		if isSet {
			apply()
			result.OverriddenFields = append(result.OverriddenFields, name)
			overridden++
		}
	}

	set("strategy", override.Strategy != nil, func() { result.Strategy = *override.Strategy })
	set("health_system_rule", override.HealthSystemRule != nil, func() { result.HealthSystemRule = *override.HealthSystemRule })
	set("max_per_day", override.MaxPerDay != nil, func() { result.MaxPerDay = *override.MaxPerDay })
	set("max_per_year", override.MaxPerYear != nil, func() { result.MaxPerYear = *override.MaxPerYear })
	set("allow_teams", override.AllowTeams != nil, func() { result.AllowTeams = *override.AllowTeams })
	set("allow_fallbacks", override.AllowFallbacks != nil, func() { result.AllowFallbacks = *override.AllowFallbacks })
	set("fallback_requires_approval", override.FallbackRequiresApproval != nil, func() { result.FallbackRequiresApproval = *override.FallbackRequiresApproval })
	set("fallback_allow_cross_system", override.FallbackAllowCrossSystem != nil, func() { result.FallbackAllowCrossSystem = *override.FallbackAllowCrossSystem })
	set("block_size_days", override.BlockSizeDays != nil, func() { result.BlockSizeDays = *override.BlockSizeDays })
	set("allow_partial_blocks", override.AllowPartialBlocks != nil, func() { result.AllowPartialBlocks = *override.AllowPartialBlocks })
	set("prefer_continuous_blocks", override.PreferContinuousBlocks != nil, func() { result.PreferContinuousBlocks = *override.PreferContinuousBlocks })
	set("team_size_min", override.TeamSizeMin != nil, func() { result.TeamSizeMin = *override.TeamSizeMin })
	set("team_size_max", override.TeamSizeMax != nil, func() { result.TeamSizeMax = *override.TeamSizeMax })
	set("max_blocks_per_year", override.MaxBlocksPerYear != nil, func() { result.MaxBlocksPerYear = *override.MaxBlocksPerYear })

	switch {
	case overridden == 0:
		result.Source = SourceGlobalDefaults
	case overridden == len(resolvedConfigFieldNames):
		result.Source = SourceFullOverride
	default:
		result.Source = SourcePartialOverride
	}

	var errs ErrorSet
	validateResolvedConfig(clerkshipType, reqType, &result, &errs)
	return result, errs
}

var resolvedConfigFieldNames = []string{
	"strategy", "health_system_rule", "max_per_day", "max_per_year",
	"allow_teams", "allow_fallbacks", "fallback_requires_approval",
	"fallback_allow_cross_system", "block_size_days", "allow_partial_blocks",
	"prefer_continuous_blocks", "team_size_min", "team_size_max", "max_blocks_per_year",
}

// validateResolvedConfig implements the validation rules of spec.md §4.1,
// collecting every failure instead of returning on the first.
func validateResolvedConfig(clerkshipType ClerkshipType, reqType RequirementType, rc *ResolvedConfig, errs *ErrorSet) {
	if reqType == RequirementInpatient && rc.Strategy == StrategyBlockBased && rc.BlockSizeDays <= 0 {
		errs.Addf("block_size_days must be > 0 when an inpatient requirement uses block_based strategy")
	}
	if rc.AllowTeams && rc.TeamSizeMin != 0 && rc.TeamSizeMax != 0 && rc.TeamSizeMin > rc.TeamSizeMax {
		errs.Addf("team_size_min (%d) must be <= team_size_max (%d)", rc.TeamSizeMin, rc.TeamSizeMax)
	}
	if rc.MaxPerDay > rc.MaxPerYear {
		errs.Addf("max_per_day (%d) must be <= max_per_year (%d)", rc.MaxPerDay, rc.MaxPerYear)
	}
}
