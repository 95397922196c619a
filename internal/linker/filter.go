package linker

import (
	"strings"

	"github.com/kbatlas/linker/pkg/types"
)

// StagePolicy decides what a cascade stage does when it matches zero
// candidates: keep the prior working set and continue, or reject the mention
// outright. The choice materially changes recall, so it is explicit
// configuration rather than a hard-coded behavior.
type StagePolicy string

const (
	// StageKeepPrior keeps the previous candidate set when a stage matches
	// nothing, letting later stages (and the disambiguator) decide.
	StageKeepPrior StagePolicy = "keep_prior"

	// StageReject empties the candidate set when a stage matches nothing,
	// making the mention unresolved at the current fuzziness level.
	StageReject StagePolicy = "reject"
)

// FilterConfig configures the cascade stages of the candidate filter.
type FilterConfig struct {
	// ExactNamePolicy applies when no candidate name equals the mention
	// text exactly.
	ExactNamePolicy StagePolicy `yaml:"exact_name_policy"`

	// ExactTypePolicy applies when no candidate carries the mention's
	// category exactly (no GPE/LOC group broadening).
	ExactTypePolicy StagePolicy `yaml:"exact_type_policy"`

	// CountryPolicy applies when no GPE/LOC candidate carries a preferred
	// country marker.
	CountryPolicy StagePolicy `yaml:"country_policy"`

	// PreferredCountries are the country/region markers the locale stage
	// prefers, matched as prefixes of EntityRecord.Info.
	PreferredCountries []string `yaml:"preferred_countries"`
}

// DefaultFilterConfig returns the cascade configuration matching the
// historical behavior: every stage keeps the prior set on zero matches, and
// RU/UA entries are the preferred locale.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		ExactNamePolicy:    StageKeepPrior,
		ExactTypePolicy:    StageKeepPrior,
		CountryPolicy:      StageKeepPrior,
		PreferredCountries: []string{"RU", "UA"},
	}
}

// Filter applies type compatibility, alias deduplication, and the cascading
// refinement stages to a retrieved candidate set.
type Filter struct {
	cfg FilterConfig
}

// NewFilter creates a Filter with the given cascade configuration.
func NewFilter(cfg FilterConfig) *Filter {
	if len(cfg.PreferredCountries) == 0 {
		cfg.PreferredCountries = DefaultFilterConfig().PreferredCountries
	}
	return &Filter{cfg: cfg}
}

// categoryGroup maps a mention category to the set of KB record categories
// compatible with it. Unsupported categories map to nil: such mentions never
// resolve through the static KB.
func categoryGroup(cat types.Category) []types.Category {
	switch cat {
	case types.CategoryGPE, types.CategoryLOC, types.CategoryFAC:
		return []types.Category{types.CategoryGPE, types.CategoryLOC}
	case types.CategoryORG:
		return []types.Category{types.CategoryORG}
	case types.CategoryPER:
		return []types.Category{types.CategoryPER}
	}
	return nil
}

// Apply filters candidates for a mention with the given lowercased name and
// category. The returned slice preserves retrieval order. A nil result means
// the mention does not resolve at this retrieval attempt.
//
// Apply is a fixed point: running it on its own output returns the same set.
func (f *Filter) Apply(candidates []types.EntityRecord, nameLower string, cat types.Category) []types.EntityRecord {
	required := categoryGroup(cat)
	if required == nil {
		return nil
	}

	// Type compatibility plus deduplication by entity id: multiple alias
	// records for one entity collapse to the first occurrence.
	seen := make(map[string]struct{}, len(candidates))
	var working []types.EntityRecord
	for _, c := range candidates {
		if !containsCategory(required, c.Type) {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		working = append(working, c)
	}

	// A single survivor skips the cascade entirely.
	if len(working) <= 1 {
		return working
	}

	type stage struct {
		pred   func(types.EntityRecord) bool
		policy StagePolicy
	}
	stages := []stage{
		{
			pred:   func(c types.EntityRecord) bool { return strings.ToLower(c.Name) == nameLower },
			policy: f.cfg.ExactNamePolicy,
		},
		{
			pred:   func(c types.EntityRecord) bool { return c.Type == cat },
			policy: f.cfg.ExactTypePolicy,
		},
		{
			pred:   f.passesCountryPreference,
			policy: f.cfg.CountryPolicy,
		},
	}

	for _, st := range stages {
		var filtered []types.EntityRecord
		for _, c := range working {
			if st.pred(c) {
				filtered = append(filtered, c)
			}
		}
		switch len(filtered) {
		case 1:
			return filtered
		case 0:
			if st.policy == StageReject {
				return nil
			}
			// Keep the prior set and move on.
		default:
			working = filtered
		}
	}

	return working
}

// passesCountryPreference implements the locale stage: non-GPE/LOC
// candidates always pass; GPE/LOC candidates must carry a preferred
// country marker in their info payload.
func (f *Filter) passesCountryPreference(c types.EntityRecord) bool {
	if c.Type != types.CategoryGPE && c.Type != types.CategoryLOC {
		return true
	}
	for _, marker := range f.cfg.PreferredCountries {
		if strings.HasPrefix(c.Info, marker) {
			return true
		}
	}
	return false
}

func containsCategory(set []types.Category, cat types.Category) bool {
	for _, c := range set {
		if c == cat {
			return true
		}
	}
	return false
}
