package linker

import (
	"context"
	"fmt"

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

// maxFuzzyDistance is the hard ceiling on the per-token edit distance,
// independent of mention length.
const maxFuzzyDistance = 5

// Retriever issues progressively fuzzier name queries against the search
// service, filtering each attempt before deciding whether to widen further.
type Retriever struct {
	search storage.SearchService
	filter *Filter
}

// NewRetriever creates a Retriever over the given search service and filter.
func NewRetriever(search storage.SearchService, filter *Filter) *Retriever {
	return &Retriever{search: search, filter: filter}
}

// fuzzyBound returns the maximum fuzzy distance for a mention name: one
// edit per five characters, capped at maxFuzzyDistance. Short names never
// widen at all, which avoids pathological over-matching.
func fuzzyBound(nameLower string) uint {
	bound := len([]rune(nameLower)) / 5
	if bound > maxFuzzyDistance {
		bound = maxFuzzyDistance
	}
	return uint(bound)
}

// Retrieve runs the widening loop: exact retrieval first, then fuzzy
// distances 1..bound, stopping at the first distance whose post-filter
// candidate set is non-empty. It returns that set, or nil when every
// attempt came up empty.
func (r *Retriever) Retrieve(ctx context.Context, nameLower string, cat types.Category, trace *Trace) ([]types.EntityRecord, error) {
	bound := fuzzyBound(nameLower)

	for dist := uint(0); dist <= bound; dist++ {
		candidates, err := r.search.FindByName(ctx, nameLower, dist)
		if err != nil {
			return nil, fmt.Errorf("linker: retrieval at distance %d: %w", dist, err)
		}

		surviving := r.filter.Apply(candidates, nameLower, cat)
		trace.add(TraceEvent{
			Kind:      KindRetrievalAttempt,
			Distance:  dist,
			Retrieved: len(candidates),
			Surviving: len(surviving),
		})

		if len(surviving) > 0 {
			return surviving, nil
		}
	}

	return nil, nil
}
