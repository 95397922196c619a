// Package linker implements the entity-resolution core: fuzzy candidate
// retrieval with bounded widening, the cascading candidate filter, the
// disambiguation scoring model, and the Engine that orchestrates them into
// one Resolve call per mention.
package linker

import (
	"context"

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

// Outcome is the explicit result variant of one Resolve call. Callers
// branch on Resolved instead of catching failures; an unresolved mention is
// a normal outcome, not an error.
type Outcome struct {
	// Resolved reports whether the mention linked to at least one entity.
	Resolved bool

	// Candidates is the ranked, confidence-scored candidate list.
	// Confidences sum to 1.0 and are sorted non-increasingly. Empty when
	// Resolved is false.
	Candidates []types.ScoredCandidate

	// Trace is the diagnostic event log of this resolution.
	Trace *Trace
}

// Unresolved is the sentinel rendering of an unresolved outcome, used by
// callers that serialize results.
const Unresolved = "none"

// Best returns the rank-1 candidate, or nil for unresolved outcomes.
func (o Outcome) Best() *types.ScoredCandidate {
	if !o.Resolved || len(o.Candidates) == 0 {
		return nil
	}
	return &o.Candidates[0]
}

// Engine orchestrates retrieval, filtering, and disambiguation. It holds a
// read-only search handle and is safe for concurrent use.
type Engine struct {
	retriever *Retriever
	disamb    *Disambiguator
}

// NewEngine creates an Engine over the given search service with the given
// filter configuration.
func NewEngine(search storage.SearchService, cfg FilterConfig) *Engine {
	return &Engine{
		retriever: NewRetriever(search, NewFilter(cfg)),
		disamb:    NewDisambiguator(),
	}
}

// Resolve links one mention against the static KB.
//
// Mentions with unrecognized categories or blank text resolve to the
// unresolved outcome, never to an error. Errors are reserved for search
// I/O failures and abort only this mention.
func (e *Engine) Resolve(ctx context.Context, m types.Mention) (Outcome, error) {
	trace := newTrace()
	trace.add(TraceEvent{Kind: KindResolveStarted, Detail: m.Text})

	cat, ok := m.Category()
	if !ok {
		trace.add(TraceEvent{Kind: KindUnsupportedCategory, Detail: m.Type})
		trace.add(TraceEvent{Kind: KindOutcome, Detail: Unresolved})
		return Outcome{Trace: trace}, nil
	}

	nameLower := m.NormalizedText()
	if nameLower == "" {
		trace.add(TraceEvent{Kind: KindOutcome, Detail: Unresolved})
		return Outcome{Trace: trace}, nil
	}

	candidates, err := e.retriever.Retrieve(ctx, nameLower, cat, trace)
	if err != nil {
		return Outcome{Trace: trace}, err
	}
	if len(candidates) == 0 {
		trace.add(TraceEvent{Kind: KindOutcome, Detail: Unresolved})
		return Outcome{Trace: trace}, nil
	}

	ranked := e.disamb.Rank(candidates, nameLower, cat, m.Context)
	trace.add(TraceEvent{Kind: KindRanked, Surviving: len(ranked)})
	trace.add(TraceEvent{Kind: KindOutcome, Detail: ranked[0].ID})

	return Outcome{Resolved: true, Candidates: ranked, Trace: trace}, nil
}
