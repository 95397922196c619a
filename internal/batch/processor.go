// Package batch processes batches of mentions against the resolution
// engine, with the auxiliary-KB fallback and the post-batch registration
// policy for recurring unresolved mentions.
package batch

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/kbatlas/linker/internal/auxkb"
	"github.com/kbatlas/linker/internal/linker"
	"github.com/kbatlas/linker/pkg/types"
)

// DefaultWorkers is the worker-pool size used when the config leaves it
// unset. Mentions are independent, so the pool is bounded only to keep
// pressure on the search index reasonable.
const DefaultWorkers = 4

// Config configures a Processor.
type Config struct {
	// Workers is the number of concurrent resolution workers.
	Workers int

	// RegistrationThreshold is the minimum occurrence count for
	// registering a recurring unresolved mention. Zero selects
	// auxkb.DefaultRegistrationThreshold.
	RegistrationThreshold int
}

// MentionResult pairs one input mention with its resolution result.
type MentionResult struct {
	// Mention is the input as received.
	Mention types.Mention

	// Outcome is the resolution outcome. For auxiliary hits it carries the
	// auxiliary record with confidence 1.0.
	Outcome linker.Outcome

	// FromAuxiliary reports that the static KB missed and the auxiliary KB
	// supplied the link.
	FromAuxiliary bool

	// Err is the per-mention failure, if any. A failed mention counts as
	// unresolved and never aborts its siblings.
	Err error
}

// Result is the outcome of one batch run.
type Result struct {
	// ID identifies the batch.
	ID string

	// Results is index-aligned with the input mentions.
	Results []MentionResult

	// Registered lists the auxiliary ids assigned by the post-batch
	// registration pass.
	Registered []string
}

// Processor resolves batches of mentions concurrently.
type Processor struct {
	engine *linker.Engine
	aux    *auxkb.Service
	cfg    Config
}

// NewProcessor creates a Processor. aux may be nil, in which case the
// fallback and the registration policy are disabled.
func NewProcessor(engine *linker.Engine, aux *auxkb.Service, cfg Config) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Processor{engine: engine, aux: aux, cfg: cfg}
}

// Process resolves all mentions and then applies the registration policy.
//
// Mentions are fanned across the worker pool; each worker holds only the
// shared read-only search handle, and auxiliary registration happens
// strictly after every mention is classified, so the tally cannot depend on
// processing order.
func (p *Processor) Process(ctx context.Context, mentions []types.Mention) (*Result, error) {
	result := &Result{
		ID:      uuid.NewString(),
		Results: make([]MentionResult, len(mentions)),
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result.Results[i] = p.resolveOne(ctx, mentions[i])
			}
		}()
	}

	for i := range mentions {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return result, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if p.aux != nil {
		registered, err := p.aux.RegisterRecurring(ctx, p.tallyUnresolved(result.Results), p.cfg.RegistrationThreshold)
		result.Registered = registered
		if err != nil {
			// Registration failures are persistence failures on the
			// load-bearing counter; surface them to the caller.
			return result, err
		}
	}

	return result, nil
}

// resolveOne resolves a single mention with per-mention failure isolation
// and the auxiliary-KB fallback.
func (p *Processor) resolveOne(ctx context.Context, m types.Mention) MentionResult {
	out, err := p.engine.Resolve(ctx, m)
	if err != nil {
		log.Printf("batch: mention %q failed: %v", m.Text, err)
		return MentionResult{Mention: m, Err: err}
	}
	if out.Resolved || p.aux == nil {
		return MentionResult{Mention: m, Outcome: out}
	}

	records, err := p.aux.Query(ctx, m)
	if err != nil {
		log.Printf("batch: auxiliary lookup for %q failed: %v", m.Text, err)
		return MentionResult{Mention: m, Outcome: out, Err: err}
	}
	if len(records) == 0 {
		return MentionResult{Mention: m, Outcome: out}
	}

	return MentionResult{
		Mention: m,
		Outcome: linker.Outcome{
			Resolved:   true,
			Candidates: []types.ScoredCandidate{{EntityRecord: records[0], Confidence: 1.0}},
			Trace:      out.Trace,
		},
		FromAuxiliary: true,
	}
}

// tallyUnresolved groups fully-unresolved mentions by (lowercased name,
// category). Mentions with unrecognized categories are excluded: they can
// never be registered under a valid category.
func (p *Processor) tallyUnresolved(results []MentionResult) map[auxkb.Key]int {
	tally := make(map[auxkb.Key]int)
	for _, r := range results {
		if r.Outcome.Resolved || r.Err != nil {
			continue
		}
		cat, ok := r.Mention.Category()
		if !ok {
			continue
		}
		tally[auxkb.Key{NameLower: r.Mention.NormalizedText(), Category: cat}]++
	}
	return tally
}
