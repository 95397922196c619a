// Package linker resolves free-text named-entity mentions to canonical
// knowledge-base entries. It wires the storage backends, the resilience
// layer, the resolution engine, and the auxiliary knowledge base into one
// Resolver value; the packages under internal/ carry the actual logic.
package linker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kbatlas/linker/internal/auxkb"
	"github.com/kbatlas/linker/internal/batch"
	"github.com/kbatlas/linker/internal/config"
	"github.com/kbatlas/linker/internal/importer"
	core "github.com/kbatlas/linker/internal/linker"
	"github.com/kbatlas/linker/internal/search"
	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/internal/storage/postgres"
	"github.com/kbatlas/linker/internal/storage/sqlite"
	"github.com/kbatlas/linker/pkg/types"
)

// Re-exported domain types, so most callers only import this package.
type (
	Mention         = types.Mention
	EntityRecord    = types.EntityRecord
	ScoredCandidate = types.ScoredCandidate
	Outcome         = core.Outcome
	BatchResult     = batch.Result
	ImportStats     = importer.Stats
)

// Unresolved is the sentinel callers serialize for unresolved outcomes.
const Unresolved = core.Unresolved

// kbBackend is what a static-KB backend must provide.
type kbBackend interface {
	storage.SearchService
	storage.EntityIndexer
	Close() error
}

// Resolver is the assembled entity-resolution stack.
type Resolver struct {
	kb        kbBackend
	engine    *core.Engine
	aux       *auxkb.Service
	auxStore  storage.AuxiliaryStore
	processor *batch.Processor
	importer  *importer.Importer
}

// Open assembles a Resolver from configuration. The static KB opens
// read-mostly (it is only written through ImportKB); the auxiliary KB
// always lives in SQLite under the configured data path.
func Open(cfg *config.Config) (*Resolver, error) {
	if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("linker: creating data path: %w", err)
	}

	var kb kbBackend
	var err error
	switch cfg.Storage.Engine {
	case "sqlite":
		kb, err = sqlite.NewKBStore(filepath.Join(cfg.Storage.DataPath, "kb.db"))
	case "postgres":
		kb, err = postgres.NewKBStore(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("linker: unknown storage engine %q", cfg.Storage.Engine)
	}
	if err != nil {
		return nil, err
	}

	auxStore, err := sqlite.NewAuxStore(filepath.Join(cfg.Storage.DataPath, "aux.db"))
	if err != nil {
		kb.Close()
		return nil, err
	}

	filterCfg, err := filterConfig(cfg.Resolver)
	if err != nil {
		kb.Close()
		auxStore.Close()
		return nil, err
	}

	guarded := search.NewGuardedService(kb, search.Config{
		MaxFailures:      cfg.Search.BreakerMaxFailures,
		Timeout:          cfg.Search.BreakerTimeout,
		QueriesPerSecond: cfg.Search.QueriesPerSecond,
		Burst:            cfg.Search.Burst,
	})

	engine := core.NewEngine(guarded, filterCfg)
	aux := auxkb.NewService(auxStore)

	seeds, err := parseSeeds(cfg.Aux.Seeds)
	if err != nil {
		kb.Close()
		auxStore.Close()
		return nil, err
	}
	if err := aux.Bootstrap(context.Background(), seeds); err != nil {
		kb.Close()
		auxStore.Close()
		return nil, err
	}

	return &Resolver{
		kb:       kb,
		engine:   engine,
		aux:      aux,
		auxStore: auxStore,
		processor: batch.NewProcessor(engine, aux, batch.Config{
			Workers:               cfg.Resolver.Workers,
			RegistrationThreshold: cfg.Resolver.RegistrationThreshold,
		}),
		importer: importer.New(kb, importer.Config{
			PreferredCountries: cfg.Resolver.PreferredCountries,
		}),
	}, nil
}

// Resolve links one mention, consulting the auxiliary KB when the static KB
// yields nothing.
func (r *Resolver) Resolve(ctx context.Context, m Mention) (Outcome, error) {
	out, err := r.engine.Resolve(ctx, m)
	if err != nil || out.Resolved {
		return out, err
	}

	records, err := r.aux.Query(ctx, m)
	if err != nil {
		return out, err
	}
	if len(records) == 0 {
		return out, nil
	}
	return Outcome{
		Resolved:   true,
		Candidates: []ScoredCandidate{{EntityRecord: records[0], Confidence: 1.0}},
		Trace:      out.Trace,
	}, nil
}

// ProcessBatch resolves a batch of mentions concurrently and applies the
// recurring-unresolved registration policy afterwards.
func (r *Resolver) ProcessBatch(ctx context.Context, mentions []Mention) (*BatchResult, error) {
	return r.processor.Process(ctx, mentions)
}

// ImportKB builds the static KB from the tab-delimited entity and alias
// tables. It is a one-time setup step; the static KB is read-only afterward.
func (r *Resolver) ImportKB(ctx context.Context, entityTable, aliasTable io.Reader) (*ImportStats, error) {
	return r.importer.Import(ctx, entityTable, aliasTable)
}

// Close releases both knowledge bases.
func (r *Resolver) Close() error {
	kbErr := r.kb.Close()
	auxErr := r.auxStore.Close()
	if kbErr != nil {
		return kbErr
	}
	return auxErr
}

// filterConfig maps the string-typed resolver configuration onto the
// engine's filter configuration.
func filterConfig(rc config.ResolverConfig) (core.FilterConfig, error) {
	parse := func(key, value string) (core.StagePolicy, error) {
		switch core.StagePolicy(value) {
		case core.StageKeepPrior, core.StageReject:
			return core.StagePolicy(value), nil
		}
		return "", fmt.Errorf("linker: %s must be %q or %q, got %q",
			key, core.StageKeepPrior, core.StageReject, value)
	}

	cfg := core.FilterConfig{PreferredCountries: rc.PreferredCountries}
	var err error
	if cfg.ExactNamePolicy, err = parse("exact_name_policy", rc.ExactNamePolicy); err != nil {
		return cfg, err
	}
	if cfg.ExactTypePolicy, err = parse("exact_type_policy", rc.ExactTypePolicy); err != nil {
		return cfg, err
	}
	if cfg.CountryPolicy, err = parse("country_policy", rc.CountryPolicy); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseSeeds validates the configured bootstrap seeds.
func parseSeeds(seeds []config.SeedConfig) ([]auxkb.Seed, error) {
	out := make([]auxkb.Seed, 0, len(seeds))
	for _, s := range seeds {
		cat, ok := types.ParseCategory(s.Category)
		if !ok {
			return nil, fmt.Errorf("linker: seed %q has unrecognized category %q", s.Name, s.Category)
		}
		out = append(out, auxkb.Seed{Name: s.Name, Category: cat})
	}
	return out, nil
}
