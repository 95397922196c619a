// Package auxkb implements the auxiliary knowledge base: a mutable,
// append-only registry of entities that never resolve against the static KB
// but recur often enough to likely denote a real missing entity.
package auxkb

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

// DefaultRegistrationThreshold is the minimum number of unresolved
// occurrences of one (name, category) group within a batch that triggers
// registration.
const DefaultRegistrationThreshold = 5

// Seed is one bootstrap entry registered when the auxiliary KB is first
// initialized.
type Seed struct {
	Name     string         `yaml:"name"`
	Category types.Category `yaml:"category"`
}

// DefaultSeeds are the two well-known entries the auxiliary KB starts with.
func DefaultSeeds() []Seed {
	return []Seed{
		{Name: "MH17", Category: types.CategoryVEH},
		{Name: "Novorossiya", Category: types.CategoryLOC},
	}
}

// Key groups unresolved mentions for the registration tally.
type Key struct {
	// NameLower is the lowercased mention surface string.
	NameLower string

	// Category is the mention's coarse category.
	Category types.Category
}

// Service owns the auxiliary KB's mutable state. Register calls are
// serialized through the service mutex; Query reads the last-committed
// state without locking.
type Service struct {
	store storage.AuxiliaryStore

	// mu serializes registration: the id counter must advance atomically
	// with each append.
	mu sync.Mutex
}

// NewService creates an auxiliary KB service over the given store.
func NewService(store storage.AuxiliaryStore) *Service {
	return &Service{store: store}
}

// Bootstrap registers the seed entries unless they are already present.
// It is safe to call on every startup.
func (s *Service) Bootstrap(ctx context.Context, seeds []Seed) error {
	for _, seed := range seeds {
		existing, err := s.store.QueryExact(ctx, strings.ToLower(seed.Name), seed.Category)
		if err != nil {
			return fmt.Errorf("auxkb: bootstrap lookup %q: %w", seed.Name, err)
		}
		if len(existing) > 0 {
			continue
		}
		if _, err := s.Register(ctx, seed.Name, seed.Category); err != nil {
			return fmt.Errorf("auxkb: bootstrap register %q: %w", seed.Name, err)
		}
	}
	return nil
}

// Query looks up a mention by exact lowercased name and exact category.
// No fuzzy matching and no filter cascade apply. A nil result means the
// auxiliary KB does not know the mention.
func (s *Service) Query(ctx context.Context, m types.Mention) ([]types.EntityRecord, error) {
	cat, ok := m.Category()
	if !ok {
		return nil, nil
	}
	records, err := s.store.QueryExact(ctx, m.NormalizedText(), cat)
	if err != nil {
		return nil, fmt.Errorf("auxkb: query %q: %w", m.Text, err)
	}
	return records, nil
}

// Register appends a new entity and returns its assigned id. Concurrent
// calls are serialized; a persistence failure here is returned to the
// caller because the counter is load-bearing for id uniqueness.
func (s *Service) Register(ctx context.Context, name string, cat types.Category) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Register(ctx, name, cat)
}

// RegisterRecurring applies the batch registration policy: every group in
// the tally with at least threshold unresolved occurrences is registered,
// unless an equal entry already exists. It returns the ids assigned in this
// call. Groups are processed in deterministic order.
func (s *Service) RegisterRecurring(ctx context.Context, tally map[Key]int, threshold int) ([]string, error) {
	if threshold <= 0 {
		threshold = DefaultRegistrationThreshold
	}

	keys := make([]Key, 0, len(tally))
	for k := range tally {
		if tally[k] >= threshold {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].NameLower != keys[j].NameLower {
			return keys[i].NameLower < keys[j].NameLower
		}
		return keys[i].Category < keys[j].Category
	})

	var registered []string
	for _, k := range keys {
		existing, err := s.store.QueryExact(ctx, k.NameLower, k.Category)
		if err != nil {
			return registered, fmt.Errorf("auxkb: recurring lookup %q: %w", k.NameLower, err)
		}
		if len(existing) > 0 {
			continue
		}

		id, err := s.Register(ctx, k.NameLower, k.Category)
		if err != nil {
			return registered, fmt.Errorf("auxkb: recurring register %q: %w", k.NameLower, err)
		}
		log.Printf("auxkb: registered recurring entity %q (%s) as %s after %d unresolved occurrences",
			k.NameLower, k.Category, id, tally[k])
		registered = append(registered, id)
	}
	return registered, nil
}
