// Package storage provides composable storage interfaces for the entity
// linker.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed: the static knowledge
// base implements SearchService and EntityIndexer, the auxiliary knowledge
// base implements AuxiliaryStore. Both a SQLite and a PostgreSQL backend
// exist for the static KB.
package storage

import (
	"context"

	"github.com/kbatlas/linker/pkg/types"
)

// MaxResults is the fixed cap on the number of records any single search
// call returns. Callers must not assume relevance ordering within the cap.
const MaxResults = 100

// SearchService is the read-only full-text lookup contract of a knowledge
// base. Implementations are safe for concurrent readers.
type SearchService interface {
	// FindByName looks up records whose indexed name matches the query.
	// fuzzyDistance = 0 performs an exact boolean-AND token match.
	// fuzzyDistance > 0 allows up to that edit distance independently per
	// query token, still ANDed together.
	//
	// At most MaxResults records are returned. Query strings containing
	// search metacharacters must never produce a syntax error: malformed
	// queries yield an empty result instead.
	FindByName(ctx context.Context, query string, fuzzyDistance uint) ([]types.EntityRecord, error)

	// FindByID returns all records (primary entry plus aliases) sharing the
	// given entity id, capped at MaxResults.
	FindByID(ctx context.Context, id string) ([]types.EntityRecord, error)
}

// EntityIndexer accepts records into a knowledge-base index. The static KB
// is built once through this interface and is read-only thereafter.
type EntityIndexer interface {
	// IndexEntity adds one record to the index. Records are immutable once
	// indexed; there is no update or delete operation.
	IndexEntity(ctx context.Context, rec types.EntityRecord) error
}

// AuxiliaryStore is the persistence contract of the auxiliary (runtime)
// knowledge base: an append-only registry plus a monotonic id counter that
// survives process restarts.
//
// Register calls must be serialized by the caller; QueryExact may proceed
// concurrently against the last-committed state.
type AuxiliaryStore interface {
	// Register appends a new entity under the next available id and
	// persists the advanced counter before returning. The assigned id
	// (including the "@" namespace prefix) is returned.
	Register(ctx context.Context, name string, cat types.Category) (string, error)

	// QueryExact returns registered records whose lowercased name equals
	// nameLower and whose category equals cat exactly. No fuzzy matching.
	QueryExact(ctx context.Context, nameLower string, cat types.Category) ([]types.EntityRecord, error)

	// NextID reports the counter value the next Register call would assign.
	NextID(ctx context.Context) (uint64, error)

	// Close releases resources held by the store.
	Close() error
}
