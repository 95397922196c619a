// Package postgres implements the static knowledge base on PostgreSQL.
// Exact lookup uses a generated tsvector column with the 'simple'
// configuration (no stemming, so token semantics match the SQLite backend);
// fuzzy lookup expands query tokens against the indexed vocabulary with
// fuzzystrmatch's levenshtein before ANDing the groups into one tsquery.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

var (
	_ storage.SearchService = (*KBStore)(nil)
	_ storage.EntityIndexer = (*KBStore)(nil)
)

// Schema creates the static-KB tables. Requires the fuzzystrmatch extension
// for levenshtein-based fuzzy term expansion.
const Schema = `
CREATE EXTENSION IF NOT EXISTS fuzzystrmatch;

CREATE TABLE IF NOT EXISTS entities (
	row_id BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	type TEXT NOT NULL,
	info TEXT NOT NULL DEFAULT '',
	name_tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', name)) STORED
);

CREATE INDEX IF NOT EXISTS idx_entities_id ON entities(id);
CREATE INDEX IF NOT EXISTS idx_entities_name_tsv ON entities USING GIN(name_tsv);

CREATE TABLE IF NOT EXISTS entity_tokens (
	token TEXT PRIMARY KEY,
	length INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entity_tokens_length ON entity_tokens(length);
`

// KBStore implements the static knowledge base on PostgreSQL.
type KBStore struct {
	db *sql.DB
}

// NewKBStore connects to PostgreSQL with the given DSN and ensures the
// schema exists.
func NewKBStore(dsn string) (*KBStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create KB schema: %w", err)
	}
	return &KBStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *KBStore) Close() error {
	return s.db.Close()
}

// IndexEntity adds one record to the index and folds its name tokens into
// the fuzzy-expansion vocabulary.
func (s *KBStore) IndexEntity(ctx context.Context, rec types.EntityRecord) error {
	if rec.ID == "" || rec.Name == "" {
		return fmt.Errorf("%w: entity id and name are required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: IndexEntity begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, name, canonical_name, type, info)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Name, rec.CanonicalName, string(rec.Type), rec.Info)
	if err != nil {
		return fmt.Errorf("postgres: IndexEntity insert %q: %w", rec.ID, err)
	}

	for _, tok := range storage.Tokenize(rec.Name) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entity_tokens (token, length) VALUES ($1, $2)
			ON CONFLICT (token) DO NOTHING`,
			tok, len([]rune(tok))); err != nil {
			return fmt.Errorf("postgres: IndexEntity token %q: %w", tok, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: IndexEntity commit: %w", err)
	}
	return nil
}

// FindByName looks up records whose name matches all query tokens, each
// token allowed up to fuzzyDistance edits. Raw mention text never reaches
// the tsquery parser: only sanitized vocabulary tokens do.
func (s *KBStore) FindByName(ctx context.Context, query string, fuzzyDistance uint) ([]types.EntityRecord, error) {
	tokens := storage.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	var groups []string
	for _, tok := range tokens {
		variants := []string{tok}
		if fuzzyDistance > 0 {
			expanded, err := s.expandToken(ctx, tok, int(fuzzyDistance))
			if err != nil {
				return nil, err
			}
			if len(expanded) == 0 {
				return nil, nil
			}
			variants = expanded
		}
		groups = append(groups, "("+strings.Join(variants, " | ")+")")
	}
	tsquery := strings.Join(groups, " & ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, canonical_name, type, info
		FROM entities
		WHERE name_tsv @@ to_tsquery('simple', $1)
		LIMIT $2`, tsquery, storage.MaxResults)
	if err != nil {
		// A tsquery the parser rejects is an empty result, not an error,
		// matching the search contract.
		if strings.Contains(err.Error(), "syntax error in tsquery") {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: FindByName %q: %w", tsquery, err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntities(rows)
}

// FindByID returns every record (primary plus aliases) sharing the id.
func (s *KBStore) FindByID(ctx context.Context, id string) ([]types.EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, canonical_name, type, info
		FROM entities
		WHERE id = $1
		LIMIT $2`, id, storage.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("postgres: FindByID %q: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntities(rows)
}

// expandToken returns indexed vocabulary tokens within dist edits of tok,
// computed server-side by fuzzystrmatch.
func (s *KBStore) expandToken(ctx context.Context, tok string, dist int) ([]string, error) {
	n := len([]rune(tok))
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM entity_tokens
		WHERE length BETWEEN $1 AND $2
		  AND levenshtein(token, $3) <= $4`,
		n-dist, n+dist, tok, dist)
	if err != nil {
		return nil, fmt.Errorf("postgres: expandToken %q: %w", tok, err)
	}
	defer func() { _ = rows.Close() }()

	var matches []string
	for rows.Next() {
		var candidate string
		if err := rows.Scan(&candidate); err != nil {
			return nil, fmt.Errorf("postgres: expandToken scan: %w", err)
		}
		matches = append(matches, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: expandToken rows: %w", err)
	}
	return matches, nil
}

func scanEntities(rows *sql.Rows) ([]types.EntityRecord, error) {
	var records []types.EntityRecord
	for rows.Next() {
		var rec types.EntityRecord
		var typ string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.CanonicalName, &typ, &rec.Info); err != nil {
			return nil, fmt.Errorf("postgres: scan entity row: %w", err)
		}
		rec.Type = types.Category(typ)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows error: %w", err)
	}
	return records, nil
}
