// Package sqlite implements the knowledge-base storage contracts on top of
// modernc.org/sqlite. The static KB keeps an FTS5 index over record names;
// fuzzy retrieval expands query tokens against the indexed vocabulary in Go
// and rewrites them into an FTS5 OR-group per token position.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

// Ensure *KBStore satisfies the storage contracts at compile time.
var (
	_ storage.SearchService = (*KBStore)(nil)
	_ storage.EntityIndexer = (*KBStore)(nil)
)

// Schema creates the static-KB tables. entities_fts is an external-content
// FTS5 table kept in sync with entities via triggers; entity_tokens holds
// the distinct name vocabulary used for fuzzy term expansion.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
	rowid INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	type TEXT NOT NULL,
	info TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entities_id ON entities(id);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
	name,
	content='entities',
	content_rowid='rowid',
	tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS entities_fts_insert AFTER INSERT ON entities BEGIN
	INSERT INTO entities_fts(rowid, name) VALUES (new.rowid, new.name);
END;

CREATE TRIGGER IF NOT EXISTS entities_fts_delete AFTER DELETE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name) VALUES ('delete', old.rowid, old.name);
END;

CREATE TABLE IF NOT EXISTS entity_tokens (
	token TEXT PRIMARY KEY,
	length INTEGER NOT NULL
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_entity_tokens_length ON entity_tokens(length);
`

// KBStore implements the static knowledge base on SQLite.
type KBStore struct {
	db *sql.DB
}

// NewKBStore opens (or creates) a static-KB database at the given DSN and
// ensures the schema exists. Use ":memory:" for an ephemeral store in tests.
func NewKBStore(dsn string) (*KBStore, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create KB schema: %w", err)
	}
	return &KBStore{db: db}, nil
}

// open opens a SQLite database with the pragmas every store in this package
// relies on.
func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode lets concurrent readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	return db, nil
}

// Close releases the underlying database handle.
func (s *KBStore) Close() error {
	return s.db.Close()
}

// IndexEntity adds one record to the index and folds its name tokens into
// the fuzzy-expansion vocabulary. Records are immutable once indexed.
func (s *KBStore) IndexEntity(ctx context.Context, rec types.EntityRecord) error {
	if rec.ID == "" || rec.Name == "" {
		return fmt.Errorf("%w: entity id and name are required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: IndexEntity begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, name, canonical_name, type, info)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.CanonicalName, string(rec.Type), rec.Info)
	if err != nil {
		return fmt.Errorf("sqlite: IndexEntity insert %q: %w", rec.ID, err)
	}

	for _, tok := range storage.Tokenize(rec.Name) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entity_tokens (token, length) VALUES (?, ?)
			ON CONFLICT(token) DO NOTHING`,
			tok, len([]rune(tok))); err != nil {
			return fmt.Errorf("sqlite: IndexEntity token %q: %w", tok, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: IndexEntity commit: %w", err)
	}
	return nil
}

// FindByName looks up records whose name matches all query tokens, each
// token allowed up to fuzzyDistance edits. Malformed queries (tokens that
// vanish entirely under sanitisation) yield an empty result, never a syntax
// error: the raw mention text is never passed to MATCH directly.
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
				// A token with no vocabulary neighbour can never satisfy
				// the AND semantics, so the whole query is empty.
				return nil, nil
			}
			variants = expanded
		}
		quoted := make([]string, len(variants))
		for i, v := range variants {
			quoted[i] = `"` + v + `"`
		}
		groups = append(groups, "("+strings.Join(quoted, " OR ")+")")
	}
	match := strings.Join(groups, " AND ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.canonical_name, e.type, e.info
		FROM entities_fts fts
		JOIN entities e ON e.rowid = fts.rowid
		WHERE entities_fts MATCH ?
		LIMIT ?`, match, storage.MaxResults)
	if err != nil {
		// FTS5 can still reject an expression that slipped past
		// sanitisation; per the search contract that is an empty result,
		// not an error.
		if strings.Contains(err.Error(), "fts5: syntax error") {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: FindByName MATCH %q: %w", match, err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntities(rows)
}

// FindByID returns every record (primary plus aliases) sharing the id.
func (s *KBStore) FindByID(ctx context.Context, id string) ([]types.EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, canonical_name, type, info
		FROM entities
		WHERE id = ?
		LIMIT ?`, id, storage.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("sqlite: FindByID %q: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntities(rows)
}

// expandToken returns the indexed vocabulary tokens within dist edits of
// tok. The length index prunes the scan to tokens whose length could
// possibly be within range before the DP runs.
func (s *KBStore) expandToken(ctx context.Context, tok string, dist int) ([]string, error) {
	n := len([]rune(tok))
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM entity_tokens
		WHERE length BETWEEN ? AND ?`, n-dist, n+dist)
	if err != nil {
		return nil, fmt.Errorf("sqlite: expandToken %q: %w", tok, err)
	}
	defer func() { _ = rows.Close() }()

	var matches []string
	for rows.Next() {
		var candidate string
		if err := rows.Scan(&candidate); err != nil {
			return nil, fmt.Errorf("sqlite: expandToken scan: %w", err)
		}
		if storage.BoundedLevenshtein(tok, candidate, dist) <= dist {
			matches = append(matches, candidate)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: expandToken rows: %w", err)
	}
	return matches, nil
}

// scanEntities reads all rows of the canonical entity column order into
// EntityRecord values.
func scanEntities(rows *sql.Rows) ([]types.EntityRecord, error) {
	var records []types.EntityRecord
	for rows.Next() {
		var rec types.EntityRecord
		var typ string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.CanonicalName, &typ, &rec.Info); err != nil {
			return nil, fmt.Errorf("sqlite: scan entity row: %w", err)
		}
		rec.Type = types.Category(typ)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows error: %w", err)
	}
	return records, nil
}
