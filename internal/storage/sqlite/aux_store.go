package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

var _ storage.AuxiliaryStore = (*AuxStore)(nil)

// auxSchema holds the auxiliary-KB registry and its id counter. The counter
// row is the sole source of truth for next-id assignment; registration
// appends the entity and advances the counter in one transaction, which is
// the small transactional log the recovery logic reconciles against.
const auxSchema = `
CREATE TABLE IF NOT EXISTS aux_entities (
	rowid INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	name_lower TEXT NOT NULL,
	type TEXT NOT NULL,
	registered_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_aux_entities_name ON aux_entities(name_lower, type);

CREATE TABLE IF NOT EXISTS aux_counter (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	next_id INTEGER NOT NULL
);

INSERT INTO aux_counter (id, next_id) VALUES (1, 1)
	ON CONFLICT(id) DO NOTHING;
`

// AuxStore implements the auxiliary knowledge base on SQLite: an append-only
// registry of ad hoc entities plus a persisted monotonic counter.
type AuxStore struct {
	db *sql.DB
}

// NewAuxStore opens (or creates) the auxiliary-KB database at the given DSN.
// On open the counter is reconciled against the registry contents so that a
// crash between append and counter update can never lead to id reuse.
func NewAuxStore(dsn string) (*AuxStore, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(auxSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create auxiliary schema: %w", err)
	}

	s := &AuxStore{db: db}
	if err := s.reconcileCounter(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *AuxStore) Close() error {
	return s.db.Close()
}

// Register appends a new entity under the next id and persists the advanced
// counter before returning. Callers must serialize Register calls.
func (s *AuxStore) Register(ctx context.Context, name string, cat types.Category) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: entity name is required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: Register begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next uint64
	if err := tx.QueryRowContext(ctx, `SELECT next_id FROM aux_counter WHERE id = 1`).Scan(&next); err != nil {
		return "", fmt.Errorf("sqlite: Register read counter: %w", err)
	}

	id := storage.AuxIDPrefix + strconv.FormatUint(next, 10)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO aux_entities (id, name, name_lower, type, registered_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, name, strings.ToLower(name), string(cat), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("sqlite: Register insert %q: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE aux_counter SET next_id = ? WHERE id = 1`, next+1); err != nil {
		return "", fmt.Errorf("sqlite: Register advance counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlite: Register commit: %w", err)
	}
	return id, nil
}

// QueryExact returns registered records whose lowercased name and category
// both match exactly. No fuzzy matching and no filter cascade apply here.
func (s *AuxStore) QueryExact(ctx context.Context, nameLower string, cat types.Category) ([]types.EntityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type FROM aux_entities
		WHERE name_lower = ? AND type = ?
		ORDER BY rowid
		LIMIT ?`, nameLower, string(cat), storage.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("sqlite: QueryExact %q: %w", nameLower, err)
	}
	defer func() { _ = rows.Close() }()

	var records []types.EntityRecord
	for rows.Next() {
		var rec types.EntityRecord
		var typ string
		if err := rows.Scan(&rec.ID, &rec.Name, &typ); err != nil {
			return nil, fmt.Errorf("sqlite: QueryExact scan: %w", err)
		}
		rec.Type = types.Category(typ)
		rec.CanonicalName = rec.Name
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: QueryExact rows: %w", err)
	}
	return records, nil
}

// NextID reports the counter value the next Register call would assign.
func (s *AuxStore) NextID(ctx context.Context) (uint64, error) {
	var next uint64
	if err := s.db.QueryRowContext(ctx, `SELECT next_id FROM aux_counter WHERE id = 1`).Scan(&next); err != nil {
		return 0, fmt.Errorf("sqlite: NextID: %w", err)
	}
	return next, nil
}

// reconcileCounter raises the persisted counter above the highest assigned
// id found in the registry. The registry is authoritative for what was
// actually handed out; the counter must never fall behind it.
func (s *AuxStore) reconcileCounter() error {
	var maxAssigned sql.NullInt64
	err := s.db.QueryRow(`
		SELECT MAX(CAST(substr(id, 2) AS INTEGER)) FROM aux_entities`).Scan(&maxAssigned)
	if err != nil {
		return fmt.Errorf("sqlite: reconcile counter scan: %w", err)
	}
	if !maxAssigned.Valid {
		return nil
	}

	_, err = s.db.Exec(`
		UPDATE aux_counter SET next_id = ? WHERE id = 1 AND next_id < ?`,
		maxAssigned.Int64+1, maxAssigned.Int64+1)
	if err != nil {
		return fmt.Errorf("sqlite: reconcile counter update: %w", err)
	}
	return nil
}
