// Package importer builds the static knowledge base from its source
// tables: a tab-delimited entity table and a tab-delimited alias table.
// It deduplicates by entity id, applies the source-specific inclusion
// rules, and feeds normalized records into any storage.EntityIndexer.
package importer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

// Entity-table column layout. The table is wide; only these positions are
// read. Geographic rows carry their country code and external reference
// link at fixed positions further right.
const (
	colOrigin = 0
	colType   = 1
	colID     = 2
	colName   = 3

	geoColCountry  = 12
	geoColWikiLink = 46

	wllColInfoFirst = 26
	wllColInfoLast  = 28

	apbColInfo = 35
)

// Source-table origin tags.
const (
	originGeo = "GEO"
	originWLL = "WLL"
	originAPB = "APB"
)

// Config controls the source-specific inclusion rules.
type Config struct {
	// PreferredCountries keeps geographic rows without an external
	// reference link when their country code is in this set.
	PreferredCountries []string
}

// DefaultConfig returns the historical inclusion rules.
func DefaultConfig() Config {
	return Config{PreferredCountries: []string{"RU", "UA"}}
}

// Stats summarizes one import run.
type Stats struct {
	// Entities is the number of primary records indexed.
	Entities int

	// Aliases is the number of alias records indexed.
	Aliases int

	// Skipped is the number of rows dropped by deduplication or the
	// inclusion rules.
	Skipped int
}

// Importer loads the source tables into an entity index.
type Importer struct {
	indexer storage.EntityIndexer
	cfg     Config
}

// New creates an Importer feeding the given indexer.
func New(indexer storage.EntityIndexer, cfg Config) *Importer {
	if len(cfg.PreferredCountries) == 0 {
		cfg.PreferredCountries = DefaultConfig().PreferredCountries
	}
	return &Importer{indexer: indexer, cfg: cfg}
}

// entityMeta is what alias rows need from their primary entity.
type entityMeta struct {
	name string
	typ  types.Category
	info string
}

// Import reads the entity table and then the alias table, indexing primary
// records followed by alias records. Both readers must start at the header
// line, which is skipped. Alias rows referencing unknown entity ids are
// dropped.
func (im *Importer) Import(ctx context.Context, entityTable, aliasTable io.Reader) (*Stats, error) {
	stats := &Stats{}

	seen, err := im.importEntities(ctx, entityTable, stats)
	if err != nil {
		return stats, err
	}
	if aliasTable != nil {
		if err := im.importAliases(ctx, aliasTable, seen, stats); err != nil {
			return stats, err
		}
	}

	log.Printf("importer: indexed %d entities, %d aliases (%d rows skipped)",
		stats.Entities, stats.Aliases, stats.Skipped)
	return stats, nil
}

func (im *Importer) importEntities(ctx context.Context, r io.Reader, stats *Stats) (map[string]entityMeta, error) {
	seen := make(map[string]entityMeta)

	scanner := newTableScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			continue // header
		}
		row := strings.Split(strings.TrimSuffix(scanner.Text(), "\n"), "\t")
		if len(row) <= colName {
			stats.Skipped++
			continue
		}

		origin, eid, name := row[colOrigin], row[colID], row[colName]
		cat, ok := types.ParseCategory(row[colType])
		if !ok || eid == "" || name == "" {
			stats.Skipped++
			continue
		}
		if _, dup := seen[eid]; dup {
			stats.Skipped++
			continue
		}
		if origin == originGeo && !im.includeGeoRow(row) {
			stats.Skipped++
			continue
		}

		info := extractInfo(origin, row)
		if err := im.indexer.IndexEntity(ctx, types.EntityRecord{
			ID:            eid,
			Name:          name,
			CanonicalName: name,
			Type:          cat,
			Info:          info,
		}); err != nil {
			return nil, fmt.Errorf("importer: entity row %d: %w", line, err)
		}
		seen[eid] = entityMeta{name: name, typ: cat, info: info}
		stats.Entities++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("importer: reading entity table: %w", err)
	}
	return seen, nil
}

func (im *Importer) importAliases(ctx context.Context, r io.Reader, seen map[string]entityMeta, stats *Stats) error {
	scanner := newTableScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 {
			continue // header
		}
		row := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
		if len(row) < 2 {
			stats.Skipped++
			continue
		}

		eid, alias := row[0], row[1]
		meta, known := seen[eid]
		if !known || alias == "" {
			stats.Skipped++
			continue
		}

		if err := im.indexer.IndexEntity(ctx, types.EntityRecord{
			ID:            eid,
			Name:          alias,
			CanonicalName: meta.name,
			Type:          meta.typ,
			Info:          meta.info,
		}); err != nil {
			return fmt.Errorf("importer: alias row %d: %w", line, err)
		}
		stats.Aliases++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("importer: reading alias table: %w", err)
	}
	return nil
}

// includeGeoRow applies the geographic inclusion rule: rows without an
// external reference link are dropped unless their country code is in the
// preferred set.
func (im *Importer) includeGeoRow(row []string) bool {
	country, wiki := "", ""
	if len(row) > geoColCountry {
		country = row[geoColCountry]
	}
	if len(row) > geoColWikiLink {
		wiki = row[geoColWikiLink]
	}
	if wiki != "" {
		return true
	}
	for _, preferred := range im.cfg.PreferredCountries {
		if country == preferred {
			return true
		}
	}
	return false
}

// extractInfo picks the source-specific info payload from an entity row.
func extractInfo(origin string, row []string) string {
	switch origin {
	case originGeo:
		if len(row) > geoColCountry {
			return row[geoColCountry]
		}
	case originWLL:
		if len(row) > wllColInfoLast {
			return strings.Join(row[wllColInfoFirst:wllColInfoLast+1], "\t")
		}
	case originAPB:
		if len(row) > apbColInfo {
			return row[apbColInfo]
		}
	}
	return ""
}

// newTableScanner returns a line scanner sized for wide KB rows.
func newTableScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}
