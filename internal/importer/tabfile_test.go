package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/kbatlas/linker/pkg/types"
)

// memIndexer collects indexed records for assertions.
type memIndexer struct {
	records []types.EntityRecord
}

func (m *memIndexer) IndexEntity(ctx context.Context, rec types.EntityRecord) error {
	m.records = append(m.records, rec)
	return nil
}

// row builds a tab-separated entity row wide enough for the GEO columns.
func row(origin, etype, id, name, country, wiki string) string {
	cols := make([]string, 47)
	cols[colOrigin] = origin
	cols[colType] = etype
	cols[colID] = id
	cols[colName] = name
	cols[geoColCountry] = country
	cols[geoColWikiLink] = wiki
	return strings.Join(cols, "\t")
}

func TestImport_DeduplicatesByID(t *testing.T) {
	entityTable := strings.Join([]string{
		"header",
		row("GEO", "GPE", "E1", "Kyiv", "UA", "http://wiki/kyiv"),
		row("GEO", "GPE", "E1", "Kyiv duplicate", "UA", "http://wiki/kyiv"),
	}, "\n")

	idx := &memIndexer{}
	stats, err := New(idx, DefaultConfig()).Import(context.Background(), strings.NewReader(entityTable), nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if stats.Entities != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 entity and 1 skipped", stats)
	}
	if len(idx.records) != 1 || idx.records[0].Name != "Kyiv" {
		t.Errorf("indexed %v, want only the first Kyiv row", idx.records)
	}
}

func TestImport_GeoInclusionRule(t *testing.T) {
	entityTable := strings.Join([]string{
		"header",
		row("GEO", "GPE", "E1", "Kyiv", "UA", ""),            // preferred country, kept
		row("GEO", "GPE", "E2", "Springfield", "US", ""),     // no link, not preferred: dropped
		row("GEO", "GPE", "E3", "Paris", "FR", "http://w/p"), // has link, kept
	}, "\n")

	idx := &memIndexer{}
	stats, err := New(idx, DefaultConfig()).Import(context.Background(), strings.NewReader(entityTable), nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if stats.Entities != 2 {
		t.Fatalf("stats.Entities = %d, want 2", stats.Entities)
	}
	for _, rec := range idx.records {
		if rec.ID == "E2" {
			t.Error("non-preferred GEO row without link must be dropped")
		}
	}
}

func TestImport_GeoInfoIsCountryCode(t *testing.T) {
	entityTable := strings.Join([]string{
		"header",
		row("GEO", "GPE", "E1", "Kyiv", "UA", "http://w/k"),
	}, "\n")

	idx := &memIndexer{}
	if _, err := New(idx, DefaultConfig()).Import(context.Background(), strings.NewReader(entityTable), nil); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if idx.records[0].Info != "UA" {
		t.Errorf("GEO info = %q, want UA", idx.records[0].Info)
	}
}

func TestImport_AliasesInheritPrimaryMetadata(t *testing.T) {
	entityTable := strings.Join([]string{
		"header",
		row("GEO", "GPE", "E1", "Kyiv", "UA", "http://w/k"),
	}, "\n")
	aliasTable := strings.Join([]string{
		"header",
		"E1\tKiev",
		"E9\tGhost", // unknown entity, dropped
	}, "\n")

	idx := &memIndexer{}
	stats, err := New(idx, DefaultConfig()).Import(context.Background(),
		strings.NewReader(entityTable), strings.NewReader(aliasTable))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if stats.Aliases != 1 {
		t.Fatalf("stats.Aliases = %d, want 1", stats.Aliases)
	}

	alias := idx.records[len(idx.records)-1]
	if alias.Name != "Kiev" || alias.CanonicalName != "Kyiv" {
		t.Errorf("alias record = %+v, want name Kiev with canonical Kyiv", alias)
	}
	if alias.Type != types.CategoryGPE || alias.Info != "UA" {
		t.Errorf("alias must inherit type and info from the primary record, got %+v", alias)
	}
}

func TestImport_UnrecognizedTypeSkipped(t *testing.T) {
	entityTable := strings.Join([]string{
		"header",
		row("APB", "WEA", "E1", "Grad", "", ""),
	}, "\n")

	idx := &memIndexer{}
	stats, err := New(idx, DefaultConfig()).Import(context.Background(), strings.NewReader(entityTable), nil)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if stats.Entities != 0 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want the WEA row skipped", stats)
	}
}
