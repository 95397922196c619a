package linker

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbatlas/linker/internal/storage"
	"github.com/kbatlas/linker/pkg/types"
)

// fakeSearch is an in-memory SearchService with Lucene-style AND semantics:
// every query token must match some name token within the fuzzy distance.
// It records the distances it was queried at so tests can assert on the
// widening loop.
type fakeSearch struct {
	records   []types.EntityRecord
	distances []uint
}

func (f *fakeSearch) FindByName(ctx context.Context, query string, fuzzyDistance uint) ([]types.EntityRecord, error) {
	f.distances = append(f.distances, fuzzyDistance)

	queryTokens := storage.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	var out []types.EntityRecord
	for _, rec := range f.records {
		nameTokens := storage.Tokenize(rec.Name)
		matched := true
		for _, qt := range queryTokens {
			found := false
			for _, nt := range nameTokens {
				if storage.BoundedLevenshtein(qt, nt, int(fuzzyDistance)) <= int(fuzzyDistance) {
					found = true
					break
				}
			}
			if !found {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, rec)
			if len(out) >= storage.MaxResults {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSearch) FindByID(ctx context.Context, id string) ([]types.EntityRecord, error) {
	var out []types.EntityRecord
	for _, rec := range f.records {
		if rec.ID == id {
			out = append(out, rec)
		}
	}
	return out, nil
}

func TestResolve_UnsupportedCategoryIsUnresolved(t *testing.T) {
	engine := NewEngine(&fakeSearch{}, DefaultFilterConfig())

	out, err := engine.Resolve(context.Background(), types.Mention{Text: "Kalashnikov", Type: "ldcOnt:WEA.Gun"})
	require.NoError(t, err)
	assert.False(t, out.Resolved)
	assert.Nil(t, out.Best())
}

func TestResolve_ExactMatchSingleCandidate(t *testing.T) {
	search := &fakeSearch{records: []types.EntityRecord{
		{ID: "E1", Name: "Kyiv", CanonicalName: "Kyiv", Type: types.CategoryGPE, Info: "UA"},
	}}
	engine := NewEngine(search, DefaultFilterConfig())

	out, err := engine.Resolve(context.Background(), types.Mention{Text: "Kyiv", Type: "GPE"})
	require.NoError(t, err)
	require.True(t, out.Resolved)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "E1", out.Best().ID)
	assert.Equal(t, 1.0, out.Best().Confidence)
}

func TestResolve_WideningStopsAtFirstHit(t *testing.T) {
	search := &fakeSearch{records: []types.EntityRecord{
		{ID: "E1", Name: "Slovyansk", CanonicalName: "Slovyansk", Type: types.CategoryGPE, Info: "UA"},
	}}
	engine := NewEngine(search, DefaultFilterConfig())

	// "slavyansk" (9 runes) allows fuzzy bound min(5, 9/5) = 1 and is one
	// edit from the indexed name.
	out, err := engine.Resolve(context.Background(), types.Mention{Text: "Slavyansk", Type: "ldcOnt:GPE.City"})
	require.NoError(t, err)
	require.True(t, out.Resolved)
	assert.Equal(t, "E1", out.Best().ID)

	// Distance 0 missed, distance 1 hit; nothing beyond was attempted.
	assert.Equal(t, []uint{0, 1}, search.distances)
}

func TestResolve_ShortNamesNeverWiden(t *testing.T) {
	search := &fakeSearch{records: []types.EntityRecord{
		{ID: "E1", Name: "Lviv", CanonicalName: "Lviv", Type: types.CategoryGPE, Info: "UA"},
	}}
	engine := NewEngine(search, DefaultFilterConfig())

	// "lvif" is 4 runes: fuzzy bound 0, so the one-edit name is never found.
	out, err := engine.Resolve(context.Background(), types.Mention{Text: "Lvif", Type: "GPE"})
	require.NoError(t, err)
	assert.False(t, out.Resolved)
	assert.Equal(t, []uint{0}, search.distances)
}

func TestResolve_KyivCountryPreferenceEndToEnd(t *testing.T) {
	// Two GPE records named Kyiv, info "UA" and
	// "XX"; resolution narrows to the UA record with confidence 1.0.
	search := &fakeSearch{records: []types.EntityRecord{
		{ID: "E1", Name: "Kyiv", CanonicalName: "Kyiv", Type: types.CategoryGPE, Info: "XX"},
		{ID: "E2", Name: "Kyiv", CanonicalName: "Kyiv", Type: types.CategoryGPE, Info: "UA"},
	}}
	engine := NewEngine(search, DefaultFilterConfig())

	out, err := engine.Resolve(context.Background(), types.Mention{Text: "Kyiv", Type: "ldcOnt:GPE.UrbanArea"})
	require.NoError(t, err)
	require.True(t, out.Resolved)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "E2", out.Best().ID)
	assert.Equal(t, 1.0, out.Best().Confidence)
}

func TestResolve_MultiCandidateConfidencesNormalized(t *testing.T) {
	search := &fakeSearch{records: []types.EntityRecord{
		{ID: "P1", Name: "Ivanov", CanonicalName: "Ivanov", Type: types.CategoryPER, Info: "Russia politician"},
		{ID: "P2", Name: "Ivanov", CanonicalName: "Ivanov", Type: types.CategoryPER, Info: "Russia footballer"},
	}}
	engine := NewEngine(search, DefaultFilterConfig())

	out, err := engine.Resolve(context.Background(), types.Mention{
		Text:    "Ivanov",
		Type:    "PER",
		Context: "The politician spoke in Moscow",
	})
	require.NoError(t, err)
	require.True(t, out.Resolved)
	require.Len(t, out.Candidates, 2)

	var sum float64
	for _, c := range out.Candidates {
		sum += c.Confidence
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, "P1", out.Best().ID, "context overlap should rank the politician first")
	assert.True(t, math.Abs(out.Candidates[0].Confidence-out.Candidates[1].Confidence) > 0,
		"context overlap should separate the scores")
}

func TestResolve_TraceRecordsAttempts(t *testing.T) {
	search := &fakeSearch{records: []types.EntityRecord{
		{ID: "E1", Name: "Slovyansk", CanonicalName: "Slovyansk", Type: types.CategoryGPE, Info: "UA"},
	}}
	engine := NewEngine(search, DefaultFilterConfig())

	out, err := engine.Resolve(context.Background(), types.Mention{Text: "Slavyansk", Type: "GPE"})
	require.NoError(t, err)
	require.NotNil(t, out.Trace)
	assert.NotEmpty(t, out.Trace.ID)

	var attempts int
	for _, ev := range out.Trace.Events {
		if ev.Kind == KindRetrievalAttempt {
			attempts++
		}
	}
	assert.Equal(t, 2, attempts)
}
