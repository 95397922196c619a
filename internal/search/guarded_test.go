package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbatlas/linker/pkg/types"
)

// flakyService fails every call until failuresLeft reaches zero.
type flakyService struct {
	failuresLeft int
	calls        int
}

func (f *flakyService) FindByName(ctx context.Context, query string, fuzzyDistance uint) ([]types.EntityRecord, error) {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("index unavailable")
	}
	return []types.EntityRecord{{ID: "E1", Name: query, CanonicalName: query, Type: types.CategoryGPE}}, nil
}

func (f *flakyService) FindByID(ctx context.Context, id string) ([]types.EntityRecord, error) {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("index unavailable")
	}
	return []types.EntityRecord{{ID: id}}, nil
}

func TestGuardedService_PassesThrough(t *testing.T) {
	inner := &flakyService{}
	g := NewGuardedService(inner, Config{})

	got, err := g.FindByName(context.Background(), "kyiv", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "E1", got[0].ID)
}

func TestGuardedService_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyService{failuresLeft: 100}
	g := NewGuardedService(inner, Config{MaxFailures: 2, Timeout: time.Minute})

	ctx := context.Background()
	_, err := g.FindByName(ctx, "kyiv", 0)
	require.Error(t, err)
	_, err = g.FindByName(ctx, "kyiv", 0)
	require.Error(t, err)

	// Third call must be rejected by the open breaker without reaching the
	// inner service.
	callsBefore := inner.calls
	_, err = g.FindByName(ctx, "kyiv", 0)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, callsBefore, inner.calls)
}

func TestGuardedService_CancelledContext(t *testing.T) {
	inner := &flakyService{}
	g := NewGuardedService(inner, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.FindByID(ctx, "E1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGuardedService_RateLimiterDelays(t *testing.T) {
	inner := &flakyService{}
	g := NewGuardedService(inner, Config{QueriesPerSecond: 50, Burst: 1})

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := g.FindByName(ctx, "kyiv", 0)
		require.NoError(t, err)
	}
	// Burst 1 at 50 qps means the 3 calls need at least ~40ms in total.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
