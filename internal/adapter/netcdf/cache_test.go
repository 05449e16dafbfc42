package netcdf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

type countingSource struct {
	calls map[string]int
	err   error
}

func (s *countingSource) Load(_ context.Context, path string) (*domain.Grid, error) {
	s.calls[path]++
	if s.err != nil {
		return nil, s.err
	}
	return domain.NewGrid(1, 1, []float64{-50}, []float64{0}, []float64{100}, domain.Coords1D, domain.Celsius)
}

func TestCachedSource_HitAndMiss(t *testing.T) {
	inner := &countingSource{calls: map[string]int{}}
	var lookups []string
	cached := NewCachedSource(inner, 4, func(r string) { lookups = append(lookups, r) })

	g1, err := cached.Load(context.Background(), "a.nc")
	require.NoError(t, err)
	g2, err := cached.Load(context.Background(), "a.nc")
	require.NoError(t, err)

	assert.Same(t, g1, g2)
	assert.Equal(t, 1, inner.calls["a.nc"], "should only call inner once")
	assert.Equal(t, []string{CacheMiss, CacheHit}, lookups)
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	inner := &countingSource{calls: map[string]int{}, err: errors.New("boom")}
	cached := NewCachedSource(inner, 4, nil)

	_, err := cached.Load(context.Background(), "bad.nc")
	require.Error(t, err)
	_, err = cached.Load(context.Background(), "bad.nc")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls["bad.nc"])
}

func TestCachedSource_Evicts(t *testing.T) {
	inner := &countingSource{calls: map[string]int{}}
	cached := NewCachedSource(inner, 1, nil)

	for _, p := range []string{"a.nc", "b.nc", "a.nc"} {
		_, err := cached.Load(context.Background(), p)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.calls["a.nc"])
	assert.Equal(t, 1, inner.calls["b.nc"])
}
