package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{PlaceName: "Surabaya", FormattedAddress: "Surabaya, East Java, Indonesia"},
	}
	metrics := testMetrics()
	cached := NewCachedGeocoder(inner, 10, metrics)

	r1, err := cached.ReverseGeocode(context.Background(), surabayaLat, surabayaLon)
	require.NoError(t, err)
	r2, err := cached.ReverseGeocode(context.Background(), surabayaLat, surabayaLon)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("miss")), 0)
}

func TestCachedGeocoder_NearbyTargetsShareEntry(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{FormattedAddress: "Surabaya"}}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ReverseGeocode(context.Background(), -7.25751, 112.75212)
	_, _ = cached.ReverseGeocode(context.Background(), -7.25749, 112.75208)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{FormattedAddress: "Somewhere"}}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ReverseGeocode(context.Background(), surabayaLat, surabayaLon)
	_, _ = cached.ReverseGeocode(context.Background(), -6.2088, 106.8456)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = cached.ReverseGeocode(context.Background(), -12, 110)
	_, _ = cached.ReverseGeocode(context.Background(), -12, 110)
	assert.Equal(t, 2, inner.calls, "empty results are retried")

	inner.err = errors.New("mapbox down")
	_, err := cached.ReverseGeocode(context.Background(), surabayaLat, surabayaLon)
	require.Error(t, err)
	_, err = cached.ReverseGeocode(context.Background(), surabayaLat, surabayaLon)
	require.Error(t, err)
	assert.Equal(t, 4, inner.calls)
}
