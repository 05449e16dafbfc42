package http_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	httpadapter "github.com/couchcryptid/storm-data-tbb/internal/adapter/http"
	"github.com/couchcryptid/storm-data-tbb/internal/observability"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(srv http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzIgnoresReadiness(t *testing.T) {
	rec := serve(newTestServer(errors.New("no reports yet")), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(errors.New("pipeline has not published any reports yet")), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsEndpoint_ServesAnalysisMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsForTesting()
	reg.MustRegister(m.AnalysisRuns, m.Samples)
	m.AnalysisRuns.WithLabelValues("ok").Inc()
	m.Samples.WithLabelValues("B13", "valid").Add(2)

	srv := httpadapter.NewServerWithGatherer(":0", &mockReadiness{}, reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := serve(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tbb_etl_analysis_runs_total{outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `tbb_etl_samples_total{band="B13",outcome="valid"} 2`)
}

func TestUnknownMethodRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
