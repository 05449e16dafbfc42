package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-tbb/internal/domain"
	"github.com/couchcryptid/storm-data-tbb/internal/observability"
)

// Analysis run outcomes recorded on Metrics.AnalysisRuns.
const (
	OutcomeOK      = "ok"
	OutcomeNoData  = "no_data"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Runner executes one analysis request.
type Runner interface {
	Run(ctx context.Context, req domain.Request) (domain.Report, error)
}

// AnalysisTransformer implements Transformer: it decodes a request, runs the
// analysis, and serializes the report.
type AnalysisTransformer struct {
	runner  Runner
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewTransformer creates an AnalysisTransformer.
func NewTransformer(runner Runner, metrics *observability.Metrics, logger *slog.Logger) *AnalysisTransformer {
	return &AnalysisTransformer{
		runner:  runner,
		metrics: metrics,
		logger:  logger,
	}
}

// Transform returns an error only for messages that should be skipped.
// A run with no valid samples still yields a report carrying its warnings.
func (t *AnalysisTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseRequest(raw.Value)
	if err != nil {
		t.metrics.AnalysisRuns.WithLabelValues(OutcomeInvalid).Inc()
		return domain.OutputEvent{}, err
	}
	if req.ID == "" && len(raw.Key) > 0 {
		req.ID = string(raw.Key)
	}

	start := time.Now()
	report, err := t.runner.Run(ctx, req)
	t.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		t.metrics.AnalysisRuns.WithLabelValues(OutcomeOK).Inc()
	case errors.Is(err, domain.ErrNoValidData):
		t.metrics.AnalysisRuns.WithLabelValues(OutcomeNoData).Inc()
		t.logger.Warn("analysis produced no valid samples",
			"request_id", req.ID,
			"run_id", report.RunID,
			"error", err,
		)
	case errors.Is(err, domain.ErrInvalidRequest):
		t.metrics.AnalysisRuns.WithLabelValues(OutcomeInvalid).Inc()
		return domain.OutputEvent{}, err
	default:
		t.metrics.AnalysisRuns.WithLabelValues(OutcomeError).Inc()
		return domain.OutputEvent{}, err
	}

	return domain.SerializeReport(report)
}
