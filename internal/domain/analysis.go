package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// Sample outcomes reported to a SampleHook.
const (
	OutcomeValid      = "valid"
	OutcomeEmpty      = "empty"
	OutcomeUnreadable = "unreadable"
)

// SampleHook observes every sampled (band, timestamp) pair.
type SampleHook func(band, outcome string)

// Analyzer runs one analysis per request. It holds no per-run state and is
// safe for concurrent use.
type Analyzer struct {
	source      GridSource
	sampler     SamplerConfig
	indices     IndexConfig
	logger      *slog.Logger
	geocoder    Geocoder
	concurrency int
	onSample    SampleHook
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithConcurrency bounds the number of grids loaded and sampled at once.
func WithConcurrency(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithGeocoder enables reverse geocoding of the target point.
func WithGeocoder(g Geocoder) AnalyzerOption {
	return func(a *Analyzer) { a.geocoder = g }
}

// WithSampleHook registers a callback for every sample outcome.
func WithSampleHook(h SampleHook) AnalyzerOption {
	return func(a *Analyzer) { a.onSample = h }
}

// NewAnalyzer creates an Analyzer over a grid source.
func NewAnalyzer(source GridSource, sampler SamplerConfig, indices IndexConfig, logger *slog.Logger, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		source:      source,
		sampler:     sampler,
		indices:     indices,
		logger:      logger,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run analyzes the request's sources. Per-source failures become missing
// points and warnings. The only run-level failures are an invalid request,
// context cancellation, and ErrNoValidData; the latter still returns the
// partial report so callers can show its warnings.
func (a *Analyzer) Run(ctx context.Context, req Request) (Report, error) {
	sampler, err := a.resolveSampler(req)
	if err != nil {
		return Report{}, err
	}
	if err := a.indices.Validate(); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	report := Report{
		RunID:        uuid.NewString(),
		RequestID:    req.ID,
		Target:       Point{Lat: req.Lat, Lon: req.Lon},
		RadiusKM:     req.RadiusKM,
		DistanceMode: sampler.DistanceMode,
		RadiusMode:   sampler.RadiusMode,
		Unit:         Celsius,
		Reference:    a.indices.Reference,
	}

	refs := make([]SourceRef, 0, len(req.Sources))
	for _, src := range req.Sources {
		band, ts, err := ParseSourceName(src)
		if err != nil {
			a.logger.Warn("skipping source", "run_id", report.RunID, "source", src, "error", err)
			report.Warnings = append(report.Warnings, err.Error())
			continue
		}
		refs = append(refs, SourceRef{Ref: src, Band: band, Timestamp: ts})
	}

	points, err := a.sampleAll(ctx, refs, report.Target, req.RadiusKM, sampler)
	if err != nil {
		return Report{}, err
	}

	byBand := map[string][]SeriesPoint{}
	for i, p := range points {
		band := refs[i].Band
		byBand[band] = append(byBand[band], p)
		if p.Missing() {
			report.SamplesMissing++
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s %s: %s (%s)",
				band, p.Timestamp.Format(time.RFC3339), p.Cause, sourceLabel(p)))
		} else {
			report.SamplesValid++
		}
	}

	series := make(map[string]BandSeries, len(byBand))
	for _, band := range orderedBands(a.indices, byBand) {
		s := AssembleSeries(band, byBand[band])
		series[band] = s
		report.Series = append(report.Series, s)
		report.Warnings = append(report.Warnings, s.Warnings...)
	}
	if _, ok := series[a.indices.Reference]; !ok && len(series) > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"reference band %s absent; rows aligned on the union of all timestamps", a.indices.Reference))
	}

	report.ProcessedAt = clock.Now().UTC()

	if report.SamplesValid == 0 {
		report.PeakSeverity = LabelInsufficientData
		return report, fmt.Errorf("%w: %d sources, %d unparseable, %d missing",
			ErrNoValidData, len(req.Sources), len(req.Sources)-len(refs), report.SamplesMissing)
	}

	report.Records = a.indices.Compute(series)
	summarize(&report)
	report = EnrichWithPlace(ctx, report, a.geocoder, a.logger)

	a.logger.Info("analysis complete",
		"run_id", report.RunID,
		"request_id", report.RequestID,
		"bands", len(report.Series),
		"records", len(report.Records),
		"samples_valid", report.SamplesValid,
		"samples_missing", report.SamplesMissing,
		"peak_severity", report.PeakSeverity,
	)
	return report, nil
}

// resolveSampler validates the request and applies its mode overrides.
func (a *Analyzer) resolveSampler(req Request) (SamplerConfig, error) {
	if !(Point{Lat: req.Lat, Lon: req.Lon}).finite() {
		return SamplerConfig{}, fmt.Errorf("%w: target (%v, %v) is not finite", ErrInvalidRequest, req.Lat, req.Lon)
	}
	if !isFinite(req.RadiusKM) || req.RadiusKM <= 0 {
		return SamplerConfig{}, fmt.Errorf("%w: radius_km must be positive, got %v", ErrInvalidRequest, req.RadiusKM)
	}
	if len(req.Sources) == 0 {
		return SamplerConfig{}, fmt.Errorf("%w: no sources", ErrInvalidRequest)
	}

	cfg := a.sampler
	if req.DistanceMode != "" {
		m, err := ParseDistanceMode(req.DistanceMode)
		if err != nil {
			return SamplerConfig{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		cfg.DistanceMode = m
	}
	if req.RadiusMode != "" {
		m, err := ParseRadiusMode(req.RadiusMode)
		if err != nil {
			return SamplerConfig{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		cfg.RadiusMode = m
	}
	if err := cfg.Validate(); err != nil {
		return SamplerConfig{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return cfg, nil
}

// sampleAll loads and samples every ref with at most a.concurrency workers.
// Results are written by index so the output order matches refs.
func (a *Analyzer) sampleAll(ctx context.Context, refs []SourceRef, target Point, radiusKM float64, cfg SamplerConfig) ([]SeriesPoint, error) {
	points := make([]SeriesPoint, len(refs))
	sem := make(chan struct{}, max(1, a.concurrency))
	var wg sync.WaitGroup

	for i, ref := range refs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			points[i] = a.samplePoint(ctx, ref, target, radiusKM, cfg)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (a *Analyzer) samplePoint(ctx context.Context, ref SourceRef, target Point, radiusKM float64, cfg SamplerConfig) SeriesPoint {
	obs := Observation{Timestamp: ref.Timestamp, Source: ref.Ref}
	obs.Grid, obs.Err = a.source.Load(ctx, ref.Ref)
	if obs.Err != nil {
		a.logger.Warn("grid load failed", "source", ref.Ref, "band", ref.Band, "error", obs.Err)
	}

	p := SamplePoint(obs, target, radiusKM, cfg)
	if a.onSample != nil {
		switch {
		case !p.Missing():
			a.onSample(ref.Band, OutcomeValid)
		case obs.Err != nil:
			a.onSample(ref.Band, OutcomeUnreadable)
		default:
			a.onSample(ref.Band, OutcomeEmpty)
		}
	}
	return p
}

// orderedBands lists configured bands that were sampled, then any extra bands sorted.
func orderedBands(cfg IndexConfig, byBand map[string][]SeriesPoint) []string {
	var out []string
	for _, b := range cfg.Bands() {
		if _, ok := byBand[b]; ok {
			out = append(out, b)
		}
	}
	var extra []string
	for b := range byBand {
		if !contains(out, b) {
			extra = append(extra, b)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// summarize fills the reference-band extrema and the peak composite label.
func summarize(r *Report) {
	var temps, cooling []float64
	peak := LabelInsufficientData
	for _, rec := range r.Records {
		if v := rec.Bands[r.Reference]; v != nil {
			temps = append(temps, *v)
		}
		if v := rec.RapidCooling[r.Reference]; v != nil {
			cooling = append(cooling, *v)
		}
		if CompositeRank(rec.Composite) > CompositeRank(peak) {
			peak = rec.Composite
		}
	}
	if len(temps) > 0 {
		r.ColdestTBB = ptr(floats.Min(temps))
	}
	if len(cooling) > 0 {
		r.PeakCooling = ptr(floats.Min(cooling))
	}
	r.PeakSeverity = peak
}

// SerializeReport encodes a report as a sink message keyed by the request id
// (or the run id when the request carried none).
func SerializeReport(r Report) (OutputEvent, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize report: %w", err)
	}
	key := r.RequestID
	if key == "" {
		key = r.RunID
	}
	return OutputEvent{
		Key:   []byte(key),
		Value: data,
		Headers: map[string]string{
			"run_id":        r.RunID,
			"processed_at":  r.ProcessedAt.Format(time.RFC3339),
			"peak_severity": r.PeakSeverity,
		},
	}, nil
}

// ParseRequest decodes a JSON analysis request.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}
