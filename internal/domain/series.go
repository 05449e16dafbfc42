package domain

import (
	"fmt"
	"sort"
	"time"
)

// Observation is one timestamped grid of a band, or the reason it is absent.
type Observation struct {
	Timestamp time.Time
	Source    string
	Grid      *Grid
	Err       error
}

// SeriesPoint is one sampled value. A nil Value means missing; Cause says why.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     *float64  `json:"value"`
	Cells     int       `json:"cells"`
	Source    string    `json:"source,omitempty"`
	Cause     string    `json:"cause,omitempty"`
}

// Missing reports whether the point carries no value.
func (p SeriesPoint) Missing() bool { return p.Value == nil }

// BandSeries is the ascending, duplicate-free series of one band.
type BandSeries struct {
	Band     string        `json:"band"`
	Points   []SeriesPoint `json:"points"`
	Warnings []string      `json:"warnings,omitempty"`
}

// ValidCount returns the number of non-missing points.
func (s BandSeries) ValidCount() int {
	n := 0
	for _, p := range s.Points {
		if !p.Missing() {
			n++
		}
	}
	return n
}

// At returns the point at ts, if present.
func (s BandSeries) At(ts time.Time) (SeriesPoint, bool) {
	i := sort.Search(len(s.Points), func(i int) bool { return !s.Points[i].Timestamp.Before(ts) })
	if i < len(s.Points) && s.Points[i].Timestamp.Equal(ts) {
		return s.Points[i], true
	}
	return SeriesPoint{}, false
}

// BuildSeries samples every observation of one band and returns the series
// sorted ascending by timestamp. Failed loads and empty selections stay in
// the series as missing points so bands remain aligned.
func BuildSeries(band string, obs []Observation, target Point, radiusKM float64, cfg SamplerConfig) BandSeries {
	points := make([]SeriesPoint, len(obs))
	for i, o := range obs {
		points[i] = SamplePoint(o, target, radiusKM, cfg)
	}
	return AssembleSeries(band, points)
}

// SamplePoint turns one observation into a series point.
func SamplePoint(o Observation, target Point, radiusKM float64, cfg SamplerConfig) SeriesPoint {
	p := SeriesPoint{Timestamp: o.Timestamp.UTC(), Source: o.Source}
	switch {
	case o.Err != nil:
		p.Cause = o.Err.Error()
		return p
	case o.Grid == nil:
		p.Cause = "no grid loaded"
		return p
	}

	s, err := cfg.Sample(o.Grid.ToCelsius(), target, radiusKM)
	if err != nil {
		p.Cause = err.Error()
		return p
	}
	p.Cells = s.Cells
	if !s.Valid {
		p.Cause = "empty selection"
		return p
	}
	mean := s.Mean
	p.Value = &mean
	return p
}

// AssembleSeries sorts points by timestamp and collapses duplicates, keeping
// the first valid point for a timestamp (or the first point if none is valid).
func AssembleSeries(band string, points []SeriesPoint) BandSeries {
	sorted := make([]SeriesPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := BandSeries{Band: band, Points: make([]SeriesPoint, 0, len(sorted))}
	for _, p := range sorted {
		n := len(out.Points)
		if n == 0 || !out.Points[n-1].Timestamp.Equal(p.Timestamp) {
			out.Points = append(out.Points, p)
			continue
		}
		kept := &out.Points[n-1]
		dropped := p
		if kept.Missing() && !p.Missing() {
			dropped = *kept
			*kept = p
		}
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: duplicate timestamp %s, ignored %s",
			band, p.Timestamp.Format(time.RFC3339), sourceLabel(dropped)))
	}
	return out
}

func sourceLabel(p SeriesPoint) string {
	if p.Source != "" {
		return p.Source
	}
	return "unnamed source"
}
