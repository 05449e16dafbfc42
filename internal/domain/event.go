package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Request asks for one analysis run over explicitly named sources.
// DistanceMode and RadiusMode override the profile when set.
type Request struct {
	ID           string   `json:"id"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	RadiusKM     float64  `json:"radius_km"`
	DistanceMode string   `json:"distance_mode,omitempty"`
	RadiusMode   string   `json:"radius_mode,omitempty"`
	Sources      []string `json:"sources"`
}

// Report is the outcome of one analysis run.
type Report struct {
	RunID        string            `json:"run_id"`
	RequestID    string            `json:"request_id,omitempty"`
	Target       Point             `json:"target"`
	RadiusKM     float64           `json:"radius_km"`
	DistanceMode DistanceMode      `json:"distance_mode"`
	RadiusMode   RadiusMode        `json:"radius_mode"`
	Unit         Unit              `json:"unit"`
	Reference    string            `json:"reference_band"`
	Series       []BandSeries      `json:"series"`
	Records      []CompositeRecord `json:"records"`
	Warnings     []string          `json:"warnings,omitempty"`

	SamplesValid   int `json:"samples_valid"`
	SamplesMissing int `json:"samples_missing"`

	// Summary over the reference band.
	ColdestTBB   *float64 `json:"coldest_tbb"`
	PeakCooling  *float64 `json:"peak_cooling"`
	PeakSeverity string   `json:"peak_severity"`

	// Geocoding enrichment fields.
	PlaceName string `json:"place_name,omitempty"`
	GeoSource string `json:"geo_source,omitempty"` // "reverse", "original", "failed"

	ProcessedAt time.Time `json:"processed_at"`
}
