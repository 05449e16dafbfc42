package domain

import (
	"context"
	"log/slog"
)

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder labels coordinates with place details.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// EnrichWithPlace attempts to label the report's target with a place name.
// If geocoder is nil the report is returned unchanged; on failure GeoSource
// records the outcome (graceful degradation).
func EnrichWithPlace(ctx context.Context, report Report, geocoder Geocoder, logger *slog.Logger) Report {
	if geocoder == nil {
		return report
	}

	result, err := geocoder.ReverseGeocode(ctx, report.Target.Lat, report.Target.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"run_id", report.RunID,
			"lat", report.Target.Lat,
			"lon", report.Target.Lon,
			"error", err,
		)
		report.GeoSource = "failed"
		return report
	}
	if result.FormattedAddress == "" {
		report.GeoSource = "original"
		return report
	}
	report.PlaceName = result.FormattedAddress
	report.GeoSource = "reverse"
	return report
}
