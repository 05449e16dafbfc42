// Command genmock writes a synthetic Himawari scene, one NetCDF file per band
// and scan, with a convective cell that deepens over time. It then runs the
// real analysis over the files and prints the numbers tests assert on.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/java-20240101 \
//	  -steps 6 -interval 10m \
//	  -lat -7.2575 -lon 112.7521 \
//	  -request-out data/mock/java-20240101/request.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-data-tbb/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

const (
	gridHalfWidth = 30   // cells either side of the centre
	gridStepDeg   = 0.02 // about 2.2 km at the equator
	cellSigmaKM   = 12.0
	fillValue     = float32(-999)
)

// bandModel describes one band in °C: the clear-sky background, the share of
// the longwave cell depth it sees, and an extra offset at the cell core.
type bandModel struct {
	background float64
	depthScale float64
	offset     float64
}

var bands = map[string]bandModel{
	domain.BandShortwaveIR: {background: -2, depthScale: 1.0, offset: -12},
	domain.BandWaterVapor:  {background: -32, depthScale: 0.55, offset: 0},
	domain.BandLongwaveIR:  {background: -5, depthScale: 1.0, offset: 0},
	domain.BandSplitWindow: {background: -7, depthScale: 1.0, offset: -1.5},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for NetCDF files")
	steps := flag.Int("steps", 6, "number of scans")
	startStr := flag.String("start", "2024-01-01T12:00:00Z", "first scan time (RFC3339)")
	interval := flag.Duration("interval", 10*time.Minute, "time between scans")
	lat := flag.Float64("lat", -7.2575, "cell centre latitude")
	lon := flag.Float64("lon", 112.7521, "cell centre longitude")
	radius := flag.Float64("radius", 10, "sampling radius in km for the stats run")
	requestOut := flag.String("request-out", "", "optional path for a JSON analysis request over the files")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *steps < 1 {
		return fmt.Errorf("-steps must be at least 1")
	}
	start, err := time.Parse(time.RFC3339, *startStr)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	centre := domain.Point{Lat: *lat, Lon: *lon}
	latAxis, lonAxis := axes(centre)

	var sources []string
	for step := range *steps {
		ts := start.Add(time.Duration(step) * *interval).UTC()
		for _, band := range []string{domain.BandShortwaveIR, domain.BandWaterVapor, domain.BandLongwaveIR, domain.BandSplitWindow} {
			path := filepath.Join(*out, fmt.Sprintf("HS_H09_%s_%s_FLDK.nc", ts.Format("20060102_1504"), band))
			fill := fillValue
			err := netcdf.WriteGridFile(path, netcdf.GridFile{
				Variable:  "tbb",
				Units:     "K",
				FillValue: &fill,
				TimeDim:   true,
				Lat:       latAxis,
				Lon:       lonAxis,
				Values:    scene(bands[band], centre, latAxis, lonAxis, step),
			})
			if err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			sources = append(sources, path)
		}
	}
	log.Printf("wrote %d files (%d scans x %d bands) to %s", len(sources), *steps, len(bands), *out)

	req := domain.Request{ID: "genmock", Lat: centre.Lat, Lon: centre.Lon, RadiusKM: *radius, Sources: sources}
	if *requestOut != "" {
		if err := writeJSON(*requestOut, req); err != nil {
			return fmt.Errorf("writing request: %w", err)
		}
		log.Printf("wrote request: %s", *requestOut)
	}

	return printStats(req)
}

func axes(centre domain.Point) (lat, lon []float64) {
	n := 2*gridHalfWidth + 1
	lat = make([]float64, n)
	lon = make([]float64, n)
	for i := range n {
		off := float64(i-gridHalfWidth) * gridStepDeg
		lat[i] = round4(centre.Lat + off)
		lon[i] = round4(centre.Lon + off)
	}
	return lat, lon
}

// depthAt is the longwave cooling of the cell core at a scan, in °C.
func depthAt(step int) float64 {
	return math.Min(20+12*float64(step), 75)
}

// scene renders one band at one scan in Kelvin. A strip along the western
// edge is left as fill to exercise masking.
func scene(m bandModel, centre domain.Point, lat, lon []float64, step int) [][]float64 {
	depth := depthAt(step) * m.depthScale
	rows := make([][]float64, len(lat))
	for i, la := range lat {
		rows[i] = make([]float64, len(lon))
		for j, lo := range lon {
			if j == 0 {
				rows[i][j] = math.NaN()
				continue
			}
			dy := (la - centre.Lat) * 111.32
			dx := (lo - centre.Lon) * 111.32 * math.Cos(centre.Lat*math.Pi/180)
			w := math.Exp(-(dx*dx + dy*dy) / (2 * cellSigmaKM * cellSigmaKM))
			rows[i][j] = m.background + w*(m.offset-depth) + 273.15
		}
	}
	return rows
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(req domain.Request) error {
	// Fixed clock for a reproducible processed_at.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	analyzer := domain.NewAnalyzer(netcdf.NewReader(logger, netcdf.WithVariable("tbb")),
		domain.DefaultSamplerConfig(), domain.DefaultIndexConfig(), logger)

	report, err := analyzer.Run(context.Background(), req)
	if err != nil {
		return fmt.Errorf("analysis over generated scene: %w", err)
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Samples: %d valid, %d missing\n", report.SamplesValid, report.SamplesMissing)
	fmt.Printf("Peak severity: %s\n", report.PeakSeverity)
	if report.ColdestTBB != nil {
		fmt.Printf("Coldest %s: %.3f °C\n", report.Reference, *report.ColdestTBB)
	}
	if report.PeakCooling != nil {
		fmt.Printf("Peak cooling: %.3f °C/scan\n", *report.PeakCooling)
	}
	for _, rec := range report.Records {
		fmt.Printf("  %s  %-24s %-16s %s\n",
			rec.Timestamp.Format(time.RFC3339), rec.Composite, rec.CoolingClass, rec.CloudTopClass)
	}
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}
