// Command validate checks a directory of Himawari NetCDF scans before it is
// handed to the analysis service: every file name parses, every grid decodes
// to plausible brightness temperatures, every band covers the reference
// band's scans, and all grids share one geometry.
//
// Usage:
//
//	go run ./cmd/validate -dir data/mock/java-20240101 [-profile profile.yaml] \
//	  [-lat -7.2575 -lon 112.7521 -radius 10]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-tbb/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-tbb/internal/config"
	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

// Plausible brightness temperature range in °C.
const (
	minPlausibleTBB = -110.0
	maxPlausibleTBB = 70.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// scan is one decoded file.
type scan struct {
	ref  domain.SourceRef
	grid *domain.Grid
}

func main() {
	dir := flag.String("dir", "", "directory containing NetCDF scans")
	profilePath := flag.String("profile", os.Getenv("TBB_PROFILE"), "analysis profile YAML")
	lat := flag.Float64("lat", math.NaN(), "optional target latitude for a trial analysis")
	lon := flag.Float64("lon", math.NaN(), "optional target longitude for a trial analysis")
	radius := flag.Float64("radius", 10, "trial analysis radius in km")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *dir, *profilePath, domain.Point{Lat: *lat, Lon: *lon}, *radius); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, dir, profilePath string, target domain.Point, radiusKM float64) int {
	fmt.Fprintln(w, "=== TBB Scene Validation ===")
	fmt.Fprintln(w)

	profile, err := config.LoadProfile(profilePath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load profile: %v\n", err)
		return 1
	}
	indices, _ := profile.IndexConfig()
	unit, _ := profile.Unit()

	paths, err := filepath.Glob(filepath.Join(dir, "*.nc"))
	if err != nil || len(paths) == 0 {
		fmt.Fprintf(w, "FATAL: no .nc files in %s\n", dir)
		return 1
	}
	sort.Strings(paths)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reader := netcdf.NewReader(logger, netcdf.WithVariable(profile.Variable), netcdf.WithDefaultUnit(unit))

	// ── Run validation phases ──
	names, refs := validateNames(paths)
	decoding, scans := validateGrids(context.Background(), reader, refs)
	phases := []*phase{
		names,
		decoding,
		validateCoverage(scans, indices),
		validateGeometry(scans),
	}
	if !math.IsNaN(target.Lat) && !math.IsNaN(target.Lon) {
		phases = append(phases, validateAnalysis(reader, profile, paths, target, radiusKM, logger))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Files: %d found, %d parsed, %d decoded\n", len(paths), len(refs), len(scans))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// validateNames parses every file name and rejects duplicate (band, scan) pairs.
func validateNames(paths []string) (*phase, []domain.SourceRef) {
	p := &phase{name: "Source names (band + scan time)"}
	seen := map[string]string{}
	var refs []domain.SourceRef
	for _, path := range paths {
		band, ts, err := domain.ParseSourceName(path)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		key := band + "@" + ts.Format(time.RFC3339)
		if prev, ok := seen[key]; ok {
			p.errorf("%s duplicates %s (%s)", filepath.Base(path), filepath.Base(prev), key)
			continue
		}
		seen[key] = path
		refs = append(refs, domain.SourceRef{Ref: path, Band: band, Timestamp: ts})
	}
	return p, refs
}

// validateGrids decodes every file and checks its values are plausible.
func validateGrids(ctx context.Context, src domain.GridSource, refs []domain.SourceRef) (*phase, []scan) {
	p := &phase{name: "Grid decoding (variable, units, values)"}
	var scans []scan
	for _, ref := range refs {
		g, err := src.Load(ctx, ref.Ref)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		g = g.ToCelsius()
		finite := 0
		for _, v := range g.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			finite++
			if v < minPlausibleTBB || v > maxPlausibleTBB {
				p.errorf("%s: value %.2f °C outside [%g, %g]", filepath.Base(ref.Ref), v, minPlausibleTBB, maxPlausibleTBB)
				break
			}
		}
		if finite == 0 {
			p.errorf("%s: no finite cells", filepath.Base(ref.Ref))
			continue
		}
		scans = append(scans, scan{ref: ref, grid: g})
	}
	return p, scans
}

// validateCoverage requires every configured band to have exactly the
// reference band's scan times.
func validateCoverage(scans []scan, indices domain.IndexConfig) *phase {
	p := &phase{name: "Band coverage (aligned on reference)"}
	times := map[string][]time.Time{}
	for _, s := range scans {
		times[s.ref.Band] = append(times[s.ref.Band], s.ref.Timestamp)
	}
	for _, ts := range times {
		slices.SortFunc(ts, func(a, b time.Time) int { return a.Compare(b) })
	}

	ref, ok := times[indices.Reference]
	if !ok {
		p.errorf("reference band %s has no scans", indices.Reference)
		return p
	}
	for _, band := range indices.Bands() {
		if band == indices.Reference {
			continue
		}
		got, ok := times[band]
		if !ok {
			p.errorf("band %s has no scans", band)
			continue
		}
		if missing := difference(ref, got); len(missing) > 0 {
			p.errorf("band %s lacks %d reference scans: %s", band, len(missing), formatTimes(missing))
		}
		if extra := difference(got, ref); len(extra) > 0 {
			p.errorf("band %s has %d scans outside the reference: %s", band, len(extra), formatTimes(extra))
		}
	}
	return p
}

// validateGeometry requires one shape, layout, and coordinate set across all grids.
func validateGeometry(scans []scan) *phase {
	p := &phase{name: "Grid geometry (shape, layout, coords)"}
	if len(scans) == 0 {
		return p
	}
	first := scans[0].grid
	for _, s := range scans[1:] {
		g := s.grid
		name := filepath.Base(s.ref.Ref)
		switch {
		case g.Rows != first.Rows || g.Cols != first.Cols:
			p.errorf("%s: shape %dx%d, want %dx%d", name, g.Rows, g.Cols, first.Rows, first.Cols)
		case g.Layout != first.Layout:
			p.errorf("%s: %s coordinates, want %s", name, g.Layout, first.Layout)
		case !sameCoords(g.Lat, first.Lat) || !sameCoords(g.Lon, first.Lon):
			p.errorf("%s: coordinates differ from %s", name, filepath.Base(scans[0].ref.Ref))
		}
	}
	return p
}

// validateAnalysis runs the analysis over every file at the target point.
func validateAnalysis(src domain.GridSource, profile *config.Profile, paths []string, target domain.Point, radiusKM float64, logger *slog.Logger) *phase {
	p := &phase{name: fmt.Sprintf("Trial analysis (%.4f, %.4f)", target.Lat, target.Lon)}
	sampler, err := profile.SamplerConfig()
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	indices, err := profile.IndexConfig()
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	report, err := domain.NewAnalyzer(src, sampler, indices, logger).Run(context.Background(), domain.Request{
		ID: "validate", Lat: target.Lat, Lon: target.Lon, RadiusKM: radiusKM, Sources: paths,
	})
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	for _, w := range report.Warnings {
		p.errorf("%s", w)
	}
	return p
}

func difference(a, b []time.Time) []time.Time {
	var out []time.Time
	for _, t := range a {
		if !slices.ContainsFunc(b, t.Equal) {
			out = append(out, t)
		}
	}
	return out
}

func formatTimes(ts []time.Time) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Format("2006-01-02 15:04")
	}
	return strings.Join(parts, ", ")
}

func sameCoords(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-6 {
			return false
		}
	}
	return true
}
