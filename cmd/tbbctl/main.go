// Command tbbctl runs one brightness-temperature analysis over local NetCDF
// files and prints the per-timestep indices.
//
// Usage:
//
//	go run ./cmd/tbbctl -lat -7.2575 -lon 112.7521 -radius 10 \
//	  data/H09_B07_*.nc data/H09_B13_*.nc
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/storm-data-tbb/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-tbb/internal/config"
	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

type options struct {
	lat, lon     float64
	radiusKM     float64
	distanceMode string
	radiusMode   string
	profilePath  string
	asJSON       bool
	verbose      bool
	sources      []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	profile, err := config.LoadProfile(opts.profilePath)
	if err != nil {
		fmt.Fprintln(stderr, "tbbctl:", err)
		return 1
	}
	sampler, err := profile.SamplerConfig()
	if err != nil {
		fmt.Fprintln(stderr, "tbbctl:", err)
		return 1
	}
	indices, err := profile.IndexConfig()
	if err != nil {
		fmt.Fprintln(stderr, "tbbctl:", err)
		return 1
	}
	unit, err := profile.Unit()
	if err != nil {
		fmt.Fprintln(stderr, "tbbctl:", err)
		return 1
	}

	reader := netcdf.NewReader(logger, netcdf.WithVariable(profile.Variable), netcdf.WithDefaultUnit(unit))
	analyzer := domain.NewAnalyzer(reader, sampler, indices, logger)

	report, err := analyzer.Run(ctx, domain.Request{
		ID:           "tbbctl",
		Lat:          opts.lat,
		Lon:          opts.lon,
		RadiusKM:     opts.radiusKM,
		DistanceMode: opts.distanceMode,
		RadiusMode:   opts.radiusMode,
		Sources:      opts.sources,
	})
	noData := errors.Is(err, domain.ErrNoValidData)
	if err != nil && !noData {
		fmt.Fprintln(stderr, "tbbctl:", err)
		return 1
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(stderr, "tbbctl:", err)
			return 1
		}
	} else {
		printReport(stdout, report)
	}

	if noData {
		fmt.Fprintln(stderr, "tbbctl:", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("tbbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Float64Var(&o.lat, "lat", 0, "target latitude in degrees")
	fs.Float64Var(&o.lon, "lon", 0, "target longitude in degrees")
	fs.Float64Var(&o.radiusKM, "radius", 10, "sampling radius in km")
	fs.StringVar(&o.distanceMode, "distance", "", "distance mode override: degree or haversine")
	fs.StringVar(&o.radiusMode, "radius-mode", "", "radius mode override: pixel or distance")
	fs.StringVar(&o.profilePath, "profile", os.Getenv("TBB_PROFILE"), "analysis profile YAML")
	fs.BoolVar(&o.asJSON, "json", false, "print the full report as JSON")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: tbbctl -lat LAT -lon LON [-radius KM] [flags] FILE...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	var missing []string
	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	for _, name := range []string{"lat", "lon"} {
		if !seen[name] {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		fs.Usage()
		return o, fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	o.sources = fs.Args()
	if len(o.sources) == 0 {
		fs.Usage()
		return o, errors.New("no input files")
	}
	return o, nil
}

func printReport(w io.Writer, r domain.Report) {
	fmt.Fprintf(w, "target %.4f, %.4f  radius %g km  (%s, %s)\n",
		r.Target.Lat, r.Target.Lon, r.RadiusKM, r.DistanceMode, r.RadiusMode)
	if r.PlaceName != "" {
		fmt.Fprintf(w, "place  %s\n", r.PlaceName)
	}
	fmt.Fprintf(w, "samples %d valid, %d missing\n\n", r.SamplesValid, r.SamplesMissing)

	bands := make([]string, 0, len(r.Series))
	for _, s := range r.Series {
		bands = append(bands, s.Band)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := append([]string{"TIME"}, bands...)
	header = append(header, "COOLING", "UPDRAFT", "DRY", "TURB", "CIPI", "COMPOSITE", "COOLING CLASS", "CLOUD TOP")
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range r.Records {
		row := []string{rec.Timestamp.UTC().Format(time.DateTime)}
		for _, b := range bands {
			row = append(row, num(rec.Bands[b]))
		}
		row = append(row,
			num(rec.RapidCooling[r.Reference]),
			num(rec.Updraft),
			num(rec.DryIntrusion),
			num(rec.Turbulence),
			num(rec.CIPI),
			rec.Composite,
			rec.CoolingClass,
			rec.CloudTopClass,
		)
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()

	if r.PeakSeverity != "" {
		fmt.Fprintf(w, "\npeak   %s\n", r.PeakSeverity)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warn   %s\n", warning)
	}
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
