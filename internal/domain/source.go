package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	// bandRe matches an AHI band token such as "B13" delimited by start, end,
	// '_', '-' or '.', e.g. "H09_B13_Indonesia_202401011200.nc".
	bandRe = regexp.MustCompile(`(?i)(?:^|[_.\-])(B\d{2})(?:[_.\-]|$)`)

	// stampRe matches YYYYMMDD followed by HHMM, optionally separated by '_', 'T' or '-'.
	stampRe = regexp.MustCompile(`(20\d{2}[01]\d[0-3]\d)[_T\-]?([0-2]\d[0-5]\d)`)
)

// GridSource loads a grid for a source reference (a file path for NetCDF).
type GridSource interface {
	Load(ctx context.Context, ref string) (*Grid, error)
}

// GridSourceFunc adapts a function to GridSource.
type GridSourceFunc func(ctx context.Context, ref string) (*Grid, error)

func (f GridSourceFunc) Load(ctx context.Context, ref string) (*Grid, error) { return f(ctx, ref) }

// SourceRef is a source whose band and timestamp have been parsed.
type SourceRef struct {
	Ref       string
	Band      string
	Timestamp time.Time
}

// ParseSourceName derives the band and UTC timestamp from a file name.
func ParseSourceName(name string) (band string, ts time.Time, err error) {
	base := filepath.Base(name)
	m := bandRe.FindStringSubmatch(base)
	if m == nil {
		return "", time.Time{}, fmt.Errorf("%w: %q has no band token", ErrUnparseableSource, base)
	}
	band = strings.ToUpper(m[1])

	s := stampRe.FindStringSubmatch(base)
	if s == nil {
		return "", time.Time{}, fmt.Errorf("%w: %q has no YYYYMMDDhhmm timestamp", ErrUnparseableSource, base)
	}
	ts, err = time.ParseInLocation("200601021504", s[1]+s[2], time.UTC)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnparseableSource, base, err)
	}
	return band, ts, nil
}

// ResolveScalarVariable picks the scalar field to sample: the configured name
// if present, else the sole data variable, else an ErrMissingRequiredField.
func ResolveScalarVariable(configured string, dataVars []string) (string, error) {
	if configured != "" {
		for _, v := range dataVars {
			if v == configured {
				return v, nil
			}
		}
	}
	if len(dataVars) == 1 {
		return dataVars[0], nil
	}
	if configured == "" {
		return "", fmt.Errorf("%w: no variable configured and %d data variables %v",
			ErrMissingRequiredField, len(dataVars), dataVars)
	}
	return "", fmt.Errorf("%w: variable %q not found among %v", ErrMissingRequiredField, configured, dataVars)
}
