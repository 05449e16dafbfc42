package domain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultResolutionKM is the nominal Himawari IR ground resolution.
	DefaultResolutionKM = 2.0

	earthRadiusKM = 6371.0

	// kmPerDegree converts a degree-space distance to km. It holds along a
	// meridian; along a parallel it overstates the true distance by 1/cos(lat).
	kmPerDegree = 111.32
)

// DistanceMode selects how the distance between a cell and the target is measured.
type DistanceMode string

const (
	// DistanceDegree is plain Euclidean distance in lat/lon degree space.
	DistanceDegree DistanceMode = "degree"
	// DistanceHaversine is great-circle distance on a spherical Earth.
	DistanceHaversine DistanceMode = "haversine"
)

// RadiusMode selects how the radius bounds the selected cells.
type RadiusMode string

const (
	// RadiusPixel converts the radius to a square pixel window.
	RadiusPixel RadiusMode = "pixel"
	// RadiusDistance selects every cell whose distance is within the radius.
	RadiusDistance RadiusMode = "distance"
)

// ParseDistanceMode validates a distance mode string.
func ParseDistanceMode(s string) (DistanceMode, error) {
	switch m := DistanceMode(s); m {
	case DistanceDegree, DistanceHaversine:
		return m, nil
	}
	return "", fmt.Errorf("unknown distance mode %q", s)
}

// ParseRadiusMode validates a radius mode string.
func ParseRadiusMode(s string) (RadiusMode, error) {
	switch m := RadiusMode(s); m {
	case RadiusPixel, RadiusDistance:
		return m, nil
	}
	return "", fmt.Errorf("unknown radius mode %q", s)
}

// Sample is the result of one radius-bounded extraction. Valid is false when
// the selection held no finite cells; Mean is NaN in that case.
type Sample struct {
	Mean  float64
	Cells int
	Row   int
	Col   int
	Valid bool
}

// Window is a half-open index range [Row0,Row1) x [Col0,Col1).
type Window struct {
	Row0, Row1 int
	Col0, Col1 int
}

// SamplerConfig holds the selection policy for Sample.
type SamplerConfig struct {
	DistanceMode DistanceMode
	RadiusMode   RadiusMode
	ResolutionKM float64
}

// DefaultSamplerConfig matches the dashboard's 1-D Himawari behaviour.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		DistanceMode: DistanceHaversine,
		RadiusMode:   RadiusPixel,
		ResolutionKM: DefaultResolutionKM,
	}
}

// Validate reports configuration errors.
func (c SamplerConfig) Validate() error {
	if _, err := ParseDistanceMode(string(c.DistanceMode)); err != nil {
		return err
	}
	if _, err := ParseRadiusMode(string(c.RadiusMode)); err != nil {
		return err
	}
	if c.RadiusMode == RadiusPixel && (!isFinite(c.ResolutionKM) || c.ResolutionKM <= 0) {
		return fmt.Errorf("resolution must be positive, got %v", c.ResolutionKM)
	}
	return nil
}

var errNoCoordinates = errors.New("grid has no finite coordinates")

// Sample returns the mean of all finite cells within radiusKM of target.
// An empty selection is reported through Sample.Valid, never as an error.
func (c SamplerConfig) Sample(g *Grid, target Point, radiusKM float64) (Sample, error) {
	if err := c.Validate(); err != nil {
		return Sample{}, err
	}
	if g == nil {
		return Sample{}, fmt.Errorf("%w: nil grid", ErrInvalidGrid)
	}
	if !target.finite() {
		return Sample{}, fmt.Errorf("target %v is not finite", target)
	}
	if !isFinite(radiusKM) || radiusKM <= 0 {
		return Sample{}, fmt.Errorf("radius must be positive, got %v", radiusKM)
	}

	row, col, err := c.Nearest(g, target)
	if err != nil {
		return Sample{}, err
	}

	var selected []float64
	switch c.RadiusMode {
	case RadiusPixel:
		w := PixelWindow(g.Rows, g.Cols, row, col, PixelRadius(radiusKM, c.ResolutionKM))
		selected = make([]float64, 0, (w.Row1-w.Row0)*(w.Col1-w.Col0))
		for r := w.Row0; r < w.Row1; r++ {
			for cc := w.Col0; cc < w.Col1; cc++ {
				if v := g.At(r, cc); isFinite(v) {
					selected = append(selected, v)
				}
			}
		}
	case RadiusDistance:
		for r := 0; r < g.Rows; r++ {
			for cc := 0; cc < g.Cols; cc++ {
				v := g.At(r, cc)
				if !isFinite(v) {
					continue
				}
				lat, lon := g.CellCoord(r, cc)
				if c.distanceKM(lat, lon, target) <= radiusKM {
					selected = append(selected, v)
				}
			}
		}
	}

	s := Sample{Row: row, Col: col, Cells: len(selected), Mean: math.NaN()}
	if len(selected) > 0 {
		s.Mean = stat.Mean(selected, nil)
		s.Valid = true
	}
	return s, nil
}

// Nearest returns the grid cell closest to target. Ties resolve to the first
// index in scan order.
func (c SamplerConfig) Nearest(g *Grid, target Point) (row, col int, err error) {
	if g.Layout == Coords1D {
		row = nearestIndex(g.Lat, target.Lat)
		col = nearestIndex(g.Lon, target.Lon)
		if row < 0 || col < 0 {
			return 0, 0, errNoCoordinates
		}
		return row, col, nil
	}

	best := -1
	bestDist := math.Inf(1)
	for i := range g.Lat {
		lat, lon := g.Lat[i], g.Lon[i]
		if !isFinite(lat) || !isFinite(lon) {
			continue
		}
		var d float64
		if c.DistanceMode == DistanceHaversine {
			d = haversineKM(lat, lon, target.Lat, target.Lon)
		} else {
			dl, dn := lat-target.Lat, lon-target.Lon
			d = dl*dl + dn*dn
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, 0, errNoCoordinates
	}
	return best / g.Cols, best % g.Cols, nil
}

// nearestIndex is a NaN-skipping argmin of |axis[i]-v|; -1 if no finite value.
func nearestIndex(axis []float64, v float64) int {
	best := -1
	bestDiff := math.Inf(1)
	for i, a := range axis {
		if !isFinite(a) {
			continue
		}
		if d := math.Abs(a - v); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// PixelRadius converts a radius in km to a pixel count of at least 1.
// Halves round to even, so 5 km at 2 km resolution is 2 pixels.
func PixelRadius(radiusKM, resolutionKM float64) int {
	r := int(math.RoundToEven(radiusKM / resolutionKM))
	if r < 1 {
		return 1
	}
	return r
}

// PixelWindow returns the square window of half-width r around (row, col),
// clamped on each edge to [0, rows) and [0, cols).
func PixelWindow(rows, cols, row, col, r int) Window {
	return Window{
		Row0: max(0, row-r),
		Row1: min(rows, row+r+1),
		Col0: max(0, col-r),
		Col1: min(cols, col+r+1),
	}
}

func (c SamplerConfig) distanceKM(lat, lon float64, target Point) float64 {
	if c.DistanceMode == DistanceHaversine {
		return haversineKM(lat, lon, target.Lat, target.Lon)
	}
	return degreeDistanceKM(lat, lon, target.Lat, target.Lon)
}

func degreeDistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat1-lat2, lon1-lon2) * kmPerDegree
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}
