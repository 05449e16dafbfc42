package domain

import (
	"fmt"
	"math"
	"strings"
)

// kelvinOffset converts between Kelvin and degrees Celsius.
const kelvinOffset = 273.15

// Unit is the temperature unit of a grid's scalar values.
type Unit string

const (
	Kelvin  Unit = "K"
	Celsius Unit = "C"
)

// ParseUnit maps a NetCDF-style units string to a Unit.
// Returns false when the string is not a recognized temperature unit.
func ParseUnit(s string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "k", "kelvin", "kelvins", "degk", "deg_k":
		return Kelvin, true
	case "c", "celsius", "degc", "deg_c", "degree_celsius", "degrees_celsius", "°c":
		return Celsius, true
	default:
		return "", false
	}
}

// KelvinToCelsius subtracts 273.15.
func KelvinToCelsius(k float64) float64 { return k - kelvinOffset }

// CoordLayout describes how a grid's latitude/longitude arrays are shaped.
type CoordLayout int

const (
	// Coords1D: Lat has one value per row, Lon one value per column.
	Coords1D CoordLayout = iota + 1
	// Coords2D: Lat and Lon each have one value per cell, row-major.
	Coords2D
)

func (l CoordLayout) String() string {
	switch l {
	case Coords1D:
		return "1d"
	case Coords2D:
		return "2d"
	default:
		return "unknown"
	}
}

// Point is a WGS-84 latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) finite() bool {
	return isFinite(p.Lat) && isFinite(p.Lon)
}

// Grid is a 2-D scalar field (row-major) with its coordinate arrays.
type Grid struct {
	Rows   int
	Cols   int
	Values []float64
	Lat    []float64
	Lon    []float64
	Layout CoordLayout
	Unit   Unit
}

// NewGrid validates shapes and returns a grid over the given flat values.
// The slices are retained, not copied.
func NewGrid(rows, cols int, values, lat, lon []float64, layout CoordLayout, unit Unit) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: shape %dx%d", ErrInvalidGrid, rows, cols)
	}
	if len(values) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for shape %dx%d", ErrInvalidGrid, len(values), rows, cols)
	}
	switch layout {
	case Coords1D:
		if len(lat) != rows || len(lon) != cols {
			return nil, fmt.Errorf("%w: 1-D coordinates %d/%d do not match shape %dx%d",
				ErrInvalidGrid, len(lat), len(lon), rows, cols)
		}
	case Coords2D:
		if len(lat) != rows*cols || len(lon) != rows*cols {
			return nil, fmt.Errorf("%w: 2-D coordinates %d/%d do not match shape %dx%d",
				ErrInvalidGrid, len(lat), len(lon), rows, cols)
		}
	default:
		return nil, fmt.Errorf("%w: unknown coordinate layout %d", ErrInvalidGrid, layout)
	}
	if unit == "" {
		unit = Celsius
	}
	return &Grid{
		Rows:   rows,
		Cols:   cols,
		Values: values,
		Lat:    lat,
		Lon:    lon,
		Layout: layout,
		Unit:   unit,
	}, nil
}

// NewGrid1D builds a grid from nested rows and separable lat/lon axes.
func NewGrid1D(values [][]float64, lat, lon []float64, unit Unit) (*Grid, error) {
	flat, rows, cols, err := flatten2D(values)
	if err != nil {
		return nil, err
	}
	return NewGrid(rows, cols, flat, lat, lon, Coords1D, unit)
}

// NewGrid2D builds a grid whose lat/lon are given per cell.
func NewGrid2D(values, lat, lon [][]float64, unit Unit) (*Grid, error) {
	flat, rows, cols, err := flatten2D(values)
	if err != nil {
		return nil, err
	}
	flatLat, lr, lc, err := flatten2D(lat)
	if err != nil {
		return nil, err
	}
	flatLon, nr, nc, err := flatten2D(lon)
	if err != nil {
		return nil, err
	}
	if lr != rows || lc != cols || nr != rows || nc != cols {
		return nil, fmt.Errorf("%w: coordinate mesh does not match values %dx%d", ErrInvalidGrid, rows, cols)
	}
	return NewGrid(rows, cols, flat, flatLat, flatLon, Coords2D, unit)
}

func flatten2D(rows [][]float64) ([]float64, int, int, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: empty array", ErrInvalidGrid)
	}
	cols := len(rows[0])
	flat := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, 0, 0, fmt.Errorf("%w: ragged row %d (%d != %d)", ErrInvalidGrid, i, len(r), cols)
		}
		flat = append(flat, r...)
	}
	return flat, len(rows), cols, nil
}

// At returns the value at (row, col).
func (g *Grid) At(row, col int) float64 { return g.Values[row*g.Cols+col] }

// CellCoord returns the latitude and longitude of (row, col).
func (g *Grid) CellCoord(row, col int) (lat, lon float64) {
	if g.Layout == Coords1D {
		return g.Lat[row], g.Lon[col]
	}
	i := row*g.Cols + col
	return g.Lat[i], g.Lon[i]
}

// ToCelsius returns a grid in degrees Celsius. Celsius grids are returned as is;
// Kelvin grids are copied and converted.
func (g *Grid) ToCelsius() *Grid {
	if g.Unit != Kelvin {
		return g
	}
	out := *g
	out.Values = make([]float64, len(g.Values))
	for i, v := range g.Values {
		out.Values[i] = KelvinToCelsius(v)
	}
	out.Unit = Celsius
	return &out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
