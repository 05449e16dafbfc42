// Package netcdf loads Himawari TBB grids from NetCDF files.
package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

var (
	latNames = []string{"latitude", "lat"}
	lonNames = []string{"longitude", "lon"}
)

// Reader implements domain.GridSource over NetCDF-3 and NetCDF-4 files.
type Reader struct {
	variable    string
	defaultUnit domain.Unit
	logger      *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithVariable sets the preferred scalar variable name.
func WithVariable(name string) Option {
	return func(r *Reader) { r.variable = name }
}

// WithDefaultUnit sets the unit assumed when a variable has no units attribute.
func WithDefaultUnit(u domain.Unit) Option {
	return func(r *Reader) {
		if u != "" {
			r.defaultUnit = u
		}
	}
}

// NewReader creates a NetCDF grid reader. Without options it picks the sole
// data variable and assumes Kelvin.
func NewReader(logger *slog.Logger, opts ...Option) *Reader {
	r := &Reader{defaultUnit: domain.Kelvin, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load opens path and decodes its scalar field and coordinates into a Grid.
func (r *Reader) Load(ctx context.Context, path string) (*domain.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrSourceUnreadable, path, err)
	}
	defer nc.Close()

	g, err := r.decode(nc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.logger.Debug("grid loaded",
		"path", path,
		"rows", g.Rows,
		"cols", g.Cols,
		"layout", g.Layout.String(),
		"unit", string(g.Unit),
	)
	return g, nil
}

func (r *Reader) decode(nc api.Group) (*domain.Grid, error) {
	names := nc.ListVariables()
	latName, ok := findName(names, latNames)
	if !ok {
		return nil, fmt.Errorf("%w: no latitude variable (tried %v)", domain.ErrMissingRequiredField, latNames)
	}
	lonName, ok := findName(names, lonNames)
	if !ok {
		return nil, fmt.Errorf("%w: no longitude variable (tried %v)", domain.ErrMissingRequiredField, lonNames)
	}

	varName, err := domain.ResolveScalarVariable(r.variable, dataVariables(nc, names, latName, lonName))
	if err != nil {
		return nil, err
	}

	v, err := nc.GetVariable(varName)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrSourceUnreadable, varName, err)
	}
	values, shape, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnreadable, varName, err)
	}
	shape = squeeze(shape, 2)
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: %s has shape %v, want a single 2-D field", domain.ErrSourceUnreadable, varName, shape)
	}
	unpack(values, v.Attributes)
	unit := r.unitOf(v.Attributes)

	lat, latShape, err := readCoord(nc, latName)
	if err != nil {
		return nil, err
	}
	lon, lonShape, err := readCoord(nc, lonName)
	if err != nil {
		return nil, err
	}

	layout := domain.Coords1D
	if len(latShape) != 1 || len(lonShape) != 1 {
		layout = domain.Coords2D
	}
	g, err := domain.NewGrid(shape[0], shape[1], values, lat, lon, layout, unit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMissingRequiredField, err)
	}
	return g, nil
}

// dataVariables lists candidate scalar fields: every variable with at least two
// dimensions that is not a coordinate.
func dataVariables(nc api.Group, names []string, latName, lonName string) []string {
	var out []string
	for _, name := range names {
		if name == latName || name == lonName {
			continue
		}
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			continue
		}
		dims := vg.Dimensions()
		if len(dims) < 2 {
			continue
		}
		out = append(out, name)
	}
	return out
}

func readCoord(nc api.Group, name string) ([]float64, []int, error) {
	v, err := nc.GetVariable(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", domain.ErrSourceUnreadable, name, err)
	}
	values, shape, err := flatten(v.Values)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnreadable, name, err)
	}
	shape = squeeze(shape, 2)
	if len(shape) > 2 {
		return nil, nil, fmt.Errorf("%w: coordinate %s has shape %v", domain.ErrMissingRequiredField, name, shape)
	}
	unpack(values, v.Attributes)
	return values, shape, nil
}

func (r *Reader) unitOf(attrs api.AttributeMap) domain.Unit {
	if attrs == nil {
		return r.defaultUnit
	}
	raw, ok := attrs.Get("units")
	if !ok {
		return r.defaultUnit
	}
	s, ok := raw.(string)
	if !ok {
		return r.defaultUnit
	}
	if u, ok := domain.ParseUnit(s); ok {
		return u
	}
	r.logger.Warn("unrecognized units attribute, using default", "units", s, "default", string(r.defaultUnit))
	return r.defaultUnit
}

// unpack masks fill values to NaN and applies scale_factor/add_offset in place.
func unpack(values []float64, attrs api.AttributeMap) {
	if attrs == nil {
		return
	}
	fills := append(attrFloats(attrs, "_FillValue"), attrFloats(attrs, "missing_value")...)
	scale, offset := 1.0, 0.0
	if s := attrFloats(attrs, "scale_factor"); len(s) > 0 {
		scale = s[0]
	}
	if o := attrFloats(attrs, "add_offset"); len(o) > 0 {
		offset = o[0]
	}

	for i, v := range values {
		for _, f := range fills {
			if v == f {
				v = math.NaN()
				break
			}
		}
		values[i] = v*scale + offset
	}
}

// attrFloats returns a numeric attribute as float64s, whether stored as a
// scalar or a slice.
func attrFloats(attrs api.AttributeMap, key string) []float64 {
	raw, ok := attrs.Get(key)
	if !ok {
		return nil
	}
	out, _, err := flatten(raw)
	if err != nil {
		return nil
	}
	return out
}

// flatten converts a (possibly nested) numeric slice or scalar to row-major
// float64 values and its shape.
func flatten(v any) ([]float64, []int, error) {
	var out []float64
	var shape []int

	var walk func(rv reflect.Value, depth int) error
	walk = func(rv reflect.Value, depth int) error {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			n := rv.Len()
			switch {
			case depth == len(shape):
				shape = append(shape, n)
			case shape[depth] != n:
				return fmt.Errorf("ragged array at depth %d: %d != %d", depth, n, shape[depth])
			}
			for i := range n {
				if err := walk(rv.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		case reflect.Float32, reflect.Float64:
			out = append(out, rv.Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out = append(out, float64(rv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out = append(out, float64(rv.Uint()))
		case reflect.Interface, reflect.Pointer:
			return walk(rv.Elem(), depth)
		case reflect.Invalid:
			return fmt.Errorf("no values")
		default:
			return fmt.Errorf("unsupported element type %s", rv.Type())
		}
		if depth != len(shape) {
			return fmt.Errorf("ragged array at depth %d", depth)
		}
		return nil
	}

	if err := walk(reflect.ValueOf(v), 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

// squeeze drops leading length-1 dimensions while more than keep remain.
func squeeze(shape []int, keep int) []int {
	for len(shape) > keep && shape[0] == 1 {
		shape = shape[1:]
	}
	return shape
}

func findName(names, candidates []string) (string, bool) {
	for _, c := range candidates {
		for _, n := range names {
			if strings.EqualFold(n, c) {
				return n, true
			}
		}
	}
	return "", false
}
