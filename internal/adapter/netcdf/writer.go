package netcdf

import (
	"errors"
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// GridFile describes a single-field classic NetCDF file. Set either the 1-D
// axes (Lat, Lon) or the 2-D meshes (Lat2D, Lon2D).
type GridFile struct {
	Variable string
	Units    string

	// FillValue replaces NaN cells on write; nil writes NaN as is.
	FillValue *float32

	// TimeDim adds a leading time dimension of length 1.
	TimeDim bool

	Values       [][]float64
	Lat, Lon     []float64
	Lat2D, Lon2D [][]float64
}

// WriteGridFile writes f to path.
func WriteGridFile(path string, f GridFile) (err error) {
	if f.Variable == "" {
		return errors.New("grid file needs a variable name")
	}
	if len(f.Values) == 0 {
		return errors.New("grid file needs values")
	}

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := cw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	dims := []string{"latitude", "longitude"}
	if f.Lat2D != nil {
		dims = []string{"y", "x"}
		if err := addVar(cw, "latitude", matrix32(f.Lat2D, nil), dims, "units", "degrees_north"); err != nil {
			return err
		}
		if err := addVar(cw, "longitude", matrix32(f.Lon2D, nil), dims, "units", "degrees_east"); err != nil {
			return err
		}
	} else {
		if err := addVar(cw, "latitude", vector32(f.Lat), dims[:1], "units", "degrees_north"); err != nil {
			return err
		}
		if err := addVar(cw, "longitude", vector32(f.Lon), dims[1:], "units", "degrees_east"); err != nil {
			return err
		}
	}

	var attrs []any
	if f.Units != "" {
		attrs = append(attrs, "units", f.Units)
	}
	if f.FillValue != nil {
		attrs = append(attrs, "_FillValue", *f.FillValue)
	}

	var values any = matrix32(f.Values, f.FillValue)
	if f.TimeDim {
		if err := addVar(cw, "time", []int32{0}, []string{"time"}, "units", "minutes since scan start"); err != nil {
			return err
		}
		values = [][][]float32{matrix32(f.Values, f.FillValue)}
		dims = append([]string{"time"}, dims...)
	}
	return addVar(cw, f.Variable, values, dims, attrs...)
}

// addVar adds one variable; kv alternates attribute names and values.
func addVar(cw *cdf.CDFWriter, name string, values any, dims []string, kv ...any) error {
	keys := make([]string, 0, len(kv)/2)
	vals := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k := kv[i].(string)
		keys = append(keys, k)
		vals[k] = kv[i+1]
	}
	attrs, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return fmt.Errorf("attributes of %s: %w", name, err)
	}
	if err := cw.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: attrs}); err != nil {
		return fmt.Errorf("add variable %s: %w", name, err)
	}
	return nil
}

func vector32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func matrix32(m [][]float64, fill *float32) [][]float32 {
	out := make([][]float32, len(m))
	for i, row := range m {
		out[i] = vector32(row)
		if fill == nil {
			continue
		}
		for j, x := range row {
			if math.IsNaN(x) {
				out[i][j] = *fill
			}
		}
	}
	return out
}
