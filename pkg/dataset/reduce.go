package dataset

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Reduction names an aggregation that collapses dimensions.
type Reduction int

// Supported reductions.
const (
	ReduceAny Reduction = iota + 1
	ReduceAll
	ReduceSum
	ReduceProd
	ReduceMean
	ReduceMedian
	ReduceMin
	ReduceMax
	ReduceStd
	ReduceVar
	ReduceCount
)

var reductionNames = map[Reduction]string{
	ReduceAny:    "any",
	ReduceAll:    "all",
	ReduceSum:    "sum",
	ReduceProd:   "prod",
	ReduceMean:   "mean",
	ReduceMedian: "median",
	ReduceMin:    "min",
	ReduceMax:    "max",
	ReduceStd:    "std",
	ReduceVar:    "var",
	ReduceCount:  "count",
}

func (r Reduction) String() string {
	if s, ok := reductionNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reduction(%d)", int(r))
}

// ParseReduction returns the reduction with the given name.
func ParseReduction(name string) (Reduction, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for r, s := range reductionNames {
		if s == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown reduction %q", ErrUnsupported, name)
}

// ReduceOptions configures Reduce. The zero value reduces over every
// dimension and skips NaN.
type ReduceOptions struct {
	// Dims to collapse. Empty means all.
	Dims []string
	// KeepNaN propagates NaN instead of skipping it.
	KeepNaN bool
}

// Reduce collapses the requested dimensions of every data variable.
// Variables that have none of the dimensions are kept unchanged, except
// zero-dimensional variables which are always reduced. Coordinates along a
// reduced dimension are dropped. Attributes are dropped.
func (d *Dataset) Reduce(kind Reduction, opts ReduceOptions) (*Dataset, error) {
	if _, ok := reductionNames[kind]; !ok {
		return nil, fmt.Errorf("%w: reduction %d", ErrUnsupported, int(kind))
	}
	sizes := d.Sizes()
	for _, dim := range opts.Dims {
		if _, ok := sizes[dim]; !ok {
			return nil, fmt.Errorf("%w: %q (have %v)", ErrMissingDimension, dim, d.Dims())
		}
	}
	reduced := func(dim string) bool {
		return len(opts.Dims) == 0 || slices.Contains(opts.Dims, dim)
	}

	vars := make([]entry, 0, len(d.vars))
	for _, e := range d.vars {
		var rd []string
		for _, dim := range e.v.dims {
			if reduced(dim) {
				rd = append(rd, dim)
			}
		}
		if len(rd) == 0 && len(e.v.dims) > 0 {
			vars = append(vars, e)
			continue
		}
		nv, err := reduceVariable(e.v, rd, kind, opts.KeepNaN)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", e.name, err)
		}
		vars = append(vars, entry{name: e.name, v: nv})
	}

	coords := make([]entry, 0, len(d.coords))
	for _, e := range d.coords {
		if slices.ContainsFunc(e.v.dims, reduced) {
			continue
		}
		coords = append(coords, e)
	}
	return build(vars, coords, nil)
}

// reduceVariable collapses dims of v. Kept dimensions keep their relative order.
func reduceVariable(v *Variable, dims []string, kind Reduction, keepNaN bool) (*Variable, error) {
	var keptDims []string
	var keptShape []int
	var redShape []int
	for i, d := range v.dims {
		if slices.Contains(dims, d) {
			redShape = append(redShape, v.shape[i])
		} else {
			keptDims = append(keptDims, d)
			keptShape = append(keptShape, v.shape[i])
		}
	}
	order := append(slices.Clone(keptDims), dims...)
	shape := append(slices.Clone(keptShape), redShape...)
	laid := v.expand(order, shape)

	block := product(redShape)
	n := product(keptShape)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		r, err := reduceValues(kind, laid[k*block:(k+1)*block], keepNaN)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	if keptDims == nil {
		keptDims, keptShape = []string{}, []int{}
	}
	return &Variable{dims: keptDims, shape: keptShape, dtype: reduceDType(kind, v.dtype), values: out}, nil
}

func reduceDType(kind Reduction, in DType) DType {
	switch kind {
	case ReduceAny, ReduceAll:
		return Bool
	case ReduceMean, ReduceMedian, ReduceStd, ReduceVar:
		return Float
	case ReduceSum, ReduceProd:
		return promote(in, Int)
	case ReduceCount:
		return Int
	default:
		return in
	}
}

func reduceValues(kind Reduction, vals []float64, keepNaN bool) (float64, error) {
	switch kind {
	case ReduceAny:
		for _, v := range vals {
			if v != 0 {
				return 1, nil
			}
		}
		return 0, nil
	case ReduceAll:
		for _, v := range vals {
			if v == 0 {
				return 0, nil
			}
		}
		return 1, nil
	case ReduceCount:
		n := 0
		for _, v := range vals {
			if !math.IsNaN(v) {
				n++
			}
		}
		return float64(n), nil
	}

	clean, hasNaN := dropNaN(vals)
	if hasNaN && keepNaN {
		return math.NaN(), nil
	}

	switch kind {
	case ReduceSum:
		s := 0.0
		for _, v := range clean {
			s += v
		}
		return s, nil
	case ReduceProd:
		p := 1.0
		for _, v := range clean {
			p *= v
		}
		return p, nil
	case ReduceMean:
		return mean(clean), nil
	case ReduceMedian:
		if len(clean) == 0 {
			return math.NaN(), nil
		}
		sorted := slices.Clone(clean)
		slices.Sort(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid], nil
		}
		return (sorted[mid-1] + sorted[mid]) / 2, nil
	case ReduceMin, ReduceMax:
		if len(clean) == 0 {
			if len(vals) > 0 {
				return math.NaN(), nil
			}
			return 0, fmt.Errorf("%w: %s of an empty array", ErrUnsupported, kind)
		}
		if kind == ReduceMin {
			return slices.Min(clean), nil
		}
		return slices.Max(clean), nil
	case ReduceVar, ReduceStd:
		if len(clean) == 0 {
			return math.NaN(), nil
		}
		m := mean(clean)
		ss := 0.0
		for _, v := range clean {
			ss += (v - m) * (v - m)
		}
		variance := ss / float64(len(clean))
		if kind == ReduceStd {
			return math.Sqrt(variance), nil
		}
		return variance, nil
	}
	return 0, fmt.Errorf("%w: reduction %s", ErrUnsupported, kind)
}

func dropNaN(vals []float64) ([]float64, bool) {
	if !slices.ContainsFunc(vals, math.IsNaN) {
		return vals, false
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out, true
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s / float64(len(vals))
}
