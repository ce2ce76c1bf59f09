package dataset

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Accumulation names a running transform along one dimension.
type Accumulation int

// Supported accumulations.
const (
	CumSum Accumulation = iota + 1
	CumProd
)

func (a Accumulation) String() string {
	switch a {
	case CumSum:
		return "cumsum"
	case CumProd:
		return "cumprod"
	default:
		return fmt.Sprintf("accumulation(%d)", int(a))
	}
}

// ParseAccumulation returns the accumulation with the given name.
func ParseAccumulation(name string) (Accumulation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cumsum":
		return CumSum, nil
	case "cumprod":
		return CumProd, nil
	default:
		return 0, fmt.Errorf("%w: unknown accumulation %q", ErrUnsupported, name)
	}
}

// AccumulateOptions configures Accumulate. The zero value skips NaN, which
// then contributes the identity element.
type AccumulateOptions struct {
	KeepNaN bool
}

// Accumulate replaces values of every data variable with the running
// accumulation along dim. An empty dim accumulates along each of a variable's
// dimensions in turn. Variables without dim, and coordinates, are unchanged.
// Attributes are dropped.
func (d *Dataset) Accumulate(kind Accumulation, dim string, opts AccumulateOptions) (*Dataset, error) {
	if kind != CumSum && kind != CumProd {
		return nil, fmt.Errorf("%w: accumulation %d", ErrUnsupported, int(kind))
	}
	if dim != "" && !d.HasDim(dim) {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrMissingDimension, dim, d.Dims())
	}
	return d.mapVars(func(_ string, v *Variable) (*Variable, error) {
		if dim != "" {
			if !v.hasDim(dim) {
				return v, nil
			}
			return accumulateVariable(v, dim, kind, opts.KeepNaN), nil
		}
		out := v
		for _, vd := range v.dims {
			out = accumulateVariable(out, vd, kind, opts.KeepNaN)
		}
		if len(v.dims) == 0 {
			out = v.withValues(promote(v.dtype, Int), slices.Clone(v.values))
		}
		return out, nil
	})
}

func accumulateVariable(v *Variable, dim string, kind Accumulation, keepNaN bool) *Variable {
	others := slices.DeleteFunc(slices.Clone(v.dims), func(d string) bool { return d == dim })
	order := append(others, dim)
	moved := v.transpose(order)

	run, _ := v.Size(dim)
	vals := moved.values
	identity := 0.0
	if kind == CumProd {
		identity = 1
	}
	for start := 0; start+run <= len(vals) && run > 0; start += run {
		acc := identity
		for i := start; i < start+run; i++ {
			x := vals[i]
			if math.IsNaN(x) && !keepNaN {
				x = identity
			}
			if kind == CumSum {
				acc += x
			} else {
				acc *= x
			}
			vals[i] = acc
		}
	}
	moved.dtype = promote(v.dtype, Int)
	return moved.transpose(v.dims)
}
