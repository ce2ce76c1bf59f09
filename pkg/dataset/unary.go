package dataset

import (
	"fmt"
	"math"
	"strings"
)

// UnaryFunc is an elementwise function applied to data variables.
type UnaryFunc struct {
	Name string
	// Eval maps one element. It may be called concurrently.
	Eval func(float64) (float64, error)
	// PreserveInt keeps Int and Bool inputs as Int instead of promoting to Float.
	PreserveInt bool
}

func pure(name string, fn func(float64) float64) UnaryFunc {
	return UnaryFunc{Name: name, Eval: func(x float64) (float64, error) { return fn(x), nil }}
}

// Builtin elementwise functions.
var (
	Sin      = pure("sin", math.Sin)
	Cos      = pure("cos", math.Cos)
	Tan      = pure("tan", math.Tan)
	Exp      = pure("exp", math.Exp)
	Log      = pure("log", math.Log)
	Sqrt     = pure("sqrt", math.Sqrt)
	Abs      = UnaryFunc{Name: "abs", Eval: func(x float64) (float64, error) { return math.Abs(x), nil }, PreserveInt: true}
	Negative = UnaryFunc{Name: "negative", Eval: func(x float64) (float64, error) { return -x, nil }, PreserveInt: true}
)

var builtinFuncs = []UnaryFunc{Sin, Cos, Tan, Exp, Log, Sqrt, Abs, Negative}

// LookupFunc returns a builtin elementwise function by name.
func LookupFunc(name string) (UnaryFunc, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, fn := range builtinFuncs {
		if fn.Name == name {
			return fn, nil
		}
	}
	return UnaryFunc{}, fmt.Errorf("%w: unknown function %q", ErrUnsupported, name)
}

// Apply maps fn over every data variable. Coordinates are unchanged and
// attributes are dropped.
func (d *Dataset) Apply(fn UnaryFunc) (*Dataset, error) {
	if fn.Eval == nil {
		return nil, fmt.Errorf("%w: function %q has no implementation", ErrUnsupported, fn.Name)
	}
	return d.mapVars(func(_ string, v *Variable) (*Variable, error) {
		dtype := Float
		if fn.PreserveInt && v.dtype != Float {
			dtype = Int
		}
		out := make([]float64, len(v.values))
		for i, x := range v.values {
			y, err := fn.Eval(x)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name, err)
			}
			if y, err = normalize(dtype, y); err != nil {
				return nil, fmt.Errorf("%s: %w", fn.Name, err)
			}
			out[i] = y
		}
		return v.withValues(dtype, out), nil
	})
}
