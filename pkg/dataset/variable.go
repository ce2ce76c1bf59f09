package dataset

import (
	"fmt"
	"slices"
)

// Variable is an immutable n-dimensional array with named dimensions.
// Values are stored in row-major order.
type Variable struct {
	dims   []string
	shape  []int
	dtype  DType
	values []float64
}

// NewVariable validates its inputs and returns a Variable. The values slice is copied.
func NewVariable(dims []string, shape []int, dtype DType, values []float64) (*Variable, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: unknown dtype %d", ErrInvalidVariable, int(dtype))
	}
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("%w: %d dims but %d sizes", ErrInvalidVariable, len(dims), len(shape))
	}
	seen := make(map[string]bool, len(dims))
	for i, d := range dims {
		if d == "" {
			return nil, fmt.Errorf("%w: empty dimension name", ErrInvalidVariable)
		}
		if seen[d] {
			return nil, fmt.Errorf("%w: repeated dimension %q", ErrInvalidVariable, d)
		}
		seen[d] = true
		if shape[i] < 0 {
			return nil, fmt.Errorf("%w: negative size for dimension %q", ErrInvalidVariable, d)
		}
	}
	if n := product(shape); n != len(values) {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrInvalidVariable, shape, n, len(values))
	}

	out := make([]float64, len(values))
	for i, v := range values {
		nv, err := normalize(dtype, v)
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return &Variable{
		dims:   slices.Clone(dims),
		shape:  slices.Clone(shape),
		dtype:  dtype,
		values: out,
	}, nil
}

// IntVar returns a one-dimensional Int variable along dim. It panics if a
// value is outside ±MaxExactInt.
func IntVar(dim string, vals ...int64) *Variable {
	values := make([]float64, len(vals))
	for i, v := range vals {
		if !ExactInt(v) {
			panic(fmt.Sprintf("dataset: IntVar value %d exceeds the exact integer range", v))
		}
		values[i] = float64(v)
	}
	return &Variable{dims: []string{dim}, shape: []int{len(vals)}, dtype: Int, values: values}
}

// FloatVar returns a one-dimensional Float variable along dim.
func FloatVar(dim string, vals ...float64) *Variable {
	return &Variable{dims: []string{dim}, shape: []int{len(vals)}, dtype: Float, values: slices.Clone(vals)}
}

// BoolVar returns a one-dimensional Bool variable along dim.
func BoolVar(dim string, vals ...bool) *Variable {
	values := make([]float64, len(vals))
	for i, v := range vals {
		if v {
			values[i] = 1
		}
	}
	return &Variable{dims: []string{dim}, shape: []int{len(vals)}, dtype: Bool, values: values}
}

// ScalarVar returns a zero-dimensional variable holding s.
func ScalarVar(s Scalar) *Variable {
	v, _ := normalize(s.DType, s.Value)
	return &Variable{dims: []string{}, shape: []int{}, dtype: s.DType, values: []float64{v}}
}

// Dims returns the dimension names in order.
func (v *Variable) Dims() []string { return slices.Clone(v.dims) }

// Shape returns the size of each dimension.
func (v *Variable) Shape() []int { return slices.Clone(v.shape) }

// DType returns the element type.
func (v *Variable) DType() DType { return v.dtype }

// Len returns the number of elements.
func (v *Variable) Len() int { return len(v.values) }

// Values returns a copy of the elements in row-major order.
func (v *Variable) Values() []float64 { return slices.Clone(v.values) }

// Size returns the size of dim and whether v has it.
func (v *Variable) Size(dim string) (int, bool) {
	if i := slices.Index(v.dims, dim); i >= 0 {
		return v.shape[i], true
	}
	return 0, false
}

// At returns the element at the given position, one index per dimension.
func (v *Variable) At(idx ...int) (float64, error) {
	if len(idx) != len(v.dims) {
		return 0, fmt.Errorf("%w: %d indices for %d dims", ErrIndexOutOfRange, len(idx), len(v.dims))
	}
	st := strides(v.shape)
	off := 0
	for i, p := range idx {
		if p < 0 || p >= v.shape[i] {
			return 0, fmt.Errorf("%w: %d for dimension %q of size %d", ErrIndexOutOfRange, p, v.dims[i], v.shape[i])
		}
		off += p * st[i]
	}
	return v.values[off], nil
}

func (v *Variable) hasDim(dim string) bool {
	return slices.Contains(v.dims, dim)
}

// isIndexOf reports whether v can serve as the index coordinate of dim.
func (v *Variable) isIndexOf(dim string) bool {
	return len(v.dims) == 1 && v.dims[0] == dim
}

// withValues returns a variable with v's layout and new values and dtype.
func (v *Variable) withValues(dtype DType, values []float64) *Variable {
	return &Variable{dims: slices.Clone(v.dims), shape: slices.Clone(v.shape), dtype: dtype, values: values}
}

// expand lays out v's values along dims/shape. Every dim of v must appear in dims;
// dims missing from v are broadcast.
func (v *Variable) expand(dims []string, shape []int) []float64 {
	n := product(shape)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	src := strides(v.shape)
	step := make([]int, len(dims))
	for i, d := range dims {
		if j := slices.Index(v.dims, d); j >= 0 {
			step[i] = src[j]
		}
	}
	idx := make([]int, len(dims))
	off := 0
	for k := 0; k < n; k++ {
		out[k] = v.values[off]
		for i := len(dims) - 1; i >= 0; i-- {
			idx[i]++
			off += step[i]
			if idx[i] < shape[i] {
				break
			}
			off -= step[i] * idx[i]
			idx[i] = 0
		}
	}
	return out
}

// transpose returns v with its dimensions reordered to dims.
func (v *Variable) transpose(dims []string) *Variable {
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i], _ = v.Size(d)
	}
	return &Variable{dims: slices.Clone(dims), shape: shape, dtype: v.dtype, values: v.expand(dims, shape)}
}

// take gathers positions along the dims in sel. Dims listed in drop must have
// exactly one position and are removed from the result.
func (v *Variable) take(sel map[string][]int, drop map[string]bool) *Variable {
	pos := make([][]int, len(v.dims))
	for i, d := range v.dims {
		if p, ok := sel[d]; ok {
			pos[i] = p
		} else {
			pos[i] = arange(v.shape[i])
		}
	}

	dims := make([]string, 0, len(v.dims))
	shape := make([]int, 0, len(v.dims))
	total := 1
	for i, d := range v.dims {
		total *= len(pos[i])
		if !drop[d] {
			dims = append(dims, d)
			shape = append(shape, len(pos[i]))
		}
	}

	out := make([]float64, 0, total)
	if total > 0 {
		st := strides(v.shape)
		idx := make([]int, len(pos))
		for {
			off := 0
			for i := range pos {
				off += pos[i][idx[i]] * st[i]
			}
			out = append(out, v.values[off])

			i := len(pos) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(pos[i]) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				break
			}
		}
	}
	return &Variable{dims: dims, shape: shape, dtype: v.dtype, values: out}
}

func strides(shape []int) []int {
	st := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= shape[i]
	}
	return st
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func arange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
