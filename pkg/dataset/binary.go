package dataset

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// BinaryOp is an elementwise arithmetic operator.
type BinaryOp int

// Supported operators.
const (
	OpAdd BinaryOp = iota + 1
	OpSub
	OpMul
	OpDiv
	OpPow
	OpMod
)

var opSymbols = map[BinaryOp]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpPow: "**",
	OpMod: "%",
}

var opNames = map[BinaryOp]string{
	OpAdd: "add",
	OpSub: "sub",
	OpMul: "mul",
	OpDiv: "div",
	OpPow: "pow",
	OpMod: "mod",
}

func (op BinaryOp) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Symbol returns the infix symbol of op.
func (op BinaryOp) Symbol() string { return opSymbols[op] }

// ParseBinaryOp accepts an operator name ("mul") or symbol ("*").
func ParseBinaryOp(s string) (BinaryOp, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for op, name := range opNames {
		if s == name || s == opSymbols[op] {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown operator %q", ErrUnsupported, s)
}

func (op BinaryOp) eval(a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpPow:
		return math.Pow(a, b)
	case OpMod:
		// floored modulo, sign follows the divisor
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m
	}
	return math.NaN()
}

func (op BinaryOp) resultDType(a, b DType) DType {
	if op == OpDiv {
		return Float
	}
	return promote(promote(a, b), Int)
}

// resultDTypeFor is resultDType with Int pow falling back to Float when any
// exponent is negative.
func (op BinaryOp) resultDTypeFor(a, b DType, exponents []float64) DType {
	dtype := op.resultDType(a, b)
	if op == OpPow && dtype == Int && slices.ContainsFunc(exponents, func(x float64) bool { return x < 0 }) {
		return Float
	}
	return dtype
}

// Scalar is a single typed value used as an arithmetic operand.
type Scalar struct {
	DType DType
	Value float64
}

// IntScalar returns an Int scalar. It panics if v is outside ±MaxExactInt.
func IntScalar(v int64) Scalar {
	if !ExactInt(v) {
		panic(fmt.Sprintf("dataset: IntScalar value %d exceeds the exact integer range", v))
	}
	return Scalar{DType: Int, Value: float64(v)}
}

// FloatScalar returns a Float scalar.
func FloatScalar(v float64) Scalar { return Scalar{DType: Float, Value: v} }

// BoolScalar returns a Bool scalar.
func BoolScalar(v bool) Scalar {
	if v {
		return Scalar{DType: Bool, Value: 1}
	}
	return Scalar{DType: Bool}
}

// ParseScalar parses "5" as Int, "0.5" or "nan" as Float and "true"/"false" as Bool.
func ParseScalar(s string) (Scalar, error) {
	s = strings.TrimSpace(s)
	if s == "true" || s == "false" {
		return BoolScalar(s == "true"), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if !ExactInt(i) {
			return Scalar{}, fmt.Errorf("%w: %s exceeds the exact integer range", ErrInvalidVariable, s)
		}
		return IntScalar(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Scalar{}, fmt.Errorf("%w: %q is not a number", ErrInvalidVariable, s)
	}
	return FloatScalar(f), nil
}

func (s Scalar) String() string { return formatValue(s.DType, s.Value) }

// BinaryScalar combines every data variable with s. When reflected is true
// the scalar is the left operand. Coordinates are kept; attributes are dropped.
func (d *Dataset) BinaryScalar(op BinaryOp, s Scalar, reflected bool) (*Dataset, error) {
	if _, ok := opNames[op]; !ok {
		return nil, fmt.Errorf("%w: operator %d", ErrUnsupported, int(op))
	}
	if !s.DType.Valid() {
		return nil, fmt.Errorf("%w: scalar without dtype", ErrInvalidVariable)
	}
	return d.mapVars(func(_ string, v *Variable) (*Variable, error) {
		exponents := []float64{s.Value}
		if reflected {
			exponents = v.values
		}
		dtype := op.resultDTypeFor(v.dtype, s.DType, exponents)
		out := make([]float64, len(v.values))
		for i, x := range v.values {
			a, b := x, s.Value
			if reflected {
				a, b = b, a
			}
			r, err := checked(dtype, op.eval(a, b), op)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return v.withValues(dtype, out), nil
	})
}

// BinaryDataset combines d with other. Index coordinates on shared dimensions
// are inner-joined by label; shared dimensions without index coordinates must
// have equal sizes. Only data variables present in both operands survive, and
// each pair is broadcast by dimension name. When reflected is true other is
// the left operand.
func (d *Dataset) BinaryDataset(op BinaryOp, other *Dataset, reflected bool) (*Dataset, error) {
	if _, ok := opNames[op]; !ok {
		return nil, fmt.Errorf("%w: operator %d", ErrUnsupported, int(op))
	}
	if other == nil {
		other = Empty()
	}
	left, right := d, other
	if reflected {
		left, right = other, d
	}
	left, right, err := align(left, right)
	if err != nil {
		return nil, err
	}

	sizes := left.Sizes()
	for dim, s := range right.Sizes() {
		sizes[dim] = s
	}

	vars := make([]entry, 0, len(left.vars))
	for _, le := range left.vars {
		rv, ok := right.DataVar(le.name)
		if !ok {
			continue
		}
		nv, err := combine(op, le.v, rv, sizes)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", le.name, err)
		}
		vars = append(vars, entry{name: le.name, v: nv})
	}

	coords := slices.Clone(left.coords)
	for _, re := range right.coords {
		if _, ok := left.Coord(re.name); !ok {
			if _, clash := left.DataVar(re.name); !clash {
				coords = append(coords, re)
			}
		}
	}
	return build(vars, coords, nil)
}

func combine(op BinaryOp, a, b *Variable, sizes map[string]int) (*Variable, error) {
	dims := slices.Clone(a.dims)
	for _, dim := range b.dims {
		if !slices.Contains(dims, dim) {
			dims = append(dims, dim)
		}
	}
	shape := make([]int, len(dims))
	for i, dim := range dims {
		shape[i] = sizes[dim]
	}
	av, bv := a.expand(dims, shape), b.expand(dims, shape)
	dtype := op.resultDTypeFor(a.dtype, b.dtype, bv)
	out := make([]float64, len(av))
	for i := range av {
		r, err := checked(dtype, op.eval(av[i], bv[i]), op)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return &Variable{dims: dims, shape: shape, dtype: dtype, values: out}, nil
}

// align inner-joins the index coordinates that left and right share.
func align(left, right *Dataset) (*Dataset, *Dataset, error) {
	ls, rs := left.Sizes(), right.Sizes()
	lsel := make(map[string][]int)
	rsel := make(map[string][]int)

	shared := make([]string, 0)
	for _, dim := range slices.Sorted(maps.Keys(ls)) {
		if _, ok := rs[dim]; ok {
			shared = append(shared, dim)
		}
	}
	for _, dim := range shared {
		li, lok := left.indexCoord(dim)
		ri, rok := right.indexCoord(dim)
		if !lok || !rok {
			if ls[dim] != rs[dim] {
				return nil, nil, fmt.Errorf("%w: dimension %q has size %d and %d", ErrShapeMismatch, dim, ls[dim], rs[dim])
			}
			continue
		}
		if slices.Equal(li.values, ri.values) {
			continue
		}
		first := make(map[float64]int, len(ri.values))
		for i, label := range ri.values {
			if _, seen := first[label]; !seen {
				first[label] = i
			}
		}
		var lp, rp []int
		for i, label := range li.values {
			if j, ok := first[label]; ok {
				lp = append(lp, i)
				rp = append(rp, j)
			}
		}
		if lp == nil {
			lp, rp = []int{}, []int{}
		}
		lsel[dim], rsel[dim] = lp, rp
	}
	if len(lsel) == 0 {
		return left, right, nil
	}

	l, err := left.take(lsel, nil)
	if err != nil {
		return nil, nil, err
	}
	r, err := right.take(rsel, nil)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// checked rejects results that cannot be represented in an Int dtype.
func checked(dtype DType, v float64, op BinaryOp) (float64, error) {
	if dtype != Int {
		return v, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: integer %s produced %v", ErrUnsupported, op, v)
	}
	if math.Abs(v) > MaxExactInt {
		return 0, fmt.Errorf("%w: integer %s overflowed to %.0f", ErrUnsupported, op, v)
	}
	return v, nil
}
