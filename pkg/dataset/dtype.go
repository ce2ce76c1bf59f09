package dataset

import (
	"fmt"
	"math"
	"strings"
)

// DType is the element type of a Variable. Values are always held as float64;
// the dtype decides promotion, rendering and identity. Int values are limited
// to ±MaxExactInt, the range float64 represents exactly.
type DType int

// MaxExactInt is the largest magnitude an Int value may have.
const MaxExactInt = 1<<53 - 1

// ExactInt reports whether v fits the Int range without rounding.
func ExactInt(v int64) bool {
	return v >= -MaxExactInt && v <= MaxExactInt
}

// Supported element types, ordered by promotion rank.
const (
	Bool DType = iota + 1
	Int
	Float
)

// String returns the numpy-style name of the dtype.
func (t DType) String() string {
	switch t {
	case Bool:
		return "bool"
	case Int:
		return "int64"
	case Float:
		return "float64"
	default:
		return fmt.Sprintf("dtype(%d)", int(t))
	}
}

// Valid reports whether t is one of the supported dtypes.
func (t DType) Valid() bool {
	return t >= Bool && t <= Float
}

// ParseDType parses a dtype name as written in tree documents.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool":
		return Bool, nil
	case "int", "int64":
		return Int, nil
	case "float", "float64":
		return Float, nil
	default:
		return 0, fmt.Errorf("%w: unknown dtype %q", ErrInvalidVariable, s)
	}
}

// promote returns the common dtype of a and b.
func promote(a, b DType) DType {
	if a > b {
		return a
	}
	return b
}

// normalize checks that v is representable in dtype t and returns its canonical form.
func normalize(t DType, v float64) (float64, error) {
	switch t {
	case Bool:
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%w: NaN is not a bool", ErrInvalidVariable)
		}
		if v != 0 {
			return 1, nil
		}
		return 0, nil
	case Int:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidVariable, v)
		}
		if math.Abs(v) > MaxExactInt {
			return 0, fmt.Errorf("%w: %.0f exceeds the exact integer range", ErrInvalidVariable, v)
		}
		return v, nil
	case Float:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidVariable, t)
	}
}
