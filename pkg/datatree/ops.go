package datatree

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/datatree/pkg/dataset"
)

// Op is a dataset operation that Map applies to every node of a tree.
// The set of operations is closed: Select, Reduce, Cumulative, Unary,
// Binary and Func.
type Op interface {
	String() string
	// prepare binds the operation to the tree it will run over.
	prepare(t *Tree) (nodeFunc, error)
}

// nodeFunc transforms the payload of one node.
type nodeFunc func(id NodeID, ds *dataset.Dataset) (*dataset.Dataset, error)

// Select picks positions along named dimensions (Dataset.Isel).
type Select struct {
	Indexers map[string]dataset.Indexer
	Missing  dataset.MissingDims
}

func (o Select) String() string {
	parts := make([]string, 0, len(o.Indexers))
	for _, dim := range slices.Sorted(maps.Keys(o.Indexers)) {
		parts = append(parts, fmt.Sprintf("%s=%s", dim, o.Indexers[dim]))
	}
	return fmt.Sprintf("isel(%s)", strings.Join(parts, ", "))
}

func (o Select) prepare(*Tree) (nodeFunc, error) {
	return func(_ NodeID, ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Isel(o.Indexers, o.Missing)
	}, nil
}

// Reduce collapses dimensions with an aggregation (Dataset.Reduce).
// Empty Dims reduces over every dimension.
type Reduce struct {
	Kind    dataset.Reduction
	Dims    []string
	KeepNaN bool
}

func (o Reduce) String() string {
	if len(o.Dims) == 0 {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", o.Kind, strings.Join(o.Dims, ", "))
}

func (o Reduce) prepare(*Tree) (nodeFunc, error) {
	opts := dataset.ReduceOptions{Dims: o.Dims, KeepNaN: o.KeepNaN}
	return func(_ NodeID, ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Reduce(o.Kind, opts)
	}, nil
}

// Cumulative replaces values by their running accumulation along Dim
// (Dataset.Accumulate). An empty Dim accumulates along every dimension.
type Cumulative struct {
	Kind    dataset.Accumulation
	Dim     string
	KeepNaN bool
}

func (o Cumulative) String() string {
	if o.Dim == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Dim)
}

func (o Cumulative) prepare(*Tree) (nodeFunc, error) {
	opts := dataset.AccumulateOptions{KeepNaN: o.KeepNaN}
	return func(_ NodeID, ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Accumulate(o.Kind, o.Dim, opts)
	}, nil
}

// Unary applies an elementwise function (Dataset.Apply).
type Unary struct {
	Func dataset.UnaryFunc
}

func (o Unary) String() string { return o.Func.Name }

func (o Unary) prepare(*Tree) (nodeFunc, error) {
	return func(_ NodeID, ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Apply(o.Func)
	}, nil
}

// Operand is the right-hand side of a Binary operation: a ScalarOperand,
// DatasetOperand or TreeOperand.
type Operand interface {
	String() string
	operand()
}

// ScalarOperand broadcasts one value to every node.
type ScalarOperand struct {
	Value dataset.Scalar
}

// DatasetOperand combines one dataset with every node.
type DatasetOperand struct {
	Value *dataset.Dataset
}

// TreeOperand pairs every node with the node at the same position of another
// tree of identical topology.
type TreeOperand struct {
	Value *Tree
}

func (ScalarOperand) operand()  {}
func (DatasetOperand) operand() {}
func (TreeOperand) operand()    {}

func (o ScalarOperand) String() string  { return o.Value.String() }
func (o DatasetOperand) String() string { return "dataset" }
func (o TreeOperand) String() string    { return "tree" }

// Scalar wraps s as an Operand.
func Scalar(s dataset.Scalar) Operand { return ScalarOperand{Value: s} }

// Binary combines every payload with an operand (Dataset.BinaryScalar,
// Dataset.BinaryDataset). When Reflected is set the operand is the left side.
type Binary struct {
	Op        dataset.BinaryOp
	Operand   Operand
	Reflected bool
}

func (o Binary) String() string {
	operand := "<nil>"
	if o.Operand != nil {
		operand = o.Operand.String()
	}
	if o.Reflected {
		return fmt.Sprintf("r%s(%s)", o.Op, operand)
	}
	return fmt.Sprintf("%s(%s)", o.Op, operand)
}

func (o Binary) prepare(t *Tree) (nodeFunc, error) {
	switch rhs := o.Operand.(type) {
	case ScalarOperand:
		return func(_ NodeID, ds *dataset.Dataset) (*dataset.Dataset, error) {
			return ds.BinaryScalar(o.Op, rhs.Value, o.Reflected)
		}, nil
	case DatasetOperand:
		return func(_ NodeID, ds *dataset.Dataset) (*dataset.Dataset, error) {
			return ds.BinaryDataset(o.Op, rhs.Value, o.Reflected)
		}, nil
	case TreeOperand:
		if rhs.Value == nil {
			return nil, fmt.Errorf("%s: nil tree operand", o)
		}
		if err := Isomorphic(t, rhs.Value, false); err != nil {
			return nil, err
		}
		// Pre-order positions correspond once the topologies match.
		left, right := t.preorder(t.Root()), rhs.Value.preorder(rhs.Value.Root())
		paired := make(map[NodeID]*dataset.Dataset, len(left))
		for i, id := range left {
			paired[id] = rhs.Value.Data(right[i])
		}
		return func(id NodeID, ds *dataset.Dataset) (*dataset.Dataset, error) {
			return ds.BinaryDataset(o.Op, paired[id], o.Reflected)
		}, nil
	default:
		return nil, fmt.Errorf("%s: unsupported operand %T", o, o.Operand)
	}
}

// Func applies an arbitrary dataset function to every payload. A nil result
// leaves the node without a payload.
type Func struct {
	Name string
	Fn   func(*dataset.Dataset) (*dataset.Dataset, error)
}

func (o Func) String() string {
	if o.Name == "" {
		return "func"
	}
	return o.Name
}

func (o Func) prepare(*Tree) (nodeFunc, error) {
	if o.Fn == nil {
		return nil, fmt.Errorf("%s: %w: no function", o, dataset.ErrUnsupported)
	}
	return func(_ NodeID, ds *dataset.Dataset) (*dataset.Dataset, error) {
		return o.Fn(ds)
	}, nil
}

// Isel selects by position on every node.
func (t *Tree) Isel(indexers map[string]dataset.Indexer, missing dataset.MissingDims, opts ...Option) (*Tree, error) {
	return Map(t, Select{Indexers: indexers, Missing: missing}, opts...)
}

// Reduce applies a reduction on every node.
func (t *Tree) Reduce(kind dataset.Reduction, ro dataset.ReduceOptions, opts ...Option) (*Tree, error) {
	return Map(t, Reduce{Kind: kind, Dims: ro.Dims, KeepNaN: ro.KeepNaN}, opts...)
}

// Any reduces with logical or over dims, or over every dimension.
func (t *Tree) Any(dims ...string) (*Tree, error) {
	return Map(t, Reduce{Kind: dataset.ReduceAny, Dims: dims})
}

// All reduces with logical and.
func (t *Tree) All(dims ...string) (*Tree, error) {
	return Map(t, Reduce{Kind: dataset.ReduceAll, Dims: dims})
}

// Sum reduces by summation, skipping NaN.
func (t *Tree) Sum(dims ...string) (*Tree, error) {
	return Map(t, Reduce{Kind: dataset.ReduceSum, Dims: dims})
}

// Mean reduces by arithmetic mean, skipping NaN.
func (t *Tree) Mean(dims ...string) (*Tree, error) {
	return Map(t, Reduce{Kind: dataset.ReduceMean, Dims: dims})
}

// Min reduces to the minimum, skipping NaN.
func (t *Tree) Min(dims ...string) (*Tree, error) {
	return Map(t, Reduce{Kind: dataset.ReduceMin, Dims: dims})
}

// Max reduces to the maximum, skipping NaN.
func (t *Tree) Max(dims ...string) (*Tree, error) {
	return Map(t, Reduce{Kind: dataset.ReduceMax, Dims: dims})
}

// Cumsum replaces values by running sums along dim.
func (t *Tree) Cumsum(dim string) (*Tree, error) {
	return Map(t, Cumulative{Kind: dataset.CumSum, Dim: dim})
}

// Cumprod replaces values by running products along dim.
func (t *Tree) Cumprod(dim string) (*Tree, error) {
	return Map(t, Cumulative{Kind: dataset.CumProd, Dim: dim})
}

// Apply maps fn over the data variables of every node.
func (t *Tree) Apply(fn dataset.UnaryFunc, opts ...Option) (*Tree, error) {
	return Map(t, Unary{Func: fn}, opts...)
}

// Add returns t + operand.
func (t *Tree) Add(operand Operand) (*Tree, error) {
	return Map(t, Binary{Op: dataset.OpAdd, Operand: operand})
}

// Sub returns t - operand.
func (t *Tree) Sub(operand Operand) (*Tree, error) {
	return Map(t, Binary{Op: dataset.OpSub, Operand: operand})
}

// Mul returns t * operand.
func (t *Tree) Mul(operand Operand) (*Tree, error) {
	return Map(t, Binary{Op: dataset.OpMul, Operand: operand})
}

// Div returns t / operand.
func (t *Tree) Div(operand Operand) (*Tree, error) {
	return Map(t, Binary{Op: dataset.OpDiv, Operand: operand})
}

// Pow returns t ** operand.
func (t *Tree) Pow(operand Operand) (*Tree, error) {
	return Map(t, Binary{Op: dataset.OpPow, Operand: operand})
}

// Sin applies the sine function to every node of t.
func Sin(t *Tree) (*Tree, error) { return t.Apply(dataset.Sin) }

// Cos applies the cosine function to every node of t.
func Cos(t *Tree) (*Tree, error) { return t.Apply(dataset.Cos) }

// Exp applies the exponential function to every node of t.
func Exp(t *Tree) (*Tree, error) { return t.Apply(dataset.Exp) }

// Sqrt applies the square root to every node of t.
func Sqrt(t *Tree) (*Tree, error) { return t.Apply(dataset.Sqrt) }
