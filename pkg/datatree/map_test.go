package datatree_test

import (
	"errors"
	"math"
	"testing"

	"github.com/leapstack-labs/datatree/internal/testutil"
	"github.com/leapstack-labs/datatree/pkg/dataset"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	"github.com/leapstack-labs/datatree/pkg/datatree/treetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ds1d() *dataset.Dataset {
	return dataset.MustNew(
		dataset.WithDataVar("a", dataset.IntVar("x", 1, 2, 3)),
		dataset.WithCoord("x", dataset.IntVar("x", 10, 20, 30)),
	)
}

func ds2d() *dataset.Dataset {
	m, err := dataset.NewVariable([]string{"x", "y"}, []int{3, 2}, dataset.Float, []float64{1, 2, 3, 4, 5, math.NaN()})
	if err != nil {
		panic(err)
	}
	return dataset.MustNew(dataset.WithDataVar("m", m), dataset.WithDataVar("b", dataset.BoolVar("y", true, false)))
}

// sample builds a three level tree mixing payload shapes and a payload-less node.
func sample(t *testing.T) *datatree.Tree {
	t.Helper()
	tree := datatree.MustNew("root", ds1d())
	results := tree.MustAddChild(tree.Root(), "results", ds2d())
	tree.MustAddChild(results, "deep", ds1d())
	tree.MustAddChild(tree.Root(), "bare", nil)
	return tree
}

// expectNodewise checks that got mirrors src with fn applied to every payload.
func expectNodewise(t *testing.T, src, got *datatree.Tree, fn func(*dataset.Dataset) (*dataset.Dataset, error)) {
	t.Helper()
	treetest.AssertIsomorphic(t, src, got)
	require.NoError(t, src.Walk(func(id datatree.NodeID) error {
		if !src.HasData(id) {
			assert.False(t, got.HasData(id), "node %s gained a payload", src.Path(id))
			return nil
		}
		want, err := fn(src.Data(id))
		require.NoError(t, err)
		assert.True(t, want.Identical(got.Data(id)), "node %s:\nwant %s\ngot  %s", src.Path(id), want, got.Data(id))
		return nil
	}))
}

func TestIsel_ConcreteScenario(t *testing.T) {
	table := dataset.MustNew(dataset.WithDataVar("a", dataset.IntVar("x", 1, 2, 3)))
	tree := datatree.MustNew("root", table)
	tree.MustAddChild(tree.Root(), "results", table)

	got, err := tree.Isel(map[string]dataset.Indexer{"x": dataset.At(1)}, dataset.Raise)
	require.NoError(t, err)

	want := datatree.MustNew("root", dataset.MustNew(dataset.WithDataVar("a", dataset.ScalarVar(dataset.IntScalar(2)))))
	want.MustAddChild(want.Root(), "results", dataset.MustNew(dataset.WithDataVar("a", dataset.ScalarVar(dataset.IntScalar(2)))))

	treetest.AssertIdentical(t, want, got)
	assert.Equal(t, 2, got.Len())
}

func TestIsel_MissingDimension(t *testing.T) {
	tree := sample(t)

	_, err := tree.Isel(map[string]dataset.Indexer{"y": dataset.At(0)}, dataset.Raise)
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrMissingDimension)

	var nodeErr *datatree.NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "/", nodeErr.Path)

	got, err := tree.Isel(map[string]dataset.Indexer{"y": dataset.At(0)}, dataset.Ignore)
	require.NoError(t, err)
	expectNodewise(t, tree, got, func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Isel(map[string]dataset.Indexer{"y": dataset.At(0)}, dataset.Ignore)
	})
}

func TestReduce_Any(t *testing.T) {
	tree := sample(t)
	got, err := tree.Any()
	require.NoError(t, err)

	expectNodewise(t, tree, got, func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Reduce(dataset.ReduceAny, dataset.ReduceOptions{})
	})
	require.NoError(t, got.Walk(func(id datatree.NodeID) error {
		if ds := got.Data(id); ds != nil {
			assert.Empty(t, ds.Dims(), "node %s still has dimensions", got.Path(id))
		}
		return nil
	}))
}

func TestReduce_MeanSkipNaN(t *testing.T) {
	tree := sample(t)
	got, err := tree.Mean("x")
	require.NoError(t, err)

	expectNodewise(t, tree, got, func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Reduce(dataset.ReduceMean, dataset.ReduceOptions{Dims: []string{"x"}})
	})

	results, err := got.Lookup("/results")
	require.NoError(t, err)
	m, ok := got.Data(results).DataVar("m")
	require.True(t, ok)
	assert.Equal(t, []string{"y"}, m.Dims())
	assert.Equal(t, []float64{3, 3}, m.Values())
}

func TestCumsum(t *testing.T) {
	tree := sample(t)
	got, err := tree.Cumsum("x")
	require.NoError(t, err)

	expectNodewise(t, tree, got, func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Accumulate(dataset.CumSum, "x", dataset.AccumulateOptions{})
	})

	a, _ := got.Data(got.Root()).DataVar("a")
	assert.Equal(t, []string{"x"}, a.Dims())
	assert.Equal(t, []float64{1, 3, 6}, a.Values())
}

func TestMethods_OverAllDimensions(t *testing.T) {
	ints := dataset.MustNew(dataset.WithDataVar("a", dataset.IntVar("x", 1, 2, 3)))
	bools := dataset.MustNew(dataset.WithDataVar("a", dataset.BoolVar("x", false, true, false)))

	tests := []struct {
		name  string
		table *dataset.Dataset
		op    datatree.Op
		want  *dataset.Variable
	}{
		{"any", bools, datatree.Reduce{Kind: dataset.ReduceAny}, dataset.ScalarVar(dataset.BoolScalar(true))},
		{"mean promotes int", ints, datatree.Reduce{Kind: dataset.ReduceMean}, dataset.ScalarVar(dataset.FloatScalar(2))},
		{"cumsum without dim", ints, datatree.Cumulative{Kind: dataset.CumSum}, dataset.IntVar("x", 1, 3, 6)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := datatree.MustNew("root", tt.table)
			tree.MustAddChild(tree.Root(), "results", tt.table)

			got, err := datatree.Map(tree, tt.op)
			require.NoError(t, err)

			result := dataset.MustNew(dataset.WithDataVar("a", tt.want))
			want := datatree.MustNew("root", result)
			want.MustAddChild(want.Root(), "results", result)
			treetest.AssertIdentical(t, want, got)
		})
	}
}

func TestMul_CoordinateOnlyPayloads(t *testing.T) {
	ds1 := dataset.MustNew(
		dataset.WithCoord("a", dataset.IntVar("a", 5)),
		dataset.WithCoord("b", dataset.IntVar("b", 3)),
	)
	ds2 := dataset.MustNew(
		dataset.WithCoord("x", dataset.FloatVar("x", 0.1, 0.2)),
		dataset.WithCoord("y", dataset.IntVar("y", 10, 20)),
	)
	other := dataset.MustNew(dataset.WithCoord("z", dataset.FloatVar("z", 0.1, 0.2)))

	tree := datatree.MustNew("root", ds1)
	tree.MustAddChild(tree.Root(), "subnode", ds2)

	tests := []struct {
		name     string
		operand  datatree.Operand
		nodewise func(*dataset.Dataset) (*dataset.Dataset, error)
		coords   map[string][]string
	}{
		{
			name:    "scalar",
			operand: datatree.Scalar(dataset.IntScalar(5)),
			nodewise: func(ds *dataset.Dataset) (*dataset.Dataset, error) {
				return ds.BinaryScalar(dataset.OpMul, dataset.IntScalar(5), false)
			},
			coords: map[string][]string{"/": {"a", "b"}, "/subnode": {"x", "y"}},
		},
		{
			name:    "dataset",
			operand: datatree.DatasetOperand{Value: other},
			nodewise: func(ds *dataset.Dataset) (*dataset.Dataset, error) {
				return ds.BinaryDataset(dataset.OpMul, other, false)
			},
			coords: map[string][]string{"/": {"a", "b", "z"}, "/subnode": {"x", "y", "z"}},
		},
		{
			name:    "tree",
			operand: datatree.TreeOperand{Value: tree},
			nodewise: func(ds *dataset.Dataset) (*dataset.Dataset, error) {
				return ds.BinaryDataset(dataset.OpMul, ds, false)
			},
			coords: map[string][]string{"/": {"a", "b"}, "/subnode": {"x", "y"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tree.Mul(tt.operand)
			require.NoError(t, err)
			expectNodewise(t, tree, got, tt.nodewise)

			for path, coords := range tt.coords {
				id, err := got.Lookup(path)
				require.NoError(t, err)
				ds := got.Data(id)
				require.NotNil(t, ds, path)
				assert.Empty(t, ds.DataVarNames(), path)
				assert.Equal(t, coords, ds.CoordNames(), path)
			}
		})
	}
}

func TestMul_Scalar(t *testing.T) {
	tree := sample(t)
	got, err := tree.Mul(datatree.Scalar(dataset.IntScalar(5)))
	require.NoError(t, err)

	expectNodewise(t, tree, got, func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.BinaryScalar(dataset.OpMul, dataset.IntScalar(5), false)
	})

	deep, _ := got.Lookup("/results/deep")
	a, _ := got.Data(deep).DataVar("a")
	assert.Equal(t, []float64{5, 10, 15}, a.Values())
}

func TestSub_Reflected(t *testing.T) {
	tree := sample(t)
	got, err := datatree.Map(tree, datatree.Binary{
		Op:        dataset.OpSub,
		Operand:   datatree.Scalar(dataset.IntScalar(10)),
		Reflected: true,
	})
	require.NoError(t, err)

	a, _ := got.Data(got.Root()).DataVar("a")
	assert.Equal(t, []float64{9, 8, 7}, a.Values())
}

func TestMul_Dataset(t *testing.T) {
	tree := sample(t)
	other := dataset.MustNew(
		dataset.WithDataVar("a", dataset.IntVar("x", 2, 2, 2)),
		dataset.WithDataVar("m", dataset.IntVar("y", 10, 100)),
	)

	got, err := tree.Mul(datatree.DatasetOperand{Value: other})
	require.NoError(t, err)

	expectNodewise(t, tree, got, func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.BinaryDataset(dataset.OpMul, other, false)
	})

	a, _ := got.Data(got.Root()).DataVar("a")
	assert.Equal(t, []float64{2, 4, 6}, a.Values())
}

func TestMul_Tree(t *testing.T) {
	tree := sample(t)

	got, err := tree.Mul(datatree.TreeOperand{Value: tree})
	require.NoError(t, err)
	expectNodewise(t, tree, got, func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.BinaryDataset(dataset.OpMul, ds, false)
	})

	a, _ := got.Data(got.Root()).DataVar("a")
	assert.Equal(t, []float64{1, 4, 9}, a.Values())
}

func TestMul_TreePairsByPosition(t *testing.T) {
	left := datatree.MustNew("root", nil)
	left.MustAddChild(left.Root(), "first", dataset.MustNew(dataset.WithDataVar("a", dataset.IntVar("x", 1))))
	left.MustAddChild(left.Root(), "second", dataset.MustNew(dataset.WithDataVar("a", dataset.IntVar("x", 2))))

	// Names differ and are swapped; pairing must follow position.
	right := datatree.MustNew("other", nil)
	right.MustAddChild(right.Root(), "second", dataset.MustNew(dataset.WithDataVar("a", dataset.IntVar("x", 10))))
	right.MustAddChild(right.Root(), "first", dataset.MustNew(dataset.WithDataVar("a", dataset.IntVar("x", 100))))

	got, err := left.Mul(datatree.TreeOperand{Value: right})
	require.NoError(t, err)

	first, _ := got.Lookup("/first")
	second, _ := got.Lookup("/second")
	a, _ := got.Data(first).DataVar("a")
	assert.Equal(t, []float64{10}, a.Values())
	a, _ = got.Data(second).DataVar("a")
	assert.Equal(t, []float64{200}, a.Values())
	assert.False(t, got.HasData(got.Root()))
}

func TestMul_TreeWithoutRightPayload(t *testing.T) {
	left := datatree.MustNew("root", ds1d())
	right := datatree.MustNew("root", nil)

	got, err := left.Mul(datatree.TreeOperand{Value: right})
	require.NoError(t, err)
	ds := got.Data(got.Root())
	require.NotNil(t, ds)
	assert.Empty(t, ds.DataVarNames())
}

func TestMul_TreeTopologyMismatch(t *testing.T) {
	tree := sample(t)
	other := datatree.MustNew("root", ds1d())

	got, err := tree.Mul(datatree.TreeOperand{Value: other})
	assert.Nil(t, got)

	var isoErr *datatree.IsomorphismError
	require.True(t, errors.As(err, &isoErr))
	assert.Equal(t, "/", isoErr.Path)
}

func TestSin(t *testing.T) {
	tree := sample(t)
	got, err := datatree.Sin(tree)
	require.NoError(t, err)

	expectNodewise(t, tree, got, func(ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.Apply(dataset.Sin)
	})

	bare, _ := got.Lookup("/bare")
	assert.False(t, got.HasData(bare))

	a, _ := got.Data(got.Root()).DataVar("a")
	assert.InDeltaSlice(t, []float64{math.Sin(1), math.Sin(2), math.Sin(3)}, a.Values(), 1e-12)
}

func TestFunc(t *testing.T) {
	tree := sample(t)
	keepA := datatree.Func{
		Name: "keep_a",
		Fn: func(ds *dataset.Dataset) (*dataset.Dataset, error) {
			a, ok := ds.DataVar("a")
			if !ok {
				return nil, nil
			}
			return dataset.New(dataset.WithDataVar("a", a))
		},
	}

	got, err := datatree.Map(tree, keepA)
	require.NoError(t, err)
	results, _ := got.Lookup("/results")
	assert.False(t, got.HasData(results))
	assert.Equal(t, []string{"a"}, got.Data(got.Root()).DataVarNames())

	_, err = datatree.Map(tree, datatree.Func{Name: "nothing"})
	assert.ErrorIs(t, err, dataset.ErrUnsupported)
}

func TestMap_ErrorIsAllOrNothing(t *testing.T) {
	tree := sample(t)
	boom := errors.New("boom")
	calls := 0
	got, err := datatree.Map(tree, datatree.Func{
		Name: "fail_deep",
		Fn: func(ds *dataset.Dataset) (*dataset.Dataset, error) {
			calls++
			if _, ok := ds.DataVar("m"); ok {
				return nil, boom
			}
			return ds, nil
		},
	})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
	var nodeErr *datatree.NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "/results", nodeErr.Path)
	assert.Equal(t, "fail_deep", nodeErr.Op)
	assert.Equal(t, 2, calls, "sequential propagation stops at the first failure")
}

func TestMap_DoesNotMutateInput(t *testing.T) {
	tree := sample(t)
	before := tree.Clone()

	_, err := tree.Mul(datatree.Scalar(dataset.FloatScalar(2.5)))
	require.NoError(t, err)
	_, err = tree.Cumsum("x")
	require.NoError(t, err)

	treetest.AssertIdentical(t, before, tree)
}

func TestMap_ParallelMatchesSequential(t *testing.T) {
	tree := datatree.MustNew("root", ds1d())
	for i := range 20 {
		parent := tree.MustAddChild(tree.Root(), string(rune('a'+i)), ds1d())
		tree.MustAddChild(parent, "leaf", ds2d())
	}

	ops := []datatree.Op{
		datatree.Reduce{Kind: dataset.ReduceSum},
		datatree.Cumulative{Kind: dataset.CumProd},
		datatree.Unary{Func: dataset.Exp},
		datatree.Binary{Op: dataset.OpAdd, Operand: datatree.TreeOperand{Value: tree}},
	}
	for _, op := range ops {
		t.Run(op.String(), func(t *testing.T) {
			seq, err := datatree.Map(tree, op)
			require.NoError(t, err)
			par, err := datatree.Map(tree, op, datatree.WithParallelism(4), datatree.WithLogger(testutil.NewTestLogger(t)))
			require.NoError(t, err)
			treetest.AssertIdentical(t, seq, par)
		})
	}
}

func TestMap_ParallelError(t *testing.T) {
	tree := sample(t)
	_, err := datatree.Map(tree, datatree.Select{
		Indexers: map[string]dataset.Indexer{"x": dataset.At(7)},
	}, datatree.WithParallelism(3))
	assert.ErrorIs(t, err, dataset.ErrIndexOutOfRange)
}

func TestMap_NilOperation(t *testing.T) {
	_, err := datatree.Map(sample(t), nil)
	assert.ErrorIs(t, err, dataset.ErrUnsupported)
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   datatree.Op
		want string
	}{
		{datatree.Select{Indexers: map[string]dataset.Indexer{"x": dataset.At(1), "t": dataset.Span(0, 2)}}, "isel(t=0:2, x=1)"},
		{datatree.Reduce{Kind: dataset.ReduceMean}, "mean"},
		{datatree.Reduce{Kind: dataset.ReduceSum, Dims: []string{"x"}}, "sum(x)"},
		{datatree.Cumulative{Kind: dataset.CumSum, Dim: "x"}, "cumsum(x)"},
		{datatree.Cumulative{Kind: dataset.CumSum}, "cumsum"},
		{datatree.Unary{Func: dataset.Sqrt}, "sqrt"},
		{datatree.Binary{Op: dataset.OpMul, Operand: datatree.Scalar(dataset.IntScalar(5))}, "mul(5)"},
		{datatree.Binary{Op: dataset.OpSub, Operand: datatree.Scalar(dataset.IntScalar(5)), Reflected: true}, "rsub(5)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}
