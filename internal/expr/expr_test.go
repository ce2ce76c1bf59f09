package expr

import (
	"math"
	"testing"

	"github.com/leapstack-labs/datatree/pkg/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndEval(t *testing.T) {
	tests := []struct {
		src  string
		x    float64
		want float64
	}{
		{"x * 2 + 1", 3, 7},
		{"x ** 2", 4, 16},
		{"math.sqrt(x)", 9, 3},
		{"math.sin(x) ** 2 + math.cos(x) ** 2", 0.7, 1},
		{"x > 1", 2, 1},
		{"x > 1", 0, 0},
		{"-x if x < 0 else x", -5, 5},
		{"int(x) // 2", 7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p, err := Compile(tt.src)
			require.NoError(t, err)
			got, err := p.Eval(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	for _, src := range []string{"", "x +", "x\n+1", "y * 2", "x; x"} {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			var exprErr *Error
			assert.ErrorAs(t, err, &exprErr)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	p, err := Compile(`"text"`)
	require.NoError(t, err)
	_, err = p.Eval(1)
	assert.ErrorIs(t, err, ErrNotNumeric)

	p, err = Compile("1 // int(x)")
	require.NoError(t, err)
	_, err = p.Eval(0)
	var exprErr *Error
	assert.ErrorAs(t, err, &exprErr)

	p, err = Compile("len([i for i in range(1000000)])", WithMaxSteps(100))
	require.NoError(t, err)
	_, err = p.Eval(0)
	assert.Error(t, err)
}

func TestFunc(t *testing.T) {
	p, err := Compile("x * 10")
	require.NoError(t, err)

	ds := dataset.MustNew(dataset.WithDataVar("a", dataset.IntVar("x", 1, 2, 3)))
	got, err := ds.Apply(p.Func(true))
	require.NoError(t, err)
	a, _ := got.DataVar("a")
	assert.Equal(t, dataset.Int, a.DType())
	assert.Equal(t, []float64{10, 20, 30}, a.Values())

	got, err = ds.Apply(p.Func(false))
	require.NoError(t, err)
	a, _ = got.DataVar("a")
	assert.Equal(t, dataset.Float, a.DType())

	half, err := Compile("x / 2")
	require.NoError(t, err)
	_, err = ds.Apply(half.Func(true))
	assert.ErrorIs(t, err, dataset.ErrInvalidVariable)

	nan, err := Compile("nan")
	require.NoError(t, err)
	v, err := nan.Eval(1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}
