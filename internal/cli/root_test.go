package cli

import (
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/datatree/internal/cli/config"
	"github.com/leapstack-labs/datatree/internal/cli/testutil"
	"github.com/leapstack-labs/datatree/internal/document"
	"github.com/leapstack-labs/datatree/pkg/dataset"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	"github.com/leapstack-labs/datatree/pkg/datatree/treetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// project prepares an isolated working directory holding the sample document.
func project(t *testing.T) (dir, doc, statePath string) {
	t.Helper()
	dir = t.TempDir()
	t.Chdir(dir)
	t.Cleanup(config.ResetConfig)
	doc = testutil.WriteFile(t, dir, "tree.yaml", testutil.SampleDocument)
	return dir, doc, filepath.Join(dir, "state", "state.db")
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return testutil.RunCommand(t, NewRootCmd(), args...)
}

func TestShow(t *testing.T) {
	_, doc, _ := project(t)

	out, _, err := run(t, "show", doc, "-o", "markdown")
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "├── Group: /results")
	assert.Contains(t, out, "└── Group: /empty")

	out, _, err = run(t, "show", doc, "--node", "/results", "-o", "json")
	require.NoError(t, err)
	var node document.Node
	require.NoError(t, json.Unmarshal([]byte(out), &node))
	assert.Equal(t, "results", node.Name)
	assert.Contains(t, node.DataVars.Names(), "count")

	_, _, err = run(t, "show", doc, "--node", "/missing")
	assert.ErrorIs(t, err, datatree.ErrNodeNotFound)
}

func TestApply_MatchesLibrary(t *testing.T) {
	dir, doc, _ := project(t)
	input, err := document.LoadFile(doc)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		op   datatree.Op
	}{
		{
			name: "mean",
			args: []string{"--op", "mean"},
			op:   datatree.Reduce{Kind: dataset.ReduceMean},
		},
		{
			name: "isel",
			args: []string{"--op", "isel", "--isel", "t=0:2"},
			op:   datatree.Select{Indexers: map[string]dataset.Indexer{"t": dataset.Span(0, 2)}},
		},
		{
			name: "cumsum",
			args: []string{"--op", "cumsum", "--dim", "t"},
			op:   datatree.Cumulative{Kind: dataset.CumSum, Dim: "t"},
		},
		{
			name: "cumsum over all dims",
			args: []string{"--op", "cumsum"},
			op:   datatree.Cumulative{Kind: dataset.CumSum},
		},
		{
			name: "reflected scalar",
			args: []string{"--op", "sub", "--scalar", "10", "--reflected", "-p", "4"},
			op:   datatree.Binary{Op: dataset.OpSub, Operand: datatree.Scalar(dataset.IntScalar(10)), Reflected: true},
		},
		{
			name: "tree operand",
			args: []string{"--op", "mul", "--with", doc},
			op:   datatree.Binary{Op: dataset.OpMul, Operand: datatree.TreeOperand{Value: input}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, tt.name+".yaml")
			args := append([]string{"apply", doc, "--out", out}, tt.args...)
			stdout, _, err := run(t, args...)
			require.NoError(t, err)
			assert.Contains(t, stdout, "Wrote")

			want, err := datatree.Map(input, tt.op)
			require.NoError(t, err)
			got, err := document.LoadFile(out)
			require.NoError(t, err)
			treetest.AssertIdentical(t, want, got)
		})
	}
}

func TestApply_Errors(t *testing.T) {
	_, doc, _ := project(t)

	_, _, err := run(t, "apply", doc, "--op", "isel", "--isel", "x=0")
	var nodeErr *datatree.NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "/", nodeErr.Path)
	assert.ErrorIs(t, err, dataset.ErrMissingDimension)

	_, _, err = run(t, "apply", "--op", "mean")
	assert.ErrorContains(t, err, "--from-store is required")

	_, _, err = run(t, "apply", doc, "--op", "nope")
	assert.ErrorContains(t, err, "unknown operation")
}

func TestApply_NonFiniteResults(t *testing.T) {
	dir, doc, statePath := project(t)
	out := filepath.Join(dir, "divided.json")

	_, _, err := run(t, "apply", doc, "--op", "div", "--scalar", "0", "--out", out)
	require.NoError(t, err)
	got, err := document.LoadFile(out)
	require.NoError(t, err)
	results, err := got.Lookup("/results")
	require.NoError(t, err)
	count, _ := got.Data(results).DataVar("count")
	assert.True(t, math.IsInf(count.Values()[0], 1))

	_, _, err = run(t, "--state", statePath, "apply", doc, "--op", "div", "--scalar", "0", "--save", "divided")
	require.NoError(t, err)
	stored := filepath.Join(dir, "stored.yaml")
	_, _, err = run(t, "--state", statePath, "store", "get", "divided", "--out", stored)
	require.NoError(t, err)
	fromStore, err := document.LoadFile(stored)
	require.NoError(t, err)
	treetest.AssertIdentical(t, got, fromStore)
}

func TestStoreWorkflow(t *testing.T) {
	dir, doc, statePath := project(t)
	state := []string{"--state", statePath}

	out, _, err := run(t, append([]string{"store", "save", "exp", doc}, state...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `Saved "exp" (3 nodes)`)

	_, _, err = run(t, append([]string{"apply", "--from-store", "exp", "--op", "mul", "--scalar", "2", "--save", "doubled"}, state...)...)
	require.NoError(t, err)

	_, _, err = run(t, append([]string{"apply", "--from-store", "exp", "--op", "isel", "--isel", "x=0"}, state...)...)
	require.Error(t, err)

	out, _, err = run(t, append([]string{"store", "list", "-o", "json"}, state...)...)
	require.NoError(t, err)
	var trees []struct {
		Name  string `json:"name"`
		Nodes int    `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &trees))
	require.Len(t, trees, 2)
	assert.Equal(t, "doubled", trees[0].Name)
	assert.Equal(t, "exp", trees[1].Name)
	assert.Equal(t, 3, trees[1].Nodes)

	out, _, err = run(t, append([]string{"store", "runs", "exp", "-o", "json"}, state...)...)
	require.NoError(t, err)
	var runs []struct {
		Operation string `json:"operation"`
		Status    string `json:"status"`
		Error     string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	statuses := []string{runs[0].Status, runs[1].Status}
	assert.ElementsMatch(t, []string{"completed", "failed"}, statuses)

	got := filepath.Join(dir, "doubled.json")
	_, _, err = run(t, append([]string{"store", "get", "doubled", "--out", got}, state...)...)
	require.NoError(t, err)
	input, err := document.LoadFile(doc)
	require.NoError(t, err)
	want, err := input.Mul(datatree.Scalar(dataset.IntScalar(2)))
	require.NoError(t, err)
	doubled, err := document.LoadFile(got)
	require.NoError(t, err)
	treetest.AssertIdentical(t, want, doubled)

	out, _, err = run(t, append([]string{"store", "list", "-o", "markdown"}, state...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "| doubled |")

	_, _, err = run(t, append([]string{"store", "delete", "exp"}, state...)...)
	require.NoError(t, err)
	_, _, err = run(t, append([]string{"store", "get", "exp"}, state...)...)
	assert.Error(t, err)
}

func TestLoad_SQLite(t *testing.T) {
	dir, _, _ := project(t)
	path := filepath.Join(dir, "new.yaml")

	out, _, err := run(t, "load", path, "--create", "--source-type", "sqlite",
		"--node", "/raw/obs", "--query", "SELECT 1 AS a, 2.5 AS b UNION ALL SELECT 2, 3.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 2 variables into /raw/obs")

	tree, err := document.LoadFile(path)
	require.NoError(t, err)
	id, err := tree.Lookup("/raw/obs")
	require.NoError(t, err)
	ds := tree.Data(id)
	require.NotNil(t, ds)

	a, ok := ds.DataVar("a")
	require.True(t, ok)
	assert.Equal(t, dataset.Int, a.DType())
	assert.Equal(t, []string{"row"}, a.Dims())

	raw, _ := tree.Lookup("/raw")
	assert.False(t, tree.HasData(raw))

	_, _, err = run(t, "load", filepath.Join(dir, "absent.yaml"), "--source-type", "sqlite", "--query", "SELECT 1 AS a")
	assert.Error(t, err, "missing file without --create")
}

func TestVersionAndConfigErrors(t *testing.T) {
	project(t)

	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "datatree v"+Version)

	_, _, err = run(t, "version", "-o", "yaml")
	assert.ErrorContains(t, err, "invalid output format")

	_, _, err = run(t, "frobnicate")
	assert.ErrorContains(t, err, "unknown command")
}
