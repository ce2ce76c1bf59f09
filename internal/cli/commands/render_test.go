package commands

import (
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/datatree/internal/cli/testutil"
	"github.com/leapstack-labs/datatree/pkg/dataset"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderSample() *datatree.Tree {
	tree := datatree.MustNew("root", dataset.MustNew(dataset.WithDataVar("a", dataset.IntVar("x", 1, 2))))
	tree.MustAddChild(tree.Root(), "child", nil)
	return tree
}

func TestRenderTree_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, renderTree(tr.Renderer, "sample", renderSample()))

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# sample\n")
	assert.Contains(t, out, "- **Nodes**: 2")
	assert.Contains(t, out, "Group: /\n")
	assert.Contains(t, out, "└── Group: /child")
}

func TestRenderTree_Text(t *testing.T) {
	tr := testutil.NewTestRendererText()
	require.NoError(t, renderTree(tr.Renderer, "sample", renderSample()))

	out := tr.Output()
	assert.Contains(t, out, "sample")
	assert.Contains(t, out, "Group: ")
	assert.Contains(t, out, "/child")
	assert.Contains(t, out, "Dimensions:")
}

func TestRenderTree_JSON(t *testing.T) {
	tr := testutil.NewTestRendererJSON()
	require.NoError(t, renderTree(tr.Renderer, "sample", renderSample()))

	var doc struct {
		Name     string `json:"name"`
		DataVars map[string]struct {
			Values []int `json:"values"`
		} `json:"data_vars"`
		Children []struct {
			Name string `json:"name"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &doc))
	assert.Equal(t, "root", doc.Name)
	assert.Equal(t, []int{1, 2}, doc.DataVars["a"].Values)
	require.Len(t, doc.Children, 1)
	assert.Equal(t, "child", doc.Children[0].Name)
}
