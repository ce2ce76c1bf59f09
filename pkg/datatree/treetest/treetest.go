// Package treetest provides test assertions for datatree values.
package treetest

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/datatree/pkg/datatree"
	"github.com/stretchr/testify/assert"
)

// AssertIsomorphic fails the test unless want and got share a topology and
// node names.
func AssertIsomorphic(t testing.TB, want, got *datatree.Tree) bool {
	t.Helper()
	if err := datatree.Isomorphic(want, got, true); err != nil {
		return assert.Fail(t, "trees are not isomorphic", "%v", err)
	}
	return true
}

// AssertEqual fails the test unless want and got are equal trees.
func AssertEqual(t testing.TB, want, got *datatree.Tree) bool {
	t.Helper()
	if datatree.Equal(want, got) {
		return true
	}
	return assert.Fail(t, "trees are not equal", diff(want, got))
}

// AssertIdentical fails the test unless want and got are identical trees,
// including dtypes and attributes.
func AssertIdentical(t testing.TB, want, got *datatree.Tree) bool {
	t.Helper()
	if datatree.Identical(want, got) {
		return true
	}
	return assert.Fail(t, "trees are not identical", diff(want, got))
}

func diff(want, got *datatree.Tree) string {
	if want == nil || got == nil {
		return "one of the trees is nil"
	}
	var b strings.Builder
	if paths, err := datatree.DiffPaths(want, got); err != nil {
		b.WriteString(err.Error())
	} else if len(paths) > 0 {
		b.WriteString("differing nodes: ")
		b.WriteString(strings.Join(paths, ", "))
	}
	b.WriteString("\nwant:\n")
	b.WriteString(want.String())
	b.WriteString("\ngot:\n")
	b.WriteString(got.String())
	return b.String()
}
