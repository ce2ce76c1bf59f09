package datatree

import (
	"fmt"

	"github.com/leapstack-labs/datatree/pkg/dataset"
)

// Isomorphic returns nil when a and b have the same shape: every pair of
// corresponding nodes has the same number of children. With requireNames the
// corresponding nodes must also share names. Otherwise it returns an
// *IsomorphismError describing the first divergence in pre-order.
func Isomorphic(a, b *Tree, requireNames bool) error {
	type pair struct{ l, r NodeID }
	stack := []pair{{a.Root(), b.Root()}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ln, rn := a.nodes[p.l], b.nodes[p.r]
		if requireNames && ln.name != rn.name {
			return &IsomorphismError{
				Path:   a.Path(p.l),
				Reason: fmt.Sprintf("node name %q differs from %q", ln.name, rn.name),
			}
		}
		if len(ln.children) != len(rn.children) {
			return &IsomorphismError{
				Path:   a.Path(p.l),
				Reason: fmt.Sprintf("%d children versus %d", len(ln.children), len(rn.children)),
			}
		}
		for i := len(ln.children) - 1; i >= 0; i-- {
			stack = append(stack, pair{ln.children[i], rn.children[i]})
		}
	}
	return nil
}

// Equal reports whether a and b are isomorphic with matching names and every
// pair of corresponding payloads is equal by Dataset.Equals.
func Equal(a, b *Tree) bool {
	return compareTrees(a, b, (*dataset.Dataset).Equals)
}

// Identical is like Equal but compares payloads with Dataset.Identical.
func Identical(a, b *Tree) bool {
	return compareTrees(a, b, (*dataset.Dataset).Identical)
}

func compareTrees(a, b *Tree, same func(x, y *dataset.Dataset) bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if Isomorphic(a, b, true) != nil {
		return false
	}
	left, right := a.preorder(a.Root()), b.preorder(b.Root())
	for i := range left {
		x, y := a.Data(left[i]), b.Data(right[i])
		if (x == nil) != (y == nil) {
			return false
		}
		if x != nil && !same(x, y) {
			return false
		}
	}
	return true
}

// DiffPaths lists the paths of a whose payloads differ from the node at the
// same position in b. It returns an error when the trees are not isomorphic.
func DiffPaths(a, b *Tree) ([]string, error) {
	if err := Isomorphic(a, b, true); err != nil {
		return nil, err
	}
	var diffs []string
	left, right := a.preorder(a.Root()), b.preorder(b.Root())
	for i := range left {
		x, y := a.Data(left[i]), b.Data(right[i])
		if (x == nil) != (y == nil) || (x != nil && !x.Identical(y)) {
			diffs = append(diffs, a.Path(left[i]))
		}
	}
	return diffs, nil
}
