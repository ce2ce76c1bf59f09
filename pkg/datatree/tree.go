package datatree

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/datatree/pkg/dataset"
)

// NodeID addresses a node within one Tree. IDs are stable until the tree is
// restructured by Detach.
type NodeID int

// NoParent is the parent of the root node.
const NoParent NodeID = -1

// PathSeparator joins node names into paths.
const PathSeparator = "/"

type node struct {
	name     string
	data     *dataset.Dataset
	parent   NodeID
	children []NodeID
}

// Tree is a rooted tree of named nodes, each optionally holding a Dataset.
// Nodes live in an arena owned by the Tree; the root is always NodeID 0.
//
// A Tree is not safe for concurrent mutation. Operations that return a new
// Tree only read their input.
type Tree struct {
	nodes []node
}

// New returns a tree with a single root node.
func New(name string, data *dataset.Dataset) (*Tree, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return &Tree{nodes: []node{{name: name, data: data, parent: NoParent}}}, nil
}

// MustNew is like New but panics on error.
func MustNew(name string, data *dataset.Dataset) *Tree {
	t, err := New(name, data)
	if err != nil {
		panic(err)
	}
	return t
}

func validName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case strings.Contains(name, PathSeparator):
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, PathSeparator)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Tree) check(id NodeID) error {
	if !t.valid(id) {
		return fmt.Errorf("%w: id %d", ErrNodeNotFound, id)
	}
	return nil
}

// AddChild appends a new node under parent and returns its ID.
func (t *Tree) AddChild(parent NodeID, name string, data *dataset.Dataset) (NodeID, error) {
	if err := t.check(parent); err != nil {
		return 0, err
	}
	if err := validName(name); err != nil {
		return 0, err
	}
	if _, exists := t.Child(parent, name); exists {
		return 0, fmt.Errorf("%w: %q under %s", ErrDuplicateName, name, t.Path(parent))
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{name: name, data: data, parent: parent})
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return id, nil
}

// MustAddChild is like AddChild but panics on error.
func (t *Tree) MustAddChild(parent NodeID, name string, data *dataset.Dataset) NodeID {
	id, err := t.AddChild(parent, name, data)
	if err != nil {
		panic(err)
	}
	return id
}

// Root returns the root node ID.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Name returns the name of id.
func (t *Tree) Name(id NodeID) string { return t.nodes[id].name }

// Data returns the payload of id, or nil.
func (t *Tree) Data(id NodeID) *dataset.Dataset { return t.nodes[id].data }

// HasData reports whether id holds a payload.
func (t *Tree) HasData(id NodeID) bool { return t.nodes[id].data != nil }

// Parent returns the parent of id. ok is false for the root.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	p := t.nodes[id].parent
	return p, p != NoParent
}

// Children returns the children of id in order.
func (t *Tree) Children(id NodeID) []NodeID {
	return slices.Clone(t.nodes[id].children)
}

// Child returns the child of id with the given name.
func (t *Tree) Child(id NodeID, name string) (NodeID, bool) {
	for _, c := range t.nodes[id].children {
		if t.nodes[c].name == name {
			return c, true
		}
	}
	return 0, false
}

// Path returns the absolute path of id. The root is "/".
func (t *Tree) Path(id NodeID) string {
	var parts []string
	for cur := id; t.nodes[cur].parent != NoParent; cur = t.nodes[cur].parent {
		parts = append(parts, t.nodes[cur].name)
	}
	slices.Reverse(parts)
	return PathSeparator + strings.Join(parts, PathSeparator)
}

// Lookup resolves a path such as "/results/sub". Paths are relative to the
// root whether or not they start with a separator; "" and "/" name the root.
func (t *Tree) Lookup(path string) (NodeID, error) {
	cur := t.Root()
	for _, part := range strings.Split(path, PathSeparator) {
		if part == "" {
			continue
		}
		next, ok := t.Child(cur, part)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, path)
		}
		cur = next
	}
	return cur, nil
}

// Walk calls fn for every node in pre-order, visiting children in order.
// Walk stops at the first error fn returns.
func (t *Tree) Walk(fn func(id NodeID) error) error {
	for _, id := range t.preorder(t.Root()) {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}

// preorder lists the IDs of the subtree rooted at id.
func (t *Tree) preorder(id NodeID) []NodeID {
	out := make([]NodeID, 0, len(t.nodes))
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		kids := t.nodes[cur].children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// Subtree returns a copy of the subtree rooted at id. The copy's root keeps
// the node's name.
func (t *Tree) Subtree(id NodeID) (*Tree, error) {
	if err := t.check(id); err != nil {
		return nil, err
	}
	return t.copyFrom(id), nil
}

// copyFrom rebuilds the subtree at id into a fresh, pre-order arena.
func (t *Tree) copyFrom(id NodeID) *Tree {
	order := t.preorder(id)
	remap := make(map[NodeID]NodeID, len(order))
	for i, old := range order {
		remap[old] = NodeID(i)
	}
	nodes := make([]node, len(order))
	for i, old := range order {
		src := t.nodes[old]
		n := node{name: src.name, data: src.data, parent: NoParent}
		if i > 0 {
			n.parent = remap[src.parent]
		}
		n.children = make([]NodeID, len(src.children))
		for j, c := range src.children {
			n.children[j] = remap[c]
		}
		nodes[i] = n
	}
	return &Tree{nodes: nodes}
}

// Clone returns a copy of t with the same NodeIDs. Payloads are shared since
// datasets are immutable.
func (t *Tree) Clone() *Tree {
	return &Tree{nodes: t.cloneNodes()}
}

func (t *Tree) cloneNodes() []node {
	nodes := make([]node, len(t.nodes))
	for i, n := range t.nodes {
		n.children = slices.Clone(n.children)
		nodes[i] = n
	}
	return nodes
}

// SetData replaces the payload of id. A nil payload removes it.
func (t *Tree) SetData(id NodeID, data *dataset.Dataset) error {
	if err := t.check(id); err != nil {
		return err
	}
	t.nodes[id].data = data
	return nil
}

// Move re-parents id under parent, appending it to parent's children.
func (t *Tree) Move(id, parent NodeID) error {
	if err := t.check(id); err != nil {
		return err
	}
	if err := t.check(parent); err != nil {
		return err
	}
	old := t.nodes[id].parent
	if old == NoParent {
		return fmt.Errorf("%w: cannot move the root", ErrDetachRoot)
	}
	if old == parent {
		return nil
	}
	for cur := parent; cur != NoParent; cur = t.nodes[cur].parent {
		if cur == id {
			return fmt.Errorf("%w: %s is inside %s", ErrCycle, t.Path(parent), t.Path(id))
		}
	}
	if _, exists := t.Child(parent, t.nodes[id].name); exists {
		return fmt.Errorf("%w: %q under %s", ErrDuplicateName, t.nodes[id].name, t.Path(parent))
	}

	t.nodes[old].children = slices.DeleteFunc(t.nodes[old].children, func(c NodeID) bool { return c == id })
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	t.nodes[id].parent = parent
	return nil
}

// Detach removes the subtree rooted at id and returns it as a new Tree.
// The remaining nodes of t are renumbered, so previously obtained IDs are
// invalid afterwards.
func (t *Tree) Detach(id NodeID) (*Tree, error) {
	if err := t.check(id); err != nil {
		return nil, err
	}
	parent := t.nodes[id].parent
	if parent == NoParent {
		return nil, ErrDetachRoot
	}
	sub := t.copyFrom(id)
	t.nodes[parent].children = slices.DeleteFunc(t.nodes[parent].children, func(c NodeID) bool { return c == id })
	t.nodes = t.copyFrom(t.Root()).nodes
	return sub, nil
}
