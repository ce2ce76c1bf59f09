// Package datatree organizes datasets into a rooted tree of named nodes and
// propagates dataset operations across every node.
//
// Operations are values of a closed set of types (Select, Reduce, Cumulative,
// Unary, Binary, Func). Map applies one to every payload and returns a new
// tree with the same topology:
//
//	t := datatree.MustNew("root", ds)
//	t.MustAddChild(t.Root(), "results", ds)
//
//	picked, err := t.Isel(map[string]dataset.Indexer{"x": dataset.At(1)}, dataset.Raise)
//	scaled, err := t.Mul(datatree.Scalar(dataset.IntScalar(5)))
//	squared, err := t.Mul(datatree.TreeOperand{Value: t})
//
// Nodes are stored in an arena owned by the Tree and addressed by NodeID.
package datatree
