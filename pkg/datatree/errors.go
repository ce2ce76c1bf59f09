package datatree

import (
	"errors"
	"fmt"
)

// Tree construction errors.
var (
	ErrInvalidName   = errors.New("invalid node name")
	ErrDuplicateName = errors.New("duplicate node name")
	ErrNodeNotFound  = errors.New("node not found")
	ErrCycle         = errors.New("move would create a cycle")
	ErrDetachRoot    = errors.New("cannot detach the root node")
)

// NodeError reports the node at which an operation failed. The underlying
// dataset error is reachable with errors.Is and errors.As.
type NodeError struct {
	Path string
	Op   string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// IsomorphismError is returned when two trees that must share a topology do not.
type IsomorphismError struct {
	// Path of the first node, in the left tree, where the trees diverge.
	Path   string
	Reason string
}

func (e *IsomorphismError) Error() string {
	return fmt.Sprintf("trees are not isomorphic at %s: %s", e.Path, e.Reason)
}
