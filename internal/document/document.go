// Package document reads and writes trees of datasets as YAML or JSON files.
//
// A document is one node with optional attrs, coords and data_vars and a list
// of children. A node with neither coords nor data_vars has no payload.
package document

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/leapstack-labs/datatree/pkg/dataset"
	"github.com/leapstack-labs/datatree/pkg/datatree"
)

// Payload is the serialized form of one dataset.
type Payload struct {
	Attrs    map[string]string `yaml:"attrs,omitempty" json:"attrs,omitempty"`
	Coords   Variables         `yaml:"coords,omitempty" json:"coords,omitempty"`
	DataVars Variables         `yaml:"data_vars,omitempty" json:"data_vars,omitempty"`
}

// Node is the serialized form of a tree node and its descendants.
type Node struct {
	Name     string `yaml:"name" json:"name"`
	Payload  `yaml:",inline"`
	Children []Node `yaml:"children,omitempty" json:"children,omitempty"`
}

// Variable is the serialized form of a dataset variable. Values are flat in
// row-major order; null encodes NaN and the strings "inf" and "-inf" encode
// the infinities.
type Variable struct {
	Dims   []string `yaml:"dims,flow" json:"dims"`
	Shape  []int    `yaml:"shape,flow,omitempty" json:"shape,omitempty"`
	DType  string   `yaml:"dtype,omitempty" json:"dtype,omitempty"`
	Values []any    `yaml:"values,flow" json:"values"`
}

// HasData reports whether p describes a dataset.
func (p Payload) HasData() bool {
	return len(p.Coords) > 0 || len(p.DataVars) > 0
}

// EncodeDataset converts ds to its serialized form. A nil dataset yields an
// empty payload.
func EncodeDataset(ds *dataset.Dataset) Payload {
	var p Payload
	if ds == nil {
		return p
	}
	if attrs := ds.Attrs(); len(attrs) > 0 {
		p.Attrs = attrs
	}
	for _, name := range ds.CoordNames() {
		v, _ := ds.Coord(name)
		p.Coords = append(p.Coords, NamedVariable{Name: name, Variable: encodeVariable(v)})
	}
	for _, name := range ds.DataVarNames() {
		v, _ := ds.DataVar(name)
		p.DataVars = append(p.DataVars, NamedVariable{Name: name, Variable: encodeVariable(v)})
	}
	return p
}

func encodeVariable(v *dataset.Variable) Variable {
	out := Variable{
		Dims:   v.Dims(),
		DType:  v.DType().String(),
		Values: make([]any, v.Len()),
	}
	if len(out.Dims) > 1 {
		out.Shape = v.Shape()
	}
	for i, x := range v.Values() {
		switch {
		case v.DType() == dataset.Bool:
			out.Values[i] = x != 0
		case math.IsNaN(x):
			out.Values[i] = nil
		case math.IsInf(x, 1):
			out.Values[i] = "inf"
		case math.IsInf(x, -1):
			out.Values[i] = "-inf"
		case v.DType() == dataset.Int:
			out.Values[i] = int64(x)
		default:
			out.Values[i] = x
		}
	}
	return out
}

// DecodeDataset builds a dataset from p, keeping the document order of
// coordinates and data variables. It returns nil when p has no variables.
func DecodeDataset(p Payload) (*dataset.Dataset, error) {
	if !p.HasData() {
		return nil, nil
	}
	var opts []dataset.Option
	for _, nv := range p.Coords {
		v, err := decodeVariable(nv.Variable)
		if err != nil {
			return nil, fmt.Errorf("coordinate %q: %w", nv.Name, err)
		}
		opts = append(opts, dataset.WithCoord(nv.Name, v))
	}
	for _, nv := range p.DataVars {
		v, err := decodeVariable(nv.Variable)
		if err != nil {
			return nil, fmt.Errorf("data variable %q: %w", nv.Name, err)
		}
		opts = append(opts, dataset.WithDataVar(nv.Name, v))
	}
	for _, k := range slices.Sorted(maps.Keys(p.Attrs)) {
		opts = append(opts, dataset.WithAttr(k, p.Attrs[k]))
	}
	return dataset.New(opts...)
}

func decodeVariable(v Variable) (*dataset.Variable, error) {
	shape := v.Shape
	if shape == nil {
		switch len(v.Dims) {
		case 0:
			shape = []int{}
		case 1:
			shape = []int{len(v.Values)}
		default:
			return nil, fmt.Errorf("shape is required for %d dimensions", len(v.Dims))
		}
	}

	dtype, err := resolveDType(v)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(v.Values))
	for i, raw := range v.Values {
		x, err := toFloat(raw, dtype)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = x
	}
	dims := v.Dims
	if dims == nil {
		dims = []string{}
	}
	return dataset.NewVariable(dims, shape, dtype, values)
}

// resolveDType uses the declared dtype, or infers one: all booleans give
// Bool, all integers give Int, anything else gives Float.
func resolveDType(v Variable) (dataset.DType, error) {
	if v.DType != "" {
		return dataset.ParseDType(v.DType)
	}
	if len(v.Values) == 0 {
		return dataset.Float, nil
	}
	allBool, allInt := true, true
	for _, raw := range v.Values {
		switch x := raw.(type) {
		case bool:
			allInt = false
		case int, int64, uint64:
			allBool = false
		case float64:
			allBool = false
			if x != math.Trunc(x) || math.IsInf(x, 0) {
				allInt = false
			}
		default:
			allBool, allInt = false, false
		}
	}
	switch {
	case allBool:
		return dataset.Bool, nil
	case allInt:
		return dataset.Int, nil
	default:
		return dataset.Float, nil
	}
}

func toFloat(raw any, dtype dataset.DType) (float64, error) {
	switch x := raw.(type) {
	case nil:
		if dtype != dataset.Float {
			return 0, fmt.Errorf("null is only allowed in float variables")
		}
		return math.NaN(), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		f, ok := nonFinite(x)
		if !ok {
			return 0, fmt.Errorf("unsupported value %q", x)
		}
		if dtype != dataset.Float {
			return 0, fmt.Errorf("%q is only allowed in float variables", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

func nonFinite(s string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inf", "+inf", "infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	case "nan":
		return math.NaN(), true
	}
	return 0, false
}

// FromTree converts t into a document node.
func FromTree(t *datatree.Tree) Node {
	return fromNode(t, t.Root())
}

func fromNode(t *datatree.Tree, id datatree.NodeID) Node {
	n := Node{Name: t.Name(id), Payload: EncodeDataset(t.Data(id))}
	for _, c := range t.Children(id) {
		n.Children = append(n.Children, fromNode(t, c))
	}
	return n
}

// ToTree builds a tree from a document node.
func ToTree(n Node) (*datatree.Tree, error) {
	ds, err := DecodeDataset(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", n.Name, err)
	}
	t, err := datatree.New(n.Name, ds)
	if err != nil {
		return nil, err
	}
	if err := addChildren(t, t.Root(), n.Children); err != nil {
		return nil, err
	}
	return t, nil
}

func addChildren(t *datatree.Tree, parent datatree.NodeID, children []Node) error {
	for _, c := range children {
		ds, err := DecodeDataset(c.Payload)
		if err != nil {
			return fmt.Errorf("node %q: %w", c.Name, err)
		}
		id, err := t.AddChild(parent, c.Name, ds)
		if err != nil {
			return err
		}
		if err := addChildren(t, id, c.Children); err != nil {
			return err
		}
	}
	return nil
}
