package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// NamedVariable is one entry of a Variables mapping.
type NamedVariable struct {
	Name string
	Variable
}

// Variables is a name to variable mapping that keeps document order. It reads
// and writes as a plain YAML or JSON object.
type Variables []NamedVariable

// Names returns the variable names in order.
func (vs Variables) Names() []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name
	}
	return out
}

// Get returns the variable called name.
func (vs Variables) Get(name string) (Variable, bool) {
	i := slices.IndexFunc(vs, func(v NamedVariable) bool { return v.Name == name })
	if i < 0 {
		return Variable{}, false
	}
	return vs[i].Variable, true
}

var variableFields = []string{"dims", "shape", "dtype", "values"}

// MarshalYAML writes the variables as a mapping in order.
func (vs Variables) MarshalYAML() (any, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, v := range vs {
		var val yaml.Node
		if err := val.Encode(v.Variable); err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Name}, &val)
	}
	return m, nil
}

// UnmarshalYAML reads a mapping, rejecting repeated names and unknown fields.
func (vs *Variables) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of variables", node.Line)
	}
	out := make(Variables, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if _, dup := out.Get(key.Value); dup {
			return fmt.Errorf("line %d: variable %q defined twice", key.Line, key.Value)
		}
		if val.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(val.Content); j += 2 {
				if f := val.Content[j]; !slices.Contains(variableFields, f.Value) {
					return fmt.Errorf("line %d: field %s not found in variable %q", f.Line, f.Value, key.Value)
				}
			}
		}
		var v Variable
		if err := val.Decode(&v); err != nil {
			return fmt.Errorf("variable %q: %w", key.Value, err)
		}
		out = append(out, NamedVariable{Name: key.Value, Variable: v})
	}
	*vs = out
	return nil
}

// MarshalJSON writes the variables as an object in order.
func (vs Variables) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.Variable)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, rejecting repeated names and unknown fields.
func (vs *Variables) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*vs = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected an object of variables")
	}
	out := Variables{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		if _, dup := out.Get(name); dup {
			return fmt.Errorf("variable %q defined twice", name)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		vdec := json.NewDecoder(bytes.NewReader(raw))
		vdec.DisallowUnknownFields()
		var v Variable
		if err := vdec.Decode(&v); err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		out = append(out, NamedVariable{Name: name, Variable: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*vs = out
	return nil
}
