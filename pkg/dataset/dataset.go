package dataset

import (
	"fmt"
	"maps"
	"slices"
)

// Dataset is an immutable collection of data variables and coordinates that
// share named dimensions.
type Dataset struct {
	vars   []entry
	coords []entry
	attrs  map[string]string
}

type entry struct {
	name string
	v    *Variable
}

// Dim is a dimension name with its size.
type Dim struct {
	Name string
	Size int
}

// Option configures a Dataset built by New.
type Option func(*builder)

type builder struct {
	vars   []entry
	coords []entry
	attrs  map[string]string
	err    error
}

// WithDataVar adds a data variable.
func WithDataVar(name string, v *Variable) Option {
	return func(b *builder) {
		if v == nil && b.err == nil {
			b.err = fmt.Errorf("%w: data variable %q is nil", ErrInvalidVariable, name)
		}
		b.vars = append(b.vars, entry{name: name, v: v})
	}
}

// WithCoord adds a coordinate variable.
func WithCoord(name string, v *Variable) Option {
	return func(b *builder) {
		if v == nil && b.err == nil {
			b.err = fmt.Errorf("%w: coordinate %q is nil", ErrInvalidVariable, name)
		}
		b.coords = append(b.coords, entry{name: name, v: v})
	}
}

// WithAttr sets a dataset attribute.
func WithAttr(key, value string) Option {
	return func(b *builder) {
		if b.attrs == nil {
			b.attrs = make(map[string]string)
		}
		b.attrs[key] = value
	}
}

// New builds a Dataset and validates that all variables agree on dimension sizes.
func New(opts ...Option) (*Dataset, error) {
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.err != nil {
		return nil, b.err
	}
	return build(b.vars, b.coords, b.attrs)
}

// MustNew is like New but panics on error. Intended for fixtures and examples.
func MustNew(opts ...Option) *Dataset {
	ds, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return ds
}

// Empty returns a dataset with no variables.
func Empty() *Dataset {
	return &Dataset{}
}

func build(vars, coords []entry, attrs map[string]string) (*Dataset, error) {
	names := make(map[string]bool, len(vars)+len(coords))
	sizes := make(map[string]int)
	check := func(e entry) error {
		if e.name == "" {
			return fmt.Errorf("%w: empty variable name", ErrInvalidVariable)
		}
		if names[e.name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, e.name)
		}
		names[e.name] = true
		for i, d := range e.v.dims {
			if s, ok := sizes[d]; ok && s != e.v.shape[i] {
				return fmt.Errorf("%w: %q has %s=%d, expected %d", ErrDimConflict, e.name, d, e.v.shape[i], s)
			}
			sizes[d] = e.v.shape[i]
		}
		return nil
	}
	for _, e := range coords {
		if err := check(e); err != nil {
			return nil, err
		}
	}
	for _, e := range vars {
		if err := check(e); err != nil {
			return nil, err
		}
	}

	ds := &Dataset{
		vars:   slices.Clone(vars),
		coords: slices.Clone(coords),
	}
	if len(attrs) > 0 {
		ds.attrs = maps.Clone(attrs)
	}
	return ds, nil
}

// Dims returns every dimension with its size, sorted by name.
func (d *Dataset) Dims() []Dim {
	sizes := d.Sizes()
	out := make([]Dim, 0, len(sizes))
	for _, name := range slices.Sorted(maps.Keys(sizes)) {
		out = append(out, Dim{Name: name, Size: sizes[name]})
	}
	return out
}

// Sizes maps each dimension name to its size.
func (d *Dataset) Sizes() map[string]int {
	sizes := make(map[string]int)
	for _, e := range d.all() {
		for i, dim := range e.v.dims {
			sizes[dim] = e.v.shape[i]
		}
	}
	return sizes
}

// HasDim reports whether any variable uses dim.
func (d *Dataset) HasDim(dim string) bool {
	_, ok := d.Sizes()[dim]
	return ok
}

// DataVarNames returns data variable names in insertion order.
func (d *Dataset) DataVarNames() []string { return names(d.vars) }

// CoordNames returns coordinate names in insertion order.
func (d *Dataset) CoordNames() []string { return names(d.coords) }

// DataVar returns a data variable by name.
func (d *Dataset) DataVar(name string) (*Variable, bool) { return lookup(d.vars, name) }

// Coord returns a coordinate by name.
func (d *Dataset) Coord(name string) (*Variable, bool) { return lookup(d.coords, name) }

// Attrs returns a copy of the dataset attributes.
func (d *Dataset) Attrs() map[string]string { return maps.Clone(d.attrs) }

// IsEmpty reports whether the dataset has no variables.
func (d *Dataset) IsEmpty() bool {
	return len(d.vars) == 0 && len(d.coords) == 0
}

// indexCoord returns the index coordinate of dim, if any.
func (d *Dataset) indexCoord(dim string) (*Variable, bool) {
	v, ok := d.Coord(dim)
	if !ok || !v.isIndexOf(dim) {
		return nil, false
	}
	return v, true
}

func (d *Dataset) all() []entry {
	out := make([]entry, 0, len(d.coords)+len(d.vars))
	out = append(out, d.coords...)
	return append(out, d.vars...)
}

func names(entries []entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

func lookup(entries []entry, name string) (*Variable, bool) {
	for _, e := range entries {
		if e.name == name {
			return e.v, true
		}
	}
	return nil, false
}

// mapVars applies fn to every data variable, keeping coordinates.
func (d *Dataset) mapVars(fn func(name string, v *Variable) (*Variable, error)) (*Dataset, error) {
	vars := make([]entry, 0, len(d.vars))
	for _, e := range d.vars {
		nv, err := fn(e.name, e.v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", e.name, err)
		}
		vars = append(vars, entry{name: e.name, v: nv})
	}
	return build(vars, d.coords, nil)
}
