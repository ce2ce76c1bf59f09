package dataset

import (
	"maps"
	"math"
	"slices"
)

// Equals reports whether d and other hold the same variables with the same
// dimensions and values. NaN equals NaN. Dtypes, attributes and variable
// order are ignored.
func (d *Dataset) Equals(other *Dataset) bool {
	return d.compare(other, false)
}

// Identical is like Equals but also requires matching dtypes and attributes.
func (d *Dataset) Identical(other *Dataset) bool {
	return d.compare(other, true)
}

func (d *Dataset) compare(other *Dataset, strict bool) bool {
	if d == nil {
		d = Empty()
	}
	if other == nil {
		other = Empty()
	}
	if strict && !maps.Equal(d.attrs, other.attrs) {
		return false
	}
	return sameEntries(d.vars, other.vars, strict) && sameEntries(d.coords, other.coords, strict)
}

func sameEntries(a, b []entry, strict bool) bool {
	if len(a) != len(b) {
		return false
	}
	for _, e := range a {
		v, ok := lookup(b, e.name)
		if !ok || !e.v.Equals(v) {
			return false
		}
		if strict && e.v.dtype != v.dtype {
			return false
		}
	}
	return true
}

// Equals reports whether v and other have the same dims, shape and values.
func (v *Variable) Equals(other *Variable) bool {
	if v == nil || other == nil {
		return v == other
	}
	if !slices.Equal(v.dims, other.dims) || !slices.Equal(v.shape, other.shape) {
		return false
	}
	return slices.EqualFunc(v.values, other.values, func(x, y float64) bool {
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	})
}
