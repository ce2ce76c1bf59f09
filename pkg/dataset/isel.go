package dataset

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// End marks an open upper bound in a Slice.
const End = math.MaxInt

// Indexer selects positions along one dimension.
type Indexer interface {
	// positions resolves the indexer against a dimension of the given size.
	// keep is false when the dimension is dropped from the result.
	positions(size int) (pos []int, keep bool, err error)
	String() string
}

// At selects a single position and drops the dimension. Negative values count from the end.
type At int

func (a At) positions(size int) ([]int, bool, error) {
	i := int(a)
	if i < 0 {
		i += size
	}
	if i < 0 || i >= size {
		return nil, false, fmt.Errorf("%w: index %d for size %d", ErrIndexOutOfRange, int(a), size)
	}
	return []int{i}, false, nil
}

func (a At) String() string { return fmt.Sprintf("%d", int(a)) }

// Slice selects the half-open range [Start, Stop) with the given Step and keeps
// the dimension. Bounds follow Python slicing: negatives count from the end and
// out-of-range bounds are clipped. Stop == End leaves the range open. A zero Step means 1.
type Slice struct {
	Start int
	Stop  int
	Step  int
}

// Span returns the Slice [start, stop).
func Span(start, stop int) Slice {
	return Slice{Start: start, Stop: stop, Step: 1}
}

func (s Slice) positions(size int) ([]int, bool, error) {
	step := s.Step
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return nil, true, fmt.Errorf("%w: negative slice step %d", ErrUnsupported, step)
	}
	clip := func(i int) int {
		if i < 0 {
			i += size
		}
		return min(max(i, 0), size)
	}
	start, stop := clip(s.Start), size
	if s.Stop != End {
		stop = clip(s.Stop)
	}
	pos := make([]int, 0, max(0, (stop-start+step-1)/step))
	for i := start; i < stop; i += step {
		pos = append(pos, i)
	}
	return pos, true, nil
}

func (s Slice) String() string {
	stop := ""
	if s.Stop != End {
		stop = fmt.Sprintf("%d", s.Stop)
	}
	if s.Step > 1 {
		return fmt.Sprintf("%d:%s:%d", s.Start, stop, s.Step)
	}
	return fmt.Sprintf("%d:%s", s.Start, stop)
}

// Take selects arbitrary positions, in order, and keeps the dimension.
type Take []int

func (t Take) positions(size int) ([]int, bool, error) {
	pos := make([]int, len(t))
	for i, p := range t {
		if p < 0 {
			p += size
		}
		if p < 0 || p >= size {
			return nil, true, fmt.Errorf("%w: index %d for size %d", ErrIndexOutOfRange, t[i], size)
		}
		pos[i] = p
	}
	return pos, true, nil
}

func (t Take) String() string { return fmt.Sprintf("%v", []int(t)) }

// MissingDims decides what Isel does with indexers naming absent dimensions.
type MissingDims int

const (
	// Raise fails with ErrMissingDimension.
	Raise MissingDims = iota
	// Ignore skips indexers for absent dimensions.
	Ignore
)

// Isel selects by integer position along the named dimensions. Coordinates
// indexed with At remain as scalar coordinates. Attributes are kept.
func (d *Dataset) Isel(indexers map[string]Indexer, missing MissingDims) (*Dataset, error) {
	sizes := d.Sizes()
	sel := make(map[string][]int, len(indexers))
	drop := make(map[string]bool)

	for _, dim := range slices.Sorted(maps.Keys(indexers)) {
		size, ok := sizes[dim]
		if !ok {
			if missing == Ignore {
				continue
			}
			return nil, fmt.Errorf("%w: %q (have %v)", ErrMissingDimension, dim, d.Dims())
		}
		pos, keep, err := indexers[dim].positions(size)
		if err != nil {
			return nil, fmt.Errorf("dimension %q: %w", dim, err)
		}
		sel[dim] = pos
		if !keep {
			drop[dim] = true
		}
	}
	return d.take(sel, drop)
}

func (d *Dataset) take(sel map[string][]int, drop map[string]bool) (*Dataset, error) {
	apply := func(entries []entry) []entry {
		out := make([]entry, len(entries))
		for i, e := range entries {
			out[i] = entry{name: e.name, v: e.v.take(sel, drop)}
		}
		return out
	}
	return build(apply(d.vars), apply(d.coords), d.attrs)
}
