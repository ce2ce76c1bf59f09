package dataset

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// maxRenderedValues bounds how many values a summary line prints.
const maxRenderedValues = 8

// String renders d in the familiar labeled-array layout.
func (d *Dataset) String() string {
	var b strings.Builder
	b.WriteString("<datatree.Dataset>\n")
	for _, line := range d.SummaryLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// SummaryLines returns the body of String, one line per element, without the
// type header. Tree renderers indent these lines under each node.
func (d *Dataset) SummaryLines() []string {
	dims := d.Dims()
	parts := make([]string, len(dims))
	for i, dim := range dims {
		parts[i] = fmt.Sprintf("%s: %d", dim.Name, dim.Size)
	}
	lines := []string{fmt.Sprintf("Dimensions:  (%s)", strings.Join(parts, ", "))}

	width := 8
	for _, e := range d.all() {
		width = max(width, len(e.name)+1)
	}
	if len(d.coords) > 0 {
		lines = append(lines, "Coordinates:")
		for _, e := range d.coords {
			marker := " "
			if e.v.isIndexOf(e.name) {
				marker = "*"
			}
			lines = append(lines, fmt.Sprintf("  %s %-*s %s", marker, width, e.name, e.v.summary()))
		}
	}
	lines = append(lines, "Data variables:")
	if len(d.vars) == 0 {
		lines = append(lines, "    *empty*")
	}
	for _, e := range d.vars {
		lines = append(lines, fmt.Sprintf("    %-*s %s", width, e.name, e.v.summary()))
	}
	if len(d.attrs) > 0 {
		lines = append(lines, "Attributes:")
		for _, k := range slices.Sorted(maps.Keys(d.attrs)) {
			lines = append(lines, fmt.Sprintf("    %-*s %s", width, k+":", d.attrs[k]))
		}
	}
	return lines
}

func (v *Variable) summary() string {
	n := min(len(v.values), maxRenderedValues)
	vals := make([]string, 0, n+1)
	for _, x := range v.values[:n] {
		vals = append(vals, formatValue(v.dtype, x))
	}
	if len(v.values) > n {
		vals = append(vals, "...")
	}
	return fmt.Sprintf("(%s) %s %s", strings.Join(v.dims, ", "), v.dtype, strings.Join(vals, " "))
}

// String renders v on a single line.
func (v *Variable) String() string {
	return v.summary()
}

// FormatValue renders a single element the way summaries do.
func FormatValue(t DType, x float64) string {
	return formatValue(t, x)
}

func formatValue(t DType, x float64) string {
	switch {
	case t == Bool:
		if x != 0 {
			return "True"
		}
		return "False"
	case math.IsNaN(x):
		return "nan"
	case t == Int:
		return strconv.FormatInt(int64(x), 10)
	default:
		return strconv.FormatFloat(x, 'g', 6, 64)
	}
}
