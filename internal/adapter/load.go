package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/leapstack-labs/datatree/pkg/dataset"
)

// DefaultDim is the dimension rows are laid along when neither an index
// column nor a dimension name is given.
const DefaultDim = "row"

// LoadOptions controls how query results become a dataset.
type LoadOptions struct {
	// Index names a column that becomes the index coordinate. Its name is
	// also the row dimension.
	Index string
	// Dim names the row dimension when Index is empty.
	Dim string
	// Logger receives debug lines about skipped columns.
	Logger *slog.Logger
}

func (o LoadOptions) dim() string {
	switch {
	case o.Index != "":
		return o.Index
	case o.Dim != "":
		return o.Dim
	default:
		return DefaultDim
	}
}

// Load runs query on a and converts the result with FromRows.
func Load(ctx context.Context, a Adapter, query string, opts LoadOptions) (*dataset.Dataset, error) {
	rows, err := a.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return FromRows(rows, opts)
}

// column accumulates the values of one result column.
type column struct {
	name    string
	values  []float64
	dtype   dataset.DType
	textual bool
}

func (c *column) add(raw any) {
	x, dtype, ok := numeric(raw)
	if !ok {
		c.textual = true
		return
	}
	if raw == nil {
		c.values = append(c.values, math.NaN())
		c.dtype = dataset.Float
		return
	}
	c.values = append(c.values, x)
	// DType order is the promotion rank: Bool < Int < Float.
	if dtype > c.dtype {
		c.dtype = dtype
	}
}

// FromRows builds a dataset from a result set. Boolean columns become Bool
// variables, integer columns Int variables and floating point columns Float
// variables, all along one row dimension. NULL becomes NaN and turns the
// column into Float. Text columns other than the index are skipped.
func FromRows(rows *sql.Rows, opts LoadOptions) (*dataset.Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	cols := make([]*column, len(names))
	for i, name := range names {
		cols[i] = &column{name: name}
	}
	raw := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", n, err)
		}
		for i, c := range cols {
			c.add(raw[i])
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	dim := opts.dim()
	var dsOpts []dataset.Option
	foundIndex := opts.Index == ""
	for _, c := range cols {
		if c.textual {
			if c.name == opts.Index {
				return nil, fmt.Errorf("index column %q is not numeric", c.name)
			}
			logger.Debug("skipping non-numeric column", slog.String("column", c.name))
			continue
		}
		dtype := c.dtype
		if dtype == 0 {
			dtype = dataset.Float
		}
		v, err := dataset.NewVariable([]string{dim}, []int{len(c.values)}, dtype, c.values)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.name, err)
		}
		if c.name == opts.Index {
			foundIndex = true
			dsOpts = append(dsOpts, dataset.WithCoord(c.name, v))
			continue
		}
		dsOpts = append(dsOpts, dataset.WithDataVar(c.name, v))
	}
	if !foundIndex {
		return nil, fmt.Errorf("index column %q not in result (columns: %v)", opts.Index, names)
	}
	logger.Debug("loaded rows", slog.Int("rows", n), slog.Int("columns", len(names)))
	return dataset.New(dsOpts...)
}

// numeric converts a scanned driver value. ok is false for values that have
// no numeric reading. Integers outside the exact Int range are read as Float.
func numeric(raw any) (float64, dataset.DType, bool) {
	switch v := raw.(type) {
	case nil:
		return math.NaN(), dataset.Float, true
	case bool:
		if v {
			return 1, dataset.Bool, true
		}
		return 0, dataset.Bool, true
	case int64:
		return integer(v)
	case int32:
		return float64(v), dataset.Int, true
	case int16:
		return float64(v), dataset.Int, true
	case int8:
		return float64(v), dataset.Int, true
	case int:
		return integer(int64(v))
	case uint64:
		if v > dataset.MaxExactInt {
			return float64(v), dataset.Float, true
		}
		return float64(v), dataset.Int, true
	case uint32:
		return float64(v), dataset.Int, true
	case uint16:
		return float64(v), dataset.Int, true
	case uint8:
		return float64(v), dataset.Int, true
	case float64:
		return v, dataset.Float, true
	case float32:
		return float64(v), dataset.Float, true
	case []byte:
		return parseNumeric(string(v))
	case string:
		return parseNumeric(v)
	case interface{ Float64() float64 }:
		// duckdb decimals
		return v.Float64(), dataset.Float, true
	default:
		return 0, 0, false
	}
}

// parseNumeric reads numbers that drivers deliver as text, such as
// PostgreSQL numeric columns.
func parseNumeric(s string) (float64, dataset.DType, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return integer(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, dataset.Float, true
	}
	return 0, 0, false
}

func integer(v int64) (float64, dataset.DType, bool) {
	if !dataset.ExactInt(v) {
		return float64(v), dataset.Float, true
	}
	return float64(v), dataset.Int, true
}
