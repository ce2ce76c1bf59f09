package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/datatree/internal/document"
	"github.com/leapstack-labs/datatree/internal/expr"
	"github.com/leapstack-labs/datatree/pkg/dataset"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	"github.com/spf13/pflag"
)

// opFlags collects the flags that describe one tree operation.
type opFlags struct {
	Name        string
	Isel        []string
	IgnoreMiss  bool
	Dims        []string
	KeepNaN     bool
	Scalar      string
	With        string
	Reflected   bool
	Expr        string
	PreserveInt bool
	MaxSteps    uint64
}

func (f *opFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Name, "op", "", "Operation: isel, a reduction (sum, mean, ...), cumsum, cumprod, a function (sin, sqrt, ...), expr or an operator (add, sub, mul, div, pow, mod)")
	fs.StringArrayVar(&f.Isel, "isel", nil, "Indexer for isel, repeatable: dim=i, dim=start:stop[:step] or dim=[i,j,...]")
	fs.BoolVar(&f.IgnoreMiss, "ignore-missing", false, "Skip isel indexers for dimensions a node lacks")
	fs.StringSliceVar(&f.Dims, "dim", nil, "Dimensions to reduce or accumulate over")
	fs.BoolVar(&f.KeepNaN, "keep-nan", false, "Propagate NaN instead of skipping it")
	fs.StringVar(&f.Scalar, "scalar", "", "Scalar operand for arithmetic")
	fs.StringVar(&f.With, "with", "", "Document operand for arithmetic (a tree, or a dataset when it has no children)")
	fs.BoolVar(&f.Reflected, "reflected", false, "Put the operand on the left-hand side")
	fs.StringVar(&f.Expr, "expr", "", "Starlark expression in x for --op expr")
	fs.BoolVar(&f.PreserveInt, "preserve-int", false, "Keep integer dtypes for --op expr")
	fs.Uint64Var(&f.MaxSteps, "max-steps", expr.DefaultMaxSteps, "Starlark step limit per value for --op expr (0 disables)")
}

// buildOp turns the flags into a tree operation.
func buildOp(f opFlags) (datatree.Op, error) {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	switch name {
	case "":
		return nil, fmt.Errorf("--op is required")
	case "isel":
		indexers, err := parseIndexers(f.Isel)
		if err != nil {
			return nil, err
		}
		missing := dataset.Raise
		if f.IgnoreMiss {
			missing = dataset.Ignore
		}
		return datatree.Select{Indexers: indexers, Missing: missing}, nil
	case "expr":
		if f.Expr == "" {
			return nil, fmt.Errorf("--op expr requires --expr")
		}
		prog, err := expr.Compile(f.Expr, expr.WithMaxSteps(f.MaxSteps))
		if err != nil {
			return nil, err
		}
		return datatree.Unary{Func: prog.Func(f.PreserveInt)}, nil
	}

	if kind, err := dataset.ParseReduction(name); err == nil {
		return datatree.Reduce{Kind: kind, Dims: f.Dims, KeepNaN: f.KeepNaN}, nil
	}
	if kind, err := dataset.ParseAccumulation(name); err == nil {
		// No --dim accumulates along every dimension.
		var dim string
		switch len(f.Dims) {
		case 0:
		case 1:
			dim = f.Dims[0]
		default:
			return nil, fmt.Errorf("--op %s takes at most one --dim", name)
		}
		return datatree.Cumulative{Kind: kind, Dim: dim, KeepNaN: f.KeepNaN}, nil
	}
	if op, err := dataset.ParseBinaryOp(name); err == nil {
		operand, err := f.operand()
		if err != nil {
			return nil, err
		}
		return datatree.Binary{Op: op, Operand: operand, Reflected: f.Reflected}, nil
	}
	if fn, err := dataset.LookupFunc(name); err == nil {
		return datatree.Unary{Func: fn}, nil
	}
	return nil, fmt.Errorf("unknown operation %q", f.Name)
}

func (f opFlags) operand() (datatree.Operand, error) {
	switch {
	case f.Scalar != "" && f.With != "":
		return nil, fmt.Errorf("--scalar and --with are mutually exclusive")
	case f.Scalar != "":
		s, err := dataset.ParseScalar(f.Scalar)
		if err != nil {
			return nil, err
		}
		return datatree.Scalar(s), nil
	case f.With != "":
		t, err := document.LoadFile(f.With)
		if err != nil {
			return nil, err
		}
		if len(t.Children(t.Root())) == 0 {
			if !t.HasData(t.Root()) {
				return nil, fmt.Errorf("%s: operand document has no data", f.With)
			}
			return datatree.DatasetOperand{Value: t.Data(t.Root())}, nil
		}
		return datatree.TreeOperand{Value: t}, nil
	default:
		return nil, fmt.Errorf("--op %s requires --scalar or --with", f.Name)
	}
}

// parseIndexers parses "dim=spec" pairs. A spec is an integer position, a
// start:stop[:step] slice with optional bounds, or a bracketed position list.
func parseIndexers(specs []string) (map[string]dataset.Indexer, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("--op isel requires at least one --isel")
	}
	out := make(map[string]dataset.Indexer, len(specs))
	for _, raw := range specs {
		dim, spec, ok := strings.Cut(raw, "=")
		dim, spec = strings.TrimSpace(dim), strings.TrimSpace(spec)
		if !ok || dim == "" || spec == "" {
			return nil, fmt.Errorf("invalid indexer %q (expected dim=spec)", raw)
		}
		if _, dup := out[dim]; dup {
			return nil, fmt.Errorf("dimension %q indexed twice", dim)
		}
		idx, err := parseIndexer(spec)
		if err != nil {
			return nil, fmt.Errorf("indexer %q: %w", raw, err)
		}
		out[dim] = idx
	}
	return out, nil
}

func parseIndexer(spec string) (dataset.Indexer, error) {
	if strings.HasPrefix(spec, "[") && strings.HasSuffix(spec, "]") {
		body := strings.TrimSpace(spec[1 : len(spec)-1])
		if body == "" {
			return dataset.Take{}, nil
		}
		var take dataset.Take
		for _, part := range strings.Fields(strings.ReplaceAll(body, ",", " ")) {
			i, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid position %q", part)
			}
			take = append(take, i)
		}
		return take, nil
	}

	if !strings.Contains(spec, ":") {
		i, err := strconv.Atoi(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid position %q", spec)
		}
		return dataset.At(i), nil
	}

	parts := strings.Split(spec, ":")
	if len(parts) > 3 {
		return nil, fmt.Errorf("invalid slice %q", spec)
	}
	s := dataset.Slice{Start: 0, Stop: dataset.End, Step: 1}
	bound := func(part string, def int) (int, error) {
		part = strings.TrimSpace(part)
		if part == "" {
			return def, nil
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid slice bound %q", part)
		}
		return v, nil
	}
	var err error
	if s.Start, err = bound(parts[0], 0); err != nil {
		return nil, err
	}
	if s.Stop, err = bound(parts[1], dataset.End); err != nil {
		return nil, err
	}
	if len(parts) == 3 {
		if s.Step, err = bound(parts[2], 1); err != nil {
			return nil, err
		}
	}
	return s, nil
}
