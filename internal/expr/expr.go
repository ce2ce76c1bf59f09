// Package expr compiles one-line Starlark expressions over a variable x into
// elementwise dataset functions.
package expr

import (
	"errors"
	"fmt"
	gomath "math"
	"strings"

	"github.com/leapstack-labs/datatree/pkg/dataset"
	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// DefaultMaxSteps bounds the work of a single evaluation.
const DefaultMaxSteps = 10_000

// Error reports a failure to compile or evaluate an expression.
type Error struct {
	Expr    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("expression %q: %s", e.Expr, e.Message)
}

// ErrNotNumeric is returned when an expression yields a non-numeric value.
var ErrNotNumeric = errors.New("result is not a number")

// Program is a compiled expression. It is safe for concurrent use.
type Program struct {
	src      string
	fn       *starlark.Function
	maxSteps uint64
}

// Option configures Compile.
type Option func(*Program)

// WithMaxSteps overrides DefaultMaxSteps. Zero disables the limit.
func WithMaxSteps(n uint64) Option {
	return func(p *Program) { p.maxSteps = n }
}

// Compile parses src, an expression in x such as "x * 2 + 1" or
// "math.sin(x) ** 2". The math module is predeclared.
func Compile(src string, opts ...Option) (*Program, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, &Error{Expr: src, Message: "empty expression"}
	}
	if strings.ContainsAny(src, "\n\r;") {
		return nil, &Error{Expr: src, Message: "must be a single expression"}
	}

	p := &Program{src: src, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(p)
	}

	code := "def f(x):\n    return (" + src + ")\n"
	thread := &starlark.Thread{Name: "compile", Print: func(*starlark.Thread, string) {}}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, "expr", code, predeclared())
	if err != nil {
		return nil, &Error{Expr: src, Message: err.Error()}
	}
	fn, ok := globals["f"].(*starlark.Function)
	if !ok {
		return nil, &Error{Expr: src, Message: "failed to compile"}
	}
	globals.Freeze()
	p.fn = fn
	return p, nil
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"math": math.Module,
		"nan":  starlark.Float(gomath.NaN()),
	}
}

// String returns the source expression.
func (p *Program) String() string { return p.src }

// Eval evaluates the expression at x. Booleans evaluate to 1 or 0.
func (p *Program) Eval(x float64) (float64, error) {
	thread := &starlark.Thread{Name: p.src, Print: func(*starlark.Thread, string) {}}
	if p.maxSteps > 0 {
		thread.SetMaxExecutionSteps(p.maxSteps)
	}
	res, err := starlark.Call(thread, p.fn, starlark.Tuple{starlark.Float(x)}, nil)
	if err != nil {
		return 0, &Error{Expr: p.src, Message: err.Error()}
	}
	return toFloat(res)
}

func toFloat(v starlark.Value) (float64, error) {
	switch val := v.(type) {
	case starlark.Bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case starlark.Int, starlark.Float:
		f, _ := starlark.AsFloat(val)
		return f, nil
	default:
		return 0, fmt.Errorf("%w: got %s", ErrNotNumeric, v.Type())
	}
}

// Func wraps p as a dataset function named after the expression. With
// preserveInt, integer inputs keep an integer dtype and non-integral results
// are rejected by the dataset engine.
func (p *Program) Func(preserveInt bool) dataset.UnaryFunc {
	return dataset.UnaryFunc{Name: "expr(" + p.src + ")", Eval: p.Eval, PreserveInt: preserveInt}
}
