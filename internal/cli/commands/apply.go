package commands

import (
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/datatree/internal/document"
	"github.com/leapstack-labs/datatree/internal/state"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	"github.com/spf13/cobra"
)

type applyOptions struct {
	opFlags
	Out       string
	FromStore string
	Save      string
}

// NewApplyCommand creates the apply command.
func NewApplyCommand() *cobra.Command {
	opts := &applyOptions{}
	cmd := &cobra.Command{
		Use:   "apply [file]",
		Short: "Apply an operation to every node of a tree",
		Long: `Apply one dataset operation to every node of a tree and render or write the result.

The tree comes from a document file or, with --from-store, from the state store.
Nodes without data are carried over unchanged. If any node fails, nothing is
written and the error names the failing node.`,
		Example: `  # Select the first two time steps everywhere
  datatree apply experiment.yaml --op isel --isel t=0:2

  # Mean over x (every node with data must have x)
  datatree apply experiment.yaml --op mean --dim x

  # Arithmetic with a scalar, a dataset or another tree
  datatree apply experiment.yaml --op mul --scalar 10
  datatree apply experiment.yaml --op sub --with baseline.yaml

  # Starlark expression, written to a file
  datatree apply experiment.yaml --op expr --expr "math.log(x + 1)" --out logged.yaml

  # Operate on a stored tree and store the result
  datatree apply --from-store exp --op cumsum --dim t --save exp-cumsum`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, args, opts)
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the result to this document file")
	cmd.Flags().StringVar(&opts.FromStore, "from-store", "", "Read the input tree from the state store")
	cmd.Flags().StringVar(&opts.Save, "save", "", "Save the result to the state store under this name")

	_ = cmd.RegisterFlagCompletionFunc("op", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"isel", "any", "all", "sum", "prod", "mean", "median", "min", "max", "std", "var", "count",
			"cumsum", "cumprod", "sin", "cos", "tan", "exp", "log", "sqrt", "abs", "negative", "expr",
			"add", "sub", "mul", "div", "pow", "mod",
		}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runApply(cmd *cobra.Command, args []string, opts *applyOptions) error {
	c := NewCommandContext(cmd)
	ctx := cmd.Context()
	r := c.Renderer

	switch {
	case len(args) == 1 && opts.FromStore != "":
		return fmt.Errorf("give either a file or --from-store, not both")
	case len(args) == 0 && opts.FromStore == "":
		return fmt.Errorf("a document file or --from-store is required")
	}

	op, err := buildOp(opts.opFlags)
	if err != nil {
		return err
	}

	var store *state.SQLiteStore
	if opts.FromStore != "" || opts.Save != "" {
		s, cleanup, err := c.OpenStore()
		if err != nil {
			return err
		}
		defer cleanup()
		store = s
	}

	var input *datatree.Tree
	if opts.FromStore != "" {
		if input, _, err = store.GetTree(ctx, opts.FromStore); err != nil {
			return err
		}
	} else if input, err = document.LoadFile(args[0]); err != nil {
		return err
	}

	var run *state.Run
	if store != nil {
		name := opts.FromStore
		if name == "" {
			name = opts.Save
		}
		if run, err = store.CreateRun(ctx, name, op.String()); err != nil {
			return err
		}
	}

	c.Logger.Info("applying operation", slog.String("op", op.String()), slog.Int("nodes", input.Len()))
	result, err := datatree.Map(input, op,
		datatree.WithLogger(c.Logger),
		datatree.WithParallelism(c.Cfg.Parallelism),
	)
	if err != nil {
		if run != nil {
			_ = store.CompleteRun(ctx, run.ID, state.RunStatusFailed, err.Error())
		}
		return err
	}

	if opts.Save != "" {
		if _, err := store.SaveTree(ctx, opts.Save, result); err != nil {
			_ = store.CompleteRun(ctx, run.ID, state.RunStatusFailed, err.Error())
			return err
		}
	}
	if run != nil {
		if err := store.CompleteRun(ctx, run.ID, state.RunStatusCompleted, ""); err != nil {
			return err
		}
	}

	if opts.Out != "" {
		if err := document.WriteFile(opts.Out, result); err != nil {
			return err
		}
		r.Success(fmt.Sprintf("Wrote %s to %s", op, opts.Out))
	}
	if opts.Save != "" {
		r.Success(fmt.Sprintf("Saved %s as %q (%d nodes)", op, opts.Save, result.Len()))
	}
	if opts.Out == "" && opts.Save == "" {
		return renderTree(r, op.String(), result)
	}
	return nil
}
