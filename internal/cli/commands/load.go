package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/datatree/internal/adapter"
	"github.com/leapstack-labs/datatree/internal/document"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	"github.com/spf13/cobra"
)

type loadOptions struct {
	Node   string
	Query  string
	Index  string
	Dim    string
	Out    string
	Create bool
}

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	opts := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Attach a SQL query result to a node of a tree document",
		Long: `Run a query through the configured source and store the result as the dataset
of one node. Numeric and boolean columns become data variables along the row
dimension; --index turns a numeric column into the index coordinate.

Missing nodes are created under their parent. With --create a new document is
started when the file does not exist.`,
		Example: `  # Load from DuckDB into /raw
  datatree load experiment.yaml --node /raw --query "SELECT * FROM 'obs.parquet'"

  # Use a postgres source, indexing rows by t
  datatree load experiment.yaml --source-type postgres --source-dsn "$PG_DSN" \
    --node /obs --query "SELECT t, temp FROM readings ORDER BY t" --index t`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Node, "node", "/", "Path of the node that receives the data")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "SQL query to run")
	cmd.Flags().StringVar(&opts.Index, "index", "", "Column used as the index coordinate")
	cmd.Flags().StringVar(&opts.Dim, "dim", "", "Row dimension name when --index is not set (default from source.dim)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write to this file instead of updating the input")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "Start a new document if the file does not exist")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runLoad(cmd *cobra.Command, path string, opts *loadOptions) error {
	c := NewCommandContext(cmd)
	ctx := cmd.Context()

	t, err := document.LoadFile(path)
	if err != nil {
		if !opts.Create || !errors.Is(err, os.ErrNotExist) {
			return err
		}
		t = datatree.MustNew("root", nil)
	}

	src := c.Cfg.Source
	acfg := *src.AdapterConfig()
	a, err := adapter.NewAdapter(acfg, c.Logger)
	if err != nil {
		return err
	}
	if err := a.Connect(ctx, acfg); err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	dim := opts.Dim
	if dim == "" {
		dim = src.Dim
	}
	ds, err := adapter.Load(ctx, a, opts.Query, adapter.LoadOptions{Index: opts.Index, Dim: dim, Logger: c.Logger})
	if err != nil {
		return fmt.Errorf("failed to load query: %w", err)
	}

	id, err := ensureNode(t, opts.Node)
	if err != nil {
		return err
	}
	if err := t.SetData(id, ds); err != nil {
		return err
	}

	dest := path
	if opts.Out != "" {
		dest = opts.Out
	}
	if err := document.WriteFile(dest, t); err != nil {
		return err
	}

	c.Logger.Debug("loaded query", slog.String("adapter", a.DialectName()), slog.String("node", t.Path(id)))
	c.Renderer.Success(fmt.Sprintf("Loaded %d variables into %s of %s", len(ds.DataVarNames()), t.Path(id), dest))
	return nil
}

// ensureNode looks up nodePath, creating missing nodes along the way.
func ensureNode(t *datatree.Tree, nodePath string) (datatree.NodeID, error) {
	id := t.Root()
	for _, seg := range strings.Split(nodePath, datatree.PathSeparator) {
		if seg == "" {
			continue
		}
		child, ok := t.Child(id, seg)
		if !ok {
			var err error
			if child, err = t.AddChild(id, seg, nil); err != nil {
				return 0, err
			}
		}
		id = child
	}
	return id, nil
}
