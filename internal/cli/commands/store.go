package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/datatree/internal/cli/output"
	"github.com/leapstack-labs/datatree/internal/document"
	"github.com/leapstack-labs/datatree/internal/state"
	"github.com/spf13/cobra"
)

// NewStoreCommand creates the store command and its subcommands.
func NewStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage trees in the state store",
		Long: `Save, fetch, list and delete named trees in the SQLite state store
(state_path in datatree.yaml, or --state).`,
	}
	cmd.AddCommand(
		newStoreSaveCommand(),
		newStoreGetCommand(),
		newStoreListCommand(),
		newStoreDeleteCommand(),
		newStoreRunsCommand(),
	)
	return cmd
}

func newStoreSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "save <name> <file>",
		Short:   "Save a tree document under a name",
		Example: `  datatree store save exp experiment.yaml`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			t, err := document.LoadFile(args[1])
			if err != nil {
				return err
			}
			store, cleanup, err := c.OpenStore()
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := store.SaveTree(cmd.Context(), args[0], t)
			if err != nil {
				return err
			}
			if c.Renderer.EffectiveMode() == output.ModeJSON {
				return c.Renderer.JSON(treeJSON(*rec))
			}
			c.Renderer.Success(fmt.Sprintf("Saved %q (%d nodes)", rec.Name, rec.Nodes))
			return nil
		},
	}
}

func newStoreGetCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Render a stored tree or write it to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			store, cleanup, err := c.OpenStore()
			if err != nil {
				return err
			}
			defer cleanup()

			t, _, err := store.GetTree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out != "" {
				if err := document.WriteFile(out, t); err != nil {
					return err
				}
				c.Renderer.Success(fmt.Sprintf("Wrote %q to %s", args[0], out))
				return nil
			}
			return renderTree(c.Renderer, args[0], t)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the tree to this document file")
	return cmd
}

type treeEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Nodes     int       `json:"nodes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func treeJSON(rec state.TreeRecord) treeEntry {
	return treeEntry{ID: rec.ID, Name: rec.Name, Nodes: rec.Nodes, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}
}

func newStoreListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored trees",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)
			r := c.Renderer
			store, cleanup, err := c.OpenStore()
			if err != nil {
				return err
			}
			defer cleanup()

			trees, err := store.ListTrees(cmd.Context())
			if err != nil {
				return err
			}

			if r.EffectiveMode() == output.ModeJSON {
				entries := make([]treeEntry, 0, len(trees))
				for _, rec := range trees {
					entries = append(entries, treeJSON(rec))
				}
				return r.JSON(entries)
			}
			if len(trees) == 0 {
				r.Muted("No stored trees")
				return nil
			}
			r.Header(1, fmt.Sprintf("Trees (%d total)", len(trees)))
			rows := make([][]string, 0, len(trees))
			for _, rec := range trees {
				rows = append(rows, []string{rec.Name, strconv.Itoa(rec.Nodes), rec.UpdatedAt.Format(time.RFC3339)})
			}
			r.Table([]string{"name", "nodes", "updated"}, rows)
			return nil
		},
	}
}

func newStoreDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored tree",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			store, cleanup, err := c.OpenStore()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.DeleteTree(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.Renderer.Success(fmt.Sprintf("Deleted %q", args[0]))
			return nil
		},
	}
}

type runEntry struct {
	ID          string     `json:"id"`
	Tree        string     `json:"tree"`
	Operation   string     `json:"operation"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func newStoreRunsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [name]",
		Short: "Show the history of operations applied to stored trees",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewCommandContext(cmd)
			r := c.Renderer
			store, cleanup, err := c.OpenStore()
			if err != nil {
				return err
			}
			defer cleanup()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			runs, err := store.ListRuns(cmd.Context(), name, limit)
			if err != nil {
				return err
			}

			if r.EffectiveMode() == output.ModeJSON {
				entries := make([]runEntry, 0, len(runs))
				for _, run := range runs {
					entries = append(entries, runEntry{
						ID: run.ID, Tree: run.TreeName, Operation: run.Operation, Status: string(run.Status),
						StartedAt: run.StartedAt, CompletedAt: run.CompletedAt, Error: run.Error,
					})
				}
				return r.JSON(entries)
			}
			if len(runs) == 0 {
				r.Muted("No runs recorded")
				return nil
			}
			r.Header(1, fmt.Sprintf("Runs (%d shown)", len(runs)))
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.TreeName, run.Operation, string(run.Status), run.StartedAt.Format(time.RFC3339), run.Error,
				})
			}
			r.Table([]string{"tree", "operation", "status", "started", "error"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}
