package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/leapstack-labs/datatree/internal/document"
	"github.com/leapstack-labs/datatree/pkg/datatree"
	"github.com/spf13/cobra"
)

type showOptions struct {
	Node  string
	Watch bool
}

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	opts := &showOptions{}
	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Render a tree document",
		Long: `Render a YAML or JSON tree document with a summary of every node's dataset.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Show a tree
  datatree show experiment.yaml

  # Show one subtree as JSON
  datatree show experiment.yaml --node /results -o json

  # Re-render whenever the file changes
  datatree show experiment.yaml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Node, "node", "", "Only show the subtree at this path")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-render when the file changes")
	return cmd
}

func runShow(cmd *cobra.Command, path string, opts *showOptions) error {
	c := NewCommandContext(cmd)
	r := c.Renderer

	render := func() error {
		t, err := loadSubtree(path, opts.Node)
		if err != nil {
			return err
		}
		return renderTree(r, path, t)
	}

	if !opts.Watch {
		return render()
	}

	if err := render(); err != nil {
		r.Error(err.Error())
	}
	fw, err := newFileWatcher(path, c.Logger)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", path))
	return fw.Run(ctx, c.Cfg.WatchDebounce, func() {
		r.Println("")
		if err := render(); err != nil {
			r.Error(err.Error())
		}
	})
}

// loadSubtree loads a document and narrows it to the node at nodePath.
func loadSubtree(path, nodePath string) (*datatree.Tree, error) {
	t, err := document.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if nodePath == "" {
		return t, nil
	}
	id, err := t.Lookup(nodePath)
	if err != nil {
		return nil, err
	}
	return t.Subtree(id)
}
