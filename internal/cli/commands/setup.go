package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/datatree/internal/cli/config"
	"github.com/leapstack-labs/datatree/internal/cli/output"
	"github.com/leapstack-labs/datatree/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds a CommandContext from the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// OpenStore opens the state store, creating its directory and schema.
// The returned cleanup closes the store.
func (c *CommandContext) OpenStore() (*state.SQLiteStore, func(), error) {
	// Ensure state directory exists
	stateDir := filepath.Dir(c.Cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, nil, err
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to initialize state store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}
