package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches into a fresh directory so no stray datatree.yaml is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.StringP("output", "o", "", "")
	flags.BoolP("verbose", "v", false, "")
	flags.String("log-level", "", "")
	flags.IntP("parallelism", "p", 0, "")
	flags.String("state", "", "")
	flags.String("source-type", "", "")
	flags.String("source-dsn", "", "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t)
	t.Cleanup(ResetConfig)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, DefaultParallelism, cfg.Parallelism)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultWatchDebounce, cfg.WatchDebounce)
	assert.Equal(t, "duckdb", cfg.Source.Type)
	assert.Equal(t, "row", cfg.Source.Dim)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	dir := chdir(t)
	t.Cleanup(ResetConfig)

	content := `output: json
log_level: warn
parallelism: 4
watch_debounce: 1s
source:
  type: sqlite
  path: data.db
  dim: obs
  options:
    mode: ro
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datatree.yaml"), []byte(content), 0o600))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "datatree.yaml", GetConfigFileUsed())
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, time.Second, cfg.WatchDebounce)
	assert.Equal(t, "sqlite", cfg.Source.Type)
	assert.Equal(t, "data.db", cfg.Source.Path)
	assert.Equal(t, "obs", cfg.Source.Dim)
	assert.Equal(t, map[string]string{"mode": "ro"}, cfg.Source.Options)
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	chdir(t)
	t.Cleanup(ResetConfig)

	_, err := LoadConfig("missing.yaml", nil)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := chdir(t)
	t.Cleanup(ResetConfig)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: text\nparallelism: 2\nstate_path: file.db\n"), 0o600))

	t.Setenv("DATATREE_PARALLELISM", "3")
	t.Setenv("DATATREE_STATE_PATH", "env.db")
	t.Setenv("DATATREE_SOURCE_DSN", "host=${DATATREE_TEST_HOST}")
	t.Setenv("DATATREE_TEST_HOST", "db.internal")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--state", "flag.db", "-o", "markdown", "--source-type", "postgres"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "markdown", cfg.OutputFormat, "flag beats file")
	assert.Equal(t, 3, cfg.Parallelism, "env beats file")
	assert.Equal(t, "flag.db", cfg.StatePath, "flag beats env")
	assert.Equal(t, "postgres", cfg.Source.Type)
	assert.Equal(t, "host=db.internal", cfg.Source.DSN)
}

func TestLoadConfig_UnchangedFlagsIgnored(t *testing.T) {
	chdir(t)
	t.Cleanup(ResetConfig)

	flags := newFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultParallelism, cfg.Parallelism)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad output", []string{"-o", "html"}, "invalid output format"},
		{"negative parallelism", []string{"--parallelism=-1"}, "parallelism must not be negative"},
		{"unknown source", []string{"--source-type", "oracle"}, "unknown source type"},
		{"bad log level", []string{"--log-level", "loud"}, "unable to decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			t.Cleanup(ResetConfig)

			flags := newFlags()
			require.NoError(t, flags.Parse(tt.args))
			_, err := LoadConfig("", flags)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestConfig_Level(t *testing.T) {
	cfg := Default()
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	cfg.Verbose = true
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestSourceConfig_AdapterConfig(t *testing.T) {
	src := SourceConfig{Type: "postgres", Host: "h", Port: 5433, Database: "d", User: "u", Password: "p"}
	ac := src.AdapterConfig()
	assert.Equal(t, "postgres", ac.Type)
	assert.Equal(t, "u", ac.Username)
	assert.Equal(t, 5433, ac.Port)
}

func TestContextHelpers(t *testing.T) {
	t.Cleanup(ResetConfig)
	ResetConfig()

	ctx := context.Background()
	assert.NotNil(t, GetLogger(ctx))
	assert.Equal(t, Default(), GetConfig(ctx))

	var buf bytes.Buffer
	cfg := Default()
	logger := NewLogger(&buf, cfg)
	ctx = WithLogger(WithConfig(ctx, cfg), logger)

	assert.Same(t, logger, GetLogger(ctx))
	assert.Same(t, cfg, GetConfig(ctx))

	GetLogger(ctx).Debug("hidden")
	GetLogger(ctx).Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
