package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/datatree/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_Debounces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree.yaml")
	other := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: root\n"), 0o600))

	fw, err := newFileWatcher(path, testutil.NewTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- fw.Run(ctx, 50*time.Millisecond, func() { changes <- struct{}{} })
	}()

	// Writes to other files are ignored.
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	select {
	case <-changes:
		t.Fatal("unexpected change for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}

	// A burst of writes yields one callback.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("name: root\n"), 0o600))
	}
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case <-changes:
		t.Fatal("burst reported more than once")
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
