package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManifestWatcherTriggersOnManifestChange(t *testing.T) {
	if testing.Short() {
		t.Skip("debounce wait")
	}

	root := t.TempDir()
	pkgDir := filepath.Join(root, "core")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))

	triggered := make(chan string, 1)
	w, err := newManifestWatcher(root, func(reason string) {
		select {
		case triggered <- reason:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.run(ctx)

	// A burst of writes must collapse into a single trigger after the
	// debounce window.
	manifest := filepath.Join(pkgDir, "docpkg.yaml")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(manifest, []byte("name: core\n"), 0o644))
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case reason := <-triggered:
		require.Equal(t, "manifest change", reason)
	case <-time.After(debounceWindow + 3*time.Second):
		t.Fatal("watcher never triggered")
	}
}

func TestManifestWatcherIgnoresOtherFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("debounce wait")
	}

	root := t.TempDir()
	pkgDir := filepath.Join(root, "core")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))

	triggered := make(chan string, 1)
	w, err := newManifestWatcher(root, func(reason string) { triggered <- reason })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "notes.txt"), []byte("x"), 0o644))

	select {
	case reason := <-triggered:
		t.Fatalf("unexpected trigger %q", reason)
	case <-time.After(debounceWindow + 500*time.Millisecond):
	}
}
