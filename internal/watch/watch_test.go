package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	// Reduce noise in tests
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()

	w, err := New(root, 50*time.Millisecond, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, w.Stop())
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx)

	return w
}

func expectTrigger(t *testing.T, w *Watcher, shop string) {
	t.Helper()

	select {
	case got := <-w.Triggers():
		assert.Equal(t, shop, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s trigger", shop)
	}
}

func expectQuiet(t *testing.T, w *Watcher, d time.Duration) {
	t.Helper()

	select {
	case got := <-w.Triggers():
		t.Fatalf("unexpected trigger for %s", got)
	case <-time.After(d):
	}
}

func TestWatcherTriggersAfterSettle(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "mega"), 0o755))

	w := startWatcher(t, root)

	err := os.WriteFile(filepath.Join(root, "mega", "products.json"), []byte("[]"), 0o644)
	require.NoError(t, err)

	expectTrigger(t, w, "mega")
}

func TestWatcherCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "mega"), 0o755))

	w := startWatcher(t, root)

	// A multi-file drop inside one settle window fires once.
	for _, name := range []string{"a.json", "b.json", "c.json"} {
		err := os.WriteFile(filepath.Join(root, "mega", name), []byte("[]"), 0o644)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}

	expectTrigger(t, w, "mega")
	expectQuiet(t, w, 150*time.Millisecond)
}

func TestWatcherPicksUpNewShopDir(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.Mkdir(filepath.Join(root, "carrefour"), 0o755))

	// Give the create event time to land before writing into the new dir.
	time.Sleep(100 * time.Millisecond)

	err := os.WriteFile(filepath.Join(root, "carrefour", "export.json"), []byte("[]"), 0o644)
	require.NoError(t, err)

	expectTrigger(t, w, "carrefour")
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "mega"), 0o755))

	w := startWatcher(t, root)

	// Wrong extension, hidden file, and a file directly in the root.
	require.NoError(t, os.WriteFile(filepath.Join(root, "mega", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mega", ".partial.json"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.json"), []byte("x"), 0o644))

	expectQuiet(t, w, 150*time.Millisecond)
}

func TestShopFor(t *testing.T) {
	w := &Watcher{root: "/in"}

	tests := []struct {
		path string
		want string
	}{
		{"/in/mega/products.json", "mega"},
		{"/in/mega/EXPORT.JSON", "mega"},
		{"/in/stray.json", ""},
		{"/in/mega/.partial.json", ""},
		{"/in/.git/config.json", ""},
		{"/in/mega/sub/products.json", ""},
		{"/in/mega/notes.txt", ""},
		{"/elsewhere/mega/products.json", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, w.shopFor(tt.path), "path %s", tt.path)
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, 50*time.Millisecond, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcherRequiresDirectory(t *testing.T) {
	_, err := New("/nonexistent/input/root", 0, testLogger())
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, os.WriteFile(file, []byte("[]"), 0o644))
	_, err = New(file, 0, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
