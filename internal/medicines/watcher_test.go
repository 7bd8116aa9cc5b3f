package medicines

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsBookWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medicines.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, path, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, afero.WriteFile(afero.NewOsFs(), filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))

	book := NewBook(afero.NewOsFs(), path)
	_, err = book.Add("Aspirin", "08:00", true)
	require.NoError(t, err)

	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}
