package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivehub/archivehub/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(StoreDependencies{
		BasePath:      t.TempDir(),
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)

	return store
}

func TestWriteAndOpen(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.EnsureDirectory(ctx, "alice/docs"))

	written, err := store.WriteFile(ctx, strings.NewReader("hello"), "alice/docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), written)

	exists, err := store.Exists(ctx, "alice/docs/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Open(ctx, "alice/docs/a.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// No staging leftovers.
	entries, err := os.ReadDir(filepath.Join(store.basePath, tempDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteFileClientDisconnect(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.WriteFile(ctx, strings.NewReader("partial"), "alice/drop.txt")
	assert.ErrorIs(t, err, domain.ErrClientDisconnected)

	exists, statErr := store.Exists(context.Background(), "alice/drop.txt")
	require.NoError(t, statErr)
	assert.False(t, exists)
}

func TestWriteFileMissingTargetDirectoryFailsClean(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Target directory never created: every rename attempt fails and nothing
	// is left behind.
	_, err := store.WriteFile(ctx, strings.NewReader("data"), "alice/nope/file.txt")
	assert.ErrorIs(t, err, domain.ErrStorage)

	entries, readErr := os.ReadDir(filepath.Join(store.basePath, tempDirName))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRenameFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.EnsureDirectory(ctx, "alice/a"))
	require.NoError(t, store.EnsureDirectory(ctx, "alice/b"))

	_, err := store.WriteFile(ctx, strings.NewReader("x"), "alice/a/f.txt")
	require.NoError(t, err)

	require.NoError(t, store.RenameFile(ctx, "alice/a/f.txt", "alice/b/f.txt"))

	exists, err := store.Exists(ctx, "alice/a/f.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.Exists(ctx, "alice/b/f.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.ErrorIs(t, store.RenameFile(ctx, "alice/a/f.txt", "alice/b/other.txt"), domain.ErrNotFound)

	_, err = store.WriteFile(ctx, strings.NewReader("y"), "alice/a/f.txt")
	require.NoError(t, err)
	assert.ErrorIs(t, store.RenameFile(ctx, "alice/a/f.txt", "alice/b/f.txt"), domain.ErrTargetExists)
}

func TestDuplicateFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.EnsureDirectory(ctx, "alice"))

	_, err := store.WriteFile(ctx, strings.NewReader("content"), "alice/src.txt")
	require.NoError(t, err)

	written, err := store.DuplicateFile(ctx, "alice/src.txt", "alice/dst.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(7), written)

	// Both copies are independently deletable.
	require.NoError(t, store.DeleteFile(ctx, "alice/src.txt"))

	exists, err := store.Exists(ctx, "alice/dst.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.DuplicateFile(ctx, "alice/missing.txt", "alice/x.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.WriteFile(ctx, strings.NewReader("again"), "alice/src.txt")
	require.NoError(t, err)
	_, err = store.DuplicateFile(ctx, "alice/src.txt", "alice/dst.txt")
	assert.ErrorIs(t, err, domain.ErrTargetExists)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.DeleteFile(ctx, "alice/never-existed.txt"))
	require.NoError(t, store.RemoveEmptyDirectory(ctx, "alice/never-existed"))

	require.NoError(t, store.EnsureDirectory(ctx, "alice/dir"))
	require.NoError(t, store.RemoveEmptyDirectory(ctx, "alice/dir"))

	exists, err := store.Exists(ctx, "alice/dir")
	require.NoError(t, err)
	assert.False(t, exists)
}
