package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivehub/archivehub/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func insertFile(t *testing.T, store *Store, ownerID, ownerName, directoryPath, storedName string) *domain.FileRecord {
	t.Helper()

	virtualPath := ownerName + "/"
	if directoryPath != "" {
		virtualPath += directoryPath + "/"
	}
	virtualPath += storedName

	record := &domain.FileRecord{
		OwnerID:       ownerID,
		OwnerName:     ownerName,
		DisplayName:   storedName,
		StoredName:    storedName,
		VirtualPath:   virtualPath,
		DirectoryPath: directoryPath,
		ContentType:   "text/plain",
		ByteSize:      10,
	}
	require.NoError(t, store.CreateFile(context.Background(), record))
	require.NotEmpty(t, record.ID)

	return record
}

func insertDirectory(t *testing.T, store *Store, ownerID, ownerName, parentPath, name string) *domain.DirectoryRecord {
	t.Helper()

	path := name
	if parentPath != "" {
		path = parentPath + "/" + name
	}

	record := &domain.DirectoryRecord{
		OwnerID:    ownerID,
		OwnerName:  ownerName,
		Name:       name,
		Path:       path,
		ParentPath: parentPath,
	}
	require.NoError(t, store.CreateDirectory(context.Background(), record))

	return record
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	record := insertFile(t, store, "42", "alice", "docs", "notes_1_abc.txt")

	got, err := store.GetFile(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.VirtualPath, got.VirtualPath)
	assert.Equal(t, record.DirectoryPath, got.DirectoryPath)
	assert.Equal(t, int64(10), got.ByteSize)

	_, err = store.GetFile(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDirectoryConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	insertDirectory(t, store, "42", "alice", "", "docs")

	err := store.CreateDirectory(ctx, &domain.DirectoryRecord{
		OwnerID:   "42",
		OwnerName: "alice",
		Name:      "docs",
		Path:      "docs",
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// Another owner may use the same path.
	insertDirectory(t, store, "7", "bob", "", "docs")
}

func TestListChildren(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	insertDirectory(t, store, "42", "alice", "", "docs")
	insertDirectory(t, store, "42", "alice", "docs", "inner")
	insertFile(t, store, "42", "alice", "", "root.txt")
	insertFile(t, store, "42", "alice", "docs", "nested.txt")

	dirs, files, err := store.ListChildren(ctx, "42", "alice", "")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	require.Len(t, files, 1)
	assert.Equal(t, "docs", dirs[0].Path)
	assert.Equal(t, "root.txt", files[0].StoredName)

	dirs, files, err = store.ListChildren(ctx, "42", "alice", "docs")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	require.Len(t, files, 1)
}

func TestCountDescendantsPrefixSafety(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	insertDirectory(t, store, "42", "alice", "", "a")
	insertDirectory(t, store, "42", "alice", "", "ab")
	insertFile(t, store, "42", "alice", "ab", "in_ab.txt")
	insertFile(t, store, "42", "alice", "a/deep", "deep.txt")

	count, err := store.CountDescendants(ctx, "42", "alice", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.CountDescendants(ctx, "42", "alice", "ab")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.CountDescendants(ctx, "42", "alice", "empty")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountDescendantsUnderscoreNotWildcard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	insertDirectory(t, store, "42", "alice", "", "a_b")
	insertFile(t, store, "42", "alice", "axb", "file.txt")

	// "_" in the path must match literally, not as a single-char wildcard.
	count, err := store.CountDescendants(ctx, "42", "alice", "a_b")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpdateFilePath(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	record := insertFile(t, store, "42", "alice", "", "move_me.txt")

	require.NoError(t, store.UpdateFilePath(ctx, record.ID, "alice/docs/move_me.txt", "docs"))

	got, err := store.GetFile(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice/docs/move_me.txt", got.VirtualPath)
	assert.Equal(t, "docs", got.DirectoryPath)

	assert.ErrorIs(t, store.UpdateFilePath(ctx, "missing", "x", "y"), domain.ErrNotFound)
}

func TestDeleteAndBulkGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := insertFile(t, store, "42", "alice", "", "a.txt")
	b := insertFile(t, store, "42", "alice", "", "b.txt")

	records, err := store.GetFiles(ctx, []string{a.ID, "missing", b.ID})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	require.NoError(t, store.DeleteFile(ctx, a.ID))
	assert.ErrorIs(t, store.DeleteFile(ctx, a.ID), domain.ErrNotFound)

	records, err = store.GetFiles(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestResolveOwnerName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	insertDirectory(t, store, "7", "bob", "", "stuff")

	name, err := store.ResolveOwnerName(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	_, err = store.ResolveOwnerName(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAllDirectoriesOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	insertDirectory(t, store, "7", "bob", "", "zeta")
	insertDirectory(t, store, "42", "alice", "", "beta")
	insertDirectory(t, store, "42", "alice", "", "alpha")

	records, err := store.ListAllDirectories(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "alice", records[0].OwnerName)
	assert.Equal(t, "alpha", records[0].Path)
	assert.Equal(t, "bob", records[2].OwnerName)
}
