package managers

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogmemory "github.com/archivehub/archivehub/internal/catalog/memory"
	"github.com/archivehub/archivehub/internal/domain"
	"github.com/archivehub/archivehub/internal/policy"
	storagememory "github.com/archivehub/archivehub/internal/storage/memory"
)

type fixture struct {
	catalog *flakyCatalog
	content *storagememory.Store
	service domain.ArchiveService
}

func newFixture(t *testing.T, adminIDs ...string) *fixture {
	t.Helper()

	catalog := &flakyCatalog{NamespaceStore: catalogmemory.New()}
	content := storagememory.New()

	service := NewArchiveManager(ArchiveManagerDependencies{
		NamespaceStore:    catalog,
		ContentStore:      content,
		AccessPolicy:      policy.NewStaticAccessPolicy(policy.StaticAccessPolicyDependencies{AdminIDs: adminIDs}),
		MaxFileSize:       1 << 20,
		CatalogRetryDelay: time.Millisecond,
	})

	return &fixture{catalog: catalog, content: content, service: service}
}

// flakyCatalog lets tests fail specific catalog writes to exercise the
// compensating rollbacks.
type flakyCatalog struct {
	domain.NamespaceStore

	failCreateFile      bool
	failCreateDirectory bool
	failUpdateFilePath  bool
}

var errCatalogDown = errors.New("catalog unavailable")

func (c *flakyCatalog) CreateFile(ctx context.Context, record *domain.FileRecord) error {
	if c.failCreateFile {
		return errCatalogDown
	}
	return c.NamespaceStore.CreateFile(ctx, record)
}

func (c *flakyCatalog) CreateDirectory(ctx context.Context, record *domain.DirectoryRecord) error {
	if c.failCreateDirectory {
		return errCatalogDown
	}
	return c.NamespaceStore.CreateDirectory(ctx, record)
}

func (c *flakyCatalog) UpdateFilePath(ctx context.Context, id, virtualPath, directoryPath string) error {
	if c.failUpdateFilePath {
		return errCatalogDown
	}
	return c.NamespaceStore.UpdateFilePath(ctx, id, virtualPath, directoryPath)
}

func (f *fixture) upload(t *testing.T, ownerID, ownerName, dir, name, content string) *domain.FileRecord {
	t.Helper()

	record, err := f.service.Upload(context.Background(), domain.UploadParams{
		OwnerID:       ownerID,
		OwnerName:     ownerName,
		DirectoryPath: dir,
		FileName:      name,
		ContentType:   "text/plain",
		Size:          int64(len(content)),
		Content:       strings.NewReader(content),
	})
	require.NoError(t, err)

	return record
}

func (f *fixture) createDirectory(t *testing.T, ownerID, ownerName, parent, name string) *domain.DirectoryRecord {
	t.Helper()

	record, err := f.service.CreateDirectory(context.Background(), domain.CreateDirectoryParams{
		OwnerID:    ownerID,
		OwnerName:  ownerName,
		ParentPath: parent,
		Name:       name,
	})
	require.NoError(t, err)

	return record
}

func TestUpload(t *testing.T) {
	f := newFixture(t)

	record := f.upload(t, "u1", "Alice", "reports", "Q3 Report.pdf", "pdf-bytes")

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "alice", record.OwnerName)
	assert.Equal(t, "Q3 Report.pdf", record.DisplayName)
	assert.Equal(t, "reports", record.DirectoryPath)
	assert.Equal(t, int64(9), record.ByteSize)
	assert.True(t, strings.HasPrefix(record.StoredName, "Q3Report_"))
	assert.True(t, strings.HasSuffix(record.StoredName, ".pdf"))
	assert.True(t, strings.HasPrefix(record.VirtualPath, "alice/reports/"))

	exists, err := f.content.Exists(context.Background(), record.VirtualPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Upload(context.Background(), domain.UploadParams{
		OwnerID:   "u1",
		OwnerName: "alice",
		FileName:  "big.bin",
		Size:      2 << 20,
		Content:   strings.NewReader("x"),
	})

	require.ErrorIs(t, err, domain.ErrFileTooLarge)
}

func TestUploadCatalogFailureRemovesBytes(t *testing.T) {
	f := newFixture(t)
	f.catalog.failCreateFile = true

	_, err := f.service.Upload(context.Background(), domain.UploadParams{
		OwnerID:   "u1",
		OwnerName: "alice",
		FileName:  "note.txt",
		Size:      5,
		Content:   strings.NewReader("hello"),
	})
	require.ErrorIs(t, err, domain.ErrStorage)

	// Nothing may survive the rollback on either side.
	f.catalog.failCreateFile = false
	result, err := f.service.List(context.Background(), domain.ListParams{OwnerID: "u1", OwnerName: "alice"})
	require.NoError(t, err)
	assert.Empty(t, result.Files)
}

func TestCreateDirectory(t *testing.T) {
	f := newFixture(t)

	record := f.createDirectory(t, "u1", "Alice", "", "Projects 2026!")

	assert.Equal(t, "Projects2026", record.Name)
	assert.Equal(t, "Projects2026", record.Path)
	assert.Equal(t, "", record.ParentPath)

	nested := f.createDirectory(t, "u1", "alice", "Projects2026", "drafts")
	assert.Equal(t, "Projects2026/drafts", nested.Path)
	assert.Equal(t, "Projects2026", nested.ParentPath)
}

func TestCreateDirectoryConflict(t *testing.T) {
	f := newFixture(t)

	f.createDirectory(t, "u1", "alice", "", "docs")

	_, err := f.service.CreateDirectory(context.Background(), domain.CreateDirectoryParams{
		OwnerID:   "u1",
		OwnerName: "alice",
		Name:      "docs",
	})

	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCreateDirectoryCatalogConflictKeepsCleanDisk(t *testing.T) {
	f := newFixture(t)

	// A catalog row without a physical directory, as left behind by a prior
	// partial failure.
	require.NoError(t, f.catalog.CreateDirectory(context.Background(), &domain.DirectoryRecord{
		OwnerID:   "u1",
		OwnerName: "alice",
		Name:      "docs",
		Path:      "docs",
	}))

	_, err := f.service.CreateDirectory(context.Background(), domain.CreateDirectoryParams{
		OwnerID:   "u1",
		OwnerName: "alice",
		Name:      "docs",
	})

	// A conflict surfaces as the conflict itself, not as an exhausted-retry
	// storage failure, and the mkdir is still undone.
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.NotErrorIs(t, err, domain.ErrStorage)

	exists, err := f.content.Exists(context.Background(), "alice/docs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateDirectoryCatalogFailureRemovesPhysical(t *testing.T) {
	f := newFixture(t)
	f.catalog.failCreateDirectory = true

	_, err := f.service.CreateDirectory(context.Background(), domain.CreateDirectoryParams{
		OwnerID:   "u1",
		OwnerName: "alice",
		Name:      "docs",
	})
	require.ErrorIs(t, err, domain.ErrStorage)

	// The rollback removed the physical directory, so a retry succeeds.
	f.catalog.failCreateDirectory = false
	f.createDirectory(t, "u1", "alice", "", "docs")
}

func TestListIsScopedToOwner(t *testing.T) {
	f := newFixture(t)

	f.upload(t, "u1", "alice", "", "mine.txt", "a")
	f.upload(t, "u2", "bob", "", "theirs.txt", "b")

	result, err := f.service.List(context.Background(), domain.ListParams{OwnerID: "u1", OwnerName: "alice"})
	require.NoError(t, err)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "mine.txt", result.Files[0].DisplayName)
	assert.False(t, result.IsAdmin)
}

func TestListAdminBrowsesOtherOwner(t *testing.T) {
	f := newFixture(t, "admin")

	f.upload(t, "u2", "bob", "", "theirs.txt", "b")

	result, err := f.service.List(context.Background(), domain.ListParams{
		OwnerID:          "admin",
		OwnerName:        "root",
		RequestedOwnerID: "u2",
	})
	require.NoError(t, err)

	require.Len(t, result.Files, 1)
	assert.Equal(t, "theirs.txt", result.Files[0].DisplayName)
	assert.True(t, result.IsAdmin)
}

func TestGetAllDirectories(t *testing.T) {
	f := newFixture(t, "admin")

	f.createDirectory(t, "u1", "alice", "", "docs")
	f.createDirectory(t, "u1", "alice", "docs", "drafts")

	_, err := f.service.GetAllDirectories(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrAccessDenied)

	entries, err := f.service.GetAllDirectories(context.Background(), "admin")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byPath := map[string]domain.DirectoryTreeEntry{}
	for _, entry := range entries {
		byPath[entry.Path] = entry
	}

	assert.Equal(t, "[alice] docs", byPath["docs"].DisplayName)
	assert.Equal(t, "drafts", byPath["docs/drafts"].DisplayName)
}

func TestDownload(t *testing.T) {
	f := newFixture(t)

	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")

	result, err := f.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	defer result.Content.Close()

	data, err := io.ReadAll(result.Content)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "note.txt", result.Record.DisplayName)
}

func TestDownloadUnknownFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Download(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMoveFile(t *testing.T) {
	f := newFixture(t)

	f.createDirectory(t, "u1", "alice", "", "archive")
	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")
	oldPath := record.VirtualPath

	moved, err := f.service.MoveFile(context.Background(), domain.MoveFileParams{
		ActingID:            "u1",
		FileID:              record.ID,
		TargetDirectoryPath: "archive",
	})
	require.NoError(t, err)

	assert.Equal(t, "archive", moved.DirectoryPath)
	assert.Equal(t, record.StoredName, moved.StoredName)

	exists, err := f.content.Exists(context.Background(), oldPath)
	require.NoError(t, err)
	assert.False(t, exists)

	result, err := f.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	defer result.Content.Close()

	data, err := io.ReadAll(result.Content)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestMoveFileAccessDenied(t *testing.T) {
	f := newFixture(t)

	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")

	_, err := f.service.MoveFile(context.Background(), domain.MoveFileParams{
		ActingID:            "u2",
		FileID:              record.ID,
		TargetDirectoryPath: "archive",
	})

	require.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestMoveFileTargetOccupied(t *testing.T) {
	f := newFixture(t)

	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")

	// Moving a file onto its own path is occupied by definition.
	_, err := f.service.MoveFile(context.Background(), domain.MoveFileParams{
		ActingID:            "u1",
		FileID:              record.ID,
		TargetDirectoryPath: "",
	})

	require.ErrorIs(t, err, domain.ErrTargetExists)
}

func TestMoveFileCatalogFailureRestoresBytes(t *testing.T) {
	f := newFixture(t)
	f.catalog.failUpdateFilePath = true

	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")

	_, err := f.service.MoveFile(context.Background(), domain.MoveFileParams{
		ActingID:            "u1",
		FileID:              record.ID,
		TargetDirectoryPath: "archive",
	})
	require.ErrorIs(t, err, domain.ErrStorage)

	// The file is back where the catalog still says it is.
	result, err := f.service.Download(context.Background(), record.ID)
	require.NoError(t, err)
	defer result.Content.Close()

	data, err := io.ReadAll(result.Content)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCopyFileIsIndependentOfSource(t *testing.T) {
	f := newFixture(t)

	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")

	clone, err := f.service.CopyFile(context.Background(), domain.CopyFileParams{
		ActingID:            "u1",
		FileID:              record.ID,
		TargetDirectoryPath: "backup",
	})
	require.NoError(t, err)

	assert.NotEqual(t, record.ID, clone.ID)
	assert.NotEqual(t, record.StoredName, clone.StoredName)
	assert.Equal(t, record.DisplayName, clone.DisplayName)

	require.NoError(t, f.service.DeleteFile(context.Background(), "u1", record.ID))

	result, err := f.service.Download(context.Background(), clone.ID)
	require.NoError(t, err)
	defer result.Content.Close()

	data, err := io.ReadAll(result.Content)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCopyFileCatalogFailureRemovesDuplicate(t *testing.T) {
	f := newFixture(t)

	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")
	f.catalog.failCreateFile = true

	_, err := f.service.CopyFile(context.Background(), domain.CopyFileParams{
		ActingID:            "u1",
		FileID:              record.ID,
		TargetDirectoryPath: "backup",
	})
	require.ErrorIs(t, err, domain.ErrStorage)

	f.catalog.failCreateFile = false
	result, err := f.service.List(context.Background(), domain.ListParams{
		OwnerID:   "u1",
		OwnerName: "alice",
		Path:      "backup",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Files)
}

func TestDeleteFile(t *testing.T) {
	f := newFixture(t)

	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")

	require.ErrorIs(t, f.service.DeleteFile(context.Background(), "u2", record.ID), domain.ErrAccessDenied)
	require.NoError(t, f.service.DeleteFile(context.Background(), "u1", record.ID))

	_, err := f.service.Download(context.Background(), record.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDirectoryRequiresEmpty(t *testing.T) {
	f := newFixture(t)

	docs := f.createDirectory(t, "u1", "alice", "", "docs")
	record := f.upload(t, "u1", "alice", "docs", "note.txt", "hello")

	err := f.service.DeleteDirectory(context.Background(), "u1", docs.ID)
	require.ErrorIs(t, err, domain.ErrNotEmpty)

	require.NoError(t, f.service.DeleteFile(context.Background(), "u1", record.ID))
	require.NoError(t, f.service.DeleteDirectory(context.Background(), "u1", docs.ID))
}

func TestDeleteDirectoryIgnoresPrefixSiblings(t *testing.T) {
	f := newFixture(t)

	doc := f.createDirectory(t, "u1", "alice", "", "doc")
	f.createDirectory(t, "u1", "alice", "", "docs")
	f.upload(t, "u1", "alice", "docs", "note.txt", "hello")

	// "docs/..." must not count as a descendant of "doc".
	require.NoError(t, f.service.DeleteDirectory(context.Background(), "u1", doc.ID))
}

func TestBulkDeleteFilesMixedOwnership(t *testing.T) {
	f := newFixture(t)

	mine := f.upload(t, "u1", "alice", "", "mine.txt", "a")
	theirs := f.upload(t, "u2", "bob", "", "theirs.txt", "b")
	other := f.upload(t, "u2", "bob", "", "other.txt", "c")

	result, err := f.service.BulkDeleteFiles(context.Background(), domain.BulkDeleteParams{
		ActingID: "u1",
		IDs:      []string{mine.ID, theirs.ID, other.ID, "missing"},
	})
	require.NoError(t, err)

	// Unresolved ids are reported per item; Total only counts resolved
	// records.
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "access denied")
	assert.Contains(t, result.Errors[1], "access denied")
	assert.Equal(t, "file not found: missing", result.Errors[2])
}

func TestBulkDeleteFilesReportsUnresolvedID(t *testing.T) {
	f := newFixture(t)

	mine := f.upload(t, "u1", "alice", "", "mine.txt", "a")
	theirs := f.upload(t, "u2", "bob", "", "theirs.txt", "b")

	result, err := f.service.BulkDeleteFiles(context.Background(), domain.BulkDeleteParams{
		ActingID: "u1",
		IDs:      []string{mine.ID, "nonexistent-id", theirs.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "file not found: nonexistent-id", result.Errors[0])
	assert.Contains(t, result.Errors[1], "access denied")
}

func TestBulkDeleteFilesAllMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.BulkDeleteFiles(context.Background(), domain.BulkDeleteParams{
		ActingID: "u1",
		IDs:      []string{"a", "b"},
	})

	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBulkDeleteDirectories(t *testing.T) {
	f := newFixture(t)

	empty := f.createDirectory(t, "u1", "alice", "", "empty")
	full := f.createDirectory(t, "u1", "alice", "", "full")
	f.upload(t, "u1", "alice", "full", "note.txt", "a")
	foreign := f.createDirectory(t, "u2", "bob", "", "bobs")

	result, err := f.service.BulkDeleteDirectories(context.Background(), domain.BulkDeleteParams{
		ActingID: "u1",
		IDs:      []string{empty.ID, full.ID, foreign.ID, "ghost"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "'full' is not empty")
	assert.Contains(t, result.Errors[1], "access denied")
	assert.Equal(t, "directory not found: ghost", result.Errors[2])
}

func TestAdminBypassesOwnershipChecks(t *testing.T) {
	f := newFixture(t, "admin")

	record := f.upload(t, "u1", "alice", "", "note.txt", "hello")

	require.NoError(t, f.service.DeleteFile(context.Background(), "admin", record.ID))
}

func TestStoredNameUnicode(t *testing.T) {
	f := newFixture(t)

	record := f.upload(t, "u1", "alice", "", "Сводка (v2).txt", "x")

	assert.True(t, strings.HasPrefix(record.StoredName, "Сводкаv2_"))
	assert.True(t, strings.HasSuffix(record.StoredName, ".txt"))
}

func TestUploadRequiresContent(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Upload(context.Background(), domain.UploadParams{
		OwnerID:   "u1",
		OwnerName: "alice",
		FileName:  "note.txt",
	})

	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
