package domain

import "context"

// NamespaceStore is the authoritative metadata catalog for files and
// directories. Each operation is atomic at the single-record level; there are
// no multi-record transactions. Implementations assign surrogate IDs on
// create.
//
// VirtualPath uniqueness is deliberately not enforced here: collision
// resistance comes from generated stored names, matching the reference
// behavior.
type NamespaceStore interface {
	// CreateFile inserts the record and fills in its ID and CreatedAt.
	CreateFile(ctx context.Context, record *FileRecord) error

	// CreateDirectory inserts the record and fills in its ID and CreatedAt.
	// Returns ErrAlreadyExists when a directory with the same owner, path and
	// parent path is already cataloged.
	CreateDirectory(ctx context.Context, record *DirectoryRecord) error

	// GetFile returns the file record or ErrNotFound.
	GetFile(ctx context.Context, id string) (*FileRecord, error)

	// GetDirectory returns the directory record or ErrNotFound.
	GetDirectory(ctx context.Context, id string) (*DirectoryRecord, error)

	// GetFiles returns the records matching the given ids. Missing ids are
	// skipped, not an error.
	GetFiles(ctx context.Context, ids []string) ([]*FileRecord, error)

	// GetDirectories returns the records matching the given ids. Missing ids
	// are skipped, not an error.
	GetDirectories(ctx context.Context, ids []string) ([]*DirectoryRecord, error)

	// ListChildren returns the directories and files directly under
	// directoryPath for the given owner. An empty path lists the root.
	ListChildren(ctx context.Context, ownerID, ownerName, directoryPath string) ([]*DirectoryRecord, []*FileRecord, error)

	// ListAllDirectories returns every directory across all owners, ordered
	// by owner name then path.
	ListAllDirectories(ctx context.Context) ([]*DirectoryRecord, error)

	// CountDescendants returns how many files and directories live under
	// path for the given owner, at any depth. The match is segment-aware:
	// a record under "ab" is not a descendant of "a".
	CountDescendants(ctx context.Context, ownerID, ownerName, path string) (int64, error)

	// UpdateFilePath rewrites only the virtual path and directory path of the
	// file record.
	UpdateFilePath(ctx context.Context, id, virtualPath, directoryPath string) error

	// DeleteFile removes the file record by id.
	DeleteFile(ctx context.Context, id string) error

	// DeleteDirectory removes the directory record by id.
	DeleteDirectory(ctx context.Context, id string) error

	// ResolveOwnerName looks up the owner's name from either table.
	// Returns ErrNotFound when the owner has no records at all.
	ResolveOwnerName(ctx context.Context, ownerID string) (string, error)

	// Close releases the underlying connection pool.
	Close() error
}
