package domain

import (
	"context"
	"io"
)

// ContentStore manages the physical bytes behind the catalog. Paths are
// virtual paths (owner root segment plus nested segment directories); the
// store maps them onto its own layout.
type ContentStore interface {
	// EnsureDirectory creates the directory and any missing ancestors.
	// Idempotent.
	EnsureDirectory(ctx context.Context, path string) error

	// WriteFile streams src into place at path and returns the number of
	// bytes written. Transient failures are retried with bounded exponential
	// backoff before ErrStorage is reported; a cancelled context is reported
	// as ErrClientDisconnected. No partial file is left behind on failure.
	WriteFile(ctx context.Context, src io.Reader, path string) (int64, error)

	// RenameFile atomically moves bytes from oldPath to newPath. Returns
	// ErrTargetExists when newPath is occupied and ErrNotFound when oldPath
	// is missing.
	RenameFile(ctx context.Context, oldPath, newPath string) error

	// DuplicateFile copies all bytes from sourcePath to targetPath. Returns
	// ErrNotFound / ErrTargetExists analogously to RenameFile.
	DuplicateFile(ctx context.Context, sourcePath, targetPath string) (int64, error)

	// DeleteFile removes the bytes at path. Already absent counts as success.
	DeleteFile(ctx context.Context, path string) error

	// RemoveEmptyDirectory removes the directory at path. Already absent
	// counts as success; a non-empty directory is an error.
	RemoveEmptyDirectory(ctx context.Context, path string) error

	// Exists reports whether bytes are present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Open returns a reader over the bytes at path, or ErrNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
