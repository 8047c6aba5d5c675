package domain

import (
	"context"
	"io"
)

// ArchiveService orchestrates uploads, directory management and
// move/copy/delete across the namespace catalog and the content store,
// enforcing access control and compensating rollback on partial failure.
type ArchiveService interface {
	Upload(ctx context.Context, params UploadParams) (*FileRecord, error)
	CreateDirectory(ctx context.Context, params CreateDirectoryParams) (*DirectoryRecord, error)
	List(ctx context.Context, params ListParams) (ListResult, error)
	GetAllDirectories(ctx context.Context, actingID string) ([]DirectoryTreeEntry, error)
	Download(ctx context.Context, fileID string) (DownloadResult, error)
	MoveFile(ctx context.Context, params MoveFileParams) (*FileRecord, error)
	CopyFile(ctx context.Context, params CopyFileParams) (*FileRecord, error)
	DeleteFile(ctx context.Context, actingID, fileID string) error
	DeleteDirectory(ctx context.Context, actingID, directoryID string) error
	BulkDeleteFiles(ctx context.Context, params BulkDeleteParams) (BulkDeleteResult, error)
	BulkDeleteDirectories(ctx context.Context, params BulkDeleteParams) (BulkDeleteResult, error)
}

type UploadParams struct {
	OwnerID       string
	OwnerName     string
	DirectoryPath string
	FileName      string
	ContentType   string
	Size          int64
	Content       io.Reader
}

type CreateDirectoryParams struct {
	OwnerID    string
	OwnerName  string
	Name       string
	ParentPath string
}

type ListParams struct {
	OwnerID   string
	OwnerName string
	Path      string

	// RequestedOwnerID selects another owner's tree. Only honored for
	// admins; everyone else is pinned to their own tree.
	RequestedOwnerID string
}

type ListResult struct {
	Path        string             `json:"path"`
	Directories []*DirectoryRecord `json:"directories"`
	Files       []*FileRecord      `json:"files"`
	IsAdmin     bool               `json:"is_admin"`
}

type DownloadResult struct {
	Record  *FileRecord
	Content io.ReadCloser
}

type MoveFileParams struct {
	ActingID            string
	FileID              string
	TargetDirectoryPath string
}

type CopyFileParams struct {
	ActingID            string
	FileID              string
	TargetDirectoryPath string
}

type BulkDeleteParams struct {
	ActingID string
	IDs      []string
}

// BulkDeleteResult reports per-item outcomes. Bulk operations are the only
// place partial success is part of the contract.
type BulkDeleteResult struct {
	Deleted int      `json:"deleted"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors"`
}
