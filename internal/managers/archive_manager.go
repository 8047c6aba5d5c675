package managers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/archivehub/archivehub/internal/domain"
	"github.com/archivehub/archivehub/internal/metrics"
	"github.com/archivehub/archivehub/internal/pathutil"
)

const (
	defaultCatalogRetryAttempts = 3
	defaultCatalogRetryDelay    = time.Second

	defaultContentType = "application/octet-stream"
)

// archiveManager orchestrates every archive operation across the namespace
// catalog and the content store. Physical bytes are mutated first, the
// catalog second; a catalog failure triggers a compensating rollback of the
// physical side, so bytes never end up referencing a missing record.
type archiveManager struct {
	namespace domain.NamespaceStore
	content   domain.ContentStore
	policy    domain.AccessPolicy
	metrics   *metrics.ArchiveMetrics

	maxFileSize          int64
	catalogRetryAttempts int
	catalogRetryDelay    time.Duration
}

type ArchiveManagerDependencies struct {
	NamespaceStore domain.NamespaceStore
	ContentStore   domain.ContentStore
	AccessPolicy   domain.AccessPolicy

	// Metrics is optional; rollbacks go unrecorded without it.
	Metrics *metrics.ArchiveMetrics

	// MaxFileSize caps upload sizes in bytes. Zero means unlimited.
	MaxFileSize int64

	// CatalogRetryAttempts and CatalogRetryDelay bound the retry of catalog
	// writes before the physical side is rolled back.
	CatalogRetryAttempts int
	CatalogRetryDelay    time.Duration
}

func NewArchiveManager(deps ArchiveManagerDependencies) domain.ArchiveService {
	attempts := deps.CatalogRetryAttempts
	if attempts <= 0 {
		attempts = defaultCatalogRetryAttempts
	}
	delay := deps.CatalogRetryDelay
	if delay <= 0 {
		delay = defaultCatalogRetryDelay
	}

	return &archiveManager{
		namespace:            deps.NamespaceStore,
		content:              deps.ContentStore,
		policy:               deps.AccessPolicy,
		metrics:              deps.Metrics,
		maxFileSize:          deps.MaxFileSize,
		catalogRetryAttempts: attempts,
		catalogRetryDelay:    delay,
	}
}

func (m *archiveManager) Upload(ctx context.Context, params domain.UploadParams) (*domain.FileRecord, error) {
	if params.OwnerID == "" || params.OwnerName == "" {
		return nil, fmt.Errorf("%w: owner_id and owner_name are required", domain.ErrInvalidInput)
	}
	if params.FileName == "" || params.Content == nil {
		return nil, fmt.Errorf("%w: no file uploaded", domain.ErrInvalidInput)
	}
	if m.maxFileSize > 0 && params.Size > m.maxFileSize {
		return nil, fmt.Errorf("%w of %dMB", domain.ErrFileTooLarge, m.maxFileSize/(1024*1024))
	}

	ownerName := normalizeOwnerName(params.OwnerName)
	directoryPath := pathutil.CanonicalPath(params.DirectoryPath)

	if err := m.content.EnsureDirectory(ctx, pathutil.Join(ownerName, directoryPath)); err != nil {
		return nil, err
	}

	storedName := generateStoredName(params.FileName)
	virtualPath := pathutil.Join(ownerName, directoryPath, storedName)

	written, err := m.content.WriteFile(ctx, params.Content, virtualPath)
	if err != nil {
		return nil, err
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	record := &domain.FileRecord{
		OwnerID:       params.OwnerID,
		OwnerName:     ownerName,
		DisplayName:   params.FileName,
		StoredName:    storedName,
		VirtualPath:   virtualPath,
		DirectoryPath: directoryPath,
		ContentType:   contentType,
		ByteSize:      written,
	}

	err = m.commitCatalog(ctx, "upload",
		func() error { return m.namespace.CreateFile(ctx, record) },
		func() error { return m.content.DeleteFile(context.WithoutCancel(ctx), virtualPath) },
	)
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.RecordUpload(written)
	}

	log.Info().
		Str("owner_id", record.OwnerID).
		Str("path", record.VirtualPath).
		Int64("size", record.ByteSize).
		Msg("File uploaded")

	return record, nil
}

func (m *archiveManager) CreateDirectory(ctx context.Context, params domain.CreateDirectoryParams) (*domain.DirectoryRecord, error) {
	if params.OwnerID == "" || params.OwnerName == "" || params.Name == "" {
		return nil, fmt.Errorf("%w: owner_id, owner_name and name are required", domain.ErrInvalidInput)
	}

	name := pathutil.SanitizeSegment(strings.TrimSpace(params.Name))
	if name == "" {
		return nil, fmt.Errorf("%w: invalid directory name", domain.ErrInvalidInput)
	}

	ownerName := normalizeOwnerName(params.OwnerName)
	parentPath := pathutil.CanonicalPath(params.ParentPath)
	path := pathutil.Join(parentPath, name)
	physicalPath := pathutil.Join(ownerName, path)

	// Catalog row and physical directory can each exist on their own after a
	// prior partial failure, so both are checked.
	exists, err := m.content.Exists(ctx, physicalPath)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w in filesystem", domain.ErrAlreadyExists)
	}

	if err := m.content.EnsureDirectory(ctx, physicalPath); err != nil {
		return nil, err
	}

	record := &domain.DirectoryRecord{
		OwnerID:    params.OwnerID,
		OwnerName:  ownerName,
		Name:       name,
		Path:       path,
		ParentPath: parentPath,
	}

	err = m.commitCatalog(ctx, "create_directory",
		func() error { return m.namespace.CreateDirectory(ctx, record) },
		func() error { return m.content.RemoveEmptyDirectory(context.WithoutCancel(ctx), physicalPath) },
	)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("owner_id", record.OwnerID).
		Str("path", record.Path).
		Msg("Directory created")

	return record, nil
}

func (m *archiveManager) List(ctx context.Context, params domain.ListParams) (domain.ListResult, error) {
	if params.OwnerID == "" || params.OwnerName == "" {
		return domain.ListResult{}, fmt.Errorf("%w: owner_id and owner_name are required", domain.ErrInvalidInput)
	}

	ownerName := normalizeOwnerName(params.OwnerName)
	path := pathutil.CanonicalPath(params.Path)
	isAdmin := m.policy.IsAdmin(params.OwnerID)

	targetOwnerID := params.OwnerID
	targetOwnerName := ownerName

	// Admins may browse another owner's tree; everyone else is pinned to
	// their own.
	if isAdmin && params.RequestedOwnerID != "" && params.RequestedOwnerID != params.OwnerID {
		targetOwnerID = params.RequestedOwnerID
		if name, err := m.namespace.ResolveOwnerName(ctx, params.RequestedOwnerID); err == nil {
			targetOwnerName = normalizeOwnerName(name)
		}
	}

	dirs, files, err := m.namespace.ListChildren(ctx, targetOwnerID, targetOwnerName, path)
	if err != nil {
		return domain.ListResult{}, err
	}

	if dirs == nil {
		dirs = []*domain.DirectoryRecord{}
	}
	if files == nil {
		files = []*domain.FileRecord{}
	}

	return domain.ListResult{
		Path:        path,
		Directories: dirs,
		Files:       files,
		IsAdmin:     isAdmin,
	}, nil
}

func (m *archiveManager) GetAllDirectories(ctx context.Context, actingID string) ([]domain.DirectoryTreeEntry, error) {
	if !m.policy.IsAdmin(actingID) {
		return nil, domain.ErrAccessDenied
	}

	records, err := m.namespace.ListAllDirectories(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.DirectoryTreeEntry, len(records))
	for i, record := range records {
		displayName := record.Name
		if record.ParentPath == "" {
			displayName = "[" + record.OwnerName + "] " + record.Name
		}

		entries[i] = domain.DirectoryTreeEntry{
			ID:          record.ID,
			Name:        record.Name,
			Path:        record.Path,
			ParentPath:  record.ParentPath,
			OwnerID:     record.OwnerID,
			OwnerName:   record.OwnerName,
			DisplayName: displayName,
		}
	}

	return entries, nil
}

func (m *archiveManager) Download(ctx context.Context, fileID string) (domain.DownloadResult, error) {
	if fileID == "" {
		return domain.DownloadResult{}, fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}

	record, err := m.namespace.GetFile(ctx, fileID)
	if err != nil {
		return domain.DownloadResult{}, err
	}

	content, err := m.content.Open(ctx, record.VirtualPath)
	if err != nil {
		return domain.DownloadResult{}, err
	}

	if m.metrics != nil {
		m.metrics.RecordDownload(record.ByteSize)
	}

	return domain.DownloadResult{Record: record, Content: content}, nil
}

func (m *archiveManager) MoveFile(ctx context.Context, params domain.MoveFileParams) (*domain.FileRecord, error) {
	if params.ActingID == "" || params.FileID == "" {
		return nil, fmt.Errorf("%w: owner_id and file_id are required", domain.ErrInvalidInput)
	}

	record, err := m.namespace.GetFile(ctx, params.FileID)
	if err != nil {
		return nil, err
	}
	if !m.policy.CanAccess(params.ActingID, record.OwnerID) {
		return nil, domain.ErrAccessDenied
	}

	targetDir := pathutil.CanonicalPath(params.TargetDirectoryPath)

	// The stored name never changes on move.
	oldVirtualPath := record.VirtualPath
	newVirtualPath := pathutil.Join(record.OwnerName, targetDir, record.StoredName)

	occupied, err := m.content.Exists(ctx, newVirtualPath)
	if err != nil {
		return nil, err
	}
	if occupied {
		return nil, domain.ErrTargetExists
	}

	if err := m.content.EnsureDirectory(ctx, pathutil.Join(record.OwnerName, targetDir)); err != nil {
		return nil, err
	}
	if err := m.content.RenameFile(ctx, oldVirtualPath, newVirtualPath); err != nil {
		return nil, err
	}

	err = m.commitCatalog(ctx, "move_file",
		func() error { return m.namespace.UpdateFilePath(ctx, record.ID, newVirtualPath, targetDir) },
		func() error {
			return m.content.RenameFile(context.WithoutCancel(ctx), newVirtualPath, oldVirtualPath)
		},
	)
	if err != nil {
		return nil, err
	}

	record.VirtualPath = newVirtualPath
	record.DirectoryPath = targetDir

	log.Info().
		Str("file_id", record.ID).
		Str("path", newVirtualPath).
		Msg("File moved")

	return record, nil
}

func (m *archiveManager) CopyFile(ctx context.Context, params domain.CopyFileParams) (*domain.FileRecord, error) {
	if params.ActingID == "" || params.FileID == "" {
		return nil, fmt.Errorf("%w: owner_id and file_id are required", domain.ErrInvalidInput)
	}

	record, err := m.namespace.GetFile(ctx, params.FileID)
	if err != nil {
		return nil, err
	}
	if !m.policy.CanAccess(params.ActingID, record.OwnerID) {
		return nil, domain.ErrAccessDenied
	}

	exists, err := m.content.Exists(ctx, record.VirtualPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: source file missing on disk", domain.ErrNotFound)
	}

	targetDir := pathutil.CanonicalPath(params.TargetDirectoryPath)
	storedName := generateStoredName(record.DisplayName)
	newVirtualPath := pathutil.Join(record.OwnerName, targetDir, storedName)

	if err := m.content.EnsureDirectory(ctx, pathutil.Join(record.OwnerName, targetDir)); err != nil {
		return nil, err
	}
	if _, err := m.content.DuplicateFile(ctx, record.VirtualPath, newVirtualPath); err != nil {
		return nil, err
	}

	clone := &domain.FileRecord{
		OwnerID:       record.OwnerID,
		OwnerName:     record.OwnerName,
		DisplayName:   record.DisplayName,
		StoredName:    storedName,
		VirtualPath:   newVirtualPath,
		DirectoryPath: targetDir,
		ContentType:   record.ContentType,
		ByteSize:      record.ByteSize,
	}

	err = m.commitCatalog(ctx, "copy_file",
		func() error { return m.namespace.CreateFile(ctx, clone) },
		func() error { return m.content.DeleteFile(context.WithoutCancel(ctx), newVirtualPath) },
	)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source_id", record.ID).
		Str("copy_id", clone.ID).
		Str("path", newVirtualPath).
		Msg("File copied")

	return clone, nil
}

func (m *archiveManager) DeleteFile(ctx context.Context, actingID, fileID string) error {
	if fileID == "" {
		return fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}

	record, err := m.namespace.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if !m.policy.CanAccess(actingID, record.OwnerID) {
		return domain.ErrAccessDenied
	}

	if err := m.content.DeleteFile(ctx, record.VirtualPath); err != nil {
		return err
	}

	return m.namespace.DeleteFile(ctx, fileID)
}

func (m *archiveManager) DeleteDirectory(ctx context.Context, actingID, directoryID string) error {
	if directoryID == "" {
		return fmt.Errorf("%w: directory id is required", domain.ErrInvalidInput)
	}

	record, err := m.namespace.GetDirectory(ctx, directoryID)
	if err != nil {
		return err
	}
	if !m.policy.CanAccess(actingID, record.OwnerID) {
		return domain.ErrAccessDenied
	}

	count, err := m.namespace.CountDescendants(ctx, record.OwnerID, record.OwnerName, record.Path)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrNotEmpty
	}

	if err := m.content.RemoveEmptyDirectory(ctx, pathutil.Join(record.OwnerName, record.Path)); err != nil {
		return err
	}

	return m.namespace.DeleteDirectory(ctx, directoryID)
}

func (m *archiveManager) BulkDeleteFiles(ctx context.Context, params domain.BulkDeleteParams) (domain.BulkDeleteResult, error) {
	if params.ActingID == "" {
		return domain.BulkDeleteResult{}, fmt.Errorf("%w: owner_id is required", domain.ErrInvalidInput)
	}
	if len(params.IDs) == 0 {
		return domain.BulkDeleteResult{}, fmt.Errorf("%w: file_ids array is required", domain.ErrInvalidInput)
	}

	records, err := m.namespace.GetFiles(ctx, params.IDs)
	if err != nil {
		return domain.BulkDeleteResult{}, err
	}
	if len(records) == 0 {
		return domain.BulkDeleteResult{}, fmt.Errorf("%w: no files found", domain.ErrNotFound)
	}

	recordsByID := make(map[string]*domain.FileRecord, len(records))
	for _, record := range records {
		recordsByID[record.ID] = record
	}

	// Total counts resolved records; ids that resolved to nothing are still
	// reported per item.
	result := domain.BulkDeleteResult{Total: len(records), Errors: []string{}}

	for _, id := range params.IDs {
		record, ok := recordsByID[id]
		if !ok {
			result.Errors = append(result.Errors, "file not found: "+id)
			continue
		}

		if !m.policy.CanAccess(params.ActingID, record.OwnerID) {
			result.Errors = append(result.Errors, "access denied for file: "+record.DisplayName)
			continue
		}

		if err := m.content.DeleteFile(ctx, record.VirtualPath); err != nil {
			result.Errors = append(result.Errors, "failed to delete file: "+record.DisplayName)
			continue
		}

		if err := m.namespace.DeleteFile(ctx, record.ID); err != nil {
			result.Errors = append(result.Errors, "failed to delete file record: "+record.DisplayName)
			continue
		}

		result.Deleted++
	}

	return result, nil
}

func (m *archiveManager) BulkDeleteDirectories(ctx context.Context, params domain.BulkDeleteParams) (domain.BulkDeleteResult, error) {
	if params.ActingID == "" {
		return domain.BulkDeleteResult{}, fmt.Errorf("%w: owner_id is required", domain.ErrInvalidInput)
	}
	if len(params.IDs) == 0 {
		return domain.BulkDeleteResult{}, fmt.Errorf("%w: directory_ids array is required", domain.ErrInvalidInput)
	}

	records, err := m.namespace.GetDirectories(ctx, params.IDs)
	if err != nil {
		return domain.BulkDeleteResult{}, err
	}
	if len(records) == 0 {
		return domain.BulkDeleteResult{}, fmt.Errorf("%w: no directories found", domain.ErrNotFound)
	}

	recordsByID := make(map[string]*domain.DirectoryRecord, len(records))
	for _, record := range records {
		recordsByID[record.ID] = record
	}

	result := domain.BulkDeleteResult{Total: len(records), Errors: []string{}}

	for _, id := range params.IDs {
		record, ok := recordsByID[id]
		if !ok {
			result.Errors = append(result.Errors, "directory not found: "+id)
			continue
		}

		if !m.policy.CanAccess(params.ActingID, record.OwnerID) {
			result.Errors = append(result.Errors, "access denied for directory: "+record.Name)
			continue
		}

		count, err := m.namespace.CountDescendants(ctx, record.OwnerID, record.OwnerName, record.Path)
		if err != nil {
			result.Errors = append(result.Errors, "failed to inspect directory: "+record.Name)
			continue
		}
		if count > 0 {
			result.Errors = append(result.Errors, "directory '"+record.Name+"' is not empty")
			continue
		}

		if err := m.content.RemoveEmptyDirectory(ctx, pathutil.Join(record.OwnerName, record.Path)); err != nil {
			result.Errors = append(result.Errors, "failed to delete directory: "+record.Name)
			continue
		}

		if err := m.namespace.DeleteDirectory(ctx, record.ID); err != nil {
			result.Errors = append(result.Errors, "failed to delete directory record: "+record.Name)
			continue
		}

		result.Deleted++
	}

	return result, nil
}

// commitCatalog is the catalog phase of the two-phase protocol: the physical
// side effect has already been applied, and the catalog write is retried with
// bounded backoff. When it still fails, undo reverses the physical side
// before the error surfaces.
func (m *archiveManager) commitCatalog(ctx context.Context, operation string, catalog func() error, undo func() error) error {
	err := m.withCatalogRetry(ctx, catalog)
	if err == nil {
		return nil
	}

	// Deterministic conflicts are routine outcomes, not failures: the
	// physical side is still undone, but no rollback event is recorded.
	conflict := errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrNotFound)

	if !conflict && m.metrics != nil {
		m.metrics.RecordRollback(operation)
	}

	if undoErr := undo(); undoErr != nil {
		log.Error().
			Err(undoErr).
			Str("operation", operation).
			Msg("Compensating rollback failed, storage and catalog may disagree")
	} else if !conflict {
		log.Warn().
			Err(err).
			Str("operation", operation).
			Msg("Catalog write failed, physical change rolled back")
	}

	return err
}

func (m *archiveManager) withCatalogRetry(ctx context.Context, fn func() error) error {
	delay := m.catalogRetryDelay

	var err error
	for attempt := 1; attempt <= m.catalogRetryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Domain conflicts are deterministic; only infrastructure failures
		// are worth retrying.
		if errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if attempt < m.catalogRetryAttempts {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", domain.ErrStorage, err)
			}
		}
	}

	return fmt.Errorf("catalog write failed after %d attempts: %w: %v", m.catalogRetryAttempts, domain.ErrStorage, err)
}

func normalizeOwnerName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// generateStoredName builds a collision-resistant physical filename from the
// uploaded display name: sanitized base, upload timestamp, random suffix, and
// the original extension when present.
func generateStoredName(displayName string) string {
	base, ext := pathutil.SplitName(displayName)

	storedName := pathutil.SanitizeSegment(base) + "_" +
		fmt.Sprintf("%d", time.Now().Unix()) + "_" + xid.New().String()

	if ext = pathutil.SanitizeSegment(ext); ext != "" {
		storedName += "." + ext
	}

	return storedName
}
