// Package sqlite implements the namespace catalog on SQLite through a pooled
// database/sql connection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archivehub/archivehub/internal/catalog/sqlite/migrations"
	"github.com/archivehub/archivehub/internal/domain"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const fileColumns = "id, owner_id, owner_name, display_name, stored_name, virtual_path, directory_path, content_type, byte_size, created_at"
const directoryColumns = "id, owner_id, owner_name, name, path, parent_path, created_at"

type Store struct {
	db *sql.DB
}

// New opens (or creates) the catalog database at path and migrates it to the
// latest schema. path may be ":memory:" for tests.
func New(path string) (*Store, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewFromDB wraps an existing connection. The caller keeps ownership of db
// and is responsible for the schema being current.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenConnection opens a SQLite connection configured for concurrent request
// handlers: WAL journaling and a busy timeout instead of immediate lock
// errors.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

func (s *Store) CreateFile(ctx context.Context, record *domain.FileRecord) error {
	record.ID = uuid.New().String()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO archive_files ("+fileColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID, record.OwnerID, record.OwnerName, record.DisplayName, record.StoredName,
		record.VirtualPath, record.DirectoryPath, record.ContentType, record.ByteSize, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting file record: %w", err)
	}

	return nil
}

func (s *Store) CreateDirectory(ctx context.Context, record *domain.DirectoryRecord) error {
	var existing string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM archive_directories WHERE owner_id = ? AND owner_name = ? AND path = ? AND parent_path = ?",
		record.OwnerID, record.OwnerName, record.Path, record.ParentPath,
	).Scan(&existing)
	if err == nil {
		return domain.ErrAlreadyExists
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking for existing directory: %w", err)
	}

	record.ID = uuid.New().String()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO archive_directories ("+directoryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		record.ID, record.OwnerID, record.OwnerName, record.Name, record.Path, record.ParentPath, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting directory record: %w", err)
	}

	return nil
}

func (s *Store) GetFile(ctx context.Context, id string) (*domain.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM archive_files WHERE id = ?", id)

	record, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding file by id: %w", err)
	}

	return record, nil
}

func (s *Store) GetDirectory(ctx context.Context, id string) (*domain.DirectoryRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+directoryColumns+" FROM archive_directories WHERE id = ?", id)

	record, err := scanDirectory(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding directory by id: %w", err)
	}

	return record, nil
}

func (s *Store) GetFiles(ctx context.Context, ids []string) ([]*domain.FileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + fileColumns + " FROM archive_files WHERE id IN (" + placeholders(len(ids)) + ")"
	rows, err := s.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("finding files by ids: %w", err)
	}
	defer rows.Close()

	var records []*domain.FileRecord
	for rows.Next() {
		record, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (s *Store) GetDirectories(ctx context.Context, ids []string) ([]*domain.DirectoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := "SELECT " + directoryColumns + " FROM archive_directories WHERE id IN (" + placeholders(len(ids)) + ")"
	rows, err := s.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("finding directories by ids: %w", err)
	}
	defer rows.Close()

	var records []*domain.DirectoryRecord
	for rows.Next() {
		record, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning directory record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (s *Store) ListChildren(ctx context.Context, ownerID, ownerName, directoryPath string) ([]*domain.DirectoryRecord, []*domain.FileRecord, error) {
	dirRows, err := s.db.QueryContext(ctx,
		"SELECT "+directoryColumns+" FROM archive_directories WHERE owner_id = ? AND owner_name = ? AND parent_path = ? ORDER BY path",
		ownerID, ownerName, directoryPath,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("listing directories: %w", err)
	}
	defer dirRows.Close()

	var dirs []*domain.DirectoryRecord
	for dirRows.Next() {
		record, err := scanDirectory(dirRows)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning directory record: %w", err)
		}
		dirs = append(dirs, record)
	}
	if err := dirRows.Err(); err != nil {
		return nil, nil, err
	}

	fileRows, err := s.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM archive_files WHERE owner_id = ? AND owner_name = ? AND directory_path = ? ORDER BY virtual_path",
		ownerID, ownerName, directoryPath,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("listing files: %w", err)
	}
	defer fileRows.Close()

	var files []*domain.FileRecord
	for fileRows.Next() {
		record, err := scanFile(fileRows)
		if err != nil {
			return nil, nil, fmt.Errorf("scanning file record: %w", err)
		}
		files = append(files, record)
	}

	return dirs, files, fileRows.Err()
}

func (s *Store) ListAllDirectories(ctx context.Context) ([]*domain.DirectoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+directoryColumns+" FROM archive_directories ORDER BY owner_name, path")
	if err != nil {
		return nil, fmt.Errorf("listing all directories: %w", err)
	}
	defer rows.Close()

	var records []*domain.DirectoryRecord
	for rows.Next() {
		record, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning directory record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (s *Store) CountDescendants(ctx context.Context, ownerID, ownerName, path string) (int64, error) {
	// substr comparison instead of LIKE: sanitized paths may contain "_",
	// which LIKE would treat as a wildcard. The match is segment-aware, so
	// records under "ab" do not count as descendants of "a".
	var fileCount int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM archive_files
		 WHERE owner_id = ?1 AND owner_name = ?2
		   AND (directory_path = ?3 OR substr(directory_path, 1, length(?3) + 1) = ?3 || '/')`,
		ownerID, ownerName, path,
	).Scan(&fileCount)
	if err != nil {
		return 0, fmt.Errorf("counting descendant files: %w", err)
	}

	var dirCount int64
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM archive_directories
		 WHERE owner_id = ?1 AND owner_name = ?2
		   AND (parent_path = ?3 OR substr(parent_path, 1, length(?3) + 1) = ?3 || '/')`,
		ownerID, ownerName, path,
	).Scan(&dirCount)
	if err != nil {
		return 0, fmt.Errorf("counting descendant directories: %w", err)
	}

	return fileCount + dirCount, nil
}

func (s *Store) UpdateFilePath(ctx context.Context, id, virtualPath, directoryPath string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE archive_files SET virtual_path = ?, directory_path = ? WHERE id = ?",
		virtualPath, directoryPath, id,
	)
	if err != nil {
		return fmt.Errorf("updating file path: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "archive_files", id)
}

func (s *Store) DeleteDirectory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "archive_directories", id)
}

func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (s *Store) ResolveOwnerName(ctx context.Context, ownerID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT owner_name FROM archive_files WHERE owner_id = ? LIMIT 1", ownerID).Scan(&name)
	if err == nil {
		return name, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("resolving owner name from files: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT owner_name FROM archive_directories WHERE owner_id = ? LIMIT 1", ownerID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving owner name from directories: %w", err)
	}

	return name, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*domain.FileRecord, error) {
	var record domain.FileRecord
	err := row.Scan(
		&record.ID, &record.OwnerID, &record.OwnerName, &record.DisplayName, &record.StoredName,
		&record.VirtualPath, &record.DirectoryPath, &record.ContentType, &record.ByteSize, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func scanDirectory(row scanner) (*domain.DirectoryRecord, error) {
	var record domain.DirectoryRecord
	err := row.Scan(
		&record.ID, &record.OwnerID, &record.OwnerName, &record.Name,
		&record.Path, &record.ParentPath, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

var _ domain.NamespaceStore = (*Store)(nil)
