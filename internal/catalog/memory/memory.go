// Package memory implements the namespace catalog with in-process maps.
// It backs tests and local development; production deployments use the
// sqlite or mongo backends.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archivehub/archivehub/internal/domain"
)

type Store struct {
	mu          sync.RWMutex
	files       map[string]*domain.FileRecord
	directories map[string]*domain.DirectoryRecord
}

func New() *Store {
	return &Store{
		files:       make(map[string]*domain.FileRecord),
		directories: make(map[string]*domain.DirectoryRecord),
	}
}

func (s *Store) CreateFile(ctx context.Context, record *domain.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = uuid.New().String()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	clone := *record
	s.files[record.ID] = &clone

	return nil
}

func (s *Store) CreateDirectory(ctx context.Context, record *domain.DirectoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.directories {
		if existing.OwnerID == record.OwnerID &&
			existing.OwnerName == record.OwnerName &&
			existing.Path == record.Path &&
			existing.ParentPath == record.ParentPath {
			return domain.ErrAlreadyExists
		}
	}

	record.ID = uuid.New().String()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	clone := *record
	s.directories[record.ID] = &clone

	return nil
}

func (s *Store) GetFile(ctx context.Context, id string) (*domain.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	clone := *record
	return &clone, nil
}

func (s *Store) GetDirectory(ctx context.Context, id string) (*domain.DirectoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.directories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	clone := *record
	return &clone, nil
}

func (s *Store) GetFiles(ctx context.Context, ids []string) ([]*domain.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.FileRecord, 0, len(ids))
	for _, id := range ids {
		if record, ok := s.files[id]; ok {
			clone := *record
			records = append(records, &clone)
		}
	}

	return records, nil
}

func (s *Store) GetDirectories(ctx context.Context, ids []string) ([]*domain.DirectoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.DirectoryRecord, 0, len(ids))
	for _, id := range ids {
		if record, ok := s.directories[id]; ok {
			clone := *record
			records = append(records, &clone)
		}
	}

	return records, nil
}

func (s *Store) ListChildren(ctx context.Context, ownerID, ownerName, directoryPath string) ([]*domain.DirectoryRecord, []*domain.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var dirs []*domain.DirectoryRecord
	for _, record := range s.directories {
		if record.OwnerID == ownerID && record.OwnerName == ownerName && record.ParentPath == directoryPath {
			clone := *record
			dirs = append(dirs, &clone)
		}
	}

	var files []*domain.FileRecord
	for _, record := range s.files {
		if record.OwnerID == ownerID && record.OwnerName == ownerName && record.DirectoryPath == directoryPath {
			clone := *record
			files = append(files, &clone)
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Path < dirs[j].Path })
	sort.Slice(files, func(i, j int) bool { return files[i].VirtualPath < files[j].VirtualPath })

	return dirs, files, nil
}

func (s *Store) ListAllDirectories(ctx context.Context) ([]*domain.DirectoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.DirectoryRecord, 0, len(s.directories))
	for _, record := range s.directories {
		clone := *record
		records = append(records, &clone)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].OwnerName != records[j].OwnerName {
			return records[i].OwnerName < records[j].OwnerName
		}
		return records[i].Path < records[j].Path
	})

	return records, nil
}

func (s *Store) CountDescendants(ctx context.Context, ownerID, ownerName, path string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.files {
		if record.OwnerID == ownerID && record.OwnerName == ownerName && isUnderPath(record.DirectoryPath, path) {
			count++
		}
	}
	for _, record := range s.directories {
		if record.OwnerID == ownerID && record.OwnerName == ownerName && isUnderPath(record.ParentPath, path) {
			count++
		}
	}

	return count, nil
}

func (s *Store) UpdateFilePath(ctx context.Context, id, virtualPath, directoryPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.files[id]
	if !ok {
		return domain.ErrNotFound
	}

	record.VirtualPath = virtualPath
	record.DirectoryPath = directoryPath

	return nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.files, id)

	return nil
}

func (s *Store) DeleteDirectory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.directories[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.directories, id)

	return nil
}

func (s *Store) ResolveOwnerName(ctx context.Context, ownerID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.files {
		if record.OwnerID == ownerID {
			return record.OwnerName, nil
		}
	}
	for _, record := range s.directories {
		if record.OwnerID == ownerID {
			return record.OwnerName, nil
		}
	}

	return "", domain.ErrNotFound
}

func (s *Store) Close() error {
	return nil
}

// isUnderPath reports whether a record living in recordPath is at or below
// path. The comparison is segment-aware: "ab" is not under "a".
func isUnderPath(recordPath, path string) bool {
	return recordPath == path || strings.HasPrefix(recordPath, path+"/")
}

var _ domain.NamespaceStore = (*Store)(nil)
