// Package memory implements the content store with in-process byte maps.
// It exists for tests and local development.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/archivehub/archivehub/internal/domain"
)

type Store struct {
	mu          sync.RWMutex
	files       map[string][]byte
	directories map[string]struct{}
}

func New() *Store {
	return &Store{
		files:       make(map[string][]byte),
		directories: make(map[string]struct{}),
	}
}

func (s *Store) EnsureDirectory(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments := strings.Split(path, "/")
	for i := range segments {
		s.directories[strings.Join(segments[:i+1], "/")] = struct{}{}
	}

	return nil
}

func (s *Store) WriteFile(ctx context.Context, src io.Reader, path string) (int64, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, domain.ErrClientDisconnected
		}
		return 0, fmt.Errorf("failed to read upload: %w", domain.ErrStorage)
	}

	if err := ctx.Err(); err != nil {
		return 0, domain.ErrClientDisconnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data

	return int64(len(data)), nil
}

func (s *Store) RenameFile(ctx context.Context, oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[newPath]; ok {
		return domain.ErrTargetExists
	}
	data, ok := s.files[oldPath]
	if !ok {
		return domain.ErrNotFound
	}

	s.files[newPath] = data
	delete(s.files, oldPath)

	return nil
}

func (s *Store) DuplicateFile(ctx context.Context, sourcePath, targetPath string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[sourcePath]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if _, ok := s.files[targetPath]; ok {
		return 0, domain.ErrTargetExists
	}

	clone := make([]byte, len(data))
	copy(clone, data)
	s.files[targetPath] = clone

	return int64(len(clone)), nil
}

func (s *Store) DeleteFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, path)
	return nil
}

func (s *Store) RemoveEmptyDirectory(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.directories, path)
	return nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[path]; ok {
		return true, nil
	}
	_, ok := s.directories[path]

	return ok, nil
}

func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[path]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

var _ domain.ContentStore = (*Store)(nil)
