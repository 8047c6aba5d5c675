// Package fs implements the content store on the local filesystem. The
// on-disk layout mirrors virtual paths exactly: one root directory per owner,
// nested segment directories, stored files as leaves.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/archivehub/archivehub/internal/domain"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
	tempDirName          = ".incoming"
)

type Store struct {
	basePath      string
	retryAttempts int
	retryDelay    time.Duration
}

type StoreDependencies struct {
	// BasePath is the root of the archive tree. Created if missing.
	BasePath string

	// RetryAttempts bounds how often a failed placement is retried.
	// Defaults to 3.
	RetryAttempts int

	// RetryDelay is the initial backoff between attempts, doubled each
	// retry. Defaults to 1s.
	RetryDelay time.Duration
}

func NewStore(deps StoreDependencies) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(deps.BasePath, tempDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	attempts := deps.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	delay := deps.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	return &Store{
		basePath:      deps.BasePath,
		retryAttempts: attempts,
		retryDelay:    delay,
	}, nil
}

// diskPath maps a virtual path onto the local filesystem.
func (s *Store) diskPath(path string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(path))
}

func (s *Store) EnsureDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.diskPath(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", path, err)
	}

	return nil
}

// WriteFile streams src into a staging file, then retries moving it into
// place with exponential backoff. A cancelled context means the uploader went
// away: the staging file is discarded and ErrClientDisconnected is reported
// instead of a storage failure.
func (s *Store) WriteFile(ctx context.Context, src io.Reader, path string) (int64, error) {
	staging := filepath.Join(s.basePath, tempDirName, xid.New().String())

	written, err := s.stageContent(ctx, src, staging)
	if err != nil {
		return 0, err
	}

	target := s.diskPath(path)
	delay := s.retryDelay

	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		if ctx.Err() != nil {
			os.Remove(staging)
			return 0, domain.ErrClientDisconnected
		}

		if err = os.Rename(staging, target); err == nil {
			return written, nil
		}

		log.Warn().
			Err(err).
			Str("path", path).
			Int("attempt", attempt).
			Msg("Failed to place uploaded file, retrying")

		if attempt < s.retryAttempts {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				os.Remove(staging)
				return 0, domain.ErrClientDisconnected
			}
		}
	}

	os.Remove(staging)
	os.Remove(target)

	return 0, fmt.Errorf("failed to place file after %d attempts: %w: %v", s.retryAttempts, domain.ErrStorage, err)
}

func (s *Store) stageContent(ctx context.Context, src io.Reader, staging string) (int64, error) {
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create staging file: %w: %v", domain.ErrStorage, err)
	}

	written, err := io.Copy(f, contextReader{ctx: ctx, r: src})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(staging)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return 0, domain.ErrClientDisconnected
		}
		return 0, fmt.Errorf("failed to receive upload: %w: %v", domain.ErrStorage, err)
	}

	return written, nil
}

func (s *Store) RenameFile(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Stat(s.diskPath(newPath)); err == nil {
		return domain.ErrTargetExists
	}
	if _, err := os.Stat(s.diskPath(oldPath)); os.IsNotExist(err) {
		return domain.ErrNotFound
	}

	if err := os.Rename(s.diskPath(oldPath), s.diskPath(newPath)); err != nil {
		return fmt.Errorf("failed to move %q to %q: %w", oldPath, newPath, err)
	}

	return nil
}

func (s *Store) DuplicateFile(ctx context.Context, sourcePath, targetPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := os.Open(s.diskPath(sourcePath))
	if os.IsNotExist(err) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open source %q: %w", sourcePath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(s.diskPath(targetPath), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return 0, domain.ErrTargetExists
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create target %q: %w", targetPath, err)
	}

	written, err := io.Copy(dst, src)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(s.diskPath(targetPath))
		return 0, fmt.Errorf("failed to copy %q to %q: %w", sourcePath, targetPath, err)
	}

	return written, nil
}

func (s *Store) DeleteFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.diskPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %q: %w", path, err)
	}

	return nil
}

func (s *Store) RemoveEmptyDirectory(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.diskPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove directory %q: %w", path, err)
	}

	return nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, err := os.Stat(s.diskPath(path)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	return true, nil
}

func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.diskPath(path))
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}

	return f, nil
}

// contextReader aborts an in-flight copy as soon as the request context is
// cancelled, so a disconnected uploader does not keep the worker busy.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

var _ domain.ContentStore = (*Store)(nil)
