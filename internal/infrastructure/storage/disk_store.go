package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/travel-desk/internal/application/port"
)

// DiskStore keeps trip documents under a base directory. Writes go to a
// temporary file first and are renamed into place.
type DiskStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewDiskStore creates a store rooted at baseDir
func NewDiskStore(baseDir string, logger *zap.Logger) *DiskStore {
	return &DiskStore{baseDir: filepath.Clean(baseDir), logger: logger}
}

func (s *DiskStore) resolve(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

// Save writes content at key. The content type is not persisted; it is
// recovered from the file extension on read.
func (s *DiskStore) Save(ctx context.Context, key string, content []byte, contentType string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		s.logger.Error("Failed to move upload into place", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to store file: %w", err)
	}

	s.logger.Debug("File saved",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("size", len(content)))
	return nil
}

// Read returns the content at key. A missing file wraps fs.ErrNotExist.
func (s *DiskStore) Read(ctx context.Context, key string) ([]byte, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return content, nil
}

// Exists reports whether a regular file is stored at key
func (s *DiskStore) Exists(ctx context.Context, key string) bool {
	full, err := s.resolve(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes the file at key and any directories it leaves empty.
// Deleting a missing key succeeds.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		s.logger.Error("Failed to delete file", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	s.prune(filepath.Dir(full))
	return nil
}

// prune removes empty directories from dir up to, not including, baseDir
func (s *DiskStore) prune(dir string) {
	for dir != s.baseDir && len(dir) > len(s.baseDir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

var _ port.FileStore = (*DiskStore)(nil)
