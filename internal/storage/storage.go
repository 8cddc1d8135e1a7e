package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("file content not found")

// Filesystem defines where file content lives. Paths are the values kept in
// FileRecord.LocalPath; derivatives use the same path with a "_<width>" suffix.
type Filesystem interface {
	// NewPath returns a fresh, collision-resistant path for new content.
	NewPath() string
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// FilesystemStorage stores files on local disk
type FilesystemStorage struct {
	basePath string // e.g., "/tmp/files_manager"
}

func NewFilesystemStorage(basePath string) (*FilesystemStorage, error) {
	basePath = filepath.Clean(basePath)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FilesystemStorage{basePath: basePath}, nil
}

func (fs *FilesystemStorage) NewPath() string {
	return filepath.Join(fs.basePath, uuid.NewString())
}

// Write goes through a temp file in the same directory and renames it into
// place, so readers never observe a partially written file.
func (fs *FilesystemStorage) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}

func (fs *FilesystemStorage) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (fs *FilesystemStorage) Exists(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}
