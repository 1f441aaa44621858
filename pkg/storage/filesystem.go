package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// filesystemStorage keeps blobs as files under basePath. Object ids are the
// file names relative to basePath and URLs are publicURL/<id>.
type filesystemStorage struct {
	basePath  string
	publicURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewFilesystemStorage creates a local-disk store. The directory itself is
// created by Ensure.
func NewFilesystemStorage(basePath, publicURL string, logger *slog.Logger) (AttachmentStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path required")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}

	return &filesystemStorage{
		basePath:  absPath,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.With("storage", DriverFilesystem),
		now:       time.Now,
	}, nil
}

func (f *filesystemStorage) Ensure(ctx context.Context) error {
	if err := os.MkdirAll(f.basePath, 0755); err != nil {
		return fmt.Errorf("create upload directory: %w", err)
	}
	f.logger.Info("upload directory ready", "base_path", f.basePath)
	return nil
}

func (f *filesystemStorage) Put(ctx context.Context, r io.Reader, size int64, fileName string) (*Object, error) {
	name := objectName(fileName, f.now())

	fullPath, err := f.fullPath(name)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(f.basePath, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename temp file: %w", err)
	}

	return &Object{
		ID:  name,
		URL: f.publicURL + "/" + name,
	}, nil
}

func (f *filesystemStorage) Delete(ctx context.Context, id string) error {
	fullPath, err := f.fullPath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove file: %w", err)
	}

	return nil
}

func (f *filesystemStorage) fullPath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}

	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", ErrInvalidKey
	}

	fullPath := filepath.Join(f.basePath, cleaned)
	if !strings.HasPrefix(fullPath, f.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}

	return fullPath, nil
}
